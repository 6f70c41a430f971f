package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"release-train/internal/app"
	"release-train/internal/types"
)

type planOptions struct {
	Ecosystem  string
	Workspaces []string
	TiersFile  string
}

func newPlanCommand() *cobra.Command {
	opts := planOptions{}
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Compute and print the tiered publish plan",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPlan(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Ecosystem, "ecosystem", "", "Target registry (npm, cargo, or pypi)")
	cmd.Flags().StringSliceVar(&opts.Workspaces, "workspace", nil, "Workspace root(s) to scan")
	cmd.Flags().StringVar(&opts.TiersFile, "tiers", "", "Static tier override file (YAML)")
	_ = viper.BindPFlag("ecosystem", cmd.Flags().Lookup("ecosystem"))
	_ = viper.BindPFlag("workspaces", cmd.Flags().Lookup("workspace"))
	_ = viper.BindPFlag("tiers_file", cmd.Flags().Lookup("tiers"))
	return cmd
}

func runPlan(ctx context.Context, cmd *cobra.Command, opts planOptions) error {
	service := newAppService()
	result, err := service.Plan(ctx, app.PlanRequest{
		Ecosystem:  resolveString(cmd, opts.Ecosystem, "ecosystem", "ecosystem"),
		Workspaces: resolveStrings(cmd, opts.Workspaces, "workspaces", "workspace"),
		TiersFile:  resolveString(cmd, opts.TiersFile, "tiers_file", "tiers"),
	})
	if err != nil {
		return err
	}
	printPlan(result.Tiers, result.Warnings)
	return nil
}

func printPlan(tiers []types.Tier, warnings []string) {
	for _, tier := range tiers {
		names := make([]string, 0, len(tier.Packages))
		for _, pkg := range tier.Packages {
			name := fmt.Sprintf("%s@%s", pkg.Name, pkg.Version)
			if pkg.Private {
				name += " (private)"
			}
			names = append(names, name)
		}
		fmt.Printf("tier %d: %s\n", tier.Index, strings.Join(names, ", "))
	}
	for _, warning := range warnings {
		fmt.Printf("warning: %s\n", warning)
	}
}

func resolveString(cmd *cobra.Command, value string, key string, flagName string) string {
	if cmd == nil {
		if value != "" {
			return value
		}
		return viper.GetString(key)
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	return value
}

func resolveStrings(cmd *cobra.Command, values []string, key string, flagName string) []string {
	if cmd == nil {
		if len(values) > 0 {
			return values
		}
		return viper.GetStringSlice(key)
	}
	if flagChanged(cmd, flagName) {
		return values
	}
	if viper.IsSet(key) {
		return viper.GetStringSlice(key)
	}
	return values
}

func flagChanged(cmd *cobra.Command, name string) bool {
	if cmd == nil || strings.TrimSpace(name) == "" {
		return false
	}
	if flag := cmd.Flags().Lookup(name); flag != nil {
		return flag.Changed
	}
	if flag := cmd.PersistentFlags().Lookup(name); flag != nil {
		return flag.Changed
	}
	return false
}
