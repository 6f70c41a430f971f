package cli

import (
	"context"
	"fmt"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"release-train/internal/app"
	"release-train/internal/types"
)

type publishOptions struct {
	Ecosystem    string
	Workspaces   []string
	TiersFile    string
	Parallel     int
	Wait         int
	Retries      int
	RetryDelayMs int
	Timeout      int
	RegistryURL  string
	Tag          string
	DryRun       bool
	Check        bool
}

func newPublishCommand() *cobra.Command {
	opts := publishOptions{}
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish workspace packages tier by tier",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPublish(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Ecosystem, "ecosystem", "", "Target registry (npm, cargo, or pypi)")
	cmd.Flags().StringSliceVar(&opts.Workspaces, "workspace", nil, "Workspace root(s) to scan")
	cmd.Flags().StringVar(&opts.TiersFile, "tiers", "", "Static tier override file (YAML)")
	cmd.Flags().IntVar(&opts.Parallel, "parallel", 4, "Concurrent publish workers per tier")
	cmd.Flags().IntVar(&opts.Wait, "wait", 0, "Seconds to wait after a tier for registry indexing")
	cmd.Flags().IntVar(&opts.Retries, "retries", 8, "Max upload attempts per package on rate limits")
	cmd.Flags().IntVar(&opts.RetryDelayMs, "retry-delay-ms", 500, "Base backoff delay in ms")
	cmd.Flags().IntVar(&opts.Timeout, "timeout", 30, "Registry HTTP timeout in seconds")
	cmd.Flags().StringVar(&opts.RegistryURL, "registry-url", "", "Registry endpoint override")
	cmd.Flags().StringVar(&opts.Tag, "tag", "", "npm dist-tag applied at publish time")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Scan and check the registry without uploading")
	cmd.Flags().BoolVar(&opts.Check, "check", false, "Run preflight and print the plan, then stop")
	_ = viper.BindPFlag("ecosystem", cmd.Flags().Lookup("ecosystem"))
	_ = viper.BindPFlag("workspaces", cmd.Flags().Lookup("workspace"))
	_ = viper.BindPFlag("tiers_file", cmd.Flags().Lookup("tiers"))
	_ = viper.BindPFlag("parallel", cmd.Flags().Lookup("parallel"))
	_ = viper.BindPFlag("wait", cmd.Flags().Lookup("wait"))
	_ = viper.BindPFlag("retries", cmd.Flags().Lookup("retries"))
	_ = viper.BindPFlag("retry_delay_ms", cmd.Flags().Lookup("retry-delay-ms"))
	_ = viper.BindPFlag("timeout", cmd.Flags().Lookup("timeout"))
	_ = viper.BindPFlag("registry_url", cmd.Flags().Lookup("registry-url"))
	_ = viper.BindPFlag("tag", cmd.Flags().Lookup("tag"))
	return cmd
}

func runPublish(ctx context.Context, cmd *cobra.Command, opts publishOptions) error {
	service := newAppService()
	result, err := service.Publish(ctx, app.PublishRequest{
		Ecosystem:    resolveString(cmd, opts.Ecosystem, "ecosystem", "ecosystem"),
		Workspaces:   resolveStrings(cmd, opts.Workspaces, "workspaces", "workspace"),
		TiersFile:    resolveString(cmd, opts.TiersFile, "tiers_file", "tiers"),
		Workers:      resolveInt(cmd, opts.Parallel, "parallel", "parallel"),
		SettleSec:    resolveInt(cmd, opts.Wait, "wait", "wait"),
		Retries:      resolveInt(cmd, opts.Retries, "retries", "retries"),
		RetryDelayMs: resolveInt(cmd, opts.RetryDelayMs, "retry_delay_ms", "retry-delay-ms"),
		TimeoutSec:   resolveInt(cmd, opts.Timeout, "timeout", "timeout"),
		RegistryURL:  resolveString(cmd, opts.RegistryURL, "registry_url", "registry-url"),
		Tag:          resolveString(cmd, opts.Tag, "tag", "tag"),
		DryRun:       opts.DryRun,
		Check:        opts.Check,
	})
	if err != nil {
		return err
	}
	if result.Checked {
		printPlan(result.Tiers, result.Warnings)
		fmt.Println("preflight ok")
		return nil
	}
	printSummary(result.Report)
	if failed := result.Report.FailedCount(); failed > 0 {
		return errbuilder.New().
			WithMsg(fmt.Sprintf("%d package(s) failed to publish", failed))
	}
	return nil
}

func printSummary(report types.Report) {
	published := report.Published()
	skipped := report.Skipped()
	failed := report.Failed()
	fmt.Printf("published %d, skipped %d, failed %d\n", len(published), len(skipped), len(failed))
	for _, result := range published {
		fmt.Printf("  published  %s@%s%s\n", result.Package.Name, result.Package.Version, reasonSuffix(result))
	}
	for _, result := range skipped {
		fmt.Printf("  skipped    %s@%s (%s)\n", result.Package.Name, result.Package.Version, result.Reason)
	}
	for _, result := range failed {
		fmt.Printf("  failed     %s@%s (%s)\n", result.Package.Name, result.Package.Version, result.Reason)
		if result.Output != "" {
			fmt.Printf("             %s\n", result.Output)
		}
	}
}

func reasonSuffix(result types.PackageResult) string {
	if result.Reason == "" {
		return ""
	}
	return " (" + result.Reason + ")"
}

func resolveInt(cmd *cobra.Command, value int, key string, flagName string) int {
	if cmd == nil {
		if value != 0 {
			return value
		}
		return viper.GetInt(key)
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	if viper.IsSet(key) {
		return viper.GetInt(key)
	}
	return value
}
