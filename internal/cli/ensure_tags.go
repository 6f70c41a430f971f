package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"release-train/internal/app"
)

type ensureTagsOptions struct {
	Ecosystem   string
	Workspaces  []string
	Tag         string
	RegistryURL string
	Timeout     int
}

func newEnsureTagsCommand() *cobra.Command {
	opts := ensureTagsOptions{}
	cmd := &cobra.Command{
		Use:   "ensure-tags",
		Short: "Point the release channel dist-tag at the workspace versions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEnsureTags(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.Ecosystem, "ecosystem", "npm", "Target registry (only npm has dist-tags)")
	cmd.Flags().StringSliceVar(&opts.Workspaces, "workspace", nil, "Workspace root(s) to scan")
	cmd.Flags().StringVar(&opts.Tag, "tag", "next", "Release channel dist-tag")
	cmd.Flags().StringVar(&opts.RegistryURL, "registry-url", "", "Registry endpoint override")
	cmd.Flags().IntVar(&opts.Timeout, "timeout", 30, "Registry HTTP timeout in seconds")
	_ = viper.BindPFlag("workspaces", cmd.Flags().Lookup("workspace"))
	_ = viper.BindPFlag("tag", cmd.Flags().Lookup("tag"))
	_ = viper.BindPFlag("registry_url", cmd.Flags().Lookup("registry-url"))
	_ = viper.BindPFlag("timeout", cmd.Flags().Lookup("timeout"))
	return cmd
}

func runEnsureTags(ctx context.Context, cmd *cobra.Command, opts ensureTagsOptions) error {
	service := newAppService()
	result, err := service.EnsureTags(ctx, app.EnsureTagsRequest{
		Ecosystem:   opts.Ecosystem,
		Workspaces:  resolveStrings(cmd, opts.Workspaces, "workspaces", "workspace"),
		Tag:         resolveString(cmd, opts.Tag, "tag", "tag"),
		RegistryURL: resolveString(cmd, opts.RegistryURL, "registry_url", "registry-url"),
		TimeoutSec:  resolveInt(cmd, opts.Timeout, "timeout", "timeout"),
	})
	if err != nil {
		return err
	}
	moved := 0
	for _, tag := range result.Results {
		if tag.Moved {
			moved++
			fmt.Printf("  moved %s -> %s@%s\n", result.Tag, tag.Name, tag.Version)
		}
	}
	fmt.Printf("checked %d package(s), moved %d dist-tag(s)\n", len(result.Results), moved)
	return nil
}
