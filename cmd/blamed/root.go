package main

import (
	"encoding/json"

	"github.com/4thel00z/blamed/internal"
	"github.com/spf13/cobra"
)

// skipSetup marks commands that run without building the engine.
const skipSetup = "blamed/skip-setup"

func NewRootCmd(version string, a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "blamed",
		Short:         "Mirror repositories and serve cached blame",
		Long:          `Keeps mirrors of remote git repositories and answers per-line blame requests, caching every result by commit and path.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	addPersistentFlags(rootCmd)

	if a != nil {
		rootCmd.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
			if needsSetup(cmd) {
				return a.setup(cmd)
			}
			return nil
		}
		addSubcommands(rootCmd, a)
	}

	return rootCmd
}

func addPersistentFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String("config", "", "Config file (default: .blamed/config.yaml or the user config dir)")
	cmd.PersistentFlags().String("log-level", "", "Log level (trace|debug|info|warn|error)")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
}

func addSubcommands(root *cobra.Command, a *app) {
	blame := func() *internal.CalculateBlameLinesUseCase { return a.blameUC }
	mirror := func() *internal.MirrorService { return a.mirrorSvc }
	cache := func() *internal.CacheService { return a.cacheSvc }

	root.AddCommand(
		NewServeCmd(a),
		NewBlameCmd(blame),
		NewMirrorCmd(mirror),
		NewCacheCmd(cache),
		NewConfigCmd(),
	)
}

func needsSetup(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if _, ok := c.Annotations[skipSetup]; ok {
			return false
		}
	}
	return cmd.Runnable() && cmd.HasParent()
}

func outputJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
