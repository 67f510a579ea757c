package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/4thel00z/blamed/internal"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:         "config",
		Short:       "Create and inspect configuration",
		Annotations: map[string]string{skipSetup: ""},
	}

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a default config file",
		Long: `Write a default config file. Without a path the file goes to .blamed/config.yaml
in the working directory, or to the user config directory with --global.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runConfigInit,
	}
	initCmd.Flags().Bool("global", false, "Write to the user config directory")
	initCmd.Flags().Bool("force", false, "Overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	}

	cmd.AddCommand(initCmd, showCmd)
	return cmd
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	isGlobal, _ := cmd.Flags().GetBool("global")
	force, _ := cmd.Flags().GetBool("force")

	var path string
	switch {
	case len(args) == 1:
		path = args[0]
	case isGlobal:
		path = internal.NewScopeResolver().Global().ConfigPath()
	default:
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
		path = internal.Scope{Type: internal.ScopeProject, Dir: filepath.Join(cwd, internal.ProjectDirName)}.ConfigPath()
	}

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
	}

	if err := internal.SaveConfig(path, internal.DefaultConfig()); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, path, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	shown := *cfg
	if shown.GitHubToken != "" {
		shown.GitHubToken = "***"
	}
	if shown.Cache.DSN != "" {
		shown.Cache.DSN = "***"
	}

	data, err := yaml.Marshal(&shown)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		// Same keys and duration strings as the file.
		var doc map[string]any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("convert config: %w", err)
		}
		return outputJSON(cmd, map[string]any{"path": path, "config": doc})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", path, data)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
	}
	return nil
}
