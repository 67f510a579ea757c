package main

import (
	"fmt"

	"github.com/4thel00z/blamed/internal"
	"github.com/spf13/cobra"
)

func NewMirrorCmd(mirror func() *internal.MirrorService) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Inspect and update repository mirrors",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "path <repo-id>",
			Short: "Print the mirror directory of a repository",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				p, err := mirror().Path(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), p)
				return nil
			},
		},
		&cobra.Command{
			Use:   "sync <repo-id> <commit>",
			Short: "Clone or update a mirror until it contains a commit",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				asJSON, _ := cmd.Flags().GetBool("json")

				m, err := mirror().Sync(cmd.Context(), args[0], args[1])
				if err != nil {
					return fmt.Errorf("sync mirror: %w", err)
				}

				if asJSON {
					return outputJSON(cmd, map[string]any{
						"repo_id": m.ID.String(),
						"path":    m.Path,
						"commit":  args[1],
					})
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%s contains %s\n", m.Path, args[1])
				return nil
			},
		},
	)

	return cmd
}
