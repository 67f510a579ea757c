package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/4thel00z/blamed/internal"
	"github.com/spf13/cobra"
)

func NewBlameCmd(blame func() *internal.CalculateBlameLinesUseCase) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blame <repo-id> <commit> <path>",
		Short: "Blame a file at a commit",
		Long: `Resolve per-line authorship of a file at a commit, cloning and updating
the repository mirror as needed. Repository ids look like github-<owner>!<name>.`,
		Args: cobra.ExactArgs(3),
		RunE: makeBlameRunner(blame),
	}

	return cmd
}

func makeBlameRunner(blame func() *internal.CalculateBlameLinesUseCase) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		out, err := blame().Execute(cmd.Context(), internal.CalculateBlameInput{
			RepoID: args[0], Commit: args[1], FilePath: args[2],
		})
		if err != nil {
			return fmt.Errorf("blame: %w", err)
		}

		if asJSON {
			return outputBlameJSON(cmd, out)
		}

		printLines(cmd, out.Lines)
		if out.CacheHit {
			fmt.Fprintln(cmd.ErrOrStderr(), "(cached)")
		}
		return nil
	}
}

func outputBlameJSON(cmd *cobra.Command, out *internal.CalculateBlameOutput) error {
	lines := out.Lines
	if lines == nil {
		lines = []internal.BlameLine{}
	}
	return outputJSON(cmd, map[string]any{
		"cache_hit": out.CacheHit,
		"lines":     lines,
	})
}

func printLines(cmd *cobra.Command, lines []internal.BlameLine) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for i, l := range lines {
		commit := l.OriginalCommit
		if len(commit) > 12 {
			commit = commit[:12]
		}
		fmt.Fprintf(w, "%d\t%s\t%s:%d\n", i+1, commit, l.OriginalFilePath, l.OriginalLineNumber)
	}
	_ = w.Flush()
}
