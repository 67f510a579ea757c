package main

import (
	"fmt"

	"github.com/4thel00z/blamed/internal"
	"github.com/spf13/cobra"
)

func NewCacheCmd(cache func() *internal.CacheService) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Read the blame cache",
	}

	get := &cobra.Command{
		Use:   "get <commit> <path>",
		Short: "Print a cached blame without computing it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, _ := cmd.Flags().GetBool("json")

			lines, ok, err := cache().Get(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no cached blame for %s at %s", args[1], args[0])
			}

			if asJSON {
				return outputJSON(cmd, lines)
			}
			printLines(cmd, lines)
			return nil
		},
	}

	cmd.AddCommand(get)
	return cmd
}
