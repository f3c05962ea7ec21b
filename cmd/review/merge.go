package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMergeCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "merge <project> <branch>",
		Short: "Merge submitted changes on a branch",
		Long:  "Runs the merge queue for a branch, fast-forwarding every submitted change whose parents are already merged.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(cmd, args[0], args[1], format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text, json)")

	return cmd
}

func runMerge(cmd *cobra.Command, project, branch, format string) error {
	if !isValidFormat(format) {
		return fmt.Errorf("invalid format %q, valid formats: %v", format, validFormats)
	}

	return withDeps(func(d *Deps) error {
		result, err := d.MergeHandler.Handle(cmd.Context(), project, branch)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if format == "json" {
			return formatJSON(out, result)
		}

		fmt.Fprintf(out, "Merged on %s: %d", result.Branch, len(result.Merged))
		if len(result.Merged) > 0 {
			fmt.Fprintf(out, " (%s)", joinIDs(result.Merged))
		}
		fmt.Fprintln(out)
		if len(result.Waiting) > 0 {
			fmt.Fprintf(out, "Still waiting: %s\n", joinIDs(result.Waiting))
		}
		return nil
	})
}
