package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ersonp/review-core/internal/application/handlers"
)

type listFlags struct {
	status string
	limit  int
	offset int
	format string
}

func newListCmd() *cobra.Command {
	var flags listFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List changes",
		Long:  "Lists changes, most recently updated first, with optional status filtering.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.status, "status", "s", "", "Filter by status (new, submitted, draft, merged, abandoned)")
	cmd.Flags().IntVarP(&flags.limit, "limit", "l", DefaultListLimit, "Maximum number of changes to display")
	cmd.Flags().IntVar(&flags.offset, "offset", 0, "Number of changes to skip")
	cmd.Flags().StringVarP(&flags.format, "format", "f", "text", "Output format (text, json)")

	return cmd
}

func runList(cmd *cobra.Command, flags listFlags) error {
	if !isValidFormat(flags.format) {
		return fmt.Errorf("invalid format %q, valid formats: %v", flags.format, validFormats)
	}

	return withDeps(func(d *Deps) error {
		changes, err := d.ChangeHandler.HandleList(cmd.Context(), handlers.ListOptions{
			Status: flags.status,
			Limit:  flags.limit,
			Offset: flags.offset,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if flags.format == "json" {
			return formatJSON(out, changes)
		}

		if len(changes) == 0 {
			fmt.Fprintln(out, "No changes found.")
			return nil
		}
		formatChanges(out, changes, time.Now())
		return nil
	})
}
