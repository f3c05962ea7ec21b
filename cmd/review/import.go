package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ersonp/review-core/internal/application/handlers"
	"github.com/ersonp/review-core/internal/domain/services"
)

type importFlags struct {
	format     string
	dryRun     bool
	onConflict string
}

func newImportCmd() *cobra.Command {
	var flags importFlags

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import changes from JSON or CSV",
		Long:  "Imports changes with their patch sets and approvals from an exported file.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, args[0], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.format, "format", "f", "auto", "File format (json, csv, auto)")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Validate without saving")
	cmd.Flags().StringVar(&flags.onConflict, "on-conflict", "skip", "Conflict handling (skip, overwrite)")

	return cmd
}

func runImport(cmd *cobra.Command, filePath string, flags importFlags) error {
	// Validate on-conflict flag
	strategy := services.ConflictStrategy(flags.onConflict)
	if strategy != services.ConflictSkip && strategy != services.ConflictOverwrite {
		return fmt.Errorf("invalid --on-conflict value %q (valid: skip, overwrite)", flags.onConflict)
	}

	return withDeps(func(d *Deps) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Importing %s...\n", filePath)

		result, err := d.ImportHandler.Handle(cmd.Context(), filePath, handlers.ImportOptions{
			Format:     flags.format,
			DryRun:     flags.dryRun,
			OnConflict: strategy,
		})
		if err != nil {
			return fmt.Errorf("importing file: %w", err)
		}

		if len(result.Kinds) > 0 {
			fmt.Fprintf(out, "  %-10s %7s %8s\n", "KIND", "RECORDS", "REJECTED")
		}
		for _, k := range result.Kinds {
			kind := k.Kind
			if kind == "" {
				kind = "-"
			}
			fmt.Fprintf(out, "  %-10s %7d %8d\n", kind, k.Records, k.Rejected)
		}
		if len(result.Changes) > 0 {
			fmt.Fprintf(out, "  touches %d changes\n", len(result.Changes))
		}

		// Display errors
		if len(result.Errors) > 0 {
			fmt.Fprintf(out, "\nValidation errors (%d):\n", len(result.Errors))
			for _, e := range result.Errors {
				fmt.Fprintf(out, "  %s\n", e.Error())
			}
		}

		// Display summary
		fmt.Fprintln(out)
		if flags.dryRun {
			fmt.Fprintf(out, "Dry run: %d records would be imported", result.Imported)
		} else {
			fmt.Fprintf(out, "Imported: %d records", result.Imported)
		}

		if result.Skipped > 0 {
			fmt.Fprintf(out, ", %d skipped (already exist)", result.Skipped)
		}

		if len(result.Errors) > 0 {
			fmt.Fprintf(out, ", %d errors", len(result.Errors))
		}

		fmt.Fprintln(out)

		return nil
	})
}
