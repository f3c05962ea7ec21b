package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newShowCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show <change>",
		Short: "Show a change",
		Long:  "Shows a change by number or Change-Id, with its patch sets, votes, dependencies and history.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd, args[0], format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format (text, json)")

	return cmd
}

func runShow(cmd *cobra.Command, ref, format string) error {
	if !isValidFormat(format) {
		return fmt.Errorf("invalid format %q, valid formats: %v", format, validFormats)
	}

	return withDeps(func(d *Deps) error {
		detail, err := d.ChangeHandler.HandleShow(cmd.Context(), ref)
		if err != nil {
			return err
		}

		if format == "json" {
			return formatJSON(cmd.OutOrStdout(), detail)
		}
		formatDetail(cmd.OutOrStdout(), detail, time.Now())
		return nil
	})
}
