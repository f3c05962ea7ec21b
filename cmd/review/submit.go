package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ersonp/review-core/internal/application/handlers"
	"github.com/ersonp/review-core/internal/domain/services"
)

type submitFlags struct {
	patchSet int
	user     string
	groups   []string
	format   string
}

func newSubmitCmd() *cobra.Command {
	var flags submitFlags

	cmd := &cobra.Command{
		Use:   "submit <change>",
		Short: "Submit a change for merging",
		Long: `Records a submit vote on a change. When every category is satisfied the
change becomes SUBMITTED and is merged together with any submitted changes
that were waiting on it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSubmit(cmd, args[0], flags)
		},
	}

	cmd.Flags().IntVarP(&flags.patchSet, "patch-set", "p", 0, "Patch set to submit (default: current)")
	cmd.Flags().StringVarP(&flags.user, "user", "u", "", "Submitting user")
	cmd.Flags().StringSliceVarP(&flags.groups, "group", "g", nil, "Groups the user belongs to")
	cmd.Flags().StringVarP(&flags.format, "format", "f", "text", "Output format (text, json)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func runSubmit(cmd *cobra.Command, ref string, flags submitFlags) error {
	if !isValidFormat(flags.format) {
		return fmt.Errorf("invalid format %q, valid formats: %v", flags.format, validFormats)
	}

	return withDeps(func(d *Deps) error {
		result, err := d.SubmitHandler.Handle(cmd.Context(), ref, handlers.SubmitOptions{
			PatchSet: flags.patchSet,
			User:     flags.user,
			Groups:   flags.groups,
		})

		var submitErr *handlers.SubmitError
		if err != nil && !errors.As(err, &submitErr) {
			return err
		}

		out := cmd.OutOrStdout()
		if flags.format == "json" {
			if jerr := formatJSON(out, result); jerr != nil {
				return jerr
			}
		} else if result != nil && result.IsOk() {
			formatSubmit(out, result)
		}
		return err
	})
}

func formatSubmit(w io.Writer, r *services.SubmitResult) {
	c := r.Change
	fmt.Fprintf(w, "Change %d is %s\n", c.ID, c.Status)

	if r.Cascade == nil || len(r.Cascade.Steps) == 0 {
		fmt.Fprintln(w, "Nothing merged; waiting on dependencies or approvals.")
		return
	}

	fmt.Fprintf(w, "Merge cascade %s:\n", r.Cascade.ID)
	for _, s := range r.Cascade.Steps {
		fmt.Fprintf(w, "  %*s%d on %s\n", s.Depth*2, "", s.ChangeID, s.Branch)
	}
	if len(r.Cascade.Cycles) > 0 {
		fmt.Fprintf(w, "Dependency cycle through changes %s\n", joinIDs(r.Cascade.Cycles))
	}
}
