package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ersonp/review-core/internal/application/handlers"
)

type uploadFlags struct {
	user   string
	groups []string
}

func newUploadCmd() *cobra.Command {
	var flags uploadFlags

	cmd := &cobra.Command{
		Use:   "upload <project> <branch> <revision>",
		Short: "Upload a commit for review",
		Long: `Records a commit from the project repository as a patch set. The commit's
Change-Id footer selects the change; a new change is opened when none matches.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(cmd, args[0], args[1], args[2], flags)
		},
	}

	cmd.Flags().StringVarP(&flags.user, "user", "u", "", "Uploading user")
	cmd.Flags().StringSliceVarP(&flags.groups, "group", "g", nil, "Groups the user belongs to")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func runUpload(cmd *cobra.Command, project, branch, revision string, flags uploadFlags) error {
	return withDeps(func(d *Deps) error {
		result, err := d.UploadHandler.Handle(cmd.Context(), project, branch, revision, handlers.UploadOptions{
			User:   flags.user,
			Groups: flags.groups,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if result.Created {
			fmt.Fprintf(out, "New change %d: %s\n", result.Change.ID, result.Change.Subject)
		} else {
			fmt.Fprintf(out, "Updated change %d: %s\n", result.Change.ID, result.Change.Subject)
		}
		fmt.Fprintf(out, "  Patch set %d  %s\n", result.PatchSet.ID.PatchSet, shortRevision(result.PatchSet.Revision))
		return nil
	})
}
