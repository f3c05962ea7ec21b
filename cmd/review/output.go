package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/ersonp/review-core/internal/application/handlers"
	"github.com/ersonp/review-core/internal/domain/entities"
)

func isValidFormat(format string) bool {
	for _, f := range validFormats {
		if f == format {
			return true
		}
	}
	return false
}

func formatJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// changeLine renders a change as a single list row.
func changeLine(c entities.Change, now time.Time) string {
	return fmt.Sprintf("%-6d %-10s %-24s %-12s %-14s %s",
		c.ID,
		c.Status,
		truncate(c.Dest.String(), 24),
		truncate(c.Owner, 12),
		humanize.RelTime(c.LastUpdatedOn, now, "ago", "from now"),
		c.Subject,
	)
}

func formatChanges(w io.Writer, changes []entities.Change, now time.Time) {
	fmt.Fprintf(w, "%-6s %-10s %-24s %-12s %-14s %s\n", "ID", "STATUS", "BRANCH", "OWNER", "UPDATED", "SUBJECT")
	for _, c := range changes {
		fmt.Fprintln(w, changeLine(c, now))
	}
}

func formatDetail(w io.Writer, d *handlers.ChangeDetail, now time.Time) {
	c := d.Change
	fmt.Fprintf(w, "Change %d: %s\n", c.ID, c.Subject)
	fmt.Fprintf(w, "  Change-Id: %s\n", c.Key)
	fmt.Fprintf(w, "  Branch:    %s\n", c.Dest)
	fmt.Fprintf(w, "  Owner:     %s\n", c.Owner)
	fmt.Fprintf(w, "  Status:    %s\n", c.Status)
	fmt.Fprintf(w, "  Updated:   %s\n", humanize.RelTime(c.LastUpdatedOn, now, "ago", "from now"))

	if len(d.PatchSets) > 0 {
		fmt.Fprintf(w, "\nPatch sets (%d):\n", len(d.PatchSets))
		for _, ps := range d.PatchSets {
			marker := " "
			if ps.ID.PatchSet == c.CurrentPatchSet {
				marker = "*"
			}
			fmt.Fprintf(w, " %s %-3d %s  %s\n", marker, ps.ID.PatchSet, shortRevision(ps.Revision), ps.Uploader)
		}
	}

	if len(d.Approvals) > 0 {
		fmt.Fprintln(w, "\nApprovals:")
		for _, a := range d.Approvals {
			fmt.Fprintf(w, "  %-4s %+d  %s\n", a.Key.Category, a.Value, a.Key.User)
		}
	}

	writeRelated(w, "Depends on", d.DependsOn)
	writeRelated(w, "Needed by", d.NeededBy)

	if len(d.History) > 0 {
		fmt.Fprintln(w, "\nHistory:")
		for _, e := range d.History {
			fmt.Fprintf(w, "  %-14s %-14s %s\n", humanize.RelTime(e.CreatedAt, now, "ago", "from now"), e.Action, formatDetails(e.Details))
		}
	}
}

func writeRelated(w io.Writer, title string, changes []entities.Change) {
	if len(changes) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s:\n", title)
	for _, c := range changes {
		fmt.Fprintf(w, "  %-6d %-10s %s\n", c.ID, c.Status, c.Subject)
	}
}

func formatDetails(details map[string]any) string {
	if len(details) == 0 {
		return ""
	}
	data, err := json.Marshal(details)
	if err != nil {
		return fmt.Sprint(details)
	}
	return string(data)
}

func shortRevision(rev string) string {
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func joinIDs(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ", ")
}
