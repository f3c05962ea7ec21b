// Package entities contains core domain data structures.
package entities

import (
	"fmt"
	"strings"
	"time"
)

// ChangeStatus is the lifecycle state of a change.
// Values are the single-character codes stored in the changes table.
type ChangeStatus string

const (
	StatusNew       ChangeStatus = "n"
	StatusSubmitted ChangeStatus = "s"
	StatusDraft     ChangeStatus = "d"
	StatusMerged    ChangeStatus = "M"
	StatusAbandoned ChangeStatus = "A"
)

// IsClosed reports whether no further review or submit can happen.
func (s ChangeStatus) IsClosed() bool {
	return s == StatusMerged || s == StatusAbandoned
}

// IsValid reports whether s is a known status code.
func (s ChangeStatus) IsValid() bool {
	switch s {
	case StatusNew, StatusSubmitted, StatusDraft, StatusMerged, StatusAbandoned:
		return true
	}
	return false
}

// String returns the human readable name of the status.
func (s ChangeStatus) String() string {
	switch s {
	case StatusNew:
		return "NEW"
	case StatusSubmitted:
		return "SUBMITTED"
	case StatusDraft:
		return "DRAFT"
	case StatusMerged:
		return "MERGED"
	case StatusAbandoned:
		return "ABANDONED"
	default:
		return "UNKNOWN(" + string(s) + ")"
	}
}

// ParseChangeStatus accepts either a status name ("merged") or its code ("M").
func ParseChangeStatus(s string) (ChangeStatus, error) {
	if st := ChangeStatus(s); st.IsValid() {
		return st, nil
	}
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "NEW":
		return StatusNew, nil
	case "SUBMITTED":
		return StatusSubmitted, nil
	case "DRAFT":
		return StatusDraft, nil
	case "MERGED":
		return StatusMerged, nil
	case "ABANDONED":
		return StatusAbandoned, nil
	}
	return "", fmt.Errorf("invalid change status: %s (valid: new, submitted, draft, merged, abandoned)", s)
}

// Branch is the destination of a change: a ref inside a project.
type Branch struct {
	Project string `json:"project"`
	Name    string `json:"name"` // Full ref name, e.g. "refs/heads/master"
}

// NewBranch builds a Branch, expanding short names like "master" to "refs/heads/master".
func NewBranch(project, name string) Branch {
	if !strings.HasPrefix(name, "refs/") {
		name = "refs/heads/" + name
	}
	return Branch{Project: project, Name: name}
}

// ShortName returns the branch name without the refs/heads/ prefix.
func (b Branch) ShortName() string {
	return strings.TrimPrefix(b.Name, "refs/heads/")
}

func (b Branch) String() string {
	return b.Project + ":" + b.Name
}

// Change is a reviewable unit of code modification.
type Change struct {
	ID              int          `json:"id"`
	Key             string       `json:"key"` // Change-Id, "I" followed by 40 hex digits
	Dest            Branch       `json:"dest"`
	Owner           string       `json:"owner"`
	Subject         string       `json:"subject"`
	Status          ChangeStatus `json:"status"`
	CurrentPatchSet int          `json:"current_patch_set"`
	RowVersion      int          `json:"row_version"`
	CreatedOn       time.Time    `json:"created_on"`
	LastUpdatedOn   time.Time    `json:"last_updated_on"`
}

// Project returns the project the change belongs to.
func (c *Change) Project() string {
	return c.Dest.Project
}

// CurrentPatchSetID returns the identity of the change's current patch set.
func (c *Change) CurrentPatchSetID() PatchSetID {
	return PatchSetID{ChangeID: c.ID, PatchSet: c.CurrentPatchSet}
}

// Touch marks the change as updated now.
func (c *Change) Touch(now time.Time) {
	c.LastUpdatedOn = now
}
