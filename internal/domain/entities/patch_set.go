package entities

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PatchSetID identifies one revision of a change: "100,1" is patch set 1 of change 100.
type PatchSetID struct {
	ChangeID int `json:"change_id"`
	PatchSet int `json:"patch_set"`
}

func (id PatchSetID) String() string {
	return strconv.Itoa(id.ChangeID) + "," + strconv.Itoa(id.PatchSet)
}

// ParsePatchSetID parses the "change,patchset" form.
func ParsePatchSetID(s string) (PatchSetID, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return PatchSetID{}, fmt.Errorf("invalid patch set id: %q (expected change,patchset)", s)
	}
	changeID, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return PatchSetID{}, fmt.Errorf("invalid change number in %q: %w", s, err)
	}
	ps, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return PatchSetID{}, fmt.Errorf("invalid patch set number in %q: %w", s, err)
	}
	return PatchSetID{ChangeID: changeID, PatchSet: ps}, nil
}

// PatchSet is one uploaded revision of a change.
type PatchSet struct {
	ID        PatchSetID `json:"id"`
	Revision  string     `json:"revision"` // Commit SHA-1
	Uploader  string     `json:"uploader"`
	CreatedOn time.Time  `json:"created_on"`
}

// PatchSetAncestor records that the commit of a patch set has a parent commit.
// Position is the 1-based parent index.
type PatchSetAncestor struct {
	PatchSet         PatchSetID `json:"patch_set"`
	Position         int        `json:"position"`
	AncestorRevision string     `json:"ancestor_revision"`
}
