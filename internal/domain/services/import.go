package services

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/ersonp/review-core/internal/domain/entities"
	"github.com/ersonp/review-core/internal/domain/ports"
	"github.com/ersonp/review-core/internal/infrastructure/parsers"
)

// ConflictStrategy defines how to handle existing changes during import.
type ConflictStrategy string

const (
	// ConflictSkip skips changes that already exist (by number).
	ConflictSkip ConflictStrategy = "skip"
	// ConflictOverwrite overwrites existing changes with new data.
	ConflictOverwrite ConflictStrategy = "overwrite"
)

// ImportOptions controls import behavior.
type ImportOptions struct {
	DryRun     bool             // Validate without saving
	OnConflict ConflictStrategy // How to handle existing changes
}

// ImportError represents an error for a specific record during import.
type ImportError struct {
	Line    int    // Line number (1-indexed, 0 if unknown)
	Field   string // Which field has the error
	Value   string // The invalid value
	Message string // Human-readable error message
}

func (e ImportError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// ImportResult contains the result of an import operation.
type ImportResult struct {
	Imported int
	Skipped  int
	Errors   []ImportError
}

// ImportService loads changes, patch sets, ancestry, rights and votes from
// fixture records.
type ImportService struct {
	store ports.ChangeStore
	now   func() time.Time
}

// NewImportService creates a new import service.
func NewImportService(store ports.ChangeStore) *ImportService {
	return &ImportService{store: store, now: time.Now}
}

// Import validates and imports raw records into the store.
func (s *ImportService) Import(ctx context.Context, records []parsers.RawRecord, opts ImportOptions) (*ImportResult, error) {
	result := &ImportResult{}

	valid, validationErrors := s.validateRecords(records)
	result.Errors = validationErrors

	if len(valid) == 0 {
		return result, nil
	}

	if opts.DryRun {
		result.Imported = len(valid)
		return result, nil
	}

	sort.SliceStable(valid, func(i, j int) bool {
		return slices.Index(parsers.Kinds, valid[i].Kind) < slices.Index(parsers.Kinds, valid[j].Kind)
	})

	ancestors := make(map[entities.PatchSetID][]entities.PatchSetAncestor)
	for i := range valid {
		raw := &valid[i]

		applied, importErr, err := s.apply(ctx, raw, opts.OnConflict, ancestors)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", raw.LineNum, err)
		}
		switch {
		case importErr != nil:
			result.Errors = append(result.Errors, *importErr)
		case applied:
			result.Imported++
		default:
			result.Skipped++
		}
	}

	for psID, edges := range ancestors {
		if err := s.store.SaveAncestors(ctx, psID, edges); err != nil {
			return nil, fmt.Errorf("saving ancestors of %s: %w", psID, err)
		}
	}

	return result, nil
}

// validateRecords validates raw records and returns valid ones with any errors.
func (s *ImportService) validateRecords(records []parsers.RawRecord) ([]parsers.RawRecord, []ImportError) {
	valid := make([]parsers.RawRecord, 0, len(records))
	var errors []ImportError

	for i := range records {
		raw := records[i]
		if raw.LineNum == 0 {
			raw.LineNum = i + 1
		}

		if err := validateRawRecord(&raw); err != nil {
			errors = append(errors, *err)
			continue
		}

		valid = append(valid, raw)
	}

	return valid, errors
}

func missing(raw *parsers.RawRecord, field string) *ImportError {
	return &ImportError{Line: raw.LineNum, Field: field, Message: "missing required field: " + field}
}

// validateRawRecord checks the fields a record's kind needs.
func validateRawRecord(raw *parsers.RawRecord) *ImportError {
	switch raw.Kind {
	case parsers.KindChange:
		if raw.Change <= 0 {
			return missing(raw, "change")
		}
		if raw.Project == "" {
			return missing(raw, "project")
		}
		if raw.Branch == "" {
			return missing(raw, "branch")
		}
		if raw.Status != "" {
			if _, err := entities.ParseChangeStatus(raw.Status); err != nil {
				return &ImportError{Line: raw.LineNum, Field: "status", Value: raw.Status, Message: err.Error()}
			}
		}
	case parsers.KindPatchSet:
		if raw.Change <= 0 {
			return missing(raw, "change")
		}
		if raw.PatchSet <= 0 {
			return missing(raw, "patch_set")
		}
		if raw.Revision == "" {
			return missing(raw, "revision")
		}
	case parsers.KindAncestor:
		if raw.Change <= 0 {
			return missing(raw, "change")
		}
		if raw.PatchSet <= 0 {
			return missing(raw, "patch_set")
		}
		if raw.Parent == "" {
			return missing(raw, "parent")
		}
	case parsers.KindRight:
		if raw.Category == "" {
			return missing(raw, "category")
		}
		if raw.Group == "" {
			return missing(raw, "group")
		}
		if raw.Min > raw.Max {
			return &ImportError{
				Line:    raw.LineNum,
				Field:   "min",
				Value:   fmt.Sprintf("%d", raw.Min),
				Message: fmt.Sprintf("min %d is above max %d", raw.Min, raw.Max),
			}
		}
	case parsers.KindApproval:
		if raw.Change <= 0 {
			return missing(raw, "change")
		}
		if raw.PatchSet <= 0 {
			return missing(raw, "patch_set")
		}
		if raw.User == "" {
			return missing(raw, "user")
		}
		if raw.Category == "" {
			return missing(raw, "category")
		}
	case "":
		return missing(raw, "kind")
	default:
		return &ImportError{
			Line:    raw.LineNum,
			Field:   "kind",
			Value:   raw.Kind,
			Message: fmt.Sprintf("invalid kind %q (valid: change, patch_set, ancestor, right, approval)", raw.Kind),
		}
	}
	return nil
}

// apply writes one record. It reports whether the record was written, or a
// per-record problem; the error return is reserved for store failures.
func (s *ImportService) apply(
	ctx context.Context,
	raw *parsers.RawRecord,
	onConflict ConflictStrategy,
	ancestors map[entities.PatchSetID][]entities.PatchSetAncestor,
) (bool, *ImportError, error) {
	now := s.now()

	switch raw.Kind {
	case parsers.KindRight:
		project := raw.Project
		if project == "" {
			project = entities.AllProjects
		}
		right := &entities.AccessRight{
			Project:  project,
			Category: raw.Category,
			Group:    raw.Group,
			MinValue: raw.Min,
			MaxValue: raw.Max,
		}
		return true, nil, s.store.SaveAccessRight(ctx, right)

	case parsers.KindChange:
		existing, err := s.store.GetChange(ctx, raw.Change)
		if err != nil {
			return false, nil, err
		}
		if existing != nil && onConflict == ConflictSkip {
			return false, nil, nil
		}
		return true, nil, s.store.SaveChange(ctx, changeFromRecord(raw, existing, now))

	case parsers.KindPatchSet:
		if ie, err := s.requireChange(ctx, raw); ie != nil || err != nil {
			return false, ie, err
		}
		ps := &entities.PatchSet{
			ID:        entities.PatchSetID{ChangeID: raw.Change, PatchSet: raw.PatchSet},
			Revision:  raw.Revision,
			Uploader:  raw.User,
			CreatedOn: now,
		}
		return true, nil, s.store.SavePatchSet(ctx, ps)

	case parsers.KindAncestor:
		psID := entities.PatchSetID{ChangeID: raw.Change, PatchSet: raw.PatchSet}
		ps, err := s.store.GetPatchSet(ctx, psID)
		if err != nil {
			return false, nil, err
		}
		if ps == nil {
			return false, &ImportError{Line: raw.LineNum, Field: "patch_set", Value: psID.String(), Message: "unknown patch set " + psID.String()}, nil
		}
		position := raw.Position
		if position == 0 {
			position = len(ancestors[psID]) + 1
		}
		ancestors[psID] = append(ancestors[psID], entities.PatchSetAncestor{
			PatchSet:         psID,
			Position:         position,
			AncestorRevision: raw.Parent,
		})
		return true, nil, nil

	case parsers.KindApproval:
		if ie, err := s.requireChange(ctx, raw); ie != nil || err != nil {
			return false, ie, err
		}
		approval := entities.PatchSetApproval{
			Key: entities.ApprovalKey{
				PatchSet: entities.PatchSetID{ChangeID: raw.Change, PatchSet: raw.PatchSet},
				User:     raw.User,
				Category: raw.Category,
			},
			Value:   raw.Value,
			Granted: now,
		}
		return true, nil, s.store.UpsertApprovals(ctx, []entities.PatchSetApproval{approval})
	}

	return false, nil, nil
}

func (s *ImportService) requireChange(ctx context.Context, raw *parsers.RawRecord) (*ImportError, error) {
	c, err := s.store.GetChange(ctx, raw.Change)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return &ImportError{
			Line:    raw.LineNum,
			Field:   "change",
			Value:   fmt.Sprintf("%d", raw.Change),
			Message: fmt.Sprintf("unknown change %d", raw.Change),
		}, nil
	}
	return nil, nil
}

// changeFromRecord builds a change, keeping the creation time of an existing one.
func changeFromRecord(raw *parsers.RawRecord, existing *entities.Change, now time.Time) *entities.Change {
	status := entities.StatusNew
	if raw.Status != "" {
		status, _ = entities.ParseChangeStatus(raw.Status)
	}
	key := raw.Key
	if key == "" {
		key = fmt.Sprintf("I%040x", raw.Change)
	}
	current := raw.PatchSet
	if current == 0 {
		current = 1
	}

	change := &entities.Change{
		ID:              raw.Change,
		Key:             key,
		Dest:            entities.NewBranch(raw.Project, raw.Branch),
		Owner:           raw.Owner,
		Subject:         raw.Subject,
		Status:          status,
		CurrentPatchSet: current,
		CreatedOn:       now,
		LastUpdatedOn:   now,
	}
	if existing != nil {
		change.CreatedOn = existing.CreatedOn
		change.RowVersion = existing.RowVersion
	}
	return change
}
