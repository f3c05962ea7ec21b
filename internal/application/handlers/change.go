// Package handlers contains application use case handlers.
package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ersonp/review-core/internal/domain/entities"
	"github.com/ersonp/review-core/internal/domain/ports"
	"github.com/ersonp/review-core/internal/domain/services"
)

// resolveChange finds a change by number or by Change-Id.
func resolveChange(ctx context.Context, store ports.ChangeStore, ref string) (*entities.Change, error) {
	ref = strings.TrimSpace(ref)
	if id, err := strconv.Atoi(ref); err == nil {
		change, err := store.GetChange(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading change %d: %w", id, err)
		}
		if change == nil {
			return nil, fmt.Errorf("%w: %d", services.ErrChangeNotFound, id)
		}
		return change, nil
	}

	if !strings.HasPrefix(ref, "I") {
		return nil, fmt.Errorf("invalid change reference %q (expected a number or a Change-Id)", ref)
	}
	changes, err := store.ChangesByKey(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("looking up %s: %w", ref, err)
	}
	switch len(changes) {
	case 0:
		return nil, fmt.Errorf("%w: %s", services.ErrChangeNotFound, ref)
	case 1:
		return &changes[0], nil
	}

	ids := make([]string, 0, len(changes))
	for i := range changes {
		ids = append(ids, strconv.Itoa(changes[i].ID))
	}
	return nil, fmt.Errorf("change id %s is ambiguous, use a number (%s)", ref, strings.Join(ids, ", "))
}

// ChangeHandler shows and lists changes.
type ChangeHandler struct {
	store ports.ChangeStore
	deps  *services.DependencyService
}

// NewChangeHandler creates a new ChangeHandler.
func NewChangeHandler(store ports.ChangeStore, deps *services.DependencyService) *ChangeHandler {
	return &ChangeHandler{
		store: store,
		deps:  deps,
	}
}

// ChangeDetail is everything "show" prints about a change.
type ChangeDetail struct {
	Change    entities.Change             `json:"change"`
	PatchSets []entities.PatchSet         `json:"patch_sets"`
	Approvals []entities.PatchSetApproval `json:"approvals"`
	DependsOn []entities.Change           `json:"depends_on"`
	NeededBy  []entities.Change           `json:"needed_by"`
	History   []entities.AuditEntry       `json:"history,omitempty"`
}

// HandleShow loads a change with its patch sets, current votes and neighbours.
func (h *ChangeHandler) HandleShow(ctx context.Context, ref string) (*ChangeDetail, error) {
	change, err := resolveChange(ctx, h.store, ref)
	if err != nil {
		return nil, err
	}

	patchSets, err := h.store.ListPatchSets(ctx, change.ID)
	if err != nil {
		return nil, fmt.Errorf("listing patch sets: %w", err)
	}
	approvals, err := h.store.ListApprovals(ctx, change.CurrentPatchSetID())
	if err != nil {
		return nil, fmt.Errorf("listing approvals: %w", err)
	}
	dependsOn, err := h.deps.DependsOn(ctx, change)
	if err != nil {
		return nil, err
	}
	neededBy, err := h.deps.NeededBy(ctx, change)
	if err != nil {
		return nil, err
	}
	history, err := h.store.FindAuditLog(ctx, change.ID)
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}

	return &ChangeDetail{
		Change:    *change,
		PatchSets: patchSets,
		Approvals: approvals,
		DependsOn: dependsOn,
		NeededBy:  neededBy,
		History:   history,
	}, nil
}

// ListOptions configures change listing.
type ListOptions struct {
	Status string // Status name or code (empty = all)
	Limit  int
	Offset int
}

// HandleList lists changes, newest first.
func (h *ChangeHandler) HandleList(ctx context.Context, opts ListOptions) ([]entities.Change, error) {
	var status entities.ChangeStatus
	if opts.Status != "" {
		var err error
		if status, err = entities.ParseChangeStatus(opts.Status); err != nil {
			return nil, err
		}
	}

	changes, err := h.store.ListChanges(ctx, status, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("listing changes: %w", err)
	}
	return changes, nil
}
