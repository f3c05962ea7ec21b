package handlers

import (
	"context"
	"fmt"

	"github.com/ersonp/review-core/internal/domain/entities"
	"github.com/ersonp/review-core/internal/domain/ports"
)

// MergeHandler runs the merge queue for a branch by hand.
type MergeHandler struct {
	store ports.ChangeStore
	queue ports.MergeQueue
}

// NewMergeHandler creates a new MergeHandler.
func NewMergeHandler(store ports.ChangeStore, queue ports.MergeQueue) *MergeHandler {
	return &MergeHandler{
		store: store,
		queue: queue,
	}
}

// MergeResult lists what a merge run did to the submitted changes.
type MergeResult struct {
	Branch  entities.Branch `json:"branch"`
	Merged  []int           `json:"merged"`
	Waiting []int           `json:"waiting"`
}

// Handle merges every mergeable submitted change on project's branch.
func (h *MergeHandler) Handle(ctx context.Context, project, branch string) (*MergeResult, error) {
	dest := entities.NewBranch(project, branch)

	before, err := h.store.ListChangesByStatus(ctx, dest, entities.StatusSubmitted)
	if err != nil {
		return nil, fmt.Errorf("listing submitted changes: %w", err)
	}

	if err := h.queue.Merge(ctx, dest); err != nil {
		return nil, fmt.Errorf("merging %s: %w", dest, err)
	}

	result := &MergeResult{Branch: dest, Merged: []int{}, Waiting: []int{}}
	for i := range before {
		c, err := h.store.GetChange(ctx, before[i].ID)
		if err != nil {
			return nil, fmt.Errorf("reloading change %d: %w", before[i].ID, err)
		}
		if c != nil && c.Status == entities.StatusMerged {
			result.Merged = append(result.Merged, c.ID)
		} else {
			result.Waiting = append(result.Waiting, before[i].ID)
		}
	}
	return result, nil
}
