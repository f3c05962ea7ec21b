package services

import (
	"context"
	"fmt"
	"time"

	"github.com/ersonp/review-core/internal/domain/entities"
	"github.com/ersonp/review-core/internal/domain/ports"
)

// ApprovalNormalizer records a user's submit vote after running every
// category function over the patch set's approvals.
type ApprovalNormalizer struct {
	store          ports.ChangeStore
	permissions    ports.PermissionChecker
	registry       *FunctionRegistry
	submitCategory string
	now            func() time.Time
}

// NewApprovalNormalizer creates a new ApprovalNormalizer. An empty
// submitCategory selects entities.SubmitCategory.
func NewApprovalNormalizer(
	store ports.ChangeStore,
	permissions ports.PermissionChecker,
	registry *FunctionRegistry,
	submitCategory string,
) *ApprovalNormalizer {
	if submitCategory == "" {
		submitCategory = entities.SubmitCategory
	}
	return &ApprovalNormalizer{
		store:          store,
		permissions:    permissions,
		registry:       registry,
		submitCategory: submitCategory,
		now:            time.Now,
	}
}

// NormalizeSubmit validates user's submit vote on patchSet and persists it.
//
// The returned error wraps ErrNotActionCategory when the submit category is
// misconfigured, and ErrIllegalState when the functions reject the vote; in
// both cases nothing is written. Any other error comes from the store.
func (n *ApprovalNormalizer) NormalizeSubmit(
	ctx context.Context,
	change *entities.Change,
	patchSet entities.PatchSetID,
	user entities.User,
) (*entities.PatchSetApproval, error) {
	categories, err := n.store.ListApprovalCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing approval categories: %w", err)
	}

	var submitCat *entities.ApprovalCategory
	for i := range categories {
		if categories[i].ID == n.submitCategory {
			submitCat = &categories[i]
			break
		}
	}
	if submitCat == nil || !submitCat.IsAction() {
		return nil, fmt.Errorf("%w: %s", ErrNotActionCategory, n.submitCategory)
	}

	approvals, err := n.store.ListApprovals(ctx, patchSet)
	if err != nil {
		return nil, fmt.Errorf("listing approvals on %s: %w", patchSet, err)
	}

	ranges := make(map[string]entities.PermissionRange, len(categories))
	for _, cat := range categories {
		r, err := n.permissions.Range(ctx, user, change.Project(), cat.ID)
		if err != nil {
			return nil, fmt.Errorf("resolving %s permission for %s: %w", cat.ID, user.Name, err)
		}
		ranges[cat.ID] = r
	}

	myAction := entities.PatchSetApproval{
		Key: entities.ApprovalKey{
			PatchSet: patchSet,
			User:     user.Name,
			Category: submitCat.ID,
		},
		Value:   1,
		Granted: n.now(),
	}
	approvals = withApproval(approvals, myAction)

	state := NewFunctionState(change, patchSet, categories, approvals, user, ranges)
	for i := range categories {
		n.registry.ForCategory(&categories[i]).Run(&categories[i], state)
	}

	if !n.registry.ForCategory(submitCat).IsValid(user, submitCat, state) {
		return nil, fmt.Errorf("%w: %s", ErrIllegalState, rejectionReason(user, submitCat, state))
	}

	state.Normalize(submitCat, &myAction)
	if myAction.Value <= 0 {
		return nil, fmt.Errorf("%w: %s may not submit change %d", ErrIllegalState, user.Name, change.ID)
	}

	if err := n.store.UpsertApprovals(ctx, []entities.PatchSetApproval{myAction}); err != nil {
		return nil, fmt.Errorf("saving submit approval: %w", err)
	}

	return &myAction, nil
}

// withApproval replaces the vote with the same key or appends it.
func withApproval(approvals []entities.PatchSetApproval, a entities.PatchSetApproval) []entities.PatchSetApproval {
	for i := range approvals {
		if approvals[i].Key == a.Key {
			approvals[i] = a
			return approvals
		}
	}
	return append(approvals, a)
}

// rejectionReason explains why the submit function said no.
func rejectionReason(user entities.User, submitCat *entities.ApprovalCategory, state *FunctionState) string {
	switch state.Change.Status {
	case entities.StatusNew, entities.StatusSubmitted:
	default:
		return fmt.Sprintf("change %d is %s", state.Change.ID, state.Change.Status)
	}
	for _, cat := range state.Categories() {
		if !state.IsValid(cat.ID) {
			return fmt.Sprintf("change %d needs %s", state.Change.ID, cat.Name)
		}
	}
	if state.RangeFor(user, submitCat.ID).Max <= 0 {
		return fmt.Sprintf("%s is not permitted to %s", user.Name, submitCat.Name)
	}
	return fmt.Sprintf("%s rejected", submitCat.Name)
}
