package services

import (
	"github.com/ersonp/review-core/internal/domain/entities"
)

// FunctionState is the working set the category functions operate on: the
// change, the approvals of one patch set grouped by category, and the
// validity each function recorded.
type FunctionState struct {
	Change   *entities.Change
	PatchSet entities.PatchSetID

	categories []entities.ApprovalCategory
	approvals  map[string][]*entities.PatchSetApproval
	valid      map[string]bool

	// Permission ranges of the acting user, by category.
	actor  entities.User
	ranges map[string]entities.PermissionRange
}

// NewFunctionState builds the state for a patch set. Every vote is clamped
// into its category's range; the acting user's votes are also clamped into
// the user's permitted range.
func NewFunctionState(
	change *entities.Change,
	patchSet entities.PatchSetID,
	categories []entities.ApprovalCategory,
	approvals []entities.PatchSetApproval,
	actor entities.User,
	ranges map[string]entities.PermissionRange,
) *FunctionState {
	s := &FunctionState{
		Change:     change,
		PatchSet:   patchSet,
		categories: categories,
		approvals:  make(map[string][]*entities.PatchSetApproval),
		valid:      make(map[string]bool),
		actor:      actor,
		ranges:     ranges,
	}

	byID := make(map[string]*entities.ApprovalCategory, len(categories))
	for i := range categories {
		byID[categories[i].ID] = &categories[i]
	}

	for i := range approvals {
		a := approvals[i]
		cat, ok := byID[a.Key.Category]
		if !ok {
			continue
		}
		s.Normalize(cat, &a)
		s.approvals[cat.ID] = append(s.approvals[cat.ID], &a)
	}

	return s
}

// Categories returns the non-action categories, the ones that gate submit.
func (s *FunctionState) Categories() []entities.ApprovalCategory {
	result := make([]entities.ApprovalCategory, 0, len(s.categories))
	for _, c := range s.categories {
		if !c.IsAction() {
			result = append(result, c)
		}
	}
	return result
}

// AllCategories returns every known category, action categories included.
func (s *FunctionState) AllCategories() []entities.ApprovalCategory {
	return s.categories
}

// Approvals returns the normalized votes in a category.
func (s *FunctionState) Approvals(categoryID string) []*entities.PatchSetApproval {
	return s.approvals[categoryID]
}

// SetValid records the outcome of a category function.
func (s *FunctionState) SetValid(categoryID string, valid bool) {
	s.valid[categoryID] = valid
}

// IsValid reports the recorded validity of a category. A category no
// function has decided on is valid.
func (s *FunctionState) IsValid(categoryID string) bool {
	v, ok := s.valid[categoryID]
	return !ok || v
}

// RangeFor returns the permitted range of user in a category. Only the
// acting user's ranges are known; anyone else gets the empty range.
func (s *FunctionState) RangeFor(user entities.User, categoryID string) entities.PermissionRange {
	if user.Name != s.actor.Name {
		return entities.PermissionRange{}
	}
	return s.ranges[categoryID]
}

// Normalize clamps a vote into its category range and, for the acting
// user, into the user's permitted range.
func (s *FunctionState) Normalize(cat *entities.ApprovalCategory, a *entities.PatchSetApproval) {
	a.Value = cat.Clamp(a.Value)
	if a.Key.User == s.actor.Name {
		a.Value = s.RangeFor(s.actor, cat.ID).Clamp(a.Value)
	}
}
