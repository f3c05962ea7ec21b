package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ersonp/review-core/internal/domain/entities"
)

func votes(category string, values map[string]int16) []entities.PatchSetApproval {
	ps := entities.PatchSetID{ChangeID: 1, PatchSet: 1}
	result := make([]entities.PatchSetApproval, 0, len(values))
	for user, v := range values {
		result = append(result, entities.PatchSetApproval{
			Key:     entities.ApprovalKey{PatchSet: ps, User: user, Category: category},
			Value:   v,
			Granted: time.Now(),
		})
	}
	return result
}

func newState(status entities.ChangeStatus, approvals []entities.PatchSetApproval) *FunctionState {
	change := &entities.Change{ID: 1, Dest: master, Status: status, CurrentPatchSet: 1}
	ranges := map[string]entities.PermissionRange{
		entities.SubmitCategory:     {Min: 0, Max: 1},
		entities.CodeReviewCategory: {Min: -1, Max: 1},
	}
	categories := append([]entities.ApprovalCategory(nil), entities.DefaultApprovalCategories...)
	return NewFunctionState(change, change.CurrentPatchSetID(), categories, approvals, entities.User{Name: submitter}, ranges)
}

func TestCategoryFunctions_Run(t *testing.T) {
	crvw := entities.DefaultApprovalCategories[0]

	tests := []struct {
		name     string
		fn       CategoryFunction
		votes    map[string]int16
		expected bool
	}{
		{name: "max with block: max", fn: MaxWithBlockFunction{}, votes: map[string]int16{"rita": 2}, expected: true},
		{name: "max with block: max and block", fn: MaxWithBlockFunction{}, votes: map[string]int16{"rita": 2, "bob": -2}, expected: false},
		{name: "max with block: only +1", fn: MaxWithBlockFunction{}, votes: map[string]int16{"rita": 1}, expected: false},
		{name: "max with block: no votes", fn: MaxWithBlockFunction{}, votes: nil, expected: false},
		{name: "max no block: max and block", fn: MaxNoBlockFunction{}, votes: map[string]int16{"rita": 2, "bob": -2}, expected: true},
		{name: "max no block: no max", fn: MaxNoBlockFunction{}, votes: map[string]int16{"rita": 1}, expected: false},
		{name: "no block", fn: NoBlockFunction{}, votes: map[string]int16{"bob": -2}, expected: true},
		{name: "no op keeps default", fn: NoOpFunction{}, votes: map[string]int16{"bob": -2}, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := newState(entities.StatusNew, votes(crvw.ID, tt.votes))
			tt.fn.Run(&crvw, state)
			assert.Equal(t, tt.expected, state.IsValid(crvw.ID))
		})
	}
}

func TestFunctionState_ClampsVotes(t *testing.T) {
	state := newState(entities.StatusNew, votes(entities.CodeReviewCategory, map[string]int16{
		"rita":    5,
		submitter: 2,
	}))

	got := map[string]int16{}
	for _, a := range state.Approvals(entities.CodeReviewCategory) {
		got[a.Key.User] = a.Value
	}

	// Category range for everyone; the actor is also held to the user's range.
	assert.Equal(t, int16(2), got["rita"])
	assert.Equal(t, int16(1), got[submitter])
}

func TestFunctionState_Categories(t *testing.T) {
	state := newState(entities.StatusNew, nil)

	ids := []string{}
	for _, c := range state.Categories() {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{entities.CodeReviewCategory, entities.VerifiedCategory}, ids)
	assert.Len(t, state.AllCategories(), 3)
}

func TestSubmitFunction(t *testing.T) {
	subm := entities.DefaultApprovalCategories[2]
	actor := entities.User{Name: submitter}

	t.Run("open change with satisfied categories", func(t *testing.T) {
		state := newState(entities.StatusNew, nil)
		SubmitFunction{}.Run(&subm, state)
		assert.True(t, state.IsValid(subm.ID))
		assert.True(t, SubmitFunction{}.IsValid(actor, &subm, state))
	})

	t.Run("unsatisfied category", func(t *testing.T) {
		state := newState(entities.StatusSubmitted, nil)
		state.SetValid(entities.VerifiedCategory, false)
		SubmitFunction{}.Run(&subm, state)
		assert.False(t, state.IsValid(subm.ID))
	})

	t.Run("merged change", func(t *testing.T) {
		state := newState(entities.StatusMerged, nil)
		assert.False(t, SubmitFunction{}.IsValid(actor, &subm, state))
	})

	t.Run("other user has no known range", func(t *testing.T) {
		state := newState(entities.StatusNew, nil)
		assert.False(t, SubmitFunction{}.IsValid(entities.User{Name: "mallory"}, &subm, state))
	})
}

func TestFunctionRegistry_ForCategory(t *testing.T) {
	registry := NewDefaultFunctionRegistry()

	cat := entities.ApprovalCategory{ID: "X", Function: entities.FunctionSubmit}
	assert.IsType(t, SubmitFunction{}, registry.ForCategory(&cat))

	cat.Function = "Unknown"
	assert.IsType(t, NoOpFunction{}, registry.ForCategory(&cat))

	assert.ElementsMatch(t, []string{
		entities.FunctionMaxWithBlock,
		entities.FunctionMaxNoBlock,
		entities.FunctionNoBlock,
		entities.FunctionNoOp,
		entities.FunctionSubmit,
	}, registry.Names())
}
