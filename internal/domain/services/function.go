package services

import (
	"github.com/ersonp/review-core/internal/domain/entities"
)

// CategoryFunction decides whether the votes in a category satisfy it.
type CategoryFunction interface {
	// Run inspects the normalized votes of cat and records the category's
	// validity in state.
	Run(cat *entities.ApprovalCategory, state *FunctionState)

	// IsValid reports whether user may cast a vote in cat given state.
	IsValid(user entities.User, cat *entities.ApprovalCategory, state *FunctionState) bool
}

// FunctionRegistry maps category function names to implementations.
// Build it once at startup and pass it to whatever needs it.
type FunctionRegistry struct {
	functions map[string]CategoryFunction
	fallback  CategoryFunction
}

// NewFunctionRegistry creates an empty registry whose unknown names resolve to NoOp.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{
		functions: make(map[string]CategoryFunction),
		fallback:  NoOpFunction{},
	}
}

// NewDefaultFunctionRegistry creates a registry holding the built-in functions.
func NewDefaultFunctionRegistry() *FunctionRegistry {
	r := NewFunctionRegistry()
	r.Register(entities.FunctionMaxWithBlock, MaxWithBlockFunction{})
	r.Register(entities.FunctionMaxNoBlock, MaxNoBlockFunction{})
	r.Register(entities.FunctionNoBlock, NoBlockFunction{})
	r.Register(entities.FunctionNoOp, NoOpFunction{})
	r.Register(entities.FunctionSubmit, SubmitFunction{})
	return r
}

// Register adds or replaces a function under name.
func (r *FunctionRegistry) Register(name string, fn CategoryFunction) {
	r.functions[name] = fn
}

// ForCategory returns the function configured for cat.
func (r *FunctionRegistry) ForCategory(cat *entities.ApprovalCategory) CategoryFunction {
	if fn, ok := r.functions[cat.Function]; ok {
		return fn
	}
	return r.fallback
}

// Names returns the registered function names.
func (r *FunctionRegistry) Names() []string {
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	return names
}

// hasPositiveRight is the default IsValid: the user holds some right to vote
// above zero in the category.
func hasPositiveRight(user entities.User, cat *entities.ApprovalCategory, state *FunctionState) bool {
	return state.RangeFor(user, cat.ID).Max > 0
}

// MaxWithBlockFunction requires a maximum vote and no minimum (blocking) vote.
type MaxWithBlockFunction struct{}

func (MaxWithBlockFunction) Run(cat *entities.ApprovalCategory, state *FunctionState) {
	haveMax, blocked := scanExtremes(cat, state)
	state.SetValid(cat.ID, haveMax && !blocked)
}

func (MaxWithBlockFunction) IsValid(user entities.User, cat *entities.ApprovalCategory, state *FunctionState) bool {
	return hasPositiveRight(user, cat, state)
}

// MaxNoBlockFunction requires a maximum vote; minimum votes do not block.
type MaxNoBlockFunction struct{}

func (MaxNoBlockFunction) Run(cat *entities.ApprovalCategory, state *FunctionState) {
	haveMax, _ := scanExtremes(cat, state)
	state.SetValid(cat.ID, haveMax)
}

func (MaxNoBlockFunction) IsValid(user entities.User, cat *entities.ApprovalCategory, state *FunctionState) bool {
	return hasPositiveRight(user, cat, state)
}

// NoBlockFunction is always satisfied.
type NoBlockFunction struct{}

func (NoBlockFunction) Run(cat *entities.ApprovalCategory, state *FunctionState) {
	state.SetValid(cat.ID, true)
}

func (NoBlockFunction) IsValid(user entities.User, cat *entities.ApprovalCategory, state *FunctionState) bool {
	return hasPositiveRight(user, cat, state)
}

// NoOpFunction makes no decision; the category keeps its default validity.
type NoOpFunction struct{}

func (NoOpFunction) Run(*entities.ApprovalCategory, *FunctionState) {}

func (NoOpFunction) IsValid(user entities.User, cat *entities.ApprovalCategory, state *FunctionState) bool {
	return hasPositiveRight(user, cat, state)
}

// SubmitFunction guards the submit action: the change must be open for
// submission and every non-action category must be satisfied.
type SubmitFunction struct{}

func (SubmitFunction) Run(cat *entities.ApprovalCategory, state *FunctionState) {
	state.SetValid(cat.ID, submittable(state))
}

func (SubmitFunction) IsValid(user entities.User, cat *entities.ApprovalCategory, state *FunctionState) bool {
	return submittable(state) && hasPositiveRight(user, cat, state)
}

func submittable(state *FunctionState) bool {
	switch state.Change.Status {
	case entities.StatusNew, entities.StatusSubmitted:
	default:
		return false
	}
	for _, cat := range state.Categories() {
		if !state.IsValid(cat.ID) {
			return false
		}
	}
	return true
}

// scanExtremes reports whether any vote in cat holds the category maximum
// and whether any holds the (negative) minimum.
func scanExtremes(cat *entities.ApprovalCategory, state *FunctionState) (haveMax, blocked bool) {
	for _, a := range state.Approvals(cat.ID) {
		if cat.MinValue < 0 && a.Value == cat.MinValue {
			blocked = true
		}
		if cat.MaxValue > 0 && a.Value == cat.MaxValue {
			haveMax = true
		}
	}
	return haveMax, blocked
}
