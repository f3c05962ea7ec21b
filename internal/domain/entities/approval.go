package entities

import "time"

// Built-in approval category identifiers.
const (
	CodeReviewCategory = "CRVW"
	VerifiedCategory   = "VRIF"
	SubmitCategory     = "SUBM"
)

// Function names understood by the category function registry.
const (
	FunctionMaxWithBlock = "MaxWithBlock"
	FunctionMaxNoBlock   = "MaxNoBlock"
	FunctionNoBlock      = "NoBlock"
	FunctionNoOp         = "NoOp"
	FunctionSubmit       = "Submit"
)

// ApprovalCategory describes a kind of vote (Code Review, Verified, Submit).
// Categories with a negative Position are action categories: a vote in them
// asks the server to do something instead of expressing an opinion.
type ApprovalCategory struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
	Function string `json:"function"`
	MinValue int16  `json:"min_value"`
	MaxValue int16  `json:"max_value"`
}

// IsAction reports whether the category is an action category.
func (c *ApprovalCategory) IsAction() bool {
	return c.Position < 0
}

// Clamp limits v to the category's value range.
func (c *ApprovalCategory) Clamp(v int16) int16 {
	if v < c.MinValue {
		return c.MinValue
	}
	if v > c.MaxValue {
		return c.MaxValue
	}
	return v
}

// DefaultApprovalCategories are seeded into a fresh database.
var DefaultApprovalCategories = []ApprovalCategory{
	{
		ID:       CodeReviewCategory,
		Name:     "Code Review",
		Position: 1,
		Function: FunctionMaxWithBlock,
		MinValue: -2,
		MaxValue: 2,
	},
	{
		ID:       VerifiedCategory,
		Name:     "Verified",
		Position: 0,
		Function: FunctionMaxWithBlock,
		MinValue: -1,
		MaxValue: 1,
	},
	{
		ID:       SubmitCategory,
		Name:     "Submit",
		Position: -1,
		Function: FunctionSubmit,
		MinValue: 0,
		MaxValue: 1,
	},
}

// ApprovalKey identifies a vote: one per (patch set, user, category).
type ApprovalKey struct {
	PatchSet PatchSetID `json:"patch_set"`
	User     string     `json:"user"`
	Category string     `json:"category"`
}

// PatchSetApproval is a vote cast by a user on a patch set.
type PatchSetApproval struct {
	Key     ApprovalKey `json:"key"`
	Value   int16       `json:"value"`
	Granted time.Time   `json:"granted"`
}
