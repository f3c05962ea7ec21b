package services

import "errors"

var (
	// ErrChangeNotFound is returned when a referenced change does not exist.
	ErrChangeNotFound = errors.New("change not found")

	// ErrPatchSetNotFound is returned when a referenced patch set does not exist.
	ErrPatchSetNotFound = errors.New("patch set not found")

	// ErrIllegalState marks a request the change's current state does not allow:
	// a stale patch set, a closed change, or a vote the category functions reject.
	ErrIllegalState = errors.New("illegal state")

	// ErrNotActionCategory is a configuration error: the submit category is
	// missing or is not an action category.
	ErrNotActionCategory = errors.New("submit category is not an action category")

	// ErrCascadeCycle is recorded when a merge cascade revisits a change.
	ErrCascadeCycle = errors.New("dependency cycle in merge cascade")
)
