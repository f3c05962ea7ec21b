package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/ersonp/review-core/internal/domain/entities"
	"github.com/ersonp/review-core/internal/domain/ports"
	"github.com/ersonp/review-core/internal/domain/services"
)

// SubmitHandler submits changes named on the command line.
type SubmitHandler struct {
	store   ports.ChangeStore
	service *services.SubmitService
}

// NewSubmitHandler creates a new SubmitHandler.
func NewSubmitHandler(store ports.ChangeStore, service *services.SubmitService) *SubmitHandler {
	return &SubmitHandler{
		store:   store,
		service: service,
	}
}

// SubmitOptions configures a submit.
type SubmitOptions struct {
	PatchSet int // 0 selects the current patch set
	User     string
	Groups   []string
}

// SubmitError reports a submit that did not go through.
type SubmitError struct {
	ChangeID int
	Outcome  services.Outcome
	Reason   string
	Err      error
}

func (e *SubmitError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("submit of change %d failed: %v", e.ChangeID, e.Err)
	}
	return fmt.Sprintf("submit of change %d %s: %s", e.ChangeID, e.Outcome, e.Reason)
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

// Handle submits the change ref names. A result that is not Ok comes back
// as a *SubmitError.
func (h *SubmitHandler) Handle(ctx context.Context, ref string, opts SubmitOptions) (*services.SubmitResult, error) {
	if opts.User == "" {
		return nil, errors.New("user is required")
	}

	change, err := resolveChange(ctx, h.store, ref)
	if err != nil {
		return nil, err
	}

	psID := change.CurrentPatchSetID()
	if opts.PatchSet > 0 {
		psID.PatchSet = opts.PatchSet
	}

	result, err := h.service.Submit(ctx, services.SubmitRequest{
		PatchSet: psID,
		User:     entities.User{Name: opts.User, Groups: opts.Groups},
	})
	if err != nil {
		return nil, err
	}
	if !result.IsOk() {
		return result, &SubmitError{
			ChangeID: change.ID,
			Outcome:  result.Outcome,
			Reason:   result.Reason,
			Err:      result.Err,
		}
	}
	return result, nil
}
