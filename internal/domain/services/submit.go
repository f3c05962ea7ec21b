package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	logging "github.com/op/go-logging"

	"github.com/ersonp/review-core/internal/domain/entities"
	"github.com/ersonp/review-core/internal/domain/ports"
)

var log = logging.MustGetLogger("services")

// Outcome is the kind of result a submit produced.
type Outcome int

const (
	// OutcomeOk means the submit vote was recorded.
	OutcomeOk Outcome = iota
	// OutcomeRejected means the change's state does not allow the submit.
	OutcomeRejected
	// OutcomeNotFound means the change or patch set does not exist.
	OutcomeNotFound
	// OutcomeFatal means the server is misconfigured.
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOk:
		return "ok"
	case OutcomeRejected:
		return "rejected"
	case OutcomeNotFound:
		return "not found"
	case OutcomeFatal:
		return "fatal"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// SubmitRequest asks to submit one patch set of a change.
type SubmitRequest struct {
	PatchSet entities.PatchSetID
	User     entities.User
}

// SubmitResult is the outcome of a submit.
type SubmitResult struct {
	Outcome Outcome
	// Reason explains a Rejected or NotFound outcome.
	Reason string
	// Err wraps ErrChangeNotFound or ErrPatchSetNotFound for a NotFound
	// outcome and is the configuration error behind a Fatal one.
	Err error

	// Change is the stored change after the submit and any cascade.
	Change   *entities.Change
	Approval *entities.PatchSetApproval
	Cascade  *CascadeReport
}

// IsOk reports whether the submit was accepted.
func (r *SubmitResult) IsOk() bool {
	return r.Outcome == OutcomeOk
}

// CascadeStep is one merge invocation made by a cascade.
type CascadeStep struct {
	ChangeID int             `json:"change_id"`
	Branch   entities.Branch `json:"branch"`
	Depth    int             `json:"depth"`
}

// CascadeReport describes what a cascade did.
type CascadeReport struct {
	ID    string        `json:"id"`
	Steps []CascadeStep `json:"steps"`
	// Cycles lists changes the cascade reached a second time.
	Cycles []int `json:"cycles,omitempty"`
}

// Merged reports whether the cascade invoked a merge for changeID.
func (r *CascadeReport) Merged(changeID int) bool {
	for _, s := range r.Steps {
		if s.ChangeID == changeID {
			return true
		}
	}
	return false
}

func rejected(format string, args ...any) *SubmitResult {
	return &SubmitResult{Outcome: OutcomeRejected, Reason: fmt.Sprintf(format, args...)}
}

func notFound(sentinel error, format string, args ...any) *SubmitResult {
	reason := fmt.Sprintf(format, args...)
	return &SubmitResult{Outcome: OutcomeNotFound, Reason: reason, Err: fmt.Errorf("%w: %s", sentinel, reason)}
}

// SubmitService records submit votes and cascades merges to dependents
// whose prerequisites become satisfied.
type SubmitService struct {
	store      ports.ChangeStore
	deps       *DependencyService
	normalizer *ApprovalNormalizer
	queue      ports.MergeQueue
	now        func() time.Time
}

// NewSubmitService creates a new SubmitService.
func NewSubmitService(
	store ports.ChangeStore,
	deps *DependencyService,
	normalizer *ApprovalNormalizer,
	queue ports.MergeQueue,
) *SubmitService {
	return &SubmitService{
		store:      store,
		deps:       deps,
		normalizer: normalizer,
		queue:      queue,
		now:        time.Now,
	}
}

// Submit records the user's submit vote on the patch set, moves the change
// to SUBMITTED, and merges it when nothing it depends on is still open.
//
// Business outcomes are reported in the result. The error is non-nil only
// when the store or the merge queue failed; work committed before the
// failure is not rolled back.
func (s *SubmitService) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	psID := req.PatchSet

	change, err := s.store.GetChange(ctx, psID.ChangeID)
	if err != nil {
		return nil, fmt.Errorf("loading change %d: %w", psID.ChangeID, err)
	}
	if change == nil {
		return notFound(ErrChangeNotFound, "change %d not found", psID.ChangeID), nil
	}

	if psID.PatchSet != change.CurrentPatchSet {
		return rejected("patch set %s is not current (current is %d)", psID, change.CurrentPatchSet), nil
	}
	if change.Status.IsClosed() {
		return rejected("change %d is closed (%s)", change.ID, change.Status), nil
	}
	if change.Status == entities.StatusDraft {
		return rejected("change %d is a draft", change.ID), nil
	}

	ps, err := s.store.GetPatchSet(ctx, psID)
	if err != nil {
		return nil, fmt.Errorf("loading patch set %s: %w", psID, err)
	}
	if ps == nil {
		return notFound(ErrPatchSetNotFound, "patch set %s not found", psID), nil
	}

	approval, err := s.normalizer.NormalizeSubmit(ctx, change, psID, req.User)
	switch {
	case errors.Is(err, ErrNotActionCategory):
		log.Errorf("submit of %s: %v", psID, err)
		return &SubmitResult{Outcome: OutcomeFatal, Err: err}, nil
	case errors.Is(err, ErrIllegalState):
		log.Infof("submit of %s by %s rejected: %v", psID, req.User.Name, err)
		return &SubmitResult{Outcome: OutcomeRejected, Reason: err.Error()}, nil
	case err != nil:
		return nil, err
	}

	updated, err := s.store.AtomicUpdateChange(ctx, change.ID, func(c *entities.Change) bool {
		if c.Status != entities.StatusNew || c.CurrentPatchSet != psID.PatchSet {
			return false
		}
		c.Status = entities.StatusSubmitted
		c.Touch(s.now())
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("marking change %d submitted: %w", change.ID, err)
	}
	if updated == nil {
		return notFound(ErrChangeNotFound, "change %d not found", change.ID), nil
	}

	report := &CascadeReport{ID: uuid.New().String(), Steps: []CascadeStep{}}
	log.Noticef("change %d submitted by %s (cascade %s)", change.ID, req.User.Name, report.ID)

	if err := s.store.LogAction(ctx, entities.ActionSubmit, change.ID, map[string]any{
		"patch_set":  psID.String(),
		"user":       req.User.Name,
		"cascade_id": report.ID,
	}); err != nil {
		return nil, fmt.Errorf("logging submit: %w", err)
	}

	if updated.Status == entities.StatusSubmitted {
		pending, err := s.deps.DependsOn(ctx, updated)
		if err != nil {
			return nil, err
		}
		if len(pending) == 0 {
			if err := s.mergeCascade(ctx, updated, make(map[int]cascadeMark), 0, report); err != nil {
				return nil, err
			}
		} else {
			log.Infof("change %d waits on %d open change(s)", change.ID, len(pending))
		}
	}

	final, err := s.store.GetChange(ctx, change.ID)
	if err != nil {
		return nil, fmt.Errorf("reloading change %d: %w", change.ID, err)
	}
	if final == nil {
		final = updated
	}

	return &SubmitResult{
		Outcome:  OutcomeOk,
		Change:   final,
		Approval: approval,
		Cascade:  report,
	}, nil
}

// MergeCascade merges change's branch and cascades to its dependents.
// It is the entry point for callers that already know change is ready.
func (s *SubmitService) MergeCascade(ctx context.Context, change *entities.Change) (*CascadeReport, error) {
	report := &CascadeReport{ID: uuid.New().String(), Steps: []CascadeStep{}}
	if err := s.mergeCascade(ctx, change, make(map[int]cascadeMark), 0, report); err != nil {
		return report, err
	}
	return report, nil
}

type cascadeMark int

const (
	markActive cascadeMark = iota + 1
	markDone
)

// mergeCascade merges the destination branch of change, then recurses into
// every dependent that is SUBMITTED and no longer waits on an open change.
// visited marks the changes this cascade has entered. Reaching a change that
// is still on the recursion path means the ancestry data has a cycle, which
// is logged and not followed.
func (s *SubmitService) mergeCascade(
	ctx context.Context,
	change *entities.Change,
	visited map[int]cascadeMark,
	depth int,
	report *CascadeReport,
) error {
	switch visited[change.ID] {
	case markDone:
		return nil
	case markActive:
		log.Warningf("cascade %s: change %d reached twice: %v", report.ID, change.ID, ErrCascadeCycle)
		report.Cycles = append(report.Cycles, change.ID)
		if err := s.store.LogAction(ctx, entities.ActionCascadeCycle, change.ID, map[string]any{
			"cascade_id": report.ID,
			"depth":      depth,
		}); err != nil {
			return fmt.Errorf("logging cascade cycle: %w", err)
		}
		return nil
	}
	visited[change.ID] = markActive

	neededBy, err := s.deps.NeededBy(ctx, change)
	if err != nil {
		return err
	}

	log.Debugf("cascade %s: merging %s for change %d", report.ID, change.Dest, change.ID)
	if err := s.queue.Merge(ctx, change.Dest); err != nil {
		return fmt.Errorf("merging %s: %w", change.Dest, err)
	}
	report.Steps = append(report.Steps, CascadeStep{ChangeID: change.ID, Branch: change.Dest, Depth: depth})

	for i := range neededBy {
		// The merge may have moved the dependent on; decide on fresh state.
		dep, err := s.store.GetChange(ctx, neededBy[i].ID)
		if err != nil {
			return fmt.Errorf("loading change %d: %w", neededBy[i].ID, err)
		}
		if dep == nil || dep.Status != entities.StatusSubmitted {
			continue
		}

		pending, err := s.deps.DependsOn(ctx, dep)
		if err != nil {
			return err
		}
		if len(pending) > 0 {
			log.Debugf("cascade %s: change %d still waits on %d change(s)", report.ID, dep.ID, len(pending))
			continue
		}

		if err := s.mergeCascade(ctx, dep, visited, depth+1, report); err != nil {
			return err
		}
	}

	visited[change.ID] = markDone
	return nil
}
