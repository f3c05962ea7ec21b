package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/review-core/internal/domain/entities"
)

func TestSubmitService_Submit_NoDependencies(t *testing.T) {
	f := newFixture(t, false)
	f.addChange(t, 100, entities.StatusNew)
	f.approve(t, 100)

	result := f.submit(t, 100)

	require.True(t, result.IsOk(), result.Reason)
	assert.Equal(t, entities.StatusSubmitted, result.Change.Status)

	key := entities.ApprovalKey{
		PatchSet: entities.PatchSetID{ChangeID: 100, PatchSet: 1},
		User:     submitter,
		Category: entities.SubmitCategory,
	}
	require.Contains(t, f.store.Approvals, key)
	assert.Equal(t, int16(1), f.store.Approvals[key].Value)
	assert.Equal(t, 1, f.store.UpsertCalls)

	require.Equal(t, 1, f.queue.CallCount())
	assert.Equal(t, "refs/heads/master", f.queue.Calls[0].Name)
	assert.True(t, result.Cascade.Merged(100))
	assert.NotEmpty(t, result.Cascade.ID)
}

func TestSubmitService_Submit_MergesSynchronously(t *testing.T) {
	f := newFixture(t, true)
	f.addChange(t, 100, entities.StatusNew)
	f.approve(t, 100)

	result := f.submit(t, 100)

	require.True(t, result.IsOk())
	assert.Equal(t, entities.StatusMerged, result.Change.Status)
	assert.Equal(t, 1, f.queue.CallCount())
}

func TestSubmitService_Submit_WaitsOnOpenDependency(t *testing.T) {
	f := newFixture(t, true)
	f.addChange(t, 1, entities.StatusNew)
	f.addChange(t, 2, entities.StatusNew, 1)
	f.approve(t, 2)

	result := f.submit(t, 2)

	require.True(t, result.IsOk())
	assert.Equal(t, entities.StatusSubmitted, f.status(t, 2))
	assert.Equal(t, 0, f.queue.CallCount())
	assert.Empty(t, result.Cascade.Steps)
}

func TestSubmitService_Submit_ChainInOrder(t *testing.T) {
	f := newFixture(t, true)
	f.addChange(t, 1, entities.StatusNew)
	f.addChange(t, 2, entities.StatusNew, 1)
	f.addChange(t, 3, entities.StatusNew, 2)
	for id := 1; id <= 3; id++ {
		f.approve(t, id)
	}

	for id := 1; id <= 3; id++ {
		result := f.submit(t, id)
		require.True(t, result.IsOk(), result.Reason)
		assert.Equal(t, entities.StatusMerged, result.Change.Status)
		assert.Equal(t, id, f.queue.CallCount(), "one merge per submit")
	}
}

func TestSubmitService_Submit_TipFirstDoesNotCascade(t *testing.T) {
	f := newFixture(t, true)
	f.addChange(t, 1, entities.StatusNew)
	f.addChange(t, 2, entities.StatusNew, 1)
	f.addChange(t, 3, entities.StatusNew, 2)
	for id := 1; id <= 3; id++ {
		f.approve(t, id)
	}

	f.submit(t, 3)
	assert.Equal(t, 0, f.queue.CallCount())

	f.submit(t, 1)
	assert.Equal(t, entities.StatusMerged, f.status(t, 1))
	assert.Equal(t, entities.StatusNew, f.status(t, 2))
	assert.Equal(t, entities.StatusSubmitted, f.status(t, 3))

	// Merging 2 lets the queue take 3 along in the same branch merge.
	f.submit(t, 2)
	assert.Equal(t, entities.StatusMerged, f.status(t, 2))
	assert.Equal(t, entities.StatusMerged, f.status(t, 3))
	assert.Equal(t, 2, f.queue.CallCount())
}

func TestSubmitService_Submit_CascadesThroughSubmittedChain(t *testing.T) {
	f := newFixture(t, false)
	f.addChange(t, 1, entities.StatusNew)
	f.addChange(t, 2, entities.StatusSubmitted, 1)
	f.addChange(t, 3, entities.StatusSubmitted, 2)
	f.approve(t, 1)

	result := f.submit(t, 1)

	require.True(t, result.IsOk())
	require.Len(t, result.Cascade.Steps, 3)
	for i, step := range result.Cascade.Steps {
		assert.Equal(t, i+1, step.ChangeID)
		assert.Equal(t, i, step.Depth)
	}
	assert.Equal(t, 3, f.queue.CallCount())
	assert.Empty(t, result.Cascade.Cycles)
}

func TestSubmitService_Submit_DiamondVisitsEachChangeOnce(t *testing.T) {
	f := newFixture(t, false)
	f.addChange(t, 1, entities.StatusNew)
	f.addChange(t, 2, entities.StatusSubmitted, 1)
	f.addChange(t, 3, entities.StatusSubmitted, 1)
	f.addChange(t, 4, entities.StatusSubmitted, 2, 3)
	f.approve(t, 1)

	result := f.submit(t, 1)

	require.True(t, result.IsOk())
	assert.Equal(t, 4, f.queue.CallCount())
	assert.Empty(t, result.Cascade.Cycles)
	for id := 1; id <= 4; id++ {
		assert.True(t, result.Cascade.Merged(id), "change %d", id)
	}
}

func TestSubmitService_Submit_CycleIsDetected(t *testing.T) {
	f := newFixture(t, false)
	f.addChange(t, 1, entities.StatusSubmitted, 2)
	f.addChange(t, 2, entities.StatusSubmitted, 1)
	f.approve(t, 1)

	result := f.submit(t, 1)

	require.True(t, result.IsOk())
	assert.Equal(t, 2, f.queue.CallCount())
	assert.Equal(t, []int{1}, result.Cascade.Cycles)

	entries, err := f.store.FindAuditLogByAction(context.Background(), entities.ActionCascadeCycle, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].ChangeID)
}

func TestSubmitService_Submit_AlreadySubmittedIsIdempotent(t *testing.T) {
	f := newFixture(t, false)
	f.addChange(t, 1, entities.StatusNew)
	f.addChange(t, 2, entities.StatusSubmitted, 1)
	f.approve(t, 2)

	first := f.submit(t, 2)
	second := f.submit(t, 2)

	require.True(t, first.IsOk())
	require.True(t, second.IsOk())
	assert.Equal(t, entities.StatusSubmitted, second.Change.Status)
	assert.Equal(t, 0, f.store.StatusWrites)
	assert.Equal(t, 2, f.store.UpsertCalls)
	assert.Equal(t, 0, f.queue.CallCount())

	approvals, err := f.store.ListApprovals(context.Background(), entities.PatchSetID{ChangeID: 2, PatchSet: 1})
	require.NoError(t, err)
	var submits int
	for _, a := range approvals {
		if a.Key.Category == entities.SubmitCategory {
			submits++
		}
	}
	assert.Equal(t, 1, submits)
}

func TestSubmitService_Submit_StalePatchSet(t *testing.T) {
	f := newFixture(t, false)
	f.addChange(t, 1, entities.StatusNew)
	f.approve(t, 1)
	_, err := f.store.AtomicUpdateChange(context.Background(), 1, func(c *entities.Change) bool {
		c.CurrentPatchSet = 2
		return true
	})
	require.NoError(t, err)
	f.store.StatusWrites = 0

	result := f.submit(t, 1)

	assert.Equal(t, OutcomeRejected, result.Outcome)
	assert.Contains(t, result.Reason, "not current")
	assert.Equal(t, entities.StatusNew, f.status(t, 1))
	assert.Equal(t, 0, f.store.StatusWrites)
	assert.Equal(t, 0, f.store.UpsertCalls)
}

func TestSubmitService_Submit_ClosedChange(t *testing.T) {
	for _, status := range []entities.ChangeStatus{entities.StatusMerged, entities.StatusAbandoned} {
		t.Run(status.String(), func(t *testing.T) {
			f := newFixture(t, false)
			f.addChange(t, 1, status)
			f.approve(t, 1)

			result := f.submit(t, 1)

			assert.Equal(t, OutcomeRejected, result.Outcome)
			assert.Contains(t, result.Reason, "closed")
			assert.Equal(t, status, f.status(t, 1))
			assert.Equal(t, 0, f.store.UpsertCalls)
			assert.Equal(t, 0, f.store.StatusWrites)
			assert.Equal(t, 0, f.queue.CallCount())
		})
	}
}

func TestSubmitService_Submit_Draft(t *testing.T) {
	f := newFixture(t, false)
	f.addChange(t, 1, entities.StatusDraft)
	f.approve(t, 1)

	result := f.submit(t, 1)

	assert.Equal(t, OutcomeRejected, result.Outcome)
	assert.Equal(t, 0, f.store.UpsertCalls)
}

func TestSubmitService_Submit_NotFound(t *testing.T) {
	f := newFixture(t, false)

	result := f.submit(t, 999)

	assert.Equal(t, OutcomeNotFound, result.Outcome)
	assert.Contains(t, result.Reason, "999")
	assert.ErrorIs(t, result.Err, ErrChangeNotFound)
}

func TestSubmitService_Submit_MissingPatchSet(t *testing.T) {
	f := newFixture(t, false)
	f.addChange(t, 100, entities.StatusNew)
	delete(f.store.PatchSets, entities.PatchSetID{ChangeID: 100, PatchSet: 1})

	result := f.submit(t, 100)

	assert.Equal(t, OutcomeNotFound, result.Outcome)
	assert.Contains(t, result.Reason, "100,1")
	assert.ErrorIs(t, result.Err, ErrPatchSetNotFound)
	assert.Equal(t, entities.StatusNew, f.status(t, 100))
	assert.Zero(t, f.queue.CallCount())
}

func TestSubmitService_Submit_RejectedByFunctions(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T, f *fixture)
		reason string
	}{
		{
			name:   "missing code review",
			setup:  func(t *testing.T, f *fixture) { f.vote(t, 1, reviewer, entities.VerifiedCategory, 1) },
			reason: "Code Review",
		},
		{
			name: "blocking vote",
			setup: func(t *testing.T, f *fixture) {
				f.approve(t, 1)
				f.vote(t, 1, "bob", entities.CodeReviewCategory, -2)
			},
			reason: "Code Review",
		},
		{
			name: "not verified",
			setup: func(t *testing.T, f *fixture) {
				f.vote(t, 1, reviewer, entities.CodeReviewCategory, 2)
				f.vote(t, 1, reviewer, entities.VerifiedCategory, -1)
			},
			reason: "Verified",
		},
		{
			name: "no submit right",
			setup: func(t *testing.T, f *fixture) {
				f.approve(t, 1)
				delete(f.perms.Ranges[submitter], entities.SubmitCategory)
			},
			reason: "not permitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, false)
			f.addChange(t, 1, entities.StatusNew)
			tt.setup(t, f)

			result := f.submit(t, 1)

			assert.Equal(t, OutcomeRejected, result.Outcome)
			assert.Contains(t, result.Reason, tt.reason)
			assert.Equal(t, entities.StatusNew, f.status(t, 1))
			assert.Equal(t, 0, f.store.UpsertCalls)
		})
	}
}

func TestSubmitService_Submit_MisconfiguredSubmitCategory(t *testing.T) {
	f := newFixture(t, false)
	f.addChange(t, 1, entities.StatusNew)
	f.approve(t, 1)
	f.store.Categories[entities.SubmitCategory].Position = 2

	result := f.submit(t, 1)

	assert.Equal(t, OutcomeFatal, result.Outcome)
	assert.ErrorIs(t, result.Err, ErrNotActionCategory)
	assert.Equal(t, 0, f.store.UpsertCalls)
}

func TestSubmitService_Submit_StoreFailure(t *testing.T) {
	f := newFixture(t, false)
	f.addChange(t, 1, entities.StatusNew)
	boom := errors.New("disk on fire")
	f.store.Err = boom

	result, err := f.svc.Submit(context.Background(), SubmitRequest{
		PatchSet: entities.PatchSetID{ChangeID: 1, PatchSet: 1},
		User:     entities.User{Name: submitter},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, result)
}

func TestSubmitService_Submit_MergeFailureKeepsSubmittedStatus(t *testing.T) {
	f := newFixture(t, false)
	f.addChange(t, 1, entities.StatusNew)
	f.approve(t, 1)
	boom := errors.New("ref update rejected")
	f.queue.Err = boom

	_, err := f.svc.Submit(context.Background(), SubmitRequest{
		PatchSet: entities.PatchSetID{ChangeID: 1, PatchSet: 1},
		User:     entities.User{Name: submitter},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, entities.StatusSubmitted, f.status(t, 1))
}

func TestSubmitService_MergeCascade(t *testing.T) {
	f := newFixture(t, false)
	f.addChange(t, 1, entities.StatusSubmitted)
	f.addChange(t, 2, entities.StatusSubmitted, 1)

	change, err := f.store.GetChange(context.Background(), 1)
	require.NoError(t, err)

	report, err := f.svc.MergeCascade(context.Background(), change)

	require.NoError(t, err)
	require.Len(t, report.Steps, 2)
	assert.Equal(t, 2, report.Steps[1].ChangeID)
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "ok", OutcomeOk.String())
	assert.Equal(t, "rejected", OutcomeRejected.String())
	assert.Equal(t, "not found", OutcomeNotFound.String())
	assert.Equal(t, "fatal", OutcomeFatal.String())
}
