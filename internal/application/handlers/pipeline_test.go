package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/review-core/internal/domain/entities"
	"github.com/ersonp/review-core/internal/domain/services"
	"github.com/ersonp/review-core/internal/infrastructure/config"
	"github.com/ersonp/review-core/internal/infrastructure/lock"
	"github.com/ersonp/review-core/internal/infrastructure/mergequeue/gitqueue"
	"github.com/ersonp/review-core/internal/infrastructure/relationaldb/sqlite"
)

// pipeline wires the handlers over SQLite and an in-memory git repository.
type pipeline struct {
	repo   *git.Repository
	store  *sqlite.Repository
	upload *UploadHandler
	submit *SubmitHandler
	change *ChangeHandler
	seq    int
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.NewRepository(config.DatabaseConfig{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.EnsureSchema(ctx))
	_, err = SeedDefaultCategories(ctx, store)
	require.NoError(t, err)
	for i := range DefaultAccessRights {
		require.NoError(t, store.SaveAccessRight(ctx, &DefaultAccessRights[i]))
	}

	repo, err := git.Init(memory.NewStorage(), nil)
	require.NoError(t, err)
	open := func(string) (*git.Repository, error) { return repo, nil }

	deps := services.NewDependencyService(store)
	normalizer := services.NewApprovalNormalizer(store, store, services.NewDefaultFunctionRegistry(), "")
	queue := gitqueue.NewQueue(store, lock.NewLocalLocker(), open)

	return &pipeline{
		repo:   repo,
		store:  store,
		upload: NewUploadHandler(services.NewUploadService(store, gitqueue.NewCommitReader(open))),
		submit: NewSubmitHandler(store, services.NewSubmitService(store, deps, normalizer, queue)),
		change: NewChangeHandler(store, deps),
	}
}

func (p *pipeline) commit(t *testing.T, message string, parents ...plumbing.Hash) plumbing.Hash {
	t.Helper()
	p.seq++

	tree := &object.Tree{}
	obj := p.repo.Storer.NewEncodedObject()
	require.NoError(t, tree.Encode(obj))
	treeHash, err := p.repo.Storer.SetEncodedObject(obj)
	require.NoError(t, err)

	sig := object.Signature{Name: "Alice", Email: "alice@example.com", When: time.Unix(int64(1700000000+p.seq), 0)}
	c := &object.Commit{Author: sig, Committer: sig, Message: message, TreeHash: treeHash, ParentHashes: parents}
	obj = p.repo.Storer.NewEncodedObject()
	require.NoError(t, c.Encode(obj))
	hash, err := p.repo.Storer.SetEncodedObject(obj)
	require.NoError(t, err)
	return hash
}

func (p *pipeline) approve(t *testing.T, change *entities.Change) {
	t.Helper()
	psID := change.CurrentPatchSetID()
	require.NoError(t, p.store.UpsertApprovals(context.Background(), []entities.PatchSetApproval{
		{Key: entities.ApprovalKey{PatchSet: psID, User: "rita", Category: entities.CodeReviewCategory}, Value: 2, Granted: time.Now()},
		{Key: entities.ApprovalKey{PatchSet: psID, User: "rita", Category: entities.VerifiedCategory}, Value: 1, Granted: time.Now()},
	}))
}

func TestPipeline_SubmitChainMergesInOrder(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	base := p.commit(t, "Initial import")
	require.NoError(t, p.repo.Storer.SetReference(plumbing.NewHashReference(plumbing.ReferenceName(master.Name), base)))
	first := p.commit(t, "Add parser", base)
	second := p.commit(t, "Use parser", first)

	up1, err := p.upload.Handle(ctx, "tools", "master", first.String(), UploadOptions{User: "alice"})
	require.NoError(t, err)
	up2, err := p.upload.Handle(ctx, "tools", "master", second.String(), UploadOptions{User: "alice"})
	require.NoError(t, err)
	p.approve(t, up1.Change)
	p.approve(t, up2.Change)

	detail, err := p.change.HandleShow(ctx, "2")
	require.NoError(t, err)
	require.Len(t, detail.DependsOn, 1)
	assert.Equal(t, up1.Change.ID, detail.DependsOn[0].ID)

	// The tip waits on its parent.
	waiting, err := p.submit.Handle(ctx, "2", SubmitOptions{User: "alice"})
	require.NoError(t, err)
	assert.Equal(t, entities.StatusSubmitted, waiting.Change.Status)
	assert.Empty(t, waiting.Cascade.Steps)

	// Submitting the parent merges both.
	done, err := p.submit.Handle(ctx, "1", SubmitOptions{User: "alice"})
	require.NoError(t, err)
	assert.Equal(t, entities.StatusMerged, done.Change.Status)
	assert.True(t, done.Cascade.Merged(up1.Change.ID))

	tip, err := p.change.HandleShow(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, entities.StatusMerged, tip.Change.Status)

	ref, err := p.repo.Reference(plumbing.ReferenceName(master.Name), true)
	require.NoError(t, err)
	assert.Equal(t, second, ref.Hash())

	merges, err := p.store.FindAuditLogByAction(ctx, entities.ActionMerge, 0)
	require.NoError(t, err)
	assert.Len(t, merges, 2)
}

func TestPipeline_SubmitWithoutReviewIsRejected(t *testing.T) {
	p := newPipeline(t)
	ctx := context.Background()

	base := p.commit(t, "Initial import")
	_, err := p.upload.Handle(ctx, "tools", "master", base.String(), UploadOptions{User: "alice"})
	require.NoError(t, err)

	_, err = p.submit.Handle(ctx, "1", SubmitOptions{User: "alice"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs Code Review")

	c, err := p.store.GetChange(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, entities.StatusNew, c.Status)
}
