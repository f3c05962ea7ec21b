package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ersonp/review-core/internal/domain/entities"
	"github.com/ersonp/review-core/internal/domain/mocks"
	"github.com/ersonp/review-core/internal/domain/ports"
)

const changeKey = "I0123456789abcdef0123456789abcdef01234567"

func newUploadFixture() (*UploadService, *mocks.ChangeStore, *mocks.CommitReader) {
	store := mocks.NewChangeStore()
	commits := &mocks.CommitReader{}
	return NewUploadService(store, commits), store, commits
}

func commit(hash string, message string, parents ...string) *ports.Commit {
	return &ports.Commit{Hash: hash, Parents: parents, Author: "alice", Message: message, When: time.Now()}
}

func TestChangeKey(t *testing.T) {
	withFooter := commit("c1", "Fix parser\n\nBody text.\n\nChange-Id: "+changeKey+"\n")
	assert.Equal(t, changeKey, ChangeKey(withFooter))

	without := commit("4b825dc642cb6eb9a060e54bf8d69288fbee4904", "Fix parser\n")
	assert.Equal(t, "I4b825dc642cb6eb9a060e54bf8d69288fbee4904", ChangeKey(without))
}

func TestUploadService_Upload_NewChangeThenPatchSet(t *testing.T) {
	service, store, commits := newUploadFixture()
	commits.Add(commit("aaa", "Add feature\n\nChange-Id: "+changeKey+"\n", "base"))
	commits.Add(commit("bbb", "Add feature, take two\n\nChange-Id: "+changeKey+"\n", "base2"))
	user := entities.User{Name: "alice"}

	first, err := service.Upload(context.Background(), UploadRequest{Project: "tools", Branch: "master", Revision: "aaa", User: user})
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, 1, first.Change.CurrentPatchSet)
	assert.Equal(t, "Add feature", first.Change.Subject)
	assert.Equal(t, changeKey, first.Change.Key)

	second, err := service.Upload(context.Background(), UploadRequest{Project: "tools", Branch: "master", Revision: "bbb", User: user})
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.Change.ID, second.Change.ID)
	assert.Equal(t, 2, second.Change.CurrentPatchSet)
	assert.Equal(t, "Add feature, take two", second.Change.Subject)

	ancestors, err := store.AncestorsOf(context.Background(), second.PatchSet.ID)
	require.NoError(t, err)
	require.Len(t, ancestors, 1)
	assert.Equal(t, "base2", ancestors[0].AncestorRevision)

	entries, err := store.FindAuditLog(context.Background(), first.Change.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestUploadService_Upload_OtherBranchOpensNewChange(t *testing.T) {
	service, _, commits := newUploadFixture()
	commits.Add(commit("aaa", "Fix\n\nChange-Id: "+changeKey+"\n"))
	commits.Add(commit("ccc", "Fix\n\nChange-Id: "+changeKey+"\n"))
	user := entities.User{Name: "alice"}

	onMaster, err := service.Upload(context.Background(), UploadRequest{Project: "tools", Branch: "master", Revision: "aaa", User: user})
	require.NoError(t, err)
	onStable, err := service.Upload(context.Background(), UploadRequest{Project: "tools", Branch: "stable", Revision: "ccc", User: user})
	require.NoError(t, err)

	assert.True(t, onStable.Created)
	assert.NotEqual(t, onMaster.Change.ID, onStable.Change.ID)
}

func TestUploadService_Upload_ResetsSubmitted(t *testing.T) {
	service, store, commits := newUploadFixture()
	commits.Add(commit("aaa", "Fix\n\nChange-Id: "+changeKey+"\n"))
	commits.Add(commit("bbb", "Fix again\n\nChange-Id: "+changeKey+"\n"))
	user := entities.User{Name: "alice"}

	first, err := service.Upload(context.Background(), UploadRequest{Project: "tools", Branch: "master", Revision: "aaa", User: user})
	require.NoError(t, err)
	store.Changes[first.Change.ID].Status = entities.StatusSubmitted

	second, err := service.Upload(context.Background(), UploadRequest{Project: "tools", Branch: "master", Revision: "bbb", User: user})
	require.NoError(t, err)
	assert.Equal(t, entities.StatusNew, second.Change.Status)
}

func TestUploadService_Upload_ClosedChange(t *testing.T) {
	service, store, commits := newUploadFixture()
	commits.Add(commit("aaa", "Fix\n\nChange-Id: "+changeKey+"\n"))
	commits.Add(commit("bbb", "Fix again\n\nChange-Id: "+changeKey+"\n"))
	user := entities.User{Name: "alice"}

	first, err := service.Upload(context.Background(), UploadRequest{Project: "tools", Branch: "master", Revision: "aaa", User: user})
	require.NoError(t, err)
	store.Changes[first.Change.ID].Status = entities.StatusMerged

	_, err = service.Upload(context.Background(), UploadRequest{Project: "tools", Branch: "master", Revision: "bbb", User: user})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIllegalState)
}

func TestUploadService_Upload_DuplicateRevision(t *testing.T) {
	service, _, commits := newUploadFixture()
	commits.Add(commit("aaa", "Fix\n"))
	req := UploadRequest{Project: "tools", Branch: "master", Revision: "aaa", User: entities.User{Name: "alice"}}

	_, err := service.Upload(context.Background(), req)
	require.NoError(t, err)

	_, err = service.Upload(context.Background(), req)
	assert.ErrorIs(t, err, ErrIllegalState)
}

func TestUploadService_Upload_UnknownCommit(t *testing.T) {
	service, _, commits := newUploadFixture()
	commits.Err = errors.New("object not found")

	_, err := service.Upload(context.Background(), UploadRequest{Project: "tools", Branch: "master", Revision: "zzz"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zzz")
}

func TestUploadService_Upload_ChangeClosesMidUpload(t *testing.T) {
	service, store, commits := newUploadFixture()
	commits.Add(commit("aaa", "Fix\n\nChange-Id: "+changeKey+"\n"))
	commits.Add(commit("bbb", "Fix again\n\nChange-Id: "+changeKey+"\n", "aaa"))
	user := entities.User{Name: "alice"}
	ctx := context.Background()

	first, err := service.Upload(ctx, UploadRequest{Project: "tools", Branch: "master", Revision: "aaa", User: user})
	require.NoError(t, err)

	// Another process merges the change after the upload read it as open.
	store.OnAtomicUpdate = func(stored *entities.Change) {
		stored.Status = entities.StatusMerged
	}

	_, err = service.Upload(ctx, UploadRequest{Project: "tools", Branch: "master", Revision: "bbb", User: user})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIllegalState)

	patchSets, err := store.PatchSetsByRevision(ctx, "bbb")
	require.NoError(t, err)
	assert.Empty(t, patchSets)

	second := entities.PatchSetID{ChangeID: first.Change.ID, PatchSet: 2}
	assert.NotContains(t, store.PatchSets, second)
	assert.Empty(t, store.Ancestors[second])

	stored, err := store.GetChange(ctx, first.Change.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CurrentPatchSet)
}

func TestUploadService_Upload_NumbersAfterConcurrentUpload(t *testing.T) {
	service, store, commits := newUploadFixture()
	commits.Add(commit("aaa", "Fix\n\nChange-Id: "+changeKey+"\n"))
	commits.Add(commit("ccc", "Fix, third try\n\nChange-Id: "+changeKey+"\n"))
	user := entities.User{Name: "alice"}
	ctx := context.Background()

	first, err := service.Upload(ctx, UploadRequest{Project: "tools", Branch: "master", Revision: "aaa", User: user})
	require.NoError(t, err)

	// A second upload lands patch set 2 between our read and our move.
	store.PatchSets[entities.PatchSetID{ChangeID: first.Change.ID, PatchSet: 2}] = &entities.PatchSet{
		ID:       entities.PatchSetID{ChangeID: first.Change.ID, PatchSet: 2},
		Revision: "bbb",
	}
	store.OnAtomicUpdate = func(stored *entities.Change) {
		if stored.CurrentPatchSet < 2 {
			stored.CurrentPatchSet = 2
		}
	}

	third, err := service.Upload(ctx, UploadRequest{Project: "tools", Branch: "master", Revision: "ccc", User: user})
	require.NoError(t, err)
	assert.Equal(t, 3, third.PatchSet.ID.PatchSet)
	assert.Equal(t, 3, third.Change.CurrentPatchSet)
	assert.Equal(t, "bbb", store.PatchSets[entities.PatchSetID{ChangeID: first.Change.ID, PatchSet: 2}].Revision)
}
