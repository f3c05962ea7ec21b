// Package gitqueue merges submitted changes into project repositories with
// go-git, by fast-forward only.
package gitqueue

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/ersonp/review-core/internal/domain/ports"
)

// OpenFunc opens the repository of a project.
type OpenFunc func(project string) (*git.Repository, error)

// PlainOpener opens the on-disk repository pathFor returns for a project.
func PlainOpener(pathFor func(project string) string) OpenFunc {
	return func(project string) (*git.Repository, error) {
		path := pathFor(project)
		repo, err := git.PlainOpen(path)
		if err != nil {
			return nil, fmt.Errorf("opening repository %s for %s: %w", path, project, err)
		}
		return repo, nil
	}
}

var _ ports.CommitReader = (*CommitReader)(nil)

// CommitReader reads commits for the upload pipeline.
type CommitReader struct {
	open OpenFunc
}

// NewCommitReader creates a new CommitReader.
func NewCommitReader(open OpenFunc) *CommitReader {
	return &CommitReader{open: open}
}

// ReadCommit resolves revision (a hash or a ref) in project's repository.
func (r *CommitReader) ReadCommit(ctx context.Context, project, revision string) (*ports.Commit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	repo, err := r.open(project)
	if err != nil {
		return nil, err
	}

	hash, err := repo.ResolveRevision(plumbing.Revision(revision))
	if err != nil {
		return nil, fmt.Errorf("resolving %s in %s: %w", revision, project, err)
	}
	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("reading commit %s: %w", hash, err)
	}

	parents := make([]string, 0, len(commit.ParentHashes))
	for _, p := range commit.ParentHashes {
		parents = append(parents, p.String())
	}
	return &ports.Commit{
		Hash:    commit.Hash.String(),
		Parents: parents,
		Author:  commit.Author.Email,
		Message: strings.TrimSpace(commit.Message),
		When:    commit.Author.When,
	}, nil
}
