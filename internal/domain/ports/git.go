package ports

import (
	"context"
	"time"
)

// Commit is the subset of a Git commit needed to record a patch set.
type Commit struct {
	Hash    string
	Parents []string
	Author  string
	Message string
	When    time.Time
}

// CommitReader reads commits from a project's repository.
type CommitReader interface {
	ReadCommit(ctx context.Context, project, revision string) (*Commit, error)
}
