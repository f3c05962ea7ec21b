package mocks

import (
	"context"
	"fmt"

	"github.com/ersonp/review-core/internal/domain/ports"
)

// CommitReader is a mock implementation of ports.CommitReader.
type CommitReader struct {
	Commits map[string]*ports.Commit // keyed by hash
	Err     error
}

var _ ports.CommitReader = (*CommitReader)(nil)

// Add registers a commit.
func (m *CommitReader) Add(c *ports.Commit) {
	if m.Commits == nil {
		m.Commits = make(map[string]*ports.Commit)
	}
	m.Commits[c.Hash] = c
}

// ReadCommit returns the registered commit.
func (m *CommitReader) ReadCommit(_ context.Context, _, revision string) (*ports.Commit, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	c, ok := m.Commits[revision]
	if !ok {
		return nil, fmt.Errorf("commit %s not found", revision)
	}
	return c, nil
}
