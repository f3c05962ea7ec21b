// Package analyzers provides all custom static analyzers for review-core.
package analyzers

import (
	"golang.org/x/tools/go/analysis"

	"github.com/ersonp/review-core/tools/review-lint/analyzers/errwrap"
	"github.com/ersonp/review-core/tools/review-lint/analyzers/unlockcheck"
)

// All returns all analyzers to run.
func All() []*analysis.Analyzer {
	return []*analysis.Analyzer{
		errwrap.Analyzer,
		unlockcheck.Analyzer,
	}
}
