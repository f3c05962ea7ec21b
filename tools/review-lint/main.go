// review-lint is a custom static analyzer for review-core error and locking conventions.
package main

import (
	"golang.org/x/tools/go/analysis/multichecker"

	"github.com/ersonp/review-core/tools/review-lint/analyzers"
)

func main() {
	multichecker.Main(analyzers.All()...)
}
