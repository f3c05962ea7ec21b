package handlers

import (
	"context"
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/ersonp/review-core/internal/domain/services"
	"github.com/ersonp/review-core/internal/infrastructure/parsers"
)

// ImportHandler loads review fixtures from files.
type ImportHandler struct {
	service *services.ImportService
}

// NewImportHandler creates a new import handler.
func NewImportHandler(service *services.ImportService) *ImportHandler {
	return &ImportHandler{
		service: service,
	}
}

// ImportOptions controls import behavior.
type ImportOptions struct {
	Format     string                    // "json", "csv", or "auto"
	DryRun     bool                      // Validate without saving
	OnConflict services.ConflictStrategy // How to handle existing changes
}

// ImportResult reports a fixture import.
type ImportResult struct {
	Imported int
	Skipped  int
	Errors   []services.ImportError
	// Kinds tallies the file per record kind. Known kinds come in load
	// order, unknown ones after them in file order.
	Kinds []KindReport
	// Changes holds the distinct change numbers the file refers to.
	Changes []int
}

// KindReport tallies the records of one kind.
type KindReport struct {
	Kind     string
	Records  int
	Rejected int
}

// Accepted is the number of records of the kind that passed validation
// and loading.
func (k KindReport) Accepted() int {
	return k.Records - k.Rejected
}

// Handle imports the fixture at filePath.
func (h *ImportHandler) Handle(ctx context.Context, filePath string, opts ImportOptions) (*ImportResult, error) {
	records, err := readFixture(filePath, opts.Format)
	if err != nil {
		return nil, err
	}

	report := tallyFixture(records)
	if len(records) == 0 {
		return report, nil
	}

	result, err := h.service.Import(ctx, records, services.ImportOptions{
		DryRun:     opts.DryRun,
		OnConflict: opts.OnConflict,
	})
	if err != nil {
		return nil, err
	}

	report.Imported = result.Imported
	report.Skipped = result.Skipped
	report.Errors = result.Errors
	report.reject(records, result.Errors)
	return report, nil
}

func readFixture(filePath, format string) ([]parsers.RawRecord, error) {
	var parser parsers.Parser
	if format == "" || format == "auto" {
		parser = parsers.ForFile(filePath)
	} else {
		parser = parsers.ForFormat(format)
	}
	if parser == nil {
		return nil, fmt.Errorf("unsupported format for file: %s", filePath)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer file.Close()

	records, err := parser.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("parsing file: %w", err)
	}
	return records, nil
}

// recordLine is the line an import error for the i-th record carries.
func recordLine(i int, r parsers.RawRecord) int {
	if r.LineNum == 0 {
		return i + 1
	}
	return r.LineNum
}

func tallyFixture(records []parsers.RawRecord) *ImportResult {
	counts := make(map[string]int)
	var unknown []string
	changes := make(map[int]struct{})
	for _, r := range records {
		if counts[r.Kind] == 0 && !slices.Contains(parsers.Kinds, r.Kind) {
			unknown = append(unknown, r.Kind)
		}
		counts[r.Kind]++
		if r.Change > 0 {
			changes[r.Change] = struct{}{}
		}
	}

	report := &ImportResult{Changes: slices.Sorted(maps.Keys(changes))}
	for _, kind := range append(slices.Clone(parsers.Kinds), unknown...) {
		if n := counts[kind]; n > 0 {
			report.Kinds = append(report.Kinds, KindReport{Kind: kind, Records: n})
		}
	}
	return report
}

// reject charges each import error to the kind of the record on its line.
func (r *ImportResult) reject(records []parsers.RawRecord, errs []services.ImportError) {
	kindAt := make(map[int]string, len(records))
	for i, rec := range records {
		kindAt[recordLine(i, rec)] = rec.Kind
	}
	for _, e := range errs {
		kind, ok := kindAt[e.Line]
		if !ok {
			continue
		}
		for i := range r.Kinds {
			if r.Kinds[i].Kind == kind {
				r.Kinds[i].Rejected++
				break
			}
		}
	}
}
