package parsers

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// CSVParser parses fixtures from CSV format.
type CSVParser struct{}

// Parse reads CSV from the reader and returns parsed records.
// The kind column is required; any other RawRecord column may be present.
func (p *CSVParser) Parse(r io.Reader) ([]RawRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	colIndex, err := p.readHeader(reader)
	if err != nil {
		return nil, err
	}

	return p.readRecords(reader, colIndex)
}

// readHeader reads and validates the CSV header row.
func (p *CSVParser) readHeader(reader *csv.Reader) (map[string]int, error) {
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	colIndex := make(map[string]int)
	for i, col := range header {
		colIndex[col] = i
	}

	if _, ok := colIndex["kind"]; !ok {
		return nil, fmt.Errorf("missing required column: kind")
	}

	return colIndex, nil
}

// readRecords reads all data rows and converts them to RawRecords.
func (p *CSVParser) readRecords(reader *csv.Reader, colIndex map[string]int) ([]RawRecord, error) {
	var records []RawRecord
	lineNum := 1 // Header is line 1

	for {
		lineNum++
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		rec, err := p.parseRecord(row, colIndex, lineNum)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, nil
}

// parseRecord converts a CSV row to a RawRecord.
func (p *CSVParser) parseRecord(row []string, colIndex map[string]int, lineNum int) (RawRecord, error) {
	rec := RawRecord{
		Kind:     getColumn(row, colIndex, "kind"),
		Key:      getColumn(row, colIndex, "key"),
		Project:  getColumn(row, colIndex, "project"),
		Branch:   getColumn(row, colIndex, "branch"),
		Owner:    getColumn(row, colIndex, "owner"),
		Subject:  getColumn(row, colIndex, "subject"),
		Status:   getColumn(row, colIndex, "status"),
		Revision: getColumn(row, colIndex, "revision"),
		Parent:   getColumn(row, colIndex, "parent"),
		User:     getColumn(row, colIndex, "user"),
		Category: getColumn(row, colIndex, "category"),
		Group:    getColumn(row, colIndex, "group"),
		LineNum:  lineNum,
	}

	ints := []struct {
		col string
		dst *int
	}{
		{"change", &rec.Change},
		{"patch_set", &rec.PatchSet},
		{"position", &rec.Position},
	}
	for _, f := range ints {
		s := getColumn(row, colIndex, f.col)
		if s == "" {
			continue
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			return RawRecord{}, fmt.Errorf("line %d: invalid %s value %q: %w", lineNum, f.col, s, err)
		}
		*f.dst = v
	}

	votes := []struct {
		col string
		dst *int16
	}{
		{"value", &rec.Value},
		{"min", &rec.Min},
		{"max", &rec.Max},
	}
	for _, f := range votes {
		s := getColumn(row, colIndex, f.col)
		if s == "" {
			continue
		}
		v, err := strconv.ParseInt(s, 10, 16)
		if err != nil {
			return RawRecord{}, fmt.Errorf("line %d: invalid %s value %q: %w", lineNum, f.col, s, err)
		}
		*f.dst = int16(v)
	}

	return rec, nil
}

// getColumn safely retrieves a column value from a row.
func getColumn(row []string, colIndex map[string]int, col string) string {
	if idx, ok := colIndex[col]; ok && idx < len(row) {
		return row[idx]
	}
	return ""
}
