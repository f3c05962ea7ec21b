package parsers

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONParser parses fixtures from a JSON array.
type JSONParser struct{}

// Parse reads JSON from the reader and returns parsed records.
func (p *JSONParser) Parse(r io.Reader) ([]RawRecord, error) {
	var records []RawRecord

	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&records); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}

	// Array index + 1
	for i := range records {
		records[i].LineNum = i + 1
	}

	return records, nil
}
