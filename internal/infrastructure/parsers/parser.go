// Package parsers provides parsers for importing review fixtures from various formats.
package parsers

import (
	"io"
	"path/filepath"
	"strings"
)

// Record kinds understood by the importer.
const (
	KindChange   = "change"
	KindPatchSet = "patch_set"
	KindAncestor = "ancestor"
	KindRight    = "right"
	KindApproval = "approval"
)

// Kinds lists the record kinds in load order: rows come before the rows
// that reference them.
var Kinds = []string{KindRight, KindChange, KindPatchSet, KindAncestor, KindApproval}

// RawRecord is one fixture row before validation. Which fields matter
// depends on Kind.
type RawRecord struct {
	Kind     string `json:"kind"`
	Change   int    `json:"change,omitempty"`
	PatchSet int    `json:"patch_set,omitempty"`
	Key      string `json:"key,omitempty"`
	Project  string `json:"project,omitempty"`
	Branch   string `json:"branch,omitempty"`
	Owner    string `json:"owner,omitempty"`
	Subject  string `json:"subject,omitempty"`
	Status   string `json:"status,omitempty"`
	Revision string `json:"revision,omitempty"`
	Parent   string `json:"parent,omitempty"`   // Ancestor revision
	Position int    `json:"position,omitempty"` // Parent position, 1-based
	User     string `json:"user,omitempty"`
	Category string `json:"category,omitempty"`
	Group    string `json:"group,omitempty"`
	Value    int16  `json:"value,omitempty"`
	Min      int16  `json:"min,omitempty"`
	Max      int16  `json:"max,omitempty"`
	LineNum  int    `json:"-"` // Line number in source file (set by parser)
}

// Parser defines the interface for parsing fixtures from various formats.
type Parser interface {
	Parse(r io.Reader) ([]RawRecord, error)
}

// ForFormat returns the appropriate parser for the given format.
// Supported formats: "json", "csv".
func ForFormat(format string) Parser {
	switch strings.ToLower(format) {
	case "json":
		return &JSONParser{}
	case "csv":
		return &CSVParser{}
	default:
		return nil
	}
}

// ForFile returns the appropriate parser based on file extension.
func ForFile(filename string) Parser {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".json":
		return &JSONParser{}
	case ".csv":
		return &CSVParser{}
	default:
		return nil
	}
}
