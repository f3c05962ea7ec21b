package main

// Default limits for CLI commands.
const (
	DefaultListLimit = 50
)

// Valid output formats.
var validFormats = []string{"text", "json"}
