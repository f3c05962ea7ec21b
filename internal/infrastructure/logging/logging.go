// Package logging installs the process-wide go-logging backend.
package logging

import (
	"fmt"
	"io"
	"strings"

	gol "github.com/op/go-logging"

	"github.com/ersonp/review-core/internal/infrastructure/config"
)

// Output formats accepted in log.format.
const (
	FormatText  = "text"
	FormatColor = "color"
)

const (
	textFormat  = `%{time:15:04:05.000} %{level:.4s} %{module}: %{message}`
	colorFormat = `%{color}%{time:15:04:05.000} %{level:.4s} %{module}:%{color:reset} %{message}`
)

// ParseLevel accepts debug, info, notice, warning, error and critical in
// any case. "warn" is taken as warning.
func ParseLevel(s string) (gol.Level, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "warn") {
		s = "warning"
	}
	level, err := gol.LogLevel(s)
	if err != nil {
		return gol.INFO, fmt.Errorf("invalid log level %q (valid: debug, info, notice, warning, error, critical)", s)
	}
	return level, nil
}

// Setup routes every logger to w at the configured level.
func Setup(cfg config.LogConfig, w io.Writer) error {
	level := gol.INFO
	if cfg.Level != "" {
		var err error
		if level, err = ParseLevel(cfg.Level); err != nil {
			return err
		}
	}

	var format string
	switch strings.ToLower(cfg.Format) {
	case "", FormatText:
		format = textFormat
	case FormatColor:
		format = colorFormat
	default:
		return fmt.Errorf("invalid log format %q (valid: text, color)", cfg.Format)
	}

	backend := gol.NewBackendFormatter(gol.NewLogBackend(w, "", 0), gol.MustStringFormatter(format))
	leveled := gol.AddModuleLevel(backend)
	leveled.SetLevel(level, "")
	gol.SetBackend(leveled)
	return nil
}
