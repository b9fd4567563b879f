package telemetry

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"
)

// NewLogger builds the process logger. level is a charm log level name
// (debug, info, warn, error); empty means info.
func NewLogger(w io.Writer, level string) (*log.Logger, error) {
	lvl := log.InfoLevel
	if s := strings.TrimSpace(level); s != "" {
		parsed, err := log.ParseLevel(s)
		if err != nil {
			return nil, fmt.Errorf("parse log level: %w", err)
		}
		lvl = parsed
	}
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           lvl,
	}), nil
}
