// Package output renders a finished session for terminal, JSON, and CSV
// consumers.
package output

import (
	"fmt"
	"io"

	"github.com/mfaraco/nexscan/internal/session"
)

// Formatter is the interface for writing a session result.
type Formatter interface {
	Format(w io.Writer, result *session.Result) error
}

// New returns the formatter for a format name.
func New(format string) (Formatter, error) {
	switch format {
	case "terminal", "":
		return &TerminalFormatter{}, nil
	case "json":
		return &JSONFormatter{}, nil
	case "csv":
		return &CSVFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown output format: %q", format)
	}
}
