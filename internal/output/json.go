package output

import (
	"encoding/json"
	"io"

	"github.com/mfaraco/nexscan/internal/session"
)

// JSONFormatter outputs the full result document: statistics plus every
// vulnerability record.
type JSONFormatter struct{}

func (f *JSONFormatter) Format(w io.Writer, result *session.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
