package output

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/mfaraco/nexscan/internal/session"
)

// CSVFormatter outputs one row per vulnerability record.
type CSVFormatter struct{}

var csvHeader = []string{
	"repository", "component", "asset", "artifact_type", "target",
	"vulnerability_id", "pkg_name", "installed_version", "severity",
	"fixed_version", "title", "references",
}

func (f *CSVFormatter) Format(w io.Writer, result *session.Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, rec := range result.Records {
		row := []string{
			rec.Repository,
			rec.Component,
			rec.AssetPath,
			string(rec.ArtifactType),
			rec.Target,
			rec.VulnerabilityID,
			rec.PkgName,
			rec.InstalledVersion,
			rec.Severity.String(),
			rec.FixedVersion,
			rec.Title,
			strings.Join(rec.References, " "),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
