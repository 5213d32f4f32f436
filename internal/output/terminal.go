package output

import (
	"fmt"
	"io"
	"sort"

	"github.com/mfaraco/nexscan/internal/session"
	"github.com/mfaraco/nexscan/internal/types"
)

// ANSI color codes
const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	red    = "\033[31m"
	yellow = "\033[33m"
	// magenta marks CRITICAL, matching the severity palette of the
	// engine's own HTML template.
	magenta = "\033[35m"
	gray    = "\033[90m"
)

// TerminalFormatter prints the session summary for humans.
type TerminalFormatter struct {
	NoColor bool
}

func (f *TerminalFormatter) Format(w io.Writer, result *session.Result) error {
	sum := result.Summary

	fmt.Fprintf(w, "%s\n", f.paint(bold, "Scan summary"))
	fmt.Fprintf(w, "  Repositories scanned:  %d\n", sum.RepositoriesScanned)
	fmt.Fprintf(w, "  Components found:      %d\n", sum.ComponentsFound)
	fmt.Fprintf(w, "  Assets scanned:        %d\n", sum.AssetsScanned)
	fmt.Fprintf(w, "  Assets skipped:        %d\n", sum.SkippedAssets)
	fmt.Fprintf(w, "  Scan errors:           %d\n", sum.ScanErrors)
	fmt.Fprintf(w, "  Vulnerabilities:       %d\n", sum.VulnerabilitiesFound)

	if sum.VulnerabilitiesFound > 0 {
		fmt.Fprintf(w, "\n%s\n", f.paint(bold, "By severity"))
		for _, sev := range types.Severities {
			n := sum.BySeverity[sev]
			if n == 0 {
				continue
			}
			fmt.Fprintf(w, "  %s %d\n", f.severityLabel(sev), n)
		}
	}

	if len(sum.ByArtifactType) > 0 {
		fmt.Fprintf(w, "\n%s\n", f.paint(bold, "By artifact type"))
		artifactTypes := make([]string, 0, len(sum.ByArtifactType))
		for t := range sum.ByArtifactType {
			artifactTypes = append(artifactTypes, string(t))
		}
		sort.Strings(artifactTypes)
		for _, t := range artifactTypes {
			fmt.Fprintf(w, "  %-20s %d\n", t, sum.ByArtifactType[types.ArtifactType(t)])
		}
	}

	if len(sum.AffectedComponents) > 0 {
		fmt.Fprintf(w, "\n%s\n", f.paint(bold, "Affected components"))
		repos := make([]string, 0, len(sum.AffectedComponents))
		for repo := range sum.AffectedComponents {
			repos = append(repos, repo)
		}
		sort.Strings(repos)
		for _, repo := range repos {
			fmt.Fprintf(w, "  %s\n", repo)
			for _, component := range sum.AffectedComponents[repo] {
				fmt.Fprintf(w, "    - %s\n", component)
			}
		}
	}

	return nil
}

func (f *TerminalFormatter) severityLabel(sev types.Severity) string {
	label := fmt.Sprintf("%-8s", sev)
	switch sev {
	case types.SeverityCritical:
		return f.paint(magenta, label)
	case types.SeverityHigh:
		return f.paint(red, label)
	case types.SeverityMedium:
		return f.paint(yellow, label)
	case types.SeverityLow:
		return label
	default:
		return f.paint(gray, label)
	}
}

func (f *TerminalFormatter) paint(color, s string) string {
	if f.NoColor {
		return s
	}
	return color + s + reset
}
