package session

import (
	"sort"
	"time"

	"github.com/mfaraco/nexscan/internal/types"
)

// Stats is the running accumulator for one scan session. It only grows
// while the session runs and is discarded with the session; nothing is
// persisted between runs.
type Stats struct {
	RepositoriesScanned  int
	ComponentsFound      int
	AssetsScanned        int
	VulnerabilitiesFound int
	ScanErrors           int
	SkippedAssets        int

	bySeverity     map[types.Severity]int
	byArtifactType map[types.ArtifactType]int
	affected       map[string]map[string]struct{} // repository -> component set
}

// NewStats returns an empty accumulator for a new session.
func NewStats() *Stats {
	return &Stats{
		bySeverity:     make(map[types.Severity]int),
		byArtifactType: make(map[types.ArtifactType]int),
		affected:       make(map[string]map[string]struct{}),
	}
}

// CountArtifact tallies one asset under its artifact type. Called once per
// classified asset, whether or not it ends up scanned.
func (s *Stats) CountArtifact(t types.ArtifactType) {
	s.byArtifactType[t]++
}

// CountSkip tallies an asset the planner decided not to scan.
func (s *Stats) CountSkip() {
	s.SkippedAssets++
}

// CountError tallies a download, scan, or parse failure for one asset.
func (s *Stats) CountError() {
	s.ScanErrors++
}

// CountScanned tallies an asset the session committed to scanning. The
// tally happens before the download attempt, so failed downloads count
// here as well as in ScanErrors.
func (s *Stats) CountScanned() {
	s.AssetsScanned++
}

// CountRecords folds one asset's normalized records into the severity
// counters and marks its component as affected within its repository.
// Assets with zero findings leave the affected set untouched.
func (s *Stats) CountRecords(repository, component string, records []types.VulnerabilityRecord) {
	s.VulnerabilitiesFound += len(records)
	for _, rec := range records {
		s.bySeverity[rec.Severity]++
	}
	if len(records) == 0 {
		return
	}
	set, ok := s.affected[repository]
	if !ok {
		set = make(map[string]struct{})
		s.affected[repository] = set
	}
	set[component] = struct{}{}
}

// SeverityCount returns the running count for one severity level.
func (s *Stats) SeverityCount(sev types.Severity) int {
	return s.bySeverity[sev]
}

// Summary is the finalized, report-ready form of the session statistics:
// sets become sorted, deduplicated slices.
type Summary struct {
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	RepositoriesScanned  int `json:"repositories_scanned"`
	ComponentsFound      int `json:"components_found"`
	AssetsScanned        int `json:"assets_scanned"`
	VulnerabilitiesFound int `json:"vulnerabilities_found"`
	ScanErrors           int `json:"scan_errors"`
	SkippedAssets        int `json:"skipped_assets"`

	BySeverity         map[types.Severity]int     `json:"by_severity"`
	ByArtifactType     map[types.ArtifactType]int `json:"by_artifact_type"`
	AffectedComponents map[string][]string        `json:"affected_components"`
}

// Finalize converts the accumulator into a Summary. The accumulator remains
// usable, but a session calls this exactly once, at its end.
func (s *Stats) Finalize(started, finished time.Time) Summary {
	affected := make(map[string][]string, len(s.affected))
	for repo, set := range s.affected {
		names := make([]string, 0, len(set))
		for name := range set {
			names = append(names, name)
		}
		sort.Strings(names)
		affected[repo] = names
	}

	bySeverity := make(map[types.Severity]int, len(s.bySeverity))
	for sev, n := range s.bySeverity {
		bySeverity[sev] = n
	}
	byType := make(map[types.ArtifactType]int, len(s.byArtifactType))
	for t, n := range s.byArtifactType {
		byType[t] = n
	}

	return Summary{
		StartedAt:            started,
		FinishedAt:           finished,
		RepositoriesScanned:  s.RepositoriesScanned,
		ComponentsFound:      s.ComponentsFound,
		AssetsScanned:        s.AssetsScanned,
		VulnerabilitiesFound: s.VulnerabilitiesFound,
		ScanErrors:           s.ScanErrors,
		SkippedAssets:        s.SkippedAssets,
		BySeverity:           bySeverity,
		ByArtifactType:       byType,
		AffectedComponents:   affected,
	}
}
