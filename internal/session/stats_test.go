package session_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mfaraco/nexscan/internal/session"
	"github.com/mfaraco/nexscan/internal/types"
)

func recordsWithSeverities(sevs ...types.Severity) []types.VulnerabilityRecord {
	records := make([]types.VulnerabilityRecord, len(sevs))
	for i, sev := range sevs {
		records[i] = types.VulnerabilityRecord{Target: "t", Severity: sev}
	}
	return records
}

func TestStatsSeverityAccumulation(t *testing.T) {
	stats := session.NewStats()

	stats.CountRecords("repo-a", "comp-1",
		recordsWithSeverities(types.SeverityHigh, types.SeverityHigh, types.SeverityLow))
	stats.CountRecords("repo-a", "comp-2",
		recordsWithSeverities(types.SeverityCritical))

	require.Equal(t, 2, stats.SeverityCount(types.SeverityHigh))
	require.Equal(t, 1, stats.SeverityCount(types.SeverityLow))
	require.Equal(t, 1, stats.SeverityCount(types.SeverityCritical))
	require.Equal(t, 0, stats.SeverityCount(types.SeverityMedium))
	require.Equal(t, 4, stats.VulnerabilitiesFound)
}

func TestStatsAffectedComponentsSortedAndDeduplicated(t *testing.T) {
	stats := session.NewStats()
	stats.CountRecords("repo-a", "zeta", recordsWithSeverities(types.SeverityLow))
	stats.CountRecords("repo-a", "alpha", recordsWithSeverities(types.SeverityLow))
	stats.CountRecords("repo-a", "zeta", recordsWithSeverities(types.SeverityHigh))
	stats.CountRecords("repo-b", "solo", recordsWithSeverities(types.SeverityMedium))

	sum := stats.Finalize(time.Now(), time.Now())
	require.Equal(t, []string{"alpha", "zeta"}, sum.AffectedComponents["repo-a"])
	require.Equal(t, []string{"solo"}, sum.AffectedComponents["repo-b"])
}

func TestStatsCleanAssetDoesNotAffectComponents(t *testing.T) {
	stats := session.NewStats()
	stats.CountRecords("repo-a", "clean", nil)

	sum := stats.Finalize(time.Now(), time.Now())
	require.Empty(t, sum.AffectedComponents)
	require.Equal(t, 0, sum.VulnerabilitiesFound)
}

func TestStatsCounters(t *testing.T) {
	stats := session.NewStats()
	stats.CountArtifact(types.TypeJavaJar)
	stats.CountArtifact(types.TypeJavaJar)
	stats.CountArtifact(types.TypeScript)
	stats.CountSkip()
	stats.CountError()
	stats.CountScanned()
	stats.CountScanned()

	sum := stats.Finalize(time.Now(), time.Now())
	require.Equal(t, 2, sum.ByArtifactType[types.TypeJavaJar])
	require.Equal(t, 1, sum.ByArtifactType[types.TypeScript])
	require.Equal(t, 1, sum.SkippedAssets)
	require.Equal(t, 1, sum.ScanErrors)
	require.Equal(t, 2, sum.AssetsScanned)
}
