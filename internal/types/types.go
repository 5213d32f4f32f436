// Package types defines shared data structures (Severity, ArtifactType,
// VulnerabilityRecord, repository descriptors) used across the classify,
// strategy, trivy, and session packages to prevent import cycles.
package types

import (
	"fmt"
	"strings"
	"time"
)

// Severity represents the risk level of a vulnerability record.
type Severity int

const (
	SeverityUnknown Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "CRITICAL"
	case SeverityHigh:
		return "HIGH"
	case SeverityMedium:
		return "MEDIUM"
	case SeverityLow:
		return "LOW"
	default:
		return "UNKNOWN"
	}
}

// MarshalText makes Severity serialize as its name in JSON and CSV output.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ParseSeverity converts a string to a Severity level. The empty string and
// "UNKNOWN" parse to SeverityUnknown without error.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "CRITICAL":
		return SeverityCritical, nil
	case "HIGH":
		return SeverityHigh, nil
	case "MEDIUM":
		return SeverityMedium, nil
	case "LOW":
		return SeverityLow, nil
	case "UNKNOWN", "":
		return SeverityUnknown, nil
	default:
		return SeverityUnknown, fmt.Errorf("unknown severity: %q", s)
	}
}

// Severities lists all levels from most to least severe, for stable
// iteration in reports.
var Severities = []Severity{
	SeverityCritical,
	SeverityHigh,
	SeverityMedium,
	SeverityLow,
	SeverityUnknown,
}

// ArtifactType is the classification tag assigned to an asset. Exactly one
// value per asset, computed deterministically from the asset name and the
// owning repository's format.
type ArtifactType string

const (
	TypeJavaJar          ArtifactType = "java_jar"
	TypeJavaSource       ArtifactType = "java_source"
	TypeMavenPOM         ArtifactType = "maven_pom"
	TypePythonPackage    ArtifactType = "python_package"
	TypeNodePackage      ArtifactType = "node_package"
	TypeNuGetPackage     ArtifactType = "nuget_package"
	TypeContainerImage   ArtifactType = "container_image"
	TypeDockerManifest   ArtifactType = "docker_manifest"
	TypeArchive          ArtifactType = "archive"
	TypeSourceCode       ArtifactType = "source_code"
	TypeBinaryExecutable ArtifactType = "binary_executable"
	TypeScript           ArtifactType = "script"
	TypeConfiguration    ArtifactType = "configuration"
	TypeSBOM             ArtifactType = "sbom"
	TypeSecurityReport   ArtifactType = "security_report"
	TypeMavenArtifact    ArtifactType = "maven_artifact"
	TypeRawFile          ArtifactType = "raw_file"
	TypeUnknown          ArtifactType = "unknown"
)

// Repository describes one repository of the artifact service. Read-only
// input to classification.
type Repository struct {
	Name   string `json:"name"`
	Format string `json:"format"`
	Type   string `json:"type"` // hosted, proxy, or group
}

// Asset is one downloadable file belonging to a component. Immutable once
// fetched from the repository service; identity is Path within its component.
type Asset struct {
	Path         string    `json:"path"`
	DownloadURL  string    `json:"downloadUrl"`
	FileSize     int64     `json:"fileSize"`
	LastModified time.Time `json:"lastModified"`
}

// Name returns the asset's path for display and classification, falling
// back to the download URL when the service omits the path.
func (a Asset) Name() string {
	if a.Path != "" {
		return a.Path
	}
	return a.DownloadURL
}

// Component is a named, versioned unit grouping one or more assets.
type Component struct {
	Name    string  `json:"name"`
	Version string  `json:"version"`
	Assets  []Asset `json:"assets"`
}

// VulnerabilityRecord is one normalized finding extracted from scan engine
// output: one package, one known issue. Produced only by the normalizer.
// Absent engine fields are empty strings, never null.
type VulnerabilityRecord struct {
	Target           string   `json:"target"`
	VulnerabilityID  string   `json:"vulnerability_id"`
	PkgName          string   `json:"pkg_name"`
	InstalledVersion string   `json:"installed_version"`
	Severity         Severity `json:"severity"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	FixedVersion     string   `json:"fixed_version"`
	References       []string `json:"references"`

	// Session metadata attached after normalization, before reporting.
	Repository   string       `json:"repository,omitempty"`
	Component    string       `json:"component,omitempty"`
	AssetPath    string       `json:"asset,omitempty"`
	ArtifactType ArtifactType `json:"artifact_type,omitempty"`
}
