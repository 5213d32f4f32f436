package trivy

// Subset of the Trivy JSON report schema this scanner consumes
// (https://pkg.go.dev/github.com/aquasecurity/trivy/pkg/types).

type Report struct {
	SchemaVersion int      `json:",omitempty"`
	ArtifactName  string   `json:",omitempty"`
	ArtifactType  string   `json:",omitempty"`
	Results       []Result `json:",omitempty"`
}

type Result struct {
	Target          string          `json:",omitempty"`
	Class           string          `json:",omitempty"`
	Type            string          `json:",omitempty"`
	Vulnerabilities []Vulnerability `json:",omitempty"`
}

type Vulnerability struct {
	VulnerabilityID  string   `json:",omitempty"`
	PkgName          string   `json:",omitempty"`
	InstalledVersion string   `json:",omitempty"`
	Severity         string   `json:",omitempty"`
	Title            string   `json:",omitempty"`
	Description      string   `json:",omitempty"`
	FixedVersion     string   `json:",omitempty"`
	References       []string `json:",omitempty"`
}
