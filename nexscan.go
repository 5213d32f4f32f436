// Package nexscan provides a public API for scanning the contents of a
// Nexus-style binary-artifact repository for known vulnerabilities using
// the Trivy scan engine.
//
// This is the library entry point. For the CLI tool, see cmd/nexscan/.
package nexscan

import (
	"context"
	"log/slog"

	"github.com/mfaraco/nexscan/internal/config"
	"github.com/mfaraco/nexscan/internal/nexus"
	"github.com/mfaraco/nexscan/internal/session"
	"github.com/mfaraco/nexscan/internal/trivy"
	"github.com/mfaraco/nexscan/internal/types"
)

// Re-export core types from internal packages so consumers don't need to
// import internal paths.
type (
	Severity            = types.Severity
	ArtifactType        = types.ArtifactType
	Asset               = types.Asset
	Repository          = types.Repository
	VulnerabilityRecord = types.VulnerabilityRecord
	Config              = config.Config
	Result              = session.Result
	Summary             = session.Summary
)

const (
	SeverityUnknown  = types.SeverityUnknown
	SeverityLow      = types.SeverityLow
	SeverityMedium   = types.SeverityMedium
	SeverityHigh     = types.SeverityHigh
	SeverityCritical = types.SeverityCritical
)

// LoadConfig reads .nexscan.yml from dir and applies environment overrides.
func LoadConfig(dir string) (Config, error) {
	return config.Load(dir)
}

// Run executes one full scan session: every hosted repository, every
// component, every asset, one at a time. Per-asset failures are counted in
// the summary; only an unreachable repository service returns an error.
func Run(ctx context.Context, cfg Config, log *slog.Logger) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := nexus.New(cfg.URL, cfg.Username, cfg.Password)
	runner := &trivy.Runner{
		Path:         cfg.TrivyPath,
		TemplatePath: cfg.TrivyTemplate,
		Quiet:        !cfg.Debug,
		Log:          log,
	}

	s := session.New(client, runner, session.Options{
		OutputDir:     cfg.OutputDir,
		RetainReports: cfg.RetainReports,
		Log:           log,
	})
	return s.Run(ctx)
}
