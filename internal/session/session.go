// Package session orchestrates one scan run: it walks every hosted
// repository, classifies each asset, plans its scan, and drives the
// download-extract-scan-normalize pipeline strictly one asset at a time.
// At most one asset's downloaded bytes (plus its extracted tree) are on
// disk at any moment; both are deleted before the next asset starts.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mfaraco/nexscan/internal/classify"
	"github.com/mfaraco/nexscan/internal/nexus"
	"github.com/mfaraco/nexscan/internal/strategy"
	"github.com/mfaraco/nexscan/internal/trivy"
	"github.com/mfaraco/nexscan/internal/types"
)

// Session runs one full scan over a repository service.
type Session struct {
	client *nexus.Client
	runner *trivy.Runner
	log    *slog.Logger

	outputDir     string
	retainReports bool

	stats   *Stats
	records []types.VulnerabilityRecord
}

// Options configures a Session.
type Options struct {
	OutputDir     string // reports and the per-asset download scratch dir live here
	RetainReports bool   // keep per-asset rendered engine reports
	Log           *slog.Logger
}

// New creates a Session. The accumulator starts empty; Sessions are
// single-use.
func New(client *nexus.Client, runner *trivy.Runner, opts Options) *Session {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = "./vulnerability_reports"
	}
	return &Session{
		client:        client,
		runner:        runner,
		log:           log,
		outputDir:     outputDir,
		retainReports: opts.RetainReports,
		stats:         NewStats(),
	}
}

// Result is what a finished session hands to the report writers.
type Result struct {
	Records []types.VulnerabilityRecord `json:"vulnerabilities"`
	Summary Summary                     `json:"statistics"`
}

// Run executes the session. Per-asset failures are logged and counted but
// never abort the run; only an unreachable repository service is fatal.
func (s *Session) Run(ctx context.Context) (*Result, error) {
	started := time.Now()

	if err := s.client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("repository service unreachable: %w", err)
	}

	repos, err := s.client.Repositories(ctx)
	if err != nil {
		return nil, err
	}
	s.log.Info("starting scan", "repositories", len(repos))

	tempDir := filepath.Join(s.outputDir, "temp")
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating scratch dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	for _, repo := range repos {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.scanRepository(ctx, repo, tempDir)
	}

	return &Result{
		Records: s.records,
		Summary: s.stats.Finalize(started, time.Now()),
	}, nil
}

func (s *Session) scanRepository(ctx context.Context, repo types.Repository, tempDir string) {
	s.log.Info("scanning repository", "repository", repo.Name, "format", repo.Format)
	s.stats.RepositoriesScanned++

	components, err := s.client.Components(ctx, repo.Name)
	if err != nil {
		s.log.Error("listing components failed", "repository", repo.Name, "err", err)
		s.stats.CountError()
		return
	}
	s.stats.ComponentsFound += len(components)

	for _, component := range components {
		if ctx.Err() != nil {
			return
		}
		if classify.IsContainerFormat(repo.Format) {
			s.scanImageComponent(ctx, repo, component)
			continue
		}
		for _, asset := range component.Assets {
			if ctx.Err() != nil {
				return
			}
			s.processAsset(ctx, repo, component, asset, tempDir)
		}
	}
}

// scanImageComponent scans one component of a container-format repository.
// Registry blobs are never downloaded; the engine is handed an image
// reference and pulls the layers itself. The reference layout varies with
// registry configuration, so candidates are tried most-qualified first and
// the first one yielding a parsed report wins.
func (s *Session) scanImageComponent(ctx context.Context, repo types.Repository, component types.Component) {
	version := component.Version
	if version == "" {
		version = "unknown"
	}
	s.stats.CountArtifact(types.TypeContainerImage)

	host := s.client.Host()
	refs := []string{
		fmt.Sprintf("%s/%s/%s:%s", host, repo.Name, component.Name, version),
		fmt.Sprintf("%s/%s:%s", host, component.Name, version),
		fmt.Sprintf("%s:%s", component.Name, version),
	}

	s.log.Info("scanning container image", "component", component.Name, "version", version)
	for _, ref := range refs {
		out, err := s.runner.Scan(ctx, strategy.ModeImage, ref)
		if err != nil || out.Report == nil {
			s.log.Debug("image reference not scannable", "reference", ref, "err", err)
			continue
		}
		s.stats.CountScanned()

		records := trivy.Normalize(out.Report)
		for i := range records {
			records[i].Repository = repo.Name
			records[i].Component = component.Name
			records[i].AssetPath = ref
			records[i].ArtifactType = types.TypeContainerImage
		}
		s.stats.CountRecords(repo.Name, component.Name, records)
		s.records = append(s.records, records...)

		if len(records) > 0 {
			s.log.Info("found vulnerabilities", "image", ref, "count", len(records))
		}
		if s.retainReports && out.Rendered != "" {
			s.writeRenderedReport(component.Name, "docker_image_"+version, out.Rendered)
		}
		return
	}

	s.log.Warn("container image not scannable under any reference",
		"component", component.Name, "version", version)
	s.stats.CountError()
}

// processAsset runs the full per-asset pipeline. Every error is handled
// here: logged, counted, and the session moves on to the next asset.
func (s *Session) processAsset(ctx context.Context, repo types.Repository, component types.Component, asset types.Asset, tempDir string) {
	name := asset.Name()
	if asset.DownloadURL == "" {
		return
	}

	artifactType := classify.Classify(name, repo.Format)
	s.stats.CountArtifact(artifactType)

	st := strategy.Plan(artifactType, name, repo.Format)
	if st.Skip {
		s.log.Info("skipping asset", "asset", name, "type", artifactType, "reason", st.Reason)
		s.stats.CountSkip()
		return
	}

	s.log.Info("scanning asset", "asset", name, "type", artifactType, "strategy", st.Reason)
	// Counted as scanned once the planner commits to it; a failed download
	// still lands in this bucket, alongside its error.
	s.stats.CountScanned()

	localPath := filepath.Join(tempDir, sanitizeFilename(name))
	defer os.Remove(localPath)

	if err := s.client.Download(ctx, asset.DownloadURL, localPath); err != nil {
		s.log.Error("download failed", "asset", name, "err", err)
		s.stats.CountError()
		return
	}

	out, err := s.runner.ScanWithStrategy(ctx, localPath, st, artifactType)
	if err != nil {
		s.log.Error("scan failed", "asset", name, "err", err)
		s.stats.CountError()
		return
	}
	if out.Report == nil {
		s.log.Error("scan produced no result", "asset", name)
		s.stats.CountError()
		return
	}

	records := trivy.Normalize(out.Report)
	for i := range records {
		records[i].Repository = repo.Name
		records[i].Component = component.Name
		records[i].AssetPath = name
		records[i].ArtifactType = artifactType
	}
	s.stats.CountRecords(repo.Name, component.Name, records)
	s.records = append(s.records, records...)

	if len(records) > 0 {
		s.log.Info("found vulnerabilities", "asset", name, "count", len(records))
	}
	if s.retainReports && out.Rendered != "" {
		s.writeRenderedReport(component.Name, name, out.Rendered)
	}
}

// writeRenderedReport keeps the engine's human-readable render for one
// asset. Failures only log; the record stream is the source of truth.
func (s *Session) writeRenderedReport(component, asset, rendered string) {
	dir := filepath.Join(s.outputDir, "individual_reports")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.log.Warn("creating report dir", "err", err)
		return
	}
	name := fmt.Sprintf("%s_%s_report.html", sanitizeFilename(component), sanitizeFilename(asset))
	if err := os.WriteFile(filepath.Join(dir, name), []byte(rendered), 0o644); err != nil {
		s.log.Warn("writing rendered report", "asset", asset, "err", err)
	}
}

// sanitizeFilename flattens an asset path into a single file name.
func sanitizeFilename(name string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_")
	return r.Replace(name)
}
