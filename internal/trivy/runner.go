// Package trivy wraps the external Trivy CLI: it plans nothing itself, it
// just invokes the engine per a scan directive, parses the structured
// output, and normalizes findings into canonical records.
package trivy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/mfaraco/nexscan/internal/archive"
	"github.com/mfaraco/nexscan/internal/npmlock"
	"github.com/mfaraco/nexscan/internal/strategy"
	"github.com/mfaraco/nexscan/internal/types"
)

// DefaultTimeout bounds each engine invocation.
const DefaultTimeout = 300 * time.Second

// ErrSkippedStrategy is returned when the runner is handed a skip directive.
// The session layer filters those out before download; this guards the
// invariant if a caller doesn't.
var ErrSkippedStrategy = errors.New("strategy marks asset as skipped")

// Runner invokes the Trivy binary.
type Runner struct {
	Path         string        // trivy executable
	TemplatePath string        // template for the human-readable render; empty means the stock contrib/html.tpl beside the executable
	Timeout      time.Duration // per invocation; DefaultTimeout when zero
	Quiet        bool          // pass --quiet to the engine
	Log          *slog.Logger
}

// Output carries both renderings of one scan.
type Output struct {
	Report   *Report // parsed structured output
	Rendered string  // templated human-readable output, may be empty
}

// ScanWithStrategy resolves the directive for one downloaded asset: extracts
// it first when required (falling back to scanning the artifact unextracted
// if the archive is unsupported or corrupt), synthesizes node lock files
// after extraction, runs the engine, and removes the extraction working
// directory on every exit path. At most one asset's footprint is on disk
// at a time; that cleanup guarantee is the main invariant here.
func (r *Runner) ScanWithStrategy(ctx context.Context, path string, st strategy.Strategy, artifactType types.ArtifactType) (*Output, error) {
	if st.Skip {
		return nil, fmt.Errorf("%w: %s", ErrSkippedStrategy, st.Reason)
	}

	scanPath := path
	if st.ExtractFirst {
		extractDir := path + "_extracted"
		defer os.RemoveAll(extractDir)

		if err := archive.Extract(path, extractDir); err != nil {
			r.logger().Warn("extraction failed, scanning artifact as-is",
				"path", path, "err", err)
		} else {
			scanPath = extractDir
			if artifactType == types.TypeNodePackage {
				sum := npmlock.SynthesizeTree(extractDir)
				for _, serr := range sum.Errors {
					r.logger().Warn("manifest synthesis failed", "err", serr)
				}
				if sum.LocksWritten > 0 {
					r.logger().Debug("synthesized lock files",
						"path", path, "locks", sum.LocksWritten)
				}
			}
		}
	}

	return r.Scan(ctx, st.Mode, scanPath)
}

// Scan runs the engine twice against target: once for machine-readable JSON
// and once for the templated render. Both write to temporary files that are
// always removed before returning. A failed or missing template render is
// degraded, not fatal; a failed JSON run fails the scan.
func (r *Runner) Scan(ctx context.Context, mode strategy.Mode, target string) (*Output, error) {
	jsonOut, err := os.CreateTemp("", "nexscan-*.trivy.json")
	if err != nil {
		return nil, fmt.Errorf("creating scan output file: %w", err)
	}
	jsonOut.Close()
	defer os.Remove(jsonOut.Name())

	args := []string{string(mode), "--format", "json", "--output", jsonOut.Name(), "--scanners", "vuln"}
	if r.Quiet {
		args = append(args, "--quiet")
	}
	args = append(args, target)

	if err := r.run(ctx, args); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(jsonOut.Name())
	if err != nil {
		return nil, fmt.Errorf("reading scan output: %w", err)
	}
	out := &Output{}
	if len(strings.TrimSpace(string(data))) > 0 {
		var rep Report
		if err := json.Unmarshal(data, &rep); err != nil {
			return nil, fmt.Errorf("parsing scan output: %w", err)
		}
		out.Report = &rep
	}

	if tpl := r.templatePath(); tpl != "" {
		out.Rendered = r.render(ctx, mode, target, tpl)
	}
	return out, nil
}

// templatePath resolves the render template: the configured path, or the
// engine's stock HTML template shipped next to the binary when present.
func (r *Runner) templatePath() string {
	if r.TemplatePath != "" {
		return r.TemplatePath
	}
	tpl := filepath.Join(filepath.Dir(r.Path), "contrib", "html.tpl")
	if _, err := os.Stat(tpl); err == nil {
		return tpl
	}
	return ""
}

// render produces the templated human-readable output. Failures only log.
func (r *Runner) render(ctx context.Context, mode strategy.Mode, target, tpl string) string {
	tplOut, err := os.CreateTemp("", "nexscan-*.trivy.html")
	if err != nil {
		r.logger().Warn("creating template output file", "err", err)
		return ""
	}
	tplOut.Close()
	defer os.Remove(tplOut.Name())

	args := []string{string(mode), "--format", "template", "--template", "@" + tpl,
		"--output", tplOut.Name()}
	if r.Quiet {
		args = append(args, "--quiet")
	}
	args = append(args, target)

	if err := r.run(ctx, args); err != nil {
		r.logger().Warn("template render failed", "target", target, "err", err)
		return ""
	}
	data, err := os.ReadFile(tplOut.Name())
	if err != nil {
		r.logger().Warn("reading template output", "err", err)
		return ""
	}
	return string(data)
}

// run executes one engine invocation under the per-invocation timeout.
func (r *Runner) run(ctx context.Context, args []string) error {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.Path, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return nil
	}
	if runCtx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("scan timed out after %v", timeout)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return fmt.Errorf("scan engine exited with code %d: %s",
			exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
	}
	return fmt.Errorf("invoking scan engine: %w", err)
}

func (r *Runner) logger() *slog.Logger {
	if r.Log != nil {
		return r.Log
	}
	return slog.Default()
}
