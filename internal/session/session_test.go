package session_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mfaraco/nexscan/internal/nexus"
	"github.com/mfaraco/nexscan/internal/session"
	"github.com/mfaraco/nexscan/internal/trivy"
	"github.com/mfaraco/nexscan/internal/types"
)

// fakeService serves a minimal repository API: one maven repository with
// one component holding a jar, its checksum sidecar, and a missing asset.
func fakeService(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/service/rest/v1/status":
			w.WriteHeader(http.StatusOK)
		case "/service/rest/v1/repositories":
			json.NewEncoder(w).Encode([]map[string]string{
				{"name": "maven-releases", "format": "maven2", "type": "hosted"},
				{"name": "maven-central", "format": "maven2", "type": "proxy"},
			})
		case "/service/rest/v1/components":
			json.NewEncoder(w).Encode(map[string]any{
				"items": []map[string]any{{
					"name":    "com.example:libfoo",
					"version": "1.2.3",
					"assets": []map[string]any{
						{"path": "com/example/libfoo/1.2.3/libfoo-1.2.3.jar", "downloadUrl": srv.URL + "/repo/libfoo-1.2.3.jar"},
						{"path": "com/example/libfoo/1.2.3/libfoo-1.2.3.jar.sha256", "downloadUrl": srv.URL + "/repo/libfoo-1.2.3.jar.sha256"},
						{"path": "com/example/libfoo/1.2.3/missing.jar", "downloadUrl": srv.URL + "/repo/missing.jar"},
					},
				}},
			})
		case "/repo/libfoo-1.2.3.jar":
			w.Write([]byte("jar-bytes"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func fakeEngine(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake engine script requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "trivy")
	script := `#!/bin/sh
out=""
prev=""
for a in "$@"; do
  [ "$prev" = "--output" ] && out="$a"
  prev="$a"
done
printf '%s' '{"Results":[{"Target":"libfoo-1.2.3.jar","Vulnerabilities":[{"VulnerabilityID":"CVE-2024-0001","PkgName":"log4j-core","InstalledVersion":"2.14.0","Severity":"CRITICAL","FixedVersion":"2.17.1"}]}]}' > "$out"
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestSessionRun(t *testing.T) {
	srv := fakeService(t)
	outputDir := t.TempDir()

	s := session.New(
		nexus.New(srv.URL, "admin", "secret"),
		&trivy.Runner{Path: fakeEngine(t), Quiet: true},
		session.Options{
			OutputDir: outputDir,
			Log:       slog.New(slog.NewTextHandler(os.Stderr, nil)),
		},
	)

	result, err := s.Run(context.Background())
	require.NoError(t, err)

	// Only the hosted repository is walked.
	require.Equal(t, 1, result.Summary.RepositoriesScanned)
	require.Equal(t, 1, result.Summary.ComponentsFound)

	// jar and missing asset both committed to scanning, checksum skipped;
	// the failed download counts as scanned and as an error.
	require.Equal(t, 2, result.Summary.AssetsScanned)
	require.Equal(t, 1, result.Summary.SkippedAssets)
	require.Equal(t, 1, result.Summary.ScanErrors)

	require.Len(t, result.Records, 1)
	rec := result.Records[0]
	require.Equal(t, "CVE-2024-0001", rec.VulnerabilityID)
	require.Equal(t, types.SeverityCritical, rec.Severity)
	require.Equal(t, "maven-releases", rec.Repository)
	require.Equal(t, "com.example:libfoo", rec.Component)
	require.Equal(t, types.TypeJavaJar, rec.ArtifactType)

	require.Equal(t, []string{"com.example:libfoo"}, result.Summary.AffectedComponents["maven-releases"])
	require.Equal(t, 1, result.Summary.BySeverity[types.SeverityCritical])

	// The per-asset scratch directory is gone after the run.
	require.NoDirExists(t, filepath.Join(outputDir, "temp"))
}

func TestSessionScansContainerRepositoryByImageReference(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake engine script requires a POSIX shell")
	}

	var downloads atomic.Int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/service/rest/v1/status":
			w.WriteHeader(http.StatusOK)
		case "/service/rest/v1/repositories":
			json.NewEncoder(w).Encode([]map[string]string{
				{"name": "docker-hosted", "format": "docker", "type": "hosted"},
			})
		case "/service/rest/v1/components":
			json.NewEncoder(w).Encode(map[string]any{
				"items": []map[string]any{{
					"name":    "myapp",
					"version": "1.0",
					"assets": []map[string]any{
						{"path": "v2/myapp/manifests/1.0", "downloadUrl": srv.URL + "/repository/docker-hosted/v2/myapp/manifests/1.0"},
					},
				}},
			})
		default:
			downloads.Add(1)
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	argsFile := filepath.Join(dir, "seen-args")
	engine := filepath.Join(dir, "trivy")
	script := `#!/bin/sh
echo "$@" >> ` + argsFile + `
out=""
prev=""
for a in "$@"; do
  [ "$prev" = "--output" ] && out="$a"
  prev="$a"
done
printf '%s' '{"Results":[{"Target":"myapp:1.0","Vulnerabilities":[{"VulnerabilityID":"CVE-2024-0002","PkgName":"openssl","InstalledVersion":"3.0.1","Severity":"HIGH"}]}]}' > "$out"
`
	require.NoError(t, os.WriteFile(engine, []byte(script), 0o755))

	s := session.New(
		nexus.New(srv.URL, "admin", "secret"),
		&trivy.Runner{Path: engine},
		session.Options{OutputDir: t.TempDir()},
	)

	result, err := s.Run(context.Background())
	require.NoError(t, err)

	// The engine was handed an image reference, not a downloaded blob, and
	// no registry asset was fetched.
	host := strings.TrimPrefix(srv.URL, "http://")
	wantRef := host + "/docker-hosted/myapp:1.0"
	args, readErr := os.ReadFile(argsFile)
	require.NoError(t, readErr)
	require.Contains(t, string(args), "image ")
	require.True(t, strings.HasSuffix(strings.TrimSpace(string(args)), " "+wantRef))
	require.Equal(t, int32(0), downloads.Load())

	require.Equal(t, 1, result.Summary.AssetsScanned)
	require.Equal(t, 0, result.Summary.ScanErrors)
	require.Equal(t, 1, result.Summary.ByArtifactType[types.TypeContainerImage])

	require.Len(t, result.Records, 1)
	rec := result.Records[0]
	require.Equal(t, "CVE-2024-0002", rec.VulnerabilityID)
	require.Equal(t, "docker-hosted", rec.Repository)
	require.Equal(t, "myapp", rec.Component)
	require.Equal(t, wantRef, rec.AssetPath)
	require.Equal(t, types.TypeContainerImage, rec.ArtifactType)
}

func TestSessionContainerImageFallsThroughReferences(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake engine script requires a POSIX shell")
	}

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/service/rest/v1/status":
			w.WriteHeader(http.StatusOK)
		case "/service/rest/v1/repositories":
			json.NewEncoder(w).Encode([]map[string]string{
				{"name": "docker-hosted", "format": "docker", "type": "hosted"},
			})
		case "/service/rest/v1/components":
			json.NewEncoder(w).Encode(map[string]any{
				"items": []map[string]any{{"name": "myapp", "version": "1.0"}},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	// Engine that rejects every reference except the bare name:version.
	dir := t.TempDir()
	engine := filepath.Join(dir, "trivy")
	script := `#!/bin/sh
out=""
prev=""
for a in "$@"; do
  [ "$prev" = "--output" ] && out="$a"
  prev="$a"
done
case "$prev" in
  */*) exit 1 ;;
esac
printf '%s' '{"Results":[]}' > "$out"
`
	require.NoError(t, os.WriteFile(engine, []byte(script), 0o755))

	s := session.New(
		nexus.New(srv.URL, "admin", "secret"),
		&trivy.Runner{Path: engine},
		session.Options{OutputDir: t.TempDir()},
	)

	result, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.Summary.AssetsScanned)
	require.Equal(t, 0, result.Summary.ScanErrors)
	require.Empty(t, result.Records)
}

func TestSessionUnreachableServiceIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := session.New(
		nexus.New(srv.URL, "admin", "secret"),
		&trivy.Runner{Path: "/nonexistent"},
		session.Options{OutputDir: t.TempDir()},
	)

	_, err := s.Run(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "unreachable")
}

func TestSessionEngineFailureDoesNotAbort(t *testing.T) {
	srv := fakeService(t)

	failing := filepath.Join(t.TempDir(), "trivy")
	require.NoError(t, os.WriteFile(failing, []byte("#!/bin/sh\nexit 1\n"), 0o755))

	s := session.New(
		nexus.New(srv.URL, "admin", "secret"),
		&trivy.Runner{Path: failing},
		session.Options{OutputDir: t.TempDir()},
	)

	result, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Empty(t, result.Records)
	// jar scan failed + missing asset download failed.
	require.Equal(t, 2, result.Summary.ScanErrors)
}
