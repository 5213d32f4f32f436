package npmlock_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mfaraco/nexscan/internal/npmlock"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte(content), 0o644))
}

func TestSynthesizeSingleDependency(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `{"name":"app","version":"2.0.0","dependencies":{"left-pad":"^1.3.0"}}`)

	sum := npmlock.SynthesizeTree(dir)
	require.Empty(t, sum.Errors)
	require.Equal(t, 1, sum.ManifestsFound)
	require.Equal(t, 1, sum.LocksWritten)

	data, err := os.ReadFile(filepath.Join(dir, "package-lock.json"))
	require.NoError(t, err)

	var lock struct {
		Name         string `json:"name"`
		Dependencies map[string]struct {
			Version   string `json:"version"`
			Resolved  string `json:"resolved"`
			Integrity string `json:"integrity"`
		} `json:"dependencies"`
	}
	require.NoError(t, json.Unmarshal(data, &lock))
	require.Equal(t, "app", lock.Name)
	require.Len(t, lock.Dependencies, 1)
	require.Equal(t, "1.3.0", lock.Dependencies["left-pad"].Version)
	require.NotEmpty(t, lock.Dependencies["left-pad"].Resolved)
	require.NotEmpty(t, lock.Dependencies["left-pad"].Integrity)

	// Exactly one materialized dependency directory with the normalized version.
	var mini struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	}
	miniData, err := os.ReadFile(filepath.Join(dir, "node_modules", "left-pad", "package.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(miniData, &mini))
	require.Equal(t, "left-pad", mini.Name)
	require.Equal(t, "1.3.0", mini.Version)

	entries, err := os.ReadDir(filepath.Join(dir, "node_modules"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestSynthesizeIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `{"name":"app","version":"1.0.0","dependencies":{"lodash":"~4.17.21"}}`)

	sum := npmlock.SynthesizeTree(dir)
	require.Equal(t, 1, sum.LocksWritten)
	first, err := os.ReadFile(filepath.Join(dir, "package-lock.json"))
	require.NoError(t, err)

	sum = npmlock.SynthesizeTree(dir)
	require.Equal(t, 0, sum.LocksWritten)
	require.Equal(t, 1, sum.AlreadyLocked)
	second, err := os.ReadFile(filepath.Join(dir, "package-lock.json"))
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestSynthesizeSkipsLockedManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `{"name":"app","version":"1.0.0"}`)
	existing := []byte(`{"name":"app","lockfileVersion":3}`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package-lock.json"), existing, 0o644))

	sum := npmlock.SynthesizeTree(dir)
	require.Equal(t, 1, sum.AlreadyLocked)
	require.Equal(t, 0, sum.LocksWritten)

	data, err := os.ReadFile(filepath.Join(dir, "package-lock.json"))
	require.NoError(t, err)
	require.Equal(t, existing, data)
}

func TestSynthesizeMalformedManifestDoesNotAbortSiblings(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, filepath.Join(root, "bad"), `{not json`)
	writeManifest(t, filepath.Join(root, "good"), `{"name":"ok","version":"1.0.0","dependencies":{"ms":"2.1.3"}}`)

	sum := npmlock.SynthesizeTree(root)
	require.Len(t, sum.Errors, 1)
	require.Equal(t, 1, sum.LocksWritten)
	require.FileExists(t, filepath.Join(root, "good", "package-lock.json"))
	require.NoFileExists(t, filepath.Join(root, "bad", "package-lock.json"))
}

func TestSynthesizeIgnoresNodeModules(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, `{"name":"app","version":"1.0.0","dependencies":{"ms":"^2.1.3"}}`)

	sum := npmlock.SynthesizeTree(root)
	require.Equal(t, 1, sum.ManifestsFound)

	// The materialized node_modules manifests must not be picked up as new
	// synthesis roots on a second pass.
	sum = npmlock.SynthesizeTree(root)
	require.Equal(t, 1, sum.ManifestsFound)
	require.Equal(t, 1, sum.AlreadyLocked)
}

func TestNormalizeRange(t *testing.T) {
	cases := map[string]string{
		"^1.3.0":         "1.3.0",
		"~4.17.21":       "4.17.21",
		">=2.0.0":        "2.0.0",
		"<3.1.4":         "3.1.4",
		"v5.0.0":         "5.0.0",
		"1.2.3":          "1.2.3",
		">=1.0.0 <2.0.0": "1.0.0",
		"*":              "0.0.0",
		"latest":         "0.0.0",
		"":               "0.0.0",
		"  ^0.5.1  ":     "0.5.1",
	}
	for in, want := range cases {
		require.Equalf(t, want, npmlock.NormalizeRange(in), "NormalizeRange(%q)", in)
	}
}

func TestSynthesizeScopedDependency(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `{"name":"app","version":"1.0.0","dependencies":{"@babel/core":"^7.24.0"}}`)

	sum := npmlock.SynthesizeTree(dir)
	require.Empty(t, sum.Errors)
	require.FileExists(t, filepath.Join(dir, "node_modules", "@babel", "core", "package.json"))
}
