// Package npmlock fabricates resolved dependency manifests for extracted
// node packages. Registry tarballs ship a package.json declaring version
// ranges but no lock file; the scan engine needs exact versions and an
// on-disk node_modules tree to attribute vulnerabilities per package, so
// this package synthesizes both from the declared ranges.
package npmlock

import (
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	manifestName = "package.json"
	lockName     = "package-lock.json"
)

// lockNames are the resolved-manifest files whose presence makes synthesis
// a no-op for that manifest.
var lockNames = []string{lockName, "npm-shrinkwrap.json", "yarn.lock"}

// manifest is the subset of package.json this package reads.
type manifest struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Dependencies map[string]string `json:"dependencies"`
}

// lockPackage is one entry in the synthesized lock file.
type lockPackage struct {
	Name      string `json:"name,omitempty"`
	Version   string `json:"version"`
	Resolved  string `json:"resolved,omitempty"`
	Integrity string `json:"integrity,omitempty"`
}

// lockFile mirrors the npm v2 lock layout: a "packages" section keyed by
// node_modules path plus the legacy "dependencies" map.
type lockFile struct {
	Name            string                 `json:"name"`
	Version         string                 `json:"version"`
	LockfileVersion int                    `json:"lockfileVersion"`
	Requires        bool                   `json:"requires"`
	Packages        map[string]lockPackage `json:"packages"`
	Dependencies    map[string]lockPackage `json:"dependencies"`
}

// Summary reports what a tree-wide synthesis run did.
type Summary struct {
	ManifestsFound int
	LocksWritten   int
	AlreadyLocked  int
	Errors         []error
}

// SynthesizeTree locates every package.json in the extracted tree and
// synthesizes a lock file plus a node_modules skeleton next to each one
// that lacks a resolved manifest. A malformed manifest fails only itself;
// sibling manifests still proceed. Re-running on the same tree is a no-op:
// existing lock files are left byte-identical.
func SynthesizeTree(root string) Summary {
	var sum Summary

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// Synthesized (or shipped) install trees are not roots of
			// their own synthesis.
			if d.Name() == "node_modules" {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() != manifestName {
			return nil
		}
		sum.ManifestsFound++

		dir := filepath.Dir(path)
		if hasLock(dir) {
			sum.AlreadyLocked++
			return nil
		}
		if err := synthesize(dir, path); err != nil {
			sum.Errors = append(sum.Errors, fmt.Errorf("%s: %w", path, err))
			return nil
		}
		sum.LocksWritten++
		return nil
	})
	if err != nil {
		sum.Errors = append(sum.Errors, err)
	}
	return sum
}

func hasLock(dir string) bool {
	for _, name := range lockNames {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

func synthesize(dir, manifestPath string) error {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return err
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("parsing manifest: %w", err)
	}
	if m.Name == "" {
		return errors.New("manifest has no name")
	}
	if m.Version == "" {
		m.Version = "0.0.0"
	}

	lock := lockFile{
		Name:            m.Name,
		Version:         m.Version,
		LockfileVersion: 2,
		Requires:        true,
		Packages:        map[string]lockPackage{},
		Dependencies:    map[string]lockPackage{},
	}
	deps := map[string]string{}
	lock.Packages[""] = lockPackage{Name: m.Name, Version: m.Version}

	for name, rng := range m.Dependencies {
		version := NormalizeRange(rng)
		entry := lockPackage{
			Version:   version,
			Resolved:  resolvedURL(name, version),
			Integrity: placeholderIntegrity(name, version),
		}
		lock.Packages["node_modules/"+name] = entry
		lock.Dependencies[name] = entry
		deps[name] = version
	}

	// json.Marshal sorts map keys, so the lock bytes are deterministic and
	// a re-run over an already-locked tree stays byte-identical.
	out, err := json.MarshalIndent(lock, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, lockName), append(out, '\n'), 0o644); err != nil {
		return err
	}

	// The engine resolves installed packages from on-disk structure, not
	// only from the lock file, so each dependency gets a minimal manifest
	// under node_modules.
	for name, version := range deps {
		pkgDir := filepath.Join(dir, "node_modules", filepath.FromSlash(name))
		if err := os.MkdirAll(pkgDir, 0o755); err != nil {
			return err
		}
		mini, err := json.MarshalIndent(lockPackage{Name: name, Version: version}, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(pkgDir, manifestName), append(mini, '\n'), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// NormalizeRange reduces a declared version range to a single concrete
// version by stripping leading range operators and taking the first token.
// This deliberately preserves the lossy heuristic of the system it
// replaces: compound ranges (">=1.0.0 <2.0.0"), x-wildcards and dist-tags
// are not resolved, only trimmed.
func NormalizeRange(rng string) string {
	v := strings.TrimSpace(rng)
	v = strings.TrimLeft(v, "^~<>= ")
	v = strings.TrimPrefix(v, "v")
	if i := strings.IndexAny(v, " \t"); i >= 0 {
		v = v[:i]
	}
	if v == "" || v == "*" || v == "latest" {
		return "0.0.0"
	}
	return v
}

// resolvedURL builds the registry tarball URL a real resolution would have
// produced. For scoped packages the tarball basename drops the scope.
func resolvedURL(name, version string) string {
	base := name
	if i := strings.LastIndex(name, "/"); i >= 0 {
		base = name[i+1:]
	}
	return fmt.Sprintf("https://registry.npmjs.org/%s/-/%s-%s.tgz", name, base, version)
}

// placeholderIntegrity derives a deterministic integrity value from the
// package identity. It is not the tarball's real digest; it only has to be
// stable and well-formed.
func placeholderIntegrity(name, version string) string {
	sum := sha512.Sum512([]byte(name + "@" + version))
	return "sha512-" + base64.StdEncoding.EncodeToString(sum[:])
}
