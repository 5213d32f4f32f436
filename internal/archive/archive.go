// Package archive unpacks downloaded artifacts into a working directory so
// the scan engine can walk their contents. Supported formats: zip family
// (.zip/.jar/.war), gzip tar (.tar.gz/.tgz), and plain tar.
package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupported is returned for formats this package cannot unpack. The
// caller falls back to scanning the artifact unextracted.
var ErrUnsupported = errors.New("unsupported archive format")

// Extract unpacks the archive at path into dest, creating dest if needed.
// The destination directory is never deleted here; the scan pipeline owns
// its cleanup.
func Extract(path, dest string) error {
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return fmt.Errorf("creating extraction dir: %w", err)
	}

	lower := strings.ToLower(path)
	switch {
	case hasAnySuffix(lower, ".zip", ".jar", ".war"):
		return extractZip(path, dest)
	case hasAnySuffix(lower, ".tar.gz", ".tgz"):
		return extractTar(path, dest, true)
	case strings.HasSuffix(lower, ".tar"):
		return extractTar(path, dest, false)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupported, filepath.Base(path))
	}
}

func extractZip(path, dest string) error {
	r, err := zip.OpenReader(path)
	if err != nil {
		return fmt.Errorf("opening zip %s: %w", path, err)
	}
	defer r.Close()

	for _, f := range r.File {
		target, err := safeJoin(dest, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("reading %s from zip: %w", f.Name, err)
		}
		err = writeFile(target, rc)
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func extractTar(path, dest string, gzipped bool) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening tar %s: %w", path, err)
	}
	defer f.Close()

	var reader io.Reader = f
	if gzipped {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("reading gzip header of %s: %w", path, err)
		}
		defer gz.Close()
		reader = gz
	}

	tr := tar.NewReader(reader)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar %s: %w", path, err)
		}

		target, err := safeJoin(dest, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := writeFile(target, tr); err != nil {
				return err
			}
		default:
			// Symlinks, devices etc. are not materialized: the scan engine
			// only needs regular files, and links could point outside dest.
		}
	}
}

// safeJoin joins name under dest, rejecting entries that would escape the
// destination (zip-slip).
func safeJoin(dest, name string) (string, error) {
	target := filepath.Join(dest, filepath.Clean(name))
	if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) {
		return "", fmt.Errorf("archive entry escapes destination: %s", name)
	}
	return target, nil
}

func writeFile(target string, r io.Reader) error {
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	_, err = io.Copy(out, r)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return err
}

func hasAnySuffix(s string, suffixes ...string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}
