// Package strategy decides how the scan engine is invoked for a classified
// asset. Strategies are built only through the constructors below, so every
// value in flight is one of a closed set of shapes: skip, filesystem scan
// (optionally extracted first), image scan, or config scan.
package strategy

import (
	"strings"

	"github.com/mfaraco/nexscan/internal/classify"
	"github.com/mfaraco/nexscan/internal/types"
)

// Mode selects the scan engine subcommand.
type Mode string

const (
	ModeFilesystem Mode = "fs"
	ModeImage      Mode = "image"
	ModeConfig     Mode = "config"
)

// Strategy is the directive telling the executor how to scan one asset.
// Never mutated after creation.
type Strategy struct {
	Mode          Mode   `json:"mode"`
	ExtractFirst  bool   `json:"extract_before_scan"`
	ScanAsArchive bool   `json:"scan_as_archive"`
	Skip          bool   `json:"skip"`
	Reason        string `json:"reason"`
}

// Skip returns a strategy that bypasses the executor entirely.
func Skip(reason string) Strategy {
	return Strategy{Skip: true, Reason: reason}
}

// Filesystem returns a filesystem-mode scan directive.
func Filesystem(extractFirst, scanAsArchive bool, reason string) Strategy {
	return Strategy{
		Mode:          ModeFilesystem,
		ExtractFirst:  extractFirst,
		ScanAsArchive: scanAsArchive,
		Reason:        reason,
	}
}

// Image returns an image-mode scan directive. The engine walks container
// layers itself, so there is never a pre-extraction step.
func Image(reason string) Strategy {
	return Strategy{Mode: ModeImage, Reason: reason}
}

// ConfigScan returns a config-mode scan directive for structured files.
func ConfigScan(reason string) Strategy {
	return Strategy{Mode: ModeConfig, Reason: reason}
}

// Plan maps an artifact type to its scan directive. Total function: every
// input yields a valid strategy, with an explicit best-effort fallback for
// unrecognized types.
func Plan(t types.ArtifactType, assetName, repoFormat string) Strategy {
	// Hash sidecars are never scannable, whatever they classified as and
	// whatever repository they sit in.
	if classify.IsChecksum(assetName) {
		return Skip("checksum file - not scannable")
	}

	switch t {
	case types.TypeJavaJar, types.TypeMavenArtifact:
		return Filesystem(false, true, "java archive - scan for dependencies and vulnerabilities")

	case types.TypeContainerImage:
		return Image("container image - scan with engine image scanner")

	case types.TypePythonPackage:
		return Filesystem(false, true, "python package - scan for dependencies")

	case types.TypeNodePackage:
		// Tarballs are extracted so a manifest can be located (and a lock
		// file synthesized when missing); loose manifests scan in place.
		name := strings.ToLower(assetName)
		if strings.HasSuffix(name, ".tgz") || strings.HasSuffix(name, ".tar.gz") {
			return Filesystem(true, false, "node package tarball - extract and scan manifest")
		}
		return Filesystem(false, true, "node package - scan for dependencies")

	case types.TypeNuGetPackage:
		return Filesystem(false, true, "nuget package - scan for dependencies")

	case types.TypeArchive, types.TypeSourceCode:
		return Filesystem(true, false, "archive/source code - extract and scan contents")

	case types.TypeConfiguration, types.TypeSBOM:
		return ConfigScan("configuration/sbom file - scan for misconfigurations")

	case types.TypeSecurityReport:
		return Skip("existing security report - skip to avoid recursive scanning of scan output")
	}

	if classify.IsContainerFormat(repoFormat) {
		return Image("container-format repository - scan with engine image scanner")
	}

	return Filesystem(false, false, "unrecognized artifact type - best-effort filesystem scan")
}
