// Package classify maps an asset's name and its repository's format to an
// artifact type via a fixed, ordered rule chain. The evaluation order is a
// versioned contract: the first matching rule wins, and reordering rules
// changes classification outcomes.
package classify

import (
	"strings"

	"github.com/mfaraco/nexscan/internal/types"
)

// rule pairs a predicate with the artifact type it yields.
type rule struct {
	name  string
	match func(name, format string) bool
	typ   types.ArtifactType
}

var checksumExts = []string{".md5", ".sha1", ".sha256", ".sha512"}

// rules is evaluated top to bottom; inputs are already lowercased.
var rules = []rule{
	{"container-format repository", func(_, format string) bool {
		return IsContainerFormat(format)
	}, types.TypeContainerImage},

	{"node-format repository", func(_, format string) bool {
		return format == "node" || format == "npm"
	}, types.TypeNodePackage},

	{"checksum file", func(name, _ string) bool {
		return hasAnySuffix(name, checksumExts...)
	}, types.TypeScript},

	{"java archive", func(name, _ string) bool {
		return hasAnySuffix(name, ".jar", ".war", ".ear")
	}, types.TypeJavaJar},

	{"java source", func(name, _ string) bool {
		return hasAnySuffix(name, ".java", ".class")
	}, types.TypeJavaSource},

	{"maven pom", func(name, _ string) bool {
		return strings.Contains(name, "pom.xml") || strings.HasSuffix(name, ".pom")
	}, types.TypeMavenPOM},

	{"python package", func(name, _ string) bool {
		return hasAnySuffix(name, ".whl", ".egg") ||
			(strings.HasSuffix(name, ".tar.gz") && strings.Contains(name, "python"))
	}, types.TypePythonPackage},

	{"nuget package", func(name, _ string) bool {
		return hasAnySuffix(name, ".nupkg", ".nuspec")
	}, types.TypeNuGetPackage},

	{"node package", func(name, _ string) bool {
		if strings.Contains(name, "package.json") || strings.HasSuffix(name, ".npm") {
			return true
		}
		if hasAnySuffix(name, ".tgz", ".tar.gz") {
			return strings.Contains(name, "node") || strings.Contains(name, "client") ||
				strings.Contains(name, "npm")
		}
		return false
	}, types.TypeNodePackage},

	{"docker manifest outside container repo", func(name, format string) bool {
		return !IsContainerFormat(format) &&
			(strings.Contains(name, "manifest.json") || strings.Contains(name, "config.json"))
	}, types.TypeDockerManifest},

	{"generic archive", func(name, format string) bool {
		if hasAnySuffix(name, ".zip", ".7z", ".rar") {
			return true
		}
		return hasAnySuffix(name, ".tar", ".tar.gz", ".tgz") && !IsContainerFormat(format)
	}, types.TypeArchive},

	{"binary executable", func(name, _ string) bool {
		return hasAnySuffix(name, ".exe", ".dll", ".so", ".dylib")
	}, types.TypeBinaryExecutable},

	{"script", func(name, _ string) bool {
		return hasAnySuffix(name, ".sh", ".bat", ".ps1", ".py", ".js")
	}, types.TypeScript},

	{"configuration", func(name, _ string) bool {
		return hasAnySuffix(name, ".xml", ".json", ".yaml", ".yml", ".properties", ".conf")
	}, types.TypeConfiguration},

	{"sbom", func(name, _ string) bool {
		return strings.Contains(name, ".spdx") ||
			(strings.HasSuffix(name, ".json") && strings.Contains(name, "sbom"))
	}, types.TypeSBOM},

	{"security report", func(name, _ string) bool {
		return strings.Contains(name, "trivy-report") ||
			strings.Contains(name, "scan-report") ||
			strings.Contains(name, ".sarif")
	}, types.TypeSecurityReport},

	{"maven repository fallback", func(_, format string) bool {
		return format == "maven2"
	}, types.TypeMavenArtifact},

	{"nuget repository fallback", func(_, format string) bool {
		return format == "nuget"
	}, types.TypeNuGetPackage},

	{"raw repository fallback", func(_, format string) bool {
		return format == "raw"
	}, types.TypeRawFile},
}

// Classify returns the artifact type for an asset name within a repository
// of the given format. It is a pure, total function: every input yields
// exactly one of the enumerated types, falling back to TypeUnknown. All
// matching is case-insensitive.
func Classify(assetName, repoFormat string) types.ArtifactType {
	name := strings.ToLower(assetName)
	format := strings.ToLower(repoFormat)
	for _, r := range rules {
		if r.match(name, format) {
			return r.typ
		}
	}
	return types.TypeUnknown
}

// IsChecksum reports whether the asset name carries a checksum extension.
// The strategy planner uses this to skip hash sidecar files regardless of
// how they classified.
func IsChecksum(assetName string) bool {
	return hasAnySuffix(strings.ToLower(assetName), checksumExts...)
}

// IsContainerFormat matches both the service's "docker" format tag and the
// generic "container" spelling. Container-format repositories are scanned
// per component by image reference, never per downloaded asset.
func IsContainerFormat(format string) bool {
	return strings.EqualFold(format, "docker") || strings.EqualFold(format, "container")
}

func hasAnySuffix(s string, suffixes ...string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}
