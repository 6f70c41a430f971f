package ports

import "release-train/internal/types"

// ManifestPort extracts a package descriptor from a package directory.
type ManifestPort interface {
	// Read returns the descriptor for dir. A missing manifest means the
	// directory is not a package here: Read returns ok=false and a nil
	// error. A manifest whose identity cannot be determined (missing or
	// malformed name/version) returns an error; callers skip that
	// directory and continue.
	Read(dir string) (pkg types.Package, ok bool, err error)

	// ManifestName returns the manifest file name this reader handles
	// (package.json, Cargo.toml, pyproject.toml).
	ManifestName() string
}

// WorkspacePort discovers package directories within workspace roots.
type WorkspacePort interface {
	// FindPackageDirs walks root and returns every directory containing
	// a file named manifestName, skipping build and VCS output trees.
	FindPackageDirs(root string, manifestName string) ([]string, error)
}

// TierSourcePort loads a statically declared tier override.
type TierSourcePort interface {
	// ReadTiers returns ordered tiers of package names. An empty path
	// returns (nil, nil): no override.
	ReadTiers(path string) ([][]string, error)
}
