// Package vendoring bundles a crate's dependency sources into a portable
// archive and restores them for offline builds.
package vendoring

import "path/filepath"

const (
	// VendorDirName is the directory cargo reads vendored sources from,
	// relative to the workspace root.
	VendorDirName = "vendor"

	fragmentDir  = ".cargo"
	fragmentFile = "config.toml"
)

// FragmentPath returns the workspace-relative path of the config fragment
// that redirects cargo to the vendored sources.
func FragmentPath() string {
	return filepath.Join(fragmentDir, fragmentFile)
}

// ArchivePath resolves an archive path against the workspace root. Absolute
// paths are used as given.
func ArchivePath(workspace, archive string) string {
	if filepath.IsAbs(archive) {
		return archive
	}
	return filepath.Join(workspace, archive)
}
