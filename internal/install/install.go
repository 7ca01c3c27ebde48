// Package install places the built artifact into a system tree and removes
// it again.
package install

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/renameio"

	"github.com/pop-os/tiler-build/internal/logging"
	"github.com/pop-os/tiler-build/internal/profile"
)

// ErrArtifactNotFound reports that the artifact to install has not been
// built. Install never builds implicitly.
var ErrArtifactNotFound = errors.New("build artifact not found")

// Manager installs and removes the workspace's single binary artifact.
type Manager struct {
	// Workspace is the crate workspace root.
	Workspace string
	// TargetDir is cargo's output directory, relative to Workspace.
	TargetDir string
	// Binary is the artifact file name under the profile directory.
	Binary string

	Logger *slog.Logger
}

// InstalledPath returns where the artifact lives under destdir and prefix,
// following the packaging convention of a staging root prepended to the
// install prefix.
func InstalledPath(destdir, prefix, binary string) string {
	return filepath.Join(destdir, prefix, "bin", binary)
}

// Install copies the artifact built under prof into destdir+prefix/bin with
// mode 0755 and returns the installed path. The copy is staged next to the
// destination and moved into place atomically, so no partially written
// artifact is ever visible at the final path.
func (m *Manager) Install(destdir, prefix string, prof profile.Profile) (string, error) {
	logger := logging.Ensure(m.Logger)

	profileDir := prof.Dir(m.TargetDir)
	if !filepath.IsAbs(profileDir) {
		profileDir = filepath.Join(m.Workspace, profileDir)
	}
	src := filepath.Join(profileDir, m.Binary)
	f, err := os.Open(src)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s (run a %s build first)", ErrArtifactNotFound, src, prof.Name())
	}
	if err != nil {
		return "", fmt.Errorf("open build artifact: %w", err)
	}
	defer f.Close()

	dest := InstalledPath(destdir, prefix, m.Binary)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create install directory: %w", err)
	}

	staged, err := renameio.TempFile("", dest)
	if err != nil {
		return "", fmt.Errorf("stage artifact: %w", err)
	}
	defer staged.Cleanup()

	if _, err := io.Copy(staged, f); err != nil {
		return "", fmt.Errorf("copy artifact: %w", err)
	}
	if err := staged.Chmod(0o755); err != nil {
		return "", fmt.Errorf("set artifact mode: %w", err)
	}
	if err := staged.CloseAtomicallyReplace(); err != nil {
		return "", fmt.Errorf("place artifact: %w", err)
	}

	logger.Info("installed artifact", "path", dest, "profile", prof.Name())
	return dest, nil
}

// Uninstall removes the installed artifact. An artifact that was never
// installed is not an error: the removal is reported and skipped so
// uninstall stays idempotent.
func (m *Manager) Uninstall(destdir, prefix string) error {
	logger := logging.Ensure(m.Logger)

	dest := InstalledPath(destdir, prefix, m.Binary)
	err := os.Remove(dest)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("artifact not installed, nothing to remove", "path", dest)
		return nil
	}
	if err != nil {
		return fmt.Errorf("remove installed artifact: %w", err)
	}

	logger.Info("removed installed artifact", "path", dest)
	return nil
}
