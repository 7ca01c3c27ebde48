package vendoring

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pop-os/tiler-build/internal/logging"
)

// Extractor restores a bundled dependency tree into the workspace so a
// frozen build can run without network access.
type Extractor struct {
	// Workspace is the crate workspace root.
	Workspace string
	// Archive is the archive path, relative to Workspace unless absolute.
	Archive string

	Logger *slog.Logger
}

// Extract unpacks the archive into the workspace, replacing any stale
// vendor tree and installing the config fragment at .cargo/config.toml.
// It returns ErrArchiveMissing when the archive does not exist; callers
// must not fall back to the network in that case.
func (e *Extractor) Extract() error {
	logger := logging.Ensure(e.Logger)

	archivePath := ArchivePath(e.Workspace, e.Archive)
	f, err := os.Open(archivePath)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrArchiveMissing, archivePath)
	}
	if err != nil {
		return fmt.Errorf("open vendor archive: %w", err)
	}
	defer f.Close()

	// Unpack into a staging directory inside the workspace so the final
	// placement is a rename on the same filesystem.
	staging, err := os.MkdirTemp(e.Workspace, ".vendor-extract-*")
	if err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	if err := extractArchive(f, staging); err != nil {
		return fmt.Errorf("unpack vendor archive: %w", err)
	}

	stagedVendor := filepath.Join(staging, VendorDirName)
	stagedFragment := filepath.Join(staging, FragmentPath())
	for _, p := range []string{stagedVendor, stagedFragment} {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("vendor archive is incomplete: %w", err)
		}
	}

	vendorDir := filepath.Join(e.Workspace, VendorDirName)
	if err := os.RemoveAll(vendorDir); err != nil {
		return fmt.Errorf("remove stale vendor directory: %w", err)
	}
	if err := os.Rename(stagedVendor, vendorDir); err != nil {
		return fmt.Errorf("place vendor directory: %w", err)
	}

	if err := os.MkdirAll(filepath.Join(e.Workspace, fragmentDir), 0o755); err != nil {
		return fmt.Errorf("create %s directory: %w", fragmentDir, err)
	}
	fragmentPath := filepath.Join(e.Workspace, FragmentPath())
	if err := os.Rename(stagedFragment, fragmentPath); err != nil {
		return fmt.Errorf("place config fragment: %w", err)
	}

	logger.Info("extracted vendor archive", "archive", e.Archive)
	return nil
}
