package vendoring

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/renameio"

	"github.com/pop-os/tiler-build/internal/logging"
)

// VendorSource materializes dependency sources on disk. It is implemented
// by the cargo toolchain wrapper.
type VendorSource interface {
	// Vendor downloads all dependencies into dir, relative to the
	// workspace, and returns the config fragment describing them.
	Vendor(ctx context.Context, dir string) ([]byte, error)
}

// Bundler packs a freshly vendored dependency tree into a portable archive.
type Bundler struct {
	// Workspace is the crate workspace root.
	Workspace string
	// Archive is the archive path, relative to Workspace unless absolute.
	Archive string

	Source VendorSource
	Logger *slog.Logger
}

// Bundle vendors the workspace's dependencies and replaces the archive
// atomically. The loose vendor tree is removed afterwards; the archive is
// the durable artifact and carries the config fragment alongside the
// sources.
func (b *Bundler) Bundle(ctx context.Context) error {
	logger := logging.Ensure(b.Logger)

	vendorDir := filepath.Join(b.Workspace, VendorDirName)
	if err := os.RemoveAll(vendorDir); err != nil {
		return fmt.Errorf("remove stale vendor directory: %w", err)
	}

	raw, err := b.Source.Vendor(ctx, VendorDirName)
	if err != nil {
		return err
	}
	fragment, err := rewriteFragment(raw)
	if err != nil {
		return err
	}
	if _, err := os.Stat(vendorDir); err != nil {
		return fmt.Errorf("vendor directory missing after cargo vendor: %w", err)
	}

	archivePath := ArchivePath(b.Workspace, b.Archive)
	if err := os.MkdirAll(filepath.Dir(archivePath), 0o755); err != nil {
		return fmt.Errorf("create archive directory: %w", err)
	}

	staged, err := renameio.TempFile("", archivePath)
	if err != nil {
		return fmt.Errorf("stage vendor archive: %w", err)
	}
	defer staged.Cleanup()

	if err := writeArchive(staged, vendorDir, fragment); err != nil {
		return err
	}
	if err := staged.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("replace vendor archive: %w", err)
	}

	if err := os.RemoveAll(vendorDir); err != nil {
		return fmt.Errorf("remove bundled vendor directory: %w", err)
	}

	if info, err := os.Stat(archivePath); err == nil {
		logger.Info("bundled vendor archive", "archive", b.Archive, "size", info.Size())
	} else {
		logger.Info("bundled vendor archive", "archive", b.Archive)
	}
	return nil
}
