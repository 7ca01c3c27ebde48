// Package build sequences profile selection, offline source extraction, and
// toolchain invocation into one pipeline per command.
package build

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pop-os/tiler-build/internal/cargo"
	"github.com/pop-os/tiler-build/internal/logging"
	"github.com/pop-os/tiler-build/internal/profile"
	"github.com/pop-os/tiler-build/internal/vendoring"
)

// Toolchain drives cargo against the workspace.
type Toolchain interface {
	Build(ctx context.Context, opts cargo.BuildOptions) error
	Clean(ctx context.Context) error
}

// Extractor restores bundled dependency sources into the workspace ahead of
// a frozen build.
type Extractor interface {
	Extract() error
}

// Service runs the build pipeline for one workspace.
type Service struct {
	// Workspace is the crate workspace root.
	Workspace string
	// Package is the crate built and named on the cargo command line.
	Package string
	// Binary is the artifact file name under the profile directory.
	Binary string
	// TargetDir is cargo's output directory, relative to Workspace.
	TargetDir string
	// Archive is the vendor archive path, relative to Workspace unless
	// absolute.
	Archive string

	Toolchain Toolchain
	Extractor Extractor
	Logger    *slog.Logger
}

// Request selects how one build runs.
type Request struct {
	// Debug selects the debug profile instead of the default release one.
	Debug bool
	// Frozen forbids network access: dependencies come from the extracted
	// vendor archive or the build fails.
	Frozen bool
}

// Run executes one build and returns the path of the produced artifact.
// In frozen mode the vendor archive is extracted first and the build never
// starts unless the vendored sources are in place.
func (s *Service) Run(ctx context.Context, req Request) (string, error) {
	prof := profile.FromDebugFlag(req.Debug)
	logger := logging.Ensure(s.Logger).With("package", s.Package, "profile", prof.Name())

	if req.Frozen {
		if err := s.Extractor.Extract(); err != nil {
			return "", err
		}
		if err := s.verifyVendorTree(); err != nil {
			return "", err
		}
		logger.Info("vendored sources in place")
	}

	logger.Info("starting build", "frozen", req.Frozen)
	opts := cargo.BuildOptions{Package: s.Package, Profile: prof, Frozen: req.Frozen}
	if err := s.Toolchain.Build(ctx, opts); err != nil {
		return "", err
	}

	artifact := filepath.Join(s.path(prof.Dir(s.TargetDir)), s.Binary)
	logger.Info("build completed", "artifact", artifact)
	return artifact, nil
}

// Clean removes build outputs through the toolchain. Vendored sources and
// the archive are left alone.
func (s *Service) Clean(ctx context.Context) error {
	logging.Ensure(s.Logger).Info("removing build outputs", "target", s.TargetDir)
	return s.Toolchain.Clean(ctx)
}

// Distclean removes everything a build or vendor run can produce: build
// outputs, the loose vendor tree, the config fragment, and the archive. It
// is plain filesystem cleanup and never invokes the toolchain, so it works
// even where cargo is absent.
func (s *Service) Distclean() error {
	for _, p := range []string{
		s.path(s.TargetDir),
		filepath.Join(s.Workspace, vendoring.VendorDirName),
		vendoring.ArchivePath(s.Workspace, s.Archive),
	} {
		if err := os.RemoveAll(p); err != nil {
			return fmt.Errorf("remove %s: %w", p, err)
		}
	}

	fragment := filepath.Join(s.Workspace, vendoring.FragmentPath())
	if err := os.Remove(fragment); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", fragment, err)
	}

	// Drop the fragment's directory when the fragment was its only content;
	// a .cargo directory holding anything else belongs to the user.
	fragmentDir := filepath.Dir(fragment)
	if entries, err := os.ReadDir(fragmentDir); err == nil && len(entries) == 0 {
		if err := os.Remove(fragmentDir); err != nil {
			return fmt.Errorf("remove %s: %w", fragmentDir, err)
		}
	}

	logging.Ensure(s.Logger).Info("removed build outputs, vendored sources, and archive")
	return nil
}

func (s *Service) verifyVendorTree() error {
	for _, p := range []string{
		filepath.Join(s.Workspace, vendoring.VendorDirName),
		filepath.Join(s.Workspace, vendoring.FragmentPath()),
	} {
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("%w: %s", ErrVendorTreeMissing, p)
		}
	}
	return nil
}

// path resolves a configured path against the workspace root. Absolute
// paths are used as given.
func (s *Service) path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(s.Workspace, p)
}
