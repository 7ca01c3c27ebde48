package install

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/pop-os/tiler-build/internal/profile"
)

func TestInstallCopiesArtifactWithExecutableMode(t *testing.T) {
	t.Parallel()

	workspace := t.TempDir()
	writeArtifact(t, workspace, "release", "\x7fELF pop-tiler-ipc")
	m := &Manager{Workspace: workspace, TargetDir: "target", Binary: "pop-tiler-ipc"}

	destdir := t.TempDir()
	installed, err := m.Install(destdir, "/usr", profile.Release)
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	want := filepath.Join(destdir, "usr", "bin", "pop-tiler-ipc")
	if installed != want {
		t.Fatalf("installed path = %q, want %q", installed, want)
	}

	data, err := os.ReadFile(installed)
	if err != nil {
		t.Fatalf("read installed artifact: %v", err)
	}
	if string(data) != "\x7fELF pop-tiler-ipc" {
		t.Fatalf("installed artifact = %q, want source bytes", data)
	}

	info, err := os.Stat(installed)
	if err != nil {
		t.Fatalf("stat installed artifact: %v", err)
	}
	if got := info.Mode().Perm(); got != 0o755 {
		t.Fatalf("installed mode = %o, want 755", got)
	}
}

func TestInstallDebugProfileReadsDebugDir(t *testing.T) {
	t.Parallel()

	workspace := t.TempDir()
	writeArtifact(t, workspace, "debug", "debug build")
	m := &Manager{Workspace: workspace, TargetDir: "target", Binary: "pop-tiler-ipc"}

	installed, err := m.Install(t.TempDir(), "/usr", profile.Debug)
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	data, err := os.ReadFile(installed)
	if err != nil {
		t.Fatalf("read installed artifact: %v", err)
	}
	if string(data) != "debug build" {
		t.Fatalf("installed artifact = %q, want debug build", data)
	}
}

func TestInstallMissingArtifactReturnsTypedError(t *testing.T) {
	t.Parallel()

	m := &Manager{Workspace: t.TempDir(), TargetDir: "target", Binary: "pop-tiler-ipc"}

	destdir := t.TempDir()
	_, err := m.Install(destdir, "/usr", profile.Release)
	if !errors.Is(err, ErrArtifactNotFound) {
		t.Fatalf("Install() error = %v, want ErrArtifactNotFound", err)
	}

	if _, statErr := os.Stat(filepath.Join(destdir, "usr", "bin", "pop-tiler-ipc")); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("destination created despite missing artifact: %v", statErr)
	}
}

func TestInstallReplacesPreviousArtifact(t *testing.T) {
	t.Parallel()

	workspace := t.TempDir()
	writeArtifact(t, workspace, "release", "new build")
	m := &Manager{Workspace: workspace, TargetDir: "target", Binary: "pop-tiler-ipc"}

	destdir := t.TempDir()
	previous := InstalledPath(destdir, "/usr", "pop-tiler-ipc")
	if err := os.MkdirAll(filepath.Dir(previous), 0o755); err != nil {
		t.Fatalf("create install directory: %v", err)
	}
	if err := os.WriteFile(previous, []byte("old build"), 0o755); err != nil {
		t.Fatalf("write previous artifact: %v", err)
	}

	if _, err := m.Install(destdir, "/usr", profile.Release); err != nil {
		t.Fatalf("Install() error = %v", err)
	}

	data, err := os.ReadFile(previous)
	if err != nil {
		t.Fatalf("read installed artifact: %v", err)
	}
	if string(data) != "new build" {
		t.Fatalf("installed artifact = %q, want new build", data)
	}
}

func TestUninstallRemovesArtifact(t *testing.T) {
	t.Parallel()

	m := &Manager{Workspace: t.TempDir(), TargetDir: "target", Binary: "pop-tiler-ipc"}

	destdir := t.TempDir()
	installed := InstalledPath(destdir, "/usr", "pop-tiler-ipc")
	if err := os.MkdirAll(filepath.Dir(installed), 0o755); err != nil {
		t.Fatalf("create install directory: %v", err)
	}
	if err := os.WriteFile(installed, []byte("bin"), 0o755); err != nil {
		t.Fatalf("write installed artifact: %v", err)
	}

	if err := m.Uninstall(destdir, "/usr"); err != nil {
		t.Fatalf("Uninstall() error = %v", err)
	}
	if _, err := os.Stat(installed); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("artifact still present after Uninstall(): %v", err)
	}
}

func TestInstallThenUninstallLeavesNoArtifact(t *testing.T) {
	t.Parallel()

	workspace := t.TempDir()
	writeArtifact(t, workspace, "release", "bin")
	m := &Manager{Workspace: workspace, TargetDir: "target", Binary: "pop-tiler-ipc"}

	destdir := t.TempDir()
	installed, err := m.Install(destdir, "/usr", profile.Release)
	if err != nil {
		t.Fatalf("Install() error = %v", err)
	}
	if err := m.Uninstall(destdir, "/usr"); err != nil {
		t.Fatalf("Uninstall() error = %v", err)
	}

	if _, err := os.Stat(installed); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("artifact still present after uninstall: %v", err)
	}
}

func TestUninstallMissingArtifactIsNoOp(t *testing.T) {
	t.Parallel()

	m := &Manager{Workspace: t.TempDir(), TargetDir: "target", Binary: "pop-tiler-ipc"}

	if err := m.Uninstall(t.TempDir(), "/usr"); err != nil {
		t.Fatalf("Uninstall() error = %v, want no-op for absent artifact", err)
	}
}

func writeArtifact(t *testing.T, workspace, profileDir, content string) {
	t.Helper()

	path := filepath.Join(workspace, "target", profileDir, "pop-tiler-ipc")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("create target directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
}
