package vendoring

import (
	"archive/tar"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ulikunitz/xz"
)

func TestExtractMissingArchiveReturnsTypedError(t *testing.T) {
	t.Parallel()

	e := &Extractor{Workspace: t.TempDir(), Archive: "vendor.tar.xz"}
	err := e.Extract()
	if !errors.Is(err, ErrArchiveMissing) {
		t.Fatalf("Extract() error = %v, want ErrArchiveMissing", err)
	}
}

func TestExtractReplacesStaleVendorTreeAndFragment(t *testing.T) {
	t.Parallel()

	workspace := t.TempDir()
	writeWorkspaceArchive(t, workspace, map[string]string{"serde-1.0.0/src/lib.rs": "pub trait Serialize {}\n"})

	writeTestFile(t, filepath.Join(workspace, VendorDirName, "stale-0.1.0", "lib.rs"), "old\n", 0o644)
	writeTestFile(t, filepath.Join(workspace, FragmentPath()), "directory = \"/old/path\"\n", 0o644)

	e := &Extractor{Workspace: workspace, Archive: "vendor.tar.xz"}
	if err := e.Extract(); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	assertFileContent(t, filepath.Join(workspace, VendorDirName, "serde-1.0.0", "src", "lib.rs"), "pub trait Serialize {}\n")
	if _, err := os.Stat(filepath.Join(workspace, VendorDirName, "stale-0.1.0")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("stale vendored crate survived extraction: %v", err)
	}

	fragment, err := os.ReadFile(filepath.Join(workspace, FragmentPath()))
	if err != nil {
		t.Fatalf("read extracted fragment: %v", err)
	}
	if !bytes.Contains(fragment, []byte("directory = \"vendor\"")) {
		t.Fatalf("extracted fragment = %s, want vendor directory source", fragment)
	}

	staging, err := filepath.Glob(filepath.Join(workspace, ".vendor-extract-*"))
	if err != nil {
		t.Fatalf("glob staging directories: %v", err)
	}
	if len(staging) != 0 {
		t.Fatalf("staging directories left behind: %v", staging)
	}
}

func TestExtractIncompleteArchiveLeavesWorkspaceUntouched(t *testing.T) {
	t.Parallel()

	workspace := t.TempDir()

	// An archive that carries the fragment but no vendored sources.
	var buf bytes.Buffer
	xzw, err := xz.NewWriter(&buf)
	if err != nil {
		t.Fatalf("xz.NewWriter() error = %v", err)
	}
	tw := tar.NewWriter(xzw)
	fragment := []byte("[source.vendored-sources]\ndirectory = \"vendor\"\n")
	if err := writeFragmentEntry(tw, fragment); err != nil {
		t.Fatalf("write fragment entry: %v", err)
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar writer: %v", err)
	}
	if err := xzw.Close(); err != nil {
		t.Fatalf("close xz writer: %v", err)
	}
	if err := os.WriteFile(filepath.Join(workspace, "vendor.tar.xz"), buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write archive: %v", err)
	}

	writeTestFile(t, filepath.Join(workspace, VendorDirName, "keep-1.0.0", "lib.rs"), "keep\n", 0o644)

	e := &Extractor{Workspace: workspace, Archive: "vendor.tar.xz"}
	err = e.Extract()
	if err == nil {
		t.Fatal("Extract() error = nil, want incomplete archive rejection")
	}
	if !strings.Contains(err.Error(), "incomplete") {
		t.Fatalf("Extract() error = %v, want incomplete archive rejection", err)
	}

	assertFileContent(t, filepath.Join(workspace, VendorDirName, "keep-1.0.0", "lib.rs"), "keep\n")
}

func writeWorkspaceArchive(t *testing.T, workspace string, files map[string]string) {
	t.Helper()

	tree := t.TempDir()
	for name, content := range files {
		writeTestFile(t, filepath.Join(tree, filepath.FromSlash(name)), content, 0o644)
	}

	var buf bytes.Buffer
	fragment := []byte("[source.crates-io]\nreplace-with = \"vendored-sources\"\n\n[source.vendored-sources]\ndirectory = \"vendor\"\n")
	if err := writeArchive(&buf, tree, fragment); err != nil {
		t.Fatalf("writeArchive() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(workspace, "vendor.tar.xz"), buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write archive: %v", err)
	}
}
