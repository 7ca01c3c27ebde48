// Package manifest resolves the build target from a cargo workspace: which
// package is built and what the produced binary is called. Resolution reads
// the TOML manifests directly so a mistyped package name fails fast, before
// the toolchain is ever invoked.
package manifest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml"
)

// FileName is the manifest file cargo reads in every crate directory.
const FileName = "Cargo.toml"

// Target identifies the single compiled artifact: the cargo package that is
// built and the name of the binary it produces.
type Target struct {
	Package string
	Bin     string
}

type cargoManifest struct {
	Package   *packageSection   `toml:"package"`
	Workspace *workspaceSection `toml:"workspace"`
	Bin       []binSection      `toml:"bin"`
}

type packageSection struct {
	Name string `toml:"name"`
}

type workspaceSection struct {
	Members []string `toml:"members"`
}

type binSection struct {
	Name string `toml:"name"`
}

// Resolve locates pkg in the workspace rooted at dir and returns its build
// target. The root manifest is considered first, then every workspace
// member (literal entries and single-level "dir/*" globs).
func Resolve(dir, pkg string) (Target, error) {
	if pkg == "" {
		return Target{}, errors.New("package name is required")
	}

	root, err := load(filepath.Join(dir, FileName))
	if err != nil {
		return Target{}, err
	}

	if root.Package != nil && root.Package.Name == pkg {
		return target(root), nil
	}

	if root.Workspace != nil {
		for _, member := range root.Workspace.Members {
			dirs, err := memberDirs(dir, member)
			if err != nil {
				return Target{}, err
			}
			for _, memberDir := range dirs {
				m, err := load(filepath.Join(memberDir, FileName))
				if err != nil {
					return Target{}, err
				}
				if m.Package != nil && m.Package.Name == pkg {
					return target(m), nil
				}
			}
		}
	}

	return Target{}, fmt.Errorf("package %q is not a member of the cargo workspace at %s", pkg, dir)
}

func load(path string) (*cargoManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}

	var m cargoManifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return &m, nil
}

// memberDirs expands one workspace member entry into crate directories.
// Cargo allows trailing "/*" globs; anything more elaborate is not used by
// the workspaces this tool builds.
func memberDirs(root, member string) ([]string, error) {
	if !strings.HasSuffix(member, "/*") {
		return []string{filepath.Join(root, filepath.FromSlash(member))}, nil
	}

	base := filepath.Join(root, filepath.FromSlash(strings.TrimSuffix(member, "/*")))
	entries, err := os.ReadDir(base)
	if err != nil {
		return nil, fmt.Errorf("expand workspace member %q: %w", member, err)
	}

	var dirs []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		crateDir := filepath.Join(base, entry.Name())
		if _, err := os.Stat(filepath.Join(crateDir, FileName)); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		dirs = append(dirs, crateDir)
	}
	return dirs, nil
}

// target derives the artifact name for a package manifest: the first
// explicit [[bin]] name wins, otherwise cargo names the binary after the
// package.
func target(m *cargoManifest) Target {
	t := Target{Package: m.Package.Name, Bin: m.Package.Name}
	for _, bin := range m.Bin {
		if bin.Name != "" {
			t.Bin = bin.Name
			break
		}
	}
	return t
}
