package vendoring

import (
	"errors"
	"fmt"

	toml "github.com/pelletier/go-toml"
)

// rewriteFragment takes the config fragment cargo vendor prints on stdout
// and points every directory source at the workspace-relative vendor
// directory instead of the absolute path of the machine that produced it.
func rewriteFragment(raw []byte) ([]byte, error) {
	tree, err := toml.LoadBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("parse cargo vendor output: %w", err)
	}

	sources, ok := tree.Get("source").(*toml.Tree)
	if !ok {
		return nil, errors.New("cargo vendor output has no [source] tables")
	}

	rewrote := false
	for _, name := range sources.Keys() {
		src, ok := sources.GetPath([]string{name}).(*toml.Tree)
		if !ok {
			continue
		}
		if src.Has("directory") {
			src.Set("directory", VendorDirName)
			rewrote = true
		}
	}
	if !rewrote {
		return nil, errors.New("cargo vendor output names no directory source")
	}

	out, err := tree.ToTomlString()
	if err != nil {
		return nil, fmt.Errorf("render config fragment: %w", err)
	}
	return []byte(out), nil
}
