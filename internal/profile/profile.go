// Package profile resolves the build profile that governs a toolchain
// invocation: the profile name selects the output subdirectory and the
// extra compiler arguments.
package profile

import "path/filepath"

// Profile names a set of compiler flags selecting optimization/debug
// characteristics.
type Profile string

// Supported profiles. Exactly one is active per invocation.
const (
	Debug   Profile = "debug"
	Release Profile = "release"
)

// FromDebugFlag resolves the profile for an invocation. Release is the
// default unless the debug flag is set. Every input is valid.
func FromDebugFlag(debug bool) Profile {
	if debug {
		return Debug
	}
	return Release
}

// Name returns the profile name as passed to the toolchain and used for the
// per-profile output subdirectory.
func (p Profile) Name() string {
	return string(p)
}

// Args returns the extra toolchain arguments the profile adds to a build.
// Release builds carry the optimization flag; debug builds add nothing.
func (p Profile) Args() []string {
	if p == Release {
		return []string{"--release"}
	}
	return nil
}

// Dir returns the output directory for artifacts built under this profile.
func (p Profile) Dir(targetDir string) string {
	return filepath.Join(targetDir, string(p))
}
