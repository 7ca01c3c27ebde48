package cargo

import "fmt"

// CompileError reports a toolchain-reported compilation failure. The
// toolchain's diagnostics are propagated verbatim through the output
// streams, not interpreted here; this error carries the exit status.
type CompileError struct {
	Package  string
	ExitCode int
	Err      error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("cargo build of %s failed with exit status %d", e.Package, e.ExitCode)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// ResolveError reports that the dependency manifest could not be resolved
// while vendoring, for example because the network registry is unreachable
// and no cache is present.
type ResolveError struct {
	ExitCode int
	Err      error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("cargo vendor failed with exit status %d: dependency resolution did not complete", e.ExitCode)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}
