package profile

import (
	"path/filepath"
	"testing"
)

func TestFromDebugFlag(t *testing.T) {
	t.Parallel()

	if got := FromDebugFlag(false); got != Release {
		t.Fatalf("FromDebugFlag(false) = %q, want %q", got, Release)
	}
	if got := FromDebugFlag(true); got != Debug {
		t.Fatalf("FromDebugFlag(true) = %q, want %q", got, Debug)
	}
}

func TestProfileArgs(t *testing.T) {
	t.Parallel()

	args := Release.Args()
	if len(args) != 1 || args[0] != "--release" {
		t.Fatalf("Release.Args() = %v, want [--release]", args)
	}
	if args := Debug.Args(); len(args) != 0 {
		t.Fatalf("Debug.Args() = %v, want empty", args)
	}
}

func TestProfileDir(t *testing.T) {
	t.Parallel()

	if got, want := Release.Dir("target"), filepath.Join("target", "release"); got != want {
		t.Fatalf("Release.Dir() = %q, want %q", got, want)
	}
	if got, want := Debug.Dir("target"), filepath.Join("target", "debug"); got != want {
		t.Fatalf("Debug.Dir() = %q, want %q", got, want)
	}
}
