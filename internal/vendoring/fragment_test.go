package vendoring

import (
	"testing"

	toml "github.com/pelletier/go-toml"
)

func TestRewriteFragmentPointsSourcesAtVendorDir(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  string
		dirs map[string]string
	}{
		{
			name: "absolute directory",
			raw: `[source.crates-io]
replace-with = "vendored-sources"

[source.vendored-sources]
directory = "/build/pop-tiler/vendor"
`,
			dirs: map[string]string{"vendored-sources": "vendor"},
		},
		{
			name: "already relative",
			raw: `[source.crates-io]
replace-with = "vendored-sources"

[source.vendored-sources]
directory = "vendor"
`,
			dirs: map[string]string{"vendored-sources": "vendor"},
		},
		{
			name: "multiple directory sources",
			raw: `[source.crates-io]
replace-with = "vendored-sources"

[source.vendored-sources]
directory = "/tmp/a/vendor"

[source.mirror]
directory = "/tmp/b/vendor"
`,
			dirs: map[string]string{"vendored-sources": "vendor", "mirror": "vendor"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			out, err := rewriteFragment([]byte(tc.raw))
			if err != nil {
				t.Fatalf("rewriteFragment() error = %v", err)
			}

			tree, err := toml.LoadBytes(out)
			if err != nil {
				t.Fatalf("rewritten fragment is not valid toml: %v", err)
			}
			for source, want := range tc.dirs {
				got := tree.GetPath([]string{"source", source, "directory"})
				if got != want {
					t.Fatalf("source.%s.directory = %v, want %q", source, got, want)
				}
			}
			if got := tree.GetPath([]string{"source", "crates-io", "replace-with"}); got != "vendored-sources" {
				t.Fatalf("replace-with = %v, want vendored-sources", got)
			}
		})
	}
}

func TestRewriteFragmentRejectsFragmentWithoutDirectorySource(t *testing.T) {
	t.Parallel()

	raw := "[source.crates-io]\nreplace-with = \"vendored-sources\"\n"
	if _, err := rewriteFragment([]byte(raw)); err == nil {
		t.Fatal("rewriteFragment() error = nil, want missing directory source")
	}
}

func TestRewriteFragmentRejectsMalformedInput(t *testing.T) {
	t.Parallel()

	if _, err := rewriteFragment([]byte("not toml = [")); err == nil {
		t.Fatal("rewriteFragment() error = nil, want parse failure")
	}
}
