package vendoring

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/ulikunitz/xz"
)

// archiveEpoch replaces file timestamps in archive headers. Together with
// the lexical walk order this makes archives of identical trees
// byte-identical across runs.
var archiveEpoch = time.Unix(0, 0)

// writeArchive streams an xz-compressed tarball to w containing the config
// fragment at .cargo/config.toml and the full vendor tree under vendor/.
// Permission bits are preserved; owner and timestamps are normalized.
func writeArchive(w io.Writer, vendorDir string, fragment []byte) error {
	xzw, err := xz.NewWriter(w)
	if err != nil {
		return fmt.Errorf("create xz stream: %w", err)
	}
	tw := tar.NewWriter(xzw)

	if err := writeFragmentEntry(tw, fragment); err != nil {
		return err
	}
	if err := writeTreeEntries(tw, vendorDir); err != nil {
		return err
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}
	if err := xzw.Close(); err != nil {
		return fmt.Errorf("finalize xz stream: %w", err)
	}
	return nil
}

func writeFragmentEntry(tw *tar.Writer, fragment []byte) error {
	if err := tw.WriteHeader(&tar.Header{
		Typeflag: tar.TypeDir,
		Name:     fragmentDir + "/",
		Mode:     0o755,
		ModTime:  archiveEpoch,
	}); err != nil {
		return fmt.Errorf("write archive entry %s: %w", fragmentDir, err)
	}

	name := path.Join(fragmentDir, fragmentFile)
	if err := tw.WriteHeader(&tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(fragment)),
		ModTime:  archiveEpoch,
	}); err != nil {
		return fmt.Errorf("write archive entry %s: %w", name, err)
	}
	if _, err := tw.Write(fragment); err != nil {
		return fmt.Errorf("write archive entry %s: %w", name, err)
	}
	return nil
}

func writeTreeEntries(tw *tar.Writer, vendorDir string) error {
	return filepath.WalkDir(vendorDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(vendorDir, p)
		if err != nil {
			return err
		}
		name := VendorDirName
		if rel != "." {
			name = path.Join(VendorDirName, filepath.ToSlash(rel))
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		mode := info.Mode()

		switch {
		case d.IsDir():
			return tw.WriteHeader(&tar.Header{
				Typeflag: tar.TypeDir,
				Name:     name + "/",
				Mode:     int64(mode.Perm()),
				ModTime:  archiveEpoch,
			})
		case mode.IsRegular():
			if err := tw.WriteHeader(&tar.Header{
				Typeflag: tar.TypeReg,
				Name:     name,
				Mode:     int64(mode.Perm()),
				Size:     info.Size(),
				ModTime:  archiveEpoch,
			}); err != nil {
				return fmt.Errorf("write archive entry %s: %w", name, err)
			}
			f, err := os.Open(p)
			if err != nil {
				return err
			}
			if _, err := io.Copy(tw, f); err != nil {
				f.Close()
				return fmt.Errorf("write archive entry %s: %w", name, err)
			}
			return f.Close()
		default:
			// Vendored registries contain only directories and regular
			// files; anything else means the tree was tampered with.
			return fmt.Errorf("unsupported file type %s in vendor tree (%s)", mode, p)
		}
	})
}

// extractArchive unpacks an archive produced by writeArchive into dest,
// restoring permission bits exactly.
func extractArchive(r io.Reader, dest string) error {
	xzr, err := xz.NewReader(r)
	if err != nil {
		return fmt.Errorf("open xz stream: %w", err)
	}
	tr := tar.NewReader(xzr)

	type pendingDir struct {
		path string
		mode fs.FileMode
	}
	var dirs []pendingDir

	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read archive: %w", err)
		}

		target, err := entryPath(dest, header.Name)
		if err != nil {
			return err
		}
		mode := header.FileInfo().Mode().Perm()

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create directory %s: %w", header.Name, err)
			}
			dirs = append(dirs, pendingDir{path: target, mode: mode})
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create directory for %s: %w", header.Name, err)
			}
			if err := extractFile(tr, target, mode); err != nil {
				return fmt.Errorf("extract %s: %w", header.Name, err)
			}
		default:
			return fmt.Errorf("unsupported archive entry type %q for %s", header.Typeflag, header.Name)
		}
	}

	// Directory modes are applied last so restrictive bits cannot block
	// extraction of children.
	for i := len(dirs) - 1; i >= 0; i-- {
		if err := os.Chmod(dirs[i].path, dirs[i].mode); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(r io.Reader, target string, mode fs.FileMode) error {
	f, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	// OpenFile perms pass through the umask; restore the archived bits.
	return os.Chmod(target, mode)
}

// entryPath joins an archive entry name onto dest, rejecting names that
// would escape it.
func entryPath(dest, name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("archive entry %q escapes the extraction directory", name)
	}
	return filepath.Join(dest, clean), nil
}
