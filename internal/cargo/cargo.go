// Package cargo drives the external toolchain. Invocations run with the
// workspace as their working directory and their output is propagated
// verbatim; this package never interprets diagnostics, only exit status.
package cargo

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/pop-os/tiler-build/internal/logging"
	"github.com/pop-os/tiler-build/internal/profile"
)

// scanBufferSize bounds a single streamed toolchain line. Compiler
// diagnostics with rendered spans can exceed bufio's default.
const scanBufferSize = 1024 * 1024

// Cargo invokes the toolchain binary for one workspace.
type Cargo struct {
	// Bin is the toolchain executable. Empty means "cargo" from PATH.
	Bin string
	// Dir is the workspace directory every invocation runs in.
	Dir string
	// Stdout and Stderr receive the streamed toolchain output. They
	// default to the process streams.
	Stdout io.Writer
	Stderr io.Writer

	Logger *slog.Logger
}

// BuildOptions select what one build invocation compiles.
type BuildOptions struct {
	// Package is the cargo package to compile.
	Package string
	// Profile supplies the optimization flags and names the output
	// subdirectory.
	Profile profile.Profile
	// Frozen forbids network access: the toolchain must use the vendored
	// dependency directory and fail rather than touch a registry.
	Frozen bool
}

// Build compiles exactly one package under the given profile. A toolchain
// exit with non-zero status surfaces as *CompileError; the diagnostics have
// already been streamed.
func (c *Cargo) Build(ctx context.Context, opts BuildOptions) error {
	args := []string{"build", "-p", opts.Package}
	args = append(args, opts.Profile.Args()...)
	if opts.Frozen {
		args = append(args, "--frozen")
	}

	if err := c.run(ctx, nil, args...); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &CompileError{Package: opts.Package, ExitCode: exitErr.ExitCode(), Err: err}
		}
		return err
	}
	return nil
}

// Vendor materializes the dependency closure into dir (relative to the
// workspace) and returns the toolchain configuration fragment the
// invocation prints on stdout. Failures surface as *ResolveError.
func (c *Cargo) Vendor(ctx context.Context, dir string) ([]byte, error) {
	var fragment bytes.Buffer
	if err := c.run(ctx, &fragment, "vendor", dir); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &ResolveError{ExitCode: exitErr.ExitCode(), Err: err}
		}
		return nil, err
	}
	return fragment.Bytes(), nil
}

// Clean removes the toolchain-generated build outputs.
func (c *Cargo) Clean(ctx context.Context) error {
	if err := c.run(ctx, nil, "clean"); err != nil {
		return fmt.Errorf("cargo clean: %w", err)
	}
	return nil
}

// run executes the toolchain. Stdout is captured raw when capture is
// non-nil, otherwise streamed line by line; stderr always streams.
func (c *Cargo) run(ctx context.Context, capture *bytes.Buffer, args ...string) error {
	bin := c.Bin
	if bin == "" {
		bin = "cargo"
	}

	logger := logging.Ensure(c.Logger)
	logger.Debug("invoking toolchain", "bin", bin, "args", strings.Join(args, " "), "dir", c.Dir)

	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = c.Dir

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", bin, err)
	}

	var pumps errgroup.Group
	pumps.Go(func() error {
		if capture != nil {
			_, err := io.Copy(capture, stdout)
			return err
		}
		return streamLines(stdout, c.stdout())
	})
	pumps.Go(func() error {
		return streamLines(stderr, c.stderr())
	})

	pumpErr := pumps.Wait()
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return ctx.Err()
	}
	if waitErr != nil {
		return waitErr
	}
	if pumpErr != nil {
		return fmt.Errorf("stream %s output: %w", bin, pumpErr)
	}
	return nil
}

func (c *Cargo) stdout() io.Writer {
	if c.Stdout != nil {
		return c.Stdout
	}
	return os.Stdout
}

func (c *Cargo) stderr() io.Writer {
	if c.Stderr != nil {
		return c.Stderr
	}
	return os.Stderr
}

func streamLines(r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), scanBufferSize)
	for scanner.Scan() {
		if _, err := fmt.Fprintln(w, scanner.Text()); err != nil {
			return err
		}
	}
	return scanner.Err()
}
