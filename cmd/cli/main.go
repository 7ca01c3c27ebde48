package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pop-os/tiler-build/internal/build"
	"github.com/pop-os/tiler-build/internal/cargo"
	"github.com/pop-os/tiler-build/internal/config"
	"github.com/pop-os/tiler-build/internal/install"
	"github.com/pop-os/tiler-build/internal/logging"
	"github.com/pop-os/tiler-build/internal/manifest"
	"github.com/pop-os/tiler-build/internal/profile"
	"github.com/pop-os/tiler-build/internal/session"
	"github.com/pop-os/tiler-build/internal/vendoring"
)

const defaultLogLevel = "info"

func main() {
	logger := logging.NewCLI(os.Stderr, nil)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		logger = slog.Default()
		if errors.Is(err, context.Canceled) {
			logger.Warn("command interrupted", "error", err)
			os.Exit(130)
		}
		logger.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	logLevel   string
	logJSON    bool
	debug      bool
	frozen     bool
	directory  string
	configPath string

	levelVar slog.LevelVar
	logger   *slog.Logger
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	opts.levelVar.Set(slog.LevelInfo)

	root := &cobra.Command{
		Use:           "tiler-build",
		Short:         "Build, vendor, and install the pop-tiler IPC binary",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(opts, cmd)
		},
	}

	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", defaultLogLevel, "Set log verbosity (debug, info, warning, error)")
	root.PersistentFlags().BoolVar(&opts.logJSON, "log-json", false, "Emit logs as JSON instead of text")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Use the debug profile instead of release")
	root.PersistentFlags().BoolVar(&opts.frozen, "frozen", false, "Build offline from the extracted vendor archive")
	root.PersistentFlags().StringVarP(&opts.directory, "directory", "C", ".", "Crate workspace directory")
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Config file path (default <directory>/"+config.DefaultFileName+")")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level, err := logging.ParseLevel(opts.logLevel)
		if err != nil {
			return err
		}
		opts.levelVar.Set(level)

		mode := logging.ModeCLI
		if opts.logJSON {
			mode = logging.ModeJSON
		}
		opts.logger = logging.New(mode, os.Stderr, &opts.levelVar)
		slog.SetDefault(opts.logger)
		return nil
	}

	root.AddCommand(
		newBuildCommand(opts),
		newVendorCommand(opts),
		newCleanCommand(opts),
		newDistcleanCommand(opts),
		newInstallCommand(opts),
		newUninstallCommand(opts),
	)
	return root
}

// workspaceSession is everything a command needs once the workspace lock is
// held: the resolved configuration, the build target, and a logger tagged
// with the session id.
type workspaceSession struct {
	workspace string
	cfg       config.Config
	binary    string
	lock      *session.Lock
	logger    *slog.Logger
}

func (o *rootOptions) openSession(command string) (*workspaceSession, error) {
	workspace, err := filepath.Abs(o.directory)
	if err != nil {
		return nil, fmt.Errorf("resolve working directory: %w", err)
	}

	cfg, err := o.loadConfig(workspace)
	if err != nil {
		return nil, err
	}

	lock, err := session.Acquire(workspace)
	if err != nil {
		return nil, err
	}
	logger := o.logger.With("command", command, "session", lock.ID.String())

	binary := cfg.Binary
	if binary == "" {
		target, err := manifest.Resolve(workspace, cfg.Package)
		if err != nil {
			lock.Release()
			return nil, err
		}
		binary = target.Bin
	}

	logger.Debug("session opened", "workspace", workspace, "package", cfg.Package, "binary", binary)
	return &workspaceSession{
		workspace: workspace,
		cfg:       cfg,
		binary:    binary,
		lock:      lock,
		logger:    logger,
	}, nil
}

// loadConfig reads the explicit config file when one was given. The default
// file is optional: a workspace without one runs on the built-in defaults.
func (o *rootOptions) loadConfig(workspace string) (config.Config, error) {
	if o.configPath != "" {
		return config.Load(o.configPath)
	}

	cfg, err := config.Load(filepath.Join(workspace, config.DefaultFileName))
	if errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return cfg, err
}

func (s *workspaceSession) close() {
	if err := s.lock.Release(); err != nil {
		s.logger.Warn("releasing session lock failed", "error", err)
	}
}

func (s *workspaceSession) toolchain(cmd *cobra.Command) *cargo.Cargo {
	return &cargo.Cargo{
		Bin:    s.cfg.Cargo,
		Dir:    s.workspace,
		Stdout: cmd.OutOrStdout(),
		Stderr: cmd.ErrOrStderr(),
		Logger: s.logger,
	}
}

func (s *workspaceSession) buildService(cmd *cobra.Command) *build.Service {
	return &build.Service{
		Workspace: s.workspace,
		Package:   s.cfg.Package,
		Binary:    s.binary,
		TargetDir: s.cfg.TargetDir,
		Archive:   s.cfg.Archive,
		Toolchain: s.toolchain(cmd),
		Extractor: &vendoring.Extractor{
			Workspace: s.workspace,
			Archive:   s.cfg.Archive,
			Logger:    s.logger,
		},
		Logger: s.logger,
	}
}

func newBuildCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Compile the configured package for the selected profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(opts, cmd)
		},
	}
}

func runBuild(opts *rootOptions, cmd *cobra.Command) error {
	sess, err := opts.openSession("build")
	if err != nil {
		return err
	}
	defer sess.close()

	artifact, err := sess.buildService(cmd).Run(cmd.Context(), build.Request{
		Debug:  opts.debug,
		Frozen: opts.frozen,
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), artifact)
	return nil
}

func newVendorCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "vendor",
		Short: "Bundle all dependency sources into the vendor archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := opts.openSession("vendor")
			if err != nil {
				return err
			}
			defer sess.close()

			bundler := &vendoring.Bundler{
				Workspace: sess.workspace,
				Archive:   sess.cfg.Archive,
				Source:    sess.toolchain(cmd),
				Logger:    sess.logger,
			}
			return bundler.Bundle(cmd.Context())
		},
	}
}

func newCleanCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove build outputs, keeping vendored sources and the archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := opts.openSession("clean")
			if err != nil {
				return err
			}
			defer sess.close()

			return sess.buildService(cmd).Clean(cmd.Context())
		},
	}
}

func newDistcleanCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "distclean",
		Short: "Remove build outputs, vendored sources, and the vendor archive",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := opts.openSession("distclean")
			if err != nil {
				return err
			}
			defer sess.close()

			return sess.buildService(cmd).Distclean()
		},
	}
}

func newInstallCommand(opts *rootOptions) *cobra.Command {
	var destdir, prefix string

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install the built artifact into the system tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := opts.openSession("install")
			if err != nil {
				return err
			}
			defer sess.close()

			if !cmd.Flags().Changed("prefix") {
				prefix = sess.cfg.Prefix
			}

			installed, err := installManager(sess).Install(destdir, prefix, profile.FromDebugFlag(opts.debug))
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), installed)
			return nil
		},
	}

	cmd.Flags().StringVar(&destdir, "destdir", "", "Staging root prepended to the install prefix")
	cmd.Flags().StringVar(&prefix, "prefix", config.Default().Prefix, "Installation prefix")

	return cmd
}

func newUninstallCommand(opts *rootOptions) *cobra.Command {
	var destdir, prefix string

	cmd := &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the installed artifact from the system tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := opts.openSession("uninstall")
			if err != nil {
				return err
			}
			defer sess.close()

			if !cmd.Flags().Changed("prefix") {
				prefix = sess.cfg.Prefix
			}

			return installManager(sess).Uninstall(destdir, prefix)
		},
	}

	cmd.Flags().StringVar(&destdir, "destdir", "", "Staging root prepended to the install prefix")
	cmd.Flags().StringVar(&prefix, "prefix", config.Default().Prefix, "Installation prefix")

	return cmd
}

func installManager(sess *workspaceSession) *install.Manager {
	return &install.Manager{
		Workspace: sess.workspace,
		TargetDir: sess.cfg.TargetDir,
		Binary:    sess.binary,
		Logger:    sess.logger,
	}
}
