package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/specialistvlad/pacforge/internal/app"
	"github.com/specialistvlad/pacforge/internal/config"
	"github.com/specialistvlad/pacforge/internal/orchestrator"
	"github.com/specialistvlad/pacforge/internal/resolver"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// CollaboratorFactory builds the external collaborators for a validated
// configuration.
type CollaboratorFactory func(cfg *config.Config, in io.Reader, out io.Writer, noConfirm bool) app.Collaborators

// Options are the process streams and seams the command tree runs with.
type Options struct {
	In  io.Reader
	Out io.Writer
	// Err receives logs and prompts.
	Err io.Writer
	// Collaborators defaults to app.ProcessCollaborators.
	Collaborators CollaboratorFactory
}

type flags struct {
	configPath  string
	snapshot    string
	logLevel    string
	logFormat   string
	metricsPort int

	mode            string
	asDeps          bool
	needed          bool
	rebuild         bool
	buildTests      bool
	removeBuildOnly bool
	ignore          []string
	providerOrder   []string
	noConfirm       bool
	upgradeMenu     bool
	devel           bool
	fetchJobs       int
}

// NewRootCommand builds the pacforge command tree.
func NewRootCommand(opts Options) *cobra.Command {
	if opts.Collaborators == nil {
		opts.Collaborators = app.ProcessCollaborators
	}
	f := &flags{}

	root := &cobra.Command{
		Use:   "pacforge",
		Short: "Resolve, build and install packages from binary repositories and source recipes",
		Long: `pacforge resolves dependencies across binary repositories and source
recipes, plans build batches and drives fetch, build and install.

Package metadata is read from a YAML snapshot (--snapshot).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(opts.In)
	root.SetOut(opts.Out)
	root.SetErr(opts.Err)

	pf := root.PersistentFlags()
	pf.StringVarP(&f.configPath, "config", "c", "pacforge.hcl", "Path to the HCL configuration file.")
	pf.StringVar(&f.snapshot, "snapshot", "", "Path to the package database snapshot.")
	pf.StringVar(&f.logLevel, "log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	pf.StringVar(&f.logFormat, "log-format", "text", "Log output format. Options: 'text' or 'json'.")
	pf.IntVar(&f.metricsPort, "metrics-port", 0, "Port for the health and metrics server. 0 is disabled.")
	pf.StringVar(&f.mode, "mode", "any", "Candidate sources for targets. Options: 'any', 'repo', 'remote'.")
	pf.BoolVar(&f.asDeps, "asdeps", false, "Install targets as dependencies.")
	pf.BoolVar(&f.needed, "needed", true, "Skip targets that are already installed and satisfied.")
	pf.BoolVar(&f.rebuild, "rebuild", false, "Rebuild targets even when they are satisfied.")
	pf.BoolVar(&f.buildTests, "check", false, "Resolve check dependencies and run recipe tests.")
	pf.BoolVar(&f.removeBuildOnly, "removemake", false, "Remove build-only dependencies after the run.")
	pf.StringSliceVar(&f.ignore, "ignore", nil, "Packages to leave out of upgrades.")
	pf.StringSliceVar(&f.providerOrder, "provider-order", nil, "Provider tie-break order, e.g. exact_name,source,version,discovery.")
	pf.BoolVar(&f.noConfirm, "noconfirm", false, "Answer every prompt with its default and skip recipe review.")
	pf.IntVar(&f.fetchJobs, "fetch-jobs", 0, "Concurrent recipe fetches. 0 keeps the configured value.")

	root.AddCommand(newPlanCommand(f, opts), newInstallCommand(f, opts), newUpgradeCommand(f, opts))
	return root
}

// loadConfig reads the configuration file and applies explicitly set flags.
func loadConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	cfg, err := config.Load(cmd.Context(), f.configPath)
	if err != nil {
		return nil, &ExitError{Code: 2, Message: err.Error()}
	}

	changed := func(name string) bool { return cmd.Flags().Changed(name) }
	if changed("snapshot") {
		cfg.SnapshotPath = f.snapshot
	}
	if changed("log-level") {
		cfg.LogLevel = strings.ToLower(f.logLevel)
	}
	if changed("log-format") {
		cfg.LogFormat = strings.ToLower(f.logFormat)
	}
	if changed("metrics-port") {
		cfg.MetricsPort = f.metricsPort
	}
	if changed("mode") {
		cfg.Policy.Mode = resolver.Mode(f.mode)
	}
	if changed("asdeps") {
		cfg.Policy.AsDeps = f.asDeps
	}
	if changed("needed") {
		cfg.Policy.SkipSatisfied = f.needed
	}
	if changed("rebuild") {
		cfg.Policy.Rebuild = f.rebuild
	}
	if changed("check") {
		cfg.Policy.BuildTests = f.buildTests
	}
	if changed("removemake") {
		cfg.Policy.RemoveBuildOnly = f.removeBuildOnly
	}
	if changed("ignore") {
		cfg.Policy.Ignore = append(cfg.Policy.Ignore, f.ignore...)
	}
	if changed("provider-order") {
		cfg.ProviderOrder = f.providerOrder
	}
	if changed("fetch-jobs") {
		cfg.FetchConcurrency = f.fetchJobs
	}
	if changed("upgrademenu") {
		cfg.UpgradeMenu = f.upgradeMenu
	}
	if changed("devel") {
		cfg.Devel = f.devel
	}

	if err := cfg.Validate(); err != nil {
		return nil, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Configuration resolved.", "config", f.configPath, "snapshot", cfg.SnapshotPath)
	return cfg, nil
}

func newApp(cmd *cobra.Command, f *flags, opts Options) (*app.App, error) {
	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return nil, err
	}
	collab := opts.Collaborators(cfg, cmd.InOrStdin(), cmd.ErrOrStderr(), f.noConfirm)
	return app.NewApp(cmd.ErrOrStderr(), cfg, collab), nil
}

func newPlanCommand(f *flags, opts Options) *cobra.Command {
	return &cobra.Command{
		Use:   "plan TARGET...",
		Short: "Print the resolved packages and batch sequence without executing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, f, opts)
			if err != nil {
				return err
			}
			p, err := a.Plan(cmd.Context(), args)
			if err != nil {
				return err
			}
			app.WritePlan(cmd.OutOrStdout(), p)
			return nil
		},
	}
}

func newInstallCommand(f *flags, opts Options) *cobra.Command {
	return &cobra.Command{
		Use:   "install TARGET...",
		Short: "Resolve, build and install targets",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, f, opts, func(ctx context.Context, a *app.App) (*orchestrator.Result, error) {
				return a.Install(ctx, args)
			})
		},
	}
}

func newUpgradeCommand(f *flags, opts Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upgrade",
		Short: "Upgrade installed packages from repositories and source recipes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return execute(cmd, f, opts, func(ctx context.Context, a *app.App) (*orchestrator.Result, error) {
				return a.Upgrade(ctx)
			})
		},
	}
	cmd.Flags().BoolVar(&f.upgradeMenu, "upgrademenu", false, "Show the numbered upgrade menu before upgrading.")
	cmd.Flags().BoolVar(&f.devel, "devel", false, "Check version-control packages for upstream commits.")
	return cmd
}

// execute runs one pipeline with the background services up and maps the
// result to an exit code.
func execute(cmd *cobra.Command, f *flags, opts Options, fn func(context.Context, *app.App) (*orchestrator.Result, error)) (err error) {
	a, err := newApp(cmd, f, opts)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if err := a.Start(ctx); err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, a.Close(ctx))
	}()

	res, err := fn(ctx, a)
	if err != nil {
		return err
	}
	app.WriteResult(cmd.OutOrStdout(), res)
	if code := app.ExitCode(res); code != app.ExitOK {
		return &ExitError{Code: code, Message: res.Err().Error()}
	}
	return nil
}

// Execute runs the command tree with args.
func Execute(ctx context.Context, args []string, opts Options) error {
	root := NewRootCommand(opts)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	if isUsageError(err) {
		return &ExitError{Code: 2, Message: fmt.Sprintf("%v\nRun 'pacforge --help' for usage.", err)}
	}
	return err
}

func isUsageError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") ||
		strings.HasPrefix(msg, "unknown flag") ||
		strings.HasPrefix(msg, "unknown shorthand flag") ||
		strings.Contains(msg, "arg(s)")
}
