package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/specialistvlad/pacforge/internal/conflict"
	"github.com/specialistvlad/pacforge/internal/ctxlog"
	"github.com/specialistvlad/pacforge/internal/graph"
	"github.com/specialistvlad/pacforge/internal/index"
	"github.com/specialistvlad/pacforge/internal/model"
	"github.com/specialistvlad/pacforge/internal/orchestrator"
	"github.com/specialistvlad/pacforge/internal/planner"
	"github.com/specialistvlad/pacforge/internal/progress"
	"github.com/specialistvlad/pacforge/internal/resolver"
	"github.com/specialistvlad/pacforge/internal/snapshot"
	"github.com/specialistvlad/pacforge/internal/upgrade"
)

// ErrNoSnapshot is returned when no package snapshot is configured.
var ErrNoSnapshot = errors.New("no package snapshot configured")

// Pipeline is the outcome of planning: the index it read, the frozen
// dependency graph and the batch plan.
type Pipeline struct {
	Index *index.Index
	Graph *graph.Graph
	Plan  *planner.Plan
}

// LoadIndex opens the configured snapshot and builds a package index over it.
func (a *App) LoadIndex(ctx context.Context) (*index.Index, error) {
	if a.cfg.SnapshotPath == "" {
		return nil, ErrNoSnapshot
	}
	snap, err := snapshot.Load(a.cfg.SnapshotPath)
	if err != nil {
		return nil, err
	}
	idx := snap.Index(index.Options{
		RemoteTimeout:       a.cfg.RemoteTimeout,
		PrefetchConcurrency: a.cfg.FetchConcurrency,
	})
	ctxlog.FromContext(ctx).Debug("Package index loaded.", "snapshot", a.cfg.SnapshotPath, "installed", len(idx.InstalledPackages()))
	return idx, nil
}

func (a *App) newResolver(idx *index.Index, policy resolver.Policy) (*resolver.Resolver, error) {
	var opts []resolver.Option
	if len(a.cfg.ProviderOrder) > 0 {
		order, err := resolver.ParseProviderOrder(a.cfg.ProviderOrder)
		if err != nil {
			return nil, err
		}
		opts = append(opts, resolver.WithProviderOrder(order))
	}
	if a.collab.Chooser != nil {
		opts = append(opts, resolver.WithChooser(a.collab.Chooser))
	}
	return resolver.New(idx, policy, opts...), nil
}

// Plan resolves targets under the configured policy, checks the result for
// conflicts and orders it into batches. Nothing is executed.
func (a *App) Plan(ctx context.Context, targets []string) (*Pipeline, error) {
	ctx = a.context(ctx)
	idx, err := a.LoadIndex(ctx)
	if err != nil {
		return nil, err
	}
	return a.plan(ctx, idx, targets, a.cfg.Policy)
}

func (a *App) plan(ctx context.Context, idx *index.Index, targets []string, policy resolver.Policy) (*Pipeline, error) {
	logger := ctxlog.FromContext(ctx)

	res, err := a.newResolver(idx, policy)
	if err != nil {
		return nil, err
	}
	logger.Info("Resolving dependencies...", "targets", targets)
	g, err := res.Resolve(ctx, targets)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve dependencies: %w", err)
	}
	logger.Debug("Dependency graph built.", "node_count", g.Len())

	if err := conflict.Detect(ctx, g, idx); err != nil {
		return nil, fmt.Errorf("conflicting packages: %w", err)
	}

	plan, err := planner.Build(ctx, g)
	if err != nil {
		return nil, fmt.Errorf("failed to plan batches: %w", err)
	}
	logger.Info("Plan ready.", "batches", len(plan.Batches), "build_only", len(plan.BuildOnly))
	return &Pipeline{Index: idx, Graph: g, Plan: plan}, nil
}

// Install plans targets and executes the plan.
func (a *App) Install(ctx context.Context, targets []string) (*orchestrator.Result, error) {
	ctx = a.context(ctx)
	idx, err := a.LoadIndex(ctx)
	if err != nil {
		return nil, err
	}
	return a.install(ctx, idx, targets, a.cfg.Policy)
}

func (a *App) install(ctx context.Context, idx *index.Index, targets []string, policy resolver.Policy) (*orchestrator.Result, error) {
	logger := ctxlog.FromContext(ctx)
	p, err := a.plan(ctx, idx, targets, policy)
	if err != nil {
		return nil, err
	}
	sink, closeSink := a.progressSink(ctx)
	defer closeSink()

	orch := orchestrator.New(a.collab.Fetcher, a.collab.Reviewer, a.collab.Builder, a.collab.Transactor, orchestrator.Options{
		FetchConcurrency: a.cfg.FetchConcurrency,
		FetchTimeout:     a.cfg.FetchTimeout,
		AsDeps:           policy.AsDeps,
		RemoveBuildOnly:  policy.RemoveBuildOnly,
		Lock:             a.lock,
		Metrics:          a.metrics,
		Sink:             sink,
	})

	logger.Info("🚀 Starting execution...")
	result, err := orch.Run(ctx, p.Plan)
	if err != nil {
		return nil, err
	}
	a.recordDevel(ctx, p.Plan, result)
	logger.Info("🏁 Execution finished.", "run_id", result.RunID, "succeeded", len(result.Succeeded), "failed", len(result.Failed), "pruned", len(result.Pruned))
	return result, nil
}

// Upgrade discovers available upgrades, applies the user's exclusions and
// installs the rest. It returns a nil result when there is nothing to do.
func (a *App) Upgrade(ctx context.Context) (*orchestrator.Result, error) {
	ctx = a.context(ctx)
	logger := ctxlog.FromContext(ctx)

	idx, err := a.LoadIndex(ctx)
	if err != nil {
		return nil, err
	}
	set, err := upgrade.Discover(ctx, idx, upgrade.Options{
		Policy:  a.cfg.Policy,
		Devel:   a.cfg.Devel,
		Checker: a.collab.Devel,
	})
	if err != nil {
		return nil, err
	}
	if set.Empty() {
		logger.Info("There is nothing to do.")
		return nil, nil
	}

	var input string
	if a.cfg.UpgradeMenu && a.collab.Menu != nil {
		if input, err = a.collab.Menu.UpgradeMenu(ctx, set); err != nil {
			return nil, err
		}
	}
	sel := set.Select(a.cfg.UpgradeMenu, input)
	if len(sel.RepoSkip)+len(sel.RemoteSkip) > 0 {
		logger.Info("Excluded upgrades.", "repo", sel.RepoSkip, "remote", sel.RemoteSkip)
	}
	targets := sel.Targets()
	if len(targets) == 0 {
		logger.Info("There is nothing to do.")
		return nil, nil
	}

	policy := a.cfg.Policy
	policy.Rebuild = true
	return a.install(ctx, idx, targets, policy)
}

// progressSink combines the log sink with the socket.io sink when one is
// configured. A socket.io connection failure only disables remote progress.
func (a *App) progressSink(ctx context.Context) (progress.Sink, func()) {
	if a.cfg.SocketIOURL == "" {
		return progress.LogSink{}, func() {}
	}
	sio, err := progress.DialSocketIO(ctx, progress.SocketIOConfig{
		URL:                a.cfg.SocketIOURL,
		Namespace:          a.cfg.SocketIONamespace,
		InsecureSkipVerify: a.cfg.SocketIOInsecure,
		ConnectTimeout:     15 * time.Second,
	})
	if err != nil {
		ctxlog.FromContext(ctx).Warn("Remote progress disabled.", "error", err)
		return progress.LogSink{}, func() {}
	}
	return progress.Multi{progress.LogSink{}, sio}, func() { _ = sio.Close() }
}

type headReader interface {
	Head(ctx context.Context, base string) (string, error)
}

type develRecorder interface {
	Record(commit string, names ...string) error
}

// recordDevel stores the built commit of every installed version-control
// package so later upgrades can detect new upstream commits.
func (a *App) recordDevel(ctx context.Context, plan *planner.Plan, result *orchestrator.Result) {
	heads, ok := a.collab.Fetcher.(headReader)
	if !ok {
		return
	}
	rec, ok := a.collab.Devel.(develRecorder)
	if !ok {
		return
	}
	logger := ctxlog.FromContext(ctx)

	installed := make(map[string]bool, len(result.Succeeded))
	for _, label := range result.Succeeded {
		installed[label] = true
	}
	for _, b := range plan.Batches {
		if b.Kind != planner.SourceBatch || !installed[b.Label()] {
			continue
		}
		var names []string
		for _, p := range b.Packages() {
			if p.IsVCS() {
				names = append(names, p.Name)
			}
		}
		if len(names) == 0 {
			continue
		}
		commit, err := heads.Head(ctx, b.Base)
		if err == nil {
			err = rec.Record(commit, names...)
		}
		if err != nil {
			logger.Warn("Could not record devel commit.", "base", b.Base, "error", err)
		}
	}
}

// Exit codes for a finished run.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitAborted = 130
)

// ExitCode maps a run result to a process exit code.
func ExitCode(result *orchestrator.Result) int {
	switch {
	case result == nil || result.OK():
		return ExitOK
	case result.Aborted && errors.Is(result.AbortErr, model.ErrUserAbort):
		return ExitAborted
	default:
		return ExitFailure
	}
}
