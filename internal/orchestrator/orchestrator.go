// Package orchestrator drives planned batches through fetch, review, build
// and install.
//
// Source batches are fetched concurrently and reviewed in plan order before
// anything is built, so aborting a review never leaves partial installs.
// Builds and installs then run one batch at a time in plan order, each
// holding the package database lock. A failed batch prunes every batch that
// depends on it; independent batches keep going.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/specialistvlad/pacforge/internal/ctxlog"
	"github.com/specialistvlad/pacforge/internal/model"
	"github.com/specialistvlad/pacforge/internal/planner"
	"github.com/specialistvlad/pacforge/internal/progress"
	"golang.org/x/sync/errgroup"
)

// Options tunes an Orchestrator.
type Options struct {
	// FetchConcurrency bounds concurrent fetches. Defaults to 4.
	FetchConcurrency int
	// FetchTimeout bounds each fetch. Zero means no timeout. Builds and
	// installs are never timed out.
	FetchTimeout time.Duration
	// AsDeps installs explicit targets with the dependency install reason.
	AsDeps bool
	// RemoveBuildOnly removes build-only packages after a run.
	RemoveBuildOnly bool
	Lock            TxLock
	Metrics         *Metrics
	Sink            progress.Sink
}

// Orchestrator executes plans.
type Orchestrator struct {
	fetcher    Fetcher
	reviewer   Reviewer
	builder    Builder
	transactor Transactor
	opts       Options
}

// New creates an Orchestrator. A nil reviewer approves everything.
func New(f Fetcher, r Reviewer, b Builder, t Transactor, opts Options) *Orchestrator {
	if r == nil {
		r = AcceptAll{}
	}
	if opts.FetchConcurrency <= 0 {
		opts.FetchConcurrency = 4
	}
	if opts.Lock == nil {
		opts.Lock = NewLock()
	}
	if opts.Metrics == nil {
		opts.Metrics = NewMetrics(nil)
	}
	if opts.Sink == nil {
		opts.Sink = progress.Nop{}
	}
	return &Orchestrator{fetcher: f, reviewer: r, builder: b, transactor: t, opts: opts}
}

// batchRun is the mutable execution record of one batch.
type batchRun struct {
	batch *planner.Batch
	mu    sync.Mutex
	state State
	err   error
	dir   string
	files []string
}

func (br *batchRun) current() State {
	br.mu.Lock()
	defer br.mu.Unlock()
	return br.state
}

// run holds the state of one Run call.
type run struct {
	o      *Orchestrator
	id     string
	plan   *planner.Plan
	runs   []*batchRun
	result *Result
}

// Run executes plan. Batch failures are reported in the Result; the error
// return is reserved for invalid input.
func (o *Orchestrator) Run(ctx context.Context, plan *planner.Plan) (*Result, error) {
	if plan == nil {
		return nil, errors.New("nil plan")
	}
	id := uuid.NewString()
	ctx = ctxlog.With(ctx, "run", id)
	logger := ctxlog.FromContext(ctx)

	r := &run{o: o, id: id, plan: plan, result: &Result{RunID: id, Targets: make(map[string]Outcome)}}
	for _, b := range plan.Batches {
		r.runs = append(r.runs, &batchRun{batch: b, state: Pending})
	}

	if plan.Empty() {
		logger.Info("Nothing to do.")
		r.finish(ctx)
		return r.result, nil
	}

	logger.Info("Starting run.", "batches", len(plan.Batches))
	r.prepare(ctx)
	if abortErr := r.review(ctx); abortErr != nil {
		r.abortRemaining(ctx, abortErr)
	} else {
		r.execute(ctx)
	}
	if o.opts.RemoveBuildOnly && !r.result.Aborted {
		r.cleanup(ctx)
	}
	r.finish(ctx)
	logger.Info("Run finished.", "succeeded", len(r.result.Succeeded), "failed", len(r.result.Failed), "pruned", len(r.result.Pruned), "aborted", r.result.Aborted)
	return r.result, nil
}

// transition moves a batch to a new state and publishes the event.
func (r *run) transition(ctx context.Context, br *batchRun, to State, err error) {
	br.mu.Lock()
	from := br.state
	if !isAllowedTransition(from, to) {
		br.mu.Unlock()
		ctxlog.FromContext(ctx).Error("Disallowed batch transition.", "batch", br.batch.Label(), "from", from.String(), "to", to.String())
		return
	}
	br.state = to
	if err != nil {
		br.err = err
	}
	br.mu.Unlock()

	ev := progress.Event{RunID: r.id, Batch: br.batch.Index, Label: br.batch.Label(), State: to.String(), Time: time.Now()}
	if err != nil {
		ev.Error = err.Error()
	}
	r.o.opts.Sink.Publish(ctx, ev)
	if to.Terminal() {
		r.o.opts.Metrics.BatchOutcomes.WithLabelValues(br.batch.Kind.String(), to.String()).Inc()
	}
}

// prepare fetches every source batch concurrently.
func (r *run) prepare(ctx context.Context) {
	var g errgroup.Group
	g.SetLimit(r.o.opts.FetchConcurrency)
	for _, br := range r.runs {
		if br.batch.Kind != planner.SourceBatch {
			continue
		}
		g.Go(func() error {
			r.fetch(ctx, br)
			return nil
		})
	}
	_ = g.Wait()
}

func (r *run) fetch(ctx context.Context, br *batchRun) {
	logger := ctxlog.FromContext(ctx).With("base", br.batch.Base)
	if ctx.Err() != nil {
		return
	}

	fetchCtx := ctx
	if r.o.opts.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, r.o.opts.FetchTimeout)
		defer cancel()
	}

	logger.Debug("Fetching recipe.")
	dir, err := r.o.fetcher.Fetch(fetchCtx, br.batch.Base)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		logger.Error("Fetch failed.", "error", err)
		r.transition(ctx, br, Failed, model.Wrap(model.ErrFetchFailure, br.batch.Base, err))
		return
	}
	br.mu.Lock()
	br.dir = dir
	br.mu.Unlock()
	r.transition(ctx, br, Fetched, nil)
}

// review presents fetched recipes in plan order. It returns the abort cause
// when the run must stop.
func (r *run) review(ctx context.Context) error {
	for _, br := range r.runs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if br.current() != Fetched {
			continue
		}
		if err := r.o.reviewer.Review(ctx, br.batch.Base, br.dir); err != nil {
			if !errors.Is(err, model.ErrUserAbort) && ctx.Err() == nil {
				err = model.Wrap(model.ErrUserAbort, br.batch.Base, err)
			}
			ctxlog.FromContext(ctx).Warn("Review aborted the run.", "base", br.batch.Base, "error", err)
			return err
		}
		r.transition(ctx, br, Reviewed, nil)
	}
	return ctx.Err()
}

// execute builds and installs batches in plan order.
func (r *run) execute(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	for _, br := range r.runs {
		if err := ctx.Err(); err != nil {
			logger.Warn("Run cancelled at batch boundary.", "next", br.batch.Label())
			r.abortRemaining(ctx, err)
			return
		}
		if br.current().Terminal() {
			continue
		}
		if dep := r.failedDependency(br); dep != nil {
			logger.Warn("Pruning batch after dependency failure.", "batch", br.batch.Label(), "dependency", dep.batch.Label())
			r.transition(ctx, br, Pruned, fmt.Errorf("dependency %s did not install", dep.batch.Label()))
			continue
		}

		switch br.batch.Kind {
		case planner.RepoBatch:
			r.install(ctx, br, InstallRequest{Label: br.batch.Label(), Packages: br.batch.Names(), AsDeps: r.asDeps(br)})
		case planner.SourceBatch:
			if br.current() != Reviewed {
				r.transition(ctx, br, Failed, model.Errorf(model.ErrFetchFailure, br.batch.Base, "recipe was not prepared"))
				continue
			}
			if r.build(ctx, br) {
				r.install(ctx, br, InstallRequest{Label: br.batch.Label(), Files: br.files, AsDeps: r.asDeps(br)})
			}
		}
	}
}

// failedDependency returns the first dependency batch that did not install.
func (r *run) failedDependency(br *batchRun) *batchRun {
	for _, idx := range br.batch.DependsOn {
		dep := r.runs[idx]
		if dep.current() != Installed {
			return dep
		}
	}
	return nil
}

func (r *run) build(ctx context.Context, br *batchRun) bool {
	logger := ctxlog.FromContext(ctx).With("base", br.batch.Base)

	release, err := r.o.opts.Lock.Acquire(ctx)
	if err != nil {
		r.abortRemaining(ctx, err)
		return false
	}
	defer release()

	logger.Info("Building.")
	start := time.Now()
	files, err := r.o.builder.Build(context.WithoutCancel(ctx), BuildRequest{
		Base:     br.batch.Base,
		Dir:      br.dir,
		Packages: br.batch.Packages(),
	})
	r.o.opts.Metrics.BuildDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		logger.Error("Build failed.", "error", err)
		r.transition(ctx, br, Failed, model.Wrap(model.ErrBuildFailure, br.batch.Base, err))
		return false
	}
	br.files = files
	r.transition(ctx, br, Built, nil)
	return true
}

func (r *run) install(ctx context.Context, br *batchRun, req InstallRequest) {
	logger := ctxlog.FromContext(ctx).With("batch", br.batch.Label())

	// A batch that got this far installs even if the run is cancelled.
	release, err := r.o.opts.Lock.Acquire(context.WithoutCancel(ctx))
	if err != nil {
		r.transition(ctx, br, Failed, model.Wrap(model.ErrInstallFailure, br.batch.Label(), err))
		return
	}
	defer release()

	logger.Info("Installing.")
	err = r.o.transactor.Install(context.WithoutCancel(ctx), req)
	r.o.opts.Metrics.Transactions.WithLabelValues("install", resultLabel(err)).Inc()
	if err != nil {
		logger.Error("Install failed.", "error", err)
		r.transition(ctx, br, Failed, model.Wrap(model.ErrInstallFailure, br.batch.Label(), err))
		return
	}
	r.transition(ctx, br, Installed, nil)
}

// asDeps lists the batch's packages to install with the dependency reason:
// every non-target, plus targets when the policy asks for it.
func (r *run) asDeps(br *batchRun) []string {
	targets := make(map[string]bool, len(r.plan.Targets))
	for _, t := range r.plan.Targets {
		targets[t.Name] = true
	}
	var out []string
	for _, name := range br.batch.Names() {
		if r.o.opts.AsDeps || !targets[name] {
			out = append(out, name)
		}
	}
	return out
}

// abortRemaining marks every non-terminal batch Aborted.
func (r *run) abortRemaining(ctx context.Context, cause error) {
	r.result.Aborted = true
	r.result.AbortErr = cause
	for _, br := range r.runs {
		if !br.current().Terminal() {
			r.transition(ctx, br, Aborted, cause)
		}
	}
}

// cleanup removes build-only packages whose batches installed, in one
// locked transaction.
func (r *run) cleanup(ctx context.Context) {
	var names []string
	for _, name := range r.plan.BuildOnly {
		b := r.plan.BatchOf(name)
		if b != nil && r.runs[b.Index].current() == Installed {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return
	}

	logger := ctxlog.FromContext(ctx)
	release, err := r.o.opts.Lock.Acquire(context.WithoutCancel(ctx))
	if err != nil {
		r.result.CleanupErr = err
		return
	}
	defer release()

	logger.Info("Removing build-only packages.", "packages", names)
	err = r.o.transactor.Remove(context.WithoutCancel(ctx), names)
	r.o.opts.Metrics.Transactions.WithLabelValues("remove", resultLabel(err)).Inc()
	if err != nil {
		logger.Error("Removing build-only packages failed.", "error", err)
		r.result.CleanupErr = err
	}
}

// finish fills the result record from the final batch states.
func (r *run) finish(ctx context.Context) {
	res := r.result
	for _, br := range r.runs {
		label := br.batch.Label()
		switch br.current() {
		case Installed:
			res.Succeeded = append(res.Succeeded, label)
		case Failed:
			res.Failed = append(res.Failed, Failure{Label: label, Kind: model.KindOf(br.err), Err: br.err})
		case Pruned:
			res.Pruned = append(res.Pruned, label)
		case Aborted:
			res.NotRun = append(res.NotRun, label)
		default:
			ctxlog.FromContext(ctx).Error("Batch left in non-terminal state.", "batch", label, "state", br.current().String())
		}
	}

	for _, t := range r.plan.Targets {
		if t.Batch < 0 {
			res.Targets[t.Name] = OutcomeUpToDate
			continue
		}
		switch r.runs[t.Batch].current() {
		case Installed:
			res.Targets[t.Name] = OutcomeInstalled
		case Failed:
			res.Targets[t.Name] = OutcomeFailed
		case Pruned:
			res.Targets[t.Name] = OutcomePruned
		default:
			res.Targets[t.Name] = OutcomeAborted
		}
	}
}
