// Package resolver expands explicit targets into a frozen dependency graph.
//
// Resolution is breadth-first. Every requirement is bound in this order: an
// existing node that already satisfies it, an installed package, then the
// best repo or remote candidate under the configured provider order. Each
// name is resolved once; a later requirement the existing binding cannot
// meet is a version conflict, never a re-resolution.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/pacforge/internal/ctxlog"
	"github.com/specialistvlad/pacforge/internal/graph"
	"github.com/specialistvlad/pacforge/internal/model"
)

// Index is the subset of the package index the resolver needs.
type Index interface {
	Satisfiers(ctx context.Context, c model.Constraint) ([]*model.Package, error)
	InstalledSatisfier(c model.Constraint) *model.Package
	RepoPriority(repo string) int
	Prefetch(ctx context.Context, names []string) error
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithProviderOrder overrides DefaultProviderOrder.
func WithProviderOrder(order []ProviderKey) Option {
	return func(r *Resolver) {
		if len(order) > 0 {
			r.order = order
		}
	}
}

// WithChooser installs the decision point for ambiguous providers.
func WithChooser(c ProviderChooser) Option {
	return func(r *Resolver) { r.chooser = c }
}

// Resolver builds dependency graphs against one index snapshot.
type Resolver struct {
	idx     Index
	policy  Policy
	order   []ProviderKey
	chooser ProviderChooser
}

// New creates a Resolver.
func New(idx Index, policy Policy, opts ...Option) *Resolver {
	r := &Resolver{idx: idx, policy: policy, order: DefaultProviderOrder}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the policy the resolver was built with.
func (r *Resolver) Policy() Policy {
	return r.policy
}

// Resolve expands targets into a dependency graph. On success the graph is
// frozen. On failure the partial graph is returned alongside every error
// found, joined, so callers can show the complete picture.
func (r *Resolver) Resolve(ctx context.Context, targets []string) (*graph.Graph, error) {
	logger := ctxlog.FromContext(ctx)
	g := graph.New()

	constraints, err := model.ParseConstraints(targets)
	if err != nil {
		return g, err
	}

	var errs []error
	var level []*graph.Node

	if err := r.idx.Prefetch(ctx, constraintNames(constraints)); err != nil {
		logger.Debug("Prefetch of targets failed, falling back to per-name lookups.", "error", err)
	}

	for _, c := range constraints {
		n, err := r.bindTarget(ctx, g, c)
		if err != nil {
			if ctx.Err() != nil {
				return g, ctx.Err()
			}
			errs = append(errs, err)
			continue
		}
		if n != nil && !n.Satisfied {
			level = append(level, n)
		}
	}

	for len(level) > 0 {
		r.prefetchLevel(ctx, level)

		var next []*graph.Node
		for _, n := range level {
			for _, kind := range r.expandKinds(n.Package) {
				for _, c := range n.Package.Deps(kind) {
					dep, created, err := r.bind(ctx, g, n, c, kind)
					if err != nil {
						if ctx.Err() != nil {
							return g, ctx.Err()
						}
						errs = append(errs, err)
						continue
					}
					if created && !dep.Satisfied && dep.State() == graph.Resolved {
						next = append(next, dep)
					}
				}
			}
		}
		level = next
	}

	if len(errs) > 0 {
		logger.Error("Resolution failed.", "errors", len(errs))
		return g, errors.Join(errs...)
	}
	if err := g.Freeze(); err != nil {
		return g, err
	}
	logger.Info("Resolution complete.", "nodes", g.Len())
	return g, nil
}

// expandKinds lists the dependency kinds followed for a bound package.
// Build-time requirements only matter for packages this run builds.
func (r *Resolver) expandKinds(p *model.Package) []model.DepKind {
	if p.Source != model.RemoteSource {
		return []model.DepKind{model.RuntimeDep}
	}
	kinds := []model.DepKind{model.RuntimeDep, model.BuildDep}
	if r.policy.BuildTests {
		kinds = append(kinds, model.CheckDep)
	}
	return kinds
}

func (r *Resolver) prefetchLevel(ctx context.Context, level []*graph.Node) {
	var names []string
	seen := make(map[string]bool)
	for _, n := range level {
		for _, kind := range r.expandKinds(n.Package) {
			for _, c := range n.Package.Deps(kind) {
				if !seen[c.Name] && r.idx.InstalledSatisfier(c) == nil {
					seen[c.Name] = true
					names = append(names, c.Name)
				}
			}
		}
	}
	if err := r.idx.Prefetch(ctx, names); err != nil {
		ctxlog.FromContext(ctx).Debug("Prefetch failed, falling back to per-name lookups.", "error", err)
	}
}

// bindTarget resolves one explicit target. It returns a nil node when the
// target is already satisfied and skipped.
func (r *Resolver) bindTarget(ctx context.Context, g *graph.Graph, c model.Constraint) (*graph.Node, error) {
	logger := ctxlog.FromContext(ctx)

	if existing, ok := g.Node(c.Name); ok {
		if existing.Package != nil && c.SatisfiedByPackage(existing.Package) {
			return existing, g.PromoteReason(existing.Name, graph.ExplicitTarget)
		}
		return nil, model.Errorf(model.ErrVersionConflict, c.Name, "target %s conflicts with already selected %s", c, existing)
	}

	if r.policy.SkipSatisfied && !r.policy.Rebuild {
		if inst := r.idx.InstalledSatisfier(c); inst != nil {
			logger.Info("Target is up to date, skipping.", "target", c.String(), "installed", inst.ID())
			return g.AddNode(inst, graph.ExplicitTarget, true)
		}
	}

	cands, err := r.candidates(ctx, c, true)
	if err != nil {
		return nil, err
	}
	if len(cands) == 0 {
		return nil, model.Errorf(model.ErrPackageNotFound, c.Name, "no %s candidate satisfies %s", r.policy.Mode, c)
	}
	chosen, err := r.choose(ctx, c, cands)
	if err != nil {
		return nil, err
	}
	logger.Debug("Bound target.", "target", c.String(), "package", chosen.String())
	return g.AddNode(chosen, graph.ExplicitTarget, false)
}

// bind resolves requirement c of node from and records the edge. created
// reports whether the returned node is new to the graph.
func (r *Resolver) bind(ctx context.Context, g *graph.Graph, from *graph.Node, c model.Constraint, kind model.DepKind) (*graph.Node, bool, error) {
	reason := graph.ReasonFor(kind)

	link := func(n *graph.Node, created bool) (*graph.Node, bool, error) {
		if err := g.AddEdge(from.Name, n.Name, kind, c); err != nil {
			return nil, false, err
		}
		if !created {
			if err := g.PromoteReason(n.Name, reason); err != nil {
				return nil, false, err
			}
		}
		return n, created, nil
	}

	// Same-name binding: reuse or conflict.
	if existing, ok := g.Node(c.Name); ok {
		if existing.State() == graph.Missing {
			return link(existing, false)
		}
		if c.SatisfiedByPackage(existing.Package) {
			return link(existing, false)
		}
		if p := r.existingProvider(g, c); p != nil {
			return link(p, false)
		}
		return nil, false, model.Errorf(model.ErrVersionConflict, c.Name,
			"%s requires %s but %s is already selected", from.Name, c, existing)
	}

	if p := r.existingProvider(g, c); p != nil {
		return link(p, false)
	}

	if inst := r.idx.InstalledSatisfier(c); inst != nil {
		if n, ok := g.Node(inst.Name); ok {
			return link(n, false)
		}
		n, err := g.AddNode(inst, reason, true)
		if err != nil {
			return nil, false, err
		}
		return link(n, true)
	}

	cands, err := r.candidates(ctx, c, false)
	if err != nil {
		return nil, false, err
	}
	if len(cands) == 0 {
		missing, addErr := g.AddMissing(c.Name, reason)
		if addErr != nil {
			return nil, false, addErr
		}
		if _, _, linkErr := link(missing, false); linkErr != nil {
			return nil, false, linkErr
		}
		uerr := &model.Error{
			Kind:    model.ErrUnsatisfiedDependency,
			Package: c.Name,
			Msg:     fmt.Sprintf("%s dependency of %s has no satisfying candidate", kind, from.Name),
		}
		found, err := r.known(ctx, c.Name)
		if err != nil {
			return nil, false, err
		}
		if !found {
			uerr.Cause = model.ErrPackageNotFound
		}
		return nil, false, uerr
	}

	chosen, err := r.choose(ctx, c, cands)
	if err != nil {
		return nil, false, err
	}
	if existing, ok := g.Node(chosen.Name); ok {
		return nil, false, model.Errorf(model.ErrVersionConflict, chosen.Name,
			"%s requires %s (via %s) but %s is already selected", from.Name, c, chosen.ID(), existing)
	}
	n, err := g.AddNode(chosen, reason, false)
	if err != nil {
		return nil, false, err
	}
	ctxlog.FromContext(ctx).Debug("Bound dependency.", "from", from.Name, "requirement", c.String(), "kind", kind.String(), "package", chosen.String())
	return link(n, true)
}

// existingProvider returns the first already-bound node, in discovery order,
// whose capability set meets c.
func (r *Resolver) existingProvider(g *graph.Graph, c model.Constraint) *graph.Node {
	for _, n := range g.Nodes() {
		if n.Package != nil && n.State() != graph.Missing && c.SatisfiedByPackage(n.Package) {
			return n
		}
	}
	return nil
}

// candidates returns the non-installed satisfiers of c. Targets are further
// restricted by the policy mode.
func (r *Resolver) candidates(ctx context.Context, c model.Constraint, target bool) ([]*model.Package, error) {
	all, err := r.idx.Satisfiers(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("looking up %s: %w", c, err)
	}
	out := make([]*model.Package, 0, len(all))
	for _, p := range all {
		if p.Source == model.Installed {
			continue
		}
		if target && !r.modeAllows(p) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// known reports whether any source carries or provides name, whatever the
// version.
func (r *Resolver) known(ctx context.Context, name string) (bool, error) {
	all, err := r.idx.Satisfiers(ctx, model.Constraint{Name: name})
	if err != nil {
		return false, fmt.Errorf("looking up %s: %w", name, err)
	}
	return len(all) > 0, nil
}

func (r *Resolver) modeAllows(p *model.Package) bool {
	switch r.policy.Mode {
	case ModeRepo:
		return p.Source == model.BinaryRepo
	case ModeRemote:
		return p.Source == model.RemoteSource
	default:
		return true
	}
}

func constraintNames(cs []model.Constraint) []string {
	names := make([]string, len(cs))
	for i, c := range cs {
		names[i] = c.Name
	}
	return names
}
