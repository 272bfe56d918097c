// Package planner turns a frozen dependency graph into an ordered sequence
// of batches.
//
// Repo packages that do not depend on anything built from source are
// installed first, in a single transaction. Source packages are grouped by
// package base; a dependency cycle is legal only inside one base. Batches
// are ordered with Kahn's algorithm, breaking ties by discovery order.
package planner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/specialistvlad/pacforge/internal/ctxlog"
	"github.com/specialistvlad/pacforge/internal/graph"
	"github.com/specialistvlad/pacforge/internal/model"
)

// ErrNotFrozen is returned for graphs still under construction.
var ErrNotFrozen = errors.New("planning requires a frozen graph")

// group is a batch under construction.
type group struct {
	key     string
	kind    Kind
	base    string
	leading bool
	nodes   []*graph.Node
	deps    map[*group]bool
	first   int
}

// Build derives the batch sequence from g.
func Build(ctx context.Context, g *graph.Graph) (*Plan, error) {
	if !g.Frozen() {
		return nil, ErrNotFrozen
	}
	logger := ctxlog.FromContext(ctx)

	planned := make(map[string]*graph.Node)
	var order []*graph.Node
	for _, n := range g.Nodes() {
		if n.NeedsInstall() && n.State() == graph.Resolved {
			planned[n.Name] = n
			order = append(order, n)
		}
	}

	plan := &Plan{}
	if len(order) == 0 {
		plan.Targets = targets(g, nil)
		logger.Info("Nothing to do.")
		return plan, nil
	}

	isPlanned := func(n *graph.Node) bool { return planned[n.Name] != nil }
	ordering := func(e graph.Edge) bool { return e.Kind != model.OptionalDep }

	if err := checkCycles(g, isPlanned, ordering); err != nil {
		return nil, err
	}

	groups, byNode := groupNodes(g, order, planned, ordering)

	for _, n := range order {
		from := byNode[n.Name]
		for _, e := range g.Dependencies(n.Name) {
			if !ordering(e) || planned[e.To] == nil {
				continue
			}
			if to := byNode[e.To]; to != from {
				from.deps[to] = true
			}
		}
	}

	sorted, err := kahn(groups)
	if err != nil {
		return nil, err
	}

	index := make(map[*group]int, len(sorted))
	for i, grp := range sorted {
		index[grp] = i
	}
	runtimeNeeded := runtimeRequired(g, planned)
	for i, grp := range sorted {
		b := &Batch{Index: i, Kind: grp.kind, Base: grp.base, Nodes: grp.nodes}
		for dep := range grp.deps {
			b.DependsOn = append(b.DependsOn, index[dep])
		}
		sort.Ints(b.DependsOn)
		for _, n := range grp.nodes {
			for _, e := range g.Dependencies(n.Name) {
				if !ordering(e) || planned[e.To] == nil {
					continue
				}
				b.Edges = append(b.Edges, PlanEdge{
					From:      e.From,
					To:        e.To,
					Kind:      e.Kind,
					BuildOnly: e.Kind != model.RuntimeDep,
				})
			}
		}
		plan.Batches = append(plan.Batches, b)
	}

	for _, n := range order {
		if n.Reason() != graph.ExplicitTarget && !runtimeNeeded[n.Name] {
			plan.BuildOnly = append(plan.BuildOnly, n.Name)
		}
	}
	plan.Targets = targets(g, plan)

	logger.Info("Build plan ready.", "batches", len(plan.Batches), "packages", len(order))
	return plan, nil
}

// checkCycles rejects strongly connected components that cannot be built:
// any component touching a source package must consist of source packages
// of a single base.
func checkCycles(g *graph.Graph, keep graph.NodeFilter, follow graph.EdgeFilter) error {
	var errs []error
	for _, comp := range g.StronglyConnected(keep, follow) {
		if len(comp) < 2 {
			continue
		}
		hasSource := false
		bases := make(map[string]bool)
		var names []string
		for _, n := range comp {
			names = append(names, n.Name)
			if n.Source() == model.RemoteSource {
				hasSource = true
			}
			bases[n.Base()] = true
		}
		// Repo-only cycles go through one host package manager transaction.
		if !hasSource {
			continue
		}
		mixed := false
		for _, n := range comp {
			if n.Source() != model.RemoteSource {
				mixed = true
			}
		}
		if len(bases) > 1 || mixed {
			errs = append(errs, model.Errorf(model.ErrUnresolvableCycle, comp[0].Base(),
				"cycle spans %d package bases: %s", len(bases), strings.Join(names, " -> ")))
		}
	}
	return errors.Join(errs...)
}

// groupNodes assigns every planned node to a batch group. Repo nodes that
// reach no source node form the leading group; other repo nodes are grouped
// per strongly connected component; source nodes are grouped by base.
func groupNodes(g *graph.Graph, order []*graph.Node, planned map[string]*graph.Node, follow graph.EdgeFilter) ([]*group, map[string]*group) {
	byKey := make(map[string]*group)
	byNode := make(map[string]*group, len(order))
	var groups []*group

	get := func(key string, kind Kind, base string, first int) *group {
		if grp, ok := byKey[key]; ok {
			return grp
		}
		grp := &group{key: key, kind: kind, base: base, deps: make(map[*group]bool), first: first}
		byKey[key] = grp
		groups = append(groups, grp)
		return grp
	}

	reachesSource := func(n *graph.Node) bool {
		for name := range g.Reachable(n.Name, follow) {
			if p := planned[name]; p != nil && p.Source() == model.RemoteSource {
				return true
			}
		}
		return false
	}

	repoComponent := make(map[string]string)
	isPlannedRepo := func(n *graph.Node) bool {
		return planned[n.Name] != nil && n.Source() != model.RemoteSource
	}
	for _, comp := range g.StronglyConnected(isPlannedRepo, follow) {
		for _, n := range comp {
			repoComponent[n.Name] = comp[0].Name
		}
	}

	for _, n := range order {
		var grp *group
		switch {
		case n.Source() == model.RemoteSource:
			grp = get("source:"+n.Base(), SourceBatch, n.Base(), n.Order)
		case !reachesSource(n):
			grp = get("repo:", RepoBatch, "", -1)
			grp.leading = true
		default:
			grp = get("repo:"+repoComponent[n.Name], RepoBatch, "", n.Order)
		}
		grp.nodes = append(grp.nodes, n)
		byNode[n.Name] = grp
	}
	return groups, byNode
}

// kahn orders groups so every group follows the groups it depends on. The
// leading repo group goes first; other ties are broken by discovery order.
func kahn(groups []*group) ([]*group, error) {
	remaining := make(map[*group]int, len(groups))
	dependents := make(map[*group][]*group)
	for _, grp := range groups {
		remaining[grp] = len(grp.deps)
		for dep := range grp.deps {
			dependents[dep] = append(dependents[dep], grp)
		}
	}

	var ready []*group
	for _, grp := range groups {
		if remaining[grp] == 0 {
			ready = append(ready, grp)
		}
	}

	var out []*group
	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return ready[i].first < ready[j].first })
		next := ready[0]
		ready = ready[1:]
		out = append(out, next)
		for _, d := range dependents[next] {
			remaining[d]--
			if remaining[d] == 0 {
				ready = append(ready, d)
			}
		}
	}

	if len(out) != len(groups) {
		var stuck []string
		for _, grp := range groups {
			if remaining[grp] > 0 {
				stuck = append(stuck, groupLabel(grp))
			}
		}
		return nil, model.Errorf(model.ErrUnresolvableCycle, stuck[0],
			"batches depend on each other: %s", strings.Join(stuck, ", "))
	}
	return out, nil
}

func groupLabel(grp *group) string {
	if grp.kind == SourceBatch {
		return grp.base
	}
	names := make([]string, len(grp.nodes))
	for i, n := range grp.nodes {
		names[i] = n.Name
	}
	return fmt.Sprintf("repo[%s]", strings.Join(names, ","))
}

// runtimeRequired marks planned nodes some other node requires at runtime.
func runtimeRequired(g *graph.Graph, planned map[string]*graph.Node) map[string]bool {
	out := make(map[string]bool)
	for _, e := range g.Edges() {
		if e.Kind == model.RuntimeDep && planned[e.To] != nil {
			out[e.To] = true
		}
	}
	return out
}

func targets(g *graph.Graph, plan *Plan) []Target {
	var out []Target
	for _, n := range g.Targets() {
		t := Target{Name: n.Name, Batch: -1}
		if plan != nil {
			if b := plan.BatchOf(n.Name); b != nil {
				t.Batch = b.Index
			}
		}
		out = append(out, t)
	}
	return out
}
