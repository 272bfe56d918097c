// Package conflict validates a frozen dependency graph against itself and
// against installed state.
package conflict

import (
	"context"
	"errors"
	"fmt"

	"github.com/specialistvlad/pacforge/internal/ctxlog"
	"github.com/specialistvlad/pacforge/internal/graph"
	"github.com/specialistvlad/pacforge/internal/model"
)

// ErrNotFrozen is returned when Detect is called on a graph still under
// construction.
var ErrNotFrozen = errors.New("conflict detection requires a frozen graph")

// InstalledSet is the installed state conflicts are checked against.
type InstalledSet interface {
	InstalledPackages() []*model.Package
}

// Detect reports every conflict among the packages the graph installs and
// between those packages and installed ones. It does not stop at the first
// hit: all conflicts are returned joined, and every node involved is marked
// Conflicted.
//
// An installed package is exempt when a node upgrades it (same name) or
// replaces it, since the transaction removes it.
func Detect(ctx context.Context, g *graph.Graph, installed InstalledSet) error {
	if !g.Frozen() {
		return ErrNotFrozen
	}
	logger := ctxlog.FromContext(ctx)

	var pending []*graph.Node
	for _, n := range g.Nodes() {
		if n.NeedsInstall() {
			pending = append(pending, n)
		}
	}

	var errs []error
	mark := func(nodes ...*graph.Node) {
		for _, n := range nodes {
			if n != nil {
				n.SetState(graph.Conflicted)
			}
		}
	}

	for i, a := range pending {
		for _, b := range pending[i+1:] {
			if reason, ok := nodeConflict(a.Package, b.Package); ok {
				mark(a, b)
				errs = append(errs, &model.ConflictError{A: a.Name, B: b.Name, Reason: reason})
			}
		}
	}

	if installed != nil {
		for _, p := range installed.InstalledPackages() {
			if exempt(p, pending) {
				continue
			}
			for _, n := range pending {
				if reason, ok := declaredConflict(n.Package, p); ok {
					mark(n)
					errs = append(errs, &model.ConflictError{A: n.Name, B: p.Name + " (installed)", Reason: reason})
				}
			}
		}
	}

	if len(errs) > 0 {
		logger.Error("Conflicts detected.", "count", len(errs))
		return errors.Join(errs...)
	}
	logger.Debug("No conflicts detected.", "packages", len(pending))
	return nil
}

// nodeConflict checks two packages that would both be installed.
func nodeConflict(a, b *model.Package) (string, bool) {
	if reason, ok := declaredConflict(a, b); ok {
		return reason, true
	}
	if replaces(a, b) || replaces(b, a) {
		return "", false
	}
	for _, pa := range a.Provides {
		for _, pb := range b.Provides {
			if pa.Name == pb.Name {
				return fmt.Sprintf("both provide %s", pa.Name), true
			}
		}
	}
	return "", false
}

// declaredConflict checks the conflicts lists of both packages against the
// other's capability set.
func declaredConflict(a, b *model.Package) (string, bool) {
	for _, c := range a.Conflicts {
		if c.SatisfiedByPackage(b) {
			return fmt.Sprintf("%s conflicts with %s", a.Name, c), true
		}
	}
	for _, c := range b.Conflicts {
		if c.SatisfiedByPackage(a) {
			return fmt.Sprintf("%s conflicts with %s", b.Name, c), true
		}
	}
	return "", false
}

// replaces reports whether a declares that it replaces b.
func replaces(a, b *model.Package) bool {
	for _, r := range a.Replaces {
		if r.SatisfiedByPackage(b) {
			return true
		}
	}
	return false
}

func exempt(p *model.Package, pending []*graph.Node) bool {
	for _, n := range pending {
		if n.Name == p.Name || replaces(n.Package, p) {
			return true
		}
	}
	return false
}
