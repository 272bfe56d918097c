package graph

import (
	"errors"
	"fmt"
	"sync"

	"github.com/specialistvlad/pacforge/internal/model"
)

// ErrFrozen is returned by mutating calls on a frozen graph.
var ErrFrozen = errors.New("dependency graph is frozen")

// Graph is the dependency graph of one resolution run. All operations are
// concurrency-safe.
type Graph struct {
	mutex sync.RWMutex
	nodes map[string]*Node
	order []*Node
	// deps holds outgoing edges (requirements) keyed by the requiring node.
	deps map[string][]Edge
	// dependents holds incoming edges keyed by the required node.
	dependents map[string][]Edge
	frozen     bool
}

// New creates and returns an initialized, empty Graph.
func New() *Graph {
	return &Graph{
		nodes:      make(map[string]*Node),
		deps:       make(map[string][]Edge),
		dependents: make(map[string][]Edge),
	}
}

// AddNode binds pkg as a Resolved node keyed by its name. If a node with the
// same name exists it is returned unchanged, except that its reason is
// strengthened when the new reason is stronger.
func (g *Graph) AddNode(pkg *model.Package, reason Reason, satisfied bool) (*Node, error) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if g.frozen {
		return nil, ErrFrozen
	}
	if n, ok := g.nodes[pkg.Name]; ok {
		if reason < n.reason {
			n.reason = reason
		}
		return n, nil
	}

	n := &Node{Name: pkg.Name, Package: pkg, Satisfied: satisfied, Order: len(g.order), reason: reason}
	n.SetState(Resolved)
	g.nodes[n.Name] = n
	g.order = append(g.order, n)
	return n, nil
}

// AddMissing records a requirement no candidate satisfies.
func (g *Graph) AddMissing(name string, reason Reason) (*Node, error) {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if g.frozen {
		return nil, ErrFrozen
	}
	if n, ok := g.nodes[name]; ok {
		return n, nil
	}
	n := &Node{Name: name, Order: len(g.order), reason: reason}
	n.SetState(Missing)
	g.nodes[name] = n
	g.order = append(g.order, n)
	return n, nil
}

// PromoteReason strengthens the reason of an existing node.
func (g *Graph) PromoteReason(name string, reason Reason) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if g.frozen {
		return ErrFrozen
	}
	n, ok := g.nodes[name]
	if !ok {
		return fmt.Errorf("node not found: %s", name)
	}
	if reason < n.reason {
		n.reason = reason
	}
	return nil
}

// AddEdge records that fromName requires toName. Duplicate edges of the same
// kind are collapsed. Self-edges are ignored: a package providing its own
// dependency needs nothing else.
func (g *Graph) AddEdge(fromName, toName string, kind model.DepKind, c model.Constraint) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if g.frozen {
		return ErrFrozen
	}
	if _, ok := g.nodes[fromName]; !ok {
		return fmt.Errorf("source node not found: %s", fromName)
	}
	if _, ok := g.nodes[toName]; !ok {
		return fmt.Errorf("destination node not found: %s", toName)
	}
	if fromName == toName {
		return nil
	}
	for _, e := range g.deps[fromName] {
		if e.To == toName && e.Kind == kind {
			return nil
		}
	}

	e := Edge{From: fromName, To: toName, Kind: kind, Constraint: c}
	g.deps[fromName] = append(g.deps[fromName], e)
	g.dependents[toName] = append(g.dependents[toName], e)
	return nil
}

// Node returns the node named name.
func (g *Graph) Node(name string) (*Node, bool) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	n, ok := g.nodes[name]
	return n, ok
}

// Nodes returns every node in discovery order.
func (g *Graph) Nodes() []*Node {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return append([]*Node(nil), g.order...)
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return len(g.order)
}

// Dependencies returns the outgoing edges of the named node in insertion order.
func (g *Graph) Dependencies(name string) []Edge {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return append([]Edge(nil), g.deps[name]...)
}

// Dependents returns the incoming edges of the named node in insertion order.
func (g *Graph) Dependents(name string) []Edge {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return append([]Edge(nil), g.dependents[name]...)
}

// Edges returns every edge, grouped by requiring node in discovery order.
func (g *Graph) Edges() []Edge {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	var out []Edge
	for _, n := range g.order {
		out = append(out, g.deps[n.Name]...)
	}
	return out
}

// Freeze validates the graph and rejects any further structural change. A
// graph with Missing or Pending nodes cannot be frozen.
func (g *Graph) Freeze() error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if g.frozen {
		return nil
	}
	for _, n := range g.order {
		switch n.State() {
		case Missing:
			return model.Errorf(model.ErrUnsatisfiedDependency, n.Name, "unbound requirement in graph")
		case Pending:
			return fmt.Errorf("node %s is still pending resolution", n.Name)
		}
	}
	g.frozen = true
	return nil
}

// Frozen reports whether Freeze has succeeded.
func (g *Graph) Frozen() bool {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.frozen
}

// Targets returns the explicit target nodes in discovery order.
func (g *Graph) Targets() []*Node {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	var out []*Node
	for _, n := range g.order {
		if n.reason == ExplicitTarget {
			out = append(out, n)
		}
	}
	return out
}
