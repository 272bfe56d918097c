package graph

import (
	"fmt"
	"sync/atomic"

	"github.com/specialistvlad/pacforge/internal/model"
)

// Reason records why a node is part of the graph. Lower values are stronger.
type Reason int

const (
	ExplicitTarget Reason = iota
	RuntimeDependency
	BuildDependency
	CheckDependency
)

func (r Reason) String() string {
	switch r {
	case ExplicitTarget:
		return "explicit"
	case RuntimeDependency:
		return "runtime-dependency"
	case BuildDependency:
		return "build-dependency"
	case CheckDependency:
		return "check-dependency"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

// ReasonFor maps a dependency edge kind to the node reason it implies.
func ReasonFor(kind model.DepKind) Reason {
	switch kind {
	case model.BuildDep:
		return BuildDependency
	case model.CheckDep:
		return CheckDependency
	default:
		return RuntimeDependency
	}
}

// State is the resolution state of a node.
type State int32

const (
	Pending State = iota
	Resolved
	Missing
	Conflicted
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	case Missing:
		return "missing"
	case Conflicted:
		return "conflicted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Node is one resolution unit: a chosen package plus resolution metadata.
type Node struct {
	// Name is the arena key. For Missing nodes it is the unsatisfied name.
	Name string
	// Package is the chosen candidate; nil for Missing nodes.
	Package *model.Package
	// Satisfied is set when the node is bound to installed state. Such
	// nodes are never expanded and never become part of a batch.
	Satisfied bool
	// Order is the node's discovery index.
	Order int

	reason Reason
	state  atomic.Int32
}

// Reason returns the strongest reason recorded for the node.
func (n *Node) Reason() Reason {
	return n.reason
}

// State atomically returns the node's state.
func (n *Node) State() State {
	return State(n.state.Load())
}

// SetState atomically sets the node's state.
func (n *Node) SetState(s State) {
	n.state.Store(int32(s))
}

// Base returns the package base of the chosen package.
func (n *Node) Base() string {
	if n.Package == nil {
		return n.Name
	}
	return n.Package.BaseName()
}

// Source returns the chosen package's source.
func (n *Node) Source() model.Source {
	if n.Package == nil {
		return model.RemoteSource
	}
	return n.Package.Source
}

// NeedsInstall reports whether the node must be installed by the plan.
func (n *Node) NeedsInstall() bool {
	return !n.Satisfied && n.Package != nil && n.State() != Missing
}

func (n *Node) String() string {
	if n.Package == nil {
		return n.Name + " (missing)"
	}
	return n.Package.String()
}

// Edge is a typed requirement: From requires To.
type Edge struct {
	From       string
	To         string
	Kind       model.DepKind
	Constraint model.Constraint
}

func (e Edge) String() string {
	return fmt.Sprintf("%s -[%s %s]-> %s", e.From, e.Kind, e.Constraint, e.To)
}
