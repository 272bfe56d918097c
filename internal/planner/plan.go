package planner

import (
	"fmt"
	"strings"

	"github.com/specialistvlad/pacforge/internal/graph"
	"github.com/specialistvlad/pacforge/internal/model"
)

// Kind separates binary installs from source builds.
type Kind int

const (
	// RepoBatch installs binary repository packages in one transaction.
	RepoBatch Kind = iota
	// SourceBatch builds and installs one package base.
	SourceBatch
)

func (k Kind) String() string {
	switch k {
	case RepoBatch:
		return "repo"
	case SourceBatch:
		return "source"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// PlanEdge is a requirement of one of a batch's nodes on another planned node.
type PlanEdge struct {
	From string
	To   string
	Kind model.DepKind
	// BuildOnly marks edges needed only while building From.
	BuildOnly bool
}

// Batch is one unit of execution.
type Batch struct {
	Index int
	Kind  Kind
	// Base is the package base of a source batch; empty for repo batches.
	Base  string
	Nodes []*graph.Node
	// DependsOn lists the indexes of earlier batches this one requires.
	DependsOn []int
	Edges     []PlanEdge
}

// Names returns the package names in the batch in discovery order.
func (b *Batch) Names() []string {
	out := make([]string, len(b.Nodes))
	for i, n := range b.Nodes {
		out[i] = n.Name
	}
	return out
}

// Label identifies the batch in logs and results: the base for source
// batches, the joined package names for repo batches.
func (b *Batch) Label() string {
	if b.Kind == SourceBatch {
		return b.Base
	}
	return strings.Join(b.Names(), ",")
}

// Packages returns the chosen packages of the batch.
func (b *Batch) Packages() []*model.Package {
	out := make([]*model.Package, len(b.Nodes))
	for i, n := range b.Nodes {
		out[i] = n.Package
	}
	return out
}

func (b *Batch) String() string {
	return fmt.Sprintf("#%d %s %s", b.Index, b.Kind, b.Label())
}

// Target records where an explicit target ended up.
type Target struct {
	Name string
	// Batch is the index of the batch installing the target, or -1 when it
	// was already satisfied.
	Batch int
}

// Plan is the ordered batch sequence derived from a frozen graph.
type Plan struct {
	Batches []*Batch
	Targets []Target
	// BuildOnly lists planned packages required only by build or check
	// edges, candidates for removal after the run.
	BuildOnly []string
}

// Empty reports whether nothing needs to be done.
func (p *Plan) Empty() bool {
	return len(p.Batches) == 0
}

// BatchOf returns the batch containing the named package, or nil.
func (p *Plan) BatchOf(name string) *Batch {
	for _, b := range p.Batches {
		for _, n := range b.Nodes {
			if n.Name == name {
				return b
			}
		}
	}
	return nil
}
