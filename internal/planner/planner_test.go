package planner

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/specialistvlad/pacforge/internal/graph"
	"github.com/specialistvlad/pacforge/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nodeDef struct {
	name   string
	base   string
	source model.Source
	reason graph.Reason
	sat    bool
}

type edge struct {
	from, to string
	kind     model.DepKind
}

func src(name, base string) nodeDef { return nodeDef{name: name, base: base, source: model.RemoteSource, reason: graph.RuntimeDependency} }
func bin(name string) nodeDef     { return nodeDef{name: name, source: model.BinaryRepo, reason: graph.RuntimeDependency} }

func target(s nodeDef) nodeDef {
	s.reason = graph.ExplicitTarget
	return s
}

func rt(from, to string) edge  { return edge{from, to, model.RuntimeDep} }
func mk(from, to string) edge  { return edge{from, to, model.BuildDep} }

func build(t *testing.T, nodes []nodeDef, edges []edge) *graph.Graph {
	t.Helper()
	g := graph.New()
	for _, s := range nodes {
		p := &model.Package{Name: s.name, Base: s.base, Version: "1-1", Source: s.source}
		_, err := g.AddNode(p, s.reason, s.sat)
		require.NoError(t, err)
	}
	for _, e := range edges {
		require.NoError(t, g.AddEdge(e.from, e.to, e.kind, model.Constraint{Name: e.to}))
	}
	require.NoError(t, g.Freeze())
	return g
}

type batchView struct {
	Kind      Kind
	Label     string
	Names     []string
	DependsOn []int
}

func view(p *Plan) []batchView {
	var out []batchView
	for _, b := range p.Batches {
		out = append(out, batchView{Kind: b.Kind, Label: b.Label(), Names: b.Names(), DependsOn: b.DependsOn})
	}
	return out
}

func assertTopological(t *testing.T, p *Plan) {
	t.Helper()
	for _, b := range p.Batches {
		for _, d := range b.DependsOn {
			assert.Less(t, d, b.Index, "batch %s depends on later batch %d", b, d)
		}
	}
}

func TestBuild_Diamond(t *testing.T) {
	g := build(t,
		[]nodeDef{target(src("a", "a")), src("b", "b"), src("c", "c"), src("d", "d")},
		[]edge{rt("a", "b"), rt("a", "c"), rt("b", "d"), rt("c", "d")},
	)
	p, err := Build(context.Background(), g)
	require.NoError(t, err)
	assertTopological(t, p)

	want := []batchView{
		{Kind: SourceBatch, Label: "d", Names: []string{"d"}},
		{Kind: SourceBatch, Label: "b", Names: []string{"b"}, DependsOn: []int{0}},
		{Kind: SourceBatch, Label: "c", Names: []string{"c"}, DependsOn: []int{0}},
		{Kind: SourceBatch, Label: "a", Names: []string{"a"}, DependsOn: []int{1, 2}},
	}
	if diff := cmp.Diff(want, view(p)); diff != "" {
		t.Errorf("batches mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []Target{{Name: "a", Batch: 3}}, p.Targets)
}

func TestBuild_LeadingRepoBatch(t *testing.T) {
	g := build(t,
		[]nodeDef{target(src("app", "app")), bin("go"), bin("glibc"), src("lib", "lib"), bin("needs-lib")},
		[]edge{mk("app", "go"), rt("go", "glibc"), rt("app", "needs-lib"), rt("needs-lib", "lib")},
	)
	p, err := Build(context.Background(), g)
	require.NoError(t, err)
	assertTopological(t, p)

	want := []batchView{
		{Kind: RepoBatch, Label: "go,glibc", Names: []string{"go", "glibc"}},
		{Kind: SourceBatch, Label: "lib", Names: []string{"lib"}},
		{Kind: RepoBatch, Label: "needs-lib", Names: []string{"needs-lib"}, DependsOn: []int{1}},
		{Kind: SourceBatch, Label: "app", Names: []string{"app"}, DependsOn: []int{0, 2}},
	}
	if diff := cmp.Diff(want, view(p)); diff != "" {
		t.Errorf("batches mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_SplitPackageCycle(t *testing.T) {
	g := build(t,
		[]nodeDef{target(src("app", "app")), src("foo-lib", "foo"), src("foo-tools", "foo")},
		[]edge{rt("app", "foo-tools"), mk("foo-tools", "foo-lib"), rt("foo-lib", "foo-tools")},
	)
	p, err := Build(context.Background(), g)
	require.NoError(t, err)

	want := []batchView{
		{Kind: SourceBatch, Label: "foo", Names: []string{"foo-lib", "foo-tools"}},
		{Kind: SourceBatch, Label: "app", Names: []string{"app"}, DependsOn: []int{0}},
	}
	if diff := cmp.Diff(want, view(p)); diff != "" {
		t.Errorf("batches mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_UnresolvableCycles(t *testing.T) {
	t.Run("cycle across bases", func(t *testing.T) {
		g := build(t,
			[]nodeDef{target(src("a", "a")), src("b", "b")},
			[]edge{mk("a", "b"), mk("b", "a")},
		)
		_, err := Build(context.Background(), g)
		assert.ErrorIs(t, err, model.ErrUnresolvableCycle)
	})

	t.Run("cycle mixing repo and source", func(t *testing.T) {
		g := build(t,
			[]nodeDef{target(src("a", "a")), bin("r")},
			[]edge{mk("a", "r"), rt("r", "a")},
		)
		_, err := Build(context.Background(), g)
		assert.ErrorIs(t, err, model.ErrUnresolvableCycle)
	})

	t.Run("batch level cycle through another base", func(t *testing.T) {
		g := build(t,
			[]nodeDef{target(src("x1", "x")), src("y", "y"), src("x2", "x")},
			[]edge{mk("x1", "y"), rt("y", "x2")},
		)
		_, err := Build(context.Background(), g)
		assert.ErrorIs(t, err, model.ErrUnresolvableCycle)
	})

	t.Run("repo only cycle is fine", func(t *testing.T) {
		g := build(t,
			[]nodeDef{target(bin("a")), bin("b")},
			[]edge{rt("a", "b"), rt("b", "a")},
		)
		p, err := Build(context.Background(), g)
		require.NoError(t, err)
		require.Len(t, p.Batches, 1)
		assert.Equal(t, []string{"a", "b"}, p.Batches[0].Names())
	})
}

func TestBuild_EmptyWhenSatisfied(t *testing.T) {
	s := bin("vim")
	s.source = model.Installed
	s.sat = true
	g := build(t, []nodeDef{target(s)}, nil)

	p, err := Build(context.Background(), g)
	require.NoError(t, err)
	assert.True(t, p.Empty())
	assert.Equal(t, []Target{{Name: "vim", Batch: -1}}, p.Targets)
}

func TestBuild_BuildOnlyEdges(t *testing.T) {
	g := build(t,
		[]nodeDef{target(src("app", "app")), bin("go"), bin("libfoo")},
		[]edge{mk("app", "go"), rt("app", "libfoo")},
	)
	p, err := Build(context.Background(), g)
	require.NoError(t, err)

	assert.Equal(t, []string{"go"}, p.BuildOnly)
	app := p.BatchOf("app")
	require.NotNil(t, app)
	want := []PlanEdge{
		{From: "app", To: "go", Kind: model.BuildDep, BuildOnly: true},
		{From: "app", To: "libfoo", Kind: model.RuntimeDep},
	}
	if diff := cmp.Diff(want, app.Edges); diff != "" {
		t.Errorf("edges mismatch (-want +got):\n%s", diff)
	}
}

func TestBuild_SplitSiblingsShareBatch(t *testing.T) {
	g := build(t,
		[]nodeDef{target(src("py-a", "py")), target(src("py-b", "py")), src("dep", "dep")},
		[]edge{rt("py-a", "dep")},
	)
	p, err := Build(context.Background(), g)
	require.NoError(t, err)
	require.Len(t, p.Batches, 2)
	assert.Equal(t, "py", p.Batches[1].Base)
	assert.Equal(t, []string{"py-a", "py-b"}, p.Batches[1].Names())
}

func TestBuild_RequiresFrozenGraph(t *testing.T) {
	_, err := Build(context.Background(), graph.New())
	assert.ErrorIs(t, err, ErrNotFrozen)
}

func TestBuild_RandomAcyclicGraphsAreTopological(t *testing.T) {
	for seed := int64(1); seed <= 25; seed++ {
		t.Run(fmt.Sprintf("seed_%d", seed), func(t *testing.T) {
			rng := rand.New(rand.NewSource(seed))
			n := 5 + rng.Intn(20)

			nodes := make([]nodeDef, n)
			for i := range nodes {
				name := fmt.Sprintf("p%02d", i)
				if rng.Intn(3) == 0 {
					nodes[i] = bin(name)
				} else {
					nodes[i] = src(name, name)
				}
				if i >= n-2 {
					nodes[i] = target(nodes[i])
				}
			}
			// Edges only point at lower indices, so the graph is acyclic.
			var edges []edge
			for i := 1; i < n; i++ {
				for j := 0; j < i; j++ {
					if rng.Intn(4) != 0 {
						continue
					}
					from, to := nodes[i].name, nodes[j].name
					if rng.Intn(2) == 0 {
						edges = append(edges, rt(from, to))
					} else {
						edges = append(edges, mk(from, to))
					}
				}
			}

			p, err := Build(context.Background(), build(t, nodes, edges))
			require.NoError(t, err)
			assertTopological(t, p)

			batchOf := make(map[string]int)
			for _, b := range p.Batches {
				for _, name := range b.Names() {
					_, dup := batchOf[name]
					require.False(t, dup, "%s planned twice", name)
					batchOf[name] = b.Index
				}
			}
			assert.Len(t, batchOf, n)
			for _, e := range edges {
				assert.LessOrEqual(t, batchOf[e.to], batchOf[e.from], "%s -> %s", e.from, e.to)
			}
		})
	}
}
