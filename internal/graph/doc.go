// Package graph is the dependency graph built by the resolver.
//
// Nodes live in an arena keyed by package name and remember their discovery
// order, which every later stage uses as the final deterministic tie-break.
// Edges are typed (runtime, build, check) and point from the requiring node
// to the node that satisfies the requirement.
//
// The graph is built incrementally and then frozen. A frozen graph rejects
// new nodes, edges and reason changes; only node states may still move (the
// conflict detector marks nodes Conflicted).
package graph
