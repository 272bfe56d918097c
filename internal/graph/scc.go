package graph

// NodeFilter selects the nodes taking part in a traversal.
type NodeFilter func(*Node) bool

// EdgeFilter selects the edges taking part in a traversal.
type EdgeFilter func(Edge) bool

// StronglyConnected returns the strongly connected components of the
// subgraph induced by keep and follow, using Tarjan's algorithm.
//
// Components are returned in discovery order of their first member and each
// component lists its nodes in discovery order, so the result is fully
// deterministic. Singleton components are included.
func (g *Graph) StronglyConnected(keep NodeFilter, follow EdgeFilter) [][]*Node {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	var (
		index   = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		stack   []*Node
		next    int
		comps   [][]*Node
	)

	var strongConnect func(n *Node)
	strongConnect = func(n *Node) {
		index[n.Name] = next
		lowlink[n.Name] = next
		next++
		stack = append(stack, n)
		onStack[n.Name] = true

		for _, e := range g.deps[n.Name] {
			if follow != nil && !follow(e) {
				continue
			}
			w := g.nodes[e.To]
			if w == nil || (keep != nil && !keep(w)) {
				continue
			}
			if _, seen := index[w.Name]; !seen {
				strongConnect(w)
				lowlink[n.Name] = min(lowlink[n.Name], lowlink[w.Name])
			} else if onStack[w.Name] {
				lowlink[n.Name] = min(lowlink[n.Name], index[w.Name])
			}
		}

		if lowlink[n.Name] == index[n.Name] {
			var comp []*Node
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w.Name] = false
				comp = append(comp, w)
				if w == n {
					break
				}
			}
			comps = append(comps, comp)
		}
	}

	for _, n := range g.order {
		if keep != nil && !keep(n) {
			continue
		}
		if _, seen := index[n.Name]; !seen {
			strongConnect(n)
		}
	}

	for _, comp := range comps {
		sortByOrder(comp)
	}
	sortComponents(comps)
	return comps
}

// Reachable returns the names reachable from start along followed edges,
// excluding start itself unless it lies on a cycle.
func (g *Graph) Reachable(start string, follow EdgeFilter) map[string]bool {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	seen := make(map[string]bool)
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range g.deps[cur] {
			if follow != nil && !follow(e) {
				continue
			}
			if !seen[e.To] {
				seen[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}
	return seen
}

func sortByOrder(nodes []*Node) {
	for i := 1; i < len(nodes); i++ {
		for j := i; j > 0 && nodes[j].Order < nodes[j-1].Order; j-- {
			nodes[j], nodes[j-1] = nodes[j-1], nodes[j]
		}
	}
}

func sortComponents(comps [][]*Node) {
	for i := 1; i < len(comps); i++ {
		for j := i; j > 0 && comps[j][0].Order < comps[j-1][0].Order; j-- {
			comps[j], comps[j-1] = comps[j-1], comps[j]
		}
	}
}
