// Package graph finds cycles in small directed graphs with Tarjan's
// strongly connected components algorithm.
package graph

import "slices"

// Graph is a directed graph over comparable node keys. Nodes and edges keep
// insertion order so results are deterministic.
type Graph[K comparable] struct {
	nodes []K
	known map[K]bool
	edges map[K][]K
}

// New creates an empty graph.
func New[K comparable]() *Graph[K] {
	return &Graph[K]{
		known: make(map[K]bool),
		edges: make(map[K][]K),
	}
}

// AddNode adds n if it is not present yet.
func (g *Graph[K]) AddNode(n K) {
	if !g.known[n] {
		g.known[n] = true
		g.nodes = append(g.nodes, n)
	}
}

// AddEdge adds from → to, adding both nodes as needed.
func (g *Graph[K]) AddEdge(from, to K) {
	g.AddNode(from)
	g.AddNode(to)
	g.edges[from] = append(g.edges[from], to)
}

// Nodes returns the nodes in insertion order.
func (g *Graph[K]) Nodes() []K { return slices.Clone(g.nodes) }

// Successors returns the direct successors of n.
func (g *Graph[K]) Successors(n K) []K { return slices.Clone(g.edges[n]) }

// Cycles returns one closed path per cycle: every strongly connected
// component with more than one node, and every self-loop. Each path starts
// and ends at the same node, e.g. [a b a]. A DAG yields nil.
func (g *Graph[K]) Cycles() [][]K {
	var cycles [][]K
	for _, scc := range g.components() {
		if len(scc) == 1 && !slices.Contains(g.edges[scc[0]], scc[0]) {
			continue
		}
		cycles = append(cycles, g.cyclePath(scc))
	}
	return cycles
}

// components runs Tarjan's algorithm.
func (g *Graph[K]) components() [][]K {
	var (
		index   = 0
		stack   []K
		indices = make(map[K]int)
		lowlink = make(map[K]int)
		onStack = make(map[K]bool)
		sccs    [][]K
	)

	var strongConnect func(K)
	strongConnect = func(v K) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.edges[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		// v is a root: pop its component.
		if lowlink[v] == indices[v] {
			var scc []K
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, n := range g.nodes {
		if _, visited := indices[n]; !visited {
			strongConnect(n)
		}
	}
	return sccs
}

// cyclePath walks a component from its earliest inserted node back to
// itself.
func (g *Graph[K]) cyclePath(scc []K) []K {
	members := make(map[K]bool, len(scc))
	for _, n := range scc {
		members[n] = true
	}
	var start K
	for _, n := range g.nodes {
		if members[n] {
			start = n
			break
		}
	}

	path := []K{start}
	visited := map[K]bool{start: true}
	current := start
	for {
		var (
			next  K
			found bool
		)
		for _, w := range g.edges[current] {
			if w == start {
				return append(path, start)
			}
			if members[w] && !visited[w] && !found {
				next, found = w, true
			}
		}
		if !found {
			// Dead end inside the component; close the path anyway.
			return append(path, start)
		}
		path = append(path, next)
		visited[next] = true
		current = next
	}
}
