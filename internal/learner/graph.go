package learner

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/abhisek/tutord/internal/errs"
)

// Graph maps a topic to the topics it depends on. A prerequisite with no entry
// of its own is a root.
type Graph map[string][]string

// NormalizeGraph canonicalizes every name in raw and drops duplicate
// prerequisites. Two keys that canonicalize to the same name are merged.
// Self-references are rejected.
func NormalizeGraph(raw map[string][]string) (Graph, error) {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	g := make(Graph, len(raw))
	for _, k := range keys {
		node, err := NormalizeTopic(k)
		if err != nil {
			return nil, err
		}
		if _, ok := g[node]; !ok {
			g[node] = []string{}
		}
		for _, p := range raw[k] {
			prereq, err := NormalizeTopic(p)
			if err != nil {
				return nil, fmt.Errorf("prerequisite of %q: %w", node, err)
			}
			if prereq == node {
				return nil, errs.InvalidInput("topic %q lists itself as a prerequisite", node)
			}
			if !slices.Contains(g[node], prereq) {
				g[node] = append(g[node], prereq)
			}
		}
	}
	return g, nil
}

// Clone returns a deep copy of g.
func (g Graph) Clone() Graph {
	if g == nil {
		return nil
	}
	c := make(Graph, len(g))
	for k, v := range g {
		c[k] = slices.Clone(v)
	}
	return c
}

// Nodes returns every topic named in g, keys and prerequisites, sorted.
func (g Graph) Nodes() []string {
	set := make(map[string]bool, len(g))
	for k, prereqs := range g {
		set[k] = true
		for _, p := range prereqs {
			set[p] = true
		}
	}
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Merge unions graphs in sorted key order. Prerequisite lists keep the order
// of first occurrence so the result does not depend on map iteration.
func Merge(graphs map[string]Graph) Graph {
	keys := make([]string, 0, len(graphs))
	for k := range graphs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	merged := make(Graph)
	for _, k := range keys {
		g := graphs[k]
		nodes := make([]string, 0, len(g))
		for n := range g {
			nodes = append(nodes, n)
		}
		sort.Strings(nodes)
		for _, n := range nodes {
			if _, ok := merged[n]; !ok {
				merged[n] = []string{}
			}
			for _, p := range g[n] {
				if !slices.Contains(merged[n], p) {
					merged[n] = append(merged[n], p)
				}
			}
		}
	}
	return merged
}

// Validate reports a cycle in g using Kahn's algorithm. The error names every
// topic that sits on or behind a cycle.
func (g Graph) Validate() error {
	nodes := g.Nodes()
	inDegree := make(map[string]int, len(nodes))
	dependents := make(map[string][]string)
	for _, n := range nodes {
		inDegree[n] = len(g[n])
		for _, p := range g[n] {
			dependents[p] = append(dependents[p], n)
		}
	}

	var queue []string
	for _, n := range nodes {
		if inDegree[n] == 0 {
			queue = append(queue, n)
		}
	}

	visited := 0
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		visited++
		for _, dep := range dependents[n] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if visited < len(nodes) {
		var cycleNodes []string
		for _, n := range nodes {
			if inDegree[n] > 0 {
				cycleNodes = append(cycleNodes, n)
			}
		}
		return errs.InvalidInput("topic graph has a cycle involving: %s", strings.Join(cycleNodes, ", "))
	}
	return nil
}

// Sinks returns the topics in g that no other topic in g depends on, sorted.
func (g Graph) Sinks() []string {
	required := make(map[string]bool)
	for _, prereqs := range g {
		for _, p := range prereqs {
			required[p] = true
		}
	}
	var out []string
	for _, n := range g.Nodes() {
		if !required[n] {
			out = append(out, n)
		}
	}
	return out
}

// Layers walks prerequisites breadth-first from start. Layer 0 is start's
// direct prerequisites; each topic appears once, in its nearest layer, in the
// order it was first reached. start itself never appears.
func (g Graph) Layers(start string, direct []string) [][]string {
	seen := map[string]bool{start: true}
	var layers [][]string

	frontier := direct
	for len(frontier) > 0 {
		var layer []string
		for _, n := range frontier {
			if !seen[n] {
				seen[n] = true
				layer = append(layer, n)
			}
		}
		if len(layer) == 0 {
			break
		}
		layers = append(layers, layer)

		var next []string
		for _, n := range layer {
			next = append(next, g[n]...)
		}
		frontier = next
	}
	return layers
}
