package graph

import (
	"cmp"
	"errors"
	"slices"
)

// ErrCycle is returned when the graph contains a cycle.
var ErrCycle = errors.New("node graph cycle detected")

// Resolve orders the nodes so that every node follows the nodes feeding it.
// It returns:
// - ordered: node IDs in topological order (inputs first)
// - tiers: node IDs grouped by depth (tier 0 = no inputs, tier 1 = fed only by tier 0, etc.)
// Within a tier, nodes keep their declaration order.
func Resolve(g *Graph) (ordered []string, tiers [][]string, err error) {
	if g == nil || len(g.Nodes) == 0 {
		return nil, nil, nil
	}

	nodeSet := make(map[string]bool)
	for i := range g.Nodes {
		nodeSet[g.Nodes[i].ID] = true
	}

	// target consumes source => inDegree[target] = number of edges into target
	inDegree := make(map[string]int)
	for id := range nodeSet {
		inDegree[id] = 0
	}
	for _, e := range g.Edges {
		if !nodeSet[e.Source] || !nodeSet[e.Target] {
			continue
		}
		inDegree[e.Target]++
	}

	rank := make(map[string]int, len(g.Nodes))
	var queue []string
	for i, n := range g.Nodes {
		if _, dup := rank[n.ID]; dup {
			continue
		}
		rank[n.ID] = i
		if inDegree[n.ID] == 0 {
			queue = append(queue, n.ID)
		}
	}

	ordered = make([]string, 0, len(nodeSet))
	for len(queue) > 0 {
		tier := make([]string, len(queue))
		copy(tier, queue)
		tiers = append(tiers, tier)
		var next []string
		for _, u := range queue {
			ordered = append(ordered, u)
			for _, e := range g.Edges {
				if e.Source != u || !nodeSet[e.Target] {
					continue
				}
				inDegree[e.Target]--
				if inDegree[e.Target] == 0 {
					next = append(next, e.Target)
				}
			}
		}
		slices.SortFunc(next, func(a, b string) int { return cmp.Compare(rank[a], rank[b]) })
		queue = next
	}

	if len(ordered) != len(nodeSet) {
		return nil, nil, ErrCycle
	}
	return ordered, tiers, nil
}
