package rolegraph

import "sort"

type closureEntry struct {
	key   string
	chain Chain
}

// Closure returns every role reachable from the start roles via implication
// edges, the start roles included. Each reached role is paired with a shortest
// witnessing chain; ties are broken by expanding implications in sorted order,
// so results are deterministic. Cycles terminate via the visited set.
func (g *Graph) Closure(start ...string) (map[string]Chain, error) {
	for _, key := range start {
		if _, ok := g.roles[key]; !ok {
			return nil, &UnknownRoleError{Role: key}
		}
	}

	reached := make(map[string]Chain, len(start))
	queue := make([]closureEntry, 0, len(start))
	for _, key := range sorted(start) {
		if _, seen := reached[key]; seen {
			continue
		}
		chain := Chain{key}
		reached[key] = chain
		queue = append(queue, closureEntry{key: key, chain: chain})
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if g.maxDepth > 0 && len(cur.chain) > g.maxDepth {
			return nil, &CycleDepthExceededError{Limit: g.maxDepth}
		}

		role := g.roles[cur.key]
		for _, next := range sorted(role.Implies) {
			if _, ok := g.roles[next]; !ok {
				return nil, &UnknownRoleError{Role: next}
			}
			if _, seen := reached[next]; seen {
				continue
			}
			chain := append(append(Chain{}, cur.chain...), next)
			reached[next] = chain
			queue = append(queue, closureEntry{key: next, chain: chain})
		}
	}
	return reached, nil
}

// Partitions returns the distinct exclusivity labels reached by a closure,
// sorted. Roles outside any partition contribute nothing.
func (g *Graph) Partitions(closure map[string]Chain) []string {
	seen := make(map[string]struct{})
	for key := range closure {
		if p := g.roles[key].Partition; p != "" {
			seen[p] = struct{}{}
		}
	}
	labels := make([]string, 0, len(seen))
	for p := range seen {
		labels = append(labels, p)
	}
	sort.Strings(labels)
	return labels
}

func sorted(keys []string) []string {
	out := append([]string(nil), keys...)
	sort.Strings(out)
	return out
}
