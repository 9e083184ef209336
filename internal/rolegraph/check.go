package rolegraph

import "sort"

// CheckUser computes the closure of all directly assigned roles and reports a
// Conflict when more than one exclusivity partition is reachable. A nil
// Conflict with a nil error means the assignment is consistent.
func (g *Graph) CheckUser(a Assignment) (*Conflict, error) {
	closure, err := g.Closure(a.Roles...)
	if err != nil {
		return nil, err
	}
	labels := g.Partitions(closure)
	if len(labels) < 2 {
		return nil, nil
	}

	witnesses := make(map[string]Chain, len(labels))
	for _, label := range labels {
		witnesses[label] = g.witness(closure, label)
	}
	return &Conflict{
		UserID:     a.UserID,
		Partitions: labels,
		Witnesses:  witnesses,
	}, nil
}

// witness picks the shortest chain reaching the given partition, breaking
// ties by role key so conflict reports are stable across runs.
func (g *Graph) witness(closure map[string]Chain, partition string) Chain {
	var best Chain
	var bestKey string
	for key, chain := range closure {
		if g.roles[key].Partition != partition {
			continue
		}
		if best == nil || len(chain) < len(best) || (len(chain) == len(best) && key < bestKey) {
			best = chain
			bestKey = key
		}
	}
	return best
}

// SuggestRemoval returns the directly assigned roles to strip so that only the
// highest-priority partition of the conflict stays reachable. priority ranks
// partitions from highest (index 0) downwards and must cover every partition
// in the conflict. A role whose closure touches any lower-priority partition
// is removed even when it also reaches the winning one.
func (g *Graph) SuggestRemoval(c *Conflict, a Assignment, priority []string) ([]string, error) {
	rank := make(map[string]int, len(priority))
	for i, label := range priority {
		if _, dup := rank[label]; !dup {
			rank[label] = i
		}
	}

	winner := ""
	for _, label := range c.Partitions {
		r, ok := rank[label]
		if !ok {
			return nil, &InvalidPartitionOrderError{Partition: label}
		}
		if winner == "" || r < rank[winner] {
			winner = label
		}
	}

	var remove []string
	removed := make(map[string]struct{})
	for _, key := range a.Roles {
		if _, done := removed[key]; done {
			continue
		}
		closure, err := g.Closure(key)
		if err != nil {
			return nil, err
		}
		for _, label := range g.Partitions(closure) {
			if r, ok := rank[label]; ok && r > rank[winner] {
				remove = append(remove, key)
				removed[key] = struct{}{}
				break
			}
		}
	}
	sort.Strings(remove)
	return remove, nil
}
