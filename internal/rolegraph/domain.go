// Package rolegraph checks role-implication graphs for partition conflicts.
//
// A role may imply other roles and may belong to at most one exclusivity
// partition (the platform's "portal" and "internal" user types). A user whose
// assigned roles transitively reach more than one partition is in conflict.
// All computations are pure and side-effect free; loading graphs and applying
// removals is the caller's job.
package rolegraph

// Role is a named permission bundle.
type Role struct {
	Key       string   `json:"key"`
	Implies   []string `json:"implies,omitempty"`
	Partition string   `json:"partition,omitempty"`
}

// Chain is an implication path, from a directly assigned role to the role it
// reaches. A single-element chain means the role was assigned directly.
type Chain []string

// Assignment lists the roles granted directly to one user.
type Assignment struct {
	UserID string   `json:"user_id"`
	Roles  []string `json:"roles"`
}

// Conflict reports a user whose closure spans multiple exclusivity partitions.
// Witnesses holds one implication chain per partition reached.
type Conflict struct {
	UserID     string           `json:"user_id"`
	Partitions []string         `json:"partitions"`
	Witnesses  map[string]Chain `json:"witnesses"`
}

// Graph is an immutable role-implication graph. Cycles are legal; traversal
// is guarded by a visited set and, optionally, MaxDepth.
type Graph struct {
	roles    map[string]Role
	maxDepth int
}

// NewGraph builds a Graph from the given roles. Later duplicates win, matching
// how snapshots overwrite stale rows.
func NewGraph(roles []Role) *Graph {
	m := make(map[string]Role, len(roles))
	for _, r := range roles {
		m[r.Key] = r
	}
	return &Graph{roles: m}
}

// WithMaxDepth returns a copy of the graph whose traversals fail with
// CycleDepthExceededError beyond the given depth. Zero means unlimited; the
// visited set alone already guarantees termination.
func (g *Graph) WithMaxDepth(depth int) *Graph {
	return &Graph{roles: g.roles, maxDepth: depth}
}

// Role looks up a role by key.
func (g *Graph) Role(key string) (Role, bool) {
	r, ok := g.roles[key]
	return r, ok
}

// Len reports the number of roles in the graph.
func (g *Graph) Len() int {
	return len(g.roles)
}

// Keys returns all role keys in unspecified order.
func (g *Graph) Keys() []string {
	keys := make([]string, 0, len(g.roles))
	for k := range g.roles {
		keys = append(keys, k)
	}
	return keys
}

// RoleList returns the graph's roles sorted by key, suitable for
// serialization into snapshot caches and exchange files.
func (g *Graph) RoleList() []Role {
	out := make([]Role, 0, len(g.roles))
	for _, key := range sorted(g.Keys()) {
		out = append(out, g.roles[key])
	}
	return out
}
