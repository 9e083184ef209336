package perf

import (
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/gatehouse-fm/gatehouse/internal/rolegraph"
)

// syntheticGraph builds a layered catalog: width chains of depth roles each,
// every chain bottoming out in the internal partition, plus one portal branch.
func syntheticGraph(width, depth int) (*rolegraph.Graph, []string) {
	roles := []rolegraph.Role{
		{Key: "internal", Partition: "internal"},
		{Key: "portal", Partition: "portal"},
		{Key: "tenant", Implies: []string{"portal"}},
	}
	tops := make([]string, 0, width)
	for w := 0; w < width; w++ {
		prev := "internal"
		for d := 0; d < depth; d++ {
			key := fmt.Sprintf("role_%d_%d", w, d)
			roles = append(roles, rolegraph.Role{Key: key, Implies: []string{prev}})
			prev = key
		}
		tops = append(tops, prev)
	}
	return rolegraph.NewGraph(roles), tops
}

func BenchmarkClosureDeepChains(b *testing.B) {
	graph, tops := syntheticGraph(50, 40)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := graph.Closure(tops[i%len(tops)]); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkCheckUserConflicting(b *testing.B) {
	graph, tops := syntheticGraph(50, 40)
	assignment := rolegraph.Assignment{UserID: "bench", Roles: []string{tops[0], "tenant"}}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		conflict, err := graph.CheckUser(assignment)
		if err != nil {
			b.Fatal(err)
		}
		if conflict == nil {
			b.Fatal("expected a conflict")
		}
	}
}

func TestCheckLatencyTargets(t *testing.T) {
	scenarios := []struct {
		name      string
		width     int
		depth     int
		threshold time.Duration
	}{
		{name: "shallow", width: 20, depth: 5, threshold: 50 * time.Millisecond},
		{name: "deep", width: 100, depth: 50, threshold: 250 * time.Millisecond},
	}

	for _, scenario := range scenarios {
		graph, tops := syntheticGraph(scenario.width, scenario.depth)
		samples := make([]time.Duration, 0, len(tops))
		for _, top := range tops {
			start := time.Now()
			if _, err := graph.CheckUser(rolegraph.Assignment{UserID: "t", Roles: []string{top, "tenant"}}); err != nil {
				t.Fatalf("%s: check failed: %v", scenario.name, err)
			}
			samples = append(samples, time.Since(start))
		}
		p95 := percentile95(samples)
		if p95 > scenario.threshold {
			t.Fatalf("%s latency regression: p95=%s threshold=%s", scenario.name, p95, scenario.threshold)
		}
	}
}

func percentile95(samples []time.Duration) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := (len(sorted)*95 + 99) / 100
	if idx > 0 {
		idx--
	}
	return sorted[idx]
}
