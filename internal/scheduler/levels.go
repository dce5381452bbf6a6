package scheduler

import (
	"sort"

	"github.com/tinyland-inc/tinyland-huskycat-sub004/internal/registry"
)

// computeLevels implements Phase 1: a layered topological partition of
// dag into L0, L1, ... where Li is the set of nodes whose dependencies
// all lie in L<i. This is not the unique topological order; it
// maximizes parallelism (spec §4.4 Phase 1). The dag is guaranteed
// acyclic by registry construction (P1), so this never loops forever.
func computeLevels(dag *registry.Dag) [][]string {
	level := make(map[string]int, len(dag.Names))

	var depth func(name string, visiting map[string]bool) int
	depth = func(name string, visiting map[string]bool) int {
		if d, ok := level[name]; ok {
			return d
		}
		deps := dag.Edges[name]
		if len(deps) == 0 {
			level[name] = 0
			return 0
		}
		max := -1
		for _, dep := range deps {
			d := depth(dep, visiting)
			if d > max {
				max = d
			}
		}
		level[name] = max + 1
		return max + 1
	}

	for _, name := range dag.Names {
		depth(name, map[string]bool{})
	}

	maxLevel := 0
	for _, l := range level {
		if l > maxLevel {
			maxLevel = l
		}
	}

	levels := make([][]string, maxLevel+1)
	for _, name := range dag.Names {
		l := level[name]
		levels[l] = append(levels[l], name)
	}
	for _, l := range levels {
		sort.Strings(l)
	}
	return levels
}
