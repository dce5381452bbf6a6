// Package registry holds the immutable catalog of validator
// descriptors and answers the two queries the engine needs: which
// tools apply to a file set under a selection profile, and the
// dependency subgraph restricted to a chosen set of tools.
//
// Grounded on jrossi/ccfeedback's linting_engine.go (built-in linter
// registration at construction time) and toolcache's per-ecosystem
// tool catalog, generalized from bespoke Go structs into declarative
// descriptors since validator invocation itself is an external-process
// contract, not Go code, in this engine's design.
package registry

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	huskycat "github.com/tinyland-inc/tinyland-huskycat-sub004"
	"github.com/tinyland-inc/tinyland-huskycat-sub004/internal/huskyerr"
)

// Registry is the single source of truth for which tools exist. It is
// built once at process start and is read-only thereafter; there is
// no package-level global holding it (see jrossi/ccfeedback's
// toolcache.globalCacheManager, which this repository deliberately
// does not imitate).
type Registry struct {
	byName map[string]*huskycat.ToolDescriptor
	names  []string // insertion order, for diagnostics only
}

// New validates descs against the registry invariants and returns a
// Registry, or a *huskyerr.ConfigError on the first violation found.
func New(descs []huskycat.ToolDescriptor) (*Registry, error) {
	r := &Registry{byName: make(map[string]*huskycat.ToolDescriptor, len(descs))}

	for i := range descs {
		d := descs[i]
		if _, exists := r.byName[d.Name]; exists {
			return nil, huskyerr.NewConfigError(huskyerr.InvalidValue, "duplicate tool name %q", d.Name)
		}
		for _, tok := range d.ArgvTemplate {
			if huskycat.LooksLikePlaceholder(tok) && !huskycat.IsPlaceholder(tok) {
				return nil, huskyerr.NewConfigError(huskyerr.UnknownPlaceholder,
					"tool %q references unknown placeholder %q", d.Name, tok)
			}
		}
		cp := d
		r.byName[d.Name] = &cp
		r.names = append(r.names, d.Name)
	}

	for _, d := range r.byName {
		for _, dep := range d.DependsOn {
			if _, ok := r.byName[dep]; !ok {
				return nil, huskyerr.NewConfigError(huskyerr.UnknownDependency,
					"tool %q depends on unknown tool %q", d.Name, dep)
			}
		}
	}

	if cyc := findCycle(r.byName); cyc != "" {
		return nil, huskyerr.NewConfigError(huskyerr.CyclicDependency, "dependency cycle detected at %q", cyc)
	}

	return r, nil
}

// findCycle runs a three-color DFS over the dependency relation and
// returns the name of a node on a cycle, or "" if the graph is a DAG.
func findCycle(byName map[string]*huskycat.ToolDescriptor) string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(byName))
	var stack []string

	var visit func(name string) string
	visit = func(name string) string {
		color[name] = gray
		stack = append(stack, name)
		for _, dep := range byName[name].DependsOn {
			switch color[dep] {
			case gray:
				return dep
			case white:
				if c := visit(dep); c != "" {
					return c
				}
			}
		}
		stack = stack[:len(stack)-1]
		color[name] = black
		return ""
	}

	for _, name := range sortedKeys(byName) {
		if color[name] == white {
			if c := visit(name); c != "" {
				return c
			}
		}
	}
	return ""
}

func sortedKeys(m map[string]*huskycat.ToolDescriptor) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the descriptor for name, or nil if it does not exist.
func (r *Registry) Get(name string) *huskycat.ToolDescriptor {
	return r.byName[name]
}

// All returns every registered descriptor, in deterministic
// (category, name) order.
func (r *Registry) All() []*huskycat.ToolDescriptor {
	out := make([]*huskycat.ToolDescriptor, 0, len(r.byName))
	for _, d := range r.byName {
		out = append(out, d)
	}
	sortByCategoryThenName(out)
	return out
}

func sortByCategoryThenName(descs []*huskycat.ToolDescriptor) {
	sort.Slice(descs, func(i, j int) bool {
		if descs[i].Category != descs[j].Category {
			return descs[i].Category < descs[j].Category
		}
		return descs[i].Name < descs[j].Name
	})
}

// Select returns the ordered subset of tools applicable to files under
// profile. Fast selects only formatter/linter categories (the subset
// cheap enough to run synchronously in a blocking git hook); All
// selects every registered tool; Configured selects exactly the names
// in allowed (the caller, typically the Mode Adapter, has already
// merged in configuration).
func (r *Registry) Select(files []string, profile huskycat.SelectionProfile, allowed []string) []string {
	allowedSet := map[string]bool{}
	for _, n := range allowed {
		allowedSet[n] = true
	}

	var matched []*huskycat.ToolDescriptor
	for _, d := range r.All() {
		if profile == huskycat.ProfileConfigured && !allowedSet[d.Name] {
			continue
		}
		if profile == huskycat.ProfileFast && d.Category != huskycat.CategoryFormatter && d.Category != huskycat.CategoryLinter {
			continue
		}
		if !appliesToAny(d, files) {
			continue
		}
		matched = append(matched, d)
	}

	names := make([]string, len(matched))
	for i, d := range matched {
		names[i] = d.Name
	}
	return names
}

// MatchingFiles returns the subset of files d.AppliesTo matches, in
// the order files were given. Used by the scheduler to expand
// {file}/{files…} placeholders.
func MatchingFiles(d *huskycat.ToolDescriptor, files []string) []string {
	var out []string
	for _, f := range files {
		for _, pattern := range d.AppliesTo {
			if ok, _ := doublestar.Match(pattern, f); ok {
				out = append(out, f)
				break
			}
			if ok, _ := doublestar.Match(pattern, filepath.Base(f)); ok {
				out = append(out, f)
				break
			}
		}
	}
	return out
}

func appliesToAny(d *huskycat.ToolDescriptor, files []string) bool {
	if len(files) == 0 {
		return false
	}
	for _, f := range files {
		for _, pattern := range d.AppliesTo {
			if ok, _ := doublestar.Match(pattern, f); ok {
				return true
			}
			if ok, _ := doublestar.Match(pattern, filepath.Base(f)); ok {
				return true
			}
		}
	}
	return false
}

// Dag is a dependency graph restricted to a chosen set of tool names.
type Dag struct {
	Names []string
	Edges map[string][]string // name -> dependency names, pruned to selected set
}

// Subgraph builds a Dag over names, pruning any dependency edge whose
// target was not itself selected — a selected tool whose dependency
// was not selected is treated as having no prerequisite for this run.
func (r *Registry) Subgraph(names []string) *Dag {
	selected := map[string]bool{}
	for _, n := range names {
		selected[n] = true
	}

	dag := &Dag{Names: append([]string(nil), names...), Edges: map[string][]string{}}
	for _, n := range names {
		d := r.byName[n]
		if d == nil {
			continue
		}
		var deps []string
		for _, dep := range d.DependsOn {
			if selected[dep] {
				deps = append(deps, dep)
			}
		}
		dag.Edges[n] = deps
	}
	return dag
}

// String is a debug aid for --debug / show-tools output.
func (r *Registry) String() string {
	return fmt.Sprintf("Registry{%d tools}", len(r.byName))
}
