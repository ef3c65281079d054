// Package analysis computes which modules of a graph are transitively async.
//
// A module is transitively async iff it suspends at top level itself, is a
// synthetic binary loader, or statically imports a transitively async module.
// The map is the least fixed point of that predicate, computed with a
// worklist over reverse static edges. Dynamic imports never propagate.
package analysis

import (
	"go.uber.org/zap"

	"github.com/wippyai/wasmpack/errors"
	"github.com/wippyai/wasmpack/graph"
)

// Reason names why a seed module is async.
type Reason string

const (
	ReasonTopLevelAwait Reason = "top-level await"
	ReasonLoader        Reason = "binary loader"
)

// SuspensionMap maps module ids to their transitive async state. The zero
// value reports every module as synchronous.
type SuspensionMap struct {
	async map[string]bool
	// via is the dependency through which a module became async; empty for seeds.
	via   map[string]string
	seeds map[string]Reason
}

// ComputeSuspensionMap analyzes a fully discovered graph.
func ComputeSuspensionMap(g *graph.Graph) (SuspensionMap, error) {
	if err := g.Validate(); err != nil {
		return SuspensionMap{}, err
	}

	sm := SuspensionMap{
		async: make(map[string]bool),
		via:   make(map[string]string),
		seeds: make(map[string]Reason),
	}
	importers := g.Importers()

	// Seeds in id order keep the worklist, and so Explain paths, stable.
	var queue []string
	for _, n := range g.Nodes() {
		var reason Reason
		switch {
		case n.Kind == graph.KindSyntheticLoader:
			reason = ReasonLoader
		case n.HasTopLevelAwait:
			reason = ReasonTopLevelAwait
		default:
			continue
		}
		sm.async[n.ID] = true
		sm.seeds[n.ID] = reason
		queue = append(queue, n.ID)
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, imp := range importers[id] {
			if sm.async[imp] {
				continue
			}
			sm.async[imp] = true
			sm.via[imp] = id
			queue = append(queue, imp)
		}
	}

	if err := sm.check(g); err != nil {
		return SuspensionMap{}, err
	}
	Logger().Debug("suspension map computed",
		zap.Int("modules", g.Len()),
		zap.Int("async", len(sm.async)),
		zap.Int("seeds", len(sm.seeds)))
	return sm, nil
}

// check verifies the fixed-point property on every node.
func (sm SuspensionMap) check(g *graph.Graph) error {
	for _, n := range g.Nodes() {
		want := sm.seeds[n.ID] != ""
		for _, dep := range n.StaticDeps() {
			if sm.async[dep] {
				want = true
				break
			}
		}
		if want != sm.async[n.ID] {
			return errors.Invariant(errors.PhaseAnalyze,
				"suspension map did not converge at %s: have %v, want %v", n.ID, sm.async[n.ID], want)
		}
	}
	return nil
}

// IsAsync reports whether id is transitively async.
func (sm SuspensionMap) IsAsync(id string) bool {
	return sm.async[id]
}

// Len returns the number of async modules.
func (sm SuspensionMap) Len() int {
	return len(sm.async)
}

// Reason returns why the suspension source reached from id is async.
// It is empty for synchronous modules.
func (sm SuspensionMap) Reason(id string) Reason {
	path := sm.Explain(id)
	if len(path) == 0 {
		return ""
	}
	return sm.seeds[path[len(path)-1]]
}

// Explain returns the static import path from id to the module whose own
// suspension made it async, both ends included. It is nil for synchronous
// modules and has length one for suspension sources.
func (sm SuspensionMap) Explain(id string) []string {
	if !sm.async[id] {
		return nil
	}
	path := []string{id}
	for {
		next, ok := sm.via[id]
		if !ok {
			return path
		}
		path = append(path, next)
		id = next
	}
}
