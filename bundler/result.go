package bundler

import (
	"sort"

	"github.com/wippyai/wasmpack/analysis"
	"github.com/wippyai/wasmpack/graph"
)

// Module is one transformed module of a finished build.
type Module struct {
	ID    string
	Code  string
	Async bool
	Node  *graph.Node
}

// Result is the outcome of a successful build.
type Result struct {
	Root       string
	Graph      *graph.Graph
	Suspension analysis.SuspensionMap
	// Modules are ordered by id.
	Modules []*Module
}

// Module returns the transformed module with id.
func (r *Result) Module(id string) (*Module, bool) {
	i := sort.Search(len(r.Modules), func(i int) bool { return r.Modules[i].ID >= id })
	if i < len(r.Modules) && r.Modules[i].ID == id {
		return r.Modules[i], true
	}
	return nil, false
}
