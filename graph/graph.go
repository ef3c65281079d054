// Package graph holds the module graph of one build: nodes keyed by resolved
// id and the static and dynamic import edges between them.
//
// A Graph is created at build start, filled concurrently during discovery
// and read-only once discovery completes.
package graph

import (
	"sort"
	"sync"

	"github.com/wippyai/wasmpack/errors"
	"github.com/wippyai/wasmpack/jsscan"
)

// Kind is the origin of a module.
type Kind uint8

const (
	KindSource          Kind = iota // authored source module
	KindBinaryAsset                 // binary that no plugin turned into a module
	KindSyntheticLoader             // generated loader for a binary asset
)

func (k Kind) String() string {
	switch k {
	case KindBinaryAsset:
		return "binary-asset"
	case KindSyntheticLoader:
		return "synthetic-loader"
	default:
		return "source"
	}
}

// EdgeKind distinguishes static from dynamic imports.
type EdgeKind uint8

const (
	Static EdgeKind = iota + 1
	Dynamic
)

func (k EdgeKind) String() string {
	if k == Dynamic {
		return "dynamic"
	}
	return "static"
}

// Edge is one import of a module.
type Edge struct {
	From      string
	To        string // resolved id; empty for externals
	Specifier string
	Kind      EdgeKind
	External  bool
	// ReExport marks `export ... from` edges.
	ReExport bool
}

// Asset is a file emitted verbatim next to the modules.
type Asset struct {
	Name string
	Data []byte
}

// Node is one module of the graph.
type Node struct {
	ID     string
	Kind   Kind
	Source string
	// Scan is the structure of Source.
	Scan  *jsscan.Module
	Asset *Asset
	// FileName is the output path hint for virtual modules.
	FileName string
	// Imports lists static and dynamic edges in source order.
	Imports []*Edge
	// HasTopLevelAwait is the module's own suspension, not the transitive one.
	HasTopLevelAwait bool
	// Chain is the import chain through which the module was first discovered.
	Chain []errors.ChainLink
	Entry bool
}

// StaticDeps returns the distinct ids of resolved static imports in
// declaration order.
func (n *Node) StaticDeps() []string {
	var out []string
	seen := make(map[string]bool, len(n.Imports))
	for _, e := range n.Imports {
		if e.Kind != Static || e.External || e.To == "" || seen[e.To] {
			continue
		}
		seen[e.To] = true
		out = append(out, e.To)
	}
	return out
}

// Edge returns the first edge for specifier of the given kind, or nil.
func (n *Node) Edge(specifier string, kind EdgeKind) *Edge {
	for _, e := range n.Imports {
		if e.Specifier == specifier && e.Kind == kind {
			return e
		}
	}
	return nil
}

// Graph is the module graph. Methods are safe for concurrent use.
type Graph struct {
	mu      sync.RWMutex
	nodes   map[string]*Node
	entries []string
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[string]*Node)}
}

// Add inserts n and reports whether it was new. An existing node with the
// same id is kept.
func (g *Graph) Add(n *Node) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[n.ID]; ok {
		return false
	}
	g.nodes[n.ID] = n
	if n.Entry {
		g.entries = append(g.entries, n.ID)
	}
	return true
}

// Node returns the node with id.
func (g *Graph) Node(id string) (*Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	return n, ok
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// IDs returns every node id in lexical order.
func (g *Graph) IDs() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Nodes returns every node ordered by id.
func (g *Graph) Nodes() []*Node {
	ids := g.IDs()
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*Node, len(ids))
	for i, id := range ids {
		out[i] = g.nodes[id]
	}
	return out
}

// Entries returns the entry module ids ordered by id.
func (g *Graph) Entries() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := append([]string(nil), g.entries...)
	sort.Strings(out)
	return out
}

// Importers returns, for every node, the ids of nodes that statically import
// it, each list ordered by id.
func (g *Graph) Importers() map[string][]string {
	rev := make(map[string][]string)
	for _, n := range g.Nodes() {
		for _, dep := range n.StaticDeps() {
			rev[dep] = append(rev[dep], n.ID)
		}
	}
	return rev
}

// Validate checks that every non-external edge points at a node of the graph.
// A dangling edge means a module escaped discovery.
func (g *Graph) Validate() error {
	for _, n := range g.Nodes() {
		for _, e := range n.Imports {
			if e.External {
				continue
			}
			if e.To == "" {
				return errors.Invariant(errors.PhaseAnalyze,
					"%s imports %q before it was resolved", n.ID, e.Specifier)
			}
			if _, ok := g.Node(e.To); !ok {
				return errors.Invariant(errors.PhaseAnalyze,
					"%s imports %q resolved to %s, which is not in the graph", n.ID, e.Specifier, e.To)
			}
		}
	}
	return nil
}
