package bundler

import (
	"context"
	"sort"

	"github.com/wippyai/wasmpack/analysis"
	"github.com/wippyai/wasmpack/errors"
	"github.com/wippyai/wasmpack/graph"
)

// Order places a plugin before or after plugins of normal order.
type Order int

const (
	OrderPre    Order = -1
	OrderNormal Order = 0
	OrderPost   Order = 1
)

// ParseOrder parses "pre", "post" or "" (normal).
func ParseOrder(s string) (Order, error) {
	switch s {
	case "pre":
		return OrderPre, nil
	case "", "normal":
		return OrderNormal, nil
	case "post":
		return OrderPost, nil
	}
	return OrderNormal, errors.InvalidInput(errors.PhaseConfig, "unknown plugin order "+s)
}

func (o Order) String() string {
	switch o {
	case OrderPre:
		return "pre"
	case OrderPost:
		return "post"
	default:
		return "normal"
	}
}

// ResolveResult is a resolved module id.
type ResolveResult struct {
	ID string
	// External edges are kept in the output verbatim and never loaded.
	External bool
}

// LoadResult is the body of a loaded module.
type LoadResult struct {
	Code string
	Kind graph.Kind
	// Asset is emitted next to the module's output file.
	Asset *graph.Asset
	// FileName is the output path for virtual modules.
	FileName string
}

// TransformResult replaces a module body.
type TransformResult struct {
	Code string
}

// TransformContext is what a transform sees of the finished analysis.
type TransformContext struct {
	Graph      *graph.Graph
	Suspension analysis.SuspensionMap
	Node       *graph.Node
}

// Plugin is a set of optional hooks. A hook returning a nil result passes
// the module on to the next plugin.
type Plugin struct {
	Name  string
	Order Order

	Resolve   func(ctx context.Context, specifier, importer string) (*ResolveResult, error)
	Load      func(ctx context.Context, id string) (*LoadResult, error)
	Transform func(ctx context.Context, tc *TransformContext, code string) (*TransformResult, error)
}

// sortPlugins validates plugin names and orders plugins stably by Order.
func sortPlugins(plugins []Plugin) ([]Plugin, error) {
	seen := make(map[string]bool, len(plugins))
	for _, p := range plugins {
		if p.Name == "" {
			return nil, errors.InvalidInput(errors.PhaseConfig, "plugin without a name")
		}
		if seen[p.Name] {
			return nil, errors.Conflict("plugin %q registered twice", p.Name)
		}
		seen[p.Name] = true
	}
	out := append([]Plugin(nil), plugins...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out, nil
}
