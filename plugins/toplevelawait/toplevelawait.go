// Package toplevelawait provides the plugin that rewrites transitively async
// modules so their importers wait for initialization.
package toplevelawait

import (
	"context"

	"github.com/wippyai/wasmpack/bundler"
	"github.com/wippyai/wasmpack/rewrite"
)

// Name is the registered plugin name.
const Name = "top-level-await"

// Options configures the plugin.
type Options struct {
	// PromiseExportName is the export carrying each async module's
	// initialization promise. Defaults to "__tla".
	PromiseExportName string
	// PromiseImportName names the local alias of the i-th awaited dependency.
	PromiseImportName func(i int) string
}

// New returns the plugin. It runs after normal-order plugins so it sees
// their final output.
func New(opts Options) bundler.Plugin {
	r := rewrite.New(rewrite.Options{
		PromiseExportName: opts.PromiseExportName,
		PromiseImportName: opts.PromiseImportName,
	})
	return bundler.Plugin{
		Name:  Name,
		Order: bundler.OrderPost,
		Transform: func(_ context.Context, tc *bundler.TransformContext, code string) (*bundler.TransformResult, error) {
			n := tc.Node
			if code != n.Source {
				cp := *n
				cp.Source = code
				cp.Scan = nil
				n = &cp
			}
			out, err := r.Rewrite(n, tc.Suspension)
			if err != nil {
				return nil, err
			}
			if out == code {
				return nil, nil
			}
			return &bundler.TransformResult{Code: out}, nil
		},
	}
}
