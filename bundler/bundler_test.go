package bundler_test

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/wippyai/wasmpack/bundler"
	"github.com/wippyai/wasmpack/errors"
	"github.com/wippyai/wasmpack/graph"
	"github.com/wippyai/wasmpack/plugins/toplevelawait"
	wasmplugin "github.com/wippyai/wasmpack/plugins/wasm"
	"github.com/wippyai/wasmpack/synth"
	"github.com/wippyai/wasmpack/wasm/wasmtest"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, src := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	}
	return root
}

func standardPlugins(t *testing.T, root string) []bundler.Plugin {
	t.Helper()
	wp, err := wasmplugin.New(wasmplugin.Options{Root: root, Sniff: true})
	require.NoError(t, err)
	return []bundler.Plugin{wp, toplevelawait.New(toplevelawait.Options{})}
}

func build(t *testing.T, opts bundler.Options, plugins ...bundler.Plugin) (*bundler.Result, error) {
	t.Helper()
	b, err := bundler.New(opts, plugins...)
	require.NoError(t, err)
	return b.Build(context.Background())
}

func module(t *testing.T, res *bundler.Result, id string) *bundler.Module {
	t.Helper()
	m, ok := res.Module(id)
	require.True(t, ok, id)
	return m
}

func TestBuildBinaryImport(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"main.js":     "import { add } from \"./mod.wasm\";\nimport { twice } from \"./consumer.js\";\nexport const r = add(1, 2) + twice(1);\n",
		"consumer.js": "import { add } from \"./mod.wasm\";\nexport function twice(x) { return add(x, x); }\n",
		"imports.js":  "export function log(v) { console.log(v); }\n",
		"other.js":    "export const unused = 1;\n",
	})
	bin := wasmtest.ImportingModule(map[string][]string{"./imports.js": {"log"}}, "./imports.js")
	require.NoError(t, os.WriteFile(filepath.Join(root, "mod.wasm"), bin, 0o644))

	res, err := build(t, bundler.Options{Root: root, Entries: []string{"main.js"}}, standardPlugins(t, root)...)
	require.NoError(t, err)

	mainID := filepath.Join(root, "main.js")
	modID := filepath.Join(root, "mod.wasm")
	consumerID := filepath.Join(root, "consumer.js")
	importsID := filepath.Join(root, "imports.js")

	assert.Equal(t, []string{synth.HelperID, consumerID, importsID, mainID, modID}, res.Graph.IDs())

	loader, ok := res.Graph.Node(modID)
	require.True(t, ok)
	assert.Equal(t, graph.KindSyntheticLoader, loader.Kind)
	require.NotNil(t, loader.Asset)
	assert.Equal(t, bin, loader.Asset.Data)
	assert.NotNil(t, loader.Edge("./imports.js", graph.Static), "binary imports become loader imports")

	sm := res.Suspension
	assert.True(t, sm.IsAsync(modID))
	assert.True(t, sm.IsAsync(mainID))
	assert.True(t, sm.IsAsync(consumerID))
	assert.False(t, sm.IsAsync(importsID))
	assert.False(t, sm.IsAsync(synth.HelperID))
	assert.Equal(t, []string{mainID, modID}, sm.Explain(mainID))
	assert.NotEmpty(t, sm.Reason(consumerID))

	main := module(t, res, mainID)
	assert.True(t, main.Async)
	assert.Contains(t, main.Code, `import { __tla as __tla_0 } from "./mod.wasm";`)
	assert.Contains(t, main.Code, `import { __tla as __tla_1 } from "./consumer.js";`)
	assert.Less(t, strings.Index(main.Code, "return __tla_0;"), strings.Index(main.Code, "return __tla_1;"))

	loaderOut := module(t, res, modID)
	assert.Contains(t, loaderOut.Code, "export function add(a0, a1)")
	assert.Contains(t, loaderOut.Code, "export { __tla };")

	imports := module(t, res, importsID)
	assert.Equal(t, "export function log(v) { console.log(v); }\n", imports.Code)
}

func TestBuildMissingBinary(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"main.js": "import { add } from \"./mod.wasm\";\nconsole.log(add(1, 2));\n",
	})
	res, err := build(t, bundler.Options{Root: root, Entries: []string{"main.js"}}, standardPlugins(t, root)...)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, stderrors.Is(err, errors.ErrBuildAborted))
	assert.True(t, stderrors.Is(err, errors.ErrLoad))

	var loadErr *errors.Error
	require.True(t, stderrors.As(err, &loadErr))
	assert.Equal(t, errors.KindLoad, loadErr.Kind)
	assert.Equal(t, filepath.Join(root, "mod.wasm"), loadErr.Module)
	require.Len(t, loadErr.Chain, 1)
	assert.Equal(t, errors.ChainLink{Importer: filepath.Join(root, "main.js"), Specifier: "./mod.wasm"}, loadErr.Chain[0])
	assert.True(t, errors.IsKind(err, errors.KindNotFound))
	assert.Contains(t, err.Error(), "mod.wasm")
	assert.Contains(t, err.Error(), "main.js")
}

func TestBuildInvalidBinary(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"main.js":  "import \"./bad.wasm\";\n",
		"bad.wasm": "\x00asm\x01\x00\x00\x00\x01\xff",
	})
	_, err := build(t, bundler.Options{Root: root, Entries: []string{"main.js"}}, standardPlugins(t, root)...)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrLoad))
	assert.True(t, errors.IsKind(err, errors.KindInvalidData))
}

func TestBuildCollectsSiblingErrors(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"main.js":   "import \"./x.js\";\nimport \"./broken.js\";\nimport \"./ok.js\";\n",
		"broken.js": "export const s = \"unterminated;\n",
		"ok.js":     "import \"./y.js\";\n",
	})
	_, err := build(t, bundler.Options{Root: root, Entries: []string{"main.js"}}, standardPlugins(t, root)...)
	require.Error(t, err)

	errs := multierr.Errors(err)
	require.Len(t, errs, 4)
	assert.Equal(t, errors.ErrBuildAborted, errs[0])

	var kinds []errors.Kind
	for _, e := range errs[1:] {
		var se *errors.Error
		require.True(t, stderrors.As(e, &se), e.Error())
		kinds = append(kinds, se.Kind)
	}
	assert.ElementsMatch(t, []errors.Kind{errors.KindResolution, errors.KindResolution, errors.KindInvalidData}, kinds)

	var chained bool
	for _, e := range errs[1:] {
		var se *errors.Error
		if stderrors.As(e, &se) && len(se.Chain) == 2 {
			chained = true
			assert.Equal(t, "./y.js", se.Chain[1].Specifier)
		}
	}
	assert.True(t, chained, "nested failure carries the full import chain")
}

func TestBuildLoadsEachModuleOnce(t *testing.T) {
	files := map[string]string{
		"main.js": "import \"./a.js\";\nimport \"./b.js\";\nimport \"./c.js\";\n",
		"a.js":    "import \"./shared.js\";\nimport \"./leaf.js\";\n",
		"b.js":    "import \"./shared.js\";\nimport \"./leaf.js\";\nimport(\"./a.js\");\n",
		"c.js":    "import \"./shared.js\";\nimport \"./main.js\";\n",
		"leaf.js": "export const leaf = 1;\n",
	}
	files["shared.js"] = "import \"./leaf.js\";\nexport const shared = 1;\n"
	root := writeFiles(t, files)

	var mu sync.Mutex
	loads := make(map[string]int)
	counter := bundler.Plugin{
		Name: "counter",
		Load: func(_ context.Context, id string) (*bundler.LoadResult, error) {
			mu.Lock()
			loads[id]++
			mu.Unlock()
			return nil, nil
		},
	}

	for i := 0; i < 5; i++ {
		res, err := build(t, bundler.Options{Root: root, Entries: []string{"main.js", "./b.js"}, Concurrency: 2}, counter)
		require.NoError(t, err)
		assert.Equal(t, len(files), res.Graph.Len())
	}
	for name := range files {
		assert.Equal(t, 5, loads[filepath.Join(root, name)], name)
	}
}

func TestBuildDynamicImportOfAsyncModule(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"main.js": "export const lazy = () => import(\"./slow.js\");\n",
		"slow.js": "export const v = await Promise.resolve(1);\n",
	})
	res, err := build(t, bundler.Options{Root: root, Entries: []string{"main.js"}}, standardPlugins(t, root)...)
	require.NoError(t, err)

	main := module(t, res, filepath.Join(root, "main.js"))
	assert.False(t, main.Async, "dynamic edges do not propagate suspension")
	assert.Contains(t, main.Code, `import("./slow.js").then(`)
	assert.True(t, module(t, res, filepath.Join(root, "slow.js")).Async)
}

func TestBuildExternals(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"main.js": "import fs from \"node:fs\";\nimport fp from \"lodash/fp\";\nimport \"https://cdn.example.com/x.js\";\n",
	})

	res, err := build(t, bundler.Options{Root: root, Entries: []string{"main.js"}, External: []string{"lodash"}})
	require.NoError(t, err)
	n, ok := res.Graph.Node(filepath.Join(root, "main.js"))
	require.True(t, ok)
	require.Len(t, n.Imports, 3)
	for _, e := range n.Imports {
		assert.True(t, e.External, e.Specifier)
		assert.Empty(t, e.To)
	}
	assert.Equal(t, 1, res.Graph.Len())

	_, err = build(t, bundler.Options{Root: root, Entries: []string{"main.js"}})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrResolution))
}

func TestBuildMissingEntry(t *testing.T) {
	root := t.TempDir()
	_, err := build(t, bundler.Options{Root: root, Entries: []string{"nope.js"}})
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrBuildAborted))
	assert.True(t, stderrors.Is(err, errors.ErrResolution))
}

func TestBuildPluginErrors(t *testing.T) {
	root := writeFiles(t, map[string]string{"main.js": "import \"virtual:x\";\n"})

	failing := bundler.Plugin{
		Name: "failing",
		Resolve: func(_ context.Context, spec, _ string) (*bundler.ResolveResult, error) {
			if spec == "virtual:x" {
				return nil, stderrors.New("boom")
			}
			return nil, nil
		},
	}
	_, err := build(t, bundler.Options{Root: root, Entries: []string{"main.js"}}, failing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plugin failing")
	assert.Contains(t, err.Error(), "boom")

	transformFail := bundler.Plugin{
		Name: "transform-fail",
		Transform: func(context.Context, *bundler.TransformContext, string) (*bundler.TransformResult, error) {
			return nil, stderrors.New("nope")
		},
	}
	virtual := bundler.Plugin{
		Name: "virtual",
		Resolve: func(_ context.Context, spec, _ string) (*bundler.ResolveResult, error) {
			if spec == "virtual:x" {
				return &bundler.ResolveResult{ID: "\x00virtual:x"}, nil
			}
			return nil, nil
		},
		Load: func(_ context.Context, id string) (*bundler.LoadResult, error) {
			if id == "\x00virtual:x" {
				return &bundler.LoadResult{Code: "export default 1;\n", FileName: "virtual.js"}, nil
			}
			return nil, nil
		},
	}
	res, err := build(t, bundler.Options{Root: root, Entries: []string{"main.js"}}, virtual)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Graph.Len())

	_, err = build(t, bundler.Options{Root: root, Entries: []string{"main.js"}}, virtual, transformFail)
	require.Error(t, err)
	assert.Equal(t, errors.PhaseTransform, errorPhase(t, err))
}

func errorPhase(t *testing.T, err error) errors.Phase {
	t.Helper()
	var se *errors.Error
	require.True(t, stderrors.As(err, &se))
	return se.Phase
}

func TestPluginOrdering(t *testing.T) {
	plugins := []bundler.Plugin{
		{Name: "late", Order: bundler.OrderPost},
		{Name: "first-normal"},
		{Name: "early", Order: bundler.OrderPre},
		{Name: "second-normal"},
	}
	b, err := bundler.New(bundler.Options{Entries: []string{"main.js"}}, plugins...)
	require.NoError(t, err)

	var names []string
	for _, p := range b.Plugins() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"early", "first-normal", "second-normal", "late"}, names)

	_, err = bundler.New(bundler.Options{Entries: []string{"main.js"}}, bundler.Plugin{Name: "x"}, bundler.Plugin{Name: "x"})
	assert.True(t, errors.IsKind(err, errors.KindConflict))

	_, err = bundler.New(bundler.Options{Entries: []string{"main.js"}}, bundler.Plugin{})
	assert.True(t, errors.IsKind(err, errors.KindInvalidInput))

	_, err = bundler.New(bundler.Options{})
	assert.True(t, errors.IsKind(err, errors.KindInvalidInput))
}

func TestParseOrder(t *testing.T) {
	for in, want := range map[string]bundler.Order{"pre": bundler.OrderPre, "": bundler.OrderNormal, "normal": bundler.OrderNormal, "post": bundler.OrderPost} {
		got, err := bundler.ParseOrder(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		if in != "" {
			assert.Equal(t, in, got.String())
		}
	}
	_, err := bundler.ParseOrder("later")
	assert.Error(t, err)
}

func TestResolvePath(t *testing.T) {
	root := filepath.FromSlash("/project")
	importer := filepath.Join(root, "src", "main.js")

	p, ok := bundler.ResolvePath(root, "./mod.wasm", importer)
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(root, "src", "mod.wasm"), p)

	p, ok = bundler.ResolvePath(root, "../lib/x.wasm", importer)
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(root, "lib", "x.wasm"), p)

	p, ok = bundler.ResolvePath(root, "main.js", "")
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(root, "main.js"), p)

	_, ok = bundler.ResolvePath(root, "lodash", importer)
	assert.False(t, ok)
}
