package rewrite_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasmpack/analysis"
	"github.com/wippyai/wasmpack/errors"
	"github.com/wippyai/wasmpack/graph"
	"github.com/wippyai/wasmpack/jsscan"
	"github.com/wippyai/wasmpack/rewrite"
)

// fixture builds a graph from sources keyed by id. Specifiers "./x" resolve
// to id "x"; "node:" specifiers are external.
func fixture(t *testing.T, sources map[string]string) (*graph.Graph, analysis.SuspensionMap) {
	t.Helper()
	g := graph.New()
	for id, src := range sources {
		mod, err := jsscan.Parse(src)
		require.NoError(t, err, id)
		n := &graph.Node{ID: id, Source: src, Scan: mod, HasTopLevelAwait: mod.HasTopLevelAwait()}
		for _, imp := range mod.Imports {
			e := &graph.Edge{From: id, Specifier: imp.Specifier, Kind: graph.Static, ReExport: imp.ReExport}
			if imp.Kind == jsscan.ImportDynamic {
				e.Kind = graph.Dynamic
			}
			if strings.HasPrefix(imp.Specifier, "node:") {
				e.External = true
			} else {
				e.To = strings.TrimPrefix(imp.Specifier, "./")
			}
			if n.Edge(e.Specifier, e.Kind) == nil {
				n.Imports = append(n.Imports, e)
			}
		}
		require.True(t, g.Add(n))
	}
	sm, err := analysis.ComputeSuspensionMap(g)
	require.NoError(t, err)
	return g, sm
}

func rewriteNode(t *testing.T, g *graph.Graph, sm analysis.SuspensionMap, id string) string {
	t.Helper()
	n, ok := g.Node(id)
	require.True(t, ok, id)
	out, err := rewrite.New(rewrite.Options{}).Rewrite(n, sm)
	require.NoError(t, err)
	return out
}

func TestRewriteAsyncModule(t *testing.T) {
	g, sm := fixture(t, map[string]string{
		"main.js": "import { a } from \"./a.js\";\nexport const b = await a();\n",
		"a.js":    "export const a = async () => 1;\nawait 0;\n",
	})
	want := `/* wasmpack:tla */
import { a } from "./a.js";
import { __tla as __tla_0 } from "./a.js";
export let b;
let __tla = (async () => {
await (() => { try { return __tla_0; } catch {} })();
b = await a();
})();
export { __tla };
`
	assert.Equal(t, want, rewriteNode(t, g, sm, "main.js"))
}

func TestRewriteSyncModuleUnchanged(t *testing.T) {
	src := "import { x } from \"./x.js\";\nimport fs from \"node:fs\";\nexport const y = x + 1\n"
	g, sm := fixture(t, map[string]string{
		"main.js": src,
		"x.js":    "export const x = 1;",
	})
	assert.Equal(t, src, rewriteNode(t, g, sm, "main.js"))
}

func TestRewriteAwaitsInDeclarationOrder(t *testing.T) {
	g, sm := fixture(t, map[string]string{
		"main.js": "import \"./sync.js\";\nimport { x } from \"./x.js\";\nimport { y } from \"./y.js\";\nimport { x as x2 } from \"./x.js\";\nconsole.log(x, y, x2);\n",
		"x.js":    "export const x = await Promise.resolve(1);",
		"y.js":    "export const y = await Promise.resolve(2);",
		"sync.js": "globalThis.ready = true;",
	})
	out := rewriteNode(t, g, sm, "main.js")

	assert.Contains(t, out, `import { __tla as __tla_0 } from "./x.js";`)
	assert.Contains(t, out, `import { __tla as __tla_1 } from "./y.js";`)
	assert.Equal(t, 1, strings.Count(out, "import { __tla as __tla_0 }"), "duplicate imports share one await")
	assert.NotContains(t, out, "__tla_2")

	x := strings.Index(out, "return __tla_0;")
	y := strings.Index(out, "return __tla_1;")
	body := strings.Index(out, "console.log(x, y, x2);")
	require.True(t, x >= 0 && y >= 0 && body >= 0)
	assert.Less(t, x, y)
	assert.Less(t, y, body)
}

func TestRewriteCycleSkipsUninitializedPromise(t *testing.T) {
	g, sm := fixture(t, map[string]string{
		"a.js": "import { b } from \"./b.js\";\nexport const a = await Promise.resolve(1);\nexport const ab = () => a + b;\n",
		"b.js": "import { a } from \"./a.js\";\nexport const b = await Promise.resolve(2);\n",
	})
	for _, id := range []string{"a.js", "b.js"} {
		out := rewriteNode(t, g, sm, id)
		assert.Contains(t, out, "\nawait (() => { try { return __tla_0; } catch {} })();", id)
		assert.NotContains(t, out, "\nawait __tla_0;", id)
		// the alias is read only inside the guard
		assert.Equal(t, 2, strings.Count(out, "__tla_0"), id)

		mod, err := jsscan.Parse(out)
		require.NoError(t, err, id)
		assert.False(t, mod.HasTopLevelAwait(), id)
	}
}

func TestRewriteIsIdempotent(t *testing.T) {
	g, sm := fixture(t, map[string]string{
		"main.js": "import { v } from \"./v.js\";\nconst lazy = import(\"./v.js\");\nexport default v;\n",
		"v.js":    "export const v = await 1;",
	})
	once := rewriteNode(t, g, sm, "main.js")
	n, _ := g.Node("main.js")
	again, err := rewrite.New(rewrite.Options{}).Rewrite(&graph.Node{ID: n.ID, Source: once, Imports: n.Imports}, sm)
	require.NoError(t, err)
	assert.Equal(t, once, again)
}

func TestRewriteHoisting(t *testing.T) {
	g, sm := fixture(t, map[string]string{
		"main.js": `const cfg = await load();
var { a, b: [c] } = cfg, d
export class Widget extends Base {}
export default class {}
function helper() { return a }
export function api() { return helper() }
if (cfg.debug) { console.log(c) }
`,
	})
	out := rewriteNode(t, g, sm, "main.js")

	for _, want := range []string{
		"let cfg;",
		"let a, c, d;",
		"export let Widget;",
		"let __tla_default;\nexport { __tla_default as default };",
		"function helper() { return a }",
		"export function api() { return helper() }",
		"cfg = await load();",
		"({ a, b: [c] } = cfg);",
		"Widget = class Widget extends Base {};",
		"__tla_default = class {};",
		"if (cfg.debug) { console.log(c) }",
	} {
		assert.Contains(t, out, want)
	}

	// Declarations and functions stay outside the initialization body.
	bodyStart := strings.Index(out, "let __tla = (async () => {")
	require.Positive(t, bodyStart)
	assert.Less(t, strings.Index(out, "export function api()"), bodyStart)
	assert.Greater(t, strings.Index(out, "cfg = await load();"), bodyStart)

	mod, err := jsscan.Parse(out)
	require.NoError(t, err)
	assert.False(t, mod.HasTopLevelAwait(), "every await moved into the initialization body")
}

func TestRewriteNestedVarDeclarations(t *testing.T) {
	g, sm := fixture(t, map[string]string{
		"main.js": `const z = await Promise.resolve(1);
if (z) { var y = 5; } else var { w } = cfg
for (var i = 0; i < 2; i++) {}
for (var k of [1]) {}
try { var t1 = 1 } catch { function f() { var inner = 1 } }
function helper() {}
{ var helper = 2 }
export { y };
`,
	})
	out := rewriteNode(t, g, sm, "main.js")

	for _, want := range []string{
		"let z;",
		"let y, w;",
		"let i;",
		"let k;",
		"let t1;",
		"if (z) { y = 5; } else ({ w } = cfg);",
		"for (i = 0; i < 2; i++) {}",
		"for (k of [1]) {}",
		"try { t1 = 1 } catch { function f() { var inner = 1 } }",
		"{ helper = 2 }",
		"export { y };",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "let helper")
	assert.NotContains(t, out, "let inner")
	assert.Equal(t, 1, strings.Count(out, "var "), "only the function-scoped var keeps its keyword")

	mod, err := jsscan.Parse(out)
	require.NoError(t, err)
	assert.False(t, mod.HasTopLevelAwait())
	var body string
	for _, s := range mod.Stmts {
		if s.Kind == jsscan.StmtVar && s.DeclKind == "let" && strings.Contains(out[s.Start:s.End], "async") {
			body = out[s.Start:s.End]
		}
	}
	require.NotEmpty(t, body)
	assert.Contains(t, body, "y = 5;", "the assignment runs inside the initialization body")
	assert.Less(t, strings.Index(out, "let y, w;"), strings.Index(out, body))
}

func TestRewriteExportDefaultExpression(t *testing.T) {
	g, sm := fixture(t, map[string]string{
		"main.js": "export default await compute();",
	})
	out := rewriteNode(t, g, sm, "main.js")
	assert.Contains(t, out, "__tla_default = (await compute());")
	assert.Contains(t, out, "export { __tla_default as default };")
}

func TestRewriteBarrelReExport(t *testing.T) {
	g, sm := fixture(t, map[string]string{
		"index.js": "export * from \"./impl.js\";\nexport { other } from \"./other.js\";\n",
		"impl.js":  "export const value = await 1;",
		"other.js": "export const other = 2;",
	})
	require.True(t, sm.IsAsync("index.js"))

	out := rewriteNode(t, g, sm, "index.js")
	assert.Contains(t, out, "export * from \"./impl.js\";\nimport { __tla as __tla_0 } from \"./impl.js\";")
	assert.Contains(t, out, "export { other } from \"./other.js\";")
	assert.Contains(t, out, "await (() => { try { return __tla_0; } catch {} })();")
	assert.NotContains(t, out, "__tla_1")
	assert.Contains(t, out, "export { __tla };")
}

func TestRewriteConditionalAwaitIsUnconditional(t *testing.T) {
	g, sm := fixture(t, map[string]string{
		"main.js": "if (false) {\n  await never();\n}\n",
	})
	require.True(t, sm.IsAsync("main.js"))
	out := rewriteNode(t, g, sm, "main.js")
	assert.True(t, strings.HasPrefix(out, rewrite.Marker))
	assert.Contains(t, out, "export { __tla };")
}

func TestRewriteDynamicImports(t *testing.T) {
	g, sm := fixture(t, map[string]string{
		"main.js":  "export function open() { return import(\"./lazy.js\"); }\nexport const s = import(\"./plain.js\");\n",
		"lazy.js":  "await setup();",
		"plain.js": "export {};",
	})
	require.False(t, sm.IsAsync("main.js"))

	out := rewriteNode(t, g, sm, "main.js")
	assert.Contains(t, out,
		`return import("./lazy.js").then(async (__tla_m) => { await __tla_m.__tla; return __tla_m; });`)
	assert.Contains(t, out, `export const s = import("./plain.js");`)
}

func TestRewriteCustomPromiseNames(t *testing.T) {
	g, sm := fixture(t, map[string]string{
		"main.js": "import \"./dep.js\";",
		"dep.js":  "await 1;",
	})
	n, _ := g.Node("main.js")
	r := rewrite.New(rewrite.Options{
		PromiseExportName: "__ready",
		PromiseImportName: func(i int) string { return "__dep" + strings.Repeat("_", i+1) },
	})
	out, err := r.Rewrite(n, sm)
	require.NoError(t, err)
	assert.Contains(t, out, `import { __ready as __dep_ } from "./dep.js";`)
	assert.Contains(t, out, "let __ready = (async () => {\nawait (() => { try { return __dep_; } catch {} })();")
	assert.Equal(t, "__ready", r.PromiseExportName())
}

func TestRewriteUnresolvedImportIsInvariantViolation(t *testing.T) {
	mod, err := jsscan.Parse(`import "./x.js";`)
	require.NoError(t, err)
	n := &graph.Node{ID: "main.js", Source: mod.Source, Scan: mod, Imports: []*graph.Edge{
		{From: "main.js", Specifier: "./x.js", Kind: graph.Static},
	}}
	_, err = rewrite.New(rewrite.Options{}).Rewrite(n, analysis.SuspensionMap{})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindInvariant))

	n.Imports = nil
	_, err = rewrite.New(rewrite.Options{}).Rewrite(n, analysis.SuspensionMap{})
	assert.True(t, errors.IsKind(err, errors.KindInvariant))
}

func TestSpecifiers(t *testing.T) {
	src := "import a from './a.wasm';\nexport * from \"./b.js\";\nconst c = import('./c.js');\n"
	out, err := rewrite.Specifiers(src, func(spec string) string {
		if strings.HasSuffix(spec, ".wasm") {
			return spec + ".js"
		}
		return spec
	})
	require.NoError(t, err)
	assert.Equal(t, "import a from \"./a.wasm.js\";\nexport * from \"./b.js\";\nconst c = import('./c.js');\n", out)
}
