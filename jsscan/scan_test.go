package jsscan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasmpack/jsscan"
)

func specifiers(imps []jsscan.Import) []string {
	out := make([]string, 0, len(imps))
	for _, imp := range imps {
		out = append(out, imp.Specifier)
	}
	return out
}

func staticImports(m *jsscan.Module) []jsscan.Import {
	var out []jsscan.Import
	for _, imp := range m.Imports {
		if imp.Kind == jsscan.ImportStatic {
			out = append(out, imp)
		}
	}
	return out
}

func TestTokenize(t *testing.T) {
	toks, err := jsscan.Tokenize("let a = b / c; const r = /x\\/y/g;\n`t${a}u`")
	require.NoError(t, err)

	var kinds []jsscan.TokenKind
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	assert.Contains(t, kinds, jsscan.TokRegExp)
	assert.Equal(t, jsscan.TokPunct, toks[4].Kind, "division after identifier")
	assert.Equal(t, "/x\\/y/g", toks[10].Text)

	last := toks[len(toks)-1]
	assert.Equal(t, jsscan.TokTemplate, last.Kind)
	assert.Equal(t, "}u`", last.Text)
	assert.True(t, toks[len(toks)-3].NewlineBefore)
}

func TestStringValue(t *testing.T) {
	toks, err := jsscan.Tokenize(`"\u0000id" '\x41\u{1F600}\'' "a\
b"`)
	require.NoError(t, err)
	require.Len(t, toks, 3)
	assert.Equal(t, "\x00id", toks[0].StringValue())
	assert.Equal(t, "A\U0001F600'", toks[1].StringValue())
	assert.Equal(t, "ab", toks[2].StringValue())
}

func TestTokenizeErrors(t *testing.T) {
	for _, src := range []string{`"unterminated`, "`open", "/* no end", "x = /re"} {
		_, err := jsscan.Tokenize(src)
		var se *jsscan.SyntaxError
		assert.ErrorAs(t, err, &se, src)
	}
}

func TestParseStaticImports(t *testing.T) {
	src := `import "./side.js";
import def, { a as b } from './named.js' with { type: "json" };
import * as ns from "./ns.js"
export * from "./star.js";
export { x } from "./reexport.js";
export { local };
const local = 1;
`
	m, err := jsscan.Parse(src)
	require.NoError(t, err)

	imps := staticImports(m)
	assert.Equal(t, []string{"./side.js", "./named.js", "./ns.js", "./star.js", "./reexport.js"}, specifiers(imps))
	assert.False(t, imps[0].ReExport)
	assert.True(t, imps[3].ReExport)
	assert.True(t, imps[4].ReExport)
	assert.Equal(t, `'./named.js'`, src[imps[1].SpecStart:imps[1].SpecEnd])

	kinds := make([]jsscan.StmtKind, 0, len(m.Stmts))
	for _, s := range m.Stmts {
		kinds = append(kinds, s.Kind)
	}
	assert.Equal(t, []jsscan.StmtKind{
		jsscan.StmtImport, jsscan.StmtImport, jsscan.StmtImport,
		jsscan.StmtReExport, jsscan.StmtReExport, jsscan.StmtExportList,
		jsscan.StmtVar,
	}, kinds)
	assert.False(t, m.HasTopLevelAwait())
}

func TestParseDeclarations(t *testing.T) {
	src := `export async function load(a) { return await a }
export default class Foo extends Base {}
function* gen() { yield 1 }
let counter = 0
counter++
if (counter) { counter = 2 } else counter = 3
export default_value
`
	m, err := jsscan.Parse(src)
	require.Error(t, err, "bare export of identifier is invalid")

	m, err = jsscan.Parse(src[:len(src)-len("export default_value\n")])
	require.NoError(t, err)
	require.Len(t, m.Stmts, 6)

	fn := m.Stmts[0]
	assert.Equal(t, jsscan.StmtFunction, fn.Kind)
	assert.True(t, fn.Export)
	assert.Equal(t, "load", fn.Name)
	assert.Equal(t, "async function load(a) { return await a }", src[fn.DeclStart:fn.End])

	cls := m.Stmts[1]
	assert.Equal(t, jsscan.StmtClass, cls.Kind)
	assert.True(t, cls.Default)
	assert.Equal(t, "Foo", cls.Name)

	assert.Equal(t, "gen", m.Stmts[2].Name)
	assert.Equal(t, "let", m.Stmts[3].DeclKind)
	assert.Equal(t, "let counter = 0", src[m.Stmts[3].Start:m.Stmts[3].End])
	assert.Equal(t, "counter++", src[m.Stmts[4].Start:m.Stmts[4].End])
	assert.Equal(t, jsscan.StmtOther, m.Stmts[5].Kind)
	assert.Equal(t, "if (counter) { counter = 2 } else counter = 3", src[m.Stmts[5].Start:m.Stmts[5].End])

	assert.False(t, m.HasTopLevelAwait(), "await inside a function is not top level")
}

func TestParseExportDefaultExpression(t *testing.T) {
	src := "export default { answer: 42 };\nexport default async () => 1\n"
	m, err := jsscan.Parse(src)
	require.NoError(t, err)
	require.Len(t, m.Stmts, 2)
	for _, s := range m.Stmts {
		assert.Equal(t, jsscan.StmtExpression, s.Kind)
		assert.True(t, s.Default)
	}
	assert.Equal(t, "{ answer: 42 }", src[m.Stmts[0].DeclStart:m.Stmts[0].End-1])
	assert.True(t, m.Stmts[0].Semicolon)
}

func TestTopLevelAwait(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want bool
	}{
		{"plain", "const x = await fetch(u);", true},
		{"nested block", "if (ok) { await init() }", true},
		{"for await", "for await (const c of s) {}", true},
		{"in function", "async function f() { await g() }", false},
		{"in arrow block", "const f = async () => { await g() };", false},
		{"in arrow expression", "const f = async () => await g();", false},
		{"arrow then await", "const f = async () => g(), y = await h();", true},
		{"in method", "const o = { async m() { await x } };", false},
		{"in class", "class A { async m() { await x } }", false},
		{"property access", "obj.await; const o = { await: 1 };", false},
		{"string", `const s = "await x";`, false},
		{"comment", "// await x\n/* await y */", false},
		{"template substitution", "const s = `${await v}`;", true},
		{"arrow ends at newline", "const f = async x => x\nawait ready", true},
		{"getter named await", "const o = ({ get await() { return 1 } });", false},
		{"method named await", "const o = ({ await() { return 1 } });", false},
		{"setter named await", "const o = { set await(v) {}, x: 1 };", false},
		{"async method named await", "class A { static async await() {} }\nconst o = { async await() {} };", false},
		{"parenthesized operand", "const v = await (x);", true},
		{"parenthesized operand then block", "if (await (ready)) { go() }", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := jsscan.Parse(tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.HasTopLevelAwait())
		})
	}
}

func TestDynamicImports(t *testing.T) {
	src := `const a = import("./a.js");
async function later() { return import('./b.js', { with: {} }); }
const c = import(name);
`
	m, err := jsscan.Parse(src)
	require.NoError(t, err)

	var dyn []jsscan.Import
	for _, imp := range m.Imports {
		if imp.Kind == jsscan.ImportDynamic {
			dyn = append(dyn, imp)
		}
	}
	require.Len(t, dyn, 2)
	assert.Equal(t, []string{"./a.js", "./b.js"}, specifiers(dyn))
	assert.Equal(t, `import("./a.js")`, src[dyn[0].CallStart:dyn[0].CallEnd])
	assert.Equal(t, -1, dyn[0].Stmt)
	assert.Empty(t, staticImports(m))
}

func TestParseSyntaxErrors(t *testing.T) {
	for _, src := range []string{"function f() {", "a)", "const x = [1, 2}", "import x;"} {
		_, err := jsscan.Parse(src)
		var se *jsscan.SyntaxError
		require.ErrorAs(t, err, &se, src)
		assert.Positive(t, se.Line)
	}
}

func TestDeclarators(t *testing.T) {
	src := "export const a = 1, { b, c: [d, ...e], f = g ? 1 : 2, ...h } = obj, [i = 3, , j] = arr;\nvar k;"
	m, err := jsscan.Parse(src)
	require.NoError(t, err)
	require.Len(t, m.Stmts, 2)

	decls, err := m.Declarators(m.Stmts[0])
	require.NoError(t, err)
	require.Len(t, decls, 3)

	assert.Equal(t, []string{"a"}, decls[0].Names)
	assert.Equal(t, "1", src[decls[0].InitStart:decls[0].InitEnd])
	assert.False(t, decls[0].Destructuring(src))

	assert.Equal(t, []string{"b", "d", "e", "f", "h"}, decls[1].Names)
	assert.Equal(t, "obj", src[decls[1].InitStart:decls[1].InitEnd])
	assert.True(t, decls[1].Destructuring(src))

	assert.Equal(t, []string{"i", "j"}, decls[2].Names)
	assert.Equal(t, "[i = 3, , j]", src[decls[2].TargetStart:decls[2].TargetEnd])

	decls, err = m.Declarators(m.Stmts[1])
	require.NoError(t, err)
	require.Len(t, decls, 1)
	assert.Equal(t, -1, decls[0].InitStart)
	assert.Equal(t, []string{"k"}, decls[0].Names)
}

func TestNestedVars(t *testing.T) {
	src := `if (ok) { var a = 1, { b } = o; } else var [c] = arr
for (var i = 0, n = 2; i < n; i++) { var d }
for await (var e of src) {}
try { f() } catch { var g = function () { var hidden = 1 } }
class K { static { var inClass } }
while (x) o.var = 1
`
	m, err := jsscan.Parse(src)
	require.NoError(t, err)

	var names []string
	var heads []bool
	for _, s := range m.Stmts {
		vars, err := m.NestedVars(s)
		require.NoError(t, err)
		for _, v := range vars {
			assert.Equal(t, "var", src[v.KeywordStart:v.KeywordStart+3])
			heads = append(heads, v.ForHead)
			for _, d := range v.Declarators {
				names = append(names, d.Names...)
			}
		}
	}
	assert.Equal(t, []string{"a", "b", "c", "i", "n", "d", "e", "g"}, names)
	assert.Equal(t, []bool{false, false, true, false, true, false}, heads)

	vars, err := m.NestedVars(m.Stmts[0])
	require.NoError(t, err)
	require.Len(t, vars, 2)
	assert.Equal(t, "var a = 1, { b } = o", src[vars[0].KeywordStart:vars[0].End])
	assert.Equal(t, "var [c] = arr", src[vars[1].KeywordStart:vars[1].End])

	vars, err = m.NestedVars(m.Stmts[1])
	require.NoError(t, err)
	assert.Equal(t, "var i = 0, n = 2", src[vars[0].KeywordStart:vars[0].End])
}
