// Package rewrite transforms transitively async modules so importers wait
// for their initialization.
//
// An async module keeps its imports, export lists and function declarations
// at top level. Every other top-level statement moves into an async
// initialization body whose promise is exported under the promise name:
//
//	import { a } from "./a.js";
//	import { __tla as __tla_0 } from "./a.js";
//	export let b;
//	let __tla = (async () => {
//	await (() => { try { return __tla_0; } catch {} })();
//	b = await a();
//	})();
//	export { __tla };
//
// Async dependencies are awaited one after another in import declaration
// order. A dependency that is still being evaluated, as happens inside an
// import cycle, has an uninitialized promise binding and is skipped.
// Declarations are hoisted as let bindings so exports remain static, and var
// statements nested in blocks or loop heads lose their keyword to the hoisted
// binding. Dynamic imports of async modules resolve once the module's
// promise settles.
package rewrite

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/wippyai/wasmpack/analysis"
	"github.com/wippyai/wasmpack/errors"
	"github.com/wippyai/wasmpack/graph"
	"github.com/wippyai/wasmpack/jsscan"
)

// Marker starts every rewritten module. Sources that begin with it are
// returned unchanged.
const Marker = "/* wasmpack:tla */"

// DefaultPromiseExportName is the export carrying a module's initialization promise.
const DefaultPromiseExportName = "__tla"

// Options configures a Rewriter.
type Options struct {
	// PromiseExportName defaults to DefaultPromiseExportName.
	PromiseExportName string
	// PromiseImportName names the local alias of the i-th awaited dependency.
	// Defaults to "<PromiseExportName>_<i>".
	PromiseImportName func(i int) string
}

// Rewriter is stateless and safe for concurrent use.
type Rewriter struct {
	exportName string
	importName func(int) string
}

// New returns a Rewriter.
func New(opts Options) *Rewriter {
	r := &Rewriter{exportName: opts.PromiseExportName, importName: opts.PromiseImportName}
	if r.exportName == "" {
		r.exportName = DefaultPromiseExportName
	}
	if r.importName == nil {
		prefix := r.exportName
		r.importName = func(i int) string { return fmt.Sprintf("%s_%d", prefix, i) }
	}
	return r
}

// PromiseExportName returns the configured promise export name.
func (r *Rewriter) PromiseExportName() string { return r.exportName }

type edit struct {
	start, end int
	text       string
}

// plan is what a rewrite needs to know about a module's imports.
type plan struct {
	edits []edit
	// stmtTarget maps an import statement index to its async dependency id.
	stmtTarget map[int]string
	// awaited lists async static dependencies in declaration order.
	awaited []string
	// spec is the specifier literal first used for each awaited dependency.
	spec map[string]string
}

// Rewrite returns the transformed body of n. Modules that are not async only
// have their dynamic imports of async modules rewritten.
func (r *Rewriter) Rewrite(n *graph.Node, sm analysis.SuspensionMap) (string, error) {
	src := n.Source
	if strings.HasPrefix(src, Marker) {
		return src, nil
	}
	mod := n.Scan
	if mod == nil || mod.Source != src {
		var err error
		if mod, err = jsscan.Parse(src); err != nil {
			return "", errors.New(errors.PhaseTransform, errors.KindInvalidData).
				Module(n.ID).
				Cause(err).
				Build()
		}
	}

	p, err := r.plan(n, mod, sm)
	if err != nil {
		return "", err
	}
	if !sm.IsAsync(n.ID) {
		if len(p.edits) == 0 {
			return src, nil
		}
		w := &writer{src: src, edits: p.edits}
		w.b.WriteString(Marker)
		w.b.WriteByte('\n')
		w.copy(0, len(src))
		return w.b.String(), nil
	}
	return r.wrap(n, mod, p)
}

func (r *Rewriter) plan(n *graph.Node, mod *jsscan.Module, sm analysis.SuspensionMap) (*plan, error) {
	p := &plan{stmtTarget: make(map[int]string), spec: make(map[string]string)}
	for _, imp := range mod.Imports {
		kind := graph.Static
		if imp.Kind == jsscan.ImportDynamic {
			kind = graph.Dynamic
		}
		e := n.Edge(imp.Specifier, kind)
		if e == nil {
			return nil, errors.Invariant(errors.PhaseTransform,
				"%s: %s import %q has no graph edge", n.ID, kind, imp.Specifier)
		}
		if e.External {
			continue
		}
		if e.To == "" {
			return nil, errors.Invariant(errors.PhaseTransform,
				"%s transformed before %q was resolved", n.ID, imp.Specifier)
		}
		if !sm.IsAsync(e.To) {
			continue
		}
		if kind == graph.Dynamic {
			call := mod.Source[imp.CallStart:imp.CallEnd]
			p.edits = append(p.edits, edit{
				start: imp.CallStart,
				end:   imp.CallEnd,
				text: fmt.Sprintf("%s.then(async (__tla_m) => { await __tla_m.%s; return __tla_m; })",
					call, r.exportName),
			})
			continue
		}
		p.stmtTarget[imp.Stmt] = e.To
		if _, ok := p.spec[e.To]; !ok {
			p.spec[e.To] = mod.Source[imp.SpecStart:imp.SpecEnd]
			p.awaited = append(p.awaited, e.To)
		}
	}
	sort.Slice(p.edits, func(i, j int) bool { return p.edits[i].start < p.edits[j].start })
	return p, nil
}

func (r *Rewriter) wrap(n *graph.Node, mod *jsscan.Module, p *plan) (string, error) {
	src := mod.Source
	pre := &writer{src: src, edits: p.edits}
	body := &writer{src: src, edits: slices.Clone(p.edits)}
	defaultName := r.exportName + "_default"

	alias := make(map[string]string, len(p.awaited))
	for i, id := range p.awaited {
		alias[id] = r.importName(i)
	}
	imported := make(map[string]bool, len(p.awaited))
	hoisted := make(map[string]bool)

	// declare hoists names into the prelude and reports the ones that were new.
	declare := func(lead string, export bool, names []string) {
		var fresh, known []string
		for _, name := range names {
			if hoisted[name] {
				known = append(known, name)
				continue
			}
			hoisted[name] = true
			fresh = append(fresh, name)
		}
		pre.b.WriteString(lead)
		if len(fresh) > 0 {
			if export {
				pre.b.WriteString("export ")
			}
			fmt.Fprintf(&pre.b, "let %s;", strings.Join(fresh, ", "))
		}
		if export && len(known) > 0 {
			fmt.Fprintf(&pre.b, " export { %s };", strings.Join(known, ", "))
		}
	}

	// a nested var may redeclare a function, which keeps its own binding
	functions := make(map[string]bool)
	for _, s := range mod.Stmts {
		if s.Kind == jsscan.StmtFunction && s.Name != "" {
			functions[s.Name] = true
		}
	}

	pre.b.WriteString(Marker)
	pre.b.WriteByte('\n')

	prev := 0
	for i, s := range mod.Stmts {
		lead := src[prev:s.Start]
		prev = s.End

		switch s.Kind {
		case jsscan.StmtImport, jsscan.StmtReExport:
			pre.b.WriteString(lead)
			pre.stmt(s)
			if id, ok := p.stmtTarget[i]; ok && !imported[id] {
				imported[id] = true
				fmt.Fprintf(&pre.b, "\nimport { %s as %s } from %s;", r.exportName, alias[id], p.spec[id])
			}

		case jsscan.StmtExportList:
			pre.b.WriteString(lead)
			pre.stmt(s)

		case jsscan.StmtFunction:
			pre.b.WriteString(lead)
			pre.copy(s.Start, s.End)

		case jsscan.StmtVar:
			decls, err := mod.Declarators(s)
			if err != nil {
				return "", errors.New(errors.PhaseTransform, errors.KindInvalidData).
					Module(n.ID).
					Cause(err).
					Build()
			}
			var names []string
			for _, d := range decls {
				names = append(names, d.Names...)
			}
			declare(lead, s.Export, names)
			for _, d := range decls {
				if d.InitStart < 0 {
					continue
				}
				body.b.WriteByte('\n')
				if d.Destructuring(src) {
					body.b.WriteByte('(')
				}
				body.copy(d.TargetStart, d.TargetEnd)
				body.b.WriteString(" = ")
				body.copy(d.InitStart, d.InitEnd)
				if d.Destructuring(src) {
					body.b.WriteByte(')')
				}
				body.b.WriteByte(';')
			}

		case jsscan.StmtClass:
			name := s.Name
			if name == "" {
				name = defaultName
			}
			declare(lead, s.Export && !s.Default, []string{name})
			if s.Default {
				fmt.Fprintf(&pre.b, "\nexport { %s as default };", name)
			}
			fmt.Fprintf(&body.b, "\n%s = ", name)
			body.copy(s.DeclStart, s.End)
			body.b.WriteByte(';')

		case jsscan.StmtExpression:
			declare(lead, false, []string{defaultName})
			fmt.Fprintf(&pre.b, "\nexport { %s as default };", defaultName)
			end := s.End
			if s.Semicolon {
				end--
			}
			fmt.Fprintf(&body.b, "\n%s = (", defaultName)
			body.copy(s.DeclStart, end)
			body.b.WriteString(");")

		default:
			vars, err := mod.NestedVars(s)
			if err != nil {
				return "", errors.New(errors.PhaseTransform, errors.KindInvalidData).
					Module(n.ID).
					Cause(err).
					Build()
			}
			if len(vars) > 0 {
				var names []string
				for _, v := range vars {
					for _, d := range v.Declarators {
						for _, name := range d.Names {
							if !functions[name] {
								names = append(names, name)
							}
						}
					}
				}
				declare("\n", false, names)
				body.edits = append(body.edits, varEdits(src, vars)...)
				sort.SliceStable(body.edits, func(i, j int) bool { return body.edits[i].start < body.edits[j].start })
			}
			body.b.WriteString(lead)
			body.stmt(s)
		}
	}
	trailing := src[prev:]

	var out strings.Builder
	out.WriteString(pre.b.String())
	fmt.Fprintf(&out, "\nlet %s = (async () => {", r.exportName)
	for _, id := range p.awaited {
		fmt.Fprintf(&out, "\nawait (() => { try { return %s; } catch {} })();", alias[id])
	}
	out.WriteString(body.b.String())
	fmt.Fprintf(&out, "\n})();\nexport { %s };", r.exportName)
	out.WriteString(trailing)
	if !strings.HasSuffix(trailing, "\n") {
		out.WriteByte('\n')
	}
	return out.String(), nil
}

// varEdits drops the var keyword of nested declarations so they assign the
// hoisted bindings. Statements that would start with an object pattern are
// parenthesized.
func varEdits(src string, vars []jsscan.VarDecl) []edit {
	var out []edit
	for _, v := range vars {
		first := v.Declarators[0]
		if !v.ForHead && first.Destructuring(src) {
			out = append(out,
				edit{start: v.KeywordStart, end: first.TargetStart, text: "("},
				edit{start: v.End, end: v.End, text: ")"})
			continue
		}
		out = append(out, edit{start: v.KeywordStart, end: first.TargetStart})
	}
	return out
}

// writer copies source spans with edits applied.
type writer struct {
	b     strings.Builder
	src   string
	edits []edit
}

func (w *writer) copy(a, b int) {
	pos := a
	for _, e := range w.edits {
		if e.start < a || e.end > b {
			continue
		}
		w.b.WriteString(w.src[pos:e.start])
		w.b.WriteString(e.text)
		pos = e.end
	}
	w.b.WriteString(w.src[pos:b])
}

// stmt copies a statement and terminates it with a semicolon.
func (w *writer) stmt(s jsscan.Stmt) {
	w.copy(s.Start, s.End)
	if !s.Semicolon {
		w.b.WriteByte(';')
	}
}

// Specifiers rewrites every static and dynamic import specifier of src
// through fn. Specifiers fn leaves unchanged keep their original quoting.
func Specifiers(src string, fn func(spec string) string) (string, error) {
	mod, err := jsscan.Parse(src)
	if err != nil {
		return "", err
	}
	var edits []edit
	for _, imp := range mod.Imports {
		if next := fn(imp.Specifier); next != imp.Specifier {
			edits = append(edits, edit{start: imp.SpecStart, end: imp.SpecEnd, text: quote(next)})
		}
	}
	if len(edits) == 0 {
		return src, nil
	}
	w := &writer{src: src, edits: edits}
	w.copy(0, len(src))
	return w.b.String(), nil
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
