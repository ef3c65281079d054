package jsscan

import "slices"

type frame struct {
	close int // closing token index, -1 for arrow expression bodies
	depth int // group depth the frame was opened at
	fn    bool
}

// scanExpressions finds dynamic imports anywhere in the module and await
// expressions that are not enclosed by any function or class body.
func (m *Module) scanExpressions() {
	classBodies := m.classBodies()
	var (
		stack   []frame
		blocked int
		depth   int
	)
	push := func(f frame) {
		stack = append(stack, f)
		blocked++
	}
	pop := func() {
		stack = stack[:len(stack)-1]
		blocked--
	}
	for i := 0; i < len(m.Tokens); i++ {
		t := m.Tokens[i]

		// arrow expression bodies end at a separator or when their group closes
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			if top.close >= 0 || !m.endsArrowBody(i, top.depth, depth) {
				break
			}
			pop()
		}
		if t.closesGroup() {
			for len(stack) > 0 && stack[len(stack)-1].close == i {
				pop()
			}
			depth--
		}

		switch {
		case t.Ident("await") && blocked == 0 && m.isAwaitKeyword(i):
			m.AwaitOffsets = append(m.AwaitOffsets, t.Start)
		case t.Ident("import"):
			m.dynamicImport(i)
		case t.Punct("=>"):
			if !m.tok(i + 1).Punct("{") {
				push(frame{close: -1, depth: depth, fn: true})
			}
		}

		if t.opensGroup() {
			if t.Punct("{") && (classBodies[i] || m.isFunctionBody(i)) {
				push(frame{close: m.closeOf[i], depth: depth, fn: !classBodies[i]})
			}
			depth++
		}
	}
	slices.SortFunc(m.Imports, func(a, b Import) int {
		return a.SpecStart - b.SpecStart
	})
}

func (m *Module) endsArrowBody(i, frameDepth, depth int) bool {
	if depth < frameDepth {
		return true
	}
	if depth > frameDepth {
		return false
	}
	t := m.Tokens[i]
	switch {
	case t.Punct(",") || t.Punct(";"):
		return true
	case t.closesGroup():
		return true
	case t.NewlineBefore && i > 0 && asiBreaks(m.Tokens[i-1], t):
		return true
	}
	return false
}

func (m *Module) isAwaitKeyword(i int) bool {
	prev := m.tok(i - 1)
	if prev.Punct(".") || prev.Punct("?.") {
		return false
	}
	next := m.tok(i + 1)
	if next.Punct(":") && (prev.Punct("{") || prev.Punct(",")) {
		return false
	}
	return !m.isMethodName(i)
}

// isMethodName reports whether the identifier at i names an object literal
// method, getter or setter: `{ await() {} }`, `{ get await() {} }`.
func (m *Module) isMethodName(i int) bool {
	if !m.tok(i + 1).Punct("(") {
		return false
	}
	body := m.tok(m.closeOf[i+1] + 1)
	if !body.Punct("{") || body.NewlineBefore {
		return false
	}
	prev := m.tok(i - 1)
	switch {
	case prev.Punct("{"), prev.Punct(","), prev.Punct("*"):
		return true
	case prev.Ident("get"), prev.Ident("set"), prev.Ident("async"), prev.Ident("static"):
		return true
	}
	return false
}

// isFunctionBody reports whether the brace at i opens a function body.
func (m *Module) isFunctionBody(i int) bool {
	prev := m.tok(i - 1)
	if prev.Punct("=>") {
		return true
	}
	if !prev.Punct(")") {
		return false
	}
	open := m.openOf[i-1]
	head := m.tok(open - 1)
	switch {
	case head.Ident("if"), head.Ident("while"), head.Ident("switch"),
		head.Ident("catch"), head.Ident("with"), head.Ident("for"):
		return false
	case head.Ident("await") && m.tok(open-2).Ident("for"):
		return false
	}
	return true
}

// classBodies marks the opening brace of every class body.
func (m *Module) classBodies() map[int]bool {
	out := make(map[int]bool)
	for i, t := range m.Tokens {
		if !t.Ident("class") || m.tok(i-1).Punct(".") || m.tok(i-1).Punct("?.") {
			continue
		}
		for j := i + 1; j < len(m.Tokens); j++ {
			u := m.Tokens[j]
			if u.Punct("{") {
				out[j] = true
				break
			}
			if u.closesGroup() || u.Punct(";") {
				break
			}
			if u.opensGroup() {
				j = m.closeOf[j]
			}
		}
	}
	return out
}

// dynamicImport records import("literal") calls.
func (m *Module) dynamicImport(i int) {
	if prev := m.tok(i - 1); prev.Punct(".") || prev.Punct("?.") {
		return
	}
	if !m.tok(i + 1).Punct("(") {
		return
	}
	spec := m.tok(i + 2)
	if spec.Kind != TokString {
		return
	}
	if after := m.tok(i + 3); !after.Punct(")") && !after.Punct(",") {
		return
	}
	closer := m.Tokens[m.closeOf[i+1]]
	m.Imports = append(m.Imports, Import{
		Specifier: spec.StringValue(),
		Kind:      ImportDynamic,
		Stmt:      -1,
		SpecStart: spec.Start,
		SpecEnd:   spec.End,
		CallStart: m.Tokens[i].Start,
		CallEnd:   closer.End,
	})
}
