package jsscan

// Declarator is one binding of a const, let or var statement.
type Declarator struct {
	// Names lists the bound identifiers in pattern order.
	Names []string
	// TargetStart/TargetEnd span the binding identifier or pattern.
	TargetStart int
	TargetEnd   int
	// InitStart/InitEnd span the initializer; both are -1 without one.
	InitStart int
	InitEnd   int
}

// Destructuring reports whether the target is an object or array pattern.
func (d Declarator) Destructuring(src string) bool {
	c := src[d.TargetStart]
	return c == '{' || c == '['
}

// Declarators splits a variable statement into its declarators.
func (m *Module) Declarators(s Stmt) ([]Declarator, error) {
	if s.Kind != StmtVar {
		return nil, newSyntaxError(m.Source, s.Start, "not a variable declaration")
	}
	last := s.Last
	if m.tok(last - 1).Punct(";") {
		last--
	}
	return m.declarators(s.DeclFirst+1, last)
}

// VarDecl is a var statement nested inside a compound top-level statement.
type VarDecl struct {
	// KeywordStart is the offset of the var keyword.
	KeywordStart int
	// End is the offset after the last declarator, before any semicolon.
	End int
	// ForHead reports a declaration in the head of a for statement.
	ForHead     bool
	Declarators []Declarator
}

// NestedVars returns the var declarations of a StmtOther statement that bind
// in module scope: those in blocks, branches, loop heads and bodies, but not
// inside function or class bodies.
func (m *Module) NestedVars(s Stmt) ([]VarDecl, error) {
	if s.Kind != StmtOther {
		return nil, nil
	}
	var (
		out         []VarDecl
		classBodies map[int]bool
	)
	for j := s.First; j < s.Last; j++ {
		t := m.Tokens[j]
		if t.Punct("{") && j > s.First {
			if classBodies == nil {
				classBodies = m.classBodies()
			}
			if classBodies[j] || m.isFunctionBody(j) {
				j = m.closeOf[j]
				continue
			}
		}
		if !m.isVarKeyword(j) {
			continue
		}
		d, next, err := m.nestedVar(j)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
		j = next - 1
	}
	return out, nil
}

func (m *Module) isVarKeyword(i int) bool {
	if !m.tok(i).Ident("var") {
		return false
	}
	if prev := m.tok(i - 1); prev.Punct(".") || prev.Punct("?.") {
		return false
	}
	next := m.tok(i + 1)
	return next.Kind == TokIdent || next.Punct("{") || next.Punct("[")
}

// nestedVar splits the var declaration at i and returns the index to resume
// scanning from.
func (m *Module) nestedVar(i int) (VarDecl, int, error) {
	d := VarDecl{KeywordStart: m.Tokens[i].Start}
	first := i + 1
	var last, next int
	if open := m.forHead(i); open >= 0 {
		d.ForHead = true
		last = m.closeOf[open]
		for j := first; j < m.closeOf[open]; j++ {
			t := m.Tokens[j]
			if j > first && (t.Punct(";") || t.Ident("in") || t.Ident("of")) {
				last = j
				break
			}
			if t.opensGroup() {
				j = m.groupEnd(j) - 1
			}
		}
		next = last
	} else {
		next = m.statementEnd(first)
		last = next
		if m.tok(last - 1).Punct(";") {
			last--
		}
	}
	if last <= first {
		return d, 0, newSyntaxError(m.Source, m.Tokens[i].Start, "empty var declaration")
	}
	decls, err := m.declarators(first, last)
	if err != nil {
		return d, 0, err
	}
	d.Declarators = decls
	d.End = m.Tokens[last-1].End
	return d, next, nil
}

// forHead returns the index of the parenthesis when the token at i directly
// follows `for (` or `for await (`, and -1 otherwise.
func (m *Module) forHead(i int) int {
	if !m.tok(i - 1).Punct("(") {
		return -1
	}
	head := m.tok(i - 2)
	if head.Ident("for") || head.Ident("await") && m.tok(i-3).Ident("for") {
		return i - 1
	}
	return -1
}

func (m *Module) declarators(first, last int) ([]Declarator, error) {
	var out []Declarator
	for _, part := range m.splitCommas(first, last) {
		a, b := part[0], part[1]
		if a == b {
			return nil, newSyntaxError(m.Source, m.tok(a).Start, "empty declarator")
		}
		eq := m.find(a, b, "=")
		tEnd := b
		if eq >= 0 {
			tEnd = eq
		}
		if tEnd == a {
			return nil, newSyntaxError(m.Source, m.tok(a).Start, "declarator without binding")
		}
		d := Declarator{
			TargetStart: m.Tokens[a].Start,
			TargetEnd:   m.Tokens[tEnd-1].End,
			InitStart:   -1,
			InitEnd:     -1,
		}
		if eq >= 0 {
			if eq+1 >= b {
				return nil, newSyntaxError(m.Source, m.Tokens[eq].Start, "missing initializer")
			}
			d.InitStart = m.Tokens[eq+1].Start
			d.InitEnd = m.Tokens[b-1].End
		}
		names, err := m.patternNames(a, tEnd)
		if err != nil {
			return nil, err
		}
		d.Names = names
		out = append(out, d)
	}
	return out, nil
}

// splitCommas splits [a, b) at commas outside nested groups.
func (m *Module) splitCommas(a, b int) [][2]int {
	var parts [][2]int
	start := a
	for j := a; j < b; j++ {
		t := m.Tokens[j]
		if t.opensGroup() {
			j = m.groupEnd(j) - 1
			continue
		}
		if t.Punct(",") {
			parts = append(parts, [2]int{start, j})
			start = j + 1
		}
	}
	if start < b || len(parts) > 0 {
		parts = append(parts, [2]int{start, b})
	}
	return parts
}

// groupEnd returns the index after the group at i, following template chains.
func (m *Module) groupEnd(i int) int {
	j := m.closeOf[i]
	for m.Tokens[j].opensGroup() {
		j = m.closeOf[j]
	}
	return j + 1
}

// find returns the index of the first punctuator p in [a, b) outside nested
// groups, or -1.
func (m *Module) find(a, b int, p string) int {
	for j := a; j < b; j++ {
		t := m.Tokens[j]
		if t.opensGroup() {
			j = m.groupEnd(j) - 1
			continue
		}
		if t.Punct(p) {
			return j
		}
	}
	return -1
}

// patternNames collects the identifiers bound by the pattern in [a, b).
func (m *Module) patternNames(a, b int) ([]string, error) {
	t := m.tok(a)
	switch {
	case b-a == 1 && t.Kind == TokIdent:
		return []string{t.Text}, nil
	case t.Punct("{") && m.closeOf[a] == b-1:
		return m.objectPatternNames(a+1, b-1)
	case t.Punct("[") && m.closeOf[a] == b-1:
		return m.arrayPatternNames(a+1, b-1)
	}
	return nil, newSyntaxError(m.Source, t.Start, "invalid binding pattern")
}

func (m *Module) objectPatternNames(a, b int) ([]string, error) {
	var names []string
	for _, part := range m.splitCommas(a, b) {
		p, q := part[0], part[1]
		if p == q {
			continue
		}
		if m.Tokens[p].Punct("...") {
			sub, err := m.patternNames(p+1, q)
			if err != nil {
				return nil, err
			}
			names = append(names, sub...)
			continue
		}
		colon := m.find(p, q, ":")
		eq := m.find(p, q, "=")
		if colon >= 0 && (eq < 0 || colon < eq) {
			end := q
			if e := m.find(colon+1, q, "="); e >= 0 {
				end = e
			}
			sub, err := m.patternNames(colon+1, end)
			if err != nil {
				return nil, err
			}
			names = append(names, sub...)
			continue
		}
		key := m.Tokens[p]
		if key.Kind != TokIdent {
			return nil, newSyntaxError(m.Source, key.Start, "invalid shorthand property in pattern")
		}
		names = append(names, key.Text)
	}
	return names, nil
}

func (m *Module) arrayPatternNames(a, b int) ([]string, error) {
	var names []string
	for _, part := range m.splitCommas(a, b) {
		p, q := part[0], part[1]
		if p == q {
			continue
		}
		if m.Tokens[p].Punct("...") {
			p++
		}
		end := q
		if e := m.find(p, q, "="); e >= 0 {
			end = e
		}
		sub, err := m.patternNames(p, end)
		if err != nil {
			return nil, err
		}
		names = append(names, sub...)
	}
	return names, nil
}
