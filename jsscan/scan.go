package jsscan

// ImportKind distinguishes static from dynamic imports.
type ImportKind uint8

const (
	ImportStatic  ImportKind = iota + 1 // import declaration or re-export
	ImportDynamic                       // import("...") expression
)

func (k ImportKind) String() string {
	if k == ImportDynamic {
		return "dynamic"
	}
	return "static"
}

// Import is one module reference found in the source.
type Import struct {
	Specifier string
	Kind      ImportKind
	ReExport  bool
	// Stmt is the index of the declaring statement for static imports, -1 otherwise.
	Stmt int
	// SpecStart/SpecEnd span the specifier string literal including its quotes.
	SpecStart int
	SpecEnd   int
	// CallStart/CallEnd span the whole import(...) call for dynamic imports.
	CallStart int
	CallEnd   int
}

// StmtKind classifies a top-level statement.
type StmtKind uint8

const (
	StmtOther      StmtKind = iota // any statement moved verbatim
	StmtImport                     // import declaration
	StmtReExport                   // export ... from "x"
	StmtExportList                 // export { a, b as c }
	StmtFunction                   // function declaration (also generators and async)
	StmtClass                      // class declaration
	StmtVar                        // const / let / var declaration
	StmtExpression                 // export default <expression>
)

func (k StmtKind) String() string {
	switch k {
	case StmtImport:
		return "import"
	case StmtReExport:
		return "re-export"
	case StmtExportList:
		return "export-list"
	case StmtFunction:
		return "function"
	case StmtClass:
		return "class"
	case StmtVar:
		return "var"
	case StmtExpression:
		return "expression"
	default:
		return "other"
	}
}

// Stmt is a top-level statement.
type Stmt struct {
	Kind StmtKind
	// Start/End span the statement including a trailing semicolon.
	Start int
	End   int
	// First/Last is the token index range [First, Last).
	First int
	Last  int
	// DeclStart is the offset of the declaration after any export/default prefix.
	DeclStart int
	// DeclFirst is the token index matching DeclStart.
	DeclFirst int
	Export    bool
	Default   bool
	// Name is the declared function or class name, empty when anonymous.
	Name string
	// DeclKind is const, let or var for StmtVar.
	DeclKind string
	// Semicolon reports whether End includes an explicit trailing ';'.
	Semicolon bool
}

// Module is the scanned structure of one ECMAScript module.
type Module struct {
	Source  string
	Tokens  []Token
	Stmts   []Stmt
	Imports []Import
	// AwaitOffsets lists byte offsets of top-level await keywords.
	AwaitOffsets []int

	closeOf []int // opener token index -> closer token index
	openOf  []int // closer token index -> opener token index
}

// HasTopLevelAwait reports whether the module suspends during initialization.
func (m *Module) HasTopLevelAwait() bool {
	return len(m.AwaitOffsets) > 0
}

// Parse tokenizes and scans module source.
func Parse(src string) (*Module, error) {
	toks, err := Tokenize(src)
	if err != nil {
		return nil, err
	}
	m := &Module{Source: src, Tokens: toks}
	if err := m.matchGroups(); err != nil {
		return nil, err
	}
	if err := m.scanStatements(); err != nil {
		return nil, err
	}
	m.scanExpressions()
	return m, nil
}

func (m *Module) matchGroups() error {
	n := len(m.Tokens)
	m.closeOf = make([]int, n)
	m.openOf = make([]int, n)
	var stack []int
	for i, t := range m.Tokens {
		m.closeOf[i], m.openOf[i] = -1, -1
		if t.closesGroup() {
			if len(stack) == 0 {
				return newSyntaxError(m.Source, t.Start, "unexpected %q", t.Text)
			}
			open := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !groupsMatch(m.Tokens[open], t) {
				return newSyntaxError(m.Source, t.Start, "mismatched %q", t.Text)
			}
			m.closeOf[open] = i
			m.openOf[i] = open
		}
		if t.opensGroup() {
			stack = append(stack, i)
		}
	}
	if len(stack) > 0 {
		t := m.Tokens[stack[len(stack)-1]]
		return newSyntaxError(m.Source, t.Start, "unclosed %q", t.Text)
	}
	return nil
}

func groupsMatch(open, close Token) bool {
	switch {
	case open.Kind == TokTemplate:
		return close.Kind == TokTemplate
	case open.Text == "(":
		return close.Punct(")")
	case open.Text == "[":
		return close.Punct("]")
	default:
		return close.Punct("}")
	}
}

func (m *Module) tok(i int) Token {
	if i >= 0 && i < len(m.Tokens) {
		return m.Tokens[i]
	}
	return Token{}
}

// skipGroup returns the index after the group opened at i.
func (m *Module) skipGroup(i int) int {
	return m.closeOf[i] + 1
}

func (m *Module) addStmt(s Stmt) int {
	last := m.Tokens[s.Last-1]
	s.Start = m.Tokens[s.First].Start
	s.End = last.End
	s.Semicolon = last.Punct(";")
	if s.DeclFirst == 0 && s.DeclStart == 0 {
		s.DeclFirst = s.First
	}
	s.DeclStart = m.Tokens[s.DeclFirst].Start
	m.Stmts = append(m.Stmts, s)
	return len(m.Stmts) - 1
}

func (m *Module) scanStatements() error {
	for i := 0; i < len(m.Tokens); {
		next, err := m.topStatement(i)
		if err != nil {
			return err
		}
		if next <= i {
			return newSyntaxError(m.Source, m.Tokens[i].Start, "scanner made no progress")
		}
		i = next
	}
	return nil
}

// topStatement scans one top-level statement starting at token i, records it
// and returns the index of the following token.
func (m *Module) topStatement(i int) (int, error) {
	t := m.Tokens[i]
	switch {
	case t.Ident("import") && !m.tok(i+1).Punct("(") && !m.tok(i+1).Punct("."):
		return m.importDecl(i)
	case t.Ident("export"):
		return m.exportDecl(i)
	case m.isFunctionStart(i):
		end, name, err := m.functionDecl(i)
		if err != nil {
			return 0, err
		}
		m.addStmt(Stmt{Kind: StmtFunction, First: i, Last: end, Name: name})
		return end, nil
	case t.Ident("class"):
		end, name, err := m.classDecl(i)
		if err != nil {
			return 0, err
		}
		m.addStmt(Stmt{Kind: StmtClass, First: i, Last: end, Name: name})
		return end, nil
	case m.isVarStart(i):
		end := m.statementEnd(i + 1)
		m.addStmt(Stmt{Kind: StmtVar, First: i, Last: end, DeclKind: t.Text})
		return end, nil
	}
	end, err := m.otherStatement(i)
	if err != nil {
		return 0, err
	}
	m.addStmt(Stmt{Kind: StmtOther, First: i, Last: end})
	return end, nil
}

func (m *Module) isFunctionStart(i int) bool {
	t := m.tok(i)
	if t.Ident("function") {
		return true
	}
	next := m.tok(i + 1)
	return t.Ident("async") && next.Ident("function") && !next.NewlineBefore
}

func (m *Module) isVarStart(i int) bool {
	t := m.tok(i)
	switch {
	case t.Ident("const") || t.Ident("var"):
		return true
	case t.Ident("let"):
		next := m.tok(i + 1)
		return next.Kind == TokIdent || next.Punct("[") || next.Punct("{")
	}
	return false
}

func (m *Module) importDecl(i int) (int, error) {
	spec := -1
	if m.tok(i+1).Kind == TokString {
		spec = i + 1
	} else {
		for j := i + 1; j < len(m.Tokens); j++ {
			t := m.Tokens[j]
			if t.Punct("{") {
				j = m.closeOf[j]
				continue
			}
			if t.Ident("from") && m.tok(j+1).Kind == TokString {
				spec = j + 1
				break
			}
			if t.Punct(";") {
				break
			}
		}
	}
	if spec < 0 {
		return 0, newSyntaxError(m.Source, m.Tokens[i].Start, "import declaration without module specifier")
	}
	end := m.attributesEnd(spec + 1)
	idx := m.addStmt(Stmt{Kind: StmtImport, First: i, Last: end})
	m.addStaticImport(spec, idx, false)
	return end, nil
}

// attributesEnd skips optional import attributes and a trailing semicolon.
func (m *Module) attributesEnd(i int) int {
	t := m.tok(i)
	if (t.Ident("with") || t.Ident("assert")) && !t.NewlineBefore && m.tok(i+1).Punct("{") {
		i = m.skipGroup(i + 1)
	}
	if m.tok(i).Punct(";") {
		i++
	}
	return i
}

func (m *Module) addStaticImport(spec, stmt int, reexport bool) {
	t := m.Tokens[spec]
	m.Imports = append(m.Imports, Import{
		Specifier: t.StringValue(),
		Kind:      ImportStatic,
		ReExport:  reexport,
		Stmt:      stmt,
		SpecStart: t.Start,
		SpecEnd:   t.End,
		CallStart: -1,
		CallEnd:   -1,
	})
}

func (m *Module) exportDecl(i int) (int, error) {
	j := i + 1
	t := m.tok(j)
	switch {
	case t.Punct("*"):
		for k := j + 1; k < len(m.Tokens); k++ {
			if m.Tokens[k].Ident("from") && m.tok(k+1).Kind == TokString {
				end := m.attributesEnd(k + 2)
				idx := m.addStmt(Stmt{Kind: StmtReExport, First: i, Last: end, Export: true})
				m.addStaticImport(k+1, idx, true)
				return end, nil
			}
		}
		return 0, newSyntaxError(m.Source, t.Start, "export * without module specifier")

	case t.Punct("{"):
		k := m.skipGroup(j)
		if m.tok(k).Ident("from") && m.tok(k+1).Kind == TokString {
			end := m.attributesEnd(k + 2)
			idx := m.addStmt(Stmt{Kind: StmtReExport, First: i, Last: end, Export: true})
			m.addStaticImport(k+1, idx, true)
			return end, nil
		}
		end := k
		if m.tok(end).Punct(";") {
			end++
		}
		m.addStmt(Stmt{Kind: StmtExportList, First: i, Last: end, Export: true})
		return end, nil

	case t.Ident("default"):
		d := j + 1
		switch {
		case m.isFunctionStart(d):
			end, name, err := m.functionDecl(d)
			if err != nil {
				return 0, err
			}
			m.addStmt(Stmt{Kind: StmtFunction, First: i, Last: end, DeclFirst: d, Export: true, Default: true, Name: name})
			return end, nil
		case m.tok(d).Ident("class"):
			end, name, err := m.classDecl(d)
			if err != nil {
				return 0, err
			}
			m.addStmt(Stmt{Kind: StmtClass, First: i, Last: end, DeclFirst: d, Export: true, Default: true, Name: name})
			return end, nil
		}
		if d >= len(m.Tokens) {
			return 0, newSyntaxError(m.Source, t.Start, "export default without value")
		}
		end := m.statementEnd(d)
		m.addStmt(Stmt{Kind: StmtExpression, First: i, Last: end, DeclFirst: d, Export: true, Default: true})
		return end, nil

	case m.isFunctionStart(j):
		end, name, err := m.functionDecl(j)
		if err != nil {
			return 0, err
		}
		m.addStmt(Stmt{Kind: StmtFunction, First: i, Last: end, DeclFirst: j, Export: true, Name: name})
		return end, nil

	case t.Ident("class"):
		end, name, err := m.classDecl(j)
		if err != nil {
			return 0, err
		}
		m.addStmt(Stmt{Kind: StmtClass, First: i, Last: end, DeclFirst: j, Export: true, Name: name})
		return end, nil

	case m.isVarStart(j):
		end := m.statementEnd(j + 1)
		m.addStmt(Stmt{Kind: StmtVar, First: i, Last: end, DeclFirst: j, Export: true, DeclKind: t.Text})
		return end, nil
	}
	return 0, newSyntaxError(m.Source, m.Tokens[i].Start, "unsupported export form")
}

// functionDecl scans a function declaration starting at `function` or
// `async` and returns the index after its body.
func (m *Module) functionDecl(i int) (int, string, error) {
	j := i
	if m.tok(j).Ident("async") {
		j++
	}
	j++ // function
	if m.tok(j).Punct("*") {
		j++
	}
	name := ""
	if t := m.tok(j); t.Kind == TokIdent {
		name = t.Text
		j++
	}
	if !m.tok(j).Punct("(") {
		return 0, "", newSyntaxError(m.Source, m.tok(i).Start, "malformed function declaration")
	}
	j = m.skipGroup(j)
	if !m.tok(j).Punct("{") {
		return 0, "", newSyntaxError(m.Source, m.tok(i).Start, "function declaration without body")
	}
	return m.skipGroup(j), name, nil
}

// classDecl scans a class declaration and returns the index after its body.
func (m *Module) classDecl(i int) (int, string, error) {
	j := i + 1
	name := ""
	if t := m.tok(j); t.Kind == TokIdent && t.Text != "extends" {
		name = t.Text
		j++
	}
	for ; j < len(m.Tokens); j++ {
		t := m.Tokens[j]
		if t.Punct("{") {
			return m.skipGroup(j), name, nil
		}
		if t.opensGroup() {
			j = m.closeOf[j]
		}
	}
	return 0, "", newSyntaxError(m.Source, m.tok(i).Start, "class declaration without body")
}

// otherStatement scans a statement that is moved verbatim and returns the
// index after it. Compound statements are followed through their bodies.
func (m *Module) otherStatement(i int) (int, error) {
	t := m.tok(i)
	switch {
	case t.Punct(";"):
		return i + 1, nil
	case t.Punct("{"):
		return m.skipGroup(i), nil
	case t.Ident("if"):
		end, err := m.headedStatement(i + 1)
		if err != nil {
			return 0, err
		}
		if m.tok(end).Ident("else") {
			return m.otherStatement(end + 1)
		}
		return end, nil
	case t.Ident("for"), t.Ident("while"), t.Ident("with"):
		j := i + 1
		if m.tok(j).Ident("await") {
			j++
		}
		return m.headedStatement(j)
	case t.Ident("switch"):
		j := i + 1
		if m.tok(j).Punct("(") {
			j = m.skipGroup(j)
		}
		if m.tok(j).Punct("{") {
			return m.skipGroup(j), nil
		}
		return 0, newSyntaxError(m.Source, t.Start, "malformed switch statement")
	case t.Ident("do"):
		end, err := m.nested(i + 1)
		if err != nil {
			return 0, err
		}
		if m.tok(end).Ident("while") && m.tok(end+1).Punct("(") {
			end = m.skipGroup(end + 1)
			if m.tok(end).Punct(";") {
				end++
			}
		}
		return end, nil
	case t.Ident("try"):
		j := i + 1
		if m.tok(j).Punct("{") {
			j = m.skipGroup(j)
		}
		if m.tok(j).Ident("catch") {
			j++
			if m.tok(j).Punct("(") {
				j = m.skipGroup(j)
			}
			if m.tok(j).Punct("{") {
				j = m.skipGroup(j)
			}
		}
		if m.tok(j).Ident("finally") && m.tok(j+1).Punct("{") {
			j = m.skipGroup(j + 1)
		}
		return j, nil
	case t.Kind == TokIdent && m.tok(i+1).Punct(":") && !isReserved(t.Text):
		return m.nested(i + 2)
	}
	return m.statementEnd(i), nil
}

// headedStatement scans `( ... ) statement` starting at the parenthesis.
func (m *Module) headedStatement(i int) (int, error) {
	if !m.tok(i).Punct("(") {
		return 0, newSyntaxError(m.Source, m.tok(i).Start, "expected '('")
	}
	return m.nested(m.skipGroup(i))
}

// nested scans a statement in a nested position (loop or branch body).
func (m *Module) nested(i int) (int, error) {
	if i >= len(m.Tokens) {
		return i, nil
	}
	switch {
	case m.isFunctionStart(i):
		end, _, err := m.functionDecl(i)
		return end, err
	case m.tok(i).Ident("class"):
		end, _, err := m.classDecl(i)
		return end, err
	case m.isVarStart(i):
		return m.statementEnd(i + 1), nil
	}
	return m.otherStatement(i)
}

// statementEnd returns the index after the expression-like statement
// starting at i, honoring explicit semicolons and automatic semicolon insertion.
func (m *Module) statementEnd(i int) int {
	for j := i; j < len(m.Tokens); j++ {
		t := m.Tokens[j]
		if j > i && t.NewlineBefore && asiBreaks(m.Tokens[j-1], t) {
			return j
		}
		switch {
		case t.Punct(";"):
			return j + 1
		case t.opensGroup():
			j = m.closeOf[j]
			// a template chunk may close and reopen; follow the chain
			for m.Tokens[j].opensGroup() {
				j = m.closeOf[j]
			}
		case t.closesGroup():
			return j
		}
	}
	return len(m.Tokens)
}

// operatorKeywords are identifiers that cannot end an expression.
var operatorKeywords = map[string]bool{
	"new": true, "typeof": true, "void": true, "delete": true, "await": true,
	"yield": true, "in": true, "of": true, "instanceof": true, "return": true,
	"throw": true, "case": true, "extends": true, "else": true, "do": true,
}

// endsExpression reports whether t can be the last token of an expression.
func endsExpression(t Token) bool {
	switch t.Kind {
	case TokIdent:
		return !operatorKeywords[t.Text]
	case TokString, TokNumber, TokRegExp, TokPrivate:
		return true
	case TokTemplate:
		return len(t.Text) >= 2 && t.Text[len(t.Text)-1] == '`'
	case TokPunct:
		switch t.Text {
		case ")", "]", "}", "++", "--":
			return true
		}
	}
	return false
}

// asiBreaks reports whether a line break between prev and cur ends the statement.
func asiBreaks(prev, cur Token) bool {
	switch cur.Kind {
	case TokPunct:
		switch cur.Text {
		case "++", "--":
			return endsExpression(prev)
		case "{":
			return endsExpression(prev)
		}
		return false
	case TokIdent:
		if cur.Text == "in" || cur.Text == "of" || cur.Text == "instanceof" {
			return false
		}
		return endsExpression(prev)
	case TokTemplate:
		return false
	}
	return endsExpression(prev)
}

var reservedWords = map[string]bool{
	"break": true, "case": true, "catch": true, "class": true, "const": true,
	"continue": true, "debugger": true, "default": true, "delete": true,
	"do": true, "else": true, "export": true, "extends": true, "finally": true,
	"for": true, "function": true, "if": true, "import": true, "in": true,
	"instanceof": true, "new": true, "return": true, "super": true,
	"switch": true, "this": true, "throw": true, "try": true, "typeof": true,
	"var": true, "void": true, "while": true, "with": true, "await": true,
	"yield": true, "null": true, "true": true, "false": true,
}

func isReserved(name string) bool {
	return reservedWords[name]
}
