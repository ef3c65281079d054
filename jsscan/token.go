package jsscan

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// TokenKind classifies a token.
type TokenKind uint8

const (
	TokIdent    TokenKind = iota + 1 // identifiers and keywords
	TokPrivate                       // #name
	TokString                        // '...' or "..."
	TokNumber                        // numeric literal
	TokTemplate                      // template chunk: `...`, `...${, }...${ or }...`
	TokRegExp                        // /.../flags
	TokPunct                         // punctuator
)

func (k TokenKind) String() string {
	switch k {
	case TokIdent:
		return "ident"
	case TokPrivate:
		return "private"
	case TokString:
		return "string"
	case TokNumber:
		return "number"
	case TokTemplate:
		return "template"
	case TokRegExp:
		return "regexp"
	case TokPunct:
		return "punct"
	default:
		return "unknown"
	}
}

// Token is a lexical token. Text is the raw source slice.
type Token struct {
	Text          string
	Start         int
	End           int
	Kind          TokenKind
	NewlineBefore bool
}

// Is reports whether the token has the given kind and text.
func (t Token) Is(kind TokenKind, text string) bool {
	return t.Kind == kind && t.Text == text
}

// Punct reports whether the token is the punctuator p.
func (t Token) Punct(p string) bool {
	return t.Kind == TokPunct && t.Text == p
}

// Ident reports whether the token is the identifier or keyword name.
func (t Token) Ident(name string) bool {
	return t.Kind == TokIdent && t.Text == name
}

// opensGroup reports whether the token opens a bracketed group.
func (t Token) opensGroup() bool {
	switch t.Kind {
	case TokPunct:
		return t.Text == "{" || t.Text == "(" || t.Text == "["
	case TokTemplate:
		return len(t.Text) >= 2 && t.Text[len(t.Text)-2:] == "${"
	}
	return false
}

// closesGroup reports whether the token closes a bracketed group.
func (t Token) closesGroup() bool {
	switch t.Kind {
	case TokPunct:
		return t.Text == "}" || t.Text == ")" || t.Text == "]"
	case TokTemplate:
		return t.Text[0] == '}'
	}
	return false
}

// StringValue returns the decoded value of a string literal token.
// Only the escapes that can appear in module specifiers are decoded.
func (t Token) StringValue() string {
	if t.Kind != TokString || len(t.Text) < 2 {
		return ""
	}
	raw := t.Text[1 : len(t.Text)-1]
	buf := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' || i+1 >= len(raw) {
			buf = append(buf, c)
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			buf = append(buf, '\n')
		case 't':
			buf = append(buf, '\t')
		case 'r':
			buf = append(buf, '\r')
		case '0':
			buf = append(buf, 0)
		case 'x':
			if r, ok := hexValue(raw, i+1, i+3); ok {
				buf = utf8.AppendRune(buf, r)
				i += 2
			} else {
				buf = append(buf, 'x')
			}
		case 'u':
			r, next, ok := unicodeEscape(raw, i+1)
			if !ok {
				buf = append(buf, 'u')
				continue
			}
			buf = utf8.AppendRune(buf, r)
			i = next - 1
		case '\n':
		default:
			buf = append(buf, raw[i])
		}
	}
	return string(buf)
}

// unicodeEscape decodes XXXX or {X...} starting at i and returns the rune and
// the index after the escape.
func unicodeEscape(s string, i int) (rune, int, bool) {
	if i < len(s) && s[i] == '{' {
		end := strings.IndexByte(s[i:], '}')
		if end < 2 {
			return 0, 0, false
		}
		r, ok := hexValue(s, i+1, i+end)
		return r, i + end + 1, ok
	}
	r, ok := hexValue(s, i, i+4)
	return r, i + 4, ok
}

func hexValue(s string, from, to int) (rune, bool) {
	if to > len(s) || from >= to {
		return 0, false
	}
	var r rune
	for _, c := range []byte(s[from:to]) {
		switch {
		case c >= '0' && c <= '9':
			r = r<<4 | rune(c-'0')
		case c >= 'a' && c <= 'f':
			r = r<<4 | rune(c-'a'+10)
		case c >= 'A' && c <= 'F':
			r = r<<4 | rune(c-'A'+10)
		default:
			return 0, false
		}
		if r > utf8.MaxRune {
			return 0, false
		}
	}
	return r, true
}

// SyntaxError reports a scanning failure with its source position.
type SyntaxError struct {
	Msg    string
	Offset int
	Line   int
	Column int
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Msg)
}

func newSyntaxError(src string, offset int, format string, args ...any) *SyntaxError {
	line, col := 1, 1
	for i := 0; i < offset && i < len(src); i++ {
		if src[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return &SyntaxError{
		Msg:    fmt.Sprintf(format, args...),
		Offset: offset,
		Line:   line,
		Column: col,
	}
}
