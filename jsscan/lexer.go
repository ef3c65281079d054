package jsscan

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// punctuators ordered longest first so the lexer takes the longest match.
var punctuators = []string{
	">>>=",
	"...", "===", "!==", "**=", "<<=", ">>=", ">>>", "&&=", "||=", "??=",
	"=>", "==", "!=", "<=", ">=", "&&", "||", "??", "?.", "++", "--",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "<<", ">>", "**",
	"{", "}", "(", ")", "[", "]", ";", ",", "<", ">", "+", "-", "*", "/",
	"%", "&", "|", "^", "!", "~", "?", ":", "=", ".", "@",
}

// keywords after which a slash starts a regular expression.
var regexpAfterKeyword = map[string]bool{
	"return": true, "typeof": true, "instanceof": true, "in": true, "of": true,
	"new": true, "delete": true, "void": true, "throw": true, "case": true,
	"do": true, "else": true, "yield": true, "await": true, "extends": true,
}

type lexer struct {
	src    string
	pos    int
	nl     bool
	toks   []Token
	braces []bool // true when the '{' is a template substitution
}

// Tokenize splits module source into tokens. Comments and whitespace are
// dropped; NewlineBefore records whether a line terminator preceded a token.
func Tokenize(src string) ([]Token, error) {
	lx := &lexer{src: src}
	if strings.HasPrefix(src, "#!") {
		for lx.pos < len(src) && src[lx.pos] != '\n' {
			lx.pos++
		}
	}
	for {
		if err := lx.skipTrivia(); err != nil {
			return nil, err
		}
		if lx.pos >= len(lx.src) {
			return lx.toks, nil
		}
		if err := lx.next(); err != nil {
			return nil, err
		}
	}
}

func (lx *lexer) emit(kind TokenKind, start int) {
	lx.toks = append(lx.toks, Token{
		Kind:          kind,
		Start:         start,
		End:           lx.pos,
		Text:          lx.src[start:lx.pos],
		NewlineBefore: lx.nl,
	})
	lx.nl = false
}

func (lx *lexer) skipTrivia() error {
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		switch {
		case c == '\n' || c == '\r':
			lx.nl = true
			lx.pos++
		case c == ' ' || c == '\t' || c == '\v' || c == '\f':
			lx.pos++
		case c == '/' && lx.peek(1) == '/':
			for lx.pos < len(lx.src) && lx.src[lx.pos] != '\n' && lx.src[lx.pos] != '\r' {
				lx.pos++
			}
		case c == '/' && lx.peek(1) == '*':
			end := strings.Index(lx.src[lx.pos+2:], "*/")
			if end < 0 {
				return newSyntaxError(lx.src, lx.pos, "unterminated comment")
			}
			body := lx.src[lx.pos+2 : lx.pos+2+end]
			if strings.ContainsAny(body, "\n\r\u2028\u2029") {
				lx.nl = true
			}
			lx.pos += end + 4
		case c >= utf8.RuneSelf:
			r, size := utf8.DecodeRuneInString(lx.src[lx.pos:])
			switch {
			case r == '\u2028' || r == '\u2029':
				lx.nl = true
			case r == '\u00a0' || r == '\ufeff' || unicode.Is(unicode.Zs, r):
			default:
				return nil
			}
			lx.pos += size
		default:
			return nil
		}
	}
	return nil
}

func (lx *lexer) peek(n int) byte {
	if lx.pos+n < len(lx.src) {
		return lx.src[lx.pos+n]
	}
	return 0
}

func (lx *lexer) next() error {
	start := lx.pos
	c := lx.src[lx.pos]

	switch {
	case isIdentStart(lx.src, lx.pos):
		lx.scanIdent()
		lx.emit(TokIdent, start)
	case c == '#' && isIdentStart(lx.src, lx.pos+1):
		lx.pos++
		lx.scanIdent()
		lx.emit(TokPrivate, start)
	case isDigit(c) || (c == '.' && isDigit(lx.peek(1))):
		lx.scanNumber()
		lx.emit(TokNumber, start)
	case c == '\'' || c == '"':
		if err := lx.scanString(c); err != nil {
			return err
		}
		lx.emit(TokString, start)
	case c == '`':
		lx.pos++
		return lx.scanTemplate(start)
	case c == '}' && len(lx.braces) > 0 && lx.braces[len(lx.braces)-1]:
		lx.braces = lx.braces[:len(lx.braces)-1]
		lx.pos++
		return lx.scanTemplate(start)
	case c == '/' && lx.regexpAllowed():
		if err := lx.scanRegExp(); err != nil {
			return err
		}
		lx.emit(TokRegExp, start)
	default:
		for _, p := range punctuators {
			if strings.HasPrefix(lx.src[lx.pos:], p) {
				lx.pos += len(p)
				switch p {
				case "{":
					lx.braces = append(lx.braces, false)
				case "}":
					if len(lx.braces) > 0 {
						lx.braces = lx.braces[:len(lx.braces)-1]
					}
				}
				lx.emit(TokPunct, start)
				return nil
			}
		}
		return newSyntaxError(lx.src, lx.pos, "unexpected character %q", c)
	}
	return nil
}

func (lx *lexer) scanIdent() {
	for lx.pos < len(lx.src) {
		if lx.src[lx.pos] == '\\' {
			// \uXXXX or \u{...}
			lx.pos += 2
			if lx.pos < len(lx.src) && lx.src[lx.pos] == '{' {
				for lx.pos < len(lx.src) && lx.src[lx.pos] != '}' {
					lx.pos++
				}
				lx.pos++
			} else {
				lx.pos += 4
			}
			continue
		}
		r, size := utf8.DecodeRuneInString(lx.src[lx.pos:])
		if !isIdentPart(r) {
			break
		}
		lx.pos += size
	}
	if lx.pos > len(lx.src) {
		lx.pos = len(lx.src)
	}
}

func (lx *lexer) scanNumber() {
	hex := lx.src[lx.pos] == '0' && (lx.peek(1) == 'x' || lx.peek(1) == 'X')
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		switch {
		case isDigit(c) || isASCIILetter(c) || c == '_' || c == '.':
			lx.pos++
		case (c == '+' || c == '-') && !hex && lx.pos > 0 &&
			(lx.src[lx.pos-1] == 'e' || lx.src[lx.pos-1] == 'E'):
			lx.pos++
		default:
			return
		}
	}
}

func (lx *lexer) scanString(quote byte) error {
	start := lx.pos
	lx.pos++
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		switch c {
		case '\\':
			lx.pos += 2
			continue
		case quote:
			lx.pos++
			return nil
		case '\n', '\r':
			return newSyntaxError(lx.src, start, "unterminated string literal")
		}
		lx.pos++
	}
	return newSyntaxError(lx.src, start, "unterminated string literal")
}

// scanTemplate scans a template chunk whose opening delimiter (` or }) has
// already been consumed. The chunk ends at a closing backtick or at "${".
func (lx *lexer) scanTemplate(start int) error {
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		switch {
		case c == '\\':
			lx.pos += 2
			continue
		case c == '`':
			lx.pos++
			lx.emit(TokTemplate, start)
			return nil
		case c == '$' && lx.peek(1) == '{':
			lx.pos += 2
			lx.braces = append(lx.braces, true)
			lx.emit(TokTemplate, start)
			return nil
		}
		lx.pos++
	}
	return newSyntaxError(lx.src, start, "unterminated template literal")
}

func (lx *lexer) scanRegExp() error {
	start := lx.pos
	lx.pos++
	inClass := false
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		switch {
		case c == '\\':
			lx.pos += 2
			continue
		case c == '\n' || c == '\r':
			return newSyntaxError(lx.src, start, "unterminated regular expression")
		case c == '[':
			inClass = true
		case c == ']':
			inClass = false
		case c == '/' && !inClass:
			lx.pos++
			for lx.pos < len(lx.src) && isASCIILetter(lx.src[lx.pos]) {
				lx.pos++
			}
			return nil
		}
		lx.pos++
	}
	return newSyntaxError(lx.src, start, "unterminated regular expression")
}

// regexpAllowed decides whether a slash at the current position starts a
// regular expression, based on the previous token.
func (lx *lexer) regexpAllowed() bool {
	if len(lx.toks) == 0 {
		return true
	}
	prev := lx.toks[len(lx.toks)-1]
	switch prev.Kind {
	case TokPunct:
		return prev.Text != ")" && prev.Text != "]" && prev.Text != "}" &&
			prev.Text != "++" && prev.Text != "--"
	case TokIdent:
		return regexpAfterKeyword[prev.Text]
	case TokTemplate:
		return strings.HasSuffix(prev.Text, "${")
	default:
		return false
	}
}

func isIdentStart(src string, pos int) bool {
	if pos >= len(src) {
		return false
	}
	c := src[pos]
	if c < utf8.RuneSelf {
		return isASCIILetter(c) || c == '$' || c == '_' || c == '\\'
	}
	r, _ := utf8.DecodeRuneInString(src[pos:])
	return unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	if r < utf8.RuneSelf {
		c := byte(r)
		return isASCIILetter(c) || isDigit(c) || c == '$' || c == '_'
	}
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\u200c' || r == '\u200d' ||
		unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Mc, r) || unicode.Is(unicode.Pc, r)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
