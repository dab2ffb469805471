package sqlguard

import "strings"

type scanFlags struct {
	// backslashInLiteral marks a quoted section containing a backslash. The
	// structural grammar treats backslash as an escape while the executors
	// do not, so such input is only checked textually.
	backslashInLiteral bool
	// foreignComment marks '#' or '//' outside literals: comment openers in
	// the structural grammar but operators for the executors.
	foreignComment bool
	unterminated bool
	// unsupported names literal syntax whose extent this scanner cannot
	// determine the way the executors do.
	unsupported string
}

func (f scanFlags) structuralSafe() bool {
	return !f.backslashInLiteral && !f.foreignComment
}

// stripComments removes line and block comments outside quoted text. Block
// comments become a single space so adjacent tokens stay separated.
func stripComments(src string) (string, scanFlags) {
	var b strings.Builder
	var flags scanFlags
	b.Grow(len(src))

	for i := 0; i < len(src); {
		c := src[i]
		switch {
		case c == '-' && i+1 < len(src) && src[i+1] == '-':
			for i < len(src) && src[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			i = skipBlockComment(src, i)
			b.WriteByte(' ')
		case c == '\'' || c == '"' || c == '`':
			if c == '\'' && i > 0 && (src[i-1] == 'E' || src[i-1] == 'e') && (i < 2 || !isIdentPart(src[i-2])) {
				flags.unsupported = "escape string literals"
			}
			end, closed := scanQuoted(src, i)
			literal := src[i:end]
			if c != '`' && strings.IndexByte(literal, '\\') >= 0 {
				flags.backslashInLiteral = true
			}
			if !closed {
				flags.unterminated = true
			}
			b.WriteString(literal)
			i = end
		default:
			if c == '#' || (c == '/' && i+1 < len(src) && src[i+1] == '/') {
				flags.foreignComment = true
			}
			if c == '$' && (i == 0 || !isIdentPart(src[i-1])) {
				flags.unsupported = "dollar-quoted strings and positional parameters"
			}
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), flags
}

// skipBlockComment returns the offset just past the block comment opening at
// start. Block comments nest; an unterminated one runs to the end of input.
func skipBlockComment(src string, start int) int {
	depth := 0
	for i := start; i+1 < len(src); {
		switch {
		case src[i] == '/' && src[i+1] == '*':
			depth++
			i += 2
		case src[i] == '*' && src[i+1] == '/':
			depth--
			i += 2
			if depth == 0 {
				return i
			}
		default:
			i++
		}
	}
	return len(src)
}

// scanQuoted returns the offset just past the closing quote. A doubled quote
// character is an escaped quote.
func scanQuoted(src string, start int) (int, bool) {
	quote := src[start]
	for i := start + 1; i < len(src); i++ {
		if src[i] != quote {
			continue
		}
		if i+1 < len(src) && src[i+1] == quote {
			i++
			continue
		}
		return i + 1, true
	}
	return len(src), false
}

type tokenKind int

const (
	tokWord tokenKind = iota
	tokQuotedIdent
	tokString
	tokNumber
	tokSymbol
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) is(word string) bool {
	return t.kind == tokWord && strings.EqualFold(t.text, word)
}

func (t token) isSymbol(symbol string) bool {
	return t.kind == tokSymbol && t.text == symbol
}

func (t token) upper() string {
	return strings.ToUpper(t.text)
}

func (t token) isName() bool {
	return t.kind == tokWord || t.kind == tokQuotedIdent
}

func tokenize(text string) []token {
	var tokens []token
	for i := 0; i < len(text); {
		c := text[i]
		switch {
		case isSpace(c):
			i++
		case c == '\'':
			end, _ := scanQuoted(text, i)
			tokens = append(tokens, token{kind: tokString, text: text[i:end], pos: i})
			i = end
		case c == '"' || c == '`':
			end, closed := scanQuoted(text, i)
			inner := text[i+1 : end]
			if closed {
				inner = text[i+1 : end-1]
			}
			quote := string(c)
			tokens = append(tokens, token{kind: tokQuotedIdent, text: strings.ReplaceAll(inner, quote+quote, quote), pos: i})
			i = end
		case isIdentStart(c):
			j := i + 1
			for j < len(text) && isIdentPart(text[j]) {
				j++
			}
			tokens = append(tokens, token{kind: tokWord, text: text[i:j], pos: i})
			i = j
		case isDigit(c):
			j := i + 1
			for j < len(text) && (isDigit(text[j]) || text[j] == '.') {
				j++
			}
			tokens = append(tokens, token{kind: tokNumber, text: text[i:j], pos: i})
			i = j
		default:
			tokens = append(tokens, token{kind: tokSymbol, text: string(c), pos: i})
			i++
		}
	}
	return tokens
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '$'
}
