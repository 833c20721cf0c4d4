package formula

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokIdent
	tokOp
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokLBrace
	tokRBrace
	tokComma
	tokSemicolon
	tokQuestion
	tokColon
)

type token struct {
	kind  tokenKind
	text  string // operator symbol, identifier, number text, or string value
	start int
	end   int
}

// multi-character operators, longest first
var multiOps = []string{">>>", "==", "!=", "<=", ">=", "<<", ">>"}

func isIdentStart(c byte) bool {
	return c == '$' || c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// lex splits src into tokens. A lex error reports the offending character and
// its byte offset.
func lex(src string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(src) {
		c := src[i]

		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			i++
			continue
		}

		start := i
		switch {
		case isDigit(c) || (c == '.' && i+1 < len(src) && isDigit(src[i+1])):
			i = scanNumber(src, i)
			tokens = append(tokens, token{tokNumber, src[start:i], start, i})
			continue

		case isIdentStart(c):
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			tokens = append(tokens, token{tokIdent, src[start:i], start, i})
			continue

		case c == '"' || c == '\'':
			value, next, err := scanString(src, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{tokString, value, start, next})
			i = next
			continue
		}

		if op := matchMultiOp(src[i:]); op != "" {
			i += len(op)
			tokens = append(tokens, token{tokOp, op, start, i})
			continue
		}

		var kind tokenKind
		switch c {
		case '(':
			kind = tokLParen
		case ')':
			kind = tokRParen
		case '[':
			kind = tokLBracket
		case ']':
			kind = tokRBracket
		case '{':
			kind = tokLBrace
		case '}':
			kind = tokRBrace
		case ',':
			kind = tokComma
		case ';':
			kind = tokSemicolon
		case '?':
			kind = tokQuestion
		case ':':
			kind = tokColon
		case '+', '-', '*', '/', '%', '^', '<', '>', '&', '|', '~', '!', '=':
			kind = tokOp
		default:
			return nil, fmt.Errorf("unexpected character %q at position %d", string(c), i)
		}
		i++
		tokens = append(tokens, token{kind, src[start:i], start, i})
	}

	tokens = append(tokens, token{tokEOF, "", len(src), len(src)})
	return tokens, nil
}

func matchMultiOp(s string) string {
	for _, op := range multiOps {
		if strings.HasPrefix(s, op) {
			return op
		}
	}
	return ""
}

func scanNumber(src string, i int) int {
	for i < len(src) && isDigit(src[i]) {
		i++
	}
	if i < len(src) && src[i] == '.' {
		i++
		for i < len(src) && isDigit(src[i]) {
			i++
		}
	}
	if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
		j := i + 1
		if j < len(src) && (src[j] == '+' || src[j] == '-') {
			j++
		}
		if j < len(src) && isDigit(src[j]) {
			i = j
			for i < len(src) && isDigit(src[i]) {
				i++
			}
		}
	}
	return i
}

// scanString scans a quoted string starting at src[i] and returns the unquoted
// value and the offset just past the closing quote.
func scanString(src string, i int) (string, int, error) {
	quote := src[i]
	var b strings.Builder
	j := i + 1
	for j < len(src) {
		c := src[j]
		if c == '\\' && j+1 < len(src) {
			b.WriteByte(src[j+1])
			j += 2
			continue
		}
		if c == quote {
			return b.String(), j + 1, nil
		}
		b.WriteByte(c)
		j++
	}
	return "", 0, fmt.Errorf("unterminated string starting at position %d", i)
}
