package runtime

import (
	"fmt"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokDot
	tokLBracket
	tokRBracket
	tokOr
	tokQuestion
	tokColon
	tokNot
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of expression"
	case tokIdent:
		return "identifier"
	case tokString:
		return "string"
	case tokNumber:
		return "number"
	case tokDot:
		return "'.'"
	case tokLBracket:
		return "'['"
	case tokRBracket:
		return "']'"
	case tokOr:
		return "'||'"
	case tokQuestion:
		return "'?'"
	case tokColon:
		return "':'"
	case tokNot:
		return "'!'"
	default:
		return "unknown token"
	}
}

type token struct {
	kind tokenKind
	text string // identifier name, decoded string literal, or number source
	pos  int
}

// SyntaxError reports a malformed template expression.
type SyntaxError struct {
	Source string // expression text without the {{ }} markers
	Pos    int    // byte offset into Source
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("expression syntax error at offset %d in %q: %s", e.Pos, e.Source, e.Msg)
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c == '-' || isDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// lex splits an expression into tokens. The token list always ends with tokEOF.
func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '.':
			toks = append(toks, token{kind: tokDot, pos: i})
			i++
		case c == '[':
			toks = append(toks, token{kind: tokLBracket, pos: i})
			i++
		case c == ']':
			toks = append(toks, token{kind: tokRBracket, pos: i})
			i++
		case c == '?':
			toks = append(toks, token{kind: tokQuestion, pos: i})
			i++
		case c == ':':
			toks = append(toks, token{kind: tokColon, pos: i})
			i++
		case c == '!':
			toks = append(toks, token{kind: tokNot, pos: i})
			i++
		case c == '|':
			if i+1 >= len(src) || src[i+1] != '|' {
				return nil, &SyntaxError{Source: src, Pos: i, Msg: "expected '||'"}
			}
			toks = append(toks, token{kind: tokOr, pos: i})
			i += 2
		case c == '\'' || c == '"':
			text, end, err := lexString(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tokString, text: text, pos: i})
			i = end
		case isDigit(c) || (c == '-' && i+1 < len(src) && isDigit(src[i+1])):
			start := i
			i++
			for i < len(src) && isDigit(src[i]) {
				i++
			}
			if i < len(src) && src[i] == '.' && i+1 < len(src) && isDigit(src[i+1]) {
				i++
				for i < len(src) && isDigit(src[i]) {
					i++
				}
			}
			toks = append(toks, token{kind: tokNumber, text: src[start:i], pos: start})
		case isIdentStart(c):
			start := i
			i++
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: src[start:i], pos: start})
		default:
			return nil, &SyntaxError{Source: src, Pos: i, Msg: fmt.Sprintf("unexpected character %q", c)}
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(src)})
	return toks, nil
}

// lexString decodes the quoted literal starting at src[start] and returns
// its value plus the offset just past the closing quote.
func lexString(src string, start int) (string, int, error) {
	quote := src[start]
	var b strings.Builder
	for i := start + 1; i < len(src); i++ {
		c := src[i]
		if c == quote {
			return b.String(), i + 1, nil
		}
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(src) {
			break
		}
		switch src[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		default:
			b.WriteByte(src[i])
		}
	}
	return "", 0, &SyntaxError{Source: src, Pos: start, Msg: "unterminated string literal"}
}
