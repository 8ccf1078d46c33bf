package runtime

import (
	"strings"
)

// Template is a string split into literal text and {{...}} expressions.
type Template struct {
	Source string
	parts  []part
}

type part struct {
	text string
	expr Expression // nil for literal text
}

// HasExpression reports whether s contains a {{ marker.
func HasExpression(s string) bool {
	return strings.Contains(s, "{{")
}

// ParseTemplate splits s into text and expressions. Quoted strings inside a
// marker may contain "}}". An unterminated marker or a malformed expression
// returns a *SyntaxError.
func ParseTemplate(s string) (*Template, error) {
	t := &Template{Source: s}
	rest := s
	offset := 0
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			if rest != "" {
				t.parts = append(t.parts, part{text: rest})
			}
			return t, nil
		}
		if start > 0 {
			t.parts = append(t.parts, part{text: rest[:start]})
		}
		end := closingMarker(rest, start+2)
		if end < 0 {
			return nil, &SyntaxError{Source: s, Pos: offset + start, Msg: "unterminated {{"}
		}
		expr, err := ParseExpr(rest[start+2 : end])
		if err != nil {
			return nil, err
		}
		t.parts = append(t.parts, part{expr: expr})
		offset += end + 2
		rest = rest[end+2:]
	}
}

// closingMarker returns the index of the "}}" closing a marker whose body
// starts at from, skipping over quoted strings, or -1.
func closingMarker(s string, from int) int {
	var quote byte
	for i := from; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch {
		case c == '\'' || c == '"':
			quote = c
		case c == '}' && i+1 < len(s) && s[i+1] == '}':
			return i
		}
	}
	return -1
}

// Single returns the expression when the template is exactly one marker,
// optionally surrounded by whitespace.
func (t *Template) Single() (Expression, bool) {
	var found Expression
	for _, p := range t.parts {
		if p.expr == nil {
			if strings.TrimSpace(p.text) != "" {
				return nil, false
			}
			continue
		}
		if found != nil {
			return nil, false
		}
		found = p.expr
	}
	return found, found != nil
}

// Eval evaluates the template. A single-marker template returns the typed
// value; anything else returns the substituted text.
func (t *Template) Eval(ctx *RenderContext) interface{} {
	if expr, ok := t.Single(); ok {
		return expr.Eval(ctx)
	}
	return t.Text(ctx)
}

// Text evaluates the template and always returns text.
func (t *Template) Text(ctx *RenderContext) string {
	var b strings.Builder
	for _, p := range t.parts {
		if p.expr == nil {
			b.WriteString(p.text)
			continue
		}
		b.WriteString(ToText(p.expr.Eval(ctx)))
	}
	return b.String()
}

// Evaluate resolves s against ctx. Strings without markers are returned
// unchanged, a whole-string expression keeps its native type and mixed
// text is substituted.
func Evaluate(s string, ctx *RenderContext) (interface{}, error) {
	if !HasExpression(s) {
		return s, nil
	}
	t, err := ParseTemplate(s)
	if err != nil {
		return nil, err
	}
	return t.Eval(ctx), nil
}

// Interpolate resolves every marker in s and returns text.
func Interpolate(s string, ctx *RenderContext) (string, error) {
	if !HasExpression(s) {
		return s, nil
	}
	t, err := ParseTemplate(s)
	if err != nil {
		return "", err
	}
	return t.Text(ctx), nil
}

// ParseGuard parses an if-guard. Guards may be written bare
// (state.open_active) or wrapped in a single marker ({{state.open_active}}).
func ParseGuard(s string) (Expression, error) {
	trimmed := strings.TrimSpace(s)
	if !HasExpression(trimmed) {
		return ParseExpr(trimmed)
	}
	t, err := ParseTemplate(trimmed)
	if err != nil {
		return nil, err
	}
	if expr, ok := t.Single(); ok {
		return expr, nil
	}
	return nil, &SyntaxError{Source: s, Msg: "guard must be a single expression"}
}

// EvalGuard reports whether a guard passes. An empty guard always passes.
func EvalGuard(s string, ctx *RenderContext) (bool, error) {
	if strings.TrimSpace(s) == "" {
		return true, nil
	}
	expr, err := ParseGuard(s)
	if err != nil {
		return false, err
	}
	return Truthy(expr.Eval(ctx)), nil
}
