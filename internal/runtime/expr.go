// Package runtime evaluates {{...}} template expressions against a render
// context and holds the per-session toggle and form state those expressions
// read from.
//
// Supported expression forms:
//   - content.title, images[0], formData.email, state.menu_active (paths)
//   - formData.name || 'Anonymous' (fallback)
//   - state.x_active ? 'ON' : 'OFF' (ternary)
//   - !state.x_active (negation)
//   - 'text', "text", 42, true, false, null, undefined (literals)
//
// Chaining an operator (a || b || c, nested ternaries, !!x) is a syntax error.
package runtime

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// RenderContext is the read-only data a render pass evaluates against.
type RenderContext struct {
	Content  map[string]interface{}
	Images   []string
	State    map[string]bool
	FormData map[string]string
	// Errors holds field-level messages from the last form submit.
	Errors map[string]string
}

// NewRenderContext creates an empty render context.
func NewRenderContext() *RenderContext {
	return &RenderContext{
		Content:  make(map[string]interface{}),
		State:    make(map[string]bool),
		FormData: make(map[string]string),
		Errors:   make(map[string]string),
	}
}

// Expression represents a parsed template expression.
type Expression interface {
	// Eval evaluates the expression. A path that cannot be resolved
	// yields nil (undefined); evaluation never fails.
	Eval(ctx *RenderContext) interface{}
	String() string
}

// Literal is a constant string, number, boolean or null.
type Literal struct {
	Value interface{}
}

func (l *Literal) Eval(*RenderContext) interface{} { return l.Value }

func (l *Literal) String() string {
	if s, ok := l.Value.(string); ok {
		return strconv.Quote(s)
	}
	if l.Value == nil {
		return "null"
	}
	return ToText(l.Value)
}

// Segment is one step of a Path: a property name or a list index.
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

// Path resolves a dotted/bracketed chain against one of the context roots.
type Path struct {
	Root     string
	Segments []Segment
}

func (p *Path) Eval(ctx *RenderContext) interface{} {
	if ctx == nil {
		return nil
	}
	var cur interface{}
	switch p.Root {
	case "content":
		if ctx.Content == nil {
			return nil
		}
		cur = ctx.Content
	case "images":
		if ctx.Images == nil {
			return nil
		}
		cur = ctx.Images
	case "state":
		if ctx.State == nil {
			return nil
		}
		cur = ctx.State
	case "formData":
		if ctx.FormData == nil {
			return nil
		}
		cur = ctx.FormData
	case "errors":
		if ctx.Errors == nil {
			return nil
		}
		cur = ctx.Errors
	default:
		return nil
	}

	for _, seg := range p.Segments {
		cur = lookup(cur, seg)
		if cur == nil {
			return nil
		}
	}
	return normalize(cur)
}

func (p *Path) String() string {
	var b strings.Builder
	b.WriteString(p.Root)
	for _, seg := range p.Segments {
		if seg.IsIndex {
			fmt.Fprintf(&b, "[%d]", seg.Index)
		} else {
			b.WriteString(".")
			b.WriteString(seg.Key)
		}
	}
	return b.String()
}

// Not negates the truthiness of its operand.
type Not struct {
	X Expression
}

func (n *Not) Eval(ctx *RenderContext) interface{} { return !Truthy(n.X.Eval(ctx)) }

func (n *Not) String() string { return "!" + n.X.String() }

// Fallback yields Right when Left is falsy.
type Fallback struct {
	Left, Right Expression
}

func (f *Fallback) Eval(ctx *RenderContext) interface{} {
	if v := f.Left.Eval(ctx); Truthy(v) {
		return v
	}
	return f.Right.Eval(ctx)
}

func (f *Fallback) String() string { return f.Left.String() + " || " + f.Right.String() }

// Ternary selects Then or Else by the truthiness of Cond.
type Ternary struct {
	Cond, Then, Else Expression
}

func (t *Ternary) Eval(ctx *RenderContext) interface{} {
	if Truthy(t.Cond.Eval(ctx)) {
		return t.Then.Eval(ctx)
	}
	return t.Else.Eval(ctx)
}

func (t *Ternary) String() string {
	return t.Cond.String() + " ? " + t.Then.String() + " : " + t.Else.String()
}

// lookup steps one segment into v. Unknown shapes resolve to nil.
func lookup(v interface{}, seg Segment) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		if seg.IsIndex {
			return val[strconv.Itoa(seg.Index)]
		}
		return val[seg.Key]
	case map[string]bool:
		b, ok := val[seg.Key]
		if !ok {
			return nil
		}
		return b
	case map[string]string:
		s, ok := val[seg.Key]
		if !ok {
			return nil
		}
		return s
	case []interface{}:
		if !seg.IsIndex {
			if seg.Key == "length" {
				return float64(len(val))
			}
			return nil
		}
		if seg.Index < 0 || seg.Index >= len(val) {
			return nil
		}
		return val[seg.Index]
	case []string:
		if !seg.IsIndex {
			if seg.Key == "length" {
				return float64(len(val))
			}
			return nil
		}
		if seg.Index < 0 || seg.Index >= len(val) {
			return nil
		}
		return val[seg.Index]
	case string:
		if !seg.IsIndex && seg.Key == "length" {
			return float64(len(val))
		}
	}
	return nil
}

// normalize converts Go-typed context values into the JSON-shaped values
// expressions return: float64 numbers, []interface{} and map[string]interface{}.
func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case []string:
		out := make([]interface{}, len(val))
		for i, s := range val {
			out[i] = s
		}
		return out
	case map[string]bool:
		out := make(map[string]interface{}, len(val))
		for k, b := range val {
			out[k] = b
		}
		return out
	case map[string]string:
		out := make(map[string]interface{}, len(val))
		for k, s := range val {
			out[k] = s
		}
		return out
	}
	return v
}

// ParseExpr parses an expression (without surrounding {{ }}) into an
// evaluable Expression. Errors are always *SyntaxError.
func ParseExpr(input string) (Expression, error) {
	toks, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{src: input, toks: toks}
	return p.parse()
}

type parser struct {
	src  string
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(t token, format string, args ...interface{}) error {
	return &SyntaxError{Source: p.src, Pos: t.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) expect(kind tokenKind) (token, error) {
	t := p.next()
	if t.kind != kind {
		return t, p.errorf(t, "expected %s, found %s", kind, t.kind)
	}
	return t, nil
}

// expression := choice [ "?" choice ":" choice ]
func (p *parser) parse() (Expression, error) {
	cond, err := p.parseChoice()
	if err != nil {
		return nil, err
	}
	if p.peek().kind == tokQuestion {
		p.next()
		then, err := p.parseChoice()
		if err != nil {
			return nil, err
		}
		if t := p.peek(); t.kind == tokQuestion {
			return nil, p.errorf(t, "nested ternary is not supported")
		}
		if _, err := p.expect(tokColon); err != nil {
			return nil, err
		}
		els, err := p.parseChoice()
		if err != nil {
			return nil, err
		}
		if t := p.peek(); t.kind == tokQuestion {
			return nil, p.errorf(t, "nested ternary is not supported")
		}
		cond = &Ternary{Cond: cond, Then: then, Else: els}
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, p.errorf(t, "unexpected %s", t.kind)
	}
	return cond, nil
}

// choice := unary [ "||" unary ]
func (p *parser) parseChoice() (Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokOr {
		return left, nil
	}
	p.next()
	right, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind == tokOr {
		return nil, p.errorf(t, "chained '||' is not supported")
	}
	return &Fallback{Left: left, Right: right}, nil
}

// unary := [ "!" ] operand
func (p *parser) parseUnary() (Expression, error) {
	if p.peek().kind != tokNot {
		return p.parseOperand()
	}
	p.next()
	if t := p.peek(); t.kind == tokNot {
		return nil, p.errorf(t, "repeated '!' is not supported")
	}
	x, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return &Not{X: x}, nil
}

func (p *parser) parseOperand() (Expression, error) {
	t := p.next()
	switch t.kind {
	case tokString:
		return &Literal{Value: t.text}, nil
	case tokNumber:
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, p.errorf(t, "invalid number %q", t.text)
		}
		return &Literal{Value: f}, nil
	case tokIdent:
		switch t.text {
		case "true":
			return &Literal{Value: true}, nil
		case "false":
			return &Literal{Value: false}, nil
		case "null", "undefined":
			return &Literal{Value: nil}, nil
		}
		return p.parsePath(t.text)
	default:
		return nil, p.errorf(t, "expected a value, found %s", t.kind)
	}
}

// path := ident ( "." ident | "[" (number | string) "]" )*
func (p *parser) parsePath(root string) (Expression, error) {
	path := &Path{Root: root}
	for {
		switch p.peek().kind {
		case tokDot:
			p.next()
			name, err := p.expect(tokIdent)
			if err != nil {
				return nil, err
			}
			path.Segments = append(path.Segments, Segment{Key: name.text})
		case tokLBracket:
			p.next()
			t := p.next()
			switch t.kind {
			case tokNumber:
				idx, err := strconv.Atoi(t.text)
				if err != nil {
					return nil, p.errorf(t, "index must be an integer, found %q", t.text)
				}
				path.Segments = append(path.Segments, Segment{Index: idx, IsIndex: true})
			case tokString:
				path.Segments = append(path.Segments, Segment{Key: t.text})
			default:
				return nil, p.errorf(t, "expected index or quoted key, found %s", t.kind)
			}
			if _, err := p.expect(tokRBracket); err != nil {
				return nil, err
			}
		default:
			return path, nil
		}
	}
}

// Truthy reports whether v counts as true in a guard or condition.
// nil, false, 0, NaN and the empty string are falsy; everything else,
// including empty lists and objects, is truthy.
func Truthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case float64:
		return val != 0 && !math.IsNaN(val)
	case int:
		return val != 0
	case int64:
		return val != 0
	case string:
		return val != ""
	default:
		return true
	}
}

// ToText converts an evaluated value to the text substituted into a string.
func ToText(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		if math.IsNaN(val) {
			return "NaN"
		}
		if math.Abs(val) >= 1e21 {
			return strconv.FormatFloat(val, 'g', -1, 64)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case []interface{}:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = ToText(item)
		}
		return strings.Join(parts, ",")
	case []string:
		return strings.Join(val, ",")
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(data)
	}
}
