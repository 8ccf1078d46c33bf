// Package render turns a TemplateNode tree and a RenderContext into an
// output Node tree. A render pass is a pure function of its inputs: it
// never mutates the tree or the context, and a bad node only costs its own
// subtree.
package render

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/livetemplate/listingkit"
	"github.com/livetemplate/listingkit/internal/runtime"
	"github.com/livetemplate/listingkit/internal/security"
)

// Options controls a render pass.
type Options struct {
	// Editing makes plain text editable and leaves events unwired.
	Editing bool
	Logger  *zap.Logger
}

// Result is the output of a render pass.
type Result struct {
	// Root is nil when the root node itself was omitted.
	Root     *Node
	Problems []listingkit.Problem
}

// displayProps are always coerced to text.
var displayProps = map[string]bool{
	"text":        true,
	"label":       true,
	"title":       true,
	"alt":         true,
	"placeholder": true,
	"aria-label":  true,
	"value":       true,
	"content":     true,
}

// urlProps must pass security.ValidateAssetURL. Keys are lower-cased.
var urlProps = map[string]bool{
	"href":       true,
	"xlink:href": true,
	"src":        true,
	"srcset":     true,
	"poster":     true,
	"action":     true,
	"formaction": true,
	"cite":       true,
	"background": true,
}

// blockedProps are never emitted. Keys are lower-cased.
var blockedProps = map[string]bool{
	"dangerouslysetinnerhtml": true,
	"srcdoc":                  true,
}

var (
	attrKeyPattern  = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_:-]*$`)
	styleKeyPattern = regexp.MustCompile(`^(--)?[A-Za-z][A-Za-z0-9-]*$`)
)

// validAttrName reports whether key can be written as an attribute name.
func validAttrName(key string) bool {
	return attrKeyPattern.MatchString(key)
}

// unitlessStyles take bare numbers; other numeric style values get "px".
var unitlessStyles = map[string]bool{
	"opacity":    true,
	"zIndex":     true,
	"fontWeight": true,
	"lineHeight": true,
	"flex":       true,
	"flexGrow":   true,
	"flexShrink": true,
	"order":      true,
	"zoom":       true,
}

type renderer struct {
	ctx      *runtime.RenderContext
	opts     Options
	log      *zap.Logger
	problems []listingkit.Problem
}

// Render renders root against ctx. A nil ctx renders against an empty
// context.
func Render(root *listingkit.TemplateNode, ctx *runtime.RenderContext, opts Options) *Result {
	if ctx == nil {
		ctx = runtime.NewRenderContext()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	r := &renderer{ctx: ctx, opts: opts, log: log}
	out := r.node(root, "component")
	return &Result{Root: out, Problems: r.problems}
}

// RenderDocument renders doc.Component and exposes its styleVariables as
// CSS custom properties on the root element.
func RenderDocument(doc *listingkit.Document, ctx *runtime.RenderContext, opts Options) *Result {
	res := Render(doc.Component, ctx, opts)
	if res.Root == nil || res.Root.Kind != KindElement || len(doc.StyleVariables) == 0 {
		return res
	}
	style, _ := res.Root.Props["style"].(map[string]interface{})
	merged := make(map[string]interface{}, len(style))
	flattenVariables("", doc.StyleVariables, merged)
	for k, v := range style {
		merged[k] = v
	}
	res.Root.Props["style"] = merged
	return res
}

func flattenVariables(prefix string, vars map[string]interface{}, out map[string]interface{}) {
	for k, v := range vars {
		name := strings.TrimPrefix(k, "--")
		if prefix != "" {
			name = prefix + "-" + name
		}
		switch val := v.(type) {
		case string:
			out["--"+name] = val
		case map[string]interface{}:
			flattenVariables(name, val, out)
		}
	}
}

func (r *renderer) report(path string, sev listingkit.Severity, format string, args ...interface{}) {
	p := listingkit.Problem{Path: path, Message: fmt.Sprintf(format, args...), Severity: sev}
	r.problems = append(r.problems, p)
	if r.opts.Editing {
		r.log.Warn("render problem", zap.String("path", p.Path), zap.String("problem", p.Message))
	} else {
		r.log.Debug("render problem", zap.String("path", p.Path), zap.String("problem", p.Message))
	}
}

func (r *renderer) node(n *listingkit.TemplateNode, path string) (out *Node) {
	defer func() {
		if rec := recover(); rec != nil {
			r.report(path, listingkit.SeverityError, "render failed: %v", rec)
			out = nil
		}
	}()

	if n == nil {
		r.report(path, listingkit.SeverityError, "node is null")
		return nil
	}

	if n.Malformed != "" {
		r.report(path, listingkit.SeverityError, "malformed node skipped: %s", n.Malformed)
		return nil
	}

	if n.If != "" {
		ok, err := runtime.EvalGuard(n.If, r.ctx)
		if err != nil {
			r.report(path+".if", listingkit.SeverityWarning, "guard treated as false: %v", err)
			return nil
		}
		if !ok {
			return nil
		}
	}

	if !n.Valid() {
		r.report(path, listingkit.SeverityError, "malformed node skipped: type and id are required")
		return nil
	}

	tag, known := tagFor(n.Type)
	if blockedTags[tag] {
		r.report(path+".type", listingkit.SeverityWarning, "element type %q is not allowed", n.Type)
		return nil
	}

	out = element(tag)
	out.ID = n.ID
	out.Type = n.Type
	if !known {
		out.Props["data-lk-type"] = n.Type
	}

	r.props(n, out, path)

	switch n.Type {
	case "image-gallery":
		r.gallery(n, out, path)
	case "markdown":
		r.markdown(out, path)
	case "placeholder":
		r.placeholderImage(out)
	}

	if voidElements[out.Tag] {
		if len(n.Children) > 0 {
			r.report(path+".children", listingkit.SeverityWarning, "<%s> cannot have children; %d dropped", out.Tag, len(n.Children))
		}
		return out
	}

	if out.Tag == "textarea" {
		// textarea content is its value.
		return out
	}

	for i, c := range n.Children {
		childPath := fmt.Sprintf("%s.children[%d]", path, i)
		switch {
		case c.Bad:
			r.report(childPath, listingkit.SeverityError, "child must be a string or a node, got %T", c.Raw)
		case c.Node != nil:
			if child := r.node(c.Node, childPath); child != nil {
				out.Children = append(out.Children, child)
			}
		default:
			out.Children = append(out.Children, r.text(n, i, c.Text, childPath))
		}
	}

	legalize(out)
	return out
}

func (r *renderer) text(n *listingkit.TemplateNode, index int, s, path string) *Node {
	if !runtime.HasExpression(s) {
		t := textNode(s)
		if r.opts.Editing && aiEditable(n) {
			t.Editable = true
			t.EditRef = fmt.Sprintf("%s:%d", n.ID, index)
		}
		return t
	}
	text, err := runtime.Interpolate(s, r.ctx)
	if err != nil {
		r.report(path, listingkit.SeverityWarning, "expression left as text: %v", err)
		return textNode(s)
	}
	return textNode(text)
}

func aiEditable(n *listingkit.TemplateNode) bool {
	return n.Metadata == nil || n.Metadata.AIEditable == nil || *n.Metadata.AIEditable
}

func (r *renderer) props(n *listingkit.TemplateNode, out *Node, path string) {
	keys := make([]string, 0, len(n.Props))
	for k := range n.Props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		val := n.Props[key]
		propPath := path + ".props." + key

		if !validAttrName(key) {
			r.report(propPath, listingkit.SeverityWarning, "prop name %q is not a valid attribute name", key)
			continue
		}
		if event, ok := runtime.EventForProp(key); ok {
			r.event(out, event, val, propPath)
			continue
		}
		lower := strings.ToLower(key)
		if strings.HasPrefix(lower, "on") || blockedProps[lower] {
			r.report(propPath, listingkit.SeverityWarning, "prop %q is not supported", key)
			continue
		}

		resolved := r.value(key, val, propPath)
		if resolved == nil {
			continue
		}
		switch {
		case urlProps[lower]:
			s := runtime.ToText(resolved)
			if err := checkURLProp(lower, s); err != nil {
				r.report(propPath, listingkit.SeverityWarning, "dropped unsafe URL: %v", err)
				continue
			}
			resolved = s
		case lower == "style":
			if s, isText := resolved.(string); isText && unsafeCSS(s) {
				r.report(propPath, listingkit.SeverityWarning, "dropped unsafe style value")
				continue
			}
		}
		out.Props[key] = resolved
	}

	if name, ok := out.Props["name"].(string); ok && name != "" && bindableTags[out.Tag] {
		out.Bind = name
		if _, set := out.Props["value"]; !set {
			if v, ok := r.ctx.FormData[name]; ok {
				out.Props["value"] = v
			}
		}
	}
}

// checkURLProp validates a URL attribute. srcset holds a comma-separated
// list of "url descriptor" candidates, each checked on its own.
func checkURLProp(key, s string) error {
	if key != "srcset" {
		return security.ValidateAssetURL(s)
	}
	for _, candidate := range strings.Split(s, ",") {
		fields := strings.Fields(candidate)
		if len(fields) == 0 {
			continue
		}
		if err := security.ValidateAssetURL(fields[0]); err != nil {
			return err
		}
	}
	return nil
}

// event records the handler for an event prop. Unknown handlers are
// reported in every mode; editing leaves known handlers unwired.
func (r *renderer) event(out *Node, event string, val listingkit.Value, path string) {
	name := ""
	if val.Kind == listingkit.KindString {
		name = val.Str
	}
	h := runtime.ParseHandler(name)
	if !h.Known() {
		r.report(path, listingkit.SeverityWarning, "unknown handler %q ignored", name)
		return
	}
	if r.opts.Editing {
		return
	}
	if out.Events == nil {
		out.Events = make(map[string]runtime.Handler)
	}
	out.Events[event] = h
}

// value resolves a prop value. A nil result means the prop is omitted.
func (r *renderer) value(key string, v listingkit.Value, path string) interface{} {
	switch v.Kind {
	case listingkit.KindString:
		return r.str(key, v.Str, path)
	case listingkit.KindNumber:
		return v.Num
	case listingkit.KindBool:
		return v.Bool
	case listingkit.KindStyle:
		return r.style(v, path)
	case listingkit.KindObject:
		out := make(map[string]interface{}, len(v.Fields))
		for _, k := range v.Keys() {
			if resolved := r.value(k, v.Fields[k], path+"."+k); resolved != nil {
				out[k] = resolved
			}
		}
		return out
	case listingkit.KindList:
		out := make([]interface{}, 0, len(v.Items))
		for i, item := range v.Items {
			out = append(out, r.value("", item, fmt.Sprintf("%s[%d]", path, i)))
		}
		return out
	default:
		return nil
	}
}

func (r *renderer) str(key, s, path string) interface{} {
	if displayProps[key] {
		text, err := runtime.Interpolate(s, r.ctx)
		if err != nil {
			r.report(path, listingkit.SeverityWarning, "expression left as text: %v", err)
			return s
		}
		return text
	}
	v, err := runtime.Evaluate(s, r.ctx)
	if err != nil {
		r.report(path, listingkit.SeverityWarning, "expression left as text: %v", err)
		return s
	}
	return v
}

func (r *renderer) style(v listingkit.Value, path string) map[string]interface{} {
	out := make(map[string]interface{}, len(v.Fields))
	for _, k := range v.Keys() {
		field := v.Fields[k]
		if !styleKeyPattern.MatchString(k) {
			r.report(path+"."+k, listingkit.SeverityWarning, "dropped invalid style property name")
			continue
		}
		var text string
		switch field.Kind {
		case listingkit.KindNull:
			continue
		case listingkit.KindNumber:
			text = runtime.ToText(field.Num)
			if field.Num != 0 && !unitlessStyles[k] && !strings.HasPrefix(k, "--") {
				text += "px"
			}
		default:
			resolved := r.value(k, field, path+"."+k)
			if resolved == nil {
				continue
			}
			text = runtime.ToText(resolved)
		}
		if unsafeCSS(text) {
			r.report(path+"."+k, listingkit.SeverityWarning, "dropped unsafe style value")
			continue
		}
		out[k] = text
	}
	return out
}

func unsafeCSS(s string) bool {
	lower := strings.ToLower(s)
	return strings.Contains(lower, "javascript:") || strings.Contains(lower, "expression(")
}
