package listingkit

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/livetemplate/listingkit/internal/runtime"
)

// propNamePattern matches prop names that can be written as attributes.
var propNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_:-]*$`)

type validator struct {
	problems []Problem
	ids      map[string]string // id -> path of first use
}

func (v *validator) errorf(path, format string, args ...interface{}) {
	v.problems = append(v.problems, Problem{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) warnf(path, format string, args ...interface{}) {
	v.problems = append(v.problems, Problem{Path: path, Message: fmt.Sprintf(format, args...), Severity: SeverityWarning})
}

// Validate checks a decoded JSON document and returns every problem found.
// It never stops at the first problem.
func Validate(raw interface{}) []Problem {
	v := &validator{ids: make(map[string]string)}

	doc, ok := raw.(map[string]interface{})
	if !ok {
		v.errorf("", "document must be a JSON object")
		return v.problems
	}

	if meta, present := doc["metadata"]; present {
		if _, ok := meta.(map[string]interface{}); !ok {
			v.errorf("metadata", "metadata must be an object")
		}
	}

	if vars, present := doc["styleVariables"]; present {
		v.styleVariables("styleVariables", vars)
	}

	if content, present := doc["content"]; present && content != nil {
		if _, ok := content.(map[string]interface{}); !ok {
			v.errorf("content", "content must be an object")
		}
	}

	if images, present := doc["images"]; present && images != nil {
		list, ok := images.([]interface{})
		if !ok {
			v.errorf("images", "images must be a list of URLs")
		}
		for i, img := range list {
			if _, ok := img.(string); !ok {
				v.errorf(fmt.Sprintf("images[%d]", i), "image must be a URL string")
			}
		}
	}

	component, present := doc["component"]
	if !present || component == nil {
		v.errorf("component", "component is required")
		return v.problems
	}
	v.node("component", component)
	return v.problems
}

// ValidateNode checks an already decoded tree.
func ValidateNode(n *TemplateNode) []Problem {
	v := &validator{ids: make(map[string]string)}
	v.typedNode("component", n)
	return v.problems
}

func (v *validator) styleVariables(path string, raw interface{}) {
	vars, ok := raw.(map[string]interface{})
	if !ok {
		v.errorf(path, "styleVariables must be an object")
		return
	}
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		p := path + "." + k
		switch val := vars[k].(type) {
		case string:
			if !IsValidColor(val) {
				v.errorf(p, "invalid color %q", val)
			}
		case map[string]interface{}:
			v.styleVariables(p, val)
		default:
			v.errorf(p, "must be a color string or a map of colors")
		}
	}
}

func (v *validator) stringField(path string, m map[string]interface{}, key string) {
	raw, present := m[key]
	if !present || raw == nil {
		v.errorf(path+"."+key, "%s is required", key)
		return
	}
	s, ok := raw.(string)
	if !ok {
		v.errorf(path+"."+key, "%s must be a string", key)
		return
	}
	if s == "" {
		v.errorf(path+"."+key, "%s must not be empty", key)
	}
}

func (v *validator) node(path string, raw interface{}) {
	m, ok := raw.(map[string]interface{})
	if !ok {
		v.errorf(path, "node must be an object")
		return
	}

	v.stringField(path, m, "type")
	v.stringField(path, m, "id")
	if id, ok := m["id"].(string); ok && id != "" {
		v.checkID(path, id)
	}

	if props, present := m["props"]; present && props != nil {
		pm, ok := props.(map[string]interface{})
		if !ok {
			v.errorf(path+".props", "props must be an object")
		} else {
			v.props(path+".props", PropsOf(pm))
		}
	}

	if guard, present := m["if"]; present && guard != nil {
		s, ok := guard.(string)
		if !ok {
			v.errorf(path+".if", "if must be a string")
		} else {
			v.guard(path+".if", s)
		}
	}

	if meta, present := m["metadata"]; present && meta != nil {
		mm, ok := meta.(map[string]interface{})
		if !ok {
			v.errorf(path+".metadata", "metadata must be an object")
		} else if editable, present := mm["aiEditable"]; present {
			if _, ok := editable.(bool); !ok {
				v.errorf(path+".metadata.aiEditable", "aiEditable must be a boolean")
			}
		}
	}

	children, present := m["children"]
	if !present || children == nil {
		return
	}
	list, ok := children.([]interface{})
	if !ok {
		v.errorf(path+".children", "children must be a list")
		return
	}
	for i, c := range list {
		cp := fmt.Sprintf("%s.children[%d]", path, i)
		switch val := c.(type) {
		case string:
			v.text(cp, val)
		case map[string]interface{}:
			v.node(cp, val)
		default:
			v.errorf(cp, "child must be a string or a node")
		}
	}
}

func (v *validator) typedNode(path string, n *TemplateNode) {
	if n == nil {
		v.errorf(path, "node is missing")
		return
	}
	if n.Type == "" {
		v.errorf(path+".type", "type is required")
	}
	if n.ID == "" {
		v.errorf(path+".id", "id is required")
	} else {
		v.checkID(path, n.ID)
	}
	v.props(path+".props", n.Props)
	if n.If != "" {
		v.guard(path+".if", n.If)
	}
	for i, c := range n.Children {
		cp := fmt.Sprintf("%s.children[%d]", path, i)
		switch {
		case c.Bad:
			v.errorf(cp, "child must be a string or a node")
		case c.Node != nil:
			v.typedNode(cp, c.Node)
		default:
			v.text(cp, c.Text)
		}
	}
}

func (v *validator) checkID(path, id string) {
	if first, dup := v.ids[id]; dup {
		v.errorf(path+".id", "duplicate id %q (first used at %s)", id, first)
		return
	}
	v.ids[id] = path
}

func (v *validator) guard(path, s string) {
	if _, err := runtime.ParseGuard(s); err != nil {
		v.errorf(path, "%v", err)
	}
}

func (v *validator) text(path, s string) {
	if !runtime.HasExpression(s) {
		return
	}
	if _, err := runtime.ParseTemplate(s); err != nil {
		v.warnf(path, "%v; rendered as literal text", err)
	}
}

func (v *validator) props(path string, props Props) {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		val := props[k]
		p := path + "." + k
		if !propNamePattern.MatchString(k) {
			v.warnf(p, "prop name %q is not a valid attribute name; it is dropped", k)
			continue
		}
		if _, isEvent := runtime.EventForProp(k); isEvent {
			if val.Kind != KindString {
				v.errorf(p, "handler must be a string")
				continue
			}
			if !runtime.ParseHandler(val.Str).Known() {
				v.warnf(p, "unknown handler %q is ignored", val.Str)
			}
			continue
		}
		v.value(p, val)
	}
}

func (v *validator) value(path string, val Value) {
	switch val.Kind {
	case KindString:
		v.text(path, val.Str)
	case KindStyle, KindObject:
		for _, k := range val.Keys() {
			v.value(path+"."+k, val.Fields[k])
		}
	case KindList:
		for i, item := range val.Items {
			v.value(fmt.Sprintf("%s[%d]", path, i), item)
		}
	}
}
