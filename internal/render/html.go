package render

import (
	"html"
	"io"
	"sort"
	"strings"

	"github.com/livetemplate/listingkit/internal/runtime"
)

// htmlWriter serializes an output tree, remembering the first write error.
type htmlWriter struct {
	w   io.Writer
	err error
}

// WriteHTML writes n as HTML. Event bindings become data-lk-on<event>
// attributes read by the browser client.
func WriteHTML(w io.Writer, n *Node) error {
	hw := &htmlWriter{w: w}
	hw.node(n)
	return hw.err
}

// RenderHTML returns n as an HTML string.
func RenderHTML(n *Node) (string, error) {
	var b strings.Builder
	if err := WriteHTML(&b, n); err != nil {
		return "", err
	}
	return b.String(), nil
}

func (h *htmlWriter) write(s string) {
	if h.err != nil {
		return
	}
	_, h.err = io.WriteString(h.w, s)
}

func (h *htmlWriter) node(n *Node) {
	if n == nil || h.err != nil {
		return
	}
	switch n.Kind {
	case KindText:
		if n.Editable {
			h.write(`<span contenteditable="true" data-lk-edit="`)
			h.write(html.EscapeString(n.EditRef))
			h.write(`">`)
			h.write(html.EscapeString(n.Text))
			h.write(`</span>`)
			return
		}
		h.write(html.EscapeString(n.Text))
	case KindRaw:
		h.write(n.Text)
	case KindElement:
		h.element(n)
	}
}

func (h *htmlWriter) element(n *Node) {
	h.write("<")
	h.write(n.Tag)

	if n.ID != "" {
		h.attr("id", n.ID)
	}
	if len(n.Events) > 0 || n.Bind != "" {
		h.attr("data-lk-id", n.ID)
	}
	for _, event := range sortedEvents(n.Events) {
		h.attr("data-lk-on"+event, n.Events[event].Action())
	}
	if n.Bind != "" {
		h.attr("data-lk-bind", n.Bind)
	}

	keys := make([]string, 0, len(n.Props))
	for k := range n.Props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if key == "id" || (n.Tag == "textarea" && key == "value") || !validAttrName(key) {
			continue
		}
		name := attrName(key)
		value := n.Props[key]

		if booleanAttributes[name] {
			if b, ok := value.(bool); ok {
				if b {
					h.write(" ")
					h.write(name)
				}
				continue
			}
		}

		switch val := value.(type) {
		case nil:
			continue
		case map[string]interface{}:
			if key == "style" {
				h.attr(name, cssText(val))
				continue
			}
		case []interface{}:
			if key == "className" {
				h.attr(name, strings.TrimSpace(joinText(val, " ")))
				continue
			}
		}
		h.attr(name, runtime.ToText(value))
	}
	h.write(">")

	if voidElements[n.Tag] {
		return
	}
	if n.Tag == "textarea" {
		h.write(html.EscapeString(runtime.ToText(n.Props["value"])))
	}
	for _, c := range n.Children {
		h.node(c)
	}
	h.write("</")
	h.write(n.Tag)
	h.write(">")
}

func (h *htmlWriter) attr(name, value string) {
	h.write(" ")
	h.write(name)
	h.write(`="`)
	h.write(html.EscapeString(value))
	h.write(`"`)
}

func sortedEvents(events map[string]runtime.Handler) []string {
	names := make([]string, 0, len(events))
	for name := range events {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// attrName maps document prop names to HTML attribute names.
func attrName(key string) string {
	switch key {
	case "className":
		return "class"
	case "htmlFor":
		return "for"
	}
	if strings.Contains(key, "-") {
		return key
	}
	return strings.ToLower(key)
}

// cssText writes a style map as sorted kebab-case declarations.
func cssText(style map[string]interface{}) string {
	keys := make([]string, 0, len(style))
	for k := range style {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(kebab(k))
		b.WriteString(": ")
		b.WriteString(runtime.ToText(style[k]))
		b.WriteString(";")
	}
	return b.String()
}

// kebab converts backgroundColor to background-color and WebkitTransform
// to -webkit-transform. Custom properties are left alone.
func kebab(s string) string {
	if strings.HasPrefix(s, "--") || strings.Contains(s, "-") {
		return s
	}
	var b strings.Builder
	for _, c := range s {
		if c >= 'A' && c <= 'Z' {
			b.WriteByte('-')
			b.WriteRune(c + ('a' - 'A'))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func joinText(items []interface{}, sep string) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		if s := runtime.ToText(item); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, sep)
}
