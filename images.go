package listingkit

import (
	"fmt"
	"sort"
	"strings"
)

// MapUploads pairs temporary upload URLs with their persisted URLs by
// position: blobs[i] is replaced by persisted[i].
func MapUploads(blobs, persisted []string) (map[string]string, error) {
	if len(blobs) != len(persisted) {
		return nil, fmt.Errorf("upload mapping: %d temporary URLs but %d persisted URLs", len(blobs), len(persisted))
	}
	mapping := make(map[string]string, len(blobs))
	for i, blob := range blobs {
		if prev, dup := mapping[blob]; dup && prev != persisted[i] {
			return nil, fmt.Errorf("upload mapping: %s maps to both %s and %s", blob, prev, persisted[i])
		}
		mapping[blob] = persisted[i]
	}
	return mapping, nil
}

type replacer struct {
	keys    []string
	mapping map[string]string
	count   int
}

func newReplacer(mapping map[string]string) *replacer {
	keys := make([]string, 0, len(mapping))
	for k := range mapping {
		if k != "" {
			keys = append(keys, k)
		}
	}
	// Longest first so a URL that prefixes another never wins.
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return &replacer{keys: keys, mapping: mapping}
}

func (r *replacer) str(s string) (string, bool) {
	changed := false
	for _, k := range r.keys {
		if n := strings.Count(s, k); n > 0 {
			s = strings.ReplaceAll(s, k, r.mapping[k])
			r.count += n
			changed = true
		}
	}
	return s, changed
}

func (r *replacer) raw(v interface{}) interface{} {
	switch val := v.(type) {
	case string:
		s, _ := r.str(val)
		return s
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = r.raw(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = r.raw(item)
		}
		return out
	default:
		return v
	}
}

func (r *replacer) value(v Value) (Value, bool) {
	switch v.Kind {
	case KindString:
		s, changed := r.str(v.Str)
		if changed {
			return StringValue(s), true
		}
	case KindStyle, KindObject:
		var fields map[string]Value
		for _, k := range v.Keys() {
			nv, changed := r.value(v.Fields[k])
			if !changed {
				continue
			}
			if fields == nil {
				fields = make(map[string]Value, len(v.Fields))
				for fk, fv := range v.Fields {
					fields[fk] = fv
				}
			}
			fields[k] = nv
		}
		if fields != nil {
			return Value{Kind: v.Kind, Fields: fields}, true
		}
	case KindList:
		var items []Value
		for i, item := range v.Items {
			nv, changed := r.value(item)
			if !changed {
				continue
			}
			if items == nil {
				items = append([]Value(nil), v.Items...)
			}
			items[i] = nv
		}
		if items != nil {
			return ListValue(items...), true
		}
	}
	return v, false
}

func (r *replacer) node(n *TemplateNode) (*TemplateNode, bool) {
	if n == nil {
		return nil, false
	}
	var props Props
	for k, v := range n.Props {
		nv, changed := r.value(v)
		if !changed {
			continue
		}
		if props == nil {
			props = make(Props, len(n.Props))
			for pk, pv := range n.Props {
				props[pk] = pv
			}
		}
		props[k] = nv
	}

	var children []Child
	for i, c := range n.Children {
		var nc Child
		changed := false
		switch {
		case c.Node != nil:
			var updated *TemplateNode
			updated, changed = r.node(c.Node)
			nc = NodeChild(updated)
		case c.IsText():
			var s string
			s, changed = r.str(c.Text)
			nc = TextChild(s)
		}
		if !changed {
			continue
		}
		if children == nil {
			children = append([]Child(nil), n.Children...)
		}
		children[i] = nc
	}

	if props == nil && children == nil {
		return n, false
	}
	cp := *n
	if props != nil {
		cp.Props = props
	}
	if children != nil {
		cp.Children = children
	}
	return &cp, true
}

// ReplaceImageURLs returns a copy of doc in which every occurrence of a
// mapping key is replaced by its value in images, content, props and text.
// The mapping is explicit, so each reference is replaced by exactly the
// URL it was paired with. It also returns the number of replacements.
func ReplaceImageURLs(doc *Document, mapping map[string]string) (*Document, int) {
	r := newReplacer(mapping)
	out := doc.Clone()
	for i, img := range out.Images {
		out.Images[i], _ = r.str(img)
	}
	if out.Content != nil {
		out.Content = r.raw(out.Content).(map[string]interface{})
	}
	out.Component, _ = r.node(doc.Component)
	return out, r.count
}
