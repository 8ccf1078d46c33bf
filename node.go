package listingkit

import (
	"encoding/json"
	"strings"
)

// NodeMetadata carries editor hints for a node.
type NodeMetadata struct {
	Template   string `json:"template,omitempty"`
	AIEditable *bool  `json:"aiEditable,omitempty"`
}

// TemplateNode is one element of the declarative UI tree.
// Trees are treated as immutable; the edit helpers return new trees.
type TemplateNode struct {
	ID       string        `json:"id"`
	Type     string        `json:"type"`
	Props    Props         `json:"props,omitempty"`
	Children []Child       `json:"children,omitempty"`
	If       string        `json:"if,omitempty"`
	Metadata *NodeMetadata `json:"metadata,omitempty"`

	// Malformed names the first field that had the wrong JSON type when
	// the node was decoded. Renderers skip malformed nodes.
	Malformed string `json:"-"`
	// mistyped keeps the offending raw values so a save round-trips them.
	mistyped map[string]interface{}
}

// Child is a literal string or a nested node. Entries of any other JSON
// type are kept as Bad so renderers can skip and report them.
type Child struct {
	Text string
	Node *TemplateNode
	Bad  bool
	Raw  interface{} // original value when Bad
}

// TextChild wraps a string child.
func TextChild(s string) Child { return Child{Text: s} }

// NodeChild wraps a node child.
func NodeChild(n *TemplateNode) Child { return Child{Node: n} }

// IsText reports whether the child is a literal string.
func (c Child) IsText() bool { return c.Node == nil && !c.Bad }

func (c Child) MarshalJSON() ([]byte, error) {
	switch {
	case c.Bad:
		return json.Marshal(c.Raw)
	case c.Node != nil:
		return json.Marshal(c.Node)
	default:
		return json.Marshal(c.Text)
	}
}

func (c *Child) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = childFromValue(raw)
	return nil
}

func (n *TemplateNode) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*n = *nodeFromMap(raw)
	return nil
}

// MarshalJSON writes the node, restoring any mistyped fields it was
// decoded with.
func (n TemplateNode) MarshalJSON() ([]byte, error) {
	type plain TemplateNode
	data, err := json.Marshal(plain(n))
	if err != nil || len(n.mistyped) == 0 {
		return data, err
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	for k, v := range n.mistyped {
		fields[k] = v
	}
	return json.Marshal(fields)
}

// NewNode builds a node with text or node children.
func NewNode(id, typ string, props Props, children ...Child) *TemplateNode {
	return &TemplateNode{ID: id, Type: typ, Props: props, Children: children}
}

// Valid reports whether the node has the fields every node needs.
func (n *TemplateNode) Valid() bool {
	return n != nil && n.Type != "" && n.ID != ""
}

// Walk visits n and its descendants depth-first, pre-order. Returning
// false from fn skips the node's children.
func (n *TemplateNode) Walk(fn func(node *TemplateNode) bool) {
	if n == nil || !fn(n) {
		return
	}
	for _, c := range n.Children {
		if c.Node != nil {
			c.Node.Walk(fn)
		}
	}
}

// Find returns the first node with the given id.
func (n *TemplateNode) Find(id string) *TemplateNode {
	var found *TemplateNode
	n.Walk(func(node *TemplateNode) bool {
		if found != nil {
			return false
		}
		if node.ID == id {
			found = node
			return false
		}
		return true
	})
	return found
}

// Count returns the number of nodes in the tree.
func (n *TemplateNode) Count() int {
	count := 0
	n.Walk(func(*TemplateNode) bool {
		count++
		return true
	})
	return count
}

// nodeFromMap builds a node from decoded JSON without failing. Fields of
// the wrong type are left empty and recorded in Malformed; Validate
// reports them with their paths.
func nodeFromMap(m map[string]interface{}) *TemplateNode {
	n := &TemplateNode{}
	n.ID, _ = m["id"].(string)
	n.Type, _ = m["type"].(string)

	mistyped := func(key, want string) {
		if n.Malformed == "" {
			n.Malformed = key + " must be " + want
		}
		field, _, _ := strings.Cut(key, ".")
		if n.mistyped == nil {
			n.mistyped = make(map[string]interface{})
		}
		n.mistyped[field] = m[field]
	}
	present := func(key string) (interface{}, bool) {
		v, ok := m[key]
		return v, ok && v != nil
	}

	if v, ok := present("if"); ok {
		if guard, isStr := v.(string); isStr {
			n.If = guard
		} else {
			mistyped("if", "a string")
		}
	}
	if v, ok := present("props"); ok {
		if props, isMap := v.(map[string]interface{}); isMap {
			n.Props = PropsOf(props)
		} else {
			mistyped("props", "an object")
		}
	}
	if v, ok := present("children"); ok {
		if children, isList := v.([]interface{}); isList {
			n.Children = make([]Child, len(children))
			for i, c := range children {
				n.Children[i] = childFromValue(c)
			}
		} else {
			mistyped("children", "a list")
		}
	}
	if v, ok := present("metadata"); ok {
		if meta, isMap := v.(map[string]interface{}); isMap {
			n.Metadata = &NodeMetadata{}
			n.Metadata.Template, _ = meta["template"].(string)
			if raw, has := meta["aiEditable"]; has {
				if editable, isBool := raw.(bool); isBool {
					n.Metadata.AIEditable = &editable
				} else {
					mistyped("metadata.aiEditable", "a boolean")
				}
			}
		} else {
			mistyped("metadata", "an object")
		}
	}
	return n
}

func childFromValue(v interface{}) Child {
	switch val := v.(type) {
	case string:
		return TextChild(val)
	case map[string]interface{}:
		return NodeChild(nodeFromMap(val))
	default:
		return Child{Bad: true, Raw: v}
	}
}
