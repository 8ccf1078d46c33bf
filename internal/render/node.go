package render

import (
	"github.com/livetemplate/listingkit/internal/runtime"
)

// Kind identifies what an output Node represents.
type Kind uint8

const (
	KindElement Kind = iota
	KindText
	// KindRaw holds HTML that has already been sanitized.
	KindRaw
)

// Node is one element of the rendered output tree. It is independent of any
// UI toolkit; WriteHTML is one way to paint it.
type Node struct {
	Kind Kind
	Tag  string
	// ID and Type are copied from the source TemplateNode.
	ID   string
	Type string

	Props    map[string]interface{}
	Children []*Node

	// Text holds the content of KindText and KindRaw nodes.
	Text string

	// Events maps a DOM event name to the handler it dispatches.
	Events map[string]runtime.Handler
	// Bind names the form field an input reads from and writes to.
	Bind string

	// Editable marks text that the editor may change in place. EditRef is
	// "nodeID:childIndex" of the source text child.
	Editable bool
	EditRef  string
}

func textNode(s string) *Node {
	return &Node{Kind: KindText, Text: s}
}

func element(tag string) *Node {
	return &Node{Kind: KindElement, Tag: tag, Props: map[string]interface{}{}}
}

// Walk visits n and its descendants depth-first, pre-order.
func (n *Node) Walk(fn func(*Node)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range n.Children {
		c.Walk(fn)
	}
}

// Find returns the first element rendered from the node with the given id.
func (n *Node) Find(id string) *Node {
	var found *Node
	n.Walk(func(x *Node) {
		if found == nil && x.Kind == KindElement && x.ID == id {
			found = x
		}
	})
	return found
}

// Elements returns the number of element nodes that came from a
// TemplateNode, ignoring structural wrappers.
func (n *Node) Elements() int {
	count := 0
	n.Walk(func(x *Node) {
		if x.Kind == KindElement && x.ID != "" {
			count++
		}
	})
	return count
}

// TextContent concatenates every text and raw node below n.
func (n *Node) TextContent() string {
	var out []byte
	n.Walk(func(x *Node) {
		if x.Kind != KindElement {
			out = append(out, x.Text...)
		}
	})
	return string(out)
}
