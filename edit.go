package listingkit

import (
	"errors"
	"fmt"
)

// ErrNodeNotFound is returned by edit helpers when no node has the id.
var ErrNodeNotFound = errors.New("node not found")

// update returns a copy of root in which the node with the given id is
// replaced by fn's result. Only the path from root to that node is copied;
// every other subtree is shared with the original.
func update(root *TemplateNode, id string, fn func(n *TemplateNode) (*TemplateNode, error)) (*TemplateNode, error) {
	if root == nil {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if root.ID == id {
		cp := *root
		return fn(&cp)
	}
	for i, c := range root.Children {
		if c.Node == nil {
			continue
		}
		updated, err := update(c.Node, id, fn)
		if errors.Is(err, ErrNodeNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		cp := *root
		cp.Children = append([]Child(nil), root.Children...)
		cp.Children[i] = NodeChild(updated)
		return &cp, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
}

// EditText replaces the text child at childIndex of the node.
func EditText(root *TemplateNode, nodeID string, childIndex int, text string) (*TemplateNode, error) {
	return update(root, nodeID, func(n *TemplateNode) (*TemplateNode, error) {
		if childIndex < 0 || childIndex >= len(n.Children) {
			return nil, fmt.Errorf("node %s: child index %d out of range", nodeID, childIndex)
		}
		if !n.Children[childIndex].IsText() {
			return nil, fmt.Errorf("node %s: child %d is not text", nodeID, childIndex)
		}
		n.Children = append([]Child(nil), n.Children...)
		n.Children[childIndex] = TextChild(text)
		return n, nil
	})
}

// SetProp sets or replaces one prop of the node.
func SetProp(root *TemplateNode, nodeID, key string, value Value) (*TemplateNode, error) {
	return update(root, nodeID, func(n *TemplateNode) (*TemplateNode, error) {
		props := make(Props, len(n.Props)+1)
		for k, v := range n.Props {
			props[k] = v
		}
		props[key] = value
		n.Props = props
		return n, nil
	})
}

// MoveChild moves the child at index from to index to within a parent.
func MoveChild(root *TemplateNode, parentID string, from, to int) (*TemplateNode, error) {
	return update(root, parentID, func(n *TemplateNode) (*TemplateNode, error) {
		if from < 0 || from >= len(n.Children) || to < 0 || to >= len(n.Children) {
			return nil, fmt.Errorf("node %s: move %d -> %d out of range", parentID, from, to)
		}
		children := append([]Child(nil), n.Children...)
		moved := children[from]
		children = append(children[:from], children[from+1:]...)
		children = append(children[:to], append([]Child{moved}, children[to:]...)...)
		n.Children = children
		return n, nil
	})
}

// RemoveNode drops the node with the given id and its subtree. The root
// itself cannot be removed.
func RemoveNode(root *TemplateNode, nodeID string) (*TemplateNode, error) {
	if root != nil && root.ID == nodeID {
		return nil, fmt.Errorf("cannot remove root node %s", nodeID)
	}
	parent := findParent(root, nodeID)
	if parent == nil {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}
	return update(root, parent.ID, func(n *TemplateNode) (*TemplateNode, error) {
		children := make([]Child, 0, len(n.Children))
		for _, c := range n.Children {
			if c.Node != nil && c.Node.ID == nodeID {
				continue
			}
			children = append(children, c)
		}
		n.Children = children
		return n, nil
	})
}

func findParent(root *TemplateNode, id string) *TemplateNode {
	var parent *TemplateNode
	root.Walk(func(n *TemplateNode) bool {
		if parent != nil {
			return false
		}
		for _, c := range n.Children {
			if c.Node != nil && c.Node.ID == id {
				parent = n
				return false
			}
		}
		return true
	})
	return parent
}
