package listingkit

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree() *TemplateNode {
	return NewNode("root", "div", nil,
		NodeChild(NewNode("title", "h1", nil, TextChild("Old title"))),
		NodeChild(NewNode("list", "ul", nil,
			NodeChild(NewNode("a", "li", nil, TextChild("A"))),
			NodeChild(NewNode("b", "li", nil, TextChild("B"))),
			NodeChild(NewNode("c", "li", nil, TextChild("C"))),
		)),
		NodeChild(NewNode("footer", "footer", nil)),
	)
}

func childIDs(n *TemplateNode) []string {
	var ids []string
	for _, c := range n.Children {
		if c.Node != nil {
			ids = append(ids, c.Node.ID)
		}
	}
	return ids
}

func TestEditTextSharesUntouchedSubtrees(t *testing.T) {
	root := sampleTree()

	edited, err := EditText(root, "title", 0, "New title")
	require.NoError(t, err)

	assert.Equal(t, "New title", edited.Find("title").Children[0].Text)
	assert.Equal(t, "Old title", root.Find("title").Children[0].Text, "original must not change")
	assert.Same(t, root.Find("list"), edited.Find("list"))
	assert.Same(t, root.Find("footer"), edited.Find("footer"))
	assert.NotSame(t, root, edited)
}

func TestEditTextErrors(t *testing.T) {
	root := sampleTree()

	_, err := EditText(root, "missing", 0, "x")
	assert.True(t, errors.Is(err, ErrNodeNotFound))

	_, err = EditText(root, "title", 4, "x")
	assert.Error(t, err)

	_, err = EditText(root, "list", 0, "x")
	assert.Error(t, err, "child 0 of list is a node")
}

func TestSetProp(t *testing.T) {
	root := sampleTree()

	edited, err := SetProp(root, "footer", "className", StringValue("dark"))
	require.NoError(t, err)

	cls, ok := edited.Find("footer").Props.Text("className")
	assert.True(t, ok)
	assert.Equal(t, "dark", cls)
	assert.Nil(t, root.Find("footer").Props)
}

func TestMoveChild(t *testing.T) {
	root := sampleTree()

	moved, err := MoveChild(root, "list", 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "a"}, childIDs(moved.Find("list")))
	assert.Equal(t, []string{"a", "b", "c"}, childIDs(root.Find("list")))

	moved, err = MoveChild(root, "list", 2, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, childIDs(moved.Find("list")))

	_, err = MoveChild(root, "list", 0, 3)
	assert.Error(t, err)
}

func TestRemoveNode(t *testing.T) {
	root := sampleTree()

	pruned, err := RemoveNode(root, "b")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, childIDs(pruned.Find("list")))
	assert.Equal(t, 6, pruned.Count())
	assert.Equal(t, 7, root.Count())

	_, err = RemoveNode(root, "root")
	assert.Error(t, err)

	_, err = RemoveNode(root, "nope")
	assert.True(t, errors.Is(err, ErrNodeNotFound))
}
