package listingkit

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixSynthesizesMissingParts(t *testing.T) {
	raw := map[string]interface{}{
		"content": map[string]interface{}{"title": "Shirt"},
	}

	fixed, fixes := Fix(raw)

	assert.Equal(t, map[string]interface{}{
		"id":       "root",
		"type":     "div",
		"children": []interface{}{},
	}, fixed["component"])
	assert.Equal(t, map[string]interface{}{"template": "custom", "name": "Untitled"}, fixed["metadata"])
	require.IsType(t, map[string]interface{}{}, fixed["styleVariables"])
	assert.Len(t, fixed["styleVariables"], len(DefaultPalette))
	assert.Len(t, fixes, 3)
	assert.Empty(t, Validate(fixed))

	// input untouched
	_, hasComponent := raw["component"]
	assert.False(t, hasComponent)
}

func TestFixLiftsBareNode(t *testing.T) {
	raw := map[string]interface{}{
		"id":       "hero",
		"type":     "section",
		"children": []interface{}{"Hi"},
		"content":  map[string]interface{}{},
	}

	fixed, fixes := Fix(raw)

	component, ok := fixed["component"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "hero", component["id"])
	assert.Equal(t, "section", component["type"])
	assert.NotContains(t, fixed, "type")
	assert.Contains(t, fixes, "Moved top-level node into component")
}

func TestFixAssignsMissingIDs(t *testing.T) {
	raw := map[string]interface{}{
		"component": map[string]interface{}{
			"type": "div",
			"children": []interface{}{
				map[string]interface{}{"type": "p"},
				map[string]interface{}{"type": "p", "id": "node-0-1"},
				map[string]interface{}{"type": "p", "id": ""},
			},
		},
	}

	fixed, fixes := Fix(raw)
	component := fixed["component"].(map[string]interface{})
	children := component["children"].([]interface{})

	assert.Equal(t, "node", component["id"])
	assert.Equal(t, "node-0", children[0].(map[string]interface{})["id"])
	assert.Equal(t, "node-0-1", children[1].(map[string]interface{})["id"])
	assert.Equal(t, "node-2", children[2].(map[string]interface{})["id"])
	assert.Contains(t, fixes, "Assigned ids to 3 node(s)")
	assert.Empty(t, Validate(fixed))
}

func TestFixKeepsInvalidColors(t *testing.T) {
	raw := map[string]interface{}{
		"styleVariables": map[string]interface{}{"--primary": "blurple"},
		"component":      map[string]interface{}{"id": "r", "type": "div"},
	}
	fixed, _ := Fix(raw)
	assert.Equal(t, "blurple", fixed["styleVariables"].(map[string]interface{})["--primary"])
	assert.Equal(t, []string{"styleVariables.--primary"}, paths(Validate(fixed)))
}

func TestParseDocument(t *testing.T) {
	input := "Here is your template:\n```json\n" + `{
		"metadata": {"template": "product", "name": "Linen Shirt"},
		"component": {"id": "root", "type": "div", "children": ["{{content.title}}"]},
		"content": {"title": "Linen Shirt"},
		"images": ["a.jpg", "b.jpg"]
	}` + "\n```"

	doc, err := ParseDocument([]byte(input))
	require.NoError(t, err)
	assert.Equal(t, "Linen Shirt", doc.Name())
	assert.Equal(t, "product", doc.Template())
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, doc.Images)
	require.NotNil(t, doc.Component)
	assert.Equal(t, "root", doc.Component.ID)
	assert.Equal(t, []Child{TextChild("{{content.title}}")}, doc.Component.Children)
	assert.NotEmpty(t, doc.StyleVariables)
}

func TestParseDocumentReturnsFixedDocumentWithErrors(t *testing.T) {
	input := `{"component": {"id": "root", "type": "div", "children": [
		{"id": "bad"},
		{"id": "ok", "type": "p", "children": ["fine"]}
	]}}`

	doc, err := ParseDocument([]byte(input))
	require.NotNil(t, doc)
	var verr *DocumentValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{"component.children[0].type"}, paths(verr.Problems))
	assert.Len(t, doc.Component.Children, 2)
}

func TestParseGeneratedRejectsInvalid(t *testing.T) {
	doc, err := ParseGenerated([]byte(`{"component": {"id": "root", "type": "div", "children": [{"id": "x"}]}}`))
	assert.Nil(t, doc)
	var verr *DocumentValidationError
	require.True(t, errors.As(err, &verr))
	assert.NotEmpty(t, verr.Hint)

	doc, err = ParseGenerated([]byte(`{"component": {"type": "div", "children": [{"type": "p"}]}}`))
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Component.Count())
}

func TestParseDocumentCannotRender(t *testing.T) {
	for _, input := range []string{
		"not json at all",
		`["a", "b"]`,
		`"just a string"`,
		`{"component": "div"}`,
	} {
		_, err := ParseDocument([]byte(input))
		assert.True(t, errors.Is(err, ErrCannotRender), "input %q: %v", input, err)
	}
}

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"Sure! {\"a\":{\"b\":2}} Hope that helps.", `{"a":{"b":2}}`},
		{"no braces", "no braces"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractJSON(tt.in))
	}
}

func TestTemplateNodeLenientDecoding(t *testing.T) {
	var n TemplateNode
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": 7, "type": "div",
		"props": {"style": {"color": "red"}, "count": 2, "hidden": false, "tags": ["a"]},
		"children": ["text", {"id": "c", "type": "span"}, null, 3],
		"metadata": {"aiEditable": true}
	}`), &n))

	assert.Equal(t, "", n.ID)
	assert.False(t, n.Valid())
	assert.Equal(t, KindStyle, n.Props["style"].Kind)
	assert.Equal(t, NumberValue(2), n.Props["count"])
	assert.Equal(t, BoolValue(false), n.Props["hidden"])
	assert.Equal(t, KindList, n.Props["tags"].Kind)
	require.Len(t, n.Children, 4)
	assert.True(t, n.Children[0].IsText())
	assert.Equal(t, "c", n.Children[1].Node.ID)
	assert.True(t, n.Children[2].Bad)
	assert.True(t, n.Children[3].Bad)
	require.NotNil(t, n.Metadata.AIEditable)
	assert.True(t, *n.Metadata.AIEditable)
}

func TestTemplateNodeRecordsMistypedFields(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"well formed", `{"id": "a", "type": "p", "if": "state.x", "props": {}, "children": [], "metadata": {}}`, ""},
		{"nulls are absent", `{"id": "a", "type": "p", "if": null, "props": null, "children": null, "metadata": null}`, ""},
		{"if not string", `{"id": "a", "type": "p", "if": false}`, "if must be a string"},
		{"props not object", `{"id": "a", "type": "p", "props": "oops"}`, "props must be an object"},
		{"children not list", `{"id": "a", "type": "p", "children": "x"}`, "children must be a list"},
		{"metadata not object", `{"id": "a", "type": "p", "metadata": []}`, "metadata must be an object"},
		{"aiEditable not bool", `{"id": "a", "type": "p", "metadata": {"aiEditable": "yes"}}`, "metadata.aiEditable must be a boolean"},
		{"first field wins", `{"id": "a", "type": "p", "if": 1, "props": 2}`, "if must be a string"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var n TemplateNode
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &n))
			assert.Equal(t, tt.want, n.Malformed)
		})
	}

	edited, err := EditText(mustNode(t, `{"id": "r", "type": "div", "children": [{"id": "a", "type": "p", "if": 1, "children": ["x"]}, "t"]}`), "r", 1, "u")
	require.NoError(t, err)
	assert.Equal(t, "if must be a string", edited.Children[0].Node.Malformed, "edits keep the marker")

	data, err := json.Marshal(edited)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id": "r", "type": "div", "children": [{"id": "a", "type": "p", "if": 1, "children": ["x"]}, "u"]}`, string(data))
}

func mustNode(t *testing.T, raw string) *TemplateNode {
	t.Helper()
	var n TemplateNode
	require.NoError(t, json.Unmarshal([]byte(raw), &n))
	return &n
}

func TestDocumentMarshalKeepsShape(t *testing.T) {
	doc, err := ParseDocument([]byte(`{
		"metadata": {"name": "A"},
		"styleVariables": {"--c": "#fff"},
		"component": {"id": "root", "type": "div", "props": {"style": {"margin": 0}}, "children": ["x", {"id": "y", "type": "b"}]}
	}`))
	require.NoError(t, err)

	data, err := doc.Marshal()
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"metadata": {"name": "A"},
		"styleVariables": {"--c": "#fff"},
		"component": {"id": "root", "type": "div", "props": {"style": {"margin": 0}}, "children": ["x", {"id": "y", "type": "b"}]}
	}`, string(data))
}
