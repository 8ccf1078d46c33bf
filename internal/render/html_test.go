package render

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livetemplate/listingkit"
	"github.com/livetemplate/listingkit/internal/runtime"
)

func TestRenderHTML(t *testing.T) {
	tree := listingkit.NewNode("root", "div", listingkit.Props{
		"className": listingkit.StringValue("card"),
		"style": listingkit.StyleValue(map[string]listingkit.Value{
			"backgroundColor": listingkit.StringValue("#fff"),
			"padding":         listingkit.NumberValue(8),
		}),
	},
		listingkit.NodeChild(listingkit.NewNode("t", "h1", nil, listingkit.TextChild("Hello {{content.name}}"))),
		listingkit.NodeChild(listingkit.NewNode("b", "button", listingkit.Props{"onClick": listingkit.StringValue("handleToggle")},
			listingkit.TextChild("Menu"))),
		listingkit.NodeChild(listingkit.NewNode("i", "input", listingkit.Props{
			"name":     listingkit.StringValue("email"),
			"required": listingkit.BoolValue(true),
		})),
	)
	ctx := runtime.NewRenderContext()
	ctx.Content["name"] = "Ana"
	ctx.FormData["email"] = "a@b.c"

	res := Render(tree, ctx, Options{})
	out, err := RenderHTML(res.Root)
	require.NoError(t, err)

	assert.Equal(t, `<div id="root" class="card" style="background-color: #fff; padding: 8px;">`+
		`<h1 id="t">Hello Ana</h1>`+
		`<button id="b" data-lk-id="b" data-lk-onclick="toggle">Menu</button>`+
		`<input id="i" data-lk-id="i" data-lk-bind="email" name="email" required value="a@b.c">`+
		`</div>`, out)
}

func TestRenderHTMLEscapes(t *testing.T) {
	tree := listingkit.NewNode("root", "p", listingkit.Props{"title": listingkit.StringValue(`"><script>`)},
		listingkit.TextChild("{{content.bio}}"))
	ctx := runtime.NewRenderContext()
	ctx.Content["bio"] = "<img src=x onerror=alert(1)>"

	out, err := RenderHTML(Render(tree, ctx, Options{}).Root)
	require.NoError(t, err)
	assert.Equal(t, `<p id="root" title="&#34;&gt;&lt;script&gt;">&lt;img src=x onerror=alert(1)&gt;</p>`, out)
}

func TestRenderHTMLEditableText(t *testing.T) {
	tree := listingkit.NewNode("t", "h1", nil, listingkit.TextChild("Static"))
	out, err := RenderHTML(Render(tree, nil, Options{Editing: true}).Root)
	require.NoError(t, err)
	assert.Equal(t, `<h1 id="t"><span contenteditable="true" data-lk-edit="t:0">Static</span></h1>`, out)
}

func TestRenderHTMLTextareaAndBooleans(t *testing.T) {
	tree := listingkit.NewNode("root", "form", nil,
		listingkit.NodeChild(listingkit.NewNode("note", "textarea", listingkit.Props{
			"name":     listingkit.StringValue("note"),
			"disabled": listingkit.BoolValue(false),
		})),
		listingkit.NodeChild(listingkit.NewNode("tags", "div", listingkit.Props{
			"className":   listingkit.ListValue(listingkit.StringValue("a"), listingkit.StringValue("b")),
			"aria-hidden": listingkit.BoolValue(true),
		})),
	)
	ctx := runtime.NewRenderContext()
	ctx.FormData["note"] = "<hi>"

	out, err := RenderHTML(Render(tree, ctx, Options{}).Root)
	require.NoError(t, err)
	assert.Equal(t, `<form id="root">`+
		`<textarea id="note" data-lk-id="note" data-lk-bind="note" name="note">&lt;hi&gt;</textarea>`+
		`<div id="tags" aria-hidden="true" class="a b"></div>`+
		`</form>`, out)
}

func TestRenderHTMLNilRoot(t *testing.T) {
	out, err := RenderHTML(nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

type failingWriter struct{ n int }

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.n == 0 {
		return 0, errors.New("disk full")
	}
	w.n--
	return len(p), nil
}

func TestWriteHTMLReportsFirstError(t *testing.T) {
	tree := listingkit.NewNode("root", "div", nil, listingkit.TextChild("x"))
	err := WriteHTML(&failingWriter{n: 2}, Render(tree, nil, Options{}).Root)
	assert.EqualError(t, err, "disk full")

	var buf bytes.Buffer
	require.NoError(t, WriteHTML(&buf, Render(tree, nil, Options{}).Root))
	assert.Equal(t, `<div id="root">x</div>`, buf.String())
}

func TestKebab(t *testing.T) {
	tests := map[string]string{
		"color":           "color",
		"backgroundColor": "background-color",
		"WebkitTransform": "-webkit-transform",
		"--color-primary": "--color-primary",
		"font-size":       "font-size",
	}
	for in, want := range tests {
		assert.Equal(t, want, kebab(in), in)
	}
}
