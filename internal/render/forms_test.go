package render

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/livetemplate/listingkit"
	"github.com/livetemplate/listingkit/internal/runtime"
)

func TestCollectForms(t *testing.T) {
	input := func(id, name string, required listingkit.Value) listingkit.Child {
		return listingkit.NodeChild(listingkit.NewNode(id, "input", listingkit.Props{
			"name":     listingkit.StringValue(name),
			"required": required,
		}))
	}

	tree := listingkit.NewNode("root", "div", nil,
		listingkit.NodeChild(listingkit.NewNode("contact", "form", nil,
			input("n", "name", listingkit.BoolValue(true)),
			input("e", "email", listingkit.StringValue("required")),
			input("p", "phone", listingkit.BoolValue(false)),
			listingkit.NodeChild(listingkit.NewNode("wrap", "div", nil,
				input("m", "message", listingkit.BoolValue(true)),
			)),
			listingkit.NodeChild(listingkit.NewNode("inner", "form", nil,
				input("c", "coupon", listingkit.BoolValue(true)),
			)),
		)),
		listingkit.NodeChild(listingkit.NewNode("empty", "form", nil)),
	)

	assert.Equal(t, []runtime.FormSpec{
		{ID: "contact", Required: []string{"name", "email", "message"}},
		{ID: "inner", Required: []string{"coupon"}},
		{ID: "empty"},
	}, CollectForms(tree))
}

func TestCollectFormsDrivesSubmitValidation(t *testing.T) {
	tree := listingkit.NewNode("signup", "form", nil,
		listingkit.NodeChild(listingkit.NewNode("e", "input", listingkit.Props{
			"name":     listingkit.StringValue("email"),
			"required": listingkit.BoolValue(true),
		})),
	)

	store := runtime.NewFormStore(CollectForms(tree)...)
	assert.False(t, store.SubmitForm("signup"))
	assert.Equal(t, "required", store.Errors()["email"])

	store.SetFormField("email", "a@b.c")
	assert.True(t, store.SubmitForm("signup"))
	assert.Empty(t, store.Errors())
}
