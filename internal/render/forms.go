package render

import (
	"github.com/livetemplate/listingkit"
	"github.com/livetemplate/listingkit/internal/runtime"
)

// CollectForms returns a FormSpec for each form in the tree. Required
// fields are the names of descendant inputs with a truthy required prop.
// Inputs inside a nested form belong to that form only.
func CollectForms(root *listingkit.TemplateNode) []runtime.FormSpec {
	var specs []runtime.FormSpec
	root.Walk(func(n *listingkit.TemplateNode) bool {
		if n.Type == "form" && n.ID != "" {
			specs = append(specs, runtime.FormSpec{ID: n.ID, Required: requiredFields(n)})
		}
		return true
	})
	return specs
}

func requiredFields(form *listingkit.TemplateNode) []string {
	var names []string
	seen := make(map[string]bool)
	var visit func(n *listingkit.TemplateNode)
	visit = func(n *listingkit.TemplateNode) {
		for _, c := range n.Children {
			if c.Node == nil || c.Node.Type == "form" {
				continue
			}
			child := c.Node
			if bindableTags[child.Type] && isRequired(child.Props["required"]) {
				if name, ok := child.Props.Text("name"); ok && name != "" && !seen[name] {
					seen[name] = true
					names = append(names, name)
				}
			}
			visit(child)
		}
	}
	visit(form)
	return names
}

func isRequired(v listingkit.Value) bool {
	switch v.Kind {
	case listingkit.KindBool:
		return v.Bool
	case listingkit.KindString:
		return v.Str != "" && v.Str != "false"
	default:
		return false
	}
}
