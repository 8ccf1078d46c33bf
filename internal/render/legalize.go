package render

import "strings"

var tableChildren = map[string]map[string]bool{
	"table": {"caption": true, "colgroup": true, "thead": true, "tbody": true, "tfoot": true, "tr": true},
	"thead": {"tr": true},
	"tbody": {"tr": true},
	"tfoot": {"tr": true},
	"tr":    {"td": true, "th": true},
}

// legalize wraps children that would produce invalid nesting. Whitespace
// text inside table parts is dropped.
func legalize(n *Node) {
	switch n.Tag {
	case "table", "thead", "tbody", "tfoot":
		n.Children = wrapChildren(n.Children, tableChildren[n.Tag], true, func(c *Node) *Node {
			return wrap("tr", wrap("td", c))
		})
	case "tr":
		n.Children = wrapChildren(n.Children, tableChildren["tr"], true, func(c *Node) *Node {
			return wrap("td", c)
		})
	case "ul", "ol":
		n.Children = wrapChildren(n.Children, map[string]bool{"li": true}, false, func(c *Node) *Node {
			return wrap("li", c)
		})
	}
}

func wrapChildren(children []*Node, allowed map[string]bool, dropBlank bool, wrapper func(*Node) *Node) []*Node {
	out := make([]*Node, 0, len(children))
	for _, c := range children {
		switch {
		case c.Kind == KindElement && allowed[c.Tag]:
			out = append(out, c)
		case c.Kind == KindText && dropBlank && strings.TrimSpace(c.Text) == "":
			continue
		default:
			out = append(out, wrapper(c))
		}
	}
	return out
}

func wrap(tag string, child *Node) *Node {
	w := element(tag)
	w.Children = []*Node{child}
	return w
}
