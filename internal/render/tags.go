package render

// htmlTags are node types rendered as the element of the same name.
var htmlTags = map[string]bool{
	"a": true, "abbr": true, "address": true, "article": true, "aside": true,
	"b": true, "blockquote": true, "br": true, "button": true,
	"caption": true, "code": true, "col": true, "colgroup": true,
	"dd": true, "del": true, "details": true, "div": true, "dl": true, "dt": true,
	"em": true, "fieldset": true, "figcaption": true, "figure": true, "footer": true, "form": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"header": true, "hr": true, "i": true, "img": true, "input": true, "ins": true,
	"label": true, "legend": true, "li": true, "main": true, "mark": true, "nav": true,
	"ol": true, "optgroup": true, "option": true, "p": true, "picture": true, "pre": true,
	"q": true, "s": true, "section": true, "select": true, "small": true, "source": true,
	"span": true, "strong": true, "sub": true, "summary": true, "sup": true,
	"table": true, "tbody": true, "td": true, "textarea": true, "tfoot": true, "th": true,
	"thead": true, "time": true, "tr": true, "u": true, "ul": true, "video": true,
}

// typeAliases map the component names generators like to use.
var typeAliases = map[string]string{
	"container":     "div",
	"box":           "div",
	"card":          "div",
	"row":           "div",
	"column":        "div",
	"grid":          "div",
	"image-gallery": "div",
	"markdown":      "div",
	"placeholder":   "img",
	"text":          "span",
	"badge":         "span",
	"heading":       "h2",
	"title":         "h1",
	"paragraph":     "p",
	"image":         "img",
	"link":          "a",
	"list":          "ul",
	"list-item":     "li",
}

// blockedTags never reach the output.
var blockedTags = map[string]bool{
	"script":   true,
	"style":    true,
	"iframe":   true,
	"frame":    true,
	"frameset": true,
	"object":   true,
	"embed":    true,
	"applet":   true,
	"base":     true,
	"link":     true,
	"meta":     true,
	"noscript": true,
	"template": true,
}

var voidElements = map[string]bool{
	"area":   true,
	"base":   true,
	"br":     true,
	"col":    true,
	"embed":  true,
	"hr":     true,
	"img":    true,
	"input":  true,
	"link":   true,
	"meta":   true,
	"param":  true,
	"source": true,
	"track":  true,
	"wbr":    true,
}

var booleanAttributes = map[string]bool{
	"checked":   true,
	"disabled":  true,
	"readonly":  true,
	"required":  true,
	"selected":  true,
	"multiple":  true,
	"autofocus": true,
	"hidden":    true,
	"open":      true,
	"controls":  true,
	"autoplay":  true,
	"loop":      true,
	"muted":     true,
}

// bindableTags take a Bind from their name prop.
var bindableTags = map[string]bool{
	"input":    true,
	"textarea": true,
	"select":   true,
}

// tagFor returns the HTML tag for a node type and whether the type is
// recognized. Unknown types render as div.
func tagFor(typ string) (string, bool) {
	if tag, ok := typeAliases[typ]; ok {
		return tag, true
	}
	if htmlTags[typ] || blockedTags[typ] {
		return typ, true
	}
	return "div", false
}
