package render

import (
	"bytes"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/livetemplate/listingkit"
	"github.com/livetemplate/listingkit/internal/placeholder"
	"github.com/livetemplate/listingkit/internal/runtime"
	"github.com/livetemplate/listingkit/internal/security"
)

var (
	markdownParser = goldmark.New(goldmark.WithExtensions(extension.GFM))
	markdownPolicy = bluemonday.UGCPolicy()
)

// gallery expands an image-gallery into img children. Sources come from the
// images prop, then from the context's images.
func (r *renderer) gallery(n *listingkit.TemplateNode, out *Node, path string) {
	sources := galleryImages(out.Props["images"])
	if _, declared := n.Props["images"]; !declared {
		sources = r.ctx.Images
	}
	alt, _ := out.Props["alt"].(string)
	delete(out.Props, "images")
	delete(out.Props, "alt")
	out.Props["data-lk-component"] = "image-gallery"

	for i, src := range sources {
		if err := security.ValidateAssetURL(src); err != nil {
			r.report(fmt.Sprintf("%s.images[%d]", path, i), listingkit.SeverityWarning, "dropped unsafe URL: %v", err)
			continue
		}
		img := element("img")
		img.Props["src"] = src
		img.Props["alt"] = galleryAlt(alt, i)
		img.Props["loading"] = "lazy"
		out.Children = append(out.Children, img)
	}

	if len(out.Children) == 0 {
		img := element("img")
		img.Props["src"] = placeholder.DataURL(400, 300, "No images yet", "", "")
		img.Props["alt"] = "No images yet"
		out.Children = append(out.Children, img)
	}
}

func galleryImages(v interface{}) []string {
	switch val := v.(type) {
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if val == "" {
			return nil
		}
		return []string{val}
	default:
		return nil
	}
}

func galleryAlt(alt string, i int) string {
	if alt == "" {
		return fmt.Sprintf("Image %d", i+1)
	}
	return fmt.Sprintf("%s %d", alt, i+1)
}

// markdown converts the source prop to sanitized HTML.
func (r *renderer) markdown(out *Node, path string) {
	src := runtime.ToText(out.Props["source"])
	delete(out.Props, "source")
	out.Props["data-lk-component"] = "markdown"
	if src == "" {
		return
	}
	var buf bytes.Buffer
	if err := markdownParser.Convert([]byte(src), &buf); err != nil {
		r.report(path+".props.source", listingkit.SeverityWarning, "markdown: %v", err)
		out.Children = append(out.Children, textNode(src))
		return
	}
	out.Children = append(out.Children, &Node{Kind: KindRaw, Text: markdownPolicy.Sanitize(buf.String())})
}

// placeholderImage turns a placeholder node into an img with an SVG source.
func (r *renderer) placeholderImage(out *Node) {
	width := intProp(out.Props["width"], 400)
	height := intProp(out.Props["height"], 300)
	label := runtime.ToText(out.Props["label"])
	bg := runtime.ToText(out.Props["bg"])
	fg := runtime.ToText(out.Props["fg"])
	delete(out.Props, "label")
	delete(out.Props, "bg")
	delete(out.Props, "fg")

	out.Props["width"] = float64(width)
	out.Props["height"] = float64(height)
	out.Props["src"] = placeholder.DataURL(width, height, label, bg, fg)
	if _, ok := out.Props["alt"]; !ok {
		if label == "" {
			label = "Placeholder image"
		}
		out.Props["alt"] = label
	}
}

func intProp(v interface{}, def int) int {
	if f, ok := v.(float64); ok && f > 0 {
		return int(f)
	}
	return def
}
