package generate

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/livetemplate/listingkit"
)

const documentShape = `Answer with a single JSON object and nothing else:
{
  "metadata": {"template": "<kind>", "name": "<short name>"},
  "styleVariables": {"primary": "#rrggbb", "secondary": "#rrggbb", "background": "#rrggbb", "text": "#rrggbb"},
  "component": <node>,
  "content": {<the texts and values the tree refers to>},
  "images": []
}
A node is {"id": "<unique>", "type": "<type>", "props": {...}, "children": [<string or node>...], "if": "<optional guard>"}.
Types: container, row, column, grid, card, heading, title, paragraph, text, badge,
button, link, image, image-gallery, placeholder, markdown, list, list-item, form,
input, textarea, select, option, label, table, thead, tbody, tr, th, td, or any HTML tag.
Text and string props may use {{content.path}}, {{images[0]}}, {{state.id_active}},
{{formData.field}} and {{errors.field}}, plus "a || b", "cond ? a : b" and "!x".
Handlers: props onClick "handleToggle" or "handleClick", and onSubmit "handleSubmit" on forms.
A node with "if": "state.faq_active" only shows after a handleToggle on the node with id "faq".
Colors are #rgb, #rrggbb, rgb(), rgba() or a basic color name.
Do not use script, style, iframe or event attributes other than the handlers above.`

var kindBriefs = map[string]string{
	listingkit.TemplateProduct: "a product page: gallery, title, price, highlights, specification table, FAQ toggles and an order form",
	listingkit.TemplateSeller:  "a seller information page: store banner, story, policies, ratings and a contact form",
	listingkit.TemplateAdvert:  "a compact advertisement: one headline, a short pitch, a hero image and a call-to-action button",
	listingkit.TemplateCustom:  "a listing page laid out as the seller describes",
}

// Kinds returns the document kinds Generate accepts.
func Kinds() []string {
	return []string{
		listingkit.TemplateProduct,
		listingkit.TemplateSeller,
		listingkit.TemplateAdvert,
		listingkit.TemplateCustom,
	}
}

func systemPrompt(kind string) string {
	brief, ok := kindBriefs[kind]
	if !ok {
		brief = kindBriefs[listingkit.TemplateCustom]
	}
	return fmt.Sprintf("You design e-commerce listing templates. Build %s.\n\n%s",
		brief, strings.ReplaceAll(documentShape, "<kind>", kind))
}

func userPrompt(req Request) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(req.Prompt))
	if len(req.Content) > 0 {
		data, err := json.Marshal(req.Content)
		if err == nil {
			b.WriteString("\n\nUse this content object, referring to it with {{content...}}:\n")
			b.Write(data)
		}
	}
	if len(req.Images) > 0 {
		fmt.Fprintf(&b, "\n\nThe seller uploaded %d images, available as {{images[0]}} to {{images[%d]}}.",
			len(req.Images), len(req.Images)-1)
	}
	if req.variants > 1 {
		fmt.Fprintf(&b, "\n\nThis is variant %d of %d. Make its layout and palette clearly different from the other variants.",
			req.variant, req.variants)
	}
	return b.String()
}

// repairPrompt asks the model to correct its previous answer.
func repairPrompt(original, answer string, err error) string {
	var b strings.Builder
	b.WriteString(original)
	b.WriteString("\n\nYour previous answer was rejected")

	var verr *listingkit.DocumentValidationError
	if errors.As(err, &verr) {
		b.WriteString(" because of these problems:\n")
		for _, p := range verr.Errors() {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	} else {
		fmt.Fprintf(&b, ": %v\n", err)
	}
	b.WriteString("\nPrevious answer:\n")
	b.WriteString(answer)
	b.WriteString("\n\nReturn the corrected JSON object only.")
	return b.String()
}
