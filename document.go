package listingkit

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Document is a stored or generated listing template.
type Document struct {
	Metadata       map[string]interface{} `json:"metadata"`
	StyleVariables map[string]interface{} `json:"styleVariables,omitempty"`
	Component      *TemplateNode          `json:"component"`
	Content        map[string]interface{} `json:"content,omitempty"`
	Images         []string               `json:"images,omitempty"`
}

// Name returns metadata.name, or "" when unset.
func (d *Document) Name() string {
	s, _ := d.Metadata["name"].(string)
	return s
}

// Template returns metadata.template, or "" when unset.
func (d *Document) Template() string {
	s, _ := d.Metadata["template"].(string)
	return s
}

// Clone returns a copy that shares the component tree. Trees are never
// mutated in place, so sharing is safe.
func (d *Document) Clone() *Document {
	out := *d
	out.Metadata, _ = deepCopy(d.Metadata).(map[string]interface{})
	out.StyleVariables, _ = deepCopy(d.StyleVariables).(map[string]interface{})
	out.Content, _ = deepCopy(d.Content).(map[string]interface{})
	if d.Images != nil {
		out.Images = append([]string(nil), d.Images...)
	}
	return &out
}

// Marshal encodes the document as indented JSON.
func (d *Document) Marshal() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// ExtractJSON strips markdown code fences and any prose around the outermost
// JSON object, as generative models tend to add both.
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		if nl := strings.Index(text, "\n"); nl >= 0 {
			text = text[nl+1:]
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return strings.TrimSpace(text)
}

// ParseDocument decodes, fixes and validates a document for editing and
// preview. When problems remain after fixing, the fixed document is still
// returned together with a *DocumentValidationError so callers can render
// it node by node. Input that is not a JSON object yields ErrCannotRender.
func ParseDocument(data []byte) (*Document, error) {
	doc, problems, err := parse(data)
	if err != nil {
		return nil, err
	}
	if HasErrors(problems) {
		return doc, NewDocumentValidationError(problems)
	}
	return doc, nil
}

// ParseGenerated is ParseDocument for untrusted generator output: any error
// left after fixing rejects the document.
func ParseGenerated(data []byte) (*Document, error) {
	doc, problems, err := parse(data)
	if err != nil {
		return nil, err
	}
	if HasErrors(problems) {
		return nil, NewDocumentValidationError(problems).
			WithHint("the generated template does not match the document shape")
	}
	return doc, nil
}

func parse(data []byte) (*Document, []Problem, error) {
	var raw interface{}
	if err := json.Unmarshal([]byte(ExtractJSON(string(data))), &raw); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCannotRender, err)
	}
	obj, ok := raw.(map[string]interface{})
	if !ok {
		return nil, nil, fmt.Errorf("%w: top level must be a JSON object", ErrCannotRender)
	}
	if c, present := obj["component"]; present && c != nil {
		if _, ok := c.(map[string]interface{}); !ok {
			return nil, nil, fmt.Errorf("%w: component must be an object", ErrCannotRender)
		}
	}

	fixed, _ := Fix(obj)
	problems := Validate(fixed)
	return FromMap(fixed), problems, nil
}

// FromMap builds a Document from decoded JSON without validating it.
func FromMap(m map[string]interface{}) *Document {
	doc := &Document{}
	doc.Metadata, _ = m["metadata"].(map[string]interface{})
	doc.StyleVariables, _ = m["styleVariables"].(map[string]interface{})
	doc.Content, _ = m["content"].(map[string]interface{})
	if component, ok := m["component"].(map[string]interface{}); ok {
		doc.Component = nodeFromMap(component)
	}
	if images, ok := m["images"].([]interface{}); ok {
		for _, img := range images {
			if s, ok := img.(string); ok {
				doc.Images = append(doc.Images, s)
			}
		}
	}
	return doc
}
