package listingkit

import (
	"fmt"
)

// nodeKeys are the fields lifted into component when a generator returns a
// bare node instead of a document.
var nodeKeys = []string{"id", "type", "props", "children", "if"}

// Fix returns a copy of raw with missing top-level parts synthesized, plus a
// description of each fix. The input is not modified. Invalid colors and
// nodes without a type are left for Validate to report.
func Fix(raw map[string]interface{}) (map[string]interface{}, []string) {
	doc := deepCopy(raw).(map[string]interface{})
	if doc == nil {
		doc = make(map[string]interface{})
	}
	var fixes []string

	if _, ok := doc["component"]; !ok {
		if _, isNode := doc["type"].(string); isNode {
			component := make(map[string]interface{})
			for _, k := range nodeKeys {
				if v, ok := doc[k]; ok {
					component[k] = v
					delete(doc, k)
				}
			}
			doc["component"] = component
			fixes = append(fixes, "Moved top-level node into component")
		} else {
			doc["component"] = map[string]interface{}{
				"id":       "root",
				"type":     "div",
				"children": []interface{}{},
			}
			fixes = append(fixes, "Synthesized empty component")
		}
	}

	if meta, ok := doc["metadata"].(map[string]interface{}); !ok || meta == nil {
		doc["metadata"] = map[string]interface{}{
			"template": TemplateCustom,
			"name":     "Untitled",
		}
		fixes = append(fixes, "Synthesized default metadata")
	}

	if _, ok := doc["styleVariables"]; !ok {
		palette := make(map[string]interface{}, len(DefaultPalette))
		for k, v := range DefaultPalette {
			palette[k] = v
		}
		doc["styleVariables"] = palette
		fixes = append(fixes, "Synthesized default styleVariables palette")
	}

	if component, ok := doc["component"].(map[string]interface{}); ok {
		used := make(map[string]bool)
		collectIDs(component, used)
		if n := assignIDs(component, "node", used); n > 0 {
			fixes = append(fixes, fmt.Sprintf("Assigned ids to %d node(s)", n))
		}
	}

	return doc, fixes
}

func collectIDs(node map[string]interface{}, used map[string]bool) {
	if id, ok := node["id"].(string); ok && id != "" {
		used[id] = true
	}
	children, _ := node["children"].([]interface{})
	for _, c := range children {
		if child, ok := c.(map[string]interface{}); ok {
			collectIDs(child, used)
		}
	}
}

// assignIDs gives every node without an id a unique one derived from its
// position. Returns the number of ids assigned.
func assignIDs(node map[string]interface{}, fallback string, used map[string]bool) int {
	assigned := 0
	raw, present := node["id"]
	id, isString := raw.(string)
	if !present || raw == nil || (isString && id == "") {
		id = fallback
		for i := 2; used[id]; i++ {
			id = fmt.Sprintf("%s-%d", fallback, i)
		}
		used[id] = true
		node["id"] = id
		assigned++
	}
	base := id
	if base == "" {
		base = fallback
	}
	children, _ := node["children"].([]interface{})
	for i, c := range children {
		if child, ok := c.(map[string]interface{}); ok {
			assigned += assignIDs(child, fmt.Sprintf("%s-%d", base, i), used)
		}
	}
	return assigned
}

// deepCopy copies decoded JSON values.
func deepCopy(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		if val == nil {
			return map[string]interface{}(nil)
		}
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = deepCopy(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = deepCopy(item)
		}
		return out
	default:
		return v
	}
}
