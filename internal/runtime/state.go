package runtime

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Store is the interface for state objects that can handle actions.
type Store interface {
	HandleAction(action string, data map[string]interface{}) error
	// Close releases resources. Optional - returns nil if not implemented.
	Close() error
}

// ErrStoreClosed is returned by HandleAction after Close.
var ErrStoreClosed = errors.New("store is closed")

// FormSpec lists the fields a form requires to be non-empty on submit.
type FormSpec struct {
	ID       string   `json:"id"`
	Required []string `json:"required,omitempty"`
}

// FormStore holds toggle state and form values for one editing or preview
// session. It is created with the session and dropped with it.
type FormStore struct {
	mu       sync.RWMutex
	state    map[string]bool
	formData map[string]string
	errors   map[string]string
	forms    map[string]FormSpec
	closed   bool
}

// NewFormStore creates an empty store with the given forms registered.
func NewFormStore(forms ...FormSpec) *FormStore {
	s := &FormStore{
		state:    make(map[string]bool),
		formData: make(map[string]string),
		errors:   make(map[string]string),
		forms:    make(map[string]FormSpec),
	}
	for _, f := range forms {
		s.forms[f.ID] = f
	}
	return s
}

// RegisterForm associates a required-field set with a form id, replacing
// any previous registration.
func (s *FormStore) RegisterForm(spec FormSpec) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forms[spec.ID] = spec
}

// ActiveKey returns the state key toggled for a component id.
func ActiveKey(id string) string { return id + "_active" }

// Toggle flips "{id}_active" and returns the new value. Absent keys count
// as false.
func (s *FormStore) Toggle(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := ActiveKey(id)
	s.state[key] = !s.state[key]
	return s.state[key]
}

// Click marks "{id}_clicked".
func (s *FormStore) Click(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state[id+"_clicked"] = true
}

// SetFormField stores the current value of a bound input.
func (s *FormStore) SetFormField(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.formData[name] = value
}

// SubmitForm marks "{formID}_submitted", checks that every required field
// of the registered form is non-empty and records "{formID}_valid".
// Missing fields get a "required" entry in the error map.
func (s *FormStore) SubmitForm(formID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state[formID+"_submitted"] = true
	valid := true
	if spec, ok := s.forms[formID]; ok {
		for _, field := range spec.Required {
			if strings.TrimSpace(s.formData[field]) == "" {
				s.errors[field] = "required"
				valid = false
			} else {
				delete(s.errors, field)
			}
		}
	}
	s.state[formID+"_valid"] = valid
	return valid
}

// dispatchTable routes each handler to its store operation.
var dispatchTable = map[Handler]func(s *FormStore, target string){
	HandlerToggle: func(s *FormStore, target string) { s.Toggle(target) },
	HandlerClick:  (*FormStore).Click,
	HandlerSubmit: func(s *FormStore, target string) { s.SubmitForm(target) },
}

// Dispatch applies a handler to the node or form it was declared on.
// Unknown handlers do nothing.
func (s *FormStore) Dispatch(h Handler, target string) {
	if fn, ok := dispatchTable[h]; ok {
		fn(s, target)
	}
}

// HandleAction dispatches a named action from the client.
//
//	toggle   {id}
//	click    {id}
//	submit   {form}
//	setField {name, value}
func (s *FormStore) HandleAction(action string, data map[string]interface{}) error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrStoreClosed
	}

	switch action {
	case "toggle", "click":
		id, err := stringArg(data, "id")
		if err != nil {
			return fmt.Errorf("%s: %w", action, err)
		}
		if action == "toggle" {
			s.Dispatch(HandlerToggle, id)
		} else {
			s.Dispatch(HandlerClick, id)
		}
		return nil
	case "submit":
		form, err := stringArg(data, "form")
		if err != nil {
			return fmt.Errorf("submit: %w", err)
		}
		s.Dispatch(HandlerSubmit, form)
		return nil
	case "setField":
		name, err := stringArg(data, "name")
		if err != nil {
			return fmt.Errorf("setField: %w", err)
		}
		value, _ := data["value"].(string)
		s.SetFormField(name, value)
		return nil
	default:
		return fmt.Errorf("unknown action: %s", action)
	}
}

func stringArg(data map[string]interface{}, key string) (string, error) {
	v, ok := data[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("missing %q", key)
	}
	return v, nil
}

// Close marks the store closed. Further actions fail.
func (s *FormStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// State returns a copy of the toggle state.
func (s *FormStore) State() map[string]bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]bool, len(s.state))
	for k, v := range s.state {
		out[k] = v
	}
	return out
}

// FormData returns a copy of the form values.
func (s *FormStore) FormData() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyStrings(s.formData)
}

// Errors returns a copy of the field error map.
func (s *FormStore) Errors() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyStrings(s.errors)
}

// Context snapshots the store into a fresh RenderContext. Later mutations
// do not affect the returned context.
func (s *FormStore) Context(content map[string]interface{}, images []string) *RenderContext {
	ctx := &RenderContext{
		Content:  content,
		State:    s.State(),
		FormData: s.FormData(),
		Errors:   s.Errors(),
	}
	if images != nil {
		ctx.Images = append([]string(nil), images...)
	}
	return ctx
}

func copyStrings(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
