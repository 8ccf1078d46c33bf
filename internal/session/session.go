// Package session holds the per-connection state of a preview or editor:
// the document being shown, its form store and the last render.
package session

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/livetemplate/listingkit"
	"github.com/livetemplate/listingkit/internal/render"
	"github.com/livetemplate/listingkit/internal/runtime"
)

// ErrNotEditing is returned for tree edits on a preview session.
var ErrNotEditing = errors.New("session is not in editing mode")

// MessageEnvelope is one client message.
type MessageEnvelope struct {
	NodeID string                 `json:"nodeId"`
	Action string                 `json:"action"`
	Data   map[string]interface{} `json:"data,omitempty"`
}

// Update is the outcome of a render.
type Update struct {
	HTML     string               `json:"html"`
	Problems []listingkit.Problem `json:"problems,omitempty"`
	// Changed is set when the action edited the document tree.
	Changed bool `json:"changed,omitempty"`
}

// Session is one open preview or editor of a document. It is safe for
// concurrent use.
type Session struct {
	ID      string
	DocID   string
	Editing bool

	mu     sync.Mutex
	doc    *listingkit.Document
	store  *runtime.FormStore
	logger *zap.Logger
}

// New creates a session for doc.
func New(id, docID string, doc *listingkit.Document, editing bool, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		ID:      id,
		DocID:   docID,
		Editing: editing,
		doc:     doc,
		store:   runtime.NewFormStore(),
		logger:  logger,
	}
	s.registerForms()
	return s
}

func (s *Session) registerForms() {
	if s.doc == nil || s.doc.Component == nil {
		return
	}
	for _, f := range render.CollectForms(s.doc.Component) {
		s.store.RegisterForm(f)
	}
}

// Document returns the current document.
func (s *Session) Document() *listingkit.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc
}

// Store returns the session's form store.
func (s *Session) Store() *runtime.FormStore {
	return s.store
}

// Replace swaps in a new version of the document, keeping toggle state and
// form values.
func (s *Session) Replace(doc *listingkit.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc = doc
	s.registerForms()
}

// Render renders the current document against a snapshot of the store.
func (s *Session) Render() (*Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.renderLocked()
}

func (s *Session) renderLocked() (*Update, error) {
	if s.doc == nil || s.doc.Component == nil {
		return nil, listingkit.ErrCannotRender
	}
	ctx := s.store.Context(s.doc.Content, s.doc.Images)
	res := render.RenderDocument(s.doc, ctx, render.Options{Editing: s.Editing, Logger: s.logger})
	html, err := render.RenderHTML(res.Root)
	if err != nil {
		return nil, err
	}
	return &Update{HTML: html, Problems: res.Problems}, nil
}

// HandleMessage applies a client action and re-renders.
//
//	toggle, click  {id?}        target defaults to nodeId
//	submit         {form?}      target defaults to nodeId
//	setField       {name, value}
//	edit           {index, text}      editing only
//	setProp        {key, value}       editing only
//	move           {from, to}         editing only, nodeId is the parent
//	remove         {}                 editing only
func (s *Session) HandleMessage(msg MessageEnvelope) (*Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed, err := s.apply(msg)
	if err != nil {
		return nil, err
	}
	up, err := s.renderLocked()
	if err != nil {
		return nil, err
	}
	up.Changed = changed
	return up, nil
}

func (s *Session) apply(msg MessageEnvelope) (bool, error) {
	data := msg.Data
	if data == nil {
		data = make(map[string]interface{})
	}

	switch msg.Action {
	case "toggle", "click":
		withDefault(data, "id", msg.NodeID)
		return false, s.store.HandleAction(msg.Action, data)
	case "submit":
		withDefault(data, "form", msg.NodeID)
		return false, s.store.HandleAction(msg.Action, data)
	case "setField":
		return false, s.store.HandleAction(msg.Action, data)
	case "edit", "setProp", "move", "remove":
		if !s.Editing {
			return false, ErrNotEditing
		}
		root, err := s.edit(msg.Action, msg.NodeID, data)
		if err != nil {
			return false, fmt.Errorf("%s: %w", msg.Action, err)
		}
		doc := *s.doc
		doc.Component = root
		s.doc = &doc
		s.registerForms()
		return true, nil
	default:
		return false, fmt.Errorf("unknown action: %s", msg.Action)
	}
}

func (s *Session) edit(action, nodeID string, data map[string]interface{}) (*listingkit.TemplateNode, error) {
	root := s.doc.Component
	switch action {
	case "edit":
		idx, err := intArg(data, "index")
		if err != nil {
			return nil, err
		}
		text, _ := data["text"].(string)
		return listingkit.EditText(root, nodeID, idx, text)
	case "setProp":
		key, _ := data["key"].(string)
		if key == "" {
			return nil, fmt.Errorf("missing %q", "key")
		}
		return listingkit.SetProp(root, nodeID, key, listingkit.ValueOf(data["value"]))
	case "move":
		from, err := intArg(data, "from")
		if err != nil {
			return nil, err
		}
		to, err := intArg(data, "to")
		if err != nil {
			return nil, err
		}
		return listingkit.MoveChild(root, nodeID, from, to)
	default:
		return listingkit.RemoveNode(root, nodeID)
	}
}

// Close releases the form store.
func (s *Session) Close() error {
	return s.store.Close()
}

func withDefault(data map[string]interface{}, key, value string) {
	if v, _ := data[key].(string); v == "" && value != "" {
		data[key] = value
	}
}

func intArg(data map[string]interface{}, key string) (int, error) {
	switch v := data[key].(type) {
	case float64:
		return int(v), nil
	case int:
		return v, nil
	default:
		return 0, fmt.Errorf("missing %q", key)
	}
}
