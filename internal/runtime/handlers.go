package runtime

import "strings"

// Handler is one of the fixed interactive behaviors a document may name in
// an onClick, onSubmit or onChange prop. Documents cannot run arbitrary code.
type Handler uint8

const (
	// HandlerUnknown is any name outside the vocabulary. It is a no-op.
	HandlerUnknown Handler = iota
	HandlerToggle
	HandlerClick
	HandlerSubmit
)

var handlerNames = map[string]Handler{
	"handleToggle": HandlerToggle,
	"handleClick":  HandlerClick,
	"handleSubmit": HandlerSubmit,
}

// ParseHandler resolves a handler name from a document prop.
func ParseHandler(name string) Handler {
	return handlerNames[strings.TrimSpace(name)]
}

// String returns the document spelling of the handler.
func (h Handler) String() string {
	switch h {
	case HandlerToggle:
		return "handleToggle"
	case HandlerClick:
		return "handleClick"
	case HandlerSubmit:
		return "handleSubmit"
	default:
		return "unknown"
	}
}

// Action returns the store action a handler dispatches to.
func (h Handler) Action() string {
	switch h {
	case HandlerToggle:
		return "toggle"
	case HandlerClick:
		return "click"
	case HandlerSubmit:
		return "submit"
	default:
		return ""
	}
}

// Known reports whether h is part of the vocabulary.
func (h Handler) Known() bool {
	return h != HandlerUnknown
}

// eventProps maps handler-bearing prop names to DOM event names.
var eventProps = map[string]string{
	"onClick":  "click",
	"onSubmit": "submit",
	"onChange": "change",
}

// EventForProp returns the event name for a handler-bearing prop.
func EventForProp(prop string) (string, bool) {
	ev, ok := eventProps[prop]
	return ev, ok
}
