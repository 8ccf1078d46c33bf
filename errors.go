package listingkit

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCannotRender is returned when input is not a JSON object or has no
// usable component tree.
var ErrCannotRender = errors.New("cannot render this template")

// Severity grades a Problem.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

func (s Severity) String() string {
	if s == SeverityWarning {
		return "warning"
	}
	return "error"
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	switch string(text) {
	case "warning":
		*s = SeverityWarning
	case "error":
		*s = SeverityError
	default:
		return fmt.Errorf("unknown severity %q", text)
	}
	return nil
}

// Problem is one finding from validation or rendering.
type Problem struct {
	Path     string   `json:"path"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

func (p Problem) String() string {
	if p.Path == "" {
		return p.Message
	}
	return p.Path + ": " + p.Message
}

// HasErrors reports whether any problem has error severity.
func HasErrors(problems []Problem) bool {
	for _, p := range problems {
		if p.Severity == SeverityError {
			return true
		}
	}
	return false
}

// DocumentValidationError carries every problem found in a document.
type DocumentValidationError struct {
	Source   string // file or document id, optional
	Problems []Problem
	Hint     string
}

// NewDocumentValidationError creates an error for the given problems.
func NewDocumentValidationError(problems []Problem) *DocumentValidationError {
	return &DocumentValidationError{Problems: problems}
}

// WithSource records where the document came from.
func (e *DocumentValidationError) WithSource(source string) *DocumentValidationError {
	e.Source = source
	return e
}

// WithHint adds a helpful hint to the error.
func (e *DocumentValidationError) WithHint(hint string) *DocumentValidationError {
	e.Hint = hint
	return e
}

// Errors returns only the problems with error severity.
func (e *DocumentValidationError) Errors() []Problem {
	var out []Problem
	for _, p := range e.Problems {
		if p.Severity == SeverityError {
			out = append(out, p)
		}
	}
	return out
}

func (e *DocumentValidationError) Error() string {
	errs := e.Errors()
	switch len(errs) {
	case 0:
		return "document validation failed"
	case 1:
		return "document validation failed: " + errs[0].String()
	default:
		return fmt.Sprintf("document validation failed: %s (and %d more)", errs[0].String(), len(errs)-1)
	}
}

// Format returns a multi-line report of every problem.
func (e *DocumentValidationError) Format() string {
	var b strings.Builder
	if e.Source != "" {
		b.WriteString(fmt.Sprintf("❌ Invalid template %s\n\n", e.Source))
	} else {
		b.WriteString("❌ Invalid template\n\n")
	}
	for _, p := range e.Problems {
		b.WriteString(fmt.Sprintf("  %-7s %s\n", p.Severity, p.String()))
	}
	if e.Hint != "" {
		b.WriteString(fmt.Sprintf("\n💡 Tip: %s\n", e.Hint))
	}
	return b.String()
}
