package listingkit

import (
	"errors"
	"strings"
	"testing"
)

func TestDocumentValidationErrorMessage(t *testing.T) {
	missingType := Problem{Path: "component.children[0].type", Message: "type is required", Severity: SeverityError}
	badColor := Problem{Path: "styleVariables.--color-primary", Message: "invalid color", Severity: SeverityError}
	literal := Problem{Path: "component.children[1]", Message: "rendered as literal text", Severity: SeverityWarning}

	tests := []struct {
		name     string
		problems []Problem
		want     string
	}{
		{"warnings only", []Problem{literal}, "document validation failed"},
		{"one error", []Problem{literal, missingType}, "document validation failed: component.children[0].type: type is required"},
		{"several errors", []Problem{missingType, badColor, literal}, "document validation failed: component.children[0].type: type is required (and 1 more)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewDocumentValidationError(tt.problems)
			if got := err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDocumentValidationErrorFormatWithoutSource(t *testing.T) {
	err := NewDocumentValidationError([]Problem{
		{Message: "document must be a JSON object", Severity: SeverityError},
	})
	msg := err.Format()

	if !strings.HasPrefix(msg, "❌ Invalid template\n") {
		t.Errorf("Format should start with the bare header, got:\n%s", msg)
	}
	if strings.Contains(msg, "💡 Tip:") {
		t.Errorf("Format should not include a tip without a hint")
	}
	if !strings.Contains(msg, "document must be a JSON object") {
		t.Errorf("Format should list the problem")
	}
}

func TestParseErrorsWrapSentinels(t *testing.T) {
	_, err := ParseDocument([]byte(`[1, 2, 3]`))
	if !errors.Is(err, ErrCannotRender) {
		t.Fatalf("expected ErrCannotRender, got %v", err)
	}

	_, err = ParseGenerated([]byte(`{"component": {"id": "root", "children": [{"id": "x"}]}}`))
	var verr *DocumentValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *DocumentValidationError, got %T", err)
	}
	if verr.Hint == "" {
		t.Errorf("generated documents should carry a hint")
	}
	if len(verr.Errors()) == 0 {
		t.Errorf("expected at least one error-severity problem")
	}
}
