package runtime

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExpr(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"simple path", "content.title", false},
		{"index path", "images[0]", false},
		{"quoted key", "content['product name']", false},
		{"fallback", "formData.name || 'Anonymous'", false},
		{"ternary", "state.x_active ? 'ON' : 'OFF'", false},
		{"ternary with fallback branches", "state.x ? content.a || 'a' : content.b", false},
		{"negation", "!state.menu_active", false},
		{"double quoted", `"hello"`, false},
		{"number", "42", false},
		{"negative number", "-1.5", false},
		{"hyphenated id", "state.btn-1_active", false},
		{"empty", "", true},
		{"chained fallback", "a.b || 'x' || 'y'", true},
		{"nested ternary", "a ? b ? 'x' : 'y' : 'z'", true},
		{"chained ternary", "a ? 'x' : b ? 'y' : 'z'", true},
		{"double negation", "!!state.x", true},
		{"single pipe", "a | b", true},
		{"unterminated string", "'abc", true},
		{"missing colon", "a ? 'x'", true},
		{"trailing dot", "content.", true},
		{"unclosed bracket", "images[0", true},
		{"float index", "images[1.5]", true},
		{"unsupported operator", "a && b", true},
		{"trailing tokens", "content.title content.name", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseExpr(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseExpr(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil {
				var syntaxErr *SyntaxError
				assert.True(t, errors.As(err, &syntaxErr), "error should be *SyntaxError")
			}
		})
	}
}

func testContext() *RenderContext {
	return &RenderContext{
		Content: map[string]interface{}{
			"title": "Linen Shirt",
			"count": float64(5),
			"tags":  []interface{}{"summer", "linen"},
			"seller": map[string]interface{}{
				"name":   "Ada's Atelier",
				"rating": 4.5,
			},
			"empty":        "",
			"product name": "Quoted",
		},
		Images:   []string{"https://cdn.example.com/a.jpg", "https://cdn.example.com/b.jpg"},
		State:    map[string]bool{"x_active": true, "off_active": false},
		FormData: map[string]string{"email": "sam@example.com"},
		Errors:   map[string]string{"phone": "required"},
	}
}

func TestEval(t *testing.T) {
	ctx := testContext()

	tests := []struct {
		name string
		expr string
		want interface{}
	}{
		{"string path", "content.title", "Linen Shirt"},
		{"number path", "content.count", float64(5)},
		{"nested path", "content.seller.name", "Ada's Atelier"},
		{"nested number", "content.seller.rating", 4.5},
		{"list path", "content.tags", []interface{}{"summer", "linen"}},
		{"list index", "content.tags[1]", "linen"},
		{"list length", "content.tags.length", float64(2)},
		{"image index", "images[1]", "https://cdn.example.com/b.jpg"},
		{"images whole", "images", []interface{}{"https://cdn.example.com/a.jpg", "https://cdn.example.com/b.jpg"}},
		{"image out of range", "images[7]", nil},
		{"quoted key", "content['product name']", "Quoted"},
		{"state true", "state.x_active", true},
		{"state false", "state.off_active", false},
		{"state missing", "state.y_active", nil},
		{"form value", "formData.email", "sam@example.com"},
		{"form missing", "formData.name", nil},
		{"errors", "errors.phone", "required"},
		{"missing chain", "content.missing.deeper.still", nil},
		{"unknown root", "window.location", nil},
		{"fallback used", "formData.name || 'Anonymous'", "Anonymous"},
		{"fallback skipped", "formData.email || 'none'", "sam@example.com"},
		{"fallback on empty string", "content.empty || 'n/a'", "n/a"},
		{"fallback to path", "content.missing || content.title", "Linen Shirt"},
		{"ternary true", "state.x_active ? 'ON' : 'OFF'", "ON"},
		{"ternary false", "state.off_active ? 'ON' : 'OFF'", "OFF"},
		{"ternary undefined", "state.nope ? 'ON' : 'OFF'", "OFF"},
		{"ternary path branch", "state.x_active ? content.title : 'none'", "Linen Shirt"},
		{"negation", "!state.x_active", false},
		{"negation of undefined", "!state.nope", true},
		{"literal number", "3", float64(3)},
		{"literal null", "null", nil},
		{"literal bool", "true", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := ParseExpr(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, expr.Eval(ctx))
		})
	}
}

func TestEvalNilContext(t *testing.T) {
	expr, err := ParseExpr("content.title || 'fallback'")
	require.NoError(t, err)
	assert.Equal(t, "fallback", expr.Eval(nil))
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		value interface{}
		want  bool
	}{
		{nil, false},
		{false, false},
		{true, true},
		{float64(0), false},
		{float64(2), true},
		{0, false},
		{"", false},
		{"false", true},
		{"0", true},
		{[]interface{}{}, true},
		{map[string]interface{}{}, true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Truthy(tt.value), "Truthy(%#v)", tt.value)
	}
}

func TestToText(t *testing.T) {
	tests := []struct {
		value interface{}
		want  string
	}{
		{nil, ""},
		{"abc", "abc"},
		{true, "true"},
		{float64(5), "5"},
		{2.5, "2.5"},
		{[]interface{}{"a", float64(1)}, "a,1"},
		{map[string]interface{}{"k": "v"}, `{"k":"v"}`},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ToText(tt.value))
	}
}

func TestExprString(t *testing.T) {
	for _, src := range []string{
		"content.title",
		`formData.name || "Anonymous"`,
		`state.x_active ? "ON" : "OFF"`,
		"!state.open_active",
		"images[0]",
	} {
		expr, err := ParseExpr(src)
		require.NoError(t, err)
		assert.Equal(t, src, expr.String())
	}
}
