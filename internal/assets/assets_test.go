package assets

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		contains    []string
	}{
		{"client.js", "application/javascript", []string{"lk-root", "setField"}},
		{"client.css", "text/css; charset=utf-8", []string{"#lk-root"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, ok := Lookup(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.contentType, a.ContentType)
			for _, s := range tt.contains {
				assert.Contains(t, string(a.Data), s)
			}
		})
	}
}

func TestLookupUnknown(t *testing.T) {
	for _, name := range []string{"", "listingkit-client.js", "../go.mod", "client.map"} {
		_, ok := Lookup(name)
		assert.False(t, ok, name)
	}
}

func TestNames(t *testing.T) {
	assert.ElementsMatch(t, []string{"client.js", "client.css"}, Names())
}
