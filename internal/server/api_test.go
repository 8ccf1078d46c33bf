package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livetemplate/listingkit/internal/config"
	"github.com/livetemplate/listingkit/internal/generate"
)

func apiConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.API = &config.APIConfig{Enabled: true}
	return cfg
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, header ...string) (int, map[string]interface{}) {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, r)
	require.NoError(t, err)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := e.ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	if resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp.StatusCode, out
}

const validBody = `{
  "metadata": {"name": "Walnut Desk", "template": "product"},
  "styleVariables": {},
  "component": {"id": "root", "type": "container", "children": [
    {"id": "title", "type": "heading", "children": ["{{content.title}}"]}
  ]},
  "content": {"title": "Walnut Desk"}
}`

func TestAPIDocumentLifecycle(t *testing.T) {
	env := newTestEnv(t, apiConfig())

	status, body := env.do(t, "GET", "/api/documents", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["total"])

	status, body = env.do(t, "POST", "/api/documents?id=desk", validBody)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "desk", body["id"])
	assert.Nil(t, body["problems"])

	status, body = env.do(t, "GET", "/api/documents/desk", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Walnut Desk", body["metadata"].(map[string]interface{})["name"])

	status, body = env.do(t, "GET", "/api/documents?limit=1", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 2, body["total"])
	assert.EqualValues(t, 1, body["count"])

	status, _ = env.do(t, "PUT", "/api/documents/desk", `{"component": {"id": "root", "type": "div", "children": ["Sold out"]}}`)
	require.Equal(t, http.StatusOK, status)
	doc, err := env.store.Get(context.Background(), "desk")
	require.NoError(t, err)
	assert.Equal(t, "Sold out", doc.Component.Children[0].Text)

	status, _ = env.do(t, "DELETE", "/api/documents/desk", nil)
	require.Equal(t, http.StatusOK, status)
	status, body = env.do(t, "GET", "/api/documents/desk", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "document not found", body["error"])
}

func TestAPICreateGeneratesID(t *testing.T) {
	env := newTestEnv(t, apiConfig())

	status, body := env.do(t, "POST", "/api/documents", validBody)
	require.Equal(t, http.StatusCreated, status)
	id, _ := body["id"].(string)
	require.NotEmpty(t, id)

	status, _ = env.do(t, "GET", "/api/documents/"+id, nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestAPISaveReportsProblems(t *testing.T) {
	env := newTestEnv(t, apiConfig())

	status, body := env.do(t, "PUT", "/api/documents/draft", `{"component": {"id": "root", "type": "div", "children": [{"id": "x"}]}}`)
	require.Equal(t, http.StatusOK, status)
	problems, _ := body["problems"].([]interface{})
	require.NotEmpty(t, problems)
	assert.Equal(t, "error", problems[0].(map[string]interface{})["severity"])
}

func TestAPIRequestErrors(t *testing.T) {
	env := newTestEnv(t, apiConfig())

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		want   int
	}{
		{"invalid id", "PUT", "/api/documents/bad.id", validBody, http.StatusBadRequest},
		{"not an object", "PUT", "/api/documents/x", `[1, 2]`, http.StatusBadRequest},
		{"not json", "POST", "/api/validate", `{oops`, http.StatusBadRequest},
		{"delete missing", "DELETE", "/api/documents/missing", nil, http.StatusNotFound},
		{"unknown endpoint", "GET", "/api/widgets", nil, http.StatusNotFound},
		{"wrong method", "PATCH", "/api/documents/shirt", validBody, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := env.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, status)
		})
	}
}

func TestAPIReplaceImages(t *testing.T) {
	env := newTestEnv(t, apiConfig())

	status, body := env.do(t, "POST", "/api/documents/shirt/images", imagesRequest{
		Uploads: []string{"blob:http://localhost/upload-1"},
		URLs:    []string{"https://cdn.example.com/shirt.jpg"},
	})
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["replaced"])

	doc, err := env.store.Get(context.Background(), "shirt")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://cdn.example.com/shirt.jpg"}, doc.Images)

	status, body = env.do(t, "POST", "/api/documents/shirt/images", imagesRequest{
		Uploads: []string{"blob:a", "blob:b"},
		URLs:    []string{"https://cdn.example.com/a.jpg"},
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, body["error"], "upload mapping")

	status, _ = env.do(t, "POST", "/api/documents/shirt/images", imagesRequest{
		Uploads: []string{"blob:a"},
		URLs:    []string{"http://169.254.169.254/latest"},
	})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPIValidateAndFix(t *testing.T) {
	env := newTestEnv(t, apiConfig())

	status, body := env.do(t, "POST", "/api/validate", validBody)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["valid"])

	status, body = env.do(t, "POST", "/api/validate", `{"component": {"id": "root", "children": []}}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["valid"])

	status, body = env.do(t, "POST", "/api/fix", `{"metadata": {"name": "Bare"}}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["valid"])
	assert.Contains(t, body["fixes"], "Synthesized empty component")
	fixed := body["document"].(map[string]interface{})
	assert.Equal(t, "root", fixed["component"].(map[string]interface{})["id"])
}

func TestAPIRender(t *testing.T) {
	env := newTestEnv(t, apiConfig())

	status, body := env.do(t, "POST", "/api/render", map[string]interface{}{
		"document": json.RawMessage(validBody),
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, `<div id="root"><h2 id="title">Walnut Desk</h2></div>`, body["html"])

	status, body = env.do(t, "POST", "/api/render", map[string]interface{}{
		"document": json.RawMessage(`{"styleVariables": {}, "component": {"id": "root", "type": "p", "if": "state.open", "children": ["{{formData.name || 'Anonymous'}}"]}}`),
		"state":    map[string]bool{"open": true},
		"formData": map[string]string{"name": "Ana"},
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, `<p id="root">Ana</p>`, body["html"])

	status, _ = env.do(t, "POST", "/api/render", map[string]interface{}{"document": "just text"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
}

type stubBackend struct {
	answer string
	err    error
}

func (b *stubBackend) Name() string { return "stub" }

func (b *stubBackend) Complete(ctx context.Context, system, user string) (string, error) {
	return b.answer, b.err
}

func generator(b generate.Backend) *generate.Service {
	return generate.NewService(b, generate.WithRetryConfig(generate.RetryConfig{MaxRetries: 0}))
}

func TestAPIGenerate(t *testing.T) {
	env := newTestEnv(t, apiConfig(), WithGenerator(generator(&stubBackend{answer: validBody})))

	status, body := env.do(t, "POST", "/api/generate", map[string]interface{}{
		"kind": "product", "prompt": "A walnut desk", "variants": 2, "save": true,
	})
	require.Equal(t, http.StatusOK, status)
	docs := body["documents"].([]interface{})
	require.Len(t, docs, 2)
	for _, d := range docs {
		entry := d.(map[string]interface{})
		assert.Equal(t, "stub", entry["provider"])
		id, _ := entry["id"].(string)
		require.NotEmpty(t, id)
		_, err := env.store.Get(context.Background(), id)
		assert.NoError(t, err)
	}

	status, _ = env.do(t, "POST", "/api/generate", map[string]interface{}{"kind": "product"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = env.do(t, "POST", "/api/generate", map[string]interface{}{"prompt": "x", "variants": 50})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAPIGenerateFailures(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		env := newTestEnv(t, apiConfig())
		status, body := env.do(t, "POST", "/api/generate", map[string]interface{}{"prompt": "x"})
		assert.Equal(t, http.StatusServiceUnavailable, status)
		assert.Equal(t, "generation is not configured", body["error"])
	})

	t.Run("provider rejects key", func(t *testing.T) {
		b := &stubBackend{err: &generate.ProviderError{Provider: "stub", StatusCode: 401, Err: errors.New("bad key")}}
		env := newTestEnv(t, apiConfig(), WithGenerator(generator(b)))
		status, body := env.do(t, "POST", "/api/generate", map[string]interface{}{"prompt": "x"})
		assert.Equal(t, http.StatusBadGateway, status)
		assert.Equal(t, "The generator rejected the API key.", body["error"])
	})
}

func TestAPIRequiresKey(t *testing.T) {
	cfg := apiConfig()
	cfg.API.Auth = &config.AuthConfig{APIKey: "s3cret"}
	env := newTestEnv(t, cfg)

	status, _ := env.do(t, "GET", "/api/documents", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = env.do(t, "GET", "/api/documents", nil, "X-API-Key", "s3cret")
	assert.Equal(t, http.StatusOK, status)

	// Pages stay public.
	resp, _ := env.get(t, "/d/shirt")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPaginate(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	tests := []struct {
		offset, limit int
		want          []int
	}{
		{0, 0, []int{1, 2, 3, 4, 5}},
		{0, 2, []int{1, 2}},
		{3, 10, []int{4, 5}},
		{-1, 1, []int{1}},
		{9, 1, []int{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, paginate(items, tt.offset, tt.limit), "offset=%d limit=%d", tt.offset, tt.limit)
	}
}
