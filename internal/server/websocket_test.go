package server

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livetemplate/listingkit/internal/config"
	"github.com/livetemplate/listingkit/internal/session"
)

func (e *testEnv) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	conn, resp, err := websocket.DefaultDialer.Dial(e.wsURL(query), nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (e *testEnv) wsURL(query string) string {
	return "ws" + strings.TrimPrefix(e.ts.URL, "http") + "/ws?" + query
}

func readMessage(t *testing.T, conn *websocket.Conn) serverMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg serverMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func send(t *testing.T, conn *websocket.Conn, msg session.MessageEnvelope) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

func TestWebSocketInitialRender(t *testing.T) {
	env := newTestEnv(t, nil)
	conn := env.dial(t, "doc=shirt")

	msg := readMessage(t, conn)
	assert.Equal(t, "render", msg.Type)
	assert.Contains(t, msg.HTML, `<h2 id="title">Linen Shirt</h2>`)
	assert.Equal(t, 1, env.srv.Sessions().Len())
}

func TestWebSocketToggle(t *testing.T) {
	env := newTestEnv(t, nil)
	conn := env.dial(t, "doc=shirt")
	readMessage(t, conn)

	send(t, conn, session.MessageEnvelope{NodeID: "faq", Action: "toggle"})
	msg := readMessage(t, conn)
	require.Equal(t, "render", msg.Type)
	assert.Contains(t, msg.HTML, "Ships in 2 days")

	send(t, conn, session.MessageEnvelope{NodeID: "faq", Action: "toggle"})
	msg = readMessage(t, conn)
	assert.NotContains(t, msg.HTML, "Ships in 2 days")
}

func TestWebSocketErrorReplies(t *testing.T) {
	env := newTestEnv(t, nil)
	conn := env.dial(t, "doc=shirt")
	readMessage(t, conn)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	msg := readMessage(t, conn)
	assert.Equal(t, "error", msg.Type)
	assert.Equal(t, "invalid message", msg.Error)

	send(t, conn, session.MessageEnvelope{NodeID: "faq", Action: "explode"})
	msg = readMessage(t, conn)
	assert.Equal(t, "error", msg.Type)
	assert.Contains(t, msg.Error, "unknown action")

	send(t, conn, session.MessageEnvelope{NodeID: "blurb", Action: "edit", Data: map[string]interface{}{"index": 0, "text": "x"}})
	msg = readMessage(t, conn)
	assert.Equal(t, "error", msg.Type)
	assert.Contains(t, msg.Error, "not in editing mode")
}

func TestWebSocketEditPersistsAndBroadcasts(t *testing.T) {
	env := newTestEnv(t, nil)
	editor := env.dial(t, "doc=shirt&edit=1")
	readMessage(t, editor)
	viewer := env.dial(t, "doc=shirt")
	readMessage(t, viewer)

	send(t, editor, session.MessageEnvelope{NodeID: "blurb", Action: "edit", Data: map[string]interface{}{"index": 0, "text": "Crisp linen"}})

	msg := readMessage(t, editor)
	require.Equal(t, "render", msg.Type)
	assert.Contains(t, msg.HTML, "Crisp linen")

	msg = readMessage(t, viewer)
	require.Equal(t, "render", msg.Type)
	assert.Contains(t, msg.HTML, "Crisp linen")
	assert.NotContains(t, msg.HTML, "contenteditable")

	doc, err := env.store.Get(context.Background(), "shirt")
	require.NoError(t, err)
	assert.Equal(t, "Crisp linen", doc.Component.Find("blurb").Children[0].Text)
}

func TestWebSocketRejectsUnknownDocument(t *testing.T) {
	env := newTestEnv(t, nil)

	_, resp, err := websocket.DefaultDialer.Dial(env.wsURL("doc=missing"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestWebSocketEditingDisabled(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Features.Editing = false
	env := newTestEnv(t, cfg)

	_, resp, err := websocket.DefaultDialer.Dial(env.wsURL("doc=shirt&edit=1"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestWebSocketCheckOrigin(t *testing.T) {
	env := newTestEnv(t, nil)

	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(env.wsURL("doc=shirt"), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header = http.Header{"Origin": []string{env.ts.URL}}
	conn, resp, err := websocket.DefaultDialer.Dial(env.wsURL("doc=shirt"), header)
	require.NoError(t, err)
	resp.Body.Close()
	conn.Close()
}

func TestWebSocketSessionDroppedOnClose(t *testing.T) {
	env := newTestEnv(t, nil)
	conn := env.dial(t, "doc=shirt")
	readMessage(t, conn)
	require.Equal(t, 1, env.srv.Sessions().Len())

	conn.Close()
	require.Eventually(t, func() bool { return env.srv.Sessions().Len() == 0 }, 5*time.Second, 10*time.Millisecond)
}
