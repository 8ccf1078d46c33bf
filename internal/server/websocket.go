package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/livetemplate/listingkit"
	"github.com/livetemplate/listingkit/internal/session"
	"github.com/livetemplate/listingkit/internal/store"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 << 10
)

// serverMessage is sent from the server to the browser client.
//
//	render   {html, problems}  the document after an action or an external change
//	error    {error}           the last action failed; the page is unchanged
//	deleted  {}                the document was removed
type serverMessage struct {
	Type     string               `json:"type"`
	HTML     string               `json:"html,omitempty"`
	Problems []listingkit.Problem `json:"problems,omitempty"`
	Error    string               `json:"error,omitempty"`
}

// wsConn is one connected browser with its session. gorilla/websocket
// allows a single concurrent writer, so writes are serialized.
type wsConn struct {
	conn    *websocket.Conn
	session *session.Session
	logger  *zap.Logger
	writeMu sync.Mutex
}

func (c *wsConn) send(msg serverMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.logger.Error("marshal message failed", zap.Error(err))
		return
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		c.logger.Debug("write failed", zap.Error(err))
	}
}

func (c *wsConn) sendRender(up *session.Update, err error) {
	if err != nil {
		c.send(serverMessage{Type: "error", Error: err.Error()})
		return
	}
	c.send(serverMessage{Type: "render", HTML: up.HTML, Problems: up.Problems})
}

func (s *Server) upgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}
}

// checkOrigin accepts same-host pages and the configured CORS origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err == nil && u.Host == r.Host {
		return true
	}
	if s.config.API != nil {
		for _, o := range s.config.API.GetCORSOrigins() {
			if o == "*" || o == origin {
				return true
			}
		}
	}
	return s.config.Server.Debug
}

// serveWebSocket opens a session on ?doc= (editing with &edit=1) and
// relays client actions to it until the connection closes.
func (s *Server) serveWebSocket(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	docID := q.Get("doc")
	editing := q.Get("edit") == "1"
	if editing && !s.config.Features.Editing {
		http.Error(w, "editing is disabled", http.StatusForbidden)
		return
	}
	doc, ok := s.loadDocument(w, r, docID)
	if !ok {
		return
	}

	conn, err := s.upgrader().Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	conn.SetReadLimit(maxMessageSize)

	sess := s.sessions.Open(docID, doc, editing)
	c := &wsConn{
		conn:    conn,
		session: sess,
		logger:  s.logger.Named("ws").With(zap.String("session", sess.ID), zap.String("doc", docID)),
	}
	s.register(c)
	defer func() {
		s.unregister(c)
		s.sessions.Drop(sess.ID)
		conn.Close()
	}()

	c.logger.Debug("client connected", zap.Bool("editing", editing), zap.String("remote", conn.RemoteAddr().String()))
	c.sendRender(sess.Render())

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("unexpected close", zap.Error(err))
			}
			break
		}
		s.handleMessage(r.Context(), c, message)
	}

	c.logger.Debug("client disconnected")
}

func (s *Server) handleMessage(ctx context.Context, c *wsConn, message []byte) {
	var msg session.MessageEnvelope
	if err := json.Unmarshal(message, &msg); err != nil {
		c.send(serverMessage{Type: "error", Error: "invalid message"})
		return
	}

	up, err := c.session.HandleMessage(msg)
	if err != nil {
		c.logger.Debug("action failed", zap.String("action", msg.Action), zap.String("node", msg.NodeID), zap.Error(err))
		c.send(serverMessage{Type: "error", Error: err.Error()})
		return
	}
	c.sendRender(up, nil)

	if !up.Changed {
		return
	}
	doc := c.session.Document()
	if err := s.saveDocument(ctx, c.session.DocID, doc); err != nil {
		c.logger.Error("save edit failed", zap.Error(err))
		msg := "could not save the edit"
		var serr *store.Error
		if errors.As(err, &serr) {
			msg += ": " + serr.Err.Error()
		}
		c.send(serverMessage{Type: "error", Error: msg})
		return
	}
	s.BroadcastDocument(c.session.DocID, doc, c.session.ID)
}

func (s *Server) register(c *wsConn) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	s.conns[c.session.ID] = c
	s.logger.Debug("connection registered", zap.Int("active", len(s.conns)))
}

func (s *Server) unregister(c *wsConn) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	delete(s.conns, c.session.ID)
	s.logger.Debug("connection unregistered", zap.Int("active", len(s.conns)))
}
