// Package gatewaytest provides a scripted gateway double for tests: it
// performs the hello/identify handshake, answers heartbeats, and lets a
// test push dispatches or close codes at will.
package gatewaytest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/heraldlib/herald/internal/gateway"
)

// Config scripts the server's behavior.
type Config struct {
	// Token is the expected bot token. A mismatched IDENTIFY is closed
	// with the auth failure code. Empty accepts anything.
	Token string

	// HeartbeatInterval is advertised in HELLO. Defaults to a minute so
	// heartbeats stay out of short tests.
	HeartbeatInterval time.Duration

	// UnavailableGuildIDs are sent as unavailable guild stubs on READY.
	UnavailableGuildIDs []string

	// User is the bot user JSON embedded in READY.
	User json.RawMessage

	// Compress sends server frames zlib-compressed as binary messages.
	Compress bool

	// RejectResume answers RESUME with a non-resumable invalid session.
	RejectResume bool
}

// Server is the scripted gateway.
type Server struct {
	cfg      Config
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[string]*conn

	identifies atomic.Int32
	resumes    atomic.Int32
	heartbeats atomic.Int32
}

type conn struct {
	id string
	ws *websocket.Conn

	mu  sync.Mutex // serializes writes
	seq atomic.Int64
}

// New starts a server, closed automatically when the test ends.
func New(t *testing.T, cfg Config) *Server {
	t.Helper()

	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = time.Minute
	}
	if cfg.User == nil {
		cfg.User = json.RawMessage(`{"id":"100","username":"testbot","discriminator":"0"}`)
	}
	s := &Server{
		cfg:   cfg,
		conns: make(map[string]*conn),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.srv.Close)
	return s
}

// URL returns the ws:// endpoint.
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

// Identifies returns how many IDENTIFY frames arrived.
func (s *Server) Identifies() int { return int(s.identifies.Load()) }

// Resumes returns how many RESUME frames arrived.
func (s *Server) Resumes() int { return int(s.resumes.Load()) }

// Heartbeats returns how many heartbeats arrived.
func (s *Server) Heartbeats() int { return int(s.heartbeats.Load()) }

// Conns returns the number of live connections.
func (s *Server) Conns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Push broadcasts one dispatch to every connection.
func (s *Server) Push(title string, d any) {
	s.mu.Lock()
	conns := make([]*conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		s.dispatch(c, title, d)
	}
}

// SendOp broadcasts a raw opcode frame, for scripting RECONNECT or
// INVALID SESSION from the server side.
func (s *Server) SendOp(op int, d any) {
	data, err := gateway.Encode(op, d)
	if err != nil {
		return
	}
	s.mu.Lock()
	conns := make([]*conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		s.write(c, data)
	}
}

// CloseConnections closes every live connection with the given code.
func (s *Server) CloseConnections(code int, reason string) {
	s.mu.Lock()
	conns := make([]*conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		message := websocket.FormatCloseMessage(code, reason)
		c.mu.Lock()
		c.ws.WriteControl(websocket.CloseMessage, message, time.Now().Add(time.Second))
		c.mu.Unlock()
		c.ws.Close()
	}
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &conn{id: uuid.New().String(), ws: ws}
	s.mu.Lock()
	s.conns[c.id] = c
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, c.id)
		s.mu.Unlock()
		ws.Close()
	}()

	hello := gateway.Hello{HeartbeatInterval: float64(s.cfg.HeartbeatInterval / time.Millisecond)}
	if data, err := gateway.Encode(gateway.OpHello, hello); err == nil {
		s.write(c, data)
	}

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		p, err := gateway.Decode(data, false)
		if err != nil {
			return
		}

		switch p.Op {
		case gateway.OpIdentify:
			var identify gateway.Identify
			if err := json.Unmarshal(p.Data, &identify); err != nil {
				return
			}
			if s.cfg.Token != "" && identify.Token != s.cfg.Token {
				s.closeWith(c, gateway.CloseAuthenticationFailed, "Authentication failed.")
				return
			}
			s.identifies.Add(1)
			s.sendReady(c)

		case gateway.OpResume:
			s.resumes.Add(1)
			if s.cfg.RejectResume {
				if frame, err := gateway.Encode(gateway.OpInvalidSession, false); err == nil {
					s.write(c, frame)
				}
				continue
			}
			s.dispatch(c, "RESUMED", struct{}{})

		case gateway.OpHeartbeat:
			s.heartbeats.Add(1)
			if frame, err := gateway.Encode(gateway.OpHeartbeatACK, nil); err == nil {
				s.write(c, frame)
			}
		}
	}
}

func (s *Server) sendReady(c *conn) {
	guilds := make([]map[string]any, 0, len(s.cfg.UnavailableGuildIDs))
	for _, id := range s.cfg.UnavailableGuildIDs {
		guilds = append(guilds, map[string]any{"id": id, "unavailable": true})
	}
	s.dispatch(c, "READY", map[string]any{
		"v":                  10,
		"user":               s.cfg.User,
		"session_id":         uuid.New().String(),
		"resume_gateway_url": s.URL(),
		"guilds":             guilds,
	})
}

func (s *Server) dispatch(c *conn, title string, d any) {
	body, err := json.Marshal(d)
	if err != nil {
		return
	}
	frame, err := json.Marshal(gateway.Payload{
		Op:    gateway.OpDispatch,
		Data:  body,
		Seq:   c.seq.Add(1),
		Title: title,
	})
	if err != nil {
		return
	}
	s.write(c, frame)
}

func (s *Server) write(c *conn, data []byte) {
	messageType := websocket.TextMessage
	if s.cfg.Compress {
		deflated, err := gateway.Deflate(data)
		if err != nil {
			return
		}
		data = deflated
		messageType = websocket.BinaryMessage
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
	c.ws.WriteMessage(messageType, data)
}

func (s *Server) closeWith(c *conn, code int, reason string) {
	message := websocket.FormatCloseMessage(code, reason)
	c.mu.Lock()
	c.ws.WriteControl(websocket.CloseMessage, message, time.Now().Add(time.Second))
	c.mu.Unlock()
	c.ws.Close()
}
