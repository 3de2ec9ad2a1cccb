package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/lotas/tabkartei/internal/applog"
	"github.com/lotas/tabkartei/internal/types"
	"nhooyr.io/websocket"
)

// IncomingMsg is a message from the browser extension to the agent.
// Lifecycle events carry Tab; tabList replies carry Tabs; contentResult
// replies carry Content; UI requests carry Action.
type IncomingMsg struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Tab     json.RawMessage `json:"tab,omitempty"`
	Tabs    json.RawMessage `json:"tabs,omitempty"`
	TabID   int             `json:"tabId,omitempty"`
	TabIDs  []int           `json:"tabIds,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
	// tabUpdated only: load status ("complete" when navigation
	// finished) and whether the URL changed since the last event.
	Status     string `json:"status,omitempty"`
	URLChanged bool   `json:"urlChanged,omitempty"`
	Action string `json:"action,omitempty"`
	OK     *bool  `json:"ok,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Incoming message types.
const (
	TypeTabCreated    = "tabCreated"
	TypeTabUpdated    = "tabUpdated"
	TypeTabActivated  = "tabActivated"
	TypeTabRemoved    = "tabRemoved"
	TypeTabList       = "tabList"
	TypeContentResult = "contentResult"
	TypeRequest       = "request"
)

// OutgoingMsg is a command, response, or notification sent to the
// extension. Which fields are set depends on Action.
type OutgoingMsg struct {
	ID      string                      `json:"id,omitempty"`
	Action  string                      `json:"action"`
	TabID   int                         `json:"tabId,omitempty"`
	TabIDs  []int                       `json:"tabIds,omitempty"`
	TabData map[string]*types.TabRecord `json:"tabData,omitempty"`
	Success *bool                       `json:"success,omitempty"`
	Status  string                      `json:"status,omitempty"`
	Error   string                      `json:"error,omitempty"`
}

// Outgoing actions.
const (
	ActionListTabs       = "listTabs"
	ActionExtractContent = "extractContent"
	ActionCloseTabs      = "closeTabs"
	ActionFocusTab       = "focusTab"
	ActionTabAnalyzed    = "tabAnalyzed"
	ActionTabDataUpdated = "tabDataUpdated"
	ActionResponse       = "response"
)

// Server manages the WebSocket connection to the extension. At most
// one extension is connected at a time; a new connection replaces the
// old one.
type Server struct {
	port   int
	msgs   chan IncomingMsg
	nextID atomic.Uint64

	mu      sync.Mutex
	conn    *websocket.Conn
	connCtx context.Context
	pending map[string]chan IncomingMsg
}

// New creates a new Server.
func New(port int) *Server {
	return &Server{
		port:    port,
		msgs:    make(chan IncomingMsg, 64),
		pending: make(map[string]chan IncomingMsg),
	}
}

// Port returns the configured port.
func (s *Server) Port() int {
	return s.port
}

// Messages returns the channel of incoming messages that are not
// replies to a pending Request.
func (s *Server) Messages() <-chan IncomingMsg {
	return s.msgs
}

// Connected reports whether an extension is connected.
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Send sends a message to the connected extension. Sending with no
// extension connected is a no-op, not an error: notifications are
// best-effort and the next state change will re-notify.
func (s *Server) Send(msg OutgoingMsg) error {
	s.mu.Lock()
	conn := s.conn
	ctx := s.connCtx
	s.mu.Unlock()

	if conn == nil {
		return nil
	}

	applog.Info("ws.send", "action", msg.Action, "id", msg.ID)
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.Write(ctx, websocket.MessageText, data)
}

// Request sends a command and waits for the reply carrying the same
// correlation id, or fails when ctx expires or no extension is
// connected. A reply arriving after the deadline is discarded.
func (s *Server) Request(ctx context.Context, msg OutgoingMsg) (IncomingMsg, error) {
	s.mu.Lock()
	if s.conn == nil {
		s.mu.Unlock()
		return IncomingMsg{}, fmt.Errorf("no extension connected")
	}
	id := strconv.FormatUint(s.nextID.Add(1), 10)
	ch := make(chan IncomingMsg, 1)
	s.pending[id] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, id)
		s.mu.Unlock()
	}()

	msg.ID = id
	if err := s.Send(msg); err != nil {
		return IncomingMsg{}, fmt.Errorf("send %s: %w", msg.Action, err)
	}

	select {
	case reply := <-ch:
		if reply.Error != "" {
			return reply, fmt.Errorf("%s: %s", msg.Action, reply.Error)
		}
		return reply, nil
	case <-ctx.Done():
		return IncomingMsg{}, fmt.Errorf("%s: %w", msg.Action, ctx.Err())
	}
}

// dispatch routes a reply to its pending Request if one exists,
// otherwise onto the message channel. Returns true if consumed as a
// reply.
func (s *Server) dispatch(msg IncomingMsg) bool {
	if msg.ID == "" || msg.Type == TypeRequest {
		return false
	}
	s.mu.Lock()
	ch, ok := s.pending[msg.ID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- msg:
	default:
	}
	return true
}

// Handler returns an http.Handler that accepts WebSocket upgrades.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			log.Printf("websocket accept: %v", err)
			applog.Error("ws.accept", err)
			return
		}

		conn.SetReadLimit(16 << 20) // tab lists with page content can be large

		ctx := r.Context()
		s.mu.Lock()
		if s.conn != nil {
			applog.Info("ws.replaced")
			s.conn.CloseNow()
		}
		s.conn = conn
		s.connCtx = ctx
		s.mu.Unlock()

		applog.Info("ws.connected", "remote", r.RemoteAddr)

		defer func() {
			s.mu.Lock()
			if s.conn == conn {
				s.conn = nil
				s.connCtx = nil
			}
			s.mu.Unlock()
			conn.CloseNow()
			applog.Info("ws.disconnected")
		}()

		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				return
			}
			var msg IncomingMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				applog.Error("ws.parse", err)
				continue
			}
			applog.Info("ws.recv", "type", msg.Type, "action", msg.Action)
			if s.dispatch(msg) {
				continue
			}
			select {
			case s.msgs <- msg:
			default:
			}
		}
	})
}

// ListenAndServe starts the WebSocket server on the configured port.
func (s *Server) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/", s.Handler())

	addr := fmt.Sprintf("127.0.0.1:%d", s.port)
	applog.Info("server.start", "addr", addr)
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		srv.Close()
	}()

	return srv.ListenAndServe()
}
