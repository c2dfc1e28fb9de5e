// Package connection owns one persistent-socket lifecycle per active
// synchronization context. Each handle runs a small state machine
// (connecting → open → closed) and feeds decoded frames to a single
// event callback in arrival order. The manager never retries on its
// own; the caller re-opens a context by remounting it. The one
// exception is the notifications scope, which schedules exactly one
// reconnection attempt before giving up silently.
package connection

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/denborg/chatsync/internal/domain"
	"github.com/denborg/chatsync/internal/endpoint"
	"github.com/denborg/chatsync/internal/logging"
	"github.com/denborg/chatsync/internal/wire"
)

// State is the lifecycle phase of a handle.
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

// CloseInfo records why a handle left the open state.
type CloseInfo struct {
	Code   int
	Reason string
}

// EventHandler consumes decoded inbound events, in arrival order.
type EventHandler func(ev wire.Event)

// ErrHandleClosed is returned by Send after a handle has closed.
var ErrHandleClosed = fmt.Errorf("connection: handle closed")

// Manager opens and tears down sockets, enforcing one live handle per
// context.
type Manager struct {
	resolver   endpoint.Resolver
	dialer     *websocket.Dialer
	retryDelay time.Duration
	log        *logging.Logger

	mu      sync.Mutex
	handles map[string]*Handle
}

// NewManager creates a manager. retryDelay applies only to the
// notifications scope's single bounded reconnection.
func NewManager(resolver endpoint.Resolver, retryDelay time.Duration, log *logging.Logger) *Manager {
	return &Manager{
		resolver:   resolver,
		dialer:     websocket.DefaultDialer,
		retryDelay: retryDelay,
		log:        log.Sub("connection"),
		handles:    make(map[string]*Handle),
	}
}

// Open establishes a socket for the context. An existing live handle
// for the same context is closed first; no two live sockets may share
// a scope. A fresh open always expects the server to lead with a
// snapshot frame that re-establishes the baseline.
func (m *Manager) Open(ctx domain.Context, token string, onEvent EventHandler) (*Handle, error) {
	m.mu.Lock()
	prev := m.handles[ctx.String()]
	m.mu.Unlock()
	if prev != nil {
		m.log.Debug().Str("context", ctx.String()).Msg("closing superseded handle")
		prev.close(websocket.CloseNormalClosure, "superseded", true)
	}

	h := &Handle{
		ctx:     ctx,
		manager: m,
		onEvent: onEvent,
		state:   StateConnecting,
		done:    make(chan struct{}),
		url:     m.socketURL(ctx, token),
		log:     m.log.WithContext(ctx.String()),
	}

	conn, err := h.dial()
	if err != nil {
		return nil, err
	}
	h.mu.Lock()
	h.conn = conn
	h.state = StateOpen
	h.mu.Unlock()

	m.mu.Lock()
	m.handles[ctx.String()] = h
	m.mu.Unlock()

	h.log.Info().Msg("socket open")
	go h.readPump(conn)
	return h, nil
}

// Close tears down a handle. Safe to call on an already-closed handle.
func (m *Manager) Close(h *Handle) {
	h.close(websocket.CloseNormalClosure, "client close", true)
}

// CloseAll tears down every live handle.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	handles := make([]*Handle, 0, len(m.handles))
	for _, h := range m.handles {
		handles = append(handles, h)
	}
	m.mu.Unlock()

	for _, h := range handles {
		m.Close(h)
	}
}

func (m *Manager) socketURL(ctx domain.Context, token string) string {
	params := url.Values{"token": {token}}
	if ctx.Scope == domain.ScopeRoom {
		params.Set("room_id", ctx.ID)
	}
	return m.resolver.SocketURL(ctx.SocketPath(), params)
}

func (m *Manager) drop(h *Handle) {
	m.mu.Lock()
	if m.handles[h.ctx.String()] == h {
		delete(m.handles, h.ctx.String())
	}
	m.mu.Unlock()
}

// Handle is one live socket for one context.
type Handle struct {
	ctx     domain.Context
	manager *Manager
	onEvent EventHandler
	url     string
	log     *logging.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	state     State
	closeInfo CloseInfo
	retried   bool
	explicit  bool
	done      chan struct{}
}

// Context returns the handle's synchronization context.
func (h *Handle) Context() domain.Context { return h.ctx }

// State returns the current lifecycle phase.
func (h *Handle) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// CloseInfo returns the close code and reason once closed.
func (h *Handle) CloseInfo() CloseInfo {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closeInfo
}

// Done is closed when the handle reaches the closed state for good.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Send writes a raw outbound frame. Thread-safe; gorilla permits one
// concurrent writer only.
func (h *Handle) Send(payload []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != StateOpen {
		return ErrHandleClosed
	}
	return h.conn.WriteMessage(websocket.TextMessage, payload)
}

func (h *Handle) dial() (*websocket.Conn, error) {
	conn, resp, err := h.manager.dialer.Dial(h.url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("connection: dial %s: %w", h.ctx.String(), err)
	}
	return conn, nil
}

// readPump delivers inbound frames until the transport fails or the
// handle is closed. Frames that fail to decode are logged and dropped;
// they never kill the context.
func (h *Handle) readPump(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			h.onTransportError(conn, err)
			return
		}
		ev, derr := wire.Decode(raw)
		if derr != nil {
			h.log.Warn().Err(derr).Int("bytes", len(raw)).Msg("dropping undecodable frame")
			continue
		}
		h.onEvent(ev)
	}
}

func (h *Handle) onTransportError(conn *websocket.Conn, err error) {
	h.mu.Lock()
	if h.conn != conn {
		// a retry already replaced this connection
		h.mu.Unlock()
		return
	}
	explicit := h.explicit
	canRetry := h.ctx.Scope == domain.ScopeNotifications && !h.retried && !explicit
	if canRetry {
		h.retried = true
		h.state = StateConnecting
		h.conn = nil
		h.mu.Unlock()

		h.log.Warn().Err(err).Dur("delay", h.manager.retryDelay).Msg("notification socket lost, scheduling single retry")
		time.AfterFunc(h.manager.retryDelay, h.retry)
		return
	}

	code := websocket.CloseAbnormalClosure
	if ce, ok := err.(*websocket.CloseError); ok {
		code = ce.Code
	}
	h.closeLocked(code, err.Error())
	h.mu.Unlock()

	if !explicit {
		h.log.Warn().Err(err).Msg("socket closed by transport error")
	}
}

func (h *Handle) retry() {
	h.mu.Lock()
	if h.state != StateConnecting || h.explicit {
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	conn, err := h.dial()

	h.mu.Lock()
	if h.explicit {
		h.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	if err != nil {
		// second consecutive failure: give up silently until remount
		h.closeLocked(websocket.CloseAbnormalClosure, err.Error())
		h.mu.Unlock()
		h.log.Warn().Err(err).Msg("notification retry failed, channel closed")
		return
	}
	h.conn = conn
	h.state = StateOpen
	h.mu.Unlock()

	h.log.Info().Msg("notification socket re-established")
	go h.readPump(conn)
}

func (h *Handle) close(code int, reason string, explicit bool) {
	h.mu.Lock()
	if explicit {
		h.explicit = true
	}
	h.closeLocked(code, reason)
	h.mu.Unlock()
}

// closeLocked finalizes the handle. Callers hold h.mu.
func (h *Handle) closeLocked(code int, reason string) {
	if h.state == StateClosed {
		return
	}
	h.state = StateClosed
	h.closeInfo = CloseInfo{Code: code, Reason: reason}
	if h.conn != nil {
		h.conn.Close()
		h.conn = nil
	}
	close(h.done)
	h.manager.drop(h)
	h.log.Info().Int("code", code).Str("reason", reason).Msg("socket closed")
}
