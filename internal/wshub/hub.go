package wshub

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/park285/chess-relay/internal/broadcast"
	"github.com/park285/chess-relay/internal/msgcat"
	"github.com/park285/chess-relay/internal/obslog"
	"github.com/park285/chess-relay/internal/room"
	"github.com/park285/chess-relay/pkg/relaydto"
)

// Dispatcher receives decoded client events.
type Dispatcher interface {
	Join(ctx context.Context, roomID, connID, displayName string) (room.Participant, error)
	Move(ctx context.Context, roomID, connID string, req relaydto.MovePayload) error
	Disconnect(connID string)
}

type Options struct {
	AllowedOrigins []string
	SendQueue      int
	PingInterval   time.Duration
	Messages       *msgcat.Catalog
}

// Hub owns every live connection and the room subscriptions. It implements broadcast.Publisher.
type Hub struct {
	opts Options

	mu    sync.RWMutex
	conns map[string]*conn
	rooms map[string]map[string]*conn

	d   Dispatcher
	out *broadcast.Broadcaster
	wg  sync.WaitGroup
}

func New(opts Options) *Hub {
	if opts.SendQueue <= 0 {
		opts.SendQueue = 64
	}
	if opts.Messages == nil {
		opts.Messages = msgcat.MustDefault()
	}
	h := &Hub{
		opts:  opts,
		conns: make(map[string]*conn),
		rooms: make(map[string]map[string]*conn),
	}
	h.out = broadcast.New(h)
	return h
}

// Attach sets the event handler. It must be called before serving.
func (h *Hub) Attach(d Dispatcher) {
	h.d = d
}

// ServeHTTP upgrades the request and runs the connection until it closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	acc := &websocket.AcceptOptions{CompressionMode: websocket.CompressionDisabled}
	if len(h.opts.AllowedOrigins) == 0 {
		acc.InsecureSkipVerify = true
	} else {
		acc.OriginPatterns = h.opts.AllowedOrigins
	}
	ws, err := websocket.Accept(w, r, acc)
	if err != nil {
		obslog.L().Warn("ws_accept_error", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}

	c := newConn(uuid.NewString(), ws, h.opts.SendQueue)
	h.register(c)
	obslog.L().Info("ws_connect", zap.String("conn_id", c.id), zap.String("remote", r.RemoteAddr))

	ctx, cancel := context.WithCancel(r.Context())
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		c.writeLoop(ctx, h.opts.PingInterval)
	}()

	h.readLoop(ctx, c)

	c.shutdown("closed")
	h.unregister(c)
	if h.d != nil {
		h.d.Disconnect(c.id)
	}
	cancel()
	obslog.L().Info("ws_disconnect", zap.String("conn_id", c.id), zap.String("reason", c.reason))
}

func (h *Hub) readLoop(ctx context.Context, c *conn) {
	for {
		typ, data, err := c.ws.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status == -1 && !errors.Is(err, context.Canceled) {
				obslog.L().Debug("ws_read_error", zap.String("conn_id", c.id), zap.Error(err))
			}
			return
		}
		if typ != websocket.MessageText {
			h.protocolError(c.id, "protocol.bad_frame", nil, "Could not decode message.")
			continue
		}
		var env relaydto.Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
			h.protocolError(c.id, "protocol.bad_frame", nil, "Could not decode message.")
			continue
		}
		h.dispatch(ctx, c, env)
	}
}

func (h *Hub) dispatch(ctx context.Context, c *conn, env relaydto.Envelope) {
	if h.d == nil {
		return
	}
	data := map[string]string{"Event": env.Event}
	switch env.Event {
	case relaydto.EventJoin:
		var req relaydto.JoinRequest
		if err := env.Decode(&req); err != nil {
			h.protocolError(c.id, "protocol.bad_payload", data, "Malformed join payload.")
			return
		}
		if _, err := h.d.Join(ctx, req.RoomID, c.id, req.DisplayName); err != nil {
			h.protocolError(c.id, "protocol.bad_payload", data, "Malformed join payload.")
		}
	case relaydto.EventMove:
		var req relaydto.MoveRequest
		if err := env.Decode(&req); err != nil {
			h.protocolError(c.id, "protocol.bad_payload", data, "Malformed move payload.")
			return
		}
		// Refusals are already delivered to this connection as moveRejected.
		_ = h.d.Move(ctx, req.RoomID, c.id, req.Move)
	default:
		h.protocolError(c.id, "protocol.unknown_event", data, "Unknown event.")
	}
}

func (h *Hub) protocolError(connID, key string, data any, fallback string) {
	h.out.ProtocolError(connID, h.opts.Messages.Text(key, data, fallback))
}

func (h *Hub) register(c *conn) {
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()
}

func (h *Hub) unregister(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c.id)
	for roomID := range c.rooms {
		subs := h.rooms[roomID]
		delete(subs, c.id)
		if len(subs) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// Subscribe adds connID to roomID's fan-out set. Unknown connections are ignored.
func (h *Hub) Subscribe(roomID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.conns[connID]
	if !ok {
		return
	}
	subs, ok := h.rooms[roomID]
	if !ok {
		subs = make(map[string]*conn)
		h.rooms[roomID] = subs
	}
	subs[connID] = c
	c.rooms[roomID] = struct{}{}
}

// PublishToRoom enqueues one encoded frame on every subscriber of roomID.
// Callers serialize per room, so each subscriber sees the room's frames in call order.
func (h *Hub) PublishToRoom(roomID, event string, payload any) {
	b, ok := encode(event, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[roomID] {
		c.enqueue(b)
	}
}

func (h *Hub) PublishToConnection(connID, event string, payload any) {
	b, ok := encode(event, payload)
	if !ok {
		return
	}
	h.mu.RLock()
	c, found := h.conns[connID]
	h.mu.RUnlock()
	if found {
		c.enqueue(b)
	}
}

// Len is the number of live connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

func (h *Hub) subscribers(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Shutdown closes every connection and waits for writers to finish or ctx to expire.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.RLock()
	for _, c := range h.conns {
		c.shutdown("server shutdown")
	}
	h.mu.RUnlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func encode(event string, payload any) ([]byte, bool) {
	env, err := relaydto.NewEnvelope(event, payload)
	if err == nil {
		var b []byte
		if b, err = json.Marshal(env); err == nil {
			return b, true
		}
	}
	obslog.L().Error("ws_encode_error", zap.String("event", event), zap.Error(err))
	return nil, false
}
