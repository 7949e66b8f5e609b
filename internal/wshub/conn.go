package wshub

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/park285/chess-relay/internal/obslog"
)

const writeTimeout = 5 * time.Second

// conn is one accepted WebSocket. Frames leave through send in enqueue order;
// only the writer goroutine touches the socket for writing.
type conn struct {
	id   string
	ws   *websocket.Conn
	send chan []byte

	rooms map[string]struct{}

	done      chan struct{}
	closeOnce sync.Once
	reason    string
}

func newConn(id string, ws *websocket.Conn, queue int) *conn {
	return &conn{
		id:    id,
		ws:    ws,
		send:  make(chan []byte, queue),
		rooms: make(map[string]struct{}),
		done:  make(chan struct{}),
	}
}

// enqueue never blocks. A full queue closes the connection instead of dropping a frame.
func (c *conn) enqueue(b []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- b:
		return true
	default:
		c.shutdown("slow consumer")
		obslog.L().Warn("ws_slow_consumer", zap.String("conn_id", c.id), zap.Int("queue", cap(c.send)))
		return false
	}
}

func (c *conn) shutdown(reason string) {
	c.closeOnce.Do(func() {
		c.reason = reason
		close(c.done)
	})
}

func (c *conn) writeLoop(ctx context.Context, ping time.Duration) {
	var tick <-chan time.Time
	if ping > 0 {
		t := time.NewTicker(ping)
		defer t.Stop()
		tick = t.C
	}
	for {
		select {
		case b := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.ws.Write(wctx, websocket.MessageText, b)
			cancel()
			if err != nil {
				c.shutdown("write failed")
			}
		case <-tick:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.ws.Ping(pctx)
			cancel()
			if err != nil {
				c.shutdown("ping failed")
			}
		case <-c.done:
			c.closeSocket()
			return
		case <-ctx.Done():
			c.shutdown("server shutdown")
			c.closeSocket()
			return
		}
	}
}

func (c *conn) closeSocket() {
	code := websocket.StatusNormalClosure
	if c.reason == "slow consumer" {
		code = websocket.StatusPolicyViolation
	}
	_ = c.ws.Close(code, c.reason)
}
