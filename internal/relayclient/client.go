package relayclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/chess-relay/pkg/relaydto"
)

var ErrClosed = errors.New("relay client closed")

// eventBuffer is how many frames may wait for Next before the reader stops
// reading. The relay then sees a slow consumer and closes the connection.
const eventBuffer = 256

type EventCallback func(env relaydto.Envelope)

type Option func(*Client)

// WithPingInterval enables keepalive pings. Zero disables them.
func WithPingInterval(d time.Duration) Option {
	return func(c *Client) { c.pingInterval = d }
}

func WithHeader(k, v string) Option {
	return func(c *Client) {
		if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
			c.header.Set(k, v)
		}
	}
}

// Client is a single relay connection. It does not reconnect: the relay treats
// a new connection as a new participant.
type Client struct {
	url          string
	header       http.Header
	pingInterval time.Duration

	conn   *websocket.Conn
	events chan relaydto.Envelope

	cbM sync.RWMutex
	cbs []EventCallback

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	errM    sync.Mutex
	readErr error
}

func Dial(ctx context.Context, url string, opts ...Option) (*Client, error) {
	c := &Client{url: url, header: http.Header{}}
	for _, o := range opts {
		o(c)
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(dialCtx, c.url, &websocket.DialOptions{
		CompressionMode: websocket.CompressionDisabled,
		HTTPHeader:      c.header,
	})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c.conn = conn
	c.events = make(chan relaydto.Envelope, eventBuffer)
	c.ctx, c.cancel = context.WithCancel(context.Background())

	c.wg.Add(1)
	go c.listen()
	if c.pingInterval > 0 {
		c.wg.Add(1)
		go c.pingLoop()
	}
	return c, nil
}

// OnEvent registers cb for every inbound frame. Callbacks run on the read goroutine.
func (c *Client) OnEvent(cb EventCallback) {
	c.cbM.Lock()
	defer c.cbM.Unlock()
	c.cbs = append(c.cbs, cb)
}

func (c *Client) Join(ctx context.Context, roomID, displayName string) error {
	return c.send(ctx, relaydto.EventJoin, relaydto.JoinRequest{RoomID: roomID, DisplayName: displayName})
}

func (c *Client) Move(ctx context.Context, roomID string, mv relaydto.MovePayload) error {
	return c.send(ctx, relaydto.EventMove, relaydto.MoveRequest{RoomID: roomID, Move: mv})
}

// Send writes an arbitrary event, including ones the relay does not know.
func (c *Client) Send(ctx context.Context, event string, payload any) error {
	return c.send(ctx, event, payload)
}

func (c *Client) send(ctx context.Context, event string, payload any) error {
	env, err := relaydto.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	return wsjson.Write(ctx, c.conn, env)
}

// Events exposes the inbound stream. It is closed when the connection ends.
// Frames are never dropped: an undrained stream stalls the reader.
func (c *Client) Events() <-chan relaydto.Envelope { return c.events }

// Next returns the next inbound frame.
func (c *Client) Next(ctx context.Context) (relaydto.Envelope, error) {
	select {
	case env, ok := <-c.events:
		if !ok {
			return relaydto.Envelope{}, c.err()
		}
		return env, nil
	case <-ctx.Done():
		return relaydto.Envelope{}, ctx.Err()
	}
}

// Expect skips frames until one named event arrives and decodes it into v.
func (c *Client) Expect(ctx context.Context, event string, v any) error {
	for {
		env, err := c.Next(ctx)
		if err != nil {
			return err
		}
		if env.Event != event {
			continue
		}
		if v == nil {
			return nil
		}
		return env.Decode(v)
	}
}

func (c *Client) Close() error {
	c.cancel()
	err := c.conn.Close(websocket.StatusNormalClosure, "bye")
	c.wg.Wait()
	return err
}

func (c *Client) listen() {
	defer c.wg.Done()
	defer close(c.events)
	for {
		var env relaydto.Envelope
		if err := wsjson.Read(c.ctx, c.conn, &env); err != nil {
			c.setErr(err)
			return
		}
		c.cbM.RLock()
		cbs := make([]EventCallback, len(c.cbs))
		copy(cbs, c.cbs)
		c.cbM.RUnlock()
		for _, cb := range cbs {
			cb(env)
		}
		select {
		case c.events <- env:
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Client) pingLoop() {
	defer c.wg.Done()
	t := time.NewTicker(c.pingInterval)
	defer t.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-t.C:
			ctx, cancel := context.WithTimeout(c.ctx, 3*time.Second)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (c *Client) setErr(err error) {
	c.errM.Lock()
	defer c.errM.Unlock()
	if c.readErr == nil {
		c.readErr = err
	}
}

func (c *Client) err() error {
	c.errM.Lock()
	defer c.errM.Unlock()
	if c.readErr == nil {
		return ErrClosed
	}
	return fmt.Errorf("%w: %w", ErrClosed, c.readErr)
}
