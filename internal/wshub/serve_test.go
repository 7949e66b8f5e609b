package wshub

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/chess-relay/internal/broadcast"
	"github.com/park285/chess-relay/internal/relayclient"
	"github.com/park285/chess-relay/internal/room"
	"github.com/park285/chess-relay/internal/rules"
	"github.com/park285/chess-relay/internal/session"
	"github.com/park285/chess-relay/pkg/relaydto"
)

// serve runs h behind a real listener with a coordinator attached.
func serve(t *testing.T, h *Hub) string {
	t.Helper()
	eng := rules.New()
	h.Attach(session.NewCoordinator(room.NewRegistry(eng.Initial()), eng, broadcast.New(h)))
	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = h.Shutdown(ctx)
		srv.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialClient(t *testing.T, url string) *relayclient.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := relayclient.Dial(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func dialRaw(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ws, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close(websocket.StatusNormalClosure, "") })
	return ws
}

// readEvent reads raw frames until one named event arrives.
func readEvent(t *testing.T, ctx context.Context, ws *websocket.Conn, event string) relaydto.Envelope {
	t.Helper()
	for {
		var env relaydto.Envelope
		require.NoError(t, wsjson.Read(ctx, ws, &env))
		if env.Event == event {
			return env
		}
	}
}

// snapshotAt waits for the snapshot with n moves and fails on any error frame before it.
func snapshotAt(t *testing.T, ctx context.Context, c *relayclient.Client, n int) relaydto.Snapshot {
	t.Helper()
	for {
		env, err := c.Next(ctx)
		require.NoError(t, err)
		require.NotEqual(t, relaydto.EventError, env.Event, "unexpected error frame: %s", env.Data)
		if env.Event != relaydto.EventStateSnapshot {
			continue
		}
		var snap relaydto.Snapshot
		require.NoError(t, env.Decode(&snap))
		if len(snap.MoveLog) == n {
			return snap
		}
		require.Less(t, len(snap.MoveLog), n, "snapshot skipped past %d moves", n)
	}
}

func TestServeFansOutMovesInOrder(t *testing.T) {
	url := serve(t, New(Options{}))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a := dialClient(t, url)
	b := dialClient(t, url)
	var seat relaydto.SeatNotice
	require.NoError(t, a.Join(ctx, "R1", "alice"))
	require.NoError(t, a.Expect(ctx, relaydto.EventSeatAssigned, &seat))
	assert.Equal(t, "white", seat.Color)
	require.NoError(t, b.Join(ctx, "R1", "bob"))
	require.NoError(t, b.Expect(ctx, relaydto.EventSeatAssigned, &seat))
	assert.Equal(t, "black", seat.Color)

	plies := []struct {
		mover *relayclient.Client
		move  relaydto.MovePayload
	}{
		{a, relaydto.MovePayload{From: "e2", To: "e4"}},
		{b, relaydto.MovePayload{From: "e7", To: "e5"}},
		{a, relaydto.MovePayload{From: "g1", To: "f3"}},
	}
	var last [2]relaydto.Snapshot
	for i, p := range plies {
		require.NoError(t, p.mover.Move(ctx, "R1", p.move))
		// snapshotAt fails if a client sees the plies out of order.
		last[0] = snapshotAt(t, ctx, a, i+1)
		last[1] = snapshotAt(t, ctx, b, i+1)
	}
	for _, snap := range last {
		require.Len(t, snap.MoveLog, 3)
		assert.Equal(t, []string{"e4", "e5", "Nf3"}, []string{snap.MoveLog[0].SAN, snap.MoveLog[1].SAN, snap.MoveLog[2].SAN})
		assert.Equal(t, "black", snap.MoveLog[1].Color)
	}
}

func TestServeProtocolErrorsStayPrivate(t *testing.T) {
	url := serve(t, New(Options{}))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	raw := dialRaw(t, url)
	join, err := relaydto.NewEnvelope(relaydto.EventJoin, relaydto.JoinRequest{RoomID: "R1", DisplayName: "raw"})
	require.NoError(t, err)
	require.NoError(t, wsjson.Write(ctx, raw, join))
	readEvent(t, ctx, raw, relaydto.EventSeatAssigned)

	other := dialClient(t, url)
	require.NoError(t, other.Join(ctx, "R1", "bob"))
	require.NoError(t, other.Expect(ctx, relaydto.EventSeatAssigned, nil))

	require.NoError(t, raw.Write(ctx, websocket.MessageBinary, []byte(`{"event":"join"}`)))
	var pe relaydto.ProtocolError
	require.NoError(t, readEvent(t, ctx, raw, relaydto.EventError).Decode(&pe))
	assert.Equal(t, "Could not decode message.", pe.Message)

	require.NoError(t, raw.Write(ctx, websocket.MessageText, []byte(`{"event":"offerDraw","data":{}}`)))
	require.NoError(t, readEvent(t, ctx, raw, relaydto.EventError).Decode(&pe))
	assert.Equal(t, "Unknown event offerDraw.", pe.Message)

	// The connection survives both, and the other player never saw them.
	mv, err := relaydto.NewEnvelope(relaydto.EventMove, relaydto.MoveRequest{RoomID: "R1", Move: relaydto.MovePayload{From: "e2", To: "e4"}})
	require.NoError(t, err)
	require.NoError(t, wsjson.Write(ctx, raw, mv))
	snapshotAt(t, ctx, other, 1)
}

func TestServeClosesSlowConsumer(t *testing.T) {
	// Join sends exactly four frames, so the queue fills only once the flood starts.
	h := New(Options{SendQueue: 4})
	url := serve(t, h)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c := dialClient(t, url)
	require.NoError(t, c.Join(ctx, "R1", "alice"))
	require.NoError(t, c.Expect(ctx, relaydto.EventRosterUpdate, nil))

	filler := relaydto.ProtocolError{Message: strings.Repeat("x", 4096)}
	for i := 0; i < 5000; i++ {
		h.PublishToRoom("R1", relaydto.EventError, filler)
	}

	var err error
	for err == nil {
		_, err = c.Next(ctx)
	}
	require.ErrorIs(t, err, relayclient.ErrClosed)
	assert.Equal(t, websocket.StatusPolicyViolation, websocket.CloseStatus(err))
	require.Eventually(t, func() bool { return h.Len() == 0 }, 5*time.Second, 10*time.Millisecond)
}
