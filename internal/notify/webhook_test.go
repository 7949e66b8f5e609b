package notify

import (
	"context"
	"encoding/json"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/park285/chess-relay/internal/room"
	"github.com/park285/chess-relay/pkg/relaydto"
)

func serve(t *testing.T, h fasthttp.RequestHandler) func(string) (net.Conn, error) {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: h}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })
	return func(string) (net.Conn, error) { return ln.Dial() }
}

func finished() room.Result {
	return room.Result{
		RoomID:    "R1",
		White:     "alice",
		Black:     "bob",
		MovesUCI:  []string{"f2f3", "e7e5", "g2g4", "d8h4"},
		MovesSAN:  []string{"f3", "e5", "g4", "Qh4#"},
		Position:  "rnb1kbnr/pppp1ppp/8/4p3/6Pq/5P2/PPPPP2P/RNBQKBNR w KQkq - 1 3",
		Outcome:   "0-1",
		Method:    "checkmate",
		StartedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		EndedAt:   time.Date(2026, 1, 2, 3, 9, 5, 0, time.UTC),
	}
}

func TestSaveResultPostsPayload(t *testing.T) {
	var got relaydto.GameFinished
	var auth, ctype string
	dial := serve(t, func(ctx *fasthttp.RequestCtx) {
		auth = string(ctx.Request.Header.Peek("X-Relay-Token"))
		ctype = string(ctx.Request.Header.ContentType())
		_ = json.Unmarshal(ctx.PostBody(), &got)
		ctx.SetStatusCode(fasthttp.StatusNoContent)
	})

	w, err := NewWebhook("http://hooks.local/finished", WithDial(dial), WithHeader("X-Relay-Token", "s3cret"))
	require.NoError(t, err)
	require.NoError(t, w.SaveResult(context.Background(), finished()))

	assert.Equal(t, "s3cret", auth)
	assert.Equal(t, "application/json", ctype)
	assert.Equal(t, "R1", got.RoomID)
	assert.Equal(t, "0-1", got.Result)
	assert.Equal(t, "checkmate", got.Method)
	assert.Equal(t, 4, got.Plies)
	assert.Contains(t, got.PGN, "2. g4 Qh4# 0-1")
	assert.True(t, got.EndedAt.Equal(finished().EndedAt))
}

func TestSaveResultRetriesServerErrors(t *testing.T) {
	var calls int32
	dial := serve(t, func(ctx *fasthttp.RequestCtx) {
		if atomic.AddInt32(&calls, 1) < 3 {
			ctx.SetStatusCode(fasthttp.StatusBadGateway)
			return
		}
		ctx.SetStatusCode(fasthttp.StatusOK)
	})
	w, err := NewWebhook("http://hooks.local/finished", WithDial(dial), WithRetry(3), WithBackoff(time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, w.SaveResult(context.Background(), finished()))
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestSaveResultDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	dial := serve(t, func(ctx *fasthttp.RequestCtx) {
		atomic.AddInt32(&calls, 1)
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		ctx.SetBodyString("nope")
	})
	w, err := NewWebhook("http://hooks.local/finished", WithDial(dial), WithRetry(5), WithBackoff(time.Millisecond))
	require.NoError(t, err)
	err = w.SaveResult(context.Background(), finished())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=400")
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestSaveResultGivesUp(t *testing.T) {
	var calls int32
	dial := serve(t, func(ctx *fasthttp.RequestCtx) {
		atomic.AddInt32(&calls, 1)
		ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
	})
	w, err := NewWebhook("http://hooks.local/finished", WithDial(dial), WithRetry(2), WithBackoff(time.Millisecond))
	require.NoError(t, err)
	err = w.SaveResult(context.Background(), finished())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestNewWebhookRequiresURL(t *testing.T) {
	_, err := NewWebhook(" ")
	assert.ErrorIs(t, err, ErrNoWebhookURL)
}
