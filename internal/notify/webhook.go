package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/chess-relay/internal/archive"
	"github.com/park285/chess-relay/internal/obslog"
	"github.com/park285/chess-relay/internal/room"
	"github.com/park285/chess-relay/pkg/relaydto"
)

var ErrNoWebhookURL = errors.New("webhook url required")

// Webhook POSTs finished games to a fixed URL.
type Webhook struct {
	url     string
	http    *fasthttp.Client
	headers map[string]string

	timeout  time.Duration
	retryMax int
	backoff  time.Duration
}

type Option func(*Webhook)

func WithTimeout(d time.Duration) Option {
	return func(w *Webhook) { w.timeout = d }
}

func WithRetry(max int) Option {
	return func(w *Webhook) { w.retryMax = max }
}

func WithBackoff(base time.Duration) Option {
	return func(w *Webhook) { w.backoff = base }
}

func WithHeader(k, v string) Option {
	return func(w *Webhook) {
		if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
			w.headers[k] = v
		}
	}
}

// WithDial replaces the TCP dialer, e.g. with an in-memory listener.
func WithDial(dial func(addr string) (net.Conn, error)) Option {
	return func(w *Webhook) { w.http.Dial = dial }
}

func NewWebhook(url string, opts ...Option) (*Webhook, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, ErrNoWebhookURL
	}
	w := &Webhook{
		url:      url,
		http:     &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 16},
		headers:  map[string]string{},
		timeout:  10 * time.Second,
		retryMax: 3,
		backoff:  100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// SaveResult announces res. Network errors and 5xx responses are retried with backoff.
func (w *Webhook) SaveResult(ctx context.Context, res room.Result) error {
	body, err := json.Marshal(Payload(res))
	if err != nil {
		return fmt.Errorf("marshal webhook: %w", err)
	}
	if err := w.post(ctx, body); err != nil {
		return err
	}
	obslog.L().Info("notify_sent", zap.String("room_id", res.RoomID), zap.String("outcome", res.Outcome))
	return nil
}

// Payload is the JSON body sent for res.
func Payload(res room.Result) relaydto.GameFinished {
	return relaydto.GameFinished{
		RoomID:    res.RoomID,
		White:     res.White,
		Black:     res.Black,
		Result:    res.Outcome,
		Method:    res.Method,
		Plies:     len(res.MovesSAN),
		FinalFEN:  string(res.Position),
		PGN:       archive.BuildPGN(res),
		StartedAt: res.StartedAt,
		EndedAt:   res.EndedAt,
	}
}

func (w *Webhook) post(ctx context.Context, body []byte) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(w.url)
	req.Header.SetContentType("application/json")
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}
	req.SetBody(body)

	attempts := w.retryMax
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := w.http.DoDeadline(req, resp, w.deadline(ctx))
		if err == nil {
			status := resp.StatusCode()
			if status >= 200 && status < 300 {
				return nil
			}
			err = fmt.Errorf("webhook status=%d body=%s", status, truncate(string(resp.Body()), 256))
			if !shouldRetryStatus(status) {
				return err
			}
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		obslog.L().Warn("notify_retry", zap.Int("attempt", attempt), zap.Error(err))
		if sleepErr := sleepWithContext(ctx, w.backoffFor(attempt)); sleepErr != nil {
			return lastErr
		}
	}
	return fmt.Errorf("webhook failed after %d attempts: %w", attempts, lastErr)
}

func (w *Webhook) deadline(ctx context.Context) time.Time {
	own := time.Now().Add(w.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(own) {
		return dl
	}
	return own
}

func (w *Webhook) backoffFor(attempt int) time.Duration {
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * w.backoff
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
