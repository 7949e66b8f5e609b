package journal

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/park285/chess-relay/internal/room"
	"github.com/park285/chess-relay/internal/rules"
)

const defaultTTL = 24 * time.Hour

// Store mirrors accepted moves into one Redis stream per room. It is write-only;
// the relay never reads it back to rebuild state.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Store{rdb: rdb, ttl: ttl}
}

// Open connects to redisURL and verifies it with PING.
func Open(ctx context.Context, redisURL string, ttl time.Duration) (*Store, error) {
	opts, err := clientOptions(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewStore(rdb, ttl), nil
}

// clientOptions accepts redis:// and rediss:// URLs; rediss enables TLS.
func clientOptions(raw string) (*redis.Options, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return opts, nil
}

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func streamKey(roomID string) string {
	return "relay:room:" + strings.TrimSpace(roomID) + ":moves"
}

// Append adds rec to the room's stream and refreshes its expiry. Callers hold the
// room lock, so entries land in ply order.
func (s *Store) Append(ctx context.Context, roomID string, rec room.MoveRecord, pos rules.Position) error {
	key := streamKey(roomID)
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.XAdd(ctx, &redis.XAddArgs{
			Stream: key,
			Values: map[string]any{
				"ply":      rec.Ply,
				"uci":      rec.UCI,
				"san":      rec.SAN,
				"color":    string(rec.Color),
				"captured": rec.Captured,
				"fen":      string(pos),
			},
		})
		p.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("journal %s ply %d: %w", roomID, rec.Ply, err)
	}
	return nil
}
