package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/park285/chess-relay/internal/obslog"
	"github.com/park285/chess-relay/internal/room"
)

var ErrNoDatabaseURL = errors.New("DATABASE_URL is required")

const schema = `CREATE TABLE IF NOT EXISTS relay_games (
    room_id       TEXT PRIMARY KEY,
    white_name    TEXT NOT NULL DEFAULT '',
    black_name    TEXT NOT NULL DEFAULT '',
    result        TEXT NOT NULL,
    result_method TEXT NOT NULL DEFAULT '',
    moves_uci     JSONB NOT NULL,
    moves_san     JSONB NOT NULL,
    final_fen     TEXT NOT NULL,
    pgn           TEXT NOT NULL,
    started_at    TIMESTAMPTZ NOT NULL,
    ended_at      TIMESTAMPTZ NOT NULL,
    duration_ms   BIGINT NOT NULL DEFAULT 0
)`

const upsert = `INSERT INTO relay_games (
    room_id, white_name, black_name, result, result_method,
    moves_uci, moves_san, final_fen, pgn, started_at, ended_at, duration_ms
  ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
  ON CONFLICT (room_id) DO UPDATE SET
    white_name=EXCLUDED.white_name,
    black_name=EXCLUDED.black_name,
    result=EXCLUDED.result,
    result_method=EXCLUDED.result_method,
    moves_uci=EXCLUDED.moves_uci,
    moves_san=EXCLUDED.moves_san,
    final_fen=EXCLUDED.final_fen,
    pgn=EXCLUDED.pgn,
    started_at=EXCLUDED.started_at,
    ended_at=EXCLUDED.ended_at,
    duration_ms=EXCLUDED.duration_ms`

// Repository stores finished games in Postgres.
type Repository struct {
	db *sql.DB
}

func NewRepository(ctx context.Context, databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, ErrNoDatabaseURL
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if _, err := db.ExecContext(pctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure relay_games: %w", err)
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// SaveResult upserts res keyed by room id. A reused room id overwrites the earlier game.
func (r *Repository) SaveResult(ctx context.Context, res room.Result) error {
	if r == nil || r.db == nil {
		return nil
	}
	movesUCI, err := json.Marshal(nonNil(res.MovesUCI))
	if err != nil {
		return err
	}
	movesSAN, err := json.Marshal(nonNil(res.MovesSAN))
	if err != nil {
		return err
	}
	duration := res.EndedAt.Sub(res.StartedAt).Milliseconds()
	if duration < 0 {
		duration = 0
	}

	_, err = r.db.ExecContext(ctx, upsert,
		res.RoomID, res.White, res.Black,
		pgnResult(res.Outcome), strings.TrimSpace(res.Method),
		string(movesUCI), string(movesSAN), string(res.Position), BuildPGN(res),
		res.StartedAt, res.EndedAt, duration,
	)
	if err != nil {
		return fmt.Errorf("upsert relay_games %s: %w", res.RoomID, err)
	}
	obslog.L().Info("archive_persist",
		zap.String("room_id", res.RoomID),
		zap.String("outcome", res.Outcome),
		zap.String("method", res.Method),
	)
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
