package archive

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/park285/chess-relay/internal/room"
)

func TestBuildPGNFinished(t *testing.T) {
	res := room.Result{
		RoomID:   "R1",
		White:    `al"ice`,
		Black:    "bob",
		MovesSAN: []string{"f3", "e5", "g4", "Qh4#"},
		Outcome:  "0-1",
		Method:   "checkmate",
		EndedAt:  time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC),
	}
	pgn := BuildPGN(res)
	assert.Contains(t, pgn, `[Date "2026.03.09"]`)
	assert.Contains(t, pgn, `[White "al'ice"]`)
	assert.Contains(t, pgn, `[Termination "checkmate"]`)
	assert.Contains(t, pgn, `[Result "0-1"]`)
	assert.True(t, strings.HasSuffix(pgn, "1. f3 e5 2. g4 Qh4# 0-1\n"), pgn)
}

func TestBuildPGNInProgress(t *testing.T) {
	pgn := BuildPGN(room.Result{RoomID: "R2", MovesSAN: []string{"e4", "e5", "Nf3"}})
	assert.Contains(t, pgn, `[White "?"]`)
	assert.Contains(t, pgn, `[Result "*"]`)
	assert.NotContains(t, pgn, "Termination")
	assert.True(t, strings.HasSuffix(pgn, "1. e4 e5 2. Nf3 *\n"), pgn)
}

func TestPGNFileName(t *testing.T) {
	assert.Equal(t, "R1.pgn", PGNFileName("R1"))
	assert.Equal(t, "a_b_c.pgn", PGNFileName(`a/b"c`))
	assert.Equal(t, "game.pgn", PGNFileName(""))
}

func TestPGNResult(t *testing.T) {
	for in, want := range map[string]string{"1-0": "1-0", "0-1": "0-1", "1/2-1/2": "1/2-1/2", "": "*", "white": "*"} {
		assert.Equal(t, want, pgnResult(in), in)
	}
}

func TestRepositoryRequiresURL(t *testing.T) {
	_, err := NewRepository(context.Background(), "  ")
	require.ErrorIs(t, err, ErrNoDatabaseURL)

	var r *Repository
	assert.NoError(t, r.SaveResult(context.Background(), room.Result{RoomID: "R1"}))
	assert.NoError(t, r.Close())
}
