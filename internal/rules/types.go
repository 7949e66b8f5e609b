package rules

import (
	"errors"
	"strings"
)

// Color identifies a side of the board.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// Position is a FEN string. It is treated as an opaque, immutable value by callers.
type Position string

// MoveRequest is a candidate move in coordinate form (e2, e4, optional q/r/b/n).
type MoveRequest struct {
	From      string
	To        string
	Promotion string
}

// UCI returns the request in UCI long algebraic form.
func (r MoveRequest) UCI() string {
	return strings.ToLower(r.From + r.To + r.Promotion)
}

// Result is the outcome of an accepted move.
type Result struct {
	Position Position
	UCI      string
	SAN      string
	Color    Color
	// Captured is the captured piece kind (p, n, b, r, q) or empty.
	Captured string
	Check    bool
	// Outcome is 1-0, 0-1, 1/2-1/2 once the game has ended, else empty.
	Outcome string
	Method  string
}

// Terminal reports whether the move ended the game.
func (r Result) Terminal() bool { return r.Outcome != "" }

// Engine is the rules capability consumed by the session coordinator.
type Engine interface {
	Initial() Position
	SideToMove(p Position) (Color, error)
	Apply(p Position, req MoveRequest) (Result, error)
}

var ErrIllegal = errors.New("illegal move")

// Rejection carries the human-readable reason a move was refused.
type Rejection struct {
	Reason string
}

func (r *Rejection) Error() string { return r.Reason }

func (r *Rejection) Unwrap() error { return ErrIllegal }

func reject(reason string) error { return &Rejection{Reason: reason} }
