package room

import (
	"time"

	"github.com/park285/chess-relay/internal/rules"
)

// Seat is a fixed assignment of a connection to one side for the life of a room.
type Seat string

const (
	SeatNone   Seat = ""
	SeatFirst  Seat = "first"
	SeatSecond Seat = "second"
)

// Color maps first to white and second to black. Observers have no color.
func (s Seat) Color() rules.Color {
	switch s {
	case SeatFirst:
		return rules.White
	case SeatSecond:
		return rules.Black
	default:
		return ""
	}
}

// Label is the wire form; observers are reported as "observer".
func (s Seat) Label() string {
	if s == SeatNone {
		return "observer"
	}
	return string(s)
}

// Participant is a connection that joined a room. Seat is SeatNone for observers.
type Participant struct {
	ConnID      string
	DisplayName string
	Seat        Seat
	JoinedAt    time.Time
}

// MoveRecord describes one accepted move. Records are never modified once appended.
type MoveRecord struct {
	Ply      int
	From     string
	To       string
	UCI      string
	SAN      string
	Color    rules.Color
	Captured string
	At       time.Time
}

// Result summarises a finished game for archive and webhook sinks.
type Result struct {
	RoomID    string
	White     string
	Black     string
	MovesUCI  []string
	MovesSAN  []string
	Position  rules.Position
	Outcome   string
	Method    string
	StartedAt time.Time
	EndedAt   time.Time
}
