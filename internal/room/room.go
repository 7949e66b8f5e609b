package room

import (
	"sync"
	"time"

	"github.com/park285/chess-relay/internal/rules"
)

const maxSeats = 2

// Room owns one authoritative position, its move log and the roster.
// State is only reachable through Exclusive, which serializes every read and write.
type Room struct {
	ID string

	mu    sync.Mutex
	state State
}

// State is the lock-guarded content of a Room.
type State struct {
	roomID       string
	position     rules.Position
	log          []MoveRecord
	participants map[string]*Participant
	seats        [maxSeats]string
	outcome      string
	method       string
	createdAt    time.Time
	updatedAt    time.Time
	now          func() time.Time
}

func newRoom(id string, initial rules.Position, now func() time.Time) *Room {
	t := now()
	return &Room{
		ID: id,
		state: State{
			roomID:       id,
			position:     initial,
			participants: make(map[string]*Participant),
			createdAt:    t,
			updatedAt:    t,
			now:          now,
		},
	}
}

// Exclusive runs fn while holding the room lock. fn must not retain s.
func (r *Room) Exclusive(fn func(s *State)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.state)
}

func (s *State) RoomID() string           { return s.roomID }
func (s *State) Position() rules.Position { return s.position }
func (s *State) Outcome() string          { return s.outcome }
func (s *State) Method() string           { return s.method }
func (s *State) Finished() bool           { return s.outcome != "" }
func (s *State) MoveCount() int           { return len(s.log) }
func (s *State) CreatedAt() time.Time     { return s.createdAt }

// MoveLog returns a copy of the log in acceptance order.
func (s *State) MoveLog() []MoveRecord {
	return append([]MoveRecord(nil), s.log...)
}

// Participant returns the participant for connID, if it has joined.
func (s *State) Participant(connID string) (Participant, bool) {
	p, ok := s.participants[connID]
	if !ok {
		return Participant{}, false
	}
	return *p, true
}

// Join records connID. The first distinct connection takes first, the next takes second,
// later ones become observers. A connection that already joined keeps what it has.
func (s *State) Join(connID, displayName string) (p Participant, added bool) {
	if existing, ok := s.participants[connID]; ok {
		return *existing, false
	}
	seat := SeatNone
	for i, holder := range s.seats {
		if holder == "" {
			s.seats[i] = connID
			seat = seatAt(i)
			break
		}
	}
	np := &Participant{ConnID: connID, DisplayName: displayName, Seat: seat, JoinedAt: s.now()}
	s.participants[connID] = np
	s.updatedAt = np.JoinedAt
	return *np, true
}

// Seated lists seated participants ordered first then second.
func (s *State) Seated() []Participant {
	out := make([]Participant, 0, maxSeats)
	for _, connID := range s.seats {
		if connID == "" {
			continue
		}
		if p, ok := s.participants[connID]; ok {
			out = append(out, *p)
		}
	}
	return out
}

// SeatedCount is the number of occupied seats.
func (s *State) SeatedCount() int {
	n := 0
	for _, connID := range s.seats {
		if connID != "" {
			n++
		}
	}
	return n
}

// Commit replaces the position with res.Position and appends the matching record.
// Both happen together so the log always replays to the stored position.
func (s *State) Commit(res rules.Result) MoveRecord {
	rec := MoveRecord{
		Ply:      len(s.log) + 1,
		From:     res.UCI[:2],
		To:       res.UCI[2:4],
		UCI:      res.UCI,
		SAN:      res.SAN,
		Color:    res.Color,
		Captured: res.Captured,
		At:       s.now(),
	}
	s.position = res.Position
	s.log = append(s.log, rec)
	s.updatedAt = rec.At
	if res.Terminal() {
		s.outcome = res.Outcome
		s.method = res.Method
	}
	return rec
}

// Result builds the finished-game summary; names are taken from the seated roster.
func (s *State) Result() Result {
	res := Result{
		RoomID:    s.roomID,
		Position:  s.position,
		Outcome:   s.outcome,
		Method:    s.method,
		StartedAt: s.createdAt,
		EndedAt:   s.updatedAt,
		MovesUCI:  make([]string, 0, len(s.log)),
		MovesSAN:  make([]string, 0, len(s.log)),
	}
	for _, p := range s.Seated() {
		switch p.Seat {
		case SeatFirst:
			res.White = p.DisplayName
		case SeatSecond:
			res.Black = p.DisplayName
		}
	}
	for _, rec := range s.log {
		res.MovesUCI = append(res.MovesUCI, rec.UCI)
		res.MovesSAN = append(res.MovesSAN, rec.SAN)
	}
	return res
}

func seatAt(i int) Seat {
	if i == 0 {
		return SeatFirst
	}
	return SeatSecond
}
