package broadcast

import (
	"strings"

	"github.com/park285/chess-relay/internal/room"
	"github.com/park285/chess-relay/pkg/relaydto"
)

// Publisher is the room-scoped pub/sub primitive supplied by the transport.
// For one room, PublishToRoom calls must reach each subscriber in call order.
type Publisher interface {
	Subscribe(roomID, connID string)
	PublishToRoom(roomID, event string, payload any)
	PublishToConnection(connID, event string, payload any)
}

// Broadcaster formats room state into wire payloads and hands them to a Publisher.
type Broadcaster struct {
	pub Publisher
}

func New(pub Publisher) *Broadcaster {
	return &Broadcaster{pub: pub}
}

func (b *Broadcaster) Subscribe(roomID, connID string) {
	b.pub.Subscribe(roomID, connID)
}

func (b *Broadcaster) SeatAssigned(connID string, seat room.Seat) {
	b.pub.PublishToConnection(connID, relaydto.EventSeatAssigned, relaydto.SeatNotice{
		Seat:  seat.Label(),
		Color: string(seat.Color()),
	})
}

func (b *Broadcaster) SnapshotTo(connID string, snap relaydto.Snapshot) {
	b.pub.PublishToConnection(connID, relaydto.EventStateSnapshot, snap)
}

func (b *Broadcaster) SnapshotToRoom(roomID string, snap relaydto.Snapshot) {
	b.pub.PublishToRoom(roomID, relaydto.EventStateSnapshot, snap)
}

func (b *Broadcaster) RosterToRoom(roomID string, roster relaydto.Roster) {
	b.pub.PublishToRoom(roomID, relaydto.EventRosterUpdate, roster)
}

func (b *Broadcaster) RosterTo(connID string, roster relaydto.Roster) {
	b.pub.PublishToConnection(connID, relaydto.EventRosterUpdate, roster)
}

func (b *Broadcaster) CountToRoom(roomID string, n int) {
	b.pub.PublishToRoom(roomID, relaydto.EventParticipantCount, relaydto.ParticipantCount{Count: n})
}

func (b *Broadcaster) CountTo(connID string, n int) {
	b.pub.PublishToConnection(connID, relaydto.EventParticipantCount, relaydto.ParticipantCount{Count: n})
}

// Rejected is never broadcast; only the requester sees it.
func (b *Broadcaster) Rejected(connID string, rej relaydto.Rejection) {
	b.pub.PublishToConnection(connID, relaydto.EventMoveRejected, rej)
}

func (b *Broadcaster) ProtocolError(connID, message string) {
	b.pub.PublishToConnection(connID, relaydto.EventError, relaydto.ProtocolError{Message: message})
}

// Snapshot projects the room into {position, moveLog}. It makes no rules calls.
func Snapshot(s *room.State) relaydto.Snapshot {
	log := s.MoveLog()
	entries := make([]relaydto.MoveEntry, 0, len(log))
	for _, rec := range log {
		entries = append(entries, relaydto.MoveEntry{
			From:     rec.From,
			To:       rec.To,
			SAN:      rec.SAN,
			Color:    string(rec.Color),
			Captured: rec.Captured,
		})
	}
	return relaydto.Snapshot{
		Position: string(s.Position()),
		MoveLog:  entries,
		Outcome:  s.Outcome(),
		Method:   s.Method(),
	}
}

// Roster lists seated participants, first then second.
func Roster(s *room.State) relaydto.Roster {
	seated := s.Seated()
	players := make([]relaydto.RosterEntry, 0, len(seated))
	for _, p := range seated {
		players = append(players, relaydto.RosterEntry{
			ID:          ShortID(p.ConnID),
			DisplayName: p.DisplayName,
			Seat:        p.Seat.Label(),
			Color:       string(p.Seat.Color()),
		})
	}
	return relaydto.Roster{Players: players}
}

// ShortID is the public identity derived from a connection id.
func ShortID(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= 8 {
		return s
	}
	return s[:8]
}
