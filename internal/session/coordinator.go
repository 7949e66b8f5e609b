package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/park285/chess-relay/internal/broadcast"
	"github.com/park285/chess-relay/internal/msgcat"
	"github.com/park285/chess-relay/internal/obslog"
	"github.com/park285/chess-relay/internal/room"
	"github.com/park285/chess-relay/internal/rules"
	"github.com/park285/chess-relay/pkg/relaydto"
)

// Recorder mirrors accepted moves somewhere outside the process.
type Recorder interface {
	Append(ctx context.Context, roomID string, rec room.MoveRecord, pos rules.Position) error
}

// ResultSink receives each game once it reaches a terminal outcome.
type ResultSink interface {
	SaveResult(ctx context.Context, res room.Result) error
}

type Option func(*Coordinator)

// recordTimeout bounds how long a journal write may hold a room.
const recordTimeout = 2 * time.Second

func WithRecorder(r Recorder) Option {
	return func(c *Coordinator) { c.recorder = r }
}

// WithResultSink may be given more than once; sinks run in order.
func WithResultSink(s ResultSink) Option {
	return func(c *Coordinator) {
		if s != nil {
			c.sinks = append(c.sinks, s)
		}
	}
}

func WithCatalog(cat *msgcat.Catalog) Option {
	return func(c *Coordinator) { c.msgs = cat }
}

func WithNameLimit(n int) Option {
	return func(c *Coordinator) { c.nameLimit = n }
}

// Coordinator handles join, move and disconnect for every connection.
// All room state is read and written inside Room.Exclusive, and room broadcasts
// are issued before the lock is released so their order matches acceptance order.
type Coordinator struct {
	rooms     *room.Registry
	engine    rules.Engine
	out       *broadcast.Broadcaster
	msgs      *msgcat.Catalog
	recorder  Recorder
	sinks     []ResultSink
	nameLimit int

	mu     sync.Mutex
	joined map[string]map[string]struct{}
}

func NewCoordinator(rooms *room.Registry, engine rules.Engine, out *broadcast.Broadcaster, opts ...Option) *Coordinator {
	c := &Coordinator{
		rooms:     rooms,
		engine:    engine,
		out:       out,
		nameLimit: 24,
		joined:    make(map[string]map[string]struct{}),
	}
	for _, o := range opts {
		o(c)
	}
	if c.msgs == nil {
		c.msgs = msgcat.MustDefault()
	}
	return c
}

// Join seats connID in roomID (creating the room on first use) and syncs it.
// Rejoining with the same connID changes nothing and re-delivers state privately.
func (c *Coordinator) Join(ctx context.Context, roomID, connID, displayName string) (room.Participant, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return room.Participant{}, ErrEmptyRoomID
	}
	name := normalizeName(displayName, c.nameLimit)
	rm := c.rooms.GetOrCreate(roomID)

	var (
		p     room.Participant
		added bool
		count int
	)
	rm.Exclusive(func(s *room.State) {
		p, added = s.Join(connID, name)
		count = s.SeatedCount()

		c.out.Subscribe(roomID, connID)
		c.out.SeatAssigned(connID, p.Seat)
		c.out.SnapshotTo(connID, broadcast.Snapshot(s))

		roster := broadcast.Roster(s)
		if added {
			c.out.CountToRoom(roomID, count)
			c.out.RosterToRoom(roomID, roster)
			return
		}
		c.out.CountTo(connID, count)
		c.out.RosterTo(connID, roster)
	})
	c.track(roomID, connID)

	obslog.L().Info("relay_join",
		zap.String("room_id", roomID),
		zap.String("conn_id", connID),
		zap.String("display_name", p.DisplayName),
		zap.String("seat", p.Seat.Label()),
		zap.Bool("rejoin", !added),
		zap.Int("participant_count", count),
	)
	return p, nil
}

// Move validates req for connID and, if accepted, commits it and broadcasts a snapshot.
// A refusal is returned as *MoveError and sent to connID only.
func (c *Coordinator) Move(ctx context.Context, roomID, connID string, req relaydto.MovePayload) error {
	roomID = strings.TrimSpace(roomID)
	rm, ok := c.rooms.Lookup(roomID)
	if !ok {
		return c.reject(roomID, connID, &MoveError{Kind: ErrRoomNotFound})
	}

	var (
		merr     *MoveError
		rec      room.MoveRecord
		finished *room.Result
	)
	rm.Exclusive(func(s *room.State) {
		p, ok := s.Participant(connID)
		if !ok || p.Seat == room.SeatNone {
			merr = &MoveError{Kind: ErrNotAParticipant}
			return
		}
		turn, err := c.engine.SideToMove(s.Position())
		if err != nil {
			obslog.L().Error("relay_position_error", zap.String("room_id", roomID), zap.Error(err))
			merr = illegal("")
			return
		}
		if turn != p.Seat.Color() {
			merr = &MoveError{Kind: ErrOutOfTurn}
			return
		}
		if s.Finished() {
			merr = illegal("game is over")
			return
		}
		cand, err := rules.Normalize(rules.MoveRequest{From: req.From, To: req.To, Promotion: req.Promotion})
		if err != nil {
			merr = illegal(rejectionReason(err))
			return
		}
		res, err := c.engine.Apply(s.Position(), cand)
		if err != nil {
			if !errors.Is(err, rules.ErrIllegal) {
				obslog.L().Error("relay_rules_error", zap.String("room_id", roomID), zap.Error(err))
			}
			merr = illegal(rejectionReason(err))
			return
		}

		rec = s.Commit(res)
		c.out.SnapshotToRoom(roomID, broadcast.Snapshot(s))
		// Journal under the lock so the stream follows ply order.
		c.record(ctx, roomID, rec, s.Position())
		if s.Finished() {
			r := s.Result()
			finished = &r
		}
	})
	if merr != nil {
		return c.reject(roomID, connID, merr)
	}

	obslog.L().Info("relay_move",
		zap.String("room_id", roomID),
		zap.String("conn_id", connID),
		zap.Int("ply", rec.Ply),
		zap.String("uci", rec.UCI),
		zap.String("san", rec.SAN),
		zap.String("color", string(rec.Color)),
		zap.String("captured", rec.Captured),
	)
	if finished != nil {
		c.finish(ctx, *finished)
	}
	return nil
}

// Disconnect forgets connID's subscriptions bookkeeping. Seats are never freed.
func (c *Coordinator) Disconnect(connID string) {
	c.mu.Lock()
	rooms := make([]string, 0, len(c.joined[connID]))
	for id := range c.joined[connID] {
		rooms = append(rooms, id)
	}
	delete(c.joined, connID)
	c.mu.Unlock()

	obslog.L().Info("relay_disconnect", zap.String("conn_id", connID), zap.Strings("rooms", rooms))
}

// Summary reports a room's public state, or false if no one ever joined it.
func (c *Coordinator) Summary(roomID string) (relaydto.RoomSummary, bool) {
	rm, ok := c.rooms.Lookup(roomID)
	if !ok {
		return relaydto.RoomSummary{}, false
	}
	var sum relaydto.RoomSummary
	rm.Exclusive(func(s *room.State) {
		sum = relaydto.RoomSummary{
			RoomID:           s.RoomID(),
			ParticipantCount: s.SeatedCount(),
			MoveCount:        s.MoveCount(),
			Outcome:          s.Outcome(),
			Method:           s.Method(),
		}
		if !s.Finished() {
			if turn, err := c.engine.SideToMove(s.Position()); err == nil {
				sum.SideToMove = string(turn)
			}
		}
	})
	return sum, true
}

// Result returns the current game record of a room, finished or not.
func (c *Coordinator) Result(roomID string) (room.Result, bool) {
	rm, ok := c.rooms.Lookup(roomID)
	if !ok {
		return room.Result{}, false
	}
	var res room.Result
	rm.Exclusive(func(s *room.State) { res = s.Result() })
	return res, true
}

func (c *Coordinator) RoomCount() int { return c.rooms.Len() }

// RoomIDs lists every room created since startup, sorted.
func (c *Coordinator) RoomIDs() []string { return c.rooms.IDs() }

func (c *Coordinator) reject(roomID, connID string, e *MoveError) error {
	c.out.Rejected(connID, relaydto.Rejection{Code: e.Code(), Message: c.message(e)})
	obslog.L().Info("relay_move_rejected",
		zap.String("room_id", roomID),
		zap.String("conn_id", connID),
		zap.String("code", e.Code()),
		zap.String("reason", e.Reason),
	)
	return e
}

func (c *Coordinator) message(e *MoveError) string {
	switch e.Kind {
	case ErrRoomNotFound:
		return c.msgs.Text("reject.room_not_found", nil, "Game not found")
	case ErrNotAParticipant:
		return c.msgs.Text("reject.not_a_participant", nil, "You are not part of this game")
	case ErrOutOfTurn:
		return c.msgs.Text("reject.out_of_turn", nil, "Not your turn!")
	}
	generic := c.msgs.Text("reject.illegal_move_generic", nil, "Invalid move")
	if e.Reason == "" {
		return generic
	}
	return c.msgs.Text("reject.illegal_move", map[string]string{"Reason": e.Reason}, generic)
}

func (c *Coordinator) record(ctx context.Context, roomID string, rec room.MoveRecord, pos rules.Position) {
	if c.recorder == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, recordTimeout)
	defer cancel()
	if err := c.recorder.Append(ctx, roomID, rec, pos); err != nil {
		obslog.L().Warn("journal_append_error", zap.String("room_id", roomID), zap.Int("ply", rec.Ply), zap.Error(err))
	}
}

func (c *Coordinator) finish(ctx context.Context, res room.Result) {
	obslog.L().Info("relay_game_over",
		zap.String("room_id", res.RoomID),
		zap.String("outcome", res.Outcome),
		zap.String("method", res.Method),
		zap.Int("plies", len(res.MovesUCI)),
	)
	for _, s := range c.sinks {
		if err := s.SaveResult(ctx, res); err != nil {
			obslog.L().Error("relay_result_sink_error", zap.String("room_id", res.RoomID), zap.Error(err))
		}
	}
}

func (c *Coordinator) track(roomID, connID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.joined[connID]
	if !ok {
		set = make(map[string]struct{})
		c.joined[connID] = set
	}
	set[roomID] = struct{}{}
}

func rejectionReason(err error) string {
	var rej *rules.Rejection
	if errors.As(err, &rej) {
		return rej.Reason
	}
	return ""
}
