package session

import (
	"context"
	"sync"

	"github.com/park285/chess-relay/internal/broadcast"
	"github.com/park285/chess-relay/internal/room"
	"github.com/park285/chess-relay/internal/rules"
)

type delivery struct {
	event   string
	payload any
	toRoom  bool
}

// fakePublisher fans room messages out to subscribers the way the hub does.
type fakePublisher struct {
	mu    sync.Mutex
	subs  map[string][]string
	inbox map[string][]delivery
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{subs: map[string][]string{}, inbox: map[string][]delivery{}}
}

func (f *fakePublisher) Subscribe(roomID, connID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.subs[roomID] {
		if c == connID {
			return
		}
	}
	f.subs[roomID] = append(f.subs[roomID], connID)
}

func (f *fakePublisher) PublishToRoom(roomID, event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.subs[roomID] {
		f.inbox[c] = append(f.inbox[c], delivery{event: event, payload: payload, toRoom: true})
	}
}

func (f *fakePublisher) PublishToConnection(connID, event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inbox[connID] = append(f.inbox[connID], delivery{event: event, payload: payload})
}

func (f *fakePublisher) take(connID string) []delivery {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.inbox[connID]
	delete(f.inbox, connID)
	return out
}

type recordedMove struct {
	roomID string
	rec    room.MoveRecord
	pos    rules.Position
}

type fakeRecorder struct {
	mu    sync.Mutex
	moves []recordedMove
	err   error
}

func (r *fakeRecorder) Append(_ context.Context, roomID string, rec room.MoveRecord, pos rules.Position) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.moves = append(r.moves, recordedMove{roomID: roomID, rec: rec, pos: pos})
	return r.err
}

type fakeSink struct {
	mu      sync.Mutex
	results []room.Result
	err     error
}

func (s *fakeSink) SaveResult(_ context.Context, res room.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, res)
	return s.err
}

type harness struct {
	pub   *fakePublisher
	reg   *room.Registry
	coord *Coordinator
}

func newHarness(opts ...Option) *harness {
	eng := rules.New()
	pub := newFakePublisher()
	reg := room.NewRegistry(eng.Initial())
	return &harness{
		pub:   pub,
		reg:   reg,
		coord: NewCoordinator(reg, eng, broadcast.New(pub), opts...),
	}
}

// gatedRecorder holds the first Append open until release is closed.
type gatedRecorder struct {
	fakeRecorder
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedRecorder() *gatedRecorder {
	return &gatedRecorder{entered: make(chan struct{}), release: make(chan struct{})}
}

func (r *gatedRecorder) Append(ctx context.Context, roomID string, rec room.MoveRecord, pos rules.Position) error {
	first := false
	r.once.Do(func() { first = true })
	if first {
		close(r.entered)
		<-r.release
	}
	return r.fakeRecorder.Append(ctx, roomID, rec, pos)
}
