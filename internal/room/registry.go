package room

import (
	"sort"
	"sync"
	"time"

	"github.com/park285/chess-relay/internal/rules"
)

// Registry maps room ids to rooms for the process lifetime. Rooms are never evicted.
type Registry struct {
	mu      sync.RWMutex
	rooms   map[string]*Room
	initial rules.Position
	now     func() time.Time
}

func NewRegistry(initial rules.Position) *Registry {
	return &Registry{rooms: make(map[string]*Room), initial: initial, now: time.Now}
}

// GetOrCreate returns the room for id, creating it at the initial position on first use.
func (r *Registry) GetOrCreate(id string) *Room {
	r.mu.RLock()
	rm, ok := r.rooms[id]
	r.mu.RUnlock()
	if ok {
		return rm
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if rm, ok := r.rooms[id]; ok {
		return rm
	}
	rm = newRoom(id, r.initial, r.now)
	r.rooms[id] = rm
	return rm
}

// Lookup returns the room for id without creating it.
func (r *Registry) Lookup(id string) (*Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[id]
	return rm, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// IDs returns the known room ids, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.rooms))
	for id := range r.rooms {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}
