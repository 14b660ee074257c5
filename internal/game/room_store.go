package game

import (
	"sync"

	"github.com/google/uuid"
)

// RoomStore is the process-wide registry of live rooms, keyed by room id.
type RoomStore struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

func NewRoomStore() *RoomStore {
	return &RoomStore{rooms: make(map[string]*Room)}
}

// Add registers the room. Short ids can collide with a live room; on
// collision the incoming room is re-minted rather than overwriting.
func (s *RoomStore) Add(room *Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if _, exists := s.rooms[room.ID]; !exists {
			break
		}
		room.ID = uuid.NewString()[:8]
	}
	s.rooms[room.ID] = room
}

func (s *RoomStore) Get(id string) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	return r, ok
}

func (s *RoomStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, id)
}

func (s *RoomStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}
