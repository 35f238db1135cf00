package roomstate

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/example/collab-docs-demo/domain/collab"
)

// DefaultHistoryCap bounds per-room message history. Appends beyond the cap
// evict the oldest entries, FIFO by count.
const DefaultHistoryCap = 100

// ReplayLimit is how many recent messages a joining client receives.
const ReplayLimit = 50

// roomState holds all mutable state for one room. Rooms are created lazily
// on first use and retained for the life of the process.
type roomState struct {
	participants []*collab.Participant          // join order
	byConn       map[string]*collab.Participant // connID -> participant
	messages     []collab.Message
	typing       map[string]bool
	snapshot     json.RawMessage
	nextSeq      uint64
}

// Store is the single source of truth for per-room state. All mutation
// goes through its methods; callers never reach into room internals.
type Store struct {
	mu         sync.RWMutex
	rooms      map[string]*roomState
	historyCap int
}

// NewStore creates a store with the given history cap per room.
func NewStore(historyCap int) *Store {
	if historyCap <= 0 {
		historyCap = DefaultHistoryCap
	}
	return &Store{
		rooms:      make(map[string]*roomState),
		historyCap: historyCap,
	}
}

// getOrCreate never fails; an unknown room id is created empty.
// Callers must hold s.mu.
func (s *Store) getOrCreate(roomID string) *roomState {
	room, ok := s.rooms[roomID]
	if !ok {
		room = &roomState{
			byConn: make(map[string]*collab.Participant),
			typing: make(map[string]bool),
		}
		s.rooms[roomID] = room
	}
	return room
}

// AddParticipant records a participant, idempotent by connection id. A
// reconnecting user (same name, new connection id) gets a fresh entry
// rather than being dropped.
func (s *Store) AddParticipant(roomID string, p collab.Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room := s.getOrCreate(roomID)
	if existing, ok := room.byConn[p.ID]; ok {
		existing.Online = true
		return
	}
	entry := p
	room.byConn[p.ID] = &entry
	room.participants = append(room.participants, &entry)
}

// MarkOffline flags a participant as offline. The record is retained so
// sender attribution in history stays resolvable.
func (s *Store) MarkOffline(roomID, connID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return
	}
	if p, ok := room.byConn[connID]; ok {
		p.Online = false
	}
}

// Participants returns all participants in join order.
func (s *Store) Participants(roomID string) []collab.Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	out := make([]collab.Participant, 0, len(room.participants))
	for _, p := range room.participants {
		out = append(out, *p)
	}
	return out
}

// OnlineParticipants returns online participants in join order.
func (s *Store) OnlineParticipants(roomID string) []collab.Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	var out []collab.Participant
	for _, p := range room.participants {
		if p.Online {
			out = append(out, *p)
		}
	}
	return out
}

// NextMessageID issues a room-scoped message id. Ids are strictly
// increasing in insertion order within a room; the uuid fragment keeps
// them collision-resistant across rooms and restarts.
func (s *Store) NextMessageID(roomID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	room := s.getOrCreate(roomID)
	room.nextSeq++
	return fmt.Sprintf("%08d-%s", room.nextSeq, uuid.NewString()[:8])
}

// AppendMessage appends to room history, evicting the oldest entries past
// the cap. Eviction is unconditional FIFO by count.
func (s *Store) AppendMessage(roomID string, msg collab.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room := s.getOrCreate(roomID)
	room.messages = append(room.messages, msg)
	if len(room.messages) > s.historyCap {
		room.messages = room.messages[len(room.messages)-s.historyCap:]
	}
}

// History returns up to limit most-recent messages in delivery order.
// limit <= 0 returns the full retained history.
func (s *Store) History(roomID string, limit int) []collab.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	messages := room.messages
	if limit > 0 && limit < len(messages) {
		messages = messages[len(messages)-limit:]
	}
	out := make([]collab.Message, len(messages))
	copy(out, messages)
	return out
}

// MessageCount returns the retained history length for a room.
func (s *Store) MessageCount(roomID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomID]
	if !ok {
		return 0
	}
	return len(room.messages)
}

// SetTyping adds or removes a user from a room's typing set. Idempotent.
func (s *Store) SetTyping(roomID, userName string, isTyping bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room := s.getOrCreate(roomID)
	if isTyping {
		room.typing[userName] = true
	} else {
		delete(room.typing, userName)
	}
}

// TypingUsers returns the names currently typing, sorted for stable output.
func (s *Store) TypingUsers(roomID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(room.typing))
	for name := range room.typing {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// SetSnapshot overwrites the stored document snapshot, last-write-wins.
// Saving to an unknown room creates it.
func (s *Store) SetSnapshot(roomID string, content json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreate(roomID).snapshot = content
}

// SetSnapshotIfAbsent stores content only when the room holds no snapshot
// yet, and returns the snapshot now held. A save that raced ahead of a
// slow storage load wins.
func (s *Store) SetSnapshotIfAbsent(roomID string, content json.RawMessage) json.RawMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	room := s.getOrCreate(roomID)
	if room.snapshot == nil {
		room.snapshot = content
	}
	return room.snapshot
}

// Snapshot returns the stored document snapshot, if any.
func (s *Store) Snapshot(roomID string) (json.RawMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomID]
	if !ok || room.snapshot == nil {
		return nil, false
	}
	return room.snapshot, true
}

// Len returns the number of rooms ever created. Rooms are never reaped.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rooms)
}
