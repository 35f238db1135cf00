package lifecycle

import (
	"fmt"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"

	"github.com/example/collab-docs-demo/domain/collab"
	"github.com/example/collab-docs-demo/events"
	"github.com/example/collab-docs-demo/modules/broadcast"
	"github.com/example/collab-docs-demo/modules/chat"
	"github.com/example/collab-docs-demo/modules/presence"
	"github.com/example/collab-docs-demo/modules/roomstate"
)

// Manager owns the join and disconnect transitions of a connection's room
// membership: roster updates, join replay, system notices and presence
// registration all happen here, in one place, in a fixed order.
type Manager struct {
	store    *roomstate.Store
	registry *presence.Registry
	hub      *broadcast.Hub
	chat     *chat.Dispatcher
	bus      mono.EventBus
	logger   types.Logger
}

// NewManager creates a lifecycle manager.
func NewManager(store *roomstate.Store, registry *presence.Registry, hub *broadcast.Hub, dispatcher *chat.Dispatcher, logger types.Logger) *Manager {
	return &Manager{
		store:    store,
		registry: registry,
		hub:      hub,
		chat:     dispatcher,
		logger:   logger,
	}
}

// SetEventBus wires the event bus for lifecycle notifications.
func (m *Manager) SetEventBus(bus mono.EventBus) {
	m.bus = bus
}

// rosterUpdate payloads sent on membership changes.
type roomData struct {
	Users    []collab.Participant `json:"users"`
	Messages []collab.Message     `json:"messages"`
}

type userChange struct {
	User  collab.Participant   `json:"user"`
	Users []collab.Participant `json:"users"`
}

// JoinRoom admits a connection into a chat room under a display identity.
// The joiner receives the roster and recent history; peers are told who
// arrived; everyone gets the refreshed roster and a system notice.
func (m *Manager) JoinRoom(connID, roomID, name, photo string) {
	m.hub.SetIdentity(connID, name, photo)
	m.registry.Register(name, connID)
	m.hub.AttachChat(connID, roomID)

	participant := collab.Participant{
		ID:       connID,
		Name:     name,
		Photo:    photo,
		Online:   true,
		JoinedAt: time.Now(),
	}
	m.store.AddParticipant(roomID, participant)

	users := m.store.Participants(roomID)
	room := broadcast.ChatRoom(roomID)

	m.send(connID, broadcast.EventRoomData, roomData{
		Users:    users,
		Messages: m.store.History(roomID, roomstate.ReplayLimit),
	})
	m.broadcastExcept(room, connID, broadcast.EventUserJoined, userChange{
		User:  participant,
		Users: users,
	})
	m.broadcast(room, broadcast.EventUsersUpdated, users)

	m.chat.SendSystem(roomID, fmt.Sprintf("%s joined the conversation", name))

	if m.bus != nil {
		event := events.UserJoinedEvent{
			RoomID:       roomID,
			ConnectionID: connID,
			Username:     name,
			Timestamp:    time.Now(),
		}
		if err := events.UserJoinedV1.Publish(m.bus, event, nil); err != nil {
			m.logger.Error("Failed to publish UserJoined event", "roomID", roomID, "error", err)
		}
	}

	m.logger.Info("User joined room", "roomID", roomID, "user", name, "connID", connID)
}

// Disconnect tears down a connection's room membership. It is idempotent:
// the transport may report the same close more than once, and only the
// call that actually removes the connection from the hub proceeds. The
// participant record is kept, marked offline; follow-up roster frames
// carry online members only.
func (m *Manager) Disconnect(connID string) {
	name, roomID, ok := m.hub.Unregister(connID)
	if !ok {
		return
	}

	// Drop the name binding only if this connection still owns it; a
	// reconnect under the same name must keep routing to the new socket.
	if name != "" {
		if current, resolved := m.registry.Resolve(name); resolved && current == connID {
			m.registry.Unregister(name)
		}
	}

	if roomID == "" {
		return
	}

	m.store.MarkOffline(roomID, connID)
	if name != "" {
		m.store.SetTyping(roomID, name, false)
	}

	online := m.store.OnlineParticipants(roomID)
	room := broadcast.ChatRoom(roomID)

	m.broadcast(room, broadcast.EventUserLeft, userChange{
		User:  collab.Participant{ID: connID, Name: name},
		Users: online,
	})
	m.broadcast(room, broadcast.EventUsersUpdated, online)

	if name != "" {
		m.chat.SendSystem(roomID, fmt.Sprintf("%s left the conversation", name))
	}

	if m.bus != nil {
		event := events.UserLeftEvent{
			RoomID:       roomID,
			ConnectionID: connID,
			Username:     name,
			Timestamp:    time.Now(),
		}
		if err := events.UserLeftV1.Publish(m.bus, event, nil); err != nil {
			m.logger.Error("Failed to publish UserLeft event", "roomID", roomID, "error", err)
		}
	}

	m.logger.Info("User disconnected", "roomID", roomID, "user", name, "connID", connID)
}

func (m *Manager) send(connID, event string, payload any) {
	frame, err := broadcast.Frame(event, payload)
	if err != nil {
		m.logger.Error("Failed to build frame", "event", event, "error", err)
		return
	}
	m.hub.Send(connID, frame)
}

func (m *Manager) broadcast(room, event string, payload any) {
	m.broadcastExcept(room, "", event, payload)
}

func (m *Manager) broadcastExcept(room, exceptConnID, event string, payload any) {
	frame, err := broadcast.Frame(event, payload)
	if err != nil {
		m.logger.Error("Failed to build frame", "event", event, "error", err)
		return
	}
	m.hub.BroadcastExcept(room, exceptConnID, frame)
}
