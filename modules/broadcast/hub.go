package broadcast

import (
	"log"
	"sync"

	"github.com/gofiber/contrib/websocket"
)

// Sender is the write side of a client connection. *websocket.Conn
// satisfies it; tests substitute an in-memory recorder.
type Sender interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client represents a connected WebSocket client.
type Client struct {
	ID     string
	Name   string
	Photo  string
	sender Sender

	// The websocket connection allows at most one concurrent writer;
	// broadcasts arrive from many event-handler goroutines, so every
	// write to this connection serializes on writeMu.
	writeMu sync.Mutex

	docRoom  string // hub room key, empty until join-document
	chatRoom string // hub room key, empty until join-room
}

// NewClient creates a client for a live connection.
func NewClient(id string, sender Sender) *Client {
	return &Client{ID: id, sender: sender}
}

// Hub manages WebSocket connections and room-scoped broadcasting. It is the
// only component that holds connections; everything above it addresses
// clients by connection id and rooms by key.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client         // connID -> client
	rooms   map[string]map[string]bool // room key -> set of connIDs
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]bool),
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
}

// Unregister removes a client and detaches it from its rooms, returning
// the identity and chat room id it held. ok is false when the connection
// was already gone, so repeated teardown of the same id is harmless. The
// connection itself is closed by the transport layer, not here.
func (h *Hub) Unregister(connID string) (name, chatRoomID string, ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, exists := h.clients[connID]
	if !exists {
		return "", "", false
	}
	name = client.Name
	if client.chatRoom != "" {
		chatRoomID = client.chatRoom[len("chat:"):]
	}
	h.detachLocked(connID, client.docRoom)
	h.detachLocked(connID, client.chatRoom)
	delete(h.clients, connID)
	return name, chatRoomID, true
}

// SetIdentity records the display identity announced on join-room.
func (h *Hub) SetIdentity(connID, name, photo string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if client, ok := h.clients[connID]; ok {
		client.Name = name
		client.Photo = photo
	}
}

// Identity returns the display name recorded for a connection.
func (h *Hub) Identity(connID string) (name string, ok bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.clients[connID]
	if !ok {
		return "", false
	}
	return client.Name, true
}

// AttachDoc binds a connection to a document room, replacing any previous
// document attachment.
func (h *Hub) AttachDoc(connID, docID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[connID]
	if !ok {
		return
	}
	h.detachLocked(connID, client.docRoom)
	client.docRoom = DocRoom(docID)
	h.attachLocked(connID, client.docRoom)
}

// AttachChat binds a connection to a chat room, replacing any previous
// chat attachment.
func (h *Hub) AttachChat(connID, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[connID]
	if !ok {
		return
	}
	h.detachLocked(connID, client.chatRoom)
	client.chatRoom = ChatRoom(roomID)
	h.attachLocked(connID, client.chatRoom)
}

// DocRoomID returns the document id a connection is attached to.
func (h *Hub) DocRoomID(connID string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.clients[connID]
	if !ok || client.docRoom == "" {
		return "", false
	}
	return client.docRoom[len("doc:"):], true
}

// ChatRoomID returns the chat room id a connection is attached to.
func (h *Hub) ChatRoomID(connID string) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	client, ok := h.clients[connID]
	if !ok || client.chatRoom == "" {
		return "", false
	}
	return client.chatRoom[len("chat:"):], true
}

// Send delivers a frame to one connection. A missing connection is a
// silent no-op: the target may have disconnected between resolve and send.
func (h *Hub) Send(connID string, data []byte) {
	h.mu.RLock()
	client, ok := h.clients[connID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	h.write(client, data)
}

// Broadcast delivers a frame to every connection in a room.
func (h *Hub) Broadcast(room string, data []byte) {
	h.BroadcastExcept(room, "", data)
}

// BroadcastExcept delivers a frame to every connection in a room except
// one. Broadcasting to an empty room is a no-op.
func (h *Hub) BroadcastExcept(room, exceptConnID string, data []byte) {
	h.mu.RLock()
	var targets []*Client
	for connID := range h.rooms[room] {
		if connID == exceptConnID {
			continue
		}
		if client, ok := h.clients[connID]; ok {
			targets = append(targets, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range targets {
		h.write(client, data)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// RoomClientCount returns the number of connections in a room.
func (h *Hub) RoomClientCount(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// CloseAll closes every connection; used on shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, client := range h.clients {
		client.writeMu.Lock()
		_ = client.sender.Close()
		client.writeMu.Unlock()
	}
	h.clients = make(map[string]*Client)
	h.rooms = make(map[string]map[string]bool)
}

// write sends a text frame, one writer per connection at a time. A failed
// write affects only that connection: it is logged and the read loop will
// surface the close.
func (h *Hub) write(client *Client, data []byte) {
	client.writeMu.Lock()
	err := client.sender.WriteMessage(websocket.TextMessage, data)
	client.writeMu.Unlock()
	if err != nil {
		log.Printf("[broadcast] write to %s failed: %v", client.ID, err)
	}
}

func (h *Hub) attachLocked(connID, room string) {
	if room == "" {
		return
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]bool)
	}
	h.rooms[room][connID] = true
}

func (h *Hub) detachLocked(connID, room string) {
	if room == "" {
		return
	}
	delete(h.rooms[room], connID)
	if len(h.rooms[room]) == 0 {
		delete(h.rooms, room)
	}
}
