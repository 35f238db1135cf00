package broadcast

import (
	"encoding/json"
	"fmt"
)

// Wire event names. These are the logical events of the collaboration
// protocol; every frame on the socket is an Envelope carrying one of them.
const (
	// Client -> server
	EventJoinDocument = "join-document"
	EventSendChanges  = "send-changes"
	EventSaveDocument = "save-document"
	EventUserJoin     = "user-join"
	EventCursorMove   = "cursor-move"
	EventJoinRoom     = "join-room"
	EventSendMessage  = "send-message"
	EventTypingStart  = "typing-start"
	EventTypingStop   = "typing-stop"

	// Server -> client
	EventLoadDocument     = "load-document"
	EventReceiveChanges   = "receive-changes"
	EventDocumentSaved    = "document-saved"
	EventCursorUpdate     = "cursor-update"
	EventRoomData         = "room-data"
	EventUserJoined       = "user-joined"
	EventUserLeft         = "user-left"
	EventUsersUpdated     = "users-updated"
	EventNewMessage       = "new-message"
	EventMessageDelivered = "message-delivered"
	EventUserTyping       = "user-typing"
	EventError            = "error"
)

// Envelope is the frame exchanged on the socket in both directions.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Frame marshals an event and payload into a wire frame.
func Frame(event string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", event, err)
		}
		raw = data
	}
	frame, err := json.Marshal(Envelope{Event: event, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s frame: %w", event, err)
	}
	return frame, nil
}

// Room key scopes. A connection may be attached to one document room and
// one chat room at a time; a document id doubling as a chat room id still
// yields two distinct hub rooms.
func DocRoom(docID string) string   { return "doc:" + docID }
func ChatRoom(roomID string) string { return "chat:" + roomID }
