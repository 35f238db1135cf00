package events

import (
	"encoding/json"
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// MessageSentEvent is emitted for every message recorded in a room's
// history, including system messages.
type MessageSentEvent struct {
	MessageID string    `json:"message_id"`
	RoomID    string    `json:"room_id"`
	Sender    string    `json:"sender"`
	Mode      string    `json:"mode"`
	Recipient string    `json:"recipient,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// UserJoinedEvent is emitted when a connection joins a chat room.
type UserJoinedEvent struct {
	RoomID       string    `json:"room_id"`
	ConnectionID string    `json:"connection_id"`
	Username     string    `json:"username"`
	Timestamp    time.Time `json:"timestamp"`
}

// UserLeftEvent is emitted when a connection disconnects from a chat room.
type UserLeftEvent struct {
	RoomID       string    `json:"room_id"`
	ConnectionID string    `json:"connection_id"`
	Username     string    `json:"username"`
	Timestamp    time.Time `json:"timestamp"`
}

// DocumentSavedEvent is emitted when a client submits a full-content save
// for a document. The storage module consumes it to persist the snapshot.
type DocumentSavedEvent struct {
	DocumentID string          `json:"document_id"`
	Content    json.RawMessage `json:"content"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Event definitions for the collaboration domain.
var (
	MessageSentV1 = helper.EventDefinition[MessageSentEvent](
		"chat",
		"MessageSent",
		"v1",
	)

	UserJoinedV1 = helper.EventDefinition[UserJoinedEvent](
		"lifecycle",
		"UserJoined",
		"v1",
	)

	UserLeftV1 = helper.EventDefinition[UserLeftEvent](
		"lifecycle",
		"UserLeft",
		"v1",
	)

	DocumentSavedV1 = helper.EventDefinition[DocumentSavedEvent](
		"docsync",
		"DocumentSaved",
		"v1",
	)
)
