package collab

import (
	"encoding/json"
	"time"
)

// Message status values of the wire contract. The server stamps every
// recorded message StatusDelivered; StatusSending (optimistic render
// before the ack) and StatusRead (read receipts) are client-side states
// named here so the enum covers the full contract.
const (
	StatusSending   = "sending"
	StatusDelivered = "delivered"
	StatusRead      = "read"
)

// Delivery scope of a chat message.
const (
	ModeGroup      = "group"
	ModeIndividual = "individual"
)

// Message kinds. System messages are synthesized on join/leave transitions.
const (
	TypeMessage = "message"
	TypeSystem  = "system"
)

// Message is a chat message recorded in a room's history.
type Message struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId"`
	Sender    string    `json:"sender"`
	Body      string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
	Mode      string    `json:"mode"`
	Recipient string    `json:"recipient,omitempty"`
	Type      string    `json:"type"`
}

// Participant is a room-scoped presence record for one connection.
// Participants are recreated on every join and marked offline (not removed)
// on disconnect, so sender attribution in history stays resolvable.
type Participant struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Photo    string    `json:"photo,omitempty"`
	Online   bool      `json:"online"`
	JoinedAt time.Time `json:"joinedAt"`
}

// CursorEvent is a transient cursor-position update. It is broadcast to
// peers and never stored.
type CursorEvent struct {
	User  string          `json:"user"`
	Range json.RawMessage `json:"range"`
	Color string          `json:"color"`
}

// EmptySnapshot is the content served for a document that has never been
// saved. The content blob is opaque to this service; clients interpret it.
var EmptySnapshot = json.RawMessage(`{}`)
