package chat

import (
	"errors"
	"time"
	"unicode/utf8"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"

	"github.com/example/collab-docs-demo/domain/collab"
	"github.com/example/collab-docs-demo/events"
	"github.com/example/collab-docs-demo/modules/broadcast"
	"github.com/example/collab-docs-demo/modules/presence"
	"github.com/example/collab-docs-demo/modules/roomstate"
)

// MaxMessageLength is the maximum message body length in bytes.
const MaxMessageLength = 5000

// Validation errors surfaced to the sender.
var (
	ErrEmptyMessage   = errors.New("message cannot be empty")
	ErrMessageTooLong = errors.New("message exceeds maximum length")
	ErrInvalidUTF8    = errors.New("message is not valid UTF-8")
	ErrNoRoom         = errors.New("connection has not joined a room")
	ErrNoRecipient    = errors.New("individual message requires a recipient")
)

// ValidateBody checks a message body against the protocol limits.
func ValidateBody(body string) error {
	if body == "" {
		return ErrEmptyMessage
	}
	if len(body) > MaxMessageLength {
		return ErrMessageTooLong
	}
	if !utf8.ValidString(body) {
		return ErrInvalidUTF8
	}
	return nil
}

// Dispatcher records chat messages in room history and routes them to
// their recipients: the whole room for group messages, a single named
// user for individual ones.
type Dispatcher struct {
	store    *roomstate.Store
	registry *presence.Registry
	hub      *broadcast.Hub
	bus      mono.EventBus
	logger   types.Logger
}

// NewDispatcher creates a chat dispatcher.
func NewDispatcher(store *roomstate.Store, registry *presence.Registry, hub *broadcast.Hub, logger types.Logger) *Dispatcher {
	return &Dispatcher{
		store:    store,
		registry: registry,
		hub:      hub,
		logger:   logger,
	}
}

// SetEventBus wires the event bus for message notifications.
func (d *Dispatcher) SetEventBus(bus mono.EventBus) {
	d.bus = bus
}

// deliveredAck is the payload of a message-delivered frame.
type deliveredAck struct {
	MessageID string `json:"messageId"`
	Status    string `json:"status"`
}

// SendGroup validates, records and fans a message out to every connection
// in the sender's chat room, the sender included, then acknowledges
// delivery to the sender.
func (d *Dispatcher) SendGroup(connID, roomID, body string) error {
	if err := ValidateBody(body); err != nil {
		return err
	}
	sender, ok := d.hub.Identity(connID)
	if !ok || sender == "" {
		return ErrNoRoom
	}

	msg := d.record(roomID, collab.Message{
		RoomID: roomID,
		Sender: sender,
		Body:   body,
		Mode:   collab.ModeGroup,
		Type:   collab.TypeMessage,
	})

	frame, err := broadcast.Frame(broadcast.EventNewMessage, msg)
	if err != nil {
		return err
	}
	d.hub.Broadcast(broadcast.ChatRoom(roomID), frame)
	d.acknowledge(connID, msg.ID)
	d.publish(msg)
	return nil
}

// SendDirect validates and records an individual message, then delivers
// it to the recipient's connection and echoes it to the sender. An
// offline recipient still gets the message into history; delivery is
// simply skipped.
func (d *Dispatcher) SendDirect(connID, roomID, body, recipient string) error {
	if err := ValidateBody(body); err != nil {
		return err
	}
	if recipient == "" {
		return ErrNoRecipient
	}
	sender, ok := d.hub.Identity(connID)
	if !ok || sender == "" {
		return ErrNoRoom
	}

	msg := d.record(roomID, collab.Message{
		RoomID:    roomID,
		Sender:    sender,
		Body:      body,
		Mode:      collab.ModeIndividual,
		Recipient: recipient,
		Type:      collab.TypeMessage,
	})

	frame, err := broadcast.Frame(broadcast.EventNewMessage, msg)
	if err != nil {
		return err
	}
	if recipientConn, online := d.registry.Resolve(recipient); online {
		d.hub.Send(recipientConn, frame)
	} else {
		d.logger.Debug("Recipient offline, message recorded only",
			"roomID", roomID, "recipient", recipient)
	}
	d.hub.Send(connID, frame)
	d.acknowledge(connID, msg.ID)
	d.publish(msg)
	return nil
}

// SendSystem records and broadcasts a synthesized room notice, such as a
// join or leave announcement. System messages have no delivery ack.
func (d *Dispatcher) SendSystem(roomID, body string) {
	msg := d.record(roomID, collab.Message{
		RoomID: roomID,
		Sender: "System",
		Body:   body,
		Mode:   collab.ModeGroup,
		Type:   collab.TypeSystem,
	})

	frame, err := broadcast.Frame(broadcast.EventNewMessage, msg)
	if err != nil {
		d.logger.Error("Failed to build system message frame", "roomID", roomID, "error", err)
		return
	}
	d.hub.Broadcast(broadcast.ChatRoom(roomID), frame)
	d.publish(msg)
}

// SetTyping updates the room's typing set and notifies the sender's
// peers. Repeated starts and stops are idempotent.
func (d *Dispatcher) SetTyping(connID, roomID string, isTyping bool) {
	user, ok := d.hub.Identity(connID)
	if !ok || user == "" {
		return
	}
	d.store.SetTyping(roomID, user, isTyping)

	frame, err := broadcast.Frame(broadcast.EventUserTyping, map[string]any{
		"user":   user,
		"typing": isTyping,
	})
	if err != nil {
		d.logger.Error("Failed to build user-typing frame", "roomID", roomID, "error", err)
		return
	}
	d.hub.BroadcastExcept(broadcast.ChatRoom(roomID), connID, frame)
}

// record stamps a message with id, timestamp and delivered status, and
// appends it to room history. The room-scoped id keeps history order
// reconstructible.
func (d *Dispatcher) record(roomID string, msg collab.Message) collab.Message {
	msg.ID = d.store.NextMessageID(roomID)
	msg.Timestamp = time.Now()
	msg.Status = collab.StatusDelivered
	d.store.AppendMessage(roomID, msg)
	return msg
}

// acknowledge confirms delivery of a message to its sender.
func (d *Dispatcher) acknowledge(connID, messageID string) {
	frame, err := broadcast.Frame(broadcast.EventMessageDelivered, deliveredAck{
		MessageID: messageID,
		Status:    collab.StatusDelivered,
	})
	if err != nil {
		d.logger.Error("Failed to build message-delivered frame", "error", err)
		return
	}
	d.hub.Send(connID, frame)
}

// publish hands the recorded message to the event bus, if configured.
func (d *Dispatcher) publish(msg collab.Message) {
	if d.bus == nil {
		return
	}
	event := events.MessageSentEvent{
		MessageID: msg.ID,
		RoomID:    msg.RoomID,
		Sender:    msg.Sender,
		Mode:      msg.Mode,
		Recipient: msg.Recipient,
		Timestamp: msg.Timestamp,
	}
	if err := events.MessageSentV1.Publish(d.bus, event, nil); err != nil {
		d.logger.Error("Failed to publish MessageSent event",
			"roomID", msg.RoomID, "messageID", msg.ID, "error", err)
	}
}
