package cursor

import (
	"encoding/json"
	"hash/fnv"
	"sync"

	"github.com/go-monolith/mono/pkg/types"

	"github.com/example/collab-docs-demo/domain/collab"
	"github.com/example/collab-docs-demo/modules/broadcast"
)

// palette holds the cursor colors handed out to collaborators. A user's
// color is a pure function of their name, so every peer renders the same
// color without coordination.
var palette = []string{
	"#FF6B6B",
	"#4D96FF",
	"#6BCB77",
	"#FFD93D",
	"#C77DFF",
	"#F45B69",
}

// DefaultColor is served for a user that moves a cursor without ever
// announcing themselves.
const DefaultColor = "#FF0000"

// Broadcaster relays transient cursor positions between the members of a
// document session. Positions are never stored; a client that missed an
// update catches up on the next move.
type Broadcaster struct {
	hub    *broadcast.Hub
	logger types.Logger

	mu     sync.RWMutex
	colors map[string]string // user name -> assigned color
}

// NewBroadcaster creates a cursor broadcaster.
func NewBroadcaster(hub *broadcast.Hub, logger types.Logger) *Broadcaster {
	return &Broadcaster{
		hub:    hub,
		logger: logger,
		colors: make(map[string]string),
	}
}

// Announce assigns (or re-derives) a color for a user and returns it.
// The assignment is stable: the same name always yields the same color.
func (b *Broadcaster) Announce(name string) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if color, ok := b.colors[name]; ok {
		return color
	}
	color := pickColor(name)
	b.colors[name] = color
	return color
}

// Color returns the color assigned to a user. An unannounced user gets
// the default without an assignment being recorded.
func (b *Broadcaster) Color(name string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if color, ok := b.colors[name]; ok {
		return color
	}
	return DefaultColor
}

// MoveCursor relays a cursor position to every other member of the
// sender's document session, stamped with the sender's color.
func (b *Broadcaster) MoveCursor(connID, userName string, cursorRange json.RawMessage) {
	docID, ok := b.hub.DocRoomID(connID)
	if !ok {
		return
	}

	update := collab.CursorEvent{
		User:  userName,
		Range: cursorRange,
		Color: b.Color(userName),
	}
	frame, err := broadcast.Frame(broadcast.EventCursorUpdate, update)
	if err != nil {
		b.logger.Error("Failed to build cursor-update frame", "docID", docID, "error", err)
		return
	}
	b.hub.BroadcastExcept(broadcast.DocRoom(docID), connID, frame)
}

// pickColor derives a palette slot from the name's FNV-1a hash.
func pickColor(name string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return palette[h.Sum32()%uint32(len(palette))]
}
