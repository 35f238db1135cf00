package docsync

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"golang.org/x/sync/singleflight"

	"github.com/example/collab-docs-demo/domain/collab"
	"github.com/example/collab-docs-demo/events"
	"github.com/example/collab-docs-demo/modules/broadcast"
	"github.com/example/collab-docs-demo/modules/roomstate"
)

// SnapshotFinder loads a document snapshot from persistent storage.
type SnapshotFinder interface {
	FindDocument(ctx context.Context, docID string) (json.RawMessage, error)
}

// Engine implements document co-editing: join, delta relay, and snapshot
// saves. Deltas are relayed verbatim; the engine never interprets them.
type Engine struct {
	store  *roomstate.Store
	hub    *broadcast.Hub
	finder SnapshotFinder
	bus    mono.EventBus
	logger types.Logger

	loads singleflight.Group
}

// NewEngine creates a document sync engine. finder may be nil when no
// persistent storage is configured.
func NewEngine(store *roomstate.Store, hub *broadcast.Hub, finder SnapshotFinder, logger types.Logger) *Engine {
	return &Engine{
		store:  store,
		hub:    hub,
		finder: finder,
		logger: logger,
	}
}

// SetEventBus wires the event bus for save notifications.
func (e *Engine) SetEventBus(bus mono.EventBus) {
	e.bus = bus
}

// Join attaches a connection to a document's edit session and replies
// with the current content. A connection edits one document at a time;
// joining another document detaches it from the previous one.
func (e *Engine) Join(ctx context.Context, connID, docID string) {
	e.hub.AttachDoc(connID, docID)

	content := e.snapshot(ctx, docID)

	frame, err := broadcast.Frame(broadcast.EventLoadDocument, content)
	if err != nil {
		e.logger.Error("Failed to build load-document frame", "docID", docID, "error", err)
		return
	}
	e.hub.Send(connID, frame)
}

// snapshot returns the server-held content, loading it once for the first
// access of a cold document. Concurrent first-joins collapse into a single
// storage load, and whatever the load produced (persisted content or the
// empty sentinel) becomes the held snapshot, so every subsequent join of
// the document is served the same content verbatim.
func (e *Engine) snapshot(ctx context.Context, docID string) json.RawMessage {
	if content, ok := e.store.Snapshot(docID); ok {
		return content
	}
	if e.finder == nil {
		return e.store.SetSnapshotIfAbsent(docID, collab.EmptySnapshot)
	}

	v, err, _ := e.loads.Do(docID, func() (any, error) {
		// A concurrent save may have populated the store while we
		// waited on the flight group.
		if content, ok := e.store.Snapshot(docID); ok {
			return content, nil
		}
		return e.finder.FindDocument(ctx, docID)
	})
	content, _ := v.(json.RawMessage)
	if err != nil || len(content) == 0 {
		if err != nil {
			e.logger.Debug("No stored snapshot, serving empty document", "docID", docID, "error", err)
		}
		content = collab.EmptySnapshot
	}
	return e.store.SetSnapshotIfAbsent(docID, content)
}

// BroadcastChanges relays an editing delta from one connection to every
// other connection in the same document session. A connection that has
// not joined a document, or is alone in one, produces no frames.
func (e *Engine) BroadcastChanges(connID string, delta json.RawMessage) {
	docID, ok := e.hub.DocRoomID(connID)
	if !ok {
		return
	}
	frame, err := broadcast.Frame(broadcast.EventReceiveChanges, delta)
	if err != nil {
		e.logger.Error("Failed to build receive-changes frame", "docID", docID, "error", err)
		return
	}
	e.hub.BroadcastExcept(broadcast.DocRoom(docID), connID, frame)
}

// Save records a full-content snapshot, last write wins. The snapshot is
// kept in memory for subsequent joins and handed to the event bus for
// persistence; the saver gets an acknowledgement frame.
func (e *Engine) Save(connID, docID string, content json.RawMessage) {
	if len(content) == 0 {
		content = collab.EmptySnapshot
	}
	e.store.SetSnapshot(docID, content)

	if e.bus != nil {
		event := events.DocumentSavedEvent{
			DocumentID: docID,
			Content:    content,
			Timestamp:  time.Now(),
		}
		if err := events.DocumentSavedV1.Publish(e.bus, event, nil); err != nil {
			e.logger.Error("Failed to publish DocumentSaved event", "docID", docID, "error", err)
		}
	}

	frame, err := broadcast.Frame(broadcast.EventDocumentSaved, map[string]string{"docId": docID})
	if err != nil {
		e.logger.Error("Failed to build document-saved frame", "docID", docID, "error", err)
		return
	}
	e.hub.Send(connID, frame)
}

// SnapshotFor returns the current content for a document, serving reads
// from the REST surface. Unknown documents read as the empty snapshot.
func (e *Engine) SnapshotFor(ctx context.Context, docID string) json.RawMessage {
	return e.snapshot(ctx, docID)
}
