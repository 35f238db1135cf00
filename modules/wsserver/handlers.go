package wsserver

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/collab-docs-demo/domain/collab"
	"github.com/example/collab-docs-demo/modules/broadcast"
	"github.com/example/collab-docs-demo/modules/chat"
	"github.com/example/collab-docs-demo/modules/cursor"
	"github.com/example/collab-docs-demo/modules/docsync"
	"github.com/example/collab-docs-demo/modules/lifecycle"
	"github.com/example/collab-docs-demo/modules/roomstate"
)

// Rate limiting constants for send-message.
const (
	messagesPerSecond = 10
	burstSize         = 20
)

// Payload shapes of the client-to-server events.
type joinRoomPayload struct {
	RoomID string `json:"roomId"`
	User   struct {
		Name  string `json:"name"`
		Photo string `json:"photo"`
	} `json:"user"`
}

type sendMessagePayload struct {
	Message   string `json:"message"`
	RoomID    string `json:"roomId"`
	Mode      string `json:"mode"`
	Recipient string `json:"recipient"`
}

type typingPayload struct {
	RoomID string `json:"roomId"`
}

type saveDocumentPayload struct {
	DocID string          `json:"docId"`
	Data  json.RawMessage `json:"data"`
}

type userJoinPayload struct {
	User string `json:"user"`
}

type cursorMovePayload struct {
	User  string          `json:"user"`
	Range json.RawMessage `json:"range"`
}

// rateLimiter implements a simple token bucket rate limiter.
type rateLimiter struct {
	tokens     int
	maxTokens  int
	refillRate int // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
}

func newRateLimiter(maxTokens, refillRate int) *rateLimiter {
	return &rateLimiter{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(r.lastRefill)
	tokensToAdd := int(elapsed.Seconds()) * r.refillRate
	if tokensToAdd > 0 {
		r.tokens += tokensToAdd
		if r.tokens > r.maxTokens {
			r.tokens = r.maxTokens
		}
		r.lastRefill = now
	}

	if r.tokens > 0 {
		r.tokens--
		return true
	}
	return false
}

// handlerFunc processes one decoded client event for one connection.
type handlerFunc func(connID string, payload json.RawMessage)

// Handlers dispatches WebSocket events to the collaboration modules.
type Handlers struct {
	hub          *broadcast.Hub
	store        *roomstate.Store
	engine       *docsync.Engine
	cursors      *cursor.Broadcaster
	chat         *chat.Dispatcher
	lifecycle    *lifecycle.Manager
	logger       types.Logger
	rateLimiters sync.Map // connID -> *rateLimiter

	handlers map[string]handlerFunc
}

// NewHandlers creates a new handlers instance.
func NewHandlers(hub *broadcast.Hub, store *roomstate.Store, engine *docsync.Engine, cursors *cursor.Broadcaster, dispatcher *chat.Dispatcher, manager *lifecycle.Manager, logger types.Logger) *Handlers {
	h := &Handlers{
		hub:       hub,
		store:     store,
		engine:    engine,
		cursors:   cursors,
		chat:      dispatcher,
		lifecycle: manager,
		logger:    logger,
	}
	h.handlers = map[string]handlerFunc{
		broadcast.EventJoinDocument: h.handleJoinDocument,
		broadcast.EventSendChanges:  h.handleSendChanges,
		broadcast.EventSaveDocument: h.handleSaveDocument,
		broadcast.EventUserJoin:     h.handleUserJoin,
		broadcast.EventCursorMove:   h.handleCursorMove,
		broadcast.EventJoinRoom:     h.handleJoinRoom,
		broadcast.EventSendMessage:  h.handleSendMessage,
		broadcast.EventTypingStart:  h.handleTypingStart,
		broadcast.EventTypingStop:   h.handleTypingStop,
	}
	return h
}

// HandleWebSocket owns one connection: register, read loop, teardown.
// Teardown runs exactly once regardless of how the loop exits.
func (h *Handlers) HandleWebSocket(c *websocket.Conn) {
	connID := uuid.New().String()
	h.hub.Register(broadcast.NewClient(connID, c))
	h.rateLimiters.Store(connID, newRateLimiter(burstSize, messagesPerSecond))

	defer func() {
		h.rateLimiters.Delete(connID)
		h.lifecycle.Disconnect(connID)
		c.Close()
	}()

	h.logger.Info("WebSocket connected", "connID", connID)

	for {
		_, msgBytes, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket error", "connID", connID, "error", err)
			}
			break
		}
		h.dispatch(connID, msgBytes)
	}

	h.logger.Info("WebSocket disconnected", "connID", connID)
}

// dispatch decodes a frame and routes it. A frame that is not valid JSON,
// or names no known event, is dropped without disturbing the connection.
// A panicking handler is contained to this one event.
func (h *Handlers) dispatch(connID string, raw []byte) {
	var env broadcast.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		h.logger.Debug("Dropping malformed frame", "connID", connID, "error", err)
		return
	}
	handler, ok := h.handlers[env.Event]
	if !ok {
		h.logger.Debug("Dropping unknown event", "connID", connID, "event", env.Event)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("Handler panicked", "connID", connID, "event", env.Event, "panic", r)
			h.sendError(connID, "internal error")
		}
	}()
	handler(connID, env.Payload)
}

func (h *Handlers) handleJoinDocument(connID string, payload json.RawMessage) {
	var docID string
	if err := json.Unmarshal(payload, &docID); err != nil || docID == "" {
		h.sendError(connID, "document id is required")
		return
	}
	h.engine.Join(context.Background(), connID, docID)
}

func (h *Handlers) handleSendChanges(connID string, payload json.RawMessage) {
	h.engine.BroadcastChanges(connID, payload)
}

func (h *Handlers) handleSaveDocument(connID string, payload json.RawMessage) {
	var req saveDocumentPayload
	if err := json.Unmarshal(payload, &req); err != nil || req.DocID == "" {
		h.sendError(connID, "docId is required")
		return
	}
	h.engine.Save(connID, req.DocID, req.Data)
}

func (h *Handlers) handleUserJoin(connID string, payload json.RawMessage) {
	var req userJoinPayload
	if err := json.Unmarshal(payload, &req); err != nil || req.User == "" {
		return
	}
	h.cursors.Announce(req.User)
}

func (h *Handlers) handleCursorMove(connID string, payload json.RawMessage) {
	var req cursorMovePayload
	if err := json.Unmarshal(payload, &req); err != nil || req.User == "" {
		return
	}
	h.cursors.MoveCursor(connID, req.User, req.Range)
}

func (h *Handlers) handleJoinRoom(connID string, payload json.RawMessage) {
	var req joinRoomPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		h.sendError(connID, "invalid join payload")
		return
	}
	if req.RoomID == "" || req.User.Name == "" {
		h.sendError(connID, "roomId and user name are required")
		return
	}
	h.lifecycle.JoinRoom(connID, req.RoomID, req.User.Name, req.User.Photo)
}

func (h *Handlers) handleSendMessage(connID string, payload json.RawMessage) {
	if limiterVal, ok := h.rateLimiters.Load(connID); ok {
		limiter := limiterVal.(*rateLimiter)
		if !limiter.allow() {
			h.sendError(connID, "rate limit exceeded, please slow down")
			return
		}
	}

	var req sendMessagePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		h.sendError(connID, "invalid message payload")
		return
	}
	roomID := req.RoomID
	if roomID == "" {
		attached, ok := h.hub.ChatRoomID(connID)
		if !ok {
			h.sendError(connID, "not in a room")
			return
		}
		roomID = attached
	}

	var err error
	if req.Mode == collab.ModeIndividual {
		err = h.chat.SendDirect(connID, roomID, req.Message, req.Recipient)
	} else {
		err = h.chat.SendGroup(connID, roomID, req.Message)
	}
	if err != nil {
		h.sendError(connID, err.Error())
	}
}

func (h *Handlers) handleTypingStart(connID string, payload json.RawMessage) {
	h.handleTyping(connID, payload, true)
}

func (h *Handlers) handleTypingStop(connID string, payload json.RawMessage) {
	h.handleTyping(connID, payload, false)
}

func (h *Handlers) handleTyping(connID string, payload json.RawMessage, isTyping bool) {
	var req typingPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return
	}
	roomID := req.RoomID
	if roomID == "" {
		attached, ok := h.hub.ChatRoomID(connID)
		if !ok {
			return
		}
		roomID = attached
	}
	h.chat.SetTyping(connID, roomID, isTyping)
}

// HealthCheck returns a simple readiness response.
func (h *Handlers) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":            "ok",
		"connected_clients": h.hub.ClientCount(),
	})
}

// GetRoom returns a read-only view of a chat room's live state.
func (h *Handlers) GetRoom(c *fiber.Ctx) error {
	roomID := c.Params("id")
	return c.JSON(fiber.Map{
		"roomId":       roomID,
		"users":        h.store.OnlineParticipants(roomID),
		"messageCount": h.store.MessageCount(roomID),
		"typing":       h.store.TypingUsers(roomID),
	})
}

// GetDocument returns the current content of a document.
func (h *Handlers) GetDocument(c *fiber.Ctx) error {
	docID := c.Params("id")
	content := h.engine.SnapshotFor(c.Context(), docID)
	return c.JSON(fiber.Map{
		"docId": docID,
		"data":  content,
	})
}

// sendError reports a problem to the offending connection only.
func (h *Handlers) sendError(connID, message string) {
	frame, err := broadcast.Frame(broadcast.EventError, map[string]string{"message": message})
	if err != nil {
		h.logger.Error("Failed to build error frame", "error", err)
		return
	}
	h.hub.Send(connID, frame)
}
