package chat

import (
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/collab-docs-demo/domain/collab"
	"github.com/example/collab-docs-demo/modules/broadcast"
	"github.com/example/collab-docs-demo/modules/presence"
	"github.com/example/collab-docs-demo/modules/roomstate"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(msg string, args ...any)         {}
func (m *mockLogger) Info(msg string, args ...any)          {}
func (m *mockLogger) Warn(msg string, args ...any)          {}
func (m *mockLogger) Error(msg string, args ...any)         {}
func (m *mockLogger) With(args ...any) types.Logger         { return m }
func (m *mockLogger) WithError(err error) types.Logger      { return m }
func (m *mockLogger) WithModule(module string) types.Logger { return m }

type fakeSender struct {
	mu     sync.Mutex
	frames [][]byte
}

func (f *fakeSender) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, data)
	return nil
}

func (f *fakeSender) Close() error { return nil }

func (f *fakeSender) envelopes(t *testing.T) []broadcast.Envelope {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]broadcast.Envelope, 0, len(f.frames))
	for _, frame := range f.frames {
		var env broadcast.Envelope
		require.NoError(t, json.Unmarshal(frame, &env))
		out = append(out, env)
	}
	return out
}

func (f *fakeSender) byEvent(t *testing.T, event string) []broadcast.Envelope {
	t.Helper()
	var out []broadcast.Envelope
	for _, env := range f.envelopes(t) {
		if env.Event == event {
			out = append(out, env)
		}
	}
	return out
}

type testRig struct {
	store      *roomstate.Store
	registry   *presence.Registry
	hub        *broadcast.Hub
	dispatcher *Dispatcher
}

func newTestRig() *testRig {
	store := roomstate.NewStore(0)
	registry := presence.NewRegistry()
	hub := broadcast.NewHub()
	return &testRig{
		store:      store,
		registry:   registry,
		hub:        hub,
		dispatcher: NewDispatcher(store, registry, hub, &mockLogger{}),
	}
}

// join wires a connection into a chat room the way the transport does.
func (r *testRig) join(connID, name, roomID string) *fakeSender {
	sender := &fakeSender{}
	r.hub.Register(broadcast.NewClient(connID, sender))
	r.hub.SetIdentity(connID, name, "")
	r.hub.AttachChat(connID, roomID)
	r.registry.Register(name, connID)
	return sender
}

func TestValidateBody(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{"valid", "hello", nil},
		{"empty", "", ErrEmptyMessage},
		{"at limit", strings.Repeat("a", MaxMessageLength), nil},
		{"over limit", strings.Repeat("a", MaxMessageLength+1), ErrMessageTooLong},
		{"invalid utf8", string([]byte{0xff, 0xfe}), ErrInvalidUTF8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, ValidateBody(tt.body), tt.wantErr)
		})
	}
}

func TestSendGroupReachesWholeRoom(t *testing.T) {
	rig := newTestRig()
	alice := rig.join("conn-a", "alice", "room-1")
	bob := rig.join("conn-b", "bob", "room-1")
	stranger := rig.join("conn-c", "carol", "other-room")

	require.NoError(t, rig.dispatcher.SendGroup("conn-a", "room-1", "hello room"))

	for name, sender := range map[string]*fakeSender{"alice": alice, "bob": bob} {
		msgs := sender.byEvent(t, broadcast.EventNewMessage)
		require.Len(t, msgs, 1, "%s should receive the message", name)

		var msg collab.Message
		require.NoError(t, json.Unmarshal(msgs[0].Payload, &msg))
		assert.Equal(t, "alice", msg.Sender)
		assert.Equal(t, "hello room", msg.Body)
		assert.Equal(t, collab.ModeGroup, msg.Mode)
		assert.Equal(t, collab.StatusDelivered, msg.Status)
	}

	assert.Empty(t, stranger.envelopes(t), "other rooms must not receive the message")

	acks := alice.byEvent(t, broadcast.EventMessageDelivered)
	require.Len(t, acks, 1, "sender gets a delivery ack")
	assert.Empty(t, bob.byEvent(t, broadcast.EventMessageDelivered))
}

func TestSendGroupRecordsHistoryInOrder(t *testing.T) {
	rig := newTestRig()
	rig.join("conn-a", "alice", "room-1")

	for _, body := range []string{"one", "two", "three"} {
		require.NoError(t, rig.dispatcher.SendGroup("conn-a", "room-1", body))
	}

	history := rig.store.History("room-1", 0)
	require.Len(t, history, 3)
	assert.Equal(t, "one", history[0].Body)
	assert.Equal(t, "three", history[2].Body)
	assert.Less(t, history[0].ID, history[1].ID)
	assert.Less(t, history[1].ID, history[2].ID)
}

func TestSendDirectReachesRecipientAndSenderOnly(t *testing.T) {
	rig := newTestRig()
	alice := rig.join("conn-a", "alice", "room-1")
	bob := rig.join("conn-b", "bob", "room-1")
	carol := rig.join("conn-c", "carol", "room-1")

	require.NoError(t, rig.dispatcher.SendDirect("conn-a", "room-1", "just for you", "bob"))

	bobMsgs := bob.byEvent(t, broadcast.EventNewMessage)
	require.Len(t, bobMsgs, 1)
	var msg collab.Message
	require.NoError(t, json.Unmarshal(bobMsgs[0].Payload, &msg))
	assert.Equal(t, collab.ModeIndividual, msg.Mode)
	assert.Equal(t, "bob", msg.Recipient)

	require.Len(t, alice.byEvent(t, broadcast.EventNewMessage), 1, "sender sees their own direct message")
	assert.Empty(t, carol.envelopes(t), "third parties must not see direct messages")
}

func TestSendDirectToOfflineRecipientStillRecords(t *testing.T) {
	rig := newTestRig()
	alice := rig.join("conn-a", "alice", "room-1")

	require.NoError(t, rig.dispatcher.SendDirect("conn-a", "room-1", "are you there?", "bob"))

	history := rig.store.History("room-1", 0)
	require.Len(t, history, 1)
	assert.Equal(t, "bob", history[0].Recipient)

	require.Len(t, alice.byEvent(t, broadcast.EventNewMessage), 1)
	require.Len(t, alice.byEvent(t, broadcast.EventMessageDelivered), 1)
}

func TestSendDirectRequiresRecipient(t *testing.T) {
	rig := newTestRig()
	rig.join("conn-a", "alice", "room-1")

	err := rig.dispatcher.SendDirect("conn-a", "room-1", "hello", "")
	assert.ErrorIs(t, err, ErrNoRecipient)
}

func TestSendWithoutIdentityFails(t *testing.T) {
	rig := newTestRig()
	rig.hub.Register(broadcast.NewClient("conn-x", &fakeSender{}))

	err := rig.dispatcher.SendGroup("conn-x", "room-1", "hello")
	assert.ErrorIs(t, err, ErrNoRoom)
}

func TestSendSystemBroadcastsToAll(t *testing.T) {
	rig := newTestRig()
	alice := rig.join("conn-a", "alice", "room-1")
	bob := rig.join("conn-b", "bob", "room-1")

	rig.dispatcher.SendSystem("room-1", "alice joined the conversation")

	for _, sender := range []*fakeSender{alice, bob} {
		msgs := sender.byEvent(t, broadcast.EventNewMessage)
		require.Len(t, msgs, 1)

		var msg collab.Message
		require.NoError(t, json.Unmarshal(msgs[0].Payload, &msg))
		assert.Equal(t, collab.TypeSystem, msg.Type)
		assert.Equal(t, "System", msg.Sender)
		assert.Equal(t, "alice joined the conversation", msg.Body)
	}

	history := rig.store.History("room-1", 0)
	require.Len(t, history, 1, "system messages enter history")
}

func TestTypingIndicatorExcludesSender(t *testing.T) {
	rig := newTestRig()
	alice := rig.join("conn-a", "alice", "room-1")
	bob := rig.join("conn-b", "bob", "room-1")

	rig.dispatcher.SetTyping("conn-a", "room-1", true)
	rig.dispatcher.SetTyping("conn-a", "room-1", true) // idempotent

	assert.Empty(t, alice.byEvent(t, broadcast.EventUserTyping))
	typing := bob.byEvent(t, broadcast.EventUserTyping)
	require.Len(t, typing, 2)

	var payload struct {
		User   string `json:"user"`
		Typing bool   `json:"typing"`
	}
	require.NoError(t, json.Unmarshal(typing[0].Payload, &payload))
	assert.Equal(t, "alice", payload.User)
	assert.True(t, payload.Typing)

	assert.Equal(t, []string{"alice"}, rig.store.TypingUsers("room-1"))

	rig.dispatcher.SetTyping("conn-a", "room-1", false)
	assert.Empty(t, rig.store.TypingUsers("room-1"))
}
