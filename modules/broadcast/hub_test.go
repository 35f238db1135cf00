package broadcast

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeSender struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
	fail   bool
}

func (f *fakeSender) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("write failed")
	}
	f.frames = append(f.frames, data)
	return nil
}

func (f *fakeSender) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func TestSendToMissingConnectionIsNoOp(t *testing.T) {
	hub := NewHub()
	hub.Send("ghost", []byte("data")) // must not panic
}

func TestBroadcastScopedToRoom(t *testing.T) {
	hub := NewHub()
	a := &fakeSender{}
	b := &fakeSender{}
	c := &fakeSender{}
	hub.Register(NewClient("conn-a", a))
	hub.Register(NewClient("conn-b", b))
	hub.Register(NewClient("conn-c", c))
	hub.AttachChat("conn-a", "room-1")
	hub.AttachChat("conn-b", "room-1")
	hub.AttachChat("conn-c", "room-2")

	hub.Broadcast(ChatRoom("room-1"), []byte("hello"))

	if a.count() != 1 || b.count() != 1 {
		t.Errorf("expected room members to receive the frame, got %d/%d", a.count(), b.count())
	}
	if c.count() != 0 {
		t.Error("other rooms must not receive the frame")
	}
}

func TestBroadcastExceptSkipsSender(t *testing.T) {
	hub := NewHub()
	a := &fakeSender{}
	b := &fakeSender{}
	hub.Register(NewClient("conn-a", a))
	hub.Register(NewClient("conn-b", b))
	hub.AttachDoc("conn-a", "doc-1")
	hub.AttachDoc("conn-b", "doc-1")

	hub.BroadcastExcept(DocRoom("doc-1"), "conn-a", []byte("delta"))

	if a.count() != 0 {
		t.Error("excluded connection must not receive the frame")
	}
	if b.count() != 1 {
		t.Errorf("expected peer to receive the frame, got %d", b.count())
	}
}

func TestDocAndChatRoomsAreDistinct(t *testing.T) {
	hub := NewHub()
	a := &fakeSender{}
	b := &fakeSender{}
	hub.Register(NewClient("conn-a", a))
	hub.Register(NewClient("conn-b", b))

	// Same id used as a document and as a chat room.
	hub.AttachDoc("conn-a", "shared-id")
	hub.AttachChat("conn-b", "shared-id")

	hub.Broadcast(DocRoom("shared-id"), []byte("doc frame"))

	if a.count() != 1 {
		t.Errorf("expected document member to receive the frame, got %d", a.count())
	}
	if b.count() != 0 {
		t.Error("chat attachment must not leak into the document room")
	}
}

func TestReattachReplacesRoom(t *testing.T) {
	hub := NewHub()
	a := &fakeSender{}
	hub.Register(NewClient("conn-a", a))
	hub.AttachDoc("conn-a", "doc-1")
	hub.AttachDoc("conn-a", "doc-2")

	hub.Broadcast(DocRoom("doc-1"), []byte("old"))
	if a.count() != 0 {
		t.Error("connection must leave the previous document room")
	}

	hub.Broadcast(DocRoom("doc-2"), []byte("new"))
	if a.count() != 1 {
		t.Errorf("expected frame from the new room, got %d", a.count())
	}

	docID, ok := hub.DocRoomID("conn-a")
	if !ok || docID != "doc-2" {
		t.Errorf("expected doc-2 attachment, got %q ok=%v", docID, ok)
	}
}

func TestUnregisterDetachesRooms(t *testing.T) {
	hub := NewHub()
	a := &fakeSender{}
	hub.Register(NewClient("conn-a", a))
	hub.SetIdentity("conn-a", "alice", "")
	hub.AttachDoc("conn-a", "doc-1")
	hub.AttachChat("conn-a", "room-1")

	name, roomID, ok := hub.Unregister("conn-a")
	if !ok {
		t.Fatal("expected first unregister to report removal")
	}
	if name != "alice" || roomID != "room-1" {
		t.Errorf("expected identity alice/room-1, got %s/%s", name, roomID)
	}

	if _, _, ok := hub.Unregister("conn-a"); ok {
		t.Error("expected repeated unregister to report the connection gone")
	}

	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}
	if hub.RoomClientCount(DocRoom("doc-1")) != 0 {
		t.Error("expected document room emptied")
	}

	hub.Broadcast(DocRoom("doc-1"), []byte("data"))
	if a.count() != 0 {
		t.Error("unregistered connection must not receive frames")
	}
}

func TestFailedWriteIsolatedPerConnection(t *testing.T) {
	hub := NewHub()
	broken := &fakeSender{fail: true}
	healthy := &fakeSender{}
	hub.Register(NewClient("conn-a", broken))
	hub.Register(NewClient("conn-b", healthy))
	hub.AttachChat("conn-a", "room-1")
	hub.AttachChat("conn-b", "room-1")

	hub.Broadcast(ChatRoom("room-1"), []byte("hello"))

	if healthy.count() != 1 {
		t.Error("a failing peer must not block delivery to others")
	}
}

// overlapSender fails the test invariant if two WriteMessage calls run
// at the same time; the websocket transport allows only one writer.
type overlapSender struct {
	active  atomic.Int32
	overlap atomic.Bool
	frames  atomic.Int32
}

func (o *overlapSender) WriteMessage(_ int, _ []byte) error {
	if o.active.Add(1) > 1 {
		o.overlap.Store(true)
	}
	time.Sleep(time.Microsecond)
	o.active.Add(-1)
	o.frames.Add(1)
	return nil
}

func (o *overlapSender) Close() error { return nil }

func TestConcurrentBroadcastsSerializePerConnection(t *testing.T) {
	hub := NewHub()
	target := &overlapSender{}
	hub.Register(NewClient("conn-t", target))
	hub.Register(NewClient("conn-a", &fakeSender{}))
	hub.Register(NewClient("conn-b", &fakeSender{}))
	hub.AttachChat("conn-t", "room-1")
	hub.AttachChat("conn-a", "room-1")
	hub.AttachChat("conn-b", "room-1")

	const perSender = 200
	var wg sync.WaitGroup
	for _, connID := range []string{"conn-a", "conn-b"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				hub.BroadcastExcept(ChatRoom("room-1"), id, []byte("x"))
			}
		}(connID)
	}
	wg.Wait()

	if target.overlap.Load() {
		t.Error("expected writes to a single connection to be serialized")
	}
	if got := target.frames.Load(); got != 2*perSender {
		t.Errorf("expected %d frames delivered, got %d", 2*perSender, got)
	}
}

func TestCloseAllClosesConnections(t *testing.T) {
	hub := NewHub()
	a := &fakeSender{}
	hub.Register(NewClient("conn-a", a))

	hub.CloseAll()

	if !a.closed {
		t.Error("expected connection closed")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("expected 0 clients, got %d", hub.ClientCount())
	}
}
