package core

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func newTestSession(t *testing.T, p Protocol, reg *Registry, w MessageWriter) *Session {
	t.Helper()
	s := NewSession(p, reg, w, SessionConfig{OutboundBuffer: 16, PersistTimeout: time.Second, MaxRoomLength: 100}, nil)
	t.Cleanup(s.Disconnect)
	return s
}

// nextFrame dispatches the next queued event and returns the written JSON.
func nextFrame(t *testing.T, s *Session) map[string]any {
	t.Helper()

	select {
	case ev := <-s.Endpoint().Events():
		var written []byte
		err := s.Dispatch(context.Background(), ev, func(_ context.Context, data []byte) error {
			written = data
			return nil
		})
		if err != nil {
			t.Fatalf("dispatch: %v", err)
		}
		var frame map[string]any
		if err := json.Unmarshal(written, &frame); err != nil {
			t.Fatalf("unmarshal frame %q: %v", written, err)
		}
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("no frame queued")
		return nil
	}
}

func TestSessionLifecycle(t *testing.T) {
	reg := NewRegistry(nil)
	s := newTestSession(t, RoomProtocol{}, reg, &memoryWriter{})

	if s.State() != StateConnecting {
		t.Fatalf("initial state = %v", s.State())
	}
	if err := s.Connect("lobby"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if s.State() != StateJoined || s.GroupKey() != "chat_lobby" {
		t.Fatalf("after connect: state=%v key=%q", s.State(), s.GroupKey())
	}
	if err := s.Connect("lobby"); !errors.Is(err, ErrAlreadyConnected) {
		t.Fatalf("second connect: %v", err)
	}

	s.Disconnect()
	s.Disconnect()

	if s.State() != StateClosed {
		t.Fatalf("after disconnect: %v", s.State())
	}
	if reg.Members("chat_lobby") != 0 {
		t.Fatal("membership outlived the session")
	}
	if !s.Endpoint().Closed() {
		t.Fatal("endpoint should be closed")
	}
	if err := s.Connect("lobby"); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("connect after close: %v", err)
	}
}

func TestSessionConnectRejectsInvalidRoom(t *testing.T) {
	reg := NewRegistry(nil)
	s := newTestSession(t, RoomProtocol{}, reg, &memoryWriter{})

	if err := s.Connect(""); !errors.Is(err, ErrInvalidRoom) {
		t.Fatalf("expected ErrInvalidRoom, got %v", err)
	}
	if s.State() != StateConnecting {
		t.Fatalf("state = %v", s.State())
	}
	if reg.Groups() != 0 {
		t.Fatal("refused session must not join")
	}

	s.Disconnect()
	if s.State() != StateClosed {
		t.Fatalf("Connecting -> Closed failed: %v", s.State())
	}
}

func TestRoomChatFanOut(t *testing.T) {
	reg := NewRegistry(nil)
	store := &memoryWriter{}
	a := newTestSession(t, RoomProtocol{}, reg, store)
	b := newTestSession(t, RoomProtocol{}, reg, store)
	if err := a.Connect("lobby"); err != nil {
		t.Fatal(err)
	}
	if err := b.Connect("lobby"); err != nil {
		t.Fatal(err)
	}

	if cerr := a.Receive(context.Background(), []byte(`{"message":"hi","username":"alice","room":"lobby"}`)); cerr != nil {
		t.Fatalf("receive: %v", cerr)
	}

	for _, s := range []*Session{a, b} {
		frame := nextFrame(t, s)
		if len(frame) != 2 || frame["message"] != "hi" || frame["username"] != "alice" {
			t.Fatalf("unexpected frame: %v", frame)
		}
		assertNoEvent(t, s.Endpoint())
	}

	saved := store.roomMessages()
	if len(saved) != 1 || saved[0] != (savedMessage{Username: "alice", Room: "lobby", Content: "hi"}) {
		t.Fatalf("unexpected persisted rows: %+v", saved)
	}
}

func TestMissingFieldKeepsSessionOpen(t *testing.T) {
	reg := NewRegistry(nil)
	store := &memoryWriter{}
	a := newTestSession(t, RoomProtocol{}, reg, store)
	b := newTestSession(t, RoomProtocol{}, reg, store)
	_ = a.Connect("lobby")
	_ = b.Connect("lobby")

	cerr := a.Receive(context.Background(), []byte(`{"message":"hi","room":"lobby"}`))
	if cerr == nil || cerr.Code != ErrCodeBadRequest {
		t.Fatalf("expected bad_request, got %v", cerr)
	}

	frame := nextFrame(t, a)
	if frame["type"] != "error" {
		t.Fatalf("expected error frame, got %v", frame)
	}
	assertNoEvent(t, b.Endpoint())
	if len(store.roomMessages()) != 0 {
		t.Fatal("invalid frame must not be persisted")
	}
	if a.State() != StateJoined {
		t.Fatalf("state = %v", a.State())
	}

	if cerr := a.Receive(context.Background(), []byte(`{"message":"again","username":"alice","room":"lobby"}`)); cerr != nil {
		t.Fatalf("valid frame after error: %v", cerr)
	}
	if got := nextFrame(t, b); got["message"] != "again" {
		t.Fatalf("unexpected frame: %v", got)
	}
}

func TestMalformedFrameIsRejected(t *testing.T) {
	reg := NewRegistry(nil)
	a := newTestSession(t, RoomProtocol{}, reg, &memoryWriter{})
	_ = a.Connect("lobby")

	cerr := a.Receive(context.Background(), []byte(`not json`))
	if cerr == nil || cerr.Code != ErrCodeBadRequest {
		t.Fatalf("expected bad_request, got %v", cerr)
	}
	errFrame := nextFrame(t, a)["error"].(map[string]any)
	if errFrame["code"] != ErrCodeBadRequest {
		t.Fatalf("unexpected error frame: %v", errFrame)
	}
}

func TestPersistFailurePreventsBroadcast(t *testing.T) {
	reg := NewRegistry(nil)
	store := &memoryWriter{}
	store.setFail(true)
	a := newTestSession(t, RoomProtocol{}, reg, store)
	b := newTestSession(t, RoomProtocol{}, reg, store)
	_ = a.Connect("lobby")
	_ = b.Connect("lobby")

	cerr := a.Receive(context.Background(), []byte(`{"message":"hi","username":"alice","room":"lobby"}`))
	if cerr == nil || cerr.Code != ErrCodePersistFailed {
		t.Fatalf("expected persist_failed, got %v", cerr)
	}
	if !errors.Is(cerr, errStoreDown) {
		t.Fatalf("persist_failed should keep the store error: %v", cerr)
	}

	frame := nextFrame(t, a)
	if frame["type"] != "error" {
		t.Fatalf("sender must only see the error, got %v", frame)
	}
	assertNoEvent(t, a.Endpoint())
	assertNoEvent(t, b.Endpoint())
	if a.State() != StateJoined {
		t.Fatal("persist failure must not end the session")
	}
}

func TestDisconnectedMemberReceivesNothing(t *testing.T) {
	reg := NewRegistry(nil)
	store := &memoryWriter{}
	a := newTestSession(t, RoomProtocol{}, reg, store)
	b := newTestSession(t, RoomProtocol{}, reg, store)
	_ = a.Connect("lobby")
	_ = b.Connect("lobby")
	a.Disconnect()

	if cerr := b.Receive(context.Background(), []byte(`{"message":"anyone?","username":"bob","room":"lobby"}`)); cerr != nil {
		t.Fatalf("receive: %v", cerr)
	}

	if got := nextFrame(t, b); got["username"] != "bob" {
		t.Fatalf("unexpected echo: %v", got)
	}
	assertNoEvent(t, a.Endpoint())
	if reg.Members(b.GroupKey()) != 1 {
		t.Fatalf("members = %d", reg.Members(b.GroupKey()))
	}
}

func TestDirectChatFrameShape(t *testing.T) {
	reg := NewRegistry(nil)
	store := &memoryWriter{}
	s := newTestSession(t, DirectProtocol{}, reg, store)
	if err := s.Connect("dm-1"); err != nil {
		t.Fatal(err)
	}
	if s.GroupKey() != "chat_dm_dm-1" {
		t.Fatalf("key = %q", s.GroupKey())
	}

	payload := `{"message":"hey","senderUsername":"alice","receiverUsername":"bob","room":"dm-1"}`
	if cerr := s.Receive(context.Background(), []byte(payload)); cerr != nil {
		t.Fatalf("receive: %v", cerr)
	}

	frame := nextFrame(t, s)
	if _, hasRoom := frame["room"]; hasRoom {
		t.Fatalf("outbound frame must omit room: %v", frame)
	}
	if frame["message"] != "hey" || frame["senderUsername"] != "alice" || frame["receiverUsername"] != "bob" {
		t.Fatalf("unexpected frame: %v", frame)
	}

	want := savedMessage{Sender: "alice", Receiver: "bob", Room: "dm-1", Content: "hey"}
	if got := store.directMessages(); len(got) != 1 || got[0] != want {
		t.Fatalf("unexpected persisted rows: %+v", got)
	}
	if len(store.roomMessages()) != 0 {
		t.Fatal("direct chat must not write room messages")
	}
}

func TestDirectAndRoomSessionsDoNotMix(t *testing.T) {
	reg := NewRegistry(nil)
	store := &memoryWriter{}
	room := newTestSession(t, RoomProtocol{}, reg, store)
	direct := newTestSession(t, DirectProtocol{}, reg, store)
	_ = room.Connect("42")
	_ = direct.Connect("42")

	if cerr := room.Receive(context.Background(), []byte(`{"message":"hi","username":"alice","room":"42"}`)); cerr != nil {
		t.Fatal(cerr)
	}
	nextFrame(t, room)
	assertNoEvent(t, direct.Endpoint())
}

func TestReceiveBeforeConnect(t *testing.T) {
	reg := NewRegistry(nil)
	s := newTestSession(t, RoomProtocol{}, reg, &memoryWriter{})

	cerr := s.Receive(context.Background(), []byte(`{"message":"hi","username":"alice","room":"lobby"}`))
	if cerr == nil || cerr.Code != ErrCodeNotJoined {
		t.Fatalf("expected not_joined, got %v", cerr)
	}
	if !errors.Is(cerr, ErrNotJoined) {
		t.Fatalf("not_joined should wrap ErrNotJoined: %v", cerr)
	}

	s.Disconnect()
	if cerr := s.Receive(context.Background(), []byte(`{}`)); cerr == nil || !errors.Is(cerr, ErrNotJoined) {
		t.Fatalf("closed session should report ErrNotJoined, got %v", cerr)
	}
}

func TestDispatchWriteFailureDisconnects(t *testing.T) {
	reg := NewRegistry(nil)
	s := newTestSession(t, RoomProtocol{}, reg, &memoryWriter{})
	_ = s.Connect("lobby")

	writeErr := errors.New("broken pipe")
	err := s.Dispatch(context.Background(), chatEvent("hi"), func(context.Context, []byte) error {
		return writeErr
	})
	if !errors.Is(err, writeErr) {
		t.Fatalf("expected write error, got %v", err)
	}
	if s.State() != StateClosed || reg.Members("chat_lobby") != 0 {
		t.Fatalf("write failure must disconnect: state=%v", s.State())
	}
	if err := s.Dispatch(context.Background(), chatEvent("again"), nil); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("dispatch after close: %v", err)
	}
}

type failingRelay struct{}

func (failingRelay) Publish(context.Context, GroupKey, Event) error {
	return errors.New("relay down")
}

func TestRelayFailureIsReported(t *testing.T) {
	reg := NewRegistry(nil)
	reg.UseRelay(failingRelay{})
	store := &memoryWriter{}
	s := newTestSession(t, RoomProtocol{}, reg, store)
	_ = s.Connect("lobby")

	cerr := s.Receive(context.Background(), []byte(`{"message":"hi","username":"alice","room":"lobby"}`))
	if cerr == nil || cerr.Code != ErrCodeBroadcastFailed {
		t.Fatalf("expected broadcast_failed, got %v", cerr)
	}
	if len(store.roomMessages()) != 1 {
		t.Fatal("message should have been persisted before the broadcast attempt")
	}
}
