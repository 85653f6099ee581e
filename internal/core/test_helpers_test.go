package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func mustEvent(t *testing.T, ep *Endpoint, kind EventKind) Event {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ep.Events():
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("expected event kind %v not received", kind)
			return Event{}
		}
	}
}

func assertNoEvent(t *testing.T, ep *Endpoint) {
	t.Helper()

	select {
	case ev := <-ep.Events():
		t.Fatalf("unexpected event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

type savedMessage struct {
	Username, Sender, Receiver, Room, Content string
}

// memoryWriter records persisted messages; set fail to make every write error.
type memoryWriter struct {
	mu       sync.Mutex
	fail     bool
	messages []savedMessage
	direct   []savedMessage
}

var errStoreDown = errors.New("store unavailable")

func (m *memoryWriter) CreateMessage(_ context.Context, username, room, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errStoreDown
	}
	m.messages = append(m.messages, savedMessage{Username: username, Room: room, Content: content})
	return nil
}

func (m *memoryWriter) CreateDirectMessage(_ context.Context, sender, receiver, room, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errStoreDown
	}
	m.direct = append(m.direct, savedMessage{Sender: sender, Receiver: receiver, Room: room, Content: content})
	return nil
}

func (m *memoryWriter) setFail(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = fail
}

func (m *memoryWriter) roomMessages() []savedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]savedMessage(nil), m.messages...)
}

func (m *memoryWriter) directMessages() []savedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]savedMessage(nil), m.direct...)
}
