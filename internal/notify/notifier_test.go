package notify

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/crm360hq/crm360/internal/assignment"
	"github.com/crm360hq/crm360/internal/channel"
	"github.com/crm360hq/crm360/internal/message"
)

type fakePublisher struct {
	keys []string
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, key string, _ Event) error {
	f.keys = append(f.keys, key)
	return f.err
}

func (f *fakePublisher) Close() error { return nil }

func TestNotifier_PublishesDomainEvents(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewService(slog.Default(), NewHub(slog.Default()), pub)

	svc.NotifyNewMessage(context.Background(), "tenant-1", message.Message{ID: "msg-1"})
	svc.NotifyStatusChange(context.Background(), "tenant-1", "msg-1", channel.StatusDelivered, "")
	svc.NotifyAssignment(context.Background(), "tenant-1", "conv-1", assignment.Decision{RuleName: "r"})

	want := []string{KeyMessageReceived, KeyMessageStatus, KeyConversationAssigned}
	if len(pub.keys) != len(want) {
		t.Fatalf("keys = %v", pub.keys)
	}
	for i, k := range want {
		if pub.keys[i] != k {
			t.Errorf("key[%d] = %s, want %s", i, pub.keys[i], k)
		}
	}
}

func TestNotifier_SwallowsPublisherFailure(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := NewService(slog.Default(), NewHub(slog.Default()), pub)

	// Must not panic or surface the error.
	svc.NotifyStatusChange(context.Background(), "tenant-1", "msg-1", channel.StatusRead, "")
	if len(pub.keys) != 1 {
		t.Errorf("keys = %v", pub.keys)
	}
}

func TestNotifier_NilPublisherStillFansOut(t *testing.T) {
	hub := NewHub(slog.Default())
	svc := NewService(slog.Default(), hub, nil)
	svc.NotifyNewMessage(context.Background(), "tenant-1", message.Message{ID: "msg-1"})
	// No connected clients, no publisher: still a safe no-op.
	if hub.ClientCount("tenant-1") != 0 {
		t.Error("unexpected clients")
	}
}
