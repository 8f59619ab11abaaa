package message

import (
	"context"
	"log/slog"
	"testing"

	"github.com/crm360hq/crm360/internal/channel"
)

type fakeReconcileStore struct {
	byExternalID map[string]*Message
	lookups      []string
}

func newFakeReconcileStore() *fakeReconcileStore {
	return &fakeReconcileStore{byExternalID: map[string]*Message{}}
}

func (f *fakeReconcileStore) add(externalID string, status channel.MessageStatus) *Message {
	m := &Message{
		ID:         "msg-" + externalID,
		ExternalID: externalID,
		Direction:  DirectionOutbound,
		Status:     status,
	}
	f.byExternalID[externalID] = m
	return m
}

func (f *fakeReconcileStore) FindOutboundByExternalID(_ context.Context, _, externalID string) (Message, error) {
	f.lookups = append(f.lookups, externalID)
	m, ok := f.byExternalID[externalID]
	if !ok {
		return Message{}, ErrNotFound
	}
	return *m, nil
}

func (f *fakeReconcileStore) ApplyStatus(_ context.Context, messageID string, status channel.MessageStatus, reason string) (bool, error) {
	for _, m := range f.byExternalID {
		if m.ID != messageID {
			continue
		}
		// Mirror the store's conditional update.
		for _, p := range channel.PredecessorsOf(status) {
			if m.Status == p {
				m.Status = status
				if reason != "" {
					m.FailureReason = reason
				}
				return true, nil
			}
		}
		return false, nil
	}
	return false, nil
}

type recordingNotifier struct {
	calls []channel.MessageStatus
}

func (n *recordingNotifier) NotifyStatusChange(_ context.Context, _, _ string, status channel.MessageStatus, _ string) {
	n.calls = append(n.calls, status)
}

func update(status channel.MessageStatus, candidates ...string) channel.StatusUpdate {
	return channel.StatusUpdate{Status: status, ExternalIDCandidates: candidates}
}

func TestReconcile_AppliesForwardTransition(t *testing.T) {
	store := newFakeReconcileStore()
	store.add("wamid.1", channel.StatusSent)
	notifier := &recordingNotifier{}
	r := NewReconciler(slog.Default(), store, notifier)

	outcome, err := r.Reconcile(context.Background(), "tenant-1", update(channel.StatusDelivered, "wamid.1"))
	if err != nil {
		t.Fatal(err)
	}
	if !outcome.Applied {
		t.Fatal("expected applied")
	}
	if store.byExternalID["wamid.1"].Status != channel.StatusDelivered {
		t.Errorf("status = %s", store.byExternalID["wamid.1"].Status)
	}
	if len(notifier.calls) != 1 {
		t.Errorf("notifier calls = %v", notifier.calls)
	}
}

func TestReconcile_DuplicateIsNoOp(t *testing.T) {
	store := newFakeReconcileStore()
	store.add("wamid.1", channel.StatusSent)
	notifier := &recordingNotifier{}
	r := NewReconciler(slog.Default(), store, notifier)

	for i := 0; i < 2; i++ {
		if _, err := r.Reconcile(context.Background(), "tenant-1", update(channel.StatusDelivered, "wamid.1")); err != nil {
			t.Fatal(err)
		}
	}
	if len(notifier.calls) != 1 {
		t.Errorf("duplicate callback notified: %v", notifier.calls)
	}
}

func TestReconcile_OutOfOrderNeverRegresses(t *testing.T) {
	store := newFakeReconcileStore()
	msg := store.add("wamid.1", channel.StatusQueued)
	r := NewReconciler(slog.Default(), store, &recordingNotifier{})

	// READ arrives before SENT and DELIVERED.
	sequence := []channel.MessageStatus{channel.StatusRead, channel.StatusSent, channel.StatusDelivered}
	for _, st := range sequence {
		if _, err := r.Reconcile(context.Background(), "tenant-1", update(st, "wamid.1")); err != nil {
			t.Fatal(err)
		}
	}
	if msg.Status != channel.StatusRead {
		t.Errorf("status = %s, want READ", msg.Status)
	}
}

func TestReconcile_MonotonicProperty(t *testing.T) {
	// Final status equals the max rank seen, for several interleavings.
	interleavings := [][]channel.MessageStatus{
		{channel.StatusSent, channel.StatusDelivered, channel.StatusRead},
		{channel.StatusRead, channel.StatusDelivered, channel.StatusSent},
		{channel.StatusDelivered, channel.StatusSent, channel.StatusDelivered},
		{channel.StatusSent, channel.StatusSent, channel.StatusSent},
	}
	for _, seq := range interleavings {
		store := newFakeReconcileStore()
		msg := store.add("ext", channel.StatusQueued)
		r := NewReconciler(slog.Default(), store, &recordingNotifier{})

		max := channel.StatusQueued
		for _, st := range seq {
			if _, err := r.Reconcile(context.Background(), "tenant-1", update(st, "ext")); err != nil {
				t.Fatal(err)
			}
			if st.Rank() > max.Rank() {
				max = st
			}
		}
		if msg.Status != max {
			t.Errorf("sequence %v: status = %s, want %s", seq, msg.Status, max)
		}
	}
}

func TestReconcile_FailedIsTerminal(t *testing.T) {
	store := newFakeReconcileStore()
	msg := store.add("ext", channel.StatusSent)
	r := NewReconciler(slog.Default(), store, &recordingNotifier{})

	failed := channel.StatusUpdate{
		Status:               channel.StatusFailed,
		ExternalIDCandidates: []string{"ext"},
		FailureReason:        "re-engagement window expired",
	}
	if _, err := r.Reconcile(context.Background(), "tenant-1", failed); err != nil {
		t.Fatal(err)
	}
	if msg.Status != channel.StatusFailed {
		t.Fatalf("status = %s", msg.Status)
	}
	if msg.FailureReason != "re-engagement window expired" {
		t.Errorf("reason = %q", msg.FailureReason)
	}

	// A late DELIVERED cannot resurrect a failed message.
	if _, err := r.Reconcile(context.Background(), "tenant-1", update(channel.StatusDelivered, "ext")); err != nil {
		t.Fatal(err)
	}
	if msg.Status != channel.StatusFailed {
		t.Errorf("status = %s, want FAILED to stay terminal", msg.Status)
	}
}

func TestReconcile_CandidateOrderAndGeneratedIDsSkipped(t *testing.T) {
	store := newFakeReconcileStore()
	store.add("second", channel.StatusSent)
	r := NewReconciler(slog.Default(), store, &recordingNotifier{})

	gen := channel.GeneratedExternalID()
	outcome, err := r.Reconcile(context.Background(), "tenant-1",
		update(channel.StatusDelivered, gen, "", "first", "second", "third"))
	if err != nil {
		t.Fatal(err)
	}
	if !outcome.Applied {
		t.Fatal("expected applied")
	}
	// Generated and blank ids never hit the store; search stops at first match.
	want := []string{"first", "second"}
	if len(store.lookups) != len(want) {
		t.Fatalf("lookups = %v", store.lookups)
	}
	for i, l := range want {
		if store.lookups[i] != l {
			t.Errorf("lookup[%d] = %s, want %s", i, store.lookups[i], l)
		}
	}
}

func TestReconcile_NoMatchIsDroppedQuietly(t *testing.T) {
	store := newFakeReconcileStore()
	notifier := &recordingNotifier{}
	r := NewReconciler(slog.Default(), store, notifier)

	outcome, err := r.Reconcile(context.Background(), "tenant-1", update(channel.StatusDelivered, "unknown"))
	if err != nil {
		t.Fatal(err)
	}
	if outcome.Applied || outcome.MatchedID != "" {
		t.Errorf("outcome = %+v", outcome)
	}
	if len(notifier.calls) != 0 {
		t.Errorf("notifier called for unmatched callback")
	}
}
