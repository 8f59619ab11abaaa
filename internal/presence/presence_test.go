package presence

import (
	"context"
	"log/slog"
	"testing"
	"time"
)

type fakePresenceStore struct {
	records map[string]*Record
	swept   []time.Time
}

func newFakePresenceStore() *fakePresenceStore {
	return &fakePresenceStore{records: map[string]*Record{}}
}

func (f *fakePresenceStore) Upsert(_ context.Context, tenantID, agentID string, isOnline bool) error {
	f.records[agentID] = &Record{
		AgentID: agentID, TenantID: tenantID, IsOnline: isOnline, LastSeenAt: time.Now(),
	}
	return nil
}

func (f *fakePresenceStore) Heartbeat(_ context.Context, agentID string) error {
	if r, ok := f.records[agentID]; ok {
		r.LastSeenAt = time.Now()
	}
	return nil
}

func (f *fakePresenceStore) ListOnline(_ context.Context, tenantID string, seenAfter time.Time) ([]Record, error) {
	var out []Record
	for _, r := range f.records {
		if r.TenantID == tenantID && r.IsOnline && r.LastSeenAt.After(seenAfter) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakePresenceStore) MarkStaleOffline(_ context.Context, seenBefore time.Time) (int64, error) {
	f.swept = append(f.swept, seenBefore)
	var n int64
	for _, r := range f.records {
		if r.IsOnline && r.LastSeenAt.Before(seenBefore) {
			r.IsOnline = false
			n++
		}
	}
	return n, nil
}

func TestListOnline_FiltersStaleHeartbeats(t *testing.T) {
	store := newFakePresenceStore()
	svc := NewService(slog.Default(), store, 2*time.Minute)

	if err := svc.SetOnline(context.Background(), "tenant-1", "agent-fresh", true); err != nil {
		t.Fatal(err)
	}
	if err := svc.SetOnline(context.Background(), "tenant-1", "agent-stale", true); err != nil {
		t.Fatal(err)
	}
	if err := svc.SetOnline(context.Background(), "tenant-1", "agent-off", false); err != nil {
		t.Fatal(err)
	}
	// Stale: flag still online, heartbeat old.
	store.records["agent-stale"].LastSeenAt = time.Now().Add(-10 * time.Minute)

	online, err := svc.ListOnline(context.Background(), "tenant-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(online) != 1 || online[0] != "agent-fresh" {
		t.Errorf("online = %v", online)
	}
}

func TestHeartbeat_RevivesAgent(t *testing.T) {
	store := newFakePresenceStore()
	svc := NewService(slog.Default(), store, 2*time.Minute)

	if err := svc.SetOnline(context.Background(), "tenant-1", "agent-1", true); err != nil {
		t.Fatal(err)
	}
	store.records["agent-1"].LastSeenAt = time.Now().Add(-10 * time.Minute)
	if err := svc.Heartbeat(context.Background(), "agent-1"); err != nil {
		t.Fatal(err)
	}

	online, err := svc.ListOnline(context.Background(), "tenant-1")
	if err != nil {
		t.Fatal(err)
	}
	if len(online) != 1 {
		t.Errorf("online = %v", online)
	}
}

func TestSweepStale_FlipsFlags(t *testing.T) {
	store := newFakePresenceStore()
	svc := NewService(slog.Default(), store, 2*time.Minute)

	if err := svc.SetOnline(context.Background(), "tenant-1", "agent-1", true); err != nil {
		t.Fatal(err)
	}
	store.records["agent-1"].LastSeenAt = time.Now().Add(-10 * time.Minute)

	svc.SweepStale(context.Background())
	if store.records["agent-1"].IsOnline {
		t.Error("stale agent still flagged online")
	}
	if len(store.swept) != 1 {
		t.Errorf("sweeps = %v", store.swept)
	}
}
