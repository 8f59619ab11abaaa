package channel

import "testing"

func TestNormalizePhone(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want string
	}{
		{"919876500000", "+919876500000"},
		{"+91 98765-00000", "+919876500000"},
		{" (91) 98765 00000 ", "+919876500000"},
		{"", ""},
		{"abc", ""},
	}
	for _, tc := range cases {
		if got := NormalizePhone(tc.in); got != tc.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestStatusRank_Ordering(t *testing.T) {
	t.Parallel()
	if !(StatusQueued.Rank() < StatusSent.Rank() &&
		StatusSent.Rank() < StatusDelivered.Rank() &&
		StatusDelivered.Rank() < StatusRead.Rank()) {
		t.Fatal("status ranks are not strictly increasing")
	}
	if StatusFailed.Rank() != -1 {
		t.Fatalf("FAILED rank = %d, want -1", StatusFailed.Rank())
	}
}

func TestPredecessorsOf(t *testing.T) {
	t.Parallel()
	preds := PredecessorsOf(StatusDelivered)
	if len(preds) != 2 {
		t.Fatalf("PredecessorsOf(DELIVERED) has %d entries, want 2", len(preds))
	}
	seen := map[MessageStatus]bool{}
	for _, p := range preds {
		seen[p] = true
	}
	if !seen[StatusQueued] || !seen[StatusSent] {
		t.Fatalf("PredecessorsOf(DELIVERED) = %v, want QUEUED and SENT", preds)
	}

	// FAILED is reachable from every non-terminal state.
	failedPreds := PredecessorsOf(StatusFailed)
	if len(failedPreds) != 4 {
		t.Fatalf("PredecessorsOf(FAILED) has %d entries, want 4", len(failedPreds))
	}
}

func TestGeneratedExternalID(t *testing.T) {
	t.Parallel()
	id := GeneratedExternalID()
	if !IsGeneratedExternalID(id) {
		t.Fatalf("generated id %q not recognized as generated", id)
	}
	if IsGeneratedExternalID("wamid.abc") {
		t.Fatal("provider id misclassified as generated")
	}
}
