package msg91

import (
	"testing"

	"github.com/crm360hq/crm360/internal/channel"
)

func TestSMS_NormalizeInbound(t *testing.T) {
	t.Parallel()
	payload := `{"mobile":"919876500000","message":"STOP sending offers","date":"2026-08-29 10:15:00"}`
	res := NewSMS().Normalize(channel.Account{}, []byte(payload))
	if res.Kind != channel.KindMessage {
		t.Fatalf("kind = %s (%s)", res.Kind, res.Reason)
	}
	if res.Message.SenderIdentifier != "+919876500000" {
		t.Errorf("sender = %s", res.Message.SenderIdentifier)
	}
	if res.Message.Text != "STOP sending offers" {
		t.Errorf("text = %s", res.Message.Text)
	}
	if !channel.IsGeneratedExternalID(res.Message.ExternalID) {
		t.Errorf("expected generated id, got %q", res.Message.ExternalID)
	}
}

func TestSMS_NormalizeDeliveryReport(t *testing.T) {
	t.Parallel()
	payload := `{"requestId":"3b6f2d","status":"1","date":"2026-08-29 10:16:00"}`
	res := NewSMS().Normalize(channel.Account{}, []byte(payload))
	if res.Kind != channel.KindStatus {
		t.Fatalf("kind = %s (%s)", res.Kind, res.Reason)
	}
	if res.Status.Status != channel.StatusDelivered {
		t.Errorf("status = %s", res.Status.Status)
	}
	if len(res.Status.ExternalIDCandidates) != 1 || res.Status.ExternalIDCandidates[0] != "3b6f2d" {
		t.Errorf("candidates = %v", res.Status.ExternalIDCandidates)
	}
}

func TestSMS_NormalizeFailedReport(t *testing.T) {
	t.Parallel()
	payload := `{"requestId":"3b6f2e","status":"failed","description":"absent subscriber"}`
	res := NewSMS().Normalize(channel.Account{}, []byte(payload))
	if res.Kind != channel.KindStatus {
		t.Fatalf("kind = %s (%s)", res.Kind, res.Reason)
	}
	if res.Status.Status != channel.StatusFailed {
		t.Errorf("status = %s", res.Status.Status)
	}
	if res.Status.FailureReason != "absent subscriber" {
		t.Errorf("failure reason = %q", res.Status.FailureReason)
	}
}

func TestSMS_Unroutable(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{`not json`, `{}`, `{"requestId":"x","status":"weird"}`} {
		res := NewSMS().Normalize(channel.Account{}, []byte(raw))
		if res.Kind != channel.KindUnroutable {
			t.Errorf("payload %q: kind = %s, want unroutable", raw, res.Kind)
		}
	}
}
