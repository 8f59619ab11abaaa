package msg91

import (
	"testing"

	"github.com/crm360hq/crm360/internal/channel"
)

const waTextPayload = `{
  "entry": [{
    "changes": [{
      "value": {
        "contacts": [{"wa_id": "919876500000", "profile": {"name": "Asha"}}],
        "messages": [{
          "id": "wamid.abc123",
          "from": "919876500000",
          "timestamp": "1756500000",
          "type": "text",
          "text": {"body": "need help with my order"}
        }]
      }
    }]
  }]
}`

const waStatusPayload = `{
  "entry": [{
    "changes": [{
      "value": {
        "statuses": [{
          "id": "wamid.out456",
          "status": "read",
          "timestamp": "1756500100",
          "recipient_id": "919876500000"
        }]
      }
    }]
  }]
}`

const waFailedPayload = `{
  "entry": [{
    "changes": [{
      "value": {
        "statuses": [{
          "id": "wamid.out789",
          "status": "failed",
          "timestamp": "1756500200",
          "errors": [{"code": 131047, "title": "Re-engagement message"}]
        }]
      }
    }]
  }]
}`

func TestWhatsApp_NormalizeTextMessage(t *testing.T) {
	t.Parallel()
	res := NewWhatsApp().Normalize(channel.Account{}, []byte(waTextPayload))
	if res.Kind != channel.KindMessage {
		t.Fatalf("kind = %s, want message (%s)", res.Kind, res.Reason)
	}
	msg := res.Message
	if msg.Channel != channel.TypeWhatsApp {
		t.Errorf("channel = %s", msg.Channel)
	}
	if msg.SenderIdentifier != "+919876500000" {
		t.Errorf("sender = %s", msg.SenderIdentifier)
	}
	if msg.SenderName != "Asha" {
		t.Errorf("sender name = %s", msg.SenderName)
	}
	if msg.Text != "need help with my order" {
		t.Errorf("text = %s", msg.Text)
	}
	if msg.ExternalID != "wamid.abc123" {
		t.Errorf("external id = %s", msg.ExternalID)
	}
	if msg.ProviderTime.Unix() != 1756500000 {
		t.Errorf("provider time = %v", msg.ProviderTime)
	}
}

func TestWhatsApp_NormalizeStatus(t *testing.T) {
	t.Parallel()
	res := NewWhatsApp().Normalize(channel.Account{}, []byte(waStatusPayload))
	if res.Kind != channel.KindStatus {
		t.Fatalf("kind = %s, want status (%s)", res.Kind, res.Reason)
	}
	if res.Status.Status != channel.StatusRead {
		t.Errorf("status = %s", res.Status.Status)
	}
	if len(res.Status.ExternalIDCandidates) != 1 || res.Status.ExternalIDCandidates[0] != "wamid.out456" {
		t.Errorf("candidates = %v", res.Status.ExternalIDCandidates)
	}
}

func TestWhatsApp_NormalizeFailedStatus(t *testing.T) {
	t.Parallel()
	res := NewWhatsApp().Normalize(channel.Account{}, []byte(waFailedPayload))
	if res.Kind != channel.KindStatus {
		t.Fatalf("kind = %s, want status (%s)", res.Kind, res.Reason)
	}
	if res.Status.Status != channel.StatusFailed {
		t.Errorf("status = %s", res.Status.Status)
	}
	if res.Status.FailureReason != "re-engagement window expired" {
		t.Errorf("failure reason = %q", res.Status.FailureReason)
	}
}

func TestWhatsApp_MediaMessageKeepsCaption(t *testing.T) {
	t.Parallel()
	payload := `{"entry":[{"changes":[{"value":{"messages":[{
	  "id":"wamid.img1","from":"919876500000","timestamp":"1756500000",
	  "type":"image","image":{"caption":"receipt photo","mime_type":"image/jpeg"}}]}}]}]}`
	res := NewWhatsApp().Normalize(channel.Account{}, []byte(payload))
	if res.Kind != channel.KindMessage {
		t.Fatalf("kind = %s (%s)", res.Kind, res.Reason)
	}
	if res.Message.ContentType != "image" {
		t.Errorf("content type = %s", res.Message.ContentType)
	}
	if res.Message.Text != "receipt photo" {
		t.Errorf("text = %s", res.Message.Text)
	}
}

func TestWhatsApp_MissingExternalIDGetsGenerated(t *testing.T) {
	t.Parallel()
	payload := `{"entry":[{"changes":[{"value":{"messages":[{
	  "from":"919876500000","timestamp":"1756500000","type":"text","text":{"body":"hi"}}]}}]}]}`
	res := NewWhatsApp().Normalize(channel.Account{}, []byte(payload))
	if res.Kind != channel.KindMessage {
		t.Fatalf("kind = %s (%s)", res.Kind, res.Reason)
	}
	if !channel.IsGeneratedExternalID(res.Message.ExternalID) {
		t.Errorf("expected generated external id, got %q", res.Message.ExternalID)
	}
}

func TestWhatsApp_UnroutablePayloads(t *testing.T) {
	t.Parallel()
	cases := []string{
		`not json`,
		`{}`,
		`{"entry":[{"changes":[{"value":{}}]}]}`,
		`{"entry":[{"changes":[{"value":{"messages":[{"type":"text","text":{"body":"hi"}}]}}]}]}`,
	}
	for _, raw := range cases {
		res := NewWhatsApp().Normalize(channel.Account{}, []byte(raw))
		if res.Kind != channel.KindUnroutable {
			t.Errorf("payload %q: kind = %s, want unroutable", raw, res.Kind)
		}
	}
}
