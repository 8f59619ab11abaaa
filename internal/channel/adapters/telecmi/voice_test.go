package telecmi

import (
	"strings"
	"testing"

	"github.com/crm360hq/crm360/internal/channel"
)

func TestVoice_NormalizeIncomingCall(t *testing.T) {
	t.Parallel()
	payload := `{"event":"call_incoming","cmiuuid":"uuid-1","from":"919876500000","time":1756500000000}`
	res := NewVoice().Normalize(channel.Account{}, []byte(payload))
	if res.Kind != channel.KindMessage {
		t.Fatalf("kind = %s (%s)", res.Kind, res.Reason)
	}
	if res.Message.Channel != channel.TypeVoice {
		t.Errorf("channel = %s", res.Message.Channel)
	}
	if res.Message.SenderIdentifier != "+919876500000" {
		t.Errorf("sender = %s", res.Message.SenderIdentifier)
	}
	if res.Message.Text != "Incoming call" {
		t.Errorf("text = %s", res.Message.Text)
	}
	if res.Message.ExternalID != "uuid-1:call_incoming" {
		t.Errorf("external id = %s", res.Message.ExternalID)
	}
}

func TestVoice_NumericCallerAndCompletion(t *testing.T) {
	t.Parallel()
	payload := `{"event":"call_completed","cmiuuid":"uuid-2","from":919876500000,"duration":42,"record_url":"https://cdn/rec.mp3"}`
	res := NewVoice().Normalize(channel.Account{}, []byte(payload))
	if res.Kind != channel.KindMessage {
		t.Fatalf("kind = %s (%s)", res.Kind, res.Reason)
	}
	if res.Message.SenderIdentifier != "+919876500000" {
		t.Errorf("sender = %s", res.Message.SenderIdentifier)
	}
	if !strings.Contains(res.Message.Text, "42s") || !strings.Contains(res.Message.Text, "recording") {
		t.Errorf("text = %s", res.Message.Text)
	}
}

func TestVoice_Unroutable(t *testing.T) {
	t.Parallel()
	cases := []string{
		`not json`,
		`{"event":"call_incoming"}`,
		`{"event":"totally_new","from":"919876500000"}`,
	}
	for _, raw := range cases {
		res := NewVoice().Normalize(channel.Account{}, []byte(raw))
		if res.Kind != channel.KindUnroutable {
			t.Errorf("payload %q: kind = %s, want unroutable", raw, res.Kind)
		}
	}
}
