// Package telecmi normalizes TeleCMI voice webhook events into synthetic
// conversation messages so calls surface in the shared inbox.
package telecmi

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/crm360hq/crm360/internal/channel"
)

// Voice normalizes TeleCMI call events. Every recognized call event becomes
// an inbound message; voice has no delivery-status ladder.
type Voice struct{}

func NewVoice() *Voice { return &Voice{} }

func (v *Voice) Provider() string { return "telecmi-voice" }

type voicePayload struct {
	Event     string `json:"event"`
	Type      string `json:"type"`
	CMIUUID   string `json:"cmiuuid"`
	From      any    `json:"from"`
	To        any    `json:"to"`
	Direction string `json:"direction"`
	Duration  int    `json:"duration"`
	Status    string `json:"status"`
	Recording string `json:"record_url"`
	Time      int64  `json:"time"`
}

func (v *Voice) Normalize(account channel.Account, raw []byte) channel.Result {
	var p voicePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return channel.Unroutable("telecmi: malformed json")
	}

	event := strings.ToLower(strings.TrimSpace(p.Event))
	if event == "" {
		event = strings.ToLower(strings.TrimSpace(p.Type))
	}

	caller := channel.NormalizePhone(anyToString(p.From))
	if caller == "" {
		return channel.Unroutable("telecmi: event has no caller number")
	}

	var text string
	switch event {
	case "call_incoming", "incoming":
		text = "Incoming call"
	case "call_answered", "answered":
		text = "Call answered"
	case "call_missed", "missed":
		text = "Missed call"
	case "call_completed", "hangup", "completed":
		text = fmt.Sprintf("Call ended, duration %ds", p.Duration)
		if p.Recording != "" {
			text += ", recording available"
		}
	case "voicemail":
		text = "Voicemail received"
	default:
		return channel.Unroutable("telecmi: unknown event " + event)
	}

	externalID := strings.TrimSpace(p.CMIUUID)
	if externalID == "" {
		externalID = channel.GeneratedExternalID()
	} else {
		// A call produces several events under one uuid; suffix keeps each
		// event its own message row.
		externalID = externalID + ":" + event
	}

	return channel.Result{
		Kind: channel.KindMessage,
		Message: channel.InboundMessage{
			Channel:          channel.TypeVoice,
			SenderIdentifier: caller,
			ContentType:      "call_event",
			Text:             text,
			ExternalID:       externalID,
			ProviderTime:     voiceTime(p.Time),
		},
	}
}

// TeleCMI sends numbers as either strings or JSON numbers.
func anyToString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return fmt.Sprintf("%.0f", t)
	default:
		return ""
	}
}

func voiceTime(ms int64) time.Time {
	if ms <= 0 {
		return time.Now().UTC()
	}
	// Epoch millis above ~2001 in seconds; treat big values as millis.
	if ms > 1_000_000_000_000 {
		return time.UnixMilli(ms).UTC()
	}
	return time.Unix(ms, 0).UTC()
}
