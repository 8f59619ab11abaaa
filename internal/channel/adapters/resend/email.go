// Package resend normalizes Resend webhook events: inbound email and
// delivery lifecycle notifications.
package resend

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/crm360hq/crm360/internal/channel"
)

// Email normalizes Resend webhook payloads.
type Email struct{}

func NewEmail() *Email { return &Email{} }

func (e *Email) Provider() string { return "resend" }

type resendEvent struct {
	Type      string `json:"type"`
	CreatedAt string `json:"created_at"`
	Data      struct {
		EmailID string   `json:"email_id"`
		From    string   `json:"from"`
		To      []string `json:"to"`
		Subject string   `json:"subject"`
		Text    string   `json:"text"`
		HTML    string   `json:"html"`
		Bounce  struct {
			Message string `json:"message"`
			SubType string `json:"subType"`
		} `json:"bounce"`
	} `json:"data"`
}

var resendStatuses = map[string]channel.MessageStatus{
	"email.sent":             channel.StatusSent,
	"email.delivered":        channel.StatusDelivered,
	"email.opened":           channel.StatusRead,
	"email.bounced":          channel.StatusFailed,
	"email.delivery_delayed": channel.StatusQueued,
	"email.failed":           channel.StatusFailed,
	"email.complained":       channel.StatusFailed,
}

func (e *Email) Normalize(account channel.Account, raw []byte) channel.Result {
	var ev resendEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return channel.Unroutable("resend: malformed json")
	}
	eventType := strings.ToLower(strings.TrimSpace(ev.Type))

	if eventType == "email.received" || eventType == "inbound.email.received" {
		return normalizeInboundEmail(ev)
	}

	status, ok := resendStatuses[eventType]
	if !ok {
		return channel.Unroutable("resend: unknown event " + ev.Type)
	}
	id := strings.TrimSpace(ev.Data.EmailID)
	if id == "" {
		return channel.Unroutable("resend: event has no email id")
	}
	reason := ""
	if status == channel.StatusFailed {
		reason = failureReason(eventType, ev)
	}
	return channel.Result{
		Kind: channel.KindStatus,
		Status: channel.StatusUpdate{
			Channel:              channel.TypeEmail,
			Status:               status,
			ExternalIDCandidates: []string{id},
			FailureReason:        reason,
			ProviderTime:         eventTime(ev.CreatedAt),
		},
	}
}

func normalizeInboundEmail(ev resendEvent) channel.Result {
	sender, name := parseAddress(ev.Data.From)
	if sender == "" {
		return channel.Unroutable("resend: inbound email has no sender")
	}
	text := strings.TrimSpace(ev.Data.Text)
	if text == "" {
		text = strings.TrimSpace(ev.Data.Subject)
	}
	externalID := strings.TrimSpace(ev.Data.EmailID)
	if externalID == "" {
		externalID = channel.GeneratedExternalID()
	}
	return channel.Result{
		Kind: channel.KindMessage,
		Message: channel.InboundMessage{
			Channel:          channel.TypeEmail,
			SenderIdentifier: sender,
			SenderName:       name,
			ContentType:      "email",
			Text:             text,
			ExternalID:       externalID,
			ProviderTime:     eventTime(ev.CreatedAt),
		},
	}
}

func failureReason(eventType string, ev resendEvent) string {
	switch eventType {
	case "email.bounced":
		if msg := strings.TrimSpace(ev.Data.Bounce.Message); msg != "" {
			return msg
		}
		if sub := strings.TrimSpace(ev.Data.Bounce.SubType); sub != "" {
			return "bounced: " + sub
		}
		return "email bounced"
	case "email.complained":
		return "recipient marked as spam"
	default:
		return "delivery failed"
	}
}

// parseAddress handles both "Name <addr@host>" and bare addresses.
func parseAddress(raw string) (addr, name string) {
	raw = strings.TrimSpace(raw)
	if open := strings.LastIndex(raw, "<"); open >= 0 {
		end := strings.LastIndex(raw, ">")
		if end > open {
			addr = channel.NormalizeEmail(raw[open+1 : end])
			name = strings.Trim(strings.TrimSpace(raw[:open]), `"`)
			return addr, name
		}
	}
	if strings.Contains(raw, "@") {
		return channel.NormalizeEmail(raw), ""
	}
	return "", ""
}

func eventTime(ts string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, strings.TrimSpace(ts)); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}
