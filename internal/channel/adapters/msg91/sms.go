package msg91

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/crm360hq/crm360/internal/channel"
)

// SMS normalizes MSG91 SMS webhooks: inbound long-code/keyword messages and
// flat delivery reports.
type SMS struct{}

func NewSMS() *SMS { return &SMS{} }

func (s *SMS) Provider() string { return "msg91-sms" }

type smsPayload struct {
	// Inbound message fields.
	Mobile  string `json:"mobile"`
	Sender  string `json:"sender"`
	Message string `json:"message"`
	Content string `json:"content"`

	// Delivery report fields.
	RequestID   string `json:"requestId"`
	Status      string `json:"status"`
	Description string `json:"description"`

	Date string `json:"date"`
}

func (s *SMS) Normalize(account channel.Account, raw []byte) channel.Result {
	var p smsPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return channel.Unroutable("msg91 sms: malformed json")
	}

	if p.RequestID != "" && p.Status != "" {
		return normalizeSMSReport(p)
	}

	sender := channel.NormalizePhone(p.Mobile)
	if sender == "" {
		sender = channel.NormalizePhone(p.Sender)
	}
	if sender == "" {
		return channel.Unroutable("msg91 sms: payload has no sender or request id")
	}
	text := p.Message
	if text == "" {
		text = p.Content
	}

	return channel.Result{
		Kind: channel.KindMessage,
		Message: channel.InboundMessage{
			Channel:          channel.TypeSMS,
			SenderIdentifier: sender,
			ContentType:      "text",
			Text:             text,
			ExternalID:       channel.GeneratedExternalID(),
			ProviderTime:     smsTime(p.Date),
		},
	}
}

var smsStatuses = map[string]channel.MessageStatus{
	"1":         channel.StatusDelivered,
	"delivered": channel.StatusDelivered,
	"2":         channel.StatusFailed,
	"failed":    channel.StatusFailed,
	"rejected":  channel.StatusFailed,
	"16":        channel.StatusFailed,
	"sent":      channel.StatusSent,
	"queued":    channel.StatusQueued,
}

func normalizeSMSReport(p smsPayload) channel.Result {
	status, ok := smsStatuses[strings.ToLower(strings.TrimSpace(p.Status))]
	if !ok {
		return channel.Unroutable("msg91 sms: unknown status " + p.Status)
	}
	reason := ""
	if status == channel.StatusFailed {
		reason = strings.TrimSpace(p.Description)
		if reason == "" {
			reason = "delivery failed"
		}
	}
	return channel.Result{
		Kind: channel.KindStatus,
		Status: channel.StatusUpdate{
			Channel:              channel.TypeSMS,
			Status:               status,
			ExternalIDCandidates: []string{strings.TrimSpace(p.RequestID)},
			FailureReason:        reason,
			ProviderTime:         smsTime(p.Date),
		},
	}
}

func smsTime(date string) time.Time {
	date = strings.TrimSpace(date)
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, date); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}
