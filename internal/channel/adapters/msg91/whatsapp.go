// Package msg91 normalizes webhook payloads from MSG91, which relays WhatsApp
// Cloud API events and its own SMS delivery reports.
package msg91

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/crm360hq/crm360/internal/channel"
)

// WhatsApp normalizes MSG91 WhatsApp webhook payloads. MSG91 relays the Meta
// Cloud API envelope mostly untouched, so the shapes here follow the Cloud API
// webhook reference.
type WhatsApp struct{}

func NewWhatsApp() *WhatsApp { return &WhatsApp{} }

func (w *WhatsApp) Provider() string { return "msg91-whatsapp" }

type waEnvelope struct {
	Entry []struct {
		Changes []struct {
			Value waValue `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

type waValue struct {
	Contacts []struct {
		WaID    string `json:"wa_id"`
		Profile struct {
			Name string `json:"name"`
		} `json:"profile"`
	} `json:"contacts"`
	Messages []waMessage `json:"messages"`
	Statuses []waStatus  `json:"statuses"`
}

type waMessage struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      struct {
		Body string `json:"body"`
	} `json:"text"`
	Image       waMedia `json:"image"`
	Video       waMedia `json:"video"`
	Audio       waMedia `json:"audio"`
	Document    waMedia `json:"document"`
	Sticker     waMedia `json:"sticker"`
	Location    struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Name      string  `json:"name"`
		Address   string  `json:"address"`
	} `json:"location"`
	Contacts []struct {
		Name struct {
			FormattedName string `json:"formatted_name"`
		} `json:"name"`
	} `json:"contacts"`
	Interactive struct {
		ButtonReply struct {
			Title string `json:"title"`
		} `json:"button_reply"`
		ListReply struct {
			Title string `json:"title"`
		} `json:"list_reply"`
	} `json:"interactive"`
	Button struct {
		Text string `json:"text"`
	} `json:"button"`
	Reaction struct {
		Emoji string `json:"emoji"`
	} `json:"reaction"`
}

type waMedia struct {
	Caption  string `json:"caption"`
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
}

type waStatus struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	RecipientID string `json:"recipient_id"`
	Errors      []struct {
		Code    int    `json:"code"`
		Title   string `json:"title"`
		Message string `json:"message"`
	} `json:"errors"`
	Conversation struct {
		ID string `json:"id"`
	} `json:"conversation"`
}

// Cloud API error codes worth mapping to a stable reason; anything else falls
// back to the provider title.
var waFailureReasons = map[int]string{
	131047: "re-engagement window expired",
	131026: "recipient cannot receive this message",
	131051: "unsupported message type",
	131053: "media upload error",
	470:    "re-engagement window expired",
	1013:   "recipient not a valid whatsapp user",
}

func (w *WhatsApp) Normalize(account channel.Account, raw []byte) channel.Result {
	var env waEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return channel.Unroutable("msg91 whatsapp: malformed json")
	}
	for _, entry := range env.Entry {
		for _, change := range entry.Changes {
			if len(change.Value.Statuses) > 0 {
				return normalizeWAStatus(change.Value.Statuses[0])
			}
			if len(change.Value.Messages) > 0 {
				return normalizeWAMessage(change.Value)
			}
		}
	}
	return channel.Unroutable("msg91 whatsapp: no messages or statuses in payload")
}

func normalizeWAMessage(value waValue) channel.Result {
	msg := value.Messages[0]

	sender := channel.NormalizePhone(msg.From)
	if sender == "" {
		return channel.Unroutable("msg91 whatsapp: message has no sender")
	}
	name := ""
	for _, c := range value.Contacts {
		if channel.NormalizePhone(c.WaID) == sender && c.Profile.Name != "" {
			name = c.Profile.Name
			break
		}
	}

	contentType, text := waContent(msg)

	externalID := strings.TrimSpace(msg.ID)
	if externalID == "" {
		externalID = channel.GeneratedExternalID()
	}

	return channel.Result{
		Kind: channel.KindMessage,
		Message: channel.InboundMessage{
			Channel:          channel.TypeWhatsApp,
			SenderIdentifier: sender,
			SenderName:       name,
			ContentType:      contentType,
			Text:             text,
			ExternalID:       externalID,
			ProviderTime:     unixStringTime(msg.Timestamp),
		},
	}
}

func waContent(msg waMessage) (contentType, text string) {
	switch msg.Type {
	case "text":
		return "text", msg.Text.Body
	case "image":
		return "image", msg.Image.Caption
	case "video":
		return "video", msg.Video.Caption
	case "audio":
		return "audio", ""
	case "document":
		if msg.Document.Caption != "" {
			return "document", msg.Document.Caption
		}
		return "document", msg.Document.Filename
	case "sticker":
		return "sticker", ""
	case "location":
		loc := fmt.Sprintf("%v,%v", msg.Location.Latitude, msg.Location.Longitude)
		if msg.Location.Name != "" {
			loc = msg.Location.Name + " " + loc
		}
		return "location", loc
	case "contacts":
		names := make([]string, 0, len(msg.Contacts))
		for _, c := range msg.Contacts {
			if c.Name.FormattedName != "" {
				names = append(names, c.Name.FormattedName)
			}
		}
		return "contacts", strings.Join(names, ", ")
	case "interactive":
		if msg.Interactive.ButtonReply.Title != "" {
			return "interactive", msg.Interactive.ButtonReply.Title
		}
		return "interactive", msg.Interactive.ListReply.Title
	case "button":
		return "button", msg.Button.Text
	case "reaction":
		return "reaction", msg.Reaction.Emoji
	default:
		// Unknown content still creates a message so the agent sees activity.
		return "unsupported", ""
	}
}

func normalizeWAStatus(st waStatus) channel.Result {
	var status channel.MessageStatus
	switch strings.ToLower(st.Status) {
	case "sent":
		status = channel.StatusSent
	case "delivered":
		status = channel.StatusDelivered
	case "read":
		status = channel.StatusRead
	case "failed":
		status = channel.StatusFailed
	default:
		return channel.Unroutable("msg91 whatsapp: unknown status " + st.Status)
	}

	candidates := []string{}
	if id := strings.TrimSpace(st.ID); id != "" {
		candidates = append(candidates, id)
	}
	if id := strings.TrimSpace(st.Conversation.ID); id != "" {
		candidates = append(candidates, id)
	}
	if len(candidates) == 0 {
		return channel.Unroutable("msg91 whatsapp: status has no message id")
	}

	reason := ""
	if status == channel.StatusFailed {
		reason = waFailureReason(st)
	}

	return channel.Result{
		Kind: channel.KindStatus,
		Status: channel.StatusUpdate{
			Channel:              channel.TypeWhatsApp,
			Status:               status,
			ExternalIDCandidates: candidates,
			FailureReason:        reason,
			ProviderTime:         unixStringTime(st.Timestamp),
		},
	}
}

func waFailureReason(st waStatus) string {
	for _, e := range st.Errors {
		if mapped, ok := waFailureReasons[e.Code]; ok {
			return mapped
		}
		if e.Title != "" {
			return e.Title
		}
		if e.Message != "" {
			return e.Message
		}
	}
	return "delivery failed"
}

func unixStringTime(ts string) time.Time {
	secs, err := strconv.ParseInt(strings.TrimSpace(ts), 10, 64)
	if err != nil || secs <= 0 {
		return time.Now().UTC()
	}
	return time.Unix(secs, 0).UTC()
}
