package channel

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ChannelType identifies the messaging channel a conversation lives on.
type ChannelType string

const (
	TypeWhatsApp ChannelType = "whatsapp"
	TypeSMS      ChannelType = "sms"
	TypeEmail    ChannelType = "email"
	TypeVoice    ChannelType = "voice"
)

func (t ChannelType) String() string { return string(t) }

// Account is a tenant's registration of a provider channel (the webhook target).
type Account struct {
	ID          string
	TenantID    string
	Provider    string
	ChannelType ChannelType
	DisplayName string
	Config      map[string]any
	IsActive    bool
}

// MessageStatus is the canonical delivery status ladder for outbound messages.
type MessageStatus string

const (
	StatusQueued    MessageStatus = "QUEUED"
	StatusSent      MessageStatus = "SENT"
	StatusDelivered MessageStatus = "DELIVERED"
	StatusRead      MessageStatus = "READ"
	StatusFailed    MessageStatus = "FAILED"
)

// statusRanks orders the forward-only ladder. FAILED is terminal and handled
// separately from rank comparison.
var statusRanks = map[MessageStatus]int{
	StatusQueued:    0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
}

// Rank returns the position of a status on the ladder, or -1 for FAILED and
// unknown values.
func (s MessageStatus) Rank() int {
	rank, ok := statusRanks[s]
	if !ok {
		return -1
	}
	return rank
}

// PredecessorsOf returns every status strictly below the given status on the
// ladder. Used for conditional store updates: the update applies only when the
// current status is one of these.
func PredecessorsOf(s MessageStatus) []MessageStatus {
	rank := s.Rank()
	if rank < 0 {
		// FAILED is reachable from any non-terminal state.
		return []MessageStatus{StatusQueued, StatusSent, StatusDelivered, StatusRead}
	}
	out := make([]MessageStatus, 0, rank)
	for status, r := range statusRanks {
		if r < rank {
			out = append(out, status)
		}
	}
	return out
}

// InboundMessage is the canonical form of a new customer message.
type InboundMessage struct {
	Channel          ChannelType
	SenderIdentifier string
	SenderName       string
	ContentType      string
	Text             string
	ExternalID       string
	ProviderTime     time.Time
}

// StatusUpdate is the canonical form of a provider delivery-status callback.
type StatusUpdate struct {
	Channel ChannelType
	Status  MessageStatus
	// ExternalIDCandidates is an ordered list of identifiers the stored
	// outbound message might be filed under; the reconciler tries each in
	// turn and stops at the first hit.
	ExternalIDCandidates []string
	FailureReason        string
	ProviderTime         time.Time
}

// ResultKind tags the outcome of payload classification.
type ResultKind string

const (
	KindMessage    ResultKind = "message"
	KindStatus     ResultKind = "status"
	KindUnroutable ResultKind = "unroutable"
)

// Result is the tagged outcome of normalizing a raw webhook payload.
type Result struct {
	Kind    ResultKind
	Message InboundMessage
	Status  StatusUpdate
	// Reason explains an unroutable classification for logging.
	Reason string
}

// Unroutable builds an unroutable result with a log reason.
func Unroutable(reason string) Result {
	return Result{Kind: KindUnroutable, Reason: reason}
}

// Normalizer turns a provider-specific payload into a canonical Result. It
// must be a pure function over the payload and account; unrecognized shapes
// return an unroutable result, never an error the webhook handler would
// surface to the provider.
type Normalizer interface {
	Provider() string
	Normalize(account Account, raw []byte) Result
}

const generatedIDPrefix = "gen-"

// GeneratedExternalID returns a fallback id for inbound messages whose
// provider supplied none. Ids with this prefix are never used for status
// matching.
func GeneratedExternalID() string {
	return generatedIDPrefix + uuid.NewString()
}

// IsGeneratedExternalID reports whether the id was locally generated.
func IsGeneratedExternalID(id string) bool {
	return strings.HasPrefix(strings.TrimSpace(id), generatedIDPrefix)
}

// NormalizePhone canonicalizes a phone-style identifier: strips separators and
// guarantees a leading +.
func NormalizePhone(raw string) string {
	var digits strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return ""
	}
	return "+" + digits.String()
}

// NormalizeEmail canonicalizes an email identifier.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
