// Package message persists conversation messages and reconciles provider
// delivery-status callbacks against them.
package message

import (
	"time"

	"github.com/crm360hq/crm360/internal/channel"
)

// Direction distinguishes customer messages from agent replies.
type Direction string

const (
	DirectionInbound  Direction = "INBOUND"
	DirectionOutbound Direction = "OUTBOUND"
)

// Message is one row in a conversation thread.
type Message struct {
	ID             string
	TenantID       string
	ConversationID string
	Direction      Direction
	ContentType    string
	Text           string
	ExternalID     string
	Status         channel.MessageStatus
	FailureReason  string
	SentAt         time.Time
	DeliveredAt    time.Time
	ReadAt         time.Time
	FailedAt       time.Time
	ProviderTime   time.Time
	CreatedAt      time.Time
}

// IngestParams carries an inbound message into persistence.
type IngestParams struct {
	TenantID       string
	ConversationID string
	ContentType    string
	Text           string
	ExternalID     string
	ProviderTime   time.Time
}

// ReconcileOutcome reports what a status callback did.
type ReconcileOutcome struct {
	Applied bool
	// MatchedID is empty when no stored message matched any candidate id.
	MatchedID string
	Status    channel.MessageStatus
	Reason    string
}
