// Package conversation resolves inbound messages to their open thread and
// manages conversation lifecycle state.
package conversation

import (
	"time"

	"github.com/crm360hq/crm360/internal/channel"
)

// Status is the conversation lifecycle state.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusOpen     Status = "OPEN"
	StatusSnoozed  Status = "SNOOZED"
	StatusResolved Status = "RESOLVED"
	StatusClosed   Status = "CLOSED"
)

// IsOpenLike reports whether the status counts against the one-open-thread
// uniqueness rule.
func (s Status) IsOpenLike() bool {
	return s == StatusOpen || s == StatusPending
}

// Conversation is one thread with a contact over one channel.
type Conversation struct {
	ID                    string
	TenantID              string
	ContactID             string
	ContactIdentifier     string
	ChannelType           channel.ChannelType
	ChannelAccountID      string
	Status                Status
	AssignedToID          string
	AssignedToTeamID      string
	UnreadCount           int
	LastCustomerMessageAt time.Time
	SnoozedUntil          time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// Assigned reports whether the conversation has a user or team assignee.
func (c Conversation) Assigned() bool {
	return c.AssignedToID != "" || c.AssignedToTeamID != ""
}

// ResolveParams identifies the thread an inbound message belongs to.
type ResolveParams struct {
	TenantID         string
	ContactID        string
	Identifier       string
	ChannelType      channel.ChannelType
	ChannelAccountID string
	MessageAt        time.Time
}
