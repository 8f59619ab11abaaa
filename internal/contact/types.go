// Package contact resolves inbound sender identities to CRM contact records.
package contact

import (
	"time"

	"github.com/crm360hq/crm360/internal/channel"
)

// Contact is a CRM contact record keyed by (tenant, channel, identifier).
type Contact struct {
	ID                    string
	TenantID              string
	Identifier            string
	ChannelType           channel.ChannelType
	DisplayName           string
	Source                string
	LifecycleStage        string
	Consent               map[string]bool
	FirstChannelAccountID string
	FirstMessageAt        time.Time
	CreatedAt             time.Time
}

// ResolveParams carries what an inbound message knows about its sender.
type ResolveParams struct {
	TenantID         string
	ChannelType      channel.ChannelType
	Identifier       string
	DisplayName      string
	ChannelAccountID string
	MessageAt        time.Time
}
