// Package assignment evaluates tenant routing rules and assigns new
// conversations to agents or teams.
package assignment

import (
	"time"

	"github.com/crm360hq/crm360/internal/channel"
)

// AssignToType selects the rule's resolution strategy.
type AssignToType string

const (
	AssignToUser       AssignToType = "USER"
	AssignToTeam       AssignToType = "TEAM"
	AssignToRoundRobin AssignToType = "ROUND_ROBIN"
	AssignToLeastBusy  AssignToType = "LEAST_BUSY"
)

// Rule is one tenant-configured auto-assignment rule. Rules evaluate in
// priority order, highest first, creation order breaking ties.
type Rule struct {
	ID       string
	TenantID string
	Name     string
	Priority int

	// Conditions; zero values mean "not specified" and always match.
	ChannelType       channel.ChannelType
	Keywords          []string
	BusinessHoursOnly *bool
	PriorityTier      string

	AssignToType   AssignToType
	AssignToID     string
	AssignToTeamID string
	CandidateIDs   []string

	IsActive  bool
	CreatedAt time.Time
}

// Decision records which rule fired and who got the conversation.
type Decision struct {
	RuleID       string
	RuleName     string
	AssignToType AssignToType
	UserID       string
	TeamID       string
}

// RuleInput is what a conversation exposes to condition matching.
type RuleInput struct {
	ChannelType  channel.ChannelType
	MessageText  string
	PriorityTier string
}
