package assignment

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/crm360hq/crm360/internal/conversation"
)

// RuleReader supplies the rule snapshot and the durable rotation counter.
type RuleReader interface {
	ListActive(ctx context.Context, tenantID string) ([]Rule, error)
	NextRoundRobin(ctx context.Context, ruleID string) (int64, error)
}

// ConversationWriter is the conversation surface the engine mutates.
type ConversationWriter interface {
	Get(ctx context.Context, tenantID, conversationID string) (conversation.Conversation, error)
	Assign(ctx context.Context, conversationID, userID, teamID string) (bool, error)
	Reassign(ctx context.Context, conversationID, userID, teamID string) error
	CountOpenByAgents(ctx context.Context, tenantID string, agentIDs []string) (map[string]int, error)
}

// PresenceReader lists agents currently treated as online, staleness already
// applied.
type PresenceReader interface {
	ListOnline(ctx context.Context, tenantID string) ([]string, error)
}

// HoursOracle answers whether the tenant is inside business hours right now.
type HoursOracle interface {
	IsWithinBusinessHours(ctx context.Context, tenantID string) (bool, error)
}

// AssignmentNotifier receives assignment decisions, fire-and-forget.
type AssignmentNotifier interface {
	NotifyAssignment(ctx context.Context, tenantID, conversationID string, decision Decision)
}

// Engine runs rule evaluation for new conversations.
type Engine struct {
	log           *slog.Logger
	rules         RuleReader
	conversations ConversationWriter
	presence      PresenceReader
	hours         HoursOracle
	notifier      AssignmentNotifier
}

func NewEngine(log *slog.Logger, rules RuleReader, conversations ConversationWriter,
	presence PresenceReader, hours HoursOracle, notifier AssignmentNotifier) *Engine {
	return &Engine{
		log:           log.With(slog.String("service", "assignment")),
		rules:         rules,
		conversations: conversations,
		presence:      presence,
		hours:         hours,
		notifier:      notifier,
	}
}

// AssignNew evaluates the rule set for a newly created conversation. Returns
// nil when no rule matches or no assignee can be resolved; the conversation
// stays PENDING and unassigned, which is a normal outcome.
func (e *Engine) AssignNew(ctx context.Context, conv conversation.Conversation, input RuleInput) (*Decision, error) {
	if conv.Assigned() {
		return nil, nil
	}
	decision, err := e.evaluate(ctx, conv, input)
	if err != nil || decision == nil {
		return nil, err
	}

	applied, err := e.conversations.Assign(ctx, conv.ID, decision.UserID, decision.TeamID)
	if err != nil {
		return nil, fmt.Errorf("record assignment: %w", err)
	}
	if !applied {
		// A concurrent duplicate trigger assigned first; keep its decision.
		e.log.Info("assignment already recorded", slog.String("conversation_id", conv.ID))
		return nil, nil
	}

	e.log.Info("conversation assigned",
		slog.String("conversation_id", conv.ID),
		slog.String("rule", decision.RuleName),
		slog.String("assign_to_type", string(decision.AssignToType)))
	if e.notifier != nil {
		e.notifier.NotifyAssignment(ctx, conv.TenantID, conv.ID, *decision)
	}
	return decision, nil
}

// Trigger re-runs assignment for an existing conversation, the operator entry
// point. Already-assigned conversations are a no-op unless reassign is set.
func (e *Engine) Trigger(ctx context.Context, tenantID, conversationID string, input RuleInput, reassign bool) (*Decision, error) {
	conv, err := e.conversations.Get(ctx, tenantID, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.Assigned() && !reassign {
		return nil, nil
	}
	if input.ChannelType == "" {
		input.ChannelType = conv.ChannelType
	}

	decision, err := e.evaluate(ctx, conv, input)
	if err != nil || decision == nil {
		return nil, err
	}

	if conv.Assigned() {
		if err := e.conversations.Reassign(ctx, conv.ID, decision.UserID, decision.TeamID); err != nil {
			return nil, fmt.Errorf("record reassignment: %w", err)
		}
	} else {
		applied, err := e.conversations.Assign(ctx, conv.ID, decision.UserID, decision.TeamID)
		if err != nil {
			return nil, fmt.Errorf("record assignment: %w", err)
		}
		if !applied {
			return nil, nil
		}
	}

	e.log.Info("conversation assigned",
		slog.String("conversation_id", conv.ID),
		slog.String("rule", decision.RuleName),
		slog.Bool("reassign", reassign))
	if e.notifier != nil {
		e.notifier.NotifyAssignment(ctx, tenantID, conv.ID, *decision)
	}
	return decision, nil
}

func (e *Engine) evaluate(ctx context.Context, conv conversation.Conversation, input RuleInput) (*Decision, error) {
	rules, err := e.rules.ListActive(ctx, conv.TenantID)
	if err != nil {
		return nil, fmt.Errorf("load assignment rules: %w", err)
	}
	for _, rule := range rules {
		matches, err := e.ruleMatches(ctx, conv.TenantID, rule, input)
		if err != nil {
			return nil, err
		}
		if !matches {
			continue
		}
		decision, err := e.resolve(ctx, conv.TenantID, rule)
		if err != nil {
			return nil, err
		}
		if decision == nil {
			// Rule matched but no assignee could be resolved (e.g. nobody
			// online). First match wins; do not fall through to later rules.
			e.log.Info("matched rule resolved no assignee",
				slog.String("rule", rule.Name),
				slog.String("conversation_id", conv.ID))
		}
		return decision, nil
	}
	return nil, nil
}

func (e *Engine) ruleMatches(ctx context.Context, tenantID string, rule Rule, input RuleInput) (bool, error) {
	if rule.ChannelType != "" && rule.ChannelType != input.ChannelType {
		return false, nil
	}
	if rule.PriorityTier != "" && !strings.EqualFold(rule.PriorityTier, input.PriorityTier) {
		return false, nil
	}
	if len(rule.Keywords) > 0 && !keywordMatch(rule.Keywords, input.MessageText) {
		return false, nil
	}
	if rule.BusinessHoursOnly != nil {
		within, err := e.hours.IsWithinBusinessHours(ctx, tenantID)
		if err != nil {
			return false, fmt.Errorf("business hours check: %w", err)
		}
		if within != *rule.BusinessHoursOnly {
			return false, nil
		}
	}
	return true, nil
}

func keywordMatch(keywords []string, text string) bool {
	haystack := strings.ToLower(text)
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

func (e *Engine) resolve(ctx context.Context, tenantID string, rule Rule) (*Decision, error) {
	decision := Decision{RuleID: rule.ID, RuleName: rule.Name, AssignToType: rule.AssignToType}
	switch rule.AssignToType {
	case AssignToUser:
		if rule.AssignToID == "" {
			return nil, nil
		}
		decision.UserID = rule.AssignToID
	case AssignToTeam:
		if rule.AssignToTeamID == "" {
			return nil, nil
		}
		decision.TeamID = rule.AssignToTeamID
	case AssignToRoundRobin:
		userID, err := e.pickRoundRobin(ctx, rule)
		if err != nil || userID == "" {
			return nil, err
		}
		decision.UserID = userID
	case AssignToLeastBusy:
		userID, err := e.pickLeastBusy(ctx, tenantID, rule)
		if err != nil || userID == "" {
			return nil, err
		}
		decision.UserID = userID
	default:
		return nil, fmt.Errorf("unknown assign-to type %q", rule.AssignToType)
	}
	return &decision, nil
}

func (e *Engine) pickRoundRobin(ctx context.Context, rule Rule) (string, error) {
	if len(rule.CandidateIDs) == 0 {
		return "", nil
	}
	counter, err := e.rules.NextRoundRobin(ctx, rule.ID)
	if err != nil {
		return "", fmt.Errorf("round robin counter: %w", err)
	}
	return rule.CandidateIDs[int((counter-1)%int64(len(rule.CandidateIDs)))], nil
}

func (e *Engine) pickLeastBusy(ctx context.Context, tenantID string, rule Rule) (string, error) {
	online, err := e.presence.ListOnline(ctx, tenantID)
	if err != nil {
		return "", fmt.Errorf("list online agents: %w", err)
	}
	eligible := online
	if len(rule.CandidateIDs) > 0 {
		allowed := make(map[string]bool, len(rule.CandidateIDs))
		for _, id := range rule.CandidateIDs {
			allowed[id] = true
		}
		eligible = eligible[:0:0]
		for _, id := range online {
			if allowed[id] {
				eligible = append(eligible, id)
			}
		}
	}
	if len(eligible) == 0 {
		return "", nil
	}

	counts, err := e.conversations.CountOpenByAgents(ctx, tenantID, eligible)
	if err != nil {
		return "", fmt.Errorf("open conversation counts: %w", err)
	}
	// Sort by user id so equal counts pick deterministically.
	sort.Strings(eligible)
	best := eligible[0]
	for _, id := range eligible[1:] {
		if counts[id] < counts[best] {
			best = id
		}
	}
	return best, nil
}
