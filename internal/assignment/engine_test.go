package assignment

import (
	"context"
	"log/slog"
	"testing"

	"github.com/crm360hq/crm360/internal/channel"
	"github.com/crm360hq/crm360/internal/conversation"
)

type fakeRuleReader struct {
	rules    []Rule
	counters map[string]int64
}

func (f *fakeRuleReader) ListActive(_ context.Context, _ string) ([]Rule, error) {
	return f.rules, nil
}

func (f *fakeRuleReader) NextRoundRobin(_ context.Context, ruleID string) (int64, error) {
	if f.counters == nil {
		f.counters = map[string]int64{}
	}
	f.counters[ruleID]++
	return f.counters[ruleID], nil
}

type fakeConvWriter struct {
	conversations map[string]conversation.Conversation
	openCounts    map[string]int
	assigns       []Decision
	reassigns     []Decision
}

func newFakeConvWriter() *fakeConvWriter {
	return &fakeConvWriter{
		conversations: map[string]conversation.Conversation{},
		openCounts:    map[string]int{},
	}
}

func (f *fakeConvWriter) Get(_ context.Context, _, conversationID string) (conversation.Conversation, error) {
	c, ok := f.conversations[conversationID]
	if !ok {
		return conversation.Conversation{}, conversation.ErrNotFound
	}
	return c, nil
}

func (f *fakeConvWriter) Assign(_ context.Context, conversationID, userID, teamID string) (bool, error) {
	c := f.conversations[conversationID]
	if c.Assigned() {
		return false, nil
	}
	c.AssignedToID = userID
	c.AssignedToTeamID = teamID
	f.conversations[conversationID] = c
	f.assigns = append(f.assigns, Decision{UserID: userID, TeamID: teamID})
	return true, nil
}

func (f *fakeConvWriter) Reassign(_ context.Context, conversationID, userID, teamID string) error {
	c := f.conversations[conversationID]
	c.AssignedToID = userID
	c.AssignedToTeamID = teamID
	f.conversations[conversationID] = c
	f.reassigns = append(f.reassigns, Decision{UserID: userID, TeamID: teamID})
	return nil
}

func (f *fakeConvWriter) CountOpenByAgents(_ context.Context, _ string, agentIDs []string) (map[string]int, error) {
	counts := map[string]int{}
	for _, id := range agentIDs {
		counts[id] = f.openCounts[id]
	}
	return counts, nil
}

type fakePresence struct {
	online []string
}

func (f *fakePresence) ListOnline(_ context.Context, _ string) ([]string, error) {
	return f.online, nil
}

type fakeHours struct {
	within bool
}

func (f *fakeHours) IsWithinBusinessHours(_ context.Context, _ string) (bool, error) {
	return f.within, nil
}

type fakeAssignNotifier struct {
	decisions []Decision
}

func (f *fakeAssignNotifier) NotifyAssignment(_ context.Context, _, _ string, decision Decision) {
	f.decisions = append(f.decisions, decision)
}

func newTestEngine(rules []Rule, convs *fakeConvWriter, presence *fakePresence, hours *fakeHours) (*Engine, *fakeRuleReader, *fakeAssignNotifier) {
	if presence == nil {
		presence = &fakePresence{}
	}
	if hours == nil {
		hours = &fakeHours{within: true}
	}
	reader := &fakeRuleReader{rules: rules}
	notifier := &fakeAssignNotifier{}
	engine := NewEngine(slog.Default(), reader, convs, presence, hours, notifier)
	return engine, reader, notifier
}

func pendingConv(id string) conversation.Conversation {
	return conversation.Conversation{
		ID:          id,
		TenantID:    "tenant-1",
		ChannelType: channel.TypeWhatsApp,
		Status:      conversation.StatusPending,
	}
}

func boolPtr(b bool) *bool { return &b }

func TestAssignNew_TeamRule(t *testing.T) {
	convs := newFakeConvWriter()
	conv := pendingConv("conv-1")
	convs.conversations[conv.ID] = conv
	rules := []Rule{{
		ID: "rule-1", Name: "whatsapp to support", Priority: 10,
		ChannelType: channel.TypeWhatsApp, AssignToType: AssignToTeam, AssignToTeamID: "team-support",
	}}
	engine, _, notifier := newTestEngine(rules, convs, nil, nil)

	decision, err := engine.AssignNew(context.Background(), conv, RuleInput{ChannelType: channel.TypeWhatsApp})
	if err != nil {
		t.Fatal(err)
	}
	if decision == nil || decision.TeamID != "team-support" || decision.UserID != "" {
		t.Fatalf("decision = %+v", decision)
	}
	got := convs.conversations["conv-1"]
	if got.AssignedToTeamID != "team-support" || got.AssignedToID != "" {
		t.Errorf("conversation = %+v", got)
	}
	if len(notifier.decisions) != 1 {
		t.Errorf("notifications = %v", notifier.decisions)
	}
}

func TestAssignNew_PriorityOrderBeatsCatchAll(t *testing.T) {
	convs := newFakeConvWriter()
	conv := pendingConv("conv-1")
	conv.ChannelType = channel.TypeSMS
	convs.conversations[conv.ID] = conv
	rules := []Rule{
		// Store returns evaluation order: priority DESC.
		{ID: "rule-sms", Name: "sms rule", Priority: 20, ChannelType: channel.TypeSMS,
			AssignToType: AssignToUser, AssignToID: "user-sms"},
		{ID: "rule-all", Name: "catch-all", Priority: 5,
			AssignToType: AssignToUser, AssignToID: "user-all"},
	}
	engine, _, _ := newTestEngine(rules, convs, nil, nil)

	decision, err := engine.AssignNew(context.Background(), conv, RuleInput{ChannelType: channel.TypeSMS})
	if err != nil {
		t.Fatal(err)
	}
	if decision == nil || decision.RuleID != "rule-sms" {
		t.Fatalf("decision = %+v", decision)
	}

	// Determinism: repeated evaluation picks the same rule.
	for i := 0; i < 5; i++ {
		d, err := engine.evaluate(context.Background(), conv, RuleInput{ChannelType: channel.TypeSMS})
		if err != nil {
			t.Fatal(err)
		}
		if d == nil || d.RuleID != "rule-sms" {
			t.Fatalf("iteration %d: decision = %+v", i, d)
		}
	}
}

func TestAssignNew_KeywordAndHoursConditions(t *testing.T) {
	convs := newFakeConvWriter()
	conv := pendingConv("conv-1")
	convs.conversations[conv.ID] = conv
	hours := &fakeHours{within: false}
	rules := []Rule{
		{ID: "rule-kw", Name: "billing keywords", Priority: 30, Keywords: []string{"refund", "invoice"},
			AssignToType: AssignToUser, AssignToID: "user-billing"},
		{ID: "rule-hours", Name: "office hours", Priority: 20, BusinessHoursOnly: boolPtr(true),
			AssignToType: AssignToUser, AssignToID: "user-day"},
		{ID: "rule-night", Name: "after hours", Priority: 10, BusinessHoursOnly: boolPtr(false),
			AssignToType: AssignToUser, AssignToID: "user-night"},
	}
	engine, _, _ := newTestEngine(rules, convs, nil, hours)

	// Keyword match is case-insensitive substring.
	decision, err := engine.evaluate(context.Background(), conv, RuleInput{MessageText: "Where is my REFUND?"})
	if err != nil {
		t.Fatal(err)
	}
	if decision == nil || decision.UserID != "user-billing" {
		t.Fatalf("decision = %+v", decision)
	}

	// No keyword hit, outside hours: the after-hours rule fires.
	decision, err = engine.evaluate(context.Background(), conv, RuleInput{MessageText: "hello"})
	if err != nil {
		t.Fatal(err)
	}
	if decision == nil || decision.UserID != "user-night" {
		t.Fatalf("decision = %+v", decision)
	}
}

func TestAssignNew_NoMatchLeavesUnassigned(t *testing.T) {
	convs := newFakeConvWriter()
	conv := pendingConv("conv-1")
	convs.conversations[conv.ID] = conv
	rules := []Rule{{ID: "rule-1", Name: "email only", Priority: 10,
		ChannelType: channel.TypeEmail, AssignToType: AssignToTeam, AssignToTeamID: "team-email"}}
	engine, _, notifier := newTestEngine(rules, convs, nil, nil)

	decision, err := engine.AssignNew(context.Background(), conv, RuleInput{ChannelType: channel.TypeWhatsApp})
	if err != nil {
		t.Fatal(err)
	}
	if decision != nil {
		t.Fatalf("decision = %+v, want nil", decision)
	}
	if convs.conversations["conv-1"].Assigned() {
		t.Error("conversation should stay unassigned")
	}
	if len(notifier.decisions) != 0 {
		t.Errorf("notifications = %v", notifier.decisions)
	}
}

func TestRoundRobin_Fairness(t *testing.T) {
	candidates := []string{"user-a", "user-b", "user-c"}
	rules := []Rule{{ID: "rule-rr", Name: "rotate", Priority: 10,
		AssignToType: AssignToRoundRobin, CandidateIDs: candidates}}
	convs := newFakeConvWriter()
	engine, _, _ := newTestEngine(rules, convs, nil, nil)

	const m = 7
	counts := map[string]int{}
	var order []string
	for i := 0; i < m; i++ {
		conv := pendingConv("conv-" + string(rune('a'+i)))
		convs.conversations[conv.ID] = conv
		decision, err := engine.AssignNew(context.Background(), conv, RuleInput{ChannelType: channel.TypeWhatsApp})
		if err != nil {
			t.Fatal(err)
		}
		if decision == nil {
			t.Fatalf("iteration %d: no decision", i)
		}
		counts[decision.UserID]++
		order = append(order, decision.UserID)
	}
	// 7 assignments over 3 candidates: shares are 3, 2, 2.
	for _, c := range candidates {
		if counts[c] < m/len(candidates) || counts[c] > m/len(candidates)+1 {
			t.Errorf("candidate %s got %d assignments: %v", c, counts[c], counts)
		}
	}
	// Rotating order, not random.
	for i, userID := range order {
		if want := candidates[i%len(candidates)]; userID != want {
			t.Errorf("assignment %d = %s, want %s", i, userID, want)
		}
	}
}

func TestLeastBusy_PicksMinimumWithStableTieBreak(t *testing.T) {
	rules := []Rule{{ID: "rule-lb", Name: "least busy", Priority: 10, AssignToType: AssignToLeastBusy}}
	convs := newFakeConvWriter()
	conv := pendingConv("conv-1")
	convs.conversations[conv.ID] = conv
	convs.openCounts = map[string]int{"user-a": 3, "user-b": 1, "user-c": 5}
	presence := &fakePresence{online: []string{"user-c", "user-a", "user-b"}}
	engine, _, _ := newTestEngine(rules, convs, presence, nil)

	decision, err := engine.AssignNew(context.Background(), conv, RuleInput{ChannelType: channel.TypeWhatsApp})
	if err != nil {
		t.Fatal(err)
	}
	if decision == nil || decision.UserID != "user-b" {
		t.Fatalf("decision = %+v", decision)
	}

	// Tie: lowest user id wins regardless of presence list order.
	convs.openCounts = map[string]int{"user-a": 2, "user-b": 2, "user-c": 2}
	conv2 := pendingConv("conv-2")
	convs.conversations[conv2.ID] = conv2
	decision, err = engine.AssignNew(context.Background(), conv2, RuleInput{ChannelType: channel.TypeWhatsApp})
	if err != nil {
		t.Fatal(err)
	}
	if decision == nil || decision.UserID != "user-a" {
		t.Fatalf("tie decision = %+v", decision)
	}
}

func TestLeastBusy_RespectsCandidateFilterAndEmptyPresence(t *testing.T) {
	rules := []Rule{{ID: "rule-lb", Name: "least busy vip", Priority: 10,
		AssignToType: AssignToLeastBusy, CandidateIDs: []string{"user-b", "user-c"}}}
	convs := newFakeConvWriter()
	conv := pendingConv("conv-1")
	convs.conversations[conv.ID] = conv
	convs.openCounts = map[string]int{"user-a": 0, "user-b": 4, "user-c": 2}
	presence := &fakePresence{online: []string{"user-a", "user-b", "user-c"}}
	engine, _, _ := newTestEngine(rules, convs, presence, nil)

	// user-a is least busy but not a candidate.
	decision, err := engine.AssignNew(context.Background(), conv, RuleInput{ChannelType: channel.TypeWhatsApp})
	if err != nil {
		t.Fatal(err)
	}
	if decision == nil || decision.UserID != "user-c" {
		t.Fatalf("decision = %+v", decision)
	}

	// Nobody online: matched rule resolves no assignee, stays unassigned.
	presence.online = nil
	conv2 := pendingConv("conv-2")
	convs.conversations[conv2.ID] = conv2
	decision, err = engine.AssignNew(context.Background(), conv2, RuleInput{ChannelType: channel.TypeWhatsApp})
	if err != nil {
		t.Fatal(err)
	}
	if decision != nil {
		t.Fatalf("decision = %+v, want nil", decision)
	}
}

func TestTrigger_IdempotentUnlessReassign(t *testing.T) {
	rules := []Rule{{ID: "rule-1", Name: "to user", Priority: 10,
		AssignToType: AssignToUser, AssignToID: "user-new"}}
	convs := newFakeConvWriter()
	conv := pendingConv("conv-1")
	conv.AssignedToID = "user-original"
	convs.conversations[conv.ID] = conv
	engine, _, _ := newTestEngine(rules, convs, nil, nil)

	// Already assigned, no flag: no-op.
	decision, err := engine.Trigger(context.Background(), "tenant-1", "conv-1", RuleInput{}, false)
	if err != nil {
		t.Fatal(err)
	}
	if decision != nil {
		t.Fatalf("decision = %+v, want nil", decision)
	}
	if convs.conversations["conv-1"].AssignedToID != "user-original" {
		t.Error("assignment changed without reassign flag")
	}

	// Explicit reassign overwrites.
	decision, err = engine.Trigger(context.Background(), "tenant-1", "conv-1", RuleInput{}, true)
	if err != nil {
		t.Fatal(err)
	}
	if decision == nil || decision.UserID != "user-new" {
		t.Fatalf("decision = %+v", decision)
	}
	if convs.conversations["conv-1"].AssignedToID != "user-new" {
		t.Error("reassignment not recorded")
	}
}

func TestAssignNew_AlreadyAssignedIsNoOp(t *testing.T) {
	rules := []Rule{{ID: "rule-1", Name: "to user", Priority: 10,
		AssignToType: AssignToUser, AssignToID: "user-new"}}
	convs := newFakeConvWriter()
	conv := pendingConv("conv-1")
	conv.AssignedToID = "user-original"
	convs.conversations[conv.ID] = conv
	engine, reader, _ := newTestEngine(rules, convs, nil, nil)

	decision, err := engine.AssignNew(context.Background(), conv, RuleInput{})
	if err != nil {
		t.Fatal(err)
	}
	if decision != nil {
		t.Fatalf("decision = %+v, want nil", decision)
	}
	if len(reader.counters) != 0 {
		t.Error("rule evaluation ran for an assigned conversation")
	}
}
