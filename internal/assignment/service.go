package assignment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// RuleStore is the persistence surface for rule management.
type RuleStore interface {
	List(ctx context.Context, tenantID string) ([]Rule, error)
	Get(ctx context.Context, tenantID, ruleID string) (Rule, error)
	Create(ctx context.Context, rule Rule) (Rule, error)
	Update(ctx context.Context, rule Rule) (Rule, error)
	Delete(ctx context.Context, tenantID, ruleID string) error
}

// Service manages the tenant's rule set.
type Service struct {
	log   *slog.Logger
	store RuleStore
}

func NewService(log *slog.Logger, store RuleStore) *Service {
	return &Service{
		log:   log.With(slog.String("service", "assignment_rules")),
		store: store,
	}
}

func (s *Service) List(ctx context.Context, tenantID string) ([]Rule, error) {
	return s.store.List(ctx, tenantID)
}

func (s *Service) Get(ctx context.Context, tenantID, ruleID string) (Rule, error) {
	return s.store.Get(ctx, tenantID, ruleID)
}

func (s *Service) Create(ctx context.Context, rule Rule) (Rule, error) {
	if err := validateRule(rule); err != nil {
		return Rule{}, err
	}
	created, err := s.store.Create(ctx, rule)
	if err != nil {
		return Rule{}, fmt.Errorf("create rule: %w", err)
	}
	s.log.Info("assignment rule created",
		slog.String("rule_id", created.ID),
		slog.String("name", created.Name))
	return created, nil
}

func (s *Service) Update(ctx context.Context, rule Rule) (Rule, error) {
	if err := validateRule(rule); err != nil {
		return Rule{}, err
	}
	updated, err := s.store.Update(ctx, rule)
	if err != nil {
		return Rule{}, fmt.Errorf("update rule: %w", err)
	}
	return updated, nil
}

func (s *Service) Delete(ctx context.Context, tenantID, ruleID string) error {
	return s.store.Delete(ctx, tenantID, ruleID)
}

func validateRule(rule Rule) error {
	if strings.TrimSpace(rule.Name) == "" {
		return fmt.Errorf("rule name is required")
	}
	switch rule.AssignToType {
	case AssignToUser:
		if rule.AssignToID == "" {
			return fmt.Errorf("USER rule requires assign-to user id")
		}
	case AssignToTeam:
		if rule.AssignToTeamID == "" {
			return fmt.Errorf("TEAM rule requires assign-to team id")
		}
	case AssignToRoundRobin:
		if len(rule.CandidateIDs) == 0 {
			return fmt.Errorf("ROUND_ROBIN rule requires candidate ids")
		}
	case AssignToLeastBusy:
		// Candidates optional; empty means all online agents.
	default:
		return fmt.Errorf("unknown assign-to type %q", rule.AssignToType)
	}
	return nil
}
