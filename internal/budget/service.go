package budget

import (
	"context"
	"fmt"

	"bilancio/internal/core"
	"bilancio/internal/log"
)

// Service ties the rule repo, the allocation engine and the registry
// together behind the operations the HTTP layer exposes. The events
// publisher may be nil; notifications are then skipped.
type Service struct {
	repo     RuleRepo
	txns     TransactionReader
	registry RegistrySource
	events   EventPublisher
	rollover *Rollover
	logger   *log.Logger
}

func NewService(repo RuleRepo, txns TransactionReader, reg RegistrySource, events EventPublisher, logger *log.Logger) *Service {
	return &Service{
		repo:     repo,
		txns:     txns,
		registry: reg,
		events:   events,
		rollover: NewRollover(repo, reg, logger),
		logger:   logger.WithComponent(log.ComponentBudget),
	}
}

// Rollover exposes the carry-forward operations on the same rule repo.
func (s *Service) Rollover() *Rollover {
	return s.rollover
}

// SetTotalBudget bootstraps a scope or resizes its existing ceiling. It is
// the only mutation allowed on a scope with no rules.
func (s *Service) SetTotalBudget(ctx context.Context, scope core.Scope, amount core.Money) (core.BudgetRule, error) {
	if err := scope.Validate(); err != nil {
		return core.BudgetRule{}, err
	}
	existing, err := s.repo.RulesForScope(ctx, scope)
	if err != nil {
		return core.BudgetRule{}, fmt.Errorf("load scope rules: %w", err)
	}

	rule := core.BudgetRule{
		Name:     scope.Key(),
		Amount:   amount,
		Category: core.TotalBudgetCategory,
		Tags:     []string{core.AllTags},
		Month:    scope.Month,
		Year:     scope.Year,
	}
	if scope.Kind == core.ProjectScope {
		rule.Name = scope.Project
	}
	if current, ok := totalRule(existing); ok {
		rule.ID = current.ID
		rule.Name = current.Name
	}

	if err := ValidateRule(rule, existing, s.registry.Snapshot()); err != nil {
		return core.BudgetRule{}, err
	}

	if rule.ID == 0 {
		id, err := s.repo.InsertRule(ctx, rule)
		if err != nil {
			return core.BudgetRule{}, fmt.Errorf("insert total budget: %w", err)
		}
		rule.ID = id
	} else if err := s.repo.UpdateRule(ctx, rule); err != nil {
		return core.BudgetRule{}, fmt.Errorf("update total budget: %w", err)
	}

	s.logger.InfoContext(ctx, "Total budget set",
		log.FieldScope, scope.Key(), log.FieldAmount, rule.Amount.Cents)
	s.notifyRulesChanged(ctx, scope)
	return rule, nil
}

// AddRule validates and stores a new non-total rule.
func (s *Service) AddRule(ctx context.Context, rule core.BudgetRule) (core.BudgetRule, error) {
	rule.ID = 0
	scope := rule.Scope()
	existing, err := s.repo.RulesForScope(ctx, scope)
	if err != nil {
		return core.BudgetRule{}, fmt.Errorf("load scope rules: %w", err)
	}
	if err := ValidateRule(rule, existing, s.registry.Snapshot()); err != nil {
		return core.BudgetRule{}, err
	}

	id, err := s.repo.InsertRule(ctx, rule)
	if err != nil {
		return core.BudgetRule{}, fmt.Errorf("insert rule: %w", err)
	}
	rule.ID = id

	s.logger.InfoContext(ctx, "Rule added",
		log.FieldOperation, log.OpCreate,
		log.FieldScope, scope.Key(),
		log.FieldRuleID, id, log.FieldRuleName, rule.Name)
	s.notifyRulesChanged(ctx, scope)
	return rule, nil
}

// UpdateRule validates and persists an edit. A no-op edit returns the
// stored rule without touching the database.
func (s *Service) UpdateRule(ctx context.Context, rule core.BudgetRule) (core.BudgetRule, error) {
	current, err := s.repo.GetRule(ctx, rule.ID)
	if err != nil {
		return core.BudgetRule{}, err
	}
	// The scope is not editable; the edit lives where the rule lives. For
	// project rules the category names the scope, and for a project total
	// the rule name does, so those are pinned too.
	rule.Month, rule.Year = current.Month, current.Year
	if current.IsTotal() {
		rule.Name = current.Name
		rule.Category = core.TotalBudgetCategory
		rule.Tags = []string{core.AllTags}
	} else if current.Month == 0 {
		rule.Category = current.Category
	}
	if current.Equivalent(rule) {
		return current, nil
	}

	scope := current.Scope()
	existing, err := s.repo.RulesForScope(ctx, scope)
	if err != nil {
		return core.BudgetRule{}, fmt.Errorf("load scope rules: %w", err)
	}
	if err := ValidateRule(rule, existing, s.registry.Snapshot()); err != nil {
		return core.BudgetRule{}, err
	}

	if err := s.repo.UpdateRule(ctx, rule); err != nil {
		return core.BudgetRule{}, fmt.Errorf("update rule: %w", err)
	}

	s.logger.InfoContext(ctx, "Rule updated",
		log.FieldOperation, log.OpUpdate,
		log.FieldScope, scope.Key(),
		log.FieldRuleID, rule.ID, log.FieldRuleName, rule.Name)
	s.notifyRulesChanged(ctx, scope)
	return rule, nil
}

// DeleteRule removes a rule. Total Budget rules are never deletable, and
// neither are project tag rules, which reconciliation owns.
func (s *Service) DeleteRule(ctx context.Context, id int64) error {
	rule, err := s.repo.GetRule(ctx, id)
	if err != nil {
		return err
	}
	if rule.IsTotal() {
		return fmt.Errorf("%w: total budget", core.ErrProtectedRule)
	}
	scope := rule.Scope()
	if scope.Kind == core.ProjectScope && !rule.HasAllTags() {
		return fmt.Errorf("%w: project tag rules are reconciled, not deleted", core.ErrProtectedRule)
	}

	if err := s.repo.DeleteRule(ctx, id); err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}

	s.logger.InfoContext(ctx, "Rule deleted",
		log.FieldOperation, log.OpDelete,
		log.FieldScope, scope.Key(),
		log.FieldRuleID, id, log.FieldRuleName, rule.Name)
	s.notifyRulesChanged(ctx, scope)
	return nil
}

// MonthView computes the allocation for a calendar month.
func (s *Service) MonthView(ctx context.Context, year, month int) (Allocation, error) {
	scope := core.MonthScope(year, month)
	rules, err := s.repo.RulesForScope(ctx, scope)
	if err != nil {
		return Allocation{}, fmt.Errorf("load scope rules: %w", err)
	}

	start, end, _ := scope.Window()
	txns, err := s.txns.Expenses(ctx, start, end, core.NonExpenseCategories())
	if err != nil {
		return Allocation{}, fmt.Errorf("load expenses: %w", err)
	}
	return View(scope, rules, txns, s.registry.Snapshot())
}

// ProjectView reconciles the project's tag rules against the registry and
// then computes its allocation over the project's full transaction history.
func (s *Service) ProjectView(ctx context.Context, project string) (Allocation, error) {
	scope := core.NewProjectScope(project)
	if changed, err := s.rollover.ReconcileProject(ctx, project); err != nil {
		return Allocation{}, err
	} else if changed {
		s.notifyRulesChanged(ctx, scope)
	}

	rules, err := s.repo.RulesForScope(ctx, scope)
	if err != nil {
		return Allocation{}, fmt.Errorf("load scope rules: %w", err)
	}
	txns, err := s.txns.ExpensesForCategory(ctx, project)
	if err != nil {
		return Allocation{}, fmt.Errorf("load expenses: %w", err)
	}
	return View(scope, rules, txns, s.registry.Snapshot())
}

// AvailableTags lists, per category, the tags a new rule in the scope could
// still claim.
func (s *Service) AvailableTags(ctx context.Context, scope core.Scope) ([]CategoryTags, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	rules, err := s.repo.RulesForScope(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("load scope rules: %w", err)
	}
	return AvailableTags(rules, s.registry.Snapshot()), nil
}

// notifyRulesChanged publishes a change event when a publisher is wired.
// Publish failures are logged, never surfaced: the mutation already
// happened.
func (s *Service) notifyRulesChanged(ctx context.Context, scope core.Scope) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishRulesChanged(ctx, scope); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish rules-changed event",
			log.FieldScope, scope.Key(), log.FieldError, err)
	}
}
