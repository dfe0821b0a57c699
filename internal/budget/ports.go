package budget

import (
	"context"

	"bilancio/internal/core"
	"bilancio/internal/registry"
)

// RuleRepo is the persistence surface the budget service needs. Implemented
// by storage.Store; the repo does no validation, that stays in the engine.
type RuleRepo interface {
	InsertRule(ctx context.Context, r core.BudgetRule) (int64, error)
	UpdateRule(ctx context.Context, r core.BudgetRule) error
	DeleteRule(ctx context.Context, id int64) error
	GetRule(ctx context.Context, id int64) (core.BudgetRule, error)
	RulesForScope(ctx context.Context, scope core.Scope) ([]core.BudgetRule, error)
	DeleteRulesForScope(ctx context.Context, scope core.Scope) (int64, error)
}

// TransactionReader yields normalized expenses for view computation.
type TransactionReader interface {
	Expenses(ctx context.Context, start, end core.Date, excluded []string) ([]core.Transaction, error)
	ExpensesForCategory(ctx context.Context, category string) ([]core.Transaction, error)
}

// RegistrySource hands out registry snapshots for validation and tag
// availability.
type RegistrySource interface {
	Snapshot() registry.Snapshot
}

// EventPublisher fans out rule-change notifications. Optional: a nil
// publisher is a no-op.
type EventPublisher interface {
	PublishRulesChanged(ctx context.Context, scope core.Scope) error
}
