package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"bilancio/internal/core"
)

// tagSeparator joins a rule's tag list into the single text column.
const tagSeparator = ";"

func joinTags(tags []string) string {
	return strings.Join(tags, tagSeparator)
}

func splitTags(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, tagSeparator)
}

// InsertRule stores a rule and returns its id. No validation happens here;
// the budget engine has already vetted the rule.
func (s *Store) InsertRule(ctx context.Context, r core.BudgetRule) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO budget_rules (name, amount_cents, category, tags, month, year) VALUES (?, ?, ?, ?, ?, ?)`,
		r.Name, r.Amount.Cents, r.Category, joinTags(r.Tags), nullableInt(r.Month), nullableInt(r.Year))
	if err != nil {
		return 0, fmt.Errorf("insert rule: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert rule id: %w", err)
	}

	slog.InfoContext(ctx, "Budget rule inserted",
		"rule_id", id,
		"rule_name", r.Name,
		"category", r.Category,
		"amount_cents", r.Amount.Cents,
		"scope", r.Scope().Key())
	return id, nil
}

// UpdateRule overwrites the editable fields of a rule by id.
func (s *Store) UpdateRule(ctx context.Context, r core.BudgetRule) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE budget_rules SET name = ?, amount_cents = ?, category = ?, tags = ? WHERE id = ?`,
		r.Name, r.Amount.Cents, r.Category, joinTags(r.Tags), r.ID)
	if err != nil {
		return fmt.Errorf("update rule %d: %w", r.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update rule %d: %w", r.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("update rule %d: %w", r.ID, core.ErrRuleNotFound)
	}
	return nil
}

// DeleteRule removes a rule by id.
func (s *Store) DeleteRule(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM budget_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete rule %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete rule %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("delete rule %d: %w", id, core.ErrRuleNotFound)
	}

	slog.InfoContext(ctx, "Budget rule deleted", "rule_id", id)
	return nil
}

// GetRule fetches one rule by id.
func (s *Store) GetRule(ctx context.Context, id int64) (core.BudgetRule, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, amount_cents, category, tags, month, year FROM budget_rules WHERE id = ?`, id)
	r, err := scanRule(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.BudgetRule{}, fmt.Errorf("get rule %d: %w", id, core.ErrRuleNotFound)
	}
	if err != nil {
		return core.BudgetRule{}, fmt.Errorf("get rule %d: %w", id, err)
	}
	return r, nil
}

// RulesForScope returns a scope's rules in stable id order. Project scopes
// match their category's rules plus the project's Total Budget rule, which
// carries the project name.
func (s *Store) RulesForScope(ctx context.Context, scope core.Scope) ([]core.BudgetRule, error) {
	var (
		query string
		args  []any
	)
	switch scope.Kind {
	case core.MonthlyScope:
		query = `SELECT id, name, amount_cents, category, tags, month, year FROM budget_rules
			 WHERE year = ? AND month = ? ORDER BY id`
		args = []any{scope.Year, scope.Month}
	case core.ProjectScope:
		query = `SELECT id, name, amount_cents, category, tags, month, year FROM budget_rules
			 WHERE year IS NULL AND month IS NULL AND (category = ? OR (category = ? AND name = ?)) ORDER BY id`
		args = []any{scope.Project, core.TotalBudgetCategory, scope.Project}
	default:
		return nil, fmt.Errorf("rules for scope: %w: kind %q", core.ErrInvalidScope, scope.Kind)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		if isMissingTable(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("query rules for %s: %w", scope.Key(), err)
	}
	defer rows.Close()

	var out []core.BudgetRule
	for rows.Next() {
		r, err := scanRule(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan rule for %s: %w", scope.Key(), err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteRulesForScope removes every rule of a scope and reports how many
// went. Used by the rollover's destructive overwrite.
func (s *Store) DeleteRulesForScope(ctx context.Context, scope core.Scope) (int64, error) {
	var (
		query string
		args  []any
	)
	switch scope.Kind {
	case core.MonthlyScope:
		query = `DELETE FROM budget_rules WHERE year = ? AND month = ?`
		args = []any{scope.Year, scope.Month}
	case core.ProjectScope:
		query = `DELETE FROM budget_rules WHERE year IS NULL AND month IS NULL AND (category = ? OR (category = ? AND name = ?))`
		args = []any{scope.Project, core.TotalBudgetCategory, scope.Project}
	default:
		return 0, fmt.Errorf("delete rules for scope: %w: kind %q", core.ErrInvalidScope, scope.Kind)
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete rules for %s: %w", scope.Key(), err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete rules for %s: %w", scope.Key(), err)
	}
	if affected > 0 {
		slog.InfoContext(ctx, "Scope rules deleted", "scope", scope.Key(), "count", affected)
	}
	return affected, nil
}

func scanRule(scan func(dest ...any) error) (core.BudgetRule, error) {
	var (
		r           core.BudgetRule
		tags        string
		month, year sql.NullInt64
	)
	if err := scan(&r.ID, &r.Name, &r.Amount.Cents, &r.Category, &tags, &month, &year); err != nil {
		return core.BudgetRule{}, err
	}
	r.Tags = splitTags(tags)
	r.Month = int(month.Int64)
	r.Year = int(year.Int64)
	return r, nil
}

func nullableInt(v int) any {
	if v == 0 {
		return nil
	}
	return v
}
