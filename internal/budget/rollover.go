package budget

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"bilancio/internal/core"
	"bilancio/internal/log"
)

// ErrNoSourceRules means copy-last-month found nothing to copy, so the
// target scope was left untouched.
var ErrNoSourceRules = errors.New("previous month has no rules to copy")

// Rollover carries rules forward between scopes: monthly copy-forward and
// project tag reconciliation.
type Rollover struct {
	repo     RuleRepo
	registry RegistrySource
	logger   *log.Logger
}

func NewRollover(repo RuleRepo, reg RegistrySource, logger *log.Logger) *Rollover {
	return &Rollover{repo: repo, registry: reg, logger: logger.WithComponent(log.ComponentBudget)}
}

// CopyLastMonth replaces the target month's rules with structural copies of
// the previous month's. The source is checked before anything is deleted so
// an empty source never wipes the target.
func (r *Rollover) CopyLastMonth(ctx context.Context, year, month int) error {
	target := core.MonthScope(year, month)
	if err := target.Validate(); err != nil {
		return err
	}
	source := target.Previous()

	sourceRules, err := r.repo.RulesForScope(ctx, source)
	if err != nil {
		return fmt.Errorf("load source rules: %w", err)
	}
	if len(sourceRules) == 0 {
		return ErrNoSourceRules
	}

	deleted, err := r.repo.DeleteRulesForScope(ctx, target)
	if err != nil {
		return fmt.Errorf("clear target rules: %w", err)
	}

	for _, rule := range sourceRules {
		copied := rule
		copied.ID = 0
		copied.Year = year
		copied.Month = month
		if copied.IsTotal() && strings.EqualFold(copied.Name, source.Key()) {
			copied.Name = target.Key()
		}
		if _, err := r.repo.InsertRule(ctx, copied); err != nil {
			return fmt.Errorf("copy rule %q: %w", rule.Name, err)
		}
	}

	r.logger.InfoContext(ctx, "Copied rules forward",
		log.FieldOperation, log.OpRollover,
		"source", source.Key(), "target", target.Key(),
		"copied", len(sourceRules), "replaced", deleted)
	return nil
}

// ReconcileProject aligns a project's tag rules with the registry: every
// registry tag gets a placeholder rule, every rule for a vanished tag goes
// away. ALL_TAGS rules and the project's Total Budget are left alone.
// Returns whether anything changed so callers know to re-read the view.
func (r *Rollover) ReconcileProject(ctx context.Context, project string) (bool, error) {
	scope := core.NewProjectScope(project)
	if err := scope.Validate(); err != nil {
		return false, err
	}

	rules, err := r.repo.RulesForScope(ctx, scope)
	if err != nil {
		return false, fmt.Errorf("load project rules: %w", err)
	}
	if _, ok := totalRule(rules); !ok {
		return false, core.ErrNoTotalBudget
	}

	tags, ok := r.registry.Snapshot().TagsFor(project)
	if !ok {
		return false, fmt.Errorf("%w: %s", core.ErrUnknownCategory, project)
	}

	changed := false
	for _, rule := range rules {
		if rule.IsTotal() || rule.HasAllTags() {
			continue
		}
		alive := false
		for _, tag := range rule.Tags {
			if tagIn(tags, tag) {
				alive = true
				break
			}
		}
		if alive {
			continue
		}
		if err := r.repo.DeleteRule(ctx, rule.ID); err != nil {
			return changed, fmt.Errorf("delete orphan rule %q: %w", rule.Name, err)
		}
		changed = true
	}

	covered := categoryFullyClaimed(project, rules)
	for _, tag := range tags {
		if covered || tagClaimed(project, tag, rules) {
			continue
		}
		placeholder := core.BudgetRule{
			Name:     tag,
			Amount:   core.Money{Cents: core.MinRuleCents},
			Category: project,
			Tags:     []string{tag},
		}
		if _, err := r.repo.InsertRule(ctx, placeholder); err != nil {
			return changed, fmt.Errorf("insert rule for tag %q: %w", tag, err)
		}
		changed = true
	}

	if changed {
		r.logger.InfoContext(ctx, "Reconciled project rules",
			log.FieldOperation, log.OpReconcile, "project", project)
	}
	return changed, nil
}

func tagIn(tags []string, tag string) bool {
	for _, t := range tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}
