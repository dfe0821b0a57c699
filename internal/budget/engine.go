// Package budget computes budget allocations and validates rule mutations.
// Everything in engine.go is pure: callers load rules and transactions from
// storage and a registry snapshot, and get back a view or a verdict.
package budget

import (
	"fmt"
	"strings"

	"bilancio/internal/core"
	"bilancio/internal/registry"
)

// Line is one row of an allocation view: how much a rule budgeted, how much
// of the scope's spending it claimed, and what is left.
type Line struct {
	RuleID       int64              `json:"ruleId,omitempty"`
	Name         string             `json:"name"`
	Category     string             `json:"category"`
	Tags         []string           `json:"tags,omitempty"`
	Budgeted     core.Money         `json:"budgeted"`
	Spent        core.Money         `json:"spent"`
	Remaining    core.Money         `json:"remaining"`
	OverBudget   bool               `json:"overBudget"`
	Transactions []core.Transaction `json:"transactions,omitempty"`
}

// Allocation is the full view of one scope: the total bar, one line per
// stored rule, and the synthetic remainder bucket. Every in-scope
// transaction lands in exactly one of Lines or Other.
type Allocation struct {
	Scope core.Scope `json:"scope"`
	Total Line       `json:"total"`
	Lines []Line     `json:"lines"`
	Other Line       `json:"other"`
}

// OtherExpensesName labels the synthetic remainder bucket. It is never
// stored and never editable.
const OtherExpensesName = "Other Expenses"

// View partitions the scope's transactions across its rules. Rules must
// already belong to the scope (the repo's scope query guarantees that) and
// arrive in stable id order, which fixes which rule wins when tag sets
// would otherwise overlap.
func View(scope core.Scope, rules []core.BudgetRule, txns []core.Transaction, snap registry.Snapshot) (Allocation, error) {
	if err := scope.Validate(); err != nil {
		return Allocation{}, err
	}
	total, ok := totalRule(rules)
	if !ok {
		return Allocation{}, core.ErrNoTotalBudget
	}

	alloc := Allocation{
		Scope: scope,
		Total: Line{
			RuleID:   total.ID,
			Name:     total.Name,
			Category: total.Category,
			Budgeted: total.Amount,
		},
	}

	pool := make([]core.Transaction, len(txns))
	copy(pool, txns)
	for _, t := range pool {
		alloc.Total.Spent.Cents += t.Spent.Cents
	}
	finishLine(&alloc.Total)

	var allocated int64
	for _, rule := range rules {
		if rule.IsTotal() {
			continue
		}
		line := Line{
			RuleID:   rule.ID,
			Name:     rule.Name,
			Category: rule.Category,
			Tags:     rule.Tags,
			Budgeted: rule.Amount,
		}
		pool = claim(pool, rule, &line)
		finishLine(&line)
		alloc.Lines = append(alloc.Lines, line)
		allocated += rule.Amount.Cents
	}

	alloc.Other = Line{
		Name:         OtherExpensesName,
		Budgeted:     core.Money{Cents: total.Amount.Cents - allocated},
		Transactions: pool,
	}
	for _, t := range pool {
		alloc.Other.Spent.Cents += t.Spent.Cents
	}
	finishLine(&alloc.Other)
	return alloc, nil
}

// claim moves the rule's transactions out of the pool and into the line.
func claim(pool []core.Transaction, rule core.BudgetRule, line *Line) []core.Transaction {
	rest := pool[:0]
	for _, t := range pool {
		if strings.EqualFold(t.Category, rule.Category) && (rule.HasAllTags() || rule.MatchesTag(t.Tag)) {
			line.Transactions = append(line.Transactions, t)
			line.Spent.Cents += t.Spent.Cents
			continue
		}
		rest = append(rest, t)
	}
	return rest
}

func finishLine(l *Line) {
	l.Remaining = core.Money{Cents: l.Budgeted.Cents - l.Spent.Cents}
	l.OverBudget = l.Spent.Cents > l.Budgeted.Cents
}

// ValidateRule decides whether the proposed insert or update is legal given
// the scope's existing rules. A proposal equivalent to its stored version
// short-circuits to nil so repeated form submissions stay harmless.
func ValidateRule(proposed core.BudgetRule, existing []core.BudgetRule, snap registry.Snapshot) error {
	if proposed.ID != 0 {
		for _, r := range existing {
			if r.ID == proposed.ID && r.Equivalent(proposed) {
				return nil
			}
		}
	}
	if err := proposed.Validate(); err != nil {
		return err
	}
	if !proposed.IsTotal() && !snap.HasCategory(proposed.Category) {
		return core.ErrUnknownCategory
	}

	total, ok := totalRule(existing)
	if !ok {
		// Bootstrap: the first rule of a scope must be its Total Budget.
		if proposed.IsTotal() {
			return nil
		}
		return core.ErrNoTotalBudget
	}

	if proposed.IsTotal() {
		// Exactly one ceiling per scope: the only legal total proposal is
		// an edit of the existing one.
		if proposed.ID != total.ID {
			return fmt.Errorf("%w: scope already has a total budget", core.ErrInvalidScope)
		}
		if proposed.Amount.Cents < sumNonTotal(existing, 0) {
			return core.ErrTotalBelowRules
		}
		return nil
	}

	if sumNonTotal(existing, proposed.ID)+proposed.Amount.Cents > total.Amount.Cents {
		return core.ErrBudgetExceeded
	}
	return tagExclusivity(proposed, existing)
}

// tagExclusivity enforces the ALL_TAGS contract in both directions and for
// both scope kinds: an ALL_TAGS rule owns its whole category, and a
// specific tag may back at most one rule.
func tagExclusivity(proposed core.BudgetRule, existing []core.BudgetRule) error {
	for _, r := range existing {
		if r.ID == proposed.ID || r.IsTotal() || !strings.EqualFold(r.Category, proposed.Category) {
			continue
		}
		if proposed.HasAllTags() || r.HasAllTags() {
			return core.ErrTagConflict
		}
		for _, tag := range proposed.Tags {
			if r.MatchesTag(tag) {
				return core.ErrTagConflict
			}
		}
	}
	return nil
}

// CategoryTags pairs a category with the tags still open for new rules.
type CategoryTags struct {
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
}

// AvailableTags lists, per registry category, the tags not yet claimed by
// any rule in the scope. Categories with nothing left to offer, and the
// non-expense categories that never accrue budgetable spending, are
// omitted.
func AvailableTags(rules []core.BudgetRule, snap registry.Snapshot) []CategoryTags {
	skip := make(map[string]struct{})
	for _, c := range core.NonExpenseCategories() {
		skip[strings.ToLower(c)] = struct{}{}
	}

	var out []CategoryTags
	for _, cat := range snap.Categories {
		if _, excluded := skip[strings.ToLower(cat.Name)]; excluded {
			continue
		}
		if categoryFullyClaimed(cat.Name, rules) {
			continue
		}
		var free []string
		for _, tag := range cat.Tags {
			if !tagClaimed(cat.Name, tag, rules) {
				free = append(free, tag)
			}
		}
		if len(free) > 0 {
			out = append(out, CategoryTags{Category: cat.Name, Tags: free})
		}
	}
	return out
}

func categoryFullyClaimed(category string, rules []core.BudgetRule) bool {
	for _, r := range rules {
		if !r.IsTotal() && strings.EqualFold(r.Category, category) && r.HasAllTags() {
			return true
		}
	}
	return false
}

func tagClaimed(category, tag string, rules []core.BudgetRule) bool {
	for _, r := range rules {
		if !r.IsTotal() && strings.EqualFold(r.Category, category) && r.MatchesTag(tag) {
			return true
		}
	}
	return false
}

func totalRule(rules []core.BudgetRule) (core.BudgetRule, bool) {
	for _, r := range rules {
		if r.IsTotal() {
			return r, true
		}
	}
	return core.BudgetRule{}, false
}

func sumNonTotal(rules []core.BudgetRule, excludeID int64) int64 {
	var sum int64
	for _, r := range rules {
		if r.IsTotal() || (excludeID != 0 && r.ID == excludeID) {
			continue
		}
		sum += r.Amount.Cents
	}
	return sum
}
