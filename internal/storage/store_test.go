package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"bilancio/internal/core"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func txn(source core.SourceKind, date string, spentCents int64, category, tag string) core.Transaction {
	d, _ := core.ParseDate(date)
	return core.Transaction{
		Date:          d,
		Description:   "test txn",
		Spent:         core.Money{Cents: spentCents},
		Category:      category,
		Tag:           tag,
		AccountNumber: "12345",
		AccountName:   "Main",
		Provider:      "testbank",
		Source:        source,
	}
}

func TestInsertAndQueryExpenses(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seed := []core.Transaction{
		txn(core.SourceCard, "2024-03-05", 1234, "Food", "Groceries"),
		txn(core.SourceBank, "2024-03-10", 5000, "Transport", ""),
		txn(core.SourceCard, "2024-04-01", 700, "Food", "Takeaway"),
		txn(core.SourceBank, "2024-03-15", -2000, "Salary", ""),
	}
	if n, err := s.InsertTransactions(ctx, seed); err != nil || n != 4 {
		t.Fatalf("InsertTransactions() = %d, %v", n, err)
	}

	start, _ := core.ParseDate("2024-03-01")
	end, _ := core.ParseDate("2024-04-01")
	got, err := s.Expenses(ctx, start, end, []string{"Salary"})
	if err != nil {
		t.Fatalf("Expenses() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expenses() returned %d rows, want 2 (window + exclusion applied): %+v", len(got), got)
	}
	for _, g := range got {
		if g.Spent.Cents <= 0 {
			t.Errorf("expense %q spent = %d cents, want positive after single sign flip", g.Description, g.Spent.Cents)
		}
	}
}

func TestExpensesKeepsUncategorized(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.InsertTransactions(ctx, []core.Transaction{
		txn(core.SourceCard, "2024-03-05", 1000, "", ""),
	}); err != nil {
		t.Fatalf("InsertTransactions() error = %v", err)
	}

	got, err := s.Expenses(ctx, core.Date{}, core.Date{}, []string{"Salary"})
	if err != nil {
		t.Fatalf("Expenses() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("uncategorized rows must survive the exclusion filter, got %d rows", len(got))
	}
	if got[0].Category != "" || got[0].Tag != "" {
		t.Errorf("NULL category/tag should scan as empty strings, got %q/%q", got[0].Category, got[0].Tag)
	}
}

func TestExpensesForCategory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.InsertTransactions(ctx, []core.Transaction{
		txn(core.SourceCard, "2023-01-05", 100000, "Wedding", "Venue"),
		txn(core.SourceBank, "2024-06-10", 50000, "Wedding", "Catering"),
		txn(core.SourceCard, "2024-06-11", 700, "Food", "Groceries"),
	}); err != nil {
		t.Fatalf("InsertTransactions() error = %v", err)
	}

	got, err := s.ExpensesForCategory(ctx, "Wedding")
	if err != nil {
		t.Fatalf("ExpensesForCategory() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("ExpensesForCategory(Wedding) = %d rows, want 2 (no date window)", len(got))
	}
}

func TestRuleCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rule := core.BudgetRule{
		Name:     "Food cap",
		Amount:   core.Money{Cents: 80000},
		Category: "Food",
		Tags:     []string{"Groceries", "Takeaway"},
		Month:    3,
		Year:     2024,
	}
	id, err := s.InsertRule(ctx, rule)
	if err != nil {
		t.Fatalf("InsertRule() error = %v", err)
	}

	got, err := s.GetRule(ctx, id)
	if err != nil {
		t.Fatalf("GetRule() error = %v", err)
	}
	if got.Name != rule.Name || got.Amount.Cents != rule.Amount.Cents {
		t.Errorf("GetRule() = %+v, want %+v", got, rule)
	}
	if len(got.Tags) != 2 || got.Tags[0] != "Groceries" || got.Tags[1] != "Takeaway" {
		t.Errorf("tags round trip through the ';' join failed: %v", got.Tags)
	}

	got.Amount.Cents = 90000
	if err := s.UpdateRule(ctx, got); err != nil {
		t.Fatalf("UpdateRule() error = %v", err)
	}
	updated, _ := s.GetRule(ctx, id)
	if updated.Amount.Cents != 90000 {
		t.Errorf("amount after update = %d", updated.Amount.Cents)
	}

	if err := s.DeleteRule(ctx, id); err != nil {
		t.Fatalf("DeleteRule() error = %v", err)
	}
	if _, err := s.GetRule(ctx, id); !errors.Is(err, core.ErrRuleNotFound) {
		t.Errorf("GetRule() after delete = %v, want ErrRuleNotFound", err)
	}
	if err := s.DeleteRule(ctx, id); !errors.Is(err, core.ErrRuleNotFound) {
		t.Errorf("second DeleteRule() = %v, want ErrRuleNotFound", err)
	}
}

func TestRulesForScope(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	monthly := []core.BudgetRule{
		{Name: "2024-03", Amount: core.Money{Cents: 500000}, Category: core.TotalBudgetCategory, Tags: []string{core.AllTags}, Month: 3, Year: 2024},
		{Name: "Food cap", Amount: core.Money{Cents: 80000}, Category: "Food", Tags: []string{"Groceries"}, Month: 3, Year: 2024},
		{Name: "Other month", Amount: core.Money{Cents: 10000}, Category: "Food", Tags: []string{"Groceries"}, Month: 4, Year: 2024},
	}
	project := []core.BudgetRule{
		{Name: "Wedding", Amount: core.Money{Cents: 2000000}, Category: core.TotalBudgetCategory, Tags: []string{core.AllTags}},
		{Name: "Venue", Amount: core.Money{Cents: 100}, Category: "Wedding", Tags: []string{"Venue"}},
	}
	for _, r := range append(monthly, project...) {
		if _, err := s.InsertRule(ctx, r); err != nil {
			t.Fatalf("InsertRule(%s) error = %v", r.Name, err)
		}
	}

	march, err := s.RulesForScope(ctx, core.MonthScope(2024, 3))
	if err != nil {
		t.Fatalf("RulesForScope(month) error = %v", err)
	}
	if len(march) != 2 {
		t.Errorf("march rules = %d, want 2", len(march))
	}

	wedding, err := s.RulesForScope(ctx, core.NewProjectScope("Wedding"))
	if err != nil {
		t.Fatalf("RulesForScope(project) error = %v", err)
	}
	if len(wedding) != 2 {
		t.Fatalf("wedding rules = %d, want 2 (total rule matched by name)", len(wedding))
	}

	deleted, err := s.DeleteRulesForScope(ctx, core.MonthScope(2024, 3))
	if err != nil {
		t.Fatalf("DeleteRulesForScope() error = %v", err)
	}
	if deleted != 2 {
		t.Errorf("DeleteRulesForScope() = %d, want 2", deleted)
	}
	remaining, _ := s.RulesForScope(ctx, core.MonthScope(2024, 4))
	if len(remaining) != 1 {
		t.Errorf("april rules should be untouched, got %d", len(remaining))
	}
}

func TestDefaultWindowStart(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Empty store: about one year ago.
	got := s.DefaultWindowStart(ctx)
	expect := time.Now().UTC().AddDate(-1, 0, 0)
	if diff := got.Sub(expect); diff > 24*time.Hour || diff < -24*time.Hour {
		t.Errorf("fresh-install fallback = %s, want about %s", got.ISO(), expect.Format("2006-01-02"))
	}

	if _, err := s.InsertTransactions(ctx, []core.Transaction{
		txn(core.SourceBank, "2020-05-01", 100, "Food", ""),
		txn(core.SourceCard, "2021-01-01", 100, "Food", ""),
	}); err != nil {
		t.Fatalf("InsertTransactions() error = %v", err)
	}
	if got := s.DefaultWindowStart(ctx); got.ISO() != "2020-05-01" {
		t.Errorf("DefaultWindowStart() = %s, want earliest transaction date", got.ISO())
	}
}
