package core

import (
	"errors"
	"testing"
)

func TestScopeValidate(t *testing.T) {
	tests := []struct {
		name    string
		scope   Scope
		wantErr bool
	}{
		{"valid month", MonthScope(2024, 3), false},
		{"valid project", NewProjectScope("Wedding"), false},
		{"month zero", MonthScope(2024, 0), true},
		{"month thirteen", MonthScope(2024, 13), true},
		{"year zero", MonthScope(0, 5), true},
		{"project without category", NewProjectScope(""), true},
		{"mixed", Scope{Kind: ProjectScope, Project: "Wedding", Year: 2024}, true},
		{"unknown kind", Scope{Kind: ScopeKind("weekly")}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.scope.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestScopeKey(t *testing.T) {
	if got := MonthScope(2024, 3).Key(); got != "2024-03" {
		t.Errorf("month key = %q", got)
	}
	if got := NewProjectScope("Wedding").Key(); got != "project:Wedding" {
		t.Errorf("project key = %q", got)
	}
}

func TestScopePrevious(t *testing.T) {
	tests := []struct {
		in, want Scope
	}{
		{MonthScope(2024, 3), MonthScope(2024, 2)},
		{MonthScope(2024, 1), MonthScope(2023, 12)},
	}
	for _, tt := range tests {
		if got := tt.in.Previous(); got != tt.want {
			t.Errorf("Previous(%s) = %s, want %s", tt.in.Key(), got.Key(), tt.want.Key())
		}
	}
}

func TestScopeWindow(t *testing.T) {
	start, end, ok := MonthScope(2024, 12).Window()
	if !ok {
		t.Fatal("monthly scope should have a window")
	}
	if start.ISO() != "2024-12-01" || end.ISO() != "2025-01-01" {
		t.Errorf("window = [%s, %s)", start.ISO(), end.ISO())
	}
	if _, _, ok := NewProjectScope("Wedding").Window(); ok {
		t.Error("project scope should not have a window")
	}
}

func TestBudgetRuleScope(t *testing.T) {
	monthly := BudgetRule{Name: "Food cap", Category: "Food", Tags: []string{"Groceries"}, Month: 3, Year: 2024}
	if got := monthly.Scope(); got != MonthScope(2024, 3) {
		t.Errorf("monthly rule scope = %v", got)
	}

	projectTag := BudgetRule{Name: "Venue", Category: "Wedding", Tags: []string{"Venue"}}
	if got := projectTag.Scope(); got != NewProjectScope("Wedding") {
		t.Errorf("project tag rule scope = %v", got)
	}

	projectTotal := BudgetRule{Name: "Wedding", Category: TotalBudgetCategory, Tags: []string{AllTags}}
	if got := projectTotal.Scope(); got != NewProjectScope("Wedding") {
		t.Errorf("project total rule scope = %v", got)
	}
}

func TestBudgetRuleValidate(t *testing.T) {
	base := BudgetRule{
		Name:     "Food cap",
		Amount:   Money{Cents: 80000},
		Category: "Food",
		Tags:     []string{"Groceries"},
		Month:    3,
		Year:     2024,
	}

	tests := []struct {
		name    string
		mutate  func(r *BudgetRule)
		wantErr error
	}{
		{"valid", func(r *BudgetRule) {}, nil},
		{"blank name", func(r *BudgetRule) { r.Name = "  " }, ErrEmptyName},
		{"no category", func(r *BudgetRule) { r.Category = "" }, ErrNoCategory},
		{"no tags", func(r *BudgetRule) { r.Tags = nil }, ErrNoTags},
		{"zero amount", func(r *BudgetRule) { r.Amount = Money{} }, ErrInvalidAmount},
		{"negative amount", func(r *BudgetRule) { r.Amount = Money{Cents: -5} }, ErrInvalidAmount},
		{"month without year", func(r *BudgetRule) { r.Year = 0 }, ErrInvalidScope},
		{"year without month", func(r *BudgetRule) { r.Month = 0 }, ErrInvalidScope},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := base
			tt.mutate(&r)
			err := r.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBudgetRuleTagMatching(t *testing.T) {
	specific := BudgetRule{Tags: []string{"Groceries", "Takeaway"}}
	if !specific.MatchesTag("groceries") {
		t.Error("tag matching should be case-insensitive")
	}
	if specific.MatchesTag("Restaurants") {
		t.Error("unlisted tag should not match")
	}
	if specific.HasAllTags() {
		t.Error("specific rule should not report all tags")
	}

	all := BudgetRule{Tags: []string{AllTags}}
	if !all.HasAllTags() || !all.MatchesTag("anything") {
		t.Error("ALL_TAGS rule should match every tag")
	}
}

func TestBudgetRuleEquivalent(t *testing.T) {
	a := BudgetRule{Name: "Food", Category: "Food", Amount: Money{Cents: 1000}, Tags: []string{"Groceries"}}
	b := a
	if !a.Equivalent(b) {
		t.Error("identical rules should be equivalent")
	}
	b.Amount.Cents = 1001
	if a.Equivalent(b) {
		t.Error("differing cents should not be equivalent")
	}
	b = a
	b.Tags = []string{"GROCERIES"}
	if !a.Equivalent(b) {
		t.Error("tag comparison should be case-insensitive")
	}
}
