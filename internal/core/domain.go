package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// AllTags is the sentinel tag list value meaning "every tag currently
	// under this category". A rule carrying it is mutually exclusive with
	// specific-tag rules in the same scope and category.
	AllTags = "ALL_TAGS"

	// TotalBudgetCategory marks the single ceiling rule of a scope.
	TotalBudgetCategory = "Total Budget"

	// MinRuleCents is the placeholder amount reconciliation assigns to a
	// freshly inserted project tag rule until the user edits it.
	MinRuleCents int64 = 100
)

const (
	SourceBank SourceKind = "bank"
	SourceCard SourceKind = "credit_card"
)

const (
	MonthlyScope ScopeKind = "monthly"
	ProjectScope ScopeKind = "project"
)

type (
	// SourceKind identifies which transaction table a row came from.
	SourceKind string

	// ScopeKind distinguishes month-bounded budgets from open-ended projects.
	ScopeKind string

	Date struct {
		time.Time
	}

	// Transaction is a normalized row from either transaction table.
	// Read-only from the budget engine's perspective: scrapers write rows,
	// the tagging layer sets Category/Tag, nothing here mutates them.
	Transaction struct {
		ID            int64
		Date          Date
		Description   string
		Spent         Money // positive for money leaving the account
		Category      string
		Tag           string
		AccountNumber string
		AccountName   string
		Provider      string
		Status        string
		Type          string
		Source        SourceKind
	}

	// BudgetRule allocates a capped amount to a category and tag subset
	// within one scope. Month and Year are both zero for project rules and
	// both set for monthly rules, never mixed.
	BudgetRule struct {
		ID       int64
		Name     string
		Amount   Money
		Category string
		Tags     []string
		Month    int
		Year     int
	}

	// Scope is the unit budget rules are evaluated against: either a
	// (year, month) pair or a project category.
	Scope struct {
		Kind    ScopeKind
		Year    int
		Month   int
		Project string
	}
)

var (
	ErrInvalidAmount   = errors.New("amount must be positive")
	ErrEmptyName       = errors.New("rule name cannot be empty")
	ErrNoCategory      = errors.New("no category selected")
	ErrNoTags          = errors.New("at least one tag is required")
	ErrBudgetExceeded  = errors.New("scope budget exceeded")
	ErrTotalBelowRules = errors.New("total budget below allocated rules")
	ErrTagConflict     = errors.New("tag selection conflicts with an existing rule")
	ErrNoTotalBudget   = errors.New("scope has no total budget yet")
	ErrProtectedRule   = errors.New("rule cannot be deleted")
	ErrRuleNotFound    = errors.New("rule not found")
	ErrInvalidScope    = errors.New("invalid scope")
	ErrUnknownCategory = errors.New("unknown category")
)

func (k SourceKind) IsValid() bool {
	switch k {
	case SourceBank, SourceCard:
		return true
	default:
		return false
	}
}

// Table returns the transaction table backing this source kind.
func (k SourceKind) Table() string {
	switch k {
	case SourceBank:
		return "bank_transactions"
	case SourceCard:
		return "card_transactions"
	default:
		return ""
	}
}

// NonExpenseCategories are semantic categories excluded from every expense
// aggregation. They double as the registry's protected (non-deletable) set.
func NonExpenseCategories() []string {
	return []string{"Ignore", "Salary", "Other Income", "Investments", "Liabilities", "Savings"}
}

func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses the ISO YYYY-MM-DD form used by the transaction tables.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

// ISO renders the date in the storage format.
func (d Date) ISO() string {
	return d.Format("2006-01-02")
}

func MonthScope(year, month int) Scope {
	return Scope{Kind: MonthlyScope, Year: year, Month: month}
}

func NewProjectScope(category string) Scope {
	return Scope{Kind: ProjectScope, Project: strings.TrimSpace(category)}
}

func (s Scope) Validate() error {
	switch s.Kind {
	case MonthlyScope:
		if s.Month < 1 || s.Month > 12 {
			return fmt.Errorf("%w: month %d out of range", ErrInvalidScope, s.Month)
		}
		if s.Year < 1 {
			return fmt.Errorf("%w: year %d", ErrInvalidScope, s.Year)
		}
		if s.Project != "" {
			return fmt.Errorf("%w: monthly scope with project %q", ErrInvalidScope, s.Project)
		}
		return nil
	case ProjectScope:
		if s.Project == "" {
			return fmt.Errorf("%w: project scope without category", ErrInvalidScope)
		}
		if s.Year != 0 || s.Month != 0 {
			return fmt.Errorf("%w: project scope with month/year", ErrInvalidScope)
		}
		return nil
	default:
		return fmt.Errorf("%w: kind %q", ErrInvalidScope, s.Kind)
	}
}

// Key is a stable identifier for logging and map use, e.g. "2024-03" or
// "project:Wedding".
func (s Scope) Key() string {
	if s.Kind == ProjectScope {
		return "project:" + s.Project
	}
	return fmt.Sprintf("%04d-%02d", s.Year, s.Month)
}

// Window returns the half-open [start, end) date range of a monthly scope.
// Project scopes have no window.
func (s Scope) Window() (start, end Date, ok bool) {
	if s.Kind != MonthlyScope {
		return Date{}, Date{}, false
	}
	st := time.Date(s.Year, time.Month(s.Month), 1, 0, 0, 0, 0, time.UTC)
	return Date{Time: st}, Date{Time: st.AddDate(0, 1, 0)}, true
}

// Previous returns the scope of the month before a monthly scope, wrapping
// the year at January.
func (s Scope) Previous() Scope {
	if s.Kind != MonthlyScope {
		return s
	}
	if s.Month == 1 {
		return MonthScope(s.Year-1, 12)
	}
	return MonthScope(s.Year, s.Month-1)
}

// Scope reports which scope a rule belongs to. Project totals live under the
// Total Budget category with the project name in Name.
func (r BudgetRule) Scope() Scope {
	if r.Month == 0 && r.Year == 0 {
		if r.IsTotal() {
			return NewProjectScope(r.Name)
		}
		return NewProjectScope(r.Category)
	}
	return MonthScope(r.Year, r.Month)
}

func (r BudgetRule) IsTotal() bool {
	return r.Category == TotalBudgetCategory
}

// HasAllTags reports whether the rule claims every tag of its category.
func (r BudgetRule) HasAllTags() bool {
	for _, t := range r.Tags {
		if t == AllTags {
			return true
		}
	}
	return false
}

// MatchesTag reports whether the rule claims the given tag. Comparison is
// case-insensitive, mirroring the registry's uniqueness rule.
func (r BudgetRule) MatchesTag(tag string) bool {
	if r.HasAllTags() {
		return true
	}
	for _, t := range r.Tags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

// Validate covers the required-field checks shared by every mutation path.
// Scope-sum and tag-exclusivity checks need the rest of the scope and live
// in the budget engine.
func (r BudgetRule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrEmptyName
	}
	if strings.TrimSpace(r.Category) == "" {
		return ErrNoCategory
	}
	if len(r.Tags) == 0 {
		return ErrNoTags
	}
	if err := r.Amount.Validate(); err != nil {
		return err
	}
	if (r.Month == 0) != (r.Year == 0) {
		return fmt.Errorf("%w: month and year must be both set or both empty", ErrInvalidScope)
	}
	if r.Month != 0 && (r.Month < 1 || r.Month > 12) {
		return fmt.Errorf("%w: month %d out of range", ErrInvalidScope, r.Month)
	}
	return nil
}

// Equivalent reports whether two rules carry identical user-editable fields.
// Used for the no-op short-circuit on updates; amounts compare as cents, so
// there is no floating-point mismatch to worry about.
func (r BudgetRule) Equivalent(other BudgetRule) bool {
	if r.Name != other.Name || r.Category != other.Category || r.Amount.Cents != other.Amount.Cents {
		return false
	}
	if len(r.Tags) != len(other.Tags) {
		return false
	}
	for i := range r.Tags {
		if !strings.EqualFold(r.Tags[i], other.Tags[i]) {
			return false
		}
	}
	return true
}
