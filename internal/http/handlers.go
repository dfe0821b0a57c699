package http

import (
	"fmt"
	"net/http"
	"strconv"

	"bilancio/internal/budget"
	"bilancio/internal/core"
)

// ruleRequest is the JSON shape of rule create/update bodies. Amounts are
// integer cents; the UI does the decimal formatting.
type ruleRequest struct {
	Name        string   `json:"name"`
	AmountCents int64    `json:"amountCents"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	Month       int      `json:"month,omitempty"`
	Year        int      `json:"year,omitempty"`
}

func (r ruleRequest) rule() core.BudgetRule {
	return core.BudgetRule{
		Name:     r.Name,
		Amount:   core.Money{Cents: r.AmountCents},
		Category: r.Category,
		Tags:     r.Tags,
		Month:    r.Month,
		Year:     r.Year,
	}
}

type totalRequest struct {
	AmountCents int64 `json:"amountCents"`
}

func monthScopeFromPath(r *http.Request) (core.Scope, error) {
	year, err := strconv.Atoi(r.PathValue("year"))
	if err != nil {
		return core.Scope{}, fmt.Errorf("%w: year %q", core.ErrInvalidScope, r.PathValue("year"))
	}
	month, err := strconv.Atoi(r.PathValue("month"))
	if err != nil {
		return core.Scope{}, fmt.Errorf("%w: month %q", core.ErrInvalidScope, r.PathValue("month"))
	}
	scope := core.MonthScope(year, month)
	return scope, scope.Validate()
}

// handleListTransactions returns the raw union of both transaction tables.
// Without an explicit start the window opens at the earliest stored row.
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	var start, end core.Date
	if v := r.URL.Query().Get("start"); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		start = d
	} else {
		start = s.txns.DefaultWindowStart(r.Context())
	}
	if v := r.URL.Query().Get("end"); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		end = d
	}

	txns, err := s.txns.Expenses(r.Context(), start, end, nil)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if txns == nil {
		txns = []core.Transaction{}
	}
	writeJSON(w, http.StatusOK, txns)
}

func (s *Server) handleMonthView(w http.ResponseWriter, r *http.Request) {
	scope, err := monthScopeFromPath(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	alloc, err := s.budget.MonthView(r.Context(), scope.Year, scope.Month)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alloc)
}

func (s *Server) handleProjectView(w http.ResponseWriter, r *http.Request) {
	alloc, err := s.budget.ProjectView(r.Context(), r.PathValue("project"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alloc)
}

func (s *Server) handleSetMonthTotal(w http.ResponseWriter, r *http.Request) {
	scope, err := monthScopeFromPath(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.setTotal(w, r, scope)
}

func (s *Server) handleSetProjectTotal(w http.ResponseWriter, r *http.Request) {
	s.setTotal(w, r, core.NewProjectScope(r.PathValue("project")))
}

func (s *Server) setTotal(w http.ResponseWriter, r *http.Request, scope core.Scope) {
	var req totalRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rule, err := s.budget.SetTotalBudget(r.Context(), scope, core.Money{Cents: req.AmountCents})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (s *Server) handleAddRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rule, err := s.budget.AddRule(r.Context(), req.rule())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

func (s *Server) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid rule id %q", r.PathValue("id")))
		return
	}
	var req ruleRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rule := req.rule()
	rule.ID = id
	updated, err := s.budget.UpdateRule(r.Context(), rule)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid rule id %q", r.PathValue("id")))
		return
	}
	if err := s.budget.DeleteRule(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCopyLastMonth(w http.ResponseWriter, r *http.Request) {
	scope, err := monthScopeFromPath(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.budget.Rollover().CopyLastMonth(r.Context(), scope.Year, scope.Month); err != nil {
		writeDomainError(w, err)
		return
	}
	alloc, err := s.budget.MonthView(r.Context(), scope.Year, scope.Month)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alloc)
}

func (s *Server) handleMonthAvailableTags(w http.ResponseWriter, r *http.Request) {
	scope, err := monthScopeFromPath(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	s.availableTags(w, r, scope)
}

func (s *Server) handleProjectAvailableTags(w http.ResponseWriter, r *http.Request) {
	s.availableTags(w, r, core.NewProjectScope(r.PathValue("project")))
}

func (s *Server) availableTags(w http.ResponseWriter, r *http.Request, scope core.Scope) {
	tags, err := s.budget.AvailableTags(r.Context(), scope)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if tags == nil {
		tags = []budget.CategoryTags{}
	}
	writeJSON(w, http.StatusOK, tags)
}

func (s *Server) handleExportMonth(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("no exporter configured"))
		return
	}
	scope, err := monthScopeFromPath(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	alloc, err := s.budget.MonthView(r.Context(), scope.Year, scope.Month)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.exporter.ExportAllocation(r.Context(), alloc); err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
