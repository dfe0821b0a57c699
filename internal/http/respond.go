package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"bilancio/internal/budget"
	"bilancio/internal/core"
	"bilancio/internal/scrape"
)

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}

// writeDomainError maps domain sentinels onto HTTP statuses. Validation
// failures come back as 422 with the reason string, so the UI can show them
// verbatim.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrRuleNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, core.ErrProtectedRule),
		errors.Is(err, scrape.ErrPullInProgress):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrNoCategory),
		errors.Is(err, core.ErrNoTags),
		errors.Is(err, core.ErrBudgetExceeded),
		errors.Is(err, core.ErrTotalBelowRules),
		errors.Is(err, core.ErrTagConflict),
		errors.Is(err, core.ErrNoTotalBudget),
		errors.Is(err, core.ErrInvalidScope),
		errors.Is(err, core.ErrUnknownCategory),
		errors.Is(err, budget.ErrNoSourceRules),
		errors.Is(err, scrape.ErrNoPullWaiting):
		writeError(w, http.StatusUnprocessableEntity, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}

func decodeBody(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
