package http

import (
	"fmt"
	"net/http"
)

type codeRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleStartPull(w http.ResponseWriter, _ *http.Request) {
	if s.pulls == nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("no scraper configured"))
		return
	}
	if err := s.pulls.Start(); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.pulls.Status())
}

func (s *Server) handlePullStatus(w http.ResponseWriter, _ *http.Request) {
	if s.pulls == nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("no scraper configured"))
		return
	}
	writeJSON(w, http.StatusOK, s.pulls.Status())
}

func (s *Server) handleSubmitCode(w http.ResponseWriter, r *http.Request) {
	if s.pulls == nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("no scraper configured"))
		return
	}
	var req codeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("code cannot be empty"))
		return
	}
	if err := s.pulls.SubmitCode(req.Code); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCancelPull(w http.ResponseWriter, _ *http.Request) {
	if s.pulls == nil {
		writeError(w, http.StatusServiceUnavailable, fmt.Errorf("no scraper configured"))
		return
	}
	s.pulls.Cancel()
	w.WriteHeader(http.StatusNoContent)
}
