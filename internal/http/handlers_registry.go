package http

import (
	"fmt"
	"net/http"
)

type categoryRequest struct {
	Name string `json:"name"`
}

type tagRequest struct {
	Tag string `json:"tag"`
}

type reallocateRequest struct {
	From string   `json:"from"`
	To   string   `json:"to"`
	Tags []string `json:"tags"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Snapshot())
}

// registryMutation handles the shared outcome of registry writes: ok=false
// means the mutation was refused by contract (protected category, duplicate,
// unknown name) and err means persistence failed.
func registryMutation(w http.ResponseWriter, ok bool, err error, refusal string) {
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !ok {
		writeError(w, http.StatusUnprocessableEntity, fmt.Errorf("%s", refusal))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ok, err := s.registry.AddCategory(req.Name)
	registryMutation(w, ok, err, "category already exists or name is empty")
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	ok, err := s.registry.DeleteCategory(r.PathValue("name"))
	registryMutation(w, ok, err, "category is protected or does not exist")
}

func (s *Server) handleAddTag(w http.ResponseWriter, r *http.Request) {
	var req tagRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ok, err := s.registry.AddTag(r.PathValue("name"), req.Tag)
	registryMutation(w, ok, err, "tag already exists or category is unknown")
}

func (s *Server) handleDeleteTag(w http.ResponseWriter, r *http.Request) {
	ok, err := s.registry.DeleteTag(r.PathValue("name"), r.PathValue("tag"))
	registryMutation(w, ok, err, "tag or category does not exist")
}

func (s *Server) handleReallocateTags(w http.ResponseWriter, r *http.Request) {
	var req reallocateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ok, err := s.registry.ReallocateTags(req.From, req.To, req.Tags)
	registryMutation(w, ok, err, "source or destination category is unknown")
}
