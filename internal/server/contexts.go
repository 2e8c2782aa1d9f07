package server

import (
	"net/http"

	"github.com/conneroisu/plonepack/internal/contexthook"
	perrors "github.com/conneroisu/plonepack/internal/errors"
)

// ContextOpenRequest reports a context module the host has just resolved.
type ContextOpenRequest struct {
	ID string `json:"id"`
	// Resource is the directory the context enumerates.
	Resource string `json:"resource"`
}

// ContextOpenResponse tells the host how to filter the enumeration.
type ContextOpenResponse struct {
	ID string `json:"id"`
	// Filter replaces the host's enumeration filter when set, so the
	// injected specifiers are not filtered out again.
	Filter string `json:"filter,omitempty"`
}

// AlternativesRequest carries a context's enumeration. The first item's
// context decides whether the hook applies.
type AlternativesRequest struct {
	Items []contexthook.Alternative `json:"items"`
}

// AlternativesResponse is the enumeration to use.
type AlternativesResponse struct {
	ID    string                    `json:"id"`
	Items []contexthook.Alternative `json:"items"`
}

func (s *Server) handleContextOpen(w http.ResponseWriter, r *http.Request) {
	var in ContextOpenRequest
	if err := decodeBody(w, r, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, ResolveResponse{Error: invalidBody(err)})
		return
	}
	if in.ID == "" {
		writeJSON(w, http.StatusBadRequest, ResolveResponse{Error: &ErrorBody{
			Code:    perrors.ErrCodeValidationFailed,
			Message: "context id is required",
		}})
		return
	}

	s.cfg.Hook.AfterResolve(in.ID)
	out := ContextOpenResponse{ID: in.ID}
	if f, ok := s.cfg.Hook.FilterFor(in.Resource); ok {
		out.Filter = f.String()
	}
	s.logger.Debug(r.Context(), "Context opened", "id", in.ID, "resource", in.Resource)
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAlternatives(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var in AlternativesRequest
	if err := decodeBody(w, r, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, ResolveResponse{Error: invalidBody(err)})
		return
	}

	items := s.cfg.Hook.Alternatives(id, in.Items)
	if items == nil {
		items = []contexthook.Alternative{}
	}
	writeJSON(w, http.StatusOK, AlternativesResponse{ID: id, Items: items})
}

func (s *Server) handleContextClose(w http.ResponseWriter, r *http.Request) {
	s.cfg.Hook.Close(r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}
