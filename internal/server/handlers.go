package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	perrors "github.com/conneroisu/plonepack/internal/errors"
	"github.com/conneroisu/plonepack/internal/resource"
)

const maxRequestBody = 64 << 10

// ResolveRequest is the wire form of one resolution callback.
type ResolveRequest struct {
	// ID is echoed back on websocket answers.
	ID      string `json:"id,omitempty"`
	Request string `json:"request"`
	// Path is the issuing context directory.
	Path  string `json:"path"`
	Query string `json:"query,omitempty"`
	// Kind is "file" (default) or "module".
	Kind string `json:"kind,omitempty"`
}

// ResolveResponse is either a location, a continue marker or an error.
type ResolveResponse struct {
	ID       string             `json:"id,omitempty"`
	Location *resource.Location `json:"location,omitempty"`
	Continue bool               `json:"continue,omitempty"`
	Error    *ErrorBody         `json:"error,omitempty"`
}

// ErrorBody describes a failed resolution.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (r ResolveRequest) toRequest() (resource.Request, error) {
	kind, ok := resource.ParseKind(r.Kind)
	if !ok {
		return resource.Request{}, perrors.NewValidationError(perrors.ErrCodeValidationFailed, "kind must be file or module").
			WithContext("kind", r.Kind)
	}
	return resource.NewRequest(r.Request, r.Path, r.Query, kind), nil
}

// resolve runs one wire request and never fails: errors are folded into
// the response.
func (s *Server) resolve(ctx context.Context, in ResolveRequest) ResolveResponse {
	req, err := in.toRequest()
	if err != nil {
		return ResolveResponse{ID: in.ID, Error: errorBody(err)}
	}
	loc, err := s.resolver.Resolve(ctx, req)
	return response(in.ID, loc, err)
}

// resolveAsync is resolve without blocking the caller. done runs exactly
// once on another goroutine.
func (s *Server) resolveAsync(ctx context.Context, in ResolveRequest, done func(ResolveResponse)) {
	req, err := in.toRequest()
	if err != nil {
		out := ResolveResponse{ID: in.ID, Error: errorBody(err)}
		go done(out)
		return
	}
	s.resolver.ResolveAsync(ctx, req, func(loc *resource.Location, err error) {
		done(response(in.ID, loc, err))
	})
}

func response(id string, loc *resource.Location, err error) ResolveResponse {
	out := ResolveResponse{ID: id}
	switch {
	case err != nil:
		out.Error = errorBody(err)
	case loc == nil:
		out.Continue = true
	default:
		out.Location = loc
	}
	return out
}

func errorBody(err error) *ErrorBody {
	var re *perrors.ResolveError
	if errors.As(err, &re) {
		return &ErrorBody{Code: re.Code, Message: re.Error()}
	}
	return &ErrorBody{Code: perrors.ErrCodeInternalError, Message: err.Error()}
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	var in ResolveRequest
	if err := decodeBody(w, r, &in); err != nil {
		writeJSON(w, http.StatusBadRequest, ResolveResponse{Error: invalidBody(err)})
		return
	}

	out := s.resolve(r.Context(), in)
	status := http.StatusOK
	if out.Error != nil {
		switch out.Error.Code {
		case perrors.ErrCodeValidationFailed:
			status = http.StatusBadRequest
		case perrors.ErrCodeProbeFailed:
			status = http.StatusBadGateway
		default:
			status = http.StatusInternalServerError
		}
	}
	writeJSON(w, status, out)
}

// HealthResponse is the /healthz body.
type HealthResponse struct {
	Status string `json:"status"`
	Portal string `json:"portal,omitempty"`
	Uptime string `json:"uptime"`
	// ArmedContexts counts contexts opened but not yet enumerated.
	ArmedContexts int `json:"armed_contexts,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	out := HealthResponse{
		Status: "ok",
		Portal: s.cfg.PortalURL,
		Uptime: time.Since(s.started).Round(time.Second).String(),
	}
	if s.cfg.Hook != nil {
		out.ArmedContexts = s.cfg.Hook.Pending()
	}
	writeJSON(w, http.StatusOK, out)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func invalidBody(err error) *ErrorBody {
	return &ErrorBody{
		Code:    perrors.ErrCodeValidationFailed,
		Message: "invalid request body: " + err.Error(),
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
