package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/Iron-Ham/quickcheck/internal/draft"
	"github.com/Iron-Ham/quickcheck/internal/errors"
	"github.com/Iron-Ham/quickcheck/internal/store"
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) createDraft(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !s.decode(w, r, &req) {
		return
	}
	id, err := s.store.Create(r.Context(), req.UserID, req.Title, req.Payload)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, CreateResponse{ID: id})
}

func (s *Server) listDrafts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.Filter{
		UserID: q.Get("user_id"),
		State:  draft.RecordState(q.Get("state")),
	}
	if f.State != "" && !f.State.Valid() {
		s.writeError(w, errors.NewValidationError("unknown state").WithField("state").WithValue(string(f.State)))
		return
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, errors.NewValidationError("must be a non-negative integer").WithField("limit").WithValue(raw))
			return
		}
		f.Limit = n
	}

	recs, err := s.store.List(r.Context(), f)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp := ListResponse{Drafts: make([]DraftJSON, 0, len(recs))}
	for _, rec := range recs {
		resp.Drafts = append(resp.Drafts, NewDraftJSON(rec))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) getDraft(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Get(r.Context(), draftID(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NewDraftJSON(*rec))
}

func (s *Server) updateDraft(w http.ResponseWriter, r *http.Request) {
	var req WriteRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.writeResult(w, s.store.Update(r.Context(), draftID(r), req.Title, req.Payload))
}

func (s *Server) deleteDraft(w http.ResponseWriter, r *http.Request) {
	s.writeResult(w, s.store.Delete(r.Context(), draftID(r)))
}

func (s *Server) archiveDraft(w http.ResponseWriter, r *http.Request) {
	var req WriteRequest
	if r.ContentLength != 0 && !s.decode(w, r, &req) {
		return
	}
	s.writeResult(w, s.store.Archive(r.Context(), draftID(r), req.Payload))
}

func (s *Server) submitDraft(w http.ResponseWriter, r *http.Request) {
	var req WriteRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.writeResult(w, s.store.Submit(r.Context(), draftID(r), req.Title, req.Payload))
}

// draftID returns the unescaped {id} route variable.
func draftID(r *http.Request) string {
	raw := mux.Vars(r)["id"]
	if id, err := url.PathUnescape(raw); err == nil {
		return id
	}
	return raw
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid JSON: " + err.Error(), Code: CodeInvalid})
		return false
	}
	return true
}

func (s *Server) writeResult(w http.ResponseWriter, err error) {
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var active *draft.ActiveDraftError
	switch {
	case errors.As(err, &active):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Code: CodeActiveDraft, DraftID: active.DraftID})
	case errors.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: CodeNotFound})
	case errors.Is(err, errors.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: CodeInvalid})
	default:
		s.logger.Error("draft request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error", Code: CodeInternal})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
