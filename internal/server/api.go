package server

import (
	"time"

	"github.com/Iron-Ham/quickcheck/internal/draft"
)

// APIPrefix is the path prefix of every versioned route.
const APIPrefix = "/api/v1"

// Error codes carried in ErrorResponse.Code.
const (
	CodeNotFound    = "not_found"
	CodeActiveDraft = "active_draft"
	CodeInvalid     = "invalid"
	CodeInternal    = "internal"
)

// DraftJSON is the wire form of a draft record. Payload is base64 in JSON.
type DraftJSON struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Title     string            `json:"title"`
	Payload   []byte            `json:"payload"`
	State     draft.RecordState `json:"state"`
	Version   int               `json:"version"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// NewDraftJSON converts a record for the wire.
func NewDraftJSON(rec draft.Record) DraftJSON {
	return DraftJSON{
		ID:        rec.ID,
		UserID:    rec.UserID,
		Title:     rec.Title,
		Payload:   rec.Payload,
		State:     rec.State,
		Version:   rec.Version,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

// Record converts d back to a draft record.
func (d DraftJSON) Record() draft.Record {
	return draft.Record{
		ID:        d.ID,
		UserID:    d.UserID,
		Title:     d.Title,
		Payload:   d.Payload,
		State:     d.State,
		Version:   d.Version,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// CreateRequest is the body of POST /drafts.
type CreateRequest struct {
	UserID  string `json:"user_id"`
	Title   string `json:"title"`
	Payload []byte `json:"payload"`
}

// CreateResponse is returned by POST /drafts.
type CreateResponse struct {
	ID string `json:"id"`
}

// WriteRequest is the body of PUT /drafts/{id}, POST /drafts/{id}/submit and
// POST /drafts/{id}/archive. A null payload on archive keeps the stored one.
type WriteRequest struct {
	Title   string `json:"title,omitempty"`
	Payload []byte `json:"payload"`
}

// ListResponse is returned by GET /drafts.
type ListResponse struct {
	Drafts []DraftJSON `json:"drafts"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	// DraftID names the existing draft on an active_draft conflict.
	DraftID string `json:"draft_id,omitempty"`
}
