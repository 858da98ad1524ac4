package web

import (
	"errors"
	"net/http"
	"time"

	"gymdesk/internal/domain/outbox"
)

type outboxEntryResponse struct {
	ID              string     `json:"id"`
	ActionType      string     `json:"action_type"`
	Status          string     `json:"status"`
	Attempts        int        `json:"attempts"`
	MaxAttempts     int        `json:"max_attempts"`
	LastAttemptedAt *time.Time `json:"last_attempted_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	ExternalID      string     `json:"external_id,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
}

func toOutboxEntryResponse(e outbox.Entry) outboxEntryResponse {
	resp := outboxEntryResponse{
		ID:           e.ID,
		ActionType:   e.ActionType,
		Status:       e.Status,
		Attempts:     e.Attempts,
		MaxAttempts:  e.MaxAttempts,
		CreatedAt:    e.CreatedAt,
		ExternalID:   e.ExternalID,
		ErrorMessage: e.ErrorMessage,
	}
	if !e.LastAttemptedAt.IsZero() {
		at := e.LastAttemptedAt
		resp.LastAttemptedAt = &at
	}
	return resp
}

// handleListOutbox lists outbox entries.
// GET /admin/outbox?status=failed&limit=50 (status defaults to failed; "all" lists everything)
func handleListOutbox(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := parseInt("limit", q.Get("limit"), 50)
	if err != nil {
		badRequest(w, err)
		return
	}
	if limit < 1 || limit > 100 {
		badRequest(w, errors.New("limit must be between 1 and 100"))
		return
	}

	status := q.Get("status")
	switch status {
	case "":
		status = outbox.StatusFailed
	case "all":
		status = ""
	}

	entries, err := stores.OutboxStore.ListByStatus(r.Context(), status, limit)
	if err != nil {
		internalError(w, err)
		return
	}
	resp := make([]outboxEntryResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, toOutboxEntryResponse(e))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleOutboxAction retries or abandons one entry.
// POST /admin/outbox/{id}/retry, POST /admin/outbox/{id}/abandon
func handleOutboxAction(w http.ResponseWriter, r *http.Request) {
	if opts.Outbox == nil {
		http.Error(w, "outbox processing is disabled", http.StatusServiceUnavailable)
		return
	}
	entryID := r.PathValue("id")

	switch r.PathValue("action") {
	case "retry":
		entry, err := opts.Outbox.ProcessSingle(r.Context(), entryID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toOutboxEntryResponse(entry))

	case "abandon":
		if err := opts.Outbox.AbandonEntry(r.Context(), entryID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": outbox.StatusAbandoned})

	default:
		http.Error(w, "unknown action", http.StatusNotFound)
	}
}
