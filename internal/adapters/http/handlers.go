package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"gymdesk/internal/adapters/storage"
	"gymdesk/internal/application/orchestrators"
	"gymdesk/internal/application/projections"
	"gymdesk/internal/domain/billing"
	"gymdesk/internal/domain/member"
	"gymdesk/internal/domain/outbox"
	"gymdesk/internal/domain/subscription"
)

// timeNow is a variable for testability.
var timeNow = time.Now

// generateID creates a new UUID string.
func generateID() string {
	return uuid.New().String()
}

// internalError logs the real error and returns a generic message to the client.
// This prevents leaking internal details per OWASP A05.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// strictDecode decodes JSON from the request body, rejecting unknown fields.
// An empty body leaves v unchanged.
func strictDecode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("response_encode_failed", "error", err)
	}
}

// badRequest maps a validation failure to 400 with its message.
func badRequest(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), http.StatusBadRequest)
}

// writeError maps domain and store errors to a status code.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orchestrators.ErrInvalidInput),
		errors.Is(err, billing.ErrInvalidCadence),
		errors.Is(err, billing.ErrInvalidAnchor),
		errors.Is(err, billing.ErrZeroDate),
		errors.Is(err, billing.ErrInvalidCount),
		errors.Is(err, projections.ErrUpcomingOutOfRange):
		badRequest(w, err)
	case errors.Is(err, storage.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, orchestrators.ErrConcurrentRenewal),
		errors.Is(err, orchestrators.ErrMemberArchived),
		errors.Is(err, orchestrators.ErrActiveSubscription),
		errors.Is(err, subscription.ErrRequiresReactivation),
		errors.Is(err, subscription.ErrStillActive),
		errors.Is(err, subscription.ErrAlreadyCancelled),
		errors.Is(err, member.ErrDuplicateEmail),
		errors.Is(err, member.ErrAlreadyArchived),
		errors.Is(err, member.ErrNotArchived),
		errors.Is(err, outbox.ErrTerminal):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		internalError(w, err)
	}
}

// parseDate reads an optional YYYY-MM-DD value; empty yields the zero time.
func parseDate(name, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be YYYY-MM-DD", name)
	}
	return t, nil
}

// parseInt reads an optional integer query value, returning def when absent.
func parseInt(name, value string, def int) (int, error) {
	if value == "" {
		return def, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	if opts.DB != nil {
		if err := opts.DB.PingContext(r.Context()); err != nil {
			slog.Error("healthz_db_unreachable", "error", err)
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
