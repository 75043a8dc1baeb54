// Package httptransport serves the read-only status surface: health, metrics
// and the outcome log for report builders.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"skrining/internal/domain"
	"skrining/internal/logstore"
	dErrors "skrining/pkg/domain-errors"
	"skrining/pkg/platform/httputil"
	"skrining/pkg/requestcontext"
)

// LogReader is the slice of the log store the handlers read.
type LogReader interface {
	GetLogByID(ctx context.Context, id string) (*domain.LogEntry, error)
	GetLogs(ctx context.Context, pred logstore.Predicate) ([]domain.LogEntry, error)
}

// Handler wires log endpoints to a LogReader.
type Handler struct {
	logs   LogReader
	logger *slog.Logger
}

func NewHandler(logs LogReader, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logs: logs, logger: logger}
}

// Register mounts log endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/logs", h.HandleListLogs)
	r.Get("/logs/{nik}", h.HandleGetLog)
}

// ListResponse wraps a log listing.
type ListResponse struct {
	Count   int               `json:"count"`
	Entries []domain.LogEntry `json:"entries"`
}

// HandleListLogs handles GET /logs?status=error,locked&since=RFC3339&limit=N&payload=true.
// Entries are oldest first; limit keeps the newest N. Payloads carry personal
// data and are stripped unless asked for.
func (h *Handler) HandleListLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q, limit, withPayload, err := parseListQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	entries, err := h.logs.GetLogs(ctx, q.Predicate())
	if err != nil {
		h.logger.ErrorContext(ctx, "list logs failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	if !withPayload {
		for i := range entries {
			entries[i].Payload = nil
		}
	}
	if entries == nil {
		entries = []domain.LogEntry{}
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{Count: len(entries), Entries: entries})
}

// HandleGetLog handles GET /logs/{nik}.
func (h *Handler) HandleGetLog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	nik := chi.URLParam(r, "nik")

	entry, err := h.logs.GetLogByID(ctx, nik)
	if err != nil {
		h.logger.DebugContext(ctx, "get log failed",
			"request_id", requestcontext.RequestID(ctx),
			"nik", nik,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entry)
}

func parseListQuery(r *http.Request) (q logstore.Query, limit int, withPayload bool, err error) {
	values := r.URL.Query()

	q.Statuses, err = logstore.ParseStatuses(values.Get("status"))
	if err != nil {
		return q, 0, false, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid status filter")
	}
	if s := values.Get("since"); s != "" {
		q.Since, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return q, 0, false, dErrors.New(dErrors.CodeInvalidInput, "since must be RFC3339")
		}
	}
	if s := values.Get("limit"); s != "" {
		limit, err = strconv.Atoi(s)
		if err != nil || limit < 0 {
			return q, 0, false, dErrors.New(dErrors.CodeInvalidInput, "limit must be a non-negative integer")
		}
	}
	if s := values.Get("payload"); s != "" {
		withPayload, err = strconv.ParseBool(s)
		if err != nil {
			return q, 0, false, dErrors.New(dErrors.CodeInvalidInput, "payload must be a boolean")
		}
	}
	return q, limit, withPayload, nil
}
