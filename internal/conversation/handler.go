package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/syncai-intake/pkg/logging"
)

// Enqueuer hands inbound messages to the worker.
type Enqueuer interface {
	EnqueueMessage(ctx context.Context, jobID string, in Inbound, opts ...PublishOption) (string, error)
}

// JobReader looks up queued jobs.
type JobReader interface {
	GetJob(ctx context.Context, jobID string) (*JobRecord, error)
}

// Handler exposes the router over HTTP, synchronously and through the queue.
type Handler struct {
	router    MessageRouter
	publisher Enqueuer
	jobs      JobReader
	logger    *logging.Logger
}

// NewHandler creates a conversation handler. publisher and jobs may be nil,
// which disables the queued endpoints.
func NewHandler(router MessageRouter, publisher Enqueuer, jobs JobReader, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{router: router, publisher: publisher, jobs: jobs, logger: logger}
}

// Message handles POST /conversations/message.
func (h *Handler) Message(w http.ResponseWriter, r *http.Request) {
	in, ok := h.decodeInbound(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, h.router.Handle(r.Context(), in))
}

// Enqueue handles POST /conversations/jobs.
func (h *Handler) Enqueue(w http.ResponseWriter, r *http.Request) {
	if h.publisher == nil {
		http.Error(w, "queue not configured", http.StatusServiceUnavailable)
		return
	}
	in, ok := h.decodeInbound(w, r)
	if !ok {
		return
	}
	jobID, err := h.publisher.EnqueueMessage(r.Context(), "", in)
	if err != nil {
		h.logger.Error("failed to enqueue message", "error", err)
		http.Error(w, "Failed to enqueue message", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusAccepted, map[string]string{"jobId": jobID})
}

// JobStatus handles GET /conversations/jobs/{jobID}.
func (h *Handler) JobStatus(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		http.Error(w, "job tracking not configured", http.StatusServiceUnavailable)
		return
	}
	job, err := h.jobs.GetJob(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		if errors.Is(err, ErrJobNotFound) {
			http.Error(w, "job not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load job", "error", err)
		http.Error(w, "Failed to load job", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, job)
}

func (h *Handler) decodeInbound(w http.ResponseWriter, r *http.Request) (Inbound, bool) {
	var in Inbound
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.logger.Error("failed to decode message request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return Inbound{}, false
	}
	in.Contact = strings.TrimSpace(in.Contact)
	if in.Contact == "" || strings.TrimSpace(in.Text) == "" {
		http.Error(w, "contact and text are required", http.StatusBadRequest)
		return Inbound{}, false
	}
	return in, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
