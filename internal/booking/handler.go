package booking

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/syncai-intake/pkg/logging"
)

// Handler serves the booking management API.
type Handler struct {
	store  Store
	logger *logging.Logger
}

// NewHandler creates a management handler over store.
func NewHandler(store Store, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// Routes returns the management routes relative to their mount point.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/stats", h.Stats)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}", h.Update)
	r.Put("/{id}/status", h.UpdateStatus)
	r.Post("/{id}/reschedule", h.Reschedule)
	r.Delete("/{id}", h.Delete)
	return r
}

// ListResponse wraps a list of bookings.
type ListResponse struct {
	Bookings []*Record `json:"bookings"`
	Count    int       `json:"count"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type rescheduleRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

// Create handles POST / with the five booking fields.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var fields map[string]string
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	rec, err := h.store.Save(r.Context(), candidateFromFields(fields))
	if err != nil {
		h.writeError(w, "create booking", err)
		return
	}
	h.logger.Info("booking created", "booking_id", rec.ID, "contact", rec.Contact)
	writeJSON(w, http.StatusCreated, rec)
}

// List handles GET / with optional status and q filters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	var (
		records []*Record
		err     error
	)
	query := r.URL.Query()
	switch {
	case query.Get("status") != "":
		records, err = h.store.ListByStatus(r.Context(), Status(query.Get("status")))
	case query.Get("q") != "":
		records, err = h.store.Search(r.Context(), query.Get("q"))
	default:
		records, err = h.store.List(r.Context())
	}
	if err != nil {
		h.writeError(w, "list bookings", err)
		return
	}
	writeJSON(w, http.StatusOK, ListResponse{Bookings: records, Count: len(records)})
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		h.writeError(w, "booking stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	rec, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		h.writeError(w, "get booking", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Update handles PATCH /{id} with any subset of the editable fields.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var fields map[string]string
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	patch, err := NewPatch(fields)
	if err != nil {
		h.writeError(w, "update booking", err)
		return
	}
	rec, err := h.store.UpdateFields(r.Context(), id, patch)
	if err != nil {
		h.writeError(w, "update booking", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	rec, err := h.store.UpdateStatus(r.Context(), id, Status(req.Status))
	if err != nil {
		h.writeError(w, "update booking status", err)
		return
	}
	h.logger.Info("booking status changed", "booking_id", rec.ID, "status", rec.Status)
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) Reschedule(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	rec, err := h.store.Reschedule(r.Context(), id, req.Date, req.Time)
	if err != nil {
		h.writeError(w, "reschedule booking", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	if err := h.store.Delete(r.Context(), id); err != nil {
		h.writeError(w, "delete booking", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	var incomplete *IncompleteBookingError
	switch {
	case errors.Is(err, ErrNotFound):
		http.Error(w, "booking not found", http.StatusNotFound)
	case errors.As(err, &incomplete):
		missing := make([]string, 0, len(incomplete.Missing))
		for _, f := range incomplete.Missing {
			missing = append(missing, f.Label())
		}
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "incomplete booking",
			"missing": missing,
		})
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrNoOpUpdate), errors.Is(err, ErrBlankField):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		h.logger.Error("booking request failed", "op", op, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid booking id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// createKeys lists the accepted keys for each field, most preferred first.
var createKeys = []struct {
	field Field
	keys  []string
}{
	{FieldName, []string{"name"}},
	{FieldContact, []string{"mobile", "phone", "contact"}},
	{FieldSubject, []string{"subject", "problem"}},
	{FieldDate, []string{"date", "requested_date"}},
	{FieldTime, []string{"time", "requested_time"}},
}

// candidateFromFields maps loosely keyed JSON onto booking fields. When
// several keys name the same field, the first non-blank one in createKeys
// wins; keys differing only in case resolve in sorted order.
func candidateFromFields(fields map[string]string) Candidate {
	raw := make([]string, 0, len(fields))
	for key := range fields {
		raw = append(raw, key)
	}
	sort.Strings(raw)
	byKey := make(map[string]string, len(fields))
	for _, key := range raw {
		norm := strings.ToLower(strings.TrimSpace(key))
		if _, seen := byKey[norm]; !seen && strings.TrimSpace(fields[key]) != "" {
			byKey[norm] = fields[key]
		}
	}

	c := Candidate{}
	for _, ck := range createKeys {
		for _, key := range ck.keys {
			if v, ok := byKey[key]; ok {
				c[ck.field] = v
				break
			}
		}
	}
	return c
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
