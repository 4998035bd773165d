package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/syncai-intake/pkg/logging"
)

type stubEnqueuer struct {
	jobID string
	err   error
	in    Inbound
}

func (s *stubEnqueuer) EnqueueMessage(ctx context.Context, jobID string, in Inbound, opts ...PublishOption) (string, error) {
	s.in = in
	return s.jobID, s.err
}

func TestHandlerMessage(t *testing.T) {
	router := &stubRouter{outcome: Outcome{Action: ActionBookingTemplate, Intent: IntentBooking, Replies: []string{"template"}}}
	h := NewHandler(router, nil, nil, logging.Discard())

	req := httptest.NewRequest(http.MethodPost, "/conversations/message", strings.NewReader(`{"contact":" whatsapp:+91987 ","text":"book"}`))
	rec := httptest.NewRecorder()
	h.Message(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var out Outcome
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Action != ActionBookingTemplate || len(out.Replies) != 1 {
		t.Fatalf("unexpected outcome: %#v", out)
	}
	if router.seen[0].Contact != "whatsapp:+91987" {
		t.Fatalf("expected trimmed contact, got %q", router.seen[0].Contact)
	}
}

func TestHandlerMessageValidation(t *testing.T) {
	h := NewHandler(&stubRouter{}, nil, nil, logging.Discard())
	for _, body := range []string{"not json", `{"contact":"a"}`, `{"text":"hi"}`} {
		rec := httptest.NewRecorder()
		h.Message(rec, httptest.NewRequest(http.MethodPost, "/conversations/message", strings.NewReader(body)))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%q: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestHandlerEnqueue(t *testing.T) {
	body := `{"contact":"a","text":"hi"}`

	rec := httptest.NewRecorder()
	NewHandler(&stubRouter{}, nil, nil, logging.Discard()).Enqueue(rec, httptest.NewRequest(http.MethodPost, "/conversations/jobs", strings.NewReader(body)))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a queue, got %d", rec.Code)
	}

	enq := &stubEnqueuer{jobID: "job-1"}
	rec = httptest.NewRecorder()
	NewHandler(&stubRouter{}, enq, nil, logging.Discard()).Enqueue(rec, httptest.NewRequest(http.MethodPost, "/conversations/jobs", strings.NewReader(body)))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["jobId"] != "job-1" || enq.in.Text != "hi" {
		t.Fatalf("unexpected response %v", resp)
	}

	rec = httptest.NewRecorder()
	NewHandler(&stubRouter{}, &stubEnqueuer{err: errors.New("down")}, nil, logging.Discard()).Enqueue(rec, httptest.NewRequest(http.MethodPost, "/conversations/jobs", strings.NewReader(body)))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}

func TestHandlerJobStatus(t *testing.T) {
	jobs := pendingJobs(t, "job-1")
	h := NewHandler(&stubRouter{}, nil, jobs, logging.Discard())
	r := chi.NewRouter()
	r.Get("/conversations/jobs/{jobID}", h.JobStatus)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/conversations/jobs/job-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var job JobRecord
	if err := json.NewDecoder(rec.Body).Decode(&job); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if job.JobID != "job-1" || job.Status != JobStatusPending {
		t.Fatalf("unexpected job: %#v", job)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/conversations/jobs/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
