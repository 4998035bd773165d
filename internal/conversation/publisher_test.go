package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/wolfman30/syncai-intake/pkg/logging"
)

func TestPublisher_EnqueueMessage(t *testing.T) {
	queue := &stubQueue{}
	jobs := NewMemoryJobStore()
	publisher := NewPublisher(queue, jobs, logging.Discard())

	in := Inbound{Contact: "whatsapp:+91987", Text: "hi"}
	jobID, err := publisher.EnqueueMessage(context.Background(), "SM123", in)
	if err != nil {
		t.Fatalf("enqueue returned error: %v", err)
	}
	if jobID != "SM123" {
		t.Fatalf("expected caller job id, got %s", jobID)
	}
	if len(queue.sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(queue.sent))
	}
	if env := queue.envelopes[0]; env.JobID != "SM123" || env.Group != in.Contact {
		t.Fatalf("unexpected envelope: %#v", env)
	}

	var payload queuePayload
	if err := json.Unmarshal([]byte(queue.sent[0]), &payload); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if payload.Kind != jobTypeMessage || !payload.TrackStatus {
		t.Fatalf("unexpected payload: %#v", payload)
	}
	if payload.Message != in {
		t.Fatalf("expected message to round trip, got %#v", payload.Message)
	}

	job, err := jobs.GetJob(context.Background(), "SM123")
	if err != nil {
		t.Fatalf("expected pending job: %v", err)
	}
	if job.Status != JobStatusPending || job.Contact != in.Contact {
		t.Fatalf("unexpected job: %#v", job)
	}
}

func TestPublisher_DuplicateJobNotEnqueued(t *testing.T) {
	queue := &stubQueue{}
	publisher := NewPublisher(queue, NewMemoryJobStore(), logging.Discard())

	if _, err := publisher.EnqueueMessage(context.Background(), "SM1", Inbound{Contact: "a", Text: "hi"}); err != nil {
		t.Fatalf("first enqueue: %v", err)
	}
	_, err := publisher.EnqueueMessage(context.Background(), "SM1", Inbound{Contact: "a", Text: "hi"})
	if !errors.Is(err, ErrJobExists) {
		t.Fatalf("expected ErrJobExists, got %v", err)
	}
	if len(queue.sent) != 1 {
		t.Fatalf("expected the retry not to be enqueued, got %d messages", len(queue.sent))
	}
}

func TestPublisher_GeneratesIDWithoutTracking(t *testing.T) {
	queue := &stubQueue{}
	publisher := NewPublisher(queue, nil, logging.Discard())

	jobID, err := publisher.EnqueueMessage(context.Background(), "", Inbound{Contact: "a", Text: "hi"}, WithoutJobTracking())
	if err != nil {
		t.Fatalf("enqueue returned error: %v", err)
	}
	if jobID == "" {
		t.Fatal("expected a generated job id")
	}
	var payload queuePayload
	if err := json.Unmarshal([]byte(queue.sent[0]), &payload); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if payload.TrackStatus {
		t.Fatal("expected tracking to be disabled")
	}
	if payload.ID != jobID {
		t.Fatalf("expected payload id %s, got %s", jobID, payload.ID)
	}
}

func TestPublisher_SendFailure(t *testing.T) {
	queue := &stubQueue{sendErr: errors.New("sqs down")}
	publisher := NewPublisher(queue, nil, logging.Discard())
	if _, err := publisher.EnqueueMessage(context.Background(), "x", Inbound{Contact: "a", Text: "hi"}); err == nil {
		t.Fatal("expected send failure to surface")
	}
}

type stubQueue struct {
	sent      []string
	envelopes []envelope
	sendErr   error
}

func (s *stubQueue) Send(ctx context.Context, env envelope) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, env.Body)
	s.envelopes = append(s.envelopes, env)
	return nil
}

func (s *stubQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error) {
	return nil, context.Canceled
}

func (s *stubQueue) Delete(ctx context.Context, receiptHandle string) error {
	return nil
}
