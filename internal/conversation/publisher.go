package conversation

import (
	"context"
	"fmt"

	"github.com/wolfman30/syncai-intake/pkg/logging"
)

// Publisher enqueues inbound messages for the worker.
type Publisher struct {
	queue  queueClient
	jobs   JobRecorder
	logger *logging.Logger
}

// NewPublisher creates a queue-backed publisher. When jobs is non-nil a
// pending job record is written before each tracked message is enqueued.
func NewPublisher(queue queueClient, jobs JobRecorder, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, jobs: jobs, logger: logger}
}

// EnqueueMessage publishes an inbound message job. An empty jobID gets a
// generated one; the ID actually used is returned.
func (p *Publisher) EnqueueMessage(ctx context.Context, jobID string, in Inbound, opts ...PublishOption) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	payload := queuePayload{
		ID:          jobID,
		Kind:        jobTypeMessage,
		Message:     in,
		TrackStatus: p.jobs != nil,
	}
	for _, opt := range opts {
		opt(&payload)
	}
	payload, env, err := encodePayload(payload)
	if err != nil {
		return "", err
	}

	if payload.TrackStatus {
		job := &JobRecord{JobID: payload.ID, RequestType: payload.Kind, Contact: in.Contact}
		if err := p.jobs.PutPending(ctx, job); err != nil {
			return payload.ID, fmt.Errorf("conversation: failed to record job: %w", err)
		}
	}

	if err := p.queue.Send(ctx, env); err != nil {
		return payload.ID, fmt.Errorf("conversation: failed to enqueue job: %w", err)
	}

	p.logger.Debug("conversation job enqueued", "job_id", payload.ID, "contact", in.Contact)
	return payload.ID, nil
}
