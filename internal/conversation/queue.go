package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

type queueClient interface {
	Send(ctx context.Context, env envelope) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// envelope is one encoded job on its way to a queue. Group keeps a contact's
// messages in order on FIFO queues; JobID doubles as the deduplication id.
type envelope struct {
	JobID string
	Group string
	Body  string
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
}

type jobType string

const jobTypeMessage jobType = "message"

var errMalformedJob = errors.New("conversation: malformed job payload")

type queuePayload struct {
	ID          string  `json:"id"`
	Kind        jobType `json:"kind"`
	Message     Inbound `json:"message"`
	TrackStatus bool    `json:"track_status"`
}

type PublishOption func(*queuePayload)

// WithoutJobTracking disables job status persistence for fire-and-forget work.
func WithoutJobTracking() PublishOption {
	return func(p *queuePayload) {
		p.TrackStatus = false
	}
}

func encodePayload(payload queuePayload) (queuePayload, envelope, error) {
	if payload.ID == "" {
		payload.ID = uuid.NewString()
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return queuePayload{}, envelope{}, fmt.Errorf("conversation: failed to encode payload: %w", err)
	}
	return payload, envelope{JobID: payload.ID, Group: payload.Message.Contact, Body: string(body)}, nil
}

func decodePayload(body string) (queuePayload, error) {
	var payload queuePayload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return queuePayload{}, fmt.Errorf("%w: %v", errMalformedJob, err)
	}
	if payload.ID == "" {
		return queuePayload{}, fmt.Errorf("%w: missing id", errMalformedJob)
	}
	if payload.Kind != jobTypeMessage {
		return queuePayload{}, fmt.Errorf("%w: unknown kind %q", errMalformedJob, payload.Kind)
	}
	return payload, nil
}
