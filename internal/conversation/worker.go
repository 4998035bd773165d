package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/wolfman30/syncai-intake/internal/observability/metrics"
	"github.com/wolfman30/syncai-intake/pkg/logging"
)

const (
	defaultWorkerCount   = 2
	defaultWaitSeconds   = 2
	defaultBatchSize     = 5
	maxWaitSeconds       = 20
	maxReceiveBatchSize  = 10
	deleteTimeoutSeconds = 5
	dedupProvider        = "whatsapp"
)

// MessageRouter turns an inbound message into replies.
type MessageRouter interface {
	Handle(ctx context.Context, in Inbound) Outcome
}

// ProcessedStore remembers which jobs were already handled.
type ProcessedStore interface {
	MarkProcessed(ctx context.Context, provider, eventID string) (bool, error)
}

// Worker consumes message jobs from the queue, routes them and sends the replies.
type Worker struct {
	router    MessageRouter
	queue     queueClient
	jobs      JobUpdater
	messenger ReplyMessenger
	processed ProcessedStore
	metrics   *metrics.ConversationMetrics
	logger    *logging.Logger

	cfg workerConfig
	wg  sync.WaitGroup
}

type workerConfig struct {
	workers          int
	receiveWaitSecs  int
	receiveBatchSize int
	processed        ProcessedStore
	metrics          *metrics.ConversationMetrics
}

// WorkerOption customizes worker behavior.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of concurrent consumer goroutines.
func WithWorkerCount(count int) WorkerOption {
	return func(cfg *workerConfig) {
		if count > 0 {
			cfg.workers = count
		}
	}
}

// WithReceiveWaitSeconds sets the long-poll wait duration.
func WithReceiveWaitSeconds(seconds int) WorkerOption {
	return func(cfg *workerConfig) {
		if seconds < 0 {
			return
		}
		if seconds > maxWaitSeconds {
			seconds = maxWaitSeconds
		}
		cfg.receiveWaitSecs = seconds
	}
}

// WithReceiveBatchSize sets how many messages to fetch per poll.
func WithReceiveBatchSize(size int) WorkerOption {
	return func(cfg *workerConfig) {
		if size <= 0 {
			return
		}
		if size > maxReceiveBatchSize {
			size = maxReceiveBatchSize
		}
		cfg.receiveBatchSize = size
	}
}

// WithProcessedStore skips queue redeliveries of jobs that were already handled.
func WithProcessedStore(store ProcessedStore) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.processed = store
	}
}

func WithWorkerMetrics(m *metrics.ConversationMetrics) WorkerOption {
	return func(cfg *workerConfig) {
		cfg.metrics = m
	}
}

// NewWorker constructs a queue consumer. jobs and messenger may be nil.
func NewWorker(router MessageRouter, queue queueClient, jobs JobUpdater, messenger ReplyMessenger, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if router == nil {
		panic("conversation: router cannot be nil")
	}
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}

	cfg := workerConfig{
		workers:          defaultWorkerCount,
		receiveWaitSecs:  defaultWaitSeconds,
		receiveBatchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Worker{
		router:    router,
		queue:     queue,
		jobs:      jobs,
		messenger: messenger,
		processed: cfg.processed,
		metrics:   cfg.metrics,
		logger:    logger,
		cfg:       cfg,
	}
}

// Start launches worker goroutines until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("conversation worker started", "worker_id", workerID)

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("conversation worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			w.logger.Error("failed to receive conversation jobs", "error", err, "worker_id", workerID)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg queueMessage) {
	defer w.deleteMessage(context.Background(), msg.ReceiptHandle)

	payload, err := decodePayload(msg.Body)
	if err != nil {
		w.logger.Error("failed to decode conversation job", "error", err, "msg_id", msg.ID)
		return
	}
	w.logger.Info("worker processing job", "job_id", payload.ID, "contact", payload.Message.Contact, "msg_id", msg.ID)

	if w.alreadyHandled(ctx, payload.ID) {
		w.logger.Info("skipping duplicate conversation job", "job_id", payload.ID)
		w.metrics.ObserveDuplicate()
		return
	}

	outcome := w.router.Handle(ctx, payload.Message)
	failures := w.sendReplies(ctx, payload, outcome)

	if !payload.TrackStatus || w.jobs == nil {
		return
	}
	if len(outcome.Replies) > 0 && len(failures) == len(outcome.Replies) {
		err = w.jobs.MarkFailed(ctx, payload.ID, "reply delivery failed: "+strings.Join(failures, "; "))
	} else {
		err = w.jobs.MarkCompleted(ctx, payload.ID, &outcome)
	}
	if err != nil {
		w.logger.Error("failed to update job status", "error", err, "job_id", payload.ID)
	}
}

// alreadyHandled claims the job ID. Store errors let the job through.
func (w *Worker) alreadyHandled(ctx context.Context, jobID string) bool {
	if w.processed == nil || jobID == "" {
		return false
	}
	first, err := w.processed.MarkProcessed(ctx, dedupProvider, jobID)
	if err != nil {
		w.logger.Warn("dedup check failed", "error", err, "job_id", jobID)
		return false
	}
	return !first
}

// sendReplies attempts every reply in order. A failed send is logged and
// not retried; the remaining replies are still attempted.
func (w *Worker) sendReplies(ctx context.Context, payload queuePayload, outcome Outcome) []string {
	if w.messenger == nil {
		return nil
	}
	var failures []string
	for i, body := range outcome.Replies {
		err := w.messenger.SendReply(ctx, OutboundReply{
			JobID:    payload.ID,
			To:       payload.Message.Contact,
			Body:     body,
			Sequence: i + 1,
		})
		if err != nil {
			w.logger.Error("failed to send reply", "error", err, "job_id", payload.ID, "sequence", i+1, "of", len(outcome.Replies))
			failures = append(failures, err.Error())
		}
	}
	return failures
}

func (w *Worker) deleteMessage(ctx context.Context, receiptHandle string) {
	if receiptHandle == "" {
		return
	}
	deleteCtx, cancel := context.WithTimeout(ctx, deleteTimeoutSeconds*time.Second)
	defer cancel()
	if err := w.queue.Delete(deleteCtx, receiptHandle); err != nil {
		w.logger.Error("failed to delete conversation job", "error", err)
	}
}
