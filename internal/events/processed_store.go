package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// DefaultProcessedTTL is how long a handled event id is remembered.
const DefaultProcessedTTL = 48 * time.Hour

// ProcessedStore records provider events that were already handled.
type ProcessedStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

func NewProcessedStore(client *redis.Client, ttl time.Duration) *ProcessedStore {
	if client == nil {
		panic("events: redis client required")
	}
	if ttl <= 0 {
		ttl = DefaultProcessedTTL
	}
	return &ProcessedStore{
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("syncai.internal.events.processed"),
	}
}

// AlreadyProcessed checks if we've seen this provider event id.
func (s *ProcessedStore) AlreadyProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	key, err := processedKey(provider, eventID)
	if err != nil {
		return false, err
	}
	n, err := s.redis.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("events: check processed: %w", err)
	}
	return n > 0, nil
}

// MarkProcessed claims the event id for the provider, returning false if it
// was already claimed.
func (s *ProcessedStore) MarkProcessed(ctx context.Context, provider, eventID string) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "events.mark_processed")
	defer span.End()

	key, err := processedKey(provider, eventID)
	if err != nil {
		return false, err
	}
	first, err := s.redis.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), s.ttl).Result()
	if err != nil {
		span.RecordError(err)
		return false, fmt.Errorf("events: mark processed: %w", err)
	}
	return first, nil
}

func processedKey(provider, eventID string) (string, error) {
	provider = strings.TrimSpace(provider)
	eventID = strings.TrimSpace(eventID)
	if provider == "" || eventID == "" {
		return "", errors.New("events: provider and event id required")
	}
	return fmt.Sprintf("processed:%s:%s", provider, eventID), nil
}
