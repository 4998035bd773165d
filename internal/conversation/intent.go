package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfman30/syncai-intake/internal/observability/metrics"
	"github.com/wolfman30/syncai-intake/pkg/logging"
)

// Intent is what an unstructured message is asking for.
type Intent string

const (
	IntentBooking      Intent = "booking"
	IntentStatusQuery  Intent = "status_query"
	IntentConversation Intent = "conversation"
)

var (
	// ErrClassifierUnavailable means no intent could be determined because the oracle failed.
	ErrClassifierUnavailable = errors.New("conversation: intent classifier unavailable")

	// ErrAmbiguousIntent means the oracle answered but the answer could not be read.
	ErrAmbiguousIntent = errors.New("conversation: ambiguous intent answer")
)

// IntentClassifier decides the intent of a message with no booking fields.
type IntentClassifier interface {
	Classify(ctx context.Context, text string) (Intent, error)
}

// TopicClassifier reports whether a message describes a health problem or symptom.
type TopicClassifier interface {
	IsSymptom(ctx context.Context, text string) (bool, error)
}

// HybridClassifier asks the oracle first and consults booking keywords when
// the oracle is ambiguous or down. Keywords can only ever yield booking or
// conversation; an oracle answer that parsed is never overridden.
type HybridClassifier struct {
	oracle   IntentClassifier
	keywords *KeywordClassifier
	metrics  *metrics.ConversationMetrics
	logger   *logging.Logger
}

// NewHybridClassifier combines an oracle with a keyword backstop. A nil
// keywords uses the default booking vocabulary.
func NewHybridClassifier(oracle IntentClassifier, keywords *KeywordClassifier, m *metrics.ConversationMetrics, logger *logging.Logger) *HybridClassifier {
	if oracle == nil {
		panic("conversation: intent oracle cannot be nil")
	}
	if keywords == nil {
		keywords = NewKeywordClassifier()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &HybridClassifier{oracle: oracle, keywords: keywords, metrics: m, logger: logger}
}

func (h *HybridClassifier) Classify(ctx context.Context, text string) (Intent, error) {
	intent, err := h.oracle.Classify(ctx, text)
	switch {
	case err == nil:
		return intent, nil
	case errors.Is(err, ErrAmbiguousIntent):
		h.logger.Debug("intent oracle ambiguous, using keywords", "error", err)
		return h.keywords.Classify(ctx, text)
	}

	if h.keywords.Matches(text) {
		h.logger.Warn("intent oracle failed, booking keywords matched", "error", err)
		return IntentBooking, nil
	}
	h.metrics.ObserveClassifierFailure()
	return "", fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
}
