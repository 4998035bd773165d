package conversation

import (
	"context"
	"strings"
)

var defaultBookingKeywords = []string{
	"book",
	"appointment",
	"consult",
	"doctor",
	"visit",
	"schedule",
	"call back",
	"callback",
	"slot",
}

// KeywordClassifier is a deterministic booking detector. It never reports a
// status query.
type KeywordClassifier struct {
	keywords []string
}

// NewKeywordClassifier uses keywords, or the default vocabulary when none are given.
func NewKeywordClassifier(keywords ...string) *KeywordClassifier {
	if len(keywords) == 0 {
		keywords = defaultBookingKeywords
	}
	normalized := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			normalized = append(normalized, k)
		}
	}
	return &KeywordClassifier{keywords: normalized}
}

// Matches reports whether text mentions any booking keyword.
func (k *KeywordClassifier) Matches(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range k.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func (k *KeywordClassifier) Classify(_ context.Context, text string) (Intent, error) {
	if k.Matches(text) {
		return IntentBooking, nil
	}
	return IntentConversation, nil
}
