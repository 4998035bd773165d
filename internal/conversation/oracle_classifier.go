package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

const intentPrompt = `Classify the user's WhatsApp message for a medical and pharma assistant.

User message: "%s"

Reply with only ONE word:
BOOKING - the user wants an appointment, a consultation, to talk to a doctor, or a call back
STATUS - the user asks whether their booking is done, confirmed, saved, or what its status is
OTHER - anything else`

const topicPrompt = `User message: "%s"

Reply with only ONE word:
SYSTEM - the user is talking about health problems or symptoms
OTHER - otherwise`

// OracleClassifier asks an LLM for the intent and topic of a message.
type OracleClassifier struct {
	client LLMClient
}

func NewOracleClassifier(client LLMClient) *OracleClassifier {
	if client == nil {
		panic("conversation: llm client cannot be nil")
	}
	return &OracleClassifier{client: client}
}

// Classify returns ErrAmbiguousIntent when the answer is not one of the expected words.
func (o *OracleClassifier) Classify(ctx context.Context, text string) (Intent, error) {
	prompt := strings.Replace(intentPrompt, "%s", sanitizeQuoted(text), 1)
	resp, err := o.client.Complete(ctx, oneWordRequest(TaskIntent, prompt))
	if err != nil {
		return "", err
	}

	switch answerWord(resp.Text) {
	case "BOOKING":
		return IntentBooking, nil
	case "STATUS":
		return IntentStatusQuery, nil
	case "OTHER":
		return IntentConversation, nil
	}
	return "", fmt.Errorf("%w: %q", ErrAmbiguousIntent, resp.Text)
}

// IsSymptom treats anything other than a clear SYSTEM answer as false.
func (o *OracleClassifier) IsSymptom(ctx context.Context, text string) (bool, error) {
	prompt := strings.Replace(topicPrompt, "%s", sanitizeQuoted(text), 1)
	resp, err := o.client.Complete(ctx, oneWordRequest(TaskTopic, prompt))
	if err != nil {
		return false, err
	}
	return answerWord(resp.Text) == "SYSTEM", nil
}

// answerWord pulls the first word out of a one-word answer. JSON answers of
// the form {"intent": "..."} are accepted as well.
func answerWord(raw string) string {
	content := strings.TrimSpace(raw)
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		var parsed struct {
			Intent string `json:"intent"`
		}
		if err := json.Unmarshal([]byte(content[start:end+1]), &parsed); err == nil {
			content = parsed.Intent
		}
	}
	fields := strings.FieldsFunc(strings.ToUpper(content), func(r rune) bool {
		return r < 'A' || r > 'Z'
	})
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func sanitizeQuoted(text string) string {
	return strings.ReplaceAll(strings.TrimSpace(text), `"`, `'`)
}
