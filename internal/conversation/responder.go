package conversation

import (
	"context"
	"errors"
	"strings"
)

const personaPrompt = `You are Sync AI, a professional medical and business assistant for Sync AI Medical & Pharma.
Your tone is always calm, polite, friendly, trustworthy and human.
Speak in simple everyday language like a helpful person on WhatsApp.
Never use markdown, headings, bullet points or technical formatting.
Avoid long paragraphs.

Facts you may share:
Sync AI Medical & Pharma provides quality medicines and AI-based healthcare services.
Office timing is 10 AM to 7 PM.
Our office is located in Mohali, Punjab.
We provide 24x7 customer support.

If the user wants to book a consultation, tell them to reply with their Name, Mobile, Problem, Preferred Date and Preferred Time.`

const symptomInstructions = `Give helpful guidance in simple language.
Ask 1-2 follow-up questions.
Then gently suggest booking a consultation.`

// Responder writes a free-text reply for conversational messages.
type Responder interface {
	Reply(ctx context.Context, text string, symptom bool) (string, error)
}

// LLMResponder answers in the Sync AI persona.
type LLMResponder struct {
	client LLMClient
}

func NewLLMResponder(client LLMClient) *LLMResponder {
	if client == nil {
		panic("conversation: llm client cannot be nil")
	}
	return &LLMResponder{client: client}
}

func (r *LLMResponder) Reply(ctx context.Context, text string, symptom bool) (string, error) {
	prompt := "User message:\n" + strings.TrimSpace(text)
	if symptom {
		prompt = "User problem: " + strings.TrimSpace(text) + "\n\n" + symptomInstructions
	}
	resp, err := r.client.Complete(ctx, LLMRequest{
		Task:        TaskReply,
		System:      personaPrompt,
		Prompt:      prompt,
		MaxTokens:   512,
		Temperature: 0.4,
	})
	if err != nil {
		return "", err
	}
	reply := strings.TrimSpace(resp.Text)
	if reply == "" {
		return "", errors.New("conversation: responder returned empty reply")
	}
	return reply, nil
}
