package conversation

import "context"

// LLMTask names what a completion is for. It shows up in logs.
type LLMTask string

const (
	TaskIntent LLMTask = "intent"
	TaskTopic  LLMTask = "topic"
	TaskReply  LLMTask = "reply"
)

// LLMRequest is a single-turn completion. A negative Temperature keeps the
// provider default.
type LLMRequest struct {
	Task        LLMTask
	System      string
	Prompt      string
	MaxTokens   int32
	Temperature float32
}

type LLMResponse struct {
	Text         string
	Provider     string
	InputTokens  int32
	OutputTokens int32
	// Truncated is set when the provider stopped at MaxTokens.
	Truncated bool
}

// LLMClient is the oracle behind intent detection and free-text replies.
type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}

// oneWordRequest asks for a short deterministic answer.
func oneWordRequest(task LLMTask, prompt string) LLMRequest {
	return LLMRequest{Task: task, Prompt: prompt, MaxTokens: 10}
}
