package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/syncai-intake/pkg/logging"
)

// LLMProvider is one named backend of a FailoverLLMClient.
type LLMProvider struct {
	Name   string
	Client LLMClient
}

// FailoverLLMClient asks each provider in order until one answers. Every
// attempt gets its own timeout so a hung provider cannot use up the caller's
// whole deadline.
type FailoverLLMClient struct {
	providers []LLMProvider
	timeout   time.Duration
	logger    *logging.Logger
}

// NewFailoverLLMClient skips providers with a nil client. A zero timeout
// leaves attempts bounded only by the caller's context.
func NewFailoverLLMClient(logger *logging.Logger, timeout time.Duration, providers ...LLMProvider) *FailoverLLMClient {
	if logger == nil {
		logger = logging.Default()
	}
	kept := make([]LLMProvider, 0, len(providers))
	for _, p := range providers {
		if p.Client != nil {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		panic("conversation: failover client needs at least one provider")
	}
	return &FailoverLLMClient{providers: kept, timeout: timeout, logger: logger}
}

func (c *FailoverLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	var errs []error
	for i, p := range c.providers {
		if i > 0 && ctx.Err() != nil {
			break
		}
		resp, err := c.attempt(ctx, p, req)
		if err == nil {
			if i > 0 {
				c.logger.Info("llm failover succeeded", "task", req.Task, "provider", p.Name)
			}
			if resp.Truncated {
				c.logger.Warn("llm answer truncated", "task", req.Task, "provider", p.Name, "max_tokens", req.MaxTokens)
			}
			return resp, nil
		}
		c.logger.Warn("llm provider failed", "task", req.Task, "provider", p.Name, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", p.Name, err))
	}
	return LLMResponse{}, fmt.Errorf("conversation: no llm provider answered: %w", errors.Join(errs...))
}

func (c *FailoverLLMClient) attempt(ctx context.Context, p LLMProvider, req LLMRequest) (LLMResponse, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return p.Client.Complete(ctx, req)
}
