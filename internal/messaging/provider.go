package messaging

import (
	"context"
	"strings"

	"github.com/wolfman30/syncai-intake/internal/conversation"
	"github.com/wolfman30/syncai-intake/internal/observability/metrics"
	"github.com/wolfman30/syncai-intake/pkg/logging"
)

// ProviderSelectionConfig captures the credentials required to build the outbound messenger.
type ProviderSelectionConfig struct {
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
}

// BuildReplyMessenger returns a Twilio sender when credentials exist. Without
// them it falls back to a LogMessenger and reports why.
func BuildReplyMessenger(cfg ProviderSelectionConfig, m *metrics.MessagingMetrics, logger *logging.Logger) (conversation.ReplyMessenger, string) {
	if logger == nil {
		logger = logging.Default()
	}
	var missing []string
	if cfg.TwilioAccountSID == "" {
		missing = append(missing, "TWILIO_ACCOUNT_SID missing")
	}
	if cfg.TwilioAuthToken == "" {
		missing = append(missing, "TWILIO_AUTH_TOKEN missing")
	}
	if cfg.TwilioFromNumber == "" {
		missing = append(missing, "TWILIO_FROM_NUMBER missing")
	}
	if len(missing) > 0 {
		return NewLogMessenger(logger), strings.Join(missing, ", ")
	}
	return NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, logger, WithSenderMetrics(m)), ""
}

// LogMessenger writes replies to the log instead of sending them.
type LogMessenger struct {
	logger *logging.Logger
}

func NewLogMessenger(logger *logging.Logger) *LogMessenger {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogMessenger{logger: logger}
}

var _ conversation.ReplyMessenger = (*LogMessenger)(nil)

func (l *LogMessenger) SendReply(_ context.Context, reply conversation.OutboundReply) error {
	l.logger.Info("reply not sent, no messaging provider configured",
		"job_id", reply.JobID,
		"to", reply.To,
		"sequence", reply.Sequence,
		"body", reply.Body,
	)
	return nil
}
