package bootstrap

import (
	appconfig "github.com/wolfman30/syncai-intake/internal/config"
	"github.com/wolfman30/syncai-intake/internal/conversation"
	"github.com/wolfman30/syncai-intake/internal/messaging"
	"github.com/wolfman30/syncai-intake/internal/observability/metrics"
	"github.com/wolfman30/syncai-intake/pkg/logging"
)

// BuildOutboundMessenger creates the reply messenger from Twilio settings.
// The string result explains why replies are only logged, if they are.
func BuildOutboundMessenger(cfg *appconfig.Config, m *metrics.MessagingMetrics, logger *logging.Logger) (conversation.ReplyMessenger, string) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil {
		return messaging.NewLogMessenger(logger), "missing config"
	}
	messenger, reason := messaging.BuildReplyMessenger(messaging.ProviderSelectionConfig{
		TwilioAccountSID: cfg.TwilioAccountSID,
		TwilioAuthToken:  cfg.TwilioAuthToken,
		TwilioFromNumber: cfg.TwilioFromNumber,
	}, m, logger)
	if reason != "" {
		logger.Warn("outbound WhatsApp disabled; replies will be logged", "reason", reason)
	}
	return messenger, reason
}
