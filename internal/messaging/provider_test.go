package messaging

import (
	"context"
	"strings"
	"testing"

	"github.com/wolfman30/syncai-intake/internal/conversation"
	"github.com/wolfman30/syncai-intake/pkg/logging"
)

func TestBuildReplyMessenger(t *testing.T) {
	messenger, reason := BuildReplyMessenger(ProviderSelectionConfig{
		TwilioAccountSID: "AC1",
		TwilioAuthToken:  "token",
		TwilioFromNumber: "+14155238886",
	}, nil, logging.Discard())
	if reason != "" {
		t.Fatalf("unexpected reason %q", reason)
	}
	if _, ok := messenger.(*TwilioSender); !ok {
		t.Fatalf("expected TwilioSender, got %T", messenger)
	}

	messenger, reason = BuildReplyMessenger(ProviderSelectionConfig{TwilioAccountSID: "AC1"}, nil, logging.Discard())
	if _, ok := messenger.(*LogMessenger); !ok {
		t.Fatalf("expected LogMessenger, got %T", messenger)
	}
	if !strings.Contains(reason, "TWILIO_AUTH_TOKEN") || !strings.Contains(reason, "TWILIO_FROM_NUMBER") {
		t.Fatalf("expected missing credentials in reason, got %q", reason)
	}
	if err := messenger.SendReply(context.Background(), conversation.OutboundReply{To: "x", Body: "y"}); err != nil {
		t.Fatalf("log messenger should not fail: %v", err)
	}
}
