package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/syncai-intake/internal/conversation"
	"github.com/wolfman30/syncai-intake/internal/observability/metrics"
	"github.com/wolfman30/syncai-intake/pkg/logging"
)

const (
	defaultTwilioBaseURL = "https://api.twilio.com"
	maxSendAttempts      = 3
)

var twilioSendTracer = otel.Tracer("syncai.internal.messaging.twilio_send")

// TwilioSender posts WhatsApp and SMS replies using Twilio's REST API.
type TwilioSender struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	httpClient *http.Client
	retryDelay func() time.Duration
	metrics    *metrics.MessagingMetrics
	logger     *logging.Logger
}

// SenderOption customizes a TwilioSender.
type SenderOption func(*TwilioSender)

// WithTwilioBaseURL points the sender at another API host.
func WithTwilioBaseURL(base string) SenderOption {
	return func(s *TwilioSender) {
		if base = strings.TrimRight(strings.TrimSpace(base), "/"); base != "" {
			s.baseURL = base
		}
	}
}

func WithHTTPClient(client *http.Client) SenderOption {
	return func(s *TwilioSender) {
		if client != nil {
			s.httpClient = client
		}
	}
}

func WithSenderMetrics(m *metrics.MessagingMetrics) SenderOption {
	return func(s *TwilioSender) { s.metrics = m }
}

// NewTwilioSender builds a sender. defaultFrom may be given with or without
// the whatsapp: prefix.
func NewTwilioSender(accountSID, authToken, defaultFrom string, logger *logging.Logger, opts ...SenderOption) *TwilioSender {
	if logger == nil {
		logger = logging.Default()
	}
	s := &TwilioSender{
		accountSID: accountSID,
		authToken:  authToken,
		from:       strings.TrimSpace(defaultFrom),
		baseURL:    defaultTwilioBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retryDelay: func() time.Duration {
			return time.Duration(200+rand.Intn(300)) * time.Millisecond
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ conversation.ReplyMessenger = (*TwilioSender)(nil)

// SendReply dispatches one message, retrying transient failures. The reply
// goes out on the same channel the contact wrote from.
func (s *TwilioSender) SendReply(ctx context.Context, msg conversation.OutboundReply) error {
	err := s.send(ctx, msg)
	if err != nil {
		s.metrics.ObserveOutbound("failed")
		return err
	}
	s.metrics.ObserveOutbound("sent")
	return nil
}

func (s *TwilioSender) send(ctx context.Context, msg conversation.OutboundReply) error {
	if s.accountSID == "" || s.authToken == "" {
		return errors.New("messaging: twilio credentials missing")
	}
	to := NormalizeAddress(msg.To)
	if to == "" {
		return errors.New("messaging: to required")
	}
	from := s.fromFor(to)
	if from == "" {
		return errors.New("messaging: from required")
	}
	if strings.TrimSpace(msg.Body) == "" {
		return errors.New("messaging: body required")
	}

	ctx, span := twilioSendTracer.Start(ctx, "messaging.twilio.send")
	defer span.End()
	span.SetAttributes(
		attribute.String("syncai.job_id", msg.JobID),
		attribute.Int("syncai.reply_sequence", msg.Sequence),
	)

	payload := url.Values{}
	payload.Set("To", to)
	payload.Set("From", from)
	payload.Set("Body", msg.Body)
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, s.accountSID)

	var lastErr error
	for attempt := 1; attempt <= maxSendAttempts; attempt++ {
		retry, err := s.post(ctx, endpoint, payload)
		if err == nil {
			s.logger.Info("twilio reply sent", "job_id", msg.JobID, "sequence", msg.Sequence, "attempt", attempt)
			return nil
		}
		lastErr = err
		if !retry || attempt == maxSendAttempts {
			break
		}
		select {
		case <-ctx.Done():
			span.RecordError(ctx.Err())
			return ctx.Err()
		case <-time.After(s.retryDelay()):
		}
	}

	span.RecordError(lastErr)
	return lastErr
}

// post reports whether a failure is worth retrying.
func (s *TwilioSender) post(ctx context.Context, endpoint string, payload url.Values) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload.Encode()))
	if err != nil {
		return false, err
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return ctx.Err() == nil, err
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return false, nil
	}
	err = fmt.Errorf("messaging: twilio send failed: %s", formatTwilioError(resp.StatusCode, body))
	// Don't retry non-rate-limit 4xx errors.
	retry := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
	return retry, err
}

func (s *TwilioSender) fromFor(to string) string {
	from := s.from
	if from == "" {
		return ""
	}
	if IsWhatsApp(to) && !IsWhatsApp(from) {
		return whatsappPrefix + NormalizeE164(from)
	}
	return from
}

type twilioAPIError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

func formatTwilioError(status int, body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return fmt.Sprintf("status %d", status)
	}
	var parsed twilioAPIError
	if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil && parsed.Message != "" {
		if parsed.Code != 0 {
			return fmt.Sprintf("status %d code %d: %s", status, parsed.Code, parsed.Message)
		}
		return fmt.Sprintf("status %d: %s", status, parsed.Message)
	}
	return fmt.Sprintf("status %d: %s", status, trimmed)
}
