package messaging

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/syncai-intake/internal/conversation"
	"github.com/wolfman30/syncai-intake/internal/observability/metrics"
	"github.com/wolfman30/syncai-intake/pkg/logging"
)

const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

var twilioTracer = otel.Tracer("syncai.internal.messaging.twilio")

type conversationPublisher interface {
	EnqueueMessage(ctx context.Context, jobID string, in conversation.Inbound, opts ...conversation.PublishOption) (string, error)
}

// Handler accepts inbound Twilio messages and queues them for the router.
type Handler struct {
	webhookSecret string
	publicBaseURL string
	publisher     conversationPublisher
	metrics       *metrics.MessagingMetrics
	logger        *logging.Logger
}

// HandlerOption customizes a Handler.
type HandlerOption func(*Handler)

// WithPublicBaseURL fixes the scheme and host used for signature checks
// when the service runs behind a proxy.
func WithPublicBaseURL(base string) HandlerOption {
	return func(h *Handler) { h.publicBaseURL = strings.TrimRight(strings.TrimSpace(base), "/") }
}

func WithHandlerMetrics(m *metrics.MessagingMetrics) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

// NewHandler creates a webhook handler. An empty webhookSecret disables
// signature validation.
func NewHandler(webhookSecret string, publisher conversationPublisher, logger *logging.Logger, opts ...HandlerOption) *Handler {
	if publisher == nil {
		panic("messaging: publisher cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	h := &Handler{webhookSecret: webhookSecret, publisher: publisher, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// TwilioWebhook handles POST /webhooks/twilio/messages. Replies are sent
// asynchronously by the worker, so the TwiML response is always empty.
func (h *Handler) TwilioWebhook(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	ctx, span := twilioTracer.Start(r.Context(), "messaging.twilio.webhook")
	defer span.End()

	status := h.accept(ctx, w, r)
	h.metrics.ObserveInbound(status, time.Since(started).Seconds())
}

func (h *Handler) accept(ctx context.Context, w http.ResponseWriter, r *http.Request) string {
	span := trace.SpanFromContext(ctx)
	if h.webhookSecret != "" {
		if !ValidateTwilioSignature(r, h.webhookSecret, h.webhookURL(r)) {
			h.logger.Warn("invalid twilio signature")
			span.RecordError(errors.New("invalid twilio signature"))
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return "unauthorized"
		}
	}

	webhook, err := ParseTwilioWebhook(r)
	if err != nil {
		h.logger.Error("failed to parse twilio webhook", "error", err)
		span.RecordError(err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return "invalid"
	}
	from := NormalizeAddress(webhook.From)
	span.SetAttributes(
		attribute.String("syncai.twilio.message_sid", webhook.MessageSid),
		attribute.Bool("syncai.twilio.whatsapp", IsWhatsApp(from)),
	)
	if webhook.MessageSid == "" || from == "" {
		err := errors.New("missing required twilio fields")
		h.logger.Error("invalid twilio payload", "error", err)
		span.RecordError(err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return "invalid"
	}

	if strings.TrimSpace(webhook.Body) == "" {
		h.logger.Info("ignoring twilio message without text", "message_sid", webhook.MessageSid, "num_media", webhook.NumMedia)
		writeTwiML(w)
		return "ignored"
	}

	publishCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	in := conversation.Inbound{Contact: from, Text: webhook.Body}
	if _, err := h.publisher.EnqueueMessage(publishCtx, webhook.MessageSid, in); err != nil {
		if errors.Is(err, conversation.ErrJobExists) {
			h.logger.Info("twilio retry for queued message", "message_sid", webhook.MessageSid)
			writeTwiML(w)
			return "duplicate"
		}
		h.logger.Error("failed to enqueue conversation job", "error", err, "message_sid", webhook.MessageSid)
		span.RecordError(err)
		http.Error(w, "Failed to schedule reply", http.StatusInternalServerError)
		return "error"
	}

	h.logger.Info("twilio webhook accepted", "message_sid", webhook.MessageSid, "contact", from)
	writeTwiML(w)
	return "accepted"
}

func writeTwiML(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(emptyTwiML))
}

func (h *Handler) webhookURL(r *http.Request) string {
	if h.publicBaseURL != "" {
		return h.publicBaseURL + r.URL.RequestURI()
	}
	return buildAbsoluteURL(r)
}

func buildAbsoluteURL(r *http.Request) string {
	if r.URL == nil {
		return ""
	}
	if r.URL.Scheme != "" {
		return r.URL.String()
	}
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "https"
		if r.TLS == nil {
			scheme = "http"
		}
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	return fmt.Sprintf("%s://%s%s", scheme, host, r.URL.RequestURI())
}
