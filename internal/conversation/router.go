package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/syncai-intake/internal/booking"
	"github.com/wolfman30/syncai-intake/internal/catalog"
	"github.com/wolfman30/syncai-intake/internal/observability/metrics"
	"github.com/wolfman30/syncai-intake/pkg/logging"
)

// Action names the branch the router took for a message.
type Action string

const (
	ActionBookingSaved    Action = "booking_saved"
	ActionBookingFailed   Action = "booking_save_failed"
	ActionMissingFields   Action = "missing_fields"
	ActionStatusFound     Action = "status_found"
	ActionStatusNotFound  Action = "status_not_found"
	ActionBookingTemplate Action = "booking_template"
	ActionProducts        Action = "product_suggestions"
	ActionConversation    Action = "conversation_reply"
	ActionFallback        Action = "fallback"
	ActionIgnored         Action = "ignored"
)

// Inbound is one message from a contact.
type Inbound struct {
	Contact string `json:"contact"`
	Text    string `json:"text"`
}

// Outcome holds the replies to send back, in order.
type Outcome struct {
	Action  Action          `json:"action"`
	Intent  Intent          `json:"intent,omitempty"`
	Replies []string        `json:"replies"`
	Missing []string        `json:"missing,omitempty"`
	Booking *booking.Record `json:"booking,omitempty"`
}

// FieldExtractor pulls labeled booking fields out of text.
type FieldExtractor interface {
	Extract(text string) booking.Candidate
}

// BookingStore is the part of booking.Store the router needs.
type BookingStore interface {
	Save(ctx context.Context, c booking.Candidate, opts ...booking.SaveOption) (*booking.Record, error)
	FindLatestByContact(ctx context.Context, contact string) (*booking.Record, error)
}

// ProductLookup finds catalog products mentioned by a message.
type ProductLookup interface {
	Lookup(query string) []catalog.Product
}

// Router decides the replies for each inbound message. It keeps no state
// between messages; everything is derived from the text and a store lookup.
type Router struct {
	extractor  FieldExtractor
	store      BookingStore
	classifier IntentClassifier
	topics     TopicClassifier
	products   ProductLookup
	responder  Responder
	metrics    *metrics.ConversationMetrics
	logger     *logging.Logger
}

// RouterOption customizes a Router.
type RouterOption func(*Router)

func WithExtractor(e FieldExtractor) RouterOption {
	return func(r *Router) {
		if e != nil {
			r.extractor = e
		}
	}
}

// WithTopicClassifier enables the symptom check that runs beside intent detection.
func WithTopicClassifier(t TopicClassifier) RouterOption {
	return func(r *Router) { r.topics = t }
}

func WithProductLookup(p ProductLookup) RouterOption {
	return func(r *Router) { r.products = p }
}

func WithResponder(resp Responder) RouterOption {
	return func(r *Router) { r.responder = resp }
}

func WithRouterMetrics(m *metrics.ConversationMetrics) RouterOption {
	return func(r *Router) { r.metrics = m }
}

// NewRouter wires the store and classifier. Field extraction defaults to
// booking.LabelExtractor.
func NewRouter(store BookingStore, classifier IntentClassifier, logger *logging.Logger, opts ...RouterOption) *Router {
	if store == nil {
		panic("conversation: booking store cannot be nil")
	}
	if classifier == nil {
		panic("conversation: intent classifier cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	r := &Router{
		extractor:  booking.LabelExtractor{},
		store:      store,
		classifier: classifier,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle routes one message. It never panics and never returns an error;
// failures become a single fallback reply.
func (r *Router) Handle(ctx context.Context, in Inbound) (out Outcome) {
	ctx, span := routerTracer.Start(ctx, "conversation.router.handle")
	started := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("conversation router panicked", "panic", fmt.Sprint(rec), "contact", in.Contact)
			span.SetStatus(codes.Error, "panic")
			out = fallbackOutcome(out.Intent)
		}
		span.SetAttributes(
			attribute.String("conversation.action", string(out.Action)),
			attribute.Int("conversation.replies", len(out.Replies)),
		)
		span.End()
		r.metrics.ObserveOutcome(string(out.Action), time.Since(started).Seconds())
	}()

	if strings.TrimSpace(in.Text) == "" {
		return Outcome{Action: ActionIgnored, Replies: []string{}}
	}

	routed, err := r.route(ctx, in)
	if err != nil {
		r.logger.Error("conversation routing failed", "error", err, "contact", in.Contact)
		span.RecordError(err)
		return fallbackOutcome(routed.Intent)
	}
	return routed
}

func (r *Router) route(ctx context.Context, in Inbound) (Outcome, error) {
	candidate := r.extractor.Extract(in.Text)
	switch candidate.Completeness() {
	case booking.Complete:
		return r.saveBooking(ctx, in, candidate), nil
	case booking.Partial:
		return missingOutcome(candidate), nil
	}

	intent, symptom, err := r.classify(ctx, in.Text)
	if err != nil {
		return Outcome{}, err
	}
	r.metrics.ObserveIntent(string(intent))

	switch intent {
	case IntentStatusQuery:
		return r.statusReply(ctx, in)
	case IntentBooking:
		return Outcome{Action: ActionBookingTemplate, Intent: intent, Replies: []string{bookingTemplateReply}}, nil
	default:
		return r.converse(ctx, in.Text, symptom), nil
	}
}

func (r *Router) saveBooking(ctx context.Context, in Inbound, c booking.Candidate) Outcome {
	rec, err := r.store.Save(ctx, c, booking.FromSender(in.Contact))
	if err != nil {
		r.logger.Error("failed to save booking", "error", err, "contact", in.Contact)
		return Outcome{Action: ActionBookingFailed, Replies: []string{saveFailedReply}}
	}
	r.logger.Info("booking saved", "booking_id", rec.ID, "contact", in.Contact)
	return Outcome{
		Action:  ActionBookingSaved,
		Replies: []string{receiptReply(c), persistedReply(rec)},
		Booking: rec,
	}
}

func missingOutcome(c booking.Candidate) Outcome {
	missing := make([]string, 0, len(booking.Fields))
	for _, f := range c.Missing() {
		missing = append(missing, f.Label())
	}
	return Outcome{
		Action:  ActionMissingFields,
		Replies: []string{missingFieldsReply(c)},
		Missing: missing,
	}
}

// classify runs the intent and topic checks concurrently and waits for both.
// A failed topic check counts as "not a symptom".
func (r *Router) classify(ctx context.Context, text string) (Intent, bool, error) {
	var (
		wg        sync.WaitGroup
		intent    Intent
		intentErr error
		symptom   bool
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		intentErr = safeCall(func() error {
			var err error
			intent, err = r.classifier.Classify(ctx, text)
			return err
		})
	}()

	if r.topics != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := safeCall(func() error {
				var err error
				symptom, err = r.topics.IsSymptom(ctx, text)
				return err
			})
			if err != nil {
				r.logger.Warn("topic check failed", "error", err)
				symptom = false
			}
		}()
	}

	wg.Wait()
	if intentErr != nil {
		return "", false, intentErr
	}
	return intent, symptom, nil
}

func (r *Router) statusReply(ctx context.Context, in Inbound) (Outcome, error) {
	rec, err := r.store.FindLatestByContact(ctx, in.Contact)
	if err != nil {
		return Outcome{Intent: IntentStatusQuery}, fmt.Errorf("conversation: status lookup: %w", err)
	}
	if rec == nil {
		return Outcome{Action: ActionStatusNotFound, Intent: IntentStatusQuery, Replies: []string{statusNotFoundReply}}, nil
	}
	return Outcome{
		Action:  ActionStatusFound,
		Intent:  IntentStatusQuery,
		Replies: []string{statusFoundReply(rec)},
		Booking: rec,
	}, nil
}

func (r *Router) converse(ctx context.Context, text string, symptom bool) Outcome {
	if r.products != nil {
		if products := r.products.Lookup(text); len(products) > 0 {
			return Outcome{Action: ActionProducts, Intent: IntentConversation, Replies: []string{productReply(products)}}
		}
	}
	if r.responder == nil {
		return fallbackOutcome(IntentConversation)
	}

	var reply string
	err := safeCall(func() error {
		var err error
		reply, err = r.responder.Reply(ctx, text, symptom)
		return err
	})
	if err != nil {
		r.logger.Warn("responder failed", "error", err, "symptom", symptom)
		return fallbackOutcome(IntentConversation)
	}
	return Outcome{Action: ActionConversation, Intent: IntentConversation, Replies: []string{reply}}
}

// fallbackOutcome reports IntentConversation when no intent was resolved.
func fallbackOutcome(intent Intent) Outcome {
	if intent == "" {
		intent = IntentConversation
	}
	return Outcome{Action: ActionFallback, Intent: intent, Replies: []string{FallbackReply}}
}

var routerTracer = otel.Tracer("syncai.internal.conversation.router")

var errPanic = errors.New("conversation: collaborator panicked")

// safeCall turns a panic inside fn into an error.
func safeCall(fn func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", errPanic, rec)
		}
	}()
	return fn()
}
