package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfman30/syncai-intake/internal/booking"
	"github.com/wolfman30/syncai-intake/internal/catalog"
	"github.com/wolfman30/syncai-intake/pkg/logging"
)

type scriptedClassifier struct {
	intent Intent
	err    error
	panics bool
	calls  int
	mu     sync.Mutex
}

func (s *scriptedClassifier) Classify(ctx context.Context, text string) (Intent, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.panics {
		panic("oracle exploded")
	}
	return s.intent, s.err
}

func (s *scriptedClassifier) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type scriptedTopic struct {
	symptom bool
	err     error
}

func (s scriptedTopic) IsSymptom(ctx context.Context, text string) (bool, error) {
	return s.symptom, s.err
}

type scriptedResponder struct {
	reply   string
	err     error
	symptom *bool
}

func (s *scriptedResponder) Reply(ctx context.Context, text string, symptom bool) (string, error) {
	s.symptom = &symptom
	return s.reply, s.err
}

type failingStore struct {
	saveErr   error
	lookupErr error
}

func (f failingStore) Save(ctx context.Context, c booking.Candidate, _ ...booking.SaveOption) (*booking.Record, error) {
	return nil, f.saveErr
}

func (f failingStore) FindLatestByContact(ctx context.Context, contact string) (*booking.Record, error) {
	return nil, f.lookupErr
}

const sender = "whatsapp:+919876543210"

func TestRouterCompleteBookingIsSaved(t *testing.T) {
	store := booking.NewMemoryStore()
	classifier := &scriptedClassifier{intent: IntentConversation}
	router := NewRouter(store, classifier, logging.Discard())

	out := router.Handle(context.Background(), Inbound{
		Contact: sender,
		Text:    "Name: Asha\nMobile: 9876543210\nProblem: fever\nDate: 15/01/2026\nTime: 10:00 AM",
	})

	require.Equal(t, ActionBookingSaved, out.Action)
	require.Len(t, out.Replies, 2)
	require.NotNil(t, out.Booking)
	assert.Equal(t, "2026-01-15", out.Booking.RequestedDate)
	assert.Equal(t, booking.StatusPending, out.Booking.Status)
	assert.Contains(t, out.Replies[0], "fever")
	assert.Contains(t, out.Replies[1], "Booking ID: 1")
	assert.Contains(t, out.Replies[1], "fever")
	assert.Zero(t, classifier.callCount(), "structured input must not reach the classifier")

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Total)
}

func TestRouterLabelsInAnyOrderAndCase(t *testing.T) {
	store := booking.NewMemoryStore()
	router := NewRouter(store, &scriptedClassifier{intent: IntentConversation}, logging.Discard())

	out := router.Handle(context.Background(), Inbound{
		Contact: sender,
		Text:    "TIME: 4 pm\nproblem: cough\nPREFERRED DATE: 2026-02-01\nPhone: 98765\nnAmE: Ravi",
	})
	require.Equal(t, ActionBookingSaved, out.Action)
	assert.Equal(t, "16:00", out.Booking.RequestedTime)
	assert.Equal(t, "Ravi", out.Booking.Name)
}

func TestRouterPartialBookingListsMissing(t *testing.T) {
	store := booking.NewMemoryStore()
	classifier := &scriptedClassifier{intent: IntentConversation}
	router := NewRouter(store, classifier, logging.Discard())

	out := router.Handle(context.Background(), Inbound{Contact: sender, Text: "Name: Asha\nProblem: fever"})

	require.Equal(t, ActionMissingFields, out.Action)
	assert.Equal(t, []string{"Mobile", "Date", "Time"}, out.Missing)
	require.Len(t, out.Replies, 1)
	reply := out.Replies[0]
	for _, label := range []string{"Mobile", "Date", "Time"} {
		assert.Contains(t, reply, label)
	}
	for _, label := range []string{"Name", "Problem"} {
		assert.NotContains(t, reply, label)
	}
	assert.Contains(t, reply, "Asha")
	assert.Contains(t, reply, "fever")
	assert.Zero(t, classifier.callCount())

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
}

func TestRouterBlankLabeledValueIsMissing(t *testing.T) {
	store := booking.NewMemoryStore()
	router := NewRouter(store, &scriptedClassifier{intent: IntentConversation}, logging.Discard())

	out := router.Handle(context.Background(), Inbound{
		Contact: sender,
		Text:    "Name: Asha\nMobile: 98765\nProblem: fever\nDate: 2026-01-15\nTime:    ",
	})
	require.Equal(t, ActionMissingFields, out.Action)
	assert.Equal(t, []string{"Time"}, out.Missing)
}

func TestRouterStatusQuery(t *testing.T) {
	ctx := context.Background()
	store := booking.NewMemoryStore()
	router := NewRouter(store, &scriptedClassifier{intent: IntentStatusQuery}, logging.Discard())

	out := router.Handle(ctx, Inbound{Contact: sender, Text: "is my booking confirmed"})
	require.Equal(t, ActionStatusNotFound, out.Action)
	require.Len(t, out.Replies, 1)
	assert.Contains(t, out.Replies[0], "could not find")
	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Total)

	_, err = store.Save(ctx, booking.Candidate{
		booking.FieldName:    "Asha",
		booking.FieldContact: sender,
		booking.FieldSubject: "fever",
		booking.FieldDate:    "15/01/2026",
		booking.FieldTime:    "10:00 AM",
	})
	require.NoError(t, err)

	out = router.Handle(ctx, Inbound{Contact: sender, Text: "is my booking confirmed"})
	require.Equal(t, ActionStatusFound, out.Action)
	require.Len(t, out.Replies, 1)
	assert.Contains(t, out.Replies[0], "Pending")
	assert.Contains(t, out.Replies[0], "2026-01-15")
	assert.Contains(t, out.Replies[0], "10:00")
}

func TestRouterStatusAfterChatBooking(t *testing.T) {
	ctx := context.Background()
	store := booking.NewMemoryStore()
	classifier := &scriptedClassifier{intent: IntentStatusQuery}
	router := NewRouter(store, classifier, logging.Discard())

	out := router.Handle(ctx, Inbound{
		Contact: sender,
		Text:    "Name: Asha\nMobile: 9876543210\nProblem: fever\nDate: 15/01/2026\nTime: 10:00 AM",
	})
	require.Equal(t, ActionBookingSaved, out.Action)
	assert.Equal(t, "919876543210", out.Booking.Contact)
	assert.Equal(t, "9876543210", out.Booking.Mobile)
	assert.Contains(t, out.Replies[1], "Mobile: 9876543210")

	out = router.Handle(ctx, Inbound{Contact: sender, Text: "is my booking confirmed"})
	require.Equal(t, ActionStatusFound, out.Action)
	require.Len(t, out.Replies, 1)
	assert.Contains(t, out.Replies[0], "Pending")
	assert.Contains(t, out.Replies[0], "2026-01-15")

	out = router.Handle(ctx, Inbound{Contact: "whatsapp:+14155550100", Text: "is my booking confirmed"})
	assert.Equal(t, ActionStatusNotFound, out.Action)
}

func TestRouterBookingIntentSendsTemplate(t *testing.T) {
	router := NewRouter(booking.NewMemoryStore(), &scriptedClassifier{intent: IntentBooking}, logging.Discard())

	out := router.Handle(context.Background(), Inbound{Contact: sender, Text: "I want to see a doctor"})
	require.Equal(t, ActionBookingTemplate, out.Action)
	require.Len(t, out.Replies, 1)
	for _, label := range []string{"Name:", "Mobile:", "Problem:", "Preferred Date:", "Preferred Time:"} {
		assert.Contains(t, out.Replies[0], label)
	}
}

func TestRouterClassifierFailureFallsBack(t *testing.T) {
	tests := []struct {
		name       string
		classifier *scriptedClassifier
	}{
		{"error", &scriptedClassifier{err: ErrClassifierUnavailable}},
		{"timeout", &scriptedClassifier{err: context.DeadlineExceeded}},
		{"panic", &scriptedClassifier{panics: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			responder := &scriptedResponder{reply: "should not be used"}
			router := NewRouter(booking.NewMemoryStore(), tt.classifier, logging.Discard(), WithResponder(responder))

			var out Outcome
			require.NotPanics(t, func() {
				out = router.Handle(context.Background(), Inbound{Contact: sender, Text: "tell me something nice"})
			})
			assert.Equal(t, ActionFallback, out.Action)
			assert.Equal(t, IntentConversation, out.Intent)
			assert.Equal(t, []string{FallbackReply}, out.Replies)
			assert.Nil(t, responder.symptom)
		})
	}
}

func TestRouterConversationalReply(t *testing.T) {
	products := catalog.New([]catalog.Product{
		{BrandName: "Paracip 500", Composition: "Paracetamol 500mg", Price: "30", Keywords: []string{"paracetamol"}},
		{BrandName: "Calpol", Composition: "Paracetamol 650mg", Price: "35", Keywords: []string{"paracetamol"}},
		{BrandName: "Dolo", Composition: "Paracetamol 650mg", Price: "32", Keywords: []string{"paracetamol"}},
		{BrandName: "Crocin", Composition: "Paracetamol 500mg", Price: "28", Keywords: []string{"paracetamol"}},
	})

	t.Run("products first", func(t *testing.T) {
		responder := &scriptedResponder{reply: "unused"}
		router := NewRouter(booking.NewMemoryStore(), &scriptedClassifier{intent: IntentConversation}, logging.Discard(),
			WithProductLookup(products), WithResponder(responder))

		out := router.Handle(context.Background(), Inbound{Contact: sender, Text: "do you have paracetamol?"})
		require.Equal(t, ActionProducts, out.Action)
		require.Len(t, out.Replies, 1)
		assert.Contains(t, out.Replies[0], "Paracip 500 (Paracetamol 500mg) - ₹30")
		assert.NotContains(t, out.Replies[0], "Crocin", "at most three products are listed")
		assert.Nil(t, responder.symptom)
	})

	t.Run("symptom responder", func(t *testing.T) {
		responder := &scriptedResponder{reply: "Please rest and drink fluids."}
		router := NewRouter(booking.NewMemoryStore(), &scriptedClassifier{intent: IntentConversation}, logging.Discard(),
			WithProductLookup(products), WithResponder(responder), WithTopicClassifier(scriptedTopic{symptom: true}))

		out := router.Handle(context.Background(), Inbound{Contact: sender, Text: "I have a headache since morning"})
		require.Equal(t, ActionConversation, out.Action)
		assert.Equal(t, []string{"Please rest and drink fluids."}, out.Replies)
		require.NotNil(t, responder.symptom)
		assert.True(t, *responder.symptom)
	})

	t.Run("topic failure is not a symptom", func(t *testing.T) {
		responder := &scriptedResponder{reply: "Hello!"}
		router := NewRouter(booking.NewMemoryStore(), &scriptedClassifier{intent: IntentConversation}, logging.Discard(),
			WithResponder(responder), WithTopicClassifier(scriptedTopic{err: errors.New("boom")}))

		out := router.Handle(context.Background(), Inbound{Contact: sender, Text: "hi"})
		require.Equal(t, ActionConversation, out.Action)
		require.NotNil(t, responder.symptom)
		assert.False(t, *responder.symptom)
	})

	t.Run("responder failure", func(t *testing.T) {
		router := NewRouter(booking.NewMemoryStore(), &scriptedClassifier{intent: IntentConversation}, logging.Discard(),
			WithResponder(&scriptedResponder{err: errors.New("timeout")}))

		out := router.Handle(context.Background(), Inbound{Contact: sender, Text: "hi"})
		assert.Equal(t, ActionFallback, out.Action)
		assert.Equal(t, []string{FallbackReply}, out.Replies)
	})
}

func TestRouterStoreFailures(t *testing.T) {
	t.Run("save", func(t *testing.T) {
		router := NewRouter(failingStore{saveErr: errors.New("db down")}, &scriptedClassifier{}, logging.Discard())
		out := router.Handle(context.Background(), Inbound{
			Contact: sender,
			Text:    "Name: Asha\nMobile: 1\nProblem: fever\nDate: 2026-01-15\nTime: 10:00",
		})
		assert.Equal(t, ActionBookingFailed, out.Action)
		require.Len(t, out.Replies, 1)
		assert.Contains(t, out.Replies[0], "try again")
	})

	t.Run("status lookup", func(t *testing.T) {
		router := NewRouter(failingStore{lookupErr: errors.New("db down")}, &scriptedClassifier{intent: IntentStatusQuery}, logging.Discard())
		out := router.Handle(context.Background(), Inbound{Contact: sender, Text: "status?"})
		assert.Equal(t, ActionFallback, out.Action)
		assert.Equal(t, []string{FallbackReply}, out.Replies)
	})
}

func TestRouterIgnoresBlankText(t *testing.T) {
	classifier := &scriptedClassifier{intent: IntentConversation}
	router := NewRouter(booking.NewMemoryStore(), classifier, logging.Discard())

	out := router.Handle(context.Background(), Inbound{Contact: sender, Text: "  \n "})
	assert.Equal(t, ActionIgnored, out.Action)
	assert.Empty(t, out.Replies)
	assert.Zero(t, classifier.callCount())
}

// rendezvousClassifier blocks until the topic check has started, proving the
// two checks run at the same time.
type rendezvousClassifier struct {
	topicStarted chan struct{}
}

func (r rendezvousClassifier) Classify(ctx context.Context, text string) (Intent, error) {
	select {
	case <-r.topicStarted:
		return IntentConversation, nil
	case <-time.After(2 * time.Second):
		return "", errors.New("topic check never started")
	}
}

type signallingTopic struct {
	started chan struct{}
}

func (s signallingTopic) IsSymptom(ctx context.Context, text string) (bool, error) {
	close(s.started)
	return true, nil
}

func TestRouterRunsClassifierChecksConcurrently(t *testing.T) {
	started := make(chan struct{})
	responder := &scriptedResponder{reply: "ok"}
	router := NewRouter(booking.NewMemoryStore(), rendezvousClassifier{topicStarted: started}, logging.Discard(),
		WithTopicClassifier(signallingTopic{started: started}), WithResponder(responder))

	out := router.Handle(context.Background(), Inbound{Contact: sender, Text: "my throat hurts"})
	require.Equal(t, ActionConversation, out.Action)
	require.NotNil(t, responder.symptom)
	assert.True(t, *responder.symptom)
}

func TestReplyBuilders(t *testing.T) {
	rec := &booking.Record{ID: 9, Subject: "fever", RequestedDate: "2026-01-15", RequestedTime: "10:00", Status: booking.StatusScheduled}
	assert.True(t, strings.HasPrefix(statusFoundReply(rec), "Your latest booking (ID: 9) is Scheduled."))

	reply := productReply([]catalog.Product{{BrandName: "Plain"}})
	assert.Contains(t, reply, "Plain\n")
	assert.NotContains(t, reply, "₹")
}
