package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

func TestMemoryQueueBatches(t *testing.T) {
	q := NewMemoryQueue(8)
	ctx := context.Background()
	for _, body := range []string{"a", "b", "c"} {
		if err := q.Send(ctx, envelope{JobID: body, Body: body}); err != nil {
			t.Fatalf("send: %v", err)
		}
	}
	if q.Len() != 3 {
		t.Fatalf("expected 3 queued, got %d", q.Len())
	}

	msgs, err := q.Receive(ctx, 2, 1)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Body != "a" || msgs[1].Body != "b" {
		t.Fatalf("unexpected batch: %#v", msgs)
	}
	if msgs[0].ReceiptHandle == "" {
		t.Fatal("expected receipt handle")
	}
	if q.Len() != 1 {
		t.Fatalf("expected 1 left, got %d", q.Len())
	}
}

func TestMemoryQueueWaitExpires(t *testing.T) {
	q := NewMemoryQueue(1)
	start := time.Now()
	msgs, err := q.Receive(context.Background(), 1, 1)
	if err != nil || msgs != nil {
		t.Fatalf("expected empty receive, got %v %v", msgs, err)
	}
	if time.Since(start) < 900*time.Millisecond {
		t.Fatal("expected receive to wait for the poll interval")
	}
}

func TestMemoryQueueCancelled(t *testing.T) {
	q := NewMemoryQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := q.Receive(ctx, 1, 0); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if err := q.Send(context.Background(), envelope{Body: "fill"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := q.Send(ctx, envelope{Body: "overflow"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected full queue send to honour ctx, got %v", err)
	}
}

type stubSQS struct {
	sent        *sqs.SendMessageInput
	receiveIn   *sqs.ReceiveMessageInput
	receiveOut  *sqs.ReceiveMessageOutput
	deleted     *sqs.DeleteMessageInput
	err         error
	deleteCalls int
}

func (s *stubSQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	s.sent = in
	return &sqs.SendMessageOutput{}, s.err
}

func (s *stubSQS) ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	s.receiveIn = in
	if s.err != nil {
		return nil, s.err
	}
	return s.receiveOut, nil
}

func (s *stubSQS) DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	s.deleteCalls++
	s.deleted = in
	return &sqs.DeleteMessageOutput{}, s.err
}

func TestSQSQueue(t *testing.T) {
	api := &stubSQS{receiveOut: &sqs.ReceiveMessageOutput{Messages: []sqstypes.Message{
		{MessageId: aws.String("m1"), Body: aws.String(`{"id":"SM1"}`), ReceiptHandle: aws.String("rh1")},
	}}}
	q := NewSQSQueue(api, "https://sqs.local/queue")
	ctx := context.Background()

	if err := q.Send(ctx, envelope{JobID: "SM1", Group: "whatsapp:+91987", Body: "body"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if api.sent.MessageGroupId != nil || api.sent.MessageDeduplicationId != nil {
		t.Fatalf("standard queue should not get FIFO ids: %#v", api.sent)
	}
	if attr := api.sent.MessageAttributes[jobIDAttribute]; aws.ToString(attr.StringValue) != "SM1" {
		t.Fatalf("expected job id attribute, got %#v", api.sent.MessageAttributes)
	}
	if aws.ToString(api.sent.QueueUrl) != "https://sqs.local/queue" || aws.ToString(api.sent.MessageBody) != "body" {
		t.Fatalf("unexpected send input: %#v", api.sent)
	}

	msgs, err := q.Receive(ctx, 5, 10)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if api.receiveIn.MaxNumberOfMessages != 5 || api.receiveIn.WaitTimeSeconds != 10 {
		t.Fatalf("unexpected receive input: %#v", api.receiveIn)
	}
	if len(msgs) != 1 || msgs[0].ID != "m1" || msgs[0].ReceiptHandle != "rh1" {
		t.Fatalf("unexpected messages: %#v", msgs)
	}

	if err := q.Delete(ctx, ""); err != nil || api.deleteCalls != 0 {
		t.Fatal("expected empty receipt handle to be skipped")
	}
	if err := q.Delete(ctx, "rh1"); err != nil || aws.ToString(api.deleted.ReceiptHandle) != "rh1" {
		t.Fatalf("unexpected delete: %v", err)
	}

	api.err = errors.New("throttled")
	if err := q.Send(ctx, envelope{Body: "body"}); err == nil {
		t.Fatal("expected send error")
	}
	if _, err := q.Receive(ctx, 1, 0); err == nil {
		t.Fatal("expected receive error")
	}
}

func TestSQSQueueFIFO(t *testing.T) {
	api := &stubSQS{receiveOut: &sqs.ReceiveMessageOutput{Messages: []sqstypes.Message{{
		MessageId:     aws.String("m1"),
		Body:          aws.String("{}"),
		ReceiptHandle: aws.String("rh1"),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			jobIDAttribute: {DataType: aws.String("String"), StringValue: aws.String("SM9")},
		},
	}}}}
	q := NewSQSQueue(api, "https://sqs.local/intake.fifo")
	ctx := context.Background()

	if err := q.Send(ctx, envelope{JobID: "SM9", Group: "whatsapp:+91 987", Body: "body"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := aws.ToString(api.sent.MessageGroupId); got != "whatsapp:+91987" {
		t.Fatalf("unexpected group id %q", got)
	}
	if got := aws.ToString(api.sent.MessageDeduplicationId); got != "SM9" {
		t.Fatalf("unexpected dedup id %q", got)
	}

	if err := q.Send(ctx, envelope{Body: "body"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got := aws.ToString(api.sent.MessageGroupId); got != defaultSQSGroup {
		t.Fatalf("expected default group, got %q", got)
	}

	msgs, err := q.Receive(ctx, 1, 0)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if len(msgs) != 1 || msgs[0].ID != "SM9" {
		t.Fatalf("expected job id from attributes, got %#v", msgs)
	}
}

func TestDecodePayload(t *testing.T) {
	cases := map[string]bool{
		`{"id":"SM1","kind":"message","message":{"contact":"a"}}`: true,
		`{"id":"","kind":"message"}`:                              false,
		`{"id":"SM1","kind":"voice"}`:                             false,
		`{not json`:                                               false,
	}
	for body, ok := range cases {
		_, err := decodePayload(body)
		if ok && err != nil {
			t.Fatalf("%s: unexpected error %v", body, err)
		}
		if !ok && !errors.Is(err, errMalformedJob) {
			t.Fatalf("%s: expected errMalformedJob, got %v", body, err)
		}
	}
}
