package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

const (
	jobIDAttribute   = "job_id"
	defaultSQSGroup  = "conversation"
	maxSQSIdentifier = 128
)

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSQueue carries inbound message jobs between the API and the worker. On a
// FIFO queue each contact is its own message group and the job id is the
// deduplication id, so a webhook retry inside the SQS window is dropped by SQS.
type SQSQueue struct {
	client   sqsAPI
	queueURL string
	fifo     bool
}

func NewSQSQueue(client sqsAPI, queueURL string) *SQSQueue {
	if client == nil {
		panic("conversation: SQS client cannot be nil")
	}
	if queueURL == "" {
		panic("conversation: SQS queueURL cannot be empty")
	}
	return &SQSQueue{client: client, queueURL: queueURL, fifo: strings.HasSuffix(queueURL, ".fifo")}
}

func (q *SQSQueue) Send(ctx context.Context, env envelope) error {
	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(env.Body),
	}
	if env.JobID != "" {
		input.MessageAttributes = map[string]sqstypes.MessageAttributeValue{
			jobIDAttribute: {DataType: aws.String("String"), StringValue: aws.String(env.JobID)},
		}
	}
	if q.fifo {
		input.MessageGroupId = aws.String(sqsIdentifier(env.Group, defaultSQSGroup))
		if env.JobID != "" {
			input.MessageDeduplicationId = aws.String(sqsIdentifier(env.JobID, ""))
		}
	}
	if _, err := q.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("conversation: failed to send SQS message: %w", err)
	}
	return nil
}

func (q *SQSQueue) Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error) {
	output, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(q.queueURL),
		MaxNumberOfMessages:   int32(maxMessages),
		WaitTimeSeconds:       int32(waitSeconds),
		MessageAttributeNames: []string{jobIDAttribute},
	})
	if err != nil {
		return nil, fmt.Errorf("conversation: failed to receive SQS messages: %w", err)
	}

	messages := make([]queueMessage, 0, len(output.Messages))
	for _, msg := range output.Messages {
		id := aws.ToString(msg.MessageId)
		if attr, ok := msg.MessageAttributes[jobIDAttribute]; ok && aws.ToString(attr.StringValue) != "" {
			id = aws.ToString(attr.StringValue)
		}
		messages = append(messages, queueMessage{
			ID:            id,
			Body:          aws.ToString(msg.Body),
			ReceiptHandle: aws.ToString(msg.ReceiptHandle),
		})
	}
	return messages, nil
}

func (q *SQSQueue) Delete(ctx context.Context, receiptHandle string) error {
	if receiptHandle == "" {
		return nil
	}
	if _, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	}); err != nil {
		return fmt.Errorf("conversation: failed to delete SQS message: %w", err)
	}
	return nil
}

// sqsIdentifier keeps the characters SQS accepts in group and dedup ids.
func sqsIdentifier(value, fallback string) string {
	var b strings.Builder
	for _, r := range value {
		if b.Len() == maxSQSIdentifier {
			break
		}
		if r > ' ' && r <= '~' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return fallback
	}
	return b.String()
}
