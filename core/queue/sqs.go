package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"seva-signup/core/config"
	"seva-signup/core/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQSQueue implements Queue on Amazon SQS. Visibility timeouts and the
// ApproximateReceiveCount attribute supply redelivery and delivery counting.
type SQSQueue struct {
	client   *sqs.Client
	queueURL string
	dlqURL   string
}

func NewSQSQueue(cfg config.AWSConfig) (*SQSQueue, error) {
	if cfg.QueueURL == "" {
		return nil, fmt.Errorf("SQS queue URL not configured")
	}

	client := sqs.New(sqs.Options{
		Region:      cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
	})

	return &SQSQueue{
		client:   client,
		queueURL: cfg.QueueURL,
		dlqURL:   cfg.DeadLetterURL,
	}, nil
}

func (q *SQSQueue) Enqueue(ctx context.Context, job Job) (string, error) {
	body, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("marshal job: %w", err)
	}

	out, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"JobKind": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(job.Kind)),
			},
			"SignupId": {
				DataType:    aws.String("String"),
				StringValue: aws.String(job.SignupID.String()),
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}

	logger.Info("SQSQueue:Enqueue", "kind", job.Kind, "signup_id", job.SignupID, "message_id", aws.ToString(out.MessageId))
	return aws.ToString(out.MessageId), nil
}

func (q *SQSQueue) Poll(ctx context.Context, max int, wait time.Duration) ([]Message, error) {
	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:              aws.String(q.queueURL),
		MaxNumberOfMessages:   int32(max),
		WaitTimeSeconds:       int32(wait / time.Second),
		MessageAttributeNames: []string{"All"},
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameApproximateReceiveCount,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("receive message: %w", err)
	}

	msgs := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		var job Job
		if err := json.Unmarshal([]byte(aws.ToString(m.Body)), &job); err != nil {
			// A malformed body can never succeed; park it on the DLQ.
			logger.Error("SQSQueue:Poll:MalformedBody", "error", err, "message_id", aws.ToString(m.MessageId))
			_ = q.Escalate(ctx, Job{}, fmt.Sprintf("malformed body: %v", err))
			_ = q.Acknowledge(ctx, aws.ToString(m.ReceiptHandle))
			continue
		}

		deliveryCount := 1
		if raw, ok := m.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)]; ok {
			if n, err := strconv.Atoi(raw); err == nil && n > 0 {
				deliveryCount = n
			}
		}

		msgs = append(msgs, Message{
			Job:           job,
			Handle:        aws.ToString(m.ReceiptHandle),
			DeliveryCount: deliveryCount,
		})
	}
	return msgs, nil
}

func (q *SQSQueue) Acknowledge(ctx context.Context, handle string) error {
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.queueURL),
		ReceiptHandle: aws.String(handle),
	})
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

func (q *SQSQueue) Escalate(ctx context.Context, job Job, reason string) error {
	if q.dlqURL == "" {
		logger.Error("SQSQueue:Escalate:NoDLQConfigured", "kind", job.Kind, "signup_id", job.SignupID, "reason", reason)
		return fmt.Errorf("dead-letter queue not configured")
	}

	payload := struct {
		Job
		Reason      string    `json:"reason"`
		EscalatedAt time.Time `json:"escalated_at"`
	}{Job: job, Reason: reason, EscalatedAt: time.Now().UTC()}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}

	_, err = q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.dlqURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("send to dead letter queue: %w", err)
	}

	logger.Warn("SQSQueue:Escalate", "kind", job.Kind, "signup_id", job.SignupID, "reason", reason)
	return nil
}
