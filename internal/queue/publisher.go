// Package queue publishes digest jobs to SQS for initial dispatch and retry.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"roomdigest/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// JobPublisher wraps an SQS client to publish DigestJobs for retry or initial
// dispatch.
//
// The key contract: Publish increments job.RetryCount BEFORE serializing to
// JSON, ensuring the downstream consumer sees the updated retry state.
type JobPublisher struct {
	client   SQSSender
	queueURL string
	logger   types.Logger
}

// NewJobPublisher creates a JobPublisher targeting the digest SQS queue.
func NewJobPublisher(client SQSSender, queueURL string, logger types.Logger) *JobPublisher {
	return &JobPublisher{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
	}
}

// Publish increments the job's RetryCount, serializes it to JSON, and sends
// it to the digest queue with the specified delay.
//
// SQS enforces a maximum DelaySeconds of 900 (15 minutes); longer delays are
// clamped. The RetryCount increment ensures the next consumer sees an
// accurate attempt number and can apply correct backoff or give up.
func (p *JobPublisher) Publish(ctx context.Context, job types.DigestJob, delay time.Duration) error {
	job.RetryCount++

	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("job publisher: failed to marshal job: %w", err)
	}

	delaySec := int32(delay.Seconds())
	if delaySec > 900 {
		delaySec = 900
	}
	if delaySec < 0 {
		delaySec = 0
	}

	input := &sqs.SendMessageInput{
		QueueUrl:     aws.String(p.queueURL),
		MessageBody:  aws.String(string(body)),
		DelaySeconds: delaySec,
	}

	_, err = p.client.SendMessage(ctx, input)
	if err != nil {
		return fmt.Errorf("job publisher: failed to send job to %s: %w", p.queueURL, err)
	}

	p.logger.Info("digest job published",
		"job_id", job.JobID,
		"user_id", job.UserID,
		"retry_count", job.RetryCount,
		"delay_seconds", delaySec,
		"trace_id", job.TraceID,
	)

	return nil
}

// RetryPolicy controls the retry backoff for failed digest jobs.
type RetryPolicy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// DefaultRetryPolicy returns the standard retry policy for digest delivery.
// A digest is not urgent; waits are generous to ride out provider outages.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 5,
		MinWait:    30 * time.Second,
		MaxWait:    15 * time.Minute,
	}
}

// Backoff returns the wait before the given attempt (1-based): exponential
// doubling from MinWait, capped at MaxWait. Attempts past MaxRetries should
// not be scheduled at all; Backoff still returns MaxWait for them.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt <= 1 {
		return p.MinWait
	}

	wait := p.MinWait
	for i := 1; i < attempt; i++ {
		wait *= 2
		if wait >= p.MaxWait {
			return p.MaxWait
		}
	}
	return wait
}

// Exhausted reports whether the job has used up its retry budget.
func (p RetryPolicy) Exhausted(retryCount int) bool {
	return retryCount >= p.MaxRetries
}
