// Package main is the entrypoint for the Digest Worker Lambda function.
//
// The Digest Worker consumes digest jobs from the SQS queue, runs each job
// through the aggregation pipeline (grouping, state resolution, context
// merging, summary composition), renders the email, and delivers it via SES.
//
// Cold start (main):
//  1. Initialize structured logger.
//  2. Load and validate configuration from the environment.
//  3. Open the PostgreSQL pool and AWS clients.
//  4. Wire repositories, the digest builder, the renderer, and the mailer.
//  5. Register the handler and call lambda.Start.
//
// Handler flow per SQS message:
//  1. Unmarshal and validate the DigestJob.
//  2. Record queue lag from the SQS SentTimestamp.
//  3. Build the digest and record build latency.
//  4. Render and send the email.
//  5. On failure: permanent errors are dropped with a metric; transient
//     errors re-publish the job with backoff, or move it to the DLQ once the
//     retry budget is spent.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"roomdigest/internal/config"
	"roomdigest/internal/db"
	"roomdigest/internal/digest"
	"roomdigest/internal/external"
	"roomdigest/internal/mailer"
	"roomdigest/internal/metrics"
	"roomdigest/internal/queue"
	"roomdigest/internal/tokens"
	"roomdigest/internal/types"
)

// slogAdapter wraps *slog.Logger to implement the types.Logger interface.
// slog.Logger satisfies Info, Error, and Warn directly but With returns
// *slog.Logger, not types.Logger, so an adapter is necessary.
type slogAdapter struct {
	logger *slog.Logger
}

func (a *slogAdapter) Info(msg string, args ...any)  { a.logger.Info(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.logger.Error(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.logger.Warn(msg, args...) }
func (a *slogAdapter) With(args ...any) types.Logger {
	return &slogAdapter{logger: a.logger.With(args...)}
}

var _ types.Logger = (*slogAdapter)(nil)

// Handler holds the dependencies for the digest worker Lambda handler.
type Handler struct {
	builder   *digest.Builder
	mailer    *mailer.Mailer
	publisher *queue.JobPublisher
	dlq       *queue.JobPublisher
	policy    queue.RetryPolicy
	metrics   metrics.DigestMetrics
	validate  *validator.Validate
	logger    types.Logger
}

// Handle processes an SQS event containing one or more digest jobs. Each
// message is processed independently; messages that fail with an
// infrastructure error are returned in batchItemFailures so SQS redelivers
// only them.
func (h *Handler) Handle(ctx context.Context, sqsEvent events.SQSEvent) (events.SQSEventResponse, error) {
	response := events.SQSEventResponse{}

	for _, record := range sqsEvent.Records {
		if err := h.processMessage(ctx, record); err != nil {
			h.logger.Error("failed to process SQS message",
				"message_id", record.MessageId,
				"error", err.Error(),
			)
			response.BatchItemFailures = append(response.BatchItemFailures,
				events.SQSBatchItemFailure{ItemIdentifier: record.MessageId},
			)
		}
	}

	return response, nil
}

// processMessage handles a single digest job end to end. A nil return ACKs
// the SQS message; retry scheduling happens by re-publishing, never by
// returning an error for redelivery of the same message.
func (h *Handler) processMessage(ctx context.Context, record events.SQSMessage) error {
	var job types.DigestJob
	if err := json.Unmarshal([]byte(record.Body), &job); err != nil {
		h.logger.Error("failed to unmarshal digest job",
			"message_id", record.MessageId,
			"error", err.Error(),
		)
		// Permanent parse failure, nothing to retry.
		h.metrics.RecordSend(ctx, metrics.ResultDropped)
		return nil
	}

	if job.JobID == "" {
		job.JobID = uuid.NewString()
	}

	logger := h.logger.With(
		"job_id", job.JobID,
		"user_id", job.UserID,
		"app_id", job.AppID,
		"retry_count", job.RetryCount,
		"trace_id", job.TraceID,
	)

	if err := h.validate.Struct(&job); err != nil {
		logger.Error("digest job failed validation", "error", err.Error())
		h.metrics.RecordSend(ctx, metrics.ResultDropped)
		return nil
	}

	logger.Info("processing digest job", "batch_size", len(job.Batch))

	if sentTimestamp, ok := record.Attributes["SentTimestamp"]; ok {
		if sentAt, err := parseMillisTimestamp(sentTimestamp); err == nil {
			h.metrics.RecordQueueLag(ctx, time.Since(sentAt))
		}
	}

	buildStart := time.Now()
	mail, err := h.builder.BuildDigest(ctx, &job)
	if err != nil {
		return h.handleFailure(ctx, job, logger, fmt.Errorf("build digest: %w", err))
	}
	h.metrics.RecordBuildLatency(ctx, time.Since(buildStart))

	if _, err := h.mailer.SendDigest(ctx, &job, mail); err != nil {
		return h.handleFailure(ctx, job, logger, fmt.Errorf("send digest: %w", err))
	}

	h.metrics.RecordSend(ctx, metrics.ResultSuccess)
	return nil
}

// handleFailure routes a failed job: permanent failures are dropped,
// transient ones are re-published with backoff until the retry budget runs
// out, then parked on the DLQ for operator inspection.
func (h *Handler) handleFailure(ctx context.Context, job types.DigestJob, logger types.Logger, err error) error {
	if !types.Retryable(err) {
		logger.Error("digest permanently failed, dropping job", "error", err.Error())
		h.metrics.RecordSend(ctx, metrics.ResultDropped)
		return nil
	}

	if h.policy.Exhausted(job.RetryCount) {
		logger.Error("digest retry budget exhausted, moving job to DLQ",
			"error", err.Error(),
		)
		h.metrics.RecordSend(ctx, metrics.ResultDropped)
		if dlqErr := h.dlq.Publish(ctx, job, 0); dlqErr != nil {
			// DLQ unreachable: surface as a batch failure so SQS redelivers.
			return fmt.Errorf("publish to DLQ: %w", dlqErr)
		}
		return nil
	}

	delay := h.policy.Backoff(job.RetryCount + 1)
	if pubErr := h.publisher.Publish(ctx, job, delay); pubErr != nil {
		return fmt.Errorf("publish retry: %w", pubErr)
	}

	logger.Warn("digest retry scheduled",
		"error", err.Error(),
		"delay_seconds", int(delay.Seconds()),
	)
	h.metrics.RecordSend(ctx, metrics.ResultRetryable)
	return nil
}

// parseMillisTimestamp parses a millisecond-epoch string into a time.Time.
// Used for the SQS SentTimestamp attribute to calculate queue lag.
func parseMillisTimestamp(ms string) (time.Time, error) {
	var millis int64
	if _, err := fmt.Sscanf(ms, "%d", &millis); err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(millis), nil
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func main() {
	cfg, err := config.LoadWorker()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	typedLogger := &slogAdapter{logger: logger}

	logger.Info("digest worker initializing (cold start)",
		"environment", cfg.Environment,
	)

	ctx := context.Background()

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL.Unmask())
	if err != nil {
		logger.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = int32(cfg.Database.MaxConns)
	poolCfg.MinConns = int32(cfg.Database.MinConns)
	poolCfg.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolCfg.HealthCheckPeriod = cfg.Database.HealthCheckPeriod
	poolCfg.ConnConfig.ConnectTimeout = cfg.Database.AcquireTimeout

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		logger.Error("failed to load AWS SDK config", "error", err)
		os.Exit(1)
	}

	// LocalStack support: point every AWS client at the override endpoint.
	sqsClient := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
		}
	})
	cwClient := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
		}
	})
	sesAPI := sesv2.NewFromConfig(awsCfg, func(o *sesv2.Options) {
		if cfg.AWS.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
		}
	})

	eventRepo := db.NewEventRepository(pool)
	profileRepo := db.NewProfileRepository(pool)

	issuer, err := tokens.NewIssuer(cfg.Tokens.Secret, cfg.Tokens.Issuer, nil)
	if err != nil {
		logger.Error("failed to create token issuer", "error", err)
		os.Exit(1)
	}

	builder := digest.NewBuilder(digest.BuilderConfig{
		Store:      eventRepo,
		Visibility: eventRepo,
		Profiles:   profileRepo,
		Sanitizer:  digest.NewSanitizationPolicy(),
		Tokens:     issuer,
		Links: digest.LinkBuilder{
			PermalinkBase: cfg.Digest.PermalinkBase,
			ServerBaseURL: cfg.Server.PublicBaseURL,
		},
		AppName:    cfg.Digest.AppName,
		FetchLimit: cfg.Digest.StateFetchLimit,
		Logger:     typedLogger,
	})

	renderer, err := mailer.NewRenderer(mailer.RendererConfig{
		MediaBaseURL: cfg.Digest.MediaBaseURL,
		FromAddr:     cfg.Email.FromAddress,
		FromName:     cfg.Email.FromName,
	})
	if err != nil {
		logger.Error("failed to initialize renderer", "error", err)
		os.Exit(1)
	}

	sesClient := external.NewSESClientWithAPI(sesAPI, external.SESClientConfig{
		ConfigSetName: cfg.AWS.SESConfigSet,
		Logger:        logger,
	})
	provider := external.NewBreakerProvider("ses", sesClient)

	handler := &Handler{
		builder:   builder,
		mailer:    mailer.NewMailer(renderer, provider, typedLogger),
		publisher: queue.NewJobPublisher(sqsClient, cfg.AWS.DigestQueue, typedLogger),
		dlq:       queue.NewJobPublisher(sqsClient, cfg.AWS.DlqURL, typedLogger),
		policy: queue.RetryPolicy{
			MaxRetries: cfg.Digest.MaxRetries,
			MinWait:    cfg.Digest.MinRetryWait,
			MaxWait:    cfg.Digest.MaxRetryWait,
		},
		metrics:  metrics.NewCloudWatchDigestMetrics(cwClient, typedLogger),
		validate: validator.New(),
		logger:   typedLogger,
	}

	logger.Info("digest worker initialized",
		"digest_queue", cfg.AWS.DigestQueue,
		"from_address", cfg.Email.FromAddress,
		"app_name", cfg.Digest.AppName,
	)

	// Local mode: read a JSON SQS event from stdin instead of starting the
	// Lambda runtime. Enables local integration testing without the RIE.
	if cfg.Environment == "local" {
		logger.Info("APP_ENV=local: reading SQS event from stdin")
		payload, err := io.ReadAll(os.Stdin)
		if err != nil {
			logger.Error("failed to read stdin", "error", err)
			os.Exit(1)
		}
		var sqsEvent events.SQSEvent
		if err := json.Unmarshal(payload, &sqsEvent); err != nil {
			logger.Error("failed to parse stdin as SQS event", "error", err)
			os.Exit(1)
		}
		response, err := handler.Handle(ctx, sqsEvent)
		if err != nil {
			logger.Error("handler execution failed", "error", err)
			os.Exit(1)
		}
		logger.Info("handler execution completed",
			"records_processed", len(sqsEvent.Records),
			"failures", len(response.BatchItemFailures),
		)
		return
	}

	lambda.Start(handler.Handle)
}
