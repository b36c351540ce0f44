package types

// DigestJob is the SQS payload enqueued by the homeserver's push pipeline
// when a recipient's pending notifications are due for an email digest.
// JSON tags use snake_case to match the producer's wire format.
type DigestJob struct {
	// JobID correlates the job across logs, metrics, and provider tags.
	JobID string `json:"job_id"`

	// Recipient identity and delivery target. The pushkey for an email
	// pusher is the destination address itself.
	AppID        string `json:"app_id" validate:"required"`
	UserID       string `json:"user_id" validate:"required"`
	EmailAddress string `json:"email_address" validate:"required,email"`

	// Batch is the flat list of pending notifications, possibly spanning
	// many rooms and possibly containing duplicates.
	Batch []NotificationRecord `json:"batch" validate:"required,min=1,dive"`

	// Reason names the notification that made this digest due.
	Reason DigestReason `json:"reason" validate:"required"`

	// RetryCount carries retry state across the SQS publish/consume cycle.
	// Incremented by the publisher on transient failures before re-publishing.
	RetryCount int `json:"retry_count"`

	// TraceID for correlation with upstream logs.
	TraceID string `json:"trace_id"`
}
