package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	jobmetrics "github.com/quoteflow/quoteflow/internal/jobs"
	"github.com/quoteflow/quoteflow/internal/pricing"
	"github.com/quoteflow/quoteflow/internal/quotes"
)

// Email is an outbound message.
type Email struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers email.
type Mailer interface {
	Send(ctx context.Context, msg Email) error
}

// LogMailer writes emails to the log instead of an SMTP relay.
type LogMailer struct {
	Logger *slog.Logger
}

// Send logs the message.
func (m LogMailer) Send(_ context.Context, msg Email) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("email", slog.String("to", msg.To), slog.String("subject", msg.Subject))
	return nil
}

// QuoteSubmittedJob emails the sales inbox when a client submits a quote.
type QuoteSubmittedJob struct {
	Mailer     Mailer
	AdminEmail string
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
	printer    *message.Printer
}

// NewQuoteSubmittedJob wires dependencies for the notification handler.
func NewQuoteSubmittedJob(mailer Mailer, adminEmail string, logger *slog.Logger, metrics *jobmetrics.Metrics) *QuoteSubmittedJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &QuoteSubmittedJob{
		Mailer:     mailer,
		AdminEmail: adminEmail,
		Logger:     logger,
		Metrics:    metrics,
		printer:    message.NewPrinter(language.English),
	}
}

// Handle processes TaskQuoteSubmitted tasks.
func (j *QuoteSubmittedJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Mailer == nil {
		return errors.New("quote submitted: handler not configured")
	}
	var ev quotes.SubmittedEvent
	if err := json.Unmarshal(t.Payload(), &ev); err != nil {
		return fmt.Errorf("quote submitted: decode payload: %v: %w", err, asynq.SkipRetry)
	}

	tracker := j.Metrics.Track(TaskQuoteSubmitted)
	defer func() { err = tracker.End(err) }()

	logger := j.Logger.With(slog.String("quote_id", ev.QuoteID.String()))
	if err := j.Mailer.Send(ctx, j.compose(ev)); err != nil {
		logger.Error("send quote notification", slog.Any("error", err))
		return err
	}
	j.Metrics.NotificationSent(string(ev.ServiceType))
	logger.Info("quote notification sent", slog.String("service_type", string(ev.ServiceType)))
	return nil
}

func (j *QuoteSubmittedJob) compose(ev quotes.SubmittedEvent) Email {
	var body strings.Builder
	fmt.Fprintf(&body, "Quote %s was submitted on %s.\n\n", ev.QuoteID, ev.SubmittedAt.UTC().Format(time.RFC1123))
	fmt.Fprintf(&body, "Service: %s\n", ev.ServiceType)
	fmt.Fprintf(&body, "One-time: %s\n", j.kes(ev.OneTimeTotal))
	if ev.MonthlyTotal > 0 {
		fmt.Fprintf(&body, "Monthly: %s\n", j.kes(ev.MonthlyTotal))
		fmt.Fprintf(&body, "Yearly: %s\n", j.kes(ev.YearlyTotal))
	}
	fmt.Fprintf(&body, "Catalog: %s\n", ev.CatalogVersion)
	return Email{
		To:      j.AdminEmail,
		Subject: fmt.Sprintf("New %s quote: %s", ev.ServiceType, j.kes(ev.OneTimeTotal)),
		Body:    body.String(),
	}
}

func (j *QuoteSubmittedJob) kes(amount pricing.KES) string {
	return j.printer.Sprintf("KES %d", int64(amount))
}

// Purger removes stale idempotency keys.
type Purger interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// IdempotencyCleanupJob purges expired idempotency keys.
type IdempotencyCleanupJob struct {
	Store   Purger
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle processes TaskIdempotencyCleanup tasks.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Store == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	var payload IdempotencyCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.OlderThan <= 0 {
		return fmt.Errorf("idempotency cleanup: bad payload: %w", asynq.SkipRetry)
	}
	tracker := j.Metrics.Track(TaskIdempotencyCleanup)
	defer func() { err = tracker.End(err) }()

	removed, err := j.Store.Cleanup(ctx, payload.OlderThan)
	if err != nil {
		return err
	}
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("idempotency keys purged", slog.Int64("removed", removed))
	return nil
}
