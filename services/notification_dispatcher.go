package services

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/Maddyahamco00/Nigeria-bece-sub000/models"
	aws_pkg "github.com/Maddyahamco00/Nigeria-bece-sub000/pkg/aws"
	"github.com/Maddyahamco00/Nigeria-bece-sub000/repository"
	"github.com/Maddyahamco00/Nigeria-bece-sub000/sender"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

//go:embed templates/*
var templateFS embed.FS

// ErrQueueFull is returned by the in-process queue when the worker is behind.
var ErrQueueFull = errors.New("notification queue full")

// NotificationDispatcher is fire-and-forget from the orchestrator's side.
type NotificationDispatcher interface {
	Notify(ctx context.Context, candidate *models.Candidate, payment *models.PaymentRecord)
}

// NotificationQueue carries jobs from Notify to the delivery worker.
type NotificationQueue interface {
	Enqueue(ctx context.Context, job models.NotificationJob) error
	// Consume blocks until ctx is cancelled.
	Consume(ctx context.Context, handle func(ctx context.Context, job models.NotificationJob) error) error
}

// ChannelQueue is a bounded in-process queue. Buffered jobs are flushed by
// Drain on orderly shutdown and lost on a crash.
type ChannelQueue struct {
	jobs chan models.NotificationJob
}

func NewChannelQueue(size int) *ChannelQueue {
	if size <= 0 {
		size = 256
	}
	return &ChannelQueue{jobs: make(chan models.NotificationJob, size)}
}

func (q *ChannelQueue) Enqueue(_ context.Context, job models.NotificationJob) error {
	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *ChannelQueue) Consume(ctx context.Context, handle func(context.Context, models.NotificationJob) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case job := <-q.jobs:
			_ = handle(ctx, job)
		}
	}
}

// Drain hands every buffered job to handle without waiting for more and
// reports how many it took.
func (q *ChannelQueue) Drain(ctx context.Context, handle func(context.Context, models.NotificationJob) error) int {
	n := 0
	for {
		select {
		case job := <-q.jobs:
			_ = handle(ctx, job)
			n++
		default:
			return n
		}
	}
}

// SQSNotificationQueue survives restarts; used when NOTIFICATION_QUEUE_URL is set.
type SQSNotificationQueue struct {
	queue *aws_pkg.SQSQueue
}

func NewSQSNotificationQueue(queue *aws_pkg.SQSQueue) *SQSNotificationQueue {
	return &SQSNotificationQueue{queue: queue}
}

func (q *SQSNotificationQueue) Enqueue(ctx context.Context, job models.NotificationJob) error {
	b, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal notification job: %w", err)
	}
	return q.queue.SendMessage(ctx, string(b))
}

func (q *SQSNotificationQueue) Consume(ctx context.Context, handle func(context.Context, models.NotificationJob) error) error {
	return q.queue.StartPolling(ctx, func(ctx context.Context, body string) error {
		var job models.NotificationJob
		if err := json.Unmarshal([]byte(body), &job); err != nil {
			// Undecodable jobs are dropped.
			return nil
		}
		return handle(ctx, job)
	})
}

type queuedDispatcher struct {
	queue   NotificationQueue
	metrics MetricsRecorder
	logger  *zap.Logger
}

func NewNotificationDispatcher(queue NotificationQueue, metrics MetricsRecorder, logger *zap.Logger) NotificationDispatcher {
	return &queuedDispatcher{queue: queue, metrics: metrics, logger: logger}
}

func (d *queuedDispatcher) Notify(ctx context.Context, candidate *models.Candidate, payment *models.PaymentRecord) {
	job := models.NotificationJob{
		Reference: payment.Reference,
		Email:     payment.Email,
		Phone:     payment.Phone,
		Name:      payment.CandidateName,
		Code:      payment.Code(),
		Amount:    payment.Amount,
		Currency:  payment.Currency,
		PaidAt:    time.Now(),
	}
	if payment.VerifiedAt != nil {
		job.PaidAt = *payment.VerifiedAt
	}
	if candidate != nil {
		job.CandidateID = candidate.ID.String()
		job.Name = candidate.Name
		if candidate.Phone != "" {
			job.Phone = candidate.Phone
		}
	}

	if err := d.queue.Enqueue(ctx, job); err != nil {
		d.logger.Warn("failed to enqueue notification",
			zap.String("reference", payment.Reference),
			zap.Error(err),
		)
		if d.metrics != nil {
			_ = d.metrics.RecordCount(ctx, aws_pkg.MetricNotificationsFailed, nil)
		}
	}
}

type receiptView struct {
	Name      string
	Email     string
	Code      string
	Reference string
	Amount    string
	Currency  string
	PaidAt    string
}

// NotificationWorker renders and delivers one job: payer receipt, admin
// summary and an optional SMS. Each channel gets exactly one attempt.
type NotificationWorker struct {
	repo       repository.NotificationRepository
	email      sender.EmailSender
	sms        sender.SMSSender
	adminEmail string
	receipt    *template.Template
	admin      *template.Template
	smsBody    *texttemplate.Template
	logger     *zap.Logger
}

// NewNotificationWorker accepts nil senders; that channel is then logged as skipped.
func NewNotificationWorker(
	repo repository.NotificationRepository,
	email sender.EmailSender,
	sms sender.SMSSender,
	adminEmail string,
	logger *zap.Logger,
) (*NotificationWorker, error) {
	receipt, err := template.ParseFS(templateFS, "templates/payment_receipt.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse receipt template: %w", err)
	}
	admin, err := template.ParseFS(templateFS, "templates/admin_summary.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse admin template: %w", err)
	}
	smsBody, err := texttemplate.ParseFS(templateFS, "templates/receipt_sms.txt")
	if err != nil {
		return nil, fmt.Errorf("failed to parse sms template: %w", err)
	}
	return &NotificationWorker{
		repo:       repo,
		email:      email,
		sms:        sms,
		adminEmail: adminEmail,
		receipt:    receipt,
		admin:      admin,
		smsBody:    smsBody,
		logger:     logger,
	}, nil
}

// Run consumes queue until ctx is cancelled.
func (w *NotificationWorker) Run(ctx context.Context, queue NotificationQueue) {
	w.logger.Info("notification worker started")
	if err := queue.Consume(ctx, w.Deliver); err != nil && !errors.Is(err, context.Canceled) {
		w.logger.Error("notification worker stopped", zap.Error(err))
	}
}

// Deliver never returns an error so a queued job is consumed exactly once.
func (w *NotificationWorker) Deliver(ctx context.Context, job models.NotificationJob) error {
	view := receiptView{
		Name:      job.Name,
		Email:     job.Email,
		Code:      job.Code,
		Reference: job.Reference,
		Amount:    FormatMinorUnits(job.Amount),
		Currency:  job.Currency,
		PaidAt:    job.PaidAt.Format("02 Jan 2006 15:04 MST"),
	}

	if job.Email != "" {
		w.sendEmail(ctx, job.Reference, job.Email, models.TemplatePaymentReceipt,
			"Your BECE registration number", w.receipt, view)
	}
	if w.adminEmail != "" {
		w.sendEmail(ctx, job.Reference, w.adminEmail, models.TemplateAdminSummary,
			"BECE payment received: "+job.Reference, w.admin, view)
	}
	if job.Phone != "" {
		w.sendSMS(ctx, job.Reference, job.Phone, view)
	}
	return nil
}

func (w *NotificationWorker) sendEmail(ctx context.Context, reference, to, tmplName, subject string, tmpl *template.Template, view receiptView) {
	entry := &models.NotificationLog{Reference: reference, Recipient: to, Template: tmplName, Channel: models.ChannelEmail}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, view); err != nil {
		w.record(ctx, entry, "", fmt.Errorf("template render failed: %w", err))
		return
	}
	if w.email == nil {
		entry.Status = models.StatusSkipped
		w.record(ctx, entry, "", nil)
		return
	}
	res, err := w.email.SendEmail(ctx, to, subject, buf.String())
	w.record(ctx, entry, res.MessageID, err)
}

func (w *NotificationWorker) sendSMS(ctx context.Context, reference, to string, view receiptView) {
	entry := &models.NotificationLog{Reference: reference, Recipient: to, Template: models.TemplateReceiptSMS, Channel: models.ChannelSMS}

	var buf bytes.Buffer
	if err := w.smsBody.Execute(&buf, view); err != nil {
		w.record(ctx, entry, "", fmt.Errorf("template render failed: %w", err))
		return
	}
	if w.sms == nil {
		entry.Status = models.StatusSkipped
		w.record(ctx, entry, "", nil)
		return
	}
	res, err := w.sms.SendSMS(ctx, to, strings.TrimSpace(buf.String()))
	w.record(ctx, entry, res.MessageID, err)
}

// record fills in the outcome of one attempt and persists it.
func (w *NotificationWorker) record(ctx context.Context, entry *models.NotificationLog, messageID string, sendErr error) {
	switch {
	case sendErr != nil:
		entry.Status = models.StatusFailed
		entry.Error = sendErr.Error()
	case entry.Status == "":
		entry.Status = models.StatusSent
	}

	fields := []zap.Field{
		zap.String("reference", entry.Reference),
		zap.String("template", entry.Template),
		zap.String("channel", entry.Channel),
		zap.String("status", entry.Status),
		zap.String("message_id", messageID),
	}
	if sendErr != nil {
		w.logger.Warn("notification failed", append(fields, zap.Error(sendErr))...)
	} else {
		w.logger.Info("notification processed", fields...)
	}

	if err := w.repo.SaveLog(ctx, entry); err != nil {
		w.logger.Error("failed to save notification log", zap.Error(err))
	}
}

// FormatMinorUnits renders kobo (or cents) as a major-unit string with two
// decimals, e.g. 500000 -> "5,000.00".
func FormatMinorUnits(amount int64) string {
	s := decimal.New(amount, -2).StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := b.String() + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}
