// Package sender delivers payment receipts to payers over email and SMS.
package sender

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidRecipient is returned before any network call when the address
// or number cannot be used.
var ErrInvalidRecipient = errors.New("invalid recipient")

// SendResult identifies one accepted message at the provider.
type SendResult struct {
	Provider  string
	MessageID string
	SentAt    time.Time
}

// EmailSender sends an HTML email.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, htmlBody string) (SendResult, error)
}

// SMSSender sends a plain-text SMS.
type SMSSender interface {
	SendSMS(ctx context.Context, to, text string) (SendResult, error)
}
