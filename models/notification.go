package models

import "time"

const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"

	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"

	TemplatePaymentReceipt = "payment_receipt"
	TemplateAdminSummary   = "admin_summary"
	TemplateReceiptSMS     = "receipt_sms"
)

// NotificationLog records one delivery attempt.
type NotificationLog struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Reference string    `json:"reference" gorm:"type:varchar(100);index"`
	Recipient string    `json:"recipient" gorm:"type:varchar(255)"`
	Template  string    `json:"template" gorm:"type:varchar(50)"`
	Channel   string    `json:"channel" gorm:"type:varchar(10)"`
	Status    string    `json:"status" gorm:"type:varchar(10)"`
	Error     string    `json:"error,omitempty" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

func (NotificationLog) TableName() string { return "notification_logs" }

// NotificationJob is the queued unit of work for one successful payment.
type NotificationJob struct {
	Reference   string    `json:"reference"`
	CandidateID string    `json:"candidate_id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone,omitempty"`
	Code        string    `json:"code"`
	Amount      int64     `json:"amount"` // kobo
	Currency    string    `json:"currency"`
	PaidAt      time.Time `json:"paid_at"`
}
