package models

import "time"

const (
	EventPaymentSucceeded = "payment_succeeded"
	EventPaymentFailed    = "payment_failed"
)

// PaymentEvent is published after a winning transition, never on replay.
type PaymentEvent struct {
	Type          string    `json:"type"`
	Reference     string    `json:"reference"`
	Email         string    `json:"email"`
	Amount        int64     `json:"amount"` // smallest currency unit
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	Code          string    `json:"code,omitempty"`
	CandidateID   string    `json:"candidate_id,omitempty"`
	SchoolID      int       `json:"school_id,omitempty"`
	FailureReason string    `json:"failure_reason,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}
