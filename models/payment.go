package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusSuccess PaymentStatus = "success"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusSuccess || s == PaymentStatusFailed
}

const (
	FailureReasonGateway        = "gateway_failed"
	FailureReasonAmountMismatch = "amount_mismatch"
)

// PaymentRecord is one registration payment attempt. Rows are never deleted.
// IssuedCode is set exactly when Status is success.
type PaymentRecord struct {
	ID               uint           `json:"-" gorm:"primaryKey"`
	Reference        string         `json:"reference" gorm:"type:varchar(100);uniqueIndex;not null"`
	Provider         string         `json:"provider" gorm:"type:varchar(20);not null"`
	Email            string         `json:"email" gorm:"type:varchar(255);index;not null"`
	Phone            string         `json:"phone,omitempty" gorm:"type:varchar(32)"`
	Amount           int64          `json:"amount" gorm:"not null"` // kobo
	Currency         string         `json:"currency" gorm:"type:varchar(3);not null"`
	Status           PaymentStatus  `json:"status" gorm:"type:varchar(20);index;not null;default:'pending'"`
	FailureReason    string         `json:"failure_reason,omitempty" gorm:"type:varchar(32)"`
	GatewayStatus    string         `json:"gateway_status,omitempty" gorm:"type:varchar(32)"`
	IssuedCode       *string        `json:"issued_code,omitempty" gorm:"type:varchar(32);uniqueIndex"`
	CodeCanonical    bool           `json:"code_canonical"`
	CandidateID      *uuid.UUID     `json:"candidate_id,omitempty" gorm:"type:uuid;index"`
	CandidateName    string         `json:"candidate_name" gorm:"type:varchar(255)"`
	StateID          int            `json:"state_id" gorm:"column:state_id"`
	LGAID            int            `json:"lga_id" gorm:"column:lga_id"`
	SchoolID         int            `json:"school_id" gorm:"column:school_id;index"`
	CredentialHash   string         `json:"-" gorm:"type:varchar(100)"`
	AuthorizationURL string         `json:"authorization_url,omitempty" gorm:"type:varchar(1024)"`
	Metadata         datatypes.JSON `json:"metadata,omitempty" gorm:"type:jsonb"`
	VerifiedAt       *time.Time     `json:"verified_at,omitempty"`
	CreatedAt        time.Time      `json:"created_at" gorm:"autoCreateTime;index"`
	UpdatedAt        time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
}

func (PaymentRecord) TableName() string { return "payment_records" }

// Code returns the issued code or "" while none is set.
func (p *PaymentRecord) Code() string {
	if p.IssuedCode == nil {
		return ""
	}
	return *p.IssuedCode
}

// PaymentOutcome is what both trigger paths report back for a reference.
type PaymentOutcome struct {
	Reference     string        `json:"reference"`
	Status        PaymentStatus `json:"status"`
	Code          string        `json:"code,omitempty"`
	Canonical     bool          `json:"canonical,omitempty"`
	CandidateID   *uuid.UUID    `json:"candidate_id,omitempty"`
	Email         string        `json:"email"`
	Amount        int64         `json:"amount"`
	Currency      string        `json:"currency"`
	FailureReason string        `json:"failure_reason,omitempty"`
	Replay        bool          `json:"-"`
	RedirectURL   string        `json:"redirect_url,omitempty"`
}

// OutcomeOf snapshots a record as an outcome.
func OutcomeOf(p *PaymentRecord, replay bool) *PaymentOutcome {
	return &PaymentOutcome{
		Reference:     p.Reference,
		Status:        p.Status,
		Code:          p.Code(),
		Canonical:     p.CodeCanonical,
		CandidateID:   p.CandidateID,
		Email:         p.Email,
		Amount:        p.Amount,
		Currency:      p.Currency,
		FailureReason: p.FailureReason,
		Replay:        replay,
	}
}
