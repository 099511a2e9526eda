package models

import (
	"time"

	"github.com/google/uuid"
)

type CandidatePaymentStatus string

const (
	CandidatePaymentPending CandidatePaymentStatus = "pending"
	CandidatePaymentPaid    CandidatePaymentStatus = "paid"
)

// Candidate is a registered exam-taker. RegistrationNumber is immutable once set.
type Candidate struct {
	ID                 uuid.UUID              `json:"id" gorm:"type:uuid;primaryKey"`
	Name               string                 `json:"name" gorm:"type:varchar(255);not null"`
	Email              string                 `json:"email,omitempty" gorm:"type:varchar(255);index"`
	Phone              string                 `json:"phone,omitempty" gorm:"type:varchar(32)"`
	StateID            int                    `json:"state_id" gorm:"column:state_id"`
	LGAID              int                    `json:"lga_id" gorm:"column:lga_id"`
	SchoolID           int                    `json:"school_id" gorm:"column:school_id;index"`
	RegistrationNumber *string                `json:"registration_number,omitempty" gorm:"type:varchar(32);uniqueIndex"`
	PaymentStatus      CandidatePaymentStatus `json:"payment_status" gorm:"type:varchar(20);not null;default:'pending'"`
	PaymentReference   *string                `json:"payment_reference,omitempty" gorm:"type:varchar(100);uniqueIndex"`
	CredentialHash     string                 `json:"-" gorm:"type:varchar(100)"`
	CreatedAt          time.Time              `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt          time.Time              `json:"updated_at" gorm:"autoUpdateTime"`
}

func (Candidate) TableName() string { return "candidates" }
