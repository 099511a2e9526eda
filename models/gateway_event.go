package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// GatewayEvent is a parsed provider notification. It is only trusted as a
// hint: the orchestrator re-verifies the reference with the gateway.
type GatewayEvent struct {
	EventType     string
	Reference     string
	Amount        int64
	GatewayStatus string
	CustomerEmail string
	Metadata      map[string]interface{}
	// Actionable is false for event types that carry no payment transition.
	Actionable bool
}

const (
	EventOutcomeReceived  = "received"
	EventOutcomeProcessed = "processed"
	EventOutcomeReplayed  = "replayed"
	EventOutcomeIgnored   = "ignored"
	EventOutcomeRejected  = "rejected"
	EventOutcomeError     = "error"
)

// GatewayEventLog is the audit trail of every signature-valid webhook.
// Webhooks that fail signature checks are never written.
type GatewayEventLog struct {
	ID          uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	Provider    string         `json:"provider" gorm:"type:varchar(20);not null"`
	EventType   string         `json:"event_type" gorm:"type:varchar(64);not null"`
	Reference   string         `json:"reference" gorm:"type:varchar(100);index"`
	Payload     datatypes.JSON `json:"payload" gorm:"type:jsonb"`
	Outcome     string         `json:"outcome" gorm:"type:varchar(20);not null"`
	Error       string         `json:"error,omitempty" gorm:"type:text"`
	ReceivedAt  time.Time      `json:"received_at" gorm:"not null"`
	ProcessedAt *time.Time     `json:"processed_at,omitempty"`
}

func (GatewayEventLog) TableName() string { return "gateway_event_logs" }
