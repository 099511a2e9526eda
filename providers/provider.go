package providers

import (
	"context"
	"time"

	"github.com/Maddyahamco00/Nigeria-bece-sub000/models"
)

// Normalised gateway statuses. Only Success, Failed and Reversed are terminal.
const (
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusReversed  = "reversed"
	StatusAbandoned = "abandoned"
	StatusPending   = "pending"
)

type InitializeRequest struct {
	Email       string
	Amount      int64 // kobo
	Currency    string
	CallbackURL string
	Metadata    map[string]interface{}
}

type InitializeResult struct {
	AuthorizationURL string
	Reference        string
	AccessCode       string
}

// Verification is the gateway's own view of a transaction.
type Verification struct {
	Reference     string
	Status        string
	RawStatus     string
	Amount        int64
	Currency      string
	CustomerEmail string
	Metadata      map[string]interface{}
	PaidAt        *time.Time
}

// Gateway defines what every payment provider integration must implement.
type Gateway interface {
	Name() string

	// Initialize creates a hosted checkout for the payer.
	Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error)

	// Verify asks the gateway for the authoritative status of reference.
	Verify(ctx context.Context, reference string) (*Verification, error)

	// ValidateSignature checks header against the exact raw request bytes.
	ValidateSignature(payload []byte, header string) bool

	// SignatureHeader is the HTTP header carrying the webhook signature.
	SignatureHeader() string

	// ParseEvent decodes an already-authenticated webhook body.
	ParseEvent(payload []byte) (*models.GatewayEvent, error)
}
