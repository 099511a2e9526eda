package providers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Maddyahamco00/Nigeria-bece-sub000/apperrors"
	"github.com/Maddyahamco00/Nigeria-bece-sub000/models"
)

// PaystackGateway talks to the Paystack transaction API. Webhooks are signed
// with HMAC-SHA512 of the raw body keyed by the secret key.
type PaystackGateway struct {
	secretKey  string
	baseURL    string
	httpClient *http.Client
}

func NewPaystackGateway(secretKey, baseURL string, timeout time.Duration) *PaystackGateway {
	return &PaystackGateway{
		secretKey:  secretKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (p *PaystackGateway) Name() string { return "paystack" }

func (p *PaystackGateway) SignatureHeader() string { return "X-Signature" }

// ---- Paystack API request/response structs ----

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type paystackInitRequest struct {
	Email       string                 `json:"email"`
	Amount      int64                  `json:"amount"`
	Currency    string                 `json:"currency,omitempty"`
	CallbackURL string                 `json:"callback_url,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

type paystackInitData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type paystackTransaction struct {
	Reference string          `json:"reference"`
	Status    string          `json:"status"`
	Amount    int64           `json:"amount"`
	Currency  string          `json:"currency"`
	PaidAt    string          `json:"paid_at"`
	Metadata  json.RawMessage `json:"metadata"`
	Customer  struct {
		Email string `json:"email"`
	} `json:"customer"`
}

type paystackWebhook struct {
	Event string              `json:"event"`
	Data  paystackTransaction `json:"data"`
}

func (p *PaystackGateway) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("paystack initialize: amount must be positive: %w", apperrors.ErrGatewayRejected)
	}
	var data paystackInitData
	err := p.doRequest(ctx, http.MethodPost, "/transaction/initialize", paystackInitRequest{
		Email:       req.Email,
		Amount:      req.Amount,
		Currency:    req.Currency,
		CallbackURL: req.CallbackURL,
		Metadata:    req.Metadata,
	}, &data)
	if err != nil {
		return nil, fmt.Errorf("paystack initialize: %w", err)
	}
	if data.Reference == "" || data.AuthorizationURL == "" {
		return nil, fmt.Errorf("paystack initialize: incomplete response: %w", apperrors.ErrGatewayRejected)
	}
	return &InitializeResult{
		AuthorizationURL: data.AuthorizationURL,
		Reference:        data.Reference,
		AccessCode:       data.AccessCode,
	}, nil
}

func (p *PaystackGateway) Verify(ctx context.Context, reference string) (*Verification, error) {
	var tx paystackTransaction
	path := "/transaction/verify/" + url.PathEscape(reference)
	if err := p.doRequest(ctx, http.MethodGet, path, nil, &tx); err != nil {
		return nil, fmt.Errorf("paystack verify %s: %w", reference, err)
	}
	if tx.Reference != reference {
		return nil, fmt.Errorf("paystack verify %s: response is for %q: %w", reference, tx.Reference, apperrors.ErrGatewayRejected)
	}
	return &Verification{
		Reference:     tx.Reference,
		Status:        normalisePaystackStatus(tx.Status),
		RawStatus:     tx.Status,
		Amount:        tx.Amount,
		Currency:      tx.Currency,
		CustomerEmail: tx.Customer.Email,
		Metadata:      decodeMetadata(tx.Metadata),
		PaidAt:        parsePaidAt(tx.PaidAt),
	}, nil
}

func (p *PaystackGateway) ValidateSignature(payload []byte, header string) bool {
	if header == "" || p.secretKey == "" {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(header))
	if err != nil {
		return false
	}
	mac := hmac.New(sha512.New, []byte(p.secretKey))
	mac.Write(payload)
	return hmac.Equal(got, mac.Sum(nil))
}

func (p *PaystackGateway) ParseEvent(payload []byte) (*models.GatewayEvent, error) {
	var wh paystackWebhook
	if err := json.Unmarshal(payload, &wh); err != nil {
		return nil, fmt.Errorf("paystack event: %v: %w", err, apperrors.ErrInvalidInput)
	}
	if wh.Event == "" {
		return nil, fmt.Errorf("paystack event: missing event type: %w", apperrors.ErrInvalidInput)
	}
	return &models.GatewayEvent{
		EventType:     wh.Event,
		Reference:     wh.Data.Reference,
		Amount:        wh.Data.Amount,
		GatewayStatus: wh.Data.Status,
		CustomerEmail: wh.Data.Customer.Email,
		Metadata:      decodeMetadata(wh.Data.Metadata),
		Actionable:    strings.HasPrefix(wh.Event, "charge.") && wh.Data.Reference != "",
	}, nil
}

// ---- HTTP helper ----

// doRequest maps transport failures and 5xx to ErrGatewayUnreachable, 404 to
// ErrReferenceUnknownAtGateway and any other non-2xx or status=false
// envelope to ErrGatewayRejected.
func (p *PaystackGateway) doRequest(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrGatewayUnreachable, err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", apperrors.ErrGatewayUnreachable, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", apperrors.ErrGatewayUnreachable, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", apperrors.ErrReferenceUnknownAtGateway, envelopeMessage(respBytes))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w (status %d): %s", apperrors.ErrGatewayRejected, resp.StatusCode, envelopeMessage(respBytes))
	}

	var env paystackEnvelope
	if err := json.Unmarshal(respBytes, &env); err != nil {
		return fmt.Errorf("%w: decode response: %v", apperrors.ErrGatewayUnreachable, err)
	}
	if !env.Status {
		return fmt.Errorf("%w: %s", apperrors.ErrGatewayRejected, env.Message)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("%w: decode response data: %v", apperrors.ErrGatewayUnreachable, err)
		}
	}
	return nil
}

func envelopeMessage(b []byte) string {
	var env paystackEnvelope
	if err := json.Unmarshal(b, &env); err == nil && env.Message != "" {
		return env.Message
	}
	return string(b)
}

func normalisePaystackStatus(s string) string {
	switch strings.ToLower(s) {
	case "success":
		return StatusSuccess
	case "failed":
		return StatusFailed
	case "reversed":
		return StatusReversed
	case "abandoned":
		return StatusAbandoned
	default:
		return StatusPending
	}
}

func parsePaidAt(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

// Paystack sends metadata as an object, a JSON string or "".
func decodeMetadata(raw json.RawMessage) map[string]interface{} {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err == nil {
		return m
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && s != "" {
		if err := json.Unmarshal([]byte(s), &m); err == nil {
			return m
		}
	}
	return nil
}
