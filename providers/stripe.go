package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Maddyahamco00/Nigeria-bece-sub000/apperrors"
	"github.com/Maddyahamco00/Nigeria-bece-sub000/models"
	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"
	"github.com/stripe/stripe-go/v80/webhook"
)

// StripeGateway uses a Checkout Session per payment; the session ID is the
// payment reference.
type StripeGateway struct {
	api        *client.API
	webhookKey string
}

func NewStripeGateway(secretKey, webhookKey string, backends *stripe.Backends) *StripeGateway {
	return &StripeGateway{
		api:        client.New(secretKey, backends),
		webhookKey: webhookKey,
	}
}

func (g *StripeGateway) Name() string { return "stripe" }

func (g *StripeGateway) SignatureHeader() string { return "Stripe-Signature" }

func (g *StripeGateway) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		CustomerEmail: stripe.String(req.Email),
		SuccessURL:    stripe.String(withReferencePlaceholder(req.CallbackURL)),
		CancelURL:     stripe.String(req.CallbackURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(req.Currency)),
				UnitAmount: stripe.Int64(req.Amount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("BECE registration fee"),
				},
			},
			Quantity: stripe.Int64(1),
		}},
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, fmt.Sprint(v))
	}

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe initialize: %w", classifyStripeError(err))
	}
	return &InitializeResult{AuthorizationURL: sess.URL, Reference: sess.ID}, nil
}

func (g *StripeGateway) Verify(ctx context.Context, reference string) (*Verification, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := g.api.CheckoutSessions.Get(reference, params)
	if err != nil {
		return nil, fmt.Errorf("stripe verify %s: %w", reference, classifyStripeError(err))
	}
	return sessionVerification(sess), nil
}

func (g *StripeGateway) ValidateSignature(payload []byte, header string) bool {
	if header == "" || g.webhookKey == "" {
		return false
	}
	return webhook.ValidatePayload(payload, header, g.webhookKey) == nil
}

func (g *StripeGateway) ParseEvent(payload []byte) (*models.GatewayEvent, error) {
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("stripe event: %v: %w", err, apperrors.ErrInvalidInput)
	}
	out := &models.GatewayEvent{EventType: string(event.Type)}

	switch event.Type {
	case "checkout.session.completed",
		"checkout.session.async_payment_succeeded",
		"checkout.session.async_payment_failed",
		"checkout.session.expired":
	default:
		return out, nil
	}
	if event.Data == nil {
		return nil, fmt.Errorf("stripe event %s: missing data: %w", event.ID, apperrors.ErrInvalidInput)
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("stripe event %s: %v: %w", event.ID, err, apperrors.ErrInvalidInput)
	}
	v := sessionVerification(&sess)
	out.Reference = sess.ID
	out.Amount = v.Amount
	out.GatewayStatus = v.RawStatus
	out.CustomerEmail = v.CustomerEmail
	out.Metadata = v.Metadata
	out.Actionable = sess.ID != ""
	return out, nil
}

func sessionVerification(sess *stripe.CheckoutSession) *Verification {
	status := StatusPending
	switch {
	case sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid:
		status = StatusSuccess
	case sess.Status == stripe.CheckoutSessionStatusExpired:
		status = StatusFailed
	}

	email := sess.CustomerEmail
	if sess.CustomerDetails != nil && sess.CustomerDetails.Email != "" {
		email = sess.CustomerDetails.Email
	}

	var meta map[string]interface{}
	if len(sess.Metadata) > 0 {
		meta = make(map[string]interface{}, len(sess.Metadata))
		for k, v := range sess.Metadata {
			meta[k] = v
		}
	}

	return &Verification{
		Reference:     sess.ID,
		Status:        status,
		RawStatus:     string(sess.PaymentStatus),
		Amount:        sess.AmountTotal,
		Currency:      strings.ToUpper(string(sess.Currency)),
		CustomerEmail: email,
		Metadata:      meta,
	}
}

func classifyStripeError(err error) error {
	var se *stripe.Error
	if !errors.As(err, &se) {
		return fmt.Errorf("%w: %v", apperrors.ErrGatewayUnreachable, err)
	}
	switch {
	case se.HTTPStatusCode == 0 || se.HTTPStatusCode >= 500:
		return fmt.Errorf("%w: %s", apperrors.ErrGatewayUnreachable, se.Msg)
	case se.HTTPStatusCode == 404 || se.Code == stripe.ErrorCodeResourceMissing:
		return fmt.Errorf("%w: %s", apperrors.ErrReferenceUnknownAtGateway, se.Msg)
	default:
		return fmt.Errorf("%w: %s", apperrors.ErrGatewayRejected, se.Msg)
	}
}

func withReferencePlaceholder(callback string) string {
	sep := "?"
	if strings.Contains(callback, "?") {
		sep = "&"
	}
	return callback + sep + "reference={CHECKOUT_SESSION_ID}"
}
