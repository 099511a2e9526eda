package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Maddyahamco00/Nigeria-bece-sub000/apperrors"
	"github.com/Maddyahamco00/Nigeria-bece-sub000/models"
	aws_pkg "github.com/Maddyahamco00/Nigeria-bece-sub000/pkg/aws"
	"github.com/Maddyahamco00/Nigeria-bece-sub000/providers"
	"github.com/Maddyahamco00/Nigeria-bece-sub000/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const maxIssueAttempts = 3

// errCandidateTaken means the email-matched candidate was bound by another
// payment between lookup and update. The attempt is retried.
var errCandidateTaken = errors.New("candidate bound by another payment")

// MetricsRecorder is satisfied by *aws.MetricsClient.
type MetricsRecorder interface {
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
	RecordLatency(ctx context.Context, metricName string, d time.Duration, dimensions map[string]string) error
}

// PaymentService is the payment orchestrator. Verify and HandleWebhook are
// the two trigger paths; both converge on the same settlement.
type PaymentService interface {
	Initialize(ctx context.Context, req *models.InitializePaymentRequest) (*models.InitializePaymentResponse, error)
	Verify(ctx context.Context, reference string) (*models.PaymentOutcome, error)
	HandleWebhook(ctx context.Context, payload []byte, signature string) (*models.PaymentOutcome, error)
	Receipt(ctx context.Context, token string) (*models.PaymentOutcome, error)
	// Settle re-verifies one reference without issuing a receipt. Used by the reconciler.
	Settle(ctx context.Context, reference string) (*models.PaymentOutcome, error)
	SignatureHeader() string
}

type PaymentServiceDeps struct {
	Payments      repository.PaymentRepository
	Candidates    repository.CandidateRepository
	Sequences     repository.SequenceRepository
	UnitOfWork    repository.UnitOfWork
	References    repository.ReferenceRepository
	GatewayEvents repository.GatewayEventRepository
	Gateway       providers.Gateway
	Codes         *CodeGenerator
	Receipts      *ReceiptIssuer
	Notifier      NotificationDispatcher
	Events        EventPublisher
	Metrics       MetricsRecorder
	// Locker is optional.
	Locker ReferenceLocker
	Logger *zap.Logger
}

type PaymentSettings struct {
	Currency            string
	RegistrationFeeKobo int64
	CallbackURL         string
	ReceiptURL          string
}

type paymentService struct {
	PaymentServiceDeps
	settings PaymentSettings
	inflight singleflight.Group
}

func NewPaymentService(deps PaymentServiceDeps, settings PaymentSettings) PaymentService {
	if deps.Events == nil {
		deps.Events = NoopEventPublisher{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if settings.Currency == "" {
		settings.Currency = "NGN"
	}
	return &paymentService{PaymentServiceDeps: deps, settings: settings}
}

func (s *paymentService) SignatureHeader() string {
	return s.Gateway.SignatureHeader()
}

// Initialize validates intake, opens a hosted checkout and records the
// pending payment under the gateway-issued reference.
func (s *paymentService) Initialize(ctx context.Context, req *models.InitializePaymentRequest) (*models.InitializePaymentResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := mail.ParseAddress(email); email == "" || err != nil {
		return nil, fmt.Errorf("email %q: %w", req.Email, apperrors.ErrInvalidInput)
	}
	if req.Amount <= 0 {
		return nil, fmt.Errorf("amount must be positive: %w", apperrors.ErrInvalidInput)
	}
	if fee := s.settings.RegistrationFeeKobo; fee > 0 && req.Amount != fee {
		return nil, fmt.Errorf("amount %d does not equal registration fee %d: %w", req.Amount, fee, apperrors.ErrInvalidInput)
	}

	meta := req.Metadata
	if meta.StateID != 0 || meta.LGAID != 0 || meta.SchoolID != 0 {
		if _, err := s.References.FindSchool(ctx, meta.StateID, meta.LGAID, meta.SchoolID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("school %d is not in LGA %d of state %d: %w", meta.SchoolID, meta.LGAID, meta.StateID, apperrors.ErrInvalidInput)
			}
			return nil, fmt.Errorf("validate school: %w", err)
		}
	}

	var credentialHash string
	if req.Password != "" {
		hash, err := HashCredential(req.Password)
		if err != nil {
			return nil, err
		}
		credentialHash = hash
	}

	gatewayMeta := map[string]interface{}{
		"name":      strings.TrimSpace(meta.Name),
		"state_id":  strconv.Itoa(meta.StateID),
		"lga_id":    strconv.Itoa(meta.LGAID),
		"school_id": strconv.Itoa(meta.SchoolID),
	}

	start := time.Now()
	res, err := s.Gateway.Initialize(ctx, providers.InitializeRequest{
		Email:       email,
		Amount:      req.Amount,
		Currency:    s.settings.Currency,
		CallbackURL: s.settings.CallbackURL,
		Metadata:    gatewayMeta,
	})
	s.latency(ctx, aws_pkg.MetricGatewayLatency, time.Since(start), "initialize")
	if err != nil {
		s.Logger.Warn("gateway initialize failed", zap.String("email", email), zap.Error(err))
		return nil, err
	}

	rawMeta, _ := json.Marshal(gatewayMeta)
	rec := &models.PaymentRecord{
		Reference:        res.Reference,
		Provider:         s.Gateway.Name(),
		Email:            email,
		Phone:            strings.TrimSpace(req.Phone),
		Amount:           req.Amount,
		Currency:         s.settings.Currency,
		Status:           models.PaymentStatusPending,
		CandidateName:    strings.TrimSpace(meta.Name),
		StateID:          meta.StateID,
		LGAID:            meta.LGAID,
		SchoolID:         meta.SchoolID,
		CredentialHash:   credentialHash,
		AuthorizationURL: res.AuthorizationURL,
		Metadata:         datatypes.JSON(rawMeta),
	}
	if err := s.Payments.Create(ctx, rec); err != nil {
		return nil, err
	}

	s.count(ctx, aws_pkg.MetricPaymentInitialized, nil)
	s.Logger.Info("payment initialized",
		zap.String("reference", rec.Reference),
		zap.Int64("amount", rec.Amount),
		zap.Int("school_id", rec.SchoolID),
	)
	return &models.InitializePaymentResponse{AuthorizationURL: res.AuthorizationURL, Reference: res.Reference}, nil
}

// Verify is the client path. A successful outcome carries a receipt redirect;
// a failed payment is reported as an error.
func (s *paymentService) Verify(ctx context.Context, reference string) (*models.PaymentOutcome, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, fmt.Errorf("reference is required: %w", apperrors.ErrInvalidInput)
	}

	out, err := s.Settle(ctx, reference)
	if err != nil {
		return nil, err
	}

	if out.Status == models.PaymentStatusFailed {
		if out.FailureReason == models.FailureReasonAmountMismatch {
			return nil, fmt.Errorf("payment %s: %w", reference, apperrors.ErrAmountMismatch)
		}
		return nil, fmt.Errorf("payment %s: %w", reference, apperrors.ErrPaymentFailed)
	}

	token, err := s.Receipts.Issue(reference)
	if err != nil {
		return nil, err
	}
	out.RedirectURL = s.settings.ReceiptURL + "?receipt=" + url.QueryEscape(token)
	return out, nil
}

// HandleWebhook authenticates the raw body before anything else. Nothing is
// persisted for a body that fails the signature check.
func (s *paymentService) HandleWebhook(ctx context.Context, payload []byte, signature string) (*models.PaymentOutcome, error) {
	if !s.Gateway.ValidateSignature(payload, signature) {
		s.Logger.Warn("webhook rejected",
			zap.String("reason", "invalid signature"),
			zap.Int("bytes", len(payload)),
		)
		s.count(ctx, aws_pkg.MetricWebhookRejected, map[string]string{"Reason": "signature"})
		return nil, apperrors.ErrSignatureInvalid
	}

	ev, err := s.Gateway.ParseEvent(payload)
	if err != nil {
		return nil, err
	}

	entry := &models.GatewayEventLog{
		Provider:  s.Gateway.Name(),
		EventType: ev.EventType,
		Reference: ev.Reference,
		Payload:   datatypes.JSON(payload),
		Outcome:   models.EventOutcomeReceived,
	}
	logged := true
	if err := s.GatewayEvents.Create(ctx, entry); err != nil {
		logged = false
		s.Logger.Error("failed to record gateway event", zap.String("reference", ev.Reference), zap.Error(err))
	}

	if !ev.Actionable {
		s.markEvent(ctx, logged, entry, models.EventOutcomeIgnored, nil)
		s.Logger.Info("webhook ignored", zap.String("event", ev.EventType))
		return nil, nil
	}

	out, err := s.Settle(ctx, ev.Reference)
	switch {
	case err == nil && out.Replay:
		s.markEvent(ctx, logged, entry, models.EventOutcomeReplayed, nil)
	case err == nil:
		s.markEvent(ctx, logged, entry, models.EventOutcomeProcessed, nil)
	case errors.Is(err, apperrors.ErrUnknownReference):
		s.Logger.Warn("webhook rejected",
			zap.String("reason", "unknown reference"),
			zap.String("reference", ev.Reference),
		)
		s.count(ctx, aws_pkg.MetricWebhookRejected, map[string]string{"Reason": "unknown_reference"})
		s.markEvent(ctx, logged, entry, models.EventOutcomeRejected, err)
	default:
		s.markEvent(ctx, logged, entry, models.EventOutcomeError, err)
	}
	return out, err
}

func (s *paymentService) Receipt(ctx context.Context, token string) (*models.PaymentOutcome, error) {
	reference, err := s.Receipts.Parse(token)
	if err != nil {
		return nil, err
	}
	rec, err := s.Payments.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	return models.OutcomeOf(rec, false), nil
}

// Settle collapses concurrent callers for one reference inside this process.
// The shared work runs detached from any single caller's cancellation. Only
// the caller whose call did the work sees Replay=false.
func (s *paymentService) Settle(ctx context.Context, reference string) (*models.PaymentOutcome, error) {
	ran := false
	v, err, _ := s.inflight.Do(reference, func() (interface{}, error) {
		ran = true
		return s.settle(context.WithoutCancel(ctx), reference)
	})
	if err != nil {
		return nil, err
	}
	out := *v.(*models.PaymentOutcome)
	if !ran {
		out.Replay = true
	}
	return &out, nil
}

func (s *paymentService) settle(ctx context.Context, reference string) (*models.PaymentOutcome, error) {
	rec, err := s.Payments.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if rec.Status.Terminal() {
		s.count(ctx, aws_pkg.MetricPaymentReplayed, nil)
		return models.OutcomeOf(rec, true), nil
	}

	if s.Locker != nil {
		release, ok, err := s.Locker.Acquire(ctx, reference)
		switch {
		case err != nil:
			s.Logger.Warn("reference lock unavailable, continuing without it", zap.String("reference", reference), zap.Error(err))
		case !ok:
			return nil, fmt.Errorf("payment %s: %w", reference, apperrors.ErrSettlementInProgress)
		default:
			defer release()
		}
	}

	start := time.Now()
	v, err := s.Gateway.Verify(ctx, reference)
	s.latency(ctx, aws_pkg.MetricGatewayLatency, time.Since(start), "verify")
	if err != nil {
		s.Logger.Warn("gateway verify failed, payment stays pending",
			zap.String("reference", reference),
			zap.Error(err),
		)
		return nil, err
	}

	switch v.Status {
	case providers.StatusSuccess:
		if v.Amount != rec.Amount || (v.Currency != "" && !strings.EqualFold(v.Currency, rec.Currency)) {
			s.Logger.Warn("amount mismatch",
				zap.String("reference", reference),
				zap.Int64("recorded", rec.Amount),
				zap.Int64("gateway", v.Amount),
				zap.String("gateway_currency", v.Currency),
			)
			s.count(ctx, aws_pkg.MetricAmountMismatch, nil)
			return s.commitFailure(ctx, rec, models.FailureReasonAmountMismatch, v.RawStatus)
		}
		return s.commitSuccess(ctx, rec)
	case providers.StatusFailed, providers.StatusReversed:
		return s.commitFailure(ctx, rec, models.FailureReasonGateway, v.RawStatus)
	default:
		return nil, fmt.Errorf("payment %s is %q at gateway: %w", reference, v.RawStatus, apperrors.ErrPaymentPending)
	}
}

// commitSuccess resolves the candidate, allocates a sequence for the
// candidate's school, binds the candidate and flips the record in one
// transaction. Sequence numbers are taken outside the transaction and are not
// returned on rollback, so a retry after a code collision moves forward.
func (s *paymentService) commitSuccess(ctx context.Context, rec *models.PaymentRecord) (*models.PaymentOutcome, error) {
	var lastErr error
	for attempt := 1; attempt <= maxIssueAttempts; attempt++ {
		target, err := findBindingCandidate(ctx, s.Candidates, rec)
		if err != nil {
			return nil, err
		}
		state, lga, school := placementOf(rec, target)

		var seq int64
		if school > 0 {
			n, err := s.Sequences.Next(ctx, school)
			if err != nil {
				return nil, err
			}
			seq = n
		}
		code := s.Codes.Generate(state, lga, school, seq)

		var won *models.PaymentRecord
		var candidate *models.Candidate
		err = s.UnitOfWork.Transaction(ctx, func(tx repository.TxStores) error {
			locked, err := tx.Payments.LockByReference(ctx, rec.Reference)
			if err != nil {
				return err
			}
			if locked.Status.Terminal() {
				return apperrors.ErrAlreadyFinalized
			}
			candidate, err = bindCandidate(ctx, tx.Candidates, locked, target, code.Value)
			if err != nil {
				return err
			}
			won, err = tx.Payments.MarkSuccess(ctx, locked.Reference, code.Value, code.Canonical, candidate.ID)
			return err
		})

		switch {
		case err == nil:
			s.afterSuccess(ctx, won, candidate)
			return models.OutcomeOf(won, false), nil
		case errors.Is(err, apperrors.ErrAlreadyFinalized):
			return s.replay(ctx, rec.Reference)
		case errors.Is(err, apperrors.ErrSequenceAllocationConflict), errors.Is(err, errCandidateTaken):
			lastErr = err
			s.count(ctx, aws_pkg.MetricSequenceConflicts, nil)
			s.Logger.Warn("code issuance conflict, retrying",
				zap.String("reference", rec.Reference),
				zap.String("code", code.Value),
				zap.Int("attempt", attempt),
			)
		default:
			return nil, err
		}
	}
	if !errors.Is(lastErr, apperrors.ErrSequenceAllocationConflict) {
		lastErr = fmt.Errorf("%v: %w", lastErr, apperrors.ErrSequenceAllocationConflict)
	}
	return nil, fmt.Errorf("issue code for %s after %d attempts: %w", rec.Reference, maxIssueAttempts, lastErr)
}

// findBindingCandidate returns the candidate already bound to this reference,
// else the oldest unpaid candidate with the payer's email, else nil.
func findBindingCandidate(ctx context.Context, candidates repository.CandidateRepository, rec *models.PaymentRecord) (*models.Candidate, error) {
	c, err := candidates.FindByPaymentReference(ctx, rec.Reference)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if rec.Email == "" {
		return nil, nil
	}
	c, err = candidates.FindUnpaidByEmail(ctx, rec.Email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return c, err
}

// placementOf is the state, LGA and school the code encodes: the bound
// candidate's, or the intake's when a new candidate will be created.
func placementOf(rec *models.PaymentRecord, target *models.Candidate) (state, lga, school int) {
	if target != nil {
		return target.StateID, target.LGAID, target.SchoolID
	}
	return rec.StateID, rec.LGAID, rec.SchoolID
}

// bindCandidate links the payment to the candidate resolved before the code
// was derived. If the binding target changed in the meantime the attempt is
// retried, so the code always matches the bound candidate's school. A new
// candidate is built from the intake captured at initialize. Only payment
// fields of an existing candidate are touched.
func bindCandidate(ctx context.Context, candidates repository.CandidateRepository, rec *models.PaymentRecord, target *models.Candidate, code string) (*models.Candidate, error) {
	c, err := findBindingCandidate(ctx, candidates, rec)
	if err != nil {
		return nil, err
	}
	if !sameCandidate(c, target) {
		return nil, errCandidateTaken
	}

	if c != nil {
		if err := candidates.MarkPaid(ctx, c.ID, code, rec.Reference); err != nil {
			if errors.Is(err, apperrors.ErrAlreadyFinalized) {
				return nil, fmt.Errorf("candidate %s: %w", c.ID, errCandidateTaken)
			}
			return nil, err
		}
		ref := rec.Reference
		c.RegistrationNumber = &code
		c.PaymentStatus = models.CandidatePaymentPaid
		c.PaymentReference = &ref
		return c, nil
	}

	name := rec.CandidateName
	if name == "" {
		name = rec.Email
	}
	ref := rec.Reference
	c = &models.Candidate{
		Name:               name,
		Email:              rec.Email,
		Phone:              rec.Phone,
		StateID:            rec.StateID,
		LGAID:              rec.LGAID,
		SchoolID:           rec.SchoolID,
		RegistrationNumber: &code,
		PaymentStatus:      models.CandidatePaymentPaid,
		PaymentReference:   &ref,
		CredentialHash:     rec.CredentialHash,
	}
	if err := candidates.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func sameCandidate(a, b *models.Candidate) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID && a.StateID == b.StateID && a.LGAID == b.LGAID && a.SchoolID == b.SchoolID
}

func (s *paymentService) commitFailure(ctx context.Context, rec *models.PaymentRecord, reason, gatewayStatus string) (*models.PaymentOutcome, error) {
	won, err := s.Payments.MarkFailed(ctx, rec.Reference, reason, gatewayStatus)
	if errors.Is(err, apperrors.ErrAlreadyFinalized) {
		return s.replay(ctx, rec.Reference)
	}
	if err != nil {
		return nil, err
	}

	s.count(ctx, aws_pkg.MetricPaymentFailed, map[string]string{"Reason": reason})
	s.publishEvent(ctx, models.PaymentEvent{
		Type:          models.EventPaymentFailed,
		Reference:     won.Reference,
		Email:         won.Email,
		Amount:        won.Amount,
		Currency:      won.Currency,
		Status:        string(won.Status),
		SchoolID:      won.SchoolID,
		FailureReason: won.FailureReason,
		Timestamp:     time.Now(),
	})
	s.Logger.Info("payment failed",
		zap.String("reference", won.Reference),
		zap.String("reason", reason),
		zap.String("gateway_status", gatewayStatus),
	)
	return models.OutcomeOf(won, false), nil
}

// replay returns the stored outcome after losing a race to another caller.
func (s *paymentService) replay(ctx context.Context, reference string) (*models.PaymentOutcome, error) {
	rec, err := s.Payments.FindByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if !rec.Status.Terminal() {
		return nil, fmt.Errorf("payment %s: %w", reference, apperrors.ErrSettlementInProgress)
	}
	s.count(ctx, aws_pkg.MetricPaymentReplayed, nil)
	s.Logger.Info("payment replayed", zap.String("reference", reference), zap.String("status", string(rec.Status)))
	return models.OutcomeOf(rec, true), nil
}

// afterSuccess runs only for the caller that won the transition.
func (s *paymentService) afterSuccess(ctx context.Context, rec *models.PaymentRecord, candidate *models.Candidate) {
	s.Logger.Info("payment succeeded",
		zap.String("reference", rec.Reference),
		zap.String("code", rec.Code()),
		zap.Bool("canonical", rec.CodeCanonical),
		zap.String("candidate_id", candidate.ID.String()),
	)

	s.count(ctx, aws_pkg.MetricPaymentSucceeded, nil)
	s.count(ctx, aws_pkg.MetricCodesIssued, nil)
	if !rec.CodeCanonical {
		s.count(ctx, aws_pkg.MetricNonCanonicalCodes, nil)
	}

	if s.Notifier != nil {
		s.Notifier.Notify(ctx, candidate, rec)
	}

	s.publishEvent(ctx, models.PaymentEvent{
		Type:        models.EventPaymentSucceeded,
		Reference:   rec.Reference,
		Email:       rec.Email,
		Amount:      rec.Amount,
		Currency:    rec.Currency,
		Status:      string(rec.Status),
		Code:        rec.Code(),
		CandidateID: candidate.ID.String(),
		SchoolID:    rec.SchoolID,
		Timestamp:   time.Now(),
	})
}

// publishEvent is non-fatal on error.
func (s *paymentService) publishEvent(ctx context.Context, event models.PaymentEvent) {
	if err := s.Events.Publish(ctx, event); err != nil {
		s.Logger.Error("failed to publish payment event",
			zap.String("type", event.Type),
			zap.String("reference", event.Reference),
			zap.Error(err),
		)
	}
}

func (s *paymentService) markEvent(ctx context.Context, logged bool, entry *models.GatewayEventLog, outcome string, cause error) {
	if !logged {
		return
	}
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if err := s.GatewayEvents.UpdateOutcome(ctx, entry.ID, outcome, msg); err != nil {
		s.Logger.Error("failed to update gateway event", zap.String("id", entry.ID.String()), zap.Error(err))
	}
}

func (s *paymentService) count(ctx context.Context, metric string, dims map[string]string) {
	if s.Metrics == nil {
		return
	}
	if err := s.Metrics.RecordCount(ctx, metric, dims); err != nil {
		s.Logger.Debug("metric not recorded", zap.String("metric", metric), zap.Error(err))
	}
}

func (s *paymentService) latency(ctx context.Context, metric string, d time.Duration, op string) {
	if s.Metrics == nil {
		return
	}
	if err := s.Metrics.RecordLatency(ctx, metric, d, map[string]string{"Operation": op, "Provider": s.Gateway.Name()}); err != nil {
		s.Logger.Debug("metric not recorded", zap.String("metric", metric), zap.Error(err))
	}
}
