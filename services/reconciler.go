package services

import (
	"context"
	"errors"
	"time"

	"github.com/Maddyahamco00/Nigeria-bece-sub000/apperrors"
	"github.com/Maddyahamco00/Nigeria-bece-sub000/models"
	"github.com/Maddyahamco00/Nigeria-bece-sub000/repository"
	"go.uber.org/zap"
)

// ReconcileResult is the outcome of re-verifying one pending payment.
type ReconcileResult struct {
	Reference string
	Status    models.PaymentStatus
	Code      string
	Err       error
}

// Reconciler settles payments whose webhook never arrived and whose payer
// never came back to the verify page.
type Reconciler struct {
	payments repository.PaymentRepository
	settler  PaymentService
	minAge   time.Duration
	maxAge   time.Duration
	limit    int
	now      func() time.Time
	logger   *zap.Logger
}

func NewReconciler(payments repository.PaymentRepository, settler PaymentService, minAge, maxAge time.Duration, limit int, logger *zap.Logger) *Reconciler {
	if limit <= 0 {
		limit = 100
	}
	return &Reconciler{
		payments: payments,
		settler:  settler,
		minAge:   minAge,
		maxAge:   maxAge,
		limit:    limit,
		now:      time.Now,
		logger:   logger,
	}
}

// RunOnce re-verifies pending payments created between maxAge and minAge ago.
// A failure on one reference does not stop the pass.
func (r *Reconciler) RunOnce(ctx context.Context) ([]ReconcileResult, error) {
	now := r.now()
	pending, err := r.payments.ListPending(ctx, now.Add(-r.minAge), now.Add(-r.maxAge), r.limit)
	if err != nil {
		return nil, err
	}

	results := make([]ReconcileResult, 0, len(pending))
	for _, p := range pending {
		if ctx.Err() != nil {
			break
		}
		res := ReconcileResult{Reference: p.Reference, Status: models.PaymentStatusPending}
		out, err := r.settler.Settle(ctx, p.Reference)
		switch {
		case err == nil:
			res.Status = out.Status
			res.Code = out.Code
		case errors.Is(err, apperrors.ErrPaymentPending):
		default:
			res.Err = err
			r.logger.Warn("reconcile failed", zap.String("reference", p.Reference), zap.Error(err))
		}
		results = append(results, res)
	}

	r.logger.Info("reconcile pass finished", zap.Int("checked", len(results)))
	return results, nil
}

// Start runs RunOnce every interval until ctx is cancelled.
func (r *Reconciler) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.RunOnce(ctx); err != nil {
				r.logger.Error("reconcile pass failed", zap.Error(err))
			}
		}
	}
}
