package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Maddyahamco00/Nigeria-bece-sub000/apperrors"
	"github.com/Maddyahamco00/Nigeria-bece-sub000/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PaymentRepository is the durable store for payment attempts. The two
// Mark methods are conditional updates guarded on status = 'pending' and
// are the only way a record leaves pending.
type PaymentRepository interface {
	Create(ctx context.Context, rec *models.PaymentRecord) error
	FindByReference(ctx context.Context, reference string) (*models.PaymentRecord, error)
	// LockByReference reads the record with a row lock. Only meaningful inside a transaction.
	LockByReference(ctx context.Context, reference string) (*models.PaymentRecord, error)
	MarkSuccess(ctx context.Context, reference, code string, canonical bool, candidateID uuid.UUID) (*models.PaymentRecord, error)
	MarkFailed(ctx context.Context, reference, reason, gatewayStatus string) (*models.PaymentRecord, error)
	ListPending(ctx context.Context, createdBefore, createdAfter time.Time, limit int) ([]models.PaymentRecord, error)
}

// GormPaymentRepository implements PaymentRepository using GORM.
type GormPaymentRepository struct {
	db *gorm.DB
}

func NewGormPaymentRepository(db *gorm.DB) PaymentRepository {
	return &GormPaymentRepository{db: db}
}

func (r *GormPaymentRepository) Create(ctx context.Context, rec *models.PaymentRecord) error {
	if rec.Status == "" {
		rec.Status = models.PaymentStatusPending
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create payment %s: %w", rec.Reference, apperrors.ErrDuplicateReference)
		}
		return fmt.Errorf("create payment %s: %w", rec.Reference, err)
	}
	return nil
}

func (r *GormPaymentRepository) FindByReference(ctx context.Context, reference string) (*models.PaymentRecord, error) {
	return r.find(r.db.WithContext(ctx), reference)
}

func (r *GormPaymentRepository) LockByReference(ctx context.Context, reference string) (*models.PaymentRecord, error) {
	return r.find(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), reference)
}

func (r *GormPaymentRepository) find(q *gorm.DB, reference string) (*models.PaymentRecord, error) {
	var rec models.PaymentRecord
	if err := q.Where("reference = ?", reference).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("payment %s: %w", reference, apperrors.ErrUnknownReference)
		}
		return nil, fmt.Errorf("find payment %s: %w", reference, err)
	}
	return &rec, nil
}

func (r *GormPaymentRepository) MarkSuccess(ctx context.Context, reference, code string, canonical bool, candidateID uuid.UUID) (*models.PaymentRecord, error) {
	now := time.Now()
	return r.transition(ctx, reference, map[string]interface{}{
		"status":         models.PaymentStatusSuccess,
		"issued_code":    code,
		"code_canonical": canonical,
		"candidate_id":   candidateID,
		"gateway_status": "success",
		"verified_at":    now,
		"updated_at":     now,
	})
}

func (r *GormPaymentRepository) MarkFailed(ctx context.Context, reference, reason, gatewayStatus string) (*models.PaymentRecord, error) {
	now := time.Now()
	return r.transition(ctx, reference, map[string]interface{}{
		"status":         models.PaymentStatusFailed,
		"failure_reason": reason,
		"gateway_status": gatewayStatus,
		"verified_at":    now,
		"updated_at":     now,
	})
}

func (r *GormPaymentRepository) transition(ctx context.Context, reference string, updates map[string]interface{}) (*models.PaymentRecord, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PaymentRecord{}).
		Where("reference = ? AND status = ?", reference, models.PaymentStatusPending).
		Updates(updates)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return nil, fmt.Errorf("finalize payment %s: %w", reference, apperrors.ErrSequenceAllocationConflict)
		}
		return nil, fmt.Errorf("finalize payment %s: %w", reference, res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("finalize payment %s: %w", reference, apperrors.ErrAlreadyFinalized)
	}
	return r.FindByReference(ctx, reference)
}

func (r *GormPaymentRepository) ListPending(ctx context.Context, createdBefore, createdAfter time.Time, limit int) ([]models.PaymentRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var recs []models.PaymentRecord
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ? AND created_at > ?", models.PaymentStatusPending, createdBefore, createdAfter).
		Order("created_at ASC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list pending payments: %w", err)
	}
	return recs, nil
}
