package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Maddyahamco00/Nigeria-bece-sub000/apperrors"
	"github.com/Maddyahamco00/Nigeria-bece-sub000/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CandidateRepository reads and writes candidates. Lookups return
// gorm.ErrRecordNotFound when nothing matches.
type CandidateRepository interface {
	Create(ctx context.Context, c *models.Candidate) error
	FindByPaymentReference(ctx context.Context, reference string) (*models.Candidate, error)
	FindUnpaidByEmail(ctx context.Context, email string) (*models.Candidate, error)
	FindByRegistrationNumber(ctx context.Context, code string) (*models.Candidate, error)
	// MarkPaid touches payment fields only, and only while the candidate is unpaid.
	MarkPaid(ctx context.Context, id uuid.UUID, code, reference string) error
}

type GormCandidateRepository struct {
	db *gorm.DB
}

func NewGormCandidateRepository(db *gorm.DB) CandidateRepository {
	return &GormCandidateRepository{db: db}
}

func (r *GormCandidateRepository) Create(ctx context.Context, c *models.Candidate) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create candidate: %w", apperrors.ErrSequenceAllocationConflict)
		}
		return fmt.Errorf("create candidate: %w", err)
	}
	return nil
}

func (r *GormCandidateRepository) FindByPaymentReference(ctx context.Context, reference string) (*models.Candidate, error) {
	var c models.Candidate
	if err := r.db.WithContext(ctx).Where("payment_reference = ?", reference).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// FindUnpaidByEmail returns the oldest pending candidate for email that is
// not already bound to another payment.
func (r *GormCandidateRepository) FindUnpaidByEmail(ctx context.Context, email string) (*models.Candidate, error) {
	var c models.Candidate
	err := r.db.WithContext(ctx).
		Where("email = ? AND payment_status = ? AND payment_reference IS NULL", email, models.CandidatePaymentPending).
		Order("created_at ASC").
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *GormCandidateRepository) FindByRegistrationNumber(ctx context.Context, code string) (*models.Candidate, error) {
	var c models.Candidate
	if err := r.db.WithContext(ctx).Where("registration_number = ?", code).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *GormCandidateRepository) MarkPaid(ctx context.Context, id uuid.UUID, code, reference string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Candidate{}).
		Where("id = ? AND payment_status = ?", id, models.CandidatePaymentPending).
		Updates(map[string]interface{}{
			"payment_status":      models.CandidatePaymentPaid,
			"registration_number": code,
			"payment_reference":   reference,
			"updated_at":          time.Now(),
		})
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return fmt.Errorf("mark candidate %s paid: %w", id, apperrors.ErrSequenceAllocationConflict)
		}
		return fmt.Errorf("mark candidate %s paid: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("mark candidate %s paid: %w", id, apperrors.ErrAlreadyFinalized)
	}
	return nil
}
