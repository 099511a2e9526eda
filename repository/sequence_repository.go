package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// SequenceRepository hands out per-school sequence numbers.
type SequenceRepository interface {
	Next(ctx context.Context, schoolID int) (int64, error)
}

type GormSequenceRepository struct {
	db *gorm.DB
}

func NewGormSequenceRepository(db *gorm.DB) SequenceRepository {
	return &GormSequenceRepository{db: db}
}

// The first allocation for a school seeds the counter from candidates that
// already hold a registration number; later ones increment under the row lock
// ON CONFLICT takes, so concurrent callers always see distinct values.
const nextSequenceSQL = `INSERT INTO school_sequences (school_id, last_value, updated_at)
VALUES (?, (SELECT COUNT(*) FROM candidates WHERE school_id = ? AND registration_number IS NOT NULL) + 1, NOW())
ON CONFLICT (school_id) DO UPDATE SET last_value = school_sequences.last_value + 1, updated_at = NOW()
RETURNING last_value`

func (r *GormSequenceRepository) Next(ctx context.Context, schoolID int) (int64, error) {
	var next int64
	if err := r.db.WithContext(ctx).Raw(nextSequenceSQL, schoolID, schoolID).Scan(&next).Error; err != nil {
		return 0, fmt.Errorf("allocate sequence for school %d: %w", schoolID, err)
	}
	if next <= 0 {
		return 0, fmt.Errorf("allocate sequence for school %d: no value returned", schoolID)
	}
	return next, nil
}
