package repository

import (
	"context"

	"github.com/Maddyahamco00/Nigeria-bece-sub000/models"
	"gorm.io/gorm"
)

// ReferenceRepository reads the state / LGA / school reference data.
type ReferenceRepository interface {
	FindSchool(ctx context.Context, stateID, lgaID, schoolID int) (*models.School, error)
}

type GormReferenceRepository struct {
	db *gorm.DB
}

func NewGormReferenceRepository(db *gorm.DB) ReferenceRepository {
	return &GormReferenceRepository{db: db}
}

// FindSchool only matches when the school sits in the given LGA and state.
func (r *GormReferenceRepository) FindSchool(ctx context.Context, stateID, lgaID, schoolID int) (*models.School, error) {
	var s models.School
	err := r.db.WithContext(ctx).
		Where("id = ? AND lga_id = ? AND state_id = ?", schoolID, lgaID, stateID).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}
