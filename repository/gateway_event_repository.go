package repository

import (
	"context"
	"time"

	"github.com/Maddyahamco00/Nigeria-bece-sub000/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type GatewayEventRepository interface {
	Create(ctx context.Context, e *models.GatewayEventLog) error
	UpdateOutcome(ctx context.Context, id uuid.UUID, outcome, errMsg string) error
}

type GormGatewayEventRepository struct {
	db *gorm.DB
}

func NewGormGatewayEventRepository(db *gorm.DB) GatewayEventRepository {
	return &GormGatewayEventRepository{db: db}
}

func (r *GormGatewayEventRepository) Create(ctx context.Context, e *models.GatewayEventLog) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = time.Now()
	}
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *GormGatewayEventRepository) UpdateOutcome(ctx context.Context, id uuid.UUID, outcome, errMsg string) error {
	return r.db.WithContext(ctx).
		Model(&models.GatewayEventLog{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"outcome":      outcome,
			"error":        errMsg,
			"processed_at": time.Now(),
		}).Error
}
