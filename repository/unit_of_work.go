package repository

import (
	"context"

	"gorm.io/gorm"
)

// TxStores are the stores bound to one database transaction.
type TxStores struct {
	Payments   PaymentRepository
	Candidates CandidateRepository
}

// UnitOfWork runs fn inside a transaction: it commits when fn returns nil
// and rolls back otherwise.
type UnitOfWork interface {
	Transaction(ctx context.Context, fn func(stores TxStores) error) error
}

type GormUnitOfWork struct {
	db *gorm.DB
}

func NewGormUnitOfWork(db *gorm.DB) UnitOfWork {
	return &GormUnitOfWork{db: db}
}

func (u *GormUnitOfWork) Transaction(ctx context.Context, fn func(stores TxStores) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(TxStores{
			Payments:   NewGormPaymentRepository(tx),
			Candidates: NewGormCandidateRepository(tx),
		})
	})
}
