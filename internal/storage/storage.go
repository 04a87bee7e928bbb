// internal/storage/storage.go
package storage

import (
	"context"
	"time"

	"commission-engine/internal/domain"
)

type RuleStorage interface {
	UpsertActiveRule(ctx context.Context, rule domain.CommissionRule) (domain.CommissionRule, error)
	DeleteRule(ctx context.Context, id int64) error
	GetRule(ctx context.Context, id int64) (*domain.CommissionRule, error)
	EligibleRules(ctx context.Context, productID, supplierID, categoryID int64) ([]domain.CommissionRule, error)
	ActiveRulesForSupplier(ctx context.Context, supplierID int64) ([]domain.CommissionRule, error)
	ListRules(ctx context.Context, supplierID *int64) ([]domain.CommissionRule, error)
}

type SaleStorage interface {
	InsertSaleRecord(ctx context.Context, record domain.SaleRecord) error
	SalesForSupplier(ctx context.Context, supplierID int64, from, to time.Time) ([]domain.SaleRecord, error)
}

type ProductStorage interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
}
