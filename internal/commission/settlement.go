// internal/commission/settlement.go
package commission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"commission-engine/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ComputeSplit derives the commission/net split for one sale. The product
// gross × rate is exact (rate is a percentage, so a shift by two digits);
// the commission is then rounded half-to-even at two decimals and the net is
// whatever remains, so commission + net always reconciles to gross exactly.
func ComputeSplit(gross, rate decimal.Decimal) (commission, net decimal.Decimal) {
	commission = gross.Mul(rate).Shift(-2).RoundBank(2)
	net = gross.Sub(commission)
	return commission, net
}

// RuleSource yields the active rules that could apply to one sale.
type RuleSource interface {
	EligibleRules(ctx context.Context, productID, supplierID, categoryID int64) ([]domain.CommissionRule, error)
}

// SaleLedger persists settlement records append-only.
type SaleLedger interface {
	InsertSaleRecord(ctx context.Context, record domain.SaleRecord) error
}

// Settler resolves a rate and freezes the resulting split onto a new
// SaleRecord. Records are written exactly once and never recomputed.
type Settler struct {
	rules    RuleSource
	ledger   SaleLedger
	resolver *Resolver
	now      func() time.Time
	newID    func() uuid.UUID
}

func NewSettler(rules RuleSource, ledger SaleLedger, now func() time.Time) *Settler {
	if now == nil {
		now = time.Now
	}
	return &Settler{
		rules:    rules,
		ledger:   ledger,
		resolver: NewResolver(now),
		now:      now,
		newID:    uuid.New,
	}
}

// Settle resolves the applicable rate for the product's current
// category/supplier and writes the immutable sale record. When no rule is
// eligible the settlement fails unless the caller passed an explicit
// defaultRate; a default settles with scope "fallback" and no rule pointer.
func (s *Settler) Settle(ctx context.Context, product domain.Product, gross decimal.Decimal, defaultRate *decimal.Decimal) (domain.SaleRecord, error) {
	if gross.Sign() <= 0 {
		return domain.SaleRecord{}, domain.NewValidationError("gross_amount", "must be positive")
	}
	gross = gross.Round(2)

	rules, err := s.rules.EligibleRules(ctx, product.ID, product.SupplierID, product.CategoryID)
	if err != nil {
		return domain.SaleRecord{}, fmt.Errorf("load rules: %w", err)
	}

	res, err := s.resolver.Resolve(product.ID, product.SupplierID, product.CategoryID, rules)
	if err != nil {
		if !errors.Is(err, domain.ErrNoApplicableRule) || defaultRate == nil {
			return domain.SaleRecord{}, err
		}
		res = Resolution{Rate: defaultRate.Round(2), Scope: domain.ScopeFallback}
	}

	commission, net := ComputeSplit(gross, res.Rate)
	record := domain.SaleRecord{
		ID:               s.newID(),
		ProductID:        product.ID,
		SupplierID:       product.SupplierID,
		CategoryID:       product.CategoryID,
		GrossAmount:      gross,
		ResolvedRate:     res.Rate,
		CommissionAmount: commission,
		NetAmount:        net,
		ResolvedScope:    res.Scope,
		SettledAt:        s.now(),
	}
	if res.Scope != domain.ScopeFallback {
		ruleID := res.RuleID
		record.RuleID = &ruleID
	}

	if err := s.ledger.InsertSaleRecord(ctx, record); err != nil {
		return domain.SaleRecord{}, fmt.Errorf("persist sale record: %w", err)
	}

	slog.Info("Sale settled",
		"sale_id", record.ID,
		"product_id", record.ProductID,
		"supplier_id", record.SupplierID,
		"rate", record.ResolvedRate,
		"scope", record.ResolvedScope,
		"commission", record.CommissionAmount,
	)
	return record, nil
}
