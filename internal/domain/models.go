// internal/domain/models.go
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ScopeTier is the granularity at which a commission rule applies.
// Priority during resolution: specific > supplier > category > global.
type ScopeTier string

const (
	ScopeGlobal   ScopeTier = "global"
	ScopeCategory ScopeTier = "category"
	ScopeSupplier ScopeTier = "supplier"
	ScopeSpecific ScopeTier = "specific"

	// ScopeFallback marks a caller-supplied default rate. It never belongs
	// to a stored rule, only to resolutions and sale records.
	ScopeFallback ScopeTier = "fallback"
)

// Rate bounds for commission rules, inclusive.
var (
	MinRate = decimal.RequireFromString("0.1")
	MaxRate = decimal.RequireFromString("15.0")
)

type CommissionRule struct {
	ID         int64           `json:"id"`
	ScopeTier  ScopeTier       `json:"scope_tier"`
	CategoryID *int64          `json:"category_id,omitempty"`
	SupplierID *int64          `json:"supplier_id,omitempty"`
	ProductID  *int64          `json:"product_id,omitempty"`
	Rate       decimal.Decimal `json:"rate"`
	Active     bool            `json:"active"`
	ValidUntil *time.Time      `json:"valid_until,omitempty"`
	Remarks    string          `json:"remarks,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// EligibleAt reports whether the rule may be selected by the resolver:
// it must be active and not past its optional expiry date.
func (r CommissionRule) EligibleAt(now time.Time) bool {
	if !r.Active {
		return false
	}
	if r.ValidUntil != nil && !r.ValidUntil.After(now) {
		return false
	}
	return true
}

// ScopeKey identifies the exact scope the rule occupies. At most one active
// rule may exist per scope key.
func (r CommissionRule) ScopeKey() string {
	switch r.ScopeTier {
	case ScopeGlobal:
		return "global"
	case ScopeCategory:
		return fmt.Sprintf("category:%d", deref(r.CategoryID))
	case ScopeSupplier:
		return fmt.Sprintf("supplier:%d", deref(r.SupplierID))
	case ScopeSpecific:
		if r.ProductID != nil {
			return fmt.Sprintf("specific:product:%d", *r.ProductID)
		}
		return fmt.Sprintf("specific:%d:%d", deref(r.CategoryID), deref(r.SupplierID))
	}
	return string(r.ScopeTier)
}

func deref(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}

// Product is owned by an external catalog; the engine reads it to learn the
// current category/supplier of a product at resolution time.
type Product struct {
	ID         int64           `json:"id"`
	Name       string          `json:"name"`
	CategoryID int64           `json:"category_id"`
	SupplierID int64           `json:"supplier_id"`
	Price      decimal.Decimal `json:"price"`
	Active     bool            `json:"active"`
}

// SaleRecord is the settlement output. Once written it is never updated:
// the resolved rate and the gross/commission/net split are a point-in-time
// snapshot, immune to later rule edits or deletions.
type SaleRecord struct {
	ID               uuid.UUID       `json:"id"`
	ProductID        int64           `json:"product_id"`
	SupplierID       int64           `json:"supplier_id"`
	CategoryID       int64           `json:"category_id"`
	GrossAmount      decimal.Decimal `json:"gross_amount"`
	ResolvedRate     decimal.Decimal `json:"resolved_rate"`
	CommissionAmount decimal.Decimal `json:"commission_amount"`
	NetAmount        decimal.Decimal `json:"net_amount"`
	ResolvedScope    ScopeTier       `json:"resolved_scope"`
	RuleID           *int64          `json:"rule_id,omitempty"`
	SettledAt        time.Time       `json:"settled_at"`
}

// CommissionSummary is computed on demand for dashboards, never stored.
type CommissionSummary struct {
	AvgRate             decimal.Decimal `json:"avg_rate"`
	MostCommonRate      decimal.Decimal `json:"most_common_rate"`
	MostCommonRateCount int             `json:"most_common_rate_count"`
	TotalCommission     decimal.Decimal `json:"total_commission"`
	TotalProducts       int             `json:"total_products"`
	CategoriesCount     int             `json:"categories_count"`
	SpecificRatesCount  int             `json:"specific_rates_count"`
}
