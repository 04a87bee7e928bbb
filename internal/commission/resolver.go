// internal/commission/resolver.go
package commission

import (
	"time"

	"commission-engine/internal/domain"

	"github.com/shopspring/decimal"
)

// Resolution is the outcome of picking exactly one rule for a sale.
type Resolution struct {
	Rate   decimal.Decimal  `json:"rate"`
	Scope  domain.ScopeTier `json:"scope_tier"`
	RuleID int64            `json:"rule_id,omitempty"`
}

// Resolver selects the single applicable commission rule for a
// product/supplier/category triple by strict tier priority.
type Resolver struct {
	now func() time.Time
}

func NewResolver(now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{now: now}
}

// Resolve walks the tiers from most to least specific and returns the first
// match, never blending rates across tiers. A rule is a candidate only if it
// is active and not expired. Two active rules within one tier should not
// happen (the store enforces uniqueness), but if the data is in that state
// the newest rule wins rather than failing the sale.
func (r *Resolver) Resolve(productID, supplierID, categoryID int64, rules []domain.CommissionRule) (Resolution, error) {
	now := r.now()

	tiers := []struct {
		scope domain.ScopeTier
		match func(rule domain.CommissionRule) bool
	}{
		{domain.ScopeSpecific, func(rule domain.CommissionRule) bool {
			if rule.ProductID != nil {
				return *rule.ProductID == productID
			}
			return rule.CategoryID != nil && *rule.CategoryID == categoryID &&
				rule.SupplierID != nil && *rule.SupplierID == supplierID
		}},
		{domain.ScopeSupplier, func(rule domain.CommissionRule) bool {
			return rule.SupplierID != nil && *rule.SupplierID == supplierID
		}},
		{domain.ScopeCategory, func(rule domain.CommissionRule) bool {
			return rule.CategoryID != nil && *rule.CategoryID == categoryID
		}},
		{domain.ScopeGlobal, func(rule domain.CommissionRule) bool {
			return true
		}},
	}

	for _, tier := range tiers {
		var best *domain.CommissionRule
		for i := range rules {
			rule := &rules[i]
			if rule.ScopeTier != tier.scope || !rule.EligibleAt(now) || !tier.match(*rule) {
				continue
			}
			if best == nil || rule.CreatedAt.After(best.CreatedAt) {
				best = rule
			}
		}
		if best != nil {
			return Resolution{Rate: best.Rate, Scope: tier.scope, RuleID: best.ID}, nil
		}
	}

	return Resolution{}, domain.ErrNoApplicableRule
}
