// internal/commission/validator.go
package commission

import (
	"fmt"
	"regexp"
	"time"

	"commission-engine/internal/domain"

	"github.com/shopspring/decimal"
)

const maxRemarksLen = 255

// ratePattern accepts a plain decimal number with at most two fractional digits.
var ratePattern = regexp.MustCompile(`^\d+(\.\d{1,2})?$`)

// RuleInput is the raw, untrusted shape a rule arrives in.
type RuleInput struct {
	ScopeTier  string `json:"scope_tier"`
	CategoryID *int64 `json:"category_id,omitempty"`
	SupplierID *int64 `json:"supplier_id,omitempty"`
	ProductID  *int64 `json:"product_id,omitempty"`
	Rate       string `json:"rate"`
	Remarks    string `json:"remarks,omitempty"`
	ValidUntil string `json:"valid_until,omitempty"` // YYYY-MM-DD
}

// ValidateRule checks a rule input and returns the normalized rule
// (rate rounded to two decimals, active, scope fields consistent) or a
// validation error. Checks run in a fixed order and stop at the first
// failure.
func ValidateRule(input RuleInput, now time.Time) (domain.CommissionRule, *domain.ValidationError) {
	var rule domain.CommissionRule

	if !ratePattern.MatchString(input.Rate) {
		return rule, domain.NewValidationError("rate", "must be a number with at most 2 decimal places")
	}
	rate, err := decimal.NewFromString(input.Rate)
	if err != nil {
		return rule, domain.NewValidationError("rate", "must be a number with at most 2 decimal places")
	}
	if rate.LessThan(domain.MinRate) || rate.GreaterThan(domain.MaxRate) {
		return rule, domain.NewValidationError("rate",
			fmt.Sprintf("must be between %s and %s", domain.MinRate, domain.MaxRate))
	}

	tier := domain.ScopeTier(input.ScopeTier)
	if verr := checkScopeFields(tier, input); verr != nil {
		return rule, verr
	}

	if len(input.Remarks) > maxRemarksLen {
		return rule, domain.NewValidationError("remarks",
			fmt.Sprintf("must be at most %d characters", maxRemarksLen))
	}

	var validUntil *time.Time
	if input.ValidUntil != "" {
		t, err := time.Parse("2006-01-02", input.ValidUntil)
		if err != nil {
			return rule, domain.NewValidationError("valid_until", "must be a date in YYYY-MM-DD format")
		}
		// Compare at day granularity: a rule created today expiring today is rejected.
		if !t.After(now.Truncate(24 * time.Hour)) {
			return rule, domain.NewValidationError("valid_until", "must not be in the past")
		}
		validUntil = &t
	}

	rule = domain.CommissionRule{
		ScopeTier:  tier,
		Rate:       rate.Round(2),
		Active:     true,
		ValidUntil: validUntil,
		Remarks:    input.Remarks,
	}
	switch tier {
	case domain.ScopeCategory:
		rule.CategoryID = input.CategoryID
	case domain.ScopeSupplier:
		rule.SupplierID = input.SupplierID
	case domain.ScopeSpecific:
		if input.ProductID != nil {
			rule.ProductID = input.ProductID
		} else {
			rule.CategoryID = input.CategoryID
			rule.SupplierID = input.SupplierID
		}
	}
	return rule, nil
}

func checkScopeFields(tier domain.ScopeTier, input RuleInput) *domain.ValidationError {
	switch tier {
	case domain.ScopeGlobal:
		if input.CategoryID != nil || input.SupplierID != nil || input.ProductID != nil {
			return domain.NewValidationError("scope_tier", "global scope must not carry category, supplier or product ids")
		}
	case domain.ScopeCategory:
		if input.CategoryID == nil {
			return domain.NewValidationError("category_id", "required for category scope")
		}
		if input.SupplierID != nil || input.ProductID != nil {
			return domain.NewValidationError("scope_tier", "category scope must carry only category_id")
		}
	case domain.ScopeSupplier:
		if input.SupplierID == nil {
			return domain.NewValidationError("supplier_id", "required for supplier scope")
		}
		if input.CategoryID != nil || input.ProductID != nil {
			return domain.NewValidationError("scope_tier", "supplier scope must carry only supplier_id")
		}
	case domain.ScopeSpecific:
		// Either a direct product override or a (category, supplier) pair.
		if input.ProductID != nil {
			if input.CategoryID != nil || input.SupplierID != nil {
				return domain.NewValidationError("scope_tier", "product-specific scope must not also carry category or supplier ids")
			}
		} else if input.CategoryID == nil || input.SupplierID == nil {
			return domain.NewValidationError("scope_tier", "specific scope requires a product_id or both category_id and supplier_id")
		}
	default:
		return domain.NewValidationError("scope_tier", "must be one of global, category, supplier, specific")
	}
	return nil
}
