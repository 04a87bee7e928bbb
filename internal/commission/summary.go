// internal/commission/summary.go
package commission

import (
	"commission-engine/internal/domain"

	"github.com/shopspring/decimal"
)

// Summarize folds a window of sale records plus the supplier's active rules
// into the dashboard metrics. Read-only; empty inputs yield zeros, never a
// division error.
func Summarize(sales []domain.SaleRecord, activeRules []domain.CommissionRule) domain.CommissionSummary {
	summary := domain.CommissionSummary{
		AvgRate:         decimal.Zero.Round(2),
		MostCommonRate:  decimal.Zero.Round(2),
		TotalCommission: decimal.Zero.Round(2),
	}

	for _, rule := range activeRules {
		if rule.ScopeTier == domain.ScopeSpecific && rule.Active {
			summary.SpecificRatesCount++
		}
	}
	if len(sales) == 0 {
		return summary
	}

	products := make(map[int64]struct{})
	categories := make(map[int64]struct{})
	rateCounts := make(map[string]int)
	rateValues := make(map[string]decimal.Decimal)

	totalCommission := decimal.Zero
	weightedRate := decimal.Zero
	plainRateSum := decimal.Zero

	for _, sale := range sales {
		products[sale.ProductID] = struct{}{}
		categories[sale.CategoryID] = struct{}{}

		key := sale.ResolvedRate.StringFixed(2)
		rateCounts[key]++
		rateValues[key] = sale.ResolvedRate

		totalCommission = totalCommission.Add(sale.CommissionAmount)
		weightedRate = weightedRate.Add(sale.ResolvedRate.Mul(sale.CommissionAmount))
		plainRateSum = plainRateSum.Add(sale.ResolvedRate)
	}

	// Commission-weighted average rate; when every commission in the window
	// rounded to zero the weights vanish, so fall back to the plain mean.
	if totalCommission.Sign() > 0 {
		summary.AvgRate = weightedRate.Div(totalCommission).RoundBank(2)
	} else {
		summary.AvgRate = plainRateSum.Div(decimal.NewFromInt(int64(len(sales)))).RoundBank(2)
	}

	// Mode of the resolved rate; ties break toward the lowest rate.
	var modeRate decimal.Decimal
	modeCount := 0
	for key, count := range rateCounts {
		rate := rateValues[key]
		if count > modeCount || (count == modeCount && rate.LessThan(modeRate)) {
			modeRate = rate
			modeCount = count
		}
	}

	summary.MostCommonRate = modeRate.Round(2)
	summary.MostCommonRateCount = modeCount
	summary.TotalCommission = totalCommission.Round(2)
	summary.TotalProducts = len(products)
	summary.CategoriesCount = len(categories)
	return summary
}
