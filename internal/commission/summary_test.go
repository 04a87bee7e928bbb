// internal/commission/summary_test.go
package commission

import (
	"testing"

	"commission-engine/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func sale(productID, categoryID int64, rateStr, commissionStr string) domain.SaleRecord {
	commission := rate(commissionStr)
	gross := commission.Mul(decimal.NewFromInt(100)).Div(rate(rateStr)).Round(2)
	return domain.SaleRecord{
		ID:               uuid.New(),
		ProductID:        productID,
		SupplierID:       9,
		CategoryID:       categoryID,
		GrossAmount:      gross,
		ResolvedRate:     rate(rateStr),
		CommissionAmount: commission,
		NetAmount:        gross.Sub(commission),
		ResolvedScope:    domain.ScopeCategory,
		SettledAt:        testNow,
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, nil)

	if !s.AvgRate.Equal(decimal.Zero) {
		t.Errorf("avg_rate = %s, want 0.00", s.AvgRate)
	}
	if !s.TotalCommission.Equal(decimal.Zero) {
		t.Errorf("total_commission = %s, want 0.00", s.TotalCommission)
	}
	if s.MostCommonRateCount != 0 || s.TotalProducts != 0 || s.CategoriesCount != 0 || s.SpecificRatesCount != 0 {
		t.Errorf("counts not zero: %+v", s)
	}
}

func TestSummarize_WeightedAverage(t *testing.T) {
	sales := []domain.SaleRecord{
		sale(1, 5, "10.00", "10.00"),
		sale(2, 5, "5.00", "5.00"),
	}

	s := Summarize(sales, nil)

	// (10×10 + 5×5) / 15 = 8.333… → 8.33
	if !s.AvgRate.Equal(rate("8.33")) {
		t.Errorf("avg_rate = %s, want 8.33", s.AvgRate)
	}
	if !s.TotalCommission.Equal(rate("15.00")) {
		t.Errorf("total_commission = %s, want 15.00", s.TotalCommission)
	}
}

func TestSummarize_ZeroCommissionFallsBackToPlainMean(t *testing.T) {
	sales := []domain.SaleRecord{
		sale(1, 5, "2.00", "0.00"),
		sale(2, 5, "4.00", "0.00"),
	}

	s := Summarize(sales, nil)
	if !s.AvgRate.Equal(rate("3.00")) {
		t.Errorf("avg_rate = %s, want 3.00", s.AvgRate)
	}
}

func TestSummarize_ModeTieBreaksLow(t *testing.T) {
	sales := []domain.SaleRecord{
		sale(1, 5, "3.00", "3.00"),
		sale(2, 5, "3.00", "3.00"),
		sale(3, 6, "2.00", "2.00"),
		sale(4, 6, "2.00", "2.00"),
		sale(5, 7, "9.00", "9.00"),
	}

	s := Summarize(sales, nil)
	if !s.MostCommonRate.Equal(rate("2.00")) {
		t.Errorf("most_common_rate = %s, want 2.00 (tie breaks low)", s.MostCommonRate)
	}
	if s.MostCommonRateCount != 2 {
		t.Errorf("most_common_rate_count = %d, want 2", s.MostCommonRateCount)
	}
}

func TestSummarize_DistinctCounts(t *testing.T) {
	sales := []domain.SaleRecord{
		sale(1, 5, "3.00", "3.00"),
		sale(1, 5, "3.00", "3.00"), // same product sold twice
		sale(2, 6, "3.00", "3.00"),
	}
	rules := []domain.CommissionRule{
		pairRule(1, 5, 9, "2.0"),
		productRule(2, 77, "1.5"),
		supplierRule(3, 9, "6.0"),
		pairRule(4, 6, 9, "2.5", inactive()),
	}

	s := Summarize(sales, rules)
	if s.TotalProducts != 2 {
		t.Errorf("total_products = %d, want 2", s.TotalProducts)
	}
	if s.CategoriesCount != 2 {
		t.Errorf("categories_count = %d, want 2", s.CategoriesCount)
	}
	if s.SpecificRatesCount != 2 {
		t.Errorf("specific_rates_count = %d, want 2 (supplier tier and inactive excluded)", s.SpecificRatesCount)
	}
}
