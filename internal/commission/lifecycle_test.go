// internal/commission/lifecycle_test.go
package commission

import (
	"context"
	"errors"
	"testing"
	"time"

	"commission-engine/internal/domain"
)

// fakeRuleStore mimics the postgres swap semantics: one active rule per
// scope key, with an optional forced conflict to exercise the retry path.
type fakeRuleStore struct {
	rules         map[int64]domain.CommissionRule
	nextID        int64
	clock         time.Time
	conflictsLeft int
	upsertCalls   int
}

func newFakeRuleStore() *fakeRuleStore {
	return &fakeRuleStore{rules: make(map[int64]domain.CommissionRule), clock: testNow}
}

func (f *fakeRuleStore) UpsertActiveRule(ctx context.Context, rule domain.CommissionRule) (domain.CommissionRule, error) {
	f.upsertCalls++
	if f.conflictsLeft > 0 {
		f.conflictsLeft--
		return domain.CommissionRule{}, domain.ErrScopeConflict
	}
	for id, existing := range f.rules {
		if existing.Active && existing.ScopeKey() == rule.ScopeKey() {
			existing.Active = false
			f.rules[id] = existing
		}
	}
	f.nextID++
	f.clock = f.clock.Add(time.Second)
	rule.ID = f.nextID
	rule.CreatedAt = f.clock
	f.rules[rule.ID] = rule
	return rule, nil
}

func (f *fakeRuleStore) DeleteRule(ctx context.Context, id int64) error {
	if _, ok := f.rules[id]; !ok {
		return domain.ErrRuleNotFound
	}
	delete(f.rules, id)
	return nil
}

func (f *fakeRuleStore) activeForScope(key string) []domain.CommissionRule {
	var out []domain.CommissionRule
	for _, rule := range f.rules {
		if rule.Active && rule.ScopeKey() == key {
			out = append(out, rule)
		}
	}
	return out
}

func (f *fakeRuleStore) activeRules() []domain.CommissionRule {
	var out []domain.CommissionRule
	for _, rule := range f.rules {
		if rule.Active {
			out = append(out, rule)
		}
	}
	return out
}

func TestLifecycle_SingleActivePerScope(t *testing.T) {
	store := newFakeRuleStore()
	manager := NewLifecycle(store, fixedNow)

	input := RuleInput{ScopeTier: "category", Rate: "4.5", CategoryID: ptr(5)}
	for _, rateStr := range []string{"4.5", "5.0", "3.25"} {
		input.Rate = rateStr
		if _, err := manager.CreateOrUpdate(context.Background(), input); err != nil {
			t.Fatalf("CreateOrUpdate(%s) error: %v", rateStr, err)
		}
	}

	active := store.activeForScope("category:5")
	if len(active) != 1 {
		t.Fatalf("%d active rules for scope, want exactly 1", len(active))
	}
	if !active[0].Rate.Equal(rate("3.25")) {
		t.Errorf("surviving rate = %s, want the last upsert 3.25", active[0].Rate)
	}
	if len(store.rules) != 3 {
		t.Errorf("superseded rules must stay stored for audit, have %d", len(store.rules))
	}
}

func TestLifecycle_DistinctScopesCoexist(t *testing.T) {
	store := newFakeRuleStore()
	manager := NewLifecycle(store, fixedNow)

	inputs := []RuleInput{
		{ScopeTier: "global", Rate: "3.0"},
		{ScopeTier: "category", Rate: "4.5", CategoryID: ptr(5)},
		{ScopeTier: "supplier", Rate: "6.0", SupplierID: ptr(9)},
		{ScopeTier: "specific", Rate: "2.0", CategoryID: ptr(5), SupplierID: ptr(9)},
		{ScopeTier: "specific", Rate: "1.5", ProductID: ptr(77)},
	}
	for _, input := range inputs {
		if _, err := manager.CreateOrUpdate(context.Background(), input); err != nil {
			t.Fatalf("CreateOrUpdate(%s) error: %v", input.ScopeTier, err)
		}
	}

	if got := len(store.activeRules()); got != 5 {
		t.Errorf("%d active rules, want 5 distinct scopes", got)
	}
}

func TestLifecycle_RetriesConflictOnce(t *testing.T) {
	store := newFakeRuleStore()
	store.conflictsLeft = 1
	manager := NewLifecycle(store, fixedNow)

	rule, err := manager.CreateOrUpdate(context.Background(), RuleInput{ScopeTier: "global", Rate: "3.0"})
	if err != nil {
		t.Fatalf("CreateOrUpdate error after single conflict: %v", err)
	}
	if store.upsertCalls != 2 {
		t.Errorf("upsert called %d times, want 2 (original + one retry)", store.upsertCalls)
	}
	if !rule.Active {
		t.Error("stored rule must be active")
	}
}

func TestLifecycle_SurfacesRepeatedConflict(t *testing.T) {
	store := newFakeRuleStore()
	store.conflictsLeft = 2
	manager := NewLifecycle(store, fixedNow)

	_, err := manager.CreateOrUpdate(context.Background(), RuleInput{ScopeTier: "global", Rate: "3.0"})
	if !errors.Is(err, domain.ErrScopeConflict) {
		t.Fatalf("err = %v, want ErrScopeConflict", err)
	}
	if store.upsertCalls != 2 {
		t.Errorf("upsert called %d times, want 2 (no second retry)", store.upsertCalls)
	}
}

func TestLifecycle_ValidationShortCircuits(t *testing.T) {
	store := newFakeRuleStore()
	manager := NewLifecycle(store, fixedNow)

	_, err := manager.CreateOrUpdate(context.Background(), RuleInput{ScopeTier: "global", Rate: "99.0"})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want validation error", err)
	}
	if store.upsertCalls != 0 {
		t.Error("invalid input must never reach the store")
	}
}

func TestLifecycle_DeleteNotFound(t *testing.T) {
	manager := NewLifecycle(newFakeRuleStore(), fixedNow)

	err := manager.Delete(context.Background(), 404)
	if !errors.Is(err, domain.ErrRuleNotFound) {
		t.Fatalf("err = %v, want ErrRuleNotFound", err)
	}
}

// Settlements are snapshots: editing or deleting the rule afterwards must
// not change a record that already resolved through it.
func TestLifecycle_SettledRecordsSurviveRuleChanges(t *testing.T) {
	store := newFakeRuleStore()
	manager := NewLifecycle(store, fixedNow)

	stored, err := manager.CreateOrUpdate(context.Background(),
		RuleInput{ScopeTier: "specific", Rate: "2.0", CategoryID: ptr(5), SupplierID: ptr(9)})
	if err != nil {
		t.Fatalf("CreateOrUpdate error: %v", err)
	}

	ledger := &fakeLedger{}
	settler := NewSettler(&fakeRuleSource{rules: store.activeRules()}, ledger, fixedNow)
	record, err := settler.Settle(context.Background(), testProduct, rate("500.00"), nil)
	if err != nil {
		t.Fatalf("Settle error: %v", err)
	}
	if !record.CommissionAmount.Equal(rate("10.00")) {
		t.Fatalf("commission = %s, want 10.00", record.CommissionAmount)
	}

	// Rate change and deletion after the fact.
	if _, err := manager.CreateOrUpdate(context.Background(),
		RuleInput{ScopeTier: "specific", Rate: "9.9", CategoryID: ptr(5), SupplierID: ptr(9)}); err != nil {
		t.Fatalf("rate change error: %v", err)
	}
	if err := manager.Delete(context.Background(), stored.ID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}

	settled := ledger.records[0]
	if !settled.ResolvedRate.Equal(rate("2.0")) ||
		!settled.CommissionAmount.Equal(rate("10.00")) ||
		!settled.NetAmount.Equal(rate("490.00")) {
		t.Errorf("settled record changed after rule edits: %+v", settled)
	}
}
