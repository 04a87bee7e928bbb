// internal/commission/lifecycle.go
package commission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"commission-engine/internal/domain"

	"github.com/sethvargo/go-retry"
)

// RuleStore is the transactional persistence contract the lifecycle manager
// depends on. UpsertActiveRule must deactivate any prior active rule for the
// same scope key and activate the new one atomically, surfacing
// domain.ErrScopeConflict on a constraint race.
type RuleStore interface {
	UpsertActiveRule(ctx context.Context, rule domain.CommissionRule) (domain.CommissionRule, error)
	DeleteRule(ctx context.Context, id int64) error
}

// Lifecycle orchestrates create/update/delete of commission rules. It never
// touches sale records: historical settlements stay frozen no matter what
// happens to the rule they resolved through.
type Lifecycle struct {
	store RuleStore
	now   func() time.Time
}

func NewLifecycle(store RuleStore, now func() time.Time) *Lifecycle {
	if now == nil {
		now = time.Now
	}
	return &Lifecycle{store: store, now: now}
}

// CreateOrUpdate validates the input and swaps it in as the single active
// rule for its scope. A conflicting concurrent swap is retried exactly once
// before the conflict is surfaced.
func (m *Lifecycle) CreateOrUpdate(ctx context.Context, input RuleInput) (domain.CommissionRule, error) {
	rule, verr := ValidateRule(input, m.now())
	if verr != nil {
		return domain.CommissionRule{}, verr
	}

	var stored domain.CommissionRule
	backoff := retry.WithMaxRetries(1, retry.NewConstant(25*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		out, err := m.store.UpsertActiveRule(ctx, rule)
		if errors.Is(err, domain.ErrScopeConflict) {
			slog.Warn("Scope conflict on rule upsert, retrying swap", "scope", rule.ScopeKey())
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}
		stored = out
		return nil
	})
	if err != nil {
		return domain.CommissionRule{}, fmt.Errorf("upsert rule for scope %s: %w", rule.ScopeKey(), err)
	}

	slog.Info("Rule upserted", "rule_id", stored.ID, "scope", stored.ScopeKey(), "rate", stored.Rate)
	return stored, nil
}

// Delete removes a rule from future eligibility. Existing sale records that
// resolved through it are untouched.
func (m *Lifecycle) Delete(ctx context.Context, id int64) error {
	if err := m.store.DeleteRule(ctx, id); err != nil {
		if errors.Is(err, domain.ErrRuleNotFound) {
			return err
		}
		return fmt.Errorf("delete rule %d: %w", id, err)
	}
	slog.Info("Rule deleted", "rule_id", id)
	return nil
}
