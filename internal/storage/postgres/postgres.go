// internal/storage/postgres/postgres.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"commission-engine/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Storage struct {
	db *pgxpool.Pool
}

func NewStorage(db *pgxpool.Pool) *Storage {
	return &Storage{db: db}
}

const ruleColumns = `id, scope_tier, category_id, supplier_id, product_id, rate, active, valid_until, remarks, created_at`

func scanRule(row pgx.Row) (domain.CommissionRule, error) {
	var r domain.CommissionRule
	err := row.Scan(&r.ID, &r.ScopeTier, &r.CategoryID, &r.SupplierID, &r.ProductID,
		&r.Rate, &r.Active, &r.ValidUntil, &r.Remarks, &r.CreatedAt)
	return r, err
}

// === RuleStorage ===

// UpsertActiveRule deactivates whatever active rule currently occupies the
// scope key and inserts the new rule as active, in one transaction. The
// partial unique indexes on commission_rules back this up: if a concurrent
// writer sneaks in between the update and the insert, the insert fails with
// a unique violation and we surface ErrScopeConflict for the caller to retry.
func (s *Storage) UpsertActiveRule(ctx context.Context, rule domain.CommissionRule) (domain.CommissionRule, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return domain.CommissionRule{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	deactivate, args := deactivateQuery(rule)
	if _, err := tx.Exec(ctx, deactivate, args...); err != nil {
		return domain.CommissionRule{}, fmt.Errorf("deactivate prior rule: %w", err)
	}

	var stored domain.CommissionRule
	stored, err = scanRule(tx.QueryRow(ctx, `
		INSERT INTO commission_rules (scope_tier, category_id, supplier_id, product_id, rate, active, valid_until, remarks)
		VALUES ($1, $2, $3, $4, $5, true, $6, $7)
		RETURNING `+ruleColumns,
		rule.ScopeTier, rule.CategoryID, rule.SupplierID, rule.ProductID,
		rule.Rate, rule.ValidUntil, rule.Remarks))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.CommissionRule{}, domain.ErrScopeConflict
		}
		return domain.CommissionRule{}, fmt.Errorf("insert rule: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.CommissionRule{}, fmt.Errorf("commit tx: %w", err)
	}
	return stored, nil
}

func deactivateQuery(rule domain.CommissionRule) (string, []any) {
	base := `UPDATE commission_rules SET active = false WHERE active AND scope_tier = $1`
	switch rule.ScopeTier {
	case domain.ScopeGlobal:
		return base, []any{rule.ScopeTier}
	case domain.ScopeCategory:
		return base + ` AND category_id = $2`, []any{rule.ScopeTier, rule.CategoryID}
	case domain.ScopeSupplier:
		return base + ` AND supplier_id = $2`, []any{rule.ScopeTier, rule.SupplierID}
	default: // specific: product override or (category, supplier) pair
		if rule.ProductID != nil {
			return base + ` AND product_id = $2`, []any{rule.ScopeTier, rule.ProductID}
		}
		return base + ` AND category_id = $2 AND supplier_id = $3 AND product_id IS NULL`,
			[]any{rule.ScopeTier, rule.CategoryID, rule.SupplierID}
	}
}

func (s *Storage) DeleteRule(ctx context.Context, id int64) error {
	result, err := s.db.Exec(ctx, "DELETE FROM commission_rules WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrRuleNotFound
	}
	return nil
}

func (s *Storage) GetRule(ctx context.Context, id int64) (*domain.CommissionRule, error) {
	rule, err := scanRule(s.db.QueryRow(ctx,
		"SELECT "+ruleColumns+" FROM commission_rules WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRuleNotFound
		}
		return nil, fmt.Errorf("get rule: %w", err)
	}
	return &rule, nil
}

// EligibleRules returns the active rules that could apply to the given
// product/supplier/category triple across all four tiers. Expiry is checked
// by the resolver against its own clock, not here.
func (s *Storage) EligibleRules(ctx context.Context, productID, supplierID, categoryID int64) ([]domain.CommissionRule, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+ruleColumns+`
		FROM commission_rules
		WHERE active AND (
			scope_tier = 'global'
			OR (scope_tier = 'category' AND category_id = $3)
			OR (scope_tier = 'supplier' AND supplier_id = $2)
			OR (scope_tier = 'specific' AND (
				product_id = $1
				OR (category_id = $3 AND supplier_id = $2 AND product_id IS NULL)
			))
		)
		ORDER BY created_at
	`, productID, supplierID, categoryID)
	if err != nil {
		return nil, fmt.Errorf("query eligible rules: %w", err)
	}
	return collectRules(rows)
}

func (s *Storage) ActiveRulesForSupplier(ctx context.Context, supplierID int64) ([]domain.CommissionRule, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+ruleColumns+`
		FROM commission_rules
		WHERE active AND supplier_id = $1
		ORDER BY created_at
	`, supplierID)
	if err != nil {
		return nil, fmt.Errorf("query supplier rules: %w", err)
	}
	return collectRules(rows)
}

func (s *Storage) ListRules(ctx context.Context, supplierID *int64) ([]domain.CommissionRule, error) {
	query := "SELECT " + ruleColumns + " FROM commission_rules"
	var args []any
	if supplierID != nil {
		query += " WHERE supplier_id = $1"
		args = append(args, *supplierID)
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return collectRules(rows)
}

func collectRules(rows pgx.Rows) ([]domain.CommissionRule, error) {
	defer rows.Close()
	var rules []domain.CommissionRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rules rows: %w", err)
	}
	return rules, nil
}

// === SaleStorage ===

// InsertSaleRecord appends one settlement to the ledger. There is no update
// or delete path for sale_records anywhere in this codebase.
func (s *Storage) InsertSaleRecord(ctx context.Context, record domain.SaleRecord) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO sale_records
			(id, product_id, supplier_id, category_id, gross_amount, resolved_rate,
			 commission_amount, net_amount, resolved_scope, rule_id, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, record.ID, record.ProductID, record.SupplierID, record.CategoryID,
		record.GrossAmount, record.ResolvedRate, record.CommissionAmount,
		record.NetAmount, record.ResolvedScope, record.RuleID, record.SettledAt)
	if err != nil {
		return fmt.Errorf("insert sale record: %w", err)
	}
	return nil
}

func (s *Storage) SalesForSupplier(ctx context.Context, supplierID int64, from, to time.Time) ([]domain.SaleRecord, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, product_id, supplier_id, category_id, gross_amount, resolved_rate,
		       commission_amount, net_amount, resolved_scope, rule_id, settled_at
		FROM sale_records
		WHERE supplier_id = $1 AND settled_at >= $2 AND settled_at < $3
		ORDER BY settled_at
	`, supplierID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query sales: %w", err)
	}
	defer rows.Close()

	var sales []domain.SaleRecord
	for rows.Next() {
		var rec domain.SaleRecord
		if err := rows.Scan(&rec.ID, &rec.ProductID, &rec.SupplierID, &rec.CategoryID,
			&rec.GrossAmount, &rec.ResolvedRate, &rec.CommissionAmount,
			&rec.NetAmount, &rec.ResolvedScope, &rec.RuleID, &rec.SettledAt); err != nil {
			return nil, fmt.Errorf("scan sale record: %w", err)
		}
		sales = append(sales, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sales rows: %w", err)
	}
	return sales, nil
}

// === ProductStorage ===

func (s *Storage) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRow(ctx, `
		SELECT id, name, category_id, supplier_id, price, active
		FROM products WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.CategoryID, &p.SupplierID, &p.Price, &p.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}
