// internal/handler/commission.go
package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"commission-engine/internal/auth"
	"commission-engine/internal/commission"
	"commission-engine/internal/domain"
	"commission-engine/internal/storage"

	val "commission-engine/internal/validator"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type CombinedStorage interface {
	storage.RuleStorage
	storage.SaleStorage
	storage.ProductStorage
}

type CommissionHandler struct {
	store     CombinedStorage
	resolver  *commission.Resolver
	settler   *commission.Settler
	lifecycle *commission.Lifecycle
}

func NewCommissionHandler(store CombinedStorage) *CommissionHandler {
	return &CommissionHandler{
		store:     store,
		resolver:  commission.NewResolver(nil),
		settler:   commission.NewSettler(store, store, nil),
		lifecycle: commission.NewLifecycle(store, nil),
	}
}

// ResolveRate godoc
// @Summary Resolve the applicable commission rate for a product
// @Description Picks the single applicable rule by tier priority (specific > supplier > category > global) using the product's current category/supplier
// @Tags rates
// @Produce json
// @Param product_id query int true "Product ID"
// @Param default_rate query string false "Caller fallback rate when no rule applies"
// @Success 200 {object} commission.Resolution
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/v1/rates/resolve [get]
func (h *CommissionHandler) ResolveRate(c *gin.Context) {
	productID, err := strconv.ParseInt(c.Query("product_id"), 10, 64)
	if err != nil || productID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "product_id query param required"})
		return
	}
	defaultRate, ok := parseOptionalRate(c, "default_rate")
	if !ok {
		return
	}

	product, err := h.store.GetProduct(context.Background(), productID)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		slog.Error("ResolveRate product lookup failed", "error", err, "product_id", productID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}

	rules, err := h.store.EligibleRules(context.Background(), product.ID, product.SupplierID, product.CategoryID)
	if err != nil {
		slog.Error("ResolveRate rule query failed", "error", err, "product_id", productID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}

	res, err := h.resolver.Resolve(product.ID, product.SupplierID, product.CategoryID, rules)
	if err != nil {
		if errors.Is(err, domain.ErrNoApplicableRule) {
			if defaultRate != nil {
				c.JSON(http.StatusOK, commission.Resolution{Rate: defaultRate.Round(2), Scope: domain.ScopeFallback})
				return
			}
			c.JSON(http.StatusNotFound, gin.H{"error": "No applicable commission rule"})
			return
		}
		slog.Error("ResolveRate failed", "error", err, "product_id", productID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}
	c.JSON(http.StatusOK, res)
}

// SettleSale godoc
// @Summary Settle one sale
// @Description Resolves the rate for the product and writes the immutable gross/commission/net sale record
// @Tags sales
// @Accept json
// @Produce json
// @Param request body SettleSaleRequest true "Sale data"
// @Success 201 {object} domain.SaleRecord
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /api/v1/sales/settle [post]
func (h *CommissionHandler) SettleSale(c *gin.Context) {
	var req SettleSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	if err := validateStruct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	gross, err := decimal.NewFromString(req.GrossAmount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "gross_amount must be a decimal number"})
		return
	}
	var defaultRate *decimal.Decimal
	if req.DefaultRate != "" {
		d, err := decimal.NewFromString(req.DefaultRate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "default_rate must be a decimal number"})
			return
		}
		defaultRate = &d
	}

	product, err := h.store.GetProduct(context.Background(), req.ProductID)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		slog.Error("SettleSale product lookup failed", "error", err, "product_id", req.ProductID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}
	if !product.Active {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Product is not active"})
		return
	}

	record, err := h.settler.Settle(context.Background(), *product, gross, defaultRate)
	if err != nil {
		var verr *domain.ValidationError
		switch {
		case errors.As(err, &verr):
			c.JSON(http.StatusBadRequest, verr)
		case errors.Is(err, domain.ErrNoApplicableRule):
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "No applicable commission rule for this sale"})
		default:
			slog.Error("SettleSale failed", "error", err, "product_id", req.ProductID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to settle sale"})
		}
		return
	}

	c.JSON(http.StatusCreated, record)
}

// UpsertRule godoc
// @Summary Create or replace the active commission rule for a scope
// @Description Deactivates any prior active rule for the same scope key in the same transaction
// @Tags rules
// @Accept json
// @Produce json
// @Param request body UpsertRuleRequest true "Rule data"
// @Success 200 {object} domain.CommissionRule
// @Failure 400 {object} domain.ValidationError
// @Failure 403 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /api/v1/rules [post]
func (h *CommissionHandler) UpsertRule(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		return
	}

	var req UpsertRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
		return
	}
	if err := validateStruct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	input := commission.RuleInput{
		ScopeTier:  req.ScopeTier,
		CategoryID: req.CategoryID,
		SupplierID: req.SupplierID,
		ProductID:  req.ProductID,
		Rate:       req.Rate,
		Remarks:    req.Remarks,
		ValidUntil: req.ValidUntil,
	}

	if claims.Role != auth.RoleAdmin {
		if !h.supplierMayManage(c, claims.ActorID, input.ScopeTier, input.SupplierID, input.ProductID) {
			return
		}
	}

	rule, err := h.lifecycle.CreateOrUpdate(context.Background(), input)
	if err != nil {
		var verr *domain.ValidationError
		switch {
		case errors.As(err, &verr):
			c.JSON(http.StatusBadRequest, verr)
		case errors.Is(err, domain.ErrScopeConflict):
			c.JSON(http.StatusConflict, gin.H{"error": "Another active rule already occupies this scope"})
		default:
			slog.Error("UpsertRule failed", "error", err, "scope_tier", req.ScopeTier)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save rule"})
		}
		return
	}

	c.JSON(http.StatusOK, rule)
}

// DeleteRule godoc
// @Summary Delete a commission rule
// @Description Removes future eligibility only; sale records settled through the rule are untouched
// @Tags rules
// @Param id path int true "Rule ID"
// @Success 200 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /api/v1/rules/{id} [delete]
func (h *CommissionHandler) DeleteRule(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		return
	}
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rule id"})
		return
	}

	if claims.Role != auth.RoleAdmin {
		rule, err := h.store.GetRule(context.Background(), id)
		if err != nil {
			if errors.Is(err, domain.ErrRuleNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Rule not found"})
				return
			}
			slog.Error("DeleteRule lookup failed", "error", err, "rule_id", id)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
			return
		}
		if !h.supplierMayManage(c, claims.ActorID, string(rule.ScopeTier), rule.SupplierID, rule.ProductID) {
			return
		}
	}

	if err := h.lifecycle.Delete(context.Background(), id); err != nil {
		if errors.Is(err, domain.ErrRuleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Rule not found"})
			return
		}
		slog.Error("DeleteRule failed", "error", err, "rule_id", id)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// SupplierSummary godoc
// @Summary Commission summary for one supplier
// @Param id path int true "Supplier ID"
// @Param from query string false "Window start (YYYY-MM-DD)"
// @Param to query string false "Window end, exclusive (YYYY-MM-DD)"
// @Success 200 {object} domain.CommissionSummary
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /api/v1/suppliers/{id}/summary [get]
func (h *CommissionHandler) SupplierSummary(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		return
	}
	supplierID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || supplierID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid supplier id"})
		return
	}
	if claims.Role != auth.RoleAdmin && claims.ActorID != supplierID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Suppliers may only view their own summary"})
		return
	}

	from, to, err := parseWindow(c.Query("from"), c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sales, err := h.store.SalesForSupplier(context.Background(), supplierID, from, to)
	if err != nil {
		slog.Error("SupplierSummary sales query failed", "error", err, "supplier_id", supplierID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}
	rules, err := h.store.ActiveRulesForSupplier(context.Background(), supplierID)
	if err != nil {
		slog.Error("SupplierSummary rules query failed", "error", err, "supplier_id", supplierID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}

	c.JSON(http.StatusOK, commission.Summarize(sales, rules))
}

// ListRules godoc
// @Summary List commission rules
// @Param supplier_id query int false "Filter by supplier"
// @Success 200 {array} domain.CommissionRule
// @Failure 403 {object} map[string]string
// @Router /api/v1/rules [get]
func (h *CommissionHandler) ListRules(c *gin.Context) {
	claims, ok := claimsFrom(c)
	if !ok {
		return
	}

	var supplierID *int64
	if raw := c.Query("supplier_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid supplier_id"})
			return
		}
		supplierID = &id
	}

	// Suppliers see only their own rules regardless of the filter.
	if claims.Role != auth.RoleAdmin {
		supplierID = &claims.ActorID
	}

	rules, err := h.store.ListRules(context.Background(), supplierID)
	if err != nil {
		slog.Error("ListRules failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
		return
	}
	if rules == nil {
		rules = []domain.CommissionRule{}
	}
	c.JSON(http.StatusOK, rules)
}

// supplierMayManage enforces the supplier role policy: only specific-tier
// rules, and only inside the supplier's own scope. Product overrides are
// checked against the product's current supplier.
func (h *CommissionHandler) supplierMayManage(c *gin.Context, actorID int64, scopeTier string, supplierID, productID *int64) bool {
	if scopeTier != string(domain.ScopeSpecific) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Suppliers may only manage product-specific rules"})
		return false
	}
	if productID != nil {
		product, err := h.store.GetProduct(context.Background(), *productID)
		if err != nil {
			if errors.Is(err, domain.ErrProductNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
				return false
			}
			slog.Error("Supplier policy product lookup failed", "error", err, "product_id", *productID)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
			return false
		}
		if product.SupplierID != actorID {
			c.JSON(http.StatusForbidden, gin.H{"error": "Product belongs to another supplier"})
			return false
		}
		return true
	}
	if supplierID == nil || *supplierID != actorID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Rule scope belongs to another supplier"})
		return false
	}
	return true
}

func claimsFrom(c *gin.Context) (auth.Claims, bool) {
	actorIDVal, ok := c.Get("actor_id")
	if !ok {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "actor_id missing"})
		return auth.Claims{}, false
	}
	actorID, ok := actorIDVal.(int64)
	if !ok {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "invalid actor_id"})
		return auth.Claims{}, false
	}
	roleVal, ok := c.Get("role")
	if !ok {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "role missing"})
		return auth.Claims{}, false
	}
	role, ok := roleVal.(string)
	if !ok {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "invalid role"})
		return auth.Claims{}, false
	}
	return auth.Claims{ActorID: actorID, Role: role}, true
}

func parseOptionalRate(c *gin.Context, param string) (*decimal.Decimal, bool) {
	raw := c.Query(param)
	if raw == "" {
		return nil, true
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.Sign() <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": param + " must be a positive decimal number"})
		return nil, false
	}
	return &d, true
}

func parseWindow(fromStr, toStr string) (time.Time, time.Time, error) {
	from := time.Time{}
	to := time.Now().Add(24 * time.Hour)

	if fromStr != "" {
		t, err := time.Parse("2006-01-02", fromStr)
		if err != nil {
			return from, to, fmt.Errorf("from must be in YYYY-MM-DD format")
		}
		from = t
	}
	if toStr != "" {
		t, err := time.Parse("2006-01-02", toStr)
		if err != nil {
			return from, to, fmt.Errorf("to must be in YYYY-MM-DD format")
		}
		to = t
	}
	if to.Before(from) {
		return from, to, fmt.Errorf("to must not be before from")
	}
	return from, to, nil
}

// === DTO ===

type SettleSaleRequest struct {
	ProductID   int64  `json:"product_id" validate:"required,min=1"`
	GrossAmount string `json:"gross_amount" validate:"required,notblank"`
	DefaultRate string `json:"default_rate,omitempty" validate:"omitempty,rate2dp"`
}

type UpsertRuleRequest struct {
	ScopeTier  string `json:"scope_tier" validate:"required,scopetier"`
	CategoryID *int64 `json:"category_id,omitempty" validate:"omitempty,min=1"`
	SupplierID *int64 `json:"supplier_id,omitempty" validate:"omitempty,min=1"`
	ProductID  *int64 `json:"product_id,omitempty" validate:"omitempty,min=1"`
	Rate       string `json:"rate" validate:"required,rate2dp"`
	Remarks    string `json:"remarks,omitempty" validate:"omitempty,max=255"`
	ValidUntil string `json:"valid_until,omitempty"`
}

func validateStruct(v any) error {
	if err := val.Validate.Struct(v); err != nil {
		var errs []string
		for _, e := range err.(validator.ValidationErrors) {
			errs = append(errs, fieldErrorToString(e))
		}
		return fmt.Errorf("invalid input: %s", strings.Join(errs, "; "))
	}
	return nil
}

func fieldErrorToString(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", e.Field())
	case "rate2dp":
		return fmt.Sprintf("%s must be a number with at most 2 decimal places", e.Field())
	case "scopetier":
		return fmt.Sprintf("%s must be one of global, category, supplier, specific", e.Field())
	case "notblank":
		return fmt.Sprintf("%s must not be blank", e.Field())
	case "min":
		return fmt.Sprintf("%s must be positive", e.Field())
	case "max":
		return fmt.Sprintf("%s is too long", e.Field())
	default:
		return fmt.Sprintf("%s is invalid", e.Field())
	}
}
