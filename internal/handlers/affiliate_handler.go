package handlers

import (
	"net/http"

	"tickethub/internal/repo"
	"tickethub/models"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"
)

type AffiliateHandler struct {
	store *repo.Store
}

func NewAffiliateHandler(store *repo.Store) *AffiliateHandler {
	return &AffiliateHandler{store: store}
}

// ListSales - List recorded sales and totals for a referral code
func (h *AffiliateHandler) ListSales(e *core.RequestEvent) error {
	code := e.Request.PathValue("code")
	ctx := e.Request.Context()

	affiliate, err := h.store.Affiliates.FindByCode(ctx, code)
	if err != nil {
		return apis.NewInternalServerError("Failed to load affiliate", err)
	}
	if affiliate == nil {
		return apis.NewNotFoundError("Affiliate not found", nil)
	}

	sales, err := h.store.Affiliates.SalesByAffiliate(ctx, affiliate.ID)
	if err != nil {
		return apis.NewInternalServerError("Failed to load sales", err)
	}

	totalCommission := decimal.Zero
	for _, sale := range sales {
		totalCommission = totalCommission.Add(sale.Commission)
	}
	if sales == nil {
		sales = []models.AffiliateSale{}
	}

	return e.JSON(http.StatusOK, map[string]any{
		"affiliate":        affiliate,
		"sales":            sales,
		"total_sales":      len(sales),
		"total_commission": totalCommission,
	})
}
