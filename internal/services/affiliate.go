package services

import (
	"context"
	"fmt"

	"tickethub/internal/repo"
	"tickethub/models"
)

// CommissionEngine records the one-time referral commission for a paid
// order. The caller checks existence first; the unique index on the order
// column is the storage-side guarantee.
type CommissionEngine struct {
	store *repo.Store
}

func NewCommissionEngine(store *repo.Store) *CommissionEngine {
	return &CommissionEngine{store: store}
}

func (e *CommissionEngine) RecordCommission(ctx context.Context, order *models.Order, affiliate *models.Affiliate) (*models.AffiliateSale, error) {
	sale := &models.AffiliateSale{
		OrderID:     order.ID,
		AffiliateID: affiliate.ID,
		Amount:      order.Amount,
		Commission:  models.Commission(order.Amount, affiliate.CommissionRate),
	}

	if err := e.store.Affiliates.CreateSale(ctx, sale); err != nil {
		return nil, fmt.Errorf("RecordCommission: %w", err)
	}

	err := e.store.Audit.Append(ctx, &models.AuditEntry{
		Entity:      "AffiliateSale",
		EntityID:    order.ID,
		Action:      models.AuditCommission,
		Description: fmt.Sprintf("Commission %s recorded for affiliate %s on order %s", sale.Commission, affiliate.ID, order.ID),
	})
	if err != nil {
		return nil, fmt.Errorf("RecordCommission: %w", err)
	}

	return sale, nil
}

// SalesForCode lists an affiliate's recorded sales by referral code.
func (e *CommissionEngine) SalesForCode(ctx context.Context, referralCode string) (*models.Affiliate, []models.AffiliateSale, error) {
	affiliate, err := e.store.Affiliates.FindByCode(ctx, referralCode)
	if err != nil {
		return nil, nil, fmt.Errorf("SalesForCode: %w", err)
	}
	if affiliate == nil {
		return nil, nil, nil
	}

	sales, err := e.store.Affiliates.SalesByAffiliate(ctx, affiliate.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("SalesForCode: %w", err)
	}
	return affiliate, sales, nil
}
