package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tickethub/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"
)

type affiliateRepo struct {
	app core.App
}

func (r *affiliateRepo) FindByCode(_ context.Context, referralCode string) (*models.Affiliate, error) {
	rec, err := r.app.FindFirstRecordByFilter(
		"affiliates",
		"referral_code = {:code}",
		map[string]any{"code": referralCode},
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("affiliates.FindByCode: %w", err)
	}
	return affiliateFromRecord(rec), nil
}

func (r *affiliateRepo) FindByID(_ context.Context, id string) (*models.Affiliate, error) {
	rec, err := r.app.FindRecordById("affiliates", id)
	if err != nil {
		return nil, fmt.Errorf("affiliates.FindByID: %w", err)
	}
	return affiliateFromRecord(rec), nil
}

func (r *affiliateRepo) SaleExists(_ context.Context, orderID string) (bool, error) {
	var count int
	err := r.app.DB().NewQuery(`
		SELECT COUNT(id) FROM affiliate_sales WHERE "order" = {:orderId}
	`).Bind(dbx.Params{"orderId": orderID}).Row(&count)
	if err != nil {
		return false, fmt.Errorf("affiliates.SaleExists: %w", err)
	}
	return count > 0, nil
}

func (r *affiliateRepo) CreateSale(ctx context.Context, s *models.AffiliateSale) error {
	collection, err := r.app.FindCollectionByNameOrId("affiliate_sales")
	if err != nil {
		return fmt.Errorf("affiliates.CreateSale: %w", err)
	}

	rec := core.NewRecord(collection)
	rec.Set("order", s.OrderID)
	rec.Set("affiliate", s.AffiliateID)
	rec.Set("amount", s.Amount.InexactFloat64())
	rec.Set("commission", s.Commission.InexactFloat64())

	if err := r.app.SaveWithContext(ctx, rec); err != nil {
		return fmt.Errorf("affiliates.CreateSale: %w", err)
	}

	s.ID = rec.Id
	s.Created = rec.GetDateTime("created").Time()
	return nil
}

func (r *affiliateRepo) SalesByAffiliate(_ context.Context, affiliateID string) ([]models.AffiliateSale, error) {
	recs, err := r.app.FindRecordsByFilter(
		"affiliate_sales",
		"affiliate = {:affiliateId}",
		"-created",
		0,
		0,
		map[string]any{"affiliateId": affiliateID},
	)
	if err != nil {
		return nil, fmt.Errorf("affiliates.SalesByAffiliate: %w", err)
	}

	sales := make([]models.AffiliateSale, 0, len(recs))
	for _, rec := range recs {
		sales = append(sales, models.AffiliateSale{
			ID:          rec.Id,
			OrderID:     rec.GetString("order"),
			AffiliateID: rec.GetString("affiliate"),
			Amount:      decimal.NewFromFloat(rec.GetFloat("amount")),
			Commission:  decimal.NewFromFloat(rec.GetFloat("commission")),
			Created:     rec.GetDateTime("created").Time(),
		})
	}
	return sales, nil
}

func affiliateFromRecord(rec *core.Record) *models.Affiliate {
	return &models.Affiliate{
		ID:             rec.Id,
		Name:           rec.GetString("name"),
		ReferralCode:   rec.GetString("referral_code"),
		CommissionRate: decimal.NewFromFloat(rec.GetFloat("commission_rate")),
	}
}
