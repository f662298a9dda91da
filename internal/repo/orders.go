package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"tickethub/internal/status"
	"tickethub/models"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/shopspring/decimal"
)

type orderRepo struct {
	app core.App
}

func (r *orderRepo) Create(ctx context.Context, o *models.Order) error {
	collection, err := r.app.FindCollectionByNameOrId("orders")
	if err != nil {
		return fmt.Errorf("orders.Create: %w", err)
	}

	rec := core.NewRecord(collection)
	rec.Set("event", o.EventID)
	rec.Set("ticket_category", o.TicketCategoryID)
	rec.Set("quantity", o.Quantity)
	rec.Set("buyer_name", o.BuyerName)
	rec.Set("buyer_email", o.BuyerEmail)
	rec.Set("buyer_phone", o.BuyerPhone)
	rec.Set("amount", o.Amount.InexactFloat64())
	rec.Set("status", string(o.Status))
	rec.Set("affiliate", o.AffiliateID)

	if err := r.app.SaveWithContext(ctx, rec); err != nil {
		return fmt.Errorf("orders.Create: %w", err)
	}

	o.ID = rec.Id
	o.Created = rec.GetDateTime("created").Time()
	return nil
}

func (r *orderRepo) FindByID(_ context.Context, id string) (*models.Order, error) {
	rec, err := r.app.FindRecordById("orders", id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("orders.FindByID: %w", status.ErrOrderNotFound)
		}
		return nil, fmt.Errorf("orders.FindByID: %w", err)
	}
	return orderFromRecord(rec), nil
}

func (r *orderRepo) FindByCheckoutID(_ context.Context, checkoutID string) (*models.Order, error) {
	rec, err := r.app.FindFirstRecordByFilter(
		"orders",
		"checkout_request_id = {:checkoutId}",
		map[string]any{"checkoutId": checkoutID},
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("orders.FindByCheckoutID: %w", err)
	}
	return orderFromRecord(rec), nil
}

func (r *orderRepo) SetCheckoutIDs(_ context.Context, orderID, checkoutID, merchantID string) error {
	_, err := r.app.DB().NewQuery(`
		UPDATE orders
		SET checkout_request_id = {:checkoutId}, merchant_request_id = {:merchantId}
		WHERE id = {:id}
	`).Bind(dbx.Params{
		"id":         orderID,
		"checkoutId": checkoutID,
		"merchantId": merchantID,
	}).Execute()
	if err != nil {
		return fmt.Errorf("orders.SetCheckoutIDs: %w", err)
	}
	return nil
}

// MarkPaid performs the guarded PENDING -> PAID transition.
func (r *orderRepo) MarkPaid(_ context.Context, orderID, receipt string, paidAt time.Time) (bool, error) {
	return r.transition(orderID, receipt, paidAt,
		`status = 'PENDING'`)
}

// MarkPaidAfterTimeout honors a late success callback, but only for orders
// that failed due to local timeout uncertainty.
func (r *orderRepo) MarkPaidAfterTimeout(_ context.Context, orderID, receipt string, paidAt time.Time) (bool, error) {
	return r.transition(orderID, receipt, paidAt,
		`status = 'FAILED' AND failure_reason = 'TIMEOUT'`)
}

func (r *orderRepo) transition(orderID, receipt string, paidAt time.Time, guard string) (bool, error) {
	dt, err := types.ParseDateTime(paidAt)
	if err != nil {
		return false, fmt.Errorf("orders.transition: %w", err)
	}

	res, err := r.app.DB().NewQuery(`
		UPDATE orders
		SET status = 'PAID', paid_at = {:paidAt}, mpesa_receipt = {:receipt}, failure_reason = ''
		WHERE id = {:id} AND ` + guard).Bind(dbx.Params{
		"id":      orderID,
		"paidAt":  dt.String(),
		"receipt": receipt,
	}).Execute()
	if err != nil {
		return false, fmt.Errorf("orders.transition: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("orders.transition: RowsAffected: %w", err)
	}
	return n == 1, nil
}

func (r *orderRepo) MarkFailed(_ context.Context, orderID string, reason models.FailureReason) (bool, error) {
	res, err := r.app.DB().NewQuery(`
		UPDATE orders
		SET status = 'FAILED', failure_reason = {:reason}
		WHERE id = {:id} AND status = 'PENDING'
	`).Bind(dbx.Params{
		"id":     orderID,
		"reason": string(reason),
	}).Execute()
	if err != nil {
		return false, fmt.Errorf("orders.MarkFailed: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("orders.MarkFailed: RowsAffected: %w", err)
	}
	return n == 1, nil
}

func orderFromRecord(rec *core.Record) *models.Order {
	o := &models.Order{
		ID:                rec.Id,
		EventID:           rec.GetString("event"),
		TicketCategoryID:  rec.GetString("ticket_category"),
		Quantity:          rec.GetInt("quantity"),
		BuyerName:         rec.GetString("buyer_name"),
		BuyerEmail:        rec.GetString("buyer_email"),
		BuyerPhone:        rec.GetString("buyer_phone"),
		Amount:            decimal.NewFromFloat(rec.GetFloat("amount")),
		Status:            models.OrderStatus(rec.GetString("status")),
		FailureReason:     models.FailureReason(rec.GetString("failure_reason")),
		CheckoutRequestID: rec.GetString("checkout_request_id"),
		MerchantRequestID: rec.GetString("merchant_request_id"),
		MpesaReceipt:      rec.GetString("mpesa_receipt"),
		AffiliateID:       rec.GetString("affiliate"),
		Created:           rec.GetDateTime("created").Time(),
	}
	if paidAt := rec.GetDateTime("paid_at"); !paidAt.IsZero() {
		t := paidAt.Time()
		o.PaidAt = &t
	}
	return o
}
