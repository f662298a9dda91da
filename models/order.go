package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending OrderStatus = "PENDING"
	OrderPaid    OrderStatus = "PAID"
	OrderFailed  OrderStatus = "FAILED"
)

// FailureReason records why an order became FAILED. A push that the gateway
// explicitly rejected will never produce a callback; a locally timed-out push
// might, so a later success callback is still honored for TIMEOUT orders.
type FailureReason string

const (
	FailedByGateway FailureReason = "GATEWAY_REJECTED"
	FailedByTimeout FailureReason = "TIMEOUT"
)

type Order struct {
	ID                string          `db:"id" json:"id"`
	EventID           string          `db:"event" json:"event_id"`
	TicketCategoryID  string          `db:"ticket_category" json:"ticket_category_id"`
	Quantity          int             `db:"quantity" json:"quantity"`
	BuyerName         string          `db:"buyer_name" json:"buyer_name"`
	BuyerEmail        string          `db:"buyer_email" json:"buyer_email"`
	BuyerPhone        string          `db:"buyer_phone" json:"buyer_phone"`
	Amount            decimal.Decimal `db:"amount" json:"amount"`
	Status            OrderStatus     `db:"status" json:"status"`
	FailureReason     FailureReason   `db:"failure_reason" json:"failure_reason,omitempty"`
	CheckoutRequestID string          `db:"checkout_request_id" json:"checkout_request_id,omitempty"`
	MerchantRequestID string          `db:"merchant_request_id" json:"merchant_request_id,omitempty"`
	MpesaReceipt      string          `db:"mpesa_receipt" json:"mpesa_receipt,omitempty"`
	AffiliateID       string          `db:"affiliate" json:"affiliate_id,omitempty"`
	Created           time.Time       `db:"created" json:"created"`
	PaidAt            *time.Time      `db:"paid_at" json:"paid_at,omitempty"`
}

// OrderAmount is the single rounding point for order totals: Daraja only
// accepts integer KES, so the unit price is rounded before multiplying.
func OrderAmount(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Round(0).Mul(decimal.NewFromInt(int64(quantity)))
}
