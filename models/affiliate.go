package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Affiliate struct {
	ID             string          `db:"id" json:"id"`
	Name           string          `db:"name" json:"name"`
	ReferralCode   string          `db:"referral_code" json:"referral_code"`
	CommissionRate decimal.Decimal `db:"commission_rate" json:"commission_rate"`
}

// AffiliateSale records the one-time commission for an order that carried a
// referral. At most one row exists per order.
type AffiliateSale struct {
	ID          string          `db:"id" json:"id"`
	OrderID     string          `db:"order" json:"order_id"`
	AffiliateID string          `db:"affiliate" json:"affiliate_id"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Commission  decimal.Decimal `db:"commission" json:"commission"`
	Created     time.Time       `db:"created" json:"created"`
}

// Commission applies the shared currency rounding convention (2dp).
func Commission(orderAmount, rate decimal.Decimal) decimal.Decimal {
	return orderAmount.Mul(rate).Round(2)
}
