// Package payment defines the push-payment gateway contract consumed by the
// order service, and carries the normalized callback shape handed to the
// callback processor.
package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

// PushRequest is a payment push to be authorized on the payer's phone.
// Amount must already be in whole currency units.
type PushRequest struct {
	Amount           decimal.Decimal
	Phone            string
	AccountReference string
	Description      string
}

type PushResult struct {
	CheckoutRequestID string
	MerchantRequestID string
	CustomerMessage   string
}

type Gateway interface {
	InitiatePush(ctx context.Context, req *PushRequest) (*PushResult, error)
}

// Notification is the payment outcome delivered by the gateway's webhook,
// decoded out of its envelope. ResultCode 0 means success.
type Notification struct {
	CheckoutRequestID string
	MerchantRequestID string
	ResultCode        int
	ResultDesc        string

	// success metadata
	Receipt string
	Amount  decimal.Decimal
	Phone   string
}
