// Package repo defines the persistence contracts for the order/payment
// lifecycle and implements them on top of the PocketBase store. Services
// depend on the interfaces only, so tests substitute in-memory fakes.
package repo

import (
	"context"
	"time"

	"tickethub/models"

	"github.com/pocketbase/pocketbase/core"
)

type EventRepo interface {
	FindEvent(ctx context.Context, id string) (*models.Event, error)
	FindCategory(ctx context.Context, id string) (*models.TicketCategory, error)
	CategoriesByEvent(ctx context.Context, eventID string) ([]models.TicketCategory, error)
}

type OrderRepo interface {
	Create(ctx context.Context, o *models.Order) error
	FindByID(ctx context.Context, id string) (*models.Order, error)
	// FindByCheckoutID returns (nil, nil) when no order carries the id.
	FindByCheckoutID(ctx context.Context, checkoutID string) (*models.Order, error)
	SetCheckoutIDs(ctx context.Context, orderID, checkoutID, merchantID string) error

	// The three transitions below are conditional updates; they report
	// whether a row actually changed so concurrent deliveries resolve to
	// exactly one winner.
	MarkPaid(ctx context.Context, orderID, receipt string, paidAt time.Time) (bool, error)
	MarkPaidAfterTimeout(ctx context.Context, orderID, receipt string, paidAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, orderID string, reason models.FailureReason) (bool, error)
}

type TicketRepo interface {
	// CountSoldByCategory counts tickets bound to non-failed orders.
	CountSoldByCategory(ctx context.Context, categoryID string) (int, error)
	ExistsForOrder(ctx context.Context, orderID string) (bool, error)
	ByOrder(ctx context.Context, orderID string) ([]models.Ticket, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	Insert(ctx context.Context, t *models.Ticket) error
	// Consume flips the used flag exactly once per code.
	Consume(ctx context.Context, code string, at time.Time) (*models.Ticket, error)
}

type AffiliateRepo interface {
	// FindByCode returns (nil, nil) when the referral code is unknown.
	FindByCode(ctx context.Context, referralCode string) (*models.Affiliate, error)
	FindByID(ctx context.Context, id string) (*models.Affiliate, error)
	SaleExists(ctx context.Context, orderID string) (bool, error)
	CreateSale(ctx context.Context, s *models.AffiliateSale) error
	SalesByAffiliate(ctx context.Context, affiliateID string) ([]models.AffiliateSale, error)
}

type AuditRepo interface {
	Append(ctx context.Context, e *models.AuditEntry) error
}

// Store bundles the repositories plus a transaction envelope. WithTx hands
// the callback a Store whose repositories are bound to one transaction; with
// the SQLite store that unit is serializable, which is what ticket issuance
// relies on.
type Store struct {
	Events     EventRepo
	Orders     OrderRepo
	Tickets    TicketRepo
	Affiliates AffiliateRepo
	Audit      AuditRepo

	// RunTx executes fn inside one transactional unit. Left nil, WithTx
	// runs the callback against the store directly.
	RunTx func(fn func(tx *Store) error) error
}

func NewStore(app core.App) *Store {
	s := &Store{
		Events:     &eventRepo{app: app},
		Orders:     &orderRepo{app: app},
		Tickets:    &ticketRepo{app: app},
		Affiliates: &affiliateRepo{app: app},
		Audit:      &auditRepo{app: app},
	}
	s.RunTx = func(fn func(tx *Store) error) error {
		return app.RunInTransaction(func(txApp core.App) error {
			return fn(NewStore(txApp))
		})
	}
	return s
}

func (s *Store) WithTx(fn func(tx *Store) error) error {
	if s.RunTx == nil {
		return fn(s)
	}
	return s.RunTx(fn)
}
