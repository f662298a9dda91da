// Package inventory answers how many tickets remain in a category and admits
// or rejects reservations at order time.
package inventory

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"tickethub/internal/repo"
	"tickethub/internal/status"

	"github.com/redis/go-redis/v9"
)

const availabilityCacheTTL = 5 * time.Second

// Ledger computes availability from the live sold count. The check at order
// time is advisory: tickets are only created after payment confirmation, so
// the hard capacity guarantee lives in the issuance transaction, not here.
type Ledger struct {
	events  repo.EventRepo
	tickets repo.TicketRepo

	// cache serves the public listing endpoint only; Reserve always counts
	// from the store.
	cache *redis.Client
}

func NewLedger(events repo.EventRepo, tickets repo.TicketRepo, cache *redis.Client) *Ledger {
	return &Ledger{
		events:  events,
		tickets: tickets,
		cache:   cache,
	}
}

// Reserve admits quantity against the category's current availability. On
// rejection the returned error carries the remaining count.
func (l *Ledger) Reserve(ctx context.Context, categoryID string, quantity int) error {
	available, err := l.available(ctx, categoryID)
	if err != nil {
		return fmt.Errorf("ledger.Reserve: %w", err)
	}

	if quantity > available {
		return &status.InsufficientCapacityError{Remaining: available}
	}
	return nil
}

// Available reports remaining capacity for listings, served from a short
// lived cache.
func (l *Ledger) Available(ctx context.Context, categoryID string) (int, error) {
	if l.cache != nil {
		key := availabilityKey(categoryID)
		if cached, err := l.cache.Get(ctx, key).Result(); err == nil {
			if n, err := strconv.Atoi(cached); err == nil {
				return n, nil
			}
		}
	}

	available, err := l.available(ctx, categoryID)
	if err != nil {
		return 0, fmt.Errorf("ledger.Available: %w", err)
	}

	if l.cache != nil {
		l.cache.Set(ctx, availabilityKey(categoryID), available, availabilityCacheTTL)
	}
	return available, nil
}

func (l *Ledger) available(ctx context.Context, categoryID string) (int, error) {
	category, err := l.events.FindCategory(ctx, categoryID)
	if err != nil {
		return 0, err
	}

	sold, err := l.tickets.CountSoldByCategory(ctx, categoryID)
	if err != nil {
		return 0, err
	}

	return category.TotalQuantity - sold, nil
}

func availabilityKey(categoryID string) string {
	return fmt.Sprintf("availability:%s", categoryID)
}
