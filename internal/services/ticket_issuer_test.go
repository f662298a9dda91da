package services

import (
	"context"
	"testing"
	"time"

	"tickethub/internal/status"
	"tickethub/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedPaidOrder(f *fakeStore, categoryID string, quantity int) *models.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	order := &models.Order{
		ID:               f.id("ord"),
		TicketCategoryID: categoryID,
		Quantity:         quantity,
		Status:           models.OrderPaid,
		Created:          time.Now(),
	}
	f.orders[order.ID] = order
	return order
}

func TestIssueCreatesDistinctCodes(t *testing.T) {
	f, store := newFakeStore()
	event := f.seedEvent("Nairobi Jazz Night")
	category := f.seedCategory(event.ID, "VIP", 1500, 100)

	issuer := NewTicketIssuer(store)
	order := seedPaidOrder(f, category.ID, 5)

	tickets, err := issuer.Issue(context.Background(), order)
	require.NoError(t, err)
	require.Len(t, tickets, 5)

	seen := map[string]bool{}
	for _, ticket := range tickets {
		assert.Len(t, ticket.Code, 8, "4 random bytes hex encode to 8 chars")
		assert.False(t, seen[ticket.Code], "duplicate code %s", ticket.Code)
		seen[ticket.Code] = true
		assert.Equal(t, order.ID, ticket.OrderID)
		assert.Equal(t, category.ID, ticket.TicketCategoryID)
		assert.False(t, ticket.Used)
	}

	assert.Equal(t, 1, countAction(f.auditActions(), models.AuditIssue))
}

func TestIssueRefusesWhenCapacityExhausted(t *testing.T) {
	f, store := newFakeStore()
	event := f.seedEvent("Nairobi Jazz Night")
	category := f.seedCategory(event.ID, "VIP", 1500, 3)

	issuer := NewTicketIssuer(store)

	first := seedPaidOrder(f, category.ID, 2)
	_, err := issuer.Issue(context.Background(), first)
	require.NoError(t, err)

	second := seedPaidOrder(f, category.ID, 2)
	_, err = issuer.Issue(context.Background(), second)
	assert.ErrorIs(t, err, status.ErrCapacityExceeded)
	assert.Empty(t, f.ticketsForOrder(second.ID), "a refused issuance leaves no partial tickets")
}

func TestIssueCountsOnlyNonFailedOrders(t *testing.T) {
	f, store := newFakeStore()
	event := f.seedEvent("Nairobi Jazz Night")
	category := f.seedCategory(event.ID, "VIP", 1500, 2)

	issuer := NewTicketIssuer(store)

	failed := seedPaidOrder(f, category.ID, 2)
	_, err := issuer.Issue(context.Background(), failed)
	require.NoError(t, err)

	// A later failure releases the capacity its tickets held.
	f.mu.Lock()
	f.orders[failed.ID].Status = models.OrderFailed
	f.mu.Unlock()

	fresh := seedPaidOrder(f, category.ID, 2)
	_, err = issuer.Issue(context.Background(), fresh)
	assert.NoError(t, err)
}

func TestGateRedeemFlipsExactlyOnce(t *testing.T) {
	f, store := newFakeStore()
	event := f.seedEvent("Nairobi Jazz Night")
	category := f.seedCategory(event.ID, "VIP", 1500, 100)

	issuer := NewTicketIssuer(store)
	order := seedPaidOrder(f, category.ID, 1)
	tickets, err := issuer.Issue(context.Background(), order)
	require.NoError(t, err)

	gate := NewGateService(store)

	result, err := gate.Redeem(context.Background(), tickets[0].Code)
	require.NoError(t, err)
	assert.True(t, result.Ticket.Used)
	assert.NotNil(t, result.Ticket.UsedAt)
	assert.Equal(t, "Nairobi Jazz Night", result.Event)
	assert.Equal(t, "VIP", result.Category)

	_, err = gate.Redeem(context.Background(), tickets[0].Code)
	assert.ErrorIs(t, err, status.ErrTicketAlreadyUsed)

	_, err = gate.Redeem(context.Background(), "NOSUCHCD")
	assert.ErrorIs(t, err, status.ErrTicketNotFound)

	assert.Equal(t, 1, countAction(f.auditActions(), models.AuditTicketUsed))
}
