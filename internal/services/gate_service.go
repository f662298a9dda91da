package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tickethub/internal/repo"
	"tickethub/models"
)

// GateService redeems tickets at the venue entrance. A code is consumable
// exactly once; the flip is a guarded update so two gates scanning the same
// code race to a single winner.
type GateService struct {
	store *repo.Store
	now   func() time.Time
}

func NewGateService(store *repo.Store) *GateService {
	return &GateService{store: store, now: time.Now}
}

type RedeemResult struct {
	Ticket   *models.Ticket `json:"ticket"`
	Event    string         `json:"event"`
	Category string         `json:"category"`
}

func (g *GateService) Redeem(ctx context.Context, code string) (*RedeemResult, error) {
	ticket, err := g.store.Tickets.Consume(ctx, code, g.now())
	if err != nil {
		return nil, fmt.Errorf("Redeem: %w", err)
	}

	res := &RedeemResult{Ticket: ticket}
	if category, err := g.store.Events.FindCategory(ctx, ticket.TicketCategoryID); err == nil {
		res.Category = category.Name
		if event, err := g.store.Events.FindEvent(ctx, category.EventID); err == nil {
			res.Event = event.Title
		}
	}

	err = g.store.Audit.Append(ctx, &models.AuditEntry{
		Entity:      "Ticket",
		EntityID:    ticket.ID,
		Action:      models.AuditTicketUsed,
		Description: fmt.Sprintf("Ticket %s redeemed at gate", ticket.Code),
	})
	if err != nil {
		slog.Error("audit append failed", "ticket", ticket.ID, "error", err)
	}

	return res, nil
}
