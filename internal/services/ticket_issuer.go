package services

import (
	"context"
	"fmt"
	"log/slog"

	"tickethub/internal/repo"
	"tickethub/internal/status"
	"tickethub/models"
	"tickethub/monitoring"
	"tickethub/utils"
)

// codeAttempts bounds the collision re-draws for one ticket code. The code
// space is 16^8 per draw, so exhausting this means something is badly wrong.
const codeAttempts = 5

// TicketIssuer creates the tickets for a paid order. The capacity re-check
// and the inserts run inside one serializable unit of work so concurrent
// confirmations cannot oversell the category.
type TicketIssuer struct {
	store *repo.Store
}

func NewTicketIssuer(store *repo.Store) *TicketIssuer {
	return &TicketIssuer{store: store}
}

func (i *TicketIssuer) Issue(ctx context.Context, order *models.Order) ([]models.Ticket, error) {
	var tickets []models.Ticket

	err := i.store.WithTx(func(tx *repo.Store) error {
		category, err := tx.Events.FindCategory(ctx, order.TicketCategoryID)
		if err != nil {
			return err
		}

		sold, err := tx.Tickets.CountSoldByCategory(ctx, order.TicketCategoryID)
		if err != nil {
			return err
		}

		// Payment already succeeded; refusing here is the lesser evil
		// compared to overselling, and the caller flags it for refund.
		if sold+order.Quantity > category.TotalQuantity {
			return status.ErrCapacityExceeded
		}

		for n := 0; n < order.Quantity; n++ {
			code, err := i.uniqueCode(ctx, tx)
			if err != nil {
				return err
			}

			ticket := models.Ticket{
				Code:             code,
				OrderID:          order.ID,
				TicketCategoryID: order.TicketCategoryID,
			}
			if err := tx.Tickets.Insert(ctx, &ticket); err != nil {
				return err
			}
			tickets = append(tickets, ticket)
		}

		return tx.Audit.Append(ctx, &models.AuditEntry{
			Entity:      "Ticket",
			EntityID:    order.ID,
			Action:      models.AuditIssue,
			Description: fmt.Sprintf("Issued %d tickets for order %s", order.Quantity, order.ID),
		})
	})
	if err != nil {
		return nil, err
	}

	monitoring.RecordTicketsIssued(len(tickets))
	return tickets, nil
}

// uniqueCode draws ticket codes until one is free. Collisions are detected
// and re-drawn rather than assumed improbable; a unique index on the code
// column backs this up.
func (i *TicketIssuer) uniqueCode(ctx context.Context, tx *repo.Store) (string, error) {
	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := utils.GenerateCode(4)
		if err != nil {
			return "", fmt.Errorf("uniqueCode: %w", err)
		}

		exists, err := tx.Tickets.CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("uniqueCode: %w", err)
		}
		if !exists {
			return code, nil
		}

		slog.Warn("ticket code collision, regenerating", "code", code, "attempt", attempt+1)
	}
	return "", fmt.Errorf("uniqueCode: no free code after %d attempts", codeAttempts)
}
