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
)

type ticketRepo struct {
	app core.App
}

func (r *ticketRepo) CountSoldByCategory(_ context.Context, categoryID string) (int, error) {
	var count int
	err := r.app.DB().NewQuery(`
		SELECT COUNT(t.id)
		FROM tickets t
		JOIN orders o ON o.id = t."order"
		WHERE t.ticket_category = {:categoryId} AND o.status != 'FAILED'
	`).Bind(dbx.Params{"categoryId": categoryID}).Row(&count)
	if err != nil {
		return 0, fmt.Errorf("tickets.CountSoldByCategory: %w", err)
	}
	return count, nil
}

func (r *ticketRepo) ExistsForOrder(_ context.Context, orderID string) (bool, error) {
	var count int
	err := r.app.DB().NewQuery(`
		SELECT COUNT(id) FROM tickets WHERE "order" = {:orderId}
	`).Bind(dbx.Params{"orderId": orderID}).Row(&count)
	if err != nil {
		return false, fmt.Errorf("tickets.ExistsForOrder: %w", err)
	}
	return count > 0, nil
}

func (r *ticketRepo) ByOrder(_ context.Context, orderID string) ([]models.Ticket, error) {
	recs, err := r.app.FindRecordsByFilter(
		"tickets",
		"order = {:orderId}",
		"created",
		0,
		0,
		map[string]any{"orderId": orderID},
	)
	if err != nil {
		return nil, fmt.Errorf("tickets.ByOrder: %w", err)
	}

	tickets := make([]models.Ticket, 0, len(recs))
	for _, rec := range recs {
		tickets = append(tickets, *ticketFromRecord(rec))
	}
	return tickets, nil
}

func (r *ticketRepo) CodeExists(_ context.Context, code string) (bool, error) {
	var count int
	err := r.app.DB().NewQuery(`
		SELECT COUNT(id) FROM tickets WHERE code = {:code}
	`).Bind(dbx.Params{"code": code}).Row(&count)
	if err != nil {
		return false, fmt.Errorf("tickets.CodeExists: %w", err)
	}
	return count > 0, nil
}

func (r *ticketRepo) Insert(ctx context.Context, t *models.Ticket) error {
	collection, err := r.app.FindCollectionByNameOrId("tickets")
	if err != nil {
		return fmt.Errorf("tickets.Insert: %w", err)
	}

	rec := core.NewRecord(collection)
	rec.Set("code", t.Code)
	rec.Set("order", t.OrderID)
	rec.Set("ticket_category", t.TicketCategoryID)
	rec.Set("used", false)

	if err := r.app.SaveWithContext(ctx, rec); err != nil {
		return fmt.Errorf("tickets.Insert: %w", err)
	}

	t.ID = rec.Id
	t.Created = rec.GetDateTime("created").Time()
	return nil
}

// Consume marks a ticket used. The update is guarded on used = false so a
// code scans exactly once even when two gates race.
func (r *ticketRepo) Consume(_ context.Context, code string, at time.Time) (*models.Ticket, error) {
	dt, err := types.ParseDateTime(at)
	if err != nil {
		return nil, fmt.Errorf("tickets.Consume: %w", err)
	}

	res, err := r.app.DB().NewQuery(`
		UPDATE tickets
		SET used = TRUE, used_at = {:usedAt}
		WHERE code = {:code} AND used = FALSE
	`).Bind(dbx.Params{"code": code, "usedAt": dt.String()}).Execute()
	if err != nil {
		return nil, fmt.Errorf("tickets.Consume: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("tickets.Consume: RowsAffected: %w", err)
	}

	rec, err := r.app.FindFirstRecordByFilter(
		"tickets",
		"code = {:code}",
		map[string]any{"code": code},
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, status.ErrTicketNotFound
		}
		return nil, fmt.Errorf("tickets.Consume: %w", err)
	}

	if n == 0 {
		return ticketFromRecord(rec), status.ErrTicketAlreadyUsed
	}
	return ticketFromRecord(rec), nil
}

func ticketFromRecord(rec *core.Record) *models.Ticket {
	t := &models.Ticket{
		ID:               rec.Id,
		Code:             rec.GetString("code"),
		OrderID:          rec.GetString("order"),
		TicketCategoryID: rec.GetString("ticket_category"),
		Used:             rec.GetBool("used"),
		Created:          rec.GetDateTime("created").Time(),
	}
	if usedAt := rec.GetDateTime("used_at"); !usedAt.IsZero() {
		ts := usedAt.Time()
		t.UsedAt = &ts
	}
	return t
}
