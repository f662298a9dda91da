package repo

import (
	"context"
	"fmt"

	"tickethub/models"

	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"
)

type eventRepo struct {
	app core.App
}

func (r *eventRepo) FindEvent(_ context.Context, id string) (*models.Event, error) {
	rec, err := r.app.FindRecordById("events", id)
	if err != nil {
		return nil, fmt.Errorf("FindEvent: %w", err)
	}

	return &models.Event{
		ID:          rec.Id,
		Title:       rec.GetString("title"),
		Description: rec.GetString("description"),
		Venue:       rec.GetString("venue"),
		StartTime:   rec.GetDateTime("start_time").Time(),
	}, nil
}

func (r *eventRepo) FindCategory(_ context.Context, id string) (*models.TicketCategory, error) {
	rec, err := r.app.FindRecordById("ticket_categories", id)
	if err != nil {
		return nil, fmt.Errorf("FindCategory: %w", err)
	}

	return &models.TicketCategory{
		ID:            rec.Id,
		EventID:       rec.GetString("event"),
		Name:          rec.GetString("name"),
		Price:         decimal.NewFromFloat(rec.GetFloat("price")),
		TotalQuantity: rec.GetInt("total_quantity"),
	}, nil
}

func (r *eventRepo) CategoriesByEvent(_ context.Context, eventID string) ([]models.TicketCategory, error) {
	recs, err := r.app.FindRecordsByFilter(
		"ticket_categories",
		"event = {:event}",
		"name",
		0,
		0,
		map[string]any{"event": eventID},
	)
	if err != nil {
		return nil, fmt.Errorf("CategoriesByEvent: %w", err)
	}

	categories := make([]models.TicketCategory, 0, len(recs))
	for _, rec := range recs {
		categories = append(categories, models.TicketCategory{
			ID:            rec.Id,
			EventID:       rec.GetString("event"),
			Name:          rec.GetString("name"),
			Price:         decimal.NewFromFloat(rec.GetFloat("price")),
			TotalQuantity: rec.GetInt("total_quantity"),
		})
	}
	return categories, nil
}
