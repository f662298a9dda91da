package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"tickethub/internal/inventory"
	"tickethub/internal/repo"
	"tickethub/models"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type EventHandler struct {
	store  *repo.Store
	ledger *inventory.Ledger
}

func NewEventHandler(store *repo.Store, ledger *inventory.Ledger) *EventHandler {
	return &EventHandler{store: store, ledger: ledger}
}

type categoryListing struct {
	models.TicketCategory
	Available int `json:"available"`
}

// GetEvent - Get an event with per-category availability
func (h *EventHandler) GetEvent(e *core.RequestEvent) error {
	eventID := e.Request.PathValue("eventId")
	ctx := e.Request.Context()

	event, err := h.store.Events.FindEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return apis.NewNotFoundError("Event not found", nil)
		}
		return apis.NewInternalServerError("Failed to load event", err)
	}

	categories, err := h.store.Events.CategoriesByEvent(ctx, eventID)
	if err != nil {
		return apis.NewInternalServerError("Failed to load ticket categories", err)
	}

	listings := make([]categoryListing, 0, len(categories))
	for _, category := range categories {
		available, err := h.ledger.Available(ctx, category.ID)
		if err != nil {
			return apis.NewInternalServerError("Failed to compute availability", err)
		}
		listings = append(listings, categoryListing{TicketCategory: category, Available: available})
	}

	return e.JSON(http.StatusOK, map[string]any{
		"event":      event,
		"categories": listings,
	})
}
