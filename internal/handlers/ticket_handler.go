package handlers

import (
	"errors"
	"net/http"
	"strings"

	"tickethub/internal/services"
	"tickethub/internal/status"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type TicketHandler struct {
	gateService *services.GateService
}

func NewTicketHandler(gateService *services.GateService) *TicketHandler {
	return &TicketHandler{gateService: gateService}
}

// ValidateTicket - Redeem a ticket code at the gate
func (h *TicketHandler) ValidateTicket(e *core.RequestEvent) error {
	var req struct {
		Code string `json:"code"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request body", err)
	}

	code := strings.TrimSpace(req.Code)
	if code == "" {
		return apis.NewBadRequestError("Missing ticket code", nil)
	}

	result, err := h.gateService.Redeem(e.Request.Context(), code)
	if err != nil {
		switch {
		case errors.Is(err, status.ErrTicketNotFound):
			return apis.NewNotFoundError("Ticket not found", nil)
		case errors.Is(err, status.ErrTicketAlreadyUsed):
			return apis.NewApiError(http.StatusConflict, "Ticket already used", nil)
		default:
			return apis.NewInternalServerError("Failed to validate ticket", err)
		}
	}

	return e.JSON(http.StatusOK, result)
}
