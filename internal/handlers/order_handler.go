package handlers

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"tickethub/internal/services"
	"tickethub/internal/status"
	"tickethub/utils"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
)

type OrderHandler struct {
	orderService *services.OrderService
}

func NewOrderHandler(orderService *services.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

// CreateOrder - Create an order and initiate the STK push
func (h *OrderHandler) CreateOrder(e *core.RequestEvent) error {
	var req struct {
		services.CreateOrderInput
		AffiliateCode string `json:"affiliate_code"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request body", err)
	}

	in := req.CreateOrderInput
	in.Affiliate = services.AffiliateHints{
		Body:   req.AffiliateCode,
		Header: e.Request.Header.Get("X-Affiliate-Code"),
		Query:  e.Request.URL.Query().Get("ref"),
	}
	if cookie, err := e.Request.Cookie("aff"); err == nil {
		in.Affiliate.Cookie = cookie.Value
	}

	result, err := h.orderService.CreateOrder(e.Request.Context(), &in)
	if err != nil {
		return createOrderError(err)
	}

	return e.JSON(http.StatusCreated, result)
}

// createOrderError translates order creation failures into API errors.
func createOrderError(err error) error {
	var verrs validation.Errors
	var capErr *status.InsufficientCapacityError
	switch {
	case errors.As(err, &verrs):
		return apis.NewBadRequestError("Invalid order request", verrs)
	case errors.Is(err, sql.ErrNoRows):
		return apis.NewNotFoundError("Ticket category not found", nil)
	case errors.Is(err, status.ErrCategoryNotInEvent):
		return apis.NewBadRequestError("Ticket category does not belong to this event", nil)
	case errors.As(err, &capErr):
		return apis.NewBadRequestError(capErr.Error(), map[string]any{"remaining": capErr.Remaining})
	case errors.Is(err, status.ErrGatewayRejected):
		return apis.NewApiError(http.StatusPaymentRequired, "Payment request was rejected by the gateway", nil)
	case errors.Is(err, context.DeadlineExceeded):
		return apis.NewApiError(http.StatusPaymentRequired, "Payment gateway did not respond in time", nil)
	case errors.Is(err, utils.ErrCircuitOpen):
		return apis.NewApiError(http.StatusServiceUnavailable, "Payment gateway is temporarily unavailable, please retry", nil)
	default:
		return apis.NewInternalServerError("Failed to create order", err)
	}
}

// GetOrder - Get an order with its tickets once paid
func (h *OrderHandler) GetOrder(e *core.RequestEvent) error {
	orderID := e.Request.PathValue("orderId")
	if orderID == "" {
		return apis.NewBadRequestError("Missing order id", nil)
	}

	details, err := h.orderService.GetOrder(e.Request.Context(), orderID)
	if err != nil {
		if errors.Is(err, status.ErrOrderNotFound) {
			return apis.NewNotFoundError("Order not found", nil)
		}
		return apis.NewInternalServerError("Failed to load order", err)
	}

	return e.JSON(http.StatusOK, details)
}
