package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tickethub/internal/inventory"
	"tickethub/internal/payment"
	"tickethub/internal/repo"
	"tickethub/internal/status"
	"tickethub/models"
	"tickethub/monitoring"
	"tickethub/utils"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/shopspring/decimal"
)

// OrderService owns order creation and the PENDING state. The transition out
// of PENDING belongs to the callback processor; the only exception is marking
// an order FAILED when the push itself was never accepted, since no webhook
// will ever arrive for it.
type OrderService struct {
	store       *repo.Store
	ledger      *inventory.Ledger
	gateway     payment.Gateway
	pushTimeout time.Duration
}

func NewOrderService(store *repo.Store, ledger *inventory.Ledger, gateway payment.Gateway, pushTimeout time.Duration) *OrderService {
	return &OrderService{
		store:       store,
		ledger:      ledger,
		gateway:     gateway,
		pushTimeout: pushTimeout,
	}
}

// AffiliateHints carries the referral code candidates from every transport
// source. Precedence: body, header, cookie, query; first present wins.
type AffiliateHints struct {
	Body   string
	Header string
	Cookie string
	Query  string
}

// Resolve returns the winning candidate, or "" when none is present.
func (h AffiliateHints) Resolve() string {
	for _, candidate := range []string{h.Body, h.Header, h.Cookie, h.Query} {
		if code := strings.TrimSpace(candidate); code != "" {
			return code
		}
	}
	return ""
}

type CreateOrderInput struct {
	EventID          string `json:"event_id"`
	TicketCategoryID string `json:"ticket_category_id"`
	Quantity         int    `json:"quantity"`
	BuyerName        string `json:"buyer_name"`
	BuyerEmail       string `json:"buyer_email"`
	BuyerPhone       string `json:"buyer_phone"`

	Affiliate AffiliateHints `json:"-"`
}

func (in *CreateOrderInput) Validate() error {
	return validation.ValidateStruct(in,
		validation.Field(&in.EventID, validation.Required),
		validation.Field(&in.TicketCategoryID, validation.Required),
		validation.Field(&in.Quantity, validation.Required, validation.Min(1)),
		validation.Field(&in.BuyerName, validation.Required),
		validation.Field(&in.BuyerEmail, validation.Required, is.EmailFormat),
		validation.Field(&in.BuyerPhone, validation.Required),
	)
}

type CreateOrderResult struct {
	OrderID           string          `json:"order_id"`
	Amount            decimal.Decimal `json:"amount"`
	CheckoutRequestID string          `json:"checkout_request_id"`
	MerchantRequestID string          `json:"merchant_request_id"`
	Message           string          `json:"message"`
}

func (s *OrderService) CreateOrder(ctx context.Context, in *CreateOrderInput) (*CreateOrderResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	category, err := s.store.Events.FindCategory(ctx, in.TicketCategoryID)
	if err != nil {
		return nil, fmt.Errorf("CreateOrder: %w", err)
	}
	if category.EventID != in.EventID {
		return nil, status.ErrCategoryNotInEvent
	}

	// Advisory admission check against currently sold tickets. In-flight
	// PENDING orders are not counted; the issuance transaction is the
	// backstop against overselling.
	if err := s.ledger.Reserve(ctx, in.TicketCategoryID, in.Quantity); err != nil {
		return nil, err
	}

	affiliateID := s.resolveAffiliate(ctx, in.Affiliate)

	phone := utils.NormalizeMSISDN(in.BuyerPhone)
	amount := models.OrderAmount(category.Price, in.Quantity)

	order := &models.Order{
		EventID:          in.EventID,
		TicketCategoryID: in.TicketCategoryID,
		Quantity:         in.Quantity,
		BuyerName:        strings.TrimSpace(in.BuyerName),
		BuyerEmail:       strings.ToLower(strings.TrimSpace(in.BuyerEmail)),
		BuyerPhone:       phone,
		Amount:           amount,
		Status:           models.OrderPending,
		AffiliateID:      affiliateID,
	}

	// The order row must be durably committed before the push goes out so
	// the eventual callback always finds a matching order.
	if err := s.store.Orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("CreateOrder: %w", err)
	}
	monitoring.RecordOrderCreated()

	s.audit(ctx, "Order", order.ID, models.AuditCreate,
		fmt.Sprintf("Order %s created for event %s, category %s, quantity %d",
			order.ID, in.EventID, in.TicketCategoryID, in.Quantity))

	pushCtx, cancel := context.WithTimeout(ctx, s.pushTimeout)
	defer cancel()

	started := time.Now()
	push, err := s.gateway.InitiatePush(pushCtx, &payment.PushRequest{
		Amount:           amount,
		Phone:            phone,
		AccountReference: fmt.Sprintf("ORD-%s", order.ID),
		Description:      "Event ticket purchase",
	})
	monitoring.ObservePushDuration(time.Since(started))

	if err != nil {
		reason := models.FailedByTimeout
		if errors.Is(err, status.ErrGatewayRejected) {
			reason = models.FailedByGateway
		}

		if _, ferr := s.store.Orders.MarkFailed(ctx, order.ID, reason); ferr != nil {
			slog.Error("mark order failed after push error", "order", order.ID, "error", ferr)
		}
		s.audit(ctx, "Order", order.ID, models.AuditPaymentFailed,
			fmt.Sprintf("STK push not accepted (%s): %v", reason, err))

		return nil, fmt.Errorf("CreateOrder: initiate push: %w", err)
	}

	if err := s.store.Orders.SetCheckoutIDs(ctx, order.ID, push.CheckoutRequestID, push.MerchantRequestID); err != nil {
		return nil, fmt.Errorf("CreateOrder: %w", err)
	}

	s.audit(ctx, "Order", order.ID, models.AuditPaymentInitiated,
		fmt.Sprintf("STK push initiated. CheckoutRequestID: %s", push.CheckoutRequestID))

	return &CreateOrderResult{
		OrderID:           order.ID,
		Amount:            amount,
		CheckoutRequestID: push.CheckoutRequestID,
		MerchantRequestID: push.MerchantRequestID,
		Message:           "STK push initiated. Complete payment on your phone.",
	}, nil
}

// resolveAffiliate maps the winning referral code to an affiliate id. An
// invalid code is audited but never blocks order creation.
func (s *OrderService) resolveAffiliate(ctx context.Context, hints AffiliateHints) string {
	code := hints.Resolve()
	if code == "" {
		return ""
	}

	affiliate, err := s.store.Affiliates.FindByCode(ctx, code)
	if err != nil {
		slog.Error("affiliate lookup failed", "code", code, "error", err)
		return ""
	}
	if affiliate == nil {
		s.audit(ctx, "Affiliate", code, models.AuditAffiliateRejected,
			fmt.Sprintf("Unknown referral code %q on order creation", code))
		return ""
	}
	return affiliate.ID
}

type OrderDetails struct {
	Order   *models.Order   `json:"order"`
	Tickets []models.Ticket `json:"tickets,omitempty"`
}

// GetOrder returns the order plus its tickets once it is paid.
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*OrderDetails, error) {
	order, err := s.store.Orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	details := &OrderDetails{Order: order}
	if order.Status == models.OrderPaid {
		tickets, err := s.store.Tickets.ByOrder(ctx, orderID)
		if err != nil {
			return nil, fmt.Errorf("GetOrder: %w", err)
		}
		details.Tickets = tickets
	}
	return details, nil
}

func (s *OrderService) audit(ctx context.Context, entity, entityID, action, description string) {
	err := s.store.Audit.Append(ctx, &models.AuditEntry{
		Entity:      entity,
		EntityID:    entityID,
		Action:      action,
		Description: description,
	})
	if err != nil {
		slog.Error("audit append failed", "entity", entity, "entityId", entityID, "action", action, "error", err)
	}
}
