package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tickethub/internal/payment"
	"tickethub/internal/repo"
	"tickethub/internal/status"
	"tickethub/models"
	"tickethub/monitoring"
)

// Ack describes how a callback delivery was resolved. Every Ack maps to an
// HTTP 200 so the gateway never retries a notification that was understood.
type Ack string

const (
	AckIgnored        Ack = "ignored"
	AckFailedRecorded Ack = "payment failure recorded"
	AckStaleFailure   Ack = "stale failure discarded"
	AckDuplicate      Ack = "duplicate delivery"
	AckLateIgnored    Ack = "late success ignored"
	AckAnomalyFlagged Ack = "capacity exhausted, flagged for refund"
	AckSuccess        Ack = "success"
)

// CallbackProcessor exclusively owns the transition out of PENDING and
// everything that follows from PAID. Deliveries may arrive more than once
// and out of order; every mutation is guarded so reprocessing an already
// handled notification is a no-op.
type CallbackProcessor struct {
	store      *repo.Store
	issuer     *TicketIssuer
	commission *CommissionEngine
	dispatcher Dispatcher

	now func() time.Time
}

func NewCallbackProcessor(store *repo.Store, issuer *TicketIssuer, commission *CommissionEngine, dispatcher Dispatcher) *CallbackProcessor {
	return &CallbackProcessor{
		store:      store,
		issuer:     issuer,
		commission: commission,
		dispatcher: dispatcher,
		now:        time.Now,
	}
}

func (p *CallbackProcessor) Process(ctx context.Context, n *payment.Notification) (Ack, error) {
	order, err := p.store.Orders.FindByCheckoutID(ctx, n.CheckoutRequestID)
	if err != nil {
		return "", fmt.Errorf("Process: %w", err)
	}
	if order == nil {
		// Unrecognized reference; acknowledge so the gateway stops retrying.
		slog.Warn("callback for unknown order", "checkoutRequestId", n.CheckoutRequestID)
		monitoring.RecordCallback("ignored")
		return AckIgnored, nil
	}

	if n.ResultCode != 0 {
		return p.processFailure(ctx, order, n)
	}
	return p.processSuccess(ctx, order, n)
}

func (p *CallbackProcessor) processFailure(ctx context.Context, order *models.Order, n *payment.Notification) (Ack, error) {
	moved, err := p.store.Orders.MarkFailed(ctx, order.ID, models.FailedByGateway)
	if err != nil {
		return "", fmt.Errorf("processFailure: %w", err)
	}
	if !moved {
		// Another delivery already advanced the order. A PAID order never
		// regresses on a stale failure report.
		slog.Info("stale failure callback discarded", "order", order.ID, "status", order.Status)
		monitoring.RecordCallback("stale_failure")
		return AckStaleFailure, nil
	}

	p.audit(ctx, order.ID, models.AuditPaymentFailed,
		fmt.Sprintf("Gateway callback failure (ResultCode %d): %s", n.ResultCode, n.ResultDesc))
	monitoring.RecordCallback("failed")
	return AckFailedRecorded, nil
}

func (p *CallbackProcessor) processSuccess(ctx context.Context, order *models.Order, n *payment.Notification) (Ack, error) {
	// Duplicate-delivery guard: already paid and already issued means there
	// is nothing left to do.
	if order.Status == models.OrderPaid {
		issued, err := p.store.Tickets.ExistsForOrder(ctx, order.ID)
		if err != nil {
			return "", fmt.Errorf("processSuccess: %w", err)
		}
		if issued {
			monitoring.RecordCallback("duplicate")
			return AckDuplicate, nil
		}
		// A prior delivery crashed between the transition and issuance;
		// fall through and finish its side effects.
	} else {
		ack, err := p.confirmPayment(ctx, order, n)
		if err != nil || ack != "" {
			return ack, err
		}
	}

	// Issuance backstop: independent of the transition guard, so a crash
	// after MarkPaid is recovered by reprocessing the same notification.
	issued, err := p.store.Tickets.ExistsForOrder(ctx, order.ID)
	if err != nil {
		return "", fmt.Errorf("processSuccess: %w", err)
	}

	var tickets []models.Ticket
	if !issued {
		tickets, err = p.issuer.Issue(ctx, order)
		if errors.Is(err, status.ErrCapacityExceeded) {
			// Payment succeeded but concurrent confirmations exhausted the
			// category. The PAID status stands; the order needs a manual
			// refund, never a silent oversell.
			slog.Error("capacity exhausted at issuance, order flagged for refund",
				"order", order.ID, "category", order.TicketCategoryID)
			monitoring.RecordCapacityAnomaly()
			p.audit(ctx, order.ID, models.AuditCapacityAnomaly,
				fmt.Sprintf("Payment confirmed but category %s is sold out; order %s requires manual refund",
					order.TicketCategoryID, order.ID))
			return AckAnomalyFlagged, nil
		}
		if err != nil {
			return "", fmt.Errorf("processSuccess: %w", err)
		}
	} else {
		tickets, err = p.store.Tickets.ByOrder(ctx, order.ID)
		if err != nil {
			return "", fmt.Errorf("processSuccess: %w", err)
		}
	}

	p.recordCommission(ctx, order)
	p.dispatch(ctx, order, tickets)

	monitoring.RecordCallback("success")
	return AckSuccess, nil
}

// confirmPayment performs the guarded transition to PAID. It returns a
// non-empty Ack when processing should stop (stale or refused delivery).
func (p *CallbackProcessor) confirmPayment(ctx context.Context, order *models.Order, n *payment.Notification) (Ack, error) {
	paidAt := p.now()

	moved, err := p.store.Orders.MarkPaid(ctx, order.ID, n.Receipt, paidAt)
	if err != nil {
		return "", fmt.Errorf("confirmPayment: %w", err)
	}

	if !moved {
		current, err := p.store.Orders.FindByID(ctx, order.ID)
		if err != nil {
			return "", fmt.Errorf("confirmPayment: %w", err)
		}

		switch {
		case current.Status == models.OrderPaid:
			// Concurrent delivery won the transition; it owns the side
			// effects too.
			monitoring.RecordCallback("duplicate")
			return AckDuplicate, nil

		case current.Status == models.OrderFailed && current.FailureReason == models.FailedByTimeout:
			// The push timed out locally but the gateway accepted it after
			// all. The failure was uncertainty, not an outcome; honor the
			// success.
			moved, err = p.store.Orders.MarkPaidAfterTimeout(ctx, order.ID, n.Receipt, paidAt)
			if err != nil {
				return "", fmt.Errorf("confirmPayment: %w", err)
			}
			if !moved {
				monitoring.RecordCallback("duplicate")
				return AckDuplicate, nil
			}
			p.audit(ctx, order.ID, models.AuditPaymentConfirmed,
				fmt.Sprintf("Payment confirmed after local timeout. Receipt: %s, amount: %s", n.Receipt, n.Amount))

		default:
			// A success callback after an explicit gateway-reported failure
			// contradicts the gateway's own earlier verdict. Surface it,
			// never apply it silently.
			slog.Error("success callback for gateway-failed order refused",
				"order", order.ID, "receipt", n.Receipt)
			p.audit(ctx, order.ID, models.AuditLateSuccess,
				fmt.Sprintf("Success callback (receipt %s) arrived for order %s already failed by gateway; not applied", n.Receipt, order.ID))
			monitoring.RecordCallback("late_success_ignored")
			return AckLateIgnored, nil
		}
	} else {
		p.audit(ctx, order.ID, models.AuditPaymentConfirmed,
			fmt.Sprintf("Payment confirmed. Receipt: %s, amount: %s", n.Receipt, n.Amount))
	}

	order.Status = models.OrderPaid
	order.MpesaReceipt = n.Receipt
	order.PaidAt = &paidAt
	return "", nil
}

// recordCommission creates the affiliate sale at most once. Failures here
// are isolated: the PAID transition is never unwound because of them.
func (p *CallbackProcessor) recordCommission(ctx context.Context, order *models.Order) {
	if order.AffiliateID == "" {
		return
	}

	exists, err := p.store.Affiliates.SaleExists(ctx, order.ID)
	if err != nil {
		slog.Error("affiliate sale lookup failed", "order", order.ID, "error", err)
		return
	}
	if exists {
		return
	}

	affiliate, err := p.store.Affiliates.FindByID(ctx, order.AffiliateID)
	if err != nil {
		slog.Error("affiliate lookup failed", "order", order.ID, "affiliate", order.AffiliateID, "error", err)
		return
	}

	if _, err := p.commission.RecordCommission(ctx, order, affiliate); err != nil {
		slog.Error("commission recording failed", "order", order.ID, "error", err)
	}
}

// dispatch hands the assembled ticket artifact to the notification boundary.
// Best effort relative to payment state.
func (p *CallbackProcessor) dispatch(ctx context.Context, order *models.Order, tickets []models.Ticket) {
	job := &DeliveryJob{
		OrderID:    order.ID,
		BuyerName:  order.BuyerName,
		BuyerEmail: order.BuyerEmail,
		BuyerPhone: order.BuyerPhone,
		Tickets:    tickets,
	}

	if event, err := p.store.Events.FindEvent(ctx, order.EventID); err == nil {
		job.EventTitle = event.Title
		job.EventVenue = event.Venue
	}
	if category, err := p.store.Events.FindCategory(ctx, order.TicketCategoryID); err == nil {
		job.Category = category.Name
	}

	if err := p.dispatcher.Dispatch(ctx, job); err != nil {
		slog.Error("notification dispatch failed", "order", order.ID, "error", err)
		p.audit(ctx, order.ID, models.AuditNotifyFailed,
			fmt.Sprintf("Notification dispatch failed for order %s: %v", order.ID, err))
	}
}

func (p *CallbackProcessor) audit(ctx context.Context, orderID, action, description string) {
	err := p.store.Audit.Append(ctx, &models.AuditEntry{
		Entity:      "Order",
		EntityID:    orderID,
		Action:      action,
		Description: description,
	})
	if err != nil {
		slog.Error("audit append failed", "order", orderID, "action", action, "error", err)
	}
}
