package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"tickethub/internal/repo"
	"tickethub/models"
	"tickethub/monitoring"

	pubnub "github.com/pubnub/go/v7"
	"github.com/redis/go-redis/v9"
)

// DeliveryJob is the fully-assembled ticket artifact handed to the delivery
// collaborator. The core decides that and what to send; rendering and
// transport are outside it.
type DeliveryJob struct {
	OrderID    string          `json:"order_id"`
	BuyerName  string          `json:"buyer_name"`
	BuyerEmail string          `json:"buyer_email"`
	BuyerPhone string          `json:"buyer_phone"`
	EventTitle string          `json:"event_title"`
	EventVenue string          `json:"event_venue"`
	Category   string          `json:"category"`
	Tickets    []models.Ticket `json:"tickets"`
	Attempt    int             `json:"attempt"`
}

// Dispatcher is the notification boundary used by the callback processor.
type Dispatcher interface {
	Dispatch(ctx context.Context, job *DeliveryJob) error
}

// Mailer renders and delivers a ticket artifact. Implementations live
// outside this core (SMTP, WhatsApp, PDF rendering).
type Mailer interface {
	SendTickets(ctx context.Context, job *DeliveryJob) error
}

// RedisDispatcher queues delivery jobs so callback acknowledgement never
// waits on rendering or transport, and publishes a realtime confirmation on
// the order channel.
type RedisDispatcher struct {
	redis    *redis.Client
	pn       *pubnub.PubNub
	queueKey string
}

func NewRedisDispatcher(redisClient *redis.Client, pn *pubnub.PubNub, queueKey string) *RedisDispatcher {
	return &RedisDispatcher{
		redis:    redisClient,
		pn:       pn,
		queueKey: queueKey,
	}
}

func (d *RedisDispatcher) Dispatch(ctx context.Context, job *DeliveryJob) error {
	b, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("Dispatch: json.Marshal: %w", err)
	}

	if err := d.redis.LPush(ctx, d.queueKey, b).Err(); err != nil {
		monitoring.RecordNotification("enqueue_failed")
		return fmt.Errorf("Dispatch: LPush: %w", err)
	}
	monitoring.RecordNotification("enqueued")

	if d.pn != nil {
		channel := fmt.Sprintf("order-%s", job.OrderID)
		d.pn.Publish().
			Channel(channel).
			Message(map[string]any{
				"type":     "payment_confirmed",
				"order_id": job.OrderID,
				"tickets":  len(job.Tickets),
			}).
			Execute()
	}

	return nil
}

// failedQueueKey holds jobs whose delivery failed, kept for manual resend.
func failedQueueKey(queueKey string) string {
	return queueKey + ":failed"
}

// NotifyWorker drains the delivery queue and hands each job to the mailer.
// Delivery failures never touch order or payment state; they are audited and
// parked for manual resend.
type NotifyWorker struct {
	redis    *redis.Client
	mailer   Mailer
	audit    repo.AuditRepo
	queueKey string
}

func NewNotifyWorker(redisClient *redis.Client, mailer Mailer, audit repo.AuditRepo, queueKey string) *NotifyWorker {
	return &NotifyWorker{
		redis:    redisClient,
		mailer:   mailer,
		audit:    audit,
		queueKey: queueKey,
	}
}

func (w *NotifyWorker) Run(ctx context.Context) {
	slog.Info("notification worker started", "queue", w.queueKey)

	for {
		select {
		case <-ctx.Done():
			slog.Info("notification worker stopped")
			return
		default:
		}

		res, err := w.redis.BRPop(ctx, 5*time.Second, w.queueKey).Result()
		if err != nil {
			if err == redis.Nil || ctx.Err() != nil {
				continue
			}
			slog.Error("notification queue pop failed", "error", err)
			time.Sleep(time.Second)
			continue
		}

		// BRPop returns [key, value]
		if len(res) != 2 {
			continue
		}

		var job DeliveryJob
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			slog.Error("malformed delivery job dropped", "error", err)
			continue
		}

		w.deliver(ctx, &job)
	}
}

func (w *NotifyWorker) deliver(ctx context.Context, job *DeliveryJob) {
	job.Attempt++

	if err := w.mailer.SendTickets(ctx, job); err != nil {
		slog.Error("ticket delivery failed", "order", job.OrderID, "attempt", job.Attempt, "error", err)
		monitoring.RecordNotification("failed")

		w.appendAudit(ctx, job.OrderID, models.AuditNotifyFailed,
			fmt.Sprintf("Ticket delivery failed for order %s: %v", job.OrderID, err))

		// park for manual resend
		if b, merr := json.Marshal(job); merr == nil {
			w.redis.LPush(ctx, failedQueueKey(w.queueKey), b)
		}
		return
	}

	monitoring.RecordNotification("sent")
	w.appendAudit(ctx, job.OrderID, models.AuditNotifySent,
		fmt.Sprintf("Tickets for order %s sent to %s", job.OrderID, job.BuyerEmail))
}

func (w *NotifyWorker) appendAudit(ctx context.Context, orderID, action, description string) {
	err := w.audit.Append(ctx, &models.AuditEntry{
		Entity:      "Order",
		EntityID:    orderID,
		Action:      action,
		Description: description,
	})
	if err != nil {
		slog.Error("audit append failed", "order", orderID, "action", action, "error", err)
	}
}

// RequeueFailed moves parked jobs back onto the live queue so the worker
// retries them. Returns the number of jobs moved.
func (w *NotifyWorker) RequeueFailed(ctx context.Context) (int, error) {
	moved := 0
	for {
		_, err := w.redis.LMove(ctx, failedQueueKey(w.queueKey), w.queueKey, "RIGHT", "LEFT").Result()
		if err == redis.Nil {
			return moved, nil
		}
		if err != nil {
			return moved, fmt.Errorf("RequeueFailed: LMove: %w", err)
		}
		moved++
	}
}

// LogMailer is the development stand-in for the external delivery
// collaborator.
type LogMailer struct{}

func (LogMailer) SendTickets(_ context.Context, job *DeliveryJob) error {
	slog.Info("would deliver tickets",
		"order", job.OrderID, "email", job.BuyerEmail, "tickets", len(job.Tickets))
	return nil
}
