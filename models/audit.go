package models

import "time"

// Audit actions written by the order/payment lifecycle. The audit trail is
// append-only and never consulted for idempotency decisions.
const (
	AuditCreate            = "CREATE"
	AuditPaymentInitiated  = "PAYMENT_INITIATED"
	AuditPaymentFailed     = "PAYMENT_FAILED"
	AuditPaymentConfirmed  = "PAYMENT_CONFIRMED"
	AuditIssue             = "ISSUE"
	AuditCommission        = "COMMISSION_RECORDED"
	AuditNotifySent        = "NOTIFY_SENT"
	AuditNotifyFailed      = "NOTIFY_FAILED"
	AuditTicketUsed        = "TICKET_USED"
	AuditCapacityAnomaly   = "CAPACITY_ANOMALY"
	AuditLateSuccess       = "LATE_SUCCESS_IGNORED"
	AuditAffiliateRejected = "AFFILIATE_REJECTED"
)

type AuditEntry struct {
	ID          string    `db:"id" json:"id"`
	Entity      string    `db:"entity" json:"entity"`
	EntityID    string    `db:"entity_id" json:"entity_id"`
	Action      string    `db:"action" json:"action"`
	Description string    `db:"description" json:"description"`
	Actor       string    `db:"actor" json:"actor,omitempty"`
	Created     time.Time `db:"created" json:"created"`
}
