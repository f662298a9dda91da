package models

import "time"

type Ticket struct {
	ID               string     `db:"id" json:"id"`
	Code             string     `db:"code" json:"code"`
	OrderID          string     `db:"order" json:"order_id"`
	TicketCategoryID string     `db:"ticket_category" json:"ticket_category_id"`
	Used             bool       `db:"used" json:"used"`
	UsedAt           *time.Time `db:"used_at" json:"used_at,omitempty"`
	Created          time.Time  `db:"created" json:"created"`
}
