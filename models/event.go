package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Event struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	Venue       string    `db:"venue" json:"venue"`
	StartTime   time.Time `db:"start_time" json:"start_time"`
}

type TicketCategory struct {
	ID            string          `db:"id" json:"id"`
	EventID       string          `db:"event" json:"event_id"`
	Name          string          `db:"name" json:"name"`
	Price         decimal.Decimal `db:"price" json:"price"`
	TotalQuantity int             `db:"total_quantity" json:"total_quantity"`
}
