package status

import (
	"errors"
	"fmt"
)

var (
	ErrGatewayRejected = errors.New("payment: gateway rejected push request")
	ErrOrderNotFound   = errors.New("order: order not found")

	ErrCapacityExceeded = errors.New("ticket: category capacity exhausted at issuance")

	ErrTicketNotFound    = errors.New("ticket: ticket code not found")
	ErrTicketAlreadyUsed = errors.New("ticket: ticket code already used")

	ErrCategoryNotInEvent = errors.New("order: category does not belong to specified event")
)

// InsufficientCapacityError carries the remaining count so the caller can
// tell the buyer how many tickets are actually left.
type InsufficientCapacityError struct {
	Remaining int
}

func (e *InsufficientCapacityError) Error() string {
	return fmt.Sprintf("order: only %d tickets available in this category", e.Remaining)
}
