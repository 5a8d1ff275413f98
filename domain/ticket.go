package domain

import "time"

type TicketPhase string

const (
	PhaseBuilding TicketPhase = "BUILDING"
	PhaseConfirm  TicketPhase = "CONFIRM"
	PhasePaying   TicketPhase = "PAYING"
	PhasePaid     TicketPhase = "PAID"
	PhaseError    TicketPhase = "ERROR"
)

func (p TicketPhase) IsTerminal() bool {
	return p == PhasePaid
}

// String representation (for logging)
func (p TicketPhase) String() string {
	return string(p)
}

// CanTransitionTo enumerates the legal phase transitions of a ticket.
// Error is recoverable back to Building; Paid only resets to an empty ticket.
func CanTransitionTo(from, to TicketPhase) bool {
	switch from {
	case PhaseBuilding:
		return to == PhaseConfirm || to == PhasePaid || to == PhaseError
	case PhaseConfirm:
		return to == PhasePaying || to == PhasePaid || to == PhaseError || to == PhaseBuilding
	case PhasePaying:
		return to == PhasePaid || to == PhaseError
	case PhaseError:
		return to == PhaseBuilding
	case PhasePaid:
		return to == PhaseBuilding
	}
	return false
}

type PaymentMethod string

const (
	MethodCash     PaymentMethod = "cash"
	MethodComp     PaymentMethod = "comp"
	MethodTerminal PaymentMethod = "terminal"
)

// Ticket is the in-progress representation of one checkout transaction.
// ID stays empty until the backend has created an order for it.
type Ticket struct {
	ID             string      `json:"id,omitempty"`
	Phase          TicketPhase `json:"phase"`
	Lines          []CartLine  `json:"lines"`
	CreatedOrderID string      `json:"created_order_id,omitempty"`
	StatusMessage  string      `json:"status_message,omitempty"`
	LastError      string      `json:"last_error,omitempty"`
	UpdatedAt      time.Time   `json:"updated_at"`
}
