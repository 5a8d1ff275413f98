package domain

type PaymentStatus string

const (
	PaymentStatusPending          PaymentStatus = "PENDING"
	PaymentStatusCompleted        PaymentStatus = "COMPLETED"
	PaymentStatusAlreadyConfirmed PaymentStatus = "ALREADY_CONFIRMED"
	PaymentStatusCanceled         PaymentStatus = "CANCELED"
)

// Definitive statuses end a reconciliation poll. Anything else keeps polling.
func (s PaymentStatus) IsDefinitive() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusAlreadyConfirmed || s == PaymentStatusCanceled
}

func (s PaymentStatus) IsPaid() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusAlreadyConfirmed
}

func (s PaymentStatus) String() string {
	return string(s)
}

type PollMode string

const (
	// PollModeNormal runs right after a terminal payment is initiated.
	PollModeNormal PollMode = "normal"
	// PollModePostConflict runs when initiation returned a conflict,
	// meaning an earlier attempt may have already succeeded server-side.
	PollModePostConflict PollMode = "post-conflict"
)
