package domain

type Modifier struct {
	Name            string `json:"name"`
	PriceMinorUnits int64  `json:"price_minor_units"`
}

// CartLine is one ticket line. Prices are minor units (cents).
// Open-price lines carry a staff-entered price and are immutable once added.
type CartLine struct {
	ID             string     `json:"id"`
	ProductRef     string     `json:"product_ref"`
	Name           string     `json:"name"`
	UnitPrice      int64      `json:"unit_price_minor_units"`
	Modifiers      []Modifier `json:"modifiers,omitempty"`
	Quantity       int        `json:"quantity"`
	OpenPrice      bool       `json:"open_price,omitempty"`
	StaffEnteredAt string     `json:"staff_entered_at,omitempty"`
}

// LineTotal = (unit price + modifier prices) * quantity.
func (l CartLine) LineTotal() int64 {
	unit := l.UnitPrice
	for _, m := range l.Modifiers {
		unit += m.PriceMinorUnits
	}
	return unit * int64(l.Quantity)
}

// MenuItem is a catalog entry as served by the trusted price source.
type MenuItem struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	PriceMinorUnits int64  `json:"price_cents"`
	Description     string `json:"description,omitempty"`
	OpenPrice       bool   `json:"open_price,omitempty"`
}
