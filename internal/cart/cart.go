package cart

import (
	"errors"
	"sync"

	"github.com/BrewHubPHL/pos-terminal/domain"
	"github.com/google/uuid"
)

var (
	ErrLineNotFound       = errors.New("cart line not found")
	ErrNegativePrice      = errors.New("unit price must not be negative")
	ErrOpenPriceRequired  = errors.New("open-price item requires a positive staff-entered price")
	ErrOpenPriceImmutable = errors.New("open-price line cannot be changed after it is added")
)

// Builder holds the current ticket's line items. Purely local state:
// no network calls, owned by the terminal's single execution context.
type Builder struct {
	mu    sync.RWMutex
	lines []domain.CartLine
}

func NewBuilder() *Builder {
	return &Builder{}
}

// AddItem appends a new line with quantity 1. Each tap on a product adds its
// own line, so two identically-modified lattes stay separately adjustable.
func (b *Builder) AddItem(productRef, name string, unitPriceMinor int64, mods []domain.Modifier) (string, error) {
	if unitPriceMinor < 0 {
		return "", ErrNegativePrice
	}
	return b.append(domain.CartLine{
		ID:         uuid.New().String(),
		ProductRef: productRef,
		Name:       name,
		UnitPrice:  unitPriceMinor,
		Modifiers:  append([]domain.Modifier(nil), mods...),
		Quantity:   1,
	}), nil
}

// AddOpenPriceItem admits an open-price line (e.g. shipping). The staff price
// must be positive and the line is immutable once added.
func (b *Builder) AddOpenPriceItem(productRef, name string, staffPriceMinor int64) (string, error) {
	if staffPriceMinor <= 0 {
		return "", ErrOpenPriceRequired
	}
	return b.append(domain.CartLine{
		ID:         uuid.New().String(),
		ProductRef: productRef,
		Name:       name,
		UnitPrice:  staffPriceMinor,
		Quantity:   1,
		OpenPrice:  true,
	}), nil
}

func (b *Builder) append(line domain.CartLine) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = append(b.lines, line)
	return line.ID
}

// UpdateQuantity applies a delta. A delta driving the quantity to zero or
// below removes the line.
func (b *Builder) UpdateQuantity(lineID string, delta int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range b.lines {
		if b.lines[i].ID != lineID {
			continue
		}
		if b.lines[i].OpenPrice {
			return ErrOpenPriceImmutable
		}
		b.lines[i].Quantity += delta
		if b.lines[i].Quantity <= 0 {
			b.lines = append(b.lines[:i], b.lines[i+1:]...)
		}
		return nil
	}
	return ErrLineNotFound
}

func (b *Builder) RemoveItem(lineID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range b.lines {
		if b.lines[i].ID == lineID {
			b.lines = append(b.lines[:i], b.lines[i+1:]...)
			return nil
		}
	}
	return ErrLineNotFound
}

func (b *Builder) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines = nil
}

// Total = sum over lines of (unit price + modifier prices) * quantity.
func (b *Builder) Total() int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var total int64
	for _, l := range b.lines {
		total += l.LineTotal()
	}
	return total
}

// Count is the number of units across all lines (for the "3 items" display).
func (b *Builder) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var n int
	for _, l := range b.lines {
		n += l.Quantity
	}
	return n
}

// Snapshot returns a deep copy of the lines for submission. The machine feeds
// this into order creation so later cart edits cannot mutate an in-flight call.
func (b *Builder) Snapshot() []domain.CartLine {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]domain.CartLine, len(b.lines))
	copy(out, b.lines)
	for i := range out {
		out[i].Modifiers = append([]domain.Modifier(nil), b.lines[i].Modifiers...)
	}
	return out
}

func (b *Builder) Empty() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.lines) == 0
}
