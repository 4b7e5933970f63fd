package ledger

import (
	"fmt"
	"iter"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/card-balance-ledger/internal/date"
	"github.com/sheikh-saqib/card-balance-ledger/internal/models"
)

// BalanceOn returns the balance recorded on exactly that day, or ErrNotFound.
func (l *Ledger) BalanceOn(on date.Date) (decimal.Decimal, error) {
	e := l.get(on)
	if e == nil {
		return decimal.Zero, fmt.Errorf("card %s on %s: %w", l.cardID, on, ErrNotFound)
	}
	return e.Balance, nil
}

// ClosestOnOrAfter returns the earliest entry dated on or after the given day.
func (l *Ledger) ClosestOnOrAfter(on date.Date) (models.BalanceEntry, bool) {
	return l.Ceiling(on)
}

// Entries returns an iterator over all entries in chronological order. Each
// call starts a fresh walk.
func (l *Ledger) Entries() iter.Seq[models.BalanceEntry] {
	return func(yield func(models.BalanceEntry) bool) {
		l.entries.Ascend(func(e *models.BalanceEntry) bool {
			return yield(*e)
		})
	}
}

// All returns a copy of all entries, earliest first.
func (l *Ledger) All() []models.BalanceEntry {
	out := make([]models.BalanceEntry, 0, l.entries.Len())
	for e := range l.Entries() {
		out = append(out, e)
	}
	return out
}
