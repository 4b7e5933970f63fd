package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/card-balance-ledger/internal/date"
	"github.com/sheikh-saqib/card-balance-ledger/internal/models"
)

// Update summarizes what ApplyUpdate did to the ledger.
type Update struct {
	Date       date.Date
	Balance    decimal.Decimal // observed balance now stored on Date
	Delta      decimal.Decimal // change applied on Date and every later day
	Inserted   bool            // Date had no entry before the update, even after gap filling
	Filled     int             // filler entries synthesized
	Propagated int             // later entries shifted by Delta
}

// FillGaps synthesizes one entry per missing day between the first and the
// last entry, each carrying the balance of the closest earlier entry. It
// never adds days outside the current range and returns the number of
// entries created. Calling it on a gapless ledger is a no-op.
func (l *Ledger) FillGaps() int {
	if l.entries.Len() < 2 {
		return 0
	}

	// The tree must not change while we walk it: fillers are buffered and
	// inserted afterwards.
	var gaps []models.BalanceEntry
	var left *models.BalanceEntry
	l.entries.Ascend(func(right *models.BalanceEntry) bool {
		if left != nil {
			for on := left.Date.Add(1); on.Before(right.Date); on = on.Add(1) {
				gaps = append(gaps, models.BalanceEntry{Date: on, Balance: left.Balance})
			}
		}
		left = right
		return true
	})

	for _, gap := range gaps {
		l.put(gap.Date, gap.Balance)
	}
	return len(gaps)
}

// ApplyUpdate records that the balance on a day was observed to be
// `observed`.
//
// If the day already has an entry (possibly a filler), its balance is
// replaced and the same signed delta is added to every later entry.
// Otherwise a new entry is inserted and the ledger is gap filled again, so a
// fact past the last known day is backfilled with the previous last balance.
func (l *Ledger) ApplyUpdate(on date.Date, observed decimal.Decimal) Update {
	u := Update{Date: on, Balance: observed, Delta: decimal.Zero}

	if l.IsEmpty() {
		l.put(on, observed)
		u.Inserted = true
		return u
	}

	u.Filled = l.FillGaps()

	closest := l.ceiling(on)
	if closest == nil || closest.Date != on {
		l.put(on, observed)
		u.Inserted = true
		u.Filled += l.FillGaps()
		return u
	}

	u.Delta = observed.Sub(closest.Balance)
	l.setBalance(closest, observed)
	if u.Delta.IsZero() {
		return u
	}
	l.entries.AscendGreaterOrEqual(&models.BalanceEntry{Date: on.Add(1)}, func(e *models.BalanceEntry) bool {
		l.setBalance(e, e.Balance.Add(u.Delta))
		u.Propagated++
		return true
	})
	return u
}

// ExtendThrough carries the last balance forward, one entry per day, up to
// and including the given day. It does nothing if the ledger is empty or
// already reaches that day, and returns the number of entries created.
func (l *Ledger) ExtendThrough(on date.Date) int {
	last, ok := l.entries.Max()
	if !ok || !last.Date.Before(on) {
		return 0
	}
	n := 0
	for d := last.Date.Add(1); !d.After(on); d = d.Add(1) {
		l.put(d, last.Balance)
		n++
	}
	return n
}
