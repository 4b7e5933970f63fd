// Package ledger keeps the daily balance ledger of a single credit card.
//
// A Ledger is an ordered set of balance entries, at most one per day, sorted
// ascending by date. The reconciliation operations (FillGaps, ApplyUpdate)
// keep it gapless and propagate balance corrections forward in time.
//
// A Ledger is not safe for concurrent use. Callers serialize access per card.
package ledger

import (
	"github.com/google/btree"
	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/card-balance-ledger/internal/date"
	"github.com/sheikh-saqib/card-balance-ledger/internal/models"
)

// degree of the underlying b-tree.
const degree = 16

// Ledger is the ordered, date-indexed balance series of one credit card.
type Ledger struct {
	cardID  string                              // card owning every entry
	entries *btree.BTreeG[*models.BalanceEntry] // entries ordered by date
	dirty   map[date.Date]struct{}              // days created or changed since New/Load
}

func byDate(a, b *models.BalanceEntry) bool { return a.Date.Before(b.Date) }

// New returns an empty ledger for the given card.
func New(cardID string) *Ledger {
	return &Ledger{
		cardID:  cardID,
		entries: btree.NewG(degree, byDate),
		dirty:   make(map[date.Date]struct{}),
	}
}

// Load rebuilds the ledger of a card from persisted entries, in any order.
// The result may have gaps. Loaded entries are not dirty.
func Load(cardID string, entries []models.BalanceEntry) (*Ledger, error) {
	l := New(cardID)
	for _, e := range entries {
		// two rows on one day means the stored ledger is corrupt
		if err := l.insert(e.Date, e.Balance); err != nil {
			return nil, err
		}
	}
	clear(l.dirty) // nothing loaded needs saving again
	return l, nil
}

// CardID returns the id of the card owning this ledger.
func (l *Ledger) CardID() string { return l.cardID }

// Len returns the number of entries.
func (l *Ledger) Len() int { return l.entries.Len() }

// IsEmpty reports whether the ledger has no entries.
func (l *Ledger) IsEmpty() bool { return l.entries.Len() == 0 }

// First returns the earliest entry.
func (l *Ledger) First() (models.BalanceEntry, bool) { return deref(l.entries.Min()) }

// Last returns the latest entry.
func (l *Ledger) Last() (models.BalanceEntry, bool) { return deref(l.entries.Max()) }

// Insert adds a new entry. It fails with a *DuplicateDateError if the ledger
// already has an entry on that day; no other entry changes.
func (l *Ledger) Insert(on date.Date, balance decimal.Decimal) error {
	return l.insert(on, balance)
}

// Ceiling returns the entry with the smallest date on or after the given day.
func (l *Ledger) Ceiling(on date.Date) (models.BalanceEntry, bool) {
	e := l.ceiling(on)
	return deref(e, e != nil)
}

// Successor returns the entry immediately following the given day.
func (l *Ledger) Successor(on date.Date) (models.BalanceEntry, bool) {
	e := l.ceiling(on.Add(1))
	return deref(e, e != nil)
}

// Dirty returns, in date order, the entries created or changed since the
// ledger was created or loaded.
func (l *Ledger) Dirty() []models.BalanceEntry {
	var out []models.BalanceEntry
	l.entries.Ascend(func(e *models.BalanceEntry) bool {
		if _, ok := l.dirty[e.Date]; ok {
			out = append(out, *e)
		}
		return true
	})
	return out
}

func (l *Ledger) insert(on date.Date, balance decimal.Decimal) error {
	if l.get(on) != nil {
		return &DuplicateDateError{CardID: l.cardID, Date: on}
	}
	l.put(on, balance)
	return nil
}

// put stores a new entry. Callers check that the day is free.
func (l *Ledger) put(on date.Date, balance decimal.Decimal) *models.BalanceEntry {
	e := &models.BalanceEntry{CardID: l.cardID, Date: on, Balance: balance}
	l.entries.ReplaceOrInsert(e) // add the entry to the tree
	l.dirty[on] = struct{}{}     // and remember it must be saved
	return e
}

// setBalance mutates an entry in place. The date is never touched.
func (l *Ledger) setBalance(e *models.BalanceEntry, balance decimal.Decimal) {
	if e.Balance.Equal(balance) {
		return // unchanged rows are not saved again
	}
	e.Balance = balance
	l.dirty[e.Date] = struct{}{}
}

func (l *Ledger) get(on date.Date) *models.BalanceEntry {
	e, ok := l.entries.Get(&models.BalanceEntry{Date: on}) // only the date is compared
	if !ok {
		return nil
	}
	return e
}

func (l *Ledger) ceiling(on date.Date) *models.BalanceEntry {
	var found *models.BalanceEntry
	l.entries.AscendGreaterOrEqual(&models.BalanceEntry{Date: on}, func(e *models.BalanceEntry) bool {
		found = e
		return false // the first one is the ceiling
	})
	return found
}

// deref copies an entry out of the tree so callers cannot mutate its date.
func deref(e *models.BalanceEntry, ok bool) (models.BalanceEntry, bool) {
	if !ok || e == nil {
		return models.BalanceEntry{}, false
	}
	return *e, true
}
