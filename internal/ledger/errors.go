package ledger

import (
	"errors"
	"fmt"

	"github.com/sheikh-saqib/card-balance-ledger/internal/date"
)

// ErrNotFound is returned by exact-date lookups when the ledger has no entry on that day.
var ErrNotFound = errors.New("no balance recorded on date")

// DuplicateDateError is returned by Insert when the ledger already holds an
// entry for the date.
type DuplicateDateError struct {
	CardID string
	Date   date.Date
}

func (e *DuplicateDateError) Error() string {
	return fmt.Sprintf("card %s already has a balance on %s", e.CardID, e.Date)
}
