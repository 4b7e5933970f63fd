package events

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/card-balance-ledger/internal/date"
)

// BalanceUpdatedTopic is the default topic BalanceUpdated events are published to.
const BalanceUpdatedTopic = "card_balance_updated"

// BalanceUpdated is emitted once per balance fact applied to a card ledger.
type BalanceUpdated struct {
	EventID    string          `json:"event_id"`
	CardID     string          `json:"card_id"`
	Date       date.Date       `json:"date"`
	Balance    decimal.Decimal `json:"balance"`
	Delta      decimal.Decimal `json:"delta"`
	Inserted   bool            `json:"inserted"`
	Filled     int             `json:"filled"`
	Propagated int             `json:"propagated"`
	OccurredAt time.Time       `json:"occurred_at"`
}
