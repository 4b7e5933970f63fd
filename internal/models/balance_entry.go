package models

import (
	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/card-balance-ledger/internal/date"
)

// BalanceEntry is the running balance of one credit card on one day
type BalanceEntry struct {
	CardID  string          `json:"-"`       // owning card, by id only
	Date    date.Date       `json:"date"`    // ordering key, never changes once stored
	Balance decimal.Decimal `json:"balance"` // running balance, not a delta
}
