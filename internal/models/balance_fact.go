package models

import (
	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/card-balance-ledger/internal/date"
)

// BalanceFact is an observed balance for a card on a given day.
// It is the unit of input of a balance update batch.
type BalanceFact struct {
	CreditCardNumber string          `json:"creditCardNumber"`
	BalanceDate      date.Date       `json:"balanceDate"`
	BalanceAmount    decimal.Decimal `json:"balanceAmount"`
}
