package models

import "time"

// CreditCard belongs to exactly one user and owns exactly one balance ledger.
type CreditCard struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	IssuanceBank string    `json:"issuanceBank"`
	Number       string    `json:"number"`
	CreatedAt    time.Time `json:"createdAt"`
}
