package interfaces

import (
	"context"
	"errors"

	"github.com/sheikh-saqib/card-balance-ledger/internal/models"
)

var (
	// ErrNotFound is returned when the requested user or card does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("record already exists")
)

// CardStore persists users, their cards and the balance ledger of each card.
type CardStore interface {
	SaveUser(ctx context.Context, user models.User) error
	GetUser(ctx context.Context, userID string) (models.User, error)
	// DeleteUser removes the user with its cards and their ledgers.
	DeleteUser(ctx context.Context, userID string) error

	SaveCard(ctx context.Context, card models.CreditCard) error
	GetCardByNumber(ctx context.Context, number string) (models.CreditCard, error)
	ListCardsByUser(ctx context.Context, userID string) ([]models.CreditCard, error)

	// LoadEntries returns the stored ledger rows of a card, earliest first.
	LoadEntries(ctx context.Context, cardID string) ([]models.BalanceEntry, error)
	// SaveEntries upserts ledger rows, keyed by (card, date), in a single
	// transaction: either every row is written or none is.
	SaveEntries(ctx context.Context, entries []models.BalanceEntry) error

	Close() error
}
