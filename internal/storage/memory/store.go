package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/sheikh-saqib/card-balance-ledger/internal/date"
	interfaces "github.com/sheikh-saqib/card-balance-ledger/internal/interfaces"
	"github.com/sheikh-saqib/card-balance-ledger/internal/models"
)

// MemoryCardStore is an in-memory implementation of interfaces.CardStore.
// It is thread-safe and keeps copies, so callers never share state with it.
type MemoryCardStore struct {
	mu      sync.Mutex                                   // protects every map below
	users   map[string]models.User                       // by user id
	cards   map[string]models.CreditCard                 // by card id
	numbers map[string]string                            // card number -> card id
	entries map[string]map[date.Date]models.BalanceEntry // card id -> day -> entry
}

// NewMemoryCardStore creates and returns a new MemoryCardStore instance
func NewMemoryCardStore() *MemoryCardStore {
	return &MemoryCardStore{
		users:   make(map[string]models.User),
		cards:   make(map[string]models.CreditCard),
		numbers: make(map[string]string),
		entries: make(map[string]map[date.Date]models.BalanceEntry),
	}
}

func (m *MemoryCardStore) SaveUser(ctx context.Context, user models.User) error {
	m.mu.Lock()         // lock the mutex to prevent concurrent writes
	defer m.mu.Unlock() // unlock automatically when function exits (even if error occurs)

	m.users[user.ID] = user // overwrite, saving is an upsert
	return nil              // always succeeds in memory, so returns nil
}

func (m *MemoryCardStore) GetUser(ctx context.Context, userID string) (models.User, error) {
	m.mu.Lock()         // lock to prevent concurrent modification while reading
	defer m.mu.Unlock() // unlock automatically at the end

	user, ok := m.users[userID]
	if !ok {
		return models.User{}, interfaces.ErrNotFound
	}
	return user, nil
}

// DeleteUser removes the user and cascades to its cards and ledgers.
func (m *MemoryCardStore) DeleteUser(ctx context.Context, userID string) error {
	m.mu.Lock()         // lock the mutex to prevent concurrent writes
	defer m.mu.Unlock() // unlock automatically when function exits (even if error occurs)

	if _, ok := m.users[userID]; !ok {
		return interfaces.ErrNotFound
	}
	// drop every card of the user, with its number index and its ledger
	for id, card := range m.cards {
		if card.UserID == userID {
			delete(m.numbers, card.Number)
			delete(m.entries, id)
			delete(m.cards, id)
		}
	}
	delete(m.users, userID)
	return nil
}

func (m *MemoryCardStore) SaveCard(ctx context.Context, card models.CreditCard) error {
	m.mu.Lock()         // lock the mutex to prevent concurrent writes
	defer m.mu.Unlock() // unlock automatically when function exits (even if error occurs)

	// the holder must exist, like the foreign key in the sql stores
	if _, ok := m.users[card.UserID]; !ok {
		return interfaces.ErrNotFound
	}
	// card numbers are unique across users
	if id, taken := m.numbers[card.Number]; taken && id != card.ID {
		return interfaces.ErrConflict
	}
	m.cards[card.ID] = card          // store the card by id
	m.numbers[card.Number] = card.ID // and index it by number
	return nil
}

func (m *MemoryCardStore) GetCardByNumber(ctx context.Context, number string) (models.CreditCard, error) {
	m.mu.Lock()         // lock to prevent concurrent modification while reading
	defer m.mu.Unlock() // unlock automatically at the end

	id, ok := m.numbers[number]
	if !ok {
		return models.CreditCard{}, interfaces.ErrNotFound
	}
	return m.cards[id], nil
}

// ListCardsByUser returns the user's cards, oldest first.
func (m *MemoryCardStore) ListCardsByUser(ctx context.Context, userID string) ([]models.CreditCard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := []models.CreditCard{} // never nil, so it encodes as []
	for _, card := range m.cards {
		if card.UserID == userID {
			result = append(result, card)
		}
	}
	slices.SortFunc(result, func(a, b models.CreditCard) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.ID, b.ID))
	})
	return result, nil
}

func (m *MemoryCardStore) LoadEntries(ctx context.Context, cardID string) ([]models.BalanceEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// copy the entries out so external code can't modify internal state
	result := make([]models.BalanceEntry, 0, len(m.entries[cardID]))
	for _, e := range m.entries[cardID] {
		result = append(result, e)
	}
	// map order is random, return them earliest first
	slices.SortFunc(result, func(a, b models.BalanceEntry) int { return a.Date.Compare(b.Date) })
	return result, nil
}

// SaveEntries upserts all rows under a single lock, so readers see either
// none or all of them.
func (m *MemoryCardStore) SaveEntries(ctx context.Context, entries []models.BalanceEntry) error {
	m.mu.Lock()         // lock the mutex to prevent concurrent writes
	defer m.mu.Unlock() // unlock automatically when function exits (even if error occurs)

	// validate every row first so a failure writes nothing
	for _, e := range entries {
		if _, ok := m.cards[e.CardID]; !ok {
			return interfaces.ErrNotFound
		}
	}
	for _, e := range entries {
		days, ok := m.entries[e.CardID]
		if !ok {
			days = make(map[date.Date]models.BalanceEntry) // first rows of this card
			m.entries[e.CardID] = days
		}
		days[e.Date] = e // insert or replace the day
	}
	return nil
}

func (m *MemoryCardStore) Close() error { return nil }

// Compile-time check: ensure MemoryCardStore implements CardStore interface
var _ interfaces.CardStore = (*MemoryCardStore)(nil)
