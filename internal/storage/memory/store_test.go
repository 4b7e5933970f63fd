package memory

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/card-balance-ledger/internal/date"
	interfaces "github.com/sheikh-saqib/card-balance-ledger/internal/interfaces"
	"github.com/sheikh-saqib/card-balance-ledger/internal/models"
)

func seed(t *testing.T, m *MemoryCardStore) (models.User, models.CreditCard) {
	t.Helper()
	ctx := context.Background()
	user := models.User{ID: "u1", Name: "Ada", Email: "ada@example.com", CreatedAt: time.Now()}
	require.NoError(t, m.SaveUser(ctx, user))
	card := models.CreditCard{ID: "c1", UserID: "u1", IssuanceBank: "CHASE", Number: "4111", CreatedAt: time.Now()}
	require.NoError(t, m.SaveCard(ctx, card))
	return user, card
}

func TestUsersAndCards(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryCardStore()
	user, card := seed(t, m)

	got, err := m.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, got.Email)

	_, err = m.GetUser(ctx, "nobody")
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	byNumber, err := m.GetCardByNumber(ctx, "4111")
	require.NoError(t, err)
	assert.Equal(t, card.ID, byNumber.ID)

	err = m.SaveCard(ctx, models.CreditCard{ID: "c2", UserID: "u1", Number: "4111"})
	assert.ErrorIs(t, err, interfaces.ErrConflict)

	err = m.SaveCard(ctx, models.CreditCard{ID: "c3", UserID: "ghost", Number: "5500"})
	assert.ErrorIs(t, err, interfaces.ErrNotFound)

	cards, err := m.ListCardsByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, cards, 1)

	none, err := m.ListCardsByUser(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestEntriesUpsertAndOrder(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryCardStore()
	_, card := seed(t, m)

	require.NoError(t, m.SaveEntries(ctx, []models.BalanceEntry{
		{CardID: card.ID, Date: date.MustParse("2024-04-12"), Balance: decimal.NewFromInt(110)},
		{CardID: card.ID, Date: date.MustParse("2024-04-10"), Balance: decimal.NewFromInt(100)},
	}))
	require.NoError(t, m.SaveEntries(ctx, []models.BalanceEntry{
		{CardID: card.ID, Date: date.MustParse("2024-04-12"), Balance: decimal.NewFromInt(120)},
	}))

	entries, err := m.LoadEntries(ctx, card.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, date.MustParse("2024-04-10"), entries[0].Date)
	assert.Equal(t, "120", entries[1].Balance.String())

	err = m.SaveEntries(ctx, []models.BalanceEntry{
		{CardID: card.ID, Date: date.MustParse("2024-04-13"), Balance: decimal.NewFromInt(1)},
		{CardID: "ghost", Date: date.MustParse("2024-04-13"), Balance: decimal.NewFromInt(1)},
	})
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
	entries, err = m.LoadEntries(ctx, card.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "a failed save writes nothing")
}

func TestDeleteUserCascades(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryCardStore()
	user, card := seed(t, m)
	require.NoError(t, m.SaveEntries(ctx, []models.BalanceEntry{
		{CardID: card.ID, Date: date.MustParse("2024-04-10"), Balance: decimal.NewFromInt(100)},
	}))

	require.NoError(t, m.DeleteUser(ctx, user.ID))

	_, err := m.GetCardByNumber(ctx, card.Number)
	assert.ErrorIs(t, err, interfaces.ErrNotFound)
	entries, err := m.LoadEntries(ctx, card.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)

	assert.ErrorIs(t, m.DeleteUser(ctx, user.ID), interfaces.ErrNotFound)
}
