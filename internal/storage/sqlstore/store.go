// Package sqlstore implements interfaces.CardStore on database/sql. The
// postgres and sqlite packages open the database, run their migrations and
// supply the Dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	interfaces "github.com/sheikh-saqib/card-balance-ledger/internal/interfaces"
	"github.com/sheikh-saqib/card-balance-ledger/internal/models"
)

// Dialect captures what differs between the supported databases.
type Dialect struct {
	Name string
	// Numbered placeholders ($1, $2...) instead of "?".
	Numbered bool
	// Classify maps driver constraint errors onto interfaces.ErrConflict and
	// interfaces.ErrNotFound; other errors are returned unchanged.
	Classify func(error) error
}

// SQLCardStore is a CardStore backed by a *sql.DB.
type SQLCardStore struct {
	db      *sql.DB
	dialect Dialect
}

func New(db *sql.DB, dialect Dialect) *SQLCardStore {
	if dialect.Classify == nil {
		dialect.Classify = func(err error) error { return err }
	}
	return &SQLCardStore{db: db, dialect: dialect}
}

// DB exposes the underlying handle, mostly for tests.
func (s *SQLCardStore) DB() *sql.DB { return s.db }

// rebind rewrites "?" placeholders for dialects using numbered ones.
func (s *SQLCardStore) rebind(query string) string {
	if !s.dialect.Numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLCardStore) SaveUser(ctx context.Context, user models.User) error {
	const query = `INSERT INTO users (id, name, email, created_at) VALUES (?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, s.rebind(query), user.ID, user.Name, user.Email, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("save user %s: %w", user.ID, s.dialect.Classify(err))
	}
	return nil
}

func (s *SQLCardStore) GetUser(ctx context.Context, userID string) (models.User, error) {
	const query = `SELECT id, name, email, created_at FROM users WHERE id = ?`

	var u models.User
	err := s.db.QueryRowContext(ctx, s.rebind(query), userID).Scan(&u.ID, &u.Name, &u.Email, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, interfaces.ErrNotFound
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user %s: %w", userID, err)
	}
	return u, nil
}

// DeleteUser relies on ON DELETE CASCADE to remove cards and ledger rows.
func (s *SQLCardStore) DeleteUser(ctx context.Context, userID string) error {
	const query = `DELETE FROM users WHERE id = ?`

	res, err := s.db.ExecContext(ctx, s.rebind(query), userID)
	if err != nil {
		return fmt.Errorf("delete user %s: %w", userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user %s: %w", userID, err)
	}
	if n == 0 {
		return interfaces.ErrNotFound
	}
	return nil
}

func (s *SQLCardStore) SaveCard(ctx context.Context, card models.CreditCard) error {
	const query = `INSERT INTO credit_cards (id, user_id, issuance_bank, number, created_at)
	VALUES (?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, s.rebind(query), card.ID, card.UserID, card.IssuanceBank, card.Number, card.CreatedAt)
	if err != nil {
		return fmt.Errorf("save card %s: %w", card.ID, s.dialect.Classify(err))
	}
	return nil
}

func (s *SQLCardStore) GetCardByNumber(ctx context.Context, number string) (models.CreditCard, error) {
	const query = `SELECT id, user_id, issuance_bank, number, created_at FROM credit_cards WHERE number = ?`

	var c models.CreditCard
	err := s.db.QueryRowContext(ctx, s.rebind(query), number).Scan(&c.ID, &c.UserID, &c.IssuanceBank, &c.Number, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.CreditCard{}, interfaces.ErrNotFound
	}
	if err != nil {
		return models.CreditCard{}, fmt.Errorf("get card by number: %w", err)
	}
	return c, nil
}

func (s *SQLCardStore) ListCardsByUser(ctx context.Context, userID string) ([]models.CreditCard, error) {
	const query = `SELECT id, user_id, issuance_bank, number, created_at FROM credit_cards
	WHERE user_id = ? ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), userID)
	if err != nil {
		return nil, fmt.Errorf("list cards of user %s: %w", userID, err)
	}
	defer rows.Close()

	cards := []models.CreditCard{}
	for rows.Next() {
		var c models.CreditCard
		if err := rows.Scan(&c.ID, &c.UserID, &c.IssuanceBank, &c.Number, &c.CreatedAt); err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return cards, nil
}

func (s *SQLCardStore) LoadEntries(ctx context.Context, cardID string) ([]models.BalanceEntry, error) {
	const query = `SELECT card_id, day, balance FROM balance_entries WHERE card_id = ? ORDER BY day`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), cardID)
	if err != nil {
		return nil, fmt.Errorf("load ledger of card %s: %w", cardID, err)
	}
	defer rows.Close()

	var entries []models.BalanceEntry
	for rows.Next() {
		var e models.BalanceEntry
		if err := rows.Scan(&e.CardID, &e.Date, &e.Balance); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *SQLCardStore) SaveEntries(ctx context.Context, entries []models.BalanceEntry) (err error) {
	const query = `INSERT INTO balance_entries (card_id, day, balance) VALUES (?, ?, ?)
	ON CONFLICT (card_id, day) DO UPDATE SET balance = excluded.balance`

	if len(entries) == 0 {
		return nil
	}

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			dbTx.Rollback()
		}
	}()

	stmt, err := dbTx.PrepareContext(ctx, s.rebind(query))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err = stmt.ExecContext(ctx, e.CardID, e.Date, e.Balance); err != nil {
			return fmt.Errorf("save ledger entry %s/%s: %w", e.CardID, e.Date, s.dialect.Classify(err))
		}
	}
	return dbTx.Commit()
}

func (s *SQLCardStore) Close() error { return s.db.Close() }

var _ interfaces.CardStore = (*SQLCardStore)(nil)
