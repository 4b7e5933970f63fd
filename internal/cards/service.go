// Package cards is the service in front of the card ledgers: it owns users
// and cards, routes balance facts to the right ledger and serializes access
// to each ledger.
package cards

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/card-balance-ledger/internal/date"
	interfaces "github.com/sheikh-saqib/card-balance-ledger/internal/interfaces"
	"github.com/sheikh-saqib/card-balance-ledger/internal/ledger"
	"github.com/sheikh-saqib/card-balance-ledger/internal/logger"
	"github.com/sheikh-saqib/card-balance-ledger/internal/models"
	"github.com/sheikh-saqib/card-balance-ledger/internal/models/events"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrCardNotFound  = errors.New("credit card not found")
	ErrDuplicateCard = errors.New("credit card number already registered")
	ErrInvalidInput  = errors.New("invalid input")
)

// DefaultMaxSpanDays is roughly ten years.
const DefaultMaxSpanDays = 3660

// Options tune a Service. The zero value is usable.
type Options struct {
	// Topic BalanceUpdated events are published to.
	Topic string
	// How long a card looked up by number stays cached.
	CardCacheTTL time.Duration
	// Carry every updated ledger forward to today after applying a batch.
	ExtendToToday bool
	// How many days a fact may lie outside the ledger's first and last day.
	// Bounds the rows a single fact can create.
	MaxSpanDays int
	// Clock, for tests.
	Now func() time.Time
}

// Service holds the storage and publishing collaborators and a lock per card.
type Service struct {
	store     interfaces.CardStore
	publisher interfaces.EventPublisher
	opts      Options
	cards     *cache.Cache             // card number -> models.CreditCard
	muMap     map[string]*sync.RWMutex // stores the lock of each card id
	mapMu     sync.Mutex               // protects the muMap itself
}

func NewService(store interfaces.CardStore, publisher interfaces.EventPublisher, opts Options) *Service {
	if opts.Topic == "" {
		opts.Topic = events.BalanceUpdatedTopic
	}
	if opts.CardCacheTTL <= 0 {
		opts.CardCacheTTL = 5 * time.Minute
	}
	if opts.MaxSpanDays <= 0 {
		opts.MaxSpanDays = DefaultMaxSpanDays
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:     store,
		publisher: publisher,
		opts:      opts,
		cards:     cache.New(opts.CardCacheTTL, 2*opts.CardCacheTTL),
		muMap:     make(map[string]*sync.RWMutex),
	}
}

func (s *Service) getCardLock(cardID string) *sync.RWMutex {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()

	if _, exists := s.muMap[cardID]; !exists {
		s.muMap[cardID] = &sync.RWMutex{} // first use of this card
	}
	return s.muMap[cardID]
}

// CreateUser stores a new user and returns it with its generated id.
func (s *Service) CreateUser(ctx context.Context, name, email string) (models.User, error) {
	name, email = strings.TrimSpace(name), strings.TrimSpace(email)
	if name == "" || email == "" {
		return models.User{}, fmt.Errorf("%w: name and email are required", ErrInvalidInput)
	}
	user := models.User{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     email,
		CreatedAt: s.opts.Now().UTC(),
	}
	if err := s.store.SaveUser(ctx, user); err != nil {
		return models.User{}, err
	}
	logger.FromContext(ctx).Info("User created", "userID", user.ID)
	return user, nil
}

// DeleteUser removes a user together with its cards and their ledgers.
func (s *Service) DeleteUser(ctx context.Context, userID string) error {
	cards, err := s.store.ListCardsByUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteUser(ctx, userID); err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrUserNotFound, userID)
		}
		return err
	}
	s.forgetCards(cards)
	logger.FromContext(ctx).Info("User deleted", "userID", userID, "cards", len(cards))
	return nil
}

// AddCard associates a new credit card with an existing user. The number is
// not validated beyond being non-empty.
func (s *Service) AddCard(ctx context.Context, userID, issuanceBank, number string) (models.CreditCard, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return models.CreditCard{}, fmt.Errorf("%w: card number is required", ErrInvalidInput)
	}
	if _, err := s.getUser(ctx, userID); err != nil {
		return models.CreditCard{}, err
	}
	card := models.CreditCard{
		ID:           uuid.New().String(),
		UserID:       userID,
		IssuanceBank: issuanceBank,
		Number:       number,
		CreatedAt:    s.opts.Now().UTC(),
	}
	if err := s.store.SaveCard(ctx, card); err != nil {
		switch {
		case errors.Is(err, interfaces.ErrConflict):
			return models.CreditCard{}, fmt.Errorf("%w: %s", ErrDuplicateCard, number)
		case errors.Is(err, interfaces.ErrNotFound):
			return models.CreditCard{}, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
		}
		return models.CreditCard{}, err
	}
	s.cards.Set(card.Number, card, cache.DefaultExpiration)
	logger.FromContext(ctx).Info("Credit card added", "userID", userID, "cardID", card.ID)
	return card, nil
}

// ListCards returns the cards of an existing user, never nil.
func (s *Service) ListCards(ctx context.Context, userID string) ([]models.CreditCard, error) {
	if _, err := s.getUser(ctx, userID); err != nil {
		return nil, err
	}
	cards, err := s.store.ListCardsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cards == nil {
		cards = []models.CreditCard{}
	}
	return cards, nil
}

// OwnerOf returns the id of the user holding the card with that number.
func (s *Service) OwnerOf(ctx context.Context, number string) (string, error) {
	card, err := s.cardByNumber(ctx, number)
	if err != nil {
		return "", err
	}
	return card.UserID, nil
}

// UpdateBalances applies a batch of balance facts.
//
// Every card number is resolved before anything changes: an unknown number
// fails the whole batch. Facts of one card are applied in ascending date
// order, facts sharing a date in input order (so the last one wins). All
// touched cards are locked for the whole batch and their changed rows are
// saved in one store transaction. Events are published after the commit.
func (s *Service) UpdateBalances(ctx context.Context, facts []models.BalanceFact) ([]events.BalanceUpdated, error) {
	log := logger.FromContext(ctx)

	byCard := make(map[string][]models.BalanceFact)
	// Resolve every card number before touching any ledger
	for i, fact := range facts {
		if fact.BalanceDate.IsZero() {
			return nil, fmt.Errorf("%w: fact %d has no balance date", ErrInvalidInput, i)
		}
		card, err := s.cardByNumber(ctx, fact.CreditCardNumber)
		if err != nil {
			return nil, err
		}
		byCard[card.ID] = append(byCard[card.ID], fact)
	}

	cardIDs := make([]string, 0, len(byCard))
	for id := range byCard {
		cardIDs = append(cardIDs, id)
	}
	// Lock in order to avoid deadlocks
	slices.Sort(cardIDs)
	for _, id := range cardIDs {
		mu := s.getCardLock(id)
		mu.Lock()
		defer mu.Unlock()
	}

	today := date.Of(s.opts.Now())
	var dirty []models.BalanceEntry     // rows to save, across all cards
	var updates []events.BalanceUpdated // one event per applied fact
	for _, id := range cardIDs {
		// rebuild the ledger from the store, a failure below discards it
		l, err := s.loadLedger(ctx, id)
		if err != nil {
			return nil, err
		}

		// earliest first, same-day facts keep their input order
		cardFacts := byCard[id]
		slices.SortStableFunc(cardFacts, func(a, b models.BalanceFact) int {
			return a.BalanceDate.Compare(b.BalanceDate)
		})
		for _, fact := range cardFacts {
			// reject facts that would create an unbounded number of rows
			if err := s.checkSpan(l, fact.BalanceDate); err != nil {
				return nil, err
			}
			u := l.ApplyUpdate(fact.BalanceDate, fact.BalanceAmount)
			updates = append(updates, s.newEvent(id, u))
			log.Debug("Balance fact applied", "cardID", id, "date", u.Date.String(),
				"delta", u.Delta.String(), "inserted", u.Inserted, "filled", u.Filled, "propagated", u.Propagated)
		}
		if s.opts.ExtendToToday {
			if err := s.checkSpan(l, today); err != nil {
				return nil, err
			}
			if n := l.ExtendThrough(today); n > 0 {
				log.Debug("Ledger extended to today", "cardID", id, "added", n)
			}
		}
		dirty = append(dirty, l.Dirty()...) // only created or changed rows

		// past the deadline nothing is saved
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	if err := s.store.SaveEntries(ctx, dirty); err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			// a card was deleted after its number was resolved
			for _, fact := range facts {
				s.cards.Delete(fact.CreditCardNumber)
			}
			return nil, fmt.Errorf("%w: deleted while updating", ErrCardNotFound)
		}
		return nil, fmt.Errorf("save ledgers: %w", err)
	}
	log.Info("Balance batch applied", "facts", len(facts), "cards", len(cardIDs), "rows", len(dirty))

	// Publish after the commit, a failed publish does not undo the batch
	for _, u := range updates {
		if err := s.publisher.Publish(ctx, s.opts.Topic, u.CardID, u); err != nil {
			log.Warn("Failed to publish balance event", "cardID", u.CardID, "eventID", u.EventID, "error", err)
		}
	}
	return updates, nil
}

// BalanceOn returns the balance of the card on exactly that day.
// It fails with ledger.ErrNotFound when the ledger has no entry on that day.
func (s *Service) BalanceOn(ctx context.Context, number string, on date.Date) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := s.read(ctx, number, func(l *ledger.Ledger) (err error) {
		balance, err = l.BalanceOn(on)
		return err
	})
	return balance, err
}

// ClosestOnOrAfter returns the earliest ledger entry on or after the given
// day, or ledger.ErrNotFound when the day is past the last entry.
func (s *Service) ClosestOnOrAfter(ctx context.Context, number string, on date.Date) (models.BalanceEntry, error) {
	var entry models.BalanceEntry
	err := s.read(ctx, number, func(l *ledger.Ledger) error {
		e, ok := l.ClosestOnOrAfter(on)
		if !ok {
			return fmt.Errorf("no balance on or after %s: %w", on, ledger.ErrNotFound)
		}
		entry = e
		return nil
	})
	return entry, err
}

// History returns the whole ledger of the card, earliest first, never nil.
func (s *Service) History(ctx context.Context, number string) ([]models.BalanceEntry, error) {
	var entries []models.BalanceEntry
	err := s.read(ctx, number, func(l *ledger.Ledger) error {
		entries = l.All()
		return nil
	})
	return entries, err
}

// read runs fn on the ledger of the card while holding its read lock.
func (s *Service) read(ctx context.Context, number string, fn func(*ledger.Ledger) error) error {
	card, err := s.cardByNumber(ctx, number)
	if err != nil {
		return err
	}
	mu := s.getCardLock(card.ID)
	mu.RLock()
	defer mu.RUnlock()

	l, err := s.loadLedger(ctx, card.ID)
	if err != nil {
		return err
	}
	return fn(l)
}

func (s *Service) loadLedger(ctx context.Context, cardID string) (*ledger.Ledger, error) {
	entries, err := s.store.LoadEntries(ctx, cardID)
	if err != nil {
		return nil, fmt.Errorf("load ledger of card %s: %w", cardID, err)
	}
	return ledger.Load(cardID, entries)
}

func (s *Service) getUser(ctx context.Context, userID string) (models.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, interfaces.ErrNotFound) {
		return models.User{}, fmt.Errorf("%w: %s", ErrUserNotFound, userID)
	}
	return user, err
}

func (s *Service) cardByNumber(ctx context.Context, number string) (models.CreditCard, error) {
	if cached, ok := s.cards.Get(number); ok {
		return cached.(models.CreditCard), nil
	}
	card, err := s.store.GetCardByNumber(ctx, number)
	if errors.Is(err, interfaces.ErrNotFound) {
		return models.CreditCard{}, fmt.Errorf("%w: %s", ErrCardNotFound, number)
	}
	if err != nil {
		return models.CreditCard{}, err
	}
	s.cards.Set(number, card, cache.DefaultExpiration)
	return card, nil
}

// checkSpan fails with ErrInvalidInput when on lies more than MaxSpanDays
// before the first or after the last day of a non-empty ledger.
func (s *Service) checkSpan(l *ledger.Ledger, on date.Date) error {
	first, ok := l.First()
	if !ok {
		return nil
	}
	last, _ := l.Last()
	if on.DaysUntil(first.Date) > s.opts.MaxSpanDays || last.Date.DaysUntil(on) > s.opts.MaxSpanDays {
		return fmt.Errorf("%w: %s is more than %d days outside the ledger [%s, %s]",
			ErrInvalidInput, on, s.opts.MaxSpanDays, first.Date, last.Date)
	}
	return nil
}

// forgetCards drops the cached lookups and the locks of deleted cards.
func (s *Service) forgetCards(cards []models.CreditCard) {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()

	for _, card := range cards {
		s.cards.Delete(card.Number)
		delete(s.muMap, card.ID)
	}
}

func (s *Service) newEvent(cardID string, u ledger.Update) events.BalanceUpdated {
	return events.BalanceUpdated{
		EventID:    uuid.New().String(),
		CardID:     cardID,
		Date:       u.Date,
		Balance:    u.Balance,
		Delta:      u.Delta,
		Inserted:   u.Inserted,
		Filled:     u.Filled,
		Propagated: u.Propagated,
		OccurredAt: s.opts.Now().UTC(),
	}
}
