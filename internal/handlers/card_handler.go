package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/card-balance-ledger/internal/cards"
	"github.com/sheikh-saqib/card-balance-ledger/internal/date"
	"github.com/sheikh-saqib/card-balance-ledger/internal/ledger"
	"github.com/sheikh-saqib/card-balance-ledger/internal/logger"
	"github.com/sheikh-saqib/card-balance-ledger/internal/models"
	"github.com/sheikh-saqib/card-balance-ledger/internal/models/events"
)

// CardService is what the HTTP layer needs from cards.Service.
type CardService interface {
	CreateUser(ctx context.Context, name, email string) (models.User, error)
	DeleteUser(ctx context.Context, userID string) error
	AddCard(ctx context.Context, userID, issuanceBank, number string) (models.CreditCard, error)
	ListCards(ctx context.Context, userID string) ([]models.CreditCard, error)
	OwnerOf(ctx context.Context, number string) (string, error)
	UpdateBalances(ctx context.Context, facts []models.BalanceFact) ([]events.BalanceUpdated, error)
	BalanceOn(ctx context.Context, number string, on date.Date) (decimal.Decimal, error)
	ClosestOnOrAfter(ctx context.Context, number string, on date.Date) (models.BalanceEntry, error)
	History(ctx context.Context, number string) ([]models.BalanceEntry, error)
}

type CardHandler struct {
	service CardService
}

func NewCardHandler(service CardService) *CardHandler {
	return &CardHandler{service: service}
}

// CreditCardView is the public projection of a card.
type CreditCardView struct {
	IssuanceBank string `json:"issuanceBank"`
	Number       string `json:"number"`
}

type balanceView struct {
	Date    date.Date       `json:"date"`
	Balance decimal.Decimal `json:"balance"`
}

func (h *CardHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	user, err := h.service.CreateUser(r.Context(), req.Name, req.Email)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]string{"id": user.ID})
}

func (h *CardHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		sendJSONError(w, "userId is a mandatory field", http.StatusBadRequest)
		return
	}
	if err := h.service.DeleteUser(r.Context(), userID); err != nil {
		h.fail(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]string{"message": "Deletion succeeded"})
}

func (h *CardHandler) AddCard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID           string `json:"userId"`
		CardIssuanceBank string `json:"cardIssuanceBank"`
		CardNumber       string `json:"cardNumber"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	card, err := h.service.AddCard(r.Context(), req.UserID, req.CardIssuanceBank, req.CardNumber)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]string{"id": card.ID})
}

func (h *CardHandler) ListCards(w http.ResponseWriter, r *http.Request) {
	cardList, err := h.service.ListCards(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	views := make([]CreditCardView, 0, len(cardList))
	for _, c := range cardList {
		views = append(views, CreditCardView{IssuanceBank: c.IssuanceBank, Number: c.Number})
	}
	sendJSON(w, http.StatusOK, views)
}

func (h *CardHandler) GetUserIDForCard(w http.ResponseWriter, r *http.Request) {
	userID, err := h.service.OwnerOf(r.Context(), r.URL.Query().Get("creditCardNumber"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]string{"userId": userID})
}

func (h *CardHandler) UpdateBalance(w http.ResponseWriter, r *http.Request) {
	var facts []models.BalanceFact
	if err := json.NewDecoder(r.Body).Decode(&facts); err != nil {
		sendJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	updates, err := h.service.UpdateBalances(r.Context(), facts)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, map[string]int{"applied": len(updates)})
}

func (h *CardHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	number, on, ok := cardAndDate(w, r)
	if !ok {
		return
	}
	balance, err := h.service.BalanceOn(r.Context(), number, on)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, balanceView{Date: on, Balance: balance})
}

func (h *CardHandler) GetClosestBalance(w http.ResponseWriter, r *http.Request) {
	number, on, ok := cardAndDate(w, r)
	if !ok {
		return
	}
	entry, err := h.service.ClosestOnOrAfter(r.Context(), number, on)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sendJSON(w, http.StatusOK, balanceView{Date: entry.Date, Balance: entry.Balance})
}

func (h *CardHandler) GetBalanceHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.History(r.Context(), r.URL.Query().Get("creditCardNumber"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	views := make([]balanceView, 0, len(entries))
	for _, e := range entries {
		views = append(views, balanceView{Date: e.Date, Balance: e.Balance})
	}
	sendJSON(w, http.StatusOK, views)
}

func cardAndDate(w http.ResponseWriter, r *http.Request) (string, date.Date, bool) {
	q := r.URL.Query()
	number := q.Get("creditCardNumber")
	if strings.TrimSpace(number) == "" {
		sendJSONError(w, "creditCardNumber is a mandatory field", http.StatusBadRequest)
		return "", date.Date{}, false
	}
	on, err := date.Parse(q.Get("date"))
	if err != nil {
		sendJSONError(w, "date must be formatted as YYYY-MM-DD", http.StatusBadRequest)
		return "", date.Date{}, false
	}
	return number, on, true
}

// fail maps service errors onto status codes. Unknown users and cards are
// reported as 400 Bad Request, a missing balance as 404.
func (h *CardHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, cards.ErrInvalidInput),
		errors.Is(err, cards.ErrUserNotFound),
		errors.Is(err, cards.ErrCardNotFound):
		sendJSONError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, cards.ErrDuplicateCard):
		sendJSONError(w, err.Error(), http.StatusConflict)
	case errors.Is(err, ledger.ErrNotFound):
		sendJSONError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, context.DeadlineExceeded):
		sendJSONError(w, "request timed out", http.StatusGatewayTimeout)
	default:
		logger.FromContext(r.Context()).Error("Request failed", "path", r.URL.Path, "error", err)
		sendJSONError(w, "internal server error", http.StatusInternalServerError)
	}
}

func sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func sendJSONError(w http.ResponseWriter, message string, status int) {
	sendJSON(w, status, map[string]string{"error": message})
}
