package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/card-balance-ledger/internal/cards"
	"github.com/sheikh-saqib/card-balance-ledger/internal/events"
	"github.com/sheikh-saqib/card-balance-ledger/internal/storage/memory"
)

func newTestServer(t *testing.T, opts RouterOptions) http.Handler {
	t.Helper()
	service := cards.NewService(memory.NewMemoryCardStore(), events.LogPublisher{}, cards.Options{
		Now: func() time.Time { return time.Date(2024, 4, 15, 0, 0, 0, 0, time.UTC) },
	})
	return NewRouter(NewCardHandler(service), opts)
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

// registerCard creates a user holding one card and returns the user id.
func registerCard(t *testing.T, h http.Handler, number string) string {
	t.Helper()
	rec := do(t, h, http.MethodPut, "/user", map[string]string{"name": "Ada", "email": "ada@example.com"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	userID := decode[map[string]string](t, rec)["id"]
	require.NotEmpty(t, userID)

	rec = do(t, h, http.MethodPost, "/credit-card", map[string]string{
		"userId":           userID,
		"cardIssuanceBank": "CHASE",
		"cardNumber":       number,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return userID
}

func TestHealth(t *testing.T) {
	rec := do(t, newTestServer(t, RouterOptions{}), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestUserAndCardEndpoints(t *testing.T) {
	h := newTestServer(t, RouterOptions{})
	userID := registerCard(t, h, "1234-5678")

	rec := do(t, h, http.MethodGet, "/credit-card:all?userId="+userID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []CreditCardView{{IssuanceBank: "CHASE", Number: "1234-5678"}}, decode[[]CreditCardView](t, rec))

	rec = do(t, h, http.MethodGet, "/credit-card:user-id?creditCardNumber=1234-5678", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, userID, decode[map[string]string](t, rec)["userId"])

	rec = do(t, h, http.MethodPost, "/credit-card", map[string]string{
		"userId": userID, "cardIssuanceBank": "CITI", "cardNumber": "1234-5678",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodDelete, "/user?userId="+userID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/credit-card:user-id?creditCardNumber=1234-5678", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestValidationErrors(t *testing.T) {
	h := newTestServer(t, RouterOptions{})

	tests := []struct {
		name   string
		method string
		target string
		body   any
	}{
		{"missing email", http.MethodPut, "/user", map[string]string{"name": "Ada"}},
		{"delete without id", http.MethodDelete, "/user", nil},
		{"delete unknown user", http.MethodDelete, "/user?userId=nope", nil},
		{"card for unknown user", http.MethodPost, "/credit-card", map[string]string{"userId": "nope", "cardIssuanceBank": "CHASE", "cardNumber": "1"}},
		{"list unknown user", http.MethodGet, "/credit-card:all?userId=nope", nil},
		{"bad balance date", http.MethodGet, "/credit-card/balance?creditCardNumber=1&date=04/15/2024", nil},
		{"balance without card", http.MethodGet, "/credit-card/balance?date=2024-04-15", nil},
		{"update unknown card", http.MethodPost, "/credit-card:update-balance", []map[string]string{{"creditCardNumber": "nope", "balanceDate": "2024-04-15", "balanceAmount": "1"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.target, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode[map[string]string](t, rec)["error"])
		})
	}

	req := httptest.NewRequest(http.MethodPut, "/user", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBalanceEndpoints(t *testing.T) {
	h := newTestServer(t, RouterOptions{})
	registerCard(t, h, "1234-5678")

	rec := do(t, h, http.MethodPost, "/credit-card:update-balance", []map[string]any{
		{"creditCardNumber": "1234-5678", "balanceDate": "2024-04-10", "balanceAmount": 100},
		{"creditCardNumber": "1234-5678", "balanceDate": "2024-04-13", "balanceAmount": "130"},
		{"creditCardNumber": "1234-5678", "balanceDate": "2024-04-11", "balanceAmount": "150.25"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 3, decode[map[string]int](t, rec)["applied"])

	type view struct {
		Date    string `json:"date"`
		Balance string `json:"balance"`
	}

	rec = do(t, h, http.MethodGet, "/credit-card/balance-history?creditCardNumber=1234-5678", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []view{
		{"2024-04-10", "100"},
		{"2024-04-11", "150.25"},
		{"2024-04-12", "150.25"},
		{"2024-04-13", "130"},
	}, decode[[]view](t, rec))

	rec = do(t, h, http.MethodGet, "/credit-card/balance?creditCardNumber=1234-5678&date=2024-04-12", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, view{"2024-04-12", "150.25"}, decode[view](t, rec))

	rec = do(t, h, http.MethodGet, "/credit-card/balance?creditCardNumber=1234-5678&date=2024-04-09", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, "/credit-card/balance:closest?creditCardNumber=1234-5678&date=2024-01-01", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, view{"2024-04-10", "100"}, decode[view](t, rec))

	rec = do(t, h, http.MethodGet, "/credit-card/balance:closest?creditCardNumber=1234-5678&date=2024-04-14", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPost, "/credit-card:update-balance", []map[string]any{
		{"creditCardNumber": "1234-5678", "balanceDate": "9999-12-31", "balanceAmount": 1},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
}

func TestEmptyHistoryIsAnEmptyArray(t *testing.T) {
	h := newTestServer(t, RouterOptions{})
	registerCard(t, h, "42")

	rec := do(t, h, http.MethodGet, "/credit-card/balance-history?creditCardNumber=42", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestRateLimit(t *testing.T) {
	h := newTestServer(t, RouterOptions{RateLimitRPS: 0.001, RateLimitBurst: 2})

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, h, http.MethodGet, "/health", nil).Code)
}

func TestRequestIDIsPropagated(t *testing.T) {
	h := newTestServer(t, RouterOptions{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}
