package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

// RouterOptions bound every request.
type RouterOptions struct {
	RequestTimeout time.Duration
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewRouter wires the card API on a chi router.
func NewRouter(h *CardHandler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(ContextualLoggerMiddleware)
	if opts.RateLimitRPS > 0 {
		r.Use(RateLimitMiddleware(rate.NewLimiter(rate.Limit(opts.RateLimitRPS), max(opts.RateLimitBurst, 1))))
	}
	if opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opts.RequestTimeout))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Put("/user", h.CreateUser)
	r.Delete("/user", h.DeleteUser)

	r.Post("/credit-card", h.AddCard)
	r.Get("/credit-card:all", h.ListCards)
	r.Get("/credit-card:user-id", h.GetUserIDForCard)
	r.Post("/credit-card:update-balance", h.UpdateBalance)

	r.Get("/credit-card/balance", h.GetBalance)
	r.Get("/credit-card/balance:closest", h.GetClosestBalance)
	r.Get("/credit-card/balance-history", h.GetBalanceHistory)

	return r
}
