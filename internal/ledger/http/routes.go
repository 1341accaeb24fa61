package ledgerhttp

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// MountRoutes registers the ledger endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(h.limit, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.RespondError(w, httpx.ErrRateLimited)
		}),
	)

	r.Route("/customers/{customerID}", func(r chi.Router) {
		r.Use(limiter)
		r.Get("/", h.handleProfile)
		r.Get("/ledger", h.handleLedger)
		r.Get("/summary", h.handleSummary)
		r.Get("/transactions", h.handleTransactions)
		r.Get("/invoices", h.handleInvoices)
		r.Get("/payments", h.handlePayments)
		r.Get("/aging", h.handleAging)
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if company := strings.TrimSpace(r.URL.Query().Get("company_id")); company != "" {
		return "company:" + company, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
