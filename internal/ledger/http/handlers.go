package ledgerhttp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

const defaultRequestTimeout = 10 * time.Second

// LedgerService defines the report contract used by the handler.
type LedgerService interface {
	Ledger(ctx context.Context, customerID uuid.UUID, scope ledger.CompanyScope, window ledger.DateRange) (ledger.LedgerResult, error)
	Summary(ctx context.Context, customerID uuid.UUID, scope ledger.CompanyScope, window ledger.DateRange) (ledger.LedgerSummary, error)
	Transactions(ctx context.Context, customerID uuid.UUID, scope ledger.CompanyScope, window ledger.DateRange) ([]ledger.Transaction, error)
	Invoices(ctx context.Context, customerID uuid.UUID, scope ledger.CompanyScope, window ledger.DateRange) ([]ledger.Invoice, error)
	Payments(ctx context.Context, customerID uuid.UUID, scope ledger.CompanyScope, window ledger.DateRange) ([]ledger.Payment, error)
	Aging(ctx context.Context, customerID uuid.UUID, scope ledger.CompanyScope) (ledger.AgingReport, error)
	Profile(ctx context.Context, customerID uuid.UUID, scope ledger.CompanyScope) (ledger.CustomerProfile, error)
}

// Options tunes the handler.
type Options struct {
	// RateLimit is the number of requests allowed per company per minute.
	RateLimit      int
	RequestTimeout time.Duration
}

// Handler serves the customer ledger JSON API.
type Handler struct {
	logger   *slog.Logger
	service  LedgerService
	validate *validator.Validate
	flights  *flightGroup
	limit    int
	timeout  time.Duration
}

// NewHandler constructs the ledger HTTP handler.
func NewHandler(logger *slog.Logger, service LedgerService, opts Options) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 120
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = defaultRequestTimeout
	}
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
		flights:  &flightGroup{timeout: opts.RequestTimeout},
		limit:    opts.RateLimit,
		timeout:  opts.RequestTimeout,
	}
}

type ledgerQuery struct {
	CustomerID string `validate:"required,uuid"`
	CompanyID  string `validate:"required,uuid"`
	BranchID   string `validate:"omitempty,uuid"`
	From       string `validate:"omitempty,datetime=2006-01-02"`
	To         string `validate:"omitempty,datetime=2006-01-02"`
}

type ledgerRequest struct {
	customerID uuid.UUID
	scope      ledger.CompanyScope
	window     ledger.DateRange
}

// key identifies identical requests for collapsing.
func (req ledgerRequest) key(op string) string {
	return strings.Join([]string{
		op,
		req.scope.CompanyID.String(),
		req.scope.BranchToken(),
		req.customerID.String(),
		req.window.From.Format(time.DateOnly),
		req.window.To.Format(time.DateOnly),
	}, "|")
}

func (h *Handler) parseRequest(r *http.Request) (ledgerRequest, error) {
	q := r.URL.Query()
	form := ledgerQuery{
		CustomerID: chi.URLParam(r, "customerID"),
		CompanyID:  strings.TrimSpace(q.Get("company_id")),
		BranchID:   strings.TrimSpace(q.Get("branch_id")),
		From:       strings.TrimSpace(q.Get("from")),
		To:         strings.TrimSpace(q.Get("to")),
	}
	if err := h.validate.Struct(form); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return ledgerRequest{}, fmt.Errorf("%w: %s is %s", httpx.ErrValidation, queryName(fieldErrs[0].Field()), describeTag(fieldErrs[0].Tag()))
		}
		return ledgerRequest{}, fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	}

	req := ledgerRequest{
		customerID: uuid.MustParse(form.CustomerID),
		scope:      ledger.CompanyScope{CompanyID: uuid.MustParse(form.CompanyID)},
	}
	if form.BranchID != "" {
		branch := uuid.MustParse(form.BranchID)
		req.scope.BranchID = &branch
	}
	if form.From != "" {
		req.window.From, _ = time.Parse(time.DateOnly, form.From)
	}
	if form.To != "" {
		req.window.To, _ = time.Parse(time.DateOnly, form.To)
	}
	if !req.window.From.IsZero() && !req.window.To.IsZero() && req.window.From.After(req.window.To) {
		return ledgerRequest{}, fmt.Errorf("%w: from must not be after to", httpx.ErrValidation)
	}
	return req, nil
}

func queryName(field string) string {
	switch field {
	case "CustomerID":
		return "customer id"
	case "CompanyID":
		return "company_id"
	case "BranchID":
		return "branch_id"
	default:
		return strings.ToLower(field)
	}
}

func describeTag(tag string) string {
	switch tag {
	case "required":
		return "required"
	case "uuid":
		return "not a valid uuid"
	case "datetime":
		return "not a YYYY-MM-DD date"
	default:
		return "invalid"
	}
}

// serve parses the request, runs load through the flight group and writes
// the JSON result.
func (h *Handler) serve(w http.ResponseWriter, r *http.Request, op string, load func(context.Context, ledgerRequest) (any, error)) {
	req, err := h.parseRequest(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	value, err, shared := h.flights.do(ctx, req.key(op), func(ctx context.Context) (any, error) {
		return load(ctx, req)
	})
	if err != nil {
		h.handleError(w, r, op, req, err)
		return
	}
	if shared {
		w.Header().Set("X-Ledger-Shared", "1")
	}
	httpx.JSON(w, http.StatusOK, value)
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, op string, req ledgerRequest, err error) {
	attrs := []any{
		slog.String("op", op),
		slog.String("customer_id", req.customerID.String()),
		slog.String("company_id", req.scope.CompanyID.String()),
		slog.Any("error", err),
	}
	switch {
	case errors.Is(err, ledger.ErrInvalidInput):
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrValidation, strings.TrimPrefix(err.Error(), ledger.ErrInvalidInput.Error()+": ")))
	case errors.Is(err, ledger.ErrCustomerNotFound):
		httpx.RespondError(w, fmt.Errorf("%w: customer %s", httpx.ErrNotFound, req.customerID))
	case errors.Is(err, ledger.ErrDataAccess):
		h.logger.ErrorContext(r.Context(), "ledger source failed", attrs...)
		httpx.RespondError(w, httpx.ErrUpstream)
	case errors.Is(err, ledger.ErrInvariantViolation):
		h.logger.ErrorContext(r.Context(), "ledger invariant violated", attrs...)
		httpx.RespondError(w, httpx.ErrInconsistent)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		h.logger.WarnContext(r.Context(), "ledger request aborted", attrs...)
		httpx.RespondError(w, err)
	default:
		h.logger.ErrorContext(r.Context(), "ledger request failed", attrs...)
		httpx.RespondError(w, err)
	}
}

func (h *Handler) handleProfile(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "profile", func(ctx context.Context, req ledgerRequest) (any, error) {
		return h.service.Profile(ctx, req.customerID, req.scope)
	})
}

func (h *Handler) handleLedger(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "ledger", func(ctx context.Context, req ledgerRequest) (any, error) {
		return h.service.Ledger(ctx, req.customerID, req.scope, req.window)
	})
}

func (h *Handler) handleSummary(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "summary", func(ctx context.Context, req ledgerRequest) (any, error) {
		return h.service.Summary(ctx, req.customerID, req.scope, req.window)
	})
}

func (h *Handler) handleTransactions(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "transactions", func(ctx context.Context, req ledgerRequest) (any, error) {
		return h.service.Transactions(ctx, req.customerID, req.scope, req.window)
	})
}

func (h *Handler) handleInvoices(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "invoices", func(ctx context.Context, req ledgerRequest) (any, error) {
		return h.service.Invoices(ctx, req.customerID, req.scope, req.window)
	})
}

func (h *Handler) handlePayments(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "payments", func(ctx context.Context, req ledgerRequest) (any, error) {
		return h.service.Payments(ctx, req.customerID, req.scope, req.window)
	})
}

func (h *Handler) handleAging(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "aging", func(ctx context.Context, req ledgerRequest) (any, error) {
		return h.service.Aging(ctx, req.customerID, req.scope)
	})
}
