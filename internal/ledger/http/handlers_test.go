package ledgerhttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

type stubService struct {
	mu         sync.Mutex
	err        error
	lastScope  ledger.CompanyScope
	lastWindow ledger.DateRange
	lastID     uuid.UUID
}

func (s *stubService) record(id uuid.UUID, scope ledger.CompanyScope, window ledger.DateRange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastID, s.lastScope, s.lastWindow = id, scope, window
	return s.err
}

func (s *stubService) Ledger(ctx context.Context, id uuid.UUID, scope ledger.CompanyScope, window ledger.DateRange) (ledger.LedgerResult, error) {
	if err := s.record(id, scope, window); err != nil {
		return ledger.LedgerResult{}, err
	}
	return ledger.LedgerResult{
		CustomerID:     id,
		Window:         window,
		OpeningBalance: decimal.NewFromInt(100),
		Transactions:   []ledger.Transaction{},
		Summary:        ledger.LedgerSummary{ClosingBalance: decimal.NewFromInt(100)},
	}, nil
}

func (s *stubService) Summary(ctx context.Context, id uuid.UUID, scope ledger.CompanyScope, window ledger.DateRange) (ledger.LedgerSummary, error) {
	return ledger.LedgerSummary{TotalInvoices: 3}, s.record(id, scope, window)
}

func (s *stubService) Transactions(ctx context.Context, id uuid.UUID, scope ledger.CompanyScope, window ledger.DateRange) ([]ledger.Transaction, error) {
	return []ledger.Transaction{{ReferenceNo: "INV-1", DocumentType: ledger.DocSale}}, s.record(id, scope, window)
}

func (s *stubService) Invoices(ctx context.Context, id uuid.UUID, scope ledger.CompanyScope, window ledger.DateRange) ([]ledger.Invoice, error) {
	return []ledger.Invoice{}, s.record(id, scope, window)
}

func (s *stubService) Payments(ctx context.Context, id uuid.UUID, scope ledger.CompanyScope, window ledger.DateRange) ([]ledger.Payment, error) {
	return []ledger.Payment{}, s.record(id, scope, window)
}

func (s *stubService) Aging(ctx context.Context, id uuid.UUID, scope ledger.CompanyScope) (ledger.AgingReport, error) {
	return ledger.AgingReport{Total: decimal.NewFromInt(42)}, s.record(id, scope, ledger.DateRange{})
}

func (s *stubService) Profile(ctx context.Context, id uuid.UUID, scope ledger.CompanyScope) (ledger.CustomerProfile, error) {
	return ledger.CustomerProfile{ID: id, Code: ledger.CustomerCode(id)}, s.record(id, scope, ledger.DateRange{})
}

var (
	customerID = uuid.MustParse("3fa85f64-5717-4562-b3fc-2c963f66afa6")
	companyID  = uuid.MustParse("9c1f0d3e-0b7a-4d55-8f21-6a2e4c8b1d90")
)

func newTestRouter(svc LedgerService, opts Options) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/v1/ledger", NewHandler(nil, svc, opts).MountRoutes)
	return r
}

func doGet(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestLedgerEndpoint(t *testing.T) {
	svc := &stubService{}
	router := newTestRouter(svc, Options{})
	branch := uuid.New()

	rec := doGet(t, router, "/api/v1/ledger/customers/"+customerID.String()+"/ledger?company_id="+companyID.String()+"&branch_id="+branch.String()+"&from=2025-01-01&to=2025-01-31")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body ledger.LedgerResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, customerID, body.CustomerID)
	assert.Equal(t, "100", body.Summary.ClosingBalance.String())

	assert.Equal(t, companyID, svc.lastScope.CompanyID)
	require.NotNil(t, svc.lastScope.BranchID)
	assert.Equal(t, branch, *svc.lastScope.BranchID)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), svc.lastWindow.From)
	assert.Equal(t, time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), svc.lastWindow.To)
}

func TestOtherEndpoints(t *testing.T) {
	router := newTestRouter(&stubService{}, Options{})
	base := "/api/v1/ledger/customers/" + customerID.String()
	query := "?company_id=" + companyID.String()

	for _, path := range []string{"", "/summary", "/transactions", "/invoices", "/payments", "/aging"} {
		rec := doGet(t, router, base+path+query)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	rec := doGet(t, router, base+query)
	var profile ledger.CustomerProfile
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &profile))
	assert.Equal(t, "CUS-3FA85F64", profile.Code)
}

func TestValidationFailures(t *testing.T) {
	svc := &stubService{}
	router := newTestRouter(svc, Options{})
	base := "/api/v1/ledger/customers/"

	cases := map[string]string{
		"missing company": base + customerID.String() + "/ledger",
		"bad company":     base + customerID.String() + "/ledger?company_id=acme",
		"bad customer":    base + "42/ledger?company_id=" + companyID.String(),
		"bad branch":      base + customerID.String() + "/ledger?company_id=" + companyID.String() + "&branch_id=x",
		"bad date":        base + customerID.String() + "/ledger?company_id=" + companyID.String() + "&from=01/02/2025",
		"inverted window": base + customerID.String() + "/ledger?company_id=" + companyID.String() + "&from=2025-02-01&to=2025-01-01",
	}
	for name, target := range cases {
		rec := doGet(t, router, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
		var problem httpx.ProblemDetail
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem), name)
		assert.NotEmpty(t, problem.Detail, name)
	}
	assert.Equal(t, uuid.Nil, svc.lastID)
}

func TestServiceErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{&ledger.DataAccessError{Source: ledger.SourcePayments, Err: errors.New("dial tcp")}, http.StatusBadGateway},
		{ledger.ErrCustomerNotFound, http.StatusNotFound},
		{&ledger.InvariantViolation{Check: ledger.CheckClosingBalance}, http.StatusInternalServerError},
		{ledger.ErrInvalidInput, http.StatusBadRequest},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
	}
	for _, tc := range cases {
		router := newTestRouter(&stubService{err: tc.err}, Options{})
		rec := doGet(t, router, "/api/v1/ledger/customers/"+customerID.String()+"/summary?company_id="+companyID.String())
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
		assert.NotContains(t, rec.Body.String(), "dial tcp")
	}
}

func TestRateLimitPerCompany(t *testing.T) {
	router := newTestRouter(&stubService{}, Options{RateLimit: 2})
	target := "/api/v1/ledger/customers/" + customerID.String() + "/aging?company_id=" + companyID.String()

	assert.Equal(t, http.StatusOK, doGet(t, router, target).Code)
	assert.Equal(t, http.StatusOK, doGet(t, router, target).Code)
	limited := doGet(t, router, target)
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)

	other := "/api/v1/ledger/customers/" + customerID.String() + "/aging?company_id=" + uuid.NewString()
	assert.Equal(t, http.StatusOK, doGet(t, router, other).Code)
}

func TestFlightGroupCollapsesCalls(t *testing.T) {
	var g flightGroup
	var calls int32
	release := make(chan struct{})
	started := make(chan struct{})

	fn := func(ctx context.Context) (any, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
		}
		<-release
		return "done", nil
	}

	var wg sync.WaitGroup
	results := make([]bool, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _, results[0] = g.do(context.Background(), "k", fn)
	}()
	<-started
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _, results[1] = g.do(context.Background(), "k", fn)
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.True(t, results[1])
}

func TestFlightGroupHonoursCaller(t *testing.T) {
	var g flightGroup
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err, _ := g.do(ctx, "k", func(context.Context) (any, error) {
		time.Sleep(50 * time.Millisecond)
		return nil, nil
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestFlightGroupSurvivesLeaderCancellation(t *testing.T) {
	var g flightGroup
	started := make(chan struct{})
	fn := func(ctx context.Context) (any, error) {
		close(started)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(200 * time.Millisecond):
			return "ledger", nil
		}
	}

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err, _ := g.do(leaderCtx, "k", fn)
		leaderErr <- err
	}()
	<-started

	type result struct {
		val    any
		err    error
		shared bool
	}
	follower := make(chan result, 1)
	go func() {
		val, err, shared := g.do(context.Background(), "k", fn)
		follower <- result{val, err, shared}
	}()

	time.Sleep(20 * time.Millisecond)
	cancelLeader()
	require.ErrorIs(t, <-leaderErr, context.Canceled)

	res := <-follower
	require.NoError(t, res.err)
	assert.Equal(t, "ledger", res.val)
	assert.True(t, res.shared)
}

func TestFlightGroupBoundsSharedComputation(t *testing.T) {
	g := flightGroup{timeout: 20 * time.Millisecond}
	_, err, _ := g.do(context.Background(), "k", func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
