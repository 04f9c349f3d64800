package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hyip-ledger/internal/config"
	"hyip-ledger/internal/metrics"
	"hyip-ledger/internal/models"
	"hyip-ledger/internal/repositories/memrepo"
	"hyip-ledger/internal/services"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	now := time.Date(2025, 3, 3, 10, 0, 0, 0, time.UTC)
	svc := services.New(services.Deps{
		Store:  memrepo.New(),
		Logger: zap.NewNop(),
		Now:    func() time.Time { return now },
		Ledger: config.LedgerConfig{BusyRetries: 3, BusyBackoff: time.Millisecond},
	})
	return NewRouter(svc, metrics.New(), zap.NewNop())
}

func do(t *testing.T, h http.Handler, method, path string, user int64, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != 0 {
		req.Header.Set(userIDHeader, fmt.Sprint(user))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_InvestmentFlow(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/api/v1/admin/users", 0, `{"userId":1}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = do(t, h, http.MethodPost, "/api/v1/admin/users", 0, `{"userId":2,"referrerId":1}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/api/v1/admin/balance", 0, `{"userId":1,"wallet":"deposit","amount":"500","add":true,"remark":"wire"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/api/v1/admin/plans", 0,
		`{"name":"Starter","minimum":"100","maximum":"2000","interestRate":"2","interestType":"percent","termHours":1,"repeatTime":10}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var plan models.Plan
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&plan))
	assert.Equal(t, models.PlanActive, plan.Status)

	rec = do(t, h, http.MethodPost, "/api/v1/investments", 1, fmt.Sprintf(`{"planId":%d,"amount":"200","wallet":"deposit"}`, plan.ID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var inv models.Investment
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&inv))
	assert.True(t, decimal.NewFromInt(4).Equal(inv.Interest))

	rec = do(t, h, http.MethodGet, "/api/v1/wallets/deposit", 1, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var balance models.WalletBalanceResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&balance))
	assert.True(t, decimal.NewFromInt(300).Equal(balance.Balance), "got %s", balance.Balance)

	rec = do(t, h, http.MethodGet, "/api/v1/ledger?wallet=deposit", 1, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []models.LedgerEntry
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&entries))
	require.Len(t, entries, 2)
	assert.Equal(t, models.CategoryBalanceAdd, entries[0].Category)
	assert.Equal(t, models.CategoryInvest, entries[1].Category)

	rec = do(t, h, http.MethodGet, "/api/v1/admin/reconcile/1", 0, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, h, http.MethodGet, "/metrics", 0, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hyip_ledger_http_requests_total")
	assert.Contains(t, rec.Body.String(), `route="/api/v1/investments"`)
}

func TestRouter_ErrorMapping(t *testing.T) {
	h := newTestRouter(t)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/v1/admin/users", 0, `{"userId":1}`).Code)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/v1/admin/plans", 0,
		`{"name":"Starter","minimum":"100","maximum":"2000","interestRate":"2","interestType":"percent","termHours":1,"repeatTime":10}`).Code)

	tests := []struct {
		name       string
		method     string
		path       string
		user       int64
		body       string
		wantStatus int
	}{
		{"missing user header", http.MethodGet, "/api/v1/wallets/deposit", 0, "", http.StatusUnauthorized},
		{"unknown wallet kind", http.MethodGet, "/api/v1/wallets/bonus", 1, "", http.StatusBadRequest},
		{"ledger without wallet", http.MethodGet, "/api/v1/ledger", 1, "", http.StatusBadRequest},
		{"malformed json", http.MethodPost, "/api/v1/investments", 1, `{"planId":`, http.StatusBadRequest},
		{"failed validation tag", http.MethodPost, "/api/v1/investments", 1, `{"planId":1,"amount":"200","wallet":"savings"}`, http.StatusBadRequest},
		{"unknown plan", http.MethodPost, "/api/v1/investments", 1, `{"planId":999,"amount":"200","wallet":"deposit"}`, http.StatusNotFound},
		{"amount outside the plan", http.MethodPost, "/api/v1/investments", 1, `{"planId":1,"amount":"5000","wallet":"deposit"}`, http.StatusUnprocessableEntity},
		{"insufficient balance", http.MethodPost, "/api/v1/investments", 1, `{"planId":1,"amount":"200","wallet":"deposit"}`, http.StatusUnprocessableEntity},
		{"transfer to self", http.MethodPost, "/api/v1/transfers", 1, `{"toUserId":1,"wallet":"deposit","amount":"5"}`, http.StatusConflict},
		{"bad path id", http.MethodPost, "/api/v1/withdrawals/abc/submit", 1, "", http.StatusBadRequest},
		{"unknown withdrawal", http.MethodPost, "/api/v1/admin/withdrawals/42/approve", 0, "", http.StatusNotFound},
		{"unknown trigger job", http.MethodPost, "/api/v1/admin/triggers", 0, `{"job":"payroll"}`, http.StatusBadRequest},
		{"duplicate user", http.MethodPost, "/api/v1/admin/users", 0, `{"userId":1}`, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.user, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, float64(tt.wantStatus), body["code"])
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("debit: %w", models.ErrInsufficientBalance), http.StatusUnprocessableEntity},
		{fmt.Errorf("submit: %w", models.ErrHoliday), http.StatusUnprocessableEntity},
		{fmt.Errorf("pool 1: %w", models.ErrPoolClosed), http.StatusUnprocessableEntity},
		{fmt.Errorf("plan 9: %w", models.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("withdrawal 3: %w", models.ErrInvalidState), http.StatusConflict},
		{fmt.Errorf("lock wallet: %w", models.ErrBusy), http.StatusServiceUnavailable},
		{fmt.Errorf("user 1: %w", models.ErrIntegrity), http.StatusInternalServerError},
		{fmt.Errorf("connection refused"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
