package ledger

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kassa-fin/kassa/internal/allocation"
	"github.com/kassa-fin/kassa/internal/periods"
)

func newTestRouter(t *testing.T) (chi.Router, *mockRepository) {
	t.Helper()
	svc, repo, _ := newTestService()
	handler := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc)
	r := chi.NewRouter()
	handler.MountRoutes(r)
	return r, repo
}

func doRequest(t *testing.T, router chi.Router, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestHandlerCreateContribution(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doRequest(t, router, http.MethodPost, "/contributions",
		`{"period_id":1,"owner_id":1,"amount":"500.00","date":"2026-01-10","comment":"annual fee"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "500.00", resp["amount"])
	assert.Equal(t, "2026-01-10", resp["date"])
}

func TestHandlerCreateContributionBadAmount(t *testing.T) {
	router, _ := newTestRouter(t)

	cases := map[string]string{
		"three decimals": `{"period_id":1,"owner_id":1,"amount":"10.005","date":"2026-01-10"}`,
		"negative":       `{"period_id":1,"owner_id":1,"amount":"-5.00","date":"2026-01-10"}`,
		"not a number":   `{"period_id":1,"owner_id":1,"amount":"ten","date":"2026-01-10"}`,
		"bad date":       `{"period_id":1,"owner_id":1,"amount":"10.00","date":"10.01.2026"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rr := doRequest(t, router, http.MethodPost, "/contributions", body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestHandlerClosedPeriodConflict(t *testing.T) {
	router, repo := newTestRouter(t)
	repo.periods[1].Status = periods.StatusClosed

	rr := doRequest(t, router, http.MethodPost, "/contributions",
		`{"period_id":1,"owner_id":1,"amount":"500.00","date":"2026-01-10"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestHandlerExpenseSharesEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doRequest(t, router, http.MethodPost, "/budget-items",
		`{"period_id":1,"payment_type":"maintenance","budgeted_amount":"2000.00","strategy":"PROPORTIONAL"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	var item map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &item))
	assert.Equal(t, string(allocation.StrategyProportional), item["strategy"])

	rr = doRequest(t, router, http.MethodPost, "/expenses",
		`{"period_id":1,"paid_by_owner_id":1,"budget_item_id":1,"amount":"1300.00","payment_type":"maintenance","date":"2026-01-15"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	var expense map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &expense))

	rr = doRequest(t, router, http.MethodGet, "/expenses/2/shares", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var shares []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &shares))
	require.Len(t, shares, 2)
}

func TestHandlerDeleteContribution(t *testing.T) {
	router, repo := newTestRouter(t)

	rr := doRequest(t, router, http.MethodPost, "/contributions",
		`{"period_id":1,"owner_id":1,"amount":"500.00","date":"2026-01-10"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = doRequest(t, router, http.MethodDelete, "/contributions/1", "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, repo.contributions)

	rr = doRequest(t, router, http.MethodDelete, "/contributions/1", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
