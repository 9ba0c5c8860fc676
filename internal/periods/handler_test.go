package periods

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

func TestHandlerCreatePeriod(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doRequest(t, router, http.MethodPost, "/periods",
		`{"name":"January 2026","start_date":"2026-01-01","end_date":"2026-01-31"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "January 2026", resp["name"])
	assert.Equal(t, "OPEN", resp["status"])
	assert.Equal(t, "2026-01-01", resp["start_date"])
	assert.Nil(t, resp["closed_at"])
}

func TestHandlerCreatePeriodBadInput(t *testing.T) {
	router, _ := newTestRouter(t)

	cases := map[string]string{
		"missing name":  `{"start_date":"2026-01-01","end_date":"2026-01-31"}`,
		"bad date":      `{"name":"Jan","start_date":"01/01/2026","end_date":"2026-01-31"}`,
		"inverted span": `{"name":"Jan","start_date":"2026-01-31","end_date":"2026-01-01"}`,
		"not json":      `{"name":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rr := doRequest(t, router, http.MethodPost, "/periods", body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
		})
	}
}

func TestHandlerCloseAndReopen(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doRequest(t, router, http.MethodPost, "/periods",
		`{"name":"January 2026","start_date":"2026-01-01","end_date":"2026-01-31"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = doRequest(t, router, http.MethodPost, "/periods/1/close", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "CLOSED", resp["status"])
	assert.NotEmpty(t, resp["closed_at"])

	// Double close surfaces the conflict.
	rr = doRequest(t, router, http.MethodPost, "/periods/1/close", "")
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = doRequest(t, router, http.MethodPost, "/periods/1/reopen", "")
	require.Equal(t, http.StatusOK, rr.Code)
	// Unmarshal merges into an existing map; reset so the close response's
	// closed_at key cannot linger.
	resp = map[string]any{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "OPEN", resp["status"])
	assert.Nil(t, resp["closed_at"])
}

func TestHandlerGetUnknownPeriod(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doRequest(t, router, http.MethodGet, "/periods/42", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doRequest(t, router, http.MethodGet, "/periods/abc", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandlerList(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := doRequest(t, router, http.MethodPost, "/periods",
		`{"name":"January 2026","start_date":"2026-01-01","end_date":"2026-01-31"}`)
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = doRequest(t, router, http.MethodGet, "/periods", "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}
