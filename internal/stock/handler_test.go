package stock

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/almacen-erp/almacen/internal/shared"
)

func ledgerRequest(t *testing.T, svc *Service, query string) *httptest.ResponseRecorder {
	t.Helper()
	handler := NewHandler(slog.Default(), svc)
	router := chi.NewRouter()
	router.Route("/stock", handler.MountRoutes)

	req := httptest.NewRequest(http.MethodGet, "/stock/ledger"+query, nil)
	req = req.WithContext(shared.ContextWithPrincipal(req.Context(), testPrincipal))

	res := httptest.NewRecorder()
	router.ServeHTTP(res, req)
	return res
}

func TestLedgerFiltersByQuery(t *testing.T) {
	svc, _, _ := newTestService(t)
	restock(t, svc, roomMain, 10, costOf(5))
	restock(t, svc, roomShop, 4, costOf(5))

	res := ledgerRequest(t, svc, "?product_id=100&room_id=11")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, res.Body.String(), `"room_id":11`)
	assert.NotContains(t, res.Body.String(), `"room_id":10`)
}

func TestLedgerRejectsMalformedFilters(t *testing.T) {
	svc, _, _ := newTestService(t)
	restock(t, svc, roomMain, 10, costOf(5))

	for _, query := range []string{
		"?product_id=abc",
		"?room_id=1.5",
		"?from=yesterday",
		"?to=2026-13-99",
		"?limit=many",
	} {
		res := ledgerRequest(t, svc, query)
		assert.Equal(t, http.StatusBadRequest, res.Code, query)
	}
}
