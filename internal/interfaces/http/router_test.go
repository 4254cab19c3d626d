package http_test

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/application/catalog"
	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/application/ledger"
	"github.com/jhoicas/stock-ledger/internal/application/ledger/ledgertest"
	"github.com/jhoicas/stock-ledger/internal/application/receptions"
	"github.com/jhoicas/stock-ledger/internal/application/sales"
	"github.com/jhoicas/stock-ledger/internal/domain/sequence"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/cache"
	apphttp "github.com/jhoicas/stock-ledger/internal/interfaces/http"
)

// newAPI arma el router completo sobre el ledger en memoria.
func newAPI(t *testing.T, health func() error) (*fiber.App, *ledgertest.Store) {
	t.Helper()
	store := ledgertest.NewStore()
	store.AddProduct(ledgertest.NewProduct("p1", "A-1", "10"))

	mem := cache.NewMemoryStore()
	coord := cache.NewCoordinator(mem, zerolog.Nop(), time.Second)
	reader := cache.Reader{Store: mem, TTL: time.Minute, Log: zerolog.Nop()}
	orch := ledger.NewOrchestrator(store.Runner(), ledger.NewMutator(), ledger.NewRecorder(), coord, zerolog.Nop())
	repos := store.Repos()

	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{
		ProductUC:   catalog.NewProductUseCase(orch, repos.Products, repos.Movements, store.Categories(), reader),
		CategoryUC:  catalog.NewCategoryUseCase(store.Categories(), coord),
		InventoryUC: inventory.NewUseCase(orch, repos.Products, reader),
		Sales:       sales.NewService(orch, repos.Sales, sequence.NewAllocator(0, sequence.NewSaleNumberGenerator(nil)), reader, time.Hour),
		Receptions:  receptions.NewService(orch, repos.Receptions, reader),
		JWTSecret:   testJWTSecret,
		Health:      health,
	})
	return app, store
}

func call(t *testing.T, app *fiber.App, method, path, role, body string) (int, []byte) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if role != "" {
		req.Header.Set("Authorization", bearer(t, role))
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

// ──────────────────────────────────────────────────────────────────────────────
// Ventas
// ──────────────────────────────────────────────────────────────────────────────

func TestRouter_VentaDescuentaYRegistraActor(t *testing.T) {
	app, store := newAPI(t, nil)

	status, body := call(t, app, http.MethodPost, "/api/sales", "vendedor",
		`{"items":[{"product_id":"p1","quantity":"3","unit_price":"2.5"}]}`)
	require.Equal(t, http.StatusCreated, status, string(body))

	var sale dto.SaleResponse
	require.NoError(t, json.Unmarshal(body, &sale))
	assert.Equal(t, testUserID, sale.CreatedBy)
	assert.True(t, sale.Total.Equal(decimal.RequireFromString("7.5")))
	assert.True(t, store.Balance("p1").Equal(decimal.RequireFromString("7")))

	movs := store.Movements()
	require.Len(t, movs, 1)
	assert.Equal(t, testUserID, movs[0].ActorID)
	assert.Equal(t, sale.ID, movs[0].DocumentID)
}

func TestRouter_VentaSinStockDevuelveDetalle(t *testing.T) {
	app, store := newAPI(t, nil)

	status, body := call(t, app, http.MethodPost, "/api/sales", "vendedor",
		`{"items":[{"product_id":"p1","quantity":"11","unit_price":"1"}]}`)
	require.Equal(t, http.StatusConflict, status)

	var errBody dto.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &errBody))
	assert.Equal(t, "INSUFFICIENT_STOCK", errBody.Code)
	assert.Equal(t, "10.000", errBody.Details["current"])
	assert.Equal(t, "11.000", errBody.Details["requested"])
	assert.Empty(t, store.Movements())
}

func TestRouter_VentaConProductoInexistente(t *testing.T) {
	app, store := newAPI(t, nil)

	status, body := call(t, app, http.MethodPost, "/api/sales", "vendedor",
		`{"items":[{"product_id":"p1","quantity":"1","unit_price":"1"},{"product_id":"zz","quantity":"1","unit_price":"1"}]}`)
	require.Equal(t, http.StatusNotFound, status, string(body))

	var errBody dto.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &errBody))
	assert.Equal(t, "PRODUCT_NOT_FOUND", errBody.Code)
	assert.True(t, store.Balance("p1").Equal(decimal.RequireFromString("10")))
	assert.Empty(t, store.Movements())
}

func TestRouter_CantidadConDemasiadosDecimales(t *testing.T) {
	app, store := newAPI(t, nil)

	status, body := call(t, app, http.MethodPost, "/api/sales", "vendedor",
		`{"items":[{"product_id":"p1","quantity":"0.0004","unit_price":"1"}]}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(body), "VALIDATION")
	assert.Empty(t, store.Movements())
}

func TestRouter_CuerpoInvalido(t *testing.T) {
	app, _ := newAPI(t, nil)

	status, body := call(t, app, http.MethodPost, "/api/sales", "vendedor", `{"items":`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(body), "INVALID_BODY")
}

// ──────────────────────────────────────────────────────────────────────────────
// Ajustes y RBAC
// ──────────────────────────────────────────────────────────────────────────────

func TestRouter_AjusteSoloParaGestoresDeStock(t *testing.T) {
	app, store := newAPI(t, nil)
	adjust := `{"product_id":"p1","mode":"set","quantity":"4","note":"conteo"}`

	status, _ := call(t, app, http.MethodPost, "/api/inventory/adjustments", "vendedor", adjust)
	assert.Equal(t, http.StatusForbidden, status)
	assert.True(t, store.Balance("p1").Equal(decimal.RequireFromString("10")))

	status, body := call(t, app, http.MethodPost, "/api/inventory/adjustments", "bodeguero", adjust)
	require.Equal(t, http.StatusCreated, status, string(body))
	assert.True(t, store.Balance("p1").Equal(decimal.RequireFromString("4")))

	status, body = call(t, app, http.MethodPost, "/api/inventory/adjustments", "bodeguero", adjust)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Contains(t, string(body), "NO_CHANGE")
}

func TestRouter_SinToken(t *testing.T) {
	app, _ := newAPI(t, nil)

	status, _ := call(t, app, http.MethodGet, "/api/products/p1", "", "")
	assert.Equal(t, http.StatusUnauthorized, status)
}

// ──────────────────────────────────────────────────────────────────────────────
// Lecturas y health
// ──────────────────────────────────────────────────────────────────────────────

func TestRouter_LecturaReflejaVentaTrasInvalidacion(t *testing.T) {
	app, _ := newAPI(t, nil)

	status, body := call(t, app, http.MethodPost, "/api/products", "bodeguero",
		`{"sku":"B-1","name":"Café","cost":"3","initial_stock":"10"}`)
	require.Equal(t, http.StatusCreated, status, string(body))
	var created dto.ProductResponse
	require.NoError(t, json.Unmarshal(body, &created))
	path := "/api/products/" + created.ID

	status, body = call(t, app, http.MethodGet, path, "vendedor", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), `"balance":"10"`)

	status, _ = call(t, app, http.MethodPost, "/api/sales", "vendedor",
		`{"items":[{"product_id":"`+created.ID+`","quantity":"4","unit_price":"1"}]}`)
	require.Equal(t, http.StatusCreated, status)

	var product map[string]any
	status, body = call(t, app, http.MethodGet, path, "vendedor", "")
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &product))
	assert.Equal(t, "6", product["balance"])

	var report dto.ReconciliationResponse
	status, body = call(t, app, http.MethodGet, path+"/reconcile", "vendedor", "")
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &report))
	assert.True(t, report.Consistent)
	assert.Equal(t, 2, report.Movements)
}

func TestRouter_Health(t *testing.T) {
	app, _ := newAPI(t, nil)
	status, body := call(t, app, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "ok")

	degraded, _ := newAPI(t, func() error { return errors.New("redis caído") })
	status, body = call(t, degraded, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Contains(t, string(body), "degraded")
}
