package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/domain"
)

// respond monta una app mínima cuyo único handler devuelve err vía writeError.
func respond(t *testing.T, err error) (int, string, dto.ErrorResponse) {
	t.Helper()
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error { return writeError(c, err) })

	resp, testErr := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
	require.NoError(t, testErr)
	defer resp.Body.Close()

	var body dto.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, resp.Header.Get(fiber.HeaderRetryAfter), body
}

func TestWriteError_Tabla(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
		retry  string
	}{
		{"no encontrado", fmt.Errorf("venta x: %w", domain.ErrNotFound), fiber.StatusNotFound, "NOT_FOUND", ""},
		{"producto inexistente", domain.ErrProductNotFound, fiber.StatusNotFound, "PRODUCT_NOT_FOUND", ""},
		{"línea de venta sin producto", fmt.Errorf("guardar línea de venta: %w", fmt.Errorf("%w: zz", domain.ErrProductNotFound)), fiber.StatusNotFound, "PRODUCT_NOT_FOUND", ""},
		{"inactivo", domain.ErrProductInactive, fiber.StatusUnprocessableEntity, "PRODUCT_INACTIVE", ""},
		{"validación", domain.ErrInvalidInput, fiber.StatusBadRequest, "VALIDATION", ""},
		{"ventana", domain.ErrReversalWindowExpired, fiber.StatusUnprocessableEntity, "REVERSAL_WINDOW_EXPIRED", ""},
		{"sin cambio", domain.ErrNoChange, fiber.StatusUnprocessableEntity, "NO_CHANGE", ""},
		{"asignador agotado", domain.ErrAllocatorExhausted, fiber.StatusServiceUnavailable, "SYSTEM_BUSY", "1"},
		{"contención", fmt.Errorf("%w: deadlock", domain.ErrConcurrentUpdate), fiber.StatusConflict, "CONCURRENT_UPDATE", "1"},
		{"desconocido", errors.New("boom"), fiber.StatusInternalServerError, "INTERNAL", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, retry, body := respond(t, tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, body.Code)
			assert.Equal(t, tt.retry, retry)
		})
	}
}

func TestWriteError_StockInsuficienteIncluyeDetalle(t *testing.T) {
	err := fmt.Errorf("línea 2: %w", &domain.InsufficientStockError{
		ProductID:   "p2",
		ProductName: "Producto A-2",
		Current:     decimal.RequireFromString("1"),
		Requested:   decimal.RequireFromString("2.5"),
	})

	status, retry, body := respond(t, err)

	assert.Equal(t, fiber.StatusConflict, status)
	assert.Empty(t, retry)
	assert.Equal(t, "INSUFFICIENT_STOCK", body.Code)
	assert.Equal(t, "p2", body.Details["product_id"])
	assert.Equal(t, "1.000", body.Details["current"])
	assert.Equal(t, "2.500", body.Details["requested"])
}

func TestWriteError_EstadoDeDocumento(t *testing.T) {
	status, _, body := respond(t, &domain.DocumentStateError{
		DocumentKind: "sale", DocumentID: "s1", State: "anulled", Wanted: "anulled",
	})

	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "DOCUMENT_NOT_MUTABLE", body.Code)
	assert.Equal(t, "anulled", body.Details["state"])
}

func TestWriteError_InvarianteNoExponeDetalle(t *testing.T) {
	status, _, body := respond(t, domain.Invariantf("saldo negativo en %s", "p1"))

	assert.Equal(t, fiber.StatusInternalServerError, status)
	assert.Equal(t, "LEDGER_INVARIANT", body.Code)
	assert.NotContains(t, body.Message, "p1")
}
