package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/domain"
)

type errorMapping struct {
	target error
	status int
	code   string
}

// errorTable traduce errores de dominio a HTTP. El orden importa: el primero que coincide gana.
var errorTable = []errorMapping{
	{domain.ErrInvariant, fiber.StatusInternalServerError, "LEDGER_INVARIANT"},
	{domain.ErrInsufficientStock, fiber.StatusConflict, "INSUFFICIENT_STOCK"},
	{domain.ErrProductNotFound, fiber.StatusNotFound, "PRODUCT_NOT_FOUND"},
	{domain.ErrNotFound, fiber.StatusNotFound, "NOT_FOUND"},
	{domain.ErrProductInactive, fiber.StatusUnprocessableEntity, "PRODUCT_INACTIVE"},
	{domain.ErrInvalidInput, fiber.StatusBadRequest, "VALIDATION"},
	{domain.ErrDuplicate, fiber.StatusConflict, "DUPLICATE"},
	{domain.ErrDocumentNotMutable, fiber.StatusConflict, "DOCUMENT_NOT_MUTABLE"},
	{domain.ErrReversalWindowExpired, fiber.StatusUnprocessableEntity, "REVERSAL_WINDOW_EXPIRED"},
	{domain.ErrNoChange, fiber.StatusUnprocessableEntity, "NO_CHANGE"},
	{domain.ErrBalanceCeiling, fiber.StatusUnprocessableEntity, "BALANCE_CEILING"},
	{domain.ErrAllocatorExhausted, fiber.StatusServiceUnavailable, "SYSTEM_BUSY"},
	{domain.ErrConcurrentUpdate, fiber.StatusConflict, "CONCURRENT_UPDATE"},
	{domain.ErrUnauthorized, fiber.StatusUnauthorized, "UNAUTHORIZED"},
}

// writeError responde con el ErrorResponse correspondiente al error.
func writeError(c *fiber.Ctx, err error) error {
	for _, m := range errorTable {
		if !errors.Is(err, m.target) {
			continue
		}
		resp := dto.ErrorResponse{Code: m.code, Message: err.Error()}
		if m.status == fiber.StatusInternalServerError {
			resp.Message = "error interno del ledger"
		}
		var insufficient *domain.InsufficientStockError
		if errors.As(err, &insufficient) {
			resp.Details = map[string]any{
				"product_id":   insufficient.ProductID,
				"product_name": insufficient.ProductName,
				"current":      insufficient.Current.StringFixed(3),
				"requested":    insufficient.Requested.StringFixed(3),
			}
		}
		var state *domain.DocumentStateError
		if errors.As(err, &state) {
			resp.Details = map[string]any{
				"document_kind": state.DocumentKind,
				"document_id":   state.DocumentID,
				"state":         state.State,
			}
		}
		if domain.IsTransient(err) {
			c.Set(fiber.HeaderRetryAfter, "1")
		}
		return c.Status(m.status).JSON(resp)
	}
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "error interno"})
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
}

// pageFrom lee limit/offset de la query.
func pageFrom(c *fiber.Ctx) dto.PageRequest {
	p := dto.PageRequest{Limit: c.QueryInt("limit", 20), Offset: c.QueryInt("offset", 0)}
	p.DefaultPage()
	return p
}
