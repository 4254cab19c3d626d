package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/application/receptions"
)

// ReceptionHandler maneja las recepciones de compra (protegido).
type ReceptionHandler struct {
	svc *receptions.Service
}

// NewReceptionHandler construye el handler.
func NewReceptionHandler(svc *receptions.Service) *ReceptionHandler {
	return &ReceptionHandler{svc: svc}
}

// Create godoc
// @Summary      Registrar recepción pendiente
// @Tags         receptions
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateReceptionRequest  true  "Proveedor y líneas"
// @Success      201   {object}  dto.ReceptionResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/receptions [post]
func (h *ReceptionHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateReceptionRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	out, err := h.svc.CreateReception(c.UserContext(), GetUserID(c), in)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// Process suma el stock de la recepción y la marca como procesada.
func (h *ReceptionHandler) Process(c *fiber.Ctx) error {
	out, err := h.svc.ProcessReception(c.UserContext(), GetUserID(c), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

// Cancel descarta una recepción pendiente.
func (h *ReceptionHandler) Cancel(c *fiber.Ctx) error {
	out, err := h.svc.CancelReception(c.UserContext(), GetUserID(c), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

func (h *ReceptionHandler) GetByID(c *fiber.Ctx) error {
	out, err := h.svc.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}

func (h *ReceptionHandler) List(c *fiber.Ctx) error {
	out, err := h.svc.List(c.UserContext(), c.Query("state"), pageFrom(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(out)
}
