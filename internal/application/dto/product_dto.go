package dto

import (
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// CreateProductRequest entrada para crear un producto. InitialStock se registra como ajuste de entrada.
type CreateProductRequest struct {
	SKU              string          `json:"sku" validate:"required,min=1,max=100"`
	Name             string          `json:"name" validate:"required,min=1,max=200"`
	CategoryID       string          `json:"category_id,omitempty"`
	Cost             decimal.Decimal `json:"cost"`
	ReorderThreshold decimal.Decimal `json:"reorder_threshold"`
	InitialStock     decimal.Decimal `json:"initial_stock"`
}

// ProductResponse salida de un producto.
type ProductResponse struct {
	ID               string          `json:"id"`
	SKU              string          `json:"sku"`
	Name             string          `json:"name"`
	CategoryID       string          `json:"category_id,omitempty"`
	Cost             decimal.Decimal `json:"cost"`
	Balance          decimal.Decimal `json:"balance"`
	ReorderThreshold decimal.Decimal `json:"reorder_threshold"`
	BelowThreshold   bool            `json:"below_threshold"`
	Active           bool            `json:"active"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// ProductListResponse lista paginada de productos.
type ProductListResponse struct {
	Items []ProductResponse `json:"items"`
	Page  PageResponse      `json:"page"`
}

// MovementResponse entrada del ledger.
type MovementResponse struct {
	ID            int64           `json:"id"`
	ProductID     string          `json:"product_id"`
	Kind          string          `json:"kind"`
	Quantity      decimal.Decimal `json:"quantity"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
	DocumentKind  string          `json:"document_kind"`
	DocumentID    string          `json:"document_id,omitempty"`
	ActorID       string          `json:"actor_id"`
	Note          string          `json:"note,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// MovementListResponse historia paginada de un producto.
type MovementListResponse struct {
	Items []MovementResponse `json:"items"`
	Page  PageResponse       `json:"page"`
}

// DiscrepancyDTO eslabón roto en la cadena de movimientos.
type DiscrepancyDTO struct {
	MovementID int64           `json:"movement_id"`
	Expected   decimal.Decimal `json:"expected"`
	Recorded   decimal.Decimal `json:"recorded"`
}

// ReconciliationResponse resultado de reconstruir el saldo desde el ledger.
type ReconciliationResponse struct {
	ProductID     string           `json:"product_id"`
	Stored        decimal.Decimal  `json:"stored"`
	Replayed      decimal.Decimal  `json:"replayed"`
	Movements     int              `json:"movements"`
	Consistent    bool             `json:"consistent"`
	Discrepancies []DiscrepancyDTO `json:"discrepancies,omitempty"`
}

// CategoryStockResponse agregado de stock por categoría.
type CategoryStockResponse struct {
	CategoryID   string          `json:"category_id"`
	CategoryName string          `json:"category_name"`
	Products     int             `json:"products"`
	TotalUnits   decimal.Decimal `json:"total_units"`
	TotalValue   decimal.Decimal `json:"total_value"`
}

// NewProductResponse mapea la entidad a su DTO.
func NewProductResponse(p *entity.Product) ProductResponse {
	return ProductResponse{
		ID:               p.ID,
		SKU:              p.SKU,
		Name:             p.Name,
		CategoryID:       p.CategoryID,
		Cost:             p.Cost,
		Balance:          p.Balance,
		ReorderThreshold: p.ReorderThreshold,
		BelowThreshold:   p.BelowThreshold(),
		Active:           p.Active,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

// NewMovementResponse mapea un movimiento del ledger a su DTO.
func NewMovementResponse(m *entity.StockMovement) MovementResponse {
	return MovementResponse{
		ID:            m.ID,
		ProductID:     m.ProductID,
		Kind:          string(m.Kind),
		Quantity:      m.Quantity,
		BalanceBefore: m.BalanceBefore,
		BalanceAfter:  m.BalanceAfter,
		DocumentKind:  string(m.DocumentKind),
		DocumentID:    m.DocumentID,
		ActorID:       m.ActorID,
		Note:          m.Note,
		CreatedAt:     m.CreatedAt,
	}
}

// CreateCategoryRequest alta de categoría.
type CreateCategoryRequest struct {
	Name string `json:"name" validate:"required"`
}

// CategoryResponse categoría en respuestas.
type CategoryResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
