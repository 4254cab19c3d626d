package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReceptionItemRequest línea recibida.
type ReceptionItemRequest struct {
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}

// CreateReceptionRequest body para POST /api/receptions.
type CreateReceptionRequest struct {
	SupplierID   string                 `json:"supplier_id,omitempty"`
	SupplierName string                 `json:"supplier_name"`
	Items        []ReceptionItemRequest `json:"items"`
}

// ReceptionItemResponse línea de recepción.
type ReceptionItemResponse struct {
	ProductID string          `json:"product_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
}

// ReceptionResponse salida de una recepción.
type ReceptionResponse struct {
	ID           string                  `json:"id"`
	SupplierID   string                  `json:"supplier_id,omitempty"`
	SupplierName string                  `json:"supplier_name"`
	State        string                  `json:"state"`
	AdvisoryNote string                  `json:"advisory_note,omitempty"`
	Items        []ReceptionItemResponse `json:"items"`
	CreatedBy    string                  `json:"created_by"`
	CreatedAt    time.Time               `json:"created_at"`
	ProcessedBy  string                  `json:"processed_by,omitempty"`
	ProcessedAt  *time.Time              `json:"processed_at,omitempty"`
	CancelledBy  string                  `json:"cancelled_by,omitempty"`
	CancelledAt  *time.Time              `json:"cancelled_at,omitempty"`
}

// ReceptionListResponse lista paginada de recepciones.
type ReceptionListResponse struct {
	Items []ReceptionResponse `json:"items"`
	Page  PageResponse        `json:"page"`
}
