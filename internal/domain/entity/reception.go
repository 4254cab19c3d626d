package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de recepción de mercadería.
const (
	ReceptionStatePending   = "pending"
	ReceptionStateProcessed = "processed"
	ReceptionStateCancelled = "cancelled"
)

// Reception documento de recepción de compra (proveedor → depósito).
type Reception struct {
	ID           string
	SupplierID   string
	SupplierName string
	State        string
	AdvisoryNote string
	Items        []ReceptionItem
	CreatedBy    string
	CreatedAt    time.Time
	ProcessedBy  string
	ProcessedAt  *time.Time
	CancelledBy  string
	CancelledAt  *time.Time
}

// ReceptionItem línea recibida.
type ReceptionItem struct {
	ID          string
	ReceptionID string
	ProductID   string
	Quantity    decimal.Decimal
	UnitCost    decimal.Decimal
}
