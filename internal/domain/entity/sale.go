package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados de venta.
const (
	SaleStateActive  = "active"
	SaleStateAnulled = "anulled"
)

// Sale documento de venta. Number lo asigna el Sequence Allocator.
type Sale struct {
	ID         string
	Number     string
	State      string
	Total      decimal.Decimal
	Items      []SaleItem
	CreatedBy  string
	CreatedAt  time.Time
	AnulledBy  string
	AnulledAt  *time.Time
	AnulReason string
}

// SaleItem línea de venta.
type SaleItem struct {
	ID        string
	SaleID    string
	ProductID string
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}
