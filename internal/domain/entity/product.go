package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product es el registro de saldo de un producto.
// Balance nunca es negativo y solo cambia vía CompareAndMutateBalance.
type Product struct {
	ID               string
	SKU              string // código único
	Name             string
	CategoryID       string // vacío si no tiene categoría
	Cost             decimal.Decimal // costo unitario de referencia (valorización)
	Balance          decimal.Decimal // saldo disponible
	ReorderThreshold decimal.Decimal // stock mínimo
	Active           bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// BelowThreshold indica si el saldo está en o por debajo del mínimo.
func (p *Product) BelowThreshold() bool {
	return p.ReorderThreshold.IsPositive() && p.Balance.LessThanOrEqual(p.ReorderThreshold)
}
