package entity

import "github.com/shopspring/decimal"

// Category agrupa productos; el core solo la usa para agregados de stock.
type Category struct {
	ID   string
	Name string
}

// CategoryStock agregado de saldo por categoría (vista de lectura cacheada).
type CategoryStock struct {
	CategoryID   string
	CategoryName string
	Products     int
	TotalUnits   decimal.Decimal
	TotalValue   decimal.Decimal
}
