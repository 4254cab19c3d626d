package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// BalanceMutation parámetros de la escritura condicional sobre el saldo.
// Para "in"/"out" Quantity es el delta; para "set" es el saldo objetivo y Expected el
// saldo leído previamente en la misma transacción (compare-and-swap).
type BalanceMutation struct {
	ProductID     string
	Kind          entity.MovementKind
	Quantity      decimal.Decimal
	Expected      decimal.Decimal
	AllowInactive bool
	Ceiling       decimal.Decimal
}

// ProductFilter filtros para el listado paginado de productos.
type ProductFilter struct {
	CategoryID      string
	IncludeInactive bool
	Limit           int
	Offset          int
}

// InventoryValuation agregado de valorización del inventario activo.
type InventoryValuation struct {
	Products   int
	TotalUnits decimal.Decimal
	TotalValue decimal.Decimal
}

// ProductRepository define el puerto de persistencia de productos y sus saldos (DIP).
type ProductRepository interface {
	Create(ctx context.Context, product *entity.Product) error
	// GetByID devuelve nil, nil si no existe.
	GetByID(ctx context.Context, id string) (*entity.Product, error)
	List(ctx context.Context, filter ProductFilter) ([]*entity.Product, error)
	SetActive(ctx context.Context, id string, active bool) (bool, error)
	UpdateCost(ctx context.Context, id string, cost decimal.Decimal) error

	// CompareAndMutateBalance aplica la mutación en una sola sentencia cuyo predicado
	// (existencia, activo, saldo suficiente o saldo esperado) se evalúa al escribir.
	// applied=false significa cero filas afectadas; el llamador clasifica la causa.
	CompareAndMutateBalance(ctx context.Context, m BalanceMutation) (balance decimal.Decimal, applied bool, err error)

	ListBelowThreshold(ctx context.Context) ([]*entity.Product, error)
	Valuation(ctx context.Context) (InventoryValuation, error)
	CategoryStock(ctx context.Context) ([]entity.CategoryStock, error)
}
