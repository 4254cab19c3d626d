package repository

import (
	"context"
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// SaleRepository puerto de persistencia de ventas.
type SaleRepository interface {
	// CreateIfNumberFree inserta la cabecera; created=false si el número ya existe.
	CreateIfNumberFree(ctx context.Context, sale *entity.Sale) (created bool, err error)
	NumberExists(ctx context.Context, number string) (bool, error)
	AddItem(ctx context.Context, item *entity.SaleItem) error
	// GetByID devuelve la venta con sus líneas, o nil, nil si no existe.
	GetByID(ctx context.Context, id string) (*entity.Sale, error)
	// Anul pasa active → anulled solo si la venta fue creada en o después de createdAfter.
	Anul(ctx context.Context, id, actorID, reason string, at, createdAfter time.Time) (bool, error)
	List(ctx context.Context, state string, limit, offset int) ([]*entity.Sale, error)
}
