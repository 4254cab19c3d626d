package repository

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// MovementRepository puerto append-only del ledger: no existen Update ni Delete.
type MovementRepository interface {
	Append(ctx context.Context, m *entity.StockMovement) (int64, error)
	// ListByProduct devuelve la historia más reciente primero (paginada).
	ListByProduct(ctx context.Context, productID string, limit, offset int) ([]*entity.StockMovement, error)
	ListByDocument(ctx context.Context, kind entity.DocumentKind, documentID string) ([]*entity.StockMovement, error)
	// ListForReplay devuelve todos los movimientos del producto en orden cronológico (created_at, id).
	ListForReplay(ctx context.Context, productID string) ([]*entity.StockMovement, error)
}
