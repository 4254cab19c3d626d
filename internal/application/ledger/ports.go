package ledger

import (
	"context"

	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/cache"
)

// TxRunner ejecuta fn dentro de una transacción de BD con repositorios atados a ella.
// Commit si fn devuelve nil, Rollback en cualquier otro caso.
type TxRunner interface {
	Run(ctx context.Context, fn func(tx repository.TxRepos) error) error
}

// Invalidator recibe los eventos de un workflow ya confirmado (implementado por cache.Coordinator).
type Invalidator interface {
	Invalidate(ctx context.Context, events ...cache.Event) cache.Report
}
