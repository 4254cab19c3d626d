package ledger

import (
	"context"
	"fmt"

	"github.com/jhoicas/stock-ledger/internal/domain"
	domledger "github.com/jhoicas/stock-ledger/internal/domain/ledger"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/shopspring/decimal"
)

// ReconciliationReport compara el saldo almacenado con el reconstruido desde el ledger.
type ReconciliationReport struct {
	ProductID     string
	Stored        decimal.Decimal
	Replayed      decimal.Decimal
	Movements     int
	Consistent    bool
	Discrepancies []domledger.Discrepancy
}

// Reconciler reconstruye saldos desde los movimientos.
type Reconciler struct {
	products  repository.ProductRepository
	movements repository.MovementRepository
}

// NewReconciler construye el reconciliador sobre repositorios fuera de transacción.
func NewReconciler(products repository.ProductRepository, movements repository.MovementRepository) *Reconciler {
	return &Reconciler{products: products, movements: movements}
}

// Reconcile reproduce todos los movimientos del producto desde saldo cero.
func (r *Reconciler) Reconcile(ctx context.Context, productID string) (*ReconciliationReport, error) {
	p, err := r.products.GetByID(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("leer producto %s: %w", productID, err)
	}
	if p == nil {
		return nil, domain.ErrProductNotFound
	}
	movs, err := r.movements.ListForReplay(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("leer movimientos de %s: %w", productID, err)
	}
	res, err := domledger.Replay(decimal.Zero, movs)
	if err != nil {
		return nil, err
	}
	return &ReconciliationReport{
		ProductID:     productID,
		Stored:        p.Balance,
		Replayed:      res.Balance,
		Movements:     res.Movements,
		Consistent:    res.Balance.Equal(p.Balance) && len(res.Discrepancies) == 0,
		Discrepancies: res.Discrepancies,
	}, nil
}
