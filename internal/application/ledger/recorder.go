package ledger

import (
	"context"
	"fmt"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	domledger "github.com/jhoicas/stock-ledger/internal/domain/ledger"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

// Recorder persiste movimientos validados en el ledger append-only.
type Recorder struct{}

// NewRecorder construye el recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// Record valida m y lo inserta con el repositorio de la transacción. Devuelve el id asignado.
func (r *Recorder) Record(ctx context.Context, tx repository.TxRepos, m entity.StockMovement) (int64, error) {
	if err := domledger.ValidateMovement(&m); err != nil {
		return 0, err
	}
	id, err := tx.Movements.Append(ctx, &m)
	if err != nil {
		return 0, fmt.Errorf("registrar movimiento de %s: %w", m.ProductID, err)
	}
	return id, nil
}
