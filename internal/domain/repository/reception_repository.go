package repository

import (
	"context"
	"time"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// ReceptionRepository puerto de persistencia de recepciones de compra.
type ReceptionRepository interface {
	// Create inserta cabecera y líneas.
	Create(ctx context.Context, r *entity.Reception) error
	GetByID(ctx context.Context, id string) (*entity.Reception, error)
	// MarkProcessed pasa pending → processed; false si ya no estaba pendiente.
	MarkProcessed(ctx context.Context, id, actorID, advisoryNote string, at time.Time) (bool, error)
	MarkCancelled(ctx context.Context, id, actorID string, at time.Time) (bool, error)
	List(ctx context.Context, state string, limit, offset int) ([]*entity.Reception, error)
}
