package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.ReceptionRepository = (*ReceptionRepo)(nil)

const receptionColumns = `id, supplier_id, supplier_name, state, advisory_note, created_by, created_at,
	processed_by, processed_at, cancelled_by, cancelled_at`

// ReceptionRepo persistencia de recepciones sobre PostgreSQL (usable con pool o tx).
type ReceptionRepo struct {
	q Querier
}

// NewReceptionRepository construye el adaptador. Pasar pool o tx (Querier).
func NewReceptionRepository(q Querier) *ReceptionRepo {
	return &ReceptionRepo{q: q}
}

// Create inserta cabecera y líneas. Debe llamarse dentro de una transacción.
func (r *ReceptionRepo) Create(ctx context.Context, rc *entity.Reception) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO receptions (id, supplier_id, supplier_name, state, advisory_note, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rc.ID, nullable(rc.SupplierID), rc.SupplierName, rc.State, rc.AdvisoryNote, rc.CreatedBy, rc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert reception: %w", err)
	}
	for _, it := range rc.Items {
		_, err := r.q.Exec(ctx, `
			INSERT INTO reception_items (id, reception_id, product_id, quantity, unit_cost)
			VALUES ($1, $2, $3, $4, $5)`,
			it.ID, rc.ID, it.ProductID, it.Quantity, it.UnitCost,
		)
		if err != nil {
			if perr := productRefError(err, it.ProductID); perr != nil {
				return perr
			}
			return fmt.Errorf("insert reception item: %w", err)
		}
	}
	return nil
}

// GetByID devuelve la recepción con sus líneas, o nil, nil si no existe.
func (r *ReceptionRepo) GetByID(ctx context.Context, id string) (*entity.Reception, error) {
	rc, err := scanReception(r.q.QueryRow(ctx, `SELECT `+receptionColumns+` FROM receptions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get reception: %w", err)
	}
	rows, err := r.q.Query(ctx, `
		SELECT id, reception_id, product_id, quantity, unit_cost
		FROM reception_items WHERE reception_id = $1 ORDER BY product_id, id`, id)
	if err != nil {
		return nil, fmt.Errorf("list reception items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it entity.ReceptionItem
		if err := rows.Scan(&it.ID, &it.ReceptionID, &it.ProductID, &it.Quantity, &it.UnitCost); err != nil {
			return nil, fmt.Errorf("scan reception item: %w", err)
		}
		rc.Items = append(rc.Items, it)
	}
	return rc, rows.Err()
}

// MarkProcessed pasa pending → processed. false si ya no estaba pendiente.
func (r *ReceptionRepo) MarkProcessed(ctx context.Context, id, actorID, advisoryNote string, at time.Time) (bool, error) {
	cmd, err := r.q.Exec(ctx, `
		UPDATE receptions SET state = $2, processed_by = $3, processed_at = $4, advisory_note = $5
		WHERE id = $1 AND state = $6`,
		id, entity.ReceptionStateProcessed, actorID, at, advisoryNote, entity.ReceptionStatePending,
	)
	if err != nil {
		return false, fmt.Errorf("mark reception processed: %w", err)
	}
	return cmd.RowsAffected() == 1, nil
}

// MarkCancelled pasa pending → cancelled. false si ya no estaba pendiente.
func (r *ReceptionRepo) MarkCancelled(ctx context.Context, id, actorID string, at time.Time) (bool, error) {
	cmd, err := r.q.Exec(ctx, `
		UPDATE receptions SET state = $2, cancelled_by = $3, cancelled_at = $4
		WHERE id = $1 AND state = $5`,
		id, entity.ReceptionStateCancelled, actorID, at, entity.ReceptionStatePending,
	)
	if err != nil {
		return false, fmt.Errorf("mark reception cancelled: %w", err)
	}
	return cmd.RowsAffected() == 1, nil
}

// List cabeceras (sin líneas), más recientes primero. state vacío = todas.
func (r *ReceptionRepo) List(ctx context.Context, state string, limit, offset int) ([]*entity.Reception, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+receptionColumns+`
		FROM receptions WHERE ($1 = '' OR state = $1)
		ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`, state, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list receptions: %w", err)
	}
	defer rows.Close()
	var out []*entity.Reception
	for rows.Next() {
		rc, err := scanReception(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reception: %w", err)
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}

func scanReception(row pgx.Row) (*entity.Reception, error) {
	var (
		rc                       entity.Reception
		supplierID               *string
		processedBy, cancelledBy *string
	)
	if err := row.Scan(&rc.ID, &supplierID, &rc.SupplierName, &rc.State, &rc.AdvisoryNote, &rc.CreatedBy, &rc.CreatedAt,
		&processedBy, &rc.ProcessedAt, &cancelledBy, &rc.CancelledAt); err != nil {
		return nil, err
	}
	rc.SupplierID = deref(supplierID)
	rc.ProcessedBy = deref(processedBy)
	rc.CancelledBy = deref(cancelledBy)
	return &rc, nil
}
