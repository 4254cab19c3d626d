package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
)

var _ repository.MovementRepository = (*MovementRepo)(nil)

const movementColumns = `id, product_id, kind, quantity, balance_before, balance_after, document_kind, document_id, actor_id, note, created_at`

// MovementRepo ledger append-only sobre PostgreSQL. Un trigger en la tabla rechaza UPDATE y DELETE.
type MovementRepo struct {
	q Querier
}

// NewMovementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewMovementRepository(q Querier) *MovementRepo {
	return &MovementRepo{q: q}
}

// Append inserta el movimiento y completa ID y CreatedAt con los valores asignados por la BD.
func (r *MovementRepo) Append(ctx context.Context, m *entity.StockMovement) (int64, error) {
	query := `
		INSERT INTO stock_movements (product_id, kind, quantity, balance_before, balance_after, document_kind, document_id, actor_id, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`
	err := r.q.QueryRow(ctx, query,
		m.ProductID, string(m.Kind), m.Quantity, m.BalanceBefore, m.BalanceAfter,
		string(m.DocumentKind), nullable(m.DocumentID), m.ActorID, m.Note,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("append movement: %w", err)
	}
	return m.ID, nil
}

// ListByProduct historia paginada, más reciente primero.
func (r *MovementRepo) ListByProduct(ctx context.Context, productID string, limit, offset int) ([]*entity.StockMovement, error) {
	query := `
		SELECT ` + movementColumns + `
		FROM stock_movements WHERE product_id = $1
		ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`
	rows, err := r.q.Query(ctx, query, productID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list movements by product: %w", err)
	}
	return collectMovements(rows)
}

// ListByDocument movimientos originados por un documento, en orden de registro.
func (r *MovementRepo) ListByDocument(ctx context.Context, kind entity.DocumentKind, documentID string) ([]*entity.StockMovement, error) {
	query := `
		SELECT ` + movementColumns + `
		FROM stock_movements WHERE document_kind = $1 AND document_id = $2
		ORDER BY id`
	rows, err := r.q.Query(ctx, query, string(kind), documentID)
	if err != nil {
		return nil, fmt.Errorf("list movements by document: %w", err)
	}
	return collectMovements(rows)
}

// ListForReplay todos los movimientos del producto en orden cronológico (created_at, id).
func (r *MovementRepo) ListForReplay(ctx context.Context, productID string) ([]*entity.StockMovement, error) {
	query := `
		SELECT ` + movementColumns + `
		FROM stock_movements WHERE product_id = $1
		ORDER BY created_at, id`
	rows, err := r.q.Query(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("list movements for replay: %w", err)
	}
	return collectMovements(rows)
}

func collectMovements(rows pgx.Rows) ([]*entity.StockMovement, error) {
	defer rows.Close()
	var out []*entity.StockMovement
	for rows.Next() {
		var (
			m          entity.StockMovement
			kind, doc  string
			documentID *string
		)
		if err := rows.Scan(&m.ID, &m.ProductID, &kind, &m.Quantity, &m.BalanceBefore, &m.BalanceAfter,
			&doc, &documentID, &m.ActorID, &m.Note, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		m.Kind = entity.MovementKind(kind)
		m.DocumentKind = entity.DocumentKind(doc)
		m.DocumentID = deref(documentID)
		out = append(out, &m)
	}
	return out, rows.Err()
}
