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

var _ repository.SaleRepository = (*SaleRepo)(nil)

const saleColumns = `id, number, state, total, created_by, created_at, anulled_by, anulled_at, anul_reason`

// SaleRepo persistencia de ventas sobre PostgreSQL (usable con pool o tx).
type SaleRepo struct {
	q Querier
}

// NewSaleRepository construye el adaptador. Pasar pool o tx (Querier).
func NewSaleRepository(q Querier) *SaleRepo {
	return &SaleRepo{q: q}
}

// CreateIfNumberFree inserta la cabecera reclamando el número. Si otro escritor ya lo tiene
// devuelve false sin abortar la transacción.
func (r *SaleRepo) CreateIfNumberFree(ctx context.Context, s *entity.Sale) (bool, error) {
	query := `
		INSERT INTO sales (id, number, state, total, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (number) DO NOTHING`
	cmd, err := r.q.Exec(ctx, query, s.ID, s.Number, s.State, s.Total, s.CreatedBy, s.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert sale: %w", err)
	}
	return cmd.RowsAffected() == 1, nil
}

// NumberExists indica si el número ya fue asignado.
func (r *SaleRepo) NumberExists(ctx context.Context, number string) (bool, error) {
	var exists bool
	if err := r.q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM sales WHERE number = $1)`, number).Scan(&exists); err != nil {
		return false, fmt.Errorf("sale number exists: %w", err)
	}
	return exists, nil
}

// AddItem inserta una línea de venta.
func (r *SaleRepo) AddItem(ctx context.Context, it *entity.SaleItem) error {
	query := `
		INSERT INTO sale_items (id, sale_id, product_id, quantity, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.q.Exec(ctx, query, it.ID, it.SaleID, it.ProductID, it.Quantity, it.UnitPrice, it.Subtotal); err != nil {
		if perr := productRefError(err, it.ProductID); perr != nil {
			return perr
		}
		return fmt.Errorf("insert sale item: %w", err)
	}
	return nil
}

// GetByID devuelve la venta con sus líneas, o nil, nil si no existe.
func (r *SaleRepo) GetByID(ctx context.Context, id string) (*entity.Sale, error) {
	s, err := scanSale(r.q.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get sale: %w", err)
	}
	rows, err := r.q.Query(ctx, `
		SELECT id, sale_id, product_id, quantity, unit_price, subtotal
		FROM sale_items WHERE sale_id = $1 ORDER BY product_id, id`, id)
	if err != nil {
		return nil, fmt.Errorf("list sale items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var it entity.SaleItem
		if err := rows.Scan(&it.ID, &it.SaleID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.Subtotal); err != nil {
			return nil, fmt.Errorf("scan sale item: %w", err)
		}
		s.Items = append(s.Items, it)
	}
	return s, rows.Err()
}

// Anul pasa active → anulled si la venta sigue activa y fue creada en o después de createdAfter.
func (r *SaleRepo) Anul(ctx context.Context, id, actorID, reason string, at, createdAfter time.Time) (bool, error) {
	query := `
		UPDATE sales SET state = $2, anulled_by = $3, anul_reason = $4, anulled_at = $5
		WHERE id = $1 AND state = $6 AND created_at >= $7`
	cmd, err := r.q.Exec(ctx, query, id, entity.SaleStateAnulled, actorID, reason, at, entity.SaleStateActive, createdAfter)
	if err != nil {
		return false, fmt.Errorf("anul sale: %w", err)
	}
	return cmd.RowsAffected() == 1, nil
}

// List cabeceras de venta (sin líneas), más recientes primero. state vacío = todas.
func (r *SaleRepo) List(ctx context.Context, state string, limit, offset int) ([]*entity.Sale, error) {
	query := `
		SELECT ` + saleColumns + `
		FROM sales WHERE ($1 = '' OR state = $1)
		ORDER BY created_at DESC, number DESC LIMIT $2 OFFSET $3`
	rows, err := r.q.Query(ctx, query, state, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list sales: %w", err)
	}
	defer rows.Close()
	var out []*entity.Sale
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sale: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanSale(row pgx.Row) (*entity.Sale, error) {
	var (
		s         entity.Sale
		anulledBy *string
	)
	if err := row.Scan(&s.ID, &s.Number, &s.State, &s.Total, &s.CreatedBy, &s.CreatedAt,
		&anulledBy, &s.AnulledAt, &s.AnulReason); err != nil {
		return nil, err
	}
	s.AnulledBy = deref(anulledBy)
	return &s, nil
}
