package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/shopspring/decimal"
)

var _ repository.ProductRepository = (*ProductRepo)(nil)

const productColumns = `id, sku, name, category_id, cost, balance, reorder_threshold, active, created_at, updated_at`

// ProductRepo implementación del puerto ProductRepository sobre PostgreSQL (usable con pool o tx).
type ProductRepo struct {
	q Querier
}

// NewProductRepository construye el adaptador de persistencia para productos. Pasar pool o tx (Querier).
func NewProductRepository(q Querier) *ProductRepo {
	return &ProductRepo{q: q}
}

// Create persiste un nuevo producto.
func (r *ProductRepo) Create(ctx context.Context, p *entity.Product) error {
	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.q.Exec(ctx, query,
		p.ID, p.SKU, p.Name, nullable(p.CategoryID), p.Cost, p.Balance,
		p.ReorderThreshold, p.Active, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicate
		}
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

// GetByID obtiene un producto por ID. nil, nil si no existe.
func (r *ProductRepo) GetByID(ctx context.Context, id string) (*entity.Product, error) {
	p, err := scanProduct(r.q.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isInvalidText(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// List lista productos con filtros y paginación, ordenados por SKU.
func (r *ProductRepo) List(ctx context.Context, f repository.ProductFilter) ([]*entity.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE ($1 = '' OR category_id::text = $1) AND ($2 OR active)
		ORDER BY sku LIMIT $3 OFFSET $4`
	rows, err := r.q.Query(ctx, query, f.CategoryID, f.IncludeInactive, f.Limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return collectProducts(rows)
}

// SetActive cambia el flag active. Devuelve false si el producto no existe.
func (r *ProductRepo) SetActive(ctx context.Context, id string, active bool) (bool, error) {
	cmd, err := r.q.Exec(ctx, `UPDATE products SET active = $2, updated_at = now() WHERE id = $1`, id, active)
	if err != nil {
		return false, fmt.Errorf("set product active: %w", err)
	}
	return cmd.RowsAffected() > 0, nil
}

// UpdateCost actualiza solo el costo del producto (costo promedio tras una recepción).
func (r *ProductRepo) UpdateCost(ctx context.Context, id string, cost decimal.Decimal) error {
	_, err := r.q.Exec(ctx, `UPDATE products SET cost = $2, updated_at = now() WHERE id = $1`, id, cost)
	if err != nil {
		return fmt.Errorf("update product cost: %w", err)
	}
	return nil
}

// Sentencias condicionales del mutador. El predicado se evalúa sobre la versión más reciente
// de la fila al escribir, por lo que dos escritores concurrentes nunca dejan saldo negativo.
const (
	mutateIn = `
		UPDATE products SET balance = balance + $2, updated_at = now()
		WHERE id = $1 AND ($3 OR active) AND balance + $2 <= $4
		RETURNING balance`
	mutateOut = `
		UPDATE products SET balance = balance - $2, updated_at = now()
		WHERE id = $1 AND ($3 OR active) AND balance >= $2
		RETURNING balance`
	mutateSet = `
		UPDATE products SET balance = $2, updated_at = now()
		WHERE id = $1 AND ($3 OR active) AND balance = $4
		RETURNING balance`
)

// CompareAndMutateBalance aplica la mutación en una sola sentencia. applied=false si ninguna fila
// cumplió el predicado.
func (r *ProductRepo) CompareAndMutateBalance(ctx context.Context, m repository.BalanceMutation) (decimal.Decimal, bool, error) {
	var (
		query string
		args  []any
	)
	switch m.Kind {
	case entity.MovementIn:
		query, args = mutateIn, []any{m.ProductID, m.Quantity, m.AllowInactive, m.Ceiling}
	case entity.MovementOut:
		query, args = mutateOut, []any{m.ProductID, m.Quantity, m.AllowInactive}
	case entity.MovementSet:
		query, args = mutateSet, []any{m.ProductID, m.Quantity, m.AllowInactive, m.Expected}
	default:
		return decimal.Zero, false, domain.Invariantf("tipo de movimiento desconocido %q", m.Kind)
	}

	var balance decimal.Decimal
	err := r.q.QueryRow(ctx, query, args...).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, false, nil
		}
		if isInvalidText(err) {
			return decimal.Zero, false, fmt.Errorf("%w: %s", domain.ErrProductNotFound, m.ProductID)
		}
		if isCheckViolation(err) {
			return decimal.Zero, false, domain.Invariantf("el saldo de %s violó la restricción balance >= 0", m.ProductID)
		}
		if isContention(err) {
			return decimal.Zero, false, fmt.Errorf("%w: %v", domain.ErrConcurrentUpdate, err)
		}
		return decimal.Zero, false, fmt.Errorf("mutate balance: %w", err)
	}
	return balance, true, nil
}

// ListBelowThreshold productos activos con mínimo definido y saldo en o bajo ese mínimo.
func (r *ProductRepo) ListBelowThreshold(ctx context.Context) ([]*entity.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE active AND reorder_threshold > 0 AND balance <= reorder_threshold
		ORDER BY sku`
	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list below threshold: %w", err)
	}
	return collectProducts(rows)
}

// Valuation suma unidades y valor (saldo * costo) del inventario activo.
func (r *ProductRepo) Valuation(ctx context.Context) (repository.InventoryValuation, error) {
	var v repository.InventoryValuation
	err := r.q.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(balance), 0), COALESCE(SUM(balance * cost), 0)
		FROM products WHERE active`).Scan(&v.Products, &v.TotalUnits, &v.TotalValue)
	if err != nil {
		return v, fmt.Errorf("inventory valuation: %w", err)
	}
	v.TotalValue = v.TotalValue.Round(2)
	return v, nil
}

// CategoryStock agrega saldo y valor por categoría. Los productos sin categoría van juntos.
func (r *ProductRepo) CategoryStock(ctx context.Context) ([]entity.CategoryStock, error) {
	query := `
		SELECT COALESCE(c.id::text, ''), COALESCE(c.name, 'Sin categoría'),
		       COUNT(p.id), COALESCE(SUM(p.balance), 0), COALESCE(SUM(p.balance * p.cost), 0)
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.active
		GROUP BY c.id, c.name
		ORDER BY 2`
	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("category stock: %w", err)
	}
	defer rows.Close()
	var out []entity.CategoryStock
	for rows.Next() {
		var cs entity.CategoryStock
		if err := rows.Scan(&cs.CategoryID, &cs.CategoryName, &cs.Products, &cs.TotalUnits, &cs.TotalValue); err != nil {
			return nil, fmt.Errorf("scan category stock: %w", err)
		}
		cs.TotalValue = cs.TotalValue.Round(2)
		out = append(out, cs)
	}
	return out, rows.Err()
}

func scanProduct(row pgx.Row) (*entity.Product, error) {
	var (
		p          entity.Product
		categoryID *string
	)
	if err := row.Scan(&p.ID, &p.SKU, &p.Name, &categoryID, &p.Cost, &p.Balance,
		&p.ReorderThreshold, &p.Active, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.CategoryID = deref(categoryID)
	return &p, nil
}

func collectProducts(rows pgx.Rows) ([]*entity.Product, error) {
	defer rows.Close()
	var out []*entity.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
