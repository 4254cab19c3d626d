// Package ledger orquesta las mutaciones de saldo: mutador atómico, registro de
// movimientos, pipeline transaccional de workflows y reconciliación.
package ledger

import (
	"context"
	"fmt"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	domledger "github.com/jhoicas/stock-ledger/internal/domain/ledger"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/shopspring/decimal"
)

// DefaultSetRetries reintentos del compare-and-swap de un ajuste "set".
const DefaultSetRetries = 3

// MutationRequest mutación pedida sobre un producto.
// Para "set" Quantity es el saldo objetivo.
type MutationRequest struct {
	ProductID     string
	Kind          entity.MovementKind
	Quantity      decimal.Decimal
	AllowInactive bool
}

// MutationResult saldo antes y después, ambos observados dentro de la transacción.
type MutationResult struct {
	ProductID string
	Before    decimal.Decimal
	After     decimal.Decimal
}

// Mutator cambia saldos exclusivamente mediante escrituras condicionales.
type Mutator struct {
	setRetries int
	ceiling    decimal.Decimal
}

// NewMutator construye el mutador con el techo de saldo por defecto.
func NewMutator() *Mutator {
	return &Mutator{setRetries: DefaultSetRetries, ceiling: domledger.MaxBalance}
}

// Mutate aplica req dentro de tx. Cero filas afectadas se clasifica con una lectura posterior.
func (m *Mutator) Mutate(ctx context.Context, tx repository.TxRepos, req MutationRequest) (MutationResult, error) {
	if req.ProductID == "" {
		return MutationResult{}, fmt.Errorf("%w: producto requerido", domain.ErrInvalidInput)
	}
	if !domledger.FitsScale(req.Quantity) {
		return MutationResult{}, fmt.Errorf("%w: la cantidad %s tiene más de %d decimales",
			domain.ErrInvalidInput, req.Quantity, domledger.QuantityScale)
	}
	switch req.Kind {
	case entity.MovementIn, entity.MovementOut:
		if !req.Quantity.IsPositive() {
			return MutationResult{}, fmt.Errorf("%w: la cantidad debe ser positiva", domain.ErrInvalidInput)
		}
		return m.delta(ctx, tx, req)
	case entity.MovementSet:
		if req.Quantity.IsNegative() {
			return MutationResult{}, fmt.Errorf("%w: el saldo objetivo no puede ser negativo", domain.ErrInvalidInput)
		}
		return m.set(ctx, tx, req)
	}
	return MutationResult{}, domain.Invariantf("tipo de movimiento desconocido %q", req.Kind)
}

func (m *Mutator) delta(ctx context.Context, tx repository.TxRepos, req MutationRequest) (MutationResult, error) {
	after, applied, err := tx.Products.CompareAndMutateBalance(ctx, repository.BalanceMutation{
		ProductID:     req.ProductID,
		Kind:          req.Kind,
		Quantity:      req.Quantity,
		AllowInactive: req.AllowInactive,
		Ceiling:       m.ceiling,
	})
	if err != nil {
		return MutationResult{}, fmt.Errorf("mutar saldo de %s: %w", req.ProductID, err)
	}
	if !applied {
		return MutationResult{}, m.classify(ctx, tx, req)
	}

	before := after.Sub(req.Quantity)
	if req.Kind == entity.MovementOut {
		before = after.Add(req.Quantity)
	}
	return MutationResult{ProductID: req.ProductID, Before: before, After: after}, nil
}

// set lee el saldo y lo reemplaza solo si no cambió entre la lectura y la escritura.
func (m *Mutator) set(ctx context.Context, tx repository.TxRepos, req MutationRequest) (MutationResult, error) {
	if req.Quantity.GreaterThan(m.ceiling) {
		return MutationResult{}, domain.ErrBalanceCeiling
	}
	for attempt := 0; attempt < m.setRetries; attempt++ {
		p, err := tx.Products.GetByID(ctx, req.ProductID)
		if err != nil {
			return MutationResult{}, fmt.Errorf("leer producto %s: %w", req.ProductID, err)
		}
		if p == nil {
			return MutationResult{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, req.ProductID)
		}
		if !p.Active && !req.AllowInactive {
			return MutationResult{}, fmt.Errorf("%w: %s", domain.ErrProductInactive, p.Name)
		}
		if p.Balance.Equal(req.Quantity) {
			return MutationResult{}, domain.ErrNoChange
		}

		after, applied, err := tx.Products.CompareAndMutateBalance(ctx, repository.BalanceMutation{
			ProductID:     req.ProductID,
			Kind:          entity.MovementSet,
			Quantity:      req.Quantity,
			Expected:      p.Balance,
			AllowInactive: req.AllowInactive,
			Ceiling:       m.ceiling,
		})
		if err != nil {
			return MutationResult{}, fmt.Errorf("ajustar saldo de %s: %w", req.ProductID, err)
		}
		if applied {
			return MutationResult{ProductID: req.ProductID, Before: p.Balance, After: after}, nil
		}
	}
	return MutationResult{}, fmt.Errorf("%w: producto %s", domain.ErrConcurrentUpdate, req.ProductID)
}

// classify traduce un "cero filas afectadas" al rechazo de negocio correspondiente.
func (m *Mutator) classify(ctx context.Context, tx repository.TxRepos, req MutationRequest) error {
	p, err := tx.Products.GetByID(ctx, req.ProductID)
	if err != nil {
		return fmt.Errorf("leer producto %s: %w", req.ProductID, err)
	}
	if p == nil {
		return fmt.Errorf("%w: %s", domain.ErrProductNotFound, req.ProductID)
	}
	if !p.Active && !req.AllowInactive {
		return fmt.Errorf("%w: %s", domain.ErrProductInactive, p.Name)
	}
	switch req.Kind {
	case entity.MovementOut:
		if p.Balance.LessThan(req.Quantity) {
			return &domain.InsufficientStockError{
				ProductID:   p.ID,
				ProductName: p.Name,
				Current:     p.Balance,
				Requested:   req.Quantity,
			}
		}
	case entity.MovementIn:
		if p.Balance.Add(req.Quantity).GreaterThan(m.ceiling) {
			return domain.ErrBalanceCeiling
		}
	}
	// El saldo cambió entre la escritura y la lectura (otra transacción confirmó).
	return fmt.Errorf("%w: producto %s", domain.ErrConcurrentUpdate, req.ProductID)
}
