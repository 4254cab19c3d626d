// Package inventory expone los ajustes manuales de stock y las vistas de inventario
// (stock bajo, valorización y alertas de reposición).
package inventory

import (
	"context"
	"fmt"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/application/ledger"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/cache"
)

// UseCase ajustes y consultas de inventario.
type UseCase struct {
	orch     *ledger.Orchestrator
	products repository.ProductRepository
	reader   cache.Reader
}

// NewUseCase construye el caso de uso.
func NewUseCase(orch *ledger.Orchestrator, products repository.ProductRepository, reader cache.Reader) *UseCase {
	return &UseCase{orch: orch, products: products, reader: reader}
}

// AdjustStock corrige el saldo de un producto. Mode "set" fija el saldo (conteo físico);
// "in"/"out" aplican un delta. El movimiento queda con documento "adjustment".
func (uc *UseCase) AdjustStock(ctx context.Context, actorID string, in dto.AdjustStockRequest) (*dto.AdjustStockResponse, error) {
	if in.ProductID == "" {
		return nil, fmt.Errorf("%w: producto requerido", domain.ErrInvalidInput)
	}
	kind := entity.MovementKind(in.Mode)
	switch kind {
	case entity.MovementSet:
		if in.Quantity.IsNegative() {
			return nil, fmt.Errorf("%w: el saldo objetivo no puede ser negativo", domain.ErrInvalidInput)
		}
	case entity.MovementIn, entity.MovementOut:
		if !in.Quantity.IsPositive() {
			return nil, fmt.Errorf("%w: la cantidad debe ser positiva", domain.ErrInvalidInput)
		}
	default:
		return nil, fmt.Errorf("%w: modo de ajuste %q", domain.ErrInvalidInput, in.Mode)
	}

	out, err := uc.orch.Execute(ctx, ledger.Workflow{
		Name:         "adjust-stock",
		ActorID:      actorID,
		DocumentKind: entity.DocumentAdjustment,
		Lines: []ledger.LineEffect{{
			ProductID: in.ProductID,
			Kind:      kind,
			Quantity:  in.Quantity,
			Note:      in.Note,
		}},
	})
	if err != nil {
		return nil, err
	}
	m := out.Movements[0]
	return &dto.AdjustStockResponse{
		ProductID:     m.ProductID,
		MovementID:    m.ID,
		Kind:          string(m.Kind),
		Quantity:      m.Quantity,
		BalanceBefore: m.BalanceBefore,
		BalanceAfter:  m.BalanceAfter,
	}, nil
}
