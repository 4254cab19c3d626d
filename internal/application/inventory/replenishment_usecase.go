package inventory

import (
	"context"
	"sort"

	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/cache"
	"github.com/shopspring/decimal"
)

// LowStock productos activos en o bajo su stock mínimo (read-through).
func (uc *UseCase) LowStock(ctx context.Context) ([]dto.ProductResponse, error) {
	return cache.ReadThrough(ctx, uc.reader, cache.LowStockKey(), func(ctx context.Context) ([]dto.ProductResponse, error) {
		items, err := uc.products.ListBelowThreshold(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]dto.ProductResponse, 0, len(items))
		for _, p := range items {
			out = append(out, dto.NewProductResponse(p))
		}
		return out, nil
	})
}

// Valuation valorización del inventario activo a costo promedio (read-through).
func (uc *UseCase) Valuation(ctx context.Context) (*dto.ValuationResponse, error) {
	return cache.ReadThrough(ctx, uc.reader, cache.ValuationKey(), func(ctx context.Context) (*dto.ValuationResponse, error) {
		v, err := uc.products.Valuation(ctx)
		if err != nil {
			return nil, err
		}
		return &dto.ValuationResponse{Products: v.Products, TotalUnits: v.TotalUnits, TotalValue: v.TotalValue}, nil
	})
}

// Alerts lista de reposición: productos bajo el mínimo con la cantidad sugerida de pedido,
// priorizados por agotamiento y luego por déficit relativo (read-through).
func (uc *UseCase) Alerts(ctx context.Context) ([]dto.ReplenishmentSuggestionDTO, error) {
	return cache.ReadThrough(ctx, uc.reader, cache.AlertsKey(), func(ctx context.Context) ([]dto.ReplenishmentSuggestionDTO, error) {
		items, err := uc.products.ListBelowThreshold(ctx)
		if err != nil {
			return nil, err
		}
		return buildSuggestions(items), nil
	})
}

var idealFactor = decimal.NewFromFloat(1.5)

func buildSuggestions(items []*entity.Product) []dto.ReplenishmentSuggestionDTO {
	suggestions := make([]dto.ReplenishmentSuggestionDTO, 0, len(items))
	for _, p := range items {
		ideal := p.ReorderThreshold.Mul(idealFactor)
		qty := ideal.Sub(p.Balance)
		if qty.IsNegative() {
			qty = decimal.Zero
		}
		suggestions = append(suggestions, dto.ReplenishmentSuggestionDTO{
			ProductID:          p.ID,
			SKU:                p.SKU,
			ProductName:        p.Name,
			CurrentStock:       p.Balance,
			ReorderPoint:       p.ReorderThreshold,
			IdealStock:         ideal,
			SuggestedOrderQty:  qty,
			UnitCost:           p.Cost,
			EstimatedOrderCost: qty.Mul(p.Cost).Round(2),
			OutOfStock:         p.Balance.IsZero(),
		})
	}

	// Primero agotados, luego mayor déficit relativo al mínimo, luego SKU.
	sort.SliceStable(suggestions, func(i, j int) bool {
		a, b := suggestions[i], suggestions[j]
		if a.OutOfStock != b.OutOfStock {
			return a.OutOfStock
		}
		ra, rb := deficitRatio(a), deficitRatio(b)
		if !ra.Equal(rb) {
			return ra.GreaterThan(rb)
		}
		return a.SKU < b.SKU
	})
	for i := range suggestions {
		suggestions[i].Priority = i + 1
	}
	return suggestions
}

func deficitRatio(s dto.ReplenishmentSuggestionDTO) decimal.Decimal {
	if !s.ReorderPoint.IsPositive() {
		return decimal.Zero
	}
	return s.ReorderPoint.Sub(s.CurrentStock).Div(s.ReorderPoint)
}
