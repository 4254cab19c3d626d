// Package catalog administra el maestro de productos y sus lecturas cacheadas.
// El saldo y el costo no se editan aquí: cambian solo vía movimientos.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/application/ledger"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/cache"
	"github.com/shopspring/decimal"
)

// ProductUseCase casos de uso del catálogo.
type ProductUseCase struct {
	orch       *ledger.Orchestrator
	products   repository.ProductRepository
	movements  repository.MovementRepository
	categories repository.CategoryRepository
	reconciler *ledger.Reconciler
	reader     cache.Reader
}

// NewProductUseCase construye el caso de uso.
func NewProductUseCase(
	orch *ledger.Orchestrator,
	products repository.ProductRepository,
	movements repository.MovementRepository,
	categories repository.CategoryRepository,
	reader cache.Reader,
) *ProductUseCase {
	return &ProductUseCase{
		orch:       orch,
		products:   products,
		movements:  movements,
		categories: categories,
		reconciler: ledger.NewReconciler(products, movements),
		reader:     reader,
	}
}

// Create da de alta un producto con saldo cero. Si InitialStock > 0 se registra
// como ajuste de entrada en la misma transacción, de modo que el ledger explique el saldo.
func (uc *ProductUseCase) Create(ctx context.Context, actorID string, in dto.CreateProductRequest) (*dto.ProductResponse, error) {
	in.SKU = strings.TrimSpace(in.SKU)
	in.Name = strings.TrimSpace(in.Name)
	if in.SKU == "" || in.Name == "" {
		return nil, fmt.Errorf("%w: sku y nombre son obligatorios", domain.ErrInvalidInput)
	}
	if in.Cost.IsNegative() || in.ReorderThreshold.IsNegative() || in.InitialStock.IsNegative() {
		return nil, fmt.Errorf("%w: costo, mínimo y stock inicial no pueden ser negativos", domain.ErrInvalidInput)
	}

	in.CategoryID = strings.TrimSpace(in.CategoryID)
	if err := exists(ctx, uc.categories, in.CategoryID); err != nil {
		return nil, err
	}

	now := time.Now()
	product := &entity.Product{
		ID:               uuid.New().String(),
		SKU:              in.SKU,
		Name:             in.Name,
		CategoryID:       in.CategoryID,
		Cost:             in.Cost,
		Balance:          decimal.Zero,
		ReorderThreshold: in.ReorderThreshold,
		Active:           true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	var lines []ledger.LineEffect
	if in.InitialStock.IsPositive() {
		lines = append(lines, ledger.LineEffect{
			ProductID: product.ID,
			Kind:      entity.MovementIn,
			Quantity:  in.InitialStock,
			Note:      "stock inicial",
		})
	}

	_, err := uc.orch.Execute(ctx, ledger.Workflow{
		Name:         "create-product",
		ActorID:      actorID,
		DocumentKind: entity.DocumentAdjustment,
		Lines:        lines,
		Before: func(ctx context.Context, tx repository.TxRepos) error {
			return tx.Products.Create(ctx, product)
		},
		Events: []cache.Event{cache.CatalogChanged(product.ID)},
	})
	if err != nil {
		return nil, err
	}
	product.Balance = in.InitialStock
	out := dto.NewProductResponse(product)
	return &out, nil
}

// Deactivate baja lógica: el producto deja de aceptar ventas y ajustes, su historia se conserva.
func (uc *ProductUseCase) Deactivate(ctx context.Context, actorID, id string) error {
	return uc.setActive(ctx, actorID, id, false)
}

// Reactivate vuelve a habilitar un producto dado de baja.
func (uc *ProductUseCase) Reactivate(ctx context.Context, actorID, id string) error {
	return uc.setActive(ctx, actorID, id, true)
}

func (uc *ProductUseCase) setActive(ctx context.Context, actorID, id string, active bool) error {
	name := "deactivate-product"
	if active {
		name = "reactivate-product"
	}
	_, err := uc.orch.Execute(ctx, ledger.Workflow{
		Name:    name,
		ActorID: actorID,
		Transition: func(ctx context.Context, tx repository.TxRepos) error {
			found, err := tx.Products.SetActive(ctx, id, active)
			if err != nil {
				return fmt.Errorf("cambiar estado de producto %s: %w", id, err)
			}
			if !found {
				return domain.ErrProductNotFound
			}
			return nil
		},
		Events: []cache.Event{cache.CatalogChanged(id)},
	})
	return err
}

// GetByID detalle de producto (read-through).
func (uc *ProductUseCase) GetByID(ctx context.Context, id string) (*dto.ProductResponse, error) {
	return cache.ReadThrough(ctx, uc.reader, cache.ProductKey(id), func(ctx context.Context) (*dto.ProductResponse, error) {
		p, err := uc.products.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if p == nil {
			return nil, domain.ErrProductNotFound
		}
		out := dto.NewProductResponse(p)
		return &out, nil
	})
}

// List página de productos (read-through).
func (uc *ProductUseCase) List(ctx context.Context, categoryID string, includeInactive bool, page dto.PageRequest) (*dto.ProductListResponse, error) {
	page.DefaultPage()
	key := cache.ProductListKey(categoryID, includeInactive, page.Limit, page.Offset)
	return cache.ReadThrough(ctx, uc.reader, key, func(ctx context.Context) (*dto.ProductListResponse, error) {
		list, err := uc.products.List(ctx, repository.ProductFilter{
			CategoryID:      categoryID,
			IncludeInactive: includeInactive,
			Limit:           page.Limit,
			Offset:          page.Offset,
		})
		if err != nil {
			return nil, err
		}
		items := make([]dto.ProductResponse, 0, len(list))
		for _, p := range list {
			items = append(items, dto.NewProductResponse(p))
		}
		return &dto.ProductListResponse{
			Items: items,
			Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
		}, nil
	})
}

// CategorySummary stock agregado por categoría (read-through).
func (uc *ProductUseCase) CategorySummary(ctx context.Context) ([]dto.CategoryStockResponse, error) {
	return cache.ReadThrough(ctx, uc.reader, cache.CategorySummaryKey(), func(ctx context.Context) ([]dto.CategoryStockResponse, error) {
		rows, err := uc.products.CategoryStock(ctx)
		if err != nil {
			return nil, err
		}
		out := make([]dto.CategoryStockResponse, 0, len(rows))
		for _, r := range rows {
			out = append(out, dto.CategoryStockResponse{
				CategoryID:   r.CategoryID,
				CategoryName: r.CategoryName,
				Products:     r.Products,
				TotalUnits:   r.TotalUnits,
				TotalValue:   r.TotalValue,
			})
		}
		return out, nil
	})
}

// Movements historia del producto, más reciente primero (read-through).
func (uc *ProductUseCase) Movements(ctx context.Context, productID string, page dto.PageRequest) (*dto.MovementListResponse, error) {
	page.DefaultPage()
	key := cache.MovementsKey(productID, page.Limit, page.Offset)
	return cache.ReadThrough(ctx, uc.reader, key, func(ctx context.Context) (*dto.MovementListResponse, error) {
		list, err := uc.movements.ListByProduct(ctx, productID, page.Limit, page.Offset)
		if err != nil {
			return nil, err
		}
		items := make([]dto.MovementResponse, 0, len(list))
		for _, m := range list {
			items = append(items, dto.NewMovementResponse(m))
		}
		return &dto.MovementListResponse{
			Items: items,
			Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
		}, nil
	})
}

// Reconcile reconstruye el saldo desde el ledger. No se cachea.
func (uc *ProductUseCase) Reconcile(ctx context.Context, productID string) (*dto.ReconciliationResponse, error) {
	rep, err := uc.reconciler.Reconcile(ctx, productID)
	if err != nil {
		return nil, err
	}
	out := &dto.ReconciliationResponse{
		ProductID:  rep.ProductID,
		Stored:     rep.Stored,
		Replayed:   rep.Replayed,
		Movements:  rep.Movements,
		Consistent: rep.Consistent,
	}
	for _, d := range rep.Discrepancies {
		out.Discrepancies = append(out.Discrepancies, dto.DiscrepancyDTO{
			MovementID: d.MovementID,
			Expected:   d.Expected,
			Recorded:   d.Recorded,
		})
	}
	return out, nil
}
