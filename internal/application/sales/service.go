// Package sales implementa los workflows de venta: alta con número asignado y
// anulación dentro de la ventana de reversión.
package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/application/ledger"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	domledger "github.com/jhoicas/stock-ledger/internal/domain/ledger"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/internal/domain/sequence"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/cache"
	"github.com/shopspring/decimal"
)

// DefaultReversalWindow tiempo durante el cual una venta puede anularse.
const DefaultReversalWindow = 24 * time.Hour

// Service casos de uso de ventas.
type Service struct {
	orch      *ledger.Orchestrator
	sales     repository.SaleRepository
	allocator *sequence.Allocator
	reader    cache.Reader
	window    time.Duration
	now       func() time.Time
}

// NewService construye el servicio. window <= 0 usa DefaultReversalWindow.
func NewService(
	orch *ledger.Orchestrator,
	sales repository.SaleRepository,
	allocator *sequence.Allocator,
	reader cache.Reader,
	window time.Duration,
) *Service {
	if window <= 0 {
		window = DefaultReversalWindow
	}
	return &Service{
		orch:      orch,
		sales:     sales,
		allocator: allocator,
		reader:    reader,
		window:    window,
		now:       time.Now,
	}
}

// WithClock reemplaza el reloj (tests).
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// CreateSale registra la venta, descuenta el stock de cada línea y asigna el número,
// todo en una transacción.
func (s *Service) CreateSale(ctx context.Context, actorID string, in dto.CreateSaleRequest) (*dto.SaleResponse, error) {
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: la venta no tiene líneas", domain.ErrInvalidInput)
	}
	now := s.now()
	sale := &entity.Sale{
		ID:        uuid.New().String(),
		State:     entity.SaleStateActive,
		Total:     decimal.Zero,
		CreatedBy: actorID,
		CreatedAt: now,
	}
	lines := make([]ledger.LineEffect, 0, len(in.Items))
	for i, it := range in.Items {
		if it.ProductID == "" || !it.Quantity.IsPositive() || !domledger.FitsScale(it.Quantity) || it.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("%w: línea %d", domain.ErrInvalidInput, i+1)
		}
		item := entity.SaleItem{
			ID:        uuid.New().String(),
			SaleID:    sale.ID,
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Quantity.Mul(it.UnitPrice),
		}
		sale.Items = append(sale.Items, item)
		sale.Total = sale.Total.Add(item.Subtotal)
		lines = append(lines, ledger.LineEffect{
			ProductID: it.ProductID,
			Kind:      entity.MovementOut,
			Quantity:  it.Quantity,
			Ref:       i,
		})
	}

	_, err := s.orch.Execute(ctx, ledger.Workflow{
		Name:         "create-sale",
		ActorID:      actorID,
		DocumentKind: entity.DocumentSale,
		DocumentID:   sale.ID,
		Lines:        lines,
		Before: func(ctx context.Context, tx repository.TxRepos) error {
			// El número se reclama insertando la cabecera: la unicidad la decide la BD.
			number, err := s.allocator.Allocate(ctx, func(ctx context.Context, candidate string) (bool, error) {
				sale.Number = candidate
				created, err := tx.Sales.CreateIfNumberFree(ctx, sale)
				return !created, err
			})
			if err != nil {
				return err
			}
			sale.Number = number
			for i := range sale.Items {
				if err := tx.Sales.AddItem(ctx, &sale.Items[i]); err != nil {
					return fmt.Errorf("guardar línea de venta: %w", err)
				}
			}
			return nil
		},
		Events: []cache.Event{cache.DocumentCreated(entity.DocumentSale, sale.ID)},
	})
	if err != nil {
		return nil, err
	}
	return toSaleResponse(sale), nil
}

// AnulSale revierte una venta activa: devuelve el stock de cada línea y pasa la venta a anulada.
func (s *Service) AnulSale(ctx context.Context, actorID, saleID, reason string) (*dto.SaleResponse, error) {
	sale, err := s.sales.GetByID(ctx, saleID)
	if err != nil {
		return nil, fmt.Errorf("leer venta %s: %w", saleID, err)
	}
	if sale == nil {
		return nil, domain.ErrNotFound
	}
	if sale.State != entity.SaleStateActive {
		return nil, &domain.DocumentStateError{
			DocumentKind: string(entity.DocumentSale), DocumentID: saleID,
			State: sale.State, Wanted: entity.SaleStateAnulled,
		}
	}
	now := s.now()
	if now.Sub(sale.CreatedAt) > s.window {
		return nil, domain.ErrReversalWindowExpired
	}

	lines := make([]ledger.LineEffect, 0, len(sale.Items))
	for i, it := range sale.Items {
		lines = append(lines, ledger.LineEffect{
			ProductID:     it.ProductID,
			Kind:          entity.MovementIn,
			Quantity:      it.Quantity,
			AllowInactive: true,
			Note:          "anulación " + sale.Number,
			Ref:           i,
		})
	}

	_, err = s.orch.Execute(ctx, ledger.Workflow{
		Name:         "anul-sale",
		ActorID:      actorID,
		DocumentKind: entity.DocumentSale,
		DocumentID:   sale.ID,
		Lines:        lines,
		Transition: func(ctx context.Context, tx repository.TxRepos) error {
			ok, err := tx.Sales.Anul(ctx, sale.ID, actorID, reason, now, now.Add(-s.window))
			if err != nil {
				return fmt.Errorf("anular venta %s: %w", sale.ID, err)
			}
			if !ok {
				// Otra anulación confirmó primero o la ventana venció entre la verificación y el commit.
				return &domain.DocumentStateError{
					DocumentKind: string(entity.DocumentSale), DocumentID: sale.ID,
					State: sale.State, Wanted: entity.SaleStateAnulled,
				}
			}
			return nil
		},
		Events: []cache.Event{cache.DocumentStateChanged(entity.DocumentSale, sale.ID)},
	})
	if err != nil {
		return nil, err
	}

	sale.State = entity.SaleStateAnulled
	sale.AnulledBy = actorID
	sale.AnulledAt = &now
	sale.AnulReason = reason
	return toSaleResponse(sale), nil
}

// Get devuelve una venta (read-through).
func (s *Service) Get(ctx context.Context, id string) (*dto.SaleResponse, error) {
	return cache.ReadThrough(ctx, s.reader, cache.DocumentKey(entity.DocumentSale, id), func(ctx context.Context) (*dto.SaleResponse, error) {
		sale, err := s.sales.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if sale == nil {
			return nil, domain.ErrNotFound
		}
		return toSaleResponse(sale), nil
	})
}

// List lista ventas por estado (vacío = todas).
func (s *Service) List(ctx context.Context, state string, page dto.PageRequest) (*dto.SaleListResponse, error) {
	page.DefaultPage()
	key := cache.DocumentListKey(entity.DocumentSale, state, page.Limit, page.Offset)
	return cache.ReadThrough(ctx, s.reader, key, func(ctx context.Context) (*dto.SaleListResponse, error) {
		list, err := s.sales.List(ctx, state, page.Limit, page.Offset)
		if err != nil {
			return nil, err
		}
		out := &dto.SaleListResponse{
			Items: make([]dto.SaleResponse, 0, len(list)),
			Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
		}
		for _, sale := range list {
			out.Items = append(out.Items, *toSaleResponse(sale))
		}
		return out, nil
	})
}

func toSaleResponse(s *entity.Sale) *dto.SaleResponse {
	out := &dto.SaleResponse{
		ID:         s.ID,
		Number:     s.Number,
		State:      s.State,
		Total:      s.Total,
		Items:      make([]dto.SaleItemResponse, 0, len(s.Items)),
		CreatedBy:  s.CreatedBy,
		CreatedAt:  s.CreatedAt,
		AnulledBy:  s.AnulledBy,
		AnulledAt:  s.AnulledAt,
		AnulReason: s.AnulReason,
	}
	for _, it := range s.Items {
		out.Items = append(out.Items, dto.SaleItemResponse{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Subtotal:  it.Subtotal,
		})
	}
	return out
}
