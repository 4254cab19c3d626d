// Package receptions implementa el ciclo de vida de las recepciones de compra:
// pendiente → procesada (suma stock) | cancelada.
package receptions

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/application/ledger"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	domledger "github.com/jhoicas/stock-ledger/internal/domain/ledger"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/cache"
)

// Service casos de uso de recepciones.
type Service struct {
	orch       *ledger.Orchestrator
	receptions repository.ReceptionRepository
	reader     cache.Reader
	now        func() time.Time
}

// NewService construye el servicio.
func NewService(orch *ledger.Orchestrator, receptions repository.ReceptionRepository, reader cache.Reader) *Service {
	return &Service{orch: orch, receptions: receptions, reader: reader, now: time.Now}
}

// CreateReception registra una recepción pendiente. No toca saldos.
func (s *Service) CreateReception(ctx context.Context, actorID string, in dto.CreateReceptionRequest) (*dto.ReceptionResponse, error) {
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: la recepción no tiene líneas", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(in.SupplierName) == "" {
		return nil, fmt.Errorf("%w: proveedor requerido", domain.ErrInvalidInput)
	}
	r := &entity.Reception{
		ID:           uuid.New().String(),
		SupplierID:   in.SupplierID,
		SupplierName: in.SupplierName,
		State:        entity.ReceptionStatePending,
		CreatedBy:    actorID,
		CreatedAt:    s.now(),
	}
	for i, it := range in.Items {
		if it.ProductID == "" || !it.Quantity.IsPositive() || !domledger.FitsScale(it.Quantity) || it.UnitCost.IsNegative() {
			return nil, fmt.Errorf("%w: línea %d", domain.ErrInvalidInput, i+1)
		}
		r.Items = append(r.Items, entity.ReceptionItem{
			ID:          uuid.New().String(),
			ReceptionID: r.ID,
			ProductID:   it.ProductID,
			Quantity:    it.Quantity,
			UnitCost:    it.UnitCost,
		})
	}

	_, err := s.orch.Execute(ctx, ledger.Workflow{
		Name:         "create-reception",
		ActorID:      actorID,
		DocumentKind: entity.DocumentReception,
		DocumentID:   r.ID,
		Before: func(ctx context.Context, tx repository.TxRepos) error {
			if err := tx.Receptions.Create(ctx, r); err != nil {
				return fmt.Errorf("guardar recepción: %w", err)
			}
			return nil
		},
		Events: []cache.Event{cache.DocumentCreated(entity.DocumentReception, r.ID)},
	})
	if err != nil {
		return nil, err
	}
	return toReceptionResponse(r), nil
}

// ProcessReception suma al stock cada línea, actualiza el costo promedio y marca la recepción
// como procesada. Los productos inactivos se reciben igual y quedan listados en la nota.
func (s *Service) ProcessReception(ctx context.Context, actorID, receptionID string) (*dto.ReceptionResponse, error) {
	r, err := s.pending(ctx, receptionID, entity.ReceptionStateProcessed)
	if err != nil {
		return nil, err
	}

	lines := make([]ledger.LineEffect, 0, len(r.Items))
	for i, it := range r.Items {
		lines = append(lines, ledger.LineEffect{
			ProductID:     it.ProductID,
			Kind:          entity.MovementIn,
			Quantity:      it.Quantity,
			AllowInactive: true,
			Ref:           i,
		})
	}

	now := s.now()
	inactive := map[string]struct{}{}
	var note string
	_, err = s.orch.Execute(ctx, ledger.Workflow{
		Name:         "process-reception",
		ActorID:      actorID,
		DocumentKind: entity.DocumentReception,
		DocumentID:   r.ID,
		Lines:        lines,
		AfterLine: func(ctx context.Context, tx repository.TxRepos, line ledger.LineEffect, res ledger.MutationResult) error {
			p, err := tx.Products.GetByID(ctx, line.ProductID)
			if err != nil {
				return fmt.Errorf("leer producto %s: %w", line.ProductID, err)
			}
			if p == nil {
				return domain.ErrProductNotFound
			}
			if !p.Active {
				inactive[p.Name] = struct{}{}
			}
			cost := domledger.WeightedAverageCost(res.Before, p.Cost, line.Quantity, r.Items[line.Ref].UnitCost)
			if !cost.Equal(p.Cost) {
				if err := tx.Products.UpdateCost(ctx, p.ID, cost); err != nil {
					return fmt.Errorf("actualizar costo de %s: %w", p.ID, err)
				}
			}
			return nil
		},
		Transition: func(ctx context.Context, tx repository.TxRepos) error {
			note = advisoryNote(inactive)
			ok, err := tx.Receptions.MarkProcessed(ctx, r.ID, actorID, note, now)
			if err != nil {
				return fmt.Errorf("procesar recepción %s: %w", r.ID, err)
			}
			if !ok {
				return &domain.DocumentStateError{
					DocumentKind: string(entity.DocumentReception), DocumentID: r.ID,
					State: r.State, Wanted: entity.ReceptionStateProcessed,
				}
			}
			return nil
		},
		Events: []cache.Event{cache.DocumentStateChanged(entity.DocumentReception, r.ID)},
	})
	if err != nil {
		return nil, err
	}

	r.State = entity.ReceptionStateProcessed
	r.AdvisoryNote = note
	r.ProcessedBy = actorID
	r.ProcessedAt = &now
	return toReceptionResponse(r), nil
}

// CancelReception descarta una recepción pendiente sin efecto sobre el stock.
func (s *Service) CancelReception(ctx context.Context, actorID, receptionID string) (*dto.ReceptionResponse, error) {
	r, err := s.pending(ctx, receptionID, entity.ReceptionStateCancelled)
	if err != nil {
		return nil, err
	}
	now := s.now()
	_, err = s.orch.Execute(ctx, ledger.Workflow{
		Name:         "cancel-reception",
		ActorID:      actorID,
		DocumentKind: entity.DocumentReception,
		DocumentID:   r.ID,
		Transition: func(ctx context.Context, tx repository.TxRepos) error {
			ok, err := tx.Receptions.MarkCancelled(ctx, r.ID, actorID, now)
			if err != nil {
				return fmt.Errorf("cancelar recepción %s: %w", r.ID, err)
			}
			if !ok {
				return &domain.DocumentStateError{
					DocumentKind: string(entity.DocumentReception), DocumentID: r.ID,
					State: r.State, Wanted: entity.ReceptionStateCancelled,
				}
			}
			return nil
		},
		Events: []cache.Event{cache.DocumentStateChanged(entity.DocumentReception, r.ID)},
	})
	if err != nil {
		return nil, err
	}
	r.State = entity.ReceptionStateCancelled
	r.CancelledBy = actorID
	r.CancelledAt = &now
	return toReceptionResponse(r), nil
}

// pending carga la recepción y verifica que siga pendiente.
func (s *Service) pending(ctx context.Context, id, wanted string) (*entity.Reception, error) {
	r, err := s.receptions.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("leer recepción %s: %w", id, err)
	}
	if r == nil {
		return nil, domain.ErrNotFound
	}
	if r.State != entity.ReceptionStatePending {
		return nil, &domain.DocumentStateError{
			DocumentKind: string(entity.DocumentReception), DocumentID: id,
			State: r.State, Wanted: wanted,
		}
	}
	return r, nil
}

// Get devuelve una recepción (read-through).
func (s *Service) Get(ctx context.Context, id string) (*dto.ReceptionResponse, error) {
	return cache.ReadThrough(ctx, s.reader, cache.DocumentKey(entity.DocumentReception, id), func(ctx context.Context) (*dto.ReceptionResponse, error) {
		r, err := s.receptions.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if r == nil {
			return nil, domain.ErrNotFound
		}
		return toReceptionResponse(r), nil
	})
}

// List lista recepciones por estado (vacío = todas).
func (s *Service) List(ctx context.Context, state string, page dto.PageRequest) (*dto.ReceptionListResponse, error) {
	page.DefaultPage()
	key := cache.DocumentListKey(entity.DocumentReception, state, page.Limit, page.Offset)
	return cache.ReadThrough(ctx, s.reader, key, func(ctx context.Context) (*dto.ReceptionListResponse, error) {
		list, err := s.receptions.List(ctx, state, page.Limit, page.Offset)
		if err != nil {
			return nil, err
		}
		out := &dto.ReceptionListResponse{
			Items: make([]dto.ReceptionResponse, 0, len(list)),
			Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
		}
		for _, r := range list {
			out.Items = append(out.Items, *toReceptionResponse(r))
		}
		return out, nil
	})
}

func advisoryNote(inactive map[string]struct{}) string {
	if len(inactive) == 0 {
		return ""
	}
	names := make([]string, 0, len(inactive))
	for n := range inactive {
		names = append(names, n)
	}
	sort.Strings(names)
	return "productos inactivos recibidos: " + strings.Join(names, ", ")
}

func toReceptionResponse(r *entity.Reception) *dto.ReceptionResponse {
	out := &dto.ReceptionResponse{
		ID:           r.ID,
		SupplierID:   r.SupplierID,
		SupplierName: r.SupplierName,
		State:        r.State,
		AdvisoryNote: r.AdvisoryNote,
		Items:        make([]dto.ReceptionItemResponse, 0, len(r.Items)),
		CreatedBy:    r.CreatedBy,
		CreatedAt:    r.CreatedAt,
		ProcessedBy:  r.ProcessedBy,
		ProcessedAt:  r.ProcessedAt,
		CancelledBy:  r.CancelledBy,
		CancelledAt:  r.CancelledAt,
	}
	for _, it := range r.Items {
		out.Items = append(out.Items, dto.ReceptionItemResponse{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitCost:  it.UnitCost,
		})
	}
	return out
}
