package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/cache"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// LineEffect efecto de una línea de documento sobre un saldo.
type LineEffect struct {
	ProductID     string
	Kind          entity.MovementKind
	Quantity      decimal.Decimal // delta, o saldo objetivo para "set"
	AllowInactive bool
	Note          string
	Ref           int // posición de la línea en el documento
}

// Workflow describe una operación de negocio que toca saldos.
// Todos los hooks reciben los repositorios de la misma transacción.
type Workflow struct {
	Name         string
	ActorID      string
	DocumentKind entity.DocumentKind
	DocumentID   string // vacío para ajustes
	Lines        []LineEffect

	// Before crea o verifica el documento antes de tocar saldos.
	Before func(ctx context.Context, tx repository.TxRepos) error
	// AfterLine se llama tras registrar el movimiento de cada línea.
	AfterLine func(ctx context.Context, tx repository.TxRepos, line LineEffect, res MutationResult) error
	// Transition cambia el estado del documento (escritura condicional).
	Transition func(ctx context.Context, tx repository.TxRepos) error

	// Events adicionales a stock-changed, emitidos solo tras el commit.
	Events []cache.Event
}

// Outcome resultado de un workflow confirmado.
type Outcome struct {
	Movements  []entity.StockMovement
	ProductIDs []string
}

// Orchestrator ejecuta el pipeline BEGIN → Before → (Mutate → Record)* → Transition → COMMIT → Invalidate.
type Orchestrator struct {
	tx          TxRunner
	mutator     *Mutator
	recorder    *Recorder
	invalidator Invalidator
	log         zerolog.Logger
}

// NewOrchestrator construye el orquestador. invalidator puede ser nil (sin caché).
func NewOrchestrator(tx TxRunner, mutator *Mutator, recorder *Recorder, invalidator Invalidator, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		tx:          tx,
		mutator:     mutator,
		recorder:    recorder,
		invalidator: invalidator,
		log:         log.With().Str("component", "ledger").Logger(),
	}
}

// Execute corre el workflow de forma atómica. Ante cualquier error la transacción se revierte
// y no se invalida nada.
func (o *Orchestrator) Execute(ctx context.Context, wf Workflow) (*Outcome, error) {
	lines := canonicalOrder(wf.Lines)
	var out Outcome

	err := o.tx.Run(ctx, func(tx repository.TxRepos) error {
		out = Outcome{}
		if wf.Before != nil {
			if err := wf.Before(ctx, tx); err != nil {
				return err
			}
		}
		for _, line := range lines {
			res, err := o.mutator.Mutate(ctx, tx, MutationRequest{
				ProductID:     line.ProductID,
				Kind:          line.Kind,
				Quantity:      line.Quantity,
				AllowInactive: line.AllowInactive,
			})
			if err != nil {
				return err
			}
			mov := entity.StockMovement{
				ProductID:     line.ProductID,
				Kind:          line.Kind,
				Quantity:      movementQuantity(line, res),
				BalanceBefore: res.Before,
				BalanceAfter:  res.After,
				DocumentKind:  wf.DocumentKind,
				DocumentID:    wf.DocumentID,
				ActorID:       wf.ActorID,
				Note:          line.Note,
			}
			id, err := o.recorder.Record(ctx, tx, mov)
			if err != nil {
				return err
			}
			mov.ID = id
			out.Movements = append(out.Movements, mov)
			if wf.AfterLine != nil {
				if err := wf.AfterLine(ctx, tx, line, res); err != nil {
					return err
				}
			}
		}
		if wf.Transition != nil {
			return wf.Transition(ctx, tx)
		}
		return nil
	})
	if err != nil {
		o.logFailure(wf, err)
		return nil, err
	}

	out.ProductIDs = touchedProducts(out.Movements)
	o.log.Info().
		Str("workflow", wf.Name).
		Str("document_kind", string(wf.DocumentKind)).
		Str("document_id", wf.DocumentID).
		Str("actor", wf.ActorID).
		Int("movements", len(out.Movements)).
		Msg("workflow confirmado")

	if o.invalidator != nil {
		events := make([]cache.Event, 0, len(wf.Events)+1)
		if len(out.ProductIDs) > 0 {
			events = append(events, cache.StockChanged(out.ProductIDs...))
		}
		events = append(events, wf.Events...)
		o.invalidator.Invalidate(ctx, events...)
	}
	return &out, nil
}

func (o *Orchestrator) logFailure(wf Workflow, err error) {
	ev := o.log.Debug()
	switch {
	case domain.IsInvariant(err):
		ev = o.log.Error()
	case domain.IsTransient(err):
		ev = o.log.Warn()
	case domain.IsBusinessRejection(err):
	default:
		ev = o.log.Error()
	}
	var insufficient *domain.InsufficientStockError
	if errors.As(err, &insufficient) {
		ev = ev.Str("product_id", insufficient.ProductID).
			Str("current", insufficient.Current.String()).
			Str("requested", insufficient.Requested.String())
	}
	ev.Err(err).Str("workflow", wf.Name).Str("document_id", wf.DocumentID).Msg("workflow revertido")
}

// movementQuantity para "set" registra la magnitud del cambio.
func movementQuantity(line LineEffect, res MutationResult) decimal.Decimal {
	if line.Kind == entity.MovementSet {
		return res.After.Sub(res.Before).Abs()
	}
	return line.Quantity
}

// canonicalOrder ordena las líneas por producto: dos workflows concurrentes toman los
// bloqueos de fila en el mismo orden.
func canonicalOrder(lines []LineEffect) []LineEffect {
	out := make([]LineEffect, len(lines))
	copy(out, lines)
	sort.SliceStable(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

func touchedProducts(movs []entity.StockMovement) []string {
	seen := make(map[string]struct{}, len(movs))
	var ids []string
	for _, m := range movs {
		if _, ok := seen[m.ProductID]; ok {
			continue
		}
		seen[m.ProductID] = struct{}{}
		ids = append(ids, m.ProductID)
	}
	return ids
}

// String resumen legible del resultado (logs de CLI y tests).
func (o *Outcome) String() string {
	return fmt.Sprintf("%d movimientos sobre %d productos", len(o.Movements), len(o.ProductIDs))
}
