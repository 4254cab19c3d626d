package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// DefaultInvalidationTimeout tope para una invalidación completa.
const DefaultInvalidationTimeout = 2 * time.Second

const prefixConcurrency = 4

// Report resumen de una invalidación. Failures cuenta operaciones del store que fallaron.
type Report struct {
	Keys     int
	Prefixes int
	Deleted  int
	Failures int
}

// Coordinator ejecuta los planes de invalidación contra el store.
// Los errores se registran y se descartan: la caché nunca hace fallar un workflow confirmado.
type Coordinator struct {
	store   Store
	log     zerolog.Logger
	timeout time.Duration
}

// NewCoordinator construye el coordinador. timeout <= 0 usa DefaultInvalidationTimeout.
func NewCoordinator(store Store, log zerolog.Logger, timeout time.Duration) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultInvalidationTimeout
	}
	return &Coordinator{store: store, log: log.With().Str("component", "cache").Logger(), timeout: timeout}
}

// Invalidate borra las claves y prefijos de los eventos. Se llama después del commit;
// el contexto se desacopla de la cancelación del request y se acota con el timeout.
func (c *Coordinator) Invalidate(ctx context.Context, events ...Event) Report {
	plan := PlanFor(events...)
	rep := Report{Keys: len(plan.Keys), Prefixes: len(plan.Prefixes)}
	if plan.Empty() || c.store == nil {
		return rep
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	// La generación cambia antes de borrar: una lectura que cargó antes del commit y escribe
	// después del borrado ve la generación nueva y descarta su valor.
	if err := c.store.Set(ctx, GenerationKey, []byte(uuid.NewString()), 0); err != nil {
		c.log.Warn().Err(err).Msg("no se pudo avanzar la generación de caché")
	}

	var failures, deleted atomic.Int64
	if len(plan.Keys) > 0 {
		if err := c.store.Delete(ctx, plan.Keys...); err != nil {
			failures.Add(1)
			c.log.Warn().Err(err).Strs("keys", plan.Keys).Msg("no se pudieron invalidar claves")
		} else {
			deleted.Add(int64(len(plan.Keys)))
		}
	}

	var g errgroup.Group
	g.SetLimit(prefixConcurrency)
	for _, prefix := range plan.Prefixes {
		g.Go(func() error {
			n, err := c.store.DeleteByPrefix(ctx, prefix)
			if err != nil {
				failures.Add(1)
				c.log.Warn().Err(err).Str("prefix", prefix).Msg("no se pudo invalidar prefijo")
				return nil
			}
			deleted.Add(int64(n))
			return nil
		})
	}
	_ = g.Wait()

	rep.Deleted = int(deleted.Load())
	rep.Failures = int(failures.Load())
	c.log.Debug().
		Int("keys", rep.Keys).
		Int("prefixes", rep.Prefixes).
		Int("failures", rep.Failures).
		Msg("caché invalidada")
	return rep
}
