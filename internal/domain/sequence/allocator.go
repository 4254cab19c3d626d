// Package sequence asigna identificadores legibles (número de venta) con detección de
// colisiones y reintento acotado. La verificación de unicidad se inyecta para que quede
// atada a la transacción del llamador.
package sequence

import (
	"context"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jhoicas/stock-ledger/internal/domain"
)

// DefaultMaxAttempts intentos antes de reportar ErrAllocatorExhausted.
const DefaultMaxAttempts = 5

// CheckFunc informa si el candidato ya está tomado. Debe ejecutarse dentro de la
// transacción que consumirá el número.
type CheckFunc func(ctx context.Context, candidate string) (taken bool, err error)

// Generator produce candidatos; dos llamadas sucesivas no deben repetir.
type Generator interface {
	Next() string
}

// GeneratorFunc adapta una función a Generator.
type GeneratorFunc func() string

// Next implementa Generator.
func (f GeneratorFunc) Next() string { return f() }

// Allocator aplica la política de reintento sobre un Generator.
type Allocator struct {
	maxAttempts int
	gen         Generator
}

// NewAllocator construye el asignador. maxAttempts <= 0 usa DefaultMaxAttempts.
func NewAllocator(maxAttempts int, gen Generator) *Allocator {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Allocator{maxAttempts: maxAttempts, gen: gen}
}

// MaxAttempts devuelve el tope de intentos configurado.
func (a *Allocator) MaxAttempts() int { return a.maxAttempts }

// Allocate genera candidatos hasta que check informe uno libre.
// Un error de check aborta de inmediato (no es contención); agotar los intentos
// devuelve un error que envuelve domain.ErrAllocatorExhausted.
func (a *Allocator) Allocate(ctx context.Context, check CheckFunc) (string, error) {
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		candidate := a.gen.Next()
		taken, err := check(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("verificar número %s: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w (%d intentos)", domain.ErrAllocatorExhausted, a.maxAttempts)
}

// SaleNumberGenerator genera números de venta con el formato
// V<AAAAMMDD>-<contador de 6 dígitos>-<4 hex aleatorios>.
type SaleNumberGenerator struct {
	counter atomic.Uint64
	now     func() time.Time
}

// NewSaleNumberGenerator inicializa el contador con el reloj en microsegundos para que
// procesos distintos no arranquen en la misma posición.
func NewSaleNumberGenerator(now func() time.Time) *SaleNumberGenerator {
	if now == nil {
		now = time.Now
	}
	g := &SaleNumberGenerator{now: now}
	g.counter.Store(uint64(now().UnixMicro()))
	return g
}

// Next implementa Generator.
func (g *SaleNumberGenerator) Next() string {
	n := g.counter.Add(1) % 1_000_000
	id := uuid.New()
	return fmt.Sprintf("V%s-%06d-%s", g.now().Format("20060102"), n, hex.EncodeToString(id[:2]))
}
