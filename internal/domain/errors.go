package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Errores de dominio (sin dependencias externas salvo decimal).
var (
	ErrNotFound              = errors.New("recurso no encontrado")
	ErrInvalidInput          = errors.New("entrada inválida")
	ErrDuplicate             = errors.New("recurso duplicado")
	ErrUnauthorized          = errors.New("no autorizado")
	ErrConflict              = errors.New("conflicto con el estado actual")
	ErrProductNotFound       = errors.New("producto no encontrado")
	ErrProductInactive       = errors.New("producto inactivo")
	ErrInsufficientStock     = errors.New("stock insuficiente")
	ErrBalanceCeiling        = errors.New("el saldo supera el máximo permitido")
	ErrNoChange              = errors.New("el ajuste no modifica el saldo")
	ErrDocumentNotMutable    = errors.New("el documento no admite la transición solicitada")
	ErrReversalWindowExpired = errors.New("la ventana de anulación expiró")
	ErrConcurrentUpdate      = errors.New("el saldo cambió de forma concurrente, reintente")
	ErrAllocatorExhausted    = errors.New("no se pudo asignar un número de venta, sistema ocupado")
	ErrInvariant             = errors.New("violación de invariante del ledger")
)

// InsufficientStockError detalla un rechazo por saldo insuficiente.
// Current es el saldo observado al momento del fallo.
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Current     decimal.Decimal
	Requested   decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock insuficiente para %q: actual=%s, solicitado=%s",
		e.ProductName, e.Current.StringFixed(3), e.Requested.StringFixed(3))
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// InvariantError indica un error de programación (aritmética de movimiento, tipo desconocido).
// Nunca se reintenta.
type InvariantError struct {
	Reason string
}

func (e *InvariantError) Error() string { return "invariante del ledger: " + e.Reason }

func (e *InvariantError) Unwrap() error { return ErrInvariant }

// Invariantf construye un InvariantError con formato.
func Invariantf(format string, args ...any) error {
	return &InvariantError{Reason: fmt.Sprintf(format, args...)}
}

// DocumentStateError rechazo de una transición sobre un documento (venta o recepción).
type DocumentStateError struct {
	DocumentKind string
	DocumentID   string
	State        string
	Wanted       string
}

func (e *DocumentStateError) Error() string {
	return fmt.Sprintf("%s %s en estado %q no puede pasar a %q", e.DocumentKind, e.DocumentID, e.State, e.Wanted)
}

func (e *DocumentStateError) Unwrap() error { return ErrDocumentNotMutable }

// IsTransient indica si el error corresponde a contención (el cliente puede reintentar).
func IsTransient(err error) bool {
	return errors.Is(err, ErrAllocatorExhausted) || errors.Is(err, ErrConcurrentUpdate)
}

// IsInvariant indica si el error es una violación de invariante (error de programación).
func IsInvariant(err error) bool {
	return errors.Is(err, ErrInvariant)
}

// IsBusinessRejection indica un rechazo esperado de regla de negocio.
func IsBusinessRejection(err error) bool {
	for _, target := range []error{
		ErrInsufficientStock, ErrProductNotFound, ErrProductInactive, ErrDocumentNotMutable,
		ErrReversalWindowExpired, ErrNoChange, ErrBalanceCeiling, ErrNotFound, ErrInvalidInput,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
