// Package ledger contiene las reglas puras del ledger de stock: aritmética de
// movimientos, compatibilidad tipo/documento y reconciliación por replay.
package ledger

import (
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// MaxBalance techo de cordura para saldos (máximo de NUMERIC(14,3)).
var MaxBalance = decimal.RequireFromString("99999999999.999")

// QuantityScale decimales que persisten cantidades y saldos (NUMERIC(14,3)).
const QuantityScale = 3

// FitsScale indica si q se guarda sin redondeo con QuantityScale decimales.
// Los ceros a la derecha no cuentan: 1.5000 entra, 0.0015 no.
func FitsScale(q decimal.Decimal) bool {
	return q.Equal(q.Truncate(QuantityScale))
}

// compatible define qué tipos de movimiento puede originar cada documento.
// Venta: salida al crear, entrada al anular. Recepción: solo entradas.
var compatible = map[entity.DocumentKind]map[entity.MovementKind]bool{
	entity.DocumentSale:       {entity.MovementOut: true, entity.MovementIn: true},
	entity.DocumentReception:  {entity.MovementIn: true},
	entity.DocumentAdjustment: {entity.MovementIn: true, entity.MovementOut: true, entity.MovementSet: true},
}

// Compatible indica si el documento puede originar el tipo de movimiento.
func Compatible(doc entity.DocumentKind, kind entity.MovementKind) bool {
	return compatible[doc][kind]
}

// Apply calcula el saldo resultante de aplicar kind/quantity sobre before.
// Para "set", quantity es el saldo objetivo.
func Apply(before decimal.Decimal, kind entity.MovementKind, quantity decimal.Decimal) (decimal.Decimal, error) {
	switch kind {
	case entity.MovementIn:
		return before.Add(quantity), nil
	case entity.MovementOut:
		return before.Sub(quantity), nil
	case entity.MovementSet:
		return quantity, nil
	}
	return decimal.Zero, domain.Invariantf("tipo de movimiento desconocido %q", kind)
}

// ValidateMovement verifica que un movimiento cumpla el contrato del ledger antes de persistirlo.
// Cualquier incumplimiento es un InvariantError: el llamador construyó mal el par antes/después.
func ValidateMovement(m *entity.StockMovement) error {
	if m == nil {
		return domain.Invariantf("movimiento nulo")
	}
	if !m.Kind.Valid() {
		return domain.Invariantf("tipo de movimiento desconocido %q", m.Kind)
	}
	if !m.DocumentKind.Valid() {
		return domain.Invariantf("tipo de documento desconocido %q", m.DocumentKind)
	}
	if !Compatible(m.DocumentKind, m.Kind) {
		return domain.Invariantf("documento %q no admite movimientos %q", m.DocumentKind, m.Kind)
	}
	if m.ProductID == "" {
		return domain.Invariantf("movimiento sin producto")
	}
	if m.DocumentKind != entity.DocumentAdjustment && m.DocumentID == "" {
		return domain.Invariantf("movimiento de %q sin documento de origen", m.DocumentKind)
	}
	if !m.Quantity.IsPositive() {
		return domain.Invariantf("cantidad no positiva %s", m.Quantity)
	}
	if !FitsScale(m.Quantity) || !FitsScale(m.BalanceBefore) || !FitsScale(m.BalanceAfter) {
		return domain.Invariantf("movimiento con más de %d decimales (cantidad=%s, antes=%s, después=%s)",
			QuantityScale, m.Quantity, m.BalanceBefore, m.BalanceAfter)
	}
	if m.BalanceBefore.IsNegative() || m.BalanceAfter.IsNegative() {
		return domain.Invariantf("saldo negativo (antes=%s, después=%s)", m.BalanceBefore, m.BalanceAfter)
	}

	var expected decimal.Decimal
	switch m.Kind {
	case entity.MovementIn:
		expected = m.BalanceBefore.Add(m.Quantity)
	case entity.MovementOut:
		expected = m.BalanceBefore.Sub(m.Quantity)
	case entity.MovementSet:
		if !m.BalanceAfter.Sub(m.BalanceBefore).Abs().Equal(m.Quantity) {
			return domain.Invariantf("ajuste %s→%s no corresponde a cantidad %s",
				m.BalanceBefore, m.BalanceAfter, m.Quantity)
		}
		expected = m.BalanceAfter
	}
	if !expected.Equal(m.BalanceAfter) {
		return domain.Invariantf("%s %s sobre %s debería dar %s, se informó %s",
			m.Kind, m.Quantity, m.BalanceBefore, expected, m.BalanceAfter)
	}
	return nil
}

// SetMovementQuantity cantidad registrada para un ajuste "set" (magnitud del cambio).
func SetMovementQuantity(before, after decimal.Decimal) decimal.Decimal {
	return after.Sub(before).Abs()
}
