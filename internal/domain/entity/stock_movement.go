package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// MovementKind tipo de mutación de saldo.
type MovementKind string

const (
	MovementIn  MovementKind = "in"  // entrada: suma
	MovementOut MovementKind = "out" // salida: resta condicionada a saldo suficiente
	MovementSet MovementKind = "set" // ajuste: fija el saldo
)

// Valid indica si el tipo es uno de los conocidos.
func (k MovementKind) Valid() bool {
	switch k {
	case MovementIn, MovementOut, MovementSet:
		return true
	}
	return false
}

// DocumentKind documento de negocio que origina un movimiento.
type DocumentKind string

const (
	DocumentSale       DocumentKind = "sale"
	DocumentReception  DocumentKind = "reception"
	DocumentAdjustment DocumentKind = "adjustment"
)

// Valid indica si el tipo de documento es conocido.
func (d DocumentKind) Valid() bool {
	switch d {
	case DocumentSale, DocumentReception, DocumentAdjustment:
		return true
	}
	return false
}

// StockMovement es una entrada inmutable del ledger.
// Quantity siempre es positiva; para "set" es |BalanceAfter - BalanceBefore|.
type StockMovement struct {
	ID            int64
	ProductID     string
	Kind          MovementKind
	Quantity      decimal.Decimal
	BalanceBefore decimal.Decimal
	BalanceAfter  decimal.Decimal
	DocumentKind  DocumentKind
	DocumentID    string // vacío para ajustes
	ActorID       string
	Note          string
	CreatedAt     time.Time
}
