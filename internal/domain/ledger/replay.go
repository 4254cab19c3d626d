package ledger

import (
	"fmt"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// Discrepancy describe un eslabón roto en la cadena de movimientos.
type Discrepancy struct {
	MovementID int64
	Expected   decimal.Decimal // saldo corriente según replay
	Recorded   decimal.Decimal // balance_before registrado
}

// ReplayResult resultado de reconstruir el saldo desde los movimientos.
type ReplayResult struct {
	Balance       decimal.Decimal
	Movements     int
	Discrepancies []Discrepancy
}

// Replay reconstruye el saldo aplicando los movimientos en orden cronológico desde initial.
// Un "set" fija el saldo a BalanceAfter. Además verifica que cada BalanceBefore coincida
// con el saldo corriente; las diferencias se devuelven como discrepancias.
func Replay(initial decimal.Decimal, movements []*entity.StockMovement) (ReplayResult, error) {
	res := ReplayResult{Balance: initial}
	for _, m := range movements {
		if !m.BalanceBefore.Equal(res.Balance) {
			res.Discrepancies = append(res.Discrepancies, Discrepancy{
				MovementID: m.ID,
				Expected:   res.Balance,
				Recorded:   m.BalanceBefore,
			})
		}
		var (
			next decimal.Decimal
			err  error
		)
		if m.Kind == entity.MovementSet {
			next = m.BalanceAfter
		} else {
			next, err = Apply(res.Balance, m.Kind, m.Quantity)
			if err != nil {
				return res, fmt.Errorf("movimiento %d: %w", m.ID, err)
			}
		}
		res.Balance = next
		res.Movements++
	}
	return res, nil
}
