package ledger_test

import (
	"testing"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/ledger"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chain(ms ...*entity.StockMovement) []*entity.StockMovement {
	for i, m := range ms {
		m.ID = int64(i + 1)
	}
	return ms
}

func TestReplay_ReconstruyeSaldo(t *testing.T) {
	movs := chain(
		movement(entity.MovementIn, "10", "0", "10"),
		movement(entity.MovementOut, "3", "10", "7"),
		movement(entity.MovementSet, "2", "7", "5"),
		movement(entity.MovementIn, "1.5", "5", "6.5"),
	)

	res, err := ledger.Replay(decimal.Zero, movs)
	require.NoError(t, err)
	assert.True(t, res.Balance.Equal(d("6.5")), "saldo reconstruido: %s", res.Balance)
	assert.Equal(t, 4, res.Movements)
	assert.Empty(t, res.Discrepancies)
}

func TestReplay_SinMovimientos(t *testing.T) {
	res, err := ledger.Replay(decimal.Zero, nil)
	require.NoError(t, err)
	assert.True(t, res.Balance.IsZero())
	assert.Zero(t, res.Movements)
}

func TestReplay_DetectaEslabonRoto(t *testing.T) {
	movs := chain(
		movement(entity.MovementIn, "10", "0", "10"),
		movement(entity.MovementOut, "3", "9", "6"), // before debería ser 10
	)

	res, err := ledger.Replay(decimal.Zero, movs)
	require.NoError(t, err)
	require.Len(t, res.Discrepancies, 1)
	assert.Equal(t, int64(2), res.Discrepancies[0].MovementID)
	assert.True(t, res.Discrepancies[0].Expected.Equal(d("10")))
	assert.True(t, res.Discrepancies[0].Recorded.Equal(d("9")))
	assert.True(t, res.Balance.Equal(d("7")), "el replay sigue aplicando la cantidad sobre el saldo corriente")
}

func TestReplay_TipoDesconocido(t *testing.T) {
	_, err := ledger.Replay(decimal.Zero, chain(movement("transfer", "1", "0", "1")))
	assert.Error(t, err)
}
