package ledger

import "github.com/shopspring/decimal"

// WeightedAverageCost costo promedio ponderado tras una entrada.
// NuevoCosto = ((SaldoActual * CostoActual) + (CantEntrada * CostoEntrada)) / (SaldoActual + CantEntrada)
func WeightedAverageCost(balance, currentCost, inQty, inCost decimal.Decimal) decimal.Decimal {
	sum := balance.Add(inQty)
	if sum.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	num := balance.Mul(currentCost).Add(inQty.Mul(inCost))
	return num.Div(sum).Round(2)
}
