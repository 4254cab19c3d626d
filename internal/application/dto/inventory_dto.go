package dto

import "github.com/shopspring/decimal"

// AdjustStockRequest body para POST /api/inventory/adjustments.
// Mode "set" fija el saldo en Quantity; "in"/"out" aplican Quantity como delta.
type AdjustStockRequest struct {
	ProductID string          `json:"product_id"`
	Mode      string          `json:"mode"`
	Quantity  decimal.Decimal `json:"quantity"`
	Note      string          `json:"note,omitempty"`
}

// AdjustStockResponse resultado del ajuste.
type AdjustStockResponse struct {
	ProductID     string          `json:"product_id"`
	MovementID    int64           `json:"movement_id"`
	Kind          string          `json:"kind"`
	Quantity      decimal.Decimal `json:"quantity"`
	BalanceBefore decimal.Decimal `json:"balance_before"`
	BalanceAfter  decimal.Decimal `json:"balance_after"`
}

// ValuationResponse valorización del inventario activo.
type ValuationResponse struct {
	Products   int             `json:"products"`
	TotalUnits decimal.Decimal `json:"total_units"`
	TotalValue decimal.Decimal `json:"total_value"`
}

// ReplenishmentSuggestionDTO alerta de reposición para un SKU en o bajo su stock mínimo.
type ReplenishmentSuggestionDTO struct {
	ProductID          string          `json:"product_id"`
	SKU                string          `json:"sku"`
	ProductName        string          `json:"product_name"`
	CurrentStock       decimal.Decimal `json:"current_stock"`
	ReorderPoint       decimal.Decimal `json:"reorder_point"`
	IdealStock         decimal.Decimal `json:"ideal_stock"`          // ReorderPoint * 1.5
	SuggestedOrderQty  decimal.Decimal `json:"suggested_order_qty"`  // IdealStock - CurrentStock
	UnitCost           decimal.Decimal `json:"unit_cost"`            // costo promedio ponderado
	EstimatedOrderCost decimal.Decimal `json:"estimated_order_cost"` // SuggestedOrderQty * UnitCost
	OutOfStock         bool            `json:"out_of_stock"`
	Priority           int             `json:"priority"` // 1 = más urgente
}
