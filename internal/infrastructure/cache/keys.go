package cache

import (
	"fmt"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// Namespaces de la caché. Cada clave empieza con uno de ellos.
const (
	NSProduct     = "product:"
	NSProductList = "products:list:"
	NSCategories  = "categories:"
	NSLowStock    = "inventory:low-stock"
	NSValuation   = "inventory:valuation"
	NSAlerts      = "inventory:alerts"
	NSMovements   = "movements:"
	NSDashboard   = "dashboard:"
)

// GenerationKey token que cambia en cada invalidación. Ningún prefijo de invalidación lo cubre.
const GenerationKey = "cache:generation"

// ProductKey detalle de un producto.
func ProductKey(productID string) string { return NSProduct + productID }

// ProductListKey página del listado de productos.
func ProductListKey(categoryID string, includeInactive bool, limit, offset int) string {
	return fmt.Sprintf("%scat=%s:inactive=%t:limit=%d:offset=%d", NSProductList, categoryID, includeInactive, limit, offset)
}

// CategorySummaryKey agregado de stock por categoría.
func CategorySummaryKey() string { return NSCategories + "summary" }

// LowStockKey productos bajo el mínimo.
func LowStockKey() string { return NSLowStock + ":all" }

// ValuationKey valorización del inventario.
func ValuationKey() string { return NSValuation + ":all" }

// AlertsKey alertas de stock (agotados y bajo mínimo).
func AlertsKey() string { return NSAlerts + ":all" }

// MovementsPrefix todas las páginas de historia de un producto.
func MovementsPrefix(productID string) string { return NSMovements + productID + ":" }

// MovementsKey página de historia de movimientos de un producto.
func MovementsKey(productID string, limit, offset int) string {
	return fmt.Sprintf("%slimit=%d:offset=%d", MovementsPrefix(productID), limit, offset)
}

// DocumentKey detalle de un documento (sale:<id>, reception:<id>).
func DocumentKey(kind entity.DocumentKind, id string) string { return string(kind) + ":" + id }

// DocumentListPrefix todas las páginas del listado de un tipo de documento.
func DocumentListPrefix(kind entity.DocumentKind) string { return string(kind) + "s:list:" }

// DocumentListKey página del listado de documentos filtrado por estado.
func DocumentListKey(kind entity.DocumentKind, state string, limit, offset int) string {
	return fmt.Sprintf("%sstate=%s:limit=%d:offset=%d", DocumentListPrefix(kind), state, limit, offset)
}

// DashboardPrefix tableros que agregan documentos.
func DashboardPrefix() string { return NSDashboard }
