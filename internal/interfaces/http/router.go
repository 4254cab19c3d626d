package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/jhoicas/stock-ledger/internal/application/catalog"
	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/application/receptions"
	"github.com/jhoicas/stock-ledger/internal/application/sales"
)

// Roles con permiso para corregir stock y editar el catálogo.
var stockManagers = []string{"admin", "bodeguero"}

// RouterDeps dependencias para el router.
type RouterDeps struct {
	ProductUC   *catalog.ProductUseCase
	CategoryUC  *catalog.CategoryUseCase
	InventoryUC *inventory.UseCase
	Sales       *sales.Service
	Receptions  *receptions.Service
	JWTSecret   string
	Health      func() error // nil = siempre sano
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		if deps.Health != nil {
			if err := deps.Health(); err != nil {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "error": err.Error()})
			}
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	// Products
	products := protected.Group("/products")
	productHandler := NewProductHandler(deps.ProductUC)
	products.Get("/", productHandler.List)
	products.Post("/", RequireRole(stockManagers...), productHandler.Create)
	products.Get("/:id", productHandler.GetByID)
	products.Get("/:id/movements", productHandler.Movements)
	products.Get("/:id/reconcile", productHandler.Reconcile)
	products.Post("/:id/deactivate", RequireRole(stockManagers...), productHandler.Deactivate)
	products.Post("/:id/reactivate", RequireRole(stockManagers...), productHandler.Reactivate)

	// Categories
	categories := protected.Group("/categories")
	categoryHandler := NewCategoryHandler(deps.CategoryUC)
	categories.Get("/", categoryHandler.List)
	categories.Post("/", RequireRole(stockManagers...), categoryHandler.Create)
	categories.Get("/summary", productHandler.CategorySummary)

	// Inventory
	invGroup := protected.Group("/inventory")
	inventoryHandler := NewInventoryHandler(deps.InventoryUC)
	invGroup.Post("/adjustments", RequireRole(stockManagers...), inventoryHandler.Adjust)
	invGroup.Get("/low-stock", inventoryHandler.LowStock)
	invGroup.Get("/valuation", inventoryHandler.Valuation)
	invGroup.Get("/alerts", inventoryHandler.Alerts)

	// Sales
	salesGroup := protected.Group("/sales")
	saleHandler := NewSaleHandler(deps.Sales)
	salesGroup.Post("/", saleHandler.Create)
	salesGroup.Get("/", saleHandler.List)
	salesGroup.Get("/:id", saleHandler.GetByID)
	salesGroup.Post("/:id/anul", saleHandler.Anul)

	// Receptions
	recGroup := protected.Group("/receptions")
	receptionHandler := NewReceptionHandler(deps.Receptions)
	recGroup.Post("/", receptionHandler.Create)
	recGroup.Get("/", receptionHandler.List)
	recGroup.Get("/:id", receptionHandler.GetByID)
	recGroup.Post("/:id/process", RequireRole(stockManagers...), receptionHandler.Process)
	recGroup.Post("/:id/cancel", RequireRole(stockManagers...), receptionHandler.Cancel)
}
