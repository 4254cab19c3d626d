package catalog_test

import (
	"context"
	"testing"
	"time"

	"github.com/jhoicas/stock-ledger/internal/application/catalog"
	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/application/ledger"
	"github.com/jhoicas/stock-ledger/internal/application/ledger/ledgertest"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/cache"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	store      *ledgertest.Store
	products   *catalog.ProductUseCase
	categories *catalog.CategoryUseCase
}

func newFixture() *fixture {
	store := ledgertest.NewStore()
	mem := cache.NewMemoryStore()
	coord := cache.NewCoordinator(mem, zerolog.Nop(), time.Second)
	orch := ledger.NewOrchestrator(store.Runner(), ledger.NewMutator(), ledger.NewRecorder(), coord, zerolog.Nop())
	reader := cache.Reader{Store: mem, TTL: time.Minute, Log: zerolog.Nop()}
	repos := store.Repos()
	return &fixture{
		store:      store,
		products:   catalog.NewProductUseCase(orch, repos.Products, repos.Movements, store.Categories(), reader),
		categories: catalog.NewCategoryUseCase(store.Categories(), coord),
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Alta de productos
// ──────────────────────────────────────────────────────────────────────────────

func TestCreate_StockInicialQuedaEnElLedger(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	out, err := f.products.Create(ctx, "u1", dto.CreateProductRequest{
		SKU: " A-1 ", Name: "Tornillo", Cost: d("2"), ReorderThreshold: d("5"), InitialStock: d("12"),
	})

	require.NoError(t, err)
	assert.Equal(t, "A-1", out.SKU)
	assert.True(t, out.Balance.Equal(d("12")))

	movs := f.store.Movements()
	require.Len(t, movs, 1)
	assert.Equal(t, entity.MovementIn, movs[0].Kind)
	assert.Equal(t, "stock inicial", movs[0].Note)

	rep, err := f.products.Reconcile(ctx, out.ID)
	require.NoError(t, err)
	assert.True(t, rep.Consistent)
}

func TestCreate_SinStockInicial(t *testing.T) {
	f := newFixture()

	out, err := f.products.Create(context.Background(), "u1", dto.CreateProductRequest{SKU: "A-1", Name: "Tornillo"})

	require.NoError(t, err)
	assert.True(t, out.Balance.IsZero())
	assert.Empty(t, f.store.Movements())
}

func TestCreate_Rechazos(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	_, err := f.products.Create(ctx, "u1", dto.CreateProductRequest{SKU: "A-1", Name: "Tornillo"})
	require.NoError(t, err)

	_, err = f.products.Create(ctx, "u1", dto.CreateProductRequest{SKU: "A-1", Name: "Otro"})
	assert.ErrorIs(t, err, domain.ErrDuplicate)

	_, err = f.products.Create(ctx, "u1", dto.CreateProductRequest{SKU: "", Name: "Otro"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.products.Create(ctx, "u1", dto.CreateProductRequest{SKU: "A-2", Name: "Otro", InitialStock: d("-1")})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.products.Create(ctx, "u1", dto.CreateProductRequest{SKU: "A-3", Name: "Otro", CategoryID: "no-existe"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// ──────────────────────────────────────────────────────────────────────────────
// Baja y reactivación
// ──────────────────────────────────────────────────────────────────────────────

func TestDeactivate_ConservaHistoriaEInvalidaCache(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	p, err := f.products.Create(ctx, "u1", dto.CreateProductRequest{SKU: "A-1", Name: "Tornillo", InitialStock: d("3")})
	require.NoError(t, err)

	cached, err := f.products.GetByID(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, cached.Active)

	require.NoError(t, f.products.Deactivate(ctx, "u1", p.ID))

	got, err := f.products.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.True(t, got.Balance.Equal(d("3")), "la baja no toca el saldo")

	hist, err := f.products.Movements(ctx, p.ID, dto.PageRequest{})
	require.NoError(t, err)
	assert.Len(t, hist.Items, 1)

	list, err := f.products.List(ctx, "", false, dto.PageRequest{})
	require.NoError(t, err)
	assert.Empty(t, list.Items)
	list, err = f.products.List(ctx, "", true, dto.PageRequest{})
	require.NoError(t, err)
	assert.Len(t, list.Items, 1)

	require.NoError(t, f.products.Reactivate(ctx, "u1", p.ID))
	got, err = f.products.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Active)
}

func TestDeactivate_Inexistente(t *testing.T) {
	f := newFixture()
	err := f.products.Deactivate(context.Background(), "u1", "nope")
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	_, err = f.products.GetByID(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrProductNotFound)
}

// ──────────────────────────────────────────────────────────────────────────────
// Categorías
// ──────────────────────────────────────────────────────────────────────────────

func TestCategories_AltaYResumen(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	cat, err := f.categories.Create(ctx, dto.CreateCategoryRequest{Name: " Ferretería "})
	require.NoError(t, err)
	assert.Equal(t, "Ferretería", cat.Name)

	_, err = f.categories.Create(ctx, dto.CreateCategoryRequest{Name: "ferretería"})
	assert.ErrorIs(t, err, domain.ErrDuplicate)
	_, err = f.categories.Create(ctx, dto.CreateCategoryRequest{Name: "  "})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.products.Create(ctx, "u1", dto.CreateProductRequest{
		SKU: "A-1", Name: "Tornillo", CategoryID: cat.ID, Cost: d("2"), InitialStock: d("10"),
	})
	require.NoError(t, err)

	summary, err := f.products.CategorySummary(ctx)
	require.NoError(t, err)
	require.Len(t, summary, 1)
	assert.Equal(t, "Ferretería", summary[0].CategoryName)
	assert.True(t, summary[0].TotalUnits.Equal(d("10")))
	assert.True(t, summary[0].TotalValue.Equal(d("20")))

	all, err := f.categories.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
