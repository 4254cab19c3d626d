package postgres_test

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jhoicas/stock-ledger/internal/application/dto"
	"github.com/jhoicas/stock-ledger/internal/application/ledger"
	"github.com/jhoicas/stock-ledger/internal/application/receptions"
	"github.com/jhoicas/stock-ledger/internal/application/sales"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/internal/domain/sequence"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/cache"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/postgres"
	"github.com/jhoicas/stock-ledger/pkg/config"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/sync/errgroup"
)

const skipIntegrationTests = "LEDGER_SKIP_INTEGRATION_TESTS"

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// LedgerSuite ejercita repositorios, transacciones y migraciones contra PostgreSQL real.
type LedgerSuite struct {
	suite.Suite
	ctx         context.Context
	pgContainer *tcpostgres.PostgresContainer
	pool        *pgxpool.Pool
	repos       repository.TxRepos
	orch        *ledger.Orchestrator
	sales       *sales.Service
	receptions  *receptions.Service
}

func (s *LedgerSuite) SetupSuite() {
	s.ctx = context.Background()

	var err error
	s.pgContainer, err = tcpostgres.Run(s.ctx,
		"postgres:17.5-alpine",
		tcpostgres.WithDatabase("ledger"),
		tcpostgres.WithUsername("ledger"),
		tcpostgres.WithPassword("ledger"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("5432/tcp"),
		),
	)
	require.NoError(s.T(), err, "levantar contenedor PostgreSQL")

	connStr, err := s.pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err)

	require.NoError(s.T(), postgres.Migrate(connStr), "aplicar migraciones")
	// Segunda pasada: sin cambios pendientes no es error.
	require.NoError(s.T(), postgres.Migrate(connStr))

	s.pool, err = postgres.NewPool(s.ctx, config.DBConfig{DatabaseURL: connStr})
	require.NoError(s.T(), err, "crear pool")

	s.repos = postgres.Repos(s.pool)
	coord := cache.NewCoordinator(cache.NewMemoryStore(), zerolog.Nop(), time.Second)
	s.orch = ledger.NewOrchestrator(postgres.NewTxRunner(s.pool), ledger.NewMutator(), ledger.NewRecorder(), coord, zerolog.Nop())
	reader := cache.Reader{Store: cache.NewMemoryStore(), TTL: time.Minute, Log: zerolog.Nop()}
	s.sales = sales.NewService(s.orch, s.repos.Sales, sequence.NewAllocator(0, sequence.NewSaleNumberGenerator(nil)), reader, time.Hour)
	s.receptions = receptions.NewService(s.orch, s.repos.Receptions, reader)
}

func (s *LedgerSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.pgContainer != nil {
		require.NoError(s.T(), s.pgContainer.Terminate(s.ctx))
	}
}

func (s *LedgerSuite) SetupTest() {
	_, err := s.pool.Exec(s.ctx, `
		TRUNCATE sale_items, sales, reception_items, receptions, stock_movements, products, categories
		RESTART IDENTITY CASCADE`)
	s.Require().NoError(err)
}

func TestLedgerSuite(t *testing.T) {
	if os.Getenv(skipIntegrationTests) == "1" || testing.Short() {
		t.Skip("Skipping integration tests")
	}
	suite.Run(t, new(LedgerSuite))
}

// createProduct inserta un producto con saldo cero y deja el saldo inicial como ajuste en el ledger.
func (s *LedgerSuite) createProduct(sku, balance string) string {
	now := time.Now().UTC()
	p := &entity.Product{
		ID:        uuid.New().String(),
		SKU:       sku,
		Name:      "Producto " + sku,
		Cost:      d("10"),
		Balance:   decimal.Zero,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.Require().NoError(s.repos.Products.Create(s.ctx, p))
	if b := d(balance); b.IsPositive() {
		_, err := s.orch.Execute(s.ctx, ledger.Workflow{
			Name:         "initial-stock",
			ActorID:      "seed",
			DocumentKind: entity.DocumentAdjustment,
			Lines:        []ledger.LineEffect{{ProductID: p.ID, Kind: entity.MovementSet, Quantity: b, Note: "saldo inicial"}},
		})
		s.Require().NoError(err)
	}
	return p.ID
}

func (s *LedgerSuite) balance(productID string) decimal.Decimal {
	p, err := s.repos.Products.GetByID(s.ctx, productID)
	s.Require().NoError(err)
	s.Require().NotNil(p)
	return p.Balance
}

func (s *LedgerSuite) saleRequest(pairs ...string) dto.CreateSaleRequest {
	var req dto.CreateSaleRequest
	for i := 0; i+1 < len(pairs); i += 2 {
		req.Items = append(req.Items, dto.SaleItemRequest{ProductID: pairs[i], Quantity: d(pairs[i+1]), UnitPrice: d("5")})
	}
	return req
}

// ──────────────────────────────────────────────────────────────────────────────
// Mutaciones condicionales
// ──────────────────────────────────────────────────────────────────────────────

func (s *LedgerSuite) TestCompareAndMutate_PredicadosEnLaEscritura() {
	id := s.createProduct("A-1", "5")

	balance, applied, err := s.repos.Products.CompareAndMutateBalance(s.ctx, repository.BalanceMutation{
		ProductID: id, Kind: entity.MovementOut, Quantity: d("6"),
	})
	s.Require().NoError(err)
	s.False(applied)
	s.True(balance.IsZero())

	_, applied, err = s.repos.Products.CompareAndMutateBalance(s.ctx, repository.BalanceMutation{
		ProductID: id, Kind: entity.MovementSet, Quantity: d("9"), Expected: d("4"),
	})
	s.Require().NoError(err)
	s.False(applied, "set con saldo esperado desactualizado no escribe")

	balance, applied, err = s.repos.Products.CompareAndMutateBalance(s.ctx, repository.BalanceMutation{
		ProductID: id, Kind: entity.MovementSet, Quantity: d("9"), Expected: d("5"),
	})
	s.Require().NoError(err)
	s.True(applied)
	s.True(balance.Equal(d("9")))

	changed, err := s.repos.Products.SetActive(s.ctx, id, false)
	s.Require().NoError(err)
	s.True(changed)
	_, applied, err = s.repos.Products.CompareAndMutateBalance(s.ctx, repository.BalanceMutation{
		ProductID: id, Kind: entity.MovementIn, Quantity: d("1"), Ceiling: d("1000000"),
	})
	s.Require().NoError(err)
	s.False(applied, "producto inactivo")
}

func (s *LedgerSuite) TestVenta_StockInsuficienteNoDejaRastro() {
	p1 := s.createProduct("A-1", "10")
	p2 := s.createProduct("A-2", "1")

	_, err := s.sales.CreateSale(s.ctx, "u1", s.saleRequest(p1, "3", p2, "2"))

	var insufficient *domain.InsufficientStockError
	s.Require().ErrorAs(err, &insufficient)
	s.Equal(p2, insufficient.ProductID)
	s.True(s.balance(p1).Equal(d("10")))
	s.True(s.balance(p2).Equal(d("1")))

	var count int
	s.Require().NoError(s.pool.QueryRow(s.ctx, `SELECT count(*) FROM sales`).Scan(&count))
	s.Zero(count)
	movs, err := s.repos.Movements.ListByProduct(s.ctx, p1, 10, 0)
	s.Require().NoError(err)
	s.Len(movs, 1, "solo el saldo inicial")
}

// ──────────────────────────────────────────────────────────────────────────────
// Concurrencia
// ──────────────────────────────────────────────────────────────────────────────

func (s *LedgerSuite) TestVentasConcurrentes_NoSobrevende() {
	id := s.createProduct("A-1", "10")

	var ok, rejected atomic.Int32
	g, ctx := errgroup.WithContext(s.ctx)
	for range 30 {
		g.Go(func() error {
			_, err := s.sales.CreateSale(ctx, "u1", s.saleRequest(id, "1"))
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, domain.ErrInsufficientStock):
				rejected.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	s.Require().NoError(g.Wait())

	s.EqualValues(10, ok.Load())
	s.EqualValues(20, rejected.Load())
	s.True(s.balance(id).IsZero())

	var numbers int
	s.Require().NoError(s.pool.QueryRow(s.ctx, `SELECT count(DISTINCT number) FROM sales`).Scan(&numbers))
	s.Equal(10, numbers)

	report, err := ledger.NewReconciler(s.repos.Products, s.repos.Movements).Reconcile(s.ctx, id)
	s.Require().NoError(err)
	s.True(report.Consistent, "%+v", report.Discrepancies)
	s.Equal(11, report.Movements)
}

func (s *LedgerSuite) TestVentasCruzadas_SinDeadlock() {
	p1 := s.createProduct("A-1", "100")
	p2 := s.createProduct("A-2", "100")

	g, ctx := errgroup.WithContext(s.ctx)
	for i := range 20 {
		g.Go(func() error {
			req := s.saleRequest(p1, "1", p2, "1")
			if i%2 == 1 {
				req = s.saleRequest(p2, "1", p1, "1")
			}
			_, err := s.sales.CreateSale(ctx, "u1", req)
			return err
		})
	}
	s.Require().NoError(g.Wait())

	s.True(s.balance(p1).Equal(d("80")))
	s.True(s.balance(p2).Equal(d("80")))
}

// ──────────────────────────────────────────────────────────────────────────────
// Anulación y reconciliación
// ──────────────────────────────────────────────────────────────────────────────

func (s *LedgerSuite) TestAnulacion_DevuelveStockYReconcilia() {
	id := s.createProduct("A-1", "10")
	sale, err := s.sales.CreateSale(s.ctx, "u1", s.saleRequest(id, "4"))
	s.Require().NoError(err)

	anulled, err := s.sales.AnulSale(s.ctx, "u2", sale.ID, "error de caja")
	s.Require().NoError(err)
	s.Equal(string(entity.SaleStateAnulled), anulled.State)
	s.True(s.balance(id).Equal(d("10")))

	_, err = s.sales.AnulSale(s.ctx, "u2", sale.ID, "otra vez")
	s.ErrorIs(err, domain.ErrDocumentNotMutable)

	movs, err := s.repos.Movements.ListByDocument(s.ctx, entity.DocumentSale, sale.ID)
	s.Require().NoError(err)
	s.Require().Len(movs, 2)
	s.Equal(entity.MovementOut, movs[0].Kind)
	s.Equal(entity.MovementIn, movs[1].Kind)

	report, err := ledger.NewReconciler(s.repos.Products, s.repos.Movements).Reconcile(s.ctx, id)
	s.Require().NoError(err)
	s.True(report.Consistent)
	s.True(report.Replayed.Equal(d("10")))
}

func (s *LedgerSuite) TestReconcile_DetectaSaldoManipulado() {
	id := s.createProduct("A-1", "10")
	_, err := s.pool.Exec(s.ctx, `UPDATE products SET balance = 12 WHERE id = $1`, id)
	s.Require().NoError(err)

	report, err := ledger.NewReconciler(s.repos.Products, s.repos.Movements).Reconcile(s.ctx, id)
	s.Require().NoError(err)
	s.False(report.Consistent)
	s.True(report.Stored.Equal(d("12")))
	s.True(report.Replayed.Equal(d("10")))
}

func (s *LedgerSuite) count(table string) int {
	var n int
	s.Require().NoError(s.pool.QueryRow(s.ctx, `SELECT count(*) FROM `+table).Scan(&n))
	return n
}

// ──────────────────────────────────────────────────────────────────────────────
// Productos inexistentes y escala
// ──────────────────────────────────────────────────────────────────────────────

func (s *LedgerSuite) TestVenta_ProductoInexistente() {
	id := s.createProduct("A-1", "10")

	for _, missing := range []string{uuid.New().String(), "no-es-uuid"} {
		_, err := s.sales.CreateSale(s.ctx, "u1", s.saleRequest(id, "2", missing, "1"))
		s.Require().ErrorIs(err, domain.ErrProductNotFound, missing)
		s.Contains(err.Error(), missing)
	}
	s.True(s.balance(id).Equal(d("10")))
	s.Zero(s.count("sales"))
	s.Zero(s.count("sale_items"))
}

func (s *LedgerSuite) TestRecepcion_ProductoInexistente() {
	id := s.createProduct("A-1", "0")

	for _, missing := range []string{uuid.New().String(), "no-es-uuid"} {
		_, err := s.receptions.CreateReception(s.ctx, "u1", dto.CreateReceptionRequest{
			SupplierName: "Distribuidora Norte",
			Items: []dto.ReceptionItemRequest{
				{ProductID: id, Quantity: d("5"), UnitCost: d("1")},
				{ProductID: missing, Quantity: d("1"), UnitCost: d("1")},
			},
		})
		s.Require().ErrorIs(err, domain.ErrProductNotFound, missing)
	}
	s.Zero(s.count("receptions"))
	s.Zero(s.count("reception_items"))
}

func (s *LedgerSuite) TestCompareAndMutate_IdNoUUID() {
	_, _, err := s.repos.Products.CompareAndMutateBalance(s.ctx, repository.BalanceMutation{
		ProductID: "no-es-uuid", Kind: entity.MovementIn, Quantity: d("1"), Ceiling: d("1000"),
	})
	s.ErrorIs(err, domain.ErrProductNotFound)

	p, err := s.repos.Products.GetByID(s.ctx, "no-es-uuid")
	s.Require().NoError(err)
	s.Nil(p)
}

func (s *LedgerSuite) TestEscala_CantidadesDe4DecimalesNoLleganALaBase() {
	id := s.createProduct("A-1", "1")

	for _, qty := range []string{"0.0015", "0.0004"} {
		_, err := s.sales.CreateSale(s.ctx, "u1", s.saleRequest(id, qty))
		s.ErrorIs(err, domain.ErrInvalidInput, qty)
	}
	_, err := s.orch.Execute(s.ctx, ledger.Workflow{
		Name:         "adjust-stock",
		ActorID:      "u1",
		DocumentKind: entity.DocumentAdjustment,
		Lines:        []ledger.LineEffect{{ProductID: id, Kind: entity.MovementIn, Quantity: d("0.0015")}},
	})
	s.ErrorIs(err, domain.ErrInvalidInput)

	report, err := ledger.NewReconciler(s.repos.Products, s.repos.Movements).Reconcile(s.ctx, id)
	s.Require().NoError(err)
	s.True(report.Consistent)
	s.True(report.Stored.Equal(d("1")))
}

// ──────────────────────────────────────────────────────────────────────────────
// Restricciones del esquema
// ──────────────────────────────────────────────────────────────────────────────

func (s *LedgerSuite) TestMovimientos_SonAppendOnly() {
	id := s.createProduct("A-1", "10")

	_, err := s.pool.Exec(s.ctx, `UPDATE stock_movements SET note = 'x' WHERE product_id = $1`, id)
	s.Require().Error(err)
	s.Contains(err.Error(), "append-only")

	_, err = s.pool.Exec(s.ctx, `DELETE FROM stock_movements WHERE product_id = $1`, id)
	s.Require().Error(err)
	s.Contains(err.Error(), "append-only")
}

func (s *LedgerSuite) TestMovimientos_TipoCompatibleConDocumento() {
	id := s.createProduct("A-1", "10")

	_, err := s.pool.Exec(s.ctx, `
		INSERT INTO stock_movements (product_id, kind, quantity, balance_before, balance_after, document_kind, document_id, actor_id)
		VALUES ($1, 'out', 1, 10, 9, 'reception', $2, 'u1')`, id, uuid.New().String())
	s.Require().Error(err, "una recepción solo admite entradas")

	_, err = s.pool.Exec(s.ctx, `UPDATE products SET balance = -1 WHERE id = $1`, id)
	s.Require().Error(err, "balance >= 0")
}

func (s *LedgerSuite) TestCategorias_DuplicadoYClaveForanea() {
	cats := postgres.NewCategoryRepository(s.pool)
	c := &entity.Category{ID: uuid.New().String(), Name: "Bebidas"}
	s.Require().NoError(cats.Create(s.ctx, c))

	err := cats.Create(s.ctx, &entity.Category{ID: uuid.New().String(), Name: "Bebidas"})
	s.ErrorIs(err, domain.ErrDuplicate)

	got, err := cats.GetByID(s.ctx, uuid.New().String())
	s.Require().NoError(err)
	s.Nil(got)

	now := time.Now().UTC()
	err = s.repos.Products.Create(s.ctx, &entity.Product{
		ID: uuid.New().String(), SKU: "X-1", Name: "X", CategoryID: uuid.New().String(),
		Active: true, CreatedAt: now, UpdatedAt: now,
	})
	s.Error(err, "categoría inexistente")

	err = s.repos.Products.Create(s.ctx, &entity.Product{
		ID: uuid.New().String(), SKU: "X-2", Name: "X", CategoryID: c.ID,
		Active: true, CreatedAt: now, UpdatedAt: now,
	})
	s.Require().NoError(err)

	stock, err := s.repos.Products.CategoryStock(s.ctx)
	s.Require().NoError(err)
	assert.NotEmpty(s.T(), stock)
}
