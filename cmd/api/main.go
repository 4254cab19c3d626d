package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jhoicas/stock-ledger/internal/application/catalog"
	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/application/ledger"
	"github.com/jhoicas/stock-ledger/internal/application/receptions"
	"github.com/jhoicas/stock-ledger/internal/application/sales"
	"github.com/jhoicas/stock-ledger/internal/domain/sequence"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/cache"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/postgres"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/redis"
	httpRouter "github.com/jhoicas/stock-ledger/internal/interfaces/http"
	"github.com/jhoicas/stock-ledger/pkg/config"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Msg("iniciando aplicación")

	ctx := context.Background()
	if cfg.Ledger.MigrateOnStart {
		if err := postgres.Migrate(cfg.DB.ConnectionString()); err != nil {
			log.Fatal().Err(err).Msg("migraciones")
		}
	}
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	// Caché: Redis si está configurado, si no memoria del proceso.
	var (
		store  cache.Store
		health func() error
	)
	if cfg.Redis.Enabled() {
		rdb, err := redis.NewClient(ctx, cfg.Redis.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a Redis")
		}
		defer rdb.Close()
		redisStore := redis.NewStore(rdb)
		store = redisStore
		health = func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := pool.Ping(pingCtx); err != nil {
				return err
			}
			return redisStore.Ping(pingCtx)
		}
	} else {
		log.Warn().Msg("REDIS_URL vacío: caché en memoria")
		store = cache.NewMemoryStore()
		health = func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			return pool.Ping(pingCtx)
		}
	}

	reader := cache.Reader{Store: store, TTL: cfg.Ledger.CacheTTL, Log: log.Component("cache")}
	coordinator := cache.NewCoordinator(store, log.Zerolog(), cfg.Ledger.InvalidationTimeout)

	repos := postgres.Repos(pool)
	txRunner := postgres.NewTxRunner(pool)
	orch := ledger.NewOrchestrator(txRunner, ledger.NewMutator(), ledger.NewRecorder(), coordinator, log.Zerolog())
	allocator := sequence.NewAllocator(cfg.Ledger.AllocatorAttempts, sequence.NewSaleNumberGenerator(nil))

	categories := postgres.NewCategoryRepository(pool)
	productUC := catalog.NewProductUseCase(orch, repos.Products, repos.Movements, categories, reader)
	categoryUC := catalog.NewCategoryUseCase(categories, coordinator)
	inventoryUC := inventory.NewUseCase(orch, repos.Products, reader)
	salesSvc := sales.NewService(orch, repos.Sales, allocator, reader, cfg.Ledger.ReversalWindow)
	receptionSvc := receptions.NewService(orch, repos.Receptions, reader)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	httpRouter.Router(app, httpRouter.RouterDeps{
		ProductUC:   productUC,
		CategoryUC:  categoryUC,
		InventoryUC: inventoryUC,
		Sales:       salesSvc,
		Receptions:  receptionSvc,
		JWTSecret:   cfg.JWT.Secret,
		Health:      health,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}
