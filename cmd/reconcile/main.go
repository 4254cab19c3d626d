// reconcile reconstruye el saldo de cada producto desde el ledger de movimientos y
// reporta los que no coinciden con el saldo almacenado.
//
// Uso: go run ./cmd/reconcile [product_id ...]
// Sin argumentos recorre todos los productos (activos e inactivos).
// Sale con código 1 si encuentra alguna inconsistencia.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jhoicas/stock-ledger/internal/application/ledger"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/postgres"
	"github.com/jhoicas/stock-ledger/pkg/config"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

const pageSize = 500

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "cargar configuración:", err)
		os.Exit(2)
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, Service: "reconcile"})

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	repos := postgres.Repos(pool)
	reconciler := ledger.NewReconciler(repos.Products, repos.Movements)

	ids := os.Args[1:]
	if len(ids) == 0 {
		ids, err = allProductIDs(ctx, repos.Products)
		if err != nil {
			log.Fatal().Err(err).Msg("listar productos")
		}
	}

	inconsistent := 0
	for _, id := range ids {
		rep, err := reconciler.Reconcile(ctx, id)
		if err != nil {
			log.Error().Err(err).Str("product_id", id).Msg("reconciliación fallida")
			inconsistent++
			continue
		}
		if rep.Consistent {
			continue
		}
		inconsistent++
		log.Warn().
			Str("product_id", id).
			Str("stored", rep.Stored.String()).
			Str("replayed", rep.Replayed.String()).
			Int("movements", rep.Movements).
			Int("broken_links", len(rep.Discrepancies)).
			Msg("saldo inconsistente")
	}

	fmt.Printf("productos revisados: %d, inconsistentes: %d\n", len(ids), inconsistent)
	if inconsistent > 0 {
		os.Exit(1)
	}
}

func allProductIDs(ctx context.Context, products repository.ProductRepository) ([]string, error) {
	var ids []string
	for offset := 0; ; offset += pageSize {
		page, err := products.List(ctx, repository.ProductFilter{IncludeInactive: true, Limit: pageSize, Offset: offset})
		if err != nil {
			return nil, err
		}
		for _, p := range page {
			ids = append(ids, p.ID)
		}
		if len(page) < pageSize {
			return ids, nil
		}
	}
}
