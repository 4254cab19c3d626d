package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jhoicas/stock-ledger/internal/infrastructure/cache"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type view struct {
	SKU     string `json:"sku"`
	Balance string `json:"balance"`
}

func TestReadThrough_MissCargaYGuarda(t *testing.T) {
	store := cache.NewMemoryStore()
	r := cache.Reader{Store: store, TTL: time.Minute, Log: zerolog.Nop()}
	loads := 0
	load := func(context.Context) (view, error) {
		loads++
		return view{SKU: "A-1", Balance: "10"}, nil
	}

	v, err := cache.ReadThrough(context.Background(), r, "product:p1", load)
	require.NoError(t, err)
	assert.Equal(t, "A-1", v.SKU)

	v, err = cache.ReadThrough(context.Background(), r, "product:p1", load)
	require.NoError(t, err)
	assert.Equal(t, "10", v.Balance)
	assert.Equal(t, 1, loads, "la segunda lectura sale de la caché")
}

func TestReadThrough_StoreCaidoDegradaALoader(t *testing.T) {
	r := cache.Reader{Store: failingStore{}, TTL: time.Minute, Log: zerolog.Nop()}

	v, err := cache.ReadThrough(context.Background(), r, "product:p1", func(context.Context) (view, error) {
		return view{SKU: "A-1"}, nil
	})

	require.NoError(t, err, "los fallos de caché nunca llegan al llamador")
	assert.Equal(t, "A-1", v.SKU)
}

func TestReadThrough_ValorIlegibleSeDescarta(t *testing.T) {
	store := cache.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), "product:p1", []byte("{no-json"), 0))
	r := cache.Reader{Store: store, TTL: time.Minute, Log: zerolog.Nop()}

	v, err := cache.ReadThrough(context.Background(), r, "product:p1", func(context.Context) (view, error) {
		return view{SKU: "fresco"}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "fresco", v.SKU)
}

func TestReadThrough_ErrorDelLoaderNoSeCachea(t *testing.T) {
	store := cache.NewMemoryStore()
	r := cache.Reader{Store: store, TTL: time.Minute, Log: zerolog.Nop()}
	boom := errors.New("db caída")

	_, err := cache.ReadThrough(context.Background(), r, "product:p1", func(context.Context) (view, error) {
		return view{}, boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Empty(t, store.Keys())
}

func TestReadThrough_InvalidacionDuranteLaCargaDescartaElValor(t *testing.T) {
	store := cache.NewMemoryStore()
	r := cache.Reader{Store: store, TTL: time.Minute, Log: zerolog.Nop()}
	coord := cache.NewCoordinator(store, zerolog.Nop(), time.Second)
	ctx := context.Background()

	// La carga lee el saldo previo; otra transacción confirma e invalida antes de que se guarde.
	v, err := cache.ReadThrough(ctx, r, cache.ProductKey("p1"), func(ctx context.Context) (view, error) {
		coord.Invalidate(ctx, cache.StockChanged("p1"))
		return view{Balance: "10"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "10", v.Balance)
	_, found, err := store.Get(ctx, cache.ProductKey("p1"))
	require.NoError(t, err)
	assert.False(t, found, "el valor previo al commit no queda en caché")

	v, err = cache.ReadThrough(ctx, r, cache.ProductKey("p1"), func(context.Context) (view, error) {
		return view{Balance: "7"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "7", v.Balance)
	_, found, err = store.Get(ctx, cache.ProductKey("p1"))
	require.NoError(t, err)
	assert.True(t, found, "sin invalidación concurrente el valor se guarda")
}
