package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
)

// Reader agrupa store, TTL y logger para las lecturas read-through.
type Reader struct {
	Store Store
	TTL   time.Duration
	Log   zerolog.Logger
}

// ReadThrough devuelve el valor cacheado en key o lo carga con load y lo guarda.
// Cualquier fallo del store (o un valor ilegible) degrada a load; nunca devuelve errores de caché.
// Si la generación cambió mientras load corría, el valor guardado se borra.
func ReadThrough[T any](ctx context.Context, r Reader, key string, load func(ctx context.Context) (T, error)) (T, error) {
	if r.Store == nil {
		return load(ctx)
	}
	raw, found, err := r.Store.Get(ctx, key)
	if err != nil {
		r.Log.Warn().Err(err).Str("key", key).Msg("lectura de caché fallida")
	} else if found {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
		r.Log.Warn().Str("key", key).Msg("valor de caché ilegible, se descarta")
		_ = r.Store.Delete(ctx, key)
	}

	gen, genErr := generation(ctx, r.Store)
	v, err := load(ctx)
	if err != nil {
		return v, err
	}
	if genErr != nil {
		return v, nil
	}
	raw, err = json.Marshal(v)
	if err != nil {
		r.Log.Warn().Err(err).Str("key", key).Msg("no se pudo serializar valor de caché")
		return v, nil
	}
	if err := r.Store.Set(ctx, key, raw, r.TTL); err != nil {
		r.Log.Warn().Err(err).Str("key", key).Msg("escritura de caché fallida")
		return v, nil
	}
	// Una invalidación corrió durante la carga: el valor puede ser anterior al commit.
	if now, err := generation(ctx, r.Store); err != nil || now != gen {
		if err := r.Store.Delete(ctx, key); err != nil {
			r.Log.Warn().Err(err).Str("key", key).Msg("no se pudo descartar valor de caché")
		}
	}
	return v, nil
}

func generation(ctx context.Context, s Store) (string, error) {
	raw, _, err := s.Get(ctx, GenerationKey)
	return string(raw), err
}
