package cache

import (
	"sort"

	"github.com/jhoicas/stock-ledger/internal/domain/entity"
)

// EventKind tipo de evento de dominio que afecta vistas cacheadas.
type EventKind string

const (
	EventStockChanged         EventKind = "stock-changed"
	EventDocumentCreated      EventKind = "document-created"
	EventDocumentStateChanged EventKind = "document-state-changed"
	EventCatalogChanged       EventKind = "catalog-changed"
)

// Event lo emite un workflow tras confirmar su transacción.
type Event struct {
	Kind         EventKind
	ProductIDs   []string
	DocumentKind entity.DocumentKind
	DocumentIDs  []string
}

// StockChanged evento de saldo modificado.
func StockChanged(productIDs ...string) Event {
	return Event{Kind: EventStockChanged, ProductIDs: productIDs}
}

// DocumentCreated evento de documento nuevo.
func DocumentCreated(kind entity.DocumentKind, ids ...string) Event {
	return Event{Kind: EventDocumentCreated, DocumentKind: kind, DocumentIDs: ids}
}

// DocumentStateChanged evento de transición de estado de un documento.
func DocumentStateChanged(kind entity.DocumentKind, ids ...string) Event {
	return Event{Kind: EventDocumentStateChanged, DocumentKind: kind, DocumentIDs: ids}
}

// CatalogChanged evento de alta, baja o reactivación de productos.
func CatalogChanged(productIDs ...string) Event {
	return Event{Kind: EventCatalogChanged, ProductIDs: productIDs}
}

// Plan claves exactas y prefijos a borrar para un conjunto de eventos.
type Plan struct {
	Keys     []string
	Prefixes []string
}

// Empty indica que no hay nada que invalidar.
func (p Plan) Empty() bool { return len(p.Keys) == 0 && len(p.Prefixes) == 0 }

// Rule regla de invalidación de un tipo de evento.
type Rule struct {
	Keys     func(Event) []string
	Prefixes func(Event) []string
}

func documentKeys(ev Event) []string {
	out := make([]string, 0, len(ev.DocumentIDs))
	for _, id := range ev.DocumentIDs {
		out = append(out, DocumentKey(ev.DocumentKind, id))
	}
	return out
}

func documentPrefixes(ev Event) []string {
	return []string{DocumentListPrefix(ev.DocumentKind), DashboardPrefix()}
}

func productKeys(ev Event) []string {
	out := make([]string, 0, len(ev.ProductIDs))
	for _, id := range ev.ProductIDs {
		out = append(out, ProductKey(id))
	}
	return out
}

// rules tabla de invalidación. Agregar una vista cacheada implica agregar su prefijo aquí.
var rules = map[EventKind]Rule{
	EventStockChanged: {
		Keys: productKeys,
		Prefixes: func(ev Event) []string {
			out := []string{NSProductList, NSCategories, NSLowStock, NSValuation, NSAlerts}
			for _, id := range ev.ProductIDs {
				out = append(out, MovementsPrefix(id))
			}
			return out
		},
	},
	EventDocumentCreated:      {Keys: documentKeys, Prefixes: documentPrefixes},
	EventDocumentStateChanged: {Keys: documentKeys, Prefixes: documentPrefixes},
	EventCatalogChanged: {
		Keys: productKeys,
		Prefixes: func(Event) []string {
			return []string{NSProductList, NSCategories, NSLowStock, NSValuation, NSAlerts}
		},
	},
}

// RuleFor devuelve la regla de un tipo de evento.
func RuleFor(kind EventKind) (Rule, bool) {
	r, ok := rules[kind]
	return r, ok
}

// EventKinds lista los tipos de evento con regla, ordenados.
func EventKinds() []EventKind {
	out := make([]EventKind, 0, len(rules))
	for k := range rules {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// PlanFor calcula el plan de invalidación de los eventos (sin efectos, deduplicado y ordenado).
// Eventos sin regla se ignoran.
func PlanFor(events ...Event) Plan {
	keys := map[string]struct{}{}
	prefixes := map[string]struct{}{}
	for _, ev := range events {
		r, ok := rules[ev.Kind]
		if !ok {
			continue
		}
		for _, k := range r.Keys(ev) {
			keys[k] = struct{}{}
		}
		for _, p := range r.Prefixes(ev) {
			prefixes[p] = struct{}{}
		}
	}
	return Plan{Keys: sortedSet(keys), Prefixes: sortedSet(prefixes)}
}

func sortedSet(m map[string]struct{}) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
