// Package ledgertest provee repositorios en memoria con semántica transaccional
// (snapshot y rollback) para probar workflows sin PostgreSQL.
package ledgertest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jhoicas/stock-ledger/internal/application/ledger"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/jhoicas/stock-ledger/internal/domain/entity"
	"github.com/jhoicas/stock-ledger/internal/domain/repository"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/cache"
	"github.com/shopspring/decimal"
)

var errAppend = errors.New("ledgertest: fallo inyectado en Append")

// NewProduct fixture de producto activo con costo cero.
func NewProduct(id, sku, balance string) entity.Product {
	now := time.Now()
	return entity.Product{
		ID:               id,
		SKU:              sku,
		Name:             "Producto " + sku,
		Cost:             decimal.Zero,
		Balance:          decimal.RequireFromString(balance),
		ReorderThreshold: decimal.Zero,
		Active:           true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

type state struct {
	products   map[string]entity.Product
	movements  []entity.StockMovement
	sales      map[string]entity.Sale
	receptions map[string]entity.Reception
	categories map[string]entity.Category
	nextMovID  int64
}

func (s state) clone() state {
	out := state{
		products:   make(map[string]entity.Product, len(s.products)),
		movements:  append([]entity.StockMovement(nil), s.movements...),
		sales:      make(map[string]entity.Sale, len(s.sales)),
		receptions: make(map[string]entity.Reception, len(s.receptions)),
		categories: make(map[string]entity.Category, len(s.categories)),
		nextMovID:  s.nextMovID,
	}
	for k, v := range s.products {
		out.products[k] = v
	}
	for k, v := range s.sales {
		v.Items = append([]entity.SaleItem(nil), v.Items...)
		out.sales[k] = v
	}
	for k, v := range s.receptions {
		v.Items = append([]entity.ReceptionItem(nil), v.Items...)
		out.receptions[k] = v
	}
	for k, v := range s.categories {
		out.categories[k] = v
	}
	return out
}

// Store estado compartido por todos los repositorios fake.
// Las transacciones se serializan: equivale a bloqueos de fila sin deadlocks.
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex
	st   state

	// BeforeMutate se invoca antes de cada escritura condicional de saldo (con el lock tomado).
	// Permite simular que otra transacción confirmó un cambio entre lectura y escritura.
	BeforeMutate func(m repository.BalanceMutation, products map[string]entity.Product)
	// FailAppendAfter hace fallar Append cuando ya hay esa cantidad de movimientos (0 = nunca).
	FailAppendAfter int
	// Now reloj para created_at de movimientos.
	Now func() time.Time
}

// NewStore construye un store vacío.
func NewStore() *Store {
	return &Store{
		st: state{
			products:   map[string]entity.Product{},
			sales:      map[string]entity.Sale{},
			receptions: map[string]entity.Reception{},
			categories: map[string]entity.Category{},
		},
		Now: time.Now,
	}
}

// AddProduct registra un producto directamente (fixture).
func (s *Store) AddProduct(p entity.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.products[p.ID] = p
}

// Product devuelve una copia del producto.
func (s *Store) Product(id string) (entity.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.products[id]
	return p, ok
}

// Balance saldo actual del producto (cero si no existe).
func (s *Store) Balance(id string) decimal.Decimal {
	p, _ := s.Product(id)
	return p.Balance
}

// Movements copia de todos los movimientos en orden de inserción.
func (s *Store) Movements() []entity.StockMovement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.StockMovement(nil), s.st.movements...)
}

// Sale devuelve una copia de la venta.
func (s *Store) Sale(id string) (entity.Sale, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.st.sales[id]
	return v, ok
}

// Repos repositorios fuera de transacción (lecturas de servicios).
func (s *Store) Repos() repository.TxRepos {
	return repository.TxRepos{
		Products:   &Products{s: s},
		Movements:  &Movements{s: s},
		Sales:      &Sales{s: s},
		Receptions: &Receptions{s: s},
	}
}

// Categories repositorio de categorías.
func (s *Store) Categories() *Categories { return &Categories{s: s} }

// TxRunner implementa ledger.TxRunner sobre el store.
type TxRunner struct {
	s *Store
}

var _ ledger.TxRunner = (*TxRunner)(nil)

// Runner devuelve el TxRunner del store.
func (s *Store) Runner() *TxRunner { return &TxRunner{s: s} }

// Run toma un snapshot, ejecuta fn y lo restaura si fn falla.
func (r *TxRunner) Run(ctx context.Context, fn func(tx repository.TxRepos) error) error {
	r.s.txMu.Lock()
	defer r.s.txMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	r.s.mu.Lock()
	snapshot := r.s.st.clone()
	r.s.mu.Unlock()

	if err := fn(r.s.Repos()); err != nil {
		r.s.mu.Lock()
		r.s.st = snapshot
		r.s.mu.Unlock()
		return err
	}
	return nil
}

// RecordingInvalidator guarda los eventos recibidos.
type RecordingInvalidator struct {
	mu     sync.Mutex
	Events []cache.Event
	Calls  int
}

var _ ledger.Invalidator = (*RecordingInvalidator)(nil)

// Invalidate implementa ledger.Invalidator.
func (r *RecordingInvalidator) Invalidate(_ context.Context, events ...cache.Event) cache.Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls++
	r.Events = append(r.Events, events...)
	return cache.Report{}
}

// Kinds tipos de evento recibidos, en orden.
func (r *RecordingInvalidator) Kinds() []cache.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]cache.EventKind, 0, len(r.Events))
	for _, ev := range r.Events {
		out = append(out, ev.Kind)
	}
	return out
}

// ──────────────────────────────────────────────────────────────────────────────
// Products
// ──────────────────────────────────────────────────────────────────────────────

// Products fake de repository.ProductRepository.
type Products struct{ s *Store }

var _ repository.ProductRepository = (*Products)(nil)

func (r *Products) Create(_ context.Context, p *entity.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.st.products {
		if existing.SKU == p.SKU {
			return domain.ErrDuplicate
		}
	}
	r.s.st.products[p.ID] = *p
	return nil
}

func (r *Products) GetByID(_ context.Context, id string) (*entity.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.st.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (r *Products) List(_ context.Context, f repository.ProductFilter) ([]*entity.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []*entity.Product
	for _, p := range r.s.st.products {
		if f.CategoryID != "" && p.CategoryID != f.CategoryID {
			continue
		}
		if !f.IncludeInactive && !p.Active {
			continue
		}
		p := p
		all = append(all, &p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].SKU < all[j].SKU })
	return page(all, f.Limit, f.Offset), nil
}

func (r *Products) SetActive(_ context.Context, id string, active bool) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.st.products[id]
	if !ok {
		return false, nil
	}
	p.Active = active
	r.s.st.products[id] = p
	return true, nil
}

func (r *Products) UpdateCost(_ context.Context, id string, cost decimal.Decimal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.st.products[id]
	if !ok {
		return domain.ErrProductNotFound
	}
	p.Cost = cost
	r.s.st.products[id] = p
	return nil
}

// CompareAndMutateBalance reproduce los predicados del UPDATE condicional de PostgreSQL.
func (r *Products) CompareAndMutateBalance(_ context.Context, m repository.BalanceMutation) (decimal.Decimal, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.BeforeMutate != nil {
		r.s.BeforeMutate(m, r.s.st.products)
	}
	p, ok := r.s.st.products[m.ProductID]
	if !ok || (!p.Active && !m.AllowInactive) {
		return decimal.Zero, false, nil
	}
	var next decimal.Decimal
	switch m.Kind {
	case entity.MovementIn:
		next = p.Balance.Add(m.Quantity)
		if next.GreaterThan(m.Ceiling) {
			return decimal.Zero, false, nil
		}
	case entity.MovementOut:
		if p.Balance.LessThan(m.Quantity) {
			return decimal.Zero, false, nil
		}
		next = p.Balance.Sub(m.Quantity)
	case entity.MovementSet:
		if !p.Balance.Equal(m.Expected) {
			return decimal.Zero, false, nil
		}
		next = m.Quantity
	default:
		return decimal.Zero, false, nil
	}
	p.Balance = next
	r.s.st.products[p.ID] = p
	return next, true, nil
}

func (r *Products) ListBelowThreshold(_ context.Context) ([]*entity.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Product
	for _, p := range r.s.st.products {
		if p.Active && p.BelowThreshold() {
			p := p
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

func (r *Products) Valuation(_ context.Context) (repository.InventoryValuation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v := repository.InventoryValuation{TotalUnits: decimal.Zero, TotalValue: decimal.Zero}
	for _, p := range r.s.st.products {
		if !p.Active {
			continue
		}
		v.Products++
		v.TotalUnits = v.TotalUnits.Add(p.Balance)
		v.TotalValue = v.TotalValue.Add(p.Balance.Mul(p.Cost))
	}
	return v, nil
}

func (r *Products) CategoryStock(_ context.Context) ([]entity.CategoryStock, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	agg := map[string]*entity.CategoryStock{}
	for _, p := range r.s.st.products {
		if !p.Active {
			continue
		}
		row, ok := agg[p.CategoryID]
		if !ok {
			row = &entity.CategoryStock{
				CategoryID:   p.CategoryID,
				CategoryName: r.s.st.categories[p.CategoryID].Name,
				TotalUnits:   decimal.Zero,
				TotalValue:   decimal.Zero,
			}
			agg[p.CategoryID] = row
		}
		row.Products++
		row.TotalUnits = row.TotalUnits.Add(p.Balance)
		row.TotalValue = row.TotalValue.Add(p.Balance.Mul(p.Cost))
	}
	out := make([]entity.CategoryStock, 0, len(agg))
	for _, row := range agg {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CategoryName < out[j].CategoryName })
	return out, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Movements
// ──────────────────────────────────────────────────────────────────────────────

// Movements fake append-only de repository.MovementRepository.
type Movements struct{ s *Store }

var _ repository.MovementRepository = (*Movements)(nil)

func (r *Movements) Append(_ context.Context, m *entity.StockMovement) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.FailAppendAfter > 0 && len(r.s.st.movements) >= r.s.FailAppendAfter {
		return 0, errAppend
	}
	r.s.st.nextMovID++
	m.ID = r.s.st.nextMovID
	m.CreatedAt = r.s.Now()
	r.s.st.movements = append(r.s.st.movements, *m)
	return m.ID, nil
}

func (r *Movements) ListByProduct(_ context.Context, productID string, limit, offset int) ([]*entity.StockMovement, error) {
	all := r.filter(func(m entity.StockMovement) bool { return m.ProductID == productID })
	// más reciente primero
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return page(all, limit, offset), nil
}

func (r *Movements) ListByDocument(_ context.Context, kind entity.DocumentKind, documentID string) ([]*entity.StockMovement, error) {
	return r.filter(func(m entity.StockMovement) bool {
		return m.DocumentKind == kind && m.DocumentID == documentID
	}), nil
}

func (r *Movements) ListForReplay(_ context.Context, productID string) ([]*entity.StockMovement, error) {
	return r.filter(func(m entity.StockMovement) bool { return m.ProductID == productID }), nil
}

func (r *Movements) filter(keep func(entity.StockMovement) bool) []*entity.StockMovement {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.StockMovement
	for _, m := range r.s.st.movements {
		if keep(m) {
			m := m
			out = append(out, &m)
		}
	}
	return out
}

// ──────────────────────────────────────────────────────────────────────────────
// Sales
// ──────────────────────────────────────────────────────────────────────────────

// Sales fake de repository.SaleRepository.
type Sales struct{ s *Store }

var _ repository.SaleRepository = (*Sales)(nil)

func (r *Sales) CreateIfNumberFree(_ context.Context, sale *entity.Sale) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.st.sales {
		if existing.Number == sale.Number {
			return false, nil
		}
	}
	header := *sale
	header.Items = nil
	r.s.st.sales[sale.ID] = header
	return true, nil
}

func (r *Sales) NumberExists(_ context.Context, number string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.st.sales {
		if existing.Number == number {
			return true, nil
		}
	}
	return false, nil
}

func (r *Sales) AddItem(_ context.Context, item *entity.SaleItem) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sale, ok := r.s.st.sales[item.SaleID]
	if !ok {
		return domain.ErrNotFound
	}
	if _, ok := r.s.st.products[item.ProductID]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrProductNotFound, item.ProductID)
	}
	sale.Items = append(sale.Items, *item)
	r.s.st.sales[item.SaleID] = sale
	return nil
}

func (r *Sales) GetByID(_ context.Context, id string) (*entity.Sale, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sale, ok := r.s.st.sales[id]
	if !ok {
		return nil, nil
	}
	sale.Items = append([]entity.SaleItem(nil), sale.Items...)
	return &sale, nil
}

func (r *Sales) Anul(_ context.Context, id, actorID, reason string, at, createdAfter time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sale, ok := r.s.st.sales[id]
	if !ok || sale.State != entity.SaleStateActive || sale.CreatedAt.Before(createdAfter) {
		return false, nil
	}
	sale.State = entity.SaleStateAnulled
	sale.AnulledBy = actorID
	sale.AnulReason = reason
	sale.AnulledAt = &at
	r.s.st.sales[id] = sale
	return true, nil
}

func (r *Sales) List(_ context.Context, state string, limit, offset int) ([]*entity.Sale, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Sale
	for _, sale := range r.s.st.sales {
		if state != "" && sale.State != state {
			continue
		}
		sale := sale
		sale.Items = nil
		out = append(out, &sale)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Receptions
// ──────────────────────────────────────────────────────────────────────────────

// Receptions fake de repository.ReceptionRepository.
type Receptions struct{ s *Store }

var _ repository.ReceptionRepository = (*Receptions)(nil)

// Create rechaza líneas con productos inexistentes, como la FK de reception_items.
func (r *Receptions) Create(_ context.Context, rec *entity.Reception) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, it := range rec.Items {
		if _, ok := r.s.st.products[it.ProductID]; !ok {
			return fmt.Errorf("%w: %s", domain.ErrProductNotFound, it.ProductID)
		}
	}
	cp := *rec
	cp.Items = append([]entity.ReceptionItem(nil), rec.Items...)
	r.s.st.receptions[rec.ID] = cp
	return nil
}

func (r *Receptions) GetByID(_ context.Context, id string) (*entity.Reception, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.st.receptions[id]
	if !ok {
		return nil, nil
	}
	rec.Items = append([]entity.ReceptionItem(nil), rec.Items...)
	return &rec, nil
}

func (r *Receptions) MarkProcessed(_ context.Context, id, actorID, advisoryNote string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.st.receptions[id]
	if !ok || rec.State != entity.ReceptionStatePending {
		return false, nil
	}
	rec.State = entity.ReceptionStateProcessed
	rec.ProcessedBy = actorID
	rec.ProcessedAt = &at
	rec.AdvisoryNote = advisoryNote
	r.s.st.receptions[id] = rec
	return true, nil
}

func (r *Receptions) MarkCancelled(_ context.Context, id, actorID string, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rec, ok := r.s.st.receptions[id]
	if !ok || rec.State != entity.ReceptionStatePending {
		return false, nil
	}
	rec.State = entity.ReceptionStateCancelled
	rec.CancelledBy = actorID
	rec.CancelledAt = &at
	r.s.st.receptions[id] = rec
	return true, nil
}

func (r *Receptions) List(_ context.Context, state string, limit, offset int) ([]*entity.Reception, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*entity.Reception
	for _, rec := range r.s.st.receptions {
		if state != "" && rec.State != state {
			continue
		}
		rec := rec
		rec.Items = nil
		out = append(out, &rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, limit, offset), nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Categories
// ──────────────────────────────────────────────────────────────────────────────

// Categories fake de repository.CategoryRepository.
type Categories struct{ s *Store }

var _ repository.CategoryRepository = (*Categories)(nil)

func (r *Categories) Create(_ context.Context, c *entity.Category) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.st.categories {
		if strings.EqualFold(existing.Name, c.Name) {
			return domain.ErrDuplicate
		}
	}
	r.s.st.categories[c.ID] = *c
	return nil
}

func (r *Categories) GetByID(_ context.Context, id string) (*entity.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.st.categories[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *Categories) List(_ context.Context) ([]*entity.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*entity.Category, 0, len(r.s.st.categories))
	for _, c := range r.s.st.categories {
		c := c
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
