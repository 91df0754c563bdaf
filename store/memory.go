package store

import (
	"context"
	"sort"
	"sync"

	models "market-pos/model"
)

// MemoryStore is a process-local Store. It is the default when no database
// URL is configured, and what the tests run against.
type MemoryStore struct {
	mu        sync.RWMutex
	products  map[string]models.Product
	movements []models.StockMovement
	sales     []models.Sale
	saleIndex map[string]int
	logs      []models.LogEntry
	users     []models.User
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products:  make(map[string]models.Product),
		saleIndex: make(map[string]int),
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) CreateProduct(_ context.Context, p models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.Barcode]; ok {
		return ErrAlreadyExists
	}
	s.products[p.Barcode] = p
	return nil
}

func (s *MemoryStore) UpdateProduct(_ context.Context, p models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.products[p.Barcode]
	if !ok {
		return ErrNotFound
	}
	p.StockQuantity = cur.StockQuantity
	p.CreatedAt = cur.CreatedAt
	s.products[p.Barcode] = p
	return nil
}

func (s *MemoryStore) DeleteProduct(_ context.Context, barcode string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[barcode]; !ok {
		return ErrNotFound
	}
	delete(s.products, barcode)
	return nil
}

func (s *MemoryStore) GetProduct(_ context.Context, barcode string) (models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[barcode]
	if !ok {
		return models.Product{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) ListProducts(_ context.Context) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Barcode < out[j].Barcode })
	return out, nil
}

func (s *MemoryStore) CompareAndSetStock(_ context.Context, barcode string, expected, next int, mv models.StockMovement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[barcode]
	if !ok {
		return ErrNotFound
	}
	if p.StockQuantity != expected {
		return ErrStockConflict
	}
	p.StockQuantity = next
	p.UpdatedAt = mv.Timestamp
	s.products[barcode] = p
	s.movements = append(s.movements, mv)
	return nil
}

func (s *MemoryStore) ListMovements(_ context.Context, barcode string) ([]models.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []models.StockMovement{}
	for _, m := range s.movements {
		if barcode == "" || m.Barcode == barcode {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *MemoryStore) AppendSale(_ context.Context, sale models.Sale) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.saleIndex[sale.ID]; ok {
		return ErrAlreadyExists
	}
	s.saleIndex[sale.ID] = len(s.sales)
	s.sales = append(s.sales, cloneSale(sale))
	return nil
}

func (s *MemoryStore) GetSale(_ context.Context, id string) (models.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.saleIndex[id]
	if !ok {
		return models.Sale{}, ErrNotFound
	}
	return cloneSale(s.sales[i]), nil
}

func (s *MemoryStore) ListSales(_ context.Context) ([]models.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Sale, 0, len(s.sales))
	for _, sale := range s.sales {
		out = append(out, cloneSale(sale))
	}
	return out, nil
}

func (s *MemoryStore) AppendLog(_ context.Context, e models.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, e)
	return nil
}

func (s *MemoryStore) ListLogs(_ context.Context) ([]models.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.LogEntry{}, s.logs...), nil
}

func (s *MemoryStore) ListUsers(_ context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.User{}, s.users...), nil
}

func (s *MemoryStore) ReplaceProducts(_ context.Context, ps []models.Product) error {
	m := make(map[string]models.Product, len(ps))
	for _, p := range ps {
		m[p.Barcode] = p
	}
	s.mu.Lock()
	s.products = m
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ReplaceSales(_ context.Context, ss []models.Sale) error {
	sales := make([]models.Sale, 0, len(ss))
	index := make(map[string]int, len(ss))
	for _, sale := range ss {
		index[sale.ID] = len(sales)
		sales = append(sales, cloneSale(sale))
	}
	s.mu.Lock()
	s.sales, s.saleIndex = sales, index
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ReplaceMovements(_ context.Context, ms []models.StockMovement) error {
	s.mu.Lock()
	s.movements = append([]models.StockMovement{}, ms...)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ReplaceLogs(_ context.Context, ls []models.LogEntry) error {
	s.mu.Lock()
	s.logs = append([]models.LogEntry{}, ls...)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ReplaceUsers(_ context.Context, us []models.User) error {
	s.mu.Lock()
	s.users = append([]models.User{}, us...)
	s.mu.Unlock()
	return nil
}

func cloneSale(s models.Sale) models.Sale {
	s.Lines = append([]models.SaleLine(nil), s.Lines...)
	return s
}
