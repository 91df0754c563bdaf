// Package inventory owns product stock. Every stock change goes through the
// Ledger, which serializes mutations per barcode and writes the new quantity
// together with its StockMovement.
package inventory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	models "market-pos/model"
	"market-pos/store"
)

// casRetries bounds how often a write is retried when another process
// changed the stored quantity between our read and write.
const casRetries = 3

type Ledger struct {
	store store.Store
	log   logrus.FieldLogger
	now   func() time.Time

	locks sync.Map // barcode -> *sync.Mutex
}

func NewLedger(st store.Store, log logrus.FieldLogger) *Ledger {
	return &Ledger{store: st, log: log, now: time.Now}
}

func (l *Ledger) lockFor(barcode string) *sync.Mutex {
	m, _ := l.locks.LoadOrStore(barcode, &sync.Mutex{})
	return m.(*sync.Mutex)
}

func (l *Ledger) Product(ctx context.Context, barcode string) (models.Product, error) {
	p, err := l.store.GetProduct(ctx, barcode)
	if errors.Is(err, store.ErrNotFound) {
		return models.Product{}, errors.Wrap(ErrProductNotFound, barcode)
	}
	return p, err
}

func (l *Ledger) Products(ctx context.Context) ([]models.Product, error) {
	return l.store.ListProducts(ctx)
}

// LowStock lists products at or below their minimum stock level.
func (l *Ledger) LowStock(ctx context.Context) ([]models.Product, error) {
	ps, err := l.store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	out := []models.Product{}
	for _, p := range ps {
		if p.LowOnStock() {
			out = append(out, p)
		}
	}
	return out, nil
}

// Movements returns the audit trail, optionally for one barcode.
func (l *Ledger) Movements(ctx context.Context, barcode string) ([]models.StockMovement, error) {
	return l.store.ListMovements(ctx, barcode)
}

// Check reports whether qty units of barcode are currently available. It
// has no side effects.
func (l *Ledger) Check(ctx context.Context, barcode string, qty int) error {
	if qty < 1 {
		return ErrInvalidQuantity
	}
	p, err := l.Product(ctx, barcode)
	if err != nil {
		return err
	}
	if p.StockQuantity < qty {
		return &InsufficientStockError{Barcode: barcode, Name: p.Name, Requested: qty, Available: p.StockQuantity}
	}
	return nil
}

// ApplyOut removes qty units. Stock is re-read under the barcode lock, so an
// insufficient quantity fails here even if an earlier Check passed.
func (l *Ledger) ApplyOut(ctx context.Context, barcode string, qty int, actor, reason string) (models.StockMovement, error) {
	mu := l.lockFor(barcode)
	mu.Lock()
	defer mu.Unlock()
	return l.applyOut(ctx, barcode, qty, actor, reason)
}

func (l *Ledger) ApplyIn(ctx context.Context, barcode string, qty int, actor, reason string) (models.StockMovement, error) {
	if qty < 1 {
		return models.StockMovement{}, ErrInvalidQuantity
	}
	mu := l.lockFor(barcode)
	mu.Lock()
	defer mu.Unlock()
	return l.apply(ctx, barcode, models.MovementIn, actor, reason, func(p models.Product) (int, int, error) {
		return p.StockQuantity + qty, qty, nil
	})
}

// ApplyAdjustment sets stock to newStock. The movement carries the signed delta.
func (l *Ledger) ApplyAdjustment(ctx context.Context, barcode string, newStock int, actor, reason string) (models.StockMovement, error) {
	if newStock < 0 {
		return models.StockMovement{}, errors.Wrap(ErrInvalidQuantity, "stock cannot be negative")
	}
	mu := l.lockFor(barcode)
	mu.Lock()
	defer mu.Unlock()
	return l.apply(ctx, barcode, models.MovementAdjustment, actor, reason, func(p models.Product) (int, int, error) {
		return newStock, newStock - p.StockQuantity, nil
	})
}

func (l *Ledger) applyOut(ctx context.Context, barcode string, qty int, actor, reason string) (models.StockMovement, error) {
	if qty < 1 {
		return models.StockMovement{}, ErrInvalidQuantity
	}
	return l.apply(ctx, barcode, models.MovementOut, actor, reason, func(p models.Product) (int, int, error) {
		if p.StockQuantity < qty {
			return 0, 0, &InsufficientStockError{Barcode: barcode, Name: p.Name, Requested: qty, Available: p.StockQuantity}
		}
		return p.StockQuantity - qty, qty, nil
	})
}

// apply reads the product, computes the next quantity and writes it with a
// compare-and-set. The caller holds the barcode lock.
func (l *Ledger) apply(ctx context.Context, barcode string, typ models.MovementType, actor, reason string,
	next func(models.Product) (stock, quantity int, err error)) (models.StockMovement, error) {
	for attempt := 0; ; attempt++ {
		p, err := l.Product(ctx, barcode)
		if err != nil {
			return models.StockMovement{}, err
		}
		after, qty, err := next(p)
		if err != nil {
			return models.StockMovement{}, err
		}
		mv := models.StockMovement{
			ID:          models.NewID(models.PrefixMovement),
			Barcode:     barcode,
			ProductName: p.Name,
			Type:        typ,
			Quantity:    qty,
			StockBefore: p.StockQuantity,
			StockAfter:  after,
			Reason:      reason,
			Actor:       actor,
			Timestamp:   l.now(),
		}
		err = l.store.CompareAndSetStock(ctx, barcode, p.StockQuantity, after, mv)
		if errors.Is(err, store.ErrStockConflict) && attempt < casRetries {
			l.log.WithFields(logrus.Fields{"barcode": barcode, "attempt": attempt + 1}).Warn("stock_conflict_retry")
			continue
		}
		if err != nil {
			return models.StockMovement{}, errors.Wrapf(err, "write stock for %s", barcode)
		}
		if p.StockQuantity > p.MinStockLevel && after <= p.MinStockLevel {
			l.log.WithFields(logrus.Fields{
				"barcode":   barcode,
				"name":      p.Name,
				"stock":     after,
				"min_stock": p.MinStockLevel,
			}).Warn("low_stock")
		}
		return mv, nil
	}
}

// RegisterProduct creates a product. A non-zero initial stock is booked as an
// "in" movement so the audit trail starts at zero.
func (l *Ledger) RegisterProduct(ctx context.Context, p models.Product, actor string) (models.Product, error) {
	if err := validateProduct(p); err != nil {
		return models.Product{}, err
	}
	if p.StockQuantity < 0 {
		return models.Product{}, errors.Wrap(ErrInvalidProduct, "stock cannot be negative")
	}
	initial := p.StockQuantity
	now := l.now()
	p.StockQuantity, p.CreatedAt, p.UpdatedAt = 0, now, now

	mu := l.lockFor(p.Barcode)
	mu.Lock()
	defer mu.Unlock()

	if err := l.store.CreateProduct(ctx, p); err != nil {
		return models.Product{}, errors.Wrapf(err, "create product %s", p.Barcode)
	}
	if initial > 0 {
		if _, err := l.apply(ctx, p.Barcode, models.MovementIn, actor, "Başlangıç stoğu", func(models.Product) (int, int, error) {
			return initial, initial, nil
		}); err != nil {
			if derr := l.store.DeleteProduct(ctx, p.Barcode); derr != nil {
				l.log.WithFields(logrus.Fields{"barcode": p.Barcode, "error": derr}).Error("register_rollback_failed")
			}
			return models.Product{}, err
		}
	}
	return l.Product(ctx, p.Barcode)
}

// UpdateProduct changes descriptive fields and price. Stock is never touched.
func (l *Ledger) UpdateProduct(ctx context.Context, p models.Product) (models.Product, error) {
	if err := validateProduct(p); err != nil {
		return models.Product{}, err
	}
	p.UpdatedAt = l.now()
	err := l.store.UpdateProduct(ctx, p)
	if errors.Is(err, store.ErrNotFound) {
		return models.Product{}, errors.Wrap(ErrProductNotFound, p.Barcode)
	}
	if err != nil {
		return models.Product{}, err
	}
	return l.Product(ctx, p.Barcode)
}

func (l *Ledger) DeleteProduct(ctx context.Context, barcode string) error {
	mu := l.lockFor(barcode)
	mu.Lock()
	defer mu.Unlock()
	err := l.store.DeleteProduct(ctx, barcode)
	if errors.Is(err, store.ErrNotFound) {
		return errors.Wrap(ErrProductNotFound, barcode)
	}
	return err
}

func validateProduct(p models.Product) error {
	switch {
	case strings.TrimSpace(p.Barcode) == "":
		return errors.Wrap(ErrInvalidProduct, "barcode is required")
	case strings.TrimSpace(p.Name) == "":
		return errors.Wrap(ErrInvalidProduct, "name is required")
	case !p.UnitPrice.IsPositive():
		return errors.Wrap(ErrInvalidProduct, "price must be positive")
	case !models.HasCents(p.UnitPrice):
		return errors.Wrap(ErrInvalidProduct, "price cannot have more than two decimals")
	case p.MinStockLevel < 0:
		return errors.Wrap(ErrInvalidProduct, "minimum stock cannot be negative")
	}
	return nil
}

// Batch is a set of barcodes whose locks are held for the duration of a
// Ledger.Batch callback.
type Batch struct {
	l    *Ledger
	held map[string]struct{}
}

// Batch locks every barcode in sorted order, runs fn, and releases them.
// Sorting keeps two overlapping batches from deadlocking.
func (l *Ledger) Batch(ctx context.Context, barcodes []string, fn func(b *Batch) error) error {
	keys := make([]string, 0, len(barcodes))
	held := make(map[string]struct{}, len(barcodes))
	for _, bc := range barcodes {
		if _, dup := held[bc]; dup {
			continue
		}
		held[bc] = struct{}{}
		keys = append(keys, bc)
	}
	sort.Strings(keys)

	for _, bc := range keys {
		l.lockFor(bc).Lock()
	}
	defer func() {
		for i := len(keys) - 1; i >= 0; i-- {
			l.lockFor(keys[i]).Unlock()
		}
	}()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(&Batch{l: l, held: held})
}

func (b *Batch) holds(barcode string) error {
	if _, ok := b.held[barcode]; !ok {
		return errors.Wrap(ErrNotInBatch, barcode)
	}
	return nil
}

func (b *Batch) Product(ctx context.Context, barcode string) (models.Product, error) {
	if err := b.holds(barcode); err != nil {
		return models.Product{}, err
	}
	return b.l.Product(ctx, barcode)
}

func (b *Batch) Check(ctx context.Context, barcode string, qty int) error {
	if err := b.holds(barcode); err != nil {
		return err
	}
	return b.l.Check(ctx, barcode, qty)
}

func (b *Batch) ApplyOut(ctx context.Context, barcode string, qty int, actor, reason string) (models.StockMovement, error) {
	if err := b.holds(barcode); err != nil {
		return models.StockMovement{}, err
	}
	return b.l.applyOut(ctx, barcode, qty, actor, reason)
}
