// Package sales is the append-only record of completed sales.
package sales

import (
	"context"

	"github.com/pkg/errors"

	models "market-pos/model"
	"market-pos/store"
)

var (
	ErrSaleNotFound  = errors.New("sale not found")
	ErrDuplicateSale = errors.New("sale already recorded")
	ErrEmptySale     = errors.New("sale has no lines")
)

type Ledger struct {
	store store.Store
}

func NewLedger(st store.Store) *Ledger {
	return &Ledger{store: st}
}

// Append records s exactly once. The total must equal the sum of line totals.
func (l *Ledger) Append(ctx context.Context, s models.Sale) error {
	if s.ID == "" {
		return errors.New("sale id is required")
	}
	if len(s.Lines) == 0 {
		return ErrEmptySale
	}
	sum := models.Money{}
	for _, ln := range s.Lines {
		sum = sum.Add(ln.LineTotal)
	}
	if !sum.Equal(s.Total) {
		return errors.Errorf("sale %s total %s does not match lines %s", s.ID, s.Total, sum)
	}
	err := l.store.AppendSale(ctx, s)
	if errors.Is(err, store.ErrAlreadyExists) {
		return errors.Wrap(ErrDuplicateSale, s.ID)
	}
	return errors.Wrapf(err, "append sale %s", s.ID)
}

func (l *Ledger) Get(ctx context.Context, id string) (models.Sale, error) {
	s, err := l.store.GetSale(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return models.Sale{}, errors.Wrap(ErrSaleNotFound, id)
	}
	return s, err
}

// List returns sales in append order.
func (l *Ledger) List(ctx context.Context) ([]models.Sale, error) {
	return l.store.ListSales(ctx)
}
