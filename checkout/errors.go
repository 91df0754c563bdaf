package checkout

import (
	"strings"

	"go.uber.org/multierr"

	"market-pos/inventory"
)

// ValidationError is a malformed sale request. Nothing has been touched.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid sale: " + strings.Join(e.Problems, "; ")
}

// StockError lists every cart line the inventory cannot cover. It matches
// inventory.ErrInsufficientStock with errors.Is.
type StockError struct {
	Lines []*inventory.InsufficientStockError
	err   error
}

func newStockError(lines []*inventory.InsufficientStockError) *StockError {
	var err error
	for _, l := range lines {
		err = multierr.Append(err, l)
	}
	return &StockError{Lines: lines, err: err}
}

func (e *StockError) Error() string {
	return "cannot complete sale: " + e.err.Error()
}

func (e *StockError) Unwrap() []error {
	return multierr.Errors(e.err)
}
