package inventory

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrProductNotFound   = errors.New("product not found")
	ErrInvalidQuantity   = errors.New("quantity must be at least 1")
	ErrInvalidProduct    = errors.New("invalid product")
	// ErrNotInBatch is returned when a Batch is asked about a barcode it does not hold.
	ErrNotInBatch = errors.New("barcode not locked by batch")
)

// InsufficientStockError reports one product that cannot cover a requested quantity.
type InsufficientStockError struct {
	Barcode   string
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s (%s): requested %d, available %d", e.Name, e.Barcode, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }
