package store

import (
	"context"

	"github.com/pkg/errors"

	models "market-pos/model"
)

var (
	// ErrNotFound is returned when a keyed record does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrAlreadyExists is returned when creating a record whose key is taken.
	ErrAlreadyExists = errors.New("store: already exists")
	// ErrStockConflict is returned by CompareAndSetStock when the stored
	// quantity no longer matches the expected one.
	ErrStockConflict = errors.New("store: stock changed concurrently")
)

// Store persists products, stock movements, sales, activity logs and users.
// Sales, movements and logs are append-only; the Replace* methods exist only
// for backup import and swap a whole collection in one transaction.
type Store interface {
	CreateProduct(ctx context.Context, p models.Product) error
	// UpdateProduct rewrites descriptive fields and price; stock is left as stored.
	UpdateProduct(ctx context.Context, p models.Product) error
	DeleteProduct(ctx context.Context, barcode string) error
	GetProduct(ctx context.Context, barcode string) (models.Product, error)
	ListProducts(ctx context.Context) ([]models.Product, error)

	// CompareAndSetStock sets stock to next if it currently equals expected
	// and appends mv, atomically.
	CompareAndSetStock(ctx context.Context, barcode string, expected, next int, mv models.StockMovement) error
	// ListMovements returns movements in append order; empty barcode means all.
	ListMovements(ctx context.Context, barcode string) ([]models.StockMovement, error)

	AppendSale(ctx context.Context, s models.Sale) error
	GetSale(ctx context.Context, id string) (models.Sale, error)
	ListSales(ctx context.Context) ([]models.Sale, error)

	AppendLog(ctx context.Context, e models.LogEntry) error
	ListLogs(ctx context.Context) ([]models.LogEntry, error)

	ListUsers(ctx context.Context) ([]models.User, error)

	ReplaceProducts(ctx context.Context, ps []models.Product) error
	ReplaceSales(ctx context.Context, ss []models.Sale) error
	ReplaceMovements(ctx context.Context, ms []models.StockMovement) error
	ReplaceLogs(ctx context.Context, ls []models.LogEntry) error
	ReplaceUsers(ctx context.Context, us []models.User) error

	Close() error
}
