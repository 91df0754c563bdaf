package service

import (
	"context"
	"io"

	"market-pos/backup"
	"market-pos/checkout"
	models "market-pos/model"
	"market-pos/printer"
	"market-pos/session"
)

type ServiceInterface interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
	GetProduct(ctx context.Context, barcode string) (models.Product, error)
	LowStock(ctx context.Context) ([]models.Product, error)
	CreateProduct(ctx context.Context, actor string, p models.Product) (models.Product, error)
	UpdateProduct(ctx context.Context, actor string, p models.Product) (models.Product, error)
	DeleteProduct(ctx context.Context, actor, barcode string) error

	StockIn(ctx context.Context, actor, barcode string, qty int, reason string) (models.StockMovement, error)
	StockOut(ctx context.Context, actor, barcode string, qty int, reason string) (models.StockMovement, error)
	AdjustStock(ctx context.Context, actor, barcode string, newStock int, reason string) (models.StockMovement, error)
	Movements(ctx context.Context, barcode string) ([]models.StockMovement, error)

	AddToCart(ctx context.Context, operator, barcode string, qty int) (session.Cart, error)
	UpdateCart(ctx context.Context, operator, barcode string, qty int) (session.Cart, error)
	RemoveFromCart(ctx context.Context, operator, barcode string) (session.Cart, error)
	ClearCart(operator string) error
	GetCart(ctx context.Context, operator string) (session.Cart, error)
	Checkout(ctx context.Context, operator string, payment models.PaymentMethod) (checkout.Result, error)

	ListSales(ctx context.Context) ([]models.Sale, error)
	GetSale(ctx context.Context, id string) (models.Sale, error)
	ReceiptPreview(ctx context.Context, id string) (ReceiptPreview, error)
	Reprint(ctx context.Context, actor, id string) error

	ConnectPrinter(ctx context.Context, actor, port string) (printer.Status, error)
	DisconnectPrinter(actor string) printer.Status
	PrinterStatus() printer.Status
	PrintTest(ctx context.Context, actor string) error
	OpenDrawer(ctx context.Context, actor string) error

	Export(ctx context.Context, actor string, w io.Writer) error
	Import(ctx context.Context, actor string, r io.Reader) (backup.ImportSummary, error)
	Logs(ctx context.Context) ([]models.LogEntry, error)
}

var _ ServiceInterface = (*Service)(nil)
