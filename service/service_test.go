package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-pos/audit"
	"market-pos/checkout"
	"market-pos/inventory"
	models "market-pos/model"
	"market-pos/printer"
	"market-pos/receipt"
	"market-pos/store"
)

type recordingPort struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (p *recordingPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.Write(b)
}

func (p *recordingPort) Close() error { return nil }

func newTestService(t *testing.T, opts checkout.Options) (*Service, *recordingPort) {
	t.Helper()
	log, _ := test.NewNullLogger()
	port := &recordingPort{}
	tr := printer.NewTransport(printer.OpenerFunc(func(context.Context, string) (printer.Port, error) {
		return port, nil
	}), time.Second, time.Second, log)
	layout := receipt.DefaultLayout()
	layout.Location = time.UTC
	svc := NewService(store.NewMemoryStore(), printer.NewDriver(tr, "COM1", layout, log), opts, log)

	seeded, err := svc.Seed(context.Background())
	require.NoError(t, err)
	require.True(t, seeded)
	return svc, port
}

const cola = "8690637001031"

func TestSeed_OnlyIntoEmptyStore(t *testing.T) {
	svc, _ := newTestService(t, checkout.Options{})
	seeded, err := svc.Seed(context.Background())
	require.NoError(t, err)
	assert.False(t, seeded)

	ps, err := svc.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Len(t, ps, 5)
	p, err := svc.GetProduct(context.Background(), cola)
	require.NoError(t, err)
	assert.Equal(t, 100, p.StockQuantity)
}

func TestCheckout_ClearsCartAndPrints(t *testing.T) {
	ctx := context.Background()
	svc, port := newTestService(t, checkout.Options{AutoPrint: true, PrintTimeout: time.Second})
	_, err := svc.ConnectPrinter(ctx, "cashier", "")
	require.NoError(t, err)

	_, err = svc.AddToCart(ctx, "cashier", cola, 3)
	require.NoError(t, err)
	res, err := svc.Checkout(ctx, "cashier", models.PaymentCash)
	require.NoError(t, err)
	assert.Equal(t, checkout.StatusSucceeded, res.Status)
	assert.True(t, res.Sale.Total.Equal(models.MustMoney("16.50")))
	assert.Contains(t, port.buf.String(), "Fiş No:")

	cart, err := svc.GetCart(ctx, "cashier")
	require.NoError(t, err)
	assert.Empty(t, cart.Lines)

	p, _ := svc.GetProduct(ctx, cola)
	assert.Equal(t, 97, p.StockQuantity)
}

func TestCheckout_PrinterDisconnectedStillCommits(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, checkout.Options{AutoPrint: true})

	_, err := svc.AddToCart(ctx, "cashier", cola, 1)
	require.NoError(t, err)
	res, err := svc.Checkout(ctx, "cashier", models.PaymentCard)
	require.NoError(t, err)
	assert.Equal(t, checkout.StatusPrintFailed, res.Status)
	assert.ErrorIs(t, res.PrintErr, printer.ErrNotConnected)

	cart, _ := svc.GetCart(ctx, "cashier")
	assert.Empty(t, cart.Lines)
	assert.Equal(t, printer.Disconnected, svc.PrinterStatus().State)
}

func TestCheckout_RejectedKeepsCart(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, checkout.Options{})

	_, err := svc.AddToCart(ctx, "cashier", cola, 2)
	require.NoError(t, err)
	_, err = svc.AdjustStock(ctx, "manager", cola, 1, "Sayım")
	require.NoError(t, err)

	_, err = svc.Checkout(ctx, "cashier", models.PaymentCash)
	assert.ErrorIs(t, err, inventory.ErrInsufficientStock)
	cart, _ := svc.GetCart(ctx, "cashier")
	assert.Len(t, cart.Lines, 1)

	_, err = svc.Checkout(ctx, "cashier", "bitcoin")
	var ve *checkout.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestStockOperations_AreAudited(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, checkout.Options{})

	_, err := svc.StockIn(ctx, "manager", cola, 20, "Tedarikçi")
	require.NoError(t, err)
	_, err = svc.StockOut(ctx, "manager", cola, 500, "Fire")
	assert.ErrorIs(t, err, inventory.ErrInsufficientStock)
	mv, err := svc.AdjustStock(ctx, "manager", cola, 110, "Sayım")
	require.NoError(t, err)
	assert.Equal(t, -10, mv.Quantity)
	_, err = svc.StockIn(ctx, "", cola, 1, "")
	assert.Error(t, err)

	logs, err := svc.Logs(ctx)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, audit.ActionStockUpdate, logs[0].Action)
	assert.Equal(t, cola+": 100 → 120", logs[0].Details)
	assert.Equal(t, audit.ActionStockAdjustment, logs[1].Action)
}

func TestReceiptPreview_MatchesSale(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, checkout.Options{})
	_, err := svc.AddToCart(ctx, "cashier", cola, 2)
	require.NoError(t, err)
	_, err = svc.AddToCart(ctx, "cashier", "8690504043355", 1)
	require.NoError(t, err)
	res, err := svc.Checkout(ctx, "cashier", models.PaymentCash)
	require.NoError(t, err)

	pv, err := svc.ReceiptPreview(ctx, res.Sale.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Sale.ID, pv.SaleID)
	assert.Equal(t, 2, pv.LineCount)
	assert.True(t, pv.Total.Equal(models.MustMoney("19.75")))
	assert.True(t, strings.Contains(pv.Text, "TOPLAM:"))

	err = svc.Reprint(ctx, "cashier", res.Sale.ID)
	var pe *printer.PrintError
	assert.True(t, errors.As(err, &pe))
}

func TestProducts_CreateUpdateDelete(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, checkout.Options{})

	p, err := svc.CreateProduct(ctx, "admin", models.Product{Barcode: "111", Name: "Çay 500g", UnitPrice: models.MustMoney("45.00"), StockQuantity: 4, MinStockLevel: 5})
	require.NoError(t, err)
	assert.Equal(t, 4, p.StockQuantity)

	low, err := svc.LowStock(ctx)
	require.NoError(t, err)
	require.Len(t, low, 1)
	assert.Equal(t, "111", low[0].Barcode)

	p.Name = "Çay 1kg"
	p.StockQuantity = 0
	p, err = svc.UpdateProduct(ctx, "admin", p)
	require.NoError(t, err)
	assert.Equal(t, 4, p.StockQuantity)

	require.NoError(t, svc.DeleteProduct(ctx, "admin", "111"))
	_, err = svc.GetProduct(ctx, "111")
	assert.ErrorIs(t, err, inventory.ErrProductNotFound)
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, checkout.Options{})
	var buf bytes.Buffer
	require.NoError(t, svc.Export(ctx, "admin", &buf))

	other, _ := newTestService(t, checkout.Options{})
	_, err := other.StockIn(ctx, "manager", cola, 1, "")
	require.NoError(t, err)
	sum, err := other.Import(ctx, "admin", &buf)
	require.NoError(t, err)
	assert.Equal(t, 5, sum.Products)

	p, _ := other.GetProduct(ctx, cola)
	assert.Equal(t, 100, p.StockQuantity)
}
