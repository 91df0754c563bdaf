package service

import (
	"context"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"market-pos/audit"
	"market-pos/backup"
	"market-pos/checkout"
	"market-pos/escpos"
	"market-pos/inventory"
	models "market-pos/model"
	"market-pos/printer"
	"market-pos/receipt"
	"market-pos/sales"
	"market-pos/session"
	"market-pos/store"
)

// ReceiptPreview is a sale's receipt as the printer would lay it out.
type ReceiptPreview struct {
	SaleID    string       `json:"saleId"`
	Text      string       `json:"text"`
	Total     models.Money `json:"total"`
	LineCount int          `json:"lineCount"`
	Bytes     int          `json:"bytes"`
}

// Service is the application facade used by the HTTP handlers and the CLI.
type Service struct {
	store    store.Store
	ledger   *inventory.Ledger
	sales    *sales.Ledger
	carts    *session.Manager
	pipeline *checkout.Pipeline
	printer  *printer.Driver
	audit    *audit.Recorder
	backup   *backup.Service
	log      logrus.FieldLogger
}

func NewService(st store.Store, drv *printer.Driver, opts checkout.Options, log logrus.FieldLogger) *Service {
	s := &Service{
		store:   st,
		ledger:  inventory.NewLedger(st, log.WithField("component", "inventory")),
		sales:   sales.NewLedger(st),
		printer: drv,
		audit:   audit.NewRecorder(st, log.WithField("component", "audit")),
		backup:  backup.NewService(st, log.WithField("component", "backup")),
		log:     log,
	}
	var pr checkout.Printer
	if drv != nil {
		pr = drv
	}
	s.carts = session.NewManager(s.ledger)
	s.pipeline = checkout.NewPipeline(s.ledger, s.sales, pr, s.audit, opts, log.WithField("component", "checkout"))
	return s
}

func requireActor(actor string) error {
	if strings.TrimSpace(actor) == "" {
		return session.ErrOperatorRequired
	}
	return nil
}

// warn logs an activity-log failure; the operation itself already happened.
func (s *Service) warn(err error) {
	if err != nil {
		s.log.WithError(err).Warn("activity_log_skipped")
	}
}

func (s *Service) ListProducts(ctx context.Context) ([]models.Product, error) {
	return s.ledger.Products(ctx)
}

func (s *Service) GetProduct(ctx context.Context, barcode string) (models.Product, error) {
	return s.ledger.Product(ctx, barcode)
}

func (s *Service) LowStock(ctx context.Context) ([]models.Product, error) {
	return s.ledger.LowStock(ctx)
}

func (s *Service) CreateProduct(ctx context.Context, actor string, p models.Product) (models.Product, error) {
	if err := requireActor(actor); err != nil {
		return models.Product{}, err
	}
	created, err := s.ledger.RegisterProduct(ctx, p, actor)
	if err != nil {
		return models.Product{}, err
	}
	s.warn(s.audit.Product(ctx, actor, audit.ActionProductAdd, created))
	return created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, actor string, p models.Product) (models.Product, error) {
	if err := requireActor(actor); err != nil {
		return models.Product{}, err
	}
	updated, err := s.ledger.UpdateProduct(ctx, p)
	if err != nil {
		return models.Product{}, err
	}
	s.warn(s.audit.Product(ctx, actor, audit.ActionProductUpdate, updated))
	return updated, nil
}

func (s *Service) DeleteProduct(ctx context.Context, actor, barcode string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	p, err := s.ledger.Product(ctx, barcode)
	if err != nil {
		return err
	}
	if err := s.ledger.DeleteProduct(ctx, barcode); err != nil {
		return err
	}
	s.warn(s.audit.Product(ctx, actor, audit.ActionProductDelete, p))
	return nil
}

func (s *Service) StockIn(ctx context.Context, actor, barcode string, qty int, reason string) (models.StockMovement, error) {
	if err := requireActor(actor); err != nil {
		return models.StockMovement{}, err
	}
	mv, err := s.ledger.ApplyIn(ctx, barcode, qty, actor, reason)
	if err != nil {
		return models.StockMovement{}, err
	}
	s.warn(s.audit.Stock(ctx, actor, audit.ActionStockUpdate, mv))
	return mv, nil
}

func (s *Service) StockOut(ctx context.Context, actor, barcode string, qty int, reason string) (models.StockMovement, error) {
	if err := requireActor(actor); err != nil {
		return models.StockMovement{}, err
	}
	mv, err := s.ledger.ApplyOut(ctx, barcode, qty, actor, reason)
	if err != nil {
		return models.StockMovement{}, err
	}
	s.warn(s.audit.Stock(ctx, actor, audit.ActionStockUpdate, mv))
	return mv, nil
}

func (s *Service) AdjustStock(ctx context.Context, actor, barcode string, newStock int, reason string) (models.StockMovement, error) {
	if err := requireActor(actor); err != nil {
		return models.StockMovement{}, err
	}
	mv, err := s.ledger.ApplyAdjustment(ctx, barcode, newStock, actor, reason)
	if err != nil {
		return models.StockMovement{}, err
	}
	s.warn(s.audit.Stock(ctx, actor, audit.ActionStockAdjustment, mv))
	return mv, nil
}

func (s *Service) Movements(ctx context.Context, barcode string) ([]models.StockMovement, error) {
	return s.ledger.Movements(ctx, barcode)
}

func (s *Service) AddToCart(ctx context.Context, operator, barcode string, qty int) (session.Cart, error) {
	return s.carts.Add(ctx, operator, barcode, qty)
}

func (s *Service) UpdateCart(ctx context.Context, operator, barcode string, qty int) (session.Cart, error) {
	return s.carts.Update(ctx, operator, barcode, qty)
}

func (s *Service) RemoveFromCart(ctx context.Context, operator, barcode string) (session.Cart, error) {
	return s.carts.Remove(ctx, operator, barcode)
}

func (s *Service) ClearCart(operator string) error {
	return s.carts.Clear(operator)
}

func (s *Service) GetCart(ctx context.Context, operator string) (session.Cart, error) {
	return s.carts.Cart(ctx, operator)
}

// Checkout commits the operator's cart. The cart is emptied once the sale is
// recorded, even if the receipt failed to print.
func (s *Service) Checkout(ctx context.Context, operator string, payment models.PaymentMethod) (checkout.Result, error) {
	var res checkout.Result
	err := s.carts.Checkout(operator, func(lines []session.Line) (bool, error) {
		var err error
		res, err = s.pipeline.Commit(ctx, checkout.Request{Lines: lines, Actor: operator, Payment: payment})
		return err == nil, err
	})
	return res, err
}

func (s *Service) ListSales(ctx context.Context) ([]models.Sale, error) {
	return s.sales.List(ctx)
}

func (s *Service) GetSale(ctx context.Context, id string) (models.Sale, error) {
	return s.sales.Get(ctx, id)
}

func (s *Service) ReceiptPreview(ctx context.Context, id string) (ReceiptPreview, error) {
	sale, err := s.sales.Get(ctx, id)
	if err != nil {
		return ReceiptPreview{}, err
	}
	layout := s.printer.Layout()
	data, err := receipt.Encode(receipt.FromSale(sale), layout)
	if err != nil {
		return ReceiptPreview{}, err
	}
	doc, err := escpos.Decode(data, layout.Encoding)
	if err != nil {
		return ReceiptPreview{}, errors.Wrap(err, "decode receipt")
	}
	sum, err := receipt.Summarize(doc)
	if err != nil {
		return ReceiptPreview{}, err
	}
	return ReceiptPreview{
		SaleID:    sum.SaleID,
		Text:      doc.Render(layout.Width),
		Total:     sum.Total,
		LineCount: sum.LineCount,
		Bytes:     len(data),
	}, nil
}

func (s *Service) Reprint(ctx context.Context, actor, id string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	sale, err := s.sales.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.printer.Print(ctx, receipt.FromSale(sale)); err != nil {
		return err
	}
	s.warn(s.audit.Record(ctx, actor, audit.ActionReceiptReprint, "Sale ID: "+id))
	return nil
}

func (s *Service) ConnectPrinter(ctx context.Context, actor, port string) (printer.Status, error) {
	err := s.printer.Connect(ctx, port)
	st := s.printer.Status()
	if err != nil {
		return st, err
	}
	s.warn(s.audit.Record(ctx, actor, audit.ActionPrinterConnect, st.Port))
	return st, nil
}

func (s *Service) DisconnectPrinter(actor string) printer.Status {
	s.printer.Disconnect()
	st := s.printer.Status()
	s.warn(s.audit.Record(context.Background(), actor, audit.ActionPrinterDisconnect, st.Port))
	return st
}

func (s *Service) PrinterStatus() printer.Status {
	return s.printer.Status()
}

func (s *Service) PrintTest(ctx context.Context, actor string) error {
	if err := s.printer.PrintTest(ctx); err != nil {
		return err
	}
	s.warn(s.audit.Record(ctx, actor, audit.ActionPrinterTest, ""))
	return nil
}

func (s *Service) OpenDrawer(ctx context.Context, actor string) error {
	return s.printer.OpenDrawer(ctx)
}

func (s *Service) Export(ctx context.Context, actor string, w io.Writer) error {
	if err := s.backup.Write(ctx, w); err != nil {
		return err
	}
	s.warn(s.audit.Record(ctx, actor, audit.ActionDataExport, ""))
	return nil
}

func (s *Service) Import(ctx context.Context, actor string, r io.Reader) (backup.ImportSummary, error) {
	sum, err := s.backup.Import(ctx, r)
	if err != nil {
		return sum, err
	}
	s.warn(s.audit.Record(ctx, actor, audit.ActionDataImport, ""))
	return sum, nil
}

func (s *Service) Logs(ctx context.Context) ([]models.LogEntry, error) {
	return s.audit.List(ctx)
}
