// Package checkout turns an operator's cart into a recorded sale, books the
// stock movements and prints the receipt.
//
// A commit moves through Building, Validating, Committing, Printing and Done.
// Anything that fails before the sale is appended leaves no trace. Appending
// the sale is the point of no return: later failures (a stock write, the
// activity log, the printer) are reported on a successful Result and never
// undo the sale.
package checkout

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"market-pos/audit"
	"market-pos/inventory"
	models "market-pos/model"
	"market-pos/printer"
	"market-pos/receipt"
	"market-pos/session"
)

type Stage int

const (
	Building Stage = iota
	Validating
	Committing
	Printing
	Done
)

func (s Stage) String() string {
	return [...]string{"building", "validating", "committing", "printing", "done"}[s]
}

type Status string

const (
	StatusSucceeded   Status = "succeeded"
	StatusPrintFailed Status = "succeeded-with-print-failure"
)

type Request struct {
	Lines   []session.Line
	Actor   string
	Payment models.PaymentMethod
}

type Result struct {
	Sale     models.Sale `json:"sale"`
	Status   Status      `json:"status"`
	PrintErr error       `json:"-"`
	Warnings []string    `json:"warnings,omitempty"`
}

// Inventory is the stock side of a commit.
type Inventory interface {
	Batch(ctx context.Context, barcodes []string, fn func(b *inventory.Batch) error) error
}

type SaleLedger interface {
	Append(ctx context.Context, s models.Sale) error
}

type Printer interface {
	Print(ctx context.Context, job receipt.Job) error
}

type Auditor interface {
	Sale(ctx context.Context, user string, s models.Sale) error
	Stock(ctx context.Context, user, action string, mv models.StockMovement) error
}

type Options struct {
	AutoPrint bool
	// PrintTimeout bounds the print step; zero means no bound.
	PrintTimeout time.Duration
}

type Pipeline struct {
	inv     Inventory
	sales   SaleLedger
	printer Printer
	audit   Auditor
	opts    Options
	log     logrus.FieldLogger
	now     func() time.Time

	// observe, when set, is told about every stage entered.
	observe func(Stage)
}

// NewPipeline wires a pipeline. printer may be nil, in which case receipts
// fail with printer.ErrNotConnected when auto-print is on.
func NewPipeline(inv Inventory, sales SaleLedger, p Printer, a Auditor, opts Options, log logrus.FieldLogger) *Pipeline {
	return &Pipeline{
		inv:     inv,
		sales:   sales,
		printer: p,
		audit:   a,
		opts:    opts,
		log:     log,
		now:     time.Now,
	}
}

func (p *Pipeline) enter(s Stage, fields logrus.Fields) {
	p.log.WithFields(fields).WithField("stage", s.String()).Debug("checkout_stage")
	if p.observe != nil {
		p.observe(s)
	}
}

// Commit records the sale described by req. An error means nothing was
// recorded; a Result means the sale exists, whatever its Status.
func (p *Pipeline) Commit(ctx context.Context, req Request) (Result, error) {
	p.enter(Building, logrus.Fields{"actor": req.Actor})
	lines, err := build(req)
	if err != nil {
		salesRejected.Add(1)
		return Result{}, err
	}

	barcodes := make([]string, len(lines))
	for i, l := range lines {
		barcodes[i] = l.Barcode
	}

	var (
		sale      models.Sale
		committed bool
		warnings  []string
	)
	err = p.inv.Batch(ctx, barcodes, func(b *inventory.Batch) error {
		p.enter(Validating, logrus.Fields{"lines": len(lines)})
		products, err := validate(ctx, b, lines)
		if err != nil {
			return err
		}

		p.enter(Committing, nil)
		sale = p.newSale(req, lines, products)
		if err := p.sales.Append(ctx, sale); err != nil {
			return errors.Wrap(err, "record sale")
		}
		committed = true
		warnings = p.applyStock(ctx, b, sale)
		return nil
	})
	if !committed {
		salesRejected.Add(1)
		p.log.WithFields(logrus.Fields{"actor": req.Actor, "error": err}).Info("sale_rejected")
		return Result{}, err
	}
	salesCommitted.Add(1)
	if err := p.audit.Sale(ctx, req.Actor, sale); err != nil {
		warnings = append(warnings, err.Error())
	}
	commitWarnings.Add(int64(len(warnings)))

	res := Result{Sale: sale, Status: StatusSucceeded, Warnings: warnings}
	p.log.WithFields(logrus.Fields{
		"sale_id":  sale.ID,
		"total":    sale.Total.StringFixed(2),
		"items":    sale.ItemCount(),
		"actor":    sale.Cashier,
		"warnings": len(warnings),
	}).Info("sale_committed")

	if p.opts.AutoPrint {
		p.enter(Printing, logrus.Fields{"sale_id": sale.ID})
		if err := p.print(ctx, sale); err != nil {
			printFailures.Add(1)
			res.Status, res.PrintErr = StatusPrintFailed, err
		}
	}
	p.enter(Done, logrus.Fields{"sale_id": sale.ID, "status": string(res.Status)})
	return res, nil
}

// build checks the request shape and merges repeated barcodes, keeping the
// order in which they first appear.
func build(req Request) ([]session.Line, error) {
	var problems []string
	if strings.TrimSpace(req.Actor) == "" {
		problems = append(problems, "operator is required")
	}
	if !req.Payment.Valid() {
		problems = append(problems, "payment method must be cash or card")
	}
	if len(req.Lines) == 0 {
		problems = append(problems, "cart is empty")
	}

	merged := make([]session.Line, 0, len(req.Lines))
	index := make(map[string]int, len(req.Lines))
	for _, l := range req.Lines {
		bc := strings.TrimSpace(l.Barcode)
		switch {
		case bc == "":
			problems = append(problems, "line without barcode")
			continue
		case l.Quantity < 1:
			problems = append(problems, "quantity for "+bc+" must be at least 1")
			continue
		}
		if i, ok := index[bc]; ok {
			merged[i].Quantity += l.Quantity
			continue
		}
		index[bc] = len(merged)
		merged = append(merged, session.Line{Barcode: bc, Quantity: l.Quantity})
	}
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	return merged, nil
}

// validate re-reads every product under the batch locks and collects all
// lines that cannot be covered.
func validate(ctx context.Context, b *inventory.Batch, lines []session.Line) ([]models.Product, error) {
	products := make([]models.Product, len(lines))
	var short []*inventory.InsufficientStockError
	for i, l := range lines {
		prod, err := b.Product(ctx, l.Barcode)
		if err != nil {
			return nil, err
		}
		products[i] = prod
		if prod.StockQuantity < l.Quantity {
			short = append(short, &inventory.InsufficientStockError{
				Barcode:   l.Barcode,
				Name:      prod.Name,
				Requested: l.Quantity,
				Available: prod.StockQuantity,
			})
		}
	}
	if len(short) > 0 {
		return nil, newStockError(short)
	}
	return products, nil
}

func (p *Pipeline) newSale(req Request, lines []session.Line, products []models.Product) models.Sale {
	sale := models.Sale{
		ID:            models.NewID(models.PrefixSale),
		Cashier:       req.Actor,
		PaymentMethod: req.Payment,
		Timestamp:     p.now(),
		Lines:         make([]models.SaleLine, len(lines)),
	}
	for i, l := range lines {
		prod := products[i]
		total := prod.UnitPrice.Mul(models.NewMoneyFromInt(l.Quantity))
		sale.Lines[i] = models.SaleLine{
			Barcode:   prod.Barcode,
			Name:      prod.Name,
			Quantity:  l.Quantity,
			UnitPrice: prod.UnitPrice,
			LineTotal: total,
		}
		sale.Total = sale.Total.Add(total)
	}
	return sale
}

// applyStock books one out movement per line. Failures here cannot undo the
// sale and come back as warnings.
func (p *Pipeline) applyStock(ctx context.Context, b *inventory.Batch, sale models.Sale) []string {
	var warnings []string
	reason := "Satış - " + sale.ID
	for _, l := range sale.Lines {
		mv, err := b.ApplyOut(ctx, l.Barcode, l.Quantity, sale.Cashier, reason)
		if err != nil {
			p.log.WithFields(logrus.Fields{"sale_id": sale.ID, "barcode": l.Barcode, "error": err}).Error("sale_stock_update_failed")
			warnings = append(warnings, "stock not updated for "+l.Barcode+": "+err.Error())
			continue
		}
		if err := p.audit.Stock(ctx, sale.Cashier, audit.ActionStockUpdate, mv); err != nil {
			warnings = append(warnings, err.Error())
		}
	}
	return warnings
}

// print runs on a context detached from the caller so an abandoned request
// does not cut a receipt in half.
func (p *Pipeline) print(ctx context.Context, sale models.Sale) error {
	if p.printer == nil {
		return &printer.PrintError{Job: sale.ID, Err: printer.ErrNotConnected}
	}
	pctx := context.WithoutCancel(ctx)
	if p.opts.PrintTimeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(pctx, p.opts.PrintTimeout)
		defer cancel()
	}
	return p.printer.Print(pctx, receipt.FromSale(sale))
}
