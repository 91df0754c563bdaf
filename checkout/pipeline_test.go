package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"market-pos/audit"
	"market-pos/inventory"
	models "market-pos/model"
	"market-pos/printer"
	"market-pos/receipt"
	"market-pos/sales"
	"market-pos/session"
	"market-pos/store"
)

type fakePrinter struct {
	mu   sync.Mutex
	err  error
	jobs []receipt.Job
}

func (f *fakePrinter) Print(ctx context.Context, job receipt.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return &printer.PrintError{Job: job.SaleID, Err: f.err}
	}
	f.jobs = append(f.jobs, job)
	return nil
}

// flakyStore fails stock writes for one barcode.
type flakyStore struct {
	*store.MemoryStore
	failBarcode string
}

func (s *flakyStore) CompareAndSetStock(ctx context.Context, barcode string, expected, next int, mv models.StockMovement) error {
	if barcode == s.failBarcode {
		return errors.New("disk full")
	}
	return s.MemoryStore.CompareAndSetStock(ctx, barcode, expected, next, mv)
}

type fixture struct {
	st       store.Store
	ledger   *inventory.Ledger
	sales    *sales.Ledger
	audit    *audit.Recorder
	pipeline *Pipeline
	stages   []Stage
}

func newFixture(t *testing.T, st store.Store, p Printer, opts Options) *fixture {
	t.Helper()
	log, _ := test.NewNullLogger()
	f := &fixture{st: st}
	f.ledger = inventory.NewLedger(st, log)
	f.sales = sales.NewLedger(st)
	f.audit = audit.NewRecorder(st, log)
	f.pipeline = NewPipeline(f.ledger, f.sales, p, f.audit, opts, log)
	f.pipeline.observe = func(s Stage) { f.stages = append(f.stages, s) }

	ctx := context.Background()
	for _, prod := range []models.Product{
		{Barcode: "X", Name: "Coca Cola 330ml", UnitPrice: models.MustMoney("5.50"), StockQuantity: 5, MinStockLevel: 1},
		{Barcode: "Y", Name: "Eti Crax 42g", UnitPrice: models.MustMoney("3.25"), StockQuantity: 2},
		{Barcode: "L", Name: "Son Ekmek", UnitPrice: models.MustMoney("4.00"), StockQuantity: 1},
	} {
		_, err := f.ledger.RegisterProduct(ctx, prod, "admin")
		require.NoError(t, err)
	}
	return f
}

func (f *fixture) stock(t *testing.T, barcode string) int {
	p, err := f.ledger.Product(context.Background(), barcode)
	require.NoError(t, err)
	return p.StockQuantity
}

func (f *fixture) outMovements(t *testing.T) []models.StockMovement {
	all, err := f.ledger.Movements(context.Background(), "")
	require.NoError(t, err)
	var out []models.StockMovement
	for _, m := range all {
		if m.Type == models.MovementOut {
			out = append(out, m)
		}
	}
	return out
}

func TestCommit_ThreeUnitsCash(t *testing.T) {
	pr := &fakePrinter{}
	f := newFixture(t, store.NewMemoryStore(), pr, Options{AutoPrint: true, PrintTimeout: time.Second})

	res, err := f.pipeline.Commit(context.Background(), Request{
		Lines:   []session.Line{{Barcode: "X", Quantity: 3}},
		Actor:   "kasiyer",
		Payment: models.PaymentCash,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, res.Status)
	assert.True(t, res.Sale.Total.Equal(models.MustMoney("16.50")))
	assert.Equal(t, 2, f.stock(t, "X"))

	outs := f.outMovements(t)
	require.Len(t, outs, 1)
	assert.Equal(t, 3, outs[0].Quantity)
	assert.Equal(t, "Satış - "+res.Sale.ID, outs[0].Reason)

	require.Len(t, pr.jobs, 1)
	assert.Equal(t, res.Sale.ID, pr.jobs[0].SaleID)
	assert.Equal(t, []Stage{Building, Validating, Committing, Printing, Done}, f.stages)

	stored, err := f.sales.Get(context.Background(), res.Sale.ID)
	require.NoError(t, err)
	assert.Equal(t, "Coca Cola 330ml", stored.Lines[0].Name)

	logs, err := f.audit.List(context.Background())
	require.NoError(t, err)
	var actions []string
	for _, l := range logs {
		actions = append(actions, l.Action)
	}
	assert.Equal(t, []string{audit.ActionStockUpdate, audit.ActionSaleCompleted}, actions)
}

func TestCommit_PrinterDisconnected(t *testing.T) {
	req := Request{Lines: []session.Line{{Barcode: "X", Quantity: 1}}, Actor: "kasiyer", Payment: models.PaymentCard}

	f := newFixture(t, store.NewMemoryStore(), &fakePrinter{err: printer.ErrNotConnected}, Options{AutoPrint: true})
	res, err := f.pipeline.Commit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, StatusPrintFailed, res.Status)
	assert.ErrorIs(t, res.PrintErr, printer.ErrNotConnected)
	assert.Equal(t, 4, f.stock(t, "X"))

	f = newFixture(t, store.NewMemoryStore(), &fakePrinter{err: printer.ErrNotConnected}, Options{AutoPrint: false})
	res, err = f.pipeline.Commit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, res.Status)
	assert.Nil(t, res.PrintErr)
	assert.NotContains(t, f.stages, Printing)

	f = newFixture(t, store.NewMemoryStore(), nil, Options{AutoPrint: true})
	res, err = f.pipeline.Commit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, StatusPrintFailed, res.Status)
	assert.ErrorIs(t, res.PrintErr, printer.ErrNotConnected)
}

func TestCommit_MovementPerDistinctBarcode(t *testing.T) {
	f := newFixture(t, store.NewMemoryStore(), nil, Options{})

	res, err := f.pipeline.Commit(context.Background(), Request{
		Lines: []session.Line{
			{Barcode: "X", Quantity: 1},
			{Barcode: "Y", Quantity: 2},
			{Barcode: "X", Quantity: 2},
		},
		Actor:   "kasiyer",
		Payment: models.PaymentCash,
	})
	require.NoError(t, err)
	require.Len(t, res.Sale.Lines, 2)
	assert.Equal(t, "X", res.Sale.Lines[0].Barcode)
	assert.Equal(t, 3, res.Sale.Lines[0].Quantity)
	assert.True(t, res.Sale.Total.Equal(models.MustMoney("23.00")))

	assert.Len(t, f.outMovements(t), 2)
	assert.Equal(t, 2, f.stock(t, "X"))
	assert.Equal(t, 0, f.stock(t, "Y"))
}

func TestCommit_InsufficientStockCollectsAllLines(t *testing.T) {
	f := newFixture(t, store.NewMemoryStore(), nil, Options{})

	_, err := f.pipeline.Commit(context.Background(), Request{
		Lines: []session.Line{
			{Barcode: "X", Quantity: 6},
			{Barcode: "Y", Quantity: 1},
			{Barcode: "L", Quantity: 2},
		},
		Actor:   "kasiyer",
		Payment: models.PaymentCash,
	})
	var se *StockError
	require.ErrorAs(t, err, &se)
	assert.ErrorIs(t, err, inventory.ErrInsufficientStock)
	require.Len(t, se.Lines, 2)
	assert.Equal(t, "X", se.Lines[0].Barcode)
	assert.Equal(t, "L", se.Lines[1].Barcode)

	assert.Equal(t, 5, f.stock(t, "X"))
	assert.Equal(t, 2, f.stock(t, "Y"))
	assert.Empty(t, f.outMovements(t))
	all, err := f.sales.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.NotContains(t, f.stages, Committing)
}

func TestCommit_ValidationErrors(t *testing.T) {
	f := newFixture(t, store.NewMemoryStore(), nil, Options{})

	_, err := f.pipeline.Commit(context.Background(), Request{Payment: "cheque"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Problems, 3)

	_, err = f.pipeline.Commit(context.Background(), Request{
		Lines:   []session.Line{{Barcode: "X", Quantity: 0}},
		Actor:   "kasiyer",
		Payment: models.PaymentCash,
	})
	require.ErrorAs(t, err, &ve)

	_, err = f.pipeline.Commit(context.Background(), Request{
		Lines:   []session.Line{{Barcode: "NOPE", Quantity: 1}},
		Actor:   "kasiyer",
		Payment: models.PaymentCash,
	})
	assert.ErrorIs(t, err, inventory.ErrProductNotFound)
	assert.Equal(t, []Stage{Building, Building, Building, Validating}, f.stages)
}

func TestCommit_ConcurrentLastUnit(t *testing.T) {
	f := newFixture(t, store.NewMemoryStore(), nil, Options{})
	f.pipeline.observe = nil

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.pipeline.Commit(context.Background(), Request{
				Lines:   []session.Line{{Barcode: "L", Quantity: 1}},
				Actor:   "kasiyer",
				Payment: models.PaymentCash,
			})
		}(i)
	}
	wg.Wait()

	var ok, short int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, inventory.ErrInsufficientStock):
			short++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, short)
	assert.Equal(t, 0, f.stock(t, "L"))
}

func TestCommit_StockWriteFailureIsAWarning(t *testing.T) {
	st := &flakyStore{MemoryStore: store.NewMemoryStore()}
	f := newFixture(t, st, nil, Options{})
	st.failBarcode = "Y"

	res, err := f.pipeline.Commit(context.Background(), Request{
		Lines:   []session.Line{{Barcode: "X", Quantity: 1}, {Barcode: "Y", Quantity: 1}},
		Actor:   "kasiyer",
		Payment: models.PaymentCash,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, res.Status)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "Y")
	assert.Equal(t, 4, f.stock(t, "X"))
	assert.Equal(t, 2, f.stock(t, "Y"))

	_, err = f.sales.Get(context.Background(), res.Sale.ID)
	assert.NoError(t, err)
}

func TestCommit_PrintFailureKeepsSale(t *testing.T) {
	pr := &fakePrinter{err: &printer.WriteError{Err: errors.New("paper out")}}
	f := newFixture(t, store.NewMemoryStore(), pr, Options{AutoPrint: true})

	ctx, cancel := context.WithCancel(context.Background())
	res, err := f.pipeline.Commit(ctx, Request{
		Lines:   []session.Line{{Barcode: "Y", Quantity: 2}},
		Actor:   "kasiyer",
		Payment: models.PaymentCash,
	})
	cancel()
	require.NoError(t, err)
	assert.Equal(t, StatusPrintFailed, res.Status)
	var we *printer.WriteError
	assert.ErrorAs(t, res.PrintErr, &we)
	assert.Equal(t, 0, f.stock(t, "Y"))
}
