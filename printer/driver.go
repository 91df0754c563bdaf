package printer

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"market-pos/escpos"
	"market-pos/receipt"
)

// Status is a snapshot of the printer connection.
type Status struct {
	State     State  `json:"state"`
	Port      string `json:"port"`
	LastError string `json:"lastError,omitempty"`
}

// Driver prints receipts over a Transport. Prints never queue behind a
// missing connection: they fail fast. Concurrent prints are serialized so
// their bytes never interleave on the wire.
type Driver struct {
	transport *Transport
	port      string
	layout    receipt.Layout
	log       logrus.FieldLogger
	now       func() time.Time

	sem *semaphore.Weighted
}

func NewDriver(t *Transport, defaultPort string, layout receipt.Layout, log logrus.FieldLogger) *Driver {
	return &Driver{
		transport: t,
		port:      defaultPort,
		layout:    layout,
		log:       log,
		now:       time.Now,
		sem:       semaphore.NewWeighted(1),
	}
}

// Connect opens port (the configured one when empty) and sends the Hugin
// init sequence. A failed handshake leaves the driver in Error.
func (d *Driver) Connect(ctx context.Context, port string) error {
	if port == "" {
		port = d.port
	}
	if d.IsConnected() {
		return nil
	}
	if err := d.transport.Open(ctx, port); err != nil {
		return err
	}
	handshake := append(escpos.Init.Bytes(), escpos.TurkishCharset.Bytes()...)
	if err := d.write(ctx, handshake); err != nil {
		d.transport.fail(&ConnectionError{Port: port, Err: err})
		d.log.WithFields(logrus.Fields{"port": port, "error": err}).Warn("printer_handshake_failed")
		return d.transport.LastError()
	}
	return nil
}

// Disconnect is safe to call in any state, any number of times.
func (d *Driver) Disconnect() {
	d.transport.Close()
}

func (d *Driver) IsConnected() bool {
	return d.transport.State() == Connected
}

func (d *Driver) State() State {
	return d.transport.State()
}

func (d *Driver) Status() Status {
	st := Status{State: d.transport.State(), Port: d.transport.Selector()}
	if st.Port == "" {
		st.Port = d.port
	}
	if err := d.transport.LastError(); err != nil {
		st.LastError = err.Error()
	}
	return st
}

// Layout is the receipt layout used for printing and previews.
func (d *Driver) Layout() receipt.Layout {
	return d.layout
}

// Print encodes and sends job. It fails with a PrintError wrapping
// ErrNotConnected when there is no connection, without touching the state.
func (d *Driver) Print(ctx context.Context, job receipt.Job) error {
	data, err := receipt.Encode(job, d.layout)
	if err != nil {
		return &PrintError{Job: job.SaleID, Err: err}
	}
	if err := d.send(ctx, data); err != nil {
		d.log.WithFields(logrus.Fields{"sale_id": job.SaleID, "error": err}).Warn("receipt_print_failed")
		return &PrintError{Job: job.SaleID, Err: err}
	}
	d.log.WithFields(logrus.Fields{"sale_id": job.SaleID, "bytes": len(data)}).Info("receipt_printed")
	return nil
}

// PrintTest prints the fixed self-test receipt.
func (d *Driver) PrintTest(ctx context.Context) error {
	return d.Print(ctx, receipt.TestJob(d.now()))
}

// OpenDrawer sends the cash drawer kick pulse.
func (d *Driver) OpenDrawer(ctx context.Context) error {
	if err := d.send(ctx, escpos.OpenDrawer.Bytes()); err != nil {
		return &PrintError{Err: err}
	}
	return nil
}

func (d *Driver) send(ctx context.Context, data []byte) error {
	if !d.IsConnected() {
		return ErrNotConnected
	}
	return d.write(ctx, data)
}

// write is the only path to the transport; holding sem keeps jobs and the
// handshake from interleaving on the wire.
func (d *Driver) write(ctx context.Context, data []byte) error {
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer d.sem.Release(1)
	return d.transport.Write(ctx, data)
}
