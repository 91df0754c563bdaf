// Package printer drives a serial receipt printer: a Transport that owns the
// device handle and a Driver that speaks the receipt protocol over it.
package printer

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Error
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Error:
		return "error"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Port is an open device handle.
type Port interface {
	io.WriteCloser
}

// Opener opens the device a selector names, e.g. "/dev/ttyUSB0" or "COM3".
type Opener interface {
	Open(ctx context.Context, selector string) (Port, error)
}

type OpenerFunc func(ctx context.Context, selector string) (Port, error)

func (f OpenerFunc) Open(ctx context.Context, selector string) (Port, error) { return f(ctx, selector) }

type openResult struct {
	port Port
	err  error
}

// Transport owns at most one open port. Only one Open may be in flight; a
// caller that gives up on Open does not abandon the attempt, which still
// settles to Connected or Error (or, after Close, releases the late port).
type Transport struct {
	opener       Opener
	openTimeout  time.Duration
	writeTimeout time.Duration
	log          logrus.FieldLogger

	mu       sync.Mutex
	state    State
	port     Port
	selector string
	gen      uint64
	lastErr  error

	// slot is held from the start of a port write until the port returns,
	// which can be after Write itself gave up on a timeout.
	slot chan struct{}
}

func NewTransport(opener Opener, openTimeout, writeTimeout time.Duration, log logrus.FieldLogger) *Transport {
	return &Transport{
		opener:       opener,
		openTimeout:  openTimeout,
		writeTimeout: writeTimeout,
		log:          log,
		slot:         make(chan struct{}, 1),
	}
}

func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Selector is the port of the current or last connection attempt.
func (t *Transport) Selector() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.selector
}

// LastError is the error that put the transport in the Error state.
func (t *Transport) LastError() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastErr
}

// Open connects to selector. Opening while already connected is a no-op.
func (t *Transport) Open(ctx context.Context, selector string) error {
	t.mu.Lock()
	switch t.state {
	case Connecting:
		t.mu.Unlock()
		return ErrBusy
	case Connected:
		t.mu.Unlock()
		return nil
	}
	t.state = Connecting
	t.selector = selector
	t.lastErr = nil
	t.gen++
	gen := t.gen
	t.mu.Unlock()

	openCtx := context.WithoutCancel(ctx)
	cancel := context.CancelFunc(func() {})
	if t.openTimeout > 0 {
		openCtx, cancel = context.WithTimeout(openCtx, t.openTimeout)
	}

	done := make(chan error, 1)
	go func() {
		defer cancel()
		done <- t.settle(openCtx, gen, selector)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		t.log.WithField("port", selector).Info("printer_connect_abandoned")
		return ctx.Err()
	}
}

// settle waits for the opener and records the outcome unless the attempt
// was overtaken by Close.
func (t *Transport) settle(ctx context.Context, gen uint64, selector string) error {
	ch := make(chan openResult, 1)
	go func() {
		p, err := t.opener.Open(ctx, selector)
		ch <- openResult{port: p, err: err}
	}()

	var res openResult
	select {
	case res = <-ch:
	case <-ctx.Done():
		res.err = ErrOpenTimeout
		go func() {
			if late := <-ch; late.port != nil {
				_ = late.port.Close()
			}
		}()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gen != gen {
		if res.port != nil {
			_ = res.port.Close()
		}
		return ErrAborted
	}
	if res.err != nil {
		t.state = Error
		t.lastErr = &ConnectionError{Port: selector, Err: res.err}
		t.log.WithFields(logrus.Fields{"port": selector, "error": res.err}).Warn("printer_connect_failed")
		return t.lastErr
	}
	t.state = Connected
	t.port = res.port
	t.log.WithField("port", selector).Info("printer_connected")
	return nil
}

// Write sends p to the open port. Failures do not change the state. A write
// that timed out still occupies the port until the device takes or rejects
// the bytes; later writes wait for it instead of interleaving.
func (t *Transport) Write(ctx context.Context, p []byte) error {
	if t.State() != Connected {
		return ErrNotConnected
	}
	if t.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.writeTimeout)
		defer cancel()
	}
	select {
	case t.slot <- struct{}{}:
	case <-ctx.Done():
		return &WriteError{Err: ctx.Err()}
	}

	t.mu.Lock()
	port, state := t.port, t.state
	t.mu.Unlock()
	if state != Connected || port == nil {
		<-t.slot
		return ErrNotConnected
	}

	ch := make(chan error, 1)
	go func() {
		_, err := port.Write(p)
		<-t.slot
		ch <- err
	}()
	select {
	case err := <-ch:
		if err != nil {
			return &WriteError{Err: err}
		}
		return nil
	case <-ctx.Done():
		return &WriteError{Err: ctx.Err()}
	}
}

// Close releases the port from any state and always ends Disconnected.
func (t *Transport) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gen++
	if t.port != nil {
		if err := t.port.Close(); err != nil {
			t.log.WithError(err).Warn("printer_close_failed")
		}
		t.port = nil
	}
	if t.state != Disconnected {
		t.log.WithField("port", t.selector).Info("printer_disconnected")
	}
	t.state = Disconnected
	t.lastErr = nil
}

// fail closes the port and records err, leaving the transport in Error.
func (t *Transport) fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.gen++
	if t.port != nil {
		_ = t.port.Close()
		t.port = nil
	}
	t.state = Error
	t.lastErr = err
}
