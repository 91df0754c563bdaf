package printer

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrBusy is returned when a connection attempt is already in flight.
	ErrBusy         = errors.New("printer: connection attempt in progress")
	ErrNotConnected = errors.New("printer: not connected")
	ErrOpenTimeout  = errors.New("printer: open timed out")
	// ErrAborted is returned to a pending connect that was overtaken by Close.
	ErrAborted = errors.New("printer: connection attempt aborted")
)

// ConnectionError is a failed attempt to open the device.
type ConnectionError struct {
	Port string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("printer: connect %s: %v", e.Port, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// WriteError is a failed or timed out write to an open device.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string { return "printer: write: " + e.Err.Error() }

func (e *WriteError) Unwrap() error { return e.Err }

// PrintError is returned by Driver print operations.
type PrintError struct {
	Job string
	Err error
}

func (e *PrintError) Error() string {
	if e.Job == "" {
		return "printer: print failed: " + e.Err.Error()
	}
	return fmt.Sprintf("printer: print %s failed: %v", e.Job, e.Err)
}

func (e *PrintError) Unwrap() error { return e.Err }
