package printer

import (
	"context"

	"github.com/pkg/errors"
	"go.bug.st/serial"
)

// Line settings of the Hugin T300 family.
const (
	BaudRate = 9600
	DataBits = 8
)

// SerialOpener opens serial ports at 9600 8N1.
type SerialOpener struct {
	Mode *serial.Mode
}

func NewSerialOpener() *SerialOpener {
	return &SerialOpener{Mode: &serial.Mode{
		BaudRate: BaudRate,
		DataBits: DataBits,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}}
}

// Open ignores ctx: the serial library has no cancellable open, so the
// Transport bounds it instead.
func (o *SerialOpener) Open(_ context.Context, name string) (Port, error) {
	p, err := serial.Open(name, o.Mode)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", name)
	}
	return p, nil
}

// ListPorts returns the serial devices present on this machine.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, errors.Wrap(err, "list serial ports")
	}
	return ports, nil
}
