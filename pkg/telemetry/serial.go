package telemetry

import (
	"io"
	"sync"

	"github.com/pkg/errors"
	"go.bug.st/serial"
)

const DefaultBaudRate = 115200

// SerialSink writes frames as lines to a serial port, e.g. a USB-serial
// link to a base station.
type SerialSink struct {
	lock sync.Mutex
	port io.WriteCloser
}

func OpenSerial(path string, baud int) (*SerialSink, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open serial port %s", path)
	}
	return NewSerialSink(port), nil
}

func NewSerialSink(port io.WriteCloser) *SerialSink {
	return &SerialSink{port: port}
}

var _ Sink = (*SerialSink)(nil)

func (s *SerialSink) Send(f Frame) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if _, err := io.WriteString(s.port, f.String()+"\n"); err != nil {
		return errors.Wrap(err, "serial write failed")
	}
	return nil
}

func (s *SerialSink) Close() error {
	return s.port.Close()
}
