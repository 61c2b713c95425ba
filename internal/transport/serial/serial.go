// Package serial implements transport.Transport over a local serial line
// using go.bug.st/serial, the same library the teacher package uses for its
// own GNSS stream I/O.
package serial

import (
	"fmt"
	"time"

	goserial "go.bug.st/serial"

	"github.com/relabs-tech/rtkctl/internal/transport"
)

// Transport is a transport.Transport backed by a local serial device,
// opened 8-N-1, no flow control, raw mode, non-blocking.
type Transport struct {
	Port string
	Baud int

	port goserial.Port
}

// New returns a serial transport for portName at baudRate. If baudRate is
// zero, transport.DefaultBaudRate is used.
func New(portName string, baudRate int) *Transport {
	if baudRate == 0 {
		baudRate = transport.DefaultBaudRate
	}
	return &Transport{Port: portName, Baud: baudRate}
}

// Open places the line in 8-N-1 raw mode with no flow control.
func (t *Transport) Open() error {
	mode := &goserial.Mode{
		BaudRate: t.Baud,
		DataBits: 8,
		StopBits: goserial.OneStopBit,
		Parity:   goserial.NoParity,
	}
	p, err := goserial.Open(t.Port, mode)
	if err != nil {
		return fmt.Errorf("open serial port %s: %w", t.Port, err)
	}
	t.port = p
	return nil
}

// Write sends p verbatim.
func (t *Transport) Write(p []byte) (int, error) {
	n, err := t.port.Write(p)
	if err != nil {
		return n, fmt.Errorf("serial write: %w", err)
	}
	return n, nil
}

// Read blocks up to timeout waiting for data. go.bug.st/serial exposes a
// per-port read deadline via SetReadTimeout, so each Read call reinstalls
// it: the device link is idle between reads and callers use varying
// timeouts across the protocol (1000-2000ms per spec).
func (t *Transport) Read(buf []byte, timeout time.Duration) (int, error) {
	if err := t.port.SetReadTimeout(timeout); err != nil {
		return 0, fmt.Errorf("set read timeout: %w", err)
	}
	n, err := t.port.Read(buf)
	if err != nil {
		return 0, fmt.Errorf("serial read: %w", err)
	}
	// go.bug.st/serial returns (0, nil) on its own read-timeout condition,
	// matching the (0, nil)-on-timeout contract directly.
	return n, nil
}

// Close restores the port to the OS and releases the descriptor.
func (t *Transport) Close() error {
	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	if err != nil {
		return fmt.Errorf("close serial port: %w", err)
	}
	return nil
}

var _ transport.Transport = (*Transport)(nil)
