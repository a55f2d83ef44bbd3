// Package radio implements the framed serial link between the vehicle
// and the ground station: a non-blocking byte transport (Transport), a
// closed packet taxonomy (Motion, Diagnostic), and the streaming
// framer/parser plus handshake (Link).
package radio

import (
	"fmt"
	"time"

	"go.bug.st/serial"

	"github.com/aeroquad/flightcore/internal/byteorder"
	"github.com/aeroquad/flightcore/internal/bytequeue"
	"github.com/aeroquad/flightcore/internal/xerrors"
)

// Parity selects the serial parity mode.
type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
)

// supportedBauds is the enumerated rate set spec §4.3 allows.
var supportedBauds = map[int]bool{
	1200: true, 1800: true, 2400: true, 4800: true, 9600: true,
	19200: true, 38400: true, 57600: true, 115200: true, 230400: true,
}

// Transport wraps a serial device, buffering non-blocking reads into a
// ByteQueue so RadioLink's parser never blocks.
type Transport struct {
	port     serial.Port
	baud     int
	parity   Parity
	dataBits int
	stopBits serial.StopBits
	buf      *bytequeue.Queue
}

// Open opens the named serial device at the given baud/parity, 8 data
// bits, one stop bit — matching spec §6's "57600 baud, 8-bit, even
// parity, one stop bit (configurable)".
func Open(portPath string, baud int, parity Parity) (*Transport, error) {
	t := &Transport{dataBits: 8, stopBits: serial.OneStopBit, buf: bytequeue.New()}
	if err := t.SetBaud(baud); err != nil {
		return nil, err
	}
	t.SetParity(parity)

	port, err := serial.Open(portPath, t.mode())
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", xerrors.ErrRadio, portPath, err)
	}
	if err := port.SetReadTimeout(50 * time.Millisecond); err != nil {
		port.Close()
		return nil, fmt.Errorf("%w: set read timeout: %v", xerrors.ErrRadio, err)
	}
	t.port = port
	return t, nil
}

func (t *Transport) mode() *serial.Mode {
	p := serial.NoParity
	switch t.parity {
	case ParityOdd:
		p = serial.OddParity
	case ParityEven:
		p = serial.EvenParity
	}
	return &serial.Mode{
		BaudRate: t.baud,
		DataBits: t.dataBits,
		Parity:   p,
		StopBits: t.stopBits,
	}
}

// SetBaud validates and sets the baud rate. Unsupported rates are a
// ConfigError, failed fast.
func (t *Transport) SetBaud(rate int) error {
	if !supportedBauds[rate] {
		return fmt.Errorf("%w: unsupported baud rate %d", xerrors.ErrConfig, rate)
	}
	t.baud = rate
	if t.port != nil {
		return t.port.SetMode(t.mode())
	}
	return nil
}

// SetParity sets the parity mode.
func (t *Transport) SetParity(p Parity) {
	t.parity = p
	if t.port != nil {
		t.port.SetMode(t.mode())
	}
}

// Close closes the underlying serial device.
func (t *Transport) Close() error {
	if t.port == nil {
		return nil
	}
	return t.port.Close()
}

// Write writes bytes to the serial device; non-blocking.
func (t *Transport) Write(b []byte) (int, error) {
	n, err := t.port.Write(b)
	if err != nil {
		return n, fmt.Errorf("%w: write: %v", xerrors.ErrRadio, err)
	}
	return n, nil
}

// drain reads everything currently available from the OS port (without
// blocking beyond the short read timeout) into the internal queue.
func (t *Transport) drain() error {
	buf := make([]byte, 256)
	for {
		n, err := t.port.Read(buf)
		if err != nil {
			return fmt.Errorf("%w: read: %v", xerrors.ErrRadio, err)
		}
		if n == 0 {
			return nil
		}
		t.buf.Push(buf[:n])
		if n < len(buf) {
			return nil
		}
	}
}

// ReadInto drains all currently buffered bytes into the internal queue,
// then returns up to max bytes from it (max == 0 means "all available").
func (t *Transport) ReadInto(dst []byte, max int) (int, error) {
	if err := t.drain(); err != nil {
		return 0, err
	}
	if max == 0 || max > len(dst) {
		max = len(dst)
	}
	return t.buf.PopInto(dst[:max]), nil
}

// QueuedSize drains the port then reports how many bytes are buffered.
func (t *Transport) QueuedSize() (int, error) {
	if err := t.drain(); err != nil {
		return 0, err
	}
	return t.buf.Len(), nil
}

// ReadBE16 returns a big-endian uint16 only if 2 bytes are available.
func (t *Transport) ReadBE16() (uint16, bool, error) {
	if err := t.drain(); err != nil {
		return 0, false, err
	}
	if t.buf.Len() < 2 {
		return 0, false, nil
	}
	var tmp [2]byte
	t.buf.PopInto(tmp[:])
	v, _ := byteorder.FromBigEndian16(tmp[:])
	return v, true, nil
}

// ReadBE32 returns a big-endian uint32 only if 4 bytes are available.
func (t *Transport) ReadBE32() (uint32, bool, error) {
	if err := t.drain(); err != nil {
		return 0, false, err
	}
	if t.buf.Len() < 4 {
		return 0, false, nil
	}
	var tmp [4]byte
	t.buf.PopInto(tmp[:])
	v, _ := byteorder.FromBigEndian32(tmp[:])
	return v, true, nil
}

// WriteBE16 writes v as big-endian.
func (t *Transport) WriteBE16(v uint16) error {
	var b [2]byte
	byteorder.PutBigEndian16(b[:], v)
	_, err := t.Write(b[:])
	return err
}

// WriteBE32 writes v as big-endian.
func (t *Transport) WriteBE32(v uint32) error {
	var b [4]byte
	byteorder.PutBigEndian32(b[:], v)
	_, err := t.Write(b[:])
	return err
}
