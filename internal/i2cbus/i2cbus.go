// Package i2cbus wraps a periph.io i2c.Bus with the queued
// write/read/transaction semantics spec §4.6 requires: operations are
// enqueued, then flushed as a single batch against the physical bus,
// and a failed flush leaves the queue untouched for the caller to
// retry or abandon.
package i2cbus

import (
	"fmt"

	"github.com/aeroquad/flightcore/internal/xerrors"
)

// Conn is the slice of periph.io's i2c.Bus this package depends on.
// Narrowing to just Tx keeps the test double trivial and matches how
// the rest of the periph ecosystem narrows conn.Conn when a full bus
// handle isn't needed.
type Conn interface {
	Tx(addr uint16, w, r []byte) error
}

// segment is one queued operation: a write of Out, or a read of Len
// bytes, or both (a combined write-then-read "transaction" segment).
type segment struct {
	addr uint16
	out  []byte
	in   []byte // nil length determines read size; filled in place on flush
}

// Bus serializes access to a single physical I2C bus across possibly
// many devices, remembering which address each queued segment targets
// so callers never have to interleave addressing themselves.
type Bus struct {
	conn  Conn
	queue []segment
}

// New wraps an already-opened periph i2c.Bus (or any Conn-compatible
// handle).
func New(conn Conn) *Bus {
	return &Bus{conn: conn}
}

// EnqueueWrite queues a write-only segment to addr.
func (b *Bus) EnqueueWrite(addr uint16, out []byte) {
	cp := make([]byte, len(out))
	copy(cp, out)
	b.queue = append(b.queue, segment{addr: addr, out: cp})
}

// EnqueueRead queues a read-only segment of n bytes from addr. The
// result is retrievable from the Results returned by Flush, in queue
// order.
func (b *Bus) EnqueueRead(addr uint16, n int) {
	b.queue = append(b.queue, segment{addr: addr, in: make([]byte, n)})
}

// EnqueueTransaction queues a combined write-then-read segment: out is
// written, then n bytes are read back, both addressed to addr in a
// single i2c.Bus.Tx call at flush time.
func (b *Bus) EnqueueTransaction(addr uint16, out []byte, n int) {
	cp := make([]byte, len(out))
	copy(cp, out)
	b.queue = append(b.queue, segment{addr: addr, out: cp, in: make([]byte, n)})
}

// Pending reports how many segments are queued.
func (b *Bus) Pending() int {
	return len(b.queue)
}

// Flush executes every queued segment in order against the physical
// bus and returns the read results (nil entries for write-only
// segments), in queue order. On the first failing segment, Flush stops
// and returns an I2cError; the entire queue — including segments not
// yet attempted — is left intact so the caller can retry.
func (b *Bus) Flush() ([][]byte, error) {
	results := make([][]byte, len(b.queue))
	for i, seg := range b.queue {
		if err := b.conn.Tx(seg.addr, seg.out, seg.in); err != nil {
			return nil, fmt.Errorf("%w: addr 0x%02X: %v", xerrors.ErrI2C, seg.addr, err)
		}
		results[i] = seg.in
	}
	b.queue = b.queue[:0]
	return results, nil
}

// SendTransaction is a convenience wrapper for the common
// enqueue-one/flush-immediately case: write out, read n bytes, addr
// sticky for the duration of the call only.
func (b *Bus) SendTransaction(addr uint16, out []byte, n int) ([]byte, error) {
	b.EnqueueTransaction(addr, out, n)
	results, err := b.Flush()
	if err != nil {
		return nil, err
	}
	// Segments left queued by an earlier failed flush run first; this
	// call's segment is the last one.
	return results[len(results)-1], nil
}

// Discard drops all queued segments without executing them.
func (b *Bus) Discard() {
	b.queue = b.queue[:0]
}
