package i2cbus

import (
	"errors"
	"testing"
)

// fakeConn records every Tx call and can be set to fail on a given call
// index, matching the queue-preserved-on-failure invariant.
type fakeConn struct {
	calls   []call
	failAt  int // -1 means never fail
	nextErr error
}

type call struct {
	addr   uint16
	out    []byte
	inLen  int
	result []byte
}

func (f *fakeConn) Tx(addr uint16, w, r []byte) error {
	idx := len(f.calls)
	if f.failAt == idx {
		f.calls = append(f.calls, call{addr: addr, out: append([]byte{}, w...), inLen: len(r)})
		return f.nextErr
	}
	for i := range r {
		r[i] = byte(addr) + byte(i)
	}
	f.calls = append(f.calls, call{addr: addr, out: append([]byte{}, w...), inLen: len(r), result: append([]byte{}, r...)})
	return nil
}

func TestFlushExecutesInOrder(t *testing.T) {
	conn := &fakeConn{failAt: -1}
	b := New(conn)
	b.EnqueueWrite(0x10, []byte{1, 2})
	b.EnqueueRead(0x20, 3)
	b.EnqueueTransaction(0x30, []byte{9}, 2)

	results, err := b.Flush()
	if err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(results))
	}
	if results[0] != nil {
		t.Fatalf("write-only segment returned a result: %v", results[0])
	}
	if len(results[1]) != 3 || len(results[2]) != 2 {
		t.Fatalf("read lengths wrong: %v", results)
	}
	if b.Pending() != 0 {
		t.Fatalf("queue not drained: %d pending", b.Pending())
	}
}

func TestFlushFailurePreservesQueue(t *testing.T) {
	conn := &fakeConn{failAt: 1, nextErr: errors.New("nack")}
	b := New(conn)
	b.EnqueueWrite(0x10, []byte{1})
	b.EnqueueRead(0x20, 2)
	b.EnqueueWrite(0x30, []byte{2})

	_, err := b.Flush()
	if err == nil {
		t.Fatal("Flush: want error, got nil")
	}
	if b.Pending() != 3 {
		t.Fatalf("Pending() = %d, want 3 (queue preserved on failure)", b.Pending())
	}
}

func TestSendTransaction(t *testing.T) {
	conn := &fakeConn{failAt: -1}
	b := New(conn)
	got, err := b.SendTransaction(0x40, []byte{0x01}, 2)
	if err != nil {
		t.Fatalf("SendTransaction: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %v, want 2 bytes", got)
	}
	if conn.calls[0].addr != 0x40 {
		t.Fatalf("addr = 0x%X, want 0x40", conn.calls[0].addr)
	}
}

func TestDiscardClearsQueue(t *testing.T) {
	b := New(&fakeConn{failAt: -1})
	b.EnqueueWrite(0x10, []byte{1})
	b.Discard()
	if b.Pending() != 0 {
		t.Fatalf("Pending() = %d after Discard, want 0", b.Pending())
	}
}
