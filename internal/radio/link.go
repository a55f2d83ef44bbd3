package radio

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aeroquad/flightcore/internal/xerrors"
)

// Preamble marks the start of every frame on the wire.
var preamble = [2]byte{0x2A, 0xA2}

// Result is a packet pulled off the wire, tagged by concrete type.
// Exactly one of Motion/Diagnostic is non-nil.
type Result struct {
	Motion     *Motion
	Diagnostic *Diagnostic
}

// byteSource is the subset of Transport a Link depends on; narrowing
// to an interface lets tests drive the parser without a real serial
// port.
type byteSource interface {
	ReadInto(dst []byte, max int) (int, error)
	Write(b []byte) (int, error)
}

// Link turns a Transport's byte stream into a sequence of typed
// packets, and serializes outgoing packets onto that stream. It owns
// its frame buffer and any partially-parsed packet exclusively — see
// spec §3 ownership summary.
type Link struct {
	t       byteSource
	buf     []byte // append-only scan buffer; completed prefixes are sliced off
	partial packet // in-flight packet, or nil if scanning for a preamble
}

// New wraps t in a Link.
func New(t *Transport) *Link {
	return &Link{t: t}
}

// Connect performs the symmetric "Hi" handshake: write "Hi", block
// until "Hi" appears in the incoming stream (keeping whatever follows
// the match for the parser), then write "Hi" once more. This is the one
// documented blocking point in the whole system (spec §5).
func (l *Link) Connect(ctx context.Context) error {
	if _, err := l.t.Write([]byte("Hi")); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		chunk := make([]byte, 64)
		n, err := l.t.ReadInto(chunk, 0)
		if err != nil {
			return err
		}
		if n > 0 {
			l.buf = append(l.buf, chunk[:n]...)
		}
		if idx := bytes.Index(l.buf, []byte("Hi")); idx >= 0 {
			l.buf = l.buf[idx+2:]
			break
		}
		if n == 0 {
			time.Sleep(5 * time.Millisecond)
		}
	}

	_, err := l.t.Write([]byte("Hi"))
	return err
}

// Receive drains the transport and advances the framing parser,
// returning the next completed packet, or nil if none is ready yet.
// Receive never blocks (spec §4.4 invariant b).
func (l *Link) Receive() (*Result, error) {
	chunk := make([]byte, 256)
	n, err := l.t.ReadInto(chunk, 0)
	if err != nil {
		return nil, err
	}
	if n > 0 {
		l.buf = append(l.buf, chunk[:n]...)
	}

	for {
		if l.partial != nil {
			consumed, complete := l.partial.feed(l.buf)
			l.buf = l.buf[consumed:]
			if !complete {
				return nil, nil
			}
			res := toResult(l.partial)
			l.partial = nil
			return res, nil
		}

		idx := bytes.IndexByte(l.buf, preamble[0])
		if idx < 0 {
			l.buf = l.buf[:0]
			return nil, nil
		}
		if idx+3 > len(l.buf) {
			// Not enough bytes yet to know if this is a real preamble;
			// discard everything before it and wait for more.
			l.buf = l.buf[idx:]
			return nil, nil
		}
		if l.buf[idx+1] != preamble[1] {
			// False positive: erase through and including this byte.
			l.buf = l.buf[idx+1:]
			continue
		}

		tag := l.buf[idx+2]
		p := newPacket(tag)
		if p == nil {
			// Unknown type: discard just the preamble, keep scanning.
			l.buf = l.buf[idx+len(preamble):]
			continue
		}

		l.buf = l.buf[idx+3:]
		consumed, complete := p.feed(l.buf)
		l.buf = l.buf[consumed:]
		if complete {
			return toResult(p), nil
		}
		l.partial = p
		return nil, nil
	}
}

func toResult(p packet) *Result {
	switch v := p.(type) {
	case *Motion:
		cp := *v
		cp.fedBytes = 0
		return &Result{Motion: &cp}
	case *Diagnostic:
		cp := *v
		cp.fedBytes = 0
		return &Result{Diagnostic: &cp}
	default:
		return nil
	}
}

// Send emits a packet's frame: preamble, type tag, then its canonical
// body serialization.
func (l *Link) Send(p *Result) error {
	var tag byte
	var body []byte
	switch {
	case p.Motion != nil:
		tag = p.Motion.typeTag()
		body = p.Motion.serialize()
	case p.Diagnostic != nil:
		tag = p.Diagnostic.typeTag()
		body = p.Diagnostic.serialize()
	default:
		return fmt.Errorf("%w: empty packet result", xerrors.ErrRadio)
	}
	frame := append([]byte{preamble[0], preamble[1], tag}, body...)
	_, err := l.t.Write(frame)
	return err
}
