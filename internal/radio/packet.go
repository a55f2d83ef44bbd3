package radio

import (
	"math"

	"github.com/aeroquad/flightcore/internal/byteorder"
)

// Packet type tags, per spec §6.
const (
	TagMotion     byte = 0xA0
	TagDiagnostic byte = 0xA1
)

// Body lengths, per spec §4.4.
const (
	motionBodyLen     = 4
	diagnosticBodyLen = 13
)

// packet is the closed set of wire messages a Link can produce and
// consume. Each variant tracks its own in-flight parse cursor; this is
// not part of the serialized form.
type packet interface {
	typeTag() byte
	// feed consumes bytes from the front of buf to fill remaining
	// fields, reporting whether the packet is now complete.
	feed(buf []byte) (consumed int, complete bool)
	serialize() []byte
}

// Motion carries commanded attitude/throttle deltas and the rotation
// axis doubling as the ground-station QUIT signal (rot != 0).
type Motion struct {
	X, Y, Z, Rot int8

	fedBytes int
}

func (m *Motion) typeTag() byte { return TagMotion }

func (m *Motion) feed(buf []byte) (int, bool) {
	if m.fedBytes >= motionBodyLen {
		// Re-feeding a complete packet resets it and starts over.
		m.fedBytes = 0
	}
	n := 0
	fields := []*int8{&m.X, &m.Y, &m.Z, &m.Rot}
	for n < len(buf) && m.fedBytes < motionBodyLen {
		*fields[m.fedBytes] = int8(buf[n])
		m.fedBytes++
		n++
	}
	return n, m.fedBytes == motionBodyLen
}

func (m *Motion) serialize() []byte {
	return []byte{byte(m.X), byte(m.Y), byte(m.Z), byte(m.Rot)}
}

// Diagnostic is dual-purposed: vehicle→ground carries battery level and
// three telemetry floats; ground→vehicle carries a channel selector (0
// = angle PID, 1 = rate PID) and its P/I/D gains. Floats are wire
// little-endian, the one asymmetry in this protocol (integers elsewhere
// are big-endian).
type Diagnostic struct {
	Battery byte
	A, B, C float32

	raw      [diagnosticBodyLen]byte
	fedBytes int
}

func (d *Diagnostic) typeTag() byte { return TagDiagnostic }

func (d *Diagnostic) feed(buf []byte) (int, bool) {
	if d.fedBytes >= diagnosticBodyLen {
		// Re-feeding a complete packet resets it and starts over.
		d.fedBytes = 0
	}
	n := 0
	for n < len(buf) && d.fedBytes < diagnosticBodyLen {
		d.raw[d.fedBytes] = buf[n]
		d.fedBytes++
		n++
	}
	if d.fedBytes == diagnosticBodyLen {
		d.Battery = d.raw[0]
		d.A = decodeFloat32LE(d.raw[1:5])
		d.B = decodeFloat32LE(d.raw[5:9])
		d.C = decodeFloat32LE(d.raw[9:13])
		return n, true
	}
	return n, false
}

func decodeFloat32LE(b []byte) float32 {
	bits, _ := byteorder.FromLittleEndian32(b)
	return math.Float32frombits(bits)
}

func (d *Diagnostic) serialize() []byte {
	out := make([]byte, 0, diagnosticBodyLen)
	out = append(out, d.Battery)
	for _, f := range []float32{d.A, d.B, d.C} {
		var raw [4]byte
		byteorder.PutLittleEndian32(raw[:], math.Float32bits(f))
		out = append(out, raw[:]...)
	}
	return out
}

func newPacket(tag byte) packet {
	switch tag {
	case TagMotion:
		return &Motion{}
	case TagDiagnostic:
		return &Diagnostic{}
	default:
		return nil
	}
}

func bodyLen(tag byte) int {
	switch tag {
	case TagMotion:
		return motionBodyLen
	case TagDiagnostic:
		return diagnosticBodyLen
	default:
		return 0
	}
}
