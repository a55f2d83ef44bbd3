// Package byteorder detects host endianness once and converts buffers
// to/from big- and little-endian wire representations, tolerating
// aliased src/dest slices.
package byteorder

import (
	"encoding/binary"
	"fmt"
)

// ErrUnsupported is returned when the host's native byte order can't be
// classified as big- or little-endian (a permanent, memoized failure).
var ErrUnsupported = fmt.Errorf("byteorder: unsupported host endianness")

var hostIsBigEndian = detectHostBigEndian()

func detectHostBigEndian() bool {
	var buf [2]byte
	binary.NativeEndian.PutUint16(buf[:], 1)
	return buf[0] == 0
}

// HostEndian returns the memoized host byte order.
func HostEndian() binary.ByteOrder {
	if hostIsBigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// ReverseInPlace reverses b's byte order. Safe to call on any slice,
// including one that aliases another in-flight conversion's buffer.
func ReverseInPlace(b []byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}

func reverseInto(dst, src []byte) {
	n := len(src)
	if &dst[0] == &src[0] {
		ReverseInPlace(dst[:n])
		return
	}
	for i := 0; i < n; i++ {
		dst[i] = src[n-1-i]
	}
}

// ToBigEndian16 converts a 2-byte host-order value in src to big-endian in dst.
func ToBigEndian16(dst, src []byte) error {
	return convert16(dst, src, true)
}

// ToLittleEndian16 converts a 2-byte host-order value in src to little-endian in dst.
func ToLittleEndian16(dst, src []byte) error {
	return convert16(dst, src, false)
}

// ToBigEndian32 converts a 4-byte host-order value in src to big-endian in dst.
func ToBigEndian32(dst, src []byte) error {
	return convert32(dst, src, true)
}

// ToLittleEndian32 converts a 4-byte host-order value in src to little-endian in dst.
func ToLittleEndian32(dst, src []byte) error {
	return convert32(dst, src, false)
}

func convert16(dst, src []byte, wantBig bool) error {
	if len(src) < 2 || len(dst) < 2 {
		return fmt.Errorf("byteorder: need 2 bytes, got src=%d dst=%d", len(src), len(dst))
	}
	if hostIsBigEndian != wantBig {
		reverseInto(dst[:2], src[:2])
	} else if &dst[0] != &src[0] {
		copy(dst[:2], src[:2])
	}
	return nil
}

func convert32(dst, src []byte, wantBig bool) error {
	if len(src) < 4 || len(dst) < 4 {
		return fmt.Errorf("byteorder: need 4 bytes, got src=%d dst=%d", len(src), len(dst))
	}
	if hostIsBigEndian != wantBig {
		reverseInto(dst[:4], src[:4])
	} else if &dst[0] != &src[0] {
		copy(dst[:4], src[:4])
	}
	return nil
}

// FromBigEndian16 reads a big-endian uint16.
func FromBigEndian16(src []byte) (uint16, error) {
	if len(src) < 2 {
		return 0, fmt.Errorf("byteorder: need 2 bytes, got %d", len(src))
	}
	return binary.BigEndian.Uint16(src), nil
}

// FromLittleEndian16 reads a little-endian uint16.
func FromLittleEndian16(src []byte) (uint16, error) {
	if len(src) < 2 {
		return 0, fmt.Errorf("byteorder: need 2 bytes, got %d", len(src))
	}
	return binary.LittleEndian.Uint16(src), nil
}

// FromBigEndian32 reads a big-endian uint32.
func FromBigEndian32(src []byte) (uint32, error) {
	if len(src) < 4 {
		return 0, fmt.Errorf("byteorder: need 4 bytes, got %d", len(src))
	}
	return binary.BigEndian.Uint32(src), nil
}

// FromLittleEndian32 reads a little-endian uint32.
func FromLittleEndian32(src []byte) (uint32, error) {
	if len(src) < 4 {
		return 0, fmt.Errorf("byteorder: need 4 bytes, got %d", len(src))
	}
	return binary.LittleEndian.Uint32(src), nil
}

// PutBigEndian16 writes v as big-endian into dst.
func PutBigEndian16(dst []byte, v uint16) { binary.BigEndian.PutUint16(dst, v) }

// PutLittleEndian16 writes v as little-endian into dst.
func PutLittleEndian16(dst []byte, v uint16) { binary.LittleEndian.PutUint16(dst, v) }

// PutBigEndian32 writes v as big-endian into dst.
func PutBigEndian32(dst []byte, v uint32) { binary.BigEndian.PutUint32(dst, v) }

// PutLittleEndian32 writes v as little-endian into dst.
func PutLittleEndian32(dst []byte, v uint32) { binary.LittleEndian.PutUint32(dst, v) }
