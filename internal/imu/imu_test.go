package imu

import (
	"testing"

	"github.com/aeroquad/flightcore/internal/i2cbus"
)

// fakeConn returns a fixed 6-byte axis payload for any read, regardless
// of the register pointer written.
type fakeConn struct {
	payload [6]byte
	writes  [][]byte
}

func (f *fakeConn) Tx(addr uint16, w, r []byte) error {
	f.writes = append(f.writes, append([]byte{}, w...))
	copy(r, f.payload[:])
	return nil
}

func TestAccelerometerReadScalesByRange(t *testing.T) {
	conn := &fakeConn{payload: [6]byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x00}} // X = 256 (little-endian)
	bus := i2cbus.New(conn)
	a, err := NewAccelerometer(bus, 0x53, Accel2G)
	if err != nil {
		t.Fatalf("NewAccelerometer: %v", err)
	}
	v, err := a.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if v.X != 1.0 {
		t.Fatalf("X = %v, want 1.0 G (256 LSB / 256 LSB-per-G)", v.X)
	}
}

func TestAccelerometerNegativeValue(t *testing.T) {
	conn := &fakeConn{payload: [6]byte{0x00, 0xFF, 0x00, 0x00, 0x00, 0x00}} // X = -256 (little-endian)
	bus := i2cbus.New(conn)
	a, _ := NewAccelerometer(bus, 0x53, Accel2G)
	v, err := a.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if v.X != -1.0 {
		t.Fatalf("X = %v, want -1.0 G", v.X)
	}
}

func TestGyroscopeReadScalesByRange(t *testing.T) {
	conn := &fakeConn{payload: [6]byte{0x64, 0x00, 0x00, 0x00, 0x00, 0x00}} // X raw = 100 (little-endian)
	bus := i2cbus.New(conn)
	g, err := NewGyroscope(bus, 0x69, Gyro250Dps)
	if err != nil {
		t.Fatalf("NewGyroscope: %v", err)
	}
	v, err := g.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	// Computed at run time in float64, as Read does: the untyped constant
	// expression 100*0.00875 would be the exact 0.875 instead.
	raw := int16(100)
	want := float64(raw) * 0.00875
	if v.X != want {
		t.Fatalf("X = %v, want %v", v.X, want)
	}
}

func TestReadIssuesRegisterPointerThenBurstRead(t *testing.T) {
	conn := &fakeConn{}
	bus := i2cbus.New(conn)
	a, _ := NewAccelerometer(bus, 0x53, Accel4G)
	conn.writes = nil // clear the config write from NewAccelerometer
	if _, err := a.Read(); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(conn.writes) != 1 || len(conn.writes[0]) != 1 {
		t.Fatalf("writes = %v, want a single 1-byte register-pointer write", conn.writes)
	}
}

func TestCloseSleepsIgnoringErrors(t *testing.T) {
	bus := i2cbus.New(&fakeConn{})
	a, _ := NewAccelerometer(bus, 0x53, Accel8G)
	a.Close()
	if !a.asleep {
		t.Fatal("Close() did not put the accelerometer to sleep")
	}
}
