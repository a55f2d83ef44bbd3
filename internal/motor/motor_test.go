package motor

import (
	"testing"

	"github.com/aeroquad/flightcore/internal/i2cbus"
	"github.com/aeroquad/flightcore/internal/pwm"
)

type fakeConn struct{ writes [][]byte }

func (f *fakeConn) Tx(addr uint16, w, r []byte) error {
	f.writes = append(f.writes, append([]byte{}, w...))
	return nil
}

func newTestMotor(t *testing.T) (*Motor, *pwm.Expander, *fakeConn) {
	t.Helper()
	conn := &fakeConn{}
	bus := i2cbus.New(conn)
	exp := pwm.New(bus, 0x40)
	if err := exp.SetFrequency(400); err != nil {
		t.Fatalf("SetFrequency: %v", err)
	}
	m, err := New(exp, 0, 1.26, 1.6)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m, exp, conn
}

// sameSignal reports whether two channel-register writes
// ([reg, ON_L, ON_H, OFF_L, OFF_H]) carry the same ON/OFF counts.
func sameSignal(a, b []byte) bool {
	return len(a) == 5 && len(b) == 5 && string(a[1:]) == string(b[1:])
}

func TestNewWritesIdleSignal(t *testing.T) {
	_, exp, conn := newTestMotor(t)
	got := conn.writes[len(conn.writes)-1]
	// Reference: the 1.26ms minimum high time written straight to channel 1.
	if err := exp.SetHighTime(1, 1.26); err != nil {
		t.Fatalf("SetHighTime: %v", err)
	}
	want := conn.writes[len(conn.writes)-1]
	if got[0] != 0x06 || !sameSignal(got, want) {
		t.Fatalf("New wrote %v, want the 1.26ms signal %v on channel 0 (register 0x06)", got, want)
	}
}

func TestSetSpeedClampsNegativeToIdle(t *testing.T) {
	m, _, conn := newTestMotor(t)
	before := len(conn.writes)
	if err := m.SetSpeed(-1); err != nil {
		t.Fatalf("SetSpeed(-1): %v", err)
	}
	// -1 clamps to the idle count New already wrote, so no write is issued.
	if n := len(conn.writes) - before; n != 0 {
		t.Fatalf("SetSpeed(-1) issued %d writes, want 0 (same idle count)", n)
	}
}

func TestSetSpeedMapsRange(t *testing.T) {
	m, exp, conn := newTestMotor(t)
	if err := m.SetSpeed(1); err != nil {
		t.Fatalf("SetSpeed(1): %v", err)
	}
	got := conn.writes[len(conn.writes)-1]
	// Reference: the 1.6ms maximum high time written straight to channel 1.
	if err := exp.SetHighTime(1, 1.6); err != nil {
		t.Fatalf("SetHighTime: %v", err)
	}
	if want := conn.writes[len(conn.writes)-1]; !sameSignal(got, want) {
		t.Fatalf("SetSpeed(1) wrote %v, want the 1.6ms signal %v", got, want)
	}
	before := len(conn.writes)
	if err := m.SetSpeed(2); err != nil {
		t.Fatalf("SetSpeed(2) (clipped to 1): %v", err)
	}
	if n := len(conn.writes) - before; n != 0 {
		t.Fatalf("SetSpeed(2) issued %d writes, want 0 (clipped to 1, count unchanged)", n)
	}
}

func TestTickAdvancesDither(t *testing.T) {
	m, _, conn := newTestMotor(t)
	if err := m.SetSpeed(0.5); err != nil {
		t.Fatalf("SetSpeed: %v", err)
	}
	// 1.43ms of 2.5ms is 2342.34 counts: the first of five phases writes
	// 2343, the next goes back to 2342, the last three repeat it unwritten.
	before := len(conn.writes)
	for i := 0; i < 5; i++ {
		if err := m.Tick(); err != nil {
			t.Fatalf("Tick: %v", err)
		}
	}
	if n := len(conn.writes) - before; n != 2 {
		t.Fatalf("5 ticks issued %d writes, want 2", n)
	}
}
