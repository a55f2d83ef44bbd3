package attitude

import (
	"math"
	"testing"

	"github.com/aeroquad/flightcore/internal/geometry"
)

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// TestAtRestNoDrift covers the no-drift-at-rest invariant: upright,
// stationary accel (0,0,-1) and zero gyro should settle to ~0 roll/pitch.
func TestAtRestNoDrift(t *testing.T) {
	e := New(5, geometry.CalibrationOffsets{})
	for i := 0; i < 10; i++ {
		e.Push(geometry.Vector3{X: 0, Y: 0, Z: -1}, geometry.Vector3{})
		e.Update(0.01)
	}
	got := e.Update(0.01)
	if !approxEqual(got.Roll, 0, 0.01) || !approxEqual(got.Pitch, 0, 0.01) {
		t.Fatalf("got %+v, want near-zero roll/pitch at rest", got)
	}
}

// TestComplementaryFilterTrustsAccelAtUnitMagnitude covers spec §8
// scenario 4: when |accel| == 1G, factor == 1, so the blended estimate
// should equal the accel-derived tilt immediately, ignoring gyro bias.
func TestComplementaryFilterTrustsAccelAtUnitMagnitude(t *testing.T) {
	e := New(1, geometry.CalibrationOffsets{})
	// Tilted 30°: accel reads +0.5 on X, -0.866 on Z, magnitude 1.
	accel := geometry.Vector3{X: math.Sin(30 * math.Pi / 180), Y: 0, Z: -math.Cos(30 * math.Pi / 180)}
	e.Push(accel, geometry.Vector3{X: 1000, Y: 1000, Z: 1000}) // large gyro bias, should be ignored
	got := e.Update(0.01)
	wantRoll := math.Atan2(accel.X, -accel.Z) * 180 / math.Pi
	if !approxEqual(got.Roll, wantRoll, 0.5) {
		t.Fatalf("roll = %v, want ~%v (accel-trusted)", got.Roll, wantRoll)
	}
}

// TestComplementaryFilterDistrustsAccelUnderLinearAcceleration asserts
// that when |accel| != 1G (e.g. during a lateral acceleration), the
// gyro-integrated orientation dominates instead.
func TestComplementaryFilterDistrustsAccelUnderLinearAcceleration(t *testing.T) {
	e := New(1, geometry.CalibrationOffsets{})
	// |accel| = 2G: magnitude far from 1, factor should clip toward 0.
	e.Push(geometry.Vector3{X: 2, Y: 0, Z: 0}, geometry.Vector3{X: 10, Y: 0, Z: 0})
	got := e.Update(0.1)
	// Gyro contribution: roll += gyro.X * dt = 10*0.1 = 1 degree.
	if !approxEqual(got.Roll, 1, 0.01) {
		t.Fatalf("roll = %v, want ~1 (gyro-trusted, factor near 0)", got.Roll)
	}
}

func TestGyroYAxisIsNegated(t *testing.T) {
	e := New(1, geometry.CalibrationOffsets{})
	e.Push(geometry.Vector3{X: 0, Y: 0, Z: 2}, geometry.Vector3{X: 0, Y: 5, Z: 0}) // |accel|=2, factor~0
	e.Update(1.0)
	if !approxEqual(e.orient.Pitch, -5, 0.01) {
		t.Fatalf("orient.Pitch = %v, want -5 (Y gyro negated)", e.orient.Pitch)
	}
}

func TestAccumulatorFinalizeZOffsetUsesCountPlusOne(t *testing.T) {
	a := NewAccumulator()
	a.Add(geometry.Vector3{X: 0, Y: 0, Z: 1}, geometry.Vector3{})
	a.Add(geometry.Vector3{X: 0, Y: 0, Z: 1}, geometry.Vector3{})
	off := a.Finalize()
	want := 2.0 / 3.0 // sum=2, divided by count(2)+1
	if !approxEqual(off.AccelZ, want, 1e-9) {
		t.Fatalf("AccelZ offset = %v, want %v", off.AccelZ, want)
	}
	if off.AccelX != 0 {
		t.Fatalf("AccelX offset = %v, want 0 (divided by plain count)", off.AccelX)
	}
}

func TestAccumulatorFinalizeEmpty(t *testing.T) {
	a := NewAccumulator()
	off := a.Finalize()
	if off != (geometry.CalibrationOffsets{}) {
		t.Fatalf("empty accumulator finalize = %+v, want zero value", off)
	}
}
