// Package attitude fuses gyro integration with accelerometer-derived
// tilt into a single roll/pitch/yaw estimate via a magnitude-gated
// complementary filter.
package attitude

import (
	"math"

	"github.com/aeroquad/flightcore/internal/geometry"
)

// ringBuffer is a fixed-capacity mean-of-last-N smoother for a single
// Vector3 stream.
type ringBuffer struct {
	samples []geometry.Vector3
	cap     int
	next    int
	full    bool
}

func newRingBuffer(n int) *ringBuffer {
	return &ringBuffer{samples: make([]geometry.Vector3, n), cap: n}
}

func (r *ringBuffer) push(v geometry.Vector3) {
	r.samples[r.next] = v
	r.next = (r.next + 1) % r.cap
	if r.next == 0 {
		r.full = true
	}
}

func (r *ringBuffer) mean() geometry.Vector3 {
	n := r.next
	if r.full {
		n = r.cap
	}
	if n == 0 {
		return geometry.Vector3{}
	}
	var sum geometry.Vector3
	for i := 0; i < n; i++ {
		sum = sum.Add(r.samples[i])
	}
	return sum.Div(float64(n))
}

// Estimator smooths, calibrates, and fuses accel/gyro samples into an
// attitude estimate.
type Estimator struct {
	accelBuf *ringBuffer
	gyroBuf  *ringBuffer

	offsets geometry.CalibrationOffsets

	orient geometry.Attitude // gyro-integrated orientation, unblended
	out    geometry.Attitude // last blended estimate

	lastAccel geometry.Vector3
	lastGyro  geometry.Vector3
}

// New constructs an Estimator with ring buffers of size n (typical
// 5-40) and the given calibration offsets.
func New(n int, offsets geometry.CalibrationOffsets) *Estimator {
	return &Estimator{
		accelBuf: newRingBuffer(n),
		gyroBuf:  newRingBuffer(n),
		offsets:  offsets,
	}
}

// SetOffsets replaces the calibration offsets in place.
func (e *Estimator) SetOffsets(offsets geometry.CalibrationOffsets) {
	e.offsets = offsets
}

// Push enqueues a new raw accel/gyro pair into the smoothing buffers.
func (e *Estimator) Push(accel, gyro geometry.Vector3) {
	e.lastAccel = accel
	e.lastGyro = gyro
	e.accelBuf.push(accel)
	e.gyroBuf.push(gyro)
}

// LastAccel and LastGyro return the most recently pushed raw sample —
// used by the control loop to carry the previous reading forward when
// a sensor read fails.
func (e *Estimator) LastAccel() geometry.Vector3 { return e.lastAccel }
func (e *Estimator) LastGyro() geometry.Vector3  { return e.lastGyro }

// Update advances the estimate by dt seconds using the current
// smoothed, calibrated readings, returning the new attitude.
func (e *Estimator) Update(dt float64) geometry.Attitude {
	accel := e.accelBuf.mean().Sub(geometry.Vector3{X: e.offsets.AccelX, Y: e.offsets.AccelY, Z: e.offsets.AccelZ})
	gyro := e.gyroBuf.mean().Sub(geometry.Vector3{X: e.offsets.GyroX, Y: e.offsets.GyroY, Z: e.offsets.GyroZ})

	// Gyro Y runs opposite the accelerometer's Y axis on the target board.
	e.orient.Roll += gyro.X * dt
	e.orient.Pitch += -gyro.Y * dt
	e.orient.Yaw += gyro.Z * dt
	e.orient = e.orient.Normalize()

	accelRoll := math.Atan2(accel.X, -accel.Z) * 180 / math.Pi
	var pitchDenom float64
	if accel.Z < 0 {
		pitchDenom = math.Sqrt(accel.X*accel.X + accel.Z*accel.Z)
	} else {
		pitchDenom = -math.Sqrt(accel.X*accel.X + accel.Z*accel.Z)
	}
	accelPitch := math.Atan2(accel.Y, pitchDenom) * 180 / math.Pi

	m := math.Sqrt(accel.X*accel.X + accel.Y*accel.Y + accel.Z*accel.Z)
	factor := 1 - math.Abs(1-m)
	if factor < 0 {
		factor = 0
	}
	if factor > 1 {
		factor = 1
	}

	e.out = geometry.Attitude{
		Roll:  (1-factor)*e.orient.Roll + factor*accelRoll,
		Pitch: (1-factor)*e.orient.Pitch + factor*accelPitch,
		Yaw:   e.orient.Yaw,
	}.Normalize()
	return e.out
}

// Accumulator sums calibration samples into averages that, once
// finalized via Finalize, become CalibrationOffsets — used by
// FlightControl.Calibrate.
type Accumulator struct {
	accelSum geometry.Vector3
	gyroSum  geometry.Vector3
	count    int
}

// NewAccumulator returns an empty calibration accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Add folds in one raw accel/gyro sample.
func (a *Accumulator) Add(accel, gyro geometry.Vector3) {
	a.accelSum = a.accelSum.Add(accel)
	a.gyroSum = a.gyroSum.Add(gyro)
	a.count++
}

// Finalize computes the calibration offsets. The z-accel offset uses
// the convention that, at rest upright, raw z should read 1.0 G:
// the raw z-sum is divided by count plus 1.0, not just count.
func (a *Accumulator) Finalize() geometry.CalibrationOffsets {
	if a.count == 0 {
		return geometry.CalibrationOffsets{}
	}
	n := float64(a.count)
	return geometry.CalibrationOffsets{
		AccelX: a.accelSum.X / n,
		AccelY: a.accelSum.Y / n,
		AccelZ: a.accelSum.Z / (n + 1.0),
		GyroX:  a.gyroSum.X / n,
		GyroY:  a.gyroSum.Y / n,
		GyroZ:  a.gyroSum.Z / n,
	}
}
