// Package flightcontrol implements the fixed-rate stabilizer: sensor
// smoothing, complementary-filter attitude estimation, cascaded PID
// (angle then rate), and X-frame motor mixing, run under a
// timer-driven control goroutine with target setpoints shared from the
// main goroutine via per-field atomics.
package flightcontrol

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/aeroquad/flightcore/internal/attitude"
	"github.com/aeroquad/flightcore/internal/calib"
	"github.com/aeroquad/flightcore/internal/dashboard"
	"github.com/aeroquad/flightcore/internal/geometry"
	"github.com/aeroquad/flightcore/internal/imu"
	"github.com/aeroquad/flightcore/internal/motor"
	"github.com/aeroquad/flightcore/internal/pid"
	"github.com/aeroquad/flightcore/internal/statuslog"
)

var logTag = statuslog.Tag("flightcontrol")

// Motor indices, X-frame, Y forward, X right (spec §4.12 step 6).
const (
	motorFL = 0
	motorFR = 1
	motorRR = 2
	motorRL = 3
)

// atomicFloat: shared setpoints are stored as
// atomically-accessed float64 bit patterns, one field per value, per
// spec §5's sanctioned lock-free alternative to a single mutex.
type atomicFloat struct{ bits atomic.Uint64 }

func (a *atomicFloat) Store(v float64) { a.bits.Store(math.Float64bits(v)) }
func (a *atomicFloat) Load() float64   { return math.Float64frombits(a.bits.Load()) }

// Config bundles the tunables FlightControl needs at construction.
// Motors are constructed (and given their min/max pulse widths)
// by the caller, since they're shared with the PWM expander's bus.
type Config struct {
	SmoothingWindow  int
	DerivativeWindow int
	AnglePID         pid.Gains
	RatePID          pid.Gains
	YawPID           pid.Gains
	YawEnabled       bool
	CalibrationPath  string
}

// FlightControl is the top of the core: it owns the PID controllers,
// motors, attitude estimator, and calibration offsets exclusively. The
// Imu and PwmExpander-backed motors are borrowed — the bus they share
// is owned at program scope.
type FlightControl struct {
	accel *imu.Accelerometer
	gyro  *imu.Gyroscope
	motors [4]*motor.Motor

	estimator *attitude.Estimator

	anglePIDRoll, anglePIDPitch, anglePIDYaw *pid.Controller
	ratePIDRoll, ratePIDPitch, ratePIDYaw    *pid.Controller

	yawEnabled bool

	targetRoll, targetPitch, targetYaw atomicFloat
	throttle                           atomicFloat
	turnRate                           atomicFloat

	lastUpdate time.Time

	lastRoll, lastPitch, lastYaw atomicFloat
	lastSpeeds                   [4]atomicFloat

	stopCh  chan struct{}
	running atomic.Bool

	calibPath string
}

// New constructs a FlightControl. Calibration offsets are loaded from
// cfg.CalibrationPath if present (zero offsets otherwise).
func New(accel *imu.Accelerometer, gyro *imu.Gyroscope, motors [4]*motor.Motor, cfg Config) *FlightControl {
	offsets := calib.Load(cfg.CalibrationPath)

	fc := &FlightControl{
		accel:     accel,
		gyro:      gyro,
		motors:    motors,
		estimator: attitude.New(cfg.SmoothingWindow, offsets),
		calibPath: cfg.CalibrationPath,

		anglePIDRoll:  pid.New(cfg.AnglePID.P, cfg.AnglePID.I, cfg.AnglePID.D, defaultAngleWindow),
		anglePIDPitch: pid.New(cfg.AnglePID.P, cfg.AnglePID.I, cfg.AnglePID.D, defaultAngleWindow),
		anglePIDYaw:   pid.New(cfg.YawPID.P, cfg.YawPID.I, cfg.YawPID.D, defaultAngleWindow),
		ratePIDRoll:   pid.New(cfg.RatePID.P, cfg.RatePID.I, cfg.RatePID.D, cfg.DerivativeWindow),
		ratePIDPitch:  pid.New(cfg.RatePID.P, cfg.RatePID.I, cfg.RatePID.D, cfg.DerivativeWindow),
		ratePIDYaw:    pid.New(cfg.YawPID.P, cfg.YawPID.I, cfg.YawPID.D, cfg.DerivativeWindow),
		yawEnabled:    cfg.YawEnabled,
	}
	return fc
}

const defaultAngleWindow = 3

// Move sets desired translation: x/y drive target roll/pitch
// (target_roll = -x, target_pitch = y); z is the throttle baseline.
func (fc *FlightControl) Move(v geometry.Vector3) {
	fc.targetRoll.Store(-v.X)
	fc.targetPitch.Store(v.Y)
	fc.throttle.Store(v.Z)
}

// Turn sets the yaw turn rate, integrated into target yaw each tick.
func (fc *FlightControl) Turn(rate float64) {
	fc.turnRate.Store(rate)
}

// SetPIDAngle retunes and resets the angle-loop PIDs.
func (fc *FlightControl) SetPIDAngle(p, i, d float64) {
	for _, c := range []*pid.Controller{fc.anglePIDRoll, fc.anglePIDPitch, fc.anglePIDYaw} {
		c.SetGains(p, i, d)
		c.Reset()
	}
}

// SetPIDRate retunes and resets the rate-loop PIDs.
func (fc *FlightControl) SetPIDRate(p, i, d float64) {
	for _, c := range []*pid.Controller{fc.ratePIDRoll, fc.ratePIDPitch, fc.ratePIDYaw} {
		c.SetGains(p, i, d)
		c.Reset()
	}
}

// StartTimer enables the periodic update() goroutine at the configured
// rate. Idempotent: calling it while already running is a no-op.
func (fc *FlightControl) StartTimer(ctx context.Context, rateHz float64) {
	if !fc.running.CompareAndSwap(false, true) {
		return
	}
	fc.stopCh = make(chan struct{})
	fc.lastUpdate = time.Now()
	go fc.controlLoop(ctx, rateHz)
}

// StopTimer disables the periodic update. Idempotent and safe to call
// from any goroutine.
func (fc *FlightControl) StopTimer() {
	if !fc.running.CompareAndSwap(true, false) {
		return
	}
	close(fc.stopCh)
}

func (fc *FlightControl) controlLoop(ctx context.Context, rateHz float64) {
	if rateHz <= 0 {
		rateHz = 100
	}
	ticker := time.NewTicker(time.Duration(float64(time.Second) / rateHz))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			fc.Stop()
			return
		case <-fc.stopCh:
			return
		case <-ticker.C:
			fc.safeUpdate()
		}
	}
}

// safeUpdate wraps update() with panic recovery so a single tick's
// failure can't bring down the control loop (spec §7).
func (fc *FlightControl) safeUpdate() {
	defer func() {
		if r := recover(); r != nil {
			logTag.Printf("recovered from panic in update(): %v", r)
		}
	}()
	fc.update()
}

// update is the control loop body described in spec §4.12.
func (fc *FlightControl) update() {
	now := time.Now()
	dt := now.Sub(fc.lastUpdate).Seconds()
	fc.lastUpdate = now

	accelSample, accelErr := fc.accel.Read()
	if accelErr != nil {
		logTag.Printf("accel read failed, keeping previous sample: %v", accelErr)
		accelSample = fc.estimator.LastAccel()
	}
	gyroSample, gyroErr := fc.gyro.Read()
	if gyroErr != nil {
		logTag.Printf("gyro read failed, keeping previous sample: %v", gyroErr)
		gyroSample = fc.estimator.LastGyro()
	}
	fc.estimator.Push(accelSample, gyroSample)

	newTargetYaw := fc.targetYaw.Load() + fc.turnRate.Load()*dt
	fc.targetYaw.Store(geometry.NormalizeDegrees(newTargetYaw))

	att := fc.estimator.Update(dt)
	fc.lastRoll.Store(att.Roll)
	fc.lastPitch.Store(att.Pitch)
	fc.lastYaw.Store(att.Yaw)

	fc.anglePIDRoll.SetTarget(fc.targetRoll.Load())
	fc.anglePIDRoll.Feed(att.Roll, now)
	fc.ratePIDRoll.SetTarget(fc.anglePIDRoll.Output())
	fc.ratePIDRoll.Feed(gyroSample.X, now)

	fc.anglePIDPitch.SetTarget(fc.targetPitch.Load())
	fc.anglePIDPitch.Feed(att.Pitch, now)
	fc.ratePIDPitch.SetTarget(fc.anglePIDPitch.Output())
	fc.ratePIDPitch.Feed(gyroSample.Y, now)

	var yawContribution float64
	if fc.yawEnabled {
		fc.anglePIDYaw.SetTarget(fc.targetYaw.Load())
		fc.anglePIDYaw.Feed(att.Yaw, now)
		fc.ratePIDYaw.SetTarget(fc.anglePIDYaw.Output())
		fc.ratePIDYaw.Feed(gyroSample.Z, now)
		yawContribution = fc.ratePIDYaw.Output()
	}

	ends := fc.ratePIDPitch.Output() / 100
	sides := fc.ratePIDRoll.Output() / 100
	throttle := fc.throttle.Load()

	speeds := [4]float64{
		motorFL: throttle + ends - sides + yawContribution,
		motorFR: throttle + ends + sides - yawContribution,
		motorRR: throttle - ends + sides + yawContribution,
		motorRL: throttle - ends - sides - yawContribution,
	}

	for i, s := range speeds {
		if s < 0 {
			s = 0
		}
		if fc.motors[i] == nil {
			continue
		}
		if err := fc.motors[i].SetSpeed(s); err != nil {
			logTag.Printf("motor %d SetSpeed failed: %v", i, err)
		}
		fc.lastSpeeds[i].Store(s)
	}
	for i, m := range fc.motors {
		if m == nil {
			continue
		}
		if err := m.Tick(); err != nil {
			logTag.Printf("motor %d Tick failed: %v", i, err)
		}
	}
}

// Calibrate averages sensor readings over durationMs (sampling every
// 10ms) and writes the resulting offsets to the calibration file.
func (fc *FlightControl) Calibrate(durationMs int) error {
	acc := attitude.NewAccumulator()
	samples := durationMs / 10
	for i := 0; i < samples; i++ {
		a, err := fc.accel.Read()
		if err != nil {
			continue
		}
		g, err := fc.gyro.Read()
		if err != nil {
			continue
		}
		acc.Add(a, g)
		time.Sleep(10 * time.Millisecond)
	}
	offsets := acc.Finalize()
	fc.estimator.SetOffsets(offsets)
	return calib.Save(fc.calibPath, offsets)
}

// Stop unconditionally turns off every motor.
func (fc *FlightControl) Stop() {
	for _, m := range fc.motors {
		if m == nil {
			continue
		}
		_ = m.SetSpeed(0)
	}
}

// GetRoll, GetPitch, GetYaw are observers onto the last computed attitude.
func (fc *FlightControl) GetRoll() float64  { return fc.lastRoll.Load() }
func (fc *FlightControl) GetPitch() float64 { return fc.lastPitch.Load() }
func (fc *FlightControl) GetYaw() float64   { return fc.lastYaw.Load() }

// Snapshot implements dashboard.Source.
func (fc *FlightControl) Snapshot() dashboard.Telemetry {
	var speeds [4]float64
	for i := range speeds {
		speeds[i] = fc.lastSpeeds[i].Load()
	}
	return dashboard.Telemetry{
		Roll:        fc.GetRoll(),
		Pitch:       fc.GetPitch(),
		Yaw:         fc.GetYaw(),
		MotorSpeeds: speeds,
		AnglePIDOut: fc.anglePIDRoll.Output(),
		RatePIDOut:  fc.ratePIDRoll.Output(),
		Connected:   true,
	}
}
