package geometry

import "time"

// Attitude is a (roll, pitch, yaw) Euler triple in degrees, each
// normalized to (-180, 180].
type Attitude struct {
	Roll, Pitch, Yaw float64
}

// Normalize wraps each component into (-180, 180].
func (a Attitude) Normalize() Attitude {
	return Attitude{
		Roll:  NormalizeDegrees(a.Roll),
		Pitch: NormalizeDegrees(a.Pitch),
		Yaw:   NormalizeDegrees(a.Yaw),
	}
}

// NormalizeDegrees wraps a single angle into (-180, 180].
func NormalizeDegrees(deg float64) float64 {
	for deg <= -180 {
		deg += 360
	}
	for deg > 180 {
		deg -= 360
	}
	return deg
}

// ImuSample is a single fused reading from the IMU: accelerometer in
// G, gyroscope in deg/s, and the monotonic time it was taken. Never
// mutated after creation.
type ImuSample struct {
	Accel Vector3
	Gyro  Vector3
	Time  time.Time
}

// CalibrationOffsets are the six scalars subtracted from raw IMU
// samples before use.
type CalibrationOffsets struct {
	AccelX, AccelY, AccelZ float64
	GyroX, GyroY, GyroZ    float64
}
