// Package geometry holds the plain value types shared across the
// control pipeline: Vector3, Attitude, and ImuSample.
package geometry

// Vector3 is a plain (x, y, z) triple with no invariants. Used for
// accelerometer/gyroscope readings and Euler angles.
type Vector3 struct {
	X, Y, Z float64
}

// Add returns the component-wise sum.
func (v Vector3) Add(o Vector3) Vector3 {
	return Vector3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

// Sub returns the component-wise difference.
func (v Vector3) Sub(o Vector3) Vector3 {
	return Vector3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

// Neg returns the component-wise negation.
func (v Vector3) Neg() Vector3 {
	return Vector3{-v.X, -v.Y, -v.Z}
}

// Scale returns v multiplied component-wise by s.
func (v Vector3) Scale(s float64) Vector3 {
	return Vector3{v.X * s, v.Y * s, v.Z * s}
}

// Div returns v divided component-wise by s.
func (v Vector3) Div(s float64) Vector3 {
	return Vector3{v.X / s, v.Y / s, v.Z / s}
}
