// Package xerrors defines the error kinds spec §7 distinguishes, so
// callers can branch on errors.Is/errors.As instead of string matching.
package xerrors

import "errors"

// Sentinel kinds. Wrap them with fmt.Errorf("...: %w", ErrI2C) at the
// call site that detects the failure.
var (
	// ErrI2C marks a bus write/read/ioctl failure. Policy: log and skip
	// for a single sensor cycle, carry over the previous value.
	ErrI2C = errors.New("i2c error")

	// ErrPWM marks an invalid channel or frequency argument. Policy:
	// programming bug, fail fast.
	ErrPWM = errors.New("pwm error")

	// ErrRadio marks a serial open/read/write failure. Policy:
	// propagate to the main loop; typically fatal.
	ErrRadio = errors.New("radio error")

	// ErrCalibration marks a calibration file that is unreadable or
	// unwritable. Policy: non-fatal at load (warn, default zero);
	// fatal at save only in that the calibration is forgotten on next boot.
	ErrCalibration = errors.New("calibration error")

	// ErrConfig marks an unsupported baud rate or unsupported
	// endianness. Policy: fail fast at startup.
	ErrConfig = errors.New("config error")
)
