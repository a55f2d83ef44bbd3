// Package imu drives the accelerometer and gyroscope as two
// independent devices on a shared I²C bus, each with its own
// range/rate configuration, scaling raw register values to physical
// units.
package imu

import (
	"fmt"

	"github.com/aeroquad/flightcore/internal/geometry"
	"github.com/aeroquad/flightcore/internal/i2cbus"
	"github.com/aeroquad/flightcore/internal/xerrors"
)

// AccelRange selects the accelerometer's full-scale range.
type AccelRange int

const (
	Accel2G AccelRange = iota
	Accel4G
	Accel8G
	Accel16G
)

// accelLSBPerG gives LSB-per-G for each range, per spec §4.9.
var accelLSBPerG = map[AccelRange]float64{
	Accel2G:  256,
	Accel4G:  128,
	Accel8G:  64,
	Accel16G: 32,
}

// GyroRange selects the gyroscope's full-scale range.
type GyroRange int

const (
	Gyro250Dps GyroRange = iota
	Gyro500Dps
	Gyro2000Dps
)

// gyroDpsPerLSB gives degrees/second per LSB for each range.
var gyroDpsPerLSB = map[GyroRange]float64{
	Gyro250Dps:  0.00875,
	Gyro500Dps:  0.0175,
	Gyro2000Dps: 0.07,
}

// Register layout is device-specific but narrow: a single range/rate
// control register, a single sleep/power register, and a contiguous
// 6-byte axis-data block starting at dataReg.
type regLayout struct {
	rangeReg byte
	powerReg byte
	dataReg  byte
}

// Accelerometer reads a 3-axis accelerometer over I²C, scaled to Gs.
type Accelerometer struct {
	bus    *i2cbus.Bus
	addr   uint16
	reg    regLayout
	rng    AccelRange
	asleep bool
}

// NewAccelerometer configures the accelerometer for the given range
// and writes it to the device's range register.
func NewAccelerometer(bus *i2cbus.Bus, addr uint16, rng AccelRange) (*Accelerometer, error) {
	a := &Accelerometer{
		bus:  bus,
		addr: addr,
		reg:  regLayout{rangeReg: 0x1C, powerReg: 0x2D, dataReg: 0x32},
		rng:  rng,
	}
	if err := a.SetRange(rng); err != nil {
		return nil, err
	}
	return a, nil
}

// SetRange writes the accelerometer's full-scale range register.
func (a *Accelerometer) SetRange(rng AccelRange) error {
	a.rng = rng
	a.bus.EnqueueWrite(a.addr, []byte{a.reg.rangeReg, byte(rng) << 3})
	if _, err := a.bus.Flush(); err != nil {
		return fmt.Errorf("%w: set accel range: %v", xerrors.ErrI2C, err)
	}
	return nil
}

// SetSleep writes the accelerometer's power-mode register.
func (a *Accelerometer) SetSleep(sleep bool) error {
	var v byte
	if sleep {
		v = 0x00
	} else {
		v = 0x08 // measure bit
	}
	a.bus.EnqueueWrite(a.addr, []byte{a.reg.powerReg, v})
	if _, err := a.bus.Flush(); err != nil {
		return fmt.Errorf("%w: set accel sleep: %v", xerrors.ErrI2C, err)
	}
	a.asleep = sleep
	return nil
}

// Read performs a single batched transaction — enqueue a
// register-pointer write, enqueue a 6-byte read, commit — and scales
// the three signed 16-bit little-endian axis values to Gs.
func (a *Accelerometer) Read() (geometry.Vector3, error) {
	raw, err := a.bus.SendTransaction(a.addr, []byte{a.reg.dataReg}, 6)
	if err != nil {
		return geometry.Vector3{}, fmt.Errorf("%w: read accel: %v", xerrors.ErrI2C, err)
	}
	lsbPerG := accelLSBPerG[a.rng]
	return geometry.Vector3{
		X: float64(le16(raw[0], raw[1])) / lsbPerG,
		Y: float64(le16(raw[2], raw[3])) / lsbPerG,
		Z: float64(le16(raw[4], raw[5])) / lsbPerG,
	}, nil
}

// Close attempts to put the device to sleep, ignoring errors — the
// destructor-equivalent of the original design.
func (a *Accelerometer) Close() {
	_ = a.SetSleep(true)
}

// Gyroscope reads a 3-axis gyroscope over I²C, scaled to degrees/second.
type Gyroscope struct {
	bus    *i2cbus.Bus
	addr   uint16
	reg    regLayout
	rng    GyroRange
	asleep bool
}

// NewGyroscope configures the gyroscope for the given range.
func NewGyroscope(bus *i2cbus.Bus, addr uint16, rng GyroRange) (*Gyroscope, error) {
	g := &Gyroscope{
		bus:  bus,
		addr: addr,
		reg:  regLayout{rangeReg: 0x16, powerReg: 0x3E, dataReg: 0x1D},
		rng:  rng,
	}
	if err := g.SetRange(rng); err != nil {
		return nil, err
	}
	return g, nil
}

// SetRange writes the gyroscope's full-scale range register.
func (g *Gyroscope) SetRange(rng GyroRange) error {
	g.rng = rng
	g.bus.EnqueueWrite(g.addr, []byte{g.reg.rangeReg, byte(rng) << 3})
	if _, err := g.bus.Flush(); err != nil {
		return fmt.Errorf("%w: set gyro range: %v", xerrors.ErrI2C, err)
	}
	return nil
}

// SetSleep writes the gyroscope's power-mode register.
func (g *Gyroscope) SetSleep(sleep bool) error {
	v := byte(0x00)
	if sleep {
		v = 0x40
	}
	g.bus.EnqueueWrite(g.addr, []byte{g.reg.powerReg, v})
	if _, err := g.bus.Flush(); err != nil {
		return fmt.Errorf("%w: set gyro sleep: %v", xerrors.ErrI2C, err)
	}
	g.asleep = sleep
	return nil
}

// Read performs a single batched transaction and scales the three
// signed 16-bit little-endian axis values to degrees/second.
func (g *Gyroscope) Read() (geometry.Vector3, error) {
	raw, err := g.bus.SendTransaction(g.addr, []byte{g.reg.dataReg}, 6)
	if err != nil {
		return geometry.Vector3{}, fmt.Errorf("%w: read gyro: %v", xerrors.ErrI2C, err)
	}
	dpsPerLSB := gyroDpsPerLSB[g.rng]
	return geometry.Vector3{
		X: float64(le16(raw[0], raw[1])) * dpsPerLSB,
		Y: float64(le16(raw[2], raw[3])) * dpsPerLSB,
		Z: float64(le16(raw[4], raw[5])) * dpsPerLSB,
	}, nil
}

// Close attempts to put the device to sleep, ignoring errors.
func (g *Gyroscope) Close() {
	_ = g.SetSleep(true)
}

// le16 combines two axis-register bytes as signed little-endian: lo is
// at the lower address (e.g. OUT_X_L before OUT_X_H), per spec §4.9.
func le16(lo, hi byte) int16 {
	return int16(uint16(hi)<<8 | uint16(lo))
}
