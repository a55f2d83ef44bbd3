// Package pwm drives a PCA9685-class 16-channel PWM expander over I²C,
// including the software dither scheme that synthesizes sub-LSB
// resolution out of the chip's coarse 12-bit counters.
package pwm

import (
	"fmt"
	"time"

	"github.com/aeroquad/flightcore/internal/i2cbus"
	"github.com/aeroquad/flightcore/internal/xerrors"
)

// Register addresses, per spec §6.
const (
	regMode1     = 0x00
	regPrescale  = 0xFE
	regLED0OnL   = 0x06 // LED{n} block is 4 bytes starting here, 4 bytes per channel
	bytesPerChan = 4
)

// MODE1 bits used.
const (
	bitRestart = 0x80
	bitSleep   = 0x10
	bitAI      = 0x20
)

const (
	numChannels  = 16
	maxCount     = 4095
	oscillatorHz = 25_000_000
	ditherPhases = 5
)

// channelState tracks the dither state machine for one channel, per
// spec §3 ChannelState invariant: last_count_written is always
// floor(load*4095) or that plus one.
type channelState struct {
	load             float64
	lastCountWritten uint16
	ditherTick       uint8
	written          bool
}

// Expander is a PCA9685-class PWM chip on a shared I²C bus.
type Expander struct {
	bus     *i2cbus.Bus
	addr    uint16
	freqHz  float64
	asleep  bool
	channel [numChannels]channelState
}

// New wires an Expander to the chip at addr on bus. The chip is left
// in whatever power state it was found in; call SetFrequency to bring
// it up.
func New(bus *i2cbus.Bus, addr uint16) *Expander {
	return &Expander{bus: bus, addr: addr}
}

// SetFrequency puts the device to sleep, writes the prescaler, wakes
// it, and sets the restart bit, waiting at least 1ms between steps as
// the datasheet requires. Also resets every channel's dither frame.
func (e *Expander) SetFrequency(hz float64) error {
	prescale := int(roundHalfAway(oscillatorHz/(4096*hz))) - 1
	if prescale < 3 {
		prescale = 3
	}
	if prescale > 255 {
		prescale = 255
	}

	if err := e.writeReg(regMode1, bitSleep); err != nil {
		return err
	}
	time.Sleep(time.Millisecond)

	if err := e.writeReg(regPrescale, byte(prescale)); err != nil {
		return err
	}
	time.Sleep(time.Millisecond)

	if err := e.writeReg(regMode1, bitAI); err != nil {
		return err
	}
	time.Sleep(time.Millisecond)

	if err := e.writeReg(regMode1, bitAI|bitRestart); err != nil {
		return err
	}

	e.freqHz = hz
	e.asleep = false
	for i := range e.channel {
		e.channel[i].ditherTick = 0
	}
	return nil
}

// SetSleep puts the device to sleep or wakes it via the MODE1 register.
func (e *Expander) SetSleep(sleep bool) error {
	bits := byte(bitAI)
	if sleep {
		bits |= bitSleep
	}
	if err := e.writeReg(regMode1, bits); err != nil {
		return err
	}
	e.asleep = sleep
	return nil
}

// SetLoad sets channel ch's duty factor in [0,1], clipped, and
// delegates to SetExactCount.
func (e *Expander) SetLoad(ch int, factor float64) error {
	if factor < 0 {
		factor = 0
	}
	if factor > 1 {
		factor = 1
	}
	e.channel[ch].load = factor
	return e.SetExactCount(ch, countFor(factor))
}

// SetHighTime sets channel ch's high time in milliseconds, clipped to
// the current period, and delegates to SetLoad.
func (e *Expander) SetHighTime(ch int, ms float64) error {
	if e.freqHz <= 0 {
		return fmt.Errorf("%w: SetHighTime before SetFrequency", xerrors.ErrPWM)
	}
	periodMs := 1000 / e.freqHz
	if ms < 0 {
		ms = 0
	}
	if ms > periodMs {
		ms = periodMs
	}
	return e.SetLoad(ch, ms/periodMs)
}

// SetExactCount writes the raw 12-bit OFF count for channel ch,
// clipped to 4095, with ON fixed at 0. A write is skipped if the
// target count equals the last one written.
func (e *Expander) SetExactCount(ch int, count int) error {
	if ch < 0 || ch >= numChannels {
		return fmt.Errorf("%w: channel %d out of range", xerrors.ErrPWM, ch)
	}
	if count < 0 {
		count = 0
	}
	if count > maxCount {
		count = maxCount
	}

	want := uint16(count)
	if e.channel[ch].written && e.channel[ch].lastCountWritten == want {
		return nil
	}

	base := regLED0OnL + ch*bytesPerChan
	body := []byte{
		0x00, 0x00, // ON_L, ON_H (ON always 0)
		byte(want), byte(want >> 8), // OFF_L, OFF_H
	}
	e.bus.EnqueueWrite(e.addr, append([]byte{byte(base)}, body...))
	if _, err := e.bus.Flush(); err != nil {
		return fmt.Errorf("%w: set_exact_count ch%d: %v", xerrors.ErrPWM, ch, err)
	}
	e.channel[ch].lastCountWritten = want
	e.channel[ch].written = true
	return nil
}

// Tick advances the dither state machine for channel ch. A per-channel
// 5-phase counter walks between floor(load*4095) and that plus one: the
// round(fractional*4) phases write the +1 count, the rest write the
// floor count, approximating the true fractional average over time.
func (e *Expander) Tick(ch int) error {
	if ch < 0 || ch >= numChannels {
		return fmt.Errorf("%w: channel %d out of range", xerrors.ErrPWM, ch)
	}
	cs := &e.channel[ch]
	scaled := cs.load * maxCount
	c := int(scaled)
	frac := scaled - float64(c)
	highPhases := int(roundHalfAway(frac * 4))

	phase := cs.ditherTick
	cs.ditherTick = (cs.ditherTick + 1) % ditherPhases

	target := c
	if int(phase) < highPhases {
		target = c + 1
	}
	return e.setDitheredCount(ch, target)
}

// setDitheredCount writes target without touching the stored load,
// unlike SetExactCount's caller-facing sibling.
func (e *Expander) setDitheredCount(ch, count int) error {
	if count < 0 {
		count = 0
	}
	if count > maxCount {
		count = maxCount
	}
	want := uint16(count)
	if e.channel[ch].written && e.channel[ch].lastCountWritten == want {
		return nil
	}
	base := regLED0OnL + ch*bytesPerChan
	body := []byte{0x00, 0x00, byte(want), byte(want >> 8)}
	e.bus.EnqueueWrite(e.addr, append([]byte{byte(base)}, body...))
	if _, err := e.bus.Flush(); err != nil {
		return fmt.Errorf("%w: tick ch%d: %v", xerrors.ErrPWM, ch, err)
	}
	e.channel[ch].lastCountWritten = want
	e.channel[ch].written = true
	return nil
}

func (e *Expander) writeReg(reg, value byte) error {
	e.bus.EnqueueWrite(e.addr, []byte{reg, value})
	if _, err := e.bus.Flush(); err != nil {
		return fmt.Errorf("%w: write reg 0x%02X: %v", xerrors.ErrPWM, reg, err)
	}
	return nil
}

func countFor(load float64) int {
	return int(load * maxCount)
}

func roundHalfAway(v float64) float64 {
	if v < 0 {
		return -roundHalfAway(-v)
	}
	return float64(int(v + 0.5))
}
