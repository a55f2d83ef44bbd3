// Package motor maps a normalized speed to an ESC high-time and
// delegates the actual PWM output, including dither ticking, to
// internal/pwm.
package motor

import "github.com/aeroquad/flightcore/internal/pwm"

// Motor drives one ESC channel on a shared PwmExpander.
type Motor struct {
	exp      *pwm.Expander
	channel  int
	minHighMs float64
	maxHighMs float64
}

// New constructs a Motor on channel ch of exp, with the given min/max
// high-time range (typical Hobbywing 18A-class values: 1.26ms/1.6ms).
// It immediately writes the idle (speed 0) signal — callers must wait
// at least 3s before arming so the ESC can capture the idle reference.
func New(exp *pwm.Expander, ch int, minHighMs, maxHighMs float64) (*Motor, error) {
	m := &Motor{exp: exp, channel: ch, minHighMs: minHighMs, maxHighMs: maxHighMs}
	if err := m.SetSpeed(0); err != nil {
		return nil, err
	}
	return m, nil
}

// SetSpeed maps speed in [0,1] (negative treated as priming/idle, i.e.
// clamped to 0) to a high-time via high_time = min + speed*(max-min).
func (m *Motor) SetSpeed(speed float64) error {
	if speed < 0 {
		speed = 0
	}
	if speed > 1 {
		speed = 1
	}
	highMs := m.minHighMs + speed*(m.maxHighMs-m.minHighMs)
	return m.exp.SetHighTime(m.channel, highMs)
}

// Tick advances this motor's dither state by one phase.
func (m *Motor) Tick() error {
	return m.exp.Tick(m.channel)
}
