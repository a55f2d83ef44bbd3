// Command primemotors sets every PWM channel to a priming signal and
// holds it for a few seconds, for bench bring-up before the production
// daemon is wired in.
package main

import (
	"flag"
	"log"
	"time"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/aeroquad/flightcore/internal/i2cbus"
	"github.com/aeroquad/flightcore/internal/motor"
	"github.com/aeroquad/flightcore/internal/pwm"
)

func main() {
	device := flag.String("device", "/dev/i2c-1", "I2C device path")
	addr := flag.Uint("addr", 0x40, "PWM expander I2C address")
	freq := flag.Float64("freq", 50, "PWM frequency in Hz")
	minMs := flag.Float64("min-ms", 1.25, "priming high-time in ms")
	maxMs := flag.Float64("max-ms", 1.4, "high-time ceiling, ms (only the idle/min end is exercised here)")
	hold := flag.Duration("hold", 3*time.Second, "how long to hold the priming signal")
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	if _, err := host.Init(); err != nil {
		log.Fatalf("host.Init: %v", err)
	}
	conn, err := i2creg.Open(*device)
	if err != nil {
		log.Fatalf("open %s: %v", *device, err)
	}
	defer conn.Close()

	bus := i2cbus.New(conn)
	exp := pwm.New(bus, uint16(*addr))
	if err := exp.SetFrequency(*freq); err != nil {
		log.Fatalf("SetFrequency: %v", err)
	}

	log.Println(" == Priming motors (all channels)... ==")

	const numChannels = 16
	var motors [numChannels]*motor.Motor
	for i := range motors {
		m, err := motor.New(exp, i, *minMs, *maxMs)
		if err != nil {
			log.Fatalf("motor %d init: %v", i, err)
		}
		motors[i] = m
	}

	time.Sleep(*hold)
	log.Println(" == Primed motors on all PWM channels ==")
}
