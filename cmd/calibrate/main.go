// Command calibrate samples the accelerometer and gyroscope while the
// vehicle sits still and writes the resulting offsets to
// calibration.ini for flightcored to pick up.
package main

import (
	"flag"
	"log"
	"time"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/aeroquad/flightcore/internal/calib"
	"github.com/aeroquad/flightcore/internal/flightcontrol"
	"github.com/aeroquad/flightcore/internal/i2cbus"
	"github.com/aeroquad/flightcore/internal/imu"
	"github.com/aeroquad/flightcore/internal/motor"
	"github.com/aeroquad/flightcore/internal/pwm"
)

func main() {
	device := flag.String("device", "/dev/i2c-1", "I2C device path")
	pwmAddr := flag.Uint("pwm-addr", 0x40, "PWM expander I2C address")
	accelAddr := flag.Uint("accel-addr", 0x53, "accelerometer I2C address")
	gyroAddr := flag.Uint("gyro-addr", 0x69, "gyroscope I2C address")
	durationMs := flag.Int("duration-ms", 2000, "calibration sampling window, ms")
	out := flag.String("out", calib.DefaultPath, "output calibration file")
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

	accel, err := imu.NewAccelerometer(bus, uint16(*accelAddr), imu.Accel2G)
	if err != nil {
		log.Fatalf("accelerometer init: %v", err)
	}
	defer accel.Close()

	gyro, err := imu.NewGyroscope(bus, uint16(*gyroAddr), imu.Gyro250Dps)
	if err != nil {
		log.Fatalf("gyroscope init: %v", err)
	}
	defer gyro.Close()

	exp := pwm.New(bus, uint16(*pwmAddr))
	if err := exp.SetFrequency(100); err != nil {
		log.Fatalf("SetFrequency: %v", err)
	}
	var motors [4]*motor.Motor
	for i := range motors {
		m, err := motor.New(exp, i, 1.0, 2.0)
		if err != nil {
			log.Fatalf("motor %d init: %v", i, err)
		}
		motors[i] = m
	}

	fc := flightcontrol.New(accel, gyro, motors, flightcontrol.Config{
		SmoothingWindow:  1,
		DerivativeWindow: 3,
		CalibrationPath:  *out,
	})

	log.Printf("Calibrating for %v. Keep sensors still!", time.Duration(*durationMs)*time.Millisecond)
	log.Println("  Accelerometer : Range=2G")
	log.Println("      Gyroscope : Range=250dps")
	log.Println("...")

	if err := fc.Calibrate(*durationMs); err != nil {
		log.Fatalf("calibrate: %v", err)
	}

	log.Println("Done!")
}
