// Command flightcored is the onboard flight controller daemon: it
// brings up the I²C bus, IMU, PWM expander, motors, and radio link,
// then runs FlightControl's fixed-rate stabilizer until signalled to
// stop.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/aeroquad/flightcore/internal/config"
	"github.com/aeroquad/flightcore/internal/dashboard"
	"github.com/aeroquad/flightcore/internal/flightcontrol"
	"github.com/aeroquad/flightcore/internal/geometry"
	"github.com/aeroquad/flightcore/internal/i2cbus"
	"github.com/aeroquad/flightcore/internal/imu"
	"github.com/aeroquad/flightcore/internal/motor"
	"github.com/aeroquad/flightcore/internal/pid"
	"github.com/aeroquad/flightcore/internal/pwm"
	"github.com/aeroquad/flightcore/internal/radio"
)

func main() {
	configPath := flag.String("config", "/etc/flightcore/config.yaml", "Path to config file")
	calibPath := flag.String("calibration", "calibration.ini", "Path to calibration offsets file")
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("[main] flightcored starting")

	cfg := config.LoadConfig(*configPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("[main] received %v, shutting down", sig)
		cancel()
	}()

	if _, err := host.Init(); err != nil {
		log.Fatalf("[main] host.Init: %v", err)
	}
	physBus, err := i2creg.Open(cfg.I2C.DevicePath)
	if err != nil {
		log.Fatalf("[main] open i2c bus %s: %v", cfg.I2C.DevicePath, err)
	}
	defer physBus.Close()
	bus := i2cbus.New(physBus)

	accel, err := imu.NewAccelerometer(bus, cfg.I2C.AccelAddr, imu.AccelRange(cfg.IMU.AccelRange))
	if err != nil {
		log.Fatalf("[main] accelerometer init: %v", err)
	}
	defer accel.Close()

	gyro, err := imu.NewGyroscope(bus, cfg.I2C.GyroAddr, imu.GyroRange(cfg.IMU.GyroRange))
	if err != nil {
		log.Fatalf("[main] gyroscope init: %v", err)
	}
	defer gyro.Close()

	exp := pwm.New(bus, cfg.I2C.PWMAddr)
	if err := exp.SetFrequency(cfg.PWM.FrequencyHz); err != nil {
		log.Fatalf("[main] pwm SetFrequency: %v", err)
	}

	var motors [4]*motor.Motor
	for i := range motors {
		m, err := motor.New(exp, i, cfg.Motors.MinHighMs, cfg.Motors.MaxHighMs)
		if err != nil {
			log.Fatalf("[main] motor %d init: %v", i, err)
		}
		motors[i] = m
	}
	log.Println("[main] arming: holding idle signal for 3s")
	time.Sleep(3 * time.Second)

	fc := flightcontrol.New(accel, gyro, motors, flightcontrol.Config{
		SmoothingWindow:  cfg.IMU.SmoothingWindow,
		DerivativeWindow: cfg.Control.DeriveWindow,
		AnglePID:         toGains(cfg.Control.AnglePID),
		RatePID:          toGains(cfg.Control.RatePID),
		YawPID:           toGains(cfg.Control.YawPID),
		YawEnabled:       cfg.Control.YawEnabled,
		CalibrationPath:  *calibPath,
	})

	if cfg.Dash.Enabled {
		dash := dashboard.New(cfg.Dash.ListenAddr, fc, cfg.Control.RateHz)
		go func() {
			if err := dash.Run(ctx); err != nil {
				log.Printf("[main] dashboard exited: %v", err)
			}
		}()
	}

	var parity radio.Parity
	switch cfg.Radio.Parity {
	case "odd":
		parity = radio.ParityOdd
	case "even":
		parity = radio.ParityEven
	default:
		parity = radio.ParityNone
	}
	transport, err := radio.Open(cfg.Radio.PortPath, cfg.Radio.BaudRate, parity)
	if err != nil {
		log.Fatalf("[main] radio open: %v", err)
	}
	defer transport.Close()
	link := radio.New(transport)

	rl := &radioLink{link: link, transport: transport}
	go connectWithRetry(ctx, "radio", rl, 10)

	fc.StartTimer(ctx, cfg.Control.RateHz)
	defer fc.StopTimer()

	runCommandLoop(ctx, fc, link)

	fc.Stop()
	log.Println("[main] flightcored stopped")
}

func toGains(p config.PIDConfig) pid.Gains {
	return pid.Gains{P: p.P, I: p.I, D: p.D}
}

// runCommandLoop polls the radio link for incoming packets and applies
// each Motion packet as Move/Turn requests until ctx is done.
// Diagnostic packets are received and dropped; they do not retune the
// PID loops.
func runCommandLoop(ctx context.Context, fc *flightcontrol.FlightControl, link *radio.Link) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := link.Receive()
			if err != nil {
				log.Printf("[radio] receive error: %v", err)
				continue
			}
			if res == nil || res.Motion == nil {
				continue
			}
			m := res.Motion
			fc.Move(vectorFromMotion(m))
			fc.Turn(float64(m.Rot))
		}
	}
}

func vectorFromMotion(m *radio.Motion) geometry.Vector3 {
	return geometry.Vector3{
		X: float64(m.X) / 127,
		Y: float64(m.Y) / 127,
		Z: float64(m.Z) / 127,
	}
}

// radioLink satisfies connectable by wrapping both the framed Link and
// the raw Transport it sits on (Connect performs the handshake, Close
// tears down the serial device).
type radioLink struct {
	link      *radio.Link
	transport *radio.Transport
}

func (r *radioLink) Connect() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.link.Connect(ctx)
}

func (r *radioLink) Close() error {
	return r.transport.Close()
}

// connectable is satisfied by radioLink.
type connectable interface {
	Connect() error
	Close() error
}

// connectWithRetry blocks until c.Connect succeeds or ctx is canceled,
// backing off exponentially between attempts (1s initial, doubling,
// capped at 60s) rather than hammering a cold radio link on every
// failed handshake.
func connectWithRetry(ctx context.Context, name string, c connectable, maxAttempts int) {
	backoff := 1 * time.Second
	const backoffCap = 60 * time.Second
	attempt := 0

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := c.Connect(); err != nil {
			attempt++
			if attempt <= maxAttempts {
				log.Printf("[%s] attempt %d/%d failed: %v, next try in %v",
					name, attempt, maxAttempts, err, backoff)
			} else {
				log.Printf("[%s] attempt %d failed: %v, next try in %v",
					name, attempt, err, backoff)
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}

			backoff *= 2
			if backoff > backoffCap {
				backoff = backoffCap
			}
		} else {
			log.Printf("[%s] link up after %d attempt(s)", name, attempt+1)
			return
		}
	}
}
