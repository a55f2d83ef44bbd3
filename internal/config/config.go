// Package config loads and persists the flight controller's runtime
// configuration: YAML on disk, overridable by a .env file and real
// environment variables, in that precedence order.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/aeroquad/flightcore/internal/statuslog"
)

var logTag = statuslog.Tag("config")

// Config holds every tunable the flight controller needs at startup.
type Config struct {
	mu sync.RWMutex

	I2C     I2CConfig     `yaml:"i2c"`
	PWM     PWMConfig     `yaml:"pwm"`
	Motors  MotorsConfig  `yaml:"motors"`
	IMU     IMUConfig     `yaml:"imu"`
	Control ControlConfig `yaml:"control"`
	Radio   RadioConfig   `yaml:"radio"`
	Dash    DashConfig    `yaml:"dashboard"`

	path string
}

type I2CConfig struct {
	DevicePath string `yaml:"device_path"`
	PWMAddr    uint16 `yaml:"pwm_addr"`
	AccelAddr  uint16 `yaml:"accel_addr"`
	GyroAddr   uint16 `yaml:"gyro_addr"`
}

type PWMConfig struct {
	FrequencyHz float64 `yaml:"frequency_hz"`
}

type MotorsConfig struct {
	MinHighMs float64 `yaml:"min_high_ms"`
	MaxHighMs float64 `yaml:"max_high_ms"`
}

type IMUConfig struct {
	AccelRange      int `yaml:"accel_range"` // 0=2G 1=4G 2=8G 3=16G
	GyroRange       int `yaml:"gyro_range"`  // 0=250dps 1=500dps 2=2000dps
	SmoothingWindow int `yaml:"smoothing_window"`
}

type ControlConfig struct {
	RateHz       float64    `yaml:"rate_hz"`
	AnglePID     PIDConfig  `yaml:"angle_pid"`
	RatePID      PIDConfig  `yaml:"rate_pid"`
	YawEnabled   bool       `yaml:"yaw_enabled"`
	YawPID       PIDConfig  `yaml:"yaw_pid"`
	DeriveWindow int        `yaml:"derivative_window"`
}

type PIDConfig struct {
	P float64 `yaml:"p"`
	I float64 `yaml:"i"`
	D float64 `yaml:"d"`
}

type RadioConfig struct {
	PortPath string `yaml:"port_path"`
	BaudRate int    `yaml:"baud_rate"`
	Parity   string `yaml:"parity"` // "none", "odd", "even"
}

type DashConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

// DefaultConfig returns a config with sensible bench defaults.
func DefaultConfig() *Config {
	return &Config{
		I2C: I2CConfig{
			DevicePath: "/dev/i2c-1",
			PWMAddr:    0x40,
			AccelAddr:  0x53,
			GyroAddr:   0x69,
		},
		PWM: PWMConfig{
			FrequencyHz: 400,
		},
		Motors: MotorsConfig{
			MinHighMs: 1.26,
			MaxHighMs: 1.6,
		},
		IMU: IMUConfig{
			AccelRange:      0,
			GyroRange:       0,
			SmoothingWindow: 10,
		},
		Control: ControlConfig{
			RateHz:       100,
			AnglePID:     PIDConfig{P: 2.0, I: 0.0, D: 0.5},
			RatePID:      PIDConfig{P: 0.6, I: 0.1, D: 0.0},
			YawEnabled:   false,
			YawPID:       PIDConfig{P: 1.0, I: 0.0, D: 0.0},
			DeriveWindow: 5,
		},
		Radio: RadioConfig{
			PortPath: "/dev/ttyRadio",
			BaudRate: 57600,
			Parity:   "even",
		},
		Dash: DashConfig{
			Enabled:    false,
			ListenAddr: ":8090",
		},
	}
}

// LoadConfig reads config from a YAML file, then applies .env and
// environment variable overrides. Falls back to defaults if the file
// isn't found or fails to parse.
func LoadConfig(path string) *Config {
	cfg := DefaultConfig()
	cfg.path = path

	data, err := os.ReadFile(path)
	if err != nil {
		logTag.Printf("no config at %s, using defaults", path)
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		logTag.Printf("error parsing %s: %v, using defaults", path, err)
		cfg = DefaultConfig()
		cfg.path = path
	} else {
		logTag.Printf("loaded from %s", path)
	}

	envPaths := []string{
		filepath.Join(filepath.Dir(path), ".env"),
		".env",
	}
	for _, ep := range envPaths {
		loadEnvFile(ep)
	}

	cfg.applyEnvOverrides()
	return cfg
}

func loadEnvFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.Trim(strings.TrimSpace(parts[1]), `"'`)
		if os.Getenv(key) == "" {
			os.Setenv(key, val)
		}
	}
}

// applyEnvOverrides reads environment variables and overrides config
// values. Supported: RADIO_PORT, RADIO_BAUD, RADIO_PARITY, I2C_DEVICE,
// PWM_ADDR, ACCEL_ADDR, GYRO_ADDR, PWM_FREQUENCY_HZ, CONTROL_RATE_HZ,
// DASHBOARD_ENABLED, DASHBOARD_ADDR.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("RADIO_PORT"); v != "" {
		c.Radio.PortPath = v
	}
	if v := os.Getenv("RADIO_BAUD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Radio.BaudRate = n
		}
	}
	if v := os.Getenv("RADIO_PARITY"); v != "" {
		c.Radio.Parity = v
	}
	if v := os.Getenv("I2C_DEVICE"); v != "" {
		c.I2C.DevicePath = v
	}
	if v := os.Getenv("PWM_ADDR"); v != "" {
		if n, err := strconv.ParseUint(v, 0, 16); err == nil {
			c.I2C.PWMAddr = uint16(n)
		}
	}
	if v := os.Getenv("ACCEL_ADDR"); v != "" {
		if n, err := strconv.ParseUint(v, 0, 16); err == nil {
			c.I2C.AccelAddr = uint16(n)
		}
	}
	if v := os.Getenv("GYRO_ADDR"); v != "" {
		if n, err := strconv.ParseUint(v, 0, 16); err == nil {
			c.I2C.GyroAddr = uint16(n)
		}
	}
	if v := os.Getenv("PWM_FREQUENCY_HZ"); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			c.PWM.FrequencyHz = n
		}
	}
	if v := os.Getenv("CONTROL_RATE_HZ"); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			c.Control.RateHz = n
		}
	}
	if v := os.Getenv("DASHBOARD_ENABLED"); v != "" {
		c.Dash.Enabled = v == "1" || v == "true" || v == "yes"
	}
	if v := os.Getenv("DASHBOARD_ADDR"); v != "" {
		c.Dash.ListenAddr = v
	}
}

// Save writes the config to its YAML file.
func (c *Config) Save() error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.path == "" {
		c.path = "flightcore.yaml"
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0644)
}

