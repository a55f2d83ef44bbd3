// Package calib loads and saves calibration.ini: a line-based
// Key=Value file holding the six accelerometer/gyroscope offset
// scalars. This is a pinned six-key dialect, not a general INI
// grammar.
package calib

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/aeroquad/flightcore/internal/geometry"
	"github.com/aeroquad/flightcore/internal/statuslog"
)

var logTag = statuslog.Tag("calib")

// DefaultPath is where Load/Save look by default.
const DefaultPath = "calibration.ini"

// Load reads offsets from path. A missing file is non-fatal: all
// offsets default to zero and a warning goes to stderr. Unknown keys
// are ignored.
func Load(path string) geometry.CalibrationOffsets {
	var offsets geometry.CalibrationOffsets

	f, err := os.Open(path)
	if err != nil {
		logTag.Printf("no calibration file at %s, using zero offsets", path)
		return offsets
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			continue
		}
		switch key {
		case "AccelX":
			offsets.AccelX = val
		case "AccelY":
			offsets.AccelY = val
		case "AccelZ":
			offsets.AccelZ = val
		case "GyroX":
			offsets.GyroX = val
		case "GyroY":
			offsets.GyroY = val
		case "GyroZ":
			offsets.GyroZ = val
		}
	}
	return offsets
}

// Save writes offsets to path in Key=Value form, one key per line.
func Save(path string, offsets geometry.CalibrationOffsets) error {
	var b strings.Builder
	fmt.Fprintf(&b, "AccelX=%g\n", offsets.AccelX)
	fmt.Fprintf(&b, "AccelY=%g\n", offsets.AccelY)
	fmt.Fprintf(&b, "AccelZ=%g\n", offsets.AccelZ)
	fmt.Fprintf(&b, "GyroX=%g\n", offsets.GyroX)
	fmt.Fprintf(&b, "GyroY=%g\n", offsets.GyroY)
	fmt.Fprintf(&b, "GyroZ=%g\n", offsets.GyroZ)
	return os.WriteFile(path, []byte(b.String()), 0644)
}
