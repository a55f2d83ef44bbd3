package calib

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aeroquad/flightcore/internal/geometry"
)

func TestLoadMissingFileReturnsZeroOffsets(t *testing.T) {
	got := Load(filepath.Join(t.TempDir(), "nope.ini"))
	if got != (geometry.CalibrationOffsets{}) {
		t.Fatalf("got %+v, want zero value", got)
	}
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.ini")
	want := geometry.CalibrationOffsets{
		AccelX: 0.01, AccelY: -0.02, AccelZ: 0.98,
		GyroX: 1.5, GyroY: -0.3, GyroZ: 0.0,
	}
	if err := Save(path, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got := Load(path)
	if got != want {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestLoadIgnoresUnknownKeysAndBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calibration.ini")
	content := "AccelX=1.5\n\nMysteryKey=99\nGyroZ=2.5\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	got := Load(path)
	if got.AccelX != 1.5 || got.GyroZ != 2.5 {
		t.Fatalf("got %+v", got)
	}
}
