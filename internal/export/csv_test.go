package export

import (
	"encoding/csv"
	"os"
	"strings"
	"testing"

	"github.com/robotic-testing/rtb/internal/sensor"
)

func readRows(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("parse export: %v", err)
	}
	return rows
}

func TestWriteCSV(t *testing.T) {
	readings := []sensor.Reading{
		{Timestamp: 1000.5, Kind: sensor.KindForce, Value: 12.34},
		{Timestamp: 1001, Kind: sensor.KindMotor, Value: -45.6},
		{Timestamp: 1002.25, Kind: sensor.KindCamera, Frame: &sensor.Frame{
			ImageID:    1001,
			Resolution: "640x480",
			Brightness: 150,
			Exposure:   0.91,
		}},
	}

	path, err := WriteCSV(t.TempDir(), readings, 1000)
	if err != nil {
		t.Fatalf("WriteCSV() = %v", err)
	}

	rows := readRows(t, path)
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want header + 3", len(rows))
	}

	header := strings.Join(rows[0], ",")
	if header != "timestamp,sensor_type,value,datetime,session_time" {
		t.Errorf("header = %q", header)
	}

	force := rows[1]
	if force[0] != "1000.5" || force[1] != "force" || force[2] != "12.34" {
		t.Errorf("force row = %v", force)
	}
	if force[4] != "0.5" {
		t.Errorf("force session_time = %q, want 0.5", force[4])
	}

	camera := rows[3]
	if camera[1] != "camera" {
		t.Errorf("camera row kind = %q", camera[1])
	}
	if !strings.Contains(camera[2], `"brightness":150`) {
		t.Errorf("camera value not serialized as frame JSON: %q", camera[2])
	}
	if camera[4] != "2.25" {
		t.Errorf("camera session_time = %q, want 2.25", camera[4])
	}
}

func TestWriteCSVWithoutSessionStart(t *testing.T) {
	readings := []sensor.Reading{
		{Timestamp: 500, Kind: sensor.KindForce, Value: 1},
	}

	path, err := WriteCSV(t.TempDir(), readings, 0)
	if err != nil {
		t.Fatalf("WriteCSV() = %v", err)
	}

	rows := readRows(t, path)
	// With no session anchor each reading anchors itself.
	if rows[1][4] != "0" {
		t.Errorf("session_time = %q, want 0", rows[1][4])
	}
}

func TestWriteCSVEmptyReadings(t *testing.T) {
	path, err := WriteCSV(t.TempDir(), nil, 0)
	if err != nil {
		t.Fatalf("WriteCSV() = %v", err)
	}

	rows := readRows(t, path)
	if len(rows) != 1 {
		t.Errorf("rows = %d, want header only", len(rows))
	}
}

func TestWriteCSVCreatesDirectory(t *testing.T) {
	dir := t.TempDir() + "/nested/exports"

	path, err := WriteCSV(dir, []sensor.Reading{{Timestamp: 1, Kind: sensor.KindForce, Value: 1}}, 0)
	if err != nil {
		t.Fatalf("WriteCSV() = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("export file missing: %v", err)
	}
}
