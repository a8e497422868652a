// Package export writes recorded session data to CSV files for offline
// analysis.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/robotic-testing/rtb/internal/sensor"
)

// csvHeader matches the analysis tooling's expected column order.
var csvHeader = []string{"timestamp", "sensor_type", "value", "datetime", "session_time"}

// WriteCSV writes the readings to a timestamped CSV file under dir and
// returns the file path. sessionStart (unix seconds) anchors the
// session_time column; when 0, each reading anchors itself.
func WriteCSV(dir string, readings []sensor.Reading, sessionStart float64) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	filename := fmt.Sprintf("sensor_data_%s.csv", time.Now().Format("20060102_150405"))
	path := filepath.Join(dir, filename)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	defer func() { _ = f.Close() }()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return "", fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, r := range readings {
		row, err := readingRow(r, sessionStart)
		if err != nil {
			return "", err
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to flush CSV: %w", err)
	}
	return path, nil
}

func readingRow(r sensor.Reading, sessionStart float64) ([]string, error) {
	value := strconv.FormatFloat(r.Value, 'f', -1, 64)
	if r.Kind == sensor.KindCamera {
		raw, err := json.Marshal(r.Frame)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal camera frame: %w", err)
		}
		value = string(raw)
	}

	anchor := sessionStart
	if anchor == 0 {
		anchor = r.Timestamp
	}

	sec := int64(r.Timestamp)
	nsec := int64((r.Timestamp - float64(sec)) * float64(time.Second))
	dt := time.Unix(sec, nsec)

	return []string{
		strconv.FormatFloat(r.Timestamp, 'f', -1, 64),
		string(r.Kind),
		value,
		dt.Format(time.RFC3339Nano),
		strconv.FormatFloat(r.Timestamp-anchor, 'f', -1, 64),
	}, nil
}
