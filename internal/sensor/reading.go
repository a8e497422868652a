// Package sensor implements the bench sensor sources: typed readings,
// per-kind value generators, and the periodic sampling loops that feed
// the ingest pipeline.
package sensor

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind identifies one of the fixed sensor types on the test bench.
type Kind string

const (
	KindForce  Kind = "force"
	KindMotor  Kind = "motor"
	KindCamera Kind = "camera"
)

// Kinds lists all supported sensor kinds in a stable order.
var Kinds = []Kind{KindForce, KindMotor, KindCamera}

// Valid reports whether k is a known sensor kind.
func (k Kind) Valid() bool {
	switch k {
	case KindForce, KindMotor, KindCamera:
		return true
	}
	return false
}

// Frame carries camera capture metadata. Brightness is on the 0..255
// scale; Exposure is the shutter factor derived from it.
type Frame struct {
	ImageID    int     `json:"image_id"`
	Resolution string  `json:"resolution"`
	Brightness int     `json:"brightness"`
	Exposure   float64 `json:"exposure"`
}

// Reading is a single immutable sensor measurement. Force and motor
// readings carry a scalar Value; camera readings carry a Frame.
type Reading struct {
	Timestamp float64 // unix seconds, always > 0
	Kind      Kind
	Value     float64
	Frame     *Frame
}

// readingJSON is the wire form: force/motor serialize value as a number,
// camera as the frame object.
type readingJSON struct {
	Timestamp float64     `json:"timestamp"`
	Kind      Kind        `json:"sensor_type"`
	Value     interface{} `json:"value"`
}

// MarshalJSON implements json.Marshaler.
func (r Reading) MarshalJSON() ([]byte, error) {
	out := readingJSON{Timestamp: r.Timestamp, Kind: r.Kind}
	if r.Kind == KindCamera {
		out.Value = r.Frame
	} else {
		out.Value = r.Value
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Reading) UnmarshalJSON(data []byte) error {
	var in readingJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	r.Timestamp = in.Timestamp
	r.Kind = in.Kind
	r.Value = 0
	r.Frame = nil

	switch v := in.Value.(type) {
	case float64:
		r.Value = v
	case map[string]interface{}:
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		frame := &Frame{}
		if err := json.Unmarshal(raw, frame); err != nil {
			return err
		}
		r.Frame = frame
	case nil:
	default:
		return fmt.Errorf("unsupported reading value type %T", in.Value)
	}
	return nil
}

// Validate checks the reading invariants: positive timestamp, known kind,
// and a value shape matching the kind.
func (r Reading) Validate() error {
	if r.Timestamp <= 0 {
		return fmt.Errorf("reading timestamp must be positive, got %v", r.Timestamp)
	}
	if !r.Kind.Valid() {
		return fmt.Errorf("unknown sensor kind %q", r.Kind)
	}
	if r.Kind == KindCamera && r.Frame == nil {
		return fmt.Errorf("camera reading requires a frame")
	}
	return nil
}

// Clock supplies the current time; swapped out in tests.
type Clock func() time.Time

// Unix converts a time to the float seconds representation used on readings.
func Unix(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
