package sensor

import (
	"math"
	"math/rand"
	"time"
)

// Sample is one generated measurement before it is stamped into a Reading.
// Force and motor generators fill Scalar; the camera generator fills Frame.
type Sample struct {
	Scalar float64
	Frame  *Frame
}

// Generator produces kind-specific values for a Source. Generate must not
// block and must confine failures to its error return.
type Generator interface {
	Kind() Kind
	Generate(now time.Time) (Sample, error)
}

// ForceGenerator synthesizes load-cell values: a slowly drifting baseline
// with gaussian noise and occasional contact spikes.
type ForceGenerator struct {
	Baseline       float64
	NoiseAmplitude float64
	SpikeChance    float64
	rng            *rand.Rand
}

// NewForceGenerator creates a force generator with bench defaults.
func NewForceGenerator(seed int64) *ForceGenerator {
	return &ForceGenerator{
		Baseline:       10.0,
		NoiseAmplitude: 2.0,
		SpikeChance:    0.05,
		rng:            rand.New(rand.NewSource(seed)),
	}
}

// Kind returns KindForce.
func (g *ForceGenerator) Kind() Kind { return KindForce }

// Generate returns the next force value in newtons.
func (g *ForceGenerator) Generate(now time.Time) (Sample, error) {
	if g.rng.Float64() < g.SpikeChance {
		spike := 80 + g.rng.Float64()*120
		return Sample{Scalar: round2(spike)}, nil
	}

	base := g.Baseline + math.Sin(Unix(now)*0.1)*3.0
	noise := g.rng.NormFloat64() * g.NoiseAmplitude
	force := math.Max(0, base+noise)
	return Sample{Scalar: round2(force)}, nil
}

// MotorGenerator synthesizes motor velocity following a sinusoidal profile.
type MotorGenerator struct {
	Amplitude float64
	Frequency float64 // Hz of the velocity sine wave
	rng       *rand.Rand
}

// NewMotorGenerator creates a motor generator with bench defaults.
func NewMotorGenerator(seed int64) *MotorGenerator {
	return &MotorGenerator{
		Amplitude: 50.0,
		Frequency: 0.5,
		rng:       rand.New(rand.NewSource(seed)),
	}
}

// Kind returns KindMotor.
func (g *MotorGenerator) Kind() Kind { return KindMotor }

// Generate returns the next motor velocity in RPM.
func (g *MotorGenerator) Generate(now time.Time) (Sample, error) {
	base := g.Amplitude * math.Sin(Unix(now)*g.Frequency*2*math.Pi)
	noise := g.rng.NormFloat64()
	return Sample{Scalar: round2(base + noise)}, nil
}

// CameraGenerator synthesizes capture metadata with shifting lighting
// conditions and exposure adapted to brightness.
type CameraGenerator struct {
	Resolution string
	imageID    int
	rng        *rand.Rand
}

// NewCameraGenerator creates a camera generator with bench defaults.
func NewCameraGenerator(seed int64) *CameraGenerator {
	return &CameraGenerator{
		Resolution: "640x480",
		imageID:    1000,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

// Kind returns KindCamera.
func (g *CameraGenerator) Kind() Kind { return KindCamera }

// Generate returns metadata for the next simulated capture.
func (g *CameraGenerator) Generate(now time.Time) (Sample, error) {
	g.imageID++

	brightness := 150 + g.rng.NormFloat64()*30 + 50*math.Sin(Unix(now)*0.05)
	brightness = math.Max(50, math.Min(255, brightness))

	// Exposure tracks brightness so dim scenes get longer shutters.
	exposure := 1.0 - (brightness-128)/255
	exposure = math.Max(0.1, math.Min(2.0, exposure))

	return Sample{Frame: &Frame{
		ImageID:    g.imageID,
		Resolution: g.Resolution,
		Brightness: int(brightness),
		Exposure:   round2(exposure),
	}}, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
