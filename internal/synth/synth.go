// Package synth generates synthetic scanning sessions for testing and
// demos: a plausible camera model and depth frames of a rotating capture
// of a cylindrical subject.
package synth

import (
	"math"
	"math/rand"

	"github.com/scanforge/fmkit/internal/fm"
)

// Generator produces one synthetic scan and its frame sequence.
type Generator struct {
	// Configuration
	DepthWidth   int
	DepthHeight  int
	ImageWidth   int
	ImageHeight  int
	FrameRate    float64 // frames per second
	SubjectR     float64 // metres, radius of the synthetic subject
	CameraDist   float64 // metres, camera distance from the axis
	TurnRate     float64 // radians per second around the subject
	WithImages   bool
	ImageBytes   int

	scan *fm.Scan
	time int64
	rng  *rand.Rand
}

// NewGenerator creates a generator for the named scan with defaults that
// resemble a handheld depth sensor.
func NewGenerator(name string, seed int64) *Generator {
	g := &Generator{
		DepthWidth:  64,
		DepthHeight: 48,
		ImageWidth:  256,
		ImageHeight: 192,
		FrameRate:   10.0,
		SubjectR:    0.3,
		CameraDist:  1.0,
		TurnRate:    math.Pi / 4,
		WithImages:  true,
		ImageBytes:  512,
		rng:         rand.New(rand.NewSource(seed)),
	}
	g.scan = &fm.Scan{
		Name:            name,
		AngleOfView:     float32(math.Pi / 3),
		LandscapeAngle:  0,
		ViewElevation:   0.8,
		AngularVelocity: float32(g.TurnRate),
		InitialPosition: fm.Point3{X: float32(g.CameraDist), Y: 0, Z: 0.8},
		ImageWidth:      g.ImageWidth,
		ImageHeight:     g.ImageHeight,
		DepthWidth:      g.DepthWidth,
		DepthHeight:     g.DepthHeight,
	}
	return g
}

// Scan returns the scan header for the generated session.
func (g *Generator) Scan() *fm.Scan { return g.scan }

// NextFrame generates the next frame in the sequence.
func (g *Generator) NextFrame() *fm.ScanFrame {
	n := g.DepthWidth * g.DepthHeight
	depths := make([]float32, n)
	confidences := make([]fm.DepthConfidence, n)

	// Depth of a cylinder of radius SubjectR seen from CameraDist, with
	// per-pixel sensor noise. Pixels off the subject read far depth at low
	// confidence, as real sensors do.
	for i := 0; i < g.DepthHeight; i++ {
		for j := 0; j < g.DepthWidth; j++ {
			idx := i*g.DepthWidth + j
			u := (float64(j) - float64(g.DepthWidth)/2) / (float64(g.DepthWidth) / 2)
			hit := math.Abs(u)*g.CameraDist < g.SubjectR
			if hit {
				dx := g.SubjectR*math.Cos(u*math.Pi/2) - g.SubjectR
				depths[idx] = float32(g.CameraDist + dx + g.rng.Float64()*0.002)
				confidences[idx] = fm.ConfidenceHigh
			} else {
				depths[idx] = float32(3.0 + g.rng.Float64())
				confidences[idx] = fm.ConfidenceLow
			}
		}
	}

	frame := &fm.ScanFrame{
		Scan:             g.scan.Name,
		Time:             g.time,
		Depths:           depths,
		DepthConfidences: confidences,
	}
	if g.WithImages {
		frame.Image = fm.Image{Type: fm.ImagePNG, Data: g.imageData()}
	}
	g.time += int64(1e9 / g.FrameRate)
	return frame
}

// imageData fabricates an opaque payload standing in for encoded pixels.
// The container treats image bytes as opaque, so the content only needs to
// be stable per seed.
func (g *Generator) imageData() []byte {
	data := make([]byte, g.ImageBytes)
	g.rng.Read(data)
	return data
}
