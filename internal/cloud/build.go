// Package cloud builds an unorganised point cloud from the depth frames of
// a scanning session, undoing the camera trajectory encoded in each scan
// header.
package cloud

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/scanforge/fmkit/internal/fm"
	"github.com/scanforge/fmkit/internal/recon"
)

// Params filter which depth samples contribute points.
type Params struct {
	// MinDepthConfidence drops samples graded below it. Frames without
	// confidence data (minimal-revision containers) pass the filter.
	MinDepthConfidence fm.DepthConfidence

	// Z window and maximum distance from the Z axis, in model space.
	MinZ         float64
	MaxZ         float64
	MaxZDistance float64
}

// DefaultParams keeps only high-confidence samples and applies no spatial
// window.
func DefaultParams() *Params {
	return &Params{
		MinDepthConfidence: fm.ConfidenceHigh,
		MinZ:               math.Inf(-1),
		MaxZ:               math.Inf(1),
		MaxZDistance:       math.Inf(1),
	}
}

// Build unprojects every depth sample of every frame into model space.
// Frames are taken in stream order; the first frame's time is the rotation
// base for the scan's angular velocity.
func Build(scans map[string]*fm.Scan, frames []*fm.ScanFrame, p *Params) ([]r3.Vec, error) {
	if p == nil {
		p = DefaultParams()
	}
	var points []r3.Vec
	var timeBase int64
	if len(frames) > 0 {
		timeBase = frames[0].Time
	}

	for _, frame := range frames {
		scan, ok := scans[frame.Scan]
		if !ok {
			return nil, fmt.Errorf("frame references unknown scan %q", frame.Scan)
		}
		points = appendFramePoints(points, scan, frame, timeBase, p)
	}
	return points, nil
}

func appendFramePoints(points []r3.Vec, scan *fm.Scan, frame *fm.ScanFrame, timeBase int64, p *Params) []r3.Vec {
	tan := math.Tan(float64(scan.AngleOfView) / 2)

	landscapeRot := r3.NewRotation(float64(scan.LandscapeAngle), r3.Vec{Z: 1})

	eye := r3.Vec{
		X: float64(scan.InitialPosition.X),
		Y: float64(scan.InitialPosition.Y),
		Z: float64(scan.InitialPosition.Z),
	}
	elev := r3.Vec{Z: float64(scan.ViewElevation)}
	look := r3.Sub(eye, elev)

	// Axis perpendicular to the look direction's ground projection, so the
	// rotation tilts the camera axis onto the look vector.
	var lookAxis r3.Vec
	if look.Y != 0 {
		slope := -look.X / look.Y
		x := 1 / math.Sqrt(1+slope*slope)
		lookAxis = r3.Vec{X: x, Y: slope * x}
	} else {
		lookAxis = r3.Vec{Y: 1}
	}
	lookAngle := math.Atan(look.Z/math.Hypot(look.X, look.Y)) + math.Pi/2
	lookRot := r3.NewRotation(lookAngle, lookAxis)

	rot := r3.Rotation(quat.Mul(quat.Number(lookRot), quat.Number(landscapeRot)))

	timestamp := float64(frame.Time-timeBase) / 1e9
	cameraAngle := timestamp * float64(scan.AngularVelocity)
	timeRot := r3.NewRotation(cameraAngle, r3.Vec{Z: 1})

	depthWidth := float64(scan.DepthWidth)
	for i := 0; i < scan.DepthHeight; i++ {
		for j := 0; j < scan.DepthWidth; j++ {
			idx := i*scan.DepthWidth + j
			if len(frame.DepthConfidences) > 0 && frame.DepthConfidences[idx] < p.MinDepthConfidence {
				continue
			}

			depth := float64(frame.Depths[idx])
			w := float64(j) - depthWidth/2
			h := float64(i) - float64(scan.DepthHeight)/2
			projSquare := w*w + h*h

			denom := math.Sqrt(depthWidth*depthWidth + 4*projSquare*tan*tan)
			xyFactor := 2 * depth * tan / denom
			local := r3.Vec{
				X: w * xyFactor,
				Y: h * xyFactor,
				Z: depth * depthWidth / denom,
			}

			point := r3.Add(r3.Add(rot.Rotate(local), look), elev)
			point = timeRot.Rotate(point)

			if point.Z < p.MinZ || point.Z > p.MaxZ {
				continue
			}
			if math.Hypot(point.X, point.Y) > p.MaxZDistance {
				continue
			}
			points = append(points, point)
		}
	}
	return points
}

// VecCloud adapts a point slice to the reconstruction boundary's pull
// interface. It carries no normals or colors.
type VecCloud []r3.Vec

var _ recon.PointCloudView = VecCloud(nil)

func (c VecCloud) Len() int         { return len(c) }
func (c VecCloud) HasNormals() bool { return false }
func (c VecCloud) HasColors() bool  { return false }

func (c VecCloud) Point(i int) [3]float64 {
	return [3]float64{c[i].X, c[i].Y, c[i].Z}
}

func (c VecCloud) Normal(i int) [3]float64 { return [3]float64{} }
func (c VecCloud) Color(i int) [3]float64  { return [3]float64{} }
