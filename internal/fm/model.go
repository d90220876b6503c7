// Package fm implements the .fm container format: a streaming, versioned
// sequence of scan headers and depth frames produced by a 3D-scanning
// session. A Writer encodes typed records into a caller-supplied Sink; a
// Reader decodes them back. Three wire revisions exist (see Version); the
// in-memory model below is the superset, and each revision's encoder maps
// onto the subset it can represent.
package fm

import "fmt"

// Point3 is a 3D point or direction in metres.
type Point3 struct {
	X float32
	Y float32
	Z float32
}

// ImageType tags the codec of an embedded frame image.
type ImageType int32

const (
	ImageNone ImageType = 0
	ImagePNG  ImageType = 1
	ImageJPEG ImageType = 2
)

func (t ImageType) String() string {
	switch t {
	case ImageNone:
		return "none"
	case ImagePNG:
		return "png"
	case ImageJPEG:
		return "jpeg"
	default:
		return fmt.Sprintf("image type %d", int32(t))
	}
}

// ParseImageType parses the CLI/file spelling of an image type.
func ParseImageType(s string) (ImageType, error) {
	switch s {
	case "png":
		return ImagePNG, nil
	case "jpeg":
		return ImageJPEG, nil
	default:
		return ImageNone, malformed("unknown image type %q (can be 'png' or 'jpeg')", s)
	}
}

// Image is a codec-tagged byte payload. The codec implementation itself is
// out of scope here; Image is only the typed container.
type Image struct {
	Type ImageType
	Data []byte
}

// DepthConfidence grades the reliability of one depth sample.
type DepthConfidence int32

const (
	ConfidenceNone   DepthConfidence = 0
	ConfidenceLow    DepthConfidence = 1
	ConfidenceMedium DepthConfidence = 2
	ConfidenceHigh   DepthConfidence = 3
)

func (c DepthConfidence) String() string {
	switch c {
	case ConfidenceNone:
		return "none"
	case ConfidenceLow:
		return "low"
	case ConfidenceMedium:
		return "medium"
	case ConfidenceHigh:
		return "high"
	default:
		return fmt.Sprintf("confidence %d", int32(c))
	}
}

// ParseDepthConfidence parses the CLI spelling of a confidence grade.
func ParseDepthConfidence(s string) (DepthConfidence, error) {
	switch s {
	case "low":
		return ConfidenceLow, nil
	case "medium":
		return ConfidenceMedium, nil
	case "high":
		return ConfidenceHigh, nil
	default:
		return ConfidenceNone, malformed("unknown depth confidence %q (can be 'low', 'medium' or 'high')", s)
	}
}

// Scan is one capture session segment: the camera trajectory model plus
// the pixel grid every frame under it must honour.
//
// The camera model is the extended (Version3) one. Earlier revisions carry
// a subset: Version1 encodes only AngularVelocity, InitialPosition (as the
// eye position) and ViewElevation; Version2 adds the pixel grid and treats
// AngularVelocity as the linear camera velocity of that revision.
type Scan struct {
	Name string

	AngleOfView     float32 // horizontal angle of view, radians
	LandscapeAngle  float32 // device roll at capture start, radians
	ViewElevation   float32 // camera height above the model origin
	AngularVelocity float32 // turntable angular velocity, radians/sec
	InitialPosition Point3

	ImageWidth  int
	ImageHeight int
	DepthWidth  int
	DepthHeight int
}

// DepthLen returns the expected length of a frame's depth array.
func (s *Scan) DepthLen() int {
	return s.DepthWidth * s.DepthHeight
}

// ScanFrame is one timestamped sample belonging to a Scan.
//
// Depths is row-major with length Scan.DepthWidth*Scan.DepthHeight.
// DepthConfidences, when present, parallels Depths. Both slices are
// borrowed for the duration of the write call only.
type ScanFrame struct {
	Scan             string // name of the owning scan
	Time             int64  // monotonic capture time, nanoseconds
	Image            Image
	Depths           []float32
	DepthConfidences []DepthConfidence
}

// Record is one decoded container record: exactly one of Scan or Frame is
// non-nil.
type Record struct {
	Scan  *Scan
	Frame *ScanFrame
}
