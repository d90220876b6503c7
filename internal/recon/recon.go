// Package recon defines the boundary between caller-owned geometry and an
// external surface-reconstruction routine. The routine pulls input points
// through PointCloudView and pushes its output through MeshSink; nothing
// in this package computes geometry.
package recon

// PointCloudView is a read-only, zero-copy view over an oriented point
// cloud. Indices are assumed valid: the view is a marshaling surface, not
// a safety boundary, and out-of-range access is the caller's bug.
type PointCloudView interface {
	Len() int
	HasNormals() bool
	HasColors() bool
	Point(i int) [3]float64
	Normal(i int) [3]float64
	Color(i int) [3]float64
}

// MeshSink receives reconstruction output append-only. Triangle indices
// refer to vertices appended so far; honouring that is the reconstruction
// routine's contract and is not validated here.
type MeshSink interface {
	AddVertex(v [3]float64)
	AddNormal(n [3]float64)
	AddColor(c [3]float64)
	AddDensity(d float64)
	AddTriangle(t [3]int)
}

// BoundaryType selects the finite-element boundary condition.
type BoundaryType int

const (
	BoundaryFree BoundaryType = iota
	BoundaryDirichlet
	BoundaryNeumann
)

// Params are the tuning knobs passed through to the reconstruction
// routine. They are opaque to this layer; the field meanings belong to the
// screened-Poisson solver behind the boundary.
type Params struct {
	Boundary BoundaryType

	// Depth bounds the reconstruction octree: depth d solves on a
	// 2^d x 2^d x 2^d grid, adapted down to the sampling density.
	Depth           int
	FinestCellWidth float32
	Scale           float32
	SamplesPerNode  float32
	PointWeight     float32
	Iters           int

	Density         bool
	WithColors      bool
	ColorPullFactor float32

	NormalConfidence     float32
	NormalConfidenceBias float32

	LinearFit   bool
	Threads     int
	FullDepth   int
	BaseDepth   int
	BaseVCycles int
	CGAccuracy  float32
}

// DefaultParams returns the solver defaults.
func DefaultParams() *Params {
	return &Params{
		Boundary:        BoundaryNeumann,
		Depth:           8,
		Scale:           1.1,
		SamplesPerNode:  1.5,
		PointWeight:     2.0,
		Iters:           8,
		WithColors:      true,
		ColorPullFactor: 32.0,
		Threads:         1,
		FullDepth:       5,
		BaseVCycles:     1,
		CGAccuracy:      1.0e-3,
	}
}

// Reconstructor is the external routine: it consumes the cloud via pull
// calls, produces the mesh via push calls, and reports success.
type Reconstructor interface {
	Reconstruct(p *Params, cloud PointCloudView, mesh MeshSink) bool
}

// ReconstructorFunc adapts a function to the Reconstructor interface.
type ReconstructorFunc func(p *Params, cloud PointCloudView, mesh MeshSink) bool

func (f ReconstructorFunc) Reconstruct(p *Params, cloud PointCloudView, mesh MeshSink) bool {
	return f(p, cloud, mesh)
}

// SliceCloud is a PointCloudView over parallel slices, the common shape on
// the caller side. Normals and Colors may be nil; when present they must
// parallel Points.
type SliceCloud struct {
	Points  [][3]float64
	Normals [][3]float64
	Colors  [][3]float64
}

func (c *SliceCloud) Len() int         { return len(c.Points) }
func (c *SliceCloud) HasNormals() bool { return len(c.Normals) > 0 }
func (c *SliceCloud) HasColors() bool  { return len(c.Colors) > 0 }

func (c *SliceCloud) Point(i int) [3]float64 { return c.Points[i] }

func (c *SliceCloud) Normal(i int) [3]float64 {
	if len(c.Normals) == 0 {
		return [3]float64{}
	}
	return c.Normals[i]
}

func (c *SliceCloud) Color(i int) [3]float64 {
	if len(c.Colors) == 0 {
		return [3]float64{}
	}
	return c.Colors[i]
}
