package recon

import (
	"math"
	"testing"
)

// auditMesh records push calls and fails the test the moment a triangle
// references a vertex that has not been appended yet.
type auditMesh struct {
	t         *testing.T
	vertices  int
	triangles int
}

func (m *auditMesh) AddVertex(v [3]float64) { m.vertices++ }
func (m *auditMesh) AddNormal(n [3]float64) {}
func (m *auditMesh) AddColor(c [3]float64)  {}
func (m *auditMesh) AddDensity(d float64)   {}

func (m *auditMesh) AddTriangle(tri [3]int) {
	for _, idx := range tri {
		if idx < 0 || idx >= m.vertices {
			m.t.Errorf("triangle %d references vertex %d with only %d appended", m.triangles, idx, m.vertices)
		}
	}
	m.triangles++
}

// fanReconstructor is a stand-in for the external routine: it copies
// points over and fans triangles from the first vertex.
var fanReconstructor = ReconstructorFunc(func(p *Params, cloud PointCloudView, mesh MeshSink) bool {
	n := cloud.Len()
	for i := 0; i < n; i++ {
		mesh.AddVertex(cloud.Point(i))
		if cloud.HasNormals() {
			mesh.AddNormal(cloud.Normal(i))
		}
		if cloud.HasColors() {
			mesh.AddColor(cloud.Color(i))
		}
	}
	for i := 2; i < n; i++ {
		mesh.AddTriangle([3]int{0, i - 1, i})
	}
	return true
})

func TestReconstructBoundary(t *testing.T) {
	cloud := &SliceCloud{
		Points: [][3]float64{
			{0, 0, 0},
			{1, 0, 0},
			{0, 1, 0},
		},
		Normals: [][3]float64{
			{0, 0, 1},
			{0, 0, 1},
			{0, 0, 1},
		},
	}
	if cloud.Len() != 3 {
		t.Fatalf("Len = %d, want 3", cloud.Len())
	}
	if !cloud.HasNormals() {
		t.Error("HasNormals = false, want true")
	}
	if cloud.HasColors() {
		t.Error("HasColors = true, want false")
	}

	mesh := &auditMesh{t: t}
	if ok := fanReconstructor.Reconstruct(DefaultParams(), cloud, mesh); !ok {
		t.Fatal("reconstruction reported failure")
	}
	if mesh.vertices != 3 {
		t.Errorf("got %d vertices, want 3", mesh.vertices)
	}
	if mesh.triangles != 1 {
		t.Errorf("got %d triangles, want 1", mesh.triangles)
	}
}

func TestSliceCloudMissingAttributes(t *testing.T) {
	cloud := &SliceCloud{Points: [][3]float64{{1, 2, 3}}}
	if got := cloud.Normal(0); got != ([3]float64{}) {
		t.Errorf("Normal on normal-less cloud = %v", got)
	}
	if got := cloud.Color(0); got != ([3]float64{}) {
		t.Errorf("Color on color-less cloud = %v", got)
	}
}

func TestDefaultParams(t *testing.T) {
	p := DefaultParams()
	if p.Boundary != BoundaryNeumann {
		t.Errorf("Boundary = %v, want BoundaryNeumann", p.Boundary)
	}
	if p.Depth != 8 || p.Iters != 8 || p.FullDepth != 5 {
		t.Errorf("octree defaults off: %+v", p)
	}
	if math.Abs(float64(p.Scale)-1.1) > 1e-6 || math.Abs(float64(p.SamplesPerNode)-1.5) > 1e-6 {
		t.Errorf("sampling defaults off: %+v", p)
	}
}
