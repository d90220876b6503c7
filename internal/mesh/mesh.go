// Package mesh buffers reconstruction output and exports it.
package mesh

import (
	"bufio"
	"fmt"
	"io"
)

// Mesh accumulates the output of a reconstruction run. It implements
// recon.MeshSink.
type Mesh struct {
	Vertices  [][3]float64
	Normals   [][3]float64
	Colors    [][3]float64
	Densities []float64
	Triangles [][3]int
}

func (m *Mesh) AddVertex(v [3]float64) { m.Vertices = append(m.Vertices, v) }
func (m *Mesh) AddNormal(n [3]float64) { m.Normals = append(m.Normals, n) }
func (m *Mesh) AddColor(c [3]float64)  { m.Colors = append(m.Colors, c) }
func (m *Mesh) AddDensity(d float64)   { m.Densities = append(m.Densities, d) }
func (m *Mesh) AddTriangle(t [3]int)   { m.Triangles = append(m.Triangles, t) }

// Validate checks the structural invariants a well-behaved reconstruction
// routine must have honoured: triangle indices within the vertex range,
// and per-vertex attributes parallel to the vertices when present.
func (m *Mesh) Validate() error {
	for i, t := range m.Triangles {
		for _, idx := range t {
			if idx < 0 || idx >= len(m.Vertices) {
				return fmt.Errorf("triangle %d references vertex %d of %d", i, idx, len(m.Vertices))
			}
		}
	}
	if len(m.Normals) > 0 && len(m.Normals) != len(m.Vertices) {
		return fmt.Errorf("%d normals for %d vertices", len(m.Normals), len(m.Vertices))
	}
	if len(m.Colors) > 0 && len(m.Colors) != len(m.Vertices) {
		return fmt.Errorf("%d colors for %d vertices", len(m.Colors), len(m.Vertices))
	}
	if len(m.Densities) > 0 && len(m.Densities) != len(m.Vertices) {
		return fmt.Errorf("%d densities for %d vertices", len(m.Densities), len(m.Vertices))
	}
	return nil
}

// WriteOBJ writes the mesh in Wavefront OBJ form: vertices, optional
// normals, then faces with 1-based indices.
func (m *Mesh) WriteOBJ(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, v := range m.Vertices {
		fmt.Fprintf(bw, "v %g %g %g\n", v[0], v[1], v[2])
	}
	for _, n := range m.Normals {
		fmt.Fprintf(bw, "vn %g %g %g\n", n[0], n[1], n[2])
	}
	withNormals := len(m.Normals) == len(m.Vertices) && len(m.Vertices) > 0
	for _, t := range m.Triangles {
		if withNormals {
			fmt.Fprintf(bw, "f %d//%d %d//%d %d//%d\n",
				t[0]+1, t[0]+1, t[1]+1, t[1]+1, t[2]+1, t[2]+1)
		} else {
			fmt.Fprintf(bw, "f %d %d %d\n", t[0]+1, t[1]+1, t[2]+1)
		}
	}
	return bw.Flush()
}
