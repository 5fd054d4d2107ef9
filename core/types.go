package core

import (
	"encoding/binary"

	"render-interop/math"
)

type Color struct {
	R, G, B, A float32
}

var (
	ColorWhite = Color{1, 1, 1, 1}
	ColorBlack = Color{0, 0, 0, 1}
	ColorRed   = Color{1, 0, 0, 1}
	ColorGreen = Color{0, 1, 0, 1}
	ColorBlue  = Color{0, 0, 1, 1}
)

// Vertex is the only vertex layout the interop pipeline consumes: a position
// followed by one auxiliary attribute (vertex color, or the normal when the
// asset has no colors).
type Vertex struct {
	Position math.Vec3
	Color    math.Vec3
}

// VertexStride is the size in bytes of one packed Vertex.
const VertexStride = 24

// Attribute offsets inside a packed Vertex.
const (
	VertexPositionOffset = 0
	VertexColorOffset    = 12
)

// MeshData is a flat vertex list and a flat triangle index list.
type MeshData struct {
	Vertices []Vertex
	Indices  []uint32
}

// VertexBytes packs the vertices as little-endian float32s.
func (m *MeshData) VertexBytes() []byte {
	b := make([]byte, 0, len(m.Vertices)*VertexStride)
	for _, v := range m.Vertices {
		b = v.Position.AppendBytes(b)
		b = v.Color.AppendBytes(b)
	}
	return b
}

// IndexBytes packs the indices as little-endian uint32s.
func (m *MeshData) IndexBytes() []byte {
	b := make([]byte, 0, len(m.Indices)*4)
	for _, i := range m.Indices {
		b = binary.LittleEndian.AppendUint32(b, i)
	}
	return b
}

// Triangle returns a single colored triangle facing +Z, handy for smoke tests
// and the examples.
func Triangle() MeshData {
	return MeshData{
		Vertices: []Vertex{
			{Position: math.Vec3{X: 0, Y: -0.5, Z: 0}, Color: math.Vec3{X: 1, Y: 0, Z: 0}},
			{Position: math.Vec3{X: 0.5, Y: 0.5, Z: 0}, Color: math.Vec3{X: 0, Y: 1, Z: 0}},
			{Position: math.Vec3{X: -0.5, Y: 0.5, Z: 0}, Color: math.Vec3{X: 0, Y: 0, Z: 1}},
		},
		Indices: []uint32{0, 1, 2},
	}
}

type Transform struct {
	Position math.Vec3
	Rotation math.Quaternion
	Scale    math.Vec3
}

// GetMatrix composes scale, rotation and translation for row vectors.
func (t Transform) GetMatrix() math.Mat4 {
	scale := math.Mat4Scale(t.Scale)
	rotation := t.Rotation.ToMat4()
	translation := math.Mat4Translation(t.Position)
	return scale.Mul(rotation).Mul(translation)
}
