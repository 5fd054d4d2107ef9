package scene

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"render-interop/core"
	"render-interop/math"
)

// LoadModel returns the built-in mesh called name, or decodes the file at
// name by extension (.glb, .gltf, .obj).
func LoadModel(name string, log logrus.FieldLogger) (core.MeshData, error) {
	if mesh, ok := Builtin(name); ok {
		return mesh, nil
	}
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".glb", ".gltf":
		return LoadGLB(name, log)
	case ".obj":
		return LoadOBJ(name, log)
	default:
		return core.MeshData{}, fmt.Errorf("model %q: unsupported format %q (built-ins: %s)",
			name, ext, strings.Join(BuiltinNames(), ", "))
	}
}

// AABB is an axis-aligned bounding box.
type AABB struct {
	Min, Max math.Vec3
}

func (b AABB) Center() math.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Radius is the radius of the sphere enclosing the box.
func (b AABB) Radius() float32 {
	return b.Max.Sub(b.Min).Length() * 0.5
}

// Bounds returns the box around every vertex, or a zero box for an empty mesh.
func Bounds(mesh core.MeshData) AABB {
	if len(mesh.Vertices) == 0 {
		return AABB{}
	}
	b := AABB{Min: mesh.Vertices[0].Position, Max: mesh.Vertices[0].Position}
	for _, v := range mesh.Vertices[1:] {
		b.Min = b.Min.Min(v.Position)
		b.Max = b.Max.Max(v.Position)
	}
	return b
}

// normalColor remaps a unit normal from [-1,1] to a [0,1] color.
func normalColor(n math.Vec3) math.Vec3 {
	return math.Vec3{X: n.X*0.5 + 0.5, Y: n.Y*0.5 + 0.5, Z: n.Z*0.5 + 0.5}
}
