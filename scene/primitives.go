package scene

import (
	"sort"

	"github.com/chewxy/math32"

	"render-interop/core"
	"render-interop/math"
)

// builtins are the meshes selectable by name instead of a model path.
var builtins = map[string]func() core.MeshData{
	"triangle": core.Triangle,
	"cube":     func() core.MeshData { return CreateCube(1) },
	"sphere":   func() core.MeshData { return CreateSphere(0.5, 32, 16) },
	"plane":    func() core.MeshData { return CreatePlane(2, 2, 4) },
	"pyramid":  func() core.MeshData { return CreatePyramid(1, 1) },
}

// Builtin returns the named generated mesh.
func Builtin(name string) (core.MeshData, bool) {
	fn, ok := builtins[name]
	if !ok {
		return core.MeshData{}, false
	}
	return fn(), true
}

// BuiltinNames lists the names Builtin accepts, sorted.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for n := range builtins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// CreateSphere generates a UV-sphere mesh
func CreateSphere(radius float32, segments, rings int) core.MeshData {
	if segments < 3 {
		segments = 3
	}
	if rings < 2 {
		rings = 2
	}

	var mesh core.MeshData
	for ring := 0; ring <= rings; ring++ {
		phi := float32(ring) * math32.Pi / float32(rings)
		sinPhi, cosPhi := math32.Sincos(phi)

		for seg := 0; seg <= segments; seg++ {
			theta := float32(seg) * 2 * math32.Pi / float32(segments)
			sinTheta, cosTheta := math32.Sincos(theta)
			normal := math.Vec3{
				X: sinPhi * cosTheta,
				Y: cosPhi,
				Z: sinPhi * sinTheta,
			}
			mesh.Vertices = append(mesh.Vertices, core.Vertex{
				Position: normal.Mul(radius),
				Color:    normalColor(normal),
			})
		}
	}

	for ring := 0; ring < rings; ring++ {
		for seg := 0; seg < segments; seg++ {
			current := uint32(ring*(segments+1) + seg)
			next := current + uint32(segments+1)

			mesh.Indices = append(mesh.Indices, current, next, current+1)
			mesh.Indices = append(mesh.Indices, current+1, next, next+1)
		}
	}
	return mesh
}

// CreatePlane generates a flat plane in XZ
func CreatePlane(width, depth float32, subdivisions int) core.MeshData {
	if subdivisions < 1 {
		subdivisions = 1
	}

	var mesh core.MeshData
	halfW := width / 2.0
	halfD := depth / 2.0

	for z := 0; z <= subdivisions; z++ {
		for x := 0; x <= subdivisions; x++ {
			u := float32(x) / float32(subdivisions)
			v := float32(z) / float32(subdivisions)
			// Checker tint so the plane's orientation is visible.
			shade := float32(0.6)
			if (x+z)%2 == 0 {
				shade = 0.9
			}
			mesh.Vertices = append(mesh.Vertices, core.Vertex{
				Position: math.Vec3{X: -halfW + u*width, Y: 0, Z: -halfD + v*depth},
				Color:    math.Vec3{X: shade, Y: shade, Z: shade},
			})
		}
	}

	for z := 0; z < subdivisions; z++ {
		for x := 0; x < subdivisions; x++ {
			topLeft := uint32(z*(subdivisions+1) + x)
			topRight := topLeft + 1
			bottomLeft := topLeft + uint32(subdivisions+1)
			bottomRight := bottomLeft + 1

			mesh.Indices = append(mesh.Indices, topLeft, bottomLeft, topRight)
			mesh.Indices = append(mesh.Indices, topRight, bottomLeft, bottomRight)
		}
	}
	return mesh
}

// CreateCube generates a cube centered on the origin, one color per face.
func CreateCube(size float32) core.MeshData {
	h := size / 2
	corners := [8]math.Vec3{
		{X: -h, Y: -h, Z: -h}, {X: h, Y: -h, Z: -h}, {X: h, Y: h, Z: -h}, {X: -h, Y: h, Z: -h},
		{X: -h, Y: -h, Z: h}, {X: h, Y: -h, Z: h}, {X: h, Y: h, Z: h}, {X: -h, Y: h, Z: h},
	}
	faces := [6][4]int{
		{4, 5, 6, 7}, // +Z
		{1, 0, 3, 2}, // -Z
		{5, 1, 2, 6}, // +X
		{0, 4, 7, 3}, // -X
		{7, 6, 2, 3}, // +Y
		{0, 1, 5, 4}, // -Y
	}

	var mesh core.MeshData
	for _, f := range faces {
		appendQuad(&mesh, corners[f[0]], corners[f[1]], corners[f[2]], corners[f[3]])
	}
	return mesh
}

// CreatePyramid generates a pyramid with a square base
func CreatePyramid(width, height float32) core.MeshData {
	halfW := width / 2.0
	halfH := height / 2.0
	tip := math.Vec3{X: 0, Y: halfH, Z: 0}
	base := [4]math.Vec3{
		{X: -halfW, Y: -halfH, Z: -halfW},
		{X: halfW, Y: -halfH, Z: -halfW},
		{X: halfW, Y: -halfH, Z: halfW},
		{X: -halfW, Y: -halfH, Z: halfW},
	}

	var mesh core.MeshData
	appendQuad(&mesh, base[0], base[1], base[2], base[3])
	for i := range base {
		appendTriangle(&mesh, base[(i+1)%4], base[i], tip)
	}
	return mesh
}

// appendTriangle adds a flat-shaded triangle colored by its face normal.
func appendTriangle(mesh *core.MeshData, a, b, c math.Vec3) {
	color := normalColor(b.Sub(a).Cross(c.Sub(a)).Normalize())
	base := uint32(len(mesh.Vertices))
	for _, p := range []math.Vec3{a, b, c} {
		mesh.Vertices = append(mesh.Vertices, core.Vertex{Position: p, Color: color})
	}
	mesh.Indices = append(mesh.Indices, base, base+1, base+2)
}

// appendQuad adds a flat-shaded quad given in winding order.
func appendQuad(mesh *core.MeshData, a, b, c, d math.Vec3) {
	color := normalColor(b.Sub(a).Cross(c.Sub(a)).Normalize())
	base := uint32(len(mesh.Vertices))
	for _, p := range []math.Vec3{a, b, c, d} {
		mesh.Vertices = append(mesh.Vertices, core.Vertex{Position: p, Color: color})
	}
	mesh.Indices = append(mesh.Indices, base, base+1, base+2, base, base+2, base+3)
}
