package scene

import (
	"bytes"
	"io"
	stdmath "math"
	"strings"
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-interop/core"
	"render-interop/math"
)

// encodeGLB builds a binary glTF with one triangle under a translated node.
func encodeGLB(t *testing.T, withColors bool) []byte {
	t.Helper()
	doc := gltf.NewDocument()
	attrs := gltf.PrimitiveAttributes{
		"POSITION": modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}}),
	}
	if withColors {
		attrs["COLOR_0"] = modeler.WriteColor(doc, [][4]uint8{{255, 0, 0, 255}, {0, 255, 0, 255}, {0, 0, 255, 255}})
	} else {
		attrs["NORMAL"] = modeler.WriteNormal(doc, [][3]float32{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}})
	}
	indices := modeler.WriteIndices(doc, []uint16{0, 1, 2})
	doc.Meshes = []*gltf.Mesh{{
		Name:       "tri",
		Primitives: []*gltf.Primitive{{Indices: gltf.Index(indices), Attributes: attrs}},
	}}
	doc.Nodes = []*gltf.Node{
		{Name: "root", Translation: [3]float64{10, 0, 0}, Children: []int{1}},
		{Name: "child", Mesh: gltf.Index(0), Translation: [3]float64{0, 5, 0}},
	}
	doc.Scenes[0].Nodes = []int{0}

	var buf bytes.Buffer
	enc := gltf.NewEncoder(&buf)
	enc.AsBinary = true
	require.NoError(t, enc.Encode(doc))
	return buf.Bytes()
}

func TestDecodeGLBBakesTransforms(t *testing.T) {
	log, _ := test.NewNullLogger()
	mesh, err := DecodeGLB(bytes.NewReader(encodeGLB(t, true)), log)
	require.NoError(t, err)

	require.Len(t, mesh.Vertices, 3)
	assert.Equal(t, []uint32{0, 1, 2}, mesh.Indices)
	assert.InDelta(t, 10, mesh.Vertices[0].Position.X, 1e-5)
	assert.InDelta(t, 5, mesh.Vertices[0].Position.Y, 1e-5)
	assert.InDelta(t, 11, mesh.Vertices[1].Position.X, 1e-5)
	assert.InDelta(t, 6, mesh.Vertices[2].Position.Y, 1e-5)
	assert.Equal(t, math.Vec3{X: 1, Y: 0, Z: 0}, mesh.Vertices[0].Color)
	assert.Equal(t, math.Vec3{X: 0, Y: 0, Z: 1}, mesh.Vertices[2].Color)
}

func TestDecodeGLBNormalsAsColor(t *testing.T) {
	log, _ := test.NewNullLogger()
	mesh, err := DecodeGLB(bytes.NewReader(encodeGLB(t, false)), log)
	require.NoError(t, err)
	assert.Equal(t, math.Vec3{X: 0.5, Y: 0.5, Z: 1}, mesh.Vertices[0].Color)
}

func TestDecodeGLBRejectsGarbage(t *testing.T) {
	log, _ := test.NewNullLogger()
	_, err := DecodeGLB(bytes.NewReader([]byte("not a model")), log)
	assert.Error(t, err)
}

func TestLoadGLBMissingFile(t *testing.T) {
	log, _ := test.NewNullLogger()
	_, err := LoadGLB("testdata/does-not-exist.glb", log)
	assert.ErrorContains(t, err, "does-not-exist.glb")
}

func TestBounds(t *testing.T) {
	b := Bounds(core.Triangle())
	assert.Equal(t, math.Vec3{X: -0.5, Y: -0.5, Z: 0}, b.Min)
	assert.Equal(t, math.Vec3{X: 0.5, Y: 0.5, Z: 0}, b.Max)
	assert.Equal(t, math.Vec3Zero, b.Center())
	assert.Equal(t, AABB{}, Bounds(core.MeshData{}))
}

func TestCameraUniformsProjectTarget(t *testing.T) {
	cam := NewOrbitCamera(math.Vec3Zero, 5, 1.0, 16.0/9.0)
	u := cam.Uniforms(math.Mat4Identity())
	clip := math.Vec4{W: 1}.MulMat(u.MVP())
	ndcX, ndcY, ndcZ := clip.X/clip.W, clip.Y/clip.W, clip.Z/clip.W
	assert.InDelta(t, 0, ndcX, 1e-4)
	assert.InDelta(t, 0, ndcY, 1e-4)
	assert.Greater(t, ndcZ, float32(0))
	assert.Less(t, ndcZ, float32(1))

	before := cam.Position
	cam.Orbit(0.5, 0)
	assert.NotEqual(t, before, cam.Position)
	assert.InDelta(t, 5, cam.Position.Sub(cam.Target).Length(), 1e-4)
}

const quadOBJ = `# two triangles
mtllib quad.mtl
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
usemtl red
f 1 2 3 4
`

func TestDecodeOBJWithMaterial(t *testing.T) {
	log, _ := test.NewNullLogger()
	open := func(name string) (io.ReadCloser, error) {
		require.Equal(t, "quad.mtl", name)
		return io.NopCloser(strings.NewReader("newmtl red\nKd 1 0 0\n")), nil
	}
	mesh, err := DecodeOBJ(strings.NewReader(quadOBJ), open, log)
	require.NoError(t, err)

	assert.Len(t, mesh.Vertices, 4)
	assert.Equal(t, []uint32{0, 1, 2, 0, 2, 3}, mesh.Indices)
	for _, v := range mesh.Vertices {
		assert.Equal(t, math.Vec3{X: 1}, v.Color)
	}
}

func TestDecodeOBJGeneratesNormalColors(t *testing.T) {
	log, _ := test.NewNullLogger()
	src := "v 0 0 0\nv 1 0 0\nv 0 1 0\nf -3 -2 -1\n"
	mesh, err := DecodeOBJ(strings.NewReader(src), nil, log)
	require.NoError(t, err)
	require.Len(t, mesh.Vertices, 3)
	// Counter-clockwise in XY faces +Z.
	assert.Equal(t, math.Vec3{X: 0.5, Y: 0.5, Z: 1}, mesh.Vertices[0].Color)
}

func TestDecodeOBJRejects(t *testing.T) {
	log, _ := test.NewNullLogger()
	for name, src := range map[string]string{
		"no faces":      "v 0 0 0\n",
		"bad index":     "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 9\n",
		"short face":    "v 0 0 0\nv 1 0 0\nf 1 2\n",
		"bad component": "v 0 x 0\n",
	} {
		_, err := DecodeOBJ(strings.NewReader(src), nil, log)
		assert.Error(t, err, name)
	}
}

func TestBuiltins(t *testing.T) {
	log, _ := test.NewNullLogger()
	for _, name := range BuiltinNames() {
		mesh, err := LoadModel(name, log)
		require.NoError(t, err, name)
		assert.NotEmpty(t, mesh.Indices, name)
		assert.Zero(t, len(mesh.Indices)%3, name)
		for _, i := range mesh.Indices {
			assert.Less(t, int(i), len(mesh.Vertices), name)
		}
	}

	cube := CreateCube(2)
	assert.Len(t, cube.Vertices, 24)
	assert.Len(t, cube.Indices, 36)
	b := Bounds(cube)
	assert.Equal(t, math.Vec3{X: -1, Y: -1, Z: -1}, b.Min)
	assert.Equal(t, math.Vec3{X: 1, Y: 1, Z: 1}, b.Max)

	_, err := LoadModel("model.fbx", log)
	assert.ErrorContains(t, err, "unsupported format")
}

func TestSpinQuarterTurn(t *testing.T) {
	spin := NewSpin(math.Vec3Up, stdmath.Pi/8)
	assert.Equal(t, math.Mat4Identity(), spin.Model())

	for i := 0; i < 4; i++ {
		spin.Advance()
	}
	// A quarter turn about +Y takes +X to -Z.
	got := spin.Model().MulVec3(math.Vec3{X: 1})
	assert.InDelta(t, 0, got.X, 1e-5)
	assert.InDelta(t, 0, got.Y, 1e-5)
	assert.InDelta(t, -1, got.Z, 1e-5)
	assert.InDelta(t, 1, got.Length(), 1e-5)
}
