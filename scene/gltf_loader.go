package scene

import (
	"fmt"
	"io"
	"os"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/sirupsen/logrus"

	"render-interop/core"
	"render-interop/math"
)

// LoadGLB opens a .glb or .gltf file and flattens every triangle primitive
// reachable from the default scene into one mesh.
func LoadGLB(path string, log logrus.FieldLogger) (core.MeshData, error) {
	f, err := os.Open(path)
	if err != nil {
		return core.MeshData{}, fmt.Errorf("open model %q: %w", path, err)
	}
	defer f.Close()
	return DecodeGLB(f, log)
}

// DecodeGLB decodes a binary glTF stream. Node transforms are baked into
// the positions. COLOR_0 becomes the vertex color; without it the normal is
// remapped to [0,1], and without normals the vertex is white.
func DecodeGLB(r io.Reader, log logrus.FieldLogger) (core.MeshData, error) {
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(r).Decode(doc); err != nil {
		return core.MeshData{}, fmt.Errorf("decode glTF: %w", err)
	}

	var mesh core.MeshData
	var walk func(idx int, parent math.Mat4, depth int) error
	walk = func(idx int, parent math.Mat4, depth int) error {
		if idx < 0 || idx >= len(doc.Nodes) {
			return fmt.Errorf("node index %d out of range", idx)
		}
		if depth > len(doc.Nodes) {
			return fmt.Errorf("node hierarchy has a cycle at node %d", idx)
		}
		node := doc.Nodes[idx]
		world := nodeMatrix(node).Mul(parent)
		if node.Mesh != nil {
			if *node.Mesh >= len(doc.Meshes) {
				return fmt.Errorf("node %d: mesh index %d out of range", idx, *node.Mesh)
			}
			gm := doc.Meshes[*node.Mesh]
			for pi, prim := range gm.Primitives {
				if prim.Mode != gltf.PrimitiveTriangles {
					log.WithFields(logrus.Fields{"mesh": gm.Name, "primitive": pi}).Warn("skipping non-triangle primitive")
					continue
				}
				if err := appendPrimitive(doc, prim, world, &mesh); err != nil {
					return fmt.Errorf("mesh %q primitive %d: %w", gm.Name, pi, err)
				}
			}
		}
		for _, child := range node.Children {
			if err := walk(child, world, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	for _, root := range rootNodes(doc) {
		if err := walk(root, math.Mat4Identity(), 0); err != nil {
			return core.MeshData{}, err
		}
	}
	if len(mesh.Indices) == 0 {
		return core.MeshData{}, fmt.Errorf("glTF contains no triangles")
	}
	log.WithFields(logrus.Fields{
		"vertices":  len(mesh.Vertices),
		"triangles": len(mesh.Indices) / 3,
	}).Debug("model decoded")
	return mesh, nil
}

// rootNodes returns the default scene's nodes, or every parentless node
// when the document has no default scene.
func rootNodes(doc *gltf.Document) []int {
	if doc.Scene != nil && *doc.Scene < len(doc.Scenes) {
		return doc.Scenes[*doc.Scene].Nodes
	}
	hasParent := make([]bool, len(doc.Nodes))
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			if c < len(hasParent) {
				hasParent[c] = true
			}
		}
	}
	var roots []int
	for i := range doc.Nodes {
		if !hasParent[i] {
			roots = append(roots, i)
		}
	}
	return roots
}

// nodeMatrix returns the node's local transform for row vectors. glTF stores
// column-major matrices for column vectors, which is the same memory as
// the row-vector form.
func nodeMatrix(n *gltf.Node) math.Mat4 {
	if mat := n.MatrixOrDefault(); mat != gltf.DefaultMatrix {
		var m math.Mat4
		for i := 0; i < 4; i++ {
			for j := 0; j < 4; j++ {
				m[i][j] = float32(mat[i*4+j])
			}
		}
		return m
	}
	t := n.TranslationOrDefault()
	s := n.ScaleOrDefault()
	r := n.RotationOrDefault()
	tr := core.Transform{
		Position: math.Vec3{X: float32(t[0]), Y: float32(t[1]), Z: float32(t[2])},
		Rotation: math.QuaternionFromArray(r),
		Scale:    math.Vec3{X: float32(s[0]), Y: float32(s[1]), Z: float32(s[2])},
	}
	return tr.GetMatrix()
}

func appendPrimitive(doc *gltf.Document, prim *gltf.Primitive, world math.Mat4, mesh *core.MeshData) error {
	posIdx, ok := prim.Attributes["POSITION"]
	if !ok {
		return fmt.Errorf("no POSITION attribute")
	}
	positions, err := modeler.ReadPosition(doc, doc.Accessors[posIdx], nil)
	if err != nil {
		return fmt.Errorf("positions: %w", err)
	}

	var colors [][4]uint8
	var normals [][3]float32
	if idx, ok := prim.Attributes["COLOR_0"]; ok {
		if colors, err = modeler.ReadColor(doc, doc.Accessors[idx], nil); err != nil {
			return fmt.Errorf("colors: %w", err)
		}
	} else if idx, ok := prim.Attributes["NORMAL"]; ok {
		if normals, err = modeler.ReadNormal(doc, doc.Accessors[idx], nil); err != nil {
			return fmt.Errorf("normals: %w", err)
		}
	}

	base := uint32(len(mesh.Vertices))
	for i, p := range positions {
		v := core.Vertex{
			Position: world.MulVec3(math.Vec3{X: p[0], Y: p[1], Z: p[2]}),
			Color:    math.Vec3One,
		}
		switch {
		case i < len(colors):
			c := colors[i]
			v.Color = math.Vec3{X: float32(c[0]) / 255, Y: float32(c[1]) / 255, Z: float32(c[2]) / 255}
		case i < len(normals):
			n := normals[i]
			v.Color = normalColor(math.Vec3{X: n[0], Y: n[1], Z: n[2]})
		}
		mesh.Vertices = append(mesh.Vertices, v)
	}

	if prim.Indices == nil {
		for i := range positions {
			mesh.Indices = append(mesh.Indices, base+uint32(i))
		}
		return nil
	}
	indices, err := modeler.ReadIndices(doc, doc.Accessors[*prim.Indices], nil)
	if err != nil {
		return fmt.Errorf("indices: %w", err)
	}
	for _, i := range indices {
		if int(i) >= len(positions) {
			return fmt.Errorf("index %d out of range for %d vertices", i, len(positions))
		}
		mesh.Indices = append(mesh.Indices, base+i)
	}
	return nil
}
