package scene

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"render-interop/core"
	remath "render-interop/math"
)

// objFace is an already-triangulated face (three vertex references).
type objFace struct {
	vIdx, vnIdx [3]int // 0-based position / normal indices (-1 = absent)
	material    string
}

// OpenFunc opens a file referenced from a model, relative to the model.
type OpenFunc func(name string) (io.ReadCloser, error)

// LoadOBJ parses a Wavefront .obj file into one mesh. Diffuse colors of a
// companion .mtl file referenced via "mtllib" become vertex colors.
func LoadOBJ(path string, log logrus.FieldLogger) (core.MeshData, error) {
	f, err := os.Open(path)
	if err != nil {
		return core.MeshData{}, fmt.Errorf("open obj %q: %w", path, err)
	}
	defer f.Close()

	dir := filepath.Dir(path)
	return DecodeOBJ(f, func(name string) (io.ReadCloser, error) {
		return os.Open(filepath.Join(dir, name))
	}, log)
}

// DecodeOBJ parses OBJ text. open resolves mtllib references and may be nil.
// Faces without a material are colored by their normal; files without
// normals get area-weighted smooth normals.
func DecodeOBJ(r io.Reader, open OpenFunc, log logrus.FieldLogger) (core.MeshData, error) {
	var positions []remath.Vec3
	var normals []remath.Vec3
	var faces []objFace
	materials := map[string]remath.Vec3{}
	material := ""

	scanner := bufio.NewScanner(r)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}

		switch fields[0] {
		case "v", "vn":
			v, err := parseVec3(fields)
			if err != nil {
				return core.MeshData{}, fmt.Errorf("line %d: %w", lineNo, err)
			}
			if fields[0] == "v" {
				positions = append(positions, v)
			} else {
				normals = append(normals, v)
			}

		case "usemtl":
			if len(fields) > 1 {
				material = fields[1]
			}

		case "mtllib":
			if len(fields) < 2 || open == nil {
				continue
			}
			if err := loadMTL(open, fields[1], materials); err != nil {
				log.WithError(err).WithField("mtllib", fields[1]).Warn("material library not loaded")
			}

		case "f":
			// Fan-triangulate polygon (handles 3+ vertices)
			if len(fields) < 4 {
				return core.MeshData{}, fmt.Errorf("line %d: face needs at least 3 vertices", lineNo)
			}
			var fverts []faceVertex
			for _, tok := range fields[1:] {
				fv, err := parseFaceVertex(tok, len(positions), len(normals))
				if err != nil {
					return core.MeshData{}, fmt.Errorf("line %d: %w", lineNo, err)
				}
				fverts = append(fverts, fv)
			}
			// Fan triangulation: 0-1-2, 0-2-3, 0-3-4, ...
			for i := 1; i+1 < len(fverts); i++ {
				f0, f1, f2 := fverts[0], fverts[i], fverts[i+1]
				faces = append(faces, objFace{
					vIdx:     [3]int{f0.v, f1.v, f2.v},
					vnIdx:    [3]int{f0.vn, f1.vn, f2.vn},
					material: material,
				})
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return core.MeshData{}, fmt.Errorf("scan obj: %w", err)
	}
	if len(faces) == 0 {
		return core.MeshData{}, fmt.Errorf("obj contains no faces")
	}

	mesh := buildMeshFromOBJ(faces, positions, normals, materials)
	log.WithFields(logrus.Fields{
		"vertices":  len(mesh.Vertices),
		"triangles": len(mesh.Indices) / 3,
		"materials": len(materials),
	}).Debug("model decoded")
	return mesh, nil
}

func parseVec3(fields []string) (remath.Vec3, error) {
	if len(fields) < 4 {
		return remath.Vec3{}, fmt.Errorf("%q needs 3 components", fields[0])
	}
	var c [3]float32
	for i := range c {
		f, err := strconv.ParseFloat(fields[i+1], 32)
		if err != nil {
			return remath.Vec3{}, fmt.Errorf("%q component %d: %w", fields[0], i, err)
		}
		c[i] = float32(f)
	}
	return remath.Vec3{X: c[0], Y: c[1], Z: c[2]}, nil
}

type faceVertex struct{ v, vn int }

// parseFaceVertex parses one face vertex token: "v", "v/vt", "v//vn", "v/vt/vn".
// OBJ indices are 1-based; negative ones count back from the last element.
// Returns 0-based indices, vn is -1 if absent.
func parseFaceVertex(tok string, positions, normals int) (faceVertex, error) {
	resolve := func(s string, n int) (int, error) {
		i, err := strconv.Atoi(s)
		switch {
		case err != nil:
			return 0, fmt.Errorf("face index %q: %w", s, err)
		case i > 0 && i <= n:
			return i - 1, nil
		case i < 0 && -i <= n:
			return n + i, nil
		}
		return 0, fmt.Errorf("face index %d out of range for %d elements", i, n)
	}

	parts := strings.Split(tok, "/")
	v, err := resolve(parts[0], positions)
	if err != nil {
		return faceVertex{}, err
	}
	fv := faceVertex{v: v, vn: -1}
	if len(parts) > 2 && parts[2] != "" {
		if fv.vn, err = resolve(parts[2], normals); err != nil {
			return faceVertex{}, err
		}
	}
	return fv, nil
}

// buildMeshFromOBJ converts parsed face data into a deduplicated mesh.
func buildMeshFromOBJ(faces []objFace, positions, normals []remath.Vec3, materials map[string]remath.Vec3) core.MeshData {
	type key struct {
		v, vn    int
		material string
	}
	vertMap := map[key]uint32{}
	var mesh core.MeshData
	var vertNormals []remath.Vec3

	for _, face := range faces {
		for c := 0; c < 3; c++ {
			k := key{face.vIdx[c], face.vnIdx[c], face.material}
			idx, ok := vertMap[k]
			if !ok {
				idx = uint32(len(mesh.Vertices))
				vertMap[k] = idx
				n := remath.Vec3{}
				if k.vn >= 0 {
					n = normals[k.vn]
				}
				vertNormals = append(vertNormals, n)
				color, hasMaterial := materials[face.material]
				if !hasMaterial {
					color = remath.Vec3{X: -1}
				}
				mesh.Vertices = append(mesh.Vertices, core.Vertex{Position: positions[k.v], Color: color})
			}
			mesh.Indices = append(mesh.Indices, idx)
		}
	}

	if len(normals) == 0 {
		vertNormals = generateSmoothNormals(mesh)
	}
	for i := range mesh.Vertices {
		if mesh.Vertices[i].Color.X < 0 {
			mesh.Vertices[i].Color = normalColor(vertNormals[i].Normalize())
		}
	}
	return mesh
}

// generateSmoothNormals computes area-weighted vertex normals.
func generateSmoothNormals(mesh core.MeshData) []remath.Vec3 {
	accum := make([]remath.Vec3, len(mesh.Vertices))
	for i := 0; i+2 < len(mesh.Indices); i += 3 {
		i0, i1, i2 := mesh.Indices[i], mesh.Indices[i+1], mesh.Indices[i+2]
		v0 := mesh.Vertices[i0].Position
		v1 := mesh.Vertices[i1].Position
		v2 := mesh.Vertices[i2].Position
		n := v1.Sub(v0).Cross(v2.Sub(v0)) // area-weighted normal
		accum[i0] = accum[i0].Add(n)
		accum[i1] = accum[i1].Add(n)
		accum[i2] = accum[i2].Add(n)
	}
	return accum
}

// loadMTL reads the diffuse color (Kd) of every material in a library.
func loadMTL(open OpenFunc, name string, into map[string]remath.Vec3) error {
	f, err := open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	cur := ""
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "newmtl":
			if len(fields) > 1 {
				cur = fields[1]
				into[cur] = remath.Vec3One
			}
		case "Kd":
			if cur == "" {
				continue
			}
			kd, err := parseVec3(fields)
			if err != nil {
				return fmt.Errorf("material %q: %w", cur, err)
			}
			into[cur] = kd
		}
	}
	return scanner.Err()
}
