package softgpu

import (
	"encoding/binary"
	stdmath "math"

	"github.com/chewxy/math32"

	"render-interop/core"
	"render-interop/interop"
	"render-interop/math"
)

// Standard sample positions inside a pixel, per sample count.
var samplePositions = map[interop.SampleCount][][2]float32{
	interop.Samples1: {{0.5, 0.5}},
	interop.Samples2: {{0.75, 0.75}, {0.25, 0.25}},
	interop.Samples4: {{0.375, 0.125}, {0.875, 0.375}, {0.125, 0.625}, {0.625, 0.875}},
	interop.Samples8: {
		{0.5625, 0.3125}, {0.4375, 0.6875}, {0.8125, 0.5625}, {0.3125, 0.1875},
		{0.1875, 0.8125}, {0.0625, 0.4375}, {0.6875, 0.9375}, {0.9375, 0.0625},
	},
}

// raster holds the per-sample color and depth of one render target set.
type raster struct {
	width, height int
	samples       int
	positions     [][2]float32
	color         []core.Color
	depth         []float32
}

func newRaster(plan interop.FramePlan) *raster {
	w, h := int(plan.Extent.Width), int(plan.Extent.Height)
	n := int(plan.Samples)
	r := &raster{
		width:     w,
		height:    h,
		samples:   n,
		positions: samplePositions[plan.Samples],
		color:     make([]core.Color, w*h*n),
	}
	if plan.DepthTest {
		r.depth = make([]float32, w*h*n)
	}
	return r
}

func (r *raster) clear(c core.Color) {
	for i := range r.color {
		r.color[i] = c
	}
	for i := range r.depth {
		r.depth[i] = 1
	}
}

type clipVertex struct {
	pos   math.Vec4
	color math.Vec3
}

// draw rasterizes indexed triangles. Vertices are transformed as row vectors
// by mvp, mapped with the Vulkan viewport convention (y down, depth 0..1).
// Triangles with a vertex behind the eye are dropped rather than clipped.
func (r *raster) draw(vertices []core.Vertex, indices []uint32, mvp math.Mat4) {
	clip := make([]clipVertex, len(vertices))
	for i, v := range vertices {
		clip[i] = clipVertex{pos: v.Position.ToVec4(1).MulMat(mvp), color: v.Color}
	}
	for t := 0; t+2 < len(indices); t += 3 {
		a, b, c := indices[t], indices[t+1], indices[t+2]
		if int(a) >= len(clip) || int(b) >= len(clip) || int(c) >= len(clip) {
			continue
		}
		r.triangle(clip[a], clip[b], clip[c])
	}
}

type screenVertex struct {
	x, y, z float32
	invW    float32
	color   math.Vec3
}

func (r *raster) toScreen(v clipVertex) (screenVertex, bool) {
	ndc, ok := v.pos.PerspectiveDivide()
	if !ok {
		return screenVertex{}, false
	}
	return screenVertex{
		x:     (ndc.X + 1) * 0.5 * float32(r.width),
		y:     (ndc.Y + 1) * 0.5 * float32(r.height),
		z:     ndc.Z,
		invW:  1 / v.pos.W,
		color: v.color,
	}, true
}

func edge(a, b screenVertex, x, y float32) float32 {
	return (b.x-a.x)*(y-a.y) - (b.y-a.y)*(x-a.x)
}

func (r *raster) triangle(ca, cb, cc clipVertex) {
	a, okA := r.toScreen(ca)
	b, okB := r.toScreen(cb)
	c, okC := r.toScreen(cc)
	if !okA || !okB || !okC {
		return
	}
	area := edge(a, b, c.x, c.y)
	if area == 0 {
		return
	}

	minX := clampInt(int(floor32(min3(a.x, b.x, c.x))), 0, r.width-1)
	maxX := clampInt(int(floor32(max3(a.x, b.x, c.x))), 0, r.width-1)
	minY := clampInt(int(floor32(min3(a.y, b.y, c.y))), 0, r.height-1)
	maxY := clampInt(int(floor32(max3(a.y, b.y, c.y))), 0, r.height-1)

	for py := minY; py <= maxY; py++ {
		for px := minX; px <= maxX; px++ {
			for s, off := range r.positions {
				x, y := float32(px)+off[0], float32(py)+off[1]
				w0 := edge(b, c, x, y) / area
				w1 := edge(c, a, x, y) / area
				w2 := edge(a, b, x, y) / area
				if w0 < 0 || w1 < 0 || w2 < 0 {
					continue
				}
				z := w0*a.z + w1*b.z + w2*c.z
				if z < 0 || z > 1 {
					continue
				}
				idx := (py*r.width+px)*r.samples + s
				if r.depth != nil {
					if z >= r.depth[idx] {
						continue
					}
					r.depth[idx] = z
				}
				// Perspective-correct attribute interpolation.
				pw0, pw1, pw2 := w0*a.invW, w1*b.invW, w2*c.invW
				norm := 1 / (pw0 + pw1 + pw2)
				col := a.color.Mul(pw0 * norm).Add(b.color.Mul(pw1 * norm)).Add(c.color.Mul(pw2 * norm))
				r.color[idx] = core.Color{R: col.X, G: col.Y, B: col.Z, A: 1}
			}
		}
	}
}

// resolve averages samples and packs the result into dst using format.
func (r *raster) resolve(dst []byte, format interop.Format) {
	bpp := format.BytesPerPixel()
	inv := 1 / float32(r.samples)
	for p := 0; p < r.width*r.height; p++ {
		var sum core.Color
		for s := 0; s < r.samples; s++ {
			c := r.color[p*r.samples+s]
			sum.R += c.R
			sum.G += c.G
			sum.B += c.B
			sum.A += c.A
		}
		if r.samples > 1 {
			sum = core.Color{R: sum.R * inv, G: sum.G * inv, B: sum.B * inv, A: sum.A * inv}
		}
		copy(dst[p*bpp:], format.Pack(sum))
	}
}

// decodeMat4 reads a row-major little-endian matrix.
func decodeMat4(b []byte) math.Mat4 {
	var m math.Mat4
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			m[i][j] = stdmath.Float32frombits(binary.LittleEndian.Uint32(b[(i*4+j)*4:]))
		}
	}
	return m
}

func decodeUniforms(b []byte) interop.Uniforms {
	if len(b) < interop.UniformSize {
		return interop.DefaultUniforms()
	}
	return interop.Uniforms{
		Model:      decodeMat4(b[0:64]),
		View:       decodeMat4(b[64:128]),
		Projection: decodeMat4(b[128:192]),
	}
}

func floor32(v float32) float32 { return math32.Floor(v) }

func min3(a, b, c float32) float32 { return min(a, min(b, c)) }

func max3(a, b, c float32) float32 { return max(a, max(b, c)) }

func clampInt(v, lo, hi int) int { return max(lo, min(v, hi)) }
