package softgpu

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-interop/core"
	"render-interop/interop"
	"render-interop/math"
)

func TestHandleTableLifetimes(t *testing.T) {
	sys := NewSystem()
	ops := memoryOps{sys: sys, adapter: DefaultAdapter(), reportSize: true}
	desc := interop.ImageDesc{Extent: interop.Extent{Width: 4, Height: 4}, Format: interop.FormatRGBA8Unorm}

	img, err := ops.CreateShareableImage(desc, interop.HandleD3D11Texture)
	require.NoError(t, err)
	v, err := img.ExportHandle()
	require.NoError(t, err)
	assert.Equal(t, 1, sys.OpenHandles())

	// The open handle keeps the memory alive after the image is gone.
	img.Destroy()
	assert.Equal(t, 1, sys.LiveByKind()["memory"])
	require.NoError(t, sys.CloseHandle(interop.HandleD3D11Texture, v))
	assert.Zero(t, sys.Live())
	assert.Error(t, sys.CloseHandle(interop.HandleD3D11Texture, v))
}

func TestImportWrongHandleType(t *testing.T) {
	sys := NewSystem()
	ops := memoryOps{sys: sys, adapter: DefaultAdapter()}
	desc := interop.ImageDesc{Extent: interop.Extent{Width: 4, Height: 4}, Format: interop.FormatRGBA8Unorm}

	owner, err := ops.CreateShareableImage(desc, interop.HandleOpaqueWin32)
	require.NoError(t, err)
	v, err := owner.ExportHandle()
	require.NoError(t, err)

	ext, err := ops.CreateExternalImage(desc, interop.HandleD3D11Texture)
	require.NoError(t, err)
	reqs, err := ext.MemoryRequirements()
	require.NoError(t, err)
	err = ext.ImportMemory(interop.ImportRequest{Handle: v, HandleType: interop.HandleD3D11Texture, Requirements: reqs})
	assert.ErrorContains(t, err, "not d3d11-texture")

	ext.Destroy()
	owner.Destroy()
	require.NoError(t, sys.CloseHandle(interop.HandleOpaqueWin32, v))
	assert.Zero(t, sys.Live())
}

func TestFenceTimeoutAndReset(t *testing.T) {
	sys := NewSystem()
	f := newFence(sys)
	err := f.Wait(10 * time.Millisecond)
	assert.ErrorIs(t, err, interop.ErrTimeout)

	f.signal()
	require.NoError(t, f.Wait(time.Second))
	require.NoError(t, f.Reset())
	assert.ErrorIs(t, f.Wait(time.Millisecond), interop.ErrTimeout)
	f.Destroy()
	f.Destroy()
	assert.Zero(t, sys.Live())
}

func TestQueueIdleWaitsForJobs(t *testing.T) {
	q := newQueue()
	ran := 0
	for i := 0; i < 5; i++ {
		q.submit(func() { ran++ })
	}
	q.idle()
	assert.Equal(t, 5, ran)
	q.stop()
}

func TestPresentShowsComposedFrame(t *testing.T) {
	sys := NewSystem()
	drv := sys.Consumer(0)
	dev, err := drv.Open(interop.ConsumerOptions{Format: interop.FormatRGBA8Unorm})
	require.NoError(t, err)
	c := dev.(*ConsumerDevice)

	size := interop.Extent{Width: 2, Height: 2}
	pr, err := c.CreatePresenter(interop.SurfaceSpec{}, size, interop.FormatRGBA8Unorm)
	require.NoError(t, err)
	shared, err := c.CreateShareableImage(interop.ImageDesc{Extent: size, Format: interop.FormatRGBA8Unorm}, interop.HandleD3D11Texture)
	require.NoError(t, err)
	src := shared.(*image)
	f, err := c.CreateFence()
	require.NoError(t, err)

	fill := func(px [4]byte) {
		data := src.pixels()
		for i := 0; i < len(data); i += 4 {
			copy(data[i:], px[:])
		}
	}
	for frame, px := range [][4]byte{{255, 0, 0, 255}, {0, 255, 0, 255}, {0, 0, 255, 255}} {
		require.NoError(t, f.Reset())
		fill(px)
		require.NoError(t, c.Compose(src, pr, f))
		require.NoError(t, pr.Present())

		img, err := pr.ReadBack()
		require.NoError(t, err)
		assert.Equal(t, px[:], img.Pix[:4], "frame %d", frame)
		assert.Equal(t, px[:], img.Pix[len(img.Pix)-4:], "frame %d", frame)
		require.NoError(t, f.Wait(time.Second))
	}
	assert.Equal(t, 3, pr.(*Presenter).Presents())

	f.Destroy()
	shared.Destroy()
	pr.Destroy()
	c.Destroy()
	drv.Destroy()
	assert.Zero(t, sys.Live(), "%v", sys.LiveByKind())
}

func TestQueueAfterStop(t *testing.T) {
	q := newQueue()
	q.stop()
	q.submit(func() { t.Error("job ran after stop") })
	q.idle()
	q.stop()
}

func rasterPlan(w, h uint32, samples interop.SampleCount, depth bool) interop.FramePlan {
	return interop.PlanFrame(interop.FramePlanInput{
		Extent:           interop.Extent{Width: w, Height: h},
		Format:           interop.FormatRGBA8Unorm,
		RequestedSamples: samples,
		SupportedSamples: DefaultAdapter().SampleCounts,
		Depth:            depth,
	})
}

func TestRasterDepthTest(t *testing.T) {
	r := newRaster(rasterPlan(8, 8, interop.Samples1, true))
	r.clear(core.ColorBlack)

	quad := func(z float32, c math.Vec3) []core.Vertex {
		return []core.Vertex{
			{Position: math.Vec3{X: -1, Y: -1, Z: z}, Color: c},
			{Position: math.Vec3{X: 1, Y: -1, Z: z}, Color: c},
			{Position: math.Vec3{X: 1, Y: 1, Z: z}, Color: c},
			{Position: math.Vec3{X: -1, Y: 1, Z: z}, Color: c},
		}
	}
	idx := []uint32{0, 1, 2, 0, 2, 3}
	r.draw(quad(0.2, math.Vec3{Y: 1}), idx, math.Mat4Identity())
	// Farther quad drawn second loses the depth test.
	r.draw(quad(0.8, math.Vec3{X: 1}), idx, math.Mat4Identity())

	px := make([]byte, 8*8*4)
	r.resolve(px, interop.FormatRGBA8Unorm)
	assert.Equal(t, []byte{0, 255, 0, 255}, px[(4*8+4)*4:(4*8+4)*4+4])
}

func TestRasterVulkanYAxis(t *testing.T) {
	r := newRaster(rasterPlan(8, 8, interop.Samples1, false))
	r.clear(core.ColorBlack)
	// A triangle covering the negative-Y half lands in the top rows.
	verts := []core.Vertex{
		{Position: math.Vec3{X: -1, Y: -1}, Color: math.Vec3{X: 1, Y: 1, Z: 1}},
		{Position: math.Vec3{X: 3, Y: -1}, Color: math.Vec3{X: 1, Y: 1, Z: 1}},
		{Position: math.Vec3{X: -1, Y: 0}, Color: math.Vec3{X: 1, Y: 1, Z: 1}},
	}
	r.draw(verts, []uint32{0, 1, 2}, math.Mat4Identity())
	px := make([]byte, 8*8*4)
	r.resolve(px, interop.FormatRGBA8Unorm)
	assert.Equal(t, byte(255), px[0], "top-left pixel covered")
	assert.Equal(t, byte(0), px[(7*8)*4], "bottom-left pixel untouched")
}

func TestRasterMSAAResolveBlendsEdges(t *testing.T) {
	r := newRaster(rasterPlan(4, 4, interop.Samples4, false))
	r.clear(core.ColorBlack)
	// Diagonal edge through pixel centers leaves partially covered pixels.
	verts := []core.Vertex{
		{Position: math.Vec3{X: -1, Y: -1}, Color: math.Vec3{X: 1, Y: 1, Z: 1}},
		{Position: math.Vec3{X: 1, Y: -1}, Color: math.Vec3{X: 1, Y: 1, Z: 1}},
		{Position: math.Vec3{X: 1, Y: 1}, Color: math.Vec3{X: 1, Y: 1, Z: 1}},
	}
	r.draw(verts, []uint32{0, 1, 2}, math.Mat4Identity())
	px := make([]byte, 4*4*4)
	r.resolve(px, interop.FormatRGBA8Unorm)
	diag := px[(1*4+1)*4]
	assert.Greater(t, diag, byte(0))
	assert.Less(t, diag, byte(255))
}

func TestDecodeUniforms(t *testing.T) {
	u := interop.DefaultUniforms()
	u.Model = math.Mat4Translation(math.Vec3{X: 1, Y: 2, Z: 3})
	got := decodeUniforms(u.Bytes())
	assert.Equal(t, u, got)
}
