package interop_test

import (
	"image/color"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-interop/core"
	"render-interop/internal/softgpu"
	"render-interop/interop"
)

var (
	size800 = interop.Extent{Width: 800, Height: 600}
	size400 = interop.Extent{Width: 400, Height: 300}
)

func testConfig(h interop.HandleType) interop.EngineConfig {
	cfg := interop.DefaultEngineConfig()
	cfg.HandleType = h
	cfg.Format = interop.FormatRGBA8Unorm
	cfg.FenceTimeout = 2 * time.Second
	return cfg
}

func newEngine(sys *softgpu.System, cfg interop.EngineConfig) *interop.Engine {
	log, _ := test.NewNullLogger()
	return interop.NewEngine(cfg, sys.Producer(), sys.Consumer(0), log)
}

func initEngine(t *testing.T, sys *softgpu.System, cfg interop.EngineConfig, size interop.Extent, mesh core.MeshData) *interop.Engine {
	t.Helper()
	e := newEngine(sys, cfg)
	require.NoError(t, e.Init(size, mesh, interop.ShaderSet{}, interop.SurfaceSpec{}))
	t.Cleanup(func() { _ = e.Shutdown() })
	return e
}

var topologies = []struct {
	name   string
	handle interop.HandleType
	owner  interop.Owner
}{
	{"consumer-owned d3d11 texture", interop.HandleD3D11Texture, interop.OwnerConsumer},
	{"consumer-owned d3d11 kmt", interop.HandleD3D11TextureKMT, interop.OwnerConsumer},
	{"producer-owned fd", interop.HandleOpaqueFD, interop.OwnerProducer},
	{"producer-owned opaque win32", interop.HandleOpaqueWin32, interop.OwnerProducer},
}

func TestEngineSizesAgree(t *testing.T) {
	for _, tt := range topologies {
		t.Run(tt.name, func(t *testing.T) {
			sys := softgpu.NewSystem()
			e := initEngine(t, sys, testConfig(tt.handle), size800, core.Triangle())
			assert.Equal(t, interop.StatePipelineReady, e.State())
			assert.Equal(t, tt.owner, e.Stats().Owner)

			require.NoError(t, e.RenderFrame())
			assert.Equal(t, interop.StateRunning, e.State())
			assert.Equal(t, size800, e.Stats().Extent)
			assert.Equal(t, size800, e.Surface().Extent())

			img, err := e.ReadBack()
			require.NoError(t, err)
			assert.Equal(t, 800, img.Bounds().Dx())
			assert.Equal(t, 600, img.Bounds().Dy())
		})
	}
}

func TestEngineResizeAccounting(t *testing.T) {
	sys := softgpu.NewSystem()
	e := newEngine(sys, testConfig(interop.HandleD3D11Texture))
	require.NoError(t, e.Init(size800, core.Triangle(), interop.ShaderSet{}, interop.SurfaceSpec{}))

	const n = 5
	for i := 0; i < n; i++ {
		size := interop.Extent{Width: uint32(320 + 16*i), Height: uint32(200 + 8*i)}
		require.NoError(t, e.Resize(size))
		require.NoError(t, e.RenderFrame())
		assert.Equal(t, size, e.Surface().Extent())
	}

	stats := e.Stats()
	assert.Equal(t, n+1, stats.RenderTargetsCreated)
	assert.Equal(t, n, stats.RenderTargetsDestroyed)
	assert.Equal(t, n, stats.Resizes)
	assert.Equal(t, n+1, stats.SharedAllocations)

	require.NoError(t, e.Shutdown())
	stats = e.Stats()
	assert.Equal(t, stats.RenderTargetsCreated, stats.RenderTargetsDestroyed)
	assert.Zero(t, sys.Live(), "%v", sys.LiveByKind())
}

func TestEngineClearColorRoundTrip(t *testing.T) {
	for _, f := range []interop.Format{interop.FormatRGBA8Unorm, interop.FormatBGRA8Unorm} {
		t.Run(f.String(), func(t *testing.T) {
			cfg := testConfig(interop.HandleD3D11Texture)
			cfg.Format = f
			cfg.Clear = core.ColorBlack
			e := initEngine(t, softgpu.NewSystem(), cfg, interop.Extent{Width: 16, Height: 8}, core.MeshData{})

			require.NoError(t, e.RenderFrame())
			img, err := e.ReadBack()
			require.NoError(t, err)
			for y := 0; y < 8; y++ {
				for x := 0; x < 16; x++ {
					require.Equal(t, color.RGBA{0, 0, 0, 255}, img.RGBAAt(x, y), "pixel %d,%d", x, y)
				}
			}
		})
	}
}

func TestEngineClearColorChannelOrder(t *testing.T) {
	cfg := testConfig(interop.HandleOpaqueFD)
	cfg.Format = interop.FormatBGRA8Unorm
	cfg.Clear = core.ColorRed
	e := initEngine(t, softgpu.NewSystem(), cfg, interop.Extent{Width: 4, Height: 4}, core.MeshData{})

	require.NoError(t, e.RenderFrame())
	img, err := e.ReadBack()
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, img.RGBAAt(2, 2))
}

func TestEngineFramesAreDeterministic(t *testing.T) {
	cfg := testConfig(interop.HandleD3D11Texture)
	cfg.Samples = interop.Samples4
	e := initEngine(t, softgpu.NewSystem(), cfg, interop.Extent{Width: 64, Height: 48}, core.Triangle())
	assert.Equal(t, interop.Samples4, e.Stats().Samples)

	require.NoError(t, e.RenderFrame())
	first, err := e.ReadBack()
	require.NoError(t, err)
	require.NoError(t, e.RenderFrame())
	second, err := e.ReadBack()
	require.NoError(t, err)
	assert.Equal(t, first.Pix, second.Pix)
}

func TestEngineDrawsMesh(t *testing.T) {
	cfg := testConfig(interop.HandleOpaqueFD)
	cfg.Clear = core.ColorBlack
	e := initEngine(t, softgpu.NewSystem(), cfg, interop.Extent{Width: 64, Height: 64}, core.Triangle())

	require.NoError(t, e.RenderFrame())
	img, err := e.ReadBack()
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, img.RGBAAt(0, 0))
	assert.NotEqual(t, color.RGBA{0, 0, 0, 255}, img.RGBAAt(32, 32))

	// Uniforms take effect on the next frame: push the triangle out of view.
	u := interop.DefaultUniforms()
	u.Model[3][0] = 10
	e.SetUniforms(u)
	require.NoError(t, e.RenderFrame())
	img, err = e.ReadBack()
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{0, 0, 0, 255}, img.RGBAAt(32, 32))
}

func TestEngineSameSizeResizeIsSymmetric(t *testing.T) {
	sys := softgpu.NewSystem()
	e := initEngine(t, sys, testConfig(interop.HandleD3D11Texture), size800, core.Triangle())
	require.NoError(t, e.RenderFrame())

	before := sys.LiveByKind()
	require.NoError(t, e.Resize(size800))
	assert.Equal(t, before, sys.LiveByKind())
	assert.Equal(t, 1, e.Stats().Resizes)
	require.NoError(t, e.RenderFrame())
}

func TestEngineSkipSameSize(t *testing.T) {
	cfg := testConfig(interop.HandleD3D11Texture)
	cfg.SkipSameSize = true
	e := initEngine(t, softgpu.NewSystem(), cfg, size800, core.Triangle())
	require.NoError(t, e.Resize(size800))
	assert.Zero(t, e.Stats().Resizes)
	assert.Equal(t, 1, e.Stats().RenderTargetsCreated)
}

func TestEngineResizeScenario(t *testing.T) {
	for _, tt := range topologies {
		t.Run(tt.name, func(t *testing.T) {
			sys := softgpu.NewSystem()
			e := newEngine(sys, testConfig(tt.handle))
			require.NoError(t, e.Init(size800, core.Triangle(), interop.ShaderSet{}, interop.SurfaceSpec{}))
			require.NoError(t, e.RenderFrame())

			require.NoError(t, e.Resize(size400))
			require.NoError(t, e.RenderFrame())
			img, err := e.ReadBack()
			require.NoError(t, err)
			assert.Equal(t, 400, img.Bounds().Dx())
			assert.Equal(t, 300, img.Bounds().Dy())

			require.NoError(t, e.Shutdown())
			assert.Equal(t, interop.StateClosed, e.State())
			assert.Zero(t, sys.Live(), "%v", sys.LiveByKind())
			assert.Zero(t, sys.OpenHandles())

			require.NoError(t, e.Shutdown())
			assert.ErrorIs(t, e.RenderFrame(), interop.ErrPrecondition)
		})
	}
}

func TestEngineNoSuitableDevice(t *testing.T) {
	consumerSide := softgpu.DefaultAdapter()
	consumerSide.Name = "display adapter"
	consumerSide.Extensions = []string{"VK_KHR_external_memory"}

	otherAdapter := softgpu.DefaultAdapter()
	otherAdapter.Name = "render adapter"
	otherAdapter.LUID = interop.LUID{0xaa}

	sys := softgpu.NewSystem(consumerSide, otherAdapter)
	e := newEngine(sys, testConfig(interop.HandleD3D11Texture))
	err := e.Init(size800, core.Triangle(), interop.ShaderSet{}, interop.SurfaceSpec{})
	require.Error(t, err)
	assert.ErrorIs(t, err, interop.ErrNoSuitableDevice)
	assert.Equal(t, interop.KindNoSuitableDevice, interop.KindOf(err))
	assert.Contains(t, err.Error(), "missing extensions")
	assert.Contains(t, err.Error(), "LUID")

	assert.Equal(t, interop.StateClosed, e.State())
	assert.Zero(t, sys.Live(), "%v", sys.LiveByKind())
	assert.NoError(t, e.Shutdown())
}

func TestEngineUnsupportedCombination(t *testing.T) {
	without := func(hs []interop.HandleType, drop interop.HandleType) []interop.HandleType {
		var out []interop.HandleType
		for _, h := range hs {
			if h != drop {
				out = append(out, h)
			}
		}
		return out
	}

	tests := []struct {
		name     string
		handle   interop.HandleType
		format   interop.Format
		restrict func(a *softgpu.Adapter)
		reason   string
	}{
		{
			name:     "exported handle type unsupported",
			handle:   interop.HandleOpaqueFD,
			format:   interop.FormatRGBA8Unorm,
			restrict: func(a *softgpu.Adapter) { a.HandleTypes = without(a.HandleTypes, interop.HandleOpaqueFD) },
			reason:   interop.HandleOpaqueFD.String() + " not compatible",
		},
		{
			name:     "imported handle type unsupported",
			handle:   interop.HandleD3D11Texture,
			format:   interop.FormatRGBA8Unorm,
			restrict: func(a *softgpu.Adapter) { a.HandleTypes = without(a.HandleTypes, interop.HandleD3D11Texture) },
			reason:   interop.HandleD3D11Texture.String() + " not compatible",
		},
		{
			name:     "format not shareable",
			handle:   interop.HandleOpaqueFD,
			format:   interop.FormatBGRA8Unorm,
			restrict: func(a *softgpu.Adapter) { a.Formats = []interop.Format{interop.FormatRGBA8Unorm} },
			reason:   "not compatible for " + interop.FormatBGRA8Unorm.String(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			render := softgpu.DefaultAdapter()
			tt.restrict(&render)
			// The consumer sits on a display-only adapter the producer cannot pick.
			display := softgpu.DefaultAdapter()
			display.Name = "display adapter"
			display.NoGraphics = true

			sys := softgpu.NewSystem(render, display)
			cfg := testConfig(tt.handle)
			cfg.Format = tt.format
			log, _ := test.NewNullLogger()
			e := interop.NewEngine(cfg, sys.Producer(), sys.Consumer(1), log)

			err := e.Init(size800, core.Triangle(), interop.ShaderSet{}, interop.SurfaceSpec{})
			require.Error(t, err)
			assert.Equal(t, interop.KindNoSuitableDevice, interop.KindOf(err))
			assert.ErrorIs(t, err, interop.ErrNoSuitableDevice)
			assert.Contains(t, err.Error(), tt.reason)

			assert.Equal(t, interop.StateClosed, e.State())
			assert.Zero(t, e.Stats().RenderTargetsCreated)
			assert.Zero(t, sys.LiveByKind()["memory"])
			assert.Zero(t, sys.OpenHandles())
			assert.Zero(t, sys.Live(), "%v", sys.LiveByKind())
		})
	}
}

func TestEngineImportFailureRollsBack(t *testing.T) {
	faults := []struct {
		name   string
		faults softgpu.Faults
	}{
		{"create external image", softgpu.Faults{FailCreateExternalImage: true}},
		{"import memory", softgpu.Faults{FailImportMemory: true}},
		{"bind memory", softgpu.Faults{FailBindMemory: true}},
		{"export", softgpu.Faults{FailExport: true}},
		{"pipeline", softgpu.Faults{FailPipeline: true}},
	}
	for _, tt := range faults {
		for _, h := range []interop.HandleType{interop.HandleD3D11Texture, interop.HandleOpaqueFD} {
			t.Run(tt.name+"/"+h.String(), func(t *testing.T) {
				sys := softgpu.NewSystem()
				sys.SetFaults(tt.faults)
				e := newEngine(sys, testConfig(h))
				err := e.Init(size800, core.Triangle(), interop.ShaderSet{}, interop.SurfaceSpec{})
				require.Error(t, err)
				assert.ErrorIs(t, err, interop.ErrResourceCreation)
				assert.Zero(t, sys.Live(), "%v", sys.LiveByKind())
				assert.Zero(t, sys.OpenHandles())
			})
		}
	}
}

func TestEngineImportMismatch(t *testing.T) {
	adapter := softgpu.DefaultAdapter()
	adapter.ImportPadding = 1 << 20
	sys := softgpu.NewSystem(adapter)
	e := newEngine(sys, testConfig(interop.HandleOpaqueFD))
	err := e.Init(size800, core.Triangle(), interop.ShaderSet{}, interop.SurfaceSpec{})
	require.Error(t, err)
	assert.ErrorIs(t, err, interop.ErrImportMismatch)
	assert.Zero(t, sys.Live(), "%v", sys.LiveByKind())
}

func TestEngineFDOwnershipTransfers(t *testing.T) {
	sys := softgpu.NewSystem()
	e := initEngine(t, sys, testConfig(interop.HandleOpaqueFD), size800, core.Triangle())
	// The import consumed the fd; only the memory object remains.
	assert.Zero(t, sys.OpenHandles())
	assert.Equal(t, 1, sys.LiveByKind()["memory"])
	assert.Zero(t, sys.LiveByKind()["handle"])
	require.NoError(t, e.RenderFrame())
}

func TestEngineNTHandleStaysOpenUntilRelease(t *testing.T) {
	sys := softgpu.NewSystem()
	e := initEngine(t, sys, testConfig(interop.HandleD3D11Texture), size800, core.Triangle())
	assert.Equal(t, 1, sys.OpenHandles())
	require.NoError(t, e.Resize(size400))
	assert.Equal(t, 1, sys.OpenHandles())
	require.NoError(t, e.Shutdown())
	assert.Zero(t, sys.OpenHandles())
}

func TestEngineFenceTimeout(t *testing.T) {
	sys := softgpu.NewSystem()
	cfg := testConfig(interop.HandleD3D11Texture)
	cfg.FenceTimeout = 20 * time.Millisecond
	e := newEngine(sys, cfg)
	require.NoError(t, e.Init(size800, core.MeshData{}, interop.ShaderSet{}, interop.SurfaceSpec{}))

	sys.SetFaults(softgpu.Faults{HangFences: true})
	err := e.RenderFrame()
	require.Error(t, err)
	assert.ErrorIs(t, err, interop.ErrTimeout)

	// Teardown still completes and reports the outstanding fence.
	assert.ErrorIs(t, e.Shutdown(), interop.ErrTimeout)
	assert.Zero(t, sys.Live(), "%v", sys.LiveByKind())
}

func TestEngineDeviceLost(t *testing.T) {
	sys := softgpu.NewSystem()
	e := initEngine(t, sys, testConfig(interop.HandleD3D11Texture), size800, core.MeshData{})
	sys.SetFaults(softgpu.Faults{LoseDevice: true})
	err := e.RenderFrame()
	assert.ErrorIs(t, err, interop.ErrDeviceLost)
}

func TestEngineSubmitFailure(t *testing.T) {
	sys := softgpu.NewSystem()
	e := initEngine(t, sys, testConfig(interop.HandleD3D11Texture), size800, core.MeshData{})
	sys.SetFaults(softgpu.Faults{FailSubmit: true})
	assert.ErrorIs(t, e.RenderFrame(), interop.ErrSubmission)
}

func TestEngineLifecyclePreconditions(t *testing.T) {
	sys := softgpu.NewSystem()
	e := newEngine(sys, testConfig(interop.HandleD3D11Texture))
	assert.ErrorIs(t, e.RenderFrame(), interop.ErrPrecondition)
	assert.ErrorIs(t, e.Resize(size400), interop.ErrPrecondition)
	_, err := e.ReadBack()
	assert.ErrorIs(t, err, interop.ErrPrecondition)

	assert.ErrorIs(t, e.Init(interop.Extent{Width: 0, Height: 600}, core.MeshData{}, interop.ShaderSet{}, interop.SurfaceSpec{}), interop.ErrPrecondition)

	require.NoError(t, e.Init(size800, core.MeshData{}, interop.ShaderSet{}, interop.SurfaceSpec{}))
	assert.ErrorIs(t, e.Init(size800, core.MeshData{}, interop.ShaderSet{}, interop.SurfaceSpec{}), interop.ErrPrecondition)
	_, err = e.ReadBack()
	assert.ErrorIs(t, err, interop.ErrPrecondition, "nothing rendered yet")
	assert.ErrorIs(t, e.Resize(interop.Extent{}), interop.ErrPrecondition)

	require.NoError(t, e.Shutdown())
	assert.Zero(t, sys.Live(), "%v", sys.LiveByKind())
}

func TestEngineRejectsUnmappedFormat(t *testing.T) {
	cfg := testConfig(interop.HandleD3D11Texture)
	cfg.Format = interop.FormatD32Float
	sys := softgpu.NewSystem()
	e := newEngine(sys, cfg)
	err := e.Init(size800, core.MeshData{}, interop.ShaderSet{}, interop.SurfaceSpec{})
	assert.ErrorIs(t, err, interop.ErrPrecondition)
	require.NoError(t, e.Shutdown())
	assert.Zero(t, sys.Live())
}
