package renderer

import (
	"context"
	"encoding/binary"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-interop/config"
	"render-interop/interop"
)

func softConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Backend = config.BackendSoft
	cfg.Window.Width, cfg.Window.Height = 64, 48
	cfg.Assets.VertexShader = filepath.Join(t.TempDir(), "missing.vert.spv")
	cfg.Assets.FragmentShader = filepath.Join(t.TempDir(), "missing.frag.spv")
	return cfg
}

func spirvWords(words ...uint32) []byte {
	out := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(out[4*i:], w)
	}
	return out
}

func TestParseResizeStep(t *testing.T) {
	step, err := ParseResizeStep("1024x768@10")
	require.NoError(t, err)
	assert.Equal(t, ResizeStep{AtFrame: 10, Size: interop.Extent{Width: 1024, Height: 768}}, step)

	for _, bad := range []string{"1024x768", "1024@3", "ax768@1", "1024xb@1", "10x10@-1", "10x10@x"} {
		_, err := ParseResizeStep(bad)
		assert.Error(t, err, bad)
	}
}

func TestValidateSPIRV(t *testing.T) {
	assert.NoError(t, ValidateSPIRV(spirvWords(spirvMagic, 0x00010000, 0, 8, 0)))
	assert.ErrorContains(t, ValidateSPIRV(spirvWords(0xdeadbeef, 0, 0, 0, 0)), "magic")
	assert.Error(t, ValidateSPIRV(append(spirvWords(spirvMagic, 0, 0, 0, 0), 1)))
	assert.Error(t, ValidateSPIRV(nil))
}

func TestLoadShaders(t *testing.T) {
	log, _ := test.NewNullLogger()
	dir := t.TempDir()
	vert := filepath.Join(dir, "a.vert.spv")
	frag := filepath.Join(dir, "a.frag.spv")
	require.NoError(t, os.WriteFile(vert, spirvWords(spirvMagic, 1, 2, 3, 4), 0o644))
	require.NoError(t, os.WriteFile(frag, spirvWords(spirvMagic, 5, 6, 7, 8), 0o644))

	set, err := LoadShaders(vert, frag, log)
	require.NoError(t, err)
	assert.Len(t, set.Vertex, 20)
	assert.Len(t, set.Fragment, 20)
	assert.Equal(t, "main", set.Entry())

	require.NoError(t, os.WriteFile(frag, []byte("not spirv"), 0o644))
	_, err = LoadShaders(vert, frag, log)
	assert.ErrorContains(t, err, "fragment program")

	_, err = LoadShaders(filepath.Join(dir, "none.vert.spv"), frag, log)
	assert.ErrorContains(t, err, "vertex program")
}

func TestRunHeadlessSoft(t *testing.T) {
	log, _ := test.NewNullLogger()
	out := filepath.Join(t.TempDir(), "frame.png")

	res, err := RunHeadless(context.Background(), Options{
		Config:  softConfig(t),
		Frames:  4,
		Resizes: []ResizeStep{{AtFrame: 2, Size: interop.Extent{Width: 32, Height: 40}}},
		Output:  out,
	}, log)
	require.NoError(t, err)

	assert.Equal(t, 32, res.Image.Bounds().Dx())
	assert.Equal(t, 40, res.Image.Bounds().Dy())
	assert.Equal(t, 4, res.Stats.Frames)
	assert.Equal(t, 1, res.Stats.Resizes)
	assert.Equal(t, res.Stats.RenderTargetsCreated, res.Stats.RenderTargetsDestroyed+1)
	assert.NotEqual(t, res.Image.RGBAAt(0, 0), res.Image.RGBAAt(16, 20), "triangle covers the center")

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	decoded, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, res.Image.Bounds(), decoded.Bounds())
}

func TestRunHeadlessCancelled(t *testing.T) {
	log, _ := test.NewNullLogger()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := RunHeadless(ctx, Options{Config: softConfig(t), Frames: 2}, log)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunHeadlessMissingModel(t *testing.T) {
	log, _ := test.NewNullLogger()
	cfg := softConfig(t)
	cfg.Assets.Model = filepath.Join(t.TempDir(), "absent.glb")

	_, err := RunHeadless(context.Background(), Options{Config: cfg}, log)
	assert.ErrorContains(t, err, "absent.glb")
}

func TestProbeSoft(t *testing.T) {
	cfg := softConfig(t)
	cfg.Interop.HandleType = interop.HandleOpaqueFD.String()
	drv := softProducer()
	defer drv.Destroy()

	report, err := Probe(drv, cfg)
	require.NoError(t, err)
	require.Len(t, report.Devices, 1)
	assert.Len(t, report.Devices[0].Handles, len(interop.HandleTypes()))
	for _, h := range report.Devices[0].Handles {
		assert.NoError(t, h.Err)
		assert.True(t, h.Support.Compatible(h.HandleType), h.HandleType.String())
	}
	require.NoError(t, report.SelectErr)
	assert.Equal(t, interop.RoleExport, report.Role)

	var buf strings.Builder
	require.NoError(t, report.Write(&buf))
	assert.Contains(t, buf.String(), "Soft GPU")
	assert.Contains(t, buf.String(), "selection for export opaque-fd: #0")
}

func TestWarnIfPassive(t *testing.T) {
	log, hook := test.NewNullLogger()
	warnIfPassive(Backends{Native: true}, log)
	assert.Empty(t, hook.AllEntries())

	soft := OpenSoft()
	defer soft.Producer.Destroy()
	defer soft.Consumer.Destroy()
	warnIfPassive(soft, log)
	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Contains(t, hook.LastEntry().Message, "window stays blank")
}
