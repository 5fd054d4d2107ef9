package interop

import (
	stdmath "math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-interop/core"
)

func TestParseFormat(t *testing.T) {
	for _, f := range ShareableFormats() {
		got, err := ParseFormat(f.String())
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}
	got, err := ParseFormat(" BGRA8_UNORM ")
	require.NoError(t, err)
	assert.Equal(t, FormatBGRA8Unorm, got)

	_, err = ParseFormat("r5g6b5")
	assert.Error(t, err)
}

func TestFormatTableMappings(t *testing.T) {
	tests := []struct {
		format Format
		vk     uint32
		dxgi   uint32
	}{
		{FormatRGBA8Unorm, 37, 28},
		{FormatBGRA8Unorm, 44, 87},
		{FormatRGBA8Srgb, 43, 29},
		{FormatBGRA8Srgb, 50, 91},
		{FormatRGB10A2Unorm, 64, 24},
		{FormatRGBA16Float, 97, 10},
	}
	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			info, ok := tt.format.Info()
			require.True(t, ok)
			assert.Equal(t, tt.vk, info.VkFormat)
			assert.Equal(t, tt.dxgi, info.DXGIFormat)

			f, ok := FormatFromVk(tt.vk)
			require.True(t, ok)
			assert.Equal(t, tt.format, f)
			f, ok = FormatFromDXGI(tt.dxgi)
			require.True(t, ok)
			assert.Equal(t, tt.format, f)
		})
	}
	assert.False(t, FormatD32Float.Shareable())
	assert.False(t, FormatUndefined.Shareable())
}

func TestPackChannelOrder(t *testing.T) {
	red := core.Color{R: 1, G: 0, B: 0, A: 1}
	assert.Equal(t, []byte{255, 0, 0, 255}, FormatRGBA8Unorm.Pack(red))
	assert.Equal(t, []byte{0, 0, 255, 255}, FormatBGRA8Unorm.Pack(red))

	// 8-bit formats reach RGBA8 without arithmetic.
	for _, f := range []Format{FormatRGBA8Unorm, FormatBGRA8Unorm} {
		assert.Equal(t, [4]uint8{255, 0, 0, 255}, f.RGBA8(f.Pack(red)), f.String())
	}
}

func TestPackUnpackRoundTrip(t *testing.T) {
	c := core.Color{R: 0.25, G: 0.5, B: 0.75, A: 1}
	for _, f := range []Format{FormatRGBA8Unorm, FormatBGRA8Unorm, FormatRGB10A2Unorm, FormatRGBA16Float} {
		got := f.Unpack(f.Pack(c))
		assert.InDelta(t, c.R, got.R, 0.004, f.String())
		assert.InDelta(t, c.G, got.G, 0.004, f.String())
		assert.InDelta(t, c.B, got.B, 0.004, f.String())
		assert.InDelta(t, c.A, got.A, 0.004, f.String())
	}
}

func TestPackSRGBEncodes(t *testing.T) {
	px := FormatRGBA8Srgb.Pack(core.Color{R: 0.5, G: 0, B: 1, A: 1})
	assert.Equal(t, byte(188), px[0])
	assert.Equal(t, byte(0), px[1])
	assert.Equal(t, byte(255), px[2])
}

func TestHalfFloat(t *testing.T) {
	for _, v := range []float32{0, 1, -1, 0.5, 2, 65504, 0.333} {
		assert.InDelta(t, v, halfToFloat32(float32ToHalf(v)), stdmath.Abs(float64(v))*0.001+1e-6)
	}
	assert.Equal(t, uint16(0x3c00), float32ToHalf(1))
	assert.Equal(t, uint16(0x7c00), float32ToHalf(1e9))
}
