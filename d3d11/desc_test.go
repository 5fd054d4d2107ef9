package d3d11

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-interop/interop"
)

func TestSharedMiscFlags(t *testing.T) {
	nt, err := sharedMiscFlags(interop.HandleD3D11Texture)
	require.NoError(t, err)
	assert.Equal(t, uint32(miscShared|miscSharedNTHandle), nt)

	kmt, err := sharedMiscFlags(interop.HandleD3D11TextureKMT)
	require.NoError(t, err)
	assert.Equal(t, uint32(miscShared), kmt)

	_, err = sharedMiscFlags(interop.HandleOpaqueWin32)
	assert.ErrorContains(t, err, "cannot export opaque-win32")
}

func TestImportableHandles(t *testing.T) {
	assert.True(t, importable(interop.HandleD3D11Texture))
	assert.True(t, importable(interop.HandleD3D11TextureKMT))
	for _, h := range []interop.HandleType{interop.HandleOpaqueFD, interop.HandleOpaqueWin32, interop.HandleOpaqueWin32KMT} {
		assert.False(t, importable(h), h.String())
		assert.NotContains(t, sharedHandleTypes, h)
	}
	assert.True(t, ntHandle(interop.HandleD3D11Texture))
	assert.False(t, ntHandle(interop.HandleD3D11TextureKMT))
	assert.False(t, ntHandle(interop.HandleOpaqueWin32))
}

func TestSharedTextureDesc(t *testing.T) {
	desc := interop.ImageDesc{Extent: interop.Extent{Width: 640, Height: 480}, Format: interop.FormatBGRA8Unorm}
	td, err := sharedTextureDesc(desc, miscShared)
	require.NoError(t, err)
	assert.Equal(t, uint32(87), td.Format)
	assert.Equal(t, uint32(640), td.Width)
	assert.Equal(t, uint32(1), td.MipLevels)
	assert.Equal(t, uint32(1), td.SampleCount)
	assert.Equal(t, uint32(bindRenderTarget|bindShaderResource), td.BindFlags)

	st := stagingDesc(td)
	assert.Equal(t, uint32(usageStaging), st.Usage)
	assert.Zero(t, st.BindFlags)
	assert.Zero(t, st.MiscFlags)
	assert.Equal(t, uint32(cpuAccessRead), st.CPUAccessFlags)

	_, err = sharedTextureDesc(interop.ImageDesc{Format: interop.FormatBGRA8Unorm}, 0)
	assert.Error(t, err)
	_, err = sharedTextureDesc(interop.ImageDesc{Extent: desc.Extent}, 0)
	assert.ErrorContains(t, err, "no DXGI equivalent")
}

func TestMatchDesc(t *testing.T) {
	want := interop.ImageDesc{Extent: interop.Extent{Width: 4, Height: 2}, Format: interop.FormatRGBA8Unorm}
	assert.NoError(t, matchDesc(texture2DDesc{Width: 4, Height: 2, Format: 28}, want))
	assert.ErrorContains(t, matchDesc(texture2DDesc{Width: 8, Height: 2, Format: 28}, want), "8x2")
	assert.ErrorContains(t, matchDesc(texture2DDesc{Width: 4, Height: 2, Format: 87}, want), "DXGI format 87")
}

func TestHRError(t *testing.T) {
	err := hrError(interop.KindSubmission, "Present", dxgiErrDeviceRemoved)
	assert.ErrorIs(t, err, interop.ErrDeviceLost)
	assert.Equal(t, interop.KindDeviceLost, interop.KindOf(err))

	err = hrError(interop.KindResourceCreation, "CreateTexture2D", eInvalidArg)
	assert.Equal(t, interop.KindResourceCreation, interop.KindOf(err))
	assert.Contains(t, err.Error(), "0x80070057")
	assert.True(t, failed(eInvalidArg))
	assert.False(t, failed(sFalse))
}

func TestReadRowsHonorsPitchAndOrder(t *testing.T) {
	size := interop.Extent{Width: 2, Height: 2}
	// 12-byte pitch: two BGRA pixels plus four bytes of padding per row.
	data := []byte{
		1, 2, 3, 4, 5, 6, 7, 8, 0xee, 0xee, 0xee, 0xee,
		9, 10, 11, 12, 13, 14, 15, 16,
	}
	img, err := readRows(data, 12, size, interop.FormatBGRA8Unorm)
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 2, 1, 4, 7, 6, 5, 8, 11, 10, 9, 12, 15, 14, 13, 16}, img.Pix)

	_, err = readRows(data[:10], 12, size, interop.FormatBGRA8Unorm)
	assert.ErrorContains(t, err, "too small")
}

func TestAdapterLUID(t *testing.T) {
	d := adapterDesc1{LUIDLow: 0x01020304, LUIDHigh: 0}
	assert.Equal(t, interop.LUIDFromParts(0x01020304, 0), d.luid())
}
