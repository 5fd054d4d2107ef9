package opengl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"render-interop/interop"
)

func TestMissingExtensions(t *testing.T) {
	have := []string{"GL_ARB_debug_output", extMemoryObject}
	assert.Equal(t, []string{extMemoryObjectFd}, missingExtensions(have, RequiredExtensions...))
	assert.Empty(t, missingExtensions(append(have, extMemoryObjectFd), RequiredExtensions...))
}

func TestGLHandleType(t *testing.T) {
	ht, err := glHandleType(interop.HandleOpaqueFD)
	require.NoError(t, err)
	assert.Equal(t, uint32(handleTypeOpaqueFdEXT), ht)

	_, err = glHandleType(interop.HandleD3D11Texture)
	assert.ErrorContains(t, err, "not d3d11-texture")
}

func TestTextureFormatSwizzlesBGRA(t *testing.T) {
	internal, swizzle, err := textureFormat(interop.FormatBGRA8Unorm)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x8058), internal)
	assert.Equal(t, [4]int32{0x1905, 0x1904, 0x1903, 0x1906}, swizzle)

	_, swizzle, err = textureFormat(interop.FormatRGBA8Unorm)
	require.NoError(t, err)
	assert.Equal(t, [4]int32{0x1903, 0x1904, 0x1905, 0x1906}, swizzle)

	_, _, err = textureFormat(interop.FormatD32Float)
	assert.Error(t, err)
}

func TestFlipRows(t *testing.T) {
	size := interop.Extent{Width: 1, Height: 3}
	img, err := flipRows([]byte{1, 1, 1, 1, 2, 2, 2, 2, 3, 3, 3, 3}, size)
	require.NoError(t, err)
	assert.Equal(t, []byte{3, 3, 3, 3, 2, 2, 2, 2, 1, 1, 1, 1}, img.Pix)

	_, err = flipRows(make([]byte, 4), size)
	assert.ErrorContains(t, err, "want 12")
}
