package interop

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closeRecorder struct {
	closed []uintptr
	err    error
}

func (c *closeRecorder) CloseHandle(_ HandleType, v uintptr) error {
	c.closed = append(c.closed, v)
	return c.err
}

func TestHandleTypeProperties(t *testing.T) {
	tests := []struct {
		h         HandleType
		local     bool
		needClose bool
		transfers bool
		owner     Owner
		ext       string
	}{
		{HandleOpaqueFD, false, true, true, OwnerProducer, "VK_KHR_external_memory_fd"},
		{HandleOpaqueWin32, true, true, false, OwnerProducer, "VK_KHR_external_memory_win32"},
		{HandleOpaqueWin32KMT, true, false, false, OwnerProducer, "VK_KHR_external_memory_win32"},
		{HandleD3D11Texture, true, true, false, OwnerConsumer, "VK_KHR_external_memory_win32"},
		{HandleD3D11TextureKMT, true, false, false, OwnerConsumer, "VK_KHR_external_memory_win32"},
	}
	for _, tt := range tests {
		t.Run(tt.h.String(), func(t *testing.T) {
			assert.Equal(t, tt.local, tt.h.AdapterLocal())
			assert.Equal(t, tt.needClose, tt.h.NeedsClose())
			assert.Equal(t, tt.transfers, tt.h.TransfersOnImport())
			assert.Equal(t, tt.owner, tt.h.DefaultOwner())
			assert.Contains(t, tt.h.RequiredExtensions(), tt.ext)
			assert.Contains(t, tt.h.RequiredExtensions(), "VK_KHR_dedicated_allocation")

			parsed, err := ParseHandleType(tt.h.String())
			require.NoError(t, err)
			assert.Equal(t, tt.h, parsed)
		})
	}
	_, err := ParseHandleType("dma-buf")
	assert.Error(t, err)
}

func TestExportedHandleCloseInvalidates(t *testing.T) {
	rec := &closeRecorder{}
	h := newExportedHandle(HandleD3D11Texture, 0x40, 0, false, rec)

	v, err := h.Value()
	require.NoError(t, err)
	assert.Equal(t, uintptr(0x40), v)

	require.NoError(t, h.Close())
	require.NoError(t, h.Close())
	assert.Equal(t, []uintptr{0x40}, rec.closed)

	_, err = h.Value()
	assert.ErrorIs(t, err, ErrHandleInvalid)
	assert.False(t, h.Valid())
}

func TestExportedHandleKMTIsNotClosed(t *testing.T) {
	rec := &closeRecorder{}
	h := newExportedHandle(HandleD3D11TextureKMT, 0x80, 0, false, rec)
	require.NoError(t, h.Close())
	assert.Empty(t, rec.closed)
}

func TestExportedHandleTransferSkipsClose(t *testing.T) {
	rec := &closeRecorder{}
	h := newExportedHandle(HandleOpaqueFD, 7, 4096, true, rec)
	h.markTransferred()

	_, err := h.Value()
	assert.ErrorIs(t, err, ErrHandleInvalid)
	require.NoError(t, h.Close())
	assert.Empty(t, rec.closed)
}

func TestExportedHandleCloseError(t *testing.T) {
	rec := &closeRecorder{err: errors.New("EBADF")}
	h := newExportedHandle(HandleOpaqueFD, 7, 4096, true, rec)
	err := h.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EBADF")
}

func TestErrorKinds(t *testing.T) {
	err := wrap(KindResourceCreation, "vkAllocateMemory", statusErr(-2))
	assert.ErrorIs(t, err, ErrResourceCreation)
	assert.NotErrorIs(t, err, ErrImportMismatch)
	assert.Equal(t, KindResourceCreation, KindOf(err))

	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, int64(-2), e.Status)
	assert.Contains(t, err.Error(), "vkAllocateMemory")

	// A kind set by the backend survives wrapping.
	lost := wrap(KindSubmission, "wait producer fence", NewError(KindDeviceLost, "vkWaitForFences", -4, nil))
	assert.ErrorIs(t, lost, ErrDeviceLost)
}

type statusErr int64

func (s statusErr) Error() string { return "native failure" }
func (s statusErr) Status() int64 { return int64(s) }
