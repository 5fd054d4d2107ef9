package d3d11

import (
	"errors"
	"fmt"
	"image"
	"slices"

	"render-interop/interop"
)

// D3D11/DXGI constants
const (
	driverTypeUnknown  = 0
	driverTypeHardware = 1
	featureLevel11_0   = 0xb000
	featureLevel11_1   = 0xb100
	sdkVersion         = 7

	createDeviceBGRASupport = 0x20
	createDeviceDebug       = 0x2

	usageDefault = 0
	usageStaging = 3

	bindShaderResource = 0x8
	bindRenderTarget   = 0x20

	cpuAccessRead = 0x20000

	miscShared         = 0x2
	miscSharedNTHandle = 0x800

	mapRead    = 1
	queryEvent = 0

	sharedResourceRead  = 0x80000000
	sharedResourceWrite = 0x1

	dxgiUsageRenderTargetOutput = 0x20
	dxgiSwapEffectFlipDiscard   = 4
	dxgiScalingStretch          = 0
	dxgiAlphaModeIgnore         = 3
	dxgiAdapterFlagSoftware     = 0x2
	presenterBufferCount        = 2
)

// HRESULTs with a dedicated meaning.
const (
	sOK                  = 0
	sFalse               = 1
	dxgiErrNotFound      = 0x887A0002
	dxgiErrDeviceRemoved = 0x887A0005
	dxgiErrDeviceHung    = 0x887A0006
	dxgiErrDeviceReset   = 0x887A0007
	eInvalidArg          = 0x80070057
)

// texture2DDesc matches D3D11_TEXTURE2D_DESC.
type texture2DDesc struct {
	Width          uint32
	Height         uint32
	MipLevels      uint32
	ArraySize      uint32
	Format         uint32
	SampleCount    uint32
	SampleQuality  uint32
	Usage          uint32
	BindFlags      uint32
	CPUAccessFlags uint32
	MiscFlags      uint32
}

// mappedSubresource matches D3D11_MAPPED_SUBRESOURCE.
type mappedSubresource struct {
	PData      uintptr
	RowPitch   uint32
	DepthPitch uint32
}

// queryDesc matches D3D11_QUERY_DESC.
type queryDesc struct {
	Query     uint32
	MiscFlags uint32
}

// swapChainDesc1 matches DXGI_SWAP_CHAIN_DESC1.
type swapChainDesc1 struct {
	Width         uint32
	Height        uint32
	Format        uint32
	Stereo        int32
	SampleCount   uint32
	SampleQuality uint32
	BufferUsage   uint32
	BufferCount   uint32
	Scaling       uint32
	SwapEffect    uint32
	AlphaMode     uint32
	Flags         uint32
}

// adapterDesc1 matches DXGI_ADAPTER_DESC1.
type adapterDesc1 struct {
	Description           [128]uint16
	VendorID              uint32
	DeviceID              uint32
	SubSysID              uint32
	Revision              uint32
	DedicatedVideoMemory  uintptr
	DedicatedSystemMemory uintptr
	SharedSystemMemory    uintptr
	LUIDLow               uint32
	LUIDHigh              int32
	Flags                 uint32
}

func (d *adapterDesc1) luid() interop.LUID {
	return interop.LUIDFromParts(d.LUIDLow, d.LUIDHigh)
}

// HResultError is a failed COM call.
type HResultError struct {
	Op     string
	Result uint32
}

func (e *HResultError) Error() string {
	return fmt.Sprintf("%s failed: HRESULT 0x%08X", e.Op, e.Result)
}

func (e *HResultError) Status() int64 { return int64(e.Result) }

// DeviceRemoved reports whether the HRESULT means the adapter went away.
func (e *HResultError) DeviceRemoved() bool {
	switch e.Result {
	case dxgiErrDeviceRemoved, dxgiErrDeviceHung, dxgiErrDeviceReset:
		return true
	}
	return false
}

// hrError classifies a failed HRESULT for the interop layer.
func hrError(kind interop.Kind, op string, hr uintptr) error {
	he := &HResultError{Op: op, Result: uint32(hr)}
	if he.DeviceRemoved() {
		kind = interop.KindDeviceLost
	}
	return interop.NewError(kind, op, int64(he.Result), he)
}

func failed(hr uintptr) bool { return int32(hr) < 0 }

// sharedMiscFlags is the MiscFlags a texture needs to be exportable as h.
func sharedMiscFlags(h interop.HandleType) (uint32, error) {
	switch h {
	case interop.HandleD3D11Texture:
		return miscShared | miscSharedNTHandle, nil
	case interop.HandleD3D11TextureKMT:
		return miscShared, nil
	}
	return 0, fmt.Errorf("d3d11 cannot export %s handles", h)
}

// sharedHandleTypes are the handles a D3D11 device shares textures through.
// Vulkan opaque Win32 handles name raw memory, not a texture, and
// OpenSharedResource1 rejects them.
var sharedHandleTypes = []interop.HandleType{
	interop.HandleD3D11Texture,
	interop.HandleD3D11TextureKMT,
}

// importable reports whether the device can open a producer handle of type h.
func importable(h interop.HandleType) bool {
	return slices.Contains(sharedHandleTypes, h)
}

// ntHandle reports whether h is opened with OpenSharedResource1.
func ntHandle(h interop.HandleType) bool {
	return h == interop.HandleD3D11Texture
}

// sharedTextureDesc is a render target the producer can draw into and the
// consumer can copy from.
func sharedTextureDesc(desc interop.ImageDesc, misc uint32) (texture2DDesc, error) {
	info, ok := desc.Format.Info()
	if !ok || info.DXGIFormat == 0 {
		return texture2DDesc{}, fmt.Errorf("format %s has no DXGI equivalent", desc.Format)
	}
	if !desc.Extent.Valid() {
		return texture2DDesc{}, fmt.Errorf("invalid texture extent %s", desc.Extent)
	}
	return texture2DDesc{
		Width:       desc.Extent.Width,
		Height:      desc.Extent.Height,
		MipLevels:   1,
		ArraySize:   1,
		Format:      info.DXGIFormat,
		SampleCount: 1,
		Usage:       usageDefault,
		BindFlags:   bindRenderTarget | bindShaderResource,
		MiscFlags:   misc,
	}, nil
}

// stagingDesc is a CPU-readable copy of d.
func stagingDesc(d texture2DDesc) texture2DDesc {
	d.Usage = usageStaging
	d.BindFlags = 0
	d.CPUAccessFlags = cpuAccessRead
	d.MiscFlags = 0
	return d
}

// matchDesc checks an opened resource against what the importer expects.
func matchDesc(got texture2DDesc, want interop.ImageDesc) error {
	info, _ := want.Format.Info()
	if got.Width != want.Extent.Width || got.Height != want.Extent.Height {
		return fmt.Errorf("shared texture is %dx%d, expected %s", got.Width, got.Height, want.Extent)
	}
	if got.Format != info.DXGIFormat {
		return fmt.Errorf("shared texture has DXGI format %d, expected %d (%s)", got.Format, info.DXGIFormat, want.Format)
	}
	return nil
}

var errNotIssued = errors.New("fence was never signaled by a submission")

// readRows converts a mapped staging texture into RGBA8.
func readRows(data []byte, pitch int, size interop.Extent, format interop.Format) (*image.RGBA, error) {
	w, h := int(size.Width), int(size.Height)
	bpp := format.BytesPerPixel()
	if bpp == 0 {
		return nil, fmt.Errorf("format %s has no pixel size", format)
	}
	if pitch < w*bpp || len(data) < pitch*(h-1)+w*bpp {
		return nil, fmt.Errorf("mapped data too small: pitch %d, %d bytes for %s", pitch, len(data), size)
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		row := data[y*pitch:]
		for x := 0; x < w; x++ {
			px := format.RGBA8(row[x*bpp : (x+1)*bpp])
			copy(img.Pix[y*img.Stride+x*4:], px[:])
		}
	}
	return img, nil
}
