//go:build windows

package d3d11

import (
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	d3d11DLL = windows.NewLazySystemDLL("d3d11.dll")
	dxgiDLL  = windows.NewLazySystemDLL("dxgi.dll")

	procD3D11CreateDevice  = d3d11DLL.NewProc("D3D11CreateDevice")
	procCreateDXGIFactory1 = dxgiDLL.NewProc("CreateDXGIFactory1")
)

// COM vtable indices
const (
	vtblQueryInterface = 0
	vtblRelease        = 2

	dxgiFactory1EnumAdapters1          = 12
	dxgiFactory2CreateSwapChainForHwnd = 15
	dxgiAdapter1GetDesc1               = 10
	dxgiResourceGetSharedHandle        = 8
	dxgiResource1CreateSharedHandle    = 13
	dxgiSwapChainPresent               = 8
	dxgiSwapChainGetBuffer             = 9
	dxgiSwapChainResizeBuffers         = 13

	d3d11DeviceCreateTexture2D      = 5
	d3d11DeviceCreateQuery          = 24
	d3d11DeviceOpenSharedResource   = 28
	d3d11Device1OpenSharedResource1 = 48
	d3d11Texture2DGetDesc           = 10

	d3d11CtxMap          = 14
	d3d11CtxUnmap        = 15
	d3d11CtxBegin        = 27
	d3d11CtxEnd          = 28
	d3d11CtxGetData      = 29
	d3d11CtxCopyResource = 47
	d3d11CtxFlush        = 111
)

var (
	iidIDXGIFactory1   = windows.GUID{Data1: 0x770aae78, Data2: 0xf26f, Data3: 0x4dba, Data4: [8]byte{0xa8, 0x29, 0x25, 0x3c, 0x83, 0xd1, 0xb3, 0x87}}
	iidIDXGIFactory2   = windows.GUID{Data1: 0x50c83a1c, Data2: 0xe072, Data3: 0x4c48, Data4: [8]byte{0x87, 0xb0, 0x36, 0x30, 0xfa, 0x36, 0xa6, 0xd0}}
	iidID3D11Device1   = windows.GUID{Data1: 0xa04bfb29, Data2: 0x08ef, Data3: 0x43d6, Data4: [8]byte{0xa4, 0x9c, 0xa9, 0xbd, 0xbd, 0xcb, 0xe6, 0x86}}
	iidID3D11Texture2D = windows.GUID{Data1: 0x6f15aaf2, Data2: 0xd208, Data3: 0x4e89, Data4: [8]byte{0x9a, 0xb4, 0x48, 0x95, 0x35, 0xd3, 0x4f, 0x9c}}
	iidIDXGIResource   = windows.GUID{Data1: 0x035f3ab4, Data2: 0x482e, Data3: 0x4e50, Data4: [8]byte{0xb4, 0x1f, 0x8a, 0x7f, 0x8b, 0xd8, 0x96, 0x0b}}
	iidIDXGIResource1  = windows.GUID{Data1: 0x30961379, Data2: 0x4609, Data3: 0x4a41, Data4: [8]byte{0x99, 0x8e, 0x54, 0xfe, 0x56, 0x7e, 0xe0, 0xc1}}
)

// comCall invokes method index of the COM object obj and returns the raw
// HRESULT (or the method's return value for void/ULONG methods).
func comCall(obj uintptr, index int, args ...uintptr) uintptr {
	vtbl := *(*uintptr)(unsafe.Pointer(obj))
	fn := *(*uintptr)(unsafe.Pointer(vtbl + uintptr(index)*unsafe.Sizeof(uintptr(0))))
	r, _, _ := syscall.SyscallN(fn, append([]uintptr{obj}, args...)...)
	return r
}

func comRelease(obj uintptr) {
	if obj != 0 {
		comCall(obj, vtblRelease)
	}
}

func queryInterface(obj uintptr, iid *windows.GUID) (uintptr, uintptr) {
	var out uintptr
	hr := comCall(obj, vtblQueryInterface, uintptr(unsafe.Pointer(iid)), uintptr(unsafe.Pointer(&out)))
	return out, hr
}

func textureDesc(tex uintptr) texture2DDesc {
	var d texture2DDesc
	comCall(tex, d3d11Texture2DGetDesc, uintptr(unsafe.Pointer(&d)))
	return d
}
