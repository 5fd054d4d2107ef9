//go:build windows

package window

import "unsafe"

// NativeHandle is the HWND a DXGI swap chain is created for.
func (w *Window) NativeHandle() uintptr {
	return uintptr(unsafe.Pointer(w.Handle.GetWin32Window()))
}
