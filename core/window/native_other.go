//go:build !windows

package window

// NativeHandle is 0: the GL path presents through the window's own context.
func (w *Window) NativeHandle() uintptr { return 0 }
