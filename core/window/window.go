// Package window is the glfw UI host: it owns the native window, reports
// framebuffer resizes and close requests, and exposes what a consumer
// needs to present into it.
package window

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
)

func init() {
	runtime.LockOSThread()
}

// ClientAPI selects what the window is created for.
type ClientAPI int

const (
	// ClientNone creates a bare window for a DXGI swap chain.
	ClientNone ClientAPI = iota
	// ClientOpenGL creates a 4.1 core context and makes it current.
	ClientOpenGL
)

type Window struct {
	Handle *glfw.Window
	Width  int
	Height int
	Title  string
	API    ClientAPI

	onResize func(width, height int)
	onClose  func()
}

type WindowConfig struct {
	Width     int
	Height    int
	Title     string
	Resizable bool
	VSync     bool
	API       ClientAPI
	// Hidden keeps the window invisible, for headless runs that still need
	// a GL context.
	Hidden bool
}

func NewWindow(config WindowConfig) (*Window, error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize GLFW: %w", err)
	}

	glfw.DefaultWindowHints()
	glfw.WindowHint(glfw.Resizable, boolToInt(config.Resizable))
	glfw.WindowHint(glfw.Visible, boolToInt(!config.Hidden))
	switch config.API {
	case ClientOpenGL:
		glfw.WindowHint(glfw.ClientAPI, glfw.OpenGLAPI)
		glfw.WindowHint(glfw.ContextVersionMajor, 4)
		glfw.WindowHint(glfw.ContextVersionMinor, 1)
		glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
		glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	default:
		glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	}

	handle, err := glfw.CreateWindow(config.Width, config.Height, config.Title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	window := &Window{
		Handle: handle,
		Title:  config.Title,
		API:    config.API,
	}
	window.Width, window.Height = handle.GetFramebufferSize()

	if config.API == ClientOpenGL {
		handle.MakeContextCurrent()
		if config.VSync {
			glfw.SwapInterval(1)
		} else {
			glfw.SwapInterval(0)
		}
	}

	handle.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		window.Width = width
		window.Height = height
		if window.onResize != nil {
			window.onResize(width, height)
		}
	})
	handle.SetCloseCallback(func(w *glfw.Window) {
		if window.onClose != nil {
			window.onClose()
		}
	})

	return window, nil
}

// OnResize registers fn for framebuffer size changes. A minimized window
// reports 0x0.
func (w *Window) OnResize(fn func(width, height int)) { w.onResize = fn }

func (w *Window) OnClose(fn func()) { w.onClose = fn }

func (w *Window) ShouldClose() bool {
	return w.Handle.ShouldClose()
}

func (w *Window) PollEvents() {
	glfw.PollEvents()
}

// WaitEvents blocks until an event arrives, used while minimized.
func (w *Window) WaitEvents() {
	glfw.WaitEvents()
}

// Wake unblocks a WaitEvents call. Safe from any goroutine.
func (w *Window) Wake() {
	glfw.PostEmptyEvent()
}

// SwapBuffers presents the GL back buffer; a no-op without a GL context.
func (w *Window) SwapBuffers() {
	if w.API == ClientOpenGL {
		w.Handle.SwapBuffers()
	}
}

func (w *Window) GetFramebufferSize() (int, int) {
	return w.Handle.GetFramebufferSize()
}

// GetProcAddress resolves a GL entry point in the current context.
func (w *Window) GetProcAddress(name string) unsafe.Pointer {
	return glfw.GetProcAddress(name)
}

func (w *Window) Destroy() {
	w.Handle.Destroy()
	glfw.Terminate()
}

func (w *Window) SetTitle(title string) {
	w.Handle.SetTitle(title)
	w.Title = title
}

func (w *Window) IsKeyPressed(key glfw.Key) bool {
	return w.Handle.GetKey(key) == glfw.Press
}

func boolToInt(b bool) int {
	if b {
		return glfw.True
	}
	return glfw.False
}
