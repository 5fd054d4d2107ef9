//go:build windows

package d3d11

import (
	"fmt"
	"image"
	"unsafe"

	"github.com/sirupsen/logrus"

	"render-interop/interop"
)

// presenter composes into its own frame texture. With a window attached,
// Present copies the frame into the swap chain back buffer and flips; the
// frame texture stays readable for ReadBack either way.
type presenter struct {
	dev       *Device
	format    interop.Format
	extent    interop.Extent
	frame     uintptr // ID3D11Texture2D
	swapChain uintptr // IDXGISwapChain1, 0 offscreen
	vsync     bool
}

func (d *Device) CreatePresenter(spec interop.SurfaceSpec, size interop.Extent, format interop.Format) (interop.Presenter, error) {
	if spec.Swap != nil {
		return nil, fmt.Errorf("d3d11 presents through a DXGI swap chain, not a GL window")
	}
	p := &presenter{dev: d, format: format, vsync: spec.VSync}
	if err := p.allocate(size); err != nil {
		return nil, err
	}
	if spec.Window != 0 {
		if err := p.createSwapChain(spec.Window, size); err != nil {
			p.Destroy()
			return nil, err
		}
	}
	d.log.WithFields(logrus.Fields{
		"extent":    size,
		"offscreen": spec.Offscreen(),
	}).Debug("presenter created")
	return p, nil
}

func (p *presenter) allocate(size interop.Extent) error {
	td, err := sharedTextureDesc(interop.ImageDesc{Extent: size, Format: p.format}, 0)
	if err != nil {
		return interop.NewError(interop.KindResourceCreation, "create frame texture", 0, err)
	}
	tex, err := p.dev.createTexture(&td, "create frame texture")
	if err != nil {
		return err
	}
	comRelease(p.frame)
	p.frame = tex
	p.extent = size
	return nil
}

func (p *presenter) createSwapChain(hwnd uintptr, size interop.Extent) error {
	info, _ := p.format.Info()
	desc := swapChainDesc1{
		Width:       size.Width,
		Height:      size.Height,
		Format:      info.DXGIFormat,
		SampleCount: 1,
		BufferUsage: dxgiUsageRenderTargetOutput,
		BufferCount: presenterBufferCount,
		Scaling:     dxgiScalingStretch,
		SwapEffect:  dxgiSwapEffectFlipDiscard,
		AlphaMode:   dxgiAlphaModeIgnore,
	}
	var sc uintptr
	hr := comCall(p.dev.driver.factory, dxgiFactory2CreateSwapChainForHwnd,
		p.dev.device, hwnd, uintptr(unsafe.Pointer(&desc)), 0, 0, uintptr(unsafe.Pointer(&sc)))
	if failed(hr) {
		return hrError(interop.KindResourceCreation, "CreateSwapChainForHwnd", hr)
	}
	p.swapChain = sc
	return nil
}

func (p *presenter) Extent() interop.Extent { return p.extent }

// Native is the IDXGISwapChain1, or the frame texture offscreen.
func (p *presenter) Native() uintptr {
	if p.swapChain != 0 {
		return p.swapChain
	}
	return p.frame
}

func (p *presenter) Resize(size interop.Extent) error {
	if !size.Valid() {
		return fmt.Errorf("invalid presenter extent %s", size)
	}
	if err := p.allocate(size); err != nil {
		return err
	}
	if p.swapChain != 0 {
		info, _ := p.format.Info()
		hr := comCall(p.swapChain, dxgiSwapChainResizeBuffers,
			uintptr(presenterBufferCount), uintptr(size.Width), uintptr(size.Height), uintptr(info.DXGIFormat), 0)
		if failed(hr) {
			return hrError(interop.KindResourceCreation, "ResizeBuffers", hr)
		}
	}
	return nil
}

func (p *presenter) Present() error {
	if p.swapChain == 0 {
		return nil
	}
	var back uintptr
	hr := comCall(p.swapChain, dxgiSwapChainGetBuffer, 0, uintptr(unsafe.Pointer(&iidID3D11Texture2D)), uintptr(unsafe.Pointer(&back)))
	if failed(hr) {
		return hrError(interop.KindSubmission, "GetBuffer", hr)
	}
	comCall(p.dev.context, d3d11CtxCopyResource, back, p.frame)
	comRelease(back)

	interval := uintptr(0)
	if p.vsync {
		interval = 1
	}
	hr = comCall(p.swapChain, dxgiSwapChainPresent, interval, 0)
	if failed(hr) {
		return hrError(interop.KindSubmission, "Present", hr)
	}
	return nil
}

func (p *presenter) ReadBack() (*image.RGBA, error) {
	return p.dev.readTexture(p.frame, p.extent, p.format)
}

func (p *presenter) Destroy() {
	comRelease(p.swapChain)
	comRelease(p.frame)
	p.swapChain, p.frame = 0, 0
}

// Compose copies the shared texture into the frame texture and ends the
// fence query behind the copy. CopyResource needs identical extents.
func (d *Device) Compose(src interop.SharedSurface, pr interop.Presenter, f interop.Fence) error {
	tex, err := asTexture(src)
	if err != nil {
		return err
	}
	p, ok := pr.(*presenter)
	if !ok {
		return fmt.Errorf("presenter of type %T was not created by this device", pr)
	}
	if tex.desc.Extent != p.extent {
		return interop.NewError(interop.KindPrecondition, "compose", 0,
			fmt.Errorf("copy source %s differs from surface %s", tex.desc.Extent, p.extent))
	}
	fc, err := asFence(f)
	if err != nil {
		return err
	}
	comCall(d.context, d3d11CtxCopyResource, p.frame, tex.tex)
	fc.issue()
	return nil
}
