//go:build windows

package d3d11

import (
	"fmt"
	"image"
	"unsafe"

	"github.com/sirupsen/logrus"

	"render-interop/interop"
)

func (d *Device) createTexture(desc *texture2DDesc, op string) (uintptr, error) {
	var tex uintptr
	hr := comCall(d.device, d3d11DeviceCreateTexture2D, uintptr(unsafe.Pointer(desc)), 0, uintptr(unsafe.Pointer(&tex)))
	if failed(hr) {
		return 0, hrError(interop.KindResourceCreation, op, hr)
	}
	return tex, nil
}

// texture is the consumer's view of the shared image: either a texture it
// created for export or one it opened from a producer handle.
type texture struct {
	dev        *Device
	desc       interop.ImageDesc
	handleType interop.HandleType
	tex        uintptr // ID3D11Texture2D
}

func (t *texture) Desc() interop.ImageDesc { return t.desc }

func (t *texture) Destroy() {
	comRelease(t.tex)
	t.tex = 0
}

// shareableTexture is created by this device and exported.
type shareableTexture struct {
	texture
}

// CreateShareableImage creates a render target texture with the shared
// misc flags for t.
func (d *Device) CreateShareableImage(desc interop.ImageDesc, t interop.HandleType) (interop.ShareableImage, error) {
	misc, err := sharedMiscFlags(t)
	if err != nil {
		return nil, interop.NewError(interop.KindHandleInvalid, "create shareable texture", 0, err)
	}
	td, err := sharedTextureDesc(desc, misc)
	if err != nil {
		return nil, interop.NewError(interop.KindResourceCreation, "create shareable texture", 0, err)
	}
	tex, err := d.createTexture(&td, "create shareable texture")
	if err != nil {
		return nil, err
	}
	d.log.WithFields(logrus.Fields{
		"extent":      desc.Extent,
		"format":      desc.Format,
		"handle_type": t,
	}).Debug("shareable texture created")
	return &shareableTexture{texture{dev: d, desc: desc, handleType: t, tex: tex}}, nil
}

// AllocationSize is unknown: D3D11 does not expose the backing allocation.
func (s *shareableTexture) AllocationSize() uint64 { return 0 }

// Dedicated is always true: a shared D3D11 texture owns its memory.
func (s *shareableTexture) Dedicated() bool { return true }

// ExportHandle creates an NT handle, or returns the global KMT handle.
// Every call to an NT export yields a new handle the caller must close.
func (s *shareableTexture) ExportHandle() (uintptr, error) {
	if s.handleType == interop.HandleD3D11TextureKMT {
		res, hr := queryInterface(s.tex, &iidIDXGIResource)
		if failed(hr) {
			return 0, hrError(interop.KindHandleInvalid, "query IDXGIResource", hr)
		}
		defer comRelease(res)
		var handle uintptr
		hr = comCall(res, dxgiResourceGetSharedHandle, uintptr(unsafe.Pointer(&handle)))
		if failed(hr) {
			return 0, hrError(interop.KindHandleInvalid, "GetSharedHandle", hr)
		}
		return handle, nil
	}

	res, hr := queryInterface(s.tex, &iidIDXGIResource1)
	if failed(hr) {
		return 0, hrError(interop.KindHandleInvalid, "query IDXGIResource1", hr)
	}
	defer comRelease(res)
	var handle uintptr
	hr = comCall(res, dxgiResource1CreateSharedHandle,
		0, uintptr(sharedResourceRead|sharedResourceWrite), 0, uintptr(unsafe.Pointer(&handle)))
	if failed(hr) {
		return 0, hrError(interop.KindHandleInvalid, "CreateSharedHandle", hr)
	}
	return handle, nil
}

// externalTexture is opened from a handle the producer exported. D3D11
// binds memory as part of opening, so it has no requirements of its own.
type externalTexture struct {
	texture
}

func (d *Device) CreateExternalImage(desc interop.ImageDesc, t interop.HandleType) (interop.ExternalImage, error) {
	if !importable(t) {
		return nil, interop.NewError(interop.KindHandleInvalid, "create external texture", 0,
			fmt.Errorf("d3d11 cannot import %s handles", t))
	}
	if _, err := sharedTextureDesc(desc, 0); err != nil {
		return nil, interop.NewError(interop.KindResourceCreation, "create external texture", 0, err)
	}
	return &externalTexture{texture{dev: d, desc: desc, handleType: t}}, nil
}

// MemoryRequirements reports size 0, which skips the exporter size check.
func (e *externalTexture) MemoryRequirements() (interop.MemoryRequirements, error) {
	return interop.MemoryRequirements{}, nil
}

func (e *externalTexture) DedicatedRequirement() (interop.DedicatedRequirement, error) {
	return interop.DedicatedRequirement{Requires: true}, nil
}

// ImportMemory opens the shared resource and checks it matches the
// expected description. The handle stays owned by the exporter.
func (e *externalTexture) ImportMemory(req interop.ImportRequest) error {
	if req.HandleType != e.handleType {
		return interop.NewError(interop.KindHandleInvalid, "import memory", 0,
			fmt.Errorf("handle is %s, image was created for %s", req.HandleType, e.handleType))
	}
	if e.tex != 0 {
		return interop.NewError(interop.KindPrecondition, "import memory", 0, fmt.Errorf("memory already imported"))
	}

	var tex uintptr
	var hr uintptr
	if ntHandle(req.HandleType) {
		hr = comCall(e.dev.device1, d3d11Device1OpenSharedResource1,
			req.Handle, uintptr(unsafe.Pointer(&iidID3D11Texture2D)), uintptr(unsafe.Pointer(&tex)))
	} else {
		hr = comCall(e.dev.device, d3d11DeviceOpenSharedResource,
			req.Handle, uintptr(unsafe.Pointer(&iidID3D11Texture2D)), uintptr(unsafe.Pointer(&tex)))
	}
	if failed(hr) {
		kind := interop.KindResourceCreation
		if uint32(hr) == eInvalidArg {
			kind = interop.KindHandleInvalid
		}
		return hrError(kind, "OpenSharedResource", hr)
	}

	if err := matchDesc(textureDesc(tex), e.desc); err != nil {
		comRelease(tex)
		return interop.NewError(interop.KindImportMismatch, "import memory", 0, err)
	}
	e.tex = tex
	return nil
}

func (e *externalTexture) BindMemory() error {
	if e.tex == 0 {
		return interop.NewError(interop.KindPrecondition, "bind memory", 0, fmt.Errorf("no memory imported"))
	}
	return nil
}

func asTexture(s interop.SharedSurface) (*texture, error) {
	switch t := s.(type) {
	case *shareableTexture:
		return &t.texture, nil
	case *externalTexture:
		if t.tex == 0 {
			return nil, interop.NewError(interop.KindPrecondition, "use external texture", 0, fmt.Errorf("memory not imported"))
		}
		return &t.texture, nil
	}
	return nil, fmt.Errorf("surface of type %T was not created by this device", s)
}

// readTexture copies tex through a staging texture and converts it to RGBA8.
func (d *Device) readTexture(tex uintptr, size interop.Extent, format interop.Format) (*image.RGBA, error) {
	sd := stagingDesc(textureDesc(tex))
	staging, err := d.createTexture(&sd, "create staging texture")
	if err != nil {
		return nil, err
	}
	defer comRelease(staging)

	comCall(d.context, d3d11CtxCopyResource, staging, tex)

	var mapped mappedSubresource
	hr := comCall(d.context, d3d11CtxMap, staging, 0, uintptr(mapRead), 0, uintptr(unsafe.Pointer(&mapped)))
	if failed(hr) {
		return nil, hrError(interop.KindSubmission, "map staging texture", hr)
	}
	defer comCall(d.context, d3d11CtxUnmap, staging, 0)

	pitch := int(mapped.RowPitch)
	n := pitch*(int(size.Height)-1) + int(size.Width)*format.BytesPerPixel()
	data := unsafe.Slice((*byte)(unsafe.Pointer(mapped.PData)), n)
	return readRows(data, pitch, size, format)
}
