//go:build !windows

package opengl

import (
	"fmt"

	gl "github.com/go-gl/gl/v4.1-core/gl"
	"github.com/sirupsen/logrus"

	"render-interop/interop"
)

// externalTexture is the producer's allocation seen through a GL memory
// object and a texture with storage in it.
type externalTexture struct {
	dev        *Device
	desc       interop.ImageDesc
	handleType uint32
	memory     uint32
	texture    uint32
}

func (d *Device) CreateExternalImage(desc interop.ImageDesc, t interop.HandleType) (interop.ExternalImage, error) {
	ht, err := glHandleType(t)
	if err != nil {
		return nil, interop.NewError(interop.KindHandleInvalid, "create external texture", 0, err)
	}
	if _, _, err := textureFormat(desc.Format); err != nil {
		return nil, interop.NewError(interop.KindResourceCreation, "create external texture", 0, err)
	}
	return &externalTexture{dev: d, desc: desc, handleType: ht}, nil
}

func (e *externalTexture) Desc() interop.ImageDesc { return e.desc }

// MemoryRequirements reports size 0; the GL sizes the import from the
// exporter's allocation.
func (e *externalTexture) MemoryRequirements() (interop.MemoryRequirements, error) {
	return interop.MemoryRequirements{}, nil
}

func (e *externalTexture) DedicatedRequirement() (interop.DedicatedRequirement, error) {
	return interop.DedicatedRequirement{}, nil
}

// ImportMemory imports the fd into a memory object. On success the GL owns
// the fd.
func (e *externalTexture) ImportMemory(req interop.ImportRequest) error {
	if req.HandleType != interop.HandleOpaqueFD {
		return interop.NewError(interop.KindHandleInvalid, "import memory", 0,
			fmt.Errorf("handle is %s, image was created for opaque-fd", req.HandleType))
	}
	if req.ExporterSize == 0 {
		return interop.NewError(interop.KindImportMismatch, "import memory", 0,
			fmt.Errorf("exporter did not report an allocation size"))
	}
	if e.memory != 0 {
		return interop.NewError(interop.KindPrecondition, "import memory", 0, fmt.Errorf("memory already imported"))
	}

	e.memory = createMemoryObject()
	setMemoryObjectDedicated(e.memory, req.Dedicated)
	importMemoryFd(e.memory, req.ExporterSize, e.handleType, int(req.Handle))
	if err := glError("glImportMemoryFdEXT"); err != nil {
		deleteMemoryObject(e.memory)
		e.memory = 0
		return err
	}
	e.dev.log.WithFields(logrus.Fields{
		"size":      req.ExporterSize,
		"dedicated": req.Dedicated,
	}).Debug("imported memory object")
	return nil
}

// BindMemory creates the texture over the imported memory with optimal
// tiling, matching the producer's image.
func (e *externalTexture) BindMemory() error {
	if e.memory == 0 {
		return interop.NewError(interop.KindPrecondition, "bind memory", 0, fmt.Errorf("no memory imported"))
	}
	internal, swizzle, err := textureFormat(e.desc.Format)
	if err != nil {
		return err
	}
	gl.GenTextures(1, &e.texture)
	gl.BindTexture(gl.TEXTURE_2D, e.texture)
	gl.TexParameteri(gl.TEXTURE_2D, textureTilingEXT, optimalTilingEXT)
	texStorageMem2D(gl.TEXTURE_2D, 1, internal, int32(e.desc.Extent.Width), int32(e.desc.Extent.Height), e.memory, 0)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
	gl.TexParameteriv(gl.TEXTURE_2D, gl.TEXTURE_SWIZZLE_RGBA, &swizzle[0])
	gl.BindTexture(gl.TEXTURE_2D, 0)
	if err := glError("glTexStorageMem2DEXT"); err != nil {
		return interop.NewError(interop.KindImportMismatch, "bind memory", 0, err)
	}
	return nil
}

func (e *externalTexture) Destroy() {
	if e.texture != 0 {
		gl.DeleteTextures(1, &e.texture)
		e.texture = 0
	}
	if e.memory != 0 {
		deleteMemoryObject(e.memory)
		e.memory = 0
	}
}

func asTexture(s interop.SharedSurface) (*externalTexture, error) {
	t, ok := s.(*externalTexture)
	if !ok {
		return nil, fmt.Errorf("surface of type %T was not created by this device", s)
	}
	if t.texture == 0 {
		return nil, interop.NewError(interop.KindPrecondition, "use external texture", 0, fmt.Errorf("memory not bound"))
	}
	return t, nil
}
