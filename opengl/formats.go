// Package opengl is the OpenGL consumer backend for the fd path. The
// producer's allocation is imported with EXT_memory_object_fd, bound to a
// texture and drawn into a frame buffer that is blitted to the window.
//
// All GL calls must run on the goroutine that owns the current context.
package opengl

import (
	"fmt"
	"image"

	"render-interop/interop"
)

// EXT_memory_object enums not present in the core profile bindings.
const (
	textureTilingEXT         = 0x9580
	dedicatedMemoryObjectEXT = 0x9581
	optimalTilingEXT         = 0x9584
	handleTypeOpaqueFdEXT    = 0x9586

	extMemoryObject   = "GL_EXT_memory_object"
	extMemoryObjectFd = "GL_EXT_memory_object_fd"
)

// RequiredExtensions are needed to import an fd allocation.
var RequiredExtensions = []string{extMemoryObject, extMemoryObjectFd}

// missingExtensions returns the entries of need absent from have.
func missingExtensions(have []string, need ...string) []string {
	set := make(map[string]struct{}, len(have))
	for _, e := range have {
		set[e] = struct{}{}
	}
	var missing []string
	for _, n := range need {
		if _, ok := set[n]; !ok {
			missing = append(missing, n)
		}
	}
	return missing
}

// glHandleType maps a handle type to its EXT_memory_object enum.
func glHandleType(h interop.HandleType) (uint32, error) {
	if h == interop.HandleOpaqueFD {
		return handleTypeOpaqueFdEXT, nil
	}
	return 0, fmt.Errorf("opengl imports opaque-fd handles only, not %s", h)
}

// textureFormat is the sized internal format for the shared texture and the
// swizzle that restores BGRA channel order when sampling.
func textureFormat(f interop.Format) (internal uint32, swizzle [4]int32, err error) {
	info, ok := f.Info()
	if !ok || info.GLInternalFormat == 0 || !info.Shareable {
		return 0, swizzle, fmt.Errorf("format %s cannot be imported into OpenGL", f)
	}
	const red, green, blue, alpha = 0x1903, 0x1904, 0x1905, 0x1906
	swizzle = [4]int32{red, green, blue, alpha}
	if info.GLSwizzleRB {
		swizzle[0], swizzle[2] = blue, red
	}
	return info.GLInternalFormat, swizzle, nil
}

// flipRows turns a bottom-up glReadPixels result into a top-down image.
func flipRows(pix []byte, size interop.Extent) (*image.RGBA, error) {
	w, h := int(size.Width), int(size.Height)
	stride := w * 4
	if len(pix) < stride*h {
		return nil, fmt.Errorf("readback has %d bytes, want %d for %s", len(pix), stride*h, size)
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		copy(img.Pix[y*img.Stride:y*img.Stride+stride], pix[(h-1-y)*stride:(h-y)*stride])
	}
	return img, nil
}
