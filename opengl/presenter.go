//go:build !windows

package opengl

import (
	"fmt"
	"image"
	"strings"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	"render-interop/interop"
)

// composeVertSrc emits a full-screen triangle without vertex buffers.
const composeVertSrc = `
#version 410 core
out vec2 uv;

void main() {
    vec2 pos = vec2((gl_VertexID << 1) & 2, gl_VertexID & 2);
    uv = pos;
    gl_Position = vec4(pos * 2.0 - 1.0, 0.0, 1.0);
}
` + "\x00"

// composeFragSrc samples the shared image with its first row on top.
const composeFragSrc = `
#version 410 core
in vec2 uv;
uniform sampler2D src;
out vec4 outColor;

void main() {
    outColor = texture(src, vec2(uv.x, 1.0 - uv.y));
}
` + "\x00"

// presenter is an RGBA8 frame texture behind a framebuffer. Compose draws
// the shared image into it; Present blits it to the default framebuffer and
// swaps when a window is attached.
type presenter struct {
	extent  interop.Extent
	texture uint32
	fbo     uint32
	swap    func()
}

func (d *Device) CreatePresenter(spec interop.SurfaceSpec, size interop.Extent, format interop.Format) (interop.Presenter, error) {
	if spec.Window != 0 && spec.Swap == nil {
		return nil, fmt.Errorf("opengl presents through the host's GL window and needs a swap function")
	}
	p := &presenter{swap: spec.Swap}
	gl.GenFramebuffers(1, &p.fbo)
	if err := p.Resize(size); err != nil {
		p.Destroy()
		return nil, err
	}
	return p, nil
}

func (p *presenter) Extent() interop.Extent { return p.extent }

// Native is the frame buffer object name.
func (p *presenter) Native() uintptr { return uintptr(p.fbo) }

func (p *presenter) Resize(size interop.Extent) error {
	if !size.Valid() {
		return fmt.Errorf("invalid presenter extent %s", size)
	}
	if p.texture != 0 {
		gl.DeleteTextures(1, &p.texture)
	}
	gl.GenTextures(1, &p.texture)
	gl.BindTexture(gl.TEXTURE_2D, p.texture)
	gl.TexStorage2D(gl.TEXTURE_2D, 1, gl.RGBA8, int32(size.Width), int32(size.Height))
	gl.BindTexture(gl.TEXTURE_2D, 0)

	gl.BindFramebuffer(gl.FRAMEBUFFER, p.fbo)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, p.texture, 0)
	status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	if status != gl.FRAMEBUFFER_COMPLETE {
		return interop.NewError(interop.KindResourceCreation, "create frame buffer", int64(status),
			fmt.Errorf("framebuffer incomplete: 0x%04X", status))
	}
	p.extent = size
	return glError("resize presenter")
}

func (p *presenter) Present() error {
	if p.swap == nil {
		return nil
	}
	w, h := int32(p.extent.Width), int32(p.extent.Height)
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, p.fbo)
	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, 0)
	gl.BlitFramebuffer(0, 0, w, h, 0, 0, w, h, gl.COLOR_BUFFER_BIT, gl.NEAREST)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	if err := glError("blit to window"); err != nil {
		return err
	}
	p.swap()
	return nil
}

func (p *presenter) ReadBack() (*image.RGBA, error) {
	pix := make([]byte, int(p.extent.Width)*int(p.extent.Height)*4)
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, p.fbo)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, int32(p.extent.Width), int32(p.extent.Height), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pix))
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, 0)
	if err := glError("read pixels"); err != nil {
		return nil, err
	}
	return flipRows(pix, p.extent)
}

func (p *presenter) Destroy() {
	if p.texture != 0 {
		gl.DeleteTextures(1, &p.texture)
		p.texture = 0
	}
	if p.fbo != 0 {
		gl.DeleteFramebuffers(1, &p.fbo)
		p.fbo = 0
	}
}

// Compose draws the shared texture into the presenter's frame and fences
// the draw. Extents must match, as for a copy.
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

	gl.BindFramebuffer(gl.FRAMEBUFFER, p.fbo)
	gl.Viewport(0, 0, int32(p.extent.Width), int32(p.extent.Height))
	gl.Disable(gl.DEPTH_TEST)
	gl.UseProgram(d.program)
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, tex.texture)
	gl.Uniform1i(d.srcLoc, 0)
	gl.BindVertexArray(d.vao)
	gl.DrawArrays(gl.TRIANGLES, 0, 3)
	gl.BindVertexArray(0)
	gl.BindTexture(gl.TEXTURE_2D, 0)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	if err := glError("compose"); err != nil {
		return interop.NewError(interop.KindSubmission, "compose", 0, err)
	}
	fc.issue()
	return nil
}

func newProgram(vertSrc, fragSrc string) (uint32, error) {
	vert, err := compileShader(vertSrc, gl.VERTEX_SHADER)
	if err != nil {
		return 0, fmt.Errorf("vertex: %w", err)
	}
	frag, err := compileShader(fragSrc, gl.FRAGMENT_SHADER)
	if err != nil {
		gl.DeleteShader(vert)
		return 0, fmt.Errorf("fragment: %w", err)
	}

	prog := gl.CreateProgram()
	gl.AttachShader(prog, vert)
	gl.AttachShader(prog, frag)
	gl.LinkProgram(prog)
	gl.DeleteShader(vert)
	gl.DeleteShader(frag)

	var status int32
	gl.GetProgramiv(prog, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetProgramiv(prog, gl.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen+1))
		gl.GetProgramInfoLog(prog, logLen, nil, gl.Str(log))
		gl.DeleteProgram(prog)
		return 0, fmt.Errorf("link failed: %v", log)
	}
	return prog, nil
}

func compileShader(src string, shaderType uint32) (uint32, error) {
	shader := gl.CreateShader(shaderType)
	csrc, free := gl.Strs(src)
	gl.ShaderSource(shader, 1, csrc, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLen int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLen)
		log := strings.Repeat("\x00", int(logLen+1))
		gl.GetShaderInfoLog(shader, logLen, nil, gl.Str(log))
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("compile failed: %v", log)
	}
	return shader, nil
}
