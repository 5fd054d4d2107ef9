//go:build !windows

package opengl

import (
	"fmt"

	gl "github.com/go-gl/gl/v4.1-core/gl"
	"github.com/sirupsen/logrus"

	"render-interop/interop"
)

var (
	_ interop.ConsumerDriver = (*Driver)(nil)
	_ interop.ConsumerDevice = (*Device)(nil)
	_ interop.Importer       = (*Device)(nil)
)

// Driver opens the GL consumer on the context current on the calling thread.
type Driver struct {
	load ProcLoader
	log  logrus.FieldLogger
}

// NewDriver must be called with the host's GL context current.
func NewDriver(load ProcLoader, log logrus.FieldLogger) *Driver {
	return &Driver{load: load, log: log.WithField("component", "opengl")}
}

func (d *Driver) API() interop.API { return interop.APIOpenGL }

func (d *Driver) HandleTypes() []interop.HandleType {
	return []interop.HandleType{interop.HandleOpaqueFD}
}

func (d *Driver) Open(opts interop.ConsumerOptions) (interop.ConsumerDevice, error) {
	if err := gl.Init(); err != nil {
		return nil, interop.NewError(interop.KindNoSuitableDevice, "initialize OpenGL", 0, err)
	}
	if _, _, err := textureFormat(opts.Format); err != nil {
		return nil, interop.NewError(interop.KindNoSuitableDevice, "open opengl device", 0, err)
	}

	exts := extensions()
	if missing := missingExtensions(exts, RequiredExtensions...); len(missing) > 0 {
		return nil, interop.NewError(interop.KindNoSuitableDevice, "check GL extensions", 0,
			fmt.Errorf("context lacks %v", missing))
	}
	if err := loadMemoryObjectProcs(d.load); err != nil {
		return nil, interop.NewError(interop.KindNoSuitableDevice, "load GL entry points", 0, err)
	}

	prog, err := newProgram(composeVertSrc, composeFragSrc)
	if err != nil {
		return nil, interop.NewError(interop.KindResourceCreation, "compile compose program", 0, err)
	}
	dev := &Device{program: prog, log: d.log}
	dev.srcLoc = gl.GetUniformLocation(prog, gl.Str("src\x00"))
	gl.GenVertexArrays(1, &dev.vao)

	d.log.WithFields(logrus.Fields{
		"version":  gl.GoStr(gl.GetString(gl.VERSION)),
		"renderer": gl.GoStr(gl.GetString(gl.RENDERER)),
	}).Info("OpenGL consumer ready")
	return dev, nil
}

func (d *Driver) Destroy() {}

func extensions() []string {
	var n int32
	gl.GetIntegerv(gl.NUM_EXTENSIONS, &n)
	exts := make([]string, 0, n)
	for i := int32(0); i < n; i++ {
		exts = append(exts, gl.GoStr(gl.GetStringi(gl.EXTENSIONS, uint32(i))))
	}
	return exts
}

// Device is the GL consumer. It imports, never exports.
type Device struct {
	program uint32
	srcLoc  int32
	vao     uint32
	log     logrus.FieldLogger
}

func (d *Device) API() interop.API { return interop.APIOpenGL }

// AdapterLUID is unavailable: fd sharing is not adapter-checked.
func (d *Device) AdapterLUID() (interop.LUID, bool) { return interop.LUID{}, false }

func (d *Device) WaitIdle() error {
	gl.Finish()
	return glError("finish")
}

func (d *Device) Destroy() {
	if d.program != 0 {
		gl.DeleteVertexArrays(1, &d.vao)
		gl.DeleteProgram(d.program)
		d.program, d.vao = 0, 0
	}
}

// glError drains the GL error queue and reports the first entry.
func glError(op string) error {
	code := gl.GetError()
	if code == gl.NO_ERROR {
		return nil
	}
	for gl.GetError() != gl.NO_ERROR {
	}
	kind := interop.KindResourceCreation
	if code == gl.INVALID_VALUE || code == gl.INVALID_OPERATION {
		kind = interop.KindHandleInvalid
	}
	return interop.NewError(kind, op, int64(code), fmt.Errorf("GL error 0x%04X", code))
}
