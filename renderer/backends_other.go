//go:build !windows

package renderer

import (
	"errors"

	"github.com/sirupsen/logrus"

	"render-interop/config"
	"render-interop/core/window"
	"render-interop/opengl"
	"render-interop/vulkan"
)

// The GL consumer imports into the window's own context.
const hostAPI = window.ClientOpenGL

func openNative(cfg *config.Config, host *window.Window, log logrus.FieldLogger) (Backends, error) {
	if host == nil || host.API != window.ClientOpenGL {
		return Backends{}, errors.New("the OpenGL consumer needs a window with a GL context")
	}
	vk, err := vulkan.NewDriver(vulkan.DriverConfig{EnableValidation: cfg.Vulkan.Validation}, log)
	if err != nil {
		return Backends{}, err
	}
	return Backends{Producer: vk, Consumer: opengl.NewDriver(host.GetProcAddress, log), Native: true}, nil
}
