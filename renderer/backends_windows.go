//go:build windows

package renderer

import (
	"github.com/sirupsen/logrus"

	"render-interop/config"
	"render-interop/core/window"
	"render-interop/d3d11"
	"render-interop/vulkan"
)

// D3D11 presents through its own swap chain on the HWND.
const hostAPI = window.ClientNone

func openNative(cfg *config.Config, host *window.Window, log logrus.FieldLogger) (Backends, error) {
	vk, err := vulkan.NewDriver(vulkan.DriverConfig{EnableValidation: cfg.Vulkan.Validation}, log)
	if err != nil {
		return Backends{}, err
	}
	dx, err := d3d11.NewDriver(d3d11.DriverConfig{AdapterIndex: -1}, log)
	if err != nil {
		vk.Destroy()
		return Backends{}, err
	}
	return Backends{Producer: vk, Consumer: dx, Native: true}, nil
}
