package renderer

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"render-interop/config"
	"render-interop/core/window"
	"render-interop/internal/softgpu"
	"render-interop/interop"
	"render-interop/vulkan"
)

// Backends is the driver pair handed to an interop.Engine, which takes
// ownership of both.
type Backends struct {
	Producer interop.ProducerDriver
	Consumer interop.ConsumerDriver
	// Native is false for the software pair.
	Native bool
}

// OpenBackends opens the driver pair named by cfg.Backend. host may be nil
// for the software pair. "auto" falls back to software when the native pair
// cannot be opened.
func OpenBackends(cfg *config.Config, host *window.Window, log logrus.FieldLogger) (Backends, error) {
	switch cfg.Backend {
	case config.BackendSoft:
		return OpenSoft(), nil
	case config.BackendNative:
		return openNative(cfg, host, log)
	case config.BackendAuto:
		b, err := openNative(cfg, host, log)
		if err != nil {
			log.WithError(err).Warn("native backends unavailable, using the software backend")
			return OpenSoft(), nil
		}
		return b, nil
	}
	return Backends{}, fmt.Errorf("unknown backend %q", cfg.Backend)
}

// OpenSoft returns the in-process software pair on one simulated adapter.
func OpenSoft() Backends {
	sys := softgpu.NewSystem(softgpu.DefaultAdapter())
	return Backends{Producer: sys.Producer(), Consumer: sys.Consumer(0)}
}

// OpenProducer opens only the producing side, for capability probing.
func OpenProducer(cfg *config.Config, log logrus.FieldLogger) (interop.ProducerDriver, error) {
	if cfg.Backend == config.BackendSoft {
		return softProducer(), nil
	}
	vk, err := vulkan.NewDriver(vulkan.DriverConfig{EnableValidation: cfg.Vulkan.Validation}, log)
	if err != nil {
		if cfg.Backend == config.BackendAuto {
			log.WithError(err).Warn("Vulkan unavailable, probing the software backend")
			return softProducer(), nil
		}
		return nil, err
	}
	return vk, nil
}

func softProducer() interop.ProducerDriver {
	b := OpenSoft()
	b.Consumer.Destroy()
	return b.Producer
}

// HostAPI is the window client API the native consumer needs.
func HostAPI() window.ClientAPI { return hostAPI }
