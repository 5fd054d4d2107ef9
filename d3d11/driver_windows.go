//go:build windows

package d3d11

import (
	"fmt"
	"slices"
	"unsafe"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/windows"

	"render-interop/interop"
)

var (
	_ interop.ConsumerDriver = (*Driver)(nil)
	_ interop.ConsumerDevice = (*Device)(nil)
	_ interop.Exporter       = (*Device)(nil)
	_ interop.Importer       = (*Device)(nil)
)

// Adapter is one DXGI adapter.
type Adapter struct {
	Index    int
	Name     string
	LUID     interop.LUID
	Software bool
	handle   uintptr // IDXGIAdapter1
}

// DriverConfig picks the adapter. A negative AdapterIndex selects the
// first hardware adapter.
type DriverConfig struct {
	AdapterIndex int
}

// Driver owns the DXGI factory and its adapters.
type Driver struct {
	cfg      DriverConfig
	factory  uintptr // IDXGIFactory2
	adapters []Adapter
	log      logrus.FieldLogger
}

func NewDriver(cfg DriverConfig, log logrus.FieldLogger) (*Driver, error) {
	if err := procCreateDXGIFactory1.Find(); err != nil {
		return nil, interop.NewError(interop.KindNoSuitableDevice, "load dxgi.dll", 0, err)
	}
	var factory1 uintptr
	hr, _, _ := procCreateDXGIFactory1.Call(uintptr(unsafe.Pointer(&iidIDXGIFactory1)), uintptr(unsafe.Pointer(&factory1)))
	if failed(hr) {
		return nil, hrError(interop.KindNoSuitableDevice, "CreateDXGIFactory1", hr)
	}
	factory, hr := queryInterface(factory1, &iidIDXGIFactory2)
	comRelease(factory1)
	if failed(hr) {
		return nil, hrError(interop.KindNoSuitableDevice, "query IDXGIFactory2", hr)
	}

	d := &Driver{cfg: cfg, factory: factory, log: log.WithField("component", "d3d11")}
	for i := 0; ; i++ {
		var adapter uintptr
		hr := comCall(factory, dxgiFactory1EnumAdapters1, uintptr(i), uintptr(unsafe.Pointer(&adapter)))
		if uint32(hr) == dxgiErrNotFound {
			break
		}
		if failed(hr) {
			d.Destroy()
			return nil, hrError(interop.KindNoSuitableDevice, "EnumAdapters1", hr)
		}
		var desc adapterDesc1
		comCall(adapter, dxgiAdapter1GetDesc1, uintptr(unsafe.Pointer(&desc)))
		a := Adapter{
			Index:    i,
			Name:     windows.UTF16ToString(desc.Description[:]),
			LUID:     desc.luid(),
			Software: desc.Flags&dxgiAdapterFlagSoftware != 0,
			handle:   adapter,
		}
		d.adapters = append(d.adapters, a)
		d.log.WithFields(logrus.Fields{
			"index":    a.Index,
			"name":     a.Name,
			"luid":     a.LUID,
			"software": a.Software,
		}).Debug("found DXGI adapter")
	}
	if len(d.adapters) == 0 {
		d.Destroy()
		return nil, interop.NewError(interop.KindNoSuitableDevice, "enumerate adapters", 0, fmt.Errorf("no DXGI adapters"))
	}
	return d, nil
}

func (d *Driver) API() interop.API { return interop.APIDirect3D11 }

func (d *Driver) HandleTypes() []interop.HandleType {
	return slices.Clone(sharedHandleTypes)
}

// Adapters returns the enumerated adapters.
func (d *Driver) Adapters() []Adapter { return d.adapters }

func (d *Driver) pickAdapter() (Adapter, error) {
	if d.cfg.AdapterIndex >= 0 {
		if d.cfg.AdapterIndex >= len(d.adapters) {
			return Adapter{}, fmt.Errorf("adapter %d out of range (%d adapters)", d.cfg.AdapterIndex, len(d.adapters))
		}
		return d.adapters[d.cfg.AdapterIndex], nil
	}
	for _, a := range d.adapters {
		if !a.Software {
			return a, nil
		}
	}
	return d.adapters[0], nil
}

func (d *Driver) Open(opts interop.ConsumerOptions) (interop.ConsumerDevice, error) {
	if _, ok := opts.Format.Info(); !ok {
		return nil, fmt.Errorf("format %s has no DXGI equivalent", opts.Format)
	}
	adapter, err := d.pickAdapter()
	if err != nil {
		return nil, interop.NewError(interop.KindNoSuitableDevice, "pick adapter", 0, err)
	}

	var flags uint32 = createDeviceBGRASupport
	if opts.Debug {
		flags |= createDeviceDebug
	}
	levels := []uint32{featureLevel11_1, featureLevel11_0}
	var device, context uintptr
	var level uint32
	hr, _, _ := procD3D11CreateDevice.Call(
		adapter.handle,
		uintptr(driverTypeUnknown),
		0,
		uintptr(flags),
		uintptr(unsafe.Pointer(&levels[0])),
		uintptr(len(levels)),
		uintptr(sdkVersion),
		uintptr(unsafe.Pointer(&device)),
		uintptr(unsafe.Pointer(&level)),
		uintptr(unsafe.Pointer(&context)),
	)
	if failed(hr) {
		return nil, hrError(interop.KindNoSuitableDevice, "D3D11CreateDevice", hr)
	}
	device1, hr := queryInterface(device, &iidID3D11Device1)
	if failed(hr) {
		comRelease(context)
		comRelease(device)
		return nil, hrError(interop.KindNoSuitableDevice, "query ID3D11Device1", hr)
	}

	d.log.WithFields(logrus.Fields{
		"adapter":       adapter.Name,
		"luid":          adapter.LUID,
		"feature_level": fmt.Sprintf("0x%x", level),
	}).Info("D3D11 device created")
	return &Device{
		driver:  d,
		adapter: adapter,
		device:  device,
		device1: device1,
		context: context,
		log:     d.log,
	}, nil
}

func (d *Driver) Destroy() {
	for i := range d.adapters {
		comRelease(d.adapters[i].handle)
		d.adapters[i].handle = 0
	}
	d.adapters = nil
	comRelease(d.factory)
	d.factory = 0
}

// Device is a D3D11 device and its immediate context. The immediate
// context is not thread-safe; every method runs on the caller's goroutine.
type Device struct {
	driver  *Driver
	adapter Adapter
	device  uintptr // ID3D11Device
	device1 uintptr // ID3D11Device1
	context uintptr // ID3D11DeviceContext
	log     logrus.FieldLogger
}

func (d *Device) API() interop.API { return interop.APIDirect3D11 }

func (d *Device) AdapterLUID() (interop.LUID, bool) { return d.adapter.LUID, true }

// WaitIdle flushes and blocks on an event query.
func (d *Device) WaitIdle() error {
	f, err := d.newFence()
	if err != nil {
		return err
	}
	defer f.Destroy()
	f.issue()
	return f.Wait(0)
}

func (d *Device) Destroy() {
	if d.context == 0 {
		return
	}
	comRelease(d.context)
	comRelease(d.device1)
	comRelease(d.device)
	d.context, d.device1, d.device = 0, 0, 0
}

func (d *Device) CloseHandle(t interop.HandleType, value uintptr) error {
	if !t.NeedsClose() {
		return nil
	}
	if err := windows.CloseHandle(windows.Handle(value)); err != nil {
		return interop.NewError(interop.KindHandleInvalid, "close "+t.String()+" handle", 0, err)
	}
	return nil
}
