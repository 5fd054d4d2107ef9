package interop

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tableProber answers capability queries from a per-device table.
type tableProber struct {
	devices []PhysicalDevice
	support map[int]ExternalImageSupport
	fail    map[int]bool
	queries int
}

func (p *tableProber) PhysicalDevices() ([]PhysicalDevice, error) { return p.devices, nil }

func (p *tableProber) ExternalImageSupport(dev PhysicalDevice, q ExternalImageQuery) (ExternalImageSupport, error) {
	p.queries++
	if p.fail[dev.Index] {
		return ExternalImageSupport{}, errors.New("VK_ERROR_FORMAT_NOT_SUPPORTED")
	}
	return p.support[dev.Index], nil
}

func win32Device(index int, name string, luid LUID) PhysicalDevice {
	return PhysicalDevice{
		Index:         index,
		Name:          name,
		QueueFamilies: []QueueFamily{{Index: 0, Count: 1, Graphics: true}},
		Extensions:    HandleD3D11Texture.RequiredExtensions(),
		LUID:          luid,
		LUIDValid:     true,
		SampleCounts:  SampleMask(Samples1 | Samples4),
	}
}

var importable = ExternalImageSupport{
	Features:              FeatureImportable | FeatureDedicatedOnly,
	CompatibleHandleTypes: HandleD3D11Texture.VkBit(),
}

func d3dRequirements(target *LUID) Requirements {
	return Requirements{
		HandleType: HandleD3D11Texture,
		Role:       RoleImport,
		Format:     FormatBGRA8Unorm,
		Usage:      SharedUsage,
		TargetLUID: target,
	}
}

func TestSelectDeviceMatchesLUID(t *testing.T) {
	target := LUID{9, 9, 9, 9, 0, 0, 0, 0}
	p := &tableProber{
		devices: []PhysicalDevice{
			win32Device(0, "integrated", LUID{1}),
			win32Device(1, "discrete", target),
		},
		support: map[int]ExternalImageSupport{0: importable, 1: importable},
	}
	sel, err := SelectDevice(p, d3dRequirements(&target))
	require.NoError(t, err)
	assert.Equal(t, "discrete", sel.Device.Name)
	assert.True(t, sel.IdentityChecked)
	assert.True(t, sel.DedicatedOnly())
	assert.Equal(t, uint32(0), sel.QueueFamily)
}

func TestSelectDeviceRejections(t *testing.T) {
	target := LUID{1}
	noGraphics := win32Device(0, "compute-only", target)
	noGraphics.QueueFamilies[0].Graphics = false
	noExt := win32Device(1, "old-driver", target)
	noExt.Extensions = []string{"VK_KHR_external_memory"}
	exportOnly := win32Device(2, "export-only", target)
	wrongLUID := win32Device(3, "other-adapter", LUID{2})
	queryFails := win32Device(4, "broken", target)

	p := &tableProber{
		devices: []PhysicalDevice{noGraphics, noExt, exportOnly, wrongLUID, queryFails},
		support: map[int]ExternalImageSupport{
			2: {Features: FeatureExportable, CompatibleHandleTypes: HandleD3D11Texture.VkBit()},
			3: importable,
		},
		fail: map[int]bool{4: true},
	}
	_, err := SelectDevice(p, d3dRequirements(&target))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoSuitableDevice)

	var nsd *NoSuitableDeviceError
	require.ErrorAs(t, err, &nsd)
	require.Len(t, nsd.Rejections, 5)
	assert.Contains(t, nsd.Rejections[0].Reason, "graphics")
	assert.Contains(t, nsd.Rejections[1].Reason, "VK_KHR_external_memory_win32")
	assert.Contains(t, nsd.Rejections[2].Reason, "not importable")
	assert.Contains(t, nsd.Rejections[3].Reason, "LUID")
	assert.Contains(t, nsd.Rejections[4].Reason, "query failed")
}

func TestSelectDeviceFDSkipsLUID(t *testing.T) {
	dev := PhysicalDevice{
		Index:         0,
		Name:          "linux",
		QueueFamilies: []QueueFamily{{Index: 2, Count: 1, Graphics: true}},
		Extensions:    HandleOpaqueFD.RequiredExtensions(),
	}
	p := &tableProber{
		devices: []PhysicalDevice{dev},
		support: map[int]ExternalImageSupport{0: {Features: FeatureExportable, CompatibleHandleTypes: HandleOpaqueFD.VkBit()}},
	}
	other := LUID{7}
	sel, err := SelectDevice(p, Requirements{HandleType: HandleOpaqueFD, Role: RoleExport, Format: FormatRGBA8Unorm, TargetLUID: &other})
	require.NoError(t, err)
	assert.False(t, sel.IdentityChecked)
	assert.Equal(t, uint32(2), sel.QueueFamily)
}

func TestSelectDeviceRejectsUnmappedFormat(t *testing.T) {
	p := &tableProber{devices: []PhysicalDevice{win32Device(0, "gpu", LUID{})}}
	_, err := SelectDevice(p, Requirements{HandleType: HandleD3D11Texture, Format: FormatD32Float})
	assert.ErrorIs(t, err, ErrPrecondition)
	assert.Zero(t, p.queries)
}

func TestSelectDeviceNoDevices(t *testing.T) {
	_, err := SelectDevice(&tableProber{}, d3dRequirements(nil))
	require.ErrorIs(t, err, ErrNoSuitableDevice)
	assert.Contains(t, err.Error(), "no physical devices")
}
