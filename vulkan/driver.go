package vulkan

/*
#include <vulkan/vulkan.h>
#include <string.h>

typedef struct {
    uint8_t luid[VK_LUID_SIZE];
    VkBool32 luidValid;
} DeviceIdentity;

void queryDeviceIdentity(VkPhysicalDevice device, DeviceIdentity* out) {
    VkPhysicalDeviceIDProperties id = {0};
    id.sType = VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_ID_PROPERTIES;

    VkPhysicalDeviceProperties2 props = {0};
    props.sType = VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_PROPERTIES_2;
    props.pNext = &id;
    vkGetPhysicalDeviceProperties2(device, &props);

    memcpy(out->luid, id.deviceLUID, VK_LUID_SIZE);
    out->luidValid = id.deviceLUIDValid;
}

typedef struct {
    VkExternalMemoryFeatureFlags features;
    VkExternalMemoryHandleTypeFlags compatible;
    VkExtent3D maxExtent;
} ExternalSupport;

VkResult queryExternalImage(VkPhysicalDevice device, VkFormat format, VkImageUsageFlags usage,
                            VkImageTiling tiling, VkExternalMemoryHandleTypeFlagBits handleType,
                            ExternalSupport* out) {
    VkPhysicalDeviceExternalImageFormatInfo external = {0};
    external.sType = VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_EXTERNAL_IMAGE_FORMAT_INFO;
    external.handleType = handleType;

    VkPhysicalDeviceImageFormatInfo2 info = {0};
    info.sType = VK_STRUCTURE_TYPE_PHYSICAL_DEVICE_IMAGE_FORMAT_INFO_2;
    info.pNext = &external;
    info.format = format;
    info.type = VK_IMAGE_TYPE_2D;
    info.tiling = tiling;
    info.usage = usage;

    VkExternalImageFormatProperties externalProps = {0};
    externalProps.sType = VK_STRUCTURE_TYPE_EXTERNAL_IMAGE_FORMAT_PROPERTIES;

    VkImageFormatProperties2 props = {0};
    props.sType = VK_STRUCTURE_TYPE_IMAGE_FORMAT_PROPERTIES_2;
    props.pNext = &externalProps;

    VkResult result = vkGetPhysicalDeviceImageFormatProperties2(device, &info, &props);
    if (result != VK_SUCCESS) {
        return result;
    }
    out->features = externalProps.externalMemoryProperties.externalMemoryFeatures;
    out->compatible = externalProps.externalMemoryProperties.compatibleHandleTypes;
    out->maxExtent = props.imageFormatProperties.maxExtent;
    return VK_SUCCESS;
}
*/
import "C"
import (
	"fmt"

	"github.com/sirupsen/logrus"

	"render-interop/interop"
)

var _ interop.ProducerDriver = (*Driver)(nil)

// DriverConfig configures the Vulkan instance.
type DriverConfig struct {
	EnableValidation bool
	// InstanceExtensions are added to the instance, e.g. for a debug surface.
	InstanceExtensions []string
}

// Driver is the instance level: device enumeration, capability queries and
// logical device creation.
type Driver struct {
	instance *Instance
	physical []C.VkPhysicalDevice
	log      logrus.FieldLogger
}

func NewDriver(cfg DriverConfig, log logrus.FieldLogger) (*Driver, error) {
	ic := DefaultInstanceConfig()
	ic.EnableValidation = cfg.EnableValidation
	ic.RequiredExtensions = cfg.InstanceExtensions

	log = log.WithField("component", "vulkan")
	instance, err := NewInstance(ic, log)
	if err != nil {
		return nil, err
	}

	var deviceCount C.uint32_t
	result := C.vkEnumeratePhysicalDevices(instance.Handle, &deviceCount, nil)
	if result != C.VK_SUCCESS || deviceCount == 0 {
		instance.Destroy()
		return nil, interop.NewError(interop.KindNoSuitableDevice, "enumerate physical devices", int64(result),
			fmt.Errorf("failed to find GPUs with Vulkan support"))
	}

	devices := make([]C.VkPhysicalDevice, deviceCount)
	C.vkEnumeratePhysicalDevices(instance.Handle, &deviceCount, &devices[0])

	return &Driver{instance: instance, physical: devices[:deviceCount], log: log}, nil
}

func (d *Driver) API() interop.API { return interop.APIVulkan }

// PhysicalDevices describes every device in enumeration order.
func (d *Driver) PhysicalDevices() ([]interop.PhysicalDevice, error) {
	out := make([]interop.PhysicalDevice, 0, len(d.physical))
	for i, pd := range d.physical {
		var props C.VkPhysicalDeviceProperties
		C.vkGetPhysicalDeviceProperties(pd, &props)

		var identity C.DeviceIdentity
		C.queryDeviceIdentity(pd, &identity)

		dev := interop.PhysicalDevice{
			Index:         i,
			Name:          goString(props.deviceName[:]),
			Discrete:      props.deviceType == C.VK_PHYSICAL_DEVICE_TYPE_DISCRETE_GPU,
			QueueFamilies: queueFamilies(pd),
			Extensions:    deviceExtensions(pd),
			LUIDValid:     identity.luidValid == C.VK_TRUE,
			SampleCounts:  interop.SampleMask(props.limits.framebufferColorSampleCounts & props.limits.framebufferDepthSampleCounts),
		}
		for j := range dev.LUID {
			dev.LUID[j] = byte(identity.luid[j])
		}
		out = append(out, dev)
	}
	return out, nil
}

// ExternalImageSupport runs vkGetPhysicalDeviceImageFormatProperties2 with an
// external image format query chained in.
func (d *Driver) ExternalImageSupport(dev interop.PhysicalDevice, q interop.ExternalImageQuery) (interop.ExternalImageSupport, error) {
	if dev.Index < 0 || dev.Index >= len(d.physical) {
		return interop.ExternalImageSupport{}, fmt.Errorf("unknown physical device %d", dev.Index)
	}
	info, ok := q.Format.Info()
	if !ok {
		return interop.ExternalImageSupport{}, fmt.Errorf("format %s has no Vulkan mapping", q.Format)
	}

	var support C.ExternalSupport
	result := C.queryExternalImage(d.physical[dev.Index], C.VkFormat(info.VkFormat), C.VkImageUsageFlags(q.Usage),
		vkTiling(q.Tiling), C.VkExternalMemoryHandleTypeFlagBits(q.HandleType.VkBit()), &support)
	switch result {
	case C.VK_SUCCESS:
	case C.VK_ERROR_FORMAT_NOT_SUPPORTED:
		return interop.ExternalImageSupport{}, nil
	default:
		return interop.ExternalImageSupport{}, vkError(interop.KindNoSuitableDevice, "query external image format", result)
	}

	return interop.ExternalImageSupport{
		Features:              interop.ExternalMemoryFeatures(support.features),
		CompatibleHandleTypes: uint32(support.compatible),
		MaxExtent:             interop.Extent{Width: uint32(support.maxExtent.width), Height: uint32(support.maxExtent.height)},
	}, nil
}

// OpenDevice creates the logical device for a probing result.
func (d *Driver) OpenDevice(sel interop.Selection) (interop.ProducerDevice, error) {
	if sel.Device.Index < 0 || sel.Device.Index >= len(d.physical) {
		return nil, fmt.Errorf("unknown physical device %d", sel.Device.Index)
	}
	dev, err := newDevice(d.physical[sel.Device.Index], sel, d.log)
	if err != nil {
		return nil, err
	}
	d.log.WithFields(logrus.Fields{
		"device": sel.Device.Name,
		"queue":  sel.QueueFamily,
		"handle": sel.HandleType,
		"role":   sel.Role,
	}).Info("opened Vulkan device")
	return dev, nil
}

func (d *Driver) Destroy() {
	if d.instance != nil {
		d.instance.Destroy()
		d.instance = nil
	}
}

func queueFamilies(pd C.VkPhysicalDevice) []interop.QueueFamily {
	var count C.uint32_t
	C.vkGetPhysicalDeviceQueueFamilyProperties(pd, &count, nil)
	if count == 0 {
		return nil
	}
	props := make([]C.VkQueueFamilyProperties, count)
	C.vkGetPhysicalDeviceQueueFamilyProperties(pd, &count, &props[0])

	out := make([]interop.QueueFamily, count)
	for i, p := range props[:count] {
		out[i] = interop.QueueFamily{
			Index:    uint32(i),
			Count:    uint32(p.queueCount),
			Graphics: p.queueFlags&C.VK_QUEUE_GRAPHICS_BIT != 0,
			Compute:  p.queueFlags&C.VK_QUEUE_COMPUTE_BIT != 0,
			Transfer: p.queueFlags&C.VK_QUEUE_TRANSFER_BIT != 0,
		}
	}
	return out
}

func deviceExtensions(pd C.VkPhysicalDevice) []string {
	var count C.uint32_t
	C.vkEnumerateDeviceExtensionProperties(pd, nil, &count, nil)
	if count == 0 {
		return nil
	}
	props := make([]C.VkExtensionProperties, count)
	C.vkEnumerateDeviceExtensionProperties(pd, nil, &count, &props[0])

	out := make([]string, count)
	for i, p := range props[:count] {
		out[i] = goString(p.extensionName[:])
	}
	return out
}

func vkTiling(t interop.Tiling) C.VkImageTiling {
	if t == interop.TilingLinear {
		return C.VK_IMAGE_TILING_LINEAR
	}
	return C.VK_IMAGE_TILING_OPTIMAL
}
