package vulkan

/*
#include <vulkan/vulkan.h>
#include <stdlib.h>

VkResult createLogicalDevice(VkPhysicalDevice physical, uint32_t family, const char** extensions, uint32_t extensionCount, VkDevice* out) {
    float priority = 1.0f;
    VkDeviceQueueCreateInfo queueInfo = {0};
    queueInfo.sType = VK_STRUCTURE_TYPE_DEVICE_QUEUE_CREATE_INFO;
    queueInfo.queueFamilyIndex = family;
    queueInfo.queueCount = 1;
    queueInfo.pQueuePriorities = &priority;

    VkPhysicalDeviceFeatures features = {0};

    VkDeviceCreateInfo createInfo = {0};
    createInfo.sType = VK_STRUCTURE_TYPE_DEVICE_CREATE_INFO;
    createInfo.queueCreateInfoCount = 1;
    createInfo.pQueueCreateInfos = &queueInfo;
    createInfo.pEnabledFeatures = &features;
    createInfo.enabledExtensionCount = extensionCount;
    createInfo.ppEnabledExtensionNames = extensions;
    return vkCreateDevice(physical, &createInfo, NULL, out);
}
*/
import "C"
import (
	"fmt"
	"unsafe"

	"github.com/sirupsen/logrus"

	"render-interop/interop"
)

var (
	_ interop.ProducerDevice = (*Device)(nil)
	_ interop.Exporter       = (*Device)(nil)
	_ interop.Importer       = (*Device)(nil)
)

// Device is the logical device the scene is rendered on.
type Device struct {
	PhysicalDevice C.VkPhysicalDevice
	Device         C.VkDevice
	GraphicsQueue  C.VkQueue
	CommandPool    C.VkCommandPool

	GraphicsFamily uint32
	MemoryProps    C.VkPhysicalDeviceMemoryProperties

	selection interop.Selection
	log       logrus.FieldLogger
}

func newDevice(physical C.VkPhysicalDevice, sel interop.Selection, log logrus.FieldLogger) (*Device, error) {
	d := &Device{
		PhysicalDevice: physical,
		GraphicsFamily: sel.QueueFamily,
		selection:      sel,
		log:            log,
	}
	C.vkGetPhysicalDeviceMemoryProperties(physical, &d.MemoryProps)

	extensions, free := cStringArray(sel.Extensions)
	defer free()

	result := C.createLogicalDevice(physical, C.uint32_t(sel.QueueFamily), extensions, C.uint32_t(len(sel.Extensions)), &d.Device)
	if result != C.VK_SUCCESS {
		return nil, vkError(interop.KindResourceCreation, "create logical device", result)
	}

	C.vkGetDeviceQueue(d.Device, C.uint32_t(d.GraphicsFamily), 0, &d.GraphicsQueue)

	poolInfo := C.VkCommandPoolCreateInfo{
		sType:            C.VK_STRUCTURE_TYPE_COMMAND_POOL_CREATE_INFO,
		queueFamilyIndex: C.uint32_t(d.GraphicsFamily),
		flags:            C.VK_COMMAND_POOL_CREATE_RESET_COMMAND_BUFFER_BIT,
	}
	result = C.vkCreateCommandPool(d.Device, &poolInfo, nil, &d.CommandPool)
	if result != C.VK_SUCCESS {
		C.vkDestroyDevice(d.Device, nil)
		return nil, vkError(interop.KindResourceCreation, "create command pool", result)
	}

	return d, nil
}

func (d *Device) API() interop.API { return interop.APIVulkan }

func (d *Device) WaitIdle() error {
	if result := C.vkDeviceWaitIdle(d.Device); result != C.VK_SUCCESS {
		return vkError(interop.KindSubmission, "wait for device idle", result)
	}
	return nil
}

func (d *Device) Destroy() {
	if d.Device == nil {
		return
	}
	if d.CommandPool != nil {
		C.vkDestroyCommandPool(d.Device, d.CommandPool, nil)
		d.CommandPool = nil
	}
	C.vkDestroyDevice(d.Device, nil)
	d.Device = nil
}

func (d *Device) FindMemoryType(typeFilter uint32, properties C.VkMemoryPropertyFlags) (uint32, error) {
	for i := uint32(0); i < uint32(d.MemoryProps.memoryTypeCount); i++ {
		if (typeFilter&(1<<i)) != 0 && (d.MemoryProps.memoryTypes[i].propertyFlags&properties) == properties {
			return i, nil
		}
	}
	return 0, fmt.Errorf("failed to find suitable memory type in mask %#x", typeFilter)
}

// findDeviceMemoryType prefers device-local memory and falls back to any
// type in the mask.
func (d *Device) findDeviceMemoryType(typeFilter uint32) (uint32, error) {
	if i, err := d.FindMemoryType(typeFilter, C.VK_MEMORY_PROPERTY_DEVICE_LOCAL_BIT); err == nil {
		return i, nil
	}
	return d.FindMemoryType(typeFilter, 0)
}

// cStringArray copies strs into C memory. The returned func frees it.
func cStringArray(strs []string) (**C.char, func()) {
	if len(strs) == 0 {
		return nil, func() {}
	}
	ptrSize := unsafe.Sizeof((*C.char)(nil))
	array := (**C.char)(C.malloc(C.size_t(uintptr(len(strs)) * ptrSize)))
	items := unsafe.Slice(array, len(strs))
	for i, s := range strs {
		items[i] = C.CString(s)
	}
	return array, func() {
		for _, p := range items {
			C.free(unsafe.Pointer(p))
		}
		C.free(unsafe.Pointer(array))
	}
}
