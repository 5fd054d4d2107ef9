//go:build !windows

package vulkan

/*
#include <vulkan/vulkan.h>

VkResult getMemoryFd(VkDevice device, VkDeviceMemory memory, int* fd) {
    PFN_vkGetMemoryFdKHR func = (PFN_vkGetMemoryFdKHR)vkGetDeviceProcAddr(device, "vkGetMemoryFdKHR");
    if (func == NULL) {
        return VK_ERROR_EXTENSION_NOT_PRESENT;
    }
    VkMemoryGetFdInfoKHR info = {0};
    info.sType = VK_STRUCTURE_TYPE_MEMORY_GET_FD_INFO_KHR;
    info.memory = memory;
    info.handleType = VK_EXTERNAL_MEMORY_HANDLE_TYPE_OPAQUE_FD_BIT;
    return func(device, &info, fd);
}

VkResult importMemoryFd(VkDevice device, VkImage image, VkDeviceSize size, uint32_t typeIndex,
                        VkBool32 dedicated, int fd, VkDeviceMemory* out) {
    VkMemoryDedicatedAllocateInfo dedicatedInfo = {0};
    dedicatedInfo.sType = VK_STRUCTURE_TYPE_MEMORY_DEDICATED_ALLOCATE_INFO;
    dedicatedInfo.image = image;

    VkImportMemoryFdInfoKHR importInfo = {0};
    importInfo.sType = VK_STRUCTURE_TYPE_IMPORT_MEMORY_FD_INFO_KHR;
    importInfo.handleType = VK_EXTERNAL_MEMORY_HANDLE_TYPE_OPAQUE_FD_BIT;
    importInfo.fd = fd;
    if (dedicated) {
        importInfo.pNext = &dedicatedInfo;
    }

    VkMemoryAllocateInfo info = {0};
    info.sType = VK_STRUCTURE_TYPE_MEMORY_ALLOCATE_INFO;
    info.pNext = &importInfo;
    info.allocationSize = size;
    info.memoryTypeIndex = typeIndex;
    return vkAllocateMemory(device, &info, NULL, out);
}
*/
import "C"
import (
	"fmt"

	"golang.org/x/sys/unix"

	"render-interop/interop"
)

func (d *Device) exportMemory(memory C.VkDeviceMemory, t interop.HandleType) (uintptr, error) {
	if t != interop.HandleOpaqueFD {
		return 0, interop.NewError(interop.KindResourceCreation, "export memory handle", 0,
			fmt.Errorf("%s cannot be exported on this platform", t))
	}
	var fd C.int
	if result := C.getMemoryFd(d.Device, memory, &fd); result != C.VK_SUCCESS {
		return 0, vkError(interop.KindResourceCreation, "export memory fd", result)
	}
	return uintptr(fd), nil
}

// handleMemoryTypeBits returns 0 for opaque fds: the driver only reports
// their compatible types through the image requirements.
func (d *Device) handleMemoryTypeBits(t interop.HandleType, value uintptr) (uint32, error) {
	if t != interop.HandleOpaqueFD {
		return 0, interop.NewError(interop.KindHandleInvalid, "import memory", 0,
			fmt.Errorf("%s cannot be imported on this platform", t))
	}
	return 0, nil
}

// importMemory consumes the fd on success.
func (d *Device) importMemory(image C.VkImage, t interop.HandleType, value uintptr, size uint64, typeIndex uint32, dedicated bool) (C.VkDeviceMemory, error) {
	var mem C.VkDeviceMemory
	result := C.importMemoryFd(d.Device, image, C.VkDeviceSize(size), C.uint32_t(typeIndex), vkBool(dedicated), C.int(value), &mem)
	if result != C.VK_SUCCESS {
		return nil, vkError(interop.KindResourceCreation, "import memory fd", result)
	}
	return mem, nil
}

func closeNativeHandle(t interop.HandleType, value uintptr) error {
	if t != interop.HandleOpaqueFD {
		return fmt.Errorf("cannot close %s handles on this platform", t)
	}
	if err := unix.Close(int(value)); err != nil {
		return fmt.Errorf("close fd %d: %w", value, err)
	}
	return nil
}
