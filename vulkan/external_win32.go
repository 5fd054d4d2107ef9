//go:build windows

package vulkan

/*
#define VK_USE_PLATFORM_WIN32_KHR
#include <windows.h>
#include <vulkan/vulkan.h>
#include <vulkan/vulkan_win32.h>

VkResult getMemoryWin32Handle(VkDevice device, VkDeviceMemory memory,
                              VkExternalMemoryHandleTypeFlagBits handleType, uintptr_t* out) {
    PFN_vkGetMemoryWin32HandleKHR func = (PFN_vkGetMemoryWin32HandleKHR)vkGetDeviceProcAddr(device, "vkGetMemoryWin32HandleKHR");
    if (func == NULL) {
        return VK_ERROR_EXTENSION_NOT_PRESENT;
    }
    VkMemoryGetWin32HandleInfoKHR info = {0};
    info.sType = VK_STRUCTURE_TYPE_MEMORY_GET_WIN32_HANDLE_INFO_KHR;
    info.memory = memory;
    info.handleType = handleType;
    HANDLE handle = NULL;
    VkResult result = func(device, &info, &handle);
    *out = (uintptr_t)handle;
    return result;
}

VkResult getWin32HandleTypeBits(VkDevice device, VkExternalMemoryHandleTypeFlagBits handleType,
                                uintptr_t handle, uint32_t* bits) {
    PFN_vkGetMemoryWin32HandlePropertiesKHR func = (PFN_vkGetMemoryWin32HandlePropertiesKHR)vkGetDeviceProcAddr(device, "vkGetMemoryWin32HandlePropertiesKHR");
    if (func == NULL) {
        return VK_ERROR_EXTENSION_NOT_PRESENT;
    }
    VkMemoryWin32HandlePropertiesKHR props = {0};
    props.sType = VK_STRUCTURE_TYPE_MEMORY_WIN32_HANDLE_PROPERTIES_KHR;
    VkResult result = func(device, handleType, (HANDLE)handle, &props);
    *bits = props.memoryTypeBits;
    return result;
}

VkResult importMemoryWin32(VkDevice device, VkImage image, VkDeviceSize size, uint32_t typeIndex,
                           VkBool32 dedicated, VkExternalMemoryHandleTypeFlagBits handleType,
                           uintptr_t handle, VkDeviceMemory* out) {
    VkMemoryDedicatedAllocateInfo dedicatedInfo = {0};
    dedicatedInfo.sType = VK_STRUCTURE_TYPE_MEMORY_DEDICATED_ALLOCATE_INFO;
    dedicatedInfo.image = image;

    VkImportMemoryWin32HandleInfoKHR importInfo = {0};
    importInfo.sType = VK_STRUCTURE_TYPE_IMPORT_MEMORY_WIN32_HANDLE_INFO_KHR;
    importInfo.handleType = handleType;
    importInfo.handle = (HANDLE)handle;
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

	"golang.org/x/sys/windows"

	"render-interop/interop"
)

func (d *Device) exportMemory(memory C.VkDeviceMemory, t interop.HandleType) (uintptr, error) {
	if t != interop.HandleOpaqueWin32 && t != interop.HandleOpaqueWin32KMT {
		return 0, interop.NewError(interop.KindResourceCreation, "export memory handle", 0,
			fmt.Errorf("%s is exported by Direct3D 11, not Vulkan", t))
	}
	var handle C.uintptr_t
	result := C.getMemoryWin32Handle(d.Device, memory, C.VkExternalMemoryHandleTypeFlagBits(t.VkBit()), &handle)
	if result != C.VK_SUCCESS {
		return 0, vkError(interop.KindResourceCreation, "export memory win32 handle", result)
	}
	return uintptr(handle), nil
}

// handleMemoryTypeBits asks the driver which memory types can back a D3D11
// texture handle. Opaque handles report theirs through the image.
func (d *Device) handleMemoryTypeBits(t interop.HandleType, value uintptr) (uint32, error) {
	switch t {
	case interop.HandleD3D11Texture, interop.HandleD3D11TextureKMT:
	case interop.HandleOpaqueWin32, interop.HandleOpaqueWin32KMT:
		return 0, nil
	default:
		return 0, interop.NewError(interop.KindHandleInvalid, "import memory", 0,
			fmt.Errorf("%s cannot be imported on this platform", t))
	}
	var bits C.uint32_t
	result := C.getWin32HandleTypeBits(d.Device, C.VkExternalMemoryHandleTypeFlagBits(t.VkBit()), C.uintptr_t(value), &bits)
	if result != C.VK_SUCCESS {
		return 0, vkError(interop.KindHandleInvalid, "query win32 handle properties", result)
	}
	return uint32(bits), nil
}

// importMemory does not take ownership of Win32 handles.
func (d *Device) importMemory(image C.VkImage, t interop.HandleType, value uintptr, size uint64, typeIndex uint32, dedicated bool) (C.VkDeviceMemory, error) {
	var mem C.VkDeviceMemory
	result := C.importMemoryWin32(d.Device, image, C.VkDeviceSize(size), C.uint32_t(typeIndex), vkBool(dedicated),
		C.VkExternalMemoryHandleTypeFlagBits(t.VkBit()), C.uintptr_t(value), &mem)
	if result != C.VK_SUCCESS {
		return nil, vkError(interop.KindResourceCreation, "import memory win32 handle", result)
	}
	return mem, nil
}

func closeNativeHandle(t interop.HandleType, value uintptr) error {
	if !t.NeedsClose() {
		return nil
	}
	if err := windows.CloseHandle(windows.Handle(value)); err != nil {
		return fmt.Errorf("close %s handle %#x: %w", t, value, err)
	}
	return nil
}
