package vulkan

/*
#include <vulkan/vulkan.h>

VkResult createExternalImage(VkDevice device, VkFormat format, uint32_t width, uint32_t height,
                             VkImageUsageFlags usage, VkImageTiling tiling,
                             VkExternalMemoryHandleTypeFlags handleTypes, VkImage* out) {
    VkExternalMemoryImageCreateInfo external = {0};
    external.sType = VK_STRUCTURE_TYPE_EXTERNAL_MEMORY_IMAGE_CREATE_INFO;
    external.handleTypes = handleTypes;

    VkImageCreateInfo info = {0};
    info.sType = VK_STRUCTURE_TYPE_IMAGE_CREATE_INFO;
    info.pNext = &external;
    info.imageType = VK_IMAGE_TYPE_2D;
    info.format = format;
    info.extent.width = width;
    info.extent.height = height;
    info.extent.depth = 1;
    info.mipLevels = 1;
    info.arrayLayers = 1;
    info.samples = VK_SAMPLE_COUNT_1_BIT;
    info.tiling = tiling;
    info.usage = usage;
    info.sharingMode = VK_SHARING_MODE_EXCLUSIVE;
    info.initialLayout = VK_IMAGE_LAYOUT_UNDEFINED;
    return vkCreateImage(device, &info, NULL, out);
}

void getImageRequirements(VkDevice device, VkImage image, VkMemoryRequirements* reqs,
                          VkBool32* prefersDedicated, VkBool32* requiresDedicated) {
    VkMemoryDedicatedRequirements dedicated = {0};
    dedicated.sType = VK_STRUCTURE_TYPE_MEMORY_DEDICATED_REQUIREMENTS;

    VkMemoryRequirements2 out = {0};
    out.sType = VK_STRUCTURE_TYPE_MEMORY_REQUIREMENTS_2;
    out.pNext = &dedicated;

    VkImageMemoryRequirementsInfo2 info = {0};
    info.sType = VK_STRUCTURE_TYPE_IMAGE_MEMORY_REQUIREMENTS_INFO_2;
    info.image = image;
    vkGetImageMemoryRequirements2(device, &info, &out);

    *reqs = out.memoryRequirements;
    *prefersDedicated = dedicated.prefersDedicatedAllocation;
    *requiresDedicated = dedicated.requiresDedicatedAllocation;
}

VkResult allocateExportableMemory(VkDevice device, VkImage image, VkDeviceSize size, uint32_t typeIndex,
                                  VkExternalMemoryHandleTypeFlags handleTypes, VkBool32 dedicated,
                                  VkDeviceMemory* out) {
    VkMemoryDedicatedAllocateInfo dedicatedInfo = {0};
    dedicatedInfo.sType = VK_STRUCTURE_TYPE_MEMORY_DEDICATED_ALLOCATE_INFO;
    dedicatedInfo.image = image;

    VkExportMemoryAllocateInfo exportInfo = {0};
    exportInfo.sType = VK_STRUCTURE_TYPE_EXPORT_MEMORY_ALLOCATE_INFO;
    exportInfo.handleTypes = handleTypes;
    if (dedicated) {
        exportInfo.pNext = &dedicatedInfo;
    }

    VkMemoryAllocateInfo info = {0};
    info.sType = VK_STRUCTURE_TYPE_MEMORY_ALLOCATE_INFO;
    info.pNext = &exportInfo;
    info.allocationSize = size;
    info.memoryTypeIndex = typeIndex;
    return vkAllocateMemory(device, &info, NULL, out);
}
*/
import "C"
import (
	"fmt"

	"github.com/sirupsen/logrus"

	"render-interop/interop"
)

// sharedImage is this device's view of the shared allocation. It is either
// created exportable (this device owns the memory) or created for import.
type sharedImage struct {
	dev        *Device
	desc       interop.ImageDesc
	handleType interop.HandleType
	format     C.VkFormat

	image  C.VkImage
	memory C.VkDeviceMemory

	reqs      C.VkMemoryRequirements
	prefers   bool
	requires  bool
	dedicated bool
	size      uint64
}

func (d *Device) newSharedImage(desc interop.ImageDesc, t interop.HandleType, op string) (*sharedImage, error) {
	info, ok := desc.Format.Info()
	if !ok || !info.Shareable {
		return nil, interop.NewError(interop.KindResourceCreation, op, 0, fmt.Errorf("format %s cannot be shared", desc.Format))
	}
	img := &sharedImage{dev: d, desc: desc, handleType: t, format: C.VkFormat(info.VkFormat)}
	result := C.createExternalImage(d.Device, img.format, C.uint32_t(desc.Extent.Width), C.uint32_t(desc.Extent.Height),
		C.VkImageUsageFlags(desc.Usage), vkTiling(desc.Tiling), C.VkExternalMemoryHandleTypeFlags(t.VkBit()), &img.image)
	if result != C.VK_SUCCESS {
		return nil, vkError(interop.KindResourceCreation, op, result)
	}

	var prefers, requires C.VkBool32
	C.getImageRequirements(d.Device, img.image, &img.reqs, &prefers, &requires)
	img.prefers = prefers == C.VK_TRUE
	img.requires = requires == C.VK_TRUE
	return img, nil
}

// CreateShareableImage creates an exportable image and allocates its memory
// with export metadata, dedicated when the driver asks for it.
func (d *Device) CreateShareableImage(desc interop.ImageDesc, t interop.HandleType) (interop.ShareableImage, error) {
	img, err := d.newSharedImage(desc, t, "create exportable image")
	if err != nil {
		return nil, err
	}

	memType, err := d.findDeviceMemoryType(uint32(img.reqs.memoryTypeBits))
	if err != nil {
		img.Destroy()
		return nil, interop.NewError(interop.KindResourceCreation, "allocate exportable memory", 0, err)
	}

	img.dedicated = img.requires || img.prefers || d.selection.DedicatedOnly()
	result := C.allocateExportableMemory(d.Device, img.image, img.reqs.size, C.uint32_t(memType),
		C.VkExternalMemoryHandleTypeFlags(t.VkBit()), vkBool(img.dedicated), &img.memory)
	if result != C.VK_SUCCESS {
		img.Destroy()
		return nil, vkError(interop.KindResourceCreation, "allocate exportable memory", result)
	}

	if result := C.vkBindImageMemory(d.Device, img.image, img.memory, 0); result != C.VK_SUCCESS {
		img.Destroy()
		return nil, vkError(interop.KindResourceCreation, "bind exportable memory", result)
	}
	img.size = uint64(img.reqs.size)

	d.log.WithFields(logrus.Fields{
		"size":      img.size,
		"dedicated": img.dedicated,
		"handle":    t,
	}).Debug("created exportable image")
	return img, nil
}

// CreateExternalImage creates an image with external-memory metadata. Memory
// is imported later through ImportMemory.
func (d *Device) CreateExternalImage(desc interop.ImageDesc, t interop.HandleType) (interop.ExternalImage, error) {
	return d.newSharedImage(desc, t, "create external image")
}

func (img *sharedImage) Desc() interop.ImageDesc { return img.desc }

func (img *sharedImage) AllocationSize() uint64 { return img.size }

func (img *sharedImage) Dedicated() bool { return img.dedicated }

func (img *sharedImage) ExportHandle() (uintptr, error) {
	if img.memory == nil {
		return 0, interop.NewError(interop.KindResourceCreation, "export memory handle", 0, fmt.Errorf("image has no memory"))
	}
	return img.dev.exportMemory(img.memory, img.handleType)
}

func (img *sharedImage) MemoryRequirements() (interop.MemoryRequirements, error) {
	return interop.MemoryRequirements{
		Size:           uint64(img.reqs.size),
		Alignment:      uint64(img.reqs.alignment),
		MemoryTypeBits: uint32(img.reqs.memoryTypeBits),
	}, nil
}

func (img *sharedImage) DedicatedRequirement() (interop.DedicatedRequirement, error) {
	return interop.DedicatedRequirement{Prefers: img.prefers, Requires: img.requires}, nil
}

// ImportMemory allocates memory backed by the OS handle. The allocation size
// is the exporter's when known, since fd imports must match it exactly.
func (img *sharedImage) ImportMemory(req interop.ImportRequest) error {
	if req.HandleType != img.handleType {
		return fmt.Errorf("image was created for %s, not %s", img.handleType, req.HandleType)
	}
	typeBits := uint32(img.reqs.memoryTypeBits)
	handleBits, err := img.dev.handleMemoryTypeBits(req.HandleType, req.Handle)
	if err != nil {
		return err
	}
	if handleBits != 0 {
		typeBits &= handleBits
	}
	memType, err := img.dev.findDeviceMemoryType(typeBits)
	if err != nil {
		return err
	}

	size := req.Requirements.Size
	if req.ExporterSize > size {
		size = req.ExporterSize
	}
	mem, err := img.dev.importMemory(img.image, req.HandleType, req.Handle, size, memType, req.Dedicated)
	if err != nil {
		return err
	}
	img.memory = mem
	img.size = size
	img.dedicated = req.Dedicated
	return nil
}

func (img *sharedImage) BindMemory() error {
	if result := C.vkBindImageMemory(img.dev.Device, img.image, img.memory, 0); result != C.VK_SUCCESS {
		return vkError(interop.KindResourceCreation, "bind imported memory", result)
	}
	return nil
}

func (img *sharedImage) Destroy() {
	d := img.dev.Device
	if img.image != nil {
		C.vkDestroyImage(d, img.image, nil)
		img.image = nil
	}
	if img.memory != nil {
		C.vkFreeMemory(d, img.memory, nil)
		img.memory = nil
	}
}

// CloseHandle releases an exported NT handle or fd.
func (d *Device) CloseHandle(t interop.HandleType, value uintptr) error {
	return closeNativeHandle(t, value)
}

func asSharedImage(s interop.SharedSurface) (*sharedImage, error) {
	img, ok := s.(*sharedImage)
	if !ok {
		return nil, fmt.Errorf("shared surface of type %T was not created by this device", s)
	}
	return img, nil
}

func vkBool(b bool) C.VkBool32 {
	if b {
		return C.VK_TRUE
	}
	return C.VK_FALSE
}
