package vulkan

/*
#include <vulkan/vulkan.h>
*/
import "C"
import (
	"fmt"
	"unsafe"

	"render-interop/core"
	"render-interop/interop"
)

type Buffer struct {
	Handle     C.VkBuffer
	Memory     C.VkDeviceMemory
	Size       uint64
	MappedData unsafe.Pointer
}

// Image is a device-local attachment owned by the render target set.
type Image struct {
	Handle  C.VkImage
	Memory  C.VkDeviceMemory
	View    C.VkImageView
	Format  C.VkFormat
	Width   uint32
	Height  uint32
	Samples C.VkSampleCountFlagBits
}

func CreateBuffer(device *Device, size uint64, usage C.VkBufferUsageFlags, properties C.VkMemoryPropertyFlags) (*Buffer, error) {
	bufferInfo := C.VkBufferCreateInfo{
		sType:       C.VK_STRUCTURE_TYPE_BUFFER_CREATE_INFO,
		size:        C.VkDeviceSize(size),
		usage:       usage,
		sharingMode: C.VK_SHARING_MODE_EXCLUSIVE,
	}

	buffer := &Buffer{Size: size}

	result := C.vkCreateBuffer(device.Device, &bufferInfo, nil, &buffer.Handle)
	if result != C.VK_SUCCESS {
		return nil, vkError(interop.KindResourceCreation, "create buffer", result)
	}

	var memRequirements C.VkMemoryRequirements
	C.vkGetBufferMemoryRequirements(device.Device, buffer.Handle, &memRequirements)

	memType, err := device.FindMemoryType(uint32(memRequirements.memoryTypeBits), properties)
	if err != nil {
		buffer.Destroy(device)
		return nil, interop.NewError(interop.KindResourceCreation, "create buffer", 0, err)
	}

	allocInfo := C.VkMemoryAllocateInfo{
		sType:           C.VK_STRUCTURE_TYPE_MEMORY_ALLOCATE_INFO,
		allocationSize:  memRequirements.size,
		memoryTypeIndex: C.uint32_t(memType),
	}

	result = C.vkAllocateMemory(device.Device, &allocInfo, nil, &buffer.Memory)
	if result != C.VK_SUCCESS {
		buffer.Destroy(device)
		return nil, vkError(interop.KindResourceCreation, "allocate buffer memory", result)
	}

	result = C.vkBindBufferMemory(device.Device, buffer.Handle, buffer.Memory, 0)
	if result != C.VK_SUCCESS {
		buffer.Destroy(device)
		return nil, vkError(interop.KindResourceCreation, "bind buffer memory", result)
	}

	return buffer, nil
}

func (b *Buffer) Map(device *Device) error {
	result := C.vkMapMemory(device.Device, b.Memory, 0, C.VkDeviceSize(b.Size), 0, &b.MappedData)
	if result != C.VK_SUCCESS {
		return vkError(interop.KindResourceCreation, "map buffer memory", result)
	}
	return nil
}

func (b *Buffer) Unmap(device *Device) {
	if b.MappedData != nil {
		C.vkUnmapMemory(device.Device, b.Memory)
		b.MappedData = nil
	}
}

// CopyData writes data at the start of the mapped range.
func (b *Buffer) CopyData(data []byte) error {
	if b.MappedData == nil {
		return fmt.Errorf("buffer is not mapped")
	}
	if uint64(len(data)) > b.Size {
		return fmt.Errorf("%d bytes do not fit a %d byte buffer", len(data), b.Size)
	}
	copy(unsafe.Slice((*byte)(b.MappedData), b.Size), data)
	return nil
}

func (b *Buffer) Destroy(device *Device) {
	b.Unmap(device)
	if b.Handle != nil {
		C.vkDestroyBuffer(device.Device, b.Handle, nil)
		b.Handle = nil
	}
	if b.Memory != nil {
		C.vkFreeMemory(device.Device, b.Memory, nil)
		b.Memory = nil
	}
}

// uploadBuffer creates a host-visible buffer holding data.
func uploadBuffer(device *Device, data []byte, usage C.VkBufferUsageFlags) (*Buffer, error) {
	buf, err := CreateBuffer(device, uint64(len(data)), usage,
		C.VK_MEMORY_PROPERTY_HOST_VISIBLE_BIT|C.VK_MEMORY_PROPERTY_HOST_COHERENT_BIT)
	if err != nil {
		return nil, err
	}
	if err := buf.Map(device); err != nil {
		buf.Destroy(device)
		return nil, err
	}
	if err := buf.CopyData(data); err != nil {
		buf.Destroy(device)
		return nil, err
	}
	buf.Unmap(device)
	return buf, nil
}

func CreateImage(device *Device, width, height uint32, format C.VkFormat, usage C.VkImageUsageFlags, samples C.VkSampleCountFlagBits) (*Image, error) {
	imageInfo := C.VkImageCreateInfo{
		sType:     C.VK_STRUCTURE_TYPE_IMAGE_CREATE_INFO,
		imageType: C.VK_IMAGE_TYPE_2D,
		extent: C.VkExtent3D{
			width:  C.uint32_t(width),
			height: C.uint32_t(height),
			depth:  1,
		},
		mipLevels:     1,
		arrayLayers:   1,
		format:        format,
		tiling:        C.VK_IMAGE_TILING_OPTIMAL,
		initialLayout: C.VK_IMAGE_LAYOUT_UNDEFINED,
		usage:         usage,
		samples:       samples,
		sharingMode:   C.VK_SHARING_MODE_EXCLUSIVE,
	}

	img := &Image{
		Width:   width,
		Height:  height,
		Format:  format,
		Samples: samples,
	}

	result := C.vkCreateImage(device.Device, &imageInfo, nil, &img.Handle)
	if result != C.VK_SUCCESS {
		return nil, vkError(interop.KindResourceCreation, "create image", result)
	}

	var memRequirements C.VkMemoryRequirements
	C.vkGetImageMemoryRequirements(device.Device, img.Handle, &memRequirements)

	memType, err := device.FindMemoryType(uint32(memRequirements.memoryTypeBits), C.VK_MEMORY_PROPERTY_DEVICE_LOCAL_BIT)
	if err != nil {
		img.Destroy(device)
		return nil, interop.NewError(interop.KindResourceCreation, "create image", 0, err)
	}

	allocInfo := C.VkMemoryAllocateInfo{
		sType:           C.VK_STRUCTURE_TYPE_MEMORY_ALLOCATE_INFO,
		allocationSize:  memRequirements.size,
		memoryTypeIndex: C.uint32_t(memType),
	}

	result = C.vkAllocateMemory(device.Device, &allocInfo, nil, &img.Memory)
	if result != C.VK_SUCCESS {
		img.Destroy(device)
		return nil, vkError(interop.KindResourceCreation, "allocate image memory", result)
	}

	result = C.vkBindImageMemory(device.Device, img.Handle, img.Memory, 0)
	if result != C.VK_SUCCESS {
		img.Destroy(device)
		return nil, vkError(interop.KindResourceCreation, "bind image memory", result)
	}

	return img, nil
}

func CreateImageView(device *Device, image C.VkImage, format C.VkFormat, aspectFlags C.VkImageAspectFlags) (C.VkImageView, error) {
	viewInfo := C.VkImageViewCreateInfo{
		sType:    C.VK_STRUCTURE_TYPE_IMAGE_VIEW_CREATE_INFO,
		image:    image,
		viewType: C.VK_IMAGE_VIEW_TYPE_2D,
		format:   format,
		subresourceRange: C.VkImageSubresourceRange{
			aspectMask: aspectFlags,
			levelCount: 1,
			layerCount: 1,
		},
	}

	var imageView C.VkImageView
	result := C.vkCreateImageView(device.Device, &viewInfo, nil, &imageView)
	if result != C.VK_SUCCESS {
		return nil, vkError(interop.KindResourceCreation, "create image view", result)
	}

	return imageView, nil
}

func (img *Image) CreateView(device *Device, aspectFlags C.VkImageAspectFlags) error {
	view, err := CreateImageView(device, img.Handle, img.Format, aspectFlags)
	if err != nil {
		return err
	}
	img.View = view
	return nil
}

func (img *Image) Destroy(device *Device) {
	if img.View != nil {
		C.vkDestroyImageView(device.Device, img.View, nil)
		img.View = nil
	}
	if img.Handle != nil {
		C.vkDestroyImage(device.Device, img.Handle, nil)
		img.Handle = nil
	}
	if img.Memory != nil {
		C.vkFreeMemory(device.Device, img.Memory, nil)
		img.Memory = nil
	}
}

type meshBuffers struct {
	dev        *Device
	vertices   *Buffer
	indices    *Buffer
	indexCount uint32
}

func (d *Device) CreateMeshBuffers(mesh core.MeshData) (interop.MeshBuffers, error) {
	if len(mesh.Vertices) == 0 || len(mesh.Indices) == 0 {
		return nil, fmt.Errorf("mesh has no geometry")
	}
	vb, err := uploadBuffer(d, mesh.VertexBytes(), C.VK_BUFFER_USAGE_VERTEX_BUFFER_BIT)
	if err != nil {
		return nil, err
	}
	ib, err := uploadBuffer(d, mesh.IndexBytes(), C.VK_BUFFER_USAGE_INDEX_BUFFER_BIT)
	if err != nil {
		vb.Destroy(d)
		return nil, err
	}
	return &meshBuffers{dev: d, vertices: vb, indices: ib, indexCount: uint32(len(mesh.Indices))}, nil
}

func (m *meshBuffers) IndexCount() uint32 { return m.indexCount }

func (m *meshBuffers) Destroy() {
	m.vertices.Destroy(m.dev)
	m.indices.Destroy(m.dev)
}

// uniformBuffer stays mapped for its whole life.
type uniformBuffer struct {
	dev *Device
	buf *Buffer
}

func (d *Device) CreateUniformBuffer(size int) (interop.UniformBuffer, error) {
	buf, err := CreateBuffer(d, uint64(size), C.VK_BUFFER_USAGE_UNIFORM_BUFFER_BIT,
		C.VK_MEMORY_PROPERTY_HOST_VISIBLE_BIT|C.VK_MEMORY_PROPERTY_HOST_COHERENT_BIT)
	if err != nil {
		return nil, err
	}
	if err := buf.Map(d); err != nil {
		buf.Destroy(d)
		return nil, err
	}
	return &uniformBuffer{dev: d, buf: buf}, nil
}

func (u *uniformBuffer) Size() int { return int(u.buf.Size) }

func (u *uniformBuffer) Write(data []byte) error { return u.buf.CopyData(data) }

func (u *uniformBuffer) Destroy() { u.buf.Destroy(u.dev) }

func asMesh(m interop.MeshBuffers) (*meshBuffers, error) {
	if m == nil {
		return nil, nil
	}
	mb, ok := m.(*meshBuffers)
	if !ok {
		return nil, fmt.Errorf("mesh buffers of type %T were not created by this device", m)
	}
	return mb, nil
}

func asUniforms(u interop.UniformBuffer) (*uniformBuffer, error) {
	ub, ok := u.(*uniformBuffer)
	if !ok {
		return nil, fmt.Errorf("uniform buffer of type %T was not created by this device", u)
	}
	return ub, nil
}
