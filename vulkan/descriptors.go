package vulkan

/*
#include <vulkan/vulkan.h>
*/
import "C"
import (
	"runtime"

	"render-interop/interop"
)

type DescriptorPool struct {
	Handle C.VkDescriptorPool
}

func CreateDescriptorSetLayout(device *Device, bindings []C.VkDescriptorSetLayoutBinding) (C.VkDescriptorSetLayout, error) {
	var pinner runtime.Pinner
	defer pinner.Unpin()
	pinner.Pin(&bindings[0])

	layoutInfo := C.VkDescriptorSetLayoutCreateInfo{
		sType:        C.VK_STRUCTURE_TYPE_DESCRIPTOR_SET_LAYOUT_CREATE_INFO,
		bindingCount: C.uint32_t(len(bindings)),
		pBindings:    &bindings[0],
	}

	var layout C.VkDescriptorSetLayout
	result := C.vkCreateDescriptorSetLayout(device.Device, &layoutInfo, nil, &layout)
	if result != C.VK_SUCCESS {
		return nil, vkError(interop.KindResourceCreation, "create descriptor set layout", result)
	}

	return layout, nil
}

func CreateDescriptorPool(device *Device, poolSizes []C.VkDescriptorPoolSize, maxSets uint32) (*DescriptorPool, error) {
	var pinner runtime.Pinner
	defer pinner.Unpin()
	pinner.Pin(&poolSizes[0])

	poolInfo := C.VkDescriptorPoolCreateInfo{
		sType:         C.VK_STRUCTURE_TYPE_DESCRIPTOR_POOL_CREATE_INFO,
		poolSizeCount: C.uint32_t(len(poolSizes)),
		pPoolSizes:    &poolSizes[0],
		maxSets:       C.uint32_t(maxSets),
	}

	pool := &DescriptorPool{}
	result := C.vkCreateDescriptorPool(device.Device, &poolInfo, nil, &pool.Handle)
	if result != C.VK_SUCCESS {
		return nil, vkError(interop.KindResourceCreation, "create descriptor pool", result)
	}

	return pool, nil
}

func (p *DescriptorPool) Destroy(device *Device) {
	if p.Handle != nil {
		C.vkDestroyDescriptorPool(device.Device, p.Handle, nil)
		p.Handle = nil
	}
}

func (p *DescriptorPool) Allocate(device *Device, layout C.VkDescriptorSetLayout) (C.VkDescriptorSet, error) {
	layouts := []C.VkDescriptorSetLayout{layout}

	var pinner runtime.Pinner
	defer pinner.Unpin()
	pinner.Pin(&layouts[0])

	allocInfo := C.VkDescriptorSetAllocateInfo{
		sType:              C.VK_STRUCTURE_TYPE_DESCRIPTOR_SET_ALLOCATE_INFO,
		descriptorPool:     p.Handle,
		descriptorSetCount: 1,
		pSetLayouts:        &layouts[0],
	}

	var set C.VkDescriptorSet
	result := C.vkAllocateDescriptorSets(device.Device, &allocInfo, &set)
	if result != C.VK_SUCCESS {
		return nil, vkError(interop.KindResourceCreation, "allocate descriptor set", result)
	}
	return set, nil
}

func UpdateDescriptorSetBuffer(device *Device, set C.VkDescriptorSet, binding uint32, buffer C.VkBuffer, offset, size uint64) {
	bufferInfo := &C.VkDescriptorBufferInfo{
		buffer: buffer,
		offset: C.VkDeviceSize(offset),
		_range: C.VkDeviceSize(size),
	}

	var pinner runtime.Pinner
	defer pinner.Unpin()
	pinner.Pin(bufferInfo)

	descriptorWrite := C.VkWriteDescriptorSet{
		sType:           C.VK_STRUCTURE_TYPE_WRITE_DESCRIPTOR_SET,
		dstSet:          set,
		dstBinding:      C.uint32_t(binding),
		descriptorType:  C.VK_DESCRIPTOR_TYPE_UNIFORM_BUFFER,
		descriptorCount: 1,
		pBufferInfo:     bufferInfo,
	}

	C.vkUpdateDescriptorSets(device.Device, 1, &descriptorWrite, 0, nil)
}

func UniformBufferBinding(binding uint32, stageFlags C.VkShaderStageFlags) C.VkDescriptorSetLayoutBinding {
	return C.VkDescriptorSetLayoutBinding{
		binding:         C.uint32_t(binding),
		descriptorType:  C.VK_DESCRIPTOR_TYPE_UNIFORM_BUFFER,
		descriptorCount: 1,
		stageFlags:      stageFlags,
	}
}
