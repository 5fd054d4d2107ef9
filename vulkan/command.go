package vulkan

/*
#include <vulkan/vulkan.h>
#include <string.h>

// beginRenderPass clears the color attachment to rgba and the depth
// attachment to 1.0. Resolve attachments take no clear value but still need
// a slot.
void beginRenderPass(VkCommandBuffer cmd, VkRenderPass renderPass, VkFramebuffer framebuffer,
                     uint32_t width, uint32_t height, const float* rgba,
                     uint32_t attachmentCount, int32_t depthIdx) {
    VkClearValue clears[4];
    memset(clears, 0, sizeof(clears));
    for (uint32_t i = 0; i < attachmentCount && i < 4; i++) {
        if ((int32_t)i == depthIdx) {
            clears[i].depthStencil.depth = 1.0f;
            clears[i].depthStencil.stencil = 0;
        } else {
            memcpy(clears[i].color.float32, rgba, sizeof(float) * 4);
        }
    }

    VkRenderPassBeginInfo info = {0};
    info.sType = VK_STRUCTURE_TYPE_RENDER_PASS_BEGIN_INFO;
    info.renderPass = renderPass;
    info.framebuffer = framebuffer;
    info.renderArea.extent.width = width;
    info.renderArea.extent.height = height;
    info.clearValueCount = attachmentCount;
    info.pClearValues = clears;
    vkCmdBeginRenderPass(cmd, &info, VK_SUBPASS_CONTENTS_INLINE);
}

void sharedImageBarrier(VkCommandBuffer cmd, VkImage image,
                        uint32_t srcFamily, uint32_t dstFamily,
                        VkImageLayout oldLayout, VkImageLayout newLayout,
                        VkAccessFlags srcAccess, VkAccessFlags dstAccess,
                        VkPipelineStageFlags srcStage, VkPipelineStageFlags dstStage) {
    VkImageMemoryBarrier barrier = {0};
    barrier.sType = VK_STRUCTURE_TYPE_IMAGE_MEMORY_BARRIER;
    barrier.oldLayout = oldLayout;
    barrier.newLayout = newLayout;
    barrier.srcQueueFamilyIndex = srcFamily;
    barrier.dstQueueFamilyIndex = dstFamily;
    barrier.image = image;
    barrier.subresourceRange.aspectMask = VK_IMAGE_ASPECT_COLOR_BIT;
    barrier.subresourceRange.levelCount = 1;
    barrier.subresourceRange.layerCount = 1;
    barrier.srcAccessMask = srcAccess;
    barrier.dstAccessMask = dstAccess;
    vkCmdPipelineBarrier(cmd, srcStage, dstStage, 0, 0, NULL, 0, NULL, 1, &barrier);
}

void bindMesh(VkCommandBuffer cmd, VkBuffer vertices, VkBuffer indices) {
    VkDeviceSize offset = 0;
    vkCmdBindVertexBuffers(cmd, 0, 1, &vertices, &offset);
    vkCmdBindIndexBuffer(cmd, indices, 0, VK_INDEX_TYPE_UINT32);
}
*/
import "C"
import (
	"fmt"

	"render-interop/interop"
)

type CommandBuffer struct {
	Handle C.VkCommandBuffer
}

func AllocateCommandBuffer(device *Device) (*CommandBuffer, error) {
	allocInfo := C.VkCommandBufferAllocateInfo{
		sType:              C.VK_STRUCTURE_TYPE_COMMAND_BUFFER_ALLOCATE_INFO,
		commandPool:        device.CommandPool,
		level:              C.VK_COMMAND_BUFFER_LEVEL_PRIMARY,
		commandBufferCount: 1,
	}

	cb := &CommandBuffer{}
	result := C.vkAllocateCommandBuffers(device.Device, &allocInfo, &cb.Handle)
	if result != C.VK_SUCCESS {
		return nil, vkError(interop.KindResourceCreation, "allocate command buffer", result)
	}
	return cb, nil
}

// Begin starts a recording that may be submitted many times.
func (cb *CommandBuffer) Begin() error {
	beginInfo := C.VkCommandBufferBeginInfo{
		sType: C.VK_STRUCTURE_TYPE_COMMAND_BUFFER_BEGIN_INFO,
	}
	result := C.vkBeginCommandBuffer(cb.Handle, &beginInfo)
	if result != C.VK_SUCCESS {
		return vkError(interop.KindResourceCreation, "begin recording command buffer", result)
	}
	return nil
}

func (cb *CommandBuffer) End() error {
	result := C.vkEndCommandBuffer(cb.Handle)
	if result != C.VK_SUCCESS {
		return vkError(interop.KindResourceCreation, "end recording command buffer", result)
	}
	return nil
}

func (cb *CommandBuffer) Free(device *Device) {
	if cb.Handle != nil {
		C.vkFreeCommandBuffers(device.Device, device.CommandPool, 1, &cb.Handle)
		cb.Handle = nil
	}
}

// commandSequence is one recorded frame, replayed on every submit until the
// extent changes.
type commandSequence struct {
	dev *Device
	cb  *CommandBuffer
}

// RecordFrame records: acquire the shared image from the external queue
// family, run the render pass, then release it back.
func (d *Device) RecordFrame(rec interop.FrameRecording) (interop.CommandSequence, error) {
	rt, err := asTargets(rec.Targets)
	if err != nil {
		return nil, err
	}
	pl, err := asPipeline(rec.Pipeline)
	if err != nil {
		return nil, err
	}
	mesh, err := asMesh(rec.Mesh)
	if err != nil {
		return nil, err
	}

	cb, err := AllocateCommandBuffer(d)
	if err != nil {
		return nil, err
	}
	seq := &commandSequence{dev: d, cb: cb}
	if err := cb.Begin(); err != nil {
		seq.Destroy()
		return nil, err
	}

	image := rt.shared.image
	C.sharedImageBarrier(cb.Handle, image,
		C.VK_QUEUE_FAMILY_EXTERNAL, C.uint32_t(d.GraphicsFamily),
		C.VK_IMAGE_LAYOUT_UNDEFINED, C.VK_IMAGE_LAYOUT_GENERAL,
		0, C.VK_ACCESS_COLOR_ATTACHMENT_WRITE_BIT,
		C.VK_PIPELINE_STAGE_TOP_OF_PIPE_BIT, C.VK_PIPELINE_STAGE_COLOR_ATTACHMENT_OUTPUT_BIT)

	_, depthIdx, _ := rec.Plan.Attachment(interop.AttachmentDepth)
	cc := rec.Plan.Clear
	rgba := [4]C.float{C.float(cc.R), C.float(cc.G), C.float(cc.B), C.float(cc.A)}
	C.beginRenderPass(cb.Handle, rt.renderPass, rt.framebuffer,
		C.uint32_t(rt.extent.Width), C.uint32_t(rt.extent.Height), &rgba[0],
		C.uint32_t(rt.attachments), C.int32_t(depthIdx))

	if mesh != nil {
		C.vkCmdBindPipeline(cb.Handle, C.VK_PIPELINE_BIND_POINT_GRAPHICS, pl.handle)
		C.vkCmdBindDescriptorSets(cb.Handle, C.VK_PIPELINE_BIND_POINT_GRAPHICS, pl.layout, 0, 1, &pl.set, 0, nil)
		C.bindMesh(cb.Handle, mesh.vertices.Handle, mesh.indices.Handle)
		C.vkCmdDrawIndexed(cb.Handle, C.uint32_t(mesh.indexCount), 1, 0, 0, 0)
	}
	C.vkCmdEndRenderPass(cb.Handle)

	C.sharedImageBarrier(cb.Handle, image,
		C.uint32_t(d.GraphicsFamily), C.VK_QUEUE_FAMILY_EXTERNAL,
		C.VK_IMAGE_LAYOUT_GENERAL, C.VK_IMAGE_LAYOUT_GENERAL,
		C.VK_ACCESS_COLOR_ATTACHMENT_WRITE_BIT, 0,
		C.VK_PIPELINE_STAGE_COLOR_ATTACHMENT_OUTPUT_BIT, C.VK_PIPELINE_STAGE_BOTTOM_OF_PIPE_BIT)

	if err := cb.End(); err != nil {
		seq.Destroy()
		return nil, err
	}
	return seq, nil
}

func (s *commandSequence) Destroy() {
	if s.cb != nil {
		s.cb.Free(s.dev)
		s.cb = nil
	}
}

func asSequence(s interop.CommandSequence) (*commandSequence, error) {
	seq, ok := s.(*commandSequence)
	if !ok {
		return nil, fmt.Errorf("command sequence of type %T was not recorded by this device", s)
	}
	return seq, nil
}
