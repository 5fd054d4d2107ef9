package vulkan

/*
#include <vulkan/vulkan.h>
#include <string.h>

typedef struct {
    VkFormat format;
    VkSampleCountFlagBits samples;
    VkAttachmentLoadOp load;
    VkAttachmentStoreOp store;
    VkImageLayout initial;
    VkImageLayout final;
} AttachmentSpec;

// createRenderPass builds one subpass over up to three attachments. A
// negative index leaves that role out.
VkResult createRenderPass(VkDevice device, const AttachmentSpec* specs, uint32_t count,
                          int32_t colorIndex, int32_t depthIndex, int32_t resolveIndex,
                          VkRenderPass* out) {
    VkAttachmentDescription attachments[3];
    memset(attachments, 0, sizeof(attachments));
    for (uint32_t i = 0; i < count && i < 3; i++) {
        attachments[i].format = specs[i].format;
        attachments[i].samples = specs[i].samples;
        attachments[i].loadOp = specs[i].load;
        attachments[i].storeOp = specs[i].store;
        attachments[i].stencilLoadOp = VK_ATTACHMENT_LOAD_OP_DONT_CARE;
        attachments[i].stencilStoreOp = VK_ATTACHMENT_STORE_OP_DONT_CARE;
        attachments[i].initialLayout = specs[i].initial;
        attachments[i].finalLayout = specs[i].final;
    }

    VkAttachmentReference colorRef = {(uint32_t)colorIndex, VK_IMAGE_LAYOUT_COLOR_ATTACHMENT_OPTIMAL};
    VkAttachmentReference depthRef = {(uint32_t)depthIndex, VK_IMAGE_LAYOUT_DEPTH_STENCIL_ATTACHMENT_OPTIMAL};
    VkAttachmentReference resolveRef = {(uint32_t)resolveIndex, VK_IMAGE_LAYOUT_COLOR_ATTACHMENT_OPTIMAL};

    VkSubpassDescription subpass = {0};
    subpass.pipelineBindPoint = VK_PIPELINE_BIND_POINT_GRAPHICS;
    subpass.colorAttachmentCount = 1;
    subpass.pColorAttachments = &colorRef;
    if (depthIndex >= 0) {
        subpass.pDepthStencilAttachment = &depthRef;
    }
    if (resolveIndex >= 0) {
        subpass.pResolveAttachments = &resolveRef;
    }

    VkSubpassDependency dependencies[2];
    memset(dependencies, 0, sizeof(dependencies));
    dependencies[0].srcSubpass = VK_SUBPASS_EXTERNAL;
    dependencies[0].dstSubpass = 0;
    dependencies[0].srcStageMask = VK_PIPELINE_STAGE_COLOR_ATTACHMENT_OUTPUT_BIT | VK_PIPELINE_STAGE_EARLY_FRAGMENT_TESTS_BIT;
    dependencies[0].dstStageMask = VK_PIPELINE_STAGE_COLOR_ATTACHMENT_OUTPUT_BIT | VK_PIPELINE_STAGE_EARLY_FRAGMENT_TESTS_BIT;
    dependencies[0].dstAccessMask = VK_ACCESS_COLOR_ATTACHMENT_WRITE_BIT | VK_ACCESS_DEPTH_STENCIL_ATTACHMENT_WRITE_BIT;

    dependencies[1].srcSubpass = 0;
    dependencies[1].dstSubpass = VK_SUBPASS_EXTERNAL;
    dependencies[1].srcStageMask = VK_PIPELINE_STAGE_COLOR_ATTACHMENT_OUTPUT_BIT;
    dependencies[1].dstStageMask = VK_PIPELINE_STAGE_BOTTOM_OF_PIPE_BIT;
    dependencies[1].srcAccessMask = VK_ACCESS_COLOR_ATTACHMENT_WRITE_BIT;
    dependencies[1].dstAccessMask = VK_ACCESS_MEMORY_READ_BIT;

    VkRenderPassCreateInfo info = {0};
    info.sType = VK_STRUCTURE_TYPE_RENDER_PASS_CREATE_INFO;
    info.attachmentCount = count;
    info.pAttachments = attachments;
    info.subpassCount = 1;
    info.pSubpasses = &subpass;
    info.dependencyCount = 2;
    info.pDependencies = dependencies;
    return vkCreateRenderPass(device, &info, NULL, out);
}
*/
import "C"
import (
	"fmt"
	"runtime"

	"render-interop/interop"
)

// renderTargets is the render pass, its attachments and the framebuffer for
// one extent. The shared image is referenced, not owned.
type renderTargets struct {
	dev         *Device
	extent      interop.Extent
	renderPass  C.VkRenderPass
	framebuffer C.VkFramebuffer
	color       *Image
	depth       *Image
	sharedView  C.VkImageView
	shared      *sharedImage
	attachments int
}

func (d *Device) CreateRenderTargets(target interop.SharedSurface, plan interop.FramePlan) (interop.RenderTargets, error) {
	shared, err := asSharedImage(target)
	if err != nil {
		return nil, err
	}
	if shared.desc.Extent != plan.Extent {
		return nil, interop.NewError(interop.KindPrecondition, "create render targets", 0,
			fmt.Errorf("shared image is %s, plan is %s", shared.desc.Extent, plan.Extent))
	}

	rt := &renderTargets{dev: d, extent: plan.Extent, shared: shared, attachments: len(plan.Attachments)}
	if err := rt.build(plan); err != nil {
		rt.Destroy()
		return nil, err
	}
	return rt, nil
}

func (rt *renderTargets) build(plan interop.FramePlan) error {
	d := rt.dev
	w, h := plan.Extent.Width, plan.Extent.Height

	view, err := CreateImageView(d, rt.shared.image, rt.shared.format, C.VK_IMAGE_ASPECT_COLOR_BIT)
	if err != nil {
		return err
	}
	rt.sharedView = view

	specs := make([]C.AttachmentSpec, len(plan.Attachments))
	colorIdx, depthIdx, resolveIdx := C.int32_t(-1), C.int32_t(-1), C.int32_t(-1)
	views := make([]C.VkImageView, len(plan.Attachments))

	for i, a := range plan.Attachments {
		info, ok := a.Format.Info()
		if !ok {
			return fmt.Errorf("attachment %d: unmapped format %s", i, a.Format)
		}
		specs[i] = C.AttachmentSpec{
			format:  C.VkFormat(info.VkFormat),
			samples: C.VkSampleCountFlagBits(a.Samples),
			load:    vkLoadOp(a.Load),
			store:   vkStoreOp(a.Store),
			initial: vkLayout(a.Initial),
			final:   vkLayout(a.Final),
		}

		switch a.Role {
		case interop.AttachmentColor:
			colorIdx = C.int32_t(i)
			if a.Shared {
				views[i] = rt.sharedView
				continue
			}
			rt.color, err = CreateImage(d, w, h, specs[i].format,
				C.VK_IMAGE_USAGE_COLOR_ATTACHMENT_BIT|C.VK_IMAGE_USAGE_TRANSIENT_ATTACHMENT_BIT, specs[i].samples)
			if err != nil {
				return err
			}
			if err := rt.color.CreateView(d, C.VK_IMAGE_ASPECT_COLOR_BIT); err != nil {
				return err
			}
			views[i] = rt.color.View
		case interop.AttachmentDepth:
			depthIdx = C.int32_t(i)
			rt.depth, err = CreateImage(d, w, h, specs[i].format, C.VK_IMAGE_USAGE_DEPTH_STENCIL_ATTACHMENT_BIT, specs[i].samples)
			if err != nil {
				return err
			}
			if err := rt.depth.CreateView(d, C.VK_IMAGE_ASPECT_DEPTH_BIT); err != nil {
				return err
			}
			views[i] = rt.depth.View
		case interop.AttachmentResolve:
			resolveIdx = C.int32_t(i)
			views[i] = rt.sharedView
		}
	}
	if colorIdx < 0 {
		return fmt.Errorf("frame plan has no color attachment")
	}

	result := C.createRenderPass(d.Device, &specs[0], C.uint32_t(len(specs)), colorIdx, depthIdx, resolveIdx, &rt.renderPass)
	if result != C.VK_SUCCESS {
		return vkError(interop.KindResourceCreation, "create render pass", result)
	}

	var pinner runtime.Pinner
	defer pinner.Unpin()
	pinner.Pin(&views[0])

	framebufferInfo := C.VkFramebufferCreateInfo{
		sType:           C.VK_STRUCTURE_TYPE_FRAMEBUFFER_CREATE_INFO,
		renderPass:      rt.renderPass,
		attachmentCount: C.uint32_t(len(views)),
		pAttachments:    &views[0],
		width:           C.uint32_t(w),
		height:          C.uint32_t(h),
		layers:          1,
	}
	result = C.vkCreateFramebuffer(d.Device, &framebufferInfo, nil, &rt.framebuffer)
	if result != C.VK_SUCCESS {
		return vkError(interop.KindResourceCreation, "create framebuffer", result)
	}
	return nil
}

func (rt *renderTargets) Extent() interop.Extent { return rt.extent }

func (rt *renderTargets) Destroy() {
	d := rt.dev
	if rt.framebuffer != nil {
		C.vkDestroyFramebuffer(d.Device, rt.framebuffer, nil)
		rt.framebuffer = nil
	}
	if rt.renderPass != nil {
		C.vkDestroyRenderPass(d.Device, rt.renderPass, nil)
		rt.renderPass = nil
	}
	if rt.color != nil {
		rt.color.Destroy(d)
		rt.color = nil
	}
	if rt.depth != nil {
		rt.depth.Destroy(d)
		rt.depth = nil
	}
	if rt.sharedView != nil {
		C.vkDestroyImageView(d.Device, rt.sharedView, nil)
		rt.sharedView = nil
	}
}

func asTargets(t interop.RenderTargets) (*renderTargets, error) {
	rt, ok := t.(*renderTargets)
	if !ok {
		return nil, fmt.Errorf("render targets of type %T were not created by this device", t)
	}
	return rt, nil
}

func vkLoadOp(op interop.LoadOp) C.VkAttachmentLoadOp {
	switch op {
	case interop.LoadOpLoad:
		return C.VK_ATTACHMENT_LOAD_OP_LOAD
	case interop.LoadOpDontCare:
		return C.VK_ATTACHMENT_LOAD_OP_DONT_CARE
	default:
		return C.VK_ATTACHMENT_LOAD_OP_CLEAR
	}
}

func vkStoreOp(op interop.StoreOp) C.VkAttachmentStoreOp {
	if op == interop.StoreOpDontCare {
		return C.VK_ATTACHMENT_STORE_OP_DONT_CARE
	}
	return C.VK_ATTACHMENT_STORE_OP_STORE
}

// vkLayout maps the shared layout to GENERAL, the layout other APIs expect
// for externally shared images.
func vkLayout(l interop.Layout) C.VkImageLayout {
	switch l {
	case interop.LayoutColorAttachment:
		return C.VK_IMAGE_LAYOUT_COLOR_ATTACHMENT_OPTIMAL
	case interop.LayoutDepthAttachment:
		return C.VK_IMAGE_LAYOUT_DEPTH_STENCIL_ATTACHMENT_OPTIMAL
	case interop.LayoutShared:
		return C.VK_IMAGE_LAYOUT_GENERAL
	default:
		return C.VK_IMAGE_LAYOUT_UNDEFINED
	}
}
