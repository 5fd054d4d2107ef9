package vulkan

/*
#include <vulkan/vulkan.h>
#include <stdlib.h>
#include <string.h>

VkResult createShaderModule(VkDevice device, const void* code, size_t size, VkShaderModule* out) {
    VkShaderModuleCreateInfo createInfo = {0};
    createInfo.sType = VK_STRUCTURE_TYPE_SHADER_MODULE_CREATE_INFO;
    createInfo.codeSize = size;
    createInfo.pCode = (const uint32_t*)code;
    return vkCreateShaderModule(device, &createInfo, NULL, out);
}

#define MAX_VERTEX_ATTRIBUTES 8

typedef struct {
    VkShaderModule vert;
    VkShaderModule frag;
    const char* entry;
    VkPipelineLayout layout;
    VkRenderPass renderPass;
    uint32_t stride;
    uint32_t attributeCount;
    VkVertexInputAttributeDescription attributes[MAX_VERTEX_ATTRIBUTES];
    VkSampleCountFlagBits samples;
    VkBool32 depthTest;
    VkViewport viewport;
    VkRect2D scissor;
} PipelineSpec;

VkResult createGraphicsPipeline(VkDevice device, const PipelineSpec* spec, VkPipeline* out) {
    VkPipelineShaderStageCreateInfo stages[2];
    memset(stages, 0, sizeof(stages));
    stages[0].sType = VK_STRUCTURE_TYPE_PIPELINE_SHADER_STAGE_CREATE_INFO;
    stages[0].stage = VK_SHADER_STAGE_VERTEX_BIT;
    stages[0].module = spec->vert;
    stages[0].pName = spec->entry;
    stages[1].sType = VK_STRUCTURE_TYPE_PIPELINE_SHADER_STAGE_CREATE_INFO;
    stages[1].stage = VK_SHADER_STAGE_FRAGMENT_BIT;
    stages[1].module = spec->frag;
    stages[1].pName = spec->entry;

    VkVertexInputBindingDescription binding = {0};
    binding.binding = 0;
    binding.stride = spec->stride;
    binding.inputRate = VK_VERTEX_INPUT_RATE_VERTEX;

    VkPipelineVertexInputStateCreateInfo vertexInput = {0};
    vertexInput.sType = VK_STRUCTURE_TYPE_PIPELINE_VERTEX_INPUT_STATE_CREATE_INFO;
    vertexInput.vertexBindingDescriptionCount = 1;
    vertexInput.pVertexBindingDescriptions = &binding;
    vertexInput.vertexAttributeDescriptionCount = spec->attributeCount;
    vertexInput.pVertexAttributeDescriptions = spec->attributes;

    VkPipelineInputAssemblyStateCreateInfo inputAssembly = {0};
    inputAssembly.sType = VK_STRUCTURE_TYPE_PIPELINE_INPUT_ASSEMBLY_STATE_CREATE_INFO;
    inputAssembly.topology = VK_PRIMITIVE_TOPOLOGY_TRIANGLE_LIST;

    VkPipelineViewportStateCreateInfo viewportState = {0};
    viewportState.sType = VK_STRUCTURE_TYPE_PIPELINE_VIEWPORT_STATE_CREATE_INFO;
    viewportState.viewportCount = 1;
    viewportState.pViewports = &spec->viewport;
    viewportState.scissorCount = 1;
    viewportState.pScissors = &spec->scissor;

    VkPipelineRasterizationStateCreateInfo rasterizer = {0};
    rasterizer.sType = VK_STRUCTURE_TYPE_PIPELINE_RASTERIZATION_STATE_CREATE_INFO;
    rasterizer.polygonMode = VK_POLYGON_MODE_FILL;
    rasterizer.lineWidth = 1.0f;
    rasterizer.cullMode = VK_CULL_MODE_NONE;
    rasterizer.frontFace = VK_FRONT_FACE_COUNTER_CLOCKWISE;

    VkPipelineMultisampleStateCreateInfo multisampling = {0};
    multisampling.sType = VK_STRUCTURE_TYPE_PIPELINE_MULTISAMPLE_STATE_CREATE_INFO;
    multisampling.rasterizationSamples = spec->samples;

    VkPipelineDepthStencilStateCreateInfo depthStencil = {0};
    depthStencil.sType = VK_STRUCTURE_TYPE_PIPELINE_DEPTH_STENCIL_STATE_CREATE_INFO;
    depthStencil.depthTestEnable = spec->depthTest;
    depthStencil.depthWriteEnable = spec->depthTest;
    depthStencil.depthCompareOp = VK_COMPARE_OP_LESS;

    VkPipelineColorBlendAttachmentState blendAttachment = {0};
    blendAttachment.colorWriteMask = VK_COLOR_COMPONENT_R_BIT | VK_COLOR_COMPONENT_G_BIT |
        VK_COLOR_COMPONENT_B_BIT | VK_COLOR_COMPONENT_A_BIT;

    VkPipelineColorBlendStateCreateInfo colorBlending = {0};
    colorBlending.sType = VK_STRUCTURE_TYPE_PIPELINE_COLOR_BLEND_STATE_CREATE_INFO;
    colorBlending.attachmentCount = 1;
    colorBlending.pAttachments = &blendAttachment;

    VkGraphicsPipelineCreateInfo pipelineInfo = {0};
    pipelineInfo.sType = VK_STRUCTURE_TYPE_GRAPHICS_PIPELINE_CREATE_INFO;
    pipelineInfo.stageCount = 2;
    pipelineInfo.pStages = stages;
    pipelineInfo.pVertexInputState = &vertexInput;
    pipelineInfo.pInputAssemblyState = &inputAssembly;
    pipelineInfo.pViewportState = &viewportState;
    pipelineInfo.pRasterizationState = &rasterizer;
    pipelineInfo.pMultisampleState = &multisampling;
    pipelineInfo.pDepthStencilState = &depthStencil;
    pipelineInfo.pColorBlendState = &colorBlending;
    pipelineInfo.layout = spec->layout;
    pipelineInfo.renderPass = spec->renderPass;
    pipelineInfo.subpass = 0;

    return vkCreateGraphicsPipelines(device, VK_NULL_HANDLE, 1, &pipelineInfo, NULL, out);
}
*/
import "C"
import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/sirupsen/logrus"

	"render-interop/interop"
)

// pipeline owns the graphics pipeline, its layout and the descriptor set
// bound to the uniform buffer.
type pipeline struct {
	dev       *Device
	handle    C.VkPipeline
	layout    C.VkPipelineLayout
	setLayout C.VkDescriptorSetLayout
	pool      *DescriptorPool
	set       C.VkDescriptorSet
	vert      C.VkShaderModule
	frag      C.VkShaderModule
}

func (d *Device) CreatePipeline(plan interop.FramePlan, shaders interop.ShaderSet, targets interop.RenderTargets, uniforms interop.UniformBuffer) (interop.Pipeline, error) {
	rt, err := asTargets(targets)
	if err != nil {
		return nil, err
	}
	ub, err := asUniforms(uniforms)
	if err != nil {
		return nil, err
	}
	if len(plan.Vertex.Attributes) > C.MAX_VERTEX_ATTRIBUTES {
		return nil, fmt.Errorf("vertex layout has %d attributes, at most %d supported",
			len(plan.Vertex.Attributes), C.MAX_VERTEX_ATTRIBUTES)
	}

	p := &pipeline{dev: d}
	if err := p.build(plan, shaders, rt, ub); err != nil {
		p.Destroy()
		return nil, err
	}
	d.log.WithFields(logrus.Fields{
		"samples":    plan.Samples,
		"depth_test": plan.DepthTest,
	}).Debug("graphics pipeline created")
	return p, nil
}

func (p *pipeline) build(plan interop.FramePlan, shaders interop.ShaderSet, rt *renderTargets, ub *uniformBuffer) error {
	d := p.dev
	var err error

	if p.vert, err = createShaderModule(d, "vertex", shaders.Vertex); err != nil {
		return err
	}
	if p.frag, err = createShaderModule(d, "fragment", shaders.Fragment); err != nil {
		return err
	}

	bindings := []C.VkDescriptorSetLayoutBinding{UniformBufferBinding(0, C.VK_SHADER_STAGE_VERTEX_BIT)}
	if p.setLayout, err = CreateDescriptorSetLayout(d, bindings); err != nil {
		return err
	}
	poolSizes := []C.VkDescriptorPoolSize{{_type: C.VK_DESCRIPTOR_TYPE_UNIFORM_BUFFER, descriptorCount: 1}}
	if p.pool, err = CreateDescriptorPool(d, poolSizes, 1); err != nil {
		return err
	}
	if p.set, err = p.pool.Allocate(d, p.setLayout); err != nil {
		return err
	}
	UpdateDescriptorSetBuffer(d, p.set, 0, ub.buf.Handle, 0, ub.buf.Size)

	var pinner runtime.Pinner
	defer pinner.Unpin()
	pinner.Pin(&p.setLayout)

	layoutInfo := C.VkPipelineLayoutCreateInfo{
		sType:          C.VK_STRUCTURE_TYPE_PIPELINE_LAYOUT_CREATE_INFO,
		setLayoutCount: 1,
		pSetLayouts:    &p.setLayout,
	}
	if result := C.vkCreatePipelineLayout(d.Device, &layoutInfo, nil, &p.layout); result != C.VK_SUCCESS {
		return vkError(interop.KindResourceCreation, "create pipeline layout", result)
	}

	entry := C.CString(shaders.Entry())
	defer C.free(unsafe.Pointer(entry))

	spec := C.PipelineSpec{
		vert:           p.vert,
		frag:           p.frag,
		entry:          entry,
		layout:         p.layout,
		renderPass:     rt.renderPass,
		stride:         C.uint32_t(plan.Vertex.Stride),
		attributeCount: C.uint32_t(len(plan.Vertex.Attributes)),
		samples:        C.VkSampleCountFlagBits(plan.Samples),
		depthTest:      vkBool(plan.DepthTest),
		viewport: C.VkViewport{
			x:        C.float(plan.Viewport.X),
			y:        C.float(plan.Viewport.Y),
			width:    C.float(plan.Viewport.Width),
			height:   C.float(plan.Viewport.Height),
			minDepth: C.float(plan.Viewport.MinDepth),
			maxDepth: C.float(plan.Viewport.MaxDepth),
		},
		scissor: C.VkRect2D{
			offset: C.VkOffset2D{x: C.int32_t(plan.Scissor.X), y: C.int32_t(plan.Scissor.Y)},
			extent: C.VkExtent2D{width: C.uint32_t(plan.Scissor.Width), height: C.uint32_t(plan.Scissor.Height)},
		},
	}
	for i, a := range plan.Vertex.Attributes {
		format, err := vertexFormat(a.Components)
		if err != nil {
			return err
		}
		spec.attributes[i] = C.VkVertexInputAttributeDescription{
			location: C.uint32_t(a.Location),
			binding:  0,
			format:   format,
			offset:   C.uint32_t(a.Offset),
		}
	}

	if result := C.createGraphicsPipeline(d.Device, &spec, &p.handle); result != C.VK_SUCCESS {
		return vkError(interop.KindResourceCreation, "create graphics pipeline", result)
	}
	return nil
}

func (p *pipeline) Destroy() {
	d := p.dev
	if p.handle != nil {
		C.vkDestroyPipeline(d.Device, p.handle, nil)
		p.handle = nil
	}
	if p.layout != nil {
		C.vkDestroyPipelineLayout(d.Device, p.layout, nil)
		p.layout = nil
	}
	if p.pool != nil {
		p.pool.Destroy(d)
		p.pool = nil
	}
	if p.setLayout != nil {
		C.vkDestroyDescriptorSetLayout(d.Device, p.setLayout, nil)
		p.setLayout = nil
	}
	if p.vert != nil {
		C.vkDestroyShaderModule(d.Device, p.vert, nil)
		p.vert = nil
	}
	if p.frag != nil {
		C.vkDestroyShaderModule(d.Device, p.frag, nil)
		p.frag = nil
	}
}

// createShaderModule copies SPIR-V into C memory; the word stream must be
// non-empty and 4-byte aligned in length.
func createShaderModule(d *Device, stage string, code []byte) (C.VkShaderModule, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return nil, interop.NewError(interop.KindResourceCreation, "create "+stage+" shader module", 0,
			fmt.Errorf("SPIR-V length %d is not a positive multiple of 4", len(code)))
	}
	ptr := C.CBytes(code)
	defer C.free(ptr)

	var module C.VkShaderModule
	result := C.createShaderModule(d.Device, ptr, C.size_t(len(code)), &module)
	if result != C.VK_SUCCESS {
		return nil, vkError(interop.KindResourceCreation, "create "+stage+" shader module", result)
	}
	return module, nil
}

func vertexFormat(components uint32) (C.VkFormat, error) {
	switch components {
	case 1:
		return C.VK_FORMAT_R32_SFLOAT, nil
	case 2:
		return C.VK_FORMAT_R32G32_SFLOAT, nil
	case 3:
		return C.VK_FORMAT_R32G32B32_SFLOAT, nil
	case 4:
		return C.VK_FORMAT_R32G32B32A32_SFLOAT, nil
	}
	return 0, fmt.Errorf("unsupported vertex attribute width %d", components)
}

func asPipeline(p interop.Pipeline) (*pipeline, error) {
	pl, ok := p.(*pipeline)
	if !ok {
		return nil, fmt.Errorf("pipeline of type %T was not created by this device", p)
	}
	return pl, nil
}
