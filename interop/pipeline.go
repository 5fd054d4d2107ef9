package interop

import (
	"github.com/sirupsen/logrus"

	"render-interop/core"
)

type LoadOp int

const (
	LoadOpClear LoadOp = iota
	LoadOpLoad
	LoadOpDontCare
)

type StoreOp int

const (
	StoreOpStore StoreOp = iota
	StoreOpDontCare
)

// Layout is an abstract image layout. Backends without layouts ignore it.
type Layout int

const (
	LayoutUndefined Layout = iota
	LayoutColorAttachment
	LayoutDepthAttachment
	// LayoutShared is the externally visible layout the shared image is left
	// in for the other API (VK_IMAGE_LAYOUT_GENERAL).
	LayoutShared
)

type AttachmentRole int

const (
	AttachmentColor AttachmentRole = iota
	AttachmentDepth
	AttachmentResolve
)

// AttachmentDesc describes one render pass attachment.
type AttachmentDesc struct {
	Role    AttachmentRole
	Format  Format
	Samples SampleCount
	Load    LoadOp
	Store   StoreOp
	Initial Layout
	Final   Layout
	// Shared is true for the attachment backed by the shared image.
	Shared bool
}

type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

type Rect struct {
	X, Y          int32
	Width, Height uint32
}

type VertexAttribute struct {
	Location   uint32
	Offset     uint32
	Components uint32
}

type VertexLayout struct {
	Stride     uint32
	Attributes []VertexAttribute
}

// MeshVertexLayout is the layout of core.Vertex.
func MeshVertexLayout() VertexLayout {
	return VertexLayout{
		Stride: core.VertexStride,
		Attributes: []VertexAttribute{
			{Location: 0, Offset: core.VertexPositionOffset, Components: 3},
			{Location: 1, Offset: core.VertexColorOffset, Components: 3},
		},
	}
}

// FramePlan is everything size-dependent the producer needs to build render
// targets, pipeline and commands.
type FramePlan struct {
	Extent Extent
	Format Format
	// Samples is the negotiated MSAA level; >1 adds a resolve into the shared image.
	Samples     SampleCount
	Attachments []AttachmentDesc
	Viewport    Viewport
	Scissor     Rect
	Vertex      VertexLayout
	DepthTest   bool
	Clear       core.Color
}

// Attachment returns the first attachment with the given role.
func (p FramePlan) Attachment(role AttachmentRole) (AttachmentDesc, int, bool) {
	for i, a := range p.Attachments {
		if a.Role == role {
			return a, i, true
		}
	}
	return AttachmentDesc{}, -1, false
}

// SharedAttachment returns the attachment written into the shared image.
func (p FramePlan) SharedAttachment() AttachmentDesc {
	for _, a := range p.Attachments {
		if a.Shared {
			return a
		}
	}
	return AttachmentDesc{}
}

type FramePlanInput struct {
	Extent           Extent
	Format           Format
	RequestedSamples SampleCount
	SupportedSamples SampleMask
	Depth            bool
	Clear            core.Color
}

// PlanFrame computes the attachment set, viewport and scissor for one extent.
// Attachments are ordered color, depth, resolve.
func PlanFrame(in FramePlanInput) FramePlan {
	samples := ChooseSampleCount(in.RequestedSamples, in.SupportedSamples)
	plan := FramePlan{
		Extent:  in.Extent,
		Format:  in.Format,
		Samples: samples,
		Viewport: Viewport{
			Width:    float32(in.Extent.Width),
			Height:   float32(in.Extent.Height),
			MaxDepth: 1,
		},
		Scissor:   Rect{Width: in.Extent.Width, Height: in.Extent.Height},
		Vertex:    MeshVertexLayout(),
		DepthTest: in.Depth,
		Clear:     in.Clear,
	}

	color := AttachmentDesc{
		Role:    AttachmentColor,
		Format:  in.Format,
		Samples: samples,
		Load:    LoadOpClear,
		Initial: LayoutUndefined,
	}
	if samples == Samples1 {
		color.Store = StoreOpStore
		color.Final = LayoutShared
		color.Shared = true
	} else {
		color.Store = StoreOpDontCare
		color.Final = LayoutColorAttachment
	}
	plan.Attachments = append(plan.Attachments, color)

	if in.Depth {
		plan.Attachments = append(plan.Attachments, AttachmentDesc{
			Role:    AttachmentDepth,
			Format:  FormatD32Float,
			Samples: samples,
			Load:    LoadOpClear,
			Store:   StoreOpDontCare,
			Initial: LayoutUndefined,
			Final:   LayoutDepthAttachment,
		})
	}

	if samples != Samples1 {
		plan.Attachments = append(plan.Attachments, AttachmentDesc{
			Role:    AttachmentResolve,
			Format:  in.Format,
			Samples: Samples1,
			Load:    LoadOpDontCare,
			Store:   StoreOpStore,
			Initial: LayoutUndefined,
			Final:   LayoutShared,
			Shared:  true,
		})
	}
	return plan
}

// FrameResources are the size-dependent producer objects.
type FrameResources struct {
	Plan     FramePlan
	Targets  RenderTargets
	Pipeline Pipeline
	Commands CommandSequence
}

// PipelineBuilder creates and destroys the size-dependent producer objects.
// It never patches: a new extent gets new objects.
type PipelineBuilder struct {
	dev     ProducerDevice
	shaders ShaderSet
	log     logrus.FieldLogger

	created   int
	destroyed int
}

func NewPipelineBuilder(dev ProducerDevice, shaders ShaderSet, log logrus.FieldLogger) *PipelineBuilder {
	return &PipelineBuilder{dev: dev, shaders: shaders, log: log.WithField("component", "pipeline")}
}

// Build creates render targets over target, then the pipeline, then records
// the frame. mesh may be nil for a clear-only frame.
func (b *PipelineBuilder) Build(target SharedSurface, plan FramePlan, mesh MeshBuffers, uniforms UniformBuffer) (*FrameResources, error) {
	targets, err := b.dev.CreateRenderTargets(target, plan)
	if err != nil {
		return nil, wrap(KindResourceCreation, "create render targets", err)
	}
	b.created++

	pipeline, err := b.dev.CreatePipeline(plan, b.shaders, targets, uniforms)
	if err != nil {
		targets.Destroy()
		b.destroyed++
		return nil, wrap(KindResourceCreation, "create graphics pipeline", err)
	}

	cmds, err := b.dev.RecordFrame(FrameRecording{
		Plan:     plan,
		Targets:  targets,
		Pipeline: pipeline,
		Mesh:     mesh,
		Uniforms: uniforms,
	})
	if err != nil {
		pipeline.Destroy()
		targets.Destroy()
		b.destroyed++
		return nil, wrap(KindResourceCreation, "record frame commands", err)
	}

	b.log.WithFields(logrus.Fields{
		"width":   plan.Extent.Width,
		"height":  plan.Extent.Height,
		"samples": plan.Samples,
	}).Debug("frame resources built")
	return &FrameResources{Plan: plan, Targets: targets, Pipeline: pipeline, Commands: cmds}, nil
}

// DestroyTargets destroys the command sequence then the render targets.
func (b *PipelineBuilder) DestroyTargets(fr *FrameResources) {
	if fr.Commands != nil {
		fr.Commands.Destroy()
		fr.Commands = nil
	}
	if fr.Targets != nil {
		fr.Targets.Destroy()
		fr.Targets = nil
		b.destroyed++
	}
}

func (b *PipelineBuilder) DestroyPipeline(fr *FrameResources) {
	if fr.Pipeline != nil {
		fr.Pipeline.Destroy()
		fr.Pipeline = nil
	}
}

// Counts returns how many render target sets were created and destroyed.
func (b *PipelineBuilder) Counts() (created, destroyed int) {
	return b.created, b.destroyed
}
