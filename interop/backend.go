package interop

import (
	"image"
	"time"

	"render-interop/core"
)

// The interfaces below are the step-level calls each graphics API backend
// provides. The core only sequences them; objects returned by a backend are
// handed back to the same backend, which type-asserts its own types.

// Context is one API's device context. It outlives everything created on it.
type Context interface {
	API() API
	WaitIdle() error
	Destroy()
}

// QueueFamily describes one queue family of a physical device.
type QueueFamily struct {
	Index    uint32
	Count    uint32
	Graphics bool
	Compute  bool
	Transfer bool
}

// PhysicalDevice is a probing candidate.
type PhysicalDevice struct {
	Index         int
	Name          string
	Discrete      bool
	QueueFamilies []QueueFamily
	Extensions    []string
	LUID          LUID
	LUIDValid     bool
	// SampleCounts is the set usable for color and depth framebuffers.
	SampleCounts SampleMask
}

// GraphicsQueueFamily returns the first family with graphics support.
func (d PhysicalDevice) GraphicsQueueFamily() (uint32, bool) {
	for _, q := range d.QueueFamilies {
		if q.Graphics && q.Count > 0 {
			return q.Index, true
		}
	}
	return 0, false
}

func (d PhysicalDevice) HasExtension(name string) bool {
	for _, e := range d.Extensions {
		if e == name {
			return true
		}
	}
	return false
}

// ExternalImageQuery is the input of an external image capability query.
type ExternalImageQuery struct {
	Format     Format
	Usage      Usage
	Tiling     Tiling
	HandleType HandleType
}

// ExternalMemoryFeatures mirrors VkExternalMemoryFeatureFlagBits.
type ExternalMemoryFeatures uint32

const (
	FeatureDedicatedOnly ExternalMemoryFeatures = 0x1
	FeatureExportable    ExternalMemoryFeatures = 0x2
	FeatureImportable    ExternalMemoryFeatures = 0x4
)

// ExternalImageSupport is the answer of the capability query. An empty value
// means the combination is unsupported.
type ExternalImageSupport struct {
	Features ExternalMemoryFeatures
	// CompatibleHandleTypes is a mask of HandleType.VkBit values.
	CompatibleHandleTypes uint32
	MaxExtent             Extent
}

func (s ExternalImageSupport) Compatible(h HandleType) bool {
	return s.CompatibleHandleTypes&h.VkBit() != 0
}

// Prober enumerates candidates and answers capability queries. An error from
// ExternalImageSupport is treated as "unsupported" for that candidate.
type Prober interface {
	PhysicalDevices() ([]PhysicalDevice, error)
	ExternalImageSupport(dev PhysicalDevice, q ExternalImageQuery) (ExternalImageSupport, error)
}

// SharedSurface is a backend-local view of the shared image: the render
// target on the producer, the copy source on the consumer.
type SharedSurface interface {
	Desc() ImageDesc
}

// ShareableImage is an image created with export metadata.
type ShareableImage interface {
	SharedSurface
	// AllocationSize is the bound memory size, 0 if the API does not expose it.
	AllocationSize() uint64
	Dedicated() bool
	ExportHandle() (uintptr, error)
	Destroy()
}

// Exporter creates shareable images. Implemented by whichever device owns
// the shared memory.
type Exporter interface {
	HandleCloser
	CreateShareableImage(desc ImageDesc, t HandleType) (ShareableImage, error)
}

// ImportRequest carries everything the import allocation needs.
type ImportRequest struct {
	Handle       uintptr
	HandleType   HandleType
	Requirements MemoryRequirements
	// ExporterSize is the exporter's allocation size, 0 if unknown.
	ExporterSize uint64
	Dedicated    bool
}

// ExternalImage is an image created with external-memory metadata, not yet
// backed by memory.
type ExternalImage interface {
	SharedSurface
	MemoryRequirements() (MemoryRequirements, error)
	DedicatedRequirement() (DedicatedRequirement, error)
	ImportMemory(req ImportRequest) error
	BindMemory() error
	// Destroy releases the image and any imported memory.
	Destroy()
}

// Importer creates external images.
type Importer interface {
	CreateExternalImage(desc ImageDesc, t HandleType) (ExternalImage, error)
}

// Fence is a completion fence. Wait with a timeout <= 0 blocks forever.
type Fence interface {
	Wait(timeout time.Duration) error
	Reset() error
	Destroy()
}

// MeshBuffers holds the uploaded vertex and index data.
type MeshBuffers interface {
	IndexCount() uint32
	Destroy()
}

// UniformBuffer is host-visible memory read by the vertex program.
type UniformBuffer interface {
	Size() int
	Write(data []byte) error
	Destroy()
}

// RenderTargets is the render target set: attachments and framebuffer.
type RenderTargets interface {
	Extent() Extent
	Destroy()
}

// Pipeline is the graphics pipeline and its layout.
type Pipeline interface {
	Destroy()
}

// CommandSequence is one recorded frame.
type CommandSequence interface {
	Destroy()
}

// FrameRecording is the input to command recording.
type FrameRecording struct {
	Plan     FramePlan
	Targets  RenderTargets
	Pipeline Pipeline
	// Mesh is nil when there is nothing to draw; the frame is then a clear.
	Mesh     MeshBuffers
	Uniforms UniformBuffer
}

// Selection is the outcome of device probing.
type Selection struct {
	Device      PhysicalDevice
	QueueFamily uint32
	HandleType  HandleType
	Role        Role
	Extensions  []string
	Support     ExternalImageSupport
	// IdentityChecked is false when no target LUID was available to compare.
	IdentityChecked bool
}

// DedicatedOnly reports whether the driver mandates dedicated allocation.
func (s Selection) DedicatedOnly() bool {
	return s.Support.Features&FeatureDedicatedOnly != 0
}

// ProducerDriver is the instance level of the rendering API.
type ProducerDriver interface {
	Prober
	API() API
	OpenDevice(sel Selection) (ProducerDevice, error)
	Destroy()
}

// ProducerDevice renders the scene into the shared image. It also
// implements Exporter or Importer depending on the topology.
type ProducerDevice interface {
	Context
	CreateMeshBuffers(mesh core.MeshData) (MeshBuffers, error)
	CreateUniformBuffer(size int) (UniformBuffer, error)
	CreateRenderTargets(target SharedSurface, plan FramePlan) (RenderTargets, error)
	CreatePipeline(plan FramePlan, shaders ShaderSet, targets RenderTargets, uniforms UniformBuffer) (Pipeline, error)
	RecordFrame(rec FrameRecording) (CommandSequence, error)
	CreateFence() (Fence, error)
	Submit(seq CommandSequence, fence Fence) error
}

// SurfaceSpec describes the presentation target supplied by the host.
type SurfaceSpec struct {
	// Window is the native window (HWND on Windows), 0 for offscreen.
	Window uintptr
	// Swap presents a GL window's back buffer; nil when the consumer owns
	// its own swapchain or runs offscreen.
	Swap  func()
	VSync bool
}

func (s SurfaceSpec) Offscreen() bool { return s.Window == 0 && s.Swap == nil }

// Presenter is the swapchain-like object the UI layer binds.
type Presenter interface {
	Extent() Extent
	// Native returns the platform object (IDXGISwapChain1, GL framebuffer
	// name), 0 for the software presenter.
	Native() uintptr
	Resize(size Extent) error
	Present() error
	// ReadBack copies the last composed frame to memory.
	ReadBack() (*image.RGBA, error)
	Destroy()
}

// ConsumerOptions configures the consumer device.
type ConsumerOptions struct {
	Format     Format
	HandleType HandleType
	Debug      bool
}

// ConsumerDriver is the presenting API.
type ConsumerDriver interface {
	API() API
	// HandleTypes lists what this consumer can share through.
	HandleTypes() []HandleType
	Open(opts ConsumerOptions) (ConsumerDevice, error)
	Destroy()
}

// ConsumerDevice copies the shared image to its presentation surface. It
// also implements Exporter or Importer depending on the topology.
type ConsumerDevice interface {
	Context
	AdapterLUID() (LUID, bool)
	CreatePresenter(spec SurfaceSpec, size Extent, format Format) (Presenter, error)
	CreateFence() (Fence, error)
	// Compose copies src into the presenter's back buffer and signals fence
	// once the copy has executed.
	Compose(src SharedSurface, p Presenter, fence Fence) error
}
