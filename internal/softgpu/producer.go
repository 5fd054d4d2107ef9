package softgpu

import (
	"errors"
	"fmt"
	"sync"

	"render-interop/core"
	"render-interop/interop"
)

// ProducerDriver enumerates the System's adapters and opens rendering devices.
type ProducerDriver struct {
	sys       *System
	destroyed bool
}

func (d *ProducerDriver) API() interop.API { return interop.APISoftware }

func (d *ProducerDriver) PhysicalDevices() ([]interop.PhysicalDevice, error) {
	out := make([]interop.PhysicalDevice, len(d.sys.adapters))
	for i, a := range d.sys.adapters {
		pd := interop.PhysicalDevice{
			Index:        i,
			Name:         a.Name,
			Extensions:   a.Extensions,
			LUID:         a.LUID,
			LUIDValid:    a.LUIDValid,
			SampleCounts: a.SampleCounts,
		}
		pd.QueueFamilies = []interop.QueueFamily{{Index: 0, Count: 1, Graphics: !a.NoGraphics, Compute: true, Transfer: true}}
		out[i] = pd
	}
	return out, nil
}

func (d *ProducerDriver) ExternalImageSupport(dev interop.PhysicalDevice, q interop.ExternalImageQuery) (interop.ExternalImageSupport, error) {
	if dev.Index < 0 || dev.Index >= len(d.sys.adapters) {
		return interop.ExternalImageSupport{}, fmt.Errorf("unknown device %d", dev.Index)
	}
	a := d.sys.adapters[dev.Index]
	if !a.supportsFormat(q.Format) || !a.supportsHandle(q.HandleType) {
		return interop.ExternalImageSupport{}, nil
	}
	var mask uint32
	for _, h := range a.HandleTypes {
		mask |= h.VkBit()
	}
	features := interop.FeatureImportable | interop.FeatureExportable
	if a.DedicatedOnly {
		features |= interop.FeatureDedicatedOnly
	}
	return interop.ExternalImageSupport{
		Features:              features,
		CompatibleHandleTypes: mask,
		MaxExtent:             interop.Extent{Width: 16384, Height: 16384},
	}, nil
}

func (d *ProducerDriver) OpenDevice(sel interop.Selection) (interop.ProducerDevice, error) {
	if sel.Device.Index < 0 || sel.Device.Index >= len(d.sys.adapters) {
		return nil, fmt.Errorf("unknown device %d", sel.Device.Index)
	}
	a := d.sys.adapters[sel.Device.Index]
	d.sys.track("device")
	return &ProducerDevice{
		memoryOps: memoryOps{sys: d.sys, adapter: a, reportSize: true},
		queue:     newQueue(),
	}, nil
}

func (d *ProducerDriver) Destroy() {
	if d.destroyed {
		return
	}
	d.destroyed = true
	d.sys.untrack("instance")
}

// ProducerDevice renders into shared images on its queue goroutine. It both
// exports (producer-owned) and imports (consumer-owned) shared memory.
type ProducerDevice struct {
	memoryOps
	queue     *queue
	destroyed bool
}

func (p *ProducerDevice) API() interop.API { return interop.APISoftware }

func (p *ProducerDevice) WaitIdle() error {
	p.queue.idle()
	return nil
}

func (p *ProducerDevice) Destroy() {
	if p.destroyed {
		return
	}
	p.destroyed = true
	p.queue.stop()
	p.sys.untrack("device")
}

type meshBuffers struct {
	sys       *System
	vertices  []core.Vertex
	indices   []uint32
	destroyed bool
}

func (m *meshBuffers) IndexCount() uint32 { return uint32(len(m.indices)) }

func (m *meshBuffers) Destroy() {
	if !m.destroyed {
		m.destroyed = true
		m.sys.untrack("buffer")
		m.sys.untrack("buffer")
	}
}

func (p *ProducerDevice) CreateMeshBuffers(mesh core.MeshData) (interop.MeshBuffers, error) {
	if len(mesh.Vertices) == 0 || len(mesh.Indices) == 0 {
		return nil, errors.New("empty mesh")
	}
	p.sys.track("buffer")
	p.sys.track("buffer")
	return &meshBuffers{
		sys:      p.sys,
		vertices: append([]core.Vertex(nil), mesh.Vertices...),
		indices:  append([]uint32(nil), mesh.Indices...),
	}, nil
}

type uniformBuffer struct {
	sys       *System
	mu        sync.Mutex
	data      []byte
	destroyed bool
}

func (u *uniformBuffer) Size() int { return len(u.data) }

func (u *uniformBuffer) Write(data []byte) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if len(data) > len(u.data) {
		return fmt.Errorf("uniform write of %d bytes exceeds buffer of %d", len(data), len(u.data))
	}
	copy(u.data, data)
	return nil
}

func (u *uniformBuffer) snapshot() []byte {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]byte(nil), u.data...)
}

func (u *uniformBuffer) Destroy() {
	if !u.destroyed {
		u.destroyed = true
		u.sys.untrack("buffer")
	}
}

func (p *ProducerDevice) CreateUniformBuffer(size int) (interop.UniformBuffer, error) {
	p.sys.track("buffer")
	return &uniformBuffer{sys: p.sys, data: make([]byte, size)}, nil
}

type renderTargets struct {
	sys       *System
	target    *image
	plan      interop.FramePlan
	raster    *raster
	destroyed bool
}

func (r *renderTargets) Extent() interop.Extent { return r.plan.Extent }

func (r *renderTargets) Destroy() {
	if !r.destroyed {
		r.destroyed = true
		r.sys.untrack("render-targets")
	}
}

func (p *ProducerDevice) CreateRenderTargets(target interop.SharedSurface, plan interop.FramePlan) (interop.RenderTargets, error) {
	img, err := asImage(target)
	if err != nil {
		return nil, err
	}
	if img.desc.Extent != plan.Extent {
		return nil, fmt.Errorf("render target extent %s differs from shared image %s", plan.Extent, img.desc.Extent)
	}
	if !p.adapter.SampleCounts.Has(plan.Samples) {
		return nil, fmt.Errorf("%d samples not supported", plan.Samples)
	}
	p.sys.track("render-targets")
	return &renderTargets{sys: p.sys, target: img, plan: plan, raster: newRaster(plan)}, nil
}

type pipeline struct {
	sys       *System
	plan      interop.FramePlan
	destroyed bool
}

func (pl *pipeline) Destroy() {
	if !pl.destroyed {
		pl.destroyed = true
		pl.sys.untrack("pipeline")
	}
}

func (p *ProducerDevice) CreatePipeline(plan interop.FramePlan, shaders interop.ShaderSet, targets interop.RenderTargets, uniforms interop.UniformBuffer) (interop.Pipeline, error) {
	if p.sys.getFaults().FailPipeline {
		return nil, errors.New("pipeline creation rejected by driver")
	}
	if _, ok := targets.(*renderTargets); !ok {
		return nil, fmt.Errorf("render targets %T do not belong to softgpu", targets)
	}
	p.sys.track("pipeline")
	return &pipeline{sys: p.sys, plan: plan}, nil
}

type commandSequence struct {
	sys       *System
	targets   *renderTargets
	mesh      *meshBuffers
	uniforms  *uniformBuffer
	clear     core.Color
	destroyed bool
}

func (c *commandSequence) Destroy() {
	if !c.destroyed {
		c.destroyed = true
		c.sys.untrack("commands")
	}
}

func (p *ProducerDevice) RecordFrame(rec interop.FrameRecording) (interop.CommandSequence, error) {
	rt, ok := rec.Targets.(*renderTargets)
	if !ok {
		return nil, fmt.Errorf("render targets %T do not belong to softgpu", rec.Targets)
	}
	ub, ok := rec.Uniforms.(*uniformBuffer)
	if !ok {
		return nil, fmt.Errorf("uniform buffer %T does not belong to softgpu", rec.Uniforms)
	}
	seq := &commandSequence{sys: p.sys, targets: rt, uniforms: ub, clear: rec.Plan.Clear}
	if rec.Mesh != nil {
		mb, ok := rec.Mesh.(*meshBuffers)
		if !ok {
			return nil, fmt.Errorf("mesh buffers %T do not belong to softgpu", rec.Mesh)
		}
		seq.mesh = mb
	}
	p.sys.track("commands")
	return seq, nil
}

func (p *ProducerDevice) CreateFence() (interop.Fence, error) {
	return newFence(p.sys), nil
}

// Submit queues the frame; fence is signaled after the resolve into the
// shared image has been written.
func (p *ProducerDevice) Submit(seq interop.CommandSequence, f interop.Fence) error {
	if p.sys.getFaults().FailSubmit {
		return errors.New("queue submit rejected by driver")
	}
	cmds, ok := seq.(*commandSequence)
	if !ok {
		return fmt.Errorf("command sequence %T does not belong to softgpu", seq)
	}
	if cmds.destroyed || cmds.targets.destroyed {
		return errors.New("command sequence references destroyed render targets")
	}
	sf, err := asFence(f)
	if err != nil {
		return err
	}
	p.queue.submit(func() {
		cmds.execute()
		sf.signal()
	})
	return nil
}

func (c *commandSequence) execute() {
	rt := c.targets
	rt.raster.clear(c.clear)
	if c.mesh != nil {
		u := decodeUniforms(c.uniforms.snapshot())
		rt.raster.draw(c.mesh.vertices, c.mesh.indices, u.MVP())
	}
	rt.raster.resolve(rt.target.pixels(), rt.target.desc.Format)
}
