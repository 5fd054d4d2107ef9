package interop

import (
	"errors"
	"fmt"
	"image"
	"slices"
	"time"

	"github.com/sirupsen/logrus"

	"render-interop/core"
)

// State is the engine lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateDeviceReady
	StatePipelineReady
	StateRunning
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDeviceReady:
		return "device-ready"
	case StatePipelineReady:
		return "pipeline-ready"
	case StateRunning:
		return "running"
	case StateClosed:
		return "closed"
	default:
		return "uninitialized"
	}
}

// EngineConfig selects format, sharing topology and frame options.
type EngineConfig struct {
	Format     Format
	HandleType HandleType
	Owner      Owner
	Samples    SampleCount
	Depth      bool
	Clear      core.Color
	// FenceTimeout bounds every fence wait; 0 waits forever.
	FenceTimeout time.Duration
	// SkipSameSize turns a resize to the current extent into a no-op.
	SkipSameSize bool
	Debug        bool
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Format:       FormatBGRA8Unorm,
		HandleType:   HandleD3D11Texture,
		Owner:        OwnerAuto,
		Samples:      Samples1,
		Depth:        true,
		Clear:        core.Color{R: 0.1, G: 0.1, B: 0.15, A: 1},
		FenceTimeout: 5 * time.Second,
	}
}

// Stats is a snapshot of engine counters.
type Stats struct {
	State                  State
	Extent                 Extent
	Samples                SampleCount
	Owner                  Owner
	Device                 string
	Frames                 int
	Resizes                int
	SharedAllocations      int
	RenderTargetsCreated   int
	RenderTargetsDestroyed int
}

// Engine drives the producer and consumer through init, frames, resizes and
// shutdown. All methods must be called from one goroutine.
type Engine struct {
	cfg         EngineConfig
	producerDrv ProducerDriver
	consumerDrv ConsumerDriver
	log         logrus.FieldLogger

	state     State
	owner     Owner
	selection Selection
	consumer  ConsumerDevice
	producer  ProducerDevice

	mesh          MeshBuffers
	uniformBuf    UniformBuffer
	producerFence Fence
	consumerFence Fence
	presenter     Presenter

	sync    *FrameSynchronizer
	builder *PipelineBuilder
	coord   *Coordinator

	uniforms      Uniforms
	uniformsDirty bool
	frames        int
}

// NewEngine takes ownership of both drivers; Shutdown destroys them.
func NewEngine(cfg EngineConfig, producer ProducerDriver, consumer ConsumerDriver, log logrus.FieldLogger) *Engine {
	return &Engine{
		cfg:           cfg,
		producerDrv:   producer,
		consumerDrv:   consumer,
		log:           log.WithField("component", "engine"),
		uniforms:      DefaultUniforms(),
		uniformsDirty: true,
	}
}

func (e *Engine) State() State { return e.state }

// Selection is the producer device chosen during Init.
func (e *Engine) Selection() Selection { return e.selection }

func (e *Engine) validate(size Extent) error {
	switch {
	case !size.Valid():
		return preconditionf("init", "invalid extent %s", size)
	case !e.cfg.Format.Shareable():
		return preconditionf("init", "format %s has no cross-API mapping", e.cfg.Format)
	case !e.cfg.Samples.Valid():
		return preconditionf("init", "unsupported sample count %d", e.cfg.Samples)
	case !slices.Contains(e.consumerDrv.HandleTypes(), e.cfg.HandleType):
		return preconditionf("init", "%s consumer cannot share through %s", e.consumerDrv.API(), e.cfg.HandleType)
	}
	return nil
}

// Init opens both device contexts, selects a producer device matching the
// consumer adapter, creates the long-lived objects and the first shared
// image at size. On failure everything created so far is released and the
// engine is closed.
func (e *Engine) Init(size Extent, mesh core.MeshData, shaders ShaderSet, surface SurfaceSpec) (err error) {
	if e.state != StateUninitialized {
		return preconditionf("init", "engine is %s", e.state)
	}
	if err := e.validate(size); err != nil {
		return err
	}

	var scope Scope
	scope.Defer(e.producerDrv.Destroy)
	scope.Defer(e.consumerDrv.Destroy)
	defer func() {
		if err != nil {
			e.log.WithError(err).Error("init failed, releasing partial state")
			scope.Release()
			e.state = StateClosed
		}
	}()

	e.owner = e.cfg.Owner
	if e.owner == OwnerAuto {
		e.owner = e.cfg.HandleType.DefaultOwner()
	}

	consumer, err := e.consumerDrv.Open(ConsumerOptions{Format: e.cfg.Format, HandleType: e.cfg.HandleType, Debug: e.cfg.Debug})
	if err != nil {
		return wrap(KindResourceCreation, "open consumer device", err)
	}
	e.consumer = consumer

	req := Requirements{
		HandleType: e.cfg.HandleType,
		Role:       RoleExport,
		Format:     e.cfg.Format,
		Usage:      SharedUsage,
		Tiling:     TilingOptimal,
	}
	if e.owner == OwnerConsumer {
		req.Role = RoleImport
	}
	if luid, ok := consumer.AdapterLUID(); ok {
		req.TargetLUID = &luid
	}
	sel, err := SelectDevice(e.producerDrv, req)
	if err != nil {
		consumer.Destroy()
		return err
	}
	e.selection = sel

	producer, err := e.producerDrv.OpenDevice(sel)
	if err != nil {
		consumer.Destroy()
		return wrap(KindResourceCreation, "open producer device", err)
	}
	e.producer = producer
	// Importer side goes first.
	if e.owner == OwnerConsumer {
		scope.Defer(consumer.Destroy)
		scope.Defer(producer.Destroy)
	} else {
		scope.Defer(producer.Destroy)
		scope.Defer(consumer.Destroy)
	}
	e.state = StateDeviceReady
	e.log.WithFields(logrus.Fields{
		"device":   sel.Device.Name,
		"luid":     sel.Device.LUID,
		"verified": sel.IdentityChecked,
		"owner":    e.owner,
		"handle":   e.cfg.HandleType,
		"format":   e.cfg.Format,
	}).Info("devices ready")

	topo, err := e.topology()
	if err != nil {
		return err
	}

	if e.uniformBuf, err = producer.CreateUniformBuffer(UniformSize); err != nil {
		return wrap(KindResourceCreation, "create uniform buffer", err)
	}
	scope.Defer(e.uniformBuf.Destroy)
	if len(mesh.Indices) > 0 {
		if e.mesh, err = producer.CreateMeshBuffers(mesh); err != nil {
			return wrap(KindResourceCreation, "create mesh buffers", err)
		}
		scope.Defer(e.mesh.Destroy)
	}
	if e.producerFence, err = producer.CreateFence(); err != nil {
		return wrap(KindResourceCreation, "create producer fence", err)
	}
	scope.Defer(e.producerFence.Destroy)
	if e.consumerFence, err = consumer.CreateFence(); err != nil {
		return wrap(KindResourceCreation, "create consumer fence", err)
	}
	scope.Defer(e.consumerFence.Destroy)
	if e.presenter, err = consumer.CreatePresenter(surface, size, e.cfg.Format); err != nil {
		return wrap(KindResourceCreation, "create presenter", err)
	}
	scope.Defer(e.presenter.Destroy)

	e.sync = NewFrameSynchronizer(e.producerFence, e.consumerFence, e.cfg.FenceTimeout, e.log)
	e.builder = NewPipelineBuilder(producer, shaders, e.log)
	e.coord = NewCoordinator(CoordinatorConfig{
		Topology: topo,
		Plan: FramePlanInput{
			Format:           e.cfg.Format,
			RequestedSamples: e.cfg.Samples,
			SupportedSamples: sel.Device.SampleCounts,
			Depth:            e.cfg.Depth,
			Clear:            e.cfg.Clear,
		},
		SkipSameSize: e.cfg.SkipSameSize,
		Producer:     producer,
		Consumer:     consumer,
		Builder:      e.builder,
		Sync:         e.sync,
		Presenter:    e.presenter,
		Mesh:         e.mesh,
		Uniforms:     e.uniformBuf,
	}, e.log)
	if err = e.coord.Build(size); err != nil {
		return err
	}

	scope.Commit()
	e.state = StatePipelineReady
	return nil
}

func (e *Engine) topology() (Topology, error) {
	topo := Topology{Owner: e.owner, HandleType: e.cfg.HandleType}
	var exporter, importer any = e.producer, e.consumer
	if e.owner == OwnerConsumer {
		exporter, importer = e.consumer, e.producer
	}
	ex, ok := exporter.(Exporter)
	if !ok {
		return topo, preconditionf("init", "%s device cannot export shared memory", apiOf(exporter))
	}
	im, ok := importer.(Importer)
	if !ok {
		return topo, preconditionf("init", "%s device cannot import shared memory", apiOf(importer))
	}
	topo.Exporter, topo.Importer = ex, im
	return topo, nil
}

func apiOf(v any) string {
	if c, ok := v.(Context); ok {
		return c.API().String()
	}
	return fmt.Sprintf("%T", v)
}

// SetUniforms stores the uniforms used from the next frame on.
func (e *Engine) SetUniforms(u Uniforms) {
	e.uniforms = u
	e.uniformsDirty = true
}

func (e *Engine) ready(op string) error {
	if e.state != StatePipelineReady && e.state != StateRunning {
		return preconditionf(op, "engine is %s", e.state)
	}
	return nil
}

// RenderFrame renders one frame into the shared image, waits for it, then
// has the consumer copy and present it.
func (e *Engine) RenderFrame() error {
	if err := e.ready("render frame"); err != nil {
		return err
	}
	if st := e.coord.State(); st != CoordinatorActive {
		return preconditionf("render frame", "coordinator is %s", st)
	}

	// The previous frame completed, so the producer no longer reads the buffer.
	if e.uniformsDirty {
		if err := e.uniformBuf.Write(e.uniforms.Bytes()); err != nil {
			return wrap(KindSubmission, "write uniforms", err)
		}
		e.uniformsDirty = false
	}

	frame := e.coord.Frame()
	if err := e.sync.Submit(func() error {
		return e.producer.Submit(frame.Commands, e.producerFence)
	}); err != nil {
		return err
	}
	if err := e.sync.Complete(); err != nil {
		return err
	}
	if err := e.consumer.Compose(e.coord.ConsumerSource(), e.presenter, e.consumerFence); err != nil {
		return wrap(KindSubmission, "compose shared image", err)
	}
	e.sync.ConsumerIssued()
	if err := e.presenter.Present(); err != nil {
		return wrap(KindSubmission, "present", err)
	}
	e.frames++
	e.state = StateRunning
	return nil
}

// Resize rebuilds every size-dependent object at size.
func (e *Engine) Resize(size Extent) error {
	if err := e.ready("resize"); err != nil {
		return err
	}
	return e.coord.Resize(size)
}

// Surface is the swapchain-like object for the UI layer.
func (e *Engine) Surface() Presenter { return e.presenter }

// ReadBack waits for outstanding work and returns the last presented frame.
func (e *Engine) ReadBack() (*image.RGBA, error) {
	if e.state != StateRunning {
		return nil, preconditionf("read back", "engine is %s", e.state)
	}
	if err := e.sync.Drain(); err != nil {
		return nil, err
	}
	img, err := e.presenter.ReadBack()
	if err != nil {
		return nil, wrap(KindSubmission, "read back", err)
	}
	return img, nil
}

func (e *Engine) Stats() Stats {
	s := Stats{State: e.state, Owner: e.owner, Device: e.selection.Device.Name, Frames: e.frames}
	if e.builder != nil {
		s.RenderTargetsCreated, s.RenderTargetsDestroyed = e.builder.Counts()
	}
	if e.coord != nil {
		s.Resizes, s.SharedAllocations = e.coord.Counts()
		s.Extent = e.coord.Extent()
		if f := e.coord.Frame(); f != nil {
			s.Samples = f.Plan.Samples
		}
	}
	return s
}

// Shutdown drains both devices and destroys everything in dependency order.
// Teardown continues past errors; they are joined into the result. Calling
// Shutdown again is a no-op.
func (e *Engine) Shutdown() error {
	switch e.state {
	case StateClosed:
		return nil
	case StateUninitialized:
		e.producerDrv.Destroy()
		e.consumerDrv.Destroy()
		e.state = StateClosed
		return nil
	}

	var errs []error
	if e.coord != nil {
		errs = append(errs, e.coord.Shutdown())
	}
	if e.mesh != nil {
		e.mesh.Destroy()
	}
	e.uniformBuf.Destroy()
	e.producerFence.Destroy()
	e.consumerFence.Destroy()
	e.presenter.Destroy()

	// Importer side goes first.
	if e.owner == OwnerConsumer {
		e.producer.Destroy()
		e.consumer.Destroy()
	} else {
		e.consumer.Destroy()
		e.producer.Destroy()
	}
	e.producerDrv.Destroy()
	e.consumerDrv.Destroy()
	e.state = StateClosed

	err := errors.Join(errs...)
	stats := e.Stats()
	e.log.WithFields(logrus.Fields{
		"frames":  stats.Frames,
		"resizes": stats.Resizes,
		"created": stats.RenderTargetsCreated,
		"freed":   stats.RenderTargetsDestroyed,
	}).Info("shutdown complete")
	return err
}
