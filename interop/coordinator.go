package interop

import (
	"errors"

	"github.com/sirupsen/logrus"
)

type CoordinatorState int

const (
	CoordinatorActive CoordinatorState = iota
	CoordinatorDraining
	CoordinatorRebuilding
	CoordinatorClosed
)

func (s CoordinatorState) String() string {
	switch s {
	case CoordinatorDraining:
		return "draining"
	case CoordinatorRebuilding:
		return "rebuilding"
	case CoordinatorClosed:
		return "closed"
	default:
		return "active"
	}
}

// Topology wires one concrete owner/importer pairing.
type Topology struct {
	Owner      Owner
	HandleType HandleType
	Exporter   Exporter
	Importer   Importer
}

// CoordinatorConfig is what the coordinator needs to (re)build the
// size-dependent objects.
type CoordinatorConfig struct {
	Topology     Topology
	Plan         FramePlanInput
	SkipSameSize bool
	Producer     ProducerDevice
	Consumer     ConsumerDevice
	Builder      *PipelineBuilder
	Sync         *FrameSynchronizer
	Presenter    Presenter
	Mesh         MeshBuffers
	Uniforms     UniformBuffer
}

// Coordinator owns the shared allocation and the frame resources and
// rebuilds them on resize. Destruction always runs command sequence, render
// targets, imported image, shared allocation, pipeline.
type Coordinator struct {
	cfg CoordinatorConfig
	log logrus.FieldLogger

	state       CoordinatorState
	extent      Extent
	edge        *SharedEdge
	frame       *FrameResources
	resizes     int
	allocations int
}

func NewCoordinator(cfg CoordinatorConfig, log logrus.FieldLogger) *Coordinator {
	return &Coordinator{cfg: cfg, log: log.WithField("component", "coordinator")}
}

func (c *Coordinator) State() CoordinatorState { return c.state }

func (c *Coordinator) Extent() Extent { return c.extent }

func (c *Coordinator) Frame() *FrameResources { return c.frame }

// ConsumerSource is the consumer's view of the shared image.
func (c *Coordinator) ConsumerSource() SharedSurface {
	if c.cfg.Topology.Owner == OwnerConsumer {
		return c.edge.Owner.Surface()
	}
	return c.edge.Importer.Surface()
}

// ProducerTarget is the producer's view of the shared image.
func (c *Coordinator) ProducerTarget() SharedSurface {
	if c.cfg.Topology.Owner == OwnerConsumer {
		return c.edge.Importer.Surface()
	}
	return c.edge.Owner.Surface()
}

// Build creates the shared allocation, imports it and builds frame
// resources at size. Partial work is released on failure.
func (c *Coordinator) Build(size Extent) error {
	if c.state == CoordinatorClosed {
		return preconditionf("build", "coordinator is closed")
	}
	topo := c.cfg.Topology
	desc := ImageDesc{Extent: size, Format: c.cfg.Plan.Format, Usage: SharedUsage, Tiling: TilingOptimal}

	alloc, err := Share(topo.Exporter, desc, topo.HandleType)
	if err != nil {
		return err
	}
	imp, err := Import(topo.Importer, alloc.Handle(), desc)
	if err != nil {
		if rerr := alloc.Release(); rerr != nil {
			c.log.WithError(rerr).Warn("release shared allocation after failed import")
		}
		return err
	}
	edge := &SharedEdge{Owner: alloc, Importer: imp}
	c.edge = edge
	c.allocations++

	in := c.cfg.Plan
	in.Extent = size
	frame, err := c.cfg.Builder.Build(c.ProducerTarget(), PlanFrame(in), c.cfg.Mesh, c.cfg.Uniforms)
	if err != nil {
		if rerr := edge.Release(); rerr != nil {
			c.log.WithError(rerr).Warn("release shared allocation after failed build")
		}
		c.edge = nil
		return err
	}
	c.frame = frame
	c.extent = size
	c.log.WithFields(logrus.Fields{
		"width":     size.Width,
		"height":    size.Height,
		"owner":     topo.Owner,
		"handle":    topo.HandleType,
		"dedicated": imp.Dedicated(),
	}).Info("shared image ready")
	return nil
}

// Resize drains, releases every size-dependent object on both sides and
// rebuilds at size. A failure leaves the coordinator outside Active.
func (c *Coordinator) Resize(size Extent) error {
	if c.state != CoordinatorActive {
		return preconditionf("resize", "coordinator is %s", c.state)
	}
	if !size.Valid() {
		return preconditionf("resize", "invalid extent %s", size)
	}
	if c.cfg.SkipSameSize && size == c.extent {
		c.log.WithField("size", size).Debug("resize to current size skipped")
		return nil
	}

	c.state = CoordinatorDraining
	if err := c.drain(); err != nil {
		return err
	}

	c.state = CoordinatorRebuilding
	if err := c.releaseSized(); err != nil {
		return err
	}
	if err := c.cfg.Presenter.Resize(size); err != nil {
		return wrap(KindResourceCreation, "resize presentation surface", err)
	}
	if err := c.Build(size); err != nil {
		return err
	}
	c.resizes++
	c.state = CoordinatorActive
	return nil
}

// Shutdown drains and releases the size-dependent objects. Further calls are
// no-ops; the coordinator never becomes Active again.
func (c *Coordinator) Shutdown() error {
	if c.state == CoordinatorClosed {
		return nil
	}
	c.state = CoordinatorDraining
	drainErr := c.drain()
	c.state = CoordinatorClosed
	return errors.Join(drainErr, c.releaseSized())
}

// Counts reports completed resizes and shared allocations made so far.
func (c *Coordinator) Counts() (resizes, allocations int) {
	return c.resizes, c.allocations
}

func (c *Coordinator) drain() error {
	var errs []error
	if err := c.cfg.Sync.Drain(); err != nil {
		errs = append(errs, err)
	}
	if err := c.cfg.Producer.WaitIdle(); err != nil {
		errs = append(errs, wrap(KindSubmission, "producer wait idle", err))
	}
	if err := c.cfg.Consumer.WaitIdle(); err != nil {
		errs = append(errs, wrap(KindSubmission, "consumer wait idle", err))
	}
	return errors.Join(errs...)
}

func (c *Coordinator) releaseSized() error {
	if c.frame != nil {
		c.cfg.Builder.DestroyTargets(c.frame)
	}
	var err error
	if c.edge != nil {
		c.edge.ReleaseImporter()
		err = c.edge.ReleaseOwner()
		c.edge = nil
	}
	if c.frame != nil {
		c.cfg.Builder.DestroyPipeline(c.frame)
		c.frame = nil
	}
	return err
}
