package softgpu

import (
	"errors"
	"fmt"
	goimage "image"
	"sync"

	"render-interop/interop"
)

// ConsumerDriver opens presenting devices on one adapter.
type ConsumerDriver struct {
	sys       *System
	adapter   int
	destroyed bool
}

func (d *ConsumerDriver) API() interop.API { return interop.APISoftware }

func (d *ConsumerDriver) HandleTypes() []interop.HandleType {
	return d.sys.adapters[d.adapter].HandleTypes
}

func (d *ConsumerDriver) Open(opts interop.ConsumerOptions) (interop.ConsumerDevice, error) {
	if d.adapter < 0 || d.adapter >= len(d.sys.adapters) {
		return nil, fmt.Errorf("unknown adapter %d", d.adapter)
	}
	a := d.sys.adapters[d.adapter]
	if !a.supportsFormat(opts.Format) {
		return nil, fmt.Errorf("format %s not supported by %s", opts.Format, a.Name)
	}
	d.sys.track("device")
	return &ConsumerDevice{
		memoryOps: memoryOps{sys: d.sys, adapter: a},
		queue:     newQueue(),
	}, nil
}

func (d *ConsumerDriver) Destroy() {
	if d.destroyed {
		return
	}
	d.destroyed = true
	d.sys.untrack("instance")
}

// ConsumerDevice copies the shared image into an offscreen presenter. Like
// D3D11 it exports without reporting an allocation size.
type ConsumerDevice struct {
	memoryOps
	queue     *queue
	destroyed bool
}

func (c *ConsumerDevice) API() interop.API { return interop.APISoftware }

func (c *ConsumerDevice) AdapterLUID() (interop.LUID, bool) {
	return c.adapter.LUID, c.adapter.LUIDValid
}

func (c *ConsumerDevice) WaitIdle() error {
	c.queue.idle()
	return nil
}

func (c *ConsumerDevice) Destroy() {
	if c.destroyed {
		return
	}
	c.destroyed = true
	c.queue.stop()
	c.sys.untrack("device")
}

func (c *ConsumerDevice) CreateFence() (interop.Fence, error) {
	return newFence(c.sys), nil
}

// Presenter is an offscreen double-buffered surface. Swaps run on the
// device queue behind the copies composed into the back buffer.
type Presenter struct {
	sys       *System
	queue     *queue
	format    interop.Format
	mu        sync.Mutex
	extent    interop.Extent
	back      []byte
	front     []byte
	presents  int
	destroyed bool
}

func (c *ConsumerDevice) CreatePresenter(spec interop.SurfaceSpec, size interop.Extent, format interop.Format) (interop.Presenter, error) {
	if !spec.Offscreen() {
		return nil, errors.New("softgpu presents offscreen only")
	}
	if !size.Valid() {
		return nil, fmt.Errorf("invalid presenter extent %s", size)
	}
	c.sys.track("presenter")
	p := &Presenter{sys: c.sys, queue: c.queue, format: format}
	p.allocate(size)
	return p, nil
}

func (p *Presenter) allocate(size interop.Extent) {
	n := int(size.Width) * int(size.Height) * p.format.BytesPerPixel()
	p.extent = size
	p.back = make([]byte, n)
	p.front = make([]byte, n)
}

func (p *Presenter) Extent() interop.Extent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.extent
}

func (p *Presenter) Native() uintptr { return 0 }

func (p *Presenter) Resize(size interop.Extent) error {
	if !size.Valid() {
		return fmt.Errorf("invalid presenter extent %s", size)
	}
	p.queue.idle()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allocate(size)
	return nil
}

func (p *Presenter) Present() error {
	p.queue.submit(func() {
		p.mu.Lock()
		p.back, p.front = p.front, p.back
		p.presents++
		p.mu.Unlock()
	})
	return nil
}

// Presents is the number of completed Present calls.
func (p *Presenter) Presents() int {
	p.queue.idle()
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.presents
}

func (p *Presenter) ReadBack() (*goimage.RGBA, error) {
	p.queue.idle()
	p.mu.Lock()
	defer p.mu.Unlock()
	w, h := int(p.extent.Width), int(p.extent.Height)
	bpp := p.format.BytesPerPixel()
	img := goimage.NewRGBA(goimage.Rect(0, 0, w, h))
	for i := 0; i < w*h; i++ {
		px := p.format.RGBA8(p.front[i*bpp : (i+1)*bpp])
		copy(img.Pix[i*4:], px[:])
	}
	return img, nil
}

func (p *Presenter) Destroy() {
	if !p.destroyed {
		p.destroyed = true
		p.sys.untrack("presenter")
	}
}

// Compose copies the shared image into the back buffer on the queue. The
// copy requires identical extents, like CopyResource.
func (c *ConsumerDevice) Compose(src interop.SharedSurface, pr interop.Presenter, f interop.Fence) error {
	img, err := asImage(src)
	if err != nil {
		return err
	}
	p, ok := pr.(*Presenter)
	if !ok {
		return fmt.Errorf("presenter %T does not belong to softgpu", pr)
	}
	if p.Extent() != img.desc.Extent {
		return fmt.Errorf("copy source %s differs from surface %s", img.desc.Extent, p.Extent())
	}
	sf, err := asFence(f)
	if err != nil {
		return err
	}
	c.queue.submit(func() {
		p.mu.Lock()
		copy(p.back, img.pixels())
		p.mu.Unlock()
		sf.signal()
	})
	return nil
}
