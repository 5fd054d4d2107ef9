package softgpu

import (
	"errors"
	"fmt"

	"render-interop/interop"
)

const memoryAlignment = 4096

func alignUp(v, a uint64) uint64 { return (v + a - 1) / a * a }

func imageSize(desc interop.ImageDesc) uint64 {
	return uint64(desc.Extent.Width) * uint64(desc.Extent.Height) * uint64(desc.Format.BytesPerPixel())
}

// memory is a device allocation. Images and open OS handles each hold a
// reference; the allocation is freed with the last one.
type memory struct {
	sys  *System
	data []byte
	size uint64
	refs int
	kmt  uintptr
}

func (s *System) allocate(size uint64) *memory {
	s.track("memory")
	return &memory{sys: s, data: make([]byte, size), size: size, refs: 1}
}

func (m *memory) ref() {
	m.sys.mu.Lock()
	m.refs++
	m.sys.mu.Unlock()
}

func (m *memory) unref() {
	m.sys.mu.Lock()
	m.refs--
	free := m.refs == 0
	if free && m.kmt != 0 {
		delete(m.sys.handles, m.kmt)
	}
	m.sys.mu.Unlock()
	if free {
		m.sys.untrack("memory")
	}
}

type handleEntry struct {
	typ interop.HandleType
	mem *memory
}

// export publishes mem under a new handle value. Owned handle types keep the
// memory alive until closed; KMT names die with the memory.
func (s *System) export(mem *memory, t interop.HandleType) uintptr {
	s.mu.Lock()
	s.next += 4
	v := s.next
	s.handles[v] = &handleEntry{typ: t, mem: mem}
	if !t.NeedsClose() {
		mem.kmt = v
	}
	s.mu.Unlock()
	if t.NeedsClose() {
		mem.ref()
		s.track("handle")
	}
	return v
}

// CloseHandle implements interop.HandleCloser.
func (s *System) CloseHandle(t interop.HandleType, value uintptr) error {
	s.mu.Lock()
	e, ok := s.handles[value]
	if ok {
		delete(s.handles, value)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("close %s handle %#x: not open", t, value)
	}
	s.untrack("handle")
	e.mem.unref()
	return nil
}

// open resolves a handle for import. Transferable handles leave the table
// and hand their reference to the importer.
func (s *System) open(value uintptr, t interop.HandleType) (*memory, error) {
	s.mu.Lock()
	e, ok := s.handles[value]
	if ok && e.typ == t && t.TransfersOnImport() {
		delete(s.handles, value)
	}
	s.mu.Unlock()
	switch {
	case !ok:
		return nil, fmt.Errorf("handle %#x is not open", value)
	case e.typ != t:
		return nil, fmt.Errorf("handle %#x is %s, not %s", value, e.typ, t)
	}
	if t.TransfersOnImport() {
		s.untrack("handle")
	} else {
		e.mem.ref()
	}
	return e.mem, nil
}

// image is a 2D image; its pixels live in mem, tightly packed rows.
type image struct {
	sys       *System
	adapter   Adapter
	desc      interop.ImageDesc
	handle    interop.HandleType
	mem       *memory
	bound     bool
	dedicated bool
	// reportSize is false for consumer-owned images, matching D3D11 which
	// has no allocation size to report.
	reportSize bool
	destroyed  bool
}

func (i *image) Desc() interop.ImageDesc { return i.desc }

func (i *image) AllocationSize() uint64 {
	if !i.reportSize || i.mem == nil {
		return 0
	}
	return i.mem.size
}

func (i *image) Dedicated() bool { return i.dedicated }

func (i *image) ExportHandle() (uintptr, error) {
	if i.sys.getFaults().FailExport {
		return 0, errors.New("export rejected by driver")
	}
	return i.sys.export(i.mem, i.handle), nil
}

func (i *image) MemoryRequirements() (interop.MemoryRequirements, error) {
	return interop.MemoryRequirements{
		Size:           alignUp(imageSize(i.desc), memoryAlignment) + i.adapter.ImportPadding,
		Alignment:      memoryAlignment,
		MemoryTypeBits: 0x1,
	}, nil
}

func (i *image) DedicatedRequirement() (interop.DedicatedRequirement, error) {
	return interop.DedicatedRequirement{Prefers: true, Requires: i.adapter.DedicatedOnly}, nil
}

func (i *image) ImportMemory(req interop.ImportRequest) error {
	if i.sys.getFaults().FailImportMemory {
		return errors.New("import allocation rejected by driver")
	}
	if i.mem != nil {
		return errors.New("image already has memory")
	}
	mem, err := i.sys.open(req.Handle, req.HandleType)
	if err != nil {
		return err
	}
	if mem.size < req.Requirements.Size {
		mem.unref()
		return fmt.Errorf("imported allocation is %d bytes, image needs %d", mem.size, req.Requirements.Size)
	}
	i.mem = mem
	i.dedicated = req.Dedicated
	return nil
}

func (i *image) BindMemory() error {
	if i.sys.getFaults().FailBindMemory {
		return errors.New("bind rejected by driver")
	}
	if i.mem == nil {
		return errors.New("no memory to bind")
	}
	i.bound = true
	return nil
}

func (i *image) Destroy() {
	if i.destroyed {
		return
	}
	i.destroyed = true
	if i.mem != nil {
		i.mem.unref()
		i.mem = nil
	}
	i.sys.untrack("image")
}

func (i *image) rowPitch() int {
	return int(i.desc.Extent.Width) * i.desc.Format.BytesPerPixel()
}

// pixels returns the tightly packed image contents.
func (i *image) pixels() []byte {
	return i.mem.data[:imageSize(i.desc)]
}

// memoryOps implements interop.Exporter and interop.Importer for a device.
type memoryOps struct {
	sys     *System
	adapter Adapter
	// reportSize is whether exported images report their allocation size.
	reportSize bool
}

func (m memoryOps) check(desc interop.ImageDesc, t interop.HandleType) error {
	if !m.adapter.supportsFormat(desc.Format) {
		return fmt.Errorf("format %s not supported", desc.Format)
	}
	if !m.adapter.supportsHandle(t) {
		return fmt.Errorf("handle type %s not supported", t)
	}
	return nil
}

func (m memoryOps) CreateShareableImage(desc interop.ImageDesc, t interop.HandleType) (interop.ShareableImage, error) {
	if err := m.check(desc, t); err != nil {
		return nil, err
	}
	m.sys.track("image")
	img := &image{sys: m.sys, adapter: m.adapter, desc: desc, handle: t, reportSize: m.reportSize, dedicated: true}
	img.mem = m.sys.allocate(alignUp(imageSize(desc), memoryAlignment))
	img.bound = true
	return img, nil
}

func (m memoryOps) CloseHandle(t interop.HandleType, value uintptr) error {
	return m.sys.CloseHandle(t, value)
}

func (m memoryOps) CreateExternalImage(desc interop.ImageDesc, t interop.HandleType) (interop.ExternalImage, error) {
	if m.sys.getFaults().FailCreateExternalImage {
		return nil, errors.New("external image rejected by driver")
	}
	if err := m.check(desc, t); err != nil {
		return nil, err
	}
	m.sys.track("image")
	return &image{sys: m.sys, adapter: m.adapter, desc: desc, handle: t}, nil
}

func asImage(s interop.SharedSurface) (*image, error) {
	img, ok := s.(*image)
	if !ok {
		return nil, fmt.Errorf("surface %T does not belong to softgpu", s)
	}
	if img.destroyed || !img.bound || img.mem == nil {
		return nil, errors.New("surface has no bound memory")
	}
	return img, nil
}
