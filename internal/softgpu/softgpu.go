// Package softgpu is an in-process GPU used as both producer and consumer.
// It keeps a handle table shared by every device of one System, executes
// submissions on a queue goroutine and rasterizes with fixed-function math,
// so frames are deterministic and every created object is counted.
package softgpu

import (
	"fmt"
	"sort"
	"sync"

	"render-interop/interop"
)

// Adapter is one simulated physical device.
type Adapter struct {
	Name       string
	LUID       interop.LUID
	LUIDValid  bool
	NoGraphics bool
	Extensions []string
	// HandleTypes are the importable and exportable handle types.
	HandleTypes  []interop.HandleType
	Formats      []interop.Format
	SampleCounts interop.SampleMask
	// DedicatedOnly makes the external image query report a mandatory
	// dedicated allocation.
	DedicatedOnly bool
	// ImportPadding is added to the importer's memory requirement; a non-zero
	// value makes imports exceed the exporter's allocation.
	ImportPadding uint64
}

// DefaultAdapter supports every handle type, format and sample count.
func DefaultAdapter() Adapter {
	ext := map[string]bool{}
	for _, h := range interop.HandleTypes() {
		for _, e := range h.RequiredExtensions() {
			ext[e] = true
		}
	}
	names := make([]string, 0, len(ext))
	for e := range ext {
		names = append(names, e)
	}
	sort.Strings(names)
	return Adapter{
		Name:         "Soft GPU",
		LUID:         interop.LUID{1, 2, 3, 4, 5, 6, 7, 8},
		LUIDValid:    true,
		Extensions:   names,
		HandleTypes:  interop.HandleTypes(),
		Formats:      interop.ShareableFormats(),
		SampleCounts: interop.SampleMask(interop.Samples1 | interop.Samples2 | interop.Samples4 | interop.Samples8),
	}
}

func (a Adapter) supportsFormat(f interop.Format) bool {
	for _, x := range a.Formats {
		if x == f {
			return true
		}
	}
	return false
}

func (a Adapter) supportsHandle(h interop.HandleType) bool {
	for _, x := range a.HandleTypes {
		if x == h {
			return true
		}
	}
	return false
}

// Faults injects failures into otherwise successful calls.
type Faults struct {
	FailCreateExternalImage bool
	FailImportMemory        bool
	FailBindMemory          bool
	FailExport              bool
	FailPipeline            bool
	FailSubmit              bool
	// HangFences leaves submitted fences unsignaled.
	HangFences bool
	// LoseDevice makes fence waits report device loss.
	LoseDevice bool
}

// System is one simulated machine: adapters, the OS handle table and the
// live object registry.
type System struct {
	mu       sync.Mutex
	adapters []Adapter
	handles  map[uintptr]*handleEntry
	next     uintptr
	live     map[string]int
	faults   Faults
}

// NewSystem uses DefaultAdapter when no adapter is given.
func NewSystem(adapters ...Adapter) *System {
	if len(adapters) == 0 {
		adapters = []Adapter{DefaultAdapter()}
	}
	return &System{
		adapters: adapters,
		handles:  map[uintptr]*handleEntry{},
		next:     0x100,
		live:     map[string]int{},
	}
}

func (s *System) SetFaults(f Faults) {
	s.mu.Lock()
	s.faults = f
	s.mu.Unlock()
}

func (s *System) getFaults() Faults {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.faults
}

func (s *System) Adapters() []Adapter { return s.adapters }

func (s *System) track(kind string) {
	s.mu.Lock()
	s.live[kind]++
	s.mu.Unlock()
}

func (s *System) untrack(kind string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live[kind]--
	if s.live[kind] < 0 {
		panic(fmt.Sprintf("softgpu: %s released more often than created", kind))
	}
	if s.live[kind] == 0 {
		delete(s.live, kind)
	}
}

// Live returns the number of live objects of every kind.
func (s *System) Live() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.live {
		n += c
	}
	return n
}

// LiveByKind returns a copy of the live object registry.
func (s *System) LiveByKind() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int, len(s.live))
	for k, v := range s.live {
		out[k] = v
	}
	return out
}

// OpenHandles is the number of entries in the OS handle table.
func (s *System) OpenHandles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

// Producer returns the rendering-side driver.
func (s *System) Producer() *ProducerDriver {
	s.track("instance")
	return &ProducerDriver{sys: s}
}

// Consumer returns a presenting-side driver bound to adapters[adapter].
func (s *System) Consumer(adapter int) *ConsumerDriver {
	s.track("instance")
	return &ConsumerDriver{sys: s, adapter: adapter}
}
