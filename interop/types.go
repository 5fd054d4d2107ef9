package interop

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"render-interop/math"
)

// API identifies which graphics API a context belongs to.
type API int

const (
	APISoftware API = iota
	APIVulkan
	APIDirect3D11
	APIOpenGL
)

func (a API) String() string {
	switch a {
	case APIVulkan:
		return "vulkan"
	case APIDirect3D11:
		return "d3d11"
	case APIOpenGL:
		return "opengl"
	default:
		return "software"
	}
}

// Extent is a 2D size in pixels.
type Extent struct {
	Width, Height uint32
}

func (e Extent) Valid() bool { return e.Width > 0 && e.Height > 0 }

func (e Extent) String() string { return fmt.Sprintf("%dx%d", e.Width, e.Height) }

// ParseExtent parses "WIDTHxHEIGHT".
func ParseExtent(s string) (Extent, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return Extent{}, fmt.Errorf("invalid extent %q: want WIDTHxHEIGHT", s)
	}
	wv, err := strconv.ParseUint(w, 10, 32)
	if err != nil {
		return Extent{}, fmt.Errorf("invalid extent width %q: %w", w, err)
	}
	hv, err := strconv.ParseUint(h, 10, 32)
	if err != nil {
		return Extent{}, fmt.Errorf("invalid extent height %q: %w", h, err)
	}
	e := Extent{Width: uint32(wv), Height: uint32(hv)}
	if !e.Valid() {
		return Extent{}, fmt.Errorf("invalid extent %q: both dimensions must be positive", s)
	}
	return e, nil
}

// Usage is a bit set of image usages, mirroring VkImageUsageFlagBits.
type Usage uint32

const (
	UsageTransferSrc     Usage = 0x01
	UsageTransferDst     Usage = 0x02
	UsageSampled         Usage = 0x04
	UsageStorage         Usage = 0x08
	UsageColorAttachment Usage = 0x10
)

// SharedUsage is what the shared image must support on both sides: render
// target for the producer, copy source for the consumer.
const SharedUsage = UsageColorAttachment | UsageTransferSrc | UsageSampled

type Tiling int

const (
	TilingOptimal Tiling = iota
	TilingLinear
)

// ImageDesc describes a 2D single-mip, single-layer image.
type ImageDesc struct {
	Extent Extent
	Format Format
	Usage  Usage
	Tiling Tiling
}

// LUID is the 8-byte locally unique adapter identifier both APIs report.
type LUID [8]byte

// LUIDFromParts builds a LUID from the Windows LowPart/HighPart pair.
func LUIDFromParts(low uint32, high int32) LUID {
	var l LUID
	binary.LittleEndian.PutUint32(l[0:4], low)
	binary.LittleEndian.PutUint32(l[4:8], uint32(high))
	return l
}

func (l LUID) String() string { return hex.EncodeToString(l[:]) }

// SampleCount is a power-of-two MSAA level.
type SampleCount uint32

const (
	Samples1 SampleCount = 1
	Samples2 SampleCount = 2
	Samples4 SampleCount = 4
	Samples8 SampleCount = 8
)

func (s SampleCount) Valid() bool {
	switch s {
	case Samples1, Samples2, Samples4, Samples8:
		return true
	}
	return false
}

// SampleMask is a set of supported sample counts; bit n set means 1<<n
// samples, matching VkSampleCountFlags.
type SampleMask uint32

func (m SampleMask) Has(s SampleCount) bool { return uint32(m)&uint32(s) != 0 }

// ChooseSampleCount returns the highest of 8, 4, 2, 1 that is both supported
// and not above the requested level. One sample is always available.
func ChooseSampleCount(requested SampleCount, supported SampleMask) SampleCount {
	for _, s := range []SampleCount{Samples8, Samples4, Samples2} {
		if s <= requested && supported.Has(s) {
			return s
		}
	}
	return Samples1
}

// MemoryRequirements mirrors VkMemoryRequirements.
type MemoryRequirements struct {
	Size           uint64
	Alignment      uint64
	MemoryTypeBits uint32
}

// DedicatedRequirement mirrors VkMemoryDedicatedRequirements.
type DedicatedRequirement struct {
	Prefers  bool
	Requires bool
}

// UniformSize is the byte size of a packed Uniforms block.
const UniformSize = 3 * 64

// Uniforms is the per-frame block the vertex program reads: model, view and
// projection matrices.
type Uniforms struct {
	Model      math.Mat4
	View       math.Mat4
	Projection math.Mat4
}

// DefaultUniforms uses identity matrices, so positions are already in clip space.
func DefaultUniforms() Uniforms {
	return Uniforms{Model: math.Mat4Identity(), View: math.Mat4Identity(), Projection: math.Mat4Identity()}
}

// Bytes packs the matrices in declaration order.
func (u Uniforms) Bytes() []byte {
	b := make([]byte, 0, UniformSize)
	b = u.Model.AppendBytes(b)
	b = u.View.AppendBytes(b)
	return u.Projection.AppendBytes(b)
}

// MVP returns model*view*projection for row vectors.
func (u Uniforms) MVP() math.Mat4 {
	return u.Model.Mul(u.View).Mul(u.Projection)
}

// ShaderSet holds the two opaque compiled programs.
type ShaderSet struct {
	Vertex     []byte
	Fragment   []byte
	EntryPoint string
}

func (s ShaderSet) Entry() string {
	if s.EntryPoint == "" {
		return "main"
	}
	return s.EntryPoint
}
