package interop

import (
	"encoding/binary"
	"fmt"
	stdmath "math"
	"strings"

	"github.com/chewxy/math32"

	"render-interop/core"
)

// Format is a pixel format both APIs agree on. Translation to each API's
// enum goes through the fixed table below and never through name or
// channel-order inference.
type Format int

const (
	FormatUndefined Format = iota
	FormatRGBA8Unorm
	FormatBGRA8Unorm
	FormatRGBA8Srgb
	FormatBGRA8Srgb
	FormatRGB10A2Unorm
	FormatRGBA16Float
	// FormatD32Float is the depth attachment format. It never crosses the
	// API boundary.
	FormatD32Float
)

// ChannelOrder is the byte/bit order of the color channels in memory.
type ChannelOrder int

const (
	OrderRGBA ChannelOrder = iota
	OrderBGRA
	OrderDepth
)

// FormatInfo is one row of the cross-API format table.
type FormatInfo struct {
	Name       string
	VkFormat   uint32
	DXGIFormat uint32
	// GLInternalFormat is the sized format used for glTexStorageMem2DEXT.
	// BGRA memory is imported as RGBA8 and swizzled, see GLSwizzleRB.
	GLInternalFormat uint32
	GLSwizzleRB      bool
	BytesPerPixel    int
	Order            ChannelOrder
	SRGB             bool
	Shareable        bool
}

var formatTable = map[Format]FormatInfo{
	FormatRGBA8Unorm: {
		Name: "rgba8_unorm", VkFormat: 37, DXGIFormat: 28, GLInternalFormat: 0x8058,
		BytesPerPixel: 4, Order: OrderRGBA, Shareable: true,
	},
	FormatBGRA8Unorm: {
		Name: "bgra8_unorm", VkFormat: 44, DXGIFormat: 87, GLInternalFormat: 0x8058, GLSwizzleRB: true,
		BytesPerPixel: 4, Order: OrderBGRA, Shareable: true,
	},
	FormatRGBA8Srgb: {
		Name: "rgba8_srgb", VkFormat: 43, DXGIFormat: 29, GLInternalFormat: 0x8C43,
		BytesPerPixel: 4, Order: OrderRGBA, SRGB: true, Shareable: true,
	},
	FormatBGRA8Srgb: {
		Name: "bgra8_srgb", VkFormat: 50, DXGIFormat: 91, GLInternalFormat: 0x8C43, GLSwizzleRB: true,
		BytesPerPixel: 4, Order: OrderBGRA, SRGB: true, Shareable: true,
	},
	// VK_FORMAT_A2B10G10R10_UNORM_PACK32 and DXGI_FORMAT_R10G10B10A2_UNORM share
	// one bit layout: red in the low ten bits.
	FormatRGB10A2Unorm: {
		Name: "rgb10a2_unorm", VkFormat: 64, DXGIFormat: 24, GLInternalFormat: 0x8059,
		BytesPerPixel: 4, Order: OrderRGBA, Shareable: true,
	},
	FormatRGBA16Float: {
		Name: "rgba16_float", VkFormat: 97, DXGIFormat: 10, GLInternalFormat: 0x881A,
		BytesPerPixel: 8, Order: OrderRGBA, Shareable: true,
	},
	FormatD32Float: {
		Name: "d32_float", VkFormat: 126, DXGIFormat: 40, GLInternalFormat: 0x8CAC,
		BytesPerPixel: 4, Order: OrderDepth,
	},
}

// Info returns the table row for f.
func (f Format) Info() (FormatInfo, bool) {
	info, ok := formatTable[f]
	return info, ok
}

func (f Format) String() string {
	if info, ok := formatTable[f]; ok {
		return info.Name
	}
	return fmt.Sprintf("format(%d)", int(f))
}

// Shareable reports whether f has a mapping in every API.
func (f Format) Shareable() bool {
	info, ok := formatTable[f]
	return ok && info.Shareable
}

func (f Format) BytesPerPixel() int {
	return formatTable[f].BytesPerPixel
}

// ParseFormat accepts the table names, case-insensitively.
func ParseFormat(s string) (Format, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for f, info := range formatTable {
		if info.Name == name {
			return f, nil
		}
	}
	return FormatUndefined, fmt.Errorf("unknown format %q", s)
}

// ShareableFormats lists the formats usable for the shared image, in enum order.
func ShareableFormats() []Format {
	var out []Format
	for f := FormatRGBA8Unorm; f <= FormatRGBA16Float; f++ {
		if f.Shareable() {
			out = append(out, f)
		}
	}
	return out
}

// FormatFromVk looks up a shareable format by its VkFormat value.
func FormatFromVk(vk uint32) (Format, bool) {
	for f, info := range formatTable {
		if info.VkFormat == vk && info.Shareable {
			return f, true
		}
	}
	return FormatUndefined, false
}

// FormatFromDXGI looks up a shareable format by its DXGI_FORMAT value.
func FormatFromDXGI(dxgi uint32) (Format, bool) {
	for f, info := range formatTable {
		if info.DXGIFormat == dxgi && info.Shareable {
			return f, true
		}
	}
	return FormatUndefined, false
}

// Pack encodes a linear color as one pixel of f. sRGB formats apply the
// transfer function on the way in, like hardware does on attachment writes.
func (f Format) Pack(c core.Color) []byte {
	info := formatTable[f]
	r, g, b, a := clamp01(c.R), clamp01(c.G), clamp01(c.B), clamp01(c.A)
	if info.SRGB {
		r, g, b = linearToSRGB(r), linearToSRGB(g), linearToSRGB(b)
	}
	switch f {
	case FormatRGB10A2Unorm:
		v := uint32(unorm(r, 1023)) | uint32(unorm(g, 1023))<<10 | uint32(unorm(b, 1023))<<20 | uint32(unorm(a, 3))<<30
		return binary.LittleEndian.AppendUint32(make([]byte, 0, 4), v)
	case FormatRGBA16Float:
		px := make([]byte, 8)
		binary.LittleEndian.PutUint16(px[0:], float32ToHalf(r))
		binary.LittleEndian.PutUint16(px[2:], float32ToHalf(g))
		binary.LittleEndian.PutUint16(px[4:], float32ToHalf(b))
		binary.LittleEndian.PutUint16(px[6:], float32ToHalf(a))
		return px
	case FormatD32Float:
		return binary.LittleEndian.AppendUint32(make([]byte, 0, 4), stdmath.Float32bits(c.R))
	}
	px := []byte{byte(unorm(r, 255)), byte(unorm(g, 255)), byte(unorm(b, 255)), byte(unorm(a, 255))}
	if info.Order == OrderBGRA {
		px[0], px[2] = px[2], px[0]
	}
	return px
}

// Unpack decodes one pixel of f back into its stored (encoded) channel
// values. No sRGB decode is applied.
func (f Format) Unpack(px []byte) core.Color {
	switch f {
	case FormatRGB10A2Unorm:
		v := binary.LittleEndian.Uint32(px)
		return core.Color{
			R: float32(v&0x3ff) / 1023,
			G: float32(v>>10&0x3ff) / 1023,
			B: float32(v>>20&0x3ff) / 1023,
			A: float32(v>>30) / 3,
		}
	case FormatRGBA16Float:
		return core.Color{
			R: halfToFloat32(binary.LittleEndian.Uint16(px[0:])),
			G: halfToFloat32(binary.LittleEndian.Uint16(px[2:])),
			B: halfToFloat32(binary.LittleEndian.Uint16(px[4:])),
			A: halfToFloat32(binary.LittleEndian.Uint16(px[6:])),
		}
	case FormatD32Float:
		return core.Color{R: stdmath.Float32frombits(binary.LittleEndian.Uint32(px))}
	}
	r, g, b, a := px[0], px[1], px[2], px[3]
	if formatTable[f].Order == OrderBGRA {
		r, b = b, r
	}
	return core.Color{R: float32(r) / 255, G: float32(g) / 255, B: float32(b) / 255, A: float32(a) / 255}
}

// RGBA8 converts one pixel of f to 8-bit RGBA. 8-bit formats are reordered
// without any arithmetic so the stored bytes survive exactly.
func (f Format) RGBA8(px []byte) [4]uint8 {
	info := formatTable[f]
	if info.BytesPerPixel == 4 && (f != FormatRGB10A2Unorm && f != FormatD32Float) {
		if info.Order == OrderBGRA {
			return [4]uint8{px[2], px[1], px[0], px[3]}
		}
		return [4]uint8{px[0], px[1], px[2], px[3]}
	}
	c := f.Unpack(px)
	return [4]uint8{
		uint8(unorm(clamp01(c.R), 255)),
		uint8(unorm(clamp01(c.G), 255)),
		uint8(unorm(clamp01(c.B), 255)),
		uint8(unorm(clamp01(c.A), 255)),
	}
}

func clamp01(v float32) float32 {
	if v < 0 || v != v {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func unorm(v, scale float32) uint32 {
	return uint32(v*scale + 0.5)
}

func linearToSRGB(v float32) float32 {
	if v <= 0.0031308 {
		return v * 12.92
	}
	return 1.055*math32.Pow(v, 1/2.4) - 0.055
}

// float32ToHalf rounds to nearest even. Values outside the half range
// saturate to infinity; subnormals are flushed to zero.
func float32ToHalf(f float32) uint16 {
	bits := stdmath.Float32bits(f)
	sign := uint16(bits>>16) & 0x8000
	exp := int32(bits>>23&0xff) - 127 + 15
	mant := bits & 0x7fffff
	switch {
	case bits&0x7fffffff == 0:
		return sign
	case exp >= 0x1f:
		return sign | 0x7c00
	case exp <= 0:
		return sign
	}
	half := uint32(exp)<<10 | mant>>13
	round := mant & 0x1fff
	if round > 0x1000 || (round == 0x1000 && half&1 == 1) {
		half++
	}
	return sign | uint16(half)
}

func halfToFloat32(h uint16) float32 {
	sign := uint32(h&0x8000) << 16
	exp := uint32(h >> 10 & 0x1f)
	mant := uint32(h & 0x3ff)
	switch exp {
	case 0:
		if mant == 0 {
			return stdmath.Float32frombits(sign)
		}
		v := float32(mant) / 1024 / 16384
		if sign != 0 {
			return -v
		}
		return v
	case 0x1f:
		return stdmath.Float32frombits(sign | 0x7f800000 | mant<<13)
	}
	return stdmath.Float32frombits(sign | (exp+127-15)<<23 | mant<<13)
}
