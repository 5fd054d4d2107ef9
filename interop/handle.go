package interop

import (
	"fmt"
	"strings"
)

// HandleType is the kind of OS handle the shared allocation travels through.
type HandleType int

const (
	HandleUndefined HandleType = iota
	HandleOpaqueFD
	HandleOpaqueWin32
	HandleOpaqueWin32KMT
	HandleD3D11Texture
	HandleD3D11TextureKMT
)

var handleNames = map[HandleType]string{
	HandleOpaqueFD:        "opaque-fd",
	HandleOpaqueWin32:     "opaque-win32",
	HandleOpaqueWin32KMT:  "opaque-win32-kmt",
	HandleD3D11Texture:    "d3d11-texture",
	HandleD3D11TextureKMT: "d3d11-texture-kmt",
}

func (h HandleType) String() string {
	if n, ok := handleNames[h]; ok {
		return n
	}
	return fmt.Sprintf("handle(%d)", int(h))
}

// ParseHandleType accepts the names printed by String.
func ParseHandleType(s string) (HandleType, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for h, n := range handleNames {
		if n == name {
			return h, nil
		}
	}
	return HandleUndefined, fmt.Errorf("unknown handle type %q", s)
}

// HandleTypes lists every known handle type in enum order.
func HandleTypes() []HandleType {
	return []HandleType{HandleOpaqueFD, HandleOpaqueWin32, HandleOpaqueWin32KMT, HandleD3D11Texture, HandleD3D11TextureKMT}
}

// VkBit is the VkExternalMemoryHandleTypeFlagBits value.
func (h HandleType) VkBit() uint32 {
	switch h {
	case HandleOpaqueFD:
		return 0x01
	case HandleOpaqueWin32:
		return 0x02
	case HandleOpaqueWin32KMT:
		return 0x04
	case HandleD3D11Texture:
		return 0x08
	case HandleD3D11TextureKMT:
		return 0x10
	}
	return 0
}

// Win32 reports whether the handle is a Windows HANDLE rather than an fd.
func (h HandleType) Win32() bool {
	return h != HandleOpaqueFD && h != HandleUndefined
}

// AdapterLocal reports whether both sides must run on the same adapter,
// checked by LUID. Win32 handles are only meaningful on the adapter that
// created them; generic fds are left to the driver.
func (h HandleType) AdapterLocal() bool { return h.Win32() }

// NeedsClose reports whether the exported value is an owned OS reference.
// NT handles and fds must be closed; KMT handles are global names.
func (h HandleType) NeedsClose() bool {
	switch h {
	case HandleOpaqueFD, HandleOpaqueWin32, HandleD3D11Texture:
		return true
	}
	return false
}

// TransfersOnImport reports whether a successful import takes ownership of
// the handle, after which the exporter must not close it.
func (h HandleType) TransfersOnImport() bool { return h == HandleOpaqueFD }

// RequiredExtensions lists the Vulkan device extensions needed to import or
// export this handle type.
func (h HandleType) RequiredExtensions() []string {
	ext := []string{
		"VK_KHR_external_memory",
		"VK_KHR_get_memory_requirements2",
		"VK_KHR_dedicated_allocation",
	}
	switch {
	case h == HandleOpaqueFD:
		ext = append(ext, "VK_KHR_external_memory_fd")
	case h.Win32():
		ext = append(ext, "VK_KHR_external_memory_win32")
	}
	return ext
}

// Owner is the side that allocates and exports the shared memory.
type Owner int

const (
	OwnerAuto Owner = iota
	OwnerConsumer
	OwnerProducer
)

func (o Owner) String() string {
	switch o {
	case OwnerConsumer:
		return "consumer"
	case OwnerProducer:
		return "producer"
	default:
		return "auto"
	}
}

// ParseOwner accepts auto, consumer or producer.
func ParseOwner(s string) (Owner, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return OwnerAuto, nil
	case "consumer":
		return OwnerConsumer, nil
	case "producer":
		return OwnerProducer, nil
	}
	return OwnerAuto, fmt.Errorf("unknown owner %q", s)
}

// DefaultOwner is the side that can export h. D3D11 texture handles only
// come out of a D3D11 resource; opaque handles come out of Vulkan memory.
func (h HandleType) DefaultOwner() Owner {
	if h == HandleD3D11Texture || h == HandleD3D11TextureKMT {
		return OwnerConsumer
	}
	return OwnerProducer
}

// HandleCloser releases an owned OS handle (CloseHandle, close(2)).
type HandleCloser interface {
	CloseHandle(t HandleType, value uintptr) error
}

// ExportedHandle is the OS handle of one shared allocation. Its value is
// only usable while the exporting allocation is alive and, for transferable
// types, until an import consumed it.
type ExportedHandle struct {
	typ       HandleType
	value     uintptr
	size      uint64
	dedicated bool
	closer    HandleCloser

	closed      bool
	transferred bool
}

func newExportedHandle(t HandleType, value uintptr, size uint64, dedicated bool, closer HandleCloser) *ExportedHandle {
	return &ExportedHandle{typ: t, value: value, size: size, dedicated: dedicated, closer: closer}
}

func (h *ExportedHandle) Type() HandleType { return h.typ }

// AllocationSize is the exporter's memory size, or 0 when the exporting API
// does not report one (D3D11).
func (h *ExportedHandle) AllocationSize() uint64 { return h.size }

// Dedicated reports whether the exporter used a dedicated allocation.
func (h *ExportedHandle) Dedicated() bool { return h.dedicated }

// Valid reports whether Value would succeed.
func (h *ExportedHandle) Valid() bool { return !h.closed && !h.transferred }

// Value returns the raw handle, failing once the handle was closed or its
// ownership moved into an import.
func (h *ExportedHandle) Value() (uintptr, error) {
	switch {
	case h.closed:
		return 0, &Error{Kind: KindHandleInvalid, Op: "handle value", Err: fmt.Errorf("%s handle released", h.typ)}
	case h.transferred:
		return 0, &Error{Kind: KindHandleInvalid, Op: "handle value", Err: fmt.Errorf("%s handle consumed by import", h.typ)}
	}
	return h.value, nil
}

func (h *ExportedHandle) markTransferred() { h.transferred = true }

// Close releases the OS reference if the handle type owns one and nobody
// took it over. Calling Close twice is a no-op.
func (h *ExportedHandle) Close() error {
	if h.closed {
		return nil
	}
	h.closed = true
	if h.transferred || !h.typ.NeedsClose() || h.closer == nil {
		return nil
	}
	if err := h.closer.CloseHandle(h.typ, h.value); err != nil {
		return wrap(KindResourceCreation, "close handle", err)
	}
	return nil
}
