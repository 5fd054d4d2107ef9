package interop

import (
	"fmt"
	"strings"
)

// Role is what the probed device does with the shared memory.
type Role int

const (
	RoleImport Role = iota
	RoleExport
)

func (r Role) String() string {
	if r == RoleExport {
		return "export"
	}
	return "import"
}

func (r Role) feature() ExternalMemoryFeatures {
	if r == RoleExport {
		return FeatureExportable
	}
	return FeatureImportable
}

// Requirements is what the selected device must support.
type Requirements struct {
	HandleType HandleType
	Role       Role
	Format     Format
	Usage      Usage
	Tiling     Tiling
	// Extensions is added to the handle type's own extension list.
	Extensions []string
	// TargetLUID is the other context's adapter, nil when unknown.
	TargetLUID *LUID
}

// SelectDevice returns the first candidate meeting req, in enumeration order.
// Probing creates no resources.
func SelectDevice(p Prober, req Requirements) (Selection, error) {
	if !req.Format.Shareable() {
		return Selection{}, preconditionf("select device", "format %s has no cross-API mapping", req.Format)
	}
	devices, err := p.PhysicalDevices()
	if err != nil {
		return Selection{}, wrap(KindNoSuitableDevice, "enumerate physical devices", err)
	}

	extensions := append(req.HandleType.RequiredExtensions(), req.Extensions...)
	query := ExternalImageQuery{Format: req.Format, Usage: req.Usage, Tiling: req.Tiling, HandleType: req.HandleType}

	var rejections []Rejection
	for _, dev := range devices {
		sel, reason := evaluate(p, dev, req, extensions, query)
		if reason != "" {
			rejections = append(rejections, Rejection{Device: deviceLabel(dev), Reason: reason})
			continue
		}
		return sel, nil
	}
	return Selection{}, &Error{
		Kind: KindNoSuitableDevice,
		Op:   fmt.Sprintf("select device for %s %s %s", req.Role, req.HandleType, req.Format),
		Err:  &NoSuitableDeviceError{Rejections: rejections},
	}
}

func evaluate(p Prober, dev PhysicalDevice, req Requirements, extensions []string, query ExternalImageQuery) (Selection, string) {
	family, ok := dev.GraphicsQueueFamily()
	if !ok {
		return Selection{}, "no graphics queue family"
	}

	var missing []string
	for _, ext := range extensions {
		if !dev.HasExtension(ext) {
			missing = append(missing, ext)
		}
	}
	if len(missing) > 0 {
		return Selection{}, "missing extensions " + strings.Join(missing, ", ")
	}

	support, err := p.ExternalImageSupport(dev, query)
	if err != nil {
		return Selection{}, fmt.Sprintf("external image query failed: %v", err)
	}
	if !support.Compatible(req.HandleType) {
		return Selection{}, fmt.Sprintf("%s not compatible for %s", req.HandleType, req.Format)
	}
	if support.Features&req.Role.feature() == 0 {
		return Selection{}, fmt.Sprintf("%s not %sable for %s", req.HandleType, req.Role, req.Format)
	}

	checked := false
	if req.HandleType.AdapterLocal() && req.TargetLUID != nil {
		if !dev.LUIDValid {
			return Selection{}, "no valid adapter LUID"
		}
		if dev.LUID != *req.TargetLUID {
			return Selection{}, fmt.Sprintf("LUID %s does not match target %s", dev.LUID, *req.TargetLUID)
		}
		checked = true
	}

	return Selection{
		Device:          dev,
		QueueFamily:     family,
		HandleType:      req.HandleType,
		Role:            req.Role,
		Extensions:      extensions,
		Support:         support,
		IdentityChecked: checked,
	}, ""
}

func deviceLabel(dev PhysicalDevice) string {
	return fmt.Sprintf("#%d %s", dev.Index, dev.Name)
}
