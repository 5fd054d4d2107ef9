package renderer

import (
	"fmt"
	"io"
	"text/tabwriter"

	"render-interop/config"
	"render-interop/interop"
)

// HandleSupport is one row of the external-memory capability table.
type HandleSupport struct {
	HandleType interop.HandleType
	Support    interop.ExternalImageSupport
	Err        error
}

// DeviceReport is what one physical device can share.
type DeviceReport struct {
	Device  interop.PhysicalDevice
	Handles []HandleSupport
}

// Report is the result of Probe.
type Report struct {
	API       interop.API
	Format    interop.Format
	Devices   []DeviceReport
	Selection interop.Selection
	SelectErr error
	Requested interop.HandleType
	Role      interop.Role
}

// Probe queries every physical device for each handle type at the
// configured format, then runs the device selection the engine would run.
// No resources are created.
func Probe(drv interop.ProducerDriver, cfg *config.Config) (Report, error) {
	ec := cfg.EngineConfig()
	owner := ec.Owner
	if owner == interop.OwnerAuto {
		owner = ec.HandleType.DefaultOwner()
	}
	role := interop.RoleExport
	if owner == interop.OwnerConsumer {
		role = interop.RoleImport
	}

	devices, err := drv.PhysicalDevices()
	if err != nil {
		return Report{}, err
	}
	r := Report{API: drv.API(), Format: ec.Format, Requested: ec.HandleType, Role: role}
	for _, dev := range devices {
		dr := DeviceReport{Device: dev}
		for _, h := range interop.HandleTypes() {
			support, err := drv.ExternalImageSupport(dev, interop.ExternalImageQuery{
				Format:     ec.Format,
				Usage:      interop.SharedUsage,
				Tiling:     interop.TilingOptimal,
				HandleType: h,
			})
			dr.Handles = append(dr.Handles, HandleSupport{HandleType: h, Support: support, Err: err})
		}
		r.Devices = append(r.Devices, dr)
	}

	r.Selection, r.SelectErr = interop.SelectDevice(drv, interop.Requirements{
		HandleType: ec.HandleType,
		Role:       role,
		Format:     ec.Format,
		Usage:      interop.SharedUsage,
		Tiling:     interop.TilingOptimal,
	})
	return r, nil
}

// Write prints the report as aligned text.
func (r Report) Write(w io.Writer) error {
	fmt.Fprintf(w, "API %s, format %s\n", r.API, r.Format)
	for _, d := range r.Devices {
		luid := "none"
		if d.Device.LUIDValid {
			luid = d.Device.LUID.String()
		}
		fmt.Fprintf(w, "\n#%d %s (discrete %t, LUID %s)\n", d.Device.Index, d.Device.Name, d.Device.Discrete, luid)

		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "  HANDLE\tCOMPATIBLE\tEXPORT\tIMPORT\tDEDICATED\tMAX EXTENT")
		for _, h := range d.Handles {
			if h.Err != nil {
				fmt.Fprintf(tw, "  %s\terror: %v\t\t\t\t\n", h.HandleType, h.Err)
				continue
			}
			f := h.Support.Features
			fmt.Fprintf(tw, "  %s\t%t\t%t\t%t\t%t\t%s\n", h.HandleType,
				h.Support.Compatible(h.HandleType),
				f&interop.FeatureExportable != 0,
				f&interop.FeatureImportable != 0,
				f&interop.FeatureDedicatedOnly != 0,
				h.Support.MaxExtent)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	fmt.Fprintf(w, "\nselection for %s %s: ", r.Role, r.Requested)
	if r.SelectErr != nil {
		_, err := fmt.Fprintf(w, "none\n%v\n", r.SelectErr)
		return err
	}
	_, err := fmt.Fprintf(w, "#%d %s, queue family %d\n", r.Selection.Device.Index, r.Selection.Device.Name, r.Selection.QueueFamily)
	return err
}
