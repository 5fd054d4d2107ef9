package interop

import (
	"fmt"
)

// Import creates an external image on the importer and backs it with the
// memory behind h. Any failing step releases what earlier steps created.
func Import(im Importer, h *ExportedHandle, desc ImageDesc) (*ImportedImage, error) {
	value, err := h.Value()
	if err != nil {
		return nil, err
	}
	if !desc.Extent.Valid() {
		return nil, preconditionf("import", "invalid extent %s", desc.Extent)
	}

	img, err := im.CreateExternalImage(desc, h.Type())
	if err != nil {
		return nil, wrap(KindResourceCreation, "create external image", err)
	}
	fail := func(kind Kind, op string, err error) (*ImportedImage, error) {
		img.Destroy()
		return nil, wrap(kind, op, err)
	}

	reqs, err := img.MemoryRequirements()
	if err != nil {
		return fail(KindResourceCreation, "get image memory requirements", err)
	}
	if h.AllocationSize() != 0 && reqs.Size > h.AllocationSize() {
		return fail(KindImportMismatch, "check import size",
			fmt.Errorf("importer needs %d bytes, exporter allocated %d", reqs.Size, h.AllocationSize()))
	}

	ded, err := img.DedicatedRequirement()
	if err != nil {
		return fail(KindResourceCreation, "query dedicated requirement", err)
	}
	dedicated := ded.Requires || ded.Prefers || h.Dedicated()

	req := ImportRequest{
		Handle:       value,
		HandleType:   h.Type(),
		Requirements: reqs,
		ExporterSize: h.AllocationSize(),
		Dedicated:    dedicated,
	}
	if err := img.ImportMemory(req); err != nil {
		return fail(KindResourceCreation, fmt.Sprintf("import %s memory", h.Type()), err)
	}
	if h.Type().TransfersOnImport() {
		h.markTransferred()
	}
	if err := img.BindMemory(); err != nil {
		return fail(KindResourceCreation, "bind imported memory", err)
	}

	return &ImportedImage{image: img, requirements: reqs, dedicated: dedicated}, nil
}
