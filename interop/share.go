package interop

import (
	"errors"
	"fmt"
)

// SharedAllocation is the owner side of the shared image: the exportable
// image, its memory and the exported handle.
type SharedAllocation struct {
	image    ShareableImage
	handle   *ExportedHandle
	desc     ImageDesc
	released bool
}

// Share creates a shareable image on the owner and exports its handle.
func Share(ex Exporter, desc ImageDesc, t HandleType) (*SharedAllocation, error) {
	if !desc.Extent.Valid() {
		return nil, preconditionf("share", "invalid extent %s", desc.Extent)
	}
	if !desc.Format.Shareable() {
		return nil, preconditionf("share", "format %s has no cross-API mapping", desc.Format)
	}
	img, err := ex.CreateShareableImage(desc, t)
	if err != nil {
		return nil, wrap(KindResourceCreation, "create shareable image", err)
	}
	value, err := img.ExportHandle()
	if err != nil {
		img.Destroy()
		return nil, wrap(KindResourceCreation, fmt.Sprintf("export %s handle", t), err)
	}
	return &SharedAllocation{
		image:  img,
		handle: newExportedHandle(t, value, img.AllocationSize(), img.Dedicated(), ex),
		desc:   desc,
	}, nil
}

func (a *SharedAllocation) Surface() SharedSurface { return a.image }

func (a *SharedAllocation) Handle() *ExportedHandle { return a.handle }

func (a *SharedAllocation) Desc() ImageDesc { return a.desc }

func (a *SharedAllocation) Released() bool { return a.released }

// Release closes the handle, then destroys the image and its memory. The
// handle is invalid afterwards.
func (a *SharedAllocation) Release() error {
	if a.released {
		return nil
	}
	a.released = true
	err := a.handle.Close()
	a.image.Destroy()
	return err
}

// ImportedImage is the importer side of the shared image.
type ImportedImage struct {
	image        ExternalImage
	requirements MemoryRequirements
	dedicated    bool
	released     bool
}

func (i *ImportedImage) Surface() SharedSurface { return i.image }

func (i *ImportedImage) Requirements() MemoryRequirements { return i.requirements }

func (i *ImportedImage) Dedicated() bool { return i.dedicated }

func (i *ImportedImage) Released() bool { return i.released }

// Release destroys the image and its imported memory. Idempotent.
func (i *ImportedImage) Release() {
	if i.released {
		return
	}
	i.released = true
	i.image.Destroy()
}

// SharedEdge links an owner allocation to its importer and enforces that the
// importer goes first.
type SharedEdge struct {
	Owner    *SharedAllocation
	Importer *ImportedImage
}

func (e *SharedEdge) ReleaseImporter() {
	if e.Importer != nil {
		e.Importer.Release()
	}
}

// ReleaseOwner fails with KindTeardownOrder while the importer is live.
func (e *SharedEdge) ReleaseOwner() error {
	if e.Importer != nil && !e.Importer.Released() {
		return &Error{Kind: KindTeardownOrder, Op: "release shared allocation", Err: errors.New("imported image still live")}
	}
	if e.Owner == nil {
		return nil
	}
	return e.Owner.Release()
}

// Release tears down importer then owner.
func (e *SharedEdge) Release() error {
	e.ReleaseImporter()
	return e.ReleaseOwner()
}
