// Package d3d11 is the Direct3D 11 consumer backend. It opens a device on a
// chosen DXGI adapter, shares textures with the producer through NT or KMT
// handles, copies the shared image into a presentation surface and fences
// the copy with an event query.
//
// COM objects are driven through their vtables with golang.org/x/sys/windows,
// so the package builds without cgo. Everything outside desc.go is Windows
// only.
package d3d11
