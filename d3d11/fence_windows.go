//go:build windows

package d3d11

import (
	"fmt"
	"time"
	"unsafe"

	"render-interop/interop"
)

// pollInterval bounds the busy-wait on an event query.
const pollInterval = 50 * time.Microsecond

// fence is an event query: End marks the point in the command stream and
// GetData reports S_OK once the GPU has passed it.
type fence struct {
	dev    *Device
	query  uintptr // ID3D11Query
	issued bool
}

func (d *Device) newFence() (*fence, error) {
	desc := queryDesc{Query: queryEvent}
	var q uintptr
	hr := comCall(d.device, d3d11DeviceCreateQuery, uintptr(unsafe.Pointer(&desc)), uintptr(unsafe.Pointer(&q)))
	if failed(hr) {
		return nil, hrError(interop.KindResourceCreation, "create event query", hr)
	}
	return &fence{dev: d, query: q}, nil
}

func (d *Device) CreateFence() (interop.Fence, error) {
	return d.newFence()
}

// issue ends the query after everything queued so far and flushes.
func (f *fence) issue() {
	comCall(f.dev.context, d3d11CtxEnd, f.query)
	comCall(f.dev.context, d3d11CtxFlush)
	f.issued = true
}

func (f *fence) Wait(timeout time.Duration) error {
	if !f.issued {
		return interop.NewError(interop.KindPrecondition, "wait event query", 0, errNotIssued)
	}
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		var done int32
		hr := comCall(f.dev.context, d3d11CtxGetData, f.query, uintptr(unsafe.Pointer(&done)), unsafe.Sizeof(done), 0)
		switch {
		case failed(hr):
			return hrError(interop.KindSubmission, "poll event query", hr)
		case hr == sOK && done != 0:
			return nil
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			return interop.NewError(interop.KindTimeout, "wait event query", 0,
				fmt.Errorf("copy not complete after %s", timeout))
		}
		time.Sleep(pollInterval)
	}
}

func (f *fence) Reset() error {
	f.issued = false
	return nil
}

func (f *fence) Destroy() {
	comRelease(f.query)
	f.query = 0
}

func asFence(f interop.Fence) (*fence, error) {
	fc, ok := f.(*fence)
	if !ok {
		return nil, fmt.Errorf("fence of type %T was not created by this device", f)
	}
	return fc, nil
}
