//go:build !windows

package opengl

import (
	"fmt"
	"time"

	gl "github.com/go-gl/gl/v4.1-core/gl"

	"render-interop/interop"
)

// waitSlice bounds one glClientWaitSync call when waiting without a timeout.
const waitSlice = time.Second

// fence wraps a GL sync object created after each compose.
type fence struct {
	sync uintptr
}

func (d *Device) CreateFence() (interop.Fence, error) {
	return &fence{}, nil
}

func (f *fence) issue() {
	f.release()
	f.sync = gl.FenceSync(gl.SYNC_GPU_COMMANDS_COMPLETE, 0)
	gl.Flush()
}

func (f *fence) Wait(timeout time.Duration) error {
	if f.sync == 0 {
		return interop.NewError(interop.KindPrecondition, "wait sync", 0, fmt.Errorf("fence was never signaled by a submission"))
	}
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		slice := waitSlice
		if !deadline.IsZero() {
			slice = time.Until(deadline)
			if slice < 0 {
				slice = 0
			}
		}
		switch gl.ClientWaitSync(f.sync, gl.SYNC_FLUSH_COMMANDS_BIT, uint64(slice.Nanoseconds())) {
		case gl.ALREADY_SIGNALED, gl.CONDITION_SATISFIED:
			return nil
		case gl.WAIT_FAILED:
			return interop.NewError(interop.KindSubmission, "wait sync", int64(gl.WAIT_FAILED), fmt.Errorf("glClientWaitSync failed"))
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return interop.NewError(interop.KindTimeout, "wait sync", 0, fmt.Errorf("compose not complete after %s", timeout))
		}
	}
}

func (f *fence) Reset() error {
	f.release()
	return nil
}

func (f *fence) release() {
	if f.sync != 0 {
		gl.DeleteSync(f.sync)
		f.sync = 0
	}
}

func (f *fence) Destroy() { f.release() }

func asFence(f interop.Fence) (*fence, error) {
	fc, ok := f.(*fence)
	if !ok {
		return nil, fmt.Errorf("fence of type %T was not created by this device", f)
	}
	return fc, nil
}
