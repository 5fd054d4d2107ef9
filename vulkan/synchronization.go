package vulkan

/*
#include <vulkan/vulkan.h>

VkResult submitOne(VkQueue queue, VkCommandBuffer cmd, VkFence fence) {
    VkSubmitInfo submitInfo = {0};
    submitInfo.sType = VK_STRUCTURE_TYPE_SUBMIT_INFO;
    submitInfo.commandBufferCount = 1;
    submitInfo.pCommandBuffers = &cmd;
    return vkQueueSubmit(queue, 1, &submitInfo, fence);
}
*/
import "C"
import (
	"fmt"
	"math"
	"time"

	"render-interop/interop"
)

type Fence struct {
	dev    *Device
	Handle C.VkFence
}

func (d *Device) CreateFence() (interop.Fence, error) {
	fenceInfo := C.VkFenceCreateInfo{
		sType: C.VK_STRUCTURE_TYPE_FENCE_CREATE_INFO,
	}

	f := &Fence{dev: d}
	result := C.vkCreateFence(d.Device, &fenceInfo, nil, &f.Handle)
	if result != C.VK_SUCCESS {
		return nil, vkError(interop.KindResourceCreation, "create fence", result)
	}
	return f, nil
}

// Wait blocks until the fence signals. A timeout <= 0 waits forever.
func (f *Fence) Wait(timeout time.Duration) error {
	ns := C.uint64_t(math.MaxUint64)
	if timeout > 0 {
		ns = C.uint64_t(timeout.Nanoseconds())
	}
	result := C.vkWaitForFences(f.dev.Device, 1, &f.Handle, C.VK_TRUE, ns)
	switch result {
	case C.VK_SUCCESS:
		return nil
	case C.VK_TIMEOUT:
		return interop.NewError(interop.KindTimeout, "wait for fence", int64(result),
			fmt.Errorf("fence not signaled after %s", timeout))
	}
	return vkError(interop.KindSubmission, "wait for fence", result)
}

func (f *Fence) Reset() error {
	result := C.vkResetFences(f.dev.Device, 1, &f.Handle)
	if result != C.VK_SUCCESS {
		return vkError(interop.KindSubmission, "reset fence", result)
	}
	return nil
}

func (f *Fence) Destroy() {
	if f.Handle != nil {
		C.vkDestroyFence(f.dev.Device, f.Handle, nil)
		f.Handle = nil
	}
}

// Submit queues a recorded frame. fence may be nil.
func (d *Device) Submit(seq interop.CommandSequence, fence interop.Fence) error {
	s, err := asSequence(seq)
	if err != nil {
		return err
	}
	if s.cb == nil {
		return interop.NewError(interop.KindPrecondition, "submit", 0, fmt.Errorf("command sequence was destroyed"))
	}

	var handle C.VkFence
	if fence != nil {
		f, ok := fence.(*Fence)
		if !ok {
			return fmt.Errorf("fence of type %T was not created by this device", fence)
		}
		handle = f.Handle
	}

	result := C.submitOne(d.GraphicsQueue, s.cb.Handle, handle)
	if result != C.VK_SUCCESS {
		return vkError(interop.KindSubmission, "submit frame", result)
	}
	return nil
}
