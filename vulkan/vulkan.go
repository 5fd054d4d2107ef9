// Package vulkan is the rendering side of the interop. It probes physical
// devices for external-memory support, imports or exports the shared image
// and records the frame that renders into it.
package vulkan

// #cgo windows LDFLAGS: -lvulkan-1
// #cgo linux LDFLAGS: -lvulkan
// #include <vulkan/vulkan.h>
import "C"

import (
	"fmt"

	"render-interop/interop"
)

// Version constants
const (
	VulkanVersion11 = C.VK_API_VERSION_1_1
	VulkanVersion12 = C.VK_API_VERSION_1_2
)

const (
	MaxPhysicalDeviceNameSize = C.VK_MAX_PHYSICAL_DEVICE_NAME_SIZE
	LuidSize                  = C.VK_LUID_SIZE
	MaxMemoryTypes            = C.VK_MAX_MEMORY_TYPES
)

var resultNames = map[C.VkResult]string{
	C.VK_NOT_READY:                      "VK_NOT_READY",
	C.VK_TIMEOUT:                        "VK_TIMEOUT",
	C.VK_INCOMPLETE:                     "VK_INCOMPLETE",
	C.VK_ERROR_OUT_OF_HOST_MEMORY:       "VK_ERROR_OUT_OF_HOST_MEMORY",
	C.VK_ERROR_OUT_OF_DEVICE_MEMORY:     "VK_ERROR_OUT_OF_DEVICE_MEMORY",
	C.VK_ERROR_INITIALIZATION_FAILED:    "VK_ERROR_INITIALIZATION_FAILED",
	C.VK_ERROR_DEVICE_LOST:              "VK_ERROR_DEVICE_LOST",
	C.VK_ERROR_MEMORY_MAP_FAILED:        "VK_ERROR_MEMORY_MAP_FAILED",
	C.VK_ERROR_LAYER_NOT_PRESENT:        "VK_ERROR_LAYER_NOT_PRESENT",
	C.VK_ERROR_EXTENSION_NOT_PRESENT:    "VK_ERROR_EXTENSION_NOT_PRESENT",
	C.VK_ERROR_FEATURE_NOT_PRESENT:      "VK_ERROR_FEATURE_NOT_PRESENT",
	C.VK_ERROR_INCOMPATIBLE_DRIVER:      "VK_ERROR_INCOMPATIBLE_DRIVER",
	C.VK_ERROR_FORMAT_NOT_SUPPORTED:     "VK_ERROR_FORMAT_NOT_SUPPORTED",
	C.VK_ERROR_INVALID_EXTERNAL_HANDLE:  "VK_ERROR_INVALID_EXTERNAL_HANDLE",
	C.VK_ERROR_OUT_OF_POOL_MEMORY:       "VK_ERROR_OUT_OF_POOL_MEMORY",
	C.VK_ERROR_TOO_MANY_OBJECTS:         "VK_ERROR_TOO_MANY_OBJECTS",
	C.VK_ERROR_FRAGMENTED_POOL:          "VK_ERROR_FRAGMENTED_POOL",
	C.VK_ERROR_NATIVE_WINDOW_IN_USE_KHR: "VK_ERROR_NATIVE_WINDOW_IN_USE_KHR",
	C.VK_ERROR_VALIDATION_FAILED_EXT:    "VK_ERROR_VALIDATION_FAILED_EXT",
}

// ResultString names a VkResult.
func ResultString(result int64) string {
	if name, ok := resultNames[C.VkResult(result)]; ok {
		return name
	}
	return fmt.Sprintf("VkResult(%d)", result)
}

// vkError wraps a failed call. Device loss overrides kind.
func vkError(kind interop.Kind, op string, result C.VkResult) error {
	if result == C.VK_ERROR_DEVICE_LOST {
		kind = interop.KindDeviceLost
	}
	return interop.NewError(kind, op, int64(result), fmt.Errorf("failed to %s: %s", op, ResultString(int64(result))))
}

func goString(chars []C.char) string {
	b := make([]byte, 0, len(chars))
	for _, c := range chars {
		if c == 0 {
			break
		}
		b = append(b, byte(c))
	}
	return string(b)
}
