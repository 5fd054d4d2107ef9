package vulkan

/*
#include <vulkan/vulkan.h>
#include <stdlib.h>
#include <string.h>
#include <stdbool.h>
#include <stdio.h>

void* vulkan_malloc(size_t size) {
    void* p = malloc(size);
    memset(p, 0, size);
    return p;
}

const char** getRequiredExtensions(uint32_t* count, const char** required, uint32_t requiredCount, bool enableValidation) {
    uint32_t additionalCount = enableValidation ? 1 : 0;
    *count = requiredCount + additionalCount;
    const char** extensions = (const char**)malloc((*count + 1) * sizeof(const char*));

    for (uint32_t i = 0; i < requiredCount; i++) {
        extensions[i] = required[i];
    }

    if (enableValidation) {
        extensions[requiredCount] = VK_EXT_DEBUG_UTILS_EXTENSION_NAME;
    }

    return extensions;
}

VKAPI_ATTR VkBool32 VKAPI_CALL debugCallback(
    VkDebugUtilsMessageSeverityFlagBitsEXT messageSeverity,
    VkDebugUtilsMessageTypeFlagsEXT messageType,
    const VkDebugUtilsMessengerCallbackDataEXT* pCallbackData,
    void* pUserData) {

    const char* severity = "INFO";
    if (messageSeverity >= VK_DEBUG_UTILS_MESSAGE_SEVERITY_ERROR_BIT_EXT) {
        severity = "ERROR";
    } else if (messageSeverity >= VK_DEBUG_UTILS_MESSAGE_SEVERITY_WARNING_BIT_EXT) {
        severity = "WARNING";
    }

    fprintf(stderr, "[VULKAN %s] %s\n", severity, pCallbackData->pMessage);
    return VK_FALSE;
}

VkResult CreateDebugUtilsMessengerEXT(VkInstance instance, const VkDebugUtilsMessengerCreateInfoEXT* pCreateInfo, const VkAllocationCallbacks* pAllocator, VkDebugUtilsMessengerEXT* pDebugMessenger) {
    PFN_vkCreateDebugUtilsMessengerEXT func = (PFN_vkCreateDebugUtilsMessengerEXT)vkGetInstanceProcAddr(instance, "vkCreateDebugUtilsMessengerEXT");
    if (func != NULL) {
        return func(instance, pCreateInfo, pAllocator, pDebugMessenger);
    } else {
        return VK_ERROR_EXTENSION_NOT_PRESENT;
    }
}

void DestroyDebugUtilsMessengerEXT(VkInstance instance, VkDebugUtilsMessengerEXT debugMessenger, const VkAllocationCallbacks* pAllocator) {
    PFN_vkDestroyDebugUtilsMessengerEXT func = (PFN_vkDestroyDebugUtilsMessengerEXT)vkGetInstanceProcAddr(instance, "vkDestroyDebugUtilsMessengerEXT");
    if (func != NULL) {
        func(instance, debugMessenger, pAllocator);
    }
}
*/
import "C"
import (
	"fmt"
	"unsafe"

	"github.com/sirupsen/logrus"

	"render-interop/interop"
)

const validationLayerName = "VK_LAYER_KHRONOS_validation"

type Instance struct {
	Handle           C.VkInstance
	DebugMessenger   C.VkDebugUtilsMessengerEXT
	EnableValidation bool
}

type InstanceConfig struct {
	AppName            string
	EngineName         string
	AppVersion         uint32
	EngineVersion      uint32
	EnableValidation   bool
	RequiredExtensions []string
}

func DefaultInstanceConfig() InstanceConfig {
	return InstanceConfig{
		AppName:       "render-interop",
		EngineName:    "render-interop",
		AppVersion:    VK_MAKE_VERSION(1, 0, 0),
		EngineVersion: VK_MAKE_VERSION(1, 0, 0),
	}
}

// NewInstance creates a Vulkan 1.2 instance. External memory capabilities,
// physical device properties2 and the ID properties are core at that version.
func NewInstance(config InstanceConfig, log logrus.FieldLogger) (*Instance, error) {
	appName := C.CString(config.AppName)
	defer C.free(unsafe.Pointer(appName))

	engineName := C.CString(config.EngineName)
	defer C.free(unsafe.Pointer(engineName))

	appInfo := (*C.VkApplicationInfo)(C.vulkan_malloc(C.size_t(unsafe.Sizeof(C.VkApplicationInfo{}))))
	defer C.free(unsafe.Pointer(appInfo))
	*appInfo = C.VkApplicationInfo{
		sType:              C.VK_STRUCTURE_TYPE_APPLICATION_INFO,
		pApplicationName:   appName,
		applicationVersion: C.uint32_t(config.AppVersion),
		pEngineName:        engineName,
		engineVersion:      C.uint32_t(config.EngineVersion),
		apiVersion:         C.VK_API_VERSION_1_2,
	}

	var extensionCount C.uint32_t
	extensions := make([]*C.char, len(config.RequiredExtensions)+1)
	for i, ext := range config.RequiredExtensions {
		extensions[i] = C.CString(ext)
		defer C.free(unsafe.Pointer(extensions[i]))
	}

	extensionsPtr := C.getRequiredExtensions(&extensionCount, &extensions[0], C.uint32_t(len(config.RequiredExtensions)), C.bool(config.EnableValidation))
	defer C.free(unsafe.Pointer(extensionsPtr))

	var validationLayersPtr **C.char
	var validationLayerCount C.uint32_t

	if config.EnableValidation {
		if !checkValidationLayerSupport() {
			return nil, interop.NewError(interop.KindResourceCreation, "create instance", 0,
				fmt.Errorf("validation layers requested but not available"))
		}

		validationLayer := C.CString(validationLayerName)
		defer C.free(unsafe.Pointer(validationLayer))

		layerArray := (**C.char)(C.vulkan_malloc(C.size_t(unsafe.Sizeof(validationLayer))))
		defer C.free(unsafe.Pointer(layerArray))
		*layerArray = validationLayer

		validationLayersPtr = layerArray
		validationLayerCount = 1
	}

	createInfo := C.VkInstanceCreateInfo{
		sType:                   C.VK_STRUCTURE_TYPE_INSTANCE_CREATE_INFO,
		pApplicationInfo:        appInfo,
		enabledExtensionCount:   extensionCount,
		ppEnabledExtensionNames: extensionsPtr,
		enabledLayerCount:       validationLayerCount,
		ppEnabledLayerNames:     validationLayersPtr,
	}

	var debugCreateInfo *C.VkDebugUtilsMessengerCreateInfoEXT
	if config.EnableValidation {
		debugCreateInfo = (*C.VkDebugUtilsMessengerCreateInfoEXT)(C.vulkan_malloc(C.size_t(unsafe.Sizeof(C.VkDebugUtilsMessengerCreateInfoEXT{}))))
		defer C.free(unsafe.Pointer(debugCreateInfo))
		debugCreateInfo.sType = C.VK_STRUCTURE_TYPE_DEBUG_UTILS_MESSENGER_CREATE_INFO_EXT
		debugCreateInfo.messageSeverity = C.VK_DEBUG_UTILS_MESSAGE_SEVERITY_WARNING_BIT_EXT | C.VK_DEBUG_UTILS_MESSAGE_SEVERITY_ERROR_BIT_EXT
		debugCreateInfo.messageType = C.VK_DEBUG_UTILS_MESSAGE_TYPE_GENERAL_BIT_EXT | C.VK_DEBUG_UTILS_MESSAGE_TYPE_VALIDATION_BIT_EXT | C.VK_DEBUG_UTILS_MESSAGE_TYPE_PERFORMANCE_BIT_EXT
		debugCreateInfo.pfnUserCallback = (C.PFN_vkDebugUtilsMessengerCallbackEXT)(C.debugCallback)
		createInfo.pNext = unsafe.Pointer(debugCreateInfo)
	}

	var instance C.VkInstance
	result := C.vkCreateInstance(&createInfo, nil, &instance)
	if result != C.VK_SUCCESS {
		return nil, vkError(interop.KindNoSuitableDevice, "create Vulkan instance", result)
	}

	inst := &Instance{
		Handle:           instance,
		EnableValidation: config.EnableValidation,
	}

	if config.EnableValidation {
		result = C.CreateDebugUtilsMessengerEXT(instance, debugCreateInfo, nil, &inst.DebugMessenger)
		if result != C.VK_SUCCESS {
			log.WithField("status", ResultString(int64(result))).Warn("failed to set up debug messenger")
		}
	}

	return inst, nil
}

func (i *Instance) Destroy() {
	if i.Handle == nil {
		return
	}
	if i.EnableValidation && i.DebugMessenger != nil {
		C.DestroyDebugUtilsMessengerEXT(i.Handle, i.DebugMessenger, nil)
	}
	C.vkDestroyInstance(i.Handle, nil)
	i.Handle = nil
}

func checkValidationLayerSupport() bool {
	var layerCount C.uint32_t
	C.vkEnumerateInstanceLayerProperties(&layerCount, nil)
	if layerCount == 0 {
		return false
	}

	availableLayers := make([]C.VkLayerProperties, layerCount)
	C.vkEnumerateInstanceLayerProperties(&layerCount, &availableLayers[0])

	for _, layer := range availableLayers[:layerCount] {
		if goString(layer.layerName[:]) == validationLayerName {
			return true
		}
	}
	return false
}

func VK_MAKE_VERSION(major, minor, patch uint32) uint32 {
	return (major << 22) | (minor << 12) | patch
}
