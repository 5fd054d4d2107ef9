//go:build !windows

package opengl

/*
#include <stdint.h>
#include <stddef.h>

typedef void (*PFN_CreateMemoryObjects)(int n, unsigned int* objects);
typedef void (*PFN_DeleteMemoryObjects)(int n, const unsigned int* objects);
typedef void (*PFN_MemoryObjectParameteriv)(unsigned int object, unsigned int pname, const int* params);
typedef void (*PFN_ImportMemoryFd)(unsigned int memory, uint64_t size, unsigned int handleType, int fd);
typedef void (*PFN_TexStorageMem2D)(unsigned int target, int levels, unsigned int internalFormat,
                                    int width, int height, unsigned int memory, uint64_t offset);

static PFN_CreateMemoryObjects pCreateMemoryObjects;
static PFN_DeleteMemoryObjects pDeleteMemoryObjects;
static PFN_MemoryObjectParameteriv pMemoryObjectParameteriv;
static PFN_ImportMemoryFd pImportMemoryFd;
static PFN_TexStorageMem2D pTexStorageMem2D;

static int setMemoryObjectProcs(void* create, void* del, void* param, void* importFd, void* storage) {
    pCreateMemoryObjects = (PFN_CreateMemoryObjects)create;
    pDeleteMemoryObjects = (PFN_DeleteMemoryObjects)del;
    pMemoryObjectParameteriv = (PFN_MemoryObjectParameteriv)param;
    pImportMemoryFd = (PFN_ImportMemoryFd)importFd;
    pTexStorageMem2D = (PFN_TexStorageMem2D)storage;
    return create && del && param && importFd && storage;
}

static unsigned int createMemoryObject(void) {
    unsigned int obj = 0;
    pCreateMemoryObjects(1, &obj);
    return obj;
}

static void deleteMemoryObject(unsigned int obj) {
    pDeleteMemoryObjects(1, &obj);
}

static void memoryObjectParameteri(unsigned int obj, unsigned int pname, int value) {
    pMemoryObjectParameteriv(obj, pname, &value);
}

static void importMemoryFd(unsigned int memory, uint64_t size, unsigned int handleType, int fd) {
    pImportMemoryFd(memory, size, handleType, fd);
}

static void texStorageMem2D(unsigned int target, int levels, unsigned int internalFormat,
                            int width, int height, unsigned int memory, uint64_t offset) {
    pTexStorageMem2D(target, levels, internalFormat, width, height, memory, offset);
}
*/
import "C"
import (
	"fmt"
	"unsafe"
)

// ProcLoader resolves a GL entry point in the current context, such as
// glfw.GetProcAddress.
type ProcLoader func(name string) unsafe.Pointer

// loadMemoryObjectProcs resolves the EXT_memory_object(_fd) entry points.
func loadMemoryObjectProcs(load ProcLoader) error {
	names := []string{
		"glCreateMemoryObjectsEXT",
		"glDeleteMemoryObjectsEXT",
		"glMemoryObjectParameterivEXT",
		"glImportMemoryFdEXT",
		"glTexStorageMem2DEXT",
	}
	procs := make([]unsafe.Pointer, len(names))
	var missing []string
	for i, n := range names {
		if procs[i] = load(n); procs[i] == nil {
			missing = append(missing, n)
		}
	}
	if C.setMemoryObjectProcs(procs[0], procs[1], procs[2], procs[3], procs[4]) == 0 {
		return fmt.Errorf("missing GL entry points %v", missing)
	}
	return nil
}

func createMemoryObject() uint32 { return uint32(C.createMemoryObject()) }

func deleteMemoryObject(obj uint32) { C.deleteMemoryObject(C.uint(obj)) }

func setMemoryObjectDedicated(obj uint32, dedicated bool) {
	v := C.int(0)
	if dedicated {
		v = 1
	}
	C.memoryObjectParameteri(C.uint(obj), dedicatedMemoryObjectEXT, v)
}

// importMemoryFd transfers ownership of fd to the GL on success.
func importMemoryFd(obj uint32, size uint64, handleType uint32, fd int) {
	C.importMemoryFd(C.uint(obj), C.uint64_t(size), C.uint(handleType), C.int(fd))
}

func texStorageMem2D(target uint32, levels int32, internal uint32, w, h int32, obj uint32, offset uint64) {
	C.texStorageMem2D(C.uint(target), C.int(levels), C.uint(internal), C.int(w), C.int(h), C.uint(obj), C.uint64_t(offset))
}
