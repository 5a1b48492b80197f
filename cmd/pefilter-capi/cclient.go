package main

/*
#include <stdlib.h>

typedef int PE_STATUS;
typedef void* PE_HANDLE;
typedef const void* CPE_HANDLE;
*/
import "C"

import (
	"unsafe"

	"github.com/photonetc/lltf-device-plugin/pefilter"
)

// The functions below call the exported table the way a C client does,
// with C strings, C buffers and raw handles. Test files cannot use cgo, so
// this is how the export layer is exercised from Go.

func cHandle(id uintptr) C.CPE_HANDLE {
	return C.CPE_HANDLE(unsafe.Pointer(handleFromID(id)))
}

// cCreate calls PE_Create. A nil path passes a null conffile and
// noOut a null peHandle.
func cCreate(path *string, noOut bool) (uintptr, pefilter.Status) {
	var conffile *C.char
	if path != nil {
		conffile = C.CString(*path)
		defer C.free(unsafe.Pointer(conffile))
	}
	if noOut {
		return 0, pefilter.Status(PE_Create(conffile, nil))
	}
	h := handleFromID(0xdead)
	s := pefilter.Status(PE_Create(conffile, &h))
	return idFromHandle(unsafe.Pointer(h)), s
}

func cDestroy(id uintptr) pefilter.Status {
	return pefilter.Status(PE_Destroy(handleFromID(id)))
}

// cOpen calls PE_Open, passing a null name when name is nil.
func cOpen(id uintptr, name *string) pefilter.Status {
	var cname *C.char
	if name != nil {
		cname = C.CString(*name)
		defer C.free(unsafe.Pointer(cname))
	}
	return pefilter.Status(PE_Open(handleFromID(id), cname))
}

// cSystemName reads a system name into a C buffer of size bytes.
func cSystemName(id uintptr, index, size int) (string, pefilter.Status) {
	buf := (*C.char)(C.malloc(C.size_t(size + 1)))
	defer C.free(unsafe.Pointer(buf))
	s := pefilter.Status(PE_GetSystemName(cHandle(id), C.int(index), buf, C.int(size)))
	if s != pefilter.PE_SUCCESS {
		return "", s
	}
	return C.GoString(buf), s
}

// cGratingName reads a grating name into a C buffer of size bytes.
func cGratingName(id uintptr, index, size int) (string, pefilter.Status) {
	buf := (*C.char)(C.malloc(C.size_t(size + 1)))
	defer C.free(unsafe.Pointer(buf))
	s := pefilter.Status(PE_GetGratingName(cHandle(id), C.int(index), buf, C.int(size)))
	if s != pefilter.PE_SUCCESS {
		return "", s
	}
	return C.GoString(buf), s
}

func cSetWavelength(id uintptr, nm float64) pefilter.Status {
	return pefilter.Status(PE_SetWavelength(handleFromID(id), C.double(nm)))
}

func cWavelength(id uintptr) (float64, pefilter.Status) {
	var nm C.double
	s := pefilter.Status(PE_GetWavelength(cHandle(id), &nm))
	return float64(nm), s
}

func cGratingRange(id uintptr, index int, extended bool) (float64, float64, pefilter.Status) {
	var lo, hi C.double
	fn := PE_GetGratingWavelengthRange
	if extended {
		fn = PE_GetGratingWavelengthExtendedRange
	}
	s := pefilter.Status(fn(cHandle(id), C.int(index), &lo, &hi))
	return float64(lo), float64(hi), s
}

// cNullOutputs calls every function with an output parameter, passing null
// for it, and returns the status of each by name.
func cNullOutputs(id uintptr) map[string]pefilter.Status {
	h, ch := handleFromID(id), cHandle(id)
	var d C.double
	return map[string]pefilter.Status{
		"PE_Create":                            pefilter.Status(PE_Create(nil, nil)),
		"PE_GetSystemName":                     pefilter.Status(PE_GetSystemName(ch, 0, nil, 64)),
		"PE_GetWavelength":                     pefilter.Status(PE_GetWavelength(ch, nil)),
		"PE_GetWavelengthRange min":            pefilter.Status(PE_GetWavelengthRange(ch, nil, &d)),
		"PE_GetWavelengthRange max":            pefilter.Status(PE_GetWavelengthRange(ch, &d, nil)),
		"PE_GetHarmonicFilterEnabled":          pefilter.Status(PE_GetHarmonicFilterEnabled(ch, nil)),
		"PE_GetGratingCount":                   pefilter.Status(PE_GetGratingCount(ch, nil)),
		"PE_GetGratingName":                    pefilter.Status(PE_GetGratingName(ch, 0, nil, 64)),
		"PE_GetGratingWavelengthRange":         pefilter.Status(PE_GetGratingWavelengthRange(ch, 0, nil, nil)),
		"PE_GetGratingWavelengthExtendedRange": pefilter.Status(PE_GetGratingWavelengthExtendedRange(ch, 0, &d, nil)),
		"PE_GetGrating":                        pefilter.Status(PE_GetGrating(h, nil)),
	}
}

// cStatusStr returns the pointer PE_GetStatusStr hands out and its text.
func cStatusStr(code int) (unsafe.Pointer, string) {
	p := PE_GetStatusStr(C.PE_STATUS(code))
	return unsafe.Pointer(p), C.GoString(p)
}
