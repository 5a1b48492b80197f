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

// Status descriptions live for the process lifetime.
var statusStrings = func() map[pefilter.Status]*C.char {
	m := make(map[pefilter.Status]*C.char)
	for code := pefilter.PE_SUCCESS; code.Valid(); code++ {
		m[code] = C.CString(pefilter.StatusString(code))
	}
	return m
}()

func ret(s pefilter.Status) C.PE_STATUS {
	return C.PE_STATUS(s)
}

//export PE_Create
func PE_Create(conffile *C.char, peHandle *C.PE_HANDLE) C.PE_STATUS {
	if peHandle == nil {
		return ret(pefilter.PE_INVALID_BUFFER)
	}
	*peHandle = nil
	if conffile == nil {
		return ret(pefilter.PE_MISSING_CONFIGFILE)
	}
	id, s := create(C.GoString(conffile))
	if s == pefilter.PE_SUCCESS {
		*peHandle = handleFromID(id)
	}
	return ret(s)
}

//export PE_Destroy
func PE_Destroy(peHandle C.PE_HANDLE) C.PE_STATUS {
	return ret(destroy(idFromHandle(unsafe.Pointer(peHandle))))
}

//export PE_GetSystemCount
func PE_GetSystemCount(peHandle C.CPE_HANDLE) C.int {
	return C.int(systemCount(idFromHandle(unsafe.Pointer(peHandle))))
}

//export PE_GetSystemName
func PE_GetSystemName(peHandle C.CPE_HANDLE, index C.int, name *C.char, size C.int) C.PE_STATUS {
	buf := cbuf(unsafe.Pointer(name), int(size))
	return ret(systemName(idFromHandle(unsafe.Pointer(peHandle)), int(index), buf))
}

//export PE_GetLibraryVersion
func PE_GetLibraryVersion() C.int {
	return C.int(pefilter.LibraryVersion())
}

//export PE_GetStatusStr
func PE_GetStatusStr(code C.PE_STATUS) *C.char {
	if s, ok := statusStrings[pefilter.Status(code)]; ok {
		return s
	}
	return statusStrings[pefilter.PE_UNKNOWN]
}

//export PE_Open
func PE_Open(peHandle C.PE_HANDLE, name *C.char) C.PE_STATUS {
	if name == nil {
		return ret(pefilter.PE_INVALID_FILTER)
	}
	return ret(open(idFromHandle(unsafe.Pointer(peHandle)), C.GoString(name)))
}

//export PE_Close
func PE_Close(peHandle C.PE_HANDLE) C.PE_STATUS {
	return ret(closeSystem(idFromHandle(unsafe.Pointer(peHandle))))
}

//export PE_GetWavelength
func PE_GetWavelength(peHandle C.CPE_HANDLE, nm *C.double) C.PE_STATUS {
	if nm == nil {
		return ret(pefilter.PE_INVALID_BUFFER)
	}
	v, s := wavelength(idFromHandle(unsafe.Pointer(peHandle)))
	if s == pefilter.PE_SUCCESS {
		*nm = C.double(v)
	}
	return ret(s)
}

//export PE_SetWavelength
func PE_SetWavelength(peHandle C.PE_HANDLE, nm C.double) C.PE_STATUS {
	return ret(setWavelength(idFromHandle(unsafe.Pointer(peHandle)), float64(nm)))
}

//export PE_GetWavelengthRange
func PE_GetWavelengthRange(peHandle C.CPE_HANDLE, minimum, maximum *C.double) C.PE_STATUS {
	if minimum == nil || maximum == nil {
		return ret(pefilter.PE_INVALID_BUFFER)
	}
	lo, hi, s := wavelengthRange(idFromHandle(unsafe.Pointer(peHandle)))
	if s == pefilter.PE_SUCCESS {
		*minimum, *maximum = C.double(lo), C.double(hi)
	}
	return ret(s)
}

//export PE_HasHarmonicFilter
func PE_HasHarmonicFilter(peHandle C.CPE_HANDLE) C.int {
	if hasHarmonicFilter(idFromHandle(unsafe.Pointer(peHandle))) {
		return 1
	}
	return 0
}

//export PE_GetHarmonicFilterEnabled
func PE_GetHarmonicFilterEnabled(peHandle C.CPE_HANDLE, enable *C.int) C.PE_STATUS {
	if enable == nil {
		return ret(pefilter.PE_INVALID_BUFFER)
	}
	on, s := harmonicFilterEnabled(idFromHandle(unsafe.Pointer(peHandle)))
	if s == pefilter.PE_SUCCESS {
		*enable = 0
		if on {
			*enable = 1
		}
	}
	return ret(s)
}

//export PE_SetHarmonicFilterEnabled
func PE_SetHarmonicFilterEnabled(peHandle C.PE_HANDLE, enable C.int) C.PE_STATUS {
	return ret(setHarmonicFilterEnabled(idFromHandle(unsafe.Pointer(peHandle)), enable != 0))
}

//export PE_GetGratingCount
func PE_GetGratingCount(peHandle C.CPE_HANDLE, count *C.int) C.PE_STATUS {
	if count == nil {
		return ret(pefilter.PE_INVALID_BUFFER)
	}
	n, s := gratingCount(idFromHandle(unsafe.Pointer(peHandle)))
	if s == pefilter.PE_SUCCESS {
		*count = C.int(n)
	}
	return ret(s)
}

//export PE_GetGratingName
func PE_GetGratingName(peHandle C.CPE_HANDLE, gratingIndex C.int, name *C.char, size C.int) C.PE_STATUS {
	buf := cbuf(unsafe.Pointer(name), int(size))
	return ret(gratingName(idFromHandle(unsafe.Pointer(peHandle)), int(gratingIndex), buf))
}

//export PE_GetGratingWavelengthRange
func PE_GetGratingWavelengthRange(peHandle C.CPE_HANDLE, gratingIndex C.int, minimum, maximum *C.double) C.PE_STATUS {
	return gratingRangeOut(peHandle, gratingIndex, minimum, maximum, false)
}

//export PE_GetGratingWavelengthExtendedRange
func PE_GetGratingWavelengthExtendedRange(peHandle C.CPE_HANDLE, gratingIndex C.int, extMinimum, extMaximum *C.double) C.PE_STATUS {
	return gratingRangeOut(peHandle, gratingIndex, extMinimum, extMaximum, true)
}

func gratingRangeOut(peHandle C.CPE_HANDLE, gratingIndex C.int, minimum, maximum *C.double, extended bool) C.PE_STATUS {
	if minimum == nil || maximum == nil {
		return ret(pefilter.PE_INVALID_BUFFER)
	}
	lo, hi, s := gratingRange(idFromHandle(unsafe.Pointer(peHandle)), int(gratingIndex), extended)
	if s == pefilter.PE_SUCCESS {
		*minimum, *maximum = C.double(lo), C.double(hi)
	}
	return ret(s)
}

//export PE_SetWavelengthOnGrating
func PE_SetWavelengthOnGrating(peHandle C.PE_HANDLE, gratingIndex C.int, nm C.double) C.PE_STATUS {
	return ret(setWavelengthOnGrating(idFromHandle(unsafe.Pointer(peHandle)), int(gratingIndex), float64(nm)))
}

//export PE_GetGrating
func PE_GetGrating(peHandle C.PE_HANDLE, gratingIndex *C.int) C.PE_STATUS {
	if gratingIndex == nil {
		return ret(pefilter.PE_INVALID_BUFFER)
	}
	g, s := grating(idFromHandle(unsafe.Pointer(peHandle)))
	if s == pefilter.PE_SUCCESS {
		*gratingIndex = C.int(g)
	}
	return ret(s)
}
