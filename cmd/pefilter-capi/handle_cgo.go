package main

/*
#include <stdint.h>

typedef void* PE_HANDLE;
typedef const void* CPE_HANDLE;

static PE_HANDLE pe_handle_from_id(uintptr_t id) { return (PE_HANDLE)id; }
static uintptr_t pe_id_from_handle(CPE_HANDLE h) { return (uintptr_t)h; }
*/
import "C"

import "unsafe"

func handleFromID(id uintptr) C.PE_HANDLE {
	return C.pe_handle_from_id(C.uintptr_t(id))
}

func idFromHandle(h unsafe.Pointer) uintptr {
	return uintptr(C.pe_id_from_handle(C.CPE_HANDLE(h)))
}

// cbuf views a caller-owned C buffer as a byte slice. A null pointer maps to
// nil and a non-positive size to an empty slice.
func cbuf(p unsafe.Pointer, size int) []byte {
	if p == nil {
		return nil
	}
	if size <= 0 {
		return []byte{}
	}
	return unsafe.Slice((*byte)(p), size)
}
