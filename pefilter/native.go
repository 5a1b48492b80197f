//go:build pefilter_native && cgo
// +build pefilter_native,cgo

/*
 * Copyright (c) 2024, Intel Corporation.  All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package pefilter

/*
#cgo LDFLAGS: -lPE_Filter_SDK
#include <stdlib.h>

typedef int PE_STATUS;
typedef void* PE_HANDLE;
typedef const void* CPE_HANDLE;

PE_STATUS PE_Create(const char* conffile, PE_HANDLE* peHandle);
PE_STATUS PE_Destroy(PE_HANDLE peHandle);
int PE_GetSystemCount(CPE_HANDLE peHandle);
PE_STATUS PE_GetSystemName(CPE_HANDLE peHandle, int index, char* name, int size);
PE_STATUS PE_Open(PE_HANDLE peHandle, const char* name);
PE_STATUS PE_Close(PE_HANDLE peHandle);
PE_STATUS PE_GetWavelength(CPE_HANDLE peHandle, double* wavelength);
PE_STATUS PE_SetWavelength(PE_HANDLE peHandle, double wavelength);
PE_STATUS PE_GetWavelengthRange(CPE_HANDLE peHandle, double* minimum, double* maximum);
int PE_HasHarmonicFilter(CPE_HANDLE peHandle);
PE_STATUS PE_GetHarmonicFilterEnabled(CPE_HANDLE peHandle, int* enable);
PE_STATUS PE_SetHarmonicFilterEnabled(PE_HANDLE peHandle, int enable);
PE_STATUS PE_GetGratingCount(CPE_HANDLE peHandle, int* count);
PE_STATUS PE_GetGratingName(CPE_HANDLE peHandle, int gratingIndex, char* name, int size);
PE_STATUS PE_GetGratingWavelengthRange(CPE_HANDLE peHandle, int gratingIndex, double* minimum, double* maximum);
PE_STATUS PE_GetGratingWavelengthExtendedRange(CPE_HANDLE peHandle, int gratingIndex, double* extMinimum, double* extMaximum);
PE_STATUS PE_SetWavelengthOnGrating(PE_HANDLE peHandle, int gratingIndex, double wavelength);
PE_STATUS PE_GetGrating(PE_HANDLE peHandle, int* gratingIndex);
*/
import "C"

import (
	"context"
	"log/slog"
	"sync"
	"unsafe"
)

// Native reports whether New is backed by the vendor library.
const Native = true

const nativeNameSize = 256

// NativeFilter binds the vendor PE_Filter library.
type NativeFilter struct {
	mu  sync.Mutex
	h   C.PE_HANDLE
	log *slog.Logger
}

// New returns the vendor library implementation when the `pefilter_native`
// build tag is used. Only WithLogger is honored.
func New(path string, opts ...Option) (Filter, error) {
	probe := &Handle{log: slog.Default()}
	for _, opt := range opts {
		opt(probe)
	}

	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	var h C.PE_HANDLE
	if err := errorString(Status(C.PE_Create(cpath, &h))); err != nil {
		return nil, err
	}
	return &NativeFilter{h: h, log: probe.log}, nil
}

func (n *NativeFilter) cref() C.CPE_HANDLE {
	return C.CPE_HANDLE(n.h)
}

func (n *NativeFilter) Destroy() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.h == nil {
		return ErrInvalidHandle
	}
	err := errorString(Status(C.PE_Destroy(n.h)))
	n.h = nil
	return err
}

func (n *NativeFilter) SystemCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.h == nil {
		return -1
	}
	return int(C.PE_GetSystemCount(n.cref()))
}

func (n *NativeFilter) SystemName(index int) (string, error) {
	buf := make([]byte, nativeNameSize)
	if err := n.SystemNameInto(index, buf); err != nil {
		return "", err
	}
	return cstring(buf), nil
}

func (n *NativeFilter) SystemNameInto(index int, buf []byte) error {
	if buf == nil {
		return ErrInvalidBuffer
	}
	return n.nameInto(buf, func(p *C.char, size C.int) C.PE_STATUS {
		return C.PE_GetSystemName(n.cref(), C.int(index), p, size)
	})
}

func (n *NativeFilter) Open(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	err := errorString(Status(C.PE_Open(n.h, cname)))
	if err != nil {
		n.log.Warn("Failed to open filter system", "system", name, "error", err)
	}
	return err
}

func (n *NativeFilter) Close(ctx context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return errorString(Status(C.PE_Close(n.h)))
}

func (n *NativeFilter) Wavelength() (float64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	var wl C.double
	err := errorString(Status(C.PE_GetWavelength(n.cref(), &wl)))
	return float64(wl), err
}

func (n *NativeFilter) SetWavelength(ctx context.Context, nm float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return errorString(Status(C.PE_SetWavelength(n.h, C.double(nm))))
}

func (n *NativeFilter) WavelengthRange() (minimum, maximum float64, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	var lo, hi C.double
	err = errorString(Status(C.PE_GetWavelengthRange(n.cref(), &lo, &hi)))
	return float64(lo), float64(hi), err
}

func (n *NativeFilter) HasHarmonicFilter() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return C.PE_HasHarmonicFilter(n.cref()) != 0
}

func (n *NativeFilter) HarmonicFilterEnabled() (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	var enable C.int
	err := errorString(Status(C.PE_GetHarmonicFilterEnabled(n.cref(), &enable)))
	return enable != 0, err
}

func (n *NativeFilter) SetHarmonicFilterEnabled(ctx context.Context, enable bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	var v C.int
	if enable {
		v = 1
	}
	return errorString(Status(C.PE_SetHarmonicFilterEnabled(n.h, v)))
}

func (n *NativeFilter) GratingCount() (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	var count C.int
	err := errorString(Status(C.PE_GetGratingCount(n.cref(), &count)))
	return int(count), err
}

func (n *NativeFilter) GratingName(index int) (string, error) {
	buf := make([]byte, nativeNameSize)
	if err := n.GratingNameInto(index, buf); err != nil {
		return "", err
	}
	return cstring(buf), nil
}

func (n *NativeFilter) GratingNameInto(index int, buf []byte) error {
	if buf == nil {
		return ErrInvalidBuffer
	}
	return n.nameInto(buf, func(p *C.char, size C.int) C.PE_STATUS {
		return C.PE_GetGratingName(n.cref(), C.int(index), p, size)
	})
}

func (n *NativeFilter) GratingWavelengthRange(index int) (minimum, maximum float64, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	var lo, hi C.double
	err = errorString(Status(C.PE_GetGratingWavelengthRange(n.cref(), C.int(index), &lo, &hi)))
	return float64(lo), float64(hi), err
}

func (n *NativeFilter) GratingWavelengthExtendedRange(index int) (minimum, maximum float64, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	var lo, hi C.double
	err = errorString(Status(C.PE_GetGratingWavelengthExtendedRange(n.cref(), C.int(index), &lo, &hi)))
	return float64(lo), float64(hi), err
}

func (n *NativeFilter) SetWavelengthOnGrating(ctx context.Context, index int, nm float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return errorString(Status(C.PE_SetWavelengthOnGrating(n.h, C.int(index), C.double(nm))))
}

func (n *NativeFilter) Grating() (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	var index C.int
	err := errorString(Status(C.PE_GetGrating(n.h, &index)))
	return int(index), err
}

// nameInto runs fn against a C buffer the size of buf and copies the result
// back.
func (n *NativeFilter) nameInto(buf []byte, fn func(*C.char, C.int) C.PE_STATUS) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(buf) == 0 {
		return ErrInvalidBufferSize
	}
	cbuf := (*C.char)(C.malloc(C.size_t(len(buf))))
	defer C.free(unsafe.Pointer(cbuf))
	if err := errorString(Status(fn(cbuf, C.int(len(buf))))); err != nil {
		return err
	}
	copy(buf, C.GoBytes(unsafe.Pointer(cbuf), C.int(len(buf))))
	return nil
}

func cstring(buf []byte) string {
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i])
		}
	}
	return string(buf)
}
