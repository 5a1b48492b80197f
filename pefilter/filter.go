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

import "context"

// ReadOnly is the query half of the filter API. It corresponds to the
// const handle of the vendor SDK.
type ReadOnly interface {
	SystemCount() int
	SystemName(index int) (string, error)
	SystemNameInto(index int, buf []byte) error
	Wavelength() (float64, error)
	WavelengthRange() (minimum, maximum float64, err error)
	HasHarmonicFilter() bool
	HarmonicFilterEnabled() (bool, error)
	GratingCount() (int, error)
	GratingName(index int) (string, error)
	GratingNameInto(index int, buf []byte) error
	GratingWavelengthRange(index int) (minimum, maximum float64, err error)
	GratingWavelengthExtendedRange(index int) (minimum, maximum float64, err error)
}

// Filter defines methods for controlling filter systems through either the
// Go implementation or the vendor library.
type Filter interface {
	ReadOnly
	Destroy() error
	Open(ctx context.Context, name string) error
	Close(ctx context.Context) error
	SetWavelength(ctx context.Context, nm float64) error
	SetHarmonicFilterEnabled(ctx context.Context, enable bool) error
	SetWavelengthOnGrating(ctx context.Context, index int, nm float64) error
	Grating() (int, error)
}

// Pinger is implemented by filters that can check a system without opening
// it.
type Pinger interface {
	Ping(ctx context.Context, name string) error
}

var (
	_ Filter = (*Handle)(nil)
	_ Pinger = (*Handle)(nil)
)

// readOnly hides the mutating methods of the wrapped filter.
type readOnly struct {
	f Filter
}

// ReadOnly returns a query-only view of h.
func (h *Handle) ReadOnly() ReadOnly {
	return readOnly{f: h}
}

// AsReadOnly returns a query-only view of any filter.
func AsReadOnly(f Filter) ReadOnly {
	return readOnly{f: f}
}

func (r readOnly) SystemCount() int                     { return r.f.SystemCount() }
func (r readOnly) SystemName(i int) (string, error)     { return r.f.SystemName(i) }
func (r readOnly) SystemNameInto(i int, b []byte) error { return r.f.SystemNameInto(i, b) }
func (r readOnly) Wavelength() (float64, error)         { return r.f.Wavelength() }
func (r readOnly) WavelengthRange() (float64, float64, error) {
	return r.f.WavelengthRange()
}
func (r readOnly) HasHarmonicFilter() bool                   { return r.f.HasHarmonicFilter() }
func (r readOnly) HarmonicFilterEnabled() (bool, error)      { return r.f.HarmonicFilterEnabled() }
func (r readOnly) GratingCount() (int, error)                { return r.f.GratingCount() }
func (r readOnly) GratingName(i int) (string, error)         { return r.f.GratingName(i) }
func (r readOnly) GratingNameInto(i int, b []byte) error     { return r.f.GratingNameInto(i, b) }
func (r readOnly) GratingWavelengthRange(i int) (float64, float64, error) {
	return r.f.GratingWavelengthRange(i)
}
func (r readOnly) GratingWavelengthExtendedRange(i int) (float64, float64, error) {
	return r.f.GratingWavelengthExtendedRange(i)
}
