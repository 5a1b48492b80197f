//go:build !pefilter_native || !cgo
// +build !pefilter_native !cgo

package pefilter

// Native reports whether New is backed by the vendor library.
const Native = false

// New returns the Go implementation of the filter API when the
// `pefilter_native` build tag is not used.
func New(path string, opts ...Option) (Filter, error) {
	return Create(path, opts...)
}
