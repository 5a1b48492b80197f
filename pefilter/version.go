package pefilter

import "fmt"

// Library version. Matches the vendor SDK release this package implements.
const (
	VersionMajor = 1
	VersionMinor = 2
	VersionPatch = 0
)

// LibraryVersion returns the version encoded as (major << 16) + (minor << 8) + patch.
func LibraryVersion() int {
	return EncodeVersion(VersionMajor, VersionMinor, VersionPatch)
}

// EncodeVersion packs a version triple. Each component is truncated to 8 bits.
func EncodeVersion(major, minor, patch int) int {
	return (major&0xFF)<<16 | (minor&0xFF)<<8 | patch&0xFF
}

// DecodeVersion splits an encoded version into its components.
func DecodeVersion(v int) (major, minor, patch int) {
	return (v >> 16) & 0xFF, (v >> 8) & 0xFF, v & 0xFF
}

// VersionString formats an encoded version as "major.minor.patch".
func VersionString(v int) string {
	major, minor, patch := DecodeVersion(v)
	return fmt.Sprintf("%d.%d.%d", major, minor, patch)
}
