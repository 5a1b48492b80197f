package pefilter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLibraryVersion(t *testing.T) {
	v := LibraryVersion()
	assert.Equal(t, 0x010200, v)
	assert.Equal(t, VersionMajor, (v>>16)&0xFF)
	assert.Equal(t, VersionMinor, (v>>8)&0xFF)
	assert.Equal(t, VersionPatch, v&0xFF)
	assert.Equal(t, "1.2.0", VersionString(v))
}

func TestEncodeDecodeVersion(t *testing.T) {
	tests := []struct{ major, minor, patch int }{
		{0, 0, 0},
		{1, 2, 0},
		{3, 14, 159},
		{255, 255, 255},
	}
	for _, tt := range tests {
		major, minor, patch := DecodeVersion(EncodeVersion(tt.major, tt.minor, tt.patch))
		assert.Equal(t, tt.major, major)
		assert.Equal(t, tt.minor, minor)
		assert.Equal(t, tt.patch, patch)
	}
}
