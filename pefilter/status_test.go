package pefilter

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusOrdinals(t *testing.T) {
	// Values are part of the C ABI.
	assert.Equal(t, 0, int(PE_SUCCESS))
	assert.Equal(t, 1, int(PE_INVALID_HANDLE))
	assert.Equal(t, 2, int(PE_FAILURE))
	assert.Equal(t, 6, int(PE_MISSING_HARMONIC_FILTER))
	assert.Equal(t, 8, int(PE_UNKNOWN))
	assert.Equal(t, 12, int(PE_UNSUPPORTED_CONFIGURATION))
	assert.Equal(t, 13, int(PE_NO_FILTER_CONNECTED))
}

func TestStatusString_Total(t *testing.T) {
	seen := map[string]Status{}
	for code := PE_SUCCESS; code <= PE_NO_FILTER_CONNECTED; code++ {
		s := StatusString(code)
		assert.NotEmpty(t, s, "code %d", code)
		assert.Equal(t, s, StatusString(code), "stable for code %d", code)
		if prev, dup := seen[s]; dup {
			t.Errorf("codes %d and %d share description %q", prev, code, s)
		}
		seen[s] = code
	}
}

func TestStatusString_OutOfRange(t *testing.T) {
	for _, code := range []Status{-1, 14, 100} {
		assert.Equal(t, "Unknown status", StatusString(code))
		assert.False(t, code.Valid())
	}
}

func TestErrorString(t *testing.T) {
	assert.NoError(t, errorString(PE_SUCCESS))
	assert.ErrorIs(t, errorString(PE_INVALID_GRATING), ErrInvalidGrating)
	assert.ErrorIs(t, errorString(Status(42)), ErrUnknown)
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Status
	}{
		{"nil", nil, PE_SUCCESS},
		{"sentinel", ErrNoFilterConnected, PE_NO_FILTER_CONNECTED},
		{"wrapped", fmt.Errorf("set: %w", ErrInvalidWavelength), PE_INVALID_WAVELENGTH},
		{"deadline", fmt.Errorf("tune: %w", context.DeadlineExceeded), PE_FAILURE},
		{"canceled", context.Canceled, PE_FAILURE},
		{"foreign", errors.New("boom"), PE_UNKNOWN},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusOf(tt.err))
		})
	}
}
