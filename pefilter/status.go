package pefilter

import (
	"context"
	"errors"
)

// Status mirrors the PE_STATUS enumeration of the vendor SDK. The ordinal
// values are part of the C ABI and must not change.
type Status int

const (
	PE_SUCCESS                   Status = 0
	PE_INVALID_HANDLE            Status = 1
	PE_FAILURE                   Status = 2
	PE_MISSING_CONFIGFILE        Status = 3
	PE_INVALID_CONFIGURATION     Status = 4
	PE_INVALID_WAVELENGTH        Status = 5
	PE_MISSING_HARMONIC_FILTER   Status = 6
	PE_INVALID_FILTER            Status = 7
	PE_UNKNOWN                   Status = 8
	PE_INVALID_GRATING           Status = 9
	PE_INVALID_BUFFER            Status = 10
	PE_INVALID_BUFFER_SIZE       Status = 11
	PE_UNSUPPORTED_CONFIGURATION Status = 12
	PE_NO_FILTER_CONNECTED       Status = 13
)

var statusStrings = [...]string{
	PE_SUCCESS:                   "Successful operation",
	PE_INVALID_HANDLE:            "Handle is already deleted or null",
	PE_FAILURE:                   "Instrument communication failure",
	PE_MISSING_CONFIGFILE:        "Configuration file is missing",
	PE_INVALID_CONFIGURATION:     "Configuration file is corrupted",
	PE_INVALID_WAVELENGTH:        "Wavelength is out of bound",
	PE_MISSING_HARMONIC_FILTER:   "No harmonic present in the system",
	PE_INVALID_FILTER:            "The requested filter doesn't exist",
	PE_UNKNOWN:                   "Unknown status",
	PE_INVALID_GRATING:           "The requested grating doesn't exist",
	PE_INVALID_BUFFER:            "The buffer is null",
	PE_INVALID_BUFFER_SIZE:       "The buffer is too small",
	PE_UNSUPPORTED_CONFIGURATION: "The filter configuration is unsupported",
	PE_NO_FILTER_CONNECTED:       "No filter is connected",
}

// StatusString returns the fixed description of code. Codes outside the
// enumeration get the PE_UNKNOWN description.
func StatusString(code Status) string {
	if code < 0 || int(code) >= len(statusStrings) {
		return statusStrings[PE_UNKNOWN]
	}
	return statusStrings[code]
}

// String implements fmt.Stringer.
func (s Status) String() string {
	return StatusString(s)
}

// Error lets a Status travel as an error value.
func (s Status) Error() string {
	return StatusString(s)
}

// Valid reports whether s is a member of the enumeration.
func (s Status) Valid() bool {
	return s >= 0 && int(s) < len(statusStrings)
}

var (
	ErrInvalidHandle            error = PE_INVALID_HANDLE
	ErrFailure                  error = PE_FAILURE
	ErrMissingConfigFile        error = PE_MISSING_CONFIGFILE
	ErrInvalidConfiguration     error = PE_INVALID_CONFIGURATION
	ErrInvalidWavelength        error = PE_INVALID_WAVELENGTH
	ErrMissingHarmonicFilter    error = PE_MISSING_HARMONIC_FILTER
	ErrInvalidFilter            error = PE_INVALID_FILTER
	ErrUnknown                  error = PE_UNKNOWN
	ErrInvalidGrating           error = PE_INVALID_GRATING
	ErrInvalidBuffer            error = PE_INVALID_BUFFER
	ErrInvalidBufferSize        error = PE_INVALID_BUFFER_SIZE
	ErrUnsupportedConfiguration error = PE_UNSUPPORTED_CONFIGURATION
	ErrNoFilterConnected        error = PE_NO_FILTER_CONNECTED
)

// errorString translates a vendor return code into a Go error.
func errorString(ret Status) error {
	switch {
	case ret == PE_SUCCESS:
		return nil
	case ret.Valid():
		return ret
	}
	return ErrUnknown
}

// StatusOf recovers the status code carried by err. Context cancellation and
// deadline errors count as communication failures; anything else that does
// not wrap a Status is PE_UNKNOWN.
func StatusOf(err error) Status {
	if err == nil {
		return PE_SUCCESS
	}
	var s Status
	if errors.As(err, &s) {
		return s
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return PE_FAILURE
	}
	return PE_UNKNOWN
}
