package holoplay

import (
	"errors"
	"fmt"
)

var (
	// ErrDeviceUnavailable is returned when a device index is out of range
	// or the service connection is down.
	ErrDeviceUnavailable = errors.New("device unavailable")

	// ErrNotFound is returned when the source has no calibration for a
	// device that is otherwise listed.
	ErrNotFound = errors.New("calibration not found")
)

// ClientError is the connection-level status returned by every call into
// the HoloPlay Core library.
type ClientError int32

const (
	ClientNoError ClientError = iota
	ClientNoService
	ClientVersionErr
	ClientSerializeErr
	ClientDeserializeErr
	ClientMsgTooBig
	ClientSendTimeout
	ClientRecvTimeout
	ClientPipeError
	ClientAppNotInitialized
)

var clientErrorNames = [...]string{
	"no error",
	"service not running",
	"incompatible service version",
	"serialize error",
	"deserialize error",
	"message too big",
	"send timeout",
	"receive timeout",
	"pipe error",
	"app not initialized",
}

func (e ClientError) Error() string {
	if e >= 0 && int(e) < len(clientErrorNames) {
		return "holoplay client: " + clientErrorNames[e]
	}
	return fmt.Sprintf("holoplay client: unknown error %d", int32(e))
}

// Unwrap maps every connection error to ErrDeviceUnavailable.
func (e ClientError) Unwrap() error {
	if e == ClientNoError {
		return nil
	}
	return ErrDeviceUnavailable
}

// Err returns nil for ClientNoError and e otherwise.
func (e ClientError) Err() error {
	if e == ClientNoError {
		return nil
	}
	return e
}

// ServiceError is a status code carried inside a successful reply from the
// device service. These are surfaced verbatim and are not fatal.
type ServiceError int32

const (
	ServiceNoError ServiceError = iota
	ServiceBadCBOR
	ServiceBadCommand
	ServiceNoImage
	ServiceLKGNotFound
	ServiceNotInCache
	ServiceInitTooLate
	ServiceNotAllowed
)

var serviceErrorNames = [...]string{
	"no error",
	"malformed message",
	"bad command",
	"no image",
	"display not found",
	"not in cache",
	"initialized too late",
	"not allowed",
}

func (e ServiceError) Error() string {
	if e >= 0 && int(e) < len(serviceErrorNames) {
		return "holoplay service: " + serviceErrorNames[e]
	}
	return fmt.Sprintf("holoplay service: unknown error %d", int32(e))
}

// Unwrap maps a missing display to ErrNotFound.
func (e ServiceError) Unwrap() error {
	if e == ServiceLKGNotFound {
		return ErrNotFound
	}
	return nil
}

// LicenseType is passed to InitializeApp.
type LicenseType int32

const (
	LicenseNonCommercial LicenseType = iota
	LicenseCommercial
)

func (l LicenseType) String() string {
	if l == LicenseCommercial {
		return "commercial"
	}
	return "non-commercial"
}
