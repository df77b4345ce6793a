package hreq

import "github.com/brendan.keane/hreq/internal/errors"

// ErrorType classifies errors returned by the engine.
type ErrorType = errors.ErrorType

// Error kinds surfaced by Send and the configuration setters.
const (
	ErrorTypeValidation = errors.ErrorTypeValidation
	ErrorTypeCapability = errors.ErrorTypeCapability
	ErrorTypeChannel    = errors.ErrorTypeChannel
	ErrorTypeTransport  = errors.ErrorTypeTransport
	ErrorTypeProtocol   = errors.ErrorTypeProtocol
)

// IsType reports whether err is of the given kind.
func IsType(err error, errType ErrorType) bool {
	return errors.IsType(err, errType)
}

// IsTimeout reports whether err was caused by the configured timeout expiring.
func IsTimeout(err error) bool {
	return errors.IsTimeout(err)
}
