package session

import (
	"errors"
	"fmt"
)

// Error categories. Transports wrap one of the open categories so callers can
// tell them apart with errors.Is.
var (
	ErrPortSelectionCancelled   = errors.New("port selection cancelled")
	ErrPortAlreadyOpen          = errors.New("port already open")
	ErrUnsupportedConfiguration = errors.New("unsupported configuration")
	ErrTransportUnavailable     = errors.New("transport unavailable")
	ErrReadFault                = errors.New("read fault")
	ErrWriteFault               = errors.New("write fault")
	ErrConnectInProgress        = errors.New("connect already in progress")

	// ErrValidation marks requests rejected before the transport is touched.
	// They never change the session state.
	ErrValidation = errors.New("validation failed")

	ErrEmptyCommand = fmt.Errorf("%w: empty command", ErrValidation)
	ErrInvalidRate  = fmt.Errorf("%w: baud rate out of range", ErrValidation)
	ErrNotConnected = fmt.Errorf("%w: no active serial connection", ErrValidation)
)

// openCategory picks the category of a failed Transport.Open.
// Anything unrecognised is treated as the transport being unavailable.
func openCategory(err error) error {
	for _, c := range []error{ErrPortAlreadyOpen, ErrUnsupportedConfiguration, ErrTransportUnavailable} {
		if errors.Is(err, c) {
			return c
		}
	}
	return ErrTransportUnavailable
}

// categoryLabel is the short name shown next to open failures
func categoryLabel(category error) string {
	switch category {
	case ErrPortAlreadyOpen:
		return "port already open"
	case ErrUnsupportedConfiguration:
		return "unsupported configuration"
	default:
		return "transport unavailable"
	}
}
