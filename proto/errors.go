package proto

import "github.com/juju/errors"

// Error kinds shared by the client and the server. Match with errors.Is.
const (
	// ErrMalformedMessage is returned for a frame that is not a JSON object.
	ErrMalformedMessage = errors.ConstError("malformed message")

	// ErrTransport is returned when the stream is closed, unreadable or unwritable.
	ErrTransport = errors.ConstError("transport error")

	// ErrAuthentication is returned when the server rejects the token.
	ErrAuthentication = errors.ConstError("authentication failed")

	// ErrArgument is returned by client side pre-flight validation.
	ErrArgument = errors.ConstError("invalid argument")

	// ErrDispatch marks an unknown function or message type.
	ErrDispatch = errors.ConstError("dispatch error")

	// ErrBackend marks a failure inside the execution backend.
	ErrBackend = errors.ConstError("backend error")
)
