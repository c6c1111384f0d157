package catalog

import "errors"

var (
	// ErrInvalidArgument is returned by the query builder for an empty value
	// or an unknown category/field.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrMalformedInput is returned when a response body is not well-formed XML.
	ErrMalformedInput = errors.New("malformed input")

	// ErrTransportFailure wraps every failure of the fetch collaborator.
	ErrTransportFailure = errors.New("transport failure")
)
