package apierr

import "net/http"

// Code classifies an API failure independently of the transport.
type Code int

const (
	Internal Code = iota
	InvalidArgument
	NotFound
	Unavailable
)

func (c Code) String() string {
	switch c {
	case InvalidArgument:
		return "invalid_argument"
	case NotFound:
		return "not_found"
	case Unavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// HTTPCode maps the code to the response status.
func (c Code) HTTPCode() int {
	switch c {
	case InvalidArgument:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
