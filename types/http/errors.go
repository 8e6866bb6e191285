package types

import "net/http"

// ErrorKind is the failure taxonomy shared by every layer. The boundary maps
// each kind to the HTTP status carried alongside it.
type ErrorKind string

const (
	KindBadRequest     ErrorKind = "BAD_REQUEST"
	KindNotFound       ErrorKind = "NOT_FOUND"
	KindServerTimeout  ErrorKind = "SERVER_TIMEOUT"
	KindGatewayTimeout ErrorKind = "GATEWAY_TIMEOUT"
	KindForbidden      ErrorKind = "FORBIDDEN"
	KindInternal       ErrorKind = "INTERNAL"
)

var kindHTTPCode = map[ErrorKind]int{
	KindBadRequest:     http.StatusBadRequest,
	KindNotFound:       http.StatusNotFound,
	KindServerTimeout:  http.StatusServiceUnavailable,
	KindGatewayTimeout: http.StatusGatewayTimeout,
	KindForbidden:      http.StatusForbidden,
	KindInternal:       http.StatusInternalServerError,
}

// NewError raises a single typed failure.
func NewError(kind ErrorKind, message string) *CommonError {
	code, ok := kindHTTPCode[kind]
	if !ok {
		kind = KindInternal
		code = http.StatusInternalServerError
	}
	return &CommonError{
		Errors: []Error{
			{HTTPCode: code, Code: string(kind), Message: message},
		},
	}
}

// Kind reports the kind of the first error in the envelope.
func (c *CommonError) Kind() ErrorKind {
	if c == nil || len(c.Errors) == 0 {
		return ""
	}
	return ErrorKind(c.Errors[0].Code)
}

// HTTPCode reports the transport status of the first error in the envelope.
func (c *CommonError) HTTPCode() int {
	if c == nil || len(c.Errors) == 0 {
		return http.StatusInternalServerError
	}
	if c.Errors[0].HTTPCode != 0 {
		return c.Errors[0].HTTPCode
	}
	return http.StatusInternalServerError
}
