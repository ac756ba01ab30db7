package pfs

import (
	"fmt"

	"emperror.dev/errors"
)

// Code classifies a backend failure. The filesystem layer maps these onto
// its own error taxonomy and never lets an RPCError cross its boundary.
type Code int

const (
	CodeUnknown Code = iota
	CodeNotFound
	CodePermissionDenied
	CodeUnavailable
	CodeAborted
)

func (c Code) String() string {
	switch c {
	case CodeNotFound:
		return "not found"
	case CodePermissionDenied:
		return "permission denied"
	case CodeUnavailable:
		return "unavailable"
	case CodeAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// RPCError is the status/code pair surfaced by backend clients.
type RPCError struct {
	Code    Code
	Message string
}

func (e *RPCError) Error() string {
	if e.Message == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func Errorf(code Code, format string, args ...any) *RPCError {
	return &RPCError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func codeOf(err error) (Code, bool) {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.Code, true
	}
	return CodeUnknown, false
}

func IsNotFound(err error) bool {
	code, ok := codeOf(err)
	return ok && code == CodeNotFound
}

func IsPermissionDenied(err error) bool {
	code, ok := codeOf(err)
	return ok && code == CodePermissionDenied
}

func IsUnavailable(err error) bool {
	code, ok := codeOf(err)
	return ok && code == CodeUnavailable
}
