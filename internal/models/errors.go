package models

import "errors"

// ErrorKind classifies a failure for clients. Values are part of the wire protocol.
type ErrorKind string

const (
	KindNotFound          ErrorKind = "not_found"
	KindInvalidArgument   ErrorKind = "invalid_argument"
	KindInvalidPhase      ErrorKind = "invalid_phase"
	KindExpired           ErrorKind = "expired"
	KindProtocolError     ErrorKind = "protocol_error"
	KindResourceExhausted ErrorKind = "resource_exhausted"
	KindInternal          ErrorKind = "internal"
)

var (
	// ErrNotFound: unknown or purged session, or a participant that is not a member.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument: malformed duration, name, topic or vote value.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidPhase: the mutation is not allowed in the session's current phase.
	ErrInvalidPhase = errors.New("invalid phase")
	// ErrExpired: the session is past its lifetime or was closed.
	ErrExpired = errors.New("session expired")
	// ErrProtocol: a frame arrived out of sequence on a connection.
	ErrProtocol = errors.New("protocol error")
	// ErrResourceExhausted: a subscriber fell behind and its buffer overran.
	ErrResourceExhausted = errors.New("resource exhausted")
)

// KindOf maps an error chain onto the taxonomy. Unclassified errors are internal.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidArgument):
		return KindInvalidArgument
	case errors.Is(err, ErrInvalidPhase):
		return KindInvalidPhase
	case errors.Is(err, ErrExpired):
		return KindExpired
	case errors.Is(err, ErrProtocol):
		return KindProtocolError
	case errors.Is(err, ErrResourceExhausted):
		return KindResourceExhausted
	default:
		return KindInternal
	}
}
