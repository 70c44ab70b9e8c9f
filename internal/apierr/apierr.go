// Package apierr defines the error-kind taxonomy shared by the core
// (sender, reassembly streamer, session manager, state store) and the HTTP
// layer, so a handler can map any returned error to a status code without
// the core importing net/http.
package apierr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for HTTP status mapping and retry policy.
type Kind int

const (
	// KindInternal covers filesystem/serialization failures. Maps to 500.
	KindInternal Kind = iota
	// KindNotFound covers missing sessions/files. Maps to 404.
	KindNotFound
	// KindBadRequest covers missing/invalid params. Maps to 400.
	KindBadRequest
	// KindBackendTransient covers network/timeout/empty-body errors from a
	// chat backend. Retried with exponential backoff.
	KindBackendTransient
	// KindBackendPermanent covers a part too large after archiving, a
	// malformed archive, or an auth failure. Not retried.
	KindBackendPermanent
	// KindUnsupportedMedia covers a thumbnail request for an unsupported
	// type. Maps to 415.
	KindUnsupportedMedia
)

// Error is a classified error carrying a Kind alongside the wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func newf(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

func NotFound(format string, args ...any) *Error {
	return newf(KindNotFound, nil, format, args...)
}

func BadRequest(format string, args ...any) *Error {
	return newf(KindBadRequest, nil, format, args...)
}

func Internal(err error, format string, args ...any) *Error {
	return newf(KindInternal, err, format, args...)
}

func BackendTransient(err error, format string, args ...any) *Error {
	return newf(KindBackendTransient, err, format, args...)
}

func BackendPermanent(err error, format string, args ...any) *Error {
	return newf(KindBackendPermanent, err, format, args...)
}

func UnsupportedMedia(format string, args ...any) *Error {
	return newf(KindUnsupportedMedia, nil, format, args...)
}

// KindOf extracts the Kind of err, defaulting to KindInternal if err is not
// (or does not wrap) an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	return KindOf(err) == KindBackendTransient
}
