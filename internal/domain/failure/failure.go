// Package failure classifies errors surfaced by notice fetching and storage.
package failure

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// Kind is the category of a failure.
type Kind int

const (
	// Unknown is any error that was not classified.
	Unknown Kind = iota
	// Network is a connectivity or transport failure.
	Network
	// HTTP is a 4xx/5xx response from the backend.
	HTTP
	// Parse is a malformed response body.
	Parse
	// Storage is a durable read/write failure.
	Storage
)

func (k Kind) String() string {
	switch k {
	case Network:
		return "network"
	case HTTP:
		return "http"
	case Parse:
		return "parse"
	case Storage:
		return "storage"
	default:
		return "unknown"
	}
}

// Error is a classified failure.
type Error struct {
	Kind   Kind
	Status int    // HTTP status, zero unless Kind is HTTP
	Op     string // operation that failed, e.g. "notices"
	Err    error
}

func (e *Error) Error() string {
	msg := e.Kind.String() + " error"
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Kind == HTTP && e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewNetwork wraps a transport failure.
func NewNetwork(op string, err error) *Error {
	return &Error{Kind: Network, Op: op, Err: err}
}

// NewHTTP records an error status returned by the backend.
func NewHTTP(op string, status int, err error) *Error {
	return &Error{Kind: HTTP, Op: op, Status: status, Err: err}
}

// NewParse wraps a decoding failure.
func NewParse(op string, err error) *Error {
	return &Error{Kind: Parse, Op: op, Err: err}
}

// NewStorage wraps a durable storage failure.
func NewStorage(op string, err error) *Error {
	return &Error{Kind: Storage, Op: op, Err: err}
}

// KindOf returns the kind of err. Unclassified transport errors are reported
// as Network.
func KindOf(err error) Kind {
	if err == nil {
		return Unknown
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if isTransport(err) {
		return Network
	}
	return Unknown
}

// StatusOf returns the HTTP status carried by err, or zero.
func StatusOf(err error) int {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Status
	}
	return 0
}

// Retryable reports whether a manual retry can reasonably succeed.
// Parse failures are propagated like HTTP errors and stay retryable.
func Retryable(err error) bool {
	switch KindOf(err) {
	case Network, Parse:
		return true
	case HTTP:
		s := StatusOf(err)
		return s >= 500 || s == 408 || s == 429
	default:
		return false
	}
}

// IsTimeout reports whether err is a deadline or timeout failure.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isTransport(err error) bool {
	var ue *url.Error
	if errors.As(err, &ue) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	var oe *net.OpError
	return errors.As(err, &oe)
}
