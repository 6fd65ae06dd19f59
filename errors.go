// SPDX-License-Identifier: Apache-2.0

package sasl

import (
	"errors"
	"fmt"
	"strings"
)

// Error classes.  Every error returned by an engine matches exactly one of
// these with errors.Is, except that calls made after a failure match both
// ErrState and ErrProtocol.
var (
	ErrProtocol      = errors.New("sasl: protocol error")
	ErrState         = errors.New("sasl: operation invalid in the current state")
	ErrAuthorization = errors.New("sasl: authorization denied")
	ErrNegotiation   = errors.New("sasl: negotiation failed")
)

// ErrorKind classifies an Error.
type ErrorKind int

const (
	KindProtocol ErrorKind = iota + 1
	KindState
	KindAuthorization
	KindNegotiation
)

func (k ErrorKind) String() string {
	switch k {
	case KindProtocol:
		return "ProtocolError"
	case KindState:
		return "StateError"
	case KindAuthorization:
		return "AuthorizationError"
	case KindNegotiation:
		return "NegotiationFailure"
	}

	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindState:
		return ErrState
	case KindAuthorization:
		return ErrAuthorization
	case KindNegotiation:
		return ErrNegotiation
	default:
		return ErrProtocol
	}
}

// Error is returned by the negotiation engines and message protection
// functions.
//
// Error() returns Message alone when there are no mechanism errors, so that
// messages forming part of the observable contract, such as
// "No security layer negotiated", can be compared exactly.
type Error struct {
	Kind       ErrorKind
	Message    string
	MechErrors []error // errors from the GSS-API mechanism, if any

	also []error
}

func (e *Error) Error() string {
	if len(e.MechErrors) == 0 {
		return e.Message
	}

	mechStrs := make([]string, len(e.MechErrors))
	for i, me := range e.MechErrors {
		mechStrs[i] = me.Error()
	}

	return e.Message + ": " + strings.Join(mechStrs, "; ")
}

// Unwrap returns the class sentinel followed by the mechanism errors.
func (e *Error) Unwrap() []error {
	ret := []error{e.Kind.sentinel()}
	ret = append(ret, e.also...)
	ret = append(ret, e.MechErrors...)

	return ret
}

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func mechError(kind ErrorKind, err error, format string, args ...any) *Error {
	e := newError(kind, format, args...)
	if err != nil {
		e.MechErrors = []error{err}
	}

	return e
}

// KindOf returns the kind of an engine error, or 0 if err is not one.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return 0
}

// errNoSecurityLayer is the literal reported by Wrap and Unwrap when the
// negotiated QoP is auth.
const errNoSecurityLayer = "No security layer negotiated"
