// SPDX-License-Identifier: Apache-2.0

package gssapi

import "errors"

// Fatal status values a mechanism wraps into the errors it returns, so that
// callers can classify a failure with errors.Is without knowing which
// mechanism produced it.

var ErrBadName = errors.New("an invalid name was supplied")
var ErrBadMic = errors.New("a token had an invalid signature")
var ErrNoCred = errors.New("no credentials were supplied, or the credentials were unavailable or inaccessible")
var ErrNoContext = errors.New("no context has been established")
var ErrDefectiveToken = errors.New("invalid token was supplied")
var ErrFailure = errors.New("unspecified GSS failure")
var ErrUnavailable = errors.New("the operation or option is not available or supported")

//nolint:staticcheck // ST1012 this is informational rather than an error
var InfoDuplicateToken = errors.New("the token was a duplicate of an earlier token")

//nolint:staticcheck // ST1012 this is informational rather than an error
var InfoUnseqToken = errors.New("the token was received out of sequence")
