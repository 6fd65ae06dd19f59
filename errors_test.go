// SPDX-License-Identifier: Apache-2.0

package sasl

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindString(t *testing.T) {
	assert.Equal(t, "ProtocolError", KindProtocol.String())
	assert.Equal(t, "StateError", KindState.String())
	assert.Equal(t, "AuthorizationError", KindAuthorization.String())
	assert.Equal(t, "NegotiationFailure", KindNegotiation.String())
	assert.Equal(t, "ErrorKind(9)", ErrorKind(9).String())
}

func TestErrorMessage(t *testing.T) {
	assert := assert.New(t)

	e := newError(KindState, errNoSecurityLayer)
	assert.Equal("No security layer negotiated", e.Error())

	mechErr := errors.New("bad mic")
	e = mechError(KindProtocol, mechErr, "unwrap of %d bytes failed", 10)
	assert.Equal("unwrap of 10 bytes failed: bad mic", e.Error())

	e = mechError(KindProtocol, nil, "no cause")
	assert.Empty(e.MechErrors)
}

func TestErrorUnwrap(t *testing.T) {
	assert := assert.New(t)

	tests := []struct {
		kind     ErrorKind
		sentinel error
	}{
		{KindProtocol, ErrProtocol},
		{KindState, ErrState},
		{KindAuthorization, ErrAuthorization},
		{KindNegotiation, ErrNegotiation},
	}

	mechErr := errors.New("mech failure")
	for _, tt := range tests {
		var err error = mechError(tt.kind, mechErr, "failed")
		assert.ErrorIs(err, tt.sentinel, tt.kind.String())
		assert.ErrorIs(err, mechErr, tt.kind.String())

		// wrapping keeps the classification
		wrapped := fmt.Errorf("exchange: %w", err)
		assert.Equal(tt.kind, KindOf(wrapped))

		for _, other := range tests {
			if other.kind != tt.kind {
				assert.NotErrorIs(err, other.sentinel)
			}
		}
	}

	assert.Equal(ErrorKind(0), KindOf(mechErr))
}

func TestFailedStateError(t *testing.T) {
	e := engine{state: StateFailed}
	err := e.checkEvaluate()

	assert.ErrorIs(t, err, ErrState)
	assert.ErrorIs(t, err, ErrProtocol)
	assert.NotErrorIs(t, err, ErrNegotiation)
}
