// SPDX-License-Identifier: Apache-2.0

/*
Package gssapi defines the contract between the SASL GSSAPI negotiation
engine and a GSS-API mechanism.

An Initiator (ie. client) calls Initiate to prepare a context for a
named service.  An Acceptor (ie. server) calls Accept instead.  Both
sides then call Continue in a loop, transferring tokens between
themselves, until IsEstablished returns true.  After that the context
can protect messages using Wrap and Unwrap.

Mechanisms register a factory under a name with Register; consumers
obtain a fresh context with NewMech.
*/
package gssapi

// Mech defines the interface to a GSS-API mechanism context.  A Mech value
// holds the state of exactly one security context.
type Mech interface {
	// IsEstablished reports whether the context negotiation is complete and
	// the context is ready to protect messages.
	IsEstablished() bool

	// ContextFlags returns the security flags negotiated between the
	// initiator and acceptor.
	ContextFlags() ContextFlag

	// PeerName returns the mechanism-specific name of the remote peer.
	PeerName() string

	// AcceptorName returns the mechanism-specific name of the acceptor the
	// initiator addressed.  It is only meaningful once the context is
	// established.
	AcceptorName() Name

	// SSF returns the Security Strength Factor of the established context.
	SSF() uint

	// WrapSizeLimit returns the largest payload that can be presented to
	// Wrap to produce an output token no longer than requestedOutputSize.
	WrapSizeLimit(requestedOutputSize uint32, confidentiality bool) uint32

	// Initiate prepares an initiator context for the service named by
	// target, requesting the supplied flags.
	Initiate(target Name, flags ContextFlag) error

	// Accept prepares an acceptor context.  A zero Name accepts any
	// service the acceptor holds keys for.
	Accept(self Name) error

	// Continue consumes a token from the peer and returns the token to send
	// back, which may be empty.
	Continue(tokenIn []byte) (tokenOut []byte, err error)

	// Wrap protects payload for the peer, sealing it when confidentiality
	// is requested and signing it otherwise.
	Wrap(payload []byte, confidentiality bool) (tokenOut []byte, err error)

	// Unwrap verifies a token produced by the peer's Wrap and returns the
	// payload.  isSealed reports whether the payload was encrypted.
	Unwrap(tokenIn []byte) (payload []byte, isSealed bool, err error)

	// Release discards the key material held by the context.
	Release()
}

// RealmBinder is implemented by mechanisms that can restrict an acceptor to
// credentials issued by one trust domain.
type RealmBinder interface {
	BindRealm(realm string)
}

// KeyExporter is implemented by mechanisms that can expose the session key
// negotiated for a context.
type KeyExporter interface {
	SessionKey() (*SessionKey, error)
}
