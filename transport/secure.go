// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"github.com/samber/oops"

	sasl "github.com/golang-auth/go-gssapi-sasl"
)

// Protector is a completed negotiation; *sasl.Client and *sasl.Server
// satisfy it.
type Protector interface {
	Wrap(p []byte, offset, length int) ([]byte, error)
	Unwrap(p []byte, offset, length int) ([]byte, error)
	Properties() (*sasl.NegotiatedProperties, error)
}

// SecureConn exchanges application messages after a negotiation, applying
// the negotiated security layer.  Under auth the messages travel as they
// are.
type SecureConn struct {
	*Conn
	p   Protector
	qop sasl.QoP
}

// NewSecureConn returns a SecureConn for a completed negotiation.
func NewSecureConn(c *Conn, p Protector) (*SecureConn, error) {
	props, err := p.Properties()
	if err != nil {
		return nil, oops.In("transport").Wrapf(err, "negotiation is not usable")
	}

	return &SecureConn{Conn: c, p: p, qop: props.QoP}, nil
}

// QoP returns the protection applied to messages.
func (s *SecureConn) QoP() sasl.QoP {
	return s.qop
}

// Send protects and writes one message.
func (s *SecureConn) Send(msg []byte) error {
	if s.qop == sasl.QoPNone {
		return s.WriteToken(msg)
	}

	tok, err := s.p.Wrap(msg, 0, len(msg))
	if err != nil {
		return oops.In("transport").With("len", len(msg)).Wrapf(err, "protecting message")
	}

	return s.WriteToken(tok)
}

// Receive reads and verifies one message.
func (s *SecureConn) Receive() ([]byte, error) {
	tok, err := s.ReadToken()
	if err != nil {
		return nil, err
	}

	if s.qop == sasl.QoPNone {
		return tok, nil
	}

	msg, err := s.p.Unwrap(tok, 0, len(tok))
	if err != nil {
		return nil, oops.In("transport").With("len", len(tok)).Wrapf(err, "verifying message")
	}

	return msg, nil
}
