// SPDX-License-Identifier: Apache-2.0

package sasl

import "github.com/golang-auth/go-gssapi-sasl/gssapi"

// Negotiated property names accepted by GetNegotiatedProperty.
const (
	PropQoP             = "sasl.qop"
	PropBoundServerName = "sasl.bound.server.name"
	PropMaxBuffer       = "sasl.maxbuffer"
	PropRawSendSize     = "sasl.rawsendsize"
	PropAuthorizationID = "sasl.authorization.id"

	// PropSessionKey names the Kerberos session key of the context.
	PropSessionKey = "gssapi.krb5.session-key"
)

// NegotiatedProperties describes a completed negotiation.
type NegotiatedProperties struct {
	QoP QoP

	// BoundServerName is the host the acceptor is known by: its configured
	// name when bound, and the host of the principal the initiator
	// addressed when not.
	BoundServerName string

	SessionKey *gssapi.SessionKey

	// MaxBuffer is the largest wrapped message the peer will accept, zero
	// when no security layer is in use.
	MaxBuffer uint32

	// RawSendSize is the largest payload this side may present to Wrap.
	RawSendSize uint32

	AuthorizationID  string
	AuthenticationID string

	SSF uint
}

func (p *NegotiatedProperties) clone() *NegotiatedProperties {
	c := *p
	if p.SessionKey != nil {
		k := *p.SessionKey
		k.Value = append([]byte(nil), p.SessionKey.Value...)
		c.SessionKey = &k
	}

	return &c
}

// Properties returns the negotiated properties.  It fails with a
// StateError until the negotiation is complete.
func (e *engine) Properties() (*NegotiatedProperties, error) {
	if e.state != StateComplete {
		return nil, newError(KindState, "negotiation is not complete")
	}

	return e.props.clone(), nil
}

// GetNegotiatedProperty returns a single negotiated property by name.
// Unknown names yield nil without error.
func (e *engine) GetNegotiatedProperty(name string) (any, error) {
	if e.state != StateComplete {
		return nil, newError(KindState, "negotiation is not complete")
	}

	switch name {
	case PropQoP:
		return e.props.QoP.String(), nil
	case PropBoundServerName:
		return e.props.BoundServerName, nil
	case PropMaxBuffer:
		return e.props.MaxBuffer, nil
	case PropRawSendSize:
		return e.props.RawSendSize, nil
	case PropAuthorizationID:
		return e.props.AuthorizationID, nil
	case PropSessionKey:
		if _, ok := e.mech.(gssapi.KeyExporter); !ok {
			return nil, nil
		}
		if e.props.SessionKey == nil {
			return nil, mechError(KindProtocol, e.keyErr, "session key unavailable")
		}
		return e.props.clone().SessionKey, nil
	}

	return nil, nil
}
