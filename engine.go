// SPDX-License-Identifier: Apache-2.0

/*
Package sasl implements the SASL GSSAPI mechanism of RFC 4752 on top of a
GSS-API mechanism context, by default Kerberos V.

A Client (initiator) and a Server (acceptor) exchange opaque tokens: the
caller feeds each token produced by one side to EvaluateToken on the other
until both report completion.  The first call to the Client takes an empty
token.

	cli, _ := sasl.NewClient(sasl.ClientConfig{Service: "ldap", Host: "ldap.example.com", QoP: sasl.QoPSet{sasl.QoPConfidentiality}})
	tok, err := cli.EvaluateChallenge(nil)
	// send tok to the server, which answers with srv.EvaluateResponse(tok),
	// and repeat until the server's EvaluateResponse returns a nil token

Once complete, both sides expose the NegotiatedProperties and, when a
security layer was agreed, protect messages with Wrap and Unwrap.
*/
package sasl

import (
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/golang-auth/go-gssapi-sasl/gssapi"
	"github.com/golang-auth/go-gssapi-sasl/internal/log"
	"github.com/golang-auth/go-gssapi-sasl/krb5"
)

// MechanismName is the SASL name of the mechanism.
const MechanismName = "GSSAPI"

// DefaultMech is the GSS-API mechanism used when a configuration does not
// supply a context.
const DefaultMech = krb5.MechName

// engine holds the state shared by both roles.
type engine struct {
	role     Role
	state    State
	mech     gssapi.Mech
	maxBuf   uint32
	disposed bool

	props  *NegotiatedProperties
	keyErr error

	log *logrus.Entry
}

func newEngine(role Role, mech gssapi.Mech, maxBuf uint32) (engine, error) {
	if mech == nil {
		var err error
		if mech, err = gssapi.NewMech(DefaultMech); err != nil {
			return engine{}, err
		}
	}

	session := uuid.NewString()
	return engine{
		role:   role,
		state:  StateInitial,
		mech:   mech,
		maxBuf: clampMaxBuffer(maxBuf),
		log:    log.Get().WithFields(log.Fields{"role": role.String(), "session": session}),
	}, nil
}

// MechanismName returns "GSSAPI".
func (e *engine) MechanismName() string {
	return MechanismName
}

func (e *engine) Role() Role {
	return e.role
}

func (e *engine) State() State {
	return e.state
}

// IsComplete reports whether the negotiation finished successfully.
func (e *engine) IsComplete() bool {
	return e.state == StateComplete
}

// Dispose releases the key material of the mechanism context.  An
// unfinished negotiation becomes Failed and a finished one can no longer
// protect messages.
func (e *engine) Dispose() {
	if e.disposed {
		return
	}

	e.disposed = true
	e.mech.Release()
	e.state = e.state.next(evDispose)
	e.log.WithFields(log.Fields{"at": "sasl_dispose", "state": e.state.String()}).Debug("context disposed")
}

func (e *engine) checkEvaluate() error {
	switch e.state {
	case StateComplete:
		return newError(KindProtocol, "negotiation is already complete")
	case StateFailed:
		err := newError(KindState, "negotiation has failed")
		err.also = []error{ErrProtocol}
		return err
	}

	return nil
}

func (e *engine) step() {
	e.state = e.state.next(evStep)
}

// fail marks the negotiation Failed, releases the mechanism context and
// returns err as an *Error.
func (e *engine) fail(err error) error {
	var se *Error
	if !errors.As(err, &se) {
		se = mechError(KindProtocol, err, "negotiation failed")
	}

	e.state = e.state.next(evFail)
	if !e.disposed {
		e.disposed = true
		e.mech.Release()
	}
	e.log.WithFields(log.Fields{"at": "sasl_fail", "kind": se.Kind.String()}).WithError(se).Debug("negotiation failed")

	return se
}

func (e *engine) finish(props *NegotiatedProperties) {
	if ke, ok := e.mech.(gssapi.KeyExporter); ok {
		props.SessionKey, e.keyErr = ke.SessionKey()
	}

	e.props = props
	e.state = e.state.next(evComplete)
	e.log.WithFields(log.Fields{
		"at":   "sasl_complete",
		"qop":  props.QoP.String(),
		"ssf":  props.SSF,
		"peer": e.mech.PeerName(),
	}).Debug("negotiation complete")
}

// classify maps a mechanism error to an error kind.  Name and realm
// mismatches are negotiation failures, everything else is a protocol error.
func classify(err error) ErrorKind {
	if errors.Is(err, gssapi.ErrBadName) {
		return KindNegotiation
	}

	return KindProtocol
}

// supports reports whether the established context can provide the
// protection a QoP needs.
func (e *engine) supports(q QoP) bool {
	flags := e.mech.ContextFlags()
	switch q {
	case QoPNone:
		return true
	case QoPIntegrity:
		return flags&gssapi.ContextFlagInteg != 0
	case QoPConfidentiality:
		return flags&gssapi.ContextFlagConf != 0
	}

	return false
}

func (e *engine) ssf(q QoP) uint {
	switch q {
	case QoPIntegrity:
		return 1
	case QoPConfidentiality:
		return e.mech.SSF()
	}

	return 0
}

// rawSendSize is the largest payload that wraps to no more than peerMax
// bytes.  Zero means the peer set no limit.
func (e *engine) rawSendSize(q QoP, peerMax uint32) uint32 {
	if q == QoPNone || peerMax == 0 {
		return 0
	}

	return e.mech.WrapSizeLimit(peerMax, q == QoPConfidentiality)
}

func validQoPSet(s QoPSet) error {
	for _, q := range s {
		switch q {
		case QoPNone, QoPIntegrity, QoPConfidentiality:
		default:
			return newError(KindNegotiation, "invalid quality of protection %s", q)
		}
	}

	return nil
}
